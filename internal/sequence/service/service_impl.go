package service

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/smallbiznis/docflow/internal/clock"
	"github.com/smallbiznis/docflow/internal/config"
	"github.com/smallbiznis/docflow/internal/observability/metrics"
	"github.com/smallbiznis/docflow/internal/sequence/domain"
	"github.com/smallbiznis/docflow/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	Log       *zap.Logger
	Clock     clock.Clock
	Numbering *config.NumberingConfigHolder
	Repo      domain.Repository
	Metrics   *metrics.Metrics `optional:"true"`
}

type Service struct {
	log       *zap.Logger
	clock     clock.Clock
	numbering *config.NumberingConfigHolder
	repo      domain.Repository
	metrics   *metrics.Metrics
}

func New(p Params) domain.Generator {
	return &Service{
		log:       p.Log.Named("sequence.service"),
		clock:     p.Clock,
		numbering: p.Numbering,
		repo:      p.Repo,
		metrics:   p.Metrics,
	}
}

func (s *Service) Next(ctx context.Context, tx *gorm.DB, key string) (string, error) {
	key = strings.ToLower(strings.TrimSpace(key))
	if key == "" {
		return "", domain.ErrEmptyKey
	}
	format, ok := s.numbering.Lookup(key)
	if !ok {
		return "", errors.Wrapf(domain.ErrUnknownKey, "counter %q", key)
	}
	if !inTransaction(tx) {
		return "", domain.ErrTransactionNeeded
	}

	now := s.clock.Now()
	if err := s.repo.Ensure(ctx, tx, key, now); err != nil {
		return "", s.wrap(ctx, key, err, "ensure counter")
	}

	counter, err := s.repo.Lock(ctx, tx, key)
	if err != nil {
		return "", s.wrap(ctx, key, err, "lock counter")
	}
	if counter == nil {
		return "", errors.Newf("counter %q missing after ensure", key)
	}

	next := counter.CurrentValue + 1
	if err := s.repo.Save(ctx, tx, key, next, now); err != nil {
		return "", s.wrap(ctx, key, err, "advance counter")
	}

	s.metrics.RecordIdentifierIssued(ctx, key)
	return domain.Format(format.Prefix, format.Width, next), nil
}

func (s *Service) Assign(ctx context.Context, tx *gorm.DB, key, current string) (string, error) {
	if current = strings.TrimSpace(current); current != "" {
		return current, nil
	}
	return s.Next(ctx, tx, key)
}

func (s *Service) Current(ctx context.Context, conn *gorm.DB, key string) (uint64, error) {
	counter, err := s.repo.Get(ctx, conn, strings.ToLower(strings.TrimSpace(key)))
	if err != nil {
		return 0, err
	}
	if counter == nil {
		return 0, nil
	}
	return counter.CurrentValue, nil
}

func (s *Service) wrap(ctx context.Context, key string, err error, op string) error {
	wrapped := errors.Wrapf(err, "%s %q", op, key)
	if db.IsLockContentionErr(err) {
		s.metrics.RecordCounterContention(ctx, key)
		s.log.Warn("counter contention", zap.String("counter_key", key), zap.Error(err))
		return errors.Mark(wrapped, domain.ErrCounterContention)
	}
	return wrapped
}

func inTransaction(tx *gorm.DB) bool {
	if tx == nil || tx.Statement == nil {
		return false
	}
	_, ok := tx.Statement.ConnPool.(gorm.TxCommitter)
	return ok
}
