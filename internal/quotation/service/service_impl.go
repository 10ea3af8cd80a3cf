package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
	"github.com/smallbiznis/docflow/internal/cascade"
	"github.com/smallbiznis/docflow/internal/aggregate"
	"github.com/smallbiznis/docflow/internal/clock"
	customerdomain "github.com/smallbiznis/docflow/internal/customer/domain"
	"github.com/smallbiznis/docflow/internal/daterange"
	"github.com/smallbiznis/docflow/internal/observability/metrics"
	"github.com/smallbiznis/docflow/internal/quotation/domain"
	sequencedomain "github.com/smallbiznis/docflow/internal/sequence/domain"
	"github.com/smallbiznis/docflow/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Clock     clock.Clock
	Seq       sequencedomain.Generator
	Customers customerdomain.Repository
	Repo      domain.Repository
	Metrics   *metrics.Metrics `optional:"true"`
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	clock     clock.Clock
	seq       sequencedomain.Generator
	customers customerdomain.Repository
	repo      domain.Repository
	metrics   *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("quotation.service"),
		genID:     p.GenID,
		clock:     p.Clock,
		seq:       p.Seq,
		customers: p.Customers,
		repo:      p.Repo,
		metrics:   p.Metrics,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateQuotationRequest) (domain.Quotation, error) {
	start, end := daterange.Day(req.StartDate), daterange.Day(req.EndDate)
	if err := daterange.Validate(start, end); err != nil {
		return domain.Quotation{}, err
	}
	lines, err := buildLines(req.Items)
	if err != nil {
		return domain.Quotation{}, err
	}

	now := s.clock.Now()
	quotation := domain.Quotation{
		ID:        s.genID.Generate(),
		StartDate: start,
		EndDate:   end,
		Note:      strings.TrimSpace(req.Note),
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		customer, err := s.customers.FindByRef(ctx, tx, req.CustomerRef)
		if err != nil {
			return err
		}
		if customer == nil {
			return domain.ErrInvalidCustomer
		}
		quotation.CustomerID = customer.ID

		quotation.PublicID, err = s.seq.Next(ctx, tx, sequencedomain.KeyQuotation)
		if err != nil {
			return err
		}
		if err := s.repo.Insert(ctx, tx, &quotation); err != nil {
			return errors.Wrap(err, "insert quotation")
		}
		if err := s.repo.InsertItems(ctx, tx, s.newItems(quotation.ID, lines, now)); err != nil {
			return errors.Wrap(err, "insert quotation items")
		}
		return s.recompute(ctx, tx, quotation.ID)
	})
	if err != nil {
		return domain.Quotation{}, err
	}

	s.log.Info("quotation created",
		zap.String("public_id", quotation.PublicID),
		zap.Int("items", len(lines)),
	)
	return s.load(ctx, quotation.ID)
}

func (s *Service) Get(ctx context.Context, ref string) (domain.Quotation, error) {
	quotation, err := s.find(ctx, s.db, ref)
	if err != nil {
		return domain.Quotation{}, err
	}
	return *quotation, nil
}

func (s *Service) List(ctx context.Context, req domain.ListQuotationRequest) (domain.ListQuotationResponse, error) {
	filter := domain.ListQuotationFilter{Search: strings.TrimSpace(req.Search)}
	if ref := strings.TrimSpace(req.CustomerRef); ref != "" {
		customer, err := s.customers.FindByRef(ctx, s.db, ref)
		if err != nil {
			return domain.ListQuotationResponse{}, err
		}
		if customer == nil {
			return domain.ListQuotationResponse{Quotations: []domain.Quotation{}}, nil
		}
		filter.CustomerID = &customer.ID
	}

	page := pagination.Pagination{PageToken: req.PageToken, PageSize: req.PageSize}
	items, err := s.repo.List(ctx, s.db, filter, page)
	if err != nil {
		return domain.ListQuotationResponse{}, err
	}

	items, pageInfo := pagination.BuildCursorPageInfo(items, page.Limit(), func(q *domain.Quotation) pagination.Cursor {
		return pagination.Cursor{ID: q.ID.Int64(), SortAt: q.CreatedAt}
	})

	return domain.ListQuotationResponse{
		PageInfo: pageInfo,
		Quotations: lo.Map(items, func(q *domain.Quotation, _ int) domain.Quotation {
			return *q
		}),
	}, nil
}

func (s *Service) Update(ctx context.Context, req domain.UpdateQuotationRequest) (domain.Quotation, error) {
	var id snowflake.ID
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		quotation, err := s.lock(ctx, tx, req.Ref)
		if err != nil {
			return err
		}
		id = quotation.ID

		start, end := quotation.StartDate, quotation.EndDate
		if req.StartDate != nil {
			start = daterange.Day(*req.StartDate)
		}
		if req.EndDate != nil {
			end = daterange.Day(*req.EndDate)
		}
		if err := daterange.Validate(start, end); err != nil {
			return err
		}

		quotation.StartDate, quotation.EndDate = start, end
		if req.Note != nil {
			quotation.Note = strings.TrimSpace(*req.Note)
		}
		quotation.UpdatedAt = s.clock.Now()
		return s.repo.Update(ctx, tx, quotation)
	})
	if err != nil {
		return domain.Quotation{}, err
	}
	return s.load(ctx, id)
}

func (s *Service) Delete(ctx context.Context, ref string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		quotation, err := s.lock(ctx, tx, ref)
		if err != nil {
			return err
		}

		removed, err := cascade.Quotation(ctx, tx, quotation.ID)
		if err != nil {
			return err
		}
		if err := s.repo.DeleteItems(ctx, tx, quotation.ID); err != nil {
			return errors.Wrap(err, "delete quotation items")
		}
		if err := s.repo.Delete(ctx, tx, quotation.ID); err != nil {
			return errors.Wrap(err, "delete quotation")
		}
		s.log.Info("quotation deleted",
			append([]zap.Field{zap.String("public_id", quotation.PublicID)}, removed.Fields()...)...,
		)
		return nil
	})
}

func (s *Service) AddItem(ctx context.Context, ref string, in aggregate.LineInput) (domain.Quotation, error) {
	line, err := aggregate.NewLine(in)
	if err != nil {
		return domain.Quotation{}, err
	}
	return s.mutateItems(ctx, ref, func(tx *gorm.DB, q *domain.Quotation, now time.Time) error {
		return s.repo.InsertItems(ctx, tx, s.newItems(q.ID, []aggregate.Line{line}, now))
	})
}

func (s *Service) UpdateItem(ctx context.Context, ref, itemID string, in aggregate.LineInput) (domain.Quotation, error) {
	id, err := parseID(itemID)
	if err != nil {
		return domain.Quotation{}, err
	}
	line, err := aggregate.NewLine(in)
	if err != nil {
		return domain.Quotation{}, err
	}
	return s.mutateItems(ctx, ref, func(tx *gorm.DB, q *domain.Quotation, now time.Time) error {
		item, err := s.repo.FindItem(ctx, tx, q.ID, id)
		if err != nil {
			return err
		}
		if item == nil {
			return domain.ErrItemNotFound
		}
		item.Line = line
		item.UpdatedAt = now
		return s.repo.UpdateItem(ctx, tx, item)
	})
}

func (s *Service) RemoveItem(ctx context.Context, ref, itemID string) (domain.Quotation, error) {
	id, err := parseID(itemID)
	if err != nil {
		return domain.Quotation{}, err
	}
	return s.mutateItems(ctx, ref, func(tx *gorm.DB, q *domain.Quotation, _ time.Time) error {
		deleted, err := s.repo.DeleteItem(ctx, tx, q.ID, id)
		if err != nil {
			return err
		}
		if !deleted {
			return domain.ErrItemNotFound
		}
		return nil
	})
}

// mutateItems runs fn with the quotation row locked and recomputes the
// total in the same transaction.
func (s *Service) mutateItems(ctx context.Context, ref string, fn func(tx *gorm.DB, q *domain.Quotation, now time.Time) error) (domain.Quotation, error) {
	var id snowflake.ID
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		quotation, err := s.lock(ctx, tx, ref)
		if err != nil {
			return err
		}
		id = quotation.ID

		if err := fn(tx, quotation, s.clock.Now()); err != nil {
			return err
		}
		return s.recompute(ctx, tx, quotation.ID)
	})
	if err != nil {
		return domain.Quotation{}, err
	}
	return s.load(ctx, id)
}

func (s *Service) recompute(ctx context.Context, tx *gorm.DB, id snowflake.ID) error {
	_, changed, err := aggregate.Recompute(ctx, tx, domain.Totals, id.Int64())
	if err != nil {
		return err
	}
	s.metrics.RecordTotalRecomputed(ctx, domain.Totals.Parent, changed)
	return nil
}

func (s *Service) newItems(quotationID snowflake.ID, lines []aggregate.Line, now time.Time) []domain.QuotationItem {
	return lo.Map(lines, func(line aggregate.Line, _ int) domain.QuotationItem {
		return domain.QuotationItem{
			ID:          s.genID.Generate(),
			QuotationID: quotationID,
			Line:        line,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
	})
}

func (s *Service) load(ctx context.Context, id snowflake.ID) (domain.Quotation, error) {
	quotation, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.Quotation{}, err
	}
	if quotation == nil {
		return domain.Quotation{}, domain.ErrNotFound
	}
	return *quotation, nil
}

func (s *Service) find(ctx context.Context, conn *gorm.DB, ref string) (*domain.Quotation, error) {
	if strings.TrimSpace(ref) == "" {
		return nil, domain.ErrInvalidID
	}
	quotation, err := s.repo.FindByRef(ctx, conn, ref)
	if err != nil {
		return nil, err
	}
	if quotation == nil {
		return nil, domain.ErrNotFound
	}
	return quotation, nil
}

func (s *Service) lock(ctx context.Context, tx *gorm.DB, ref string) (*domain.Quotation, error) {
	if strings.TrimSpace(ref) == "" {
		return nil, domain.ErrInvalidID
	}
	quotation, err := s.repo.LockByRef(ctx, tx, ref)
	if err != nil {
		return nil, err
	}
	if quotation == nil {
		return nil, domain.ErrNotFound
	}
	return quotation, nil
}

func buildLines(inputs []aggregate.LineInput) ([]aggregate.Line, error) {
	lines := make([]aggregate.Line, 0, len(inputs))
	for _, in := range inputs {
		line, err := aggregate.NewLine(in)
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, nil
}

func parseID(raw string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil || id <= 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}
