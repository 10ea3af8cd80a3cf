package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
	"github.com/smallbiznis/docflow/internal/clock"
	"github.com/smallbiznis/docflow/internal/contract/domain"
	"github.com/smallbiznis/docflow/internal/daterange"
	"github.com/smallbiznis/docflow/internal/observability/metrics"
	purchaseorderdomain "github.com/smallbiznis/docflow/internal/purchaseorder/domain"
	sequencedomain "github.com/smallbiznis/docflow/internal/sequence/domain"
	"github.com/smallbiznis/docflow/pkg/db"
	"github.com/smallbiznis/docflow/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB             *gorm.DB
	Log            *zap.Logger
	GenID          *snowflake.Node
	Clock          clock.Clock
	Seq            sequencedomain.Generator
	PurchaseOrders purchaseorderdomain.Repository
	Repo           domain.Repository
	Metrics        *metrics.Metrics `optional:"true"`
}

type Service struct {
	db             *gorm.DB
	log            *zap.Logger
	genID          *snowflake.Node
	clock          clock.Clock
	seq            sequencedomain.Generator
	purchaseOrders purchaseorderdomain.Repository
	repo           domain.Repository
	metrics        *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:             p.DB,
		log:            p.Log.Named("contract.service"),
		genID:          p.GenID,
		clock:          p.Clock,
		seq:            p.Seq,
		purchaseOrders: p.PurchaseOrders,
		repo:           p.Repo,
		metrics:        p.Metrics,
	}
}

func (s *Service) CreateFromPurchaseOrder(ctx context.Context, req domain.CreateFromPurchaseOrderRequest) (domain.Contract, error) {
	if strings.TrimSpace(req.PurchaseOrderRef) == "" {
		return domain.Contract{}, domain.ErrInvalidID
	}
	start, end := daterange.Day(req.StartDate), daterange.Day(req.EndDate)
	if !start.IsZero() && !end.IsZero() {
		if err := daterange.Validate(start, end); err != nil {
			return domain.Contract{}, err
		}
	}

	var contract domain.Contract
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		po, err := s.purchaseOrders.LockByRef(ctx, tx, req.PurchaseOrderRef)
		if err != nil {
			return err
		}
		if po == nil {
			return domain.ErrPurchaseOrderMissing
		}

		existing, err := s.repo.FindByPurchaseOrderID(ctx, tx, po.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			return &domain.AlreadyConvertedError{PublicID: existing.PublicID}
		}

		start = lo.Ternary(start.IsZero(), po.StartDate, start)
		end = lo.Ternary(end.IsZero(), po.EndDate, end)
		if err := daterange.Validate(start, end); err != nil {
			return err
		}

		now := s.clock.Now()
		contract = domain.Contract{
			ID:              s.genID.Generate(),
			CustomerID:      po.CustomerID,
			QuotationID:     po.QuotationID,
			InvoiceID:       po.InvoiceID,
			PurchaseOrderID: po.ID,
			StartDate:       start,
			EndDate:         end,
			Status:          daterange.Derive(start, end, now),
			Note:            strings.TrimSpace(req.Note),
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		contract.PublicID, err = s.seq.Next(ctx, tx, sequencedomain.KeyContract)
		if err != nil {
			return err
		}
		if err := s.repo.Insert(ctx, tx, &contract); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return errors.Wrapf(domain.ErrAlreadyConverted, "purchase order %s", po.PublicID)
			}
			return errors.Wrap(err, "insert contract")
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyConverted) {
			s.metrics.RecordDocumentConverted(ctx, "purchase_order", "contract", "exists")
		}
		return domain.Contract{}, err
	}

	s.metrics.RecordDocumentConverted(ctx, "purchase_order", "contract", "created")
	s.log.Info("contract issued from purchase order",
		zap.String("public_id", contract.PublicID),
		zap.String("status", string(contract.Status)),
	)
	return contract, nil
}

func (s *Service) Get(ctx context.Context, ref string) (domain.Contract, error) {
	if strings.TrimSpace(ref) == "" {
		return domain.Contract{}, domain.ErrInvalidID
	}
	contract, err := s.repo.FindByRef(ctx, s.db, ref)
	if err != nil {
		return domain.Contract{}, err
	}
	if contract == nil {
		return domain.Contract{}, domain.ErrNotFound
	}
	return s.present(*contract), nil
}

func (s *Service) List(ctx context.Context, req domain.ListContractRequest) (domain.ListContractResponse, error) {
	filter := domain.ListContractFilter{
		Search: strings.TrimSpace(req.Search),
		Today:  s.clock.Now(),
	}
	if status := strings.TrimSpace(req.Status); status != "" {
		filter.Status = normalizeStatus(status)
		if !filter.Status.Valid() {
			return domain.ListContractResponse{}, domain.ErrInvalidStatus
		}
	}

	page := pagination.Pagination{PageToken: req.PageToken, PageSize: req.PageSize}
	items, err := s.repo.List(ctx, s.db, filter, page)
	if err != nil {
		return domain.ListContractResponse{}, err
	}

	items, pageInfo := pagination.BuildCursorPageInfo(items, page.Limit(), func(c *domain.Contract) pagination.Cursor {
		return pagination.Cursor{ID: c.ID.Int64(), SortAt: c.CreatedAt}
	})

	return domain.ListContractResponse{
		PageInfo:  pageInfo,
		Contracts: lo.Map(items, func(c *domain.Contract, _ int) domain.Contract { return s.present(*c) }),
	}, nil
}

func (s *Service) Update(ctx context.Context, req domain.UpdateContractRequest) (domain.Contract, error) {
	var updated domain.Contract
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if strings.TrimSpace(req.Ref) == "" {
			return domain.ErrInvalidID
		}
		contract, err := s.repo.LockByRef(ctx, tx, req.Ref)
		if err != nil {
			return err
		}
		if contract == nil {
			return domain.ErrNotFound
		}

		start, end := contract.StartDate, contract.EndDate
		if req.StartDate != nil {
			start = daterange.Day(*req.StartDate)
		}
		if req.EndDate != nil {
			end = daterange.Day(*req.EndDate)
		}
		if err := daterange.Validate(start, end); err != nil {
			return err
		}
		contract.StartDate, contract.EndDate = start, end

		if req.Note != nil {
			contract.Note = strings.TrimSpace(*req.Note)
		}

		now := s.clock.Now()
		contract.Status = daterange.Derive(start, end, now)
		contract.UpdatedAt = now

		if err := s.repo.Update(ctx, tx, contract); err != nil {
			return errors.Wrap(err, "update contract")
		}
		updated = *contract
		return nil
	})
	if err != nil {
		return domain.Contract{}, err
	}

	s.log.Info("contract updated",
		zap.String("public_id", updated.PublicID),
		zap.String("status", string(updated.Status)),
	)
	return updated, nil
}

func (s *Service) Delete(ctx context.Context, ref string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if strings.TrimSpace(ref) == "" {
			return domain.ErrInvalidID
		}
		contract, err := s.repo.LockByRef(ctx, tx, ref)
		if err != nil {
			return err
		}
		if contract == nil {
			return domain.ErrNotFound
		}
		if err := s.repo.Delete(ctx, tx, contract.ID); err != nil {
			return errors.Wrap(err, "delete contract")
		}
		s.log.Info("contract deleted", zap.String("public_id", contract.PublicID))
		return nil
	})
}

// present replaces the stored status snapshot with the one the dates give
// today.
func (s *Service) present(c domain.Contract) domain.Contract {
	c.Status = daterange.Derive(c.StartDate, c.EndDate, s.clock.Now())
	return c
}

func normalizeStatus(raw string) daterange.Status {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return ""
	}
	return daterange.Status(strings.ToUpper(raw[:1]) + raw[1:])
}
