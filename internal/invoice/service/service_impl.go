package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
	"github.com/smallbiznis/docflow/internal/cascade"
	"github.com/smallbiznis/docflow/internal/clock"
	"github.com/smallbiznis/docflow/internal/daterange"
	"github.com/smallbiznis/docflow/internal/invoice/domain"
	"github.com/smallbiznis/docflow/internal/observability/metrics"
	quotationdomain "github.com/smallbiznis/docflow/internal/quotation/domain"
	sequencedomain "github.com/smallbiznis/docflow/internal/sequence/domain"
	"github.com/smallbiznis/docflow/pkg/db"
	"github.com/smallbiznis/docflow/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Seq        sequencedomain.Generator
	Quotations quotationdomain.Repository
	Repo       domain.Repository
	Metrics    *metrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	seq        sequencedomain.Generator
	quotations quotationdomain.Repository
	repo       domain.Repository
	metrics    *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("invoice.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		seq:        p.Seq,
		quotations: p.Quotations,
		repo:       p.Repo,
		metrics:    p.Metrics,
	}
}

func (s *Service) CreateFromQuotation(ctx context.Context, req domain.CreateFromQuotationRequest) (domain.CreateFromQuotationResponse, error) {
	if strings.TrimSpace(req.QuotationRef) == "" {
		return domain.CreateFromQuotationResponse{}, domain.ErrInvalidID
	}
	status := req.Status
	if status == "" {
		status = domain.InvoiceStatusPending
	}
	if !status.Valid() {
		return domain.CreateFromQuotationResponse{}, domain.ErrInvalidStatus
	}

	var (
		invoice domain.Invoice
		created bool
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		quotation, err := s.quotations.LockByRef(ctx, tx, req.QuotationRef)
		if err != nil {
			return err
		}
		if quotation == nil {
			return domain.ErrQuotationMissing
		}

		issue := lo.Ternary(req.IssueDate.IsZero(), quotation.StartDate, daterange.Day(req.IssueDate))
		due := lo.Ternary(req.DueDate.IsZero(), quotation.EndDate, daterange.Day(req.DueDate))
		if due.Before(issue) {
			return domain.ErrInvalidDueDate
		}

		now := s.clock.Now()
		existing, err := s.repo.LockByQuotationID(ctx, tx, quotation.ID)
		if err != nil {
			return err
		}

		if existing != nil {
			if !req.ConfirmUpdate {
				return &domain.ExistsError{PublicID: existing.PublicID}
			}
			existing.IssueDate = issue
			existing.DueDate = due
			existing.Status = status
			if createdBy := strings.TrimSpace(req.CreatedBy); createdBy != "" {
				existing.CreatedBy = createdBy
			}
			if note := strings.TrimSpace(req.Note); note != "" {
				existing.Note = note
			}
			existing.UpdatedAt = now
			if err := s.repo.Update(ctx, tx, existing); err != nil {
				return errors.Wrap(err, "update invoice")
			}
			invoice = *existing
			return nil
		}

		invoice = domain.Invoice{
			ID:          s.genID.Generate(),
			QuotationID: quotation.ID,
			CustomerID:  quotation.CustomerID,
			IssueDate:   issue,
			DueDate:     due,
			Status:      status,
			CreatedBy:   strings.TrimSpace(req.CreatedBy),
			Note:        strings.TrimSpace(req.Note),
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		invoice.PublicID, err = s.seq.Next(ctx, tx, sequencedomain.KeyInvoice)
		if err != nil {
			return err
		}
		if err := s.repo.Insert(ctx, tx, &invoice); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return errors.Wrapf(domain.ErrInvoiceExists, "quotation %s", quotation.PublicID)
			}
			return errors.Wrap(err, "insert invoice")
		}
		created = true
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvoiceExists) {
			s.metrics.RecordDocumentConverted(ctx, "quotation", "invoice", "exists")
		}
		return domain.CreateFromQuotationResponse{}, err
	}

	s.metrics.RecordDocumentConverted(ctx, "quotation", "invoice", lo.Ternary(created, "created", "updated"))
	s.log.Info("invoice issued from quotation",
		zap.String("public_id", invoice.PublicID),
		zap.String("quotation_id", invoice.QuotationID.String()),
		zap.Bool("created", created),
	)
	return domain.CreateFromQuotationResponse{Invoice: invoice, Created: created}, nil
}

func (s *Service) Get(ctx context.Context, ref string) (domain.Invoice, error) {
	if strings.TrimSpace(ref) == "" {
		return domain.Invoice{}, domain.ErrInvalidID
	}
	invoice, err := s.repo.FindByRef(ctx, s.db, ref)
	if err != nil {
		return domain.Invoice{}, err
	}
	if invoice == nil {
		return domain.Invoice{}, domain.ErrNotFound
	}
	return *invoice, nil
}

func (s *Service) List(ctx context.Context, req domain.ListInvoiceRequest) (domain.ListInvoiceResponse, error) {
	filter := domain.ListInvoiceFilter{
		Search:    strings.TrimSpace(req.Search),
		IssueFrom: dayPtr(req.IssueFrom),
		IssueTo:   dayPtr(req.IssueTo),
	}
	if status := strings.ToLower(strings.TrimSpace(req.Status)); status != "" {
		filter.Status = domain.InvoiceStatus(status)
		if !filter.Status.Valid() {
			return domain.ListInvoiceResponse{}, domain.ErrInvalidStatus
		}
	}

	page := pagination.Pagination{PageToken: req.PageToken, PageSize: req.PageSize}
	items, err := s.repo.List(ctx, s.db, filter, page)
	if err != nil {
		return domain.ListInvoiceResponse{}, err
	}

	items, pageInfo := pagination.BuildCursorPageInfo(items, page.Limit(), func(inv *domain.Invoice) pagination.Cursor {
		return pagination.Cursor{ID: inv.ID.Int64(), SortAt: inv.IssueDate}
	})

	return domain.ListInvoiceResponse{
		PageInfo: pageInfo,
		Invoices: lo.Map(items, func(inv *domain.Invoice, _ int) domain.Invoice { return *inv }),
	}, nil
}

func (s *Service) Update(ctx context.Context, req domain.UpdateInvoiceRequest) (domain.Invoice, error) {
	var updated domain.Invoice
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invoice, err := s.lock(ctx, tx, req.Ref)
		if err != nil {
			return err
		}

		if req.IssueDate != nil {
			invoice.IssueDate = daterange.Day(*req.IssueDate)
		}
		if req.DueDate != nil {
			invoice.DueDate = daterange.Day(*req.DueDate)
		}
		if invoice.DueDate.Before(invoice.IssueDate) {
			return domain.ErrInvalidDueDate
		}
		if req.Status != nil {
			if !req.Status.Valid() {
				return domain.ErrInvalidStatus
			}
			invoice.Status = *req.Status
		}
		if req.Note != nil {
			invoice.Note = strings.TrimSpace(*req.Note)
		}
		invoice.UpdatedAt = s.clock.Now()

		if err := s.repo.Update(ctx, tx, invoice); err != nil {
			return errors.Wrap(err, "update invoice")
		}
		updated = *invoice
		return nil
	})
	if err != nil {
		return domain.Invoice{}, err
	}
	return updated, nil
}

func (s *Service) Delete(ctx context.Context, ref string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invoice, err := s.lock(ctx, tx, ref)
		if err != nil {
			return err
		}

		removed, err := cascade.Invoice(ctx, tx, invoice.ID)
		if err != nil {
			return err
		}
		if err := s.repo.Delete(ctx, tx, invoice.ID); err != nil {
			return errors.Wrap(err, "delete invoice")
		}
		s.log.Info("invoice deleted",
			append([]zap.Field{zap.String("public_id", invoice.PublicID)}, removed.Fields()...)...,
		)
		return nil
	})
}

func (s *Service) lock(ctx context.Context, tx *gorm.DB, ref string) (*domain.Invoice, error) {
	if strings.TrimSpace(ref) == "" {
		return nil, domain.ErrInvalidID
	}
	invoice, err := s.repo.LockByRef(ctx, tx, ref)
	if err != nil {
		return nil, err
	}
	if invoice == nil {
		return nil, domain.ErrNotFound
	}
	return invoice, nil
}

func dayPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	d := daterange.Day(*t)
	return &d
}
