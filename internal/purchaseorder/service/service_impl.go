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
	invoicedomain "github.com/smallbiznis/docflow/internal/invoice/domain"
	"github.com/smallbiznis/docflow/internal/observability/metrics"
	"github.com/smallbiznis/docflow/internal/purchaseorder/domain"
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
	Customers  customerdomain.Service
	Quotations quotationdomain.Repository
	Invoices   invoicedomain.Repository
	Repo       domain.Repository
	Metrics    *metrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	seq        sequencedomain.Generator
	customers  customerdomain.Service
	quotations quotationdomain.Repository
	invoices   invoicedomain.Repository
	repo       domain.Repository
	metrics    *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("purchaseorder.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		seq:        p.Seq,
		customers:  p.Customers,
		quotations: p.Quotations,
		invoices:   p.Invoices,
		repo:       p.Repo,
		metrics:    p.Metrics,
	}
}

// itemPlan is a validated ItemChange.
type itemPlan struct {
	id     snowflake.ID
	delete bool
	line   aggregate.Line
}

func (s *Service) CreateFromInvoice(ctx context.Context, req domain.CreateFromInvoiceRequest) (domain.PurchaseOrder, error) {
	if strings.TrimSpace(req.InvoiceRef) == "" {
		return domain.PurchaseOrder{}, domain.ErrInvalidID
	}
	status := lo.Ternary(req.Status == "", domain.StatusPending, req.Status)
	if !status.Valid() {
		return domain.PurchaseOrder{}, domain.ErrInvalidStatus
	}
	var lines []aggregate.Line
	if req.Items != nil {
		var err error
		if lines, err = buildLines(req.Items); err != nil {
			return domain.PurchaseOrder{}, err
		}
	}
	approverID, err := parseOptionalID(req.ApproverRef, domain.ErrInvalidApprover)
	if err != nil {
		return domain.PurchaseOrder{}, err
	}

	now := s.clock.Now()
	po := domain.PurchaseOrder{
		ID:         s.genID.Generate(),
		ApproverID: approverID,
		Status:     status,
		Note:       strings.TrimSpace(req.Note),
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invoice, err := s.invoices.LockByRef(ctx, tx, req.InvoiceRef)
		if err != nil {
			return err
		}
		if invoice == nil {
			return domain.ErrInvoiceMissing
		}

		existing, err := s.repo.FindByInvoiceID(ctx, tx, invoice.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			return &domain.AlreadyConvertedError{PublicID: existing.PublicID}
		}

		quotation, err := s.quotations.FindByID(ctx, tx, invoice.QuotationID)
		if err != nil {
			return err
		}
		if quotation == nil {
			return domain.ErrQuotationMissing
		}

		po.StartDate = lo.Ternary(req.StartDate.IsZero(), quotation.StartDate, daterange.Day(req.StartDate))
		po.EndDate = lo.Ternary(req.EndDate.IsZero(), quotation.EndDate, daterange.Day(req.EndDate))
		if err := daterange.Validate(po.StartDate, po.EndDate); err != nil {
			return err
		}

		if err := s.checkApprover(ctx, tx, po.ApproverID); err != nil {
			return err
		}

		if lines == nil {
			copied := lo.Map(quotation.Items, func(item quotationdomain.QuotationItem, _ int) aggregate.LineInput {
				return item.Line.Input()
			})
			if lines, err = buildLines(copied); err != nil {
				return err
			}
		}

		customerID := quotation.CustomerID
		po.CustomerID = &customerID
		po.QuotationID = quotation.ID
		po.InvoiceID = &invoice.ID

		if err := s.attachTenant(ctx, tx, customerID, req.Tenant); err != nil {
			return err
		}

		po.PublicID, err = s.seq.Next(ctx, tx, sequencedomain.KeyPurchaseOrder)
		if err != nil {
			return err
		}
		if err := s.repo.Insert(ctx, tx, &po); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return errors.Wrapf(domain.ErrAlreadyConverted, "invoice %s", invoice.PublicID)
			}
			return errors.Wrap(err, "insert purchase order")
		}
		if err := s.repo.InsertItems(ctx, tx, s.newItems(po.ID, lines, now)); err != nil {
			return errors.Wrap(err, "insert purchase order items")
		}
		return s.recompute(ctx, tx, po.ID)
	})
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyConverted) {
			s.metrics.RecordDocumentConverted(ctx, "invoice", "purchase_order", "exists")
		}
		return domain.PurchaseOrder{}, err
	}

	s.metrics.RecordDocumentConverted(ctx, "invoice", "purchase_order", "created")
	s.log.Info("purchase order issued from invoice",
		zap.String("public_id", po.PublicID),
		zap.Int("items", len(lines)),
	)
	return s.load(ctx, po.ID)
}

func (s *Service) Get(ctx context.Context, ref string) (domain.PurchaseOrder, error) {
	if strings.TrimSpace(ref) == "" {
		return domain.PurchaseOrder{}, domain.ErrInvalidID
	}
	po, err := s.repo.FindByRef(ctx, s.db, ref)
	if err != nil {
		return domain.PurchaseOrder{}, err
	}
	if po == nil {
		return domain.PurchaseOrder{}, domain.ErrNotFound
	}
	return *po, nil
}

func (s *Service) List(ctx context.Context, req domain.ListPurchaseOrderRequest) (domain.ListPurchaseOrderResponse, error) {
	filter := domain.ListPurchaseOrderFilter{Search: strings.TrimSpace(req.Search)}
	if status := strings.ToLower(strings.TrimSpace(req.Status)); status != "" {
		filter.Status = domain.Status(status)
		if !filter.Status.Valid() {
			return domain.ListPurchaseOrderResponse{}, domain.ErrInvalidStatus
		}
	}
	if req.StartFrom != nil {
		from := daterange.Day(*req.StartFrom)
		filter.StartFrom = &from
	}

	page := pagination.Pagination{PageToken: req.PageToken, PageSize: req.PageSize}
	items, err := s.repo.List(ctx, s.db, filter, page)
	if err != nil {
		return domain.ListPurchaseOrderResponse{}, err
	}

	items, pageInfo := pagination.BuildCursorPageInfo(items, page.Limit(), func(po *domain.PurchaseOrder) pagination.Cursor {
		return pagination.Cursor{ID: po.ID.Int64(), SortAt: po.StartDate}
	})

	return domain.ListPurchaseOrderResponse{
		PageInfo:       pageInfo,
		PurchaseOrders: lo.Map(items, func(po *domain.PurchaseOrder, _ int) domain.PurchaseOrder { return *po }),
	}, nil
}

// Update applies header fields and every item change in one transaction,
// then recomputes the total once.
func (s *Service) Update(ctx context.Context, req domain.UpdatePurchaseOrderRequest) (domain.PurchaseOrder, error) {
	if req.Status != nil && !req.Status.Valid() {
		return domain.PurchaseOrder{}, domain.ErrInvalidStatus
	}
	plans, err := planItems(req.Items)
	if err != nil {
		return domain.PurchaseOrder{}, err
	}
	var approverID *snowflake.ID
	if req.ApproverRef != nil {
		if approverID, err = parseOptionalID(*req.ApproverRef, domain.ErrInvalidApprover); err != nil {
			return domain.PurchaseOrder{}, err
		}
	}

	var id snowflake.ID
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		po, err := s.lock(ctx, tx, req.Ref)
		if err != nil {
			return err
		}
		id = po.ID
		now := s.clock.Now()

		start, end := po.StartDate, po.EndDate
		if req.StartDate != nil {
			start = daterange.Day(*req.StartDate)
		}
		if req.EndDate != nil {
			end = daterange.Day(*req.EndDate)
		}
		if err := daterange.Validate(start, end); err != nil {
			return err
		}
		po.StartDate, po.EndDate = start, end

		if req.Status != nil {
			po.Status = *req.Status
		}
		if req.ApproverRef != nil {
			if err := s.checkApprover(ctx, tx, approverID); err != nil {
				return err
			}
			po.ApproverID = approverID
		}
		if req.Note != nil {
			po.Note = strings.TrimSpace(*req.Note)
		}
		po.UpdatedAt = now
		if err := s.repo.Update(ctx, tx, po); err != nil {
			return errors.Wrap(err, "update purchase order")
		}

		if req.Tenant != nil && po.CustomerID != nil {
			if err := s.attachTenant(ctx, tx, *po.CustomerID, req.Tenant); err != nil {
				return err
			}
		}

		if len(plans) == 0 {
			return nil
		}
		if err := s.applyItems(ctx, tx, po.ID, plans, now); err != nil {
			return err
		}
		return s.recompute(ctx, tx, po.ID)
	})
	if err != nil {
		return domain.PurchaseOrder{}, err
	}
	return s.load(ctx, id)
}

func (s *Service) Delete(ctx context.Context, ref string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		po, err := s.lock(ctx, tx, ref)
		if err != nil {
			return err
		}

		removed, err := cascade.PurchaseOrder(ctx, tx, po.ID)
		if err != nil {
			return err
		}
		if err := s.repo.DeleteItems(ctx, tx, po.ID); err != nil {
			return errors.Wrap(err, "delete purchase order items")
		}
		if err := s.repo.Delete(ctx, tx, po.ID); err != nil {
			return errors.Wrap(err, "delete purchase order")
		}
		s.log.Info("purchase order deleted",
			append([]zap.Field{zap.String("public_id", po.PublicID)}, removed.Fields()...)...,
		)
		return nil
	})
}

func (s *Service) AddItem(ctx context.Context, ref string, in aggregate.LineInput) (domain.PurchaseOrder, error) {
	line, err := aggregate.NewLine(in)
	if err != nil {
		return domain.PurchaseOrder{}, err
	}
	return s.mutateItems(ctx, ref, []itemPlan{{line: line}})
}

func (s *Service) UpdateItem(ctx context.Context, ref, itemID string, in aggregate.LineInput) (domain.PurchaseOrder, error) {
	plans, err := planItems([]domain.ItemChange{{ID: itemID, Line: in}})
	if err != nil {
		return domain.PurchaseOrder{}, err
	}
	return s.mutateItems(ctx, ref, plans)
}

func (s *Service) RemoveItem(ctx context.Context, ref, itemID string) (domain.PurchaseOrder, error) {
	plans, err := planItems([]domain.ItemChange{{ID: itemID, Delete: true}})
	if err != nil {
		return domain.PurchaseOrder{}, err
	}
	return s.mutateItems(ctx, ref, plans)
}

func (s *Service) CreateApprover(ctx context.Context, req domain.CreateApproverRequest) (domain.Approver, error) {
	firstName := strings.TrimSpace(req.FirstName)
	if firstName == "" {
		return domain.Approver{}, domain.ErrInvalidApprover
	}

	now := s.clock.Now()
	approver := domain.Approver{
		ID:        s.genID.Generate(),
		FirstName: firstName,
		LastName:  strings.TrimSpace(req.LastName),
		Position:  strings.TrimSpace(req.Position),
		Note:      strings.TrimSpace(req.Note),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.InsertApprover(ctx, s.db, &approver); err != nil {
		return domain.Approver{}, errors.Wrap(err, "insert approver")
	}
	return approver, nil
}

func (s *Service) ListApprovers(ctx context.Context) ([]domain.Approver, error) {
	approvers, err := s.repo.ListApprovers(ctx, s.db)
	if err != nil {
		return nil, err
	}
	if approvers == nil {
		approvers = []domain.Approver{}
	}
	return approvers, nil
}

func (s *Service) mutateItems(ctx context.Context, ref string, plans []itemPlan) (domain.PurchaseOrder, error) {
	var id snowflake.ID
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		po, err := s.lock(ctx, tx, ref)
		if err != nil {
			return err
		}
		id = po.ID

		if err := s.applyItems(ctx, tx, po.ID, plans, s.clock.Now()); err != nil {
			return err
		}
		return s.recompute(ctx, tx, po.ID)
	})
	if err != nil {
		return domain.PurchaseOrder{}, err
	}
	return s.load(ctx, id)
}

func (s *Service) applyItems(ctx context.Context, tx *gorm.DB, poID snowflake.ID, plans []itemPlan, now time.Time) error {
	for _, plan := range plans {
		switch {
		case plan.id == 0:
			if err := s.repo.InsertItems(ctx, tx, s.newItems(poID, []aggregate.Line{plan.line}, now)); err != nil {
				return errors.Wrap(err, "insert purchase order item")
			}
		case plan.delete:
			deleted, err := s.repo.DeleteItem(ctx, tx, poID, plan.id)
			if err != nil {
				return err
			}
			if !deleted {
				return errors.Wrapf(domain.ErrItemNotFound, "item %s", plan.id)
			}
		default:
			item, err := s.repo.FindItem(ctx, tx, poID, plan.id)
			if err != nil {
				return err
			}
			if item == nil {
				return errors.Wrapf(domain.ErrItemNotFound, "item %s", plan.id)
			}
			item.Line = plan.line
			item.UpdatedAt = now
			if err := s.repo.UpdateItem(ctx, tx, item); err != nil {
				return errors.Wrap(err, "update purchase order item")
			}
		}
	}
	return nil
}

func (s *Service) attachTenant(ctx context.Context, tx *gorm.DB, customerID snowflake.ID, in *customerdomain.TenantInput) error {
	if in == nil || strings.TrimSpace(in.Name) == "" || strings.TrimSpace(in.Domain) == "" {
		return nil
	}
	_, err := s.customers.AttachTenant(ctx, tx, customerID, *in)
	return err
}

func (s *Service) checkApprover(ctx context.Context, tx *gorm.DB, id *snowflake.ID) error {
	if id == nil {
		return nil
	}
	approver, err := s.repo.FindApproverByID(ctx, tx, *id)
	if err != nil {
		return err
	}
	if approver == nil {
		return domain.ErrInvalidApprover
	}
	return nil
}

func (s *Service) recompute(ctx context.Context, tx *gorm.DB, id snowflake.ID) error {
	_, changed, err := aggregate.Recompute(ctx, tx, domain.Totals, id.Int64())
	if err != nil {
		return err
	}
	s.metrics.RecordTotalRecomputed(ctx, domain.Totals.Parent, changed)
	return nil
}

func (s *Service) newItems(poID snowflake.ID, lines []aggregate.Line, now time.Time) []domain.PurchaseOrderItem {
	return lo.Map(lines, func(line aggregate.Line, _ int) domain.PurchaseOrderItem {
		return domain.PurchaseOrderItem{
			ID:              s.genID.Generate(),
			PurchaseOrderID: poID,
			Line:            line,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
	})
}

func (s *Service) load(ctx context.Context, id snowflake.ID) (domain.PurchaseOrder, error) {
	po, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.PurchaseOrder{}, err
	}
	if po == nil {
		return domain.PurchaseOrder{}, domain.ErrNotFound
	}
	return *po, nil
}

func (s *Service) lock(ctx context.Context, tx *gorm.DB, ref string) (*domain.PurchaseOrder, error) {
	if strings.TrimSpace(ref) == "" {
		return nil, domain.ErrInvalidID
	}
	po, err := s.repo.LockByRef(ctx, tx, ref)
	if err != nil {
		return nil, err
	}
	if po == nil {
		return nil, domain.ErrNotFound
	}
	return po, nil
}

func planItems(changes []domain.ItemChange) ([]itemPlan, error) {
	plans := make([]itemPlan, 0, len(changes))
	for _, change := range changes {
		var plan itemPlan
		if raw := strings.TrimSpace(change.ID); raw != "" {
			id, err := snowflake.ParseString(raw)
			if err != nil || id <= 0 {
				return nil, domain.ErrInvalidID
			}
			plan.id = id
		}
		if change.Delete {
			if plan.id == 0 {
				return nil, domain.ErrInvalidID
			}
			plan.delete = true
			plans = append(plans, plan)
			continue
		}
		line, err := aggregate.NewLine(change.Line)
		if err != nil {
			return nil, err
		}
		plan.line = line
		plans = append(plans, plan)
	}
	return plans, nil
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

func parseOptionalID(raw string, invalid error) (*snowflake.ID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	id, err := snowflake.ParseString(raw)
	if err != nil || id <= 0 {
		return nil, invalid
	}
	return &id, nil
}
