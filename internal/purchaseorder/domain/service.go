package domain

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/smallbiznis/docflow/internal/aggregate"
	customerdomain "github.com/smallbiznis/docflow/internal/customer/domain"
	"github.com/smallbiznis/docflow/pkg/db/pagination"
)

// CreateFromInvoiceRequest converts an invoice into its purchase order.
// Zero dates default to the quotation's range and a nil Items copies the
// quotation's items.
type CreateFromInvoiceRequest struct {
	InvoiceRef  string
	StartDate   time.Time
	EndDate     time.Time
	Status      Status
	ApproverRef string
	Note        string
	Items       []aggregate.LineInput
	Tenant      *customerdomain.TenantInput
}

// ItemChange is one entry of a batch item edit. An empty ID inserts a new
// item, Delete removes the item with ID, anything else replaces it.
type ItemChange struct {
	ID     string              `json:"id"`
	Delete bool                `json:"delete"`
	Line   aggregate.LineInput `json:"line"`
}

type UpdatePurchaseOrderRequest struct {
	Ref         string
	StartDate   *time.Time
	EndDate     *time.Time
	Status      *Status
	ApproverRef *string
	Note        *string
	Items       []ItemChange
	Tenant      *customerdomain.TenantInput
}

type ListPurchaseOrderRequest struct {
	PageToken string
	PageSize  int
	Search    string
	Status    string
	StartFrom *time.Time
}

type ListPurchaseOrderFilter struct {
	Search    string
	Status    Status
	StartFrom *time.Time
}

type ListPurchaseOrderResponse struct {
	pagination.PageInfo
	PurchaseOrders []PurchaseOrder `json:"purchase_orders"`
}

type CreateApproverRequest struct {
	FirstName string
	LastName  string
	Position  string
	Note      string
}

type Service interface {
	CreateFromInvoice(context.Context, CreateFromInvoiceRequest) (PurchaseOrder, error)
	Get(ctx context.Context, ref string) (PurchaseOrder, error)
	List(context.Context, ListPurchaseOrderRequest) (ListPurchaseOrderResponse, error)
	Update(context.Context, UpdatePurchaseOrderRequest) (PurchaseOrder, error)
	Delete(ctx context.Context, ref string) error

	AddItem(ctx context.Context, ref string, in aggregate.LineInput) (PurchaseOrder, error)
	UpdateItem(ctx context.Context, ref, itemID string, in aggregate.LineInput) (PurchaseOrder, error)
	RemoveItem(ctx context.Context, ref, itemID string) (PurchaseOrder, error)

	CreateApprover(context.Context, CreateApproverRequest) (Approver, error)
	ListApprovers(context.Context) ([]Approver, error)
}

var (
	ErrInvalidID        = errors.New("invalid_id")
	ErrInvalidStatus    = errors.New("invalid_status")
	ErrInvalidApprover  = errors.New("invalid_approver")
	ErrNotFound         = errors.New("not_found")
	ErrItemNotFound     = errors.New("item_not_found")
	ErrInvoiceMissing   = errors.New("invoice_not_found")
	ErrQuotationMissing = errors.New("quotation_not_found")
	ErrAlreadyConverted = errors.New("already_converted")
)

// AlreadyConvertedError carries the purchase order already issued for an
// invoice. It matches ErrAlreadyConverted.
type AlreadyConvertedError struct {
	PublicID string
}

func (e *AlreadyConvertedError) Error() string {
	return "already_converted: " + e.PublicID
}

func (e *AlreadyConvertedError) Is(target error) bool {
	return target == ErrAlreadyConverted
}
