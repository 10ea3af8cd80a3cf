package domain

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/smallbiznis/docflow/pkg/db/pagination"
)

// CreateFromQuotationRequest converts a quotation into its invoice. Zero
// dates default to the quotation's start and end dates.
type CreateFromQuotationRequest struct {
	QuotationRef  string
	IssueDate     time.Time
	DueDate       time.Time
	Status        InvoiceStatus
	CreatedBy     string
	Note          string
	ConfirmUpdate bool
}

type CreateFromQuotationResponse struct {
	Invoice Invoice `json:"invoice"`
	Created bool    `json:"created"`
}

type UpdateInvoiceRequest struct {
	Ref       string
	IssueDate *time.Time
	DueDate   *time.Time
	Status    *InvoiceStatus
	Note      *string
}

type ListInvoiceRequest struct {
	PageToken string
	PageSize  int
	Search    string
	Status    string
	IssueFrom *time.Time
	IssueTo   *time.Time
}

type ListInvoiceFilter struct {
	Search    string
	Status    InvoiceStatus
	IssueFrom *time.Time
	IssueTo   *time.Time
}

type ListInvoiceResponse struct {
	pagination.PageInfo
	Invoices []Invoice `json:"invoices"`
}

type Service interface {
	CreateFromQuotation(context.Context, CreateFromQuotationRequest) (CreateFromQuotationResponse, error)
	Get(ctx context.Context, ref string) (Invoice, error)
	List(context.Context, ListInvoiceRequest) (ListInvoiceResponse, error)
	Update(context.Context, UpdateInvoiceRequest) (Invoice, error)
	Delete(ctx context.Context, ref string) error
}

var (
	ErrInvalidID        = errors.New("invalid_id")
	ErrInvalidStatus    = errors.New("invalid_status")
	ErrInvalidDueDate   = errors.New("invalid_due_date")
	ErrNotFound         = errors.New("not_found")
	ErrQuotationMissing = errors.New("quotation_not_found")
	ErrInvoiceExists    = errors.New("invoice_exists")
)

// ExistsError reports the invoice already issued for a quotation when the
// caller did not confirm updating it. It matches ErrInvoiceExists.
type ExistsError struct {
	PublicID string
}

func (e *ExistsError) Error() string {
	return "invoice_exists: " + e.PublicID
}

func (e *ExistsError) Is(target error) bool {
	return target == ErrInvoiceExists
}
