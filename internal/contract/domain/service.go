package domain

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/smallbiznis/docflow/internal/daterange"
	"github.com/smallbiznis/docflow/pkg/db/pagination"
)

// CreateFromPurchaseOrderRequest converts a purchase order into its
// contract. Zero dates default to the purchase order's range.
type CreateFromPurchaseOrderRequest struct {
	PurchaseOrderRef string
	StartDate        time.Time
	EndDate          time.Time
	Note             string
}

// UpdateContractRequest changes the range or the note. The status always
// follows the dates.
type UpdateContractRequest struct {
	Ref       string
	StartDate *time.Time
	EndDate   *time.Time
	Note      *string
}

type ListContractRequest struct {
	PageToken string
	PageSize  int
	Search    string
	Status    string
}

// ListContractFilter matches Status against the dates as of Today, so rows
// whose stored snapshot is stale still land in the right bucket.
type ListContractFilter struct {
	Search string
	Status daterange.Status
	Today  time.Time
}

type ListContractResponse struct {
	pagination.PageInfo
	Contracts []Contract `json:"contracts"`
}

type Service interface {
	CreateFromPurchaseOrder(context.Context, CreateFromPurchaseOrderRequest) (Contract, error)
	Get(ctx context.Context, ref string) (Contract, error)
	List(context.Context, ListContractRequest) (ListContractResponse, error)
	Update(context.Context, UpdateContractRequest) (Contract, error)
	Delete(ctx context.Context, ref string) error
}

var (
	ErrInvalidID            = errors.New("invalid_id")
	ErrInvalidStatus        = errors.New("invalid_status")
	ErrNotFound             = errors.New("not_found")
	ErrPurchaseOrderMissing = errors.New("purchase_order_not_found")
	ErrAlreadyConverted     = errors.New("already_converted")
)

// AlreadyConvertedError carries the contract already issued for a purchase
// order. It matches ErrAlreadyConverted.
type AlreadyConvertedError struct {
	PublicID string
}

func (e *AlreadyConvertedError) Error() string {
	return "already_converted: " + e.PublicID
}

func (e *AlreadyConvertedError) Is(target error) bool {
	return target == ErrAlreadyConverted
}
