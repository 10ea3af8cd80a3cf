package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/cockroachdb/errors"
	"github.com/smallbiznis/docflow/internal/aggregate"
	"github.com/smallbiznis/docflow/pkg/db/pagination"
)

type CreateQuotationRequest struct {
	CustomerRef string
	StartDate   time.Time
	EndDate     time.Time
	Note        string
	Items       []aggregate.LineInput
}

type UpdateQuotationRequest struct {
	Ref       string
	StartDate *time.Time
	EndDate   *time.Time
	Note      *string
}

type ListQuotationRequest struct {
	PageToken   string
	PageSize    int
	Search      string
	CustomerRef string
}

type ListQuotationFilter struct {
	Search     string
	CustomerID *snowflake.ID
}

type ListQuotationResponse struct {
	pagination.PageInfo
	Quotations []Quotation `json:"quotations"`
}

type Service interface {
	Create(context.Context, CreateQuotationRequest) (Quotation, error)
	Get(ctx context.Context, ref string) (Quotation, error)
	List(context.Context, ListQuotationRequest) (ListQuotationResponse, error)
	Update(context.Context, UpdateQuotationRequest) (Quotation, error)
	Delete(ctx context.Context, ref string) error

	AddItem(ctx context.Context, ref string, in aggregate.LineInput) (Quotation, error)
	UpdateItem(ctx context.Context, ref, itemID string, in aggregate.LineInput) (Quotation, error)
	RemoveItem(ctx context.Context, ref, itemID string) (Quotation, error)
}

var (
	ErrInvalidID       = errors.New("invalid_id")
	ErrInvalidCustomer = errors.New("invalid_customer")
	ErrNotFound        = errors.New("not_found")
	ErrItemNotFound    = errors.New("item_not_found")
)
