package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/cockroachdb/errors"
	"github.com/smallbiznis/docflow/pkg/db/pagination"
	"gorm.io/gorm"
)

type TenantInput struct {
	Name   string `json:"name"`
	Domain string `json:"domain"`
}

type CreateCustomerRequest struct {
	CompanyName string
	ContactName string
	Phone       string
	Email       string
	Address     string
	Metadata    map[string]any
	Tenant      *TenantInput
}

type UpdateCustomerRequest struct {
	Ref         string
	CompanyName *string
	ContactName *string
	Phone       *string
	Email       *string
	Address     *string
	Metadata    map[string]any
}

type ListCustomerRequest struct {
	PageToken string
	PageSize  int
	Search    string
	TenantID  string
}

type ListCustomerFilter struct {
	Search   string
	TenantID *snowflake.ID
}

type ListCustomerResponse struct {
	pagination.PageInfo
	Customers []Customer `json:"customers"`
}

type Service interface {
	Create(context.Context, CreateCustomerRequest) (Customer, error)
	Get(ctx context.Context, ref string) (Customer, error)
	List(context.Context, ListCustomerRequest) (ListCustomerResponse, error)
	Update(context.Context, UpdateCustomerRequest) (Customer, error)
	Delete(ctx context.Context, ref string) error
	SetTenant(ctx context.Context, ref string, in TenantInput) (Customer, error)
	// AttachTenant creates or renames the tenant for in.Domain and links it
	// to the customer, inside the caller's transaction.
	AttachTenant(ctx context.Context, tx *gorm.DB, customerID snowflake.ID, in TenantInput) (*Tenant, error)
}

var (
	ErrInvalidCompanyName = errors.New("invalid_company_name")
	ErrInvalidEmail       = errors.New("invalid_email")
	ErrInvalidTenant      = errors.New("invalid_tenant")
	ErrInvalidID          = errors.New("invalid_id")
	ErrNotFound           = errors.New("not_found")
)
