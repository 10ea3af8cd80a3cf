package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/docflow/pkg/db/pagination"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, customer *Customer) error
	Update(ctx context.Context, db *gorm.DB, customer *Customer) error
	Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Customer, error)
	FindByRef(ctx context.Context, db *gorm.DB, ref string) (*Customer, error)
	List(ctx context.Context, db *gorm.DB, filter ListCustomerFilter, page pagination.Pagination) ([]*Customer, error)

	InsertTenant(ctx context.Context, db *gorm.DB, tenant *Tenant) error
	UpdateTenant(ctx context.Context, db *gorm.DB, tenant *Tenant) error
	FindTenantByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Tenant, error)
	FindTenantByDomain(ctx context.Context, db *gorm.DB, domain string) (*Tenant, error)
}
