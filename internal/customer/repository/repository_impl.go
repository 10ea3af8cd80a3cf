package repository

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/cockroachdb/errors"
	"github.com/smallbiznis/docflow/internal/customer/domain"
	"github.com/smallbiznis/docflow/pkg/db"
	"github.com/smallbiznis/docflow/pkg/db/pagination"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, conn *gorm.DB, customer *domain.Customer) error {
	return conn.WithContext(ctx).Omit(clause.Associations).Create(customer).Error
}

func (r *repo) Update(ctx context.Context, conn *gorm.DB, customer *domain.Customer) error {
	return conn.WithContext(ctx).Omit(clause.Associations).Save(customer).Error
}

func (r *repo) Delete(ctx context.Context, conn *gorm.DB, id snowflake.ID) error {
	return conn.WithContext(ctx).Delete(&domain.Customer{}, "id = ?", id).Error
}

func (r *repo) FindByID(ctx context.Context, conn *gorm.DB, id snowflake.ID) (*domain.Customer, error) {
	return first(conn.WithContext(ctx).Preload("Tenant").Where("customers.id = ?", id))
}

func (r *repo) FindByRef(ctx context.Context, conn *gorm.DB, ref string) (*domain.Customer, error) {
	return first(db.ByRef(conn.WithContext(ctx).Preload("Tenant"), "customers", ref))
}

func (r *repo) List(ctx context.Context, conn *gorm.DB, filter domain.ListCustomerFilter, page pagination.Pagination) ([]*domain.Customer, error) {
	stmt := conn.WithContext(ctx).
		Model(&domain.Customer{}).
		Preload("Tenant")

	if search := strings.ToLower(strings.TrimSpace(filter.Search)); search != "" {
		like := "%" + search + "%"
		stmt = stmt.Where(
			"LOWER(customers.public_id) LIKE ? OR LOWER(customers.company_name) LIKE ? OR LOWER(customers.contact_name) LIKE ?",
			like, like, like,
		)
	}
	if filter.TenantID != nil {
		stmt = stmt.Where("customers.tenant_id = ?", *filter.TenantID)
	}

	stmt, err := pagination.Apply(stmt, page, "customers", "created_at")
	if err != nil {
		return nil, err
	}

	var customers []*domain.Customer
	if err := stmt.Find(&customers).Error; err != nil {
		return nil, err
	}
	return customers, nil
}

func (r *repo) InsertTenant(ctx context.Context, conn *gorm.DB, tenant *domain.Tenant) error {
	return conn.WithContext(ctx).Create(tenant).Error
}

func (r *repo) UpdateTenant(ctx context.Context, conn *gorm.DB, tenant *domain.Tenant) error {
	return conn.WithContext(ctx).Save(tenant).Error
}

func (r *repo) FindTenantByID(ctx context.Context, conn *gorm.DB, id snowflake.ID) (*domain.Tenant, error) {
	var tenant domain.Tenant
	err := conn.WithContext(ctx).Where("id = ?", id).Take(&tenant).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &tenant, nil
}

func (r *repo) FindTenantByDomain(ctx context.Context, conn *gorm.DB, tenantDomain string) (*domain.Tenant, error) {
	var tenant domain.Tenant
	err := conn.WithContext(ctx).Where("domain = ?", tenantDomain).Take(&tenant).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &tenant, nil
}

func first(q *gorm.DB) (*domain.Customer, error) {
	var customer domain.Customer
	if err := q.Take(&customer).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &customer, nil
}
