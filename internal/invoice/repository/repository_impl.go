package repository

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/cockroachdb/errors"
	"github.com/smallbiznis/docflow/internal/invoice/domain"
	"github.com/smallbiznis/docflow/pkg/db"
	"github.com/smallbiznis/docflow/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, conn *gorm.DB, invoice *domain.Invoice) error {
	return conn.WithContext(ctx).Create(invoice).Error
}

func (r *repo) Update(ctx context.Context, conn *gorm.DB, invoice *domain.Invoice) error {
	return conn.WithContext(ctx).
		Model(&domain.Invoice{ID: invoice.ID}).
		Select("issue_date", "due_date", "status", "created_by", "note", "updated_at").
		Updates(invoice).Error
}

func (r *repo) Delete(ctx context.Context, conn *gorm.DB, id snowflake.ID) error {
	return conn.WithContext(ctx).Delete(&domain.Invoice{}, "id = ?", id).Error
}

func (r *repo) FindByID(ctx context.Context, conn *gorm.DB, id snowflake.ID) (*domain.Invoice, error) {
	return take(conn.WithContext(ctx).Where("invoices.id = ?", id))
}

func (r *repo) FindByRef(ctx context.Context, conn *gorm.DB, ref string) (*domain.Invoice, error) {
	return take(db.ByRef(conn.WithContext(ctx), "invoices", ref))
}

func (r *repo) LockByRef(ctx context.Context, conn *gorm.DB, ref string) (*domain.Invoice, error) {
	return take(db.LockForUpdate(db.ByRef(conn.WithContext(ctx), "invoices", ref)))
}

func (r *repo) LockByQuotationID(ctx context.Context, conn *gorm.DB, quotationID snowflake.ID) (*domain.Invoice, error) {
	return take(db.LockForUpdate(conn.WithContext(ctx).Where("invoices.quotation_id = ?", quotationID)))
}

func (r *repo) List(ctx context.Context, conn *gorm.DB, filter domain.ListInvoiceFilter, page pagination.Pagination) ([]*domain.Invoice, error) {
	stmt := conn.WithContext(ctx).Model(&domain.Invoice{})

	if search := strings.ToLower(strings.TrimSpace(filter.Search)); search != "" {
		like := "%" + search + "%"
		stmt = stmt.
			Select("invoices.*").
			Joins("LEFT JOIN customers ON customers.id = invoices.customer_id").
			Joins("LEFT JOIN quotations ON quotations.id = invoices.quotation_id").
			Where(
				"LOWER(invoices.public_id) LIKE ? OR LOWER(customers.company_name) LIKE ? OR LOWER(customers.contact_name) LIKE ? OR LOWER(quotations.public_id) LIKE ?",
				like, like, like, like,
			)
	}
	if filter.Status != "" {
		stmt = stmt.Where("invoices.status = ?", filter.Status)
	}
	if filter.IssueFrom != nil {
		stmt = stmt.Where("invoices.issue_date >= ?", *filter.IssueFrom)
	}
	if filter.IssueTo != nil {
		stmt = stmt.Where("invoices.issue_date <= ?", *filter.IssueTo)
	}

	stmt, err := pagination.Apply(stmt, page, "invoices", "issue_date")
	if err != nil {
		return nil, err
	}

	var invoices []*domain.Invoice
	if err := stmt.Find(&invoices).Error; err != nil {
		return nil, err
	}
	return invoices, nil
}

func take(q *gorm.DB) (*domain.Invoice, error) {
	var invoice domain.Invoice
	if err := q.Take(&invoice).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &invoice, nil
}
