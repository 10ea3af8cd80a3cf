package repository

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/cockroachdb/errors"
	"github.com/smallbiznis/docflow/internal/quotation/domain"
	"github.com/smallbiznis/docflow/pkg/db"
	"github.com/smallbiznis/docflow/pkg/db/pagination"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func orderedItems(q *gorm.DB) *gorm.DB {
	return q.Order("quotation_items.id ASC")
}

func (r *repo) Insert(ctx context.Context, conn *gorm.DB, quotation *domain.Quotation) error {
	return conn.WithContext(ctx).Omit(clause.Associations).Create(quotation).Error
}

func (r *repo) Update(ctx context.Context, conn *gorm.DB, quotation *domain.Quotation) error {
	return conn.WithContext(ctx).
		Model(&domain.Quotation{ID: quotation.ID}).
		Select("customer_id", "start_date", "end_date", "note", "updated_at").
		Updates(quotation).Error
}

func (r *repo) Delete(ctx context.Context, conn *gorm.DB, id snowflake.ID) error {
	return conn.WithContext(ctx).Delete(&domain.Quotation{}, "id = ?", id).Error
}

func (r *repo) FindByID(ctx context.Context, conn *gorm.DB, id snowflake.ID) (*domain.Quotation, error) {
	return take(conn.WithContext(ctx).Preload("Items", orderedItems).Where("quotations.id = ?", id))
}

func (r *repo) FindByRef(ctx context.Context, conn *gorm.DB, ref string) (*domain.Quotation, error) {
	return take(db.ByRef(conn.WithContext(ctx).Preload("Items", orderedItems), "quotations", ref))
}

func (r *repo) LockByRef(ctx context.Context, conn *gorm.DB, ref string) (*domain.Quotation, error) {
	return take(db.LockForUpdate(db.ByRef(conn.WithContext(ctx), "quotations", ref)))
}

func (r *repo) List(ctx context.Context, conn *gorm.DB, filter domain.ListQuotationFilter, page pagination.Pagination) ([]*domain.Quotation, error) {
	stmt := conn.WithContext(ctx).
		Model(&domain.Quotation{}).
		Preload("Items", orderedItems)

	if search := strings.ToLower(strings.TrimSpace(filter.Search)); search != "" {
		like := "%" + search + "%"
		stmt = stmt.
			Select("quotations.*").
			Joins("LEFT JOIN customers ON customers.id = quotations.customer_id").
			Where(
				"LOWER(quotations.public_id) LIKE ? OR LOWER(customers.company_name) LIKE ? OR LOWER(customers.contact_name) LIKE ?",
				like, like, like,
			)
	}
	if filter.CustomerID != nil {
		stmt = stmt.Where("quotations.customer_id = ?", *filter.CustomerID)
	}

	stmt, err := pagination.Apply(stmt, page, "quotations", "created_at")
	if err != nil {
		return nil, err
	}

	var quotations []*domain.Quotation
	if err := stmt.Find(&quotations).Error; err != nil {
		return nil, err
	}
	return quotations, nil
}

func (r *repo) InsertItems(ctx context.Context, conn *gorm.DB, items []domain.QuotationItem) error {
	if len(items) == 0 {
		return nil
	}
	return conn.WithContext(ctx).Create(&items).Error
}

func (r *repo) UpdateItem(ctx context.Context, conn *gorm.DB, item *domain.QuotationItem) error {
	return conn.WithContext(ctx).Save(item).Error
}

func (r *repo) DeleteItem(ctx context.Context, conn *gorm.DB, quotationID, itemID snowflake.ID) (bool, error) {
	res := conn.WithContext(ctx).
		Where("quotation_id = ? AND id = ?", quotationID, itemID).
		Delete(&domain.QuotationItem{})
	return res.RowsAffected > 0, res.Error
}

func (r *repo) DeleteItems(ctx context.Context, conn *gorm.DB, quotationID snowflake.ID) error {
	return conn.WithContext(ctx).
		Where("quotation_id = ?", quotationID).
		Delete(&domain.QuotationItem{}).Error
}

func (r *repo) FindItem(ctx context.Context, conn *gorm.DB, quotationID, itemID snowflake.ID) (*domain.QuotationItem, error) {
	var item domain.QuotationItem
	err := conn.WithContext(ctx).
		Where("quotation_id = ? AND id = ?", quotationID, itemID).
		Take(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}

func (r *repo) ListItems(ctx context.Context, conn *gorm.DB, quotationID snowflake.ID) ([]domain.QuotationItem, error) {
	var items []domain.QuotationItem
	err := conn.WithContext(ctx).
		Where("quotation_id = ?", quotationID).
		Order("id ASC").
		Find(&items).Error
	return items, err
}

func take(q *gorm.DB) (*domain.Quotation, error) {
	var quotation domain.Quotation
	if err := q.Take(&quotation).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &quotation, nil
}
