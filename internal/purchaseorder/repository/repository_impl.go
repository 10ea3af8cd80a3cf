package repository

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/cockroachdb/errors"
	"github.com/smallbiznis/docflow/internal/purchaseorder/domain"
	"github.com/smallbiznis/docflow/pkg/db"
	"github.com/smallbiznis/docflow/pkg/db/pagination"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func withChildren(q *gorm.DB) *gorm.DB {
	return q.
		Preload("Items", func(q *gorm.DB) *gorm.DB { return q.Order("purchase_order_items.id ASC") }).
		Preload("Approver")
}

func (r *repo) Insert(ctx context.Context, conn *gorm.DB, po *domain.PurchaseOrder) error {
	return conn.WithContext(ctx).Omit(clause.Associations).Create(po).Error
}

func (r *repo) Update(ctx context.Context, conn *gorm.DB, po *domain.PurchaseOrder) error {
	return conn.WithContext(ctx).
		Model(&domain.PurchaseOrder{ID: po.ID}).
		Select("approver_id", "start_date", "end_date", "status", "note", "updated_at").
		Updates(po).Error
}

func (r *repo) Delete(ctx context.Context, conn *gorm.DB, id snowflake.ID) error {
	return conn.WithContext(ctx).Delete(&domain.PurchaseOrder{}, "id = ?", id).Error
}

func (r *repo) FindByID(ctx context.Context, conn *gorm.DB, id snowflake.ID) (*domain.PurchaseOrder, error) {
	return take(withChildren(conn.WithContext(ctx)).Where("purchase_orders.id = ?", id))
}

func (r *repo) FindByRef(ctx context.Context, conn *gorm.DB, ref string) (*domain.PurchaseOrder, error) {
	return take(db.ByRef(withChildren(conn.WithContext(ctx)), "purchase_orders", ref))
}

func (r *repo) LockByRef(ctx context.Context, conn *gorm.DB, ref string) (*domain.PurchaseOrder, error) {
	return take(db.LockForUpdate(db.ByRef(conn.WithContext(ctx), "purchase_orders", ref)))
}

func (r *repo) FindByInvoiceID(ctx context.Context, conn *gorm.DB, invoiceID snowflake.ID) (*domain.PurchaseOrder, error) {
	return take(conn.WithContext(ctx).Where("invoice_id = ?", invoiceID))
}

func (r *repo) List(ctx context.Context, conn *gorm.DB, filter domain.ListPurchaseOrderFilter, page pagination.Pagination) ([]*domain.PurchaseOrder, error) {
	stmt := withChildren(conn.WithContext(ctx).Model(&domain.PurchaseOrder{}))

	if search := strings.ToLower(strings.TrimSpace(filter.Search)); search != "" {
		like := "%" + search + "%"
		stmt = stmt.
			Select("purchase_orders.*").
			Joins("LEFT JOIN customers ON customers.id = purchase_orders.customer_id").
			Where(
				"LOWER(purchase_orders.public_id) LIKE ? OR LOWER(customers.company_name) LIKE ? OR LOWER(customers.contact_name) LIKE ?",
				like, like, like,
			)
	}
	if filter.Status != "" {
		stmt = stmt.Where("purchase_orders.status = ?", filter.Status)
	}
	if filter.StartFrom != nil {
		stmt = stmt.Where("purchase_orders.start_date >= ?", *filter.StartFrom)
	}

	stmt, err := pagination.Apply(stmt, page, "purchase_orders", "start_date")
	if err != nil {
		return nil, err
	}

	var pos []*domain.PurchaseOrder
	if err := stmt.Find(&pos).Error; err != nil {
		return nil, err
	}
	return pos, nil
}

func (r *repo) InsertItems(ctx context.Context, conn *gorm.DB, items []domain.PurchaseOrderItem) error {
	if len(items) == 0 {
		return nil
	}
	return conn.WithContext(ctx).Create(&items).Error
}

func (r *repo) UpdateItem(ctx context.Context, conn *gorm.DB, item *domain.PurchaseOrderItem) error {
	return conn.WithContext(ctx).Save(item).Error
}

func (r *repo) DeleteItem(ctx context.Context, conn *gorm.DB, poID, itemID snowflake.ID) (bool, error) {
	res := conn.WithContext(ctx).
		Where("purchase_order_id = ? AND id = ?", poID, itemID).
		Delete(&domain.PurchaseOrderItem{})
	return res.RowsAffected > 0, res.Error
}

func (r *repo) DeleteItems(ctx context.Context, conn *gorm.DB, poID snowflake.ID) error {
	return conn.WithContext(ctx).
		Where("purchase_order_id = ?", poID).
		Delete(&domain.PurchaseOrderItem{}).Error
}

func (r *repo) FindItem(ctx context.Context, conn *gorm.DB, poID, itemID snowflake.ID) (*domain.PurchaseOrderItem, error) {
	var item domain.PurchaseOrderItem
	err := conn.WithContext(ctx).
		Where("purchase_order_id = ? AND id = ?", poID, itemID).
		Take(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}

func (r *repo) InsertApprover(ctx context.Context, conn *gorm.DB, approver *domain.Approver) error {
	return conn.WithContext(ctx).Create(approver).Error
}

func (r *repo) FindApproverByID(ctx context.Context, conn *gorm.DB, id snowflake.ID) (*domain.Approver, error) {
	var approver domain.Approver
	if err := conn.WithContext(ctx).Where("id = ?", id).Take(&approver).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &approver, nil
}

func (r *repo) ListApprovers(ctx context.Context, conn *gorm.DB) ([]domain.Approver, error) {
	var approvers []domain.Approver
	err := conn.WithContext(ctx).
		Order("first_name ASC").
		Order("id ASC").
		Find(&approvers).Error
	return approvers, err
}

func take(q *gorm.DB) (*domain.PurchaseOrder, error) {
	var po domain.PurchaseOrder
	if err := q.Take(&po).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &po, nil
}
