package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/docflow/pkg/db/pagination"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, po *PurchaseOrder) error
	Update(ctx context.Context, db *gorm.DB, po *PurchaseOrder) error
	Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*PurchaseOrder, error)
	FindByRef(ctx context.Context, db *gorm.DB, ref string) (*PurchaseOrder, error)
	LockByRef(ctx context.Context, db *gorm.DB, ref string) (*PurchaseOrder, error)
	FindByInvoiceID(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) (*PurchaseOrder, error)
	List(ctx context.Context, db *gorm.DB, filter ListPurchaseOrderFilter, page pagination.Pagination) ([]*PurchaseOrder, error)

	InsertItems(ctx context.Context, db *gorm.DB, items []PurchaseOrderItem) error
	UpdateItem(ctx context.Context, db *gorm.DB, item *PurchaseOrderItem) error
	DeleteItem(ctx context.Context, db *gorm.DB, poID, itemID snowflake.ID) (bool, error)
	DeleteItems(ctx context.Context, db *gorm.DB, poID snowflake.ID) error
	FindItem(ctx context.Context, db *gorm.DB, poID, itemID snowflake.ID) (*PurchaseOrderItem, error)

	InsertApprover(ctx context.Context, db *gorm.DB, approver *Approver) error
	FindApproverByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Approver, error)
	ListApprovers(ctx context.Context, db *gorm.DB) ([]Approver, error)
}
