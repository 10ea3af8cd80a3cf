package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/docflow/pkg/db/pagination"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, quotation *Quotation) error
	Update(ctx context.Context, db *gorm.DB, quotation *Quotation) error
	Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Quotation, error)
	FindByRef(ctx context.Context, db *gorm.DB, ref string) (*Quotation, error)
	// LockByRef reads the header only, holding a row lock until db commits.
	LockByRef(ctx context.Context, db *gorm.DB, ref string) (*Quotation, error)
	List(ctx context.Context, db *gorm.DB, filter ListQuotationFilter, page pagination.Pagination) ([]*Quotation, error)

	InsertItems(ctx context.Context, db *gorm.DB, items []QuotationItem) error
	UpdateItem(ctx context.Context, db *gorm.DB, item *QuotationItem) error
	DeleteItem(ctx context.Context, db *gorm.DB, quotationID, itemID snowflake.ID) (bool, error)
	DeleteItems(ctx context.Context, db *gorm.DB, quotationID snowflake.ID) error
	FindItem(ctx context.Context, db *gorm.DB, quotationID, itemID snowflake.ID) (*QuotationItem, error)
	ListItems(ctx context.Context, db *gorm.DB, quotationID snowflake.ID) ([]QuotationItem, error)
}
