package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/docflow/pkg/db/pagination"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, contract *Contract) error
	Update(ctx context.Context, db *gorm.DB, contract *Contract) error
	Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error
	FindByRef(ctx context.Context, db *gorm.DB, ref string) (*Contract, error)
	LockByRef(ctx context.Context, db *gorm.DB, ref string) (*Contract, error)
	FindByPurchaseOrderID(ctx context.Context, db *gorm.DB, poID snowflake.ID) (*Contract, error)
	List(ctx context.Context, db *gorm.DB, filter ListContractFilter, page pagination.Pagination) ([]*Contract, error)
}
