package repository

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/cockroachdb/errors"
	"github.com/smallbiznis/docflow/internal/contract/domain"
	"github.com/smallbiznis/docflow/internal/daterange"
	"github.com/smallbiznis/docflow/pkg/db"
	"github.com/smallbiznis/docflow/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, conn *gorm.DB, contract *domain.Contract) error {
	return conn.WithContext(ctx).Create(contract).Error
}

func (r *repo) Update(ctx context.Context, conn *gorm.DB, contract *domain.Contract) error {
	return conn.WithContext(ctx).
		Model(&domain.Contract{ID: contract.ID}).
		Select("start_date", "end_date", "status", "note", "updated_at").
		Updates(contract).Error
}

func (r *repo) Delete(ctx context.Context, conn *gorm.DB, id snowflake.ID) error {
	return conn.WithContext(ctx).Delete(&domain.Contract{}, "id = ?", id).Error
}

func (r *repo) FindByRef(ctx context.Context, conn *gorm.DB, ref string) (*domain.Contract, error) {
	return take(db.ByRef(conn.WithContext(ctx), "contracts", ref))
}

func (r *repo) LockByRef(ctx context.Context, conn *gorm.DB, ref string) (*domain.Contract, error) {
	return take(db.LockForUpdate(db.ByRef(conn.WithContext(ctx), "contracts", ref)))
}

func (r *repo) FindByPurchaseOrderID(ctx context.Context, conn *gorm.DB, poID snowflake.ID) (*domain.Contract, error) {
	return take(conn.WithContext(ctx).Where("po_id = ?", poID))
}

func (r *repo) List(ctx context.Context, conn *gorm.DB, filter domain.ListContractFilter, page pagination.Pagination) ([]*domain.Contract, error) {
	stmt := conn.WithContext(ctx).Model(&domain.Contract{})

	if search := strings.ToLower(strings.TrimSpace(filter.Search)); search != "" {
		like := "%" + search + "%"
		stmt = stmt.
			Select("contracts.*").
			Joins("LEFT JOIN customers ON customers.id = contracts.customer_id").
			Where(
				"LOWER(contracts.public_id) LIKE ? OR LOWER(customers.company_name) LIKE ? OR LOWER(customers.contact_name) LIKE ?",
				like, like, like,
			)
	}

	today := daterange.Day(filter.Today)
	switch filter.Status {
	case "":
	case daterange.StatusExpired:
		stmt = stmt.Where("contracts.end_date < ?", today)
	case daterange.StatusActive:
		stmt = stmt.Where("contracts.start_date <= ? AND contracts.end_date >= ?", today, today)
	case daterange.StatusDraft:
		stmt = stmt.Where("contracts.start_date > ?", today)
	default:
		return nil, domain.ErrInvalidStatus
	}

	stmt, err := pagination.Apply(stmt, page, "contracts", "created_at")
	if err != nil {
		return nil, err
	}

	var contracts []*domain.Contract
	if err := stmt.Find(&contracts).Error; err != nil {
		return nil, err
	}
	return contracts, nil
}

func take(q *gorm.DB) (*domain.Contract, error) {
	var contract domain.Contract
	if err := q.Take(&contract).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &contract, nil
}
