// Package aggregate keeps a parent document's total equal to the sum of its
// persisted line items.
package aggregate

import (
	"context"
	"database/sql"

	"github.com/cockroachdb/errors"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const moneyScale = 2

var (
	ErrNegativeInput  = errors.New("negative_line_input")
	ErrParentNotFound = errors.New("aggregate_parent_not_found")
)

// Target names one parent/child table pair.
type Target struct {
	Parent          string
	Child           string
	ForeignKey      string
	TotalColumn     string
	LineTotalColumn string
}

func (t Target) totalColumn() string {
	if t.TotalColumn == "" {
		return "total_amount"
	}
	return t.TotalColumn
}

func (t Target) lineTotalColumn() string {
	if t.LineTotalColumn == "" {
		return "line_total"
	}
	return t.LineTotalColumn
}

// LineTotal is unitPrice * quantity * periods, with the price rounded to
// cents first so the total matches the price that gets stored. Any absent
// input yields zero.
func LineTotal(unitPrice *decimal.Decimal, quantity, periods *int64) (decimal.Decimal, error) {
	if unitPrice == nil || quantity == nil || periods == nil {
		return decimal.Zero, nil
	}
	if unitPrice.IsNegative() || *quantity < 0 || *periods < 0 {
		return decimal.Zero, ErrNegativeInput
	}
	return unitPrice.
		Round(moneyScale).
		Mul(decimal.NewFromInt(*quantity)).
		Mul(decimal.NewFromInt(*periods)), nil
}

// Recompute sums the children of parentID inside tx and writes the parent's
// total column only when the stored value differs. It returns the current
// total and whether a write happened.
func Recompute(ctx context.Context, tx *gorm.DB, t Target, parentID int64) (decimal.Decimal, bool, error) {
	conn := tx.WithContext(ctx)

	var stored decimal.Decimal
	err := conn.Table(t.Parent).
		Select(t.totalColumn()).
		Where("id = ?", parentID).
		Row().
		Scan(&stored)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return decimal.Zero, false, errors.Wrapf(ErrParentNotFound, "%s %d", t.Parent, parentID)
		}
		return decimal.Zero, false, errors.Wrapf(err, "read %s total", t.Parent)
	}

	var sum decimal.Decimal
	err = conn.Table(t.Child).
		Select("COALESCE(SUM("+t.lineTotalColumn()+"), 0)").
		Where(t.ForeignKey+" = ?", parentID).
		Row().
		Scan(&sum)
	if err != nil {
		return decimal.Zero, false, errors.Wrapf(err, "sum %s", t.Child)
	}
	sum = sum.Round(moneyScale)

	if stored.Round(moneyScale).Equal(sum) {
		return sum, false, nil
	}

	err = conn.Table(t.Parent).
		Where("id = ?", parentID).
		UpdateColumn(t.totalColumn(), sum).Error
	if err != nil {
		return decimal.Zero, false, errors.Wrapf(err, "write %s total", t.Parent)
	}
	return sum, true, nil
}
