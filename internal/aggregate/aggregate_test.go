package aggregate

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type order struct {
	ID          int64           `gorm:"primaryKey"`
	TotalAmount decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0"`
}

type orderItem struct {
	ID        int64           `gorm:"primaryKey"`
	OrderID   int64           `gorm:"not null;index"`
	LineTotal decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0"`
}

var orderTotals = Target{Parent: "orders", Child: "order_items", ForeignKey: "order_id"}

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&order{}, &orderItem{}))
	return conn
}

func ptrDecimal(v string) *decimal.Decimal {
	d := decimal.RequireFromString(v)
	return &d
}

func ptrInt(v int64) *int64 { return &v }

func TestLineTotal(t *testing.T) {
	total, err := LineTotal(ptrDecimal("10"), ptrInt(2), ptrInt(3))
	require.NoError(t, err)
	assert.True(t, total.Equal(decimal.NewFromInt(60)))

	total, err = LineTotal(ptrDecimal("0.335"), ptrInt(1), ptrInt(1))
	require.NoError(t, err)
	assert.Equal(t, "0.34", total.StringFixed(2))

	// Sub-cent prices are rounded before multiplying.
	total, err = LineTotal(ptrDecimal("0.004"), ptrInt(3), ptrInt(1))
	require.NoError(t, err)
	assert.True(t, total.IsZero(), total.String())

	total, err = LineTotal(ptrDecimal("0.335"), ptrInt(3), ptrInt(1))
	require.NoError(t, err)
	assert.Equal(t, "1.02", total.StringFixed(2))

	total, err = LineTotal(nil, ptrInt(2), ptrInt(3))
	require.NoError(t, err)
	assert.True(t, total.IsZero())

	total, err = LineTotal(ptrDecimal("10"), nil, ptrInt(3))
	require.NoError(t, err)
	assert.True(t, total.IsZero())

	_, err = LineTotal(ptrDecimal("-1"), ptrInt(1), ptrInt(1))
	assert.ErrorIs(t, err, ErrNegativeInput)

	_, err = LineTotal(ptrDecimal("1"), ptrInt(-1), ptrInt(1))
	assert.ErrorIs(t, err, ErrNegativeInput)
}

func TestRecomputeFollowsItems(t *testing.T) {
	conn := setupDB(t)
	ctx := context.Background()

	require.NoError(t, conn.Create(&order{ID: 1}).Error)

	first, _ := LineTotal(ptrDecimal("10"), ptrInt(2), ptrInt(3))
	second, _ := LineTotal(ptrDecimal("5"), ptrInt(1), ptrInt(1))
	require.NoError(t, conn.Create(&orderItem{ID: 11, OrderID: 1, LineTotal: first}).Error)
	require.NoError(t, conn.Create(&orderItem{ID: 12, OrderID: 1, LineTotal: second}).Error)

	var total decimal.Decimal
	var changed bool
	err := conn.Transaction(func(tx *gorm.DB) error {
		var err error
		total, changed, err = Recompute(ctx, tx, orderTotals, 1)
		return err
	})
	require.NoError(t, err)
	assert.True(t, changed)
	assert.True(t, total.Equal(decimal.NewFromInt(65)), total.String())

	var stored order
	require.NoError(t, conn.First(&stored, 1).Error)
	assert.True(t, stored.TotalAmount.Equal(decimal.NewFromInt(65)))

	total, changed, err = Recompute(ctx, conn, orderTotals, 1)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.True(t, total.Equal(decimal.NewFromInt(65)))

	require.NoError(t, conn.Delete(&orderItem{}, 11).Error)
	total, changed, err = Recompute(ctx, conn, orderTotals, 1)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.True(t, total.Equal(decimal.NewFromInt(5)))

	require.NoError(t, conn.Delete(&orderItem{}, 12).Error)
	total, changed, err = Recompute(ctx, conn, orderTotals, 1)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.True(t, total.IsZero())

	require.NoError(t, conn.First(&stored, 1).Error)
	assert.True(t, stored.TotalAmount.IsZero())
}

func TestRecomputeRollsBackWithTransaction(t *testing.T) {
	conn := setupDB(t)
	ctx := context.Background()

	require.NoError(t, conn.Create(&order{ID: 2}).Error)

	err := conn.Transaction(func(tx *gorm.DB) error {
		require.NoError(t, tx.Create(&orderItem{ID: 21, OrderID: 2, LineTotal: decimal.NewFromInt(40)}).Error)
		_, changed, err := Recompute(ctx, tx, orderTotals, 2)
		require.NoError(t, err)
		assert.True(t, changed)
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	var stored order
	require.NoError(t, conn.First(&stored, 2).Error)
	assert.True(t, stored.TotalAmount.IsZero())
}

func TestRecomputeMissingParent(t *testing.T) {
	conn := setupDB(t)
	_, _, err := Recompute(context.Background(), conn, orderTotals, 404)
	assert.ErrorIs(t, err, ErrParentNotFound)
}

func TestNewLine(t *testing.T) {
	line, err := NewLine(LineInput{
		ProductName:     " Hosting ",
		UnitPrice:       ptrDecimal("10"),
		Quantity:        ptrInt(2),
		DurationPeriods: ptrInt(3),
	})
	require.NoError(t, err)
	assert.Equal(t, "Hosting", line.ProductName)
	assert.True(t, line.LineTotal.Equal(decimal.NewFromInt(60)))

	copied, err := NewLine(line.Input())
	require.NoError(t, err)
	assert.Equal(t, line.ProductName, copied.ProductName)
	assert.True(t, copied.LineTotal.Equal(line.LineTotal))

	partial, err := NewLine(LineInput{ProductName: "Setup", UnitPrice: ptrDecimal("99")})
	require.NoError(t, err)
	assert.True(t, partial.LineTotal.IsZero())
	assert.True(t, partial.UnitPrice.Equal(decimal.NewFromInt(99)))

	_, err = NewLine(LineInput{ProductName: " "})
	assert.ErrorIs(t, err, ErrMissingProductName)
}

func TestNewLineTotalMatchesStoredInputs(t *testing.T) {
	for _, price := range []string{"0.004", "0.005", "1.999", "12.345"} {
		line, err := NewLine(LineInput{
			ProductName:     "Support",
			UnitPrice:       ptrDecimal(price),
			Quantity:        ptrInt(3),
			DurationPeriods: ptrInt(7),
		})
		require.NoError(t, err)
		want := line.UnitPrice.
			Mul(decimal.NewFromInt(line.Quantity)).
			Mul(decimal.NewFromInt(line.DurationPeriods))
		assert.True(t, want.Equal(line.LineTotal), "price %s: stored %s, total %s", price, line.UnitPrice, line.LineTotal)
	}
}
