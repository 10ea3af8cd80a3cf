// Package testutil opens throwaway databases for package tests.
package testutil

import (
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/docflow/internal/aggregate"
	"github.com/smallbiznis/docflow/internal/clock"
	"github.com/smallbiznis/docflow/internal/config"
	contractdomain "github.com/smallbiznis/docflow/internal/contract/domain"
	customerdomain "github.com/smallbiznis/docflow/internal/customer/domain"
	"github.com/smallbiznis/docflow/internal/daterange"
	invoicedomain "github.com/smallbiznis/docflow/internal/invoice/domain"
	"github.com/smallbiznis/docflow/internal/migration"
	purchaseorderdomain "github.com/smallbiznis/docflow/internal/purchaseorder/domain"
	quotationdomain "github.com/smallbiznis/docflow/internal/quotation/domain"
	sequencedomain "github.com/smallbiznis/docflow/internal/sequence/domain"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// OpenDB returns a migrated in-memory sqlite database private to t. A single
// connection serializes writers the way row locks would.
func OpenDB(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared&_pragma=foreign_keys(1)"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)

	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, migration.AutoMigrate(conn))
	return conn
}

func Node(t testing.TB) *snowflake.Node {
	t.Helper()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	return node
}

func Numbering() *config.NumberingConfigHolder {
	return config.NewStaticNumberingConfigHolder(config.DefaultNumberingConfig())
}

// Clock starts a fake clock at the given UTC calendar day.
func Clock(year int, month time.Month, day int) *clock.FakeClock {
	return clock.NewFakeClock(time.Date(year, month, day, 9, 0, 0, 0, time.UTC))
}

// Date is a UTC calendar day.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// Seed inserts rows directly, bypassing services.
type Seed struct {
	t    testing.TB
	db   *gorm.DB
	node *snowflake.Node
	seq  int
}

func NewSeed(t testing.TB, db *gorm.DB, node *snowflake.Node) *Seed {
	return &Seed{t: t, db: db, node: node}
}

func (s *Seed) publicID(prefix string) string {
	s.seq++
	return sequencedomain.Format(prefix, 7, uint64(900000+s.seq))
}

func (s *Seed) Customer(company string) customerdomain.Customer {
	s.t.Helper()
	now := time.Now().UTC()
	customer := customerdomain.Customer{
		ID:          s.node.Generate(),
		PublicID:    s.publicID("SEED-CUS"),
		CompanyName: company,
		ContactName: company + " contact",
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	require.NoError(s.t, s.db.Omit(clause.Associations).Create(&customer).Error)
	return customer
}

// Quotation inserts a quotation with one item per line and its summed total.
func (s *Seed) Quotation(customerID snowflake.ID, start, end time.Time, lines ...aggregate.Line) quotationdomain.Quotation {
	s.t.Helper()
	now := time.Now().UTC()
	quotation := quotationdomain.Quotation{
		ID:          s.node.Generate(),
		PublicID:    s.publicID("SEED-QT"),
		CustomerID:  customerID,
		StartDate:   start,
		EndDate:     end,
		TotalAmount: decimal.Zero,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	for _, line := range lines {
		quotation.TotalAmount = quotation.TotalAmount.Add(line.LineTotal)
	}
	require.NoError(s.t, s.db.Omit(clause.Associations).Create(&quotation).Error)

	for _, line := range lines {
		item := quotationdomain.QuotationItem{
			ID:          s.node.Generate(),
			QuotationID: quotation.ID,
			Line:        line,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		require.NoError(s.t, s.db.Create(&item).Error)
		quotation.Items = append(quotation.Items, item)
	}
	return quotation
}

func (s *Seed) Invoice(quotation quotationdomain.Quotation) invoicedomain.Invoice {
	s.t.Helper()
	now := time.Now().UTC()
	invoice := invoicedomain.Invoice{
		ID:          s.node.Generate(),
		PublicID:    s.publicID("SEED-INV"),
		QuotationID: quotation.ID,
		CustomerID:  quotation.CustomerID,
		IssueDate:   quotation.StartDate,
		DueDate:     quotation.EndDate,
		Status:      invoicedomain.InvoiceStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	require.NoError(s.t, s.db.Create(&invoice).Error)
	return invoice
}

// PurchaseOrder inserts a purchase order for invoice with one item per line.
func (s *Seed) PurchaseOrder(invoice invoicedomain.Invoice, start, end time.Time, lines ...aggregate.Line) purchaseorderdomain.PurchaseOrder {
	s.t.Helper()
	now := time.Now().UTC()
	customerID := invoice.CustomerID
	invoiceID := invoice.ID
	po := purchaseorderdomain.PurchaseOrder{
		ID:          s.node.Generate(),
		PublicID:    s.publicID("SEED-PO"),
		CustomerID:  &customerID,
		QuotationID: invoice.QuotationID,
		InvoiceID:   &invoiceID,
		StartDate:   start,
		EndDate:     end,
		Status:      purchaseorderdomain.StatusPending,
		TotalAmount: decimal.Zero,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	for _, line := range lines {
		po.TotalAmount = po.TotalAmount.Add(line.LineTotal)
	}
	require.NoError(s.t, s.db.Omit(clause.Associations).Create(&po).Error)

	for _, line := range lines {
		item := purchaseorderdomain.PurchaseOrderItem{
			ID:              s.node.Generate(),
			PurchaseOrderID: po.ID,
			Line:            line,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		require.NoError(s.t, s.db.Create(&item).Error)
		po.Items = append(po.Items, item)
	}
	return po
}

func (s *Seed) Contract(po purchaseorderdomain.PurchaseOrder) contractdomain.Contract {
	s.t.Helper()
	now := time.Now().UTC()
	contract := contractdomain.Contract{
		ID:              s.node.Generate(),
		PublicID:        s.publicID("SEED-CON"),
		CustomerID:      po.CustomerID,
		QuotationID:     po.QuotationID,
		InvoiceID:       po.InvoiceID,
		PurchaseOrderID: po.ID,
		StartDate:       po.StartDate,
		EndDate:         po.EndDate,
		Status:          daterange.Derive(po.StartDate, po.EndDate, now),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	require.NoError(s.t, s.db.Create(&contract).Error)
	return contract
}

// Count returns the number of rows in model's table.
func Count(t testing.TB, conn *gorm.DB, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, conn.Model(model).Count(&n).Error)
	return n
}

// Line prices a line item or fails the test.
func Line(t testing.TB, name, unitPrice string, quantity, periods int64) aggregate.Line {
	t.Helper()
	line, err := aggregate.NewLine(LineInput(name, unitPrice, quantity, periods))
	require.NoError(t, err)
	return line
}

func LineInput(name, unitPrice string, quantity, periods int64) aggregate.LineInput {
	price := decimal.RequireFromString(unitPrice)
	return aggregate.LineInput{
		ProductName:     name,
		UnitPrice:       &price,
		Quantity:        &quantity,
		DurationPeriods: &periods,
	}
}
