package cascade

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	contractdomain "github.com/smallbiznis/docflow/internal/contract/domain"
	customerdomain "github.com/smallbiznis/docflow/internal/customer/domain"
	invoicedomain "github.com/smallbiznis/docflow/internal/invoice/domain"
	purchaseorderdomain "github.com/smallbiznis/docflow/internal/purchaseorder/domain"
	quotationdomain "github.com/smallbiznis/docflow/internal/quotation/domain"
	"github.com/smallbiznis/docflow/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type chain struct {
	customer      customerdomain.Customer
	quotation     quotationdomain.Quotation
	invoice       invoicedomain.Invoice
	purchaseOrder purchaseorderdomain.PurchaseOrder
	contract      contractdomain.Contract
}

func seedChain(t *testing.T, seed *testutil.Seed, company string) chain {
	t.Helper()
	start, end := testutil.Date(2024, 1, 1), testutil.Date(2024, 12, 31)
	var c chain
	c.customer = seed.Customer(company)
	c.quotation = seed.Quotation(c.customer.ID, start, end,
		testutil.Line(t, "Hosting", "10", 2, 3),
		testutil.Line(t, "Support", "5", 1, 1),
	)
	c.invoice = seed.Invoice(c.quotation)
	c.purchaseOrder = seed.PurchaseOrder(c.invoice, start, end,
		testutil.Line(t, "Hosting", "10", 2, 3),
	)
	c.contract = seed.Contract(c.purchaseOrder)
	return c
}

func exists(t *testing.T, conn *gorm.DB, model any, id snowflake.ID) bool {
	t.Helper()
	var n int64
	require.NoError(t, conn.Model(model).Where("id = ?", id).Count(&n).Error)
	return n > 0
}

func TestCustomerRemovesWholeChain(t *testing.T) {
	conn := testutil.OpenDB(t)
	seed := testutil.NewSeed(t, conn, testutil.Node(t))
	gone := seedChain(t, seed, "Acme")
	kept := seedChain(t, seed, "Globex")

	var res Result
	err := conn.Transaction(func(tx *gorm.DB) error {
		var err error
		res, err = Customer(context.Background(), tx, gone.customer.ID)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, Result{Quotations: 1, Invoices: 1, PurchaseOrders: 1, Contracts: 1}, res)

	assert.False(t, exists(t, conn, &quotationdomain.Quotation{}, gone.quotation.ID))
	assert.False(t, exists(t, conn, &invoicedomain.Invoice{}, gone.invoice.ID))
	assert.False(t, exists(t, conn, &purchaseorderdomain.PurchaseOrder{}, gone.purchaseOrder.ID))
	assert.False(t, exists(t, conn, &contractdomain.Contract{}, gone.contract.ID))
	assert.True(t, exists(t, conn, &customerdomain.Customer{}, gone.customer.ID), "the customer row is left to the caller")

	assert.True(t, exists(t, conn, &contractdomain.Contract{}, kept.contract.ID))
	assert.Equal(t, int64(2), testutil.Count(t, conn, &quotationdomain.QuotationItem{}))
	assert.Equal(t, int64(1), testutil.Count(t, conn, &purchaseorderdomain.PurchaseOrderItem{}))
}

func TestQuotationKeepsItsOwnRows(t *testing.T) {
	conn := testutil.OpenDB(t)
	seed := testutil.NewSeed(t, conn, testutil.Node(t))
	c := seedChain(t, seed, "Acme")

	var res Result
	err := conn.Transaction(func(tx *gorm.DB) error {
		var err error
		res, err = Quotation(context.Background(), tx, c.quotation.ID)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, Result{Invoices: 1, PurchaseOrders: 1, Contracts: 1}, res)

	assert.True(t, exists(t, conn, &quotationdomain.Quotation{}, c.quotation.ID))
	assert.Equal(t, int64(2), testutil.Count(t, conn, &quotationdomain.QuotationItem{}))
	assert.Zero(t, testutil.Count(t, conn, &purchaseorderdomain.PurchaseOrderItem{}))
	assert.Zero(t, testutil.Count(t, conn, &contractdomain.Contract{}))
}

func TestInvoiceAndPurchaseOrder(t *testing.T) {
	conn := testutil.OpenDB(t)
	seed := testutil.NewSeed(t, conn, testutil.Node(t))
	c := seedChain(t, seed, "Acme")
	ctx := context.Background()

	res, err := PurchaseOrder(ctx, conn, c.purchaseOrder.ID)
	require.NoError(t, err)
	assert.Equal(t, Result{Contracts: 1}, res)
	assert.True(t, exists(t, conn, &purchaseorderdomain.PurchaseOrder{}, c.purchaseOrder.ID))
	assert.Equal(t, int64(1), testutil.Count(t, conn, &purchaseorderdomain.PurchaseOrderItem{}))

	res, err = Invoice(ctx, conn, c.invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, Result{PurchaseOrders: 1}, res)
	assert.True(t, exists(t, conn, &invoicedomain.Invoice{}, c.invoice.ID))
	assert.Zero(t, testutil.Count(t, conn, &purchaseorderdomain.PurchaseOrderItem{}))

	// Nothing left downstream.
	res, err = Invoice(ctx, conn, c.invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, Result{}, res)
}

func TestRollbackRestoresChain(t *testing.T) {
	conn := testutil.OpenDB(t)
	seed := testutil.NewSeed(t, conn, testutil.Node(t))
	c := seedChain(t, seed, "Acme")

	err := conn.Transaction(func(tx *gorm.DB) error {
		if _, err := Customer(context.Background(), tx, c.customer.ID); err != nil {
			return err
		}
		return gorm.ErrInvalidTransaction
	})
	require.ErrorIs(t, err, gorm.ErrInvalidTransaction)
	assert.True(t, exists(t, conn, &contractdomain.Contract{}, c.contract.ID))
	assert.True(t, exists(t, conn, &quotationdomain.Quotation{}, c.quotation.ID))
}
