package service

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/docflow/internal/aggregate"
	contractdomain "github.com/smallbiznis/docflow/internal/contract/domain"
	customerdomain "github.com/smallbiznis/docflow/internal/customer/domain"
	customerrepo "github.com/smallbiznis/docflow/internal/customer/repository"
	customerservice "github.com/smallbiznis/docflow/internal/customer/service"
	"github.com/smallbiznis/docflow/internal/daterange"
	invoicedomain "github.com/smallbiznis/docflow/internal/invoice/domain"
	invoicerepo "github.com/smallbiznis/docflow/internal/invoice/repository"
	"github.com/smallbiznis/docflow/internal/purchaseorder/domain"
	"github.com/smallbiznis/docflow/internal/purchaseorder/repository"
	quotationdomain "github.com/smallbiznis/docflow/internal/quotation/domain"
	quotationrepo "github.com/smallbiznis/docflow/internal/quotation/repository"
	sequencerepo "github.com/smallbiznis/docflow/internal/sequence/repository"
	sequenceservice "github.com/smallbiznis/docflow/internal/sequence/service"
	"github.com/smallbiznis/docflow/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	svc       domain.Service
	customers customerdomain.Service
	db        *gorm.DB
	seed      *testutil.Seed
	quotation quotationdomain.Quotation
	invoice   invoicedomain.Invoice
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	conn := testutil.OpenDB(t)
	node := testutil.Node(t)
	clk := testutil.Clock(2024, 6, 15)

	seq := sequenceservice.New(sequenceservice.Params{
		Log:       zap.NewNop(),
		Clock:     clk,
		Numbering: testutil.Numbering(),
		Repo:      sequencerepo.Provide(),
	})
	customers := customerservice.New(customerservice.Params{
		DB:    conn,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clk,
		Seq:   seq,
		Repo:  customerrepo.Provide(),
	})
	svc := New(Params{
		DB:         conn,
		Log:        zap.NewNop(),
		GenID:      node,
		Clock:      clk,
		Seq:        seq,
		Customers:  customers,
		Quotations: quotationrepo.Provide(),
		Invoices:   invoicerepo.Provide(),
		Repo:       repository.Provide(),
	})

	seed := testutil.NewSeed(t, conn, node)
	customer := seed.Customer("Acme")
	quotation := seed.Quotation(customer.ID, testutil.Date(2024, 1, 1), testutil.Date(2024, 12, 31),
		testutil.Line(t, "Hosting", "10", 2, 3),
		testutil.Line(t, "Support", "5", 1, 1),
	)
	return fixture{
		svc:       svc,
		customers: customers,
		db:        conn,
		seed:      seed,
		quotation: quotation,
		invoice:   seed.Invoice(quotation),
	}
}

func (f fixture) convert(t *testing.T, req domain.CreateFromInvoiceRequest) domain.PurchaseOrder {
	t.Helper()
	if req.InvoiceRef == "" {
		req.InvoiceRef = f.invoice.PublicID
	}
	po, err := f.svc.CreateFromInvoice(context.Background(), req)
	require.NoError(t, err)
	return po
}

func TestCreateFromInvoiceCopiesQuotation(t *testing.T) {
	f := newFixture(t)

	po := f.convert(t, domain.CreateFromInvoiceRequest{})
	assert.Equal(t, "PO-0000001", po.PublicID)
	assert.Equal(t, domain.StatusPending, po.Status)
	assert.Equal(t, f.quotation.ID, po.QuotationID)
	require.NotNil(t, po.CustomerID)
	assert.Equal(t, f.quotation.CustomerID, *po.CustomerID)
	require.NotNil(t, po.InvoiceID)
	assert.Equal(t, f.invoice.ID, *po.InvoiceID)
	assert.True(t, po.StartDate.Equal(f.quotation.StartDate))
	assert.True(t, po.EndDate.Equal(f.quotation.EndDate))

	require.Len(t, po.Items, 2)
	assert.Equal(t, "Hosting", po.Items[0].ProductName)
	assert.Equal(t, "60.00", po.Items[0].LineTotal.StringFixed(2))
	assert.True(t, po.TotalAmount.Equal(decimal.NewFromInt(65)), po.TotalAmount.String())
}

func TestCreateFromInvoiceOncePerInvoice(t *testing.T) {
	f := newFixture(t)
	first := f.convert(t, domain.CreateFromInvoiceRequest{})

	_, err := f.svc.CreateFromInvoice(context.Background(), domain.CreateFromInvoiceRequest{InvoiceRef: f.invoice.ID.String()})
	require.ErrorIs(t, err, domain.ErrAlreadyConverted)
	var converted *domain.AlreadyConvertedError
	require.True(t, errors.As(err, &converted))
	assert.Equal(t, first.PublicID, converted.PublicID)
}

func TestCreateFromInvoiceValidates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateFromInvoice(ctx, domain.CreateFromInvoiceRequest{InvoiceRef: "INV-9999999"})
	assert.ErrorIs(t, err, domain.ErrInvoiceMissing)

	_, err = f.svc.CreateFromInvoice(ctx, domain.CreateFromInvoiceRequest{
		InvoiceRef: f.invoice.PublicID,
		StartDate:  testutil.Date(2024, 6, 1),
		EndDate:    testutil.Date(2024, 6, 1),
	})
	assert.ErrorIs(t, err, daterange.ErrInvalidRange)

	_, err = f.svc.CreateFromInvoice(ctx, domain.CreateFromInvoiceRequest{InvoiceRef: f.invoice.PublicID, Status: "approved"})
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)

	_, err = f.svc.CreateFromInvoice(ctx, domain.CreateFromInvoiceRequest{InvoiceRef: f.invoice.PublicID, ApproverRef: "12345"})
	assert.ErrorIs(t, err, domain.ErrInvalidApprover)

	po := f.convert(t, domain.CreateFromInvoiceRequest{})
	assert.Equal(t, "PO-0000001", po.PublicID, "rejected conversions leave the counter alone")
}

func TestCreateFromInvoiceWithItemsApproverAndTenant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	approver, err := f.svc.CreateApprover(ctx, domain.CreateApproverRequest{FirstName: "Dana", LastName: "Lee", Position: "CFO"})
	require.NoError(t, err)

	po := f.convert(t, domain.CreateFromInvoiceRequest{
		ApproverRef: approver.ID.String(),
		Items:       []aggregate.LineInput{testutil.LineInput("Licence", "12.50", 4, 1)},
		Tenant:      &customerdomain.TenantInput{Name: "Acme Cloud", Domain: "acme.example.com"},
	})
	require.Len(t, po.Items, 1)
	assert.Equal(t, "50.00", po.TotalAmount.StringFixed(2))
	require.NotNil(t, po.Approver)
	assert.Equal(t, "Dana", po.Approver.FirstName)

	customer, err := f.customers.Get(ctx, po.CustomerID.String())
	require.NoError(t, err)
	require.NotNil(t, customer.Tenant)
	assert.Equal(t, "acme.example.com", customer.Tenant.Domain)

	approvers, err := f.svc.ListApprovers(ctx)
	require.NoError(t, err)
	assert.Len(t, approvers, 1)
}

func TestItemTotalsFollowMutations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	po := f.convert(t, domain.CreateFromInvoiceRequest{Items: []aggregate.LineInput{}})
	assert.True(t, po.TotalAmount.IsZero())

	po, err := f.svc.AddItem(ctx, po.PublicID, testutil.LineInput("Hosting", "10", 2, 3))
	require.NoError(t, err)
	po, err = f.svc.AddItem(ctx, po.PublicID, testutil.LineInput("Support", "5", 1, 1))
	require.NoError(t, err)
	assert.Equal(t, "65.00", po.TotalAmount.StringFixed(2))

	hosting, support := po.Items[0], po.Items[1]

	po, err = f.svc.RemoveItem(ctx, po.PublicID, hosting.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "5.00", po.TotalAmount.StringFixed(2))

	po, err = f.svc.UpdateItem(ctx, po.PublicID, support.ID.String(), testutil.LineInput("Support", "5", 2, 2))
	require.NoError(t, err)
	assert.Equal(t, "20.00", po.TotalAmount.StringFixed(2))

	po, err = f.svc.RemoveItem(ctx, po.PublicID, support.ID.String())
	require.NoError(t, err)
	assert.True(t, po.TotalAmount.IsZero())
	assert.Empty(t, po.Items)

	_, err = f.svc.RemoveItem(ctx, po.PublicID, support.ID.String())
	assert.ErrorIs(t, err, domain.ErrItemNotFound)
}

func TestUpdateAppliesBatchInOneTransaction(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	po := f.convert(t, domain.CreateFromInvoiceRequest{})
	hosting, support := po.Items[0], po.Items[1]

	status := domain.StatusCompleted
	note := "signed"
	po, err := f.svc.Update(ctx, domain.UpdatePurchaseOrderRequest{
		Ref:    po.PublicID,
		Status: &status,
		Note:   &note,
		Items: []domain.ItemChange{
			{ID: hosting.ID.String(), Delete: true},
			{ID: support.ID.String(), Line: testutil.LineInput("Support", "5", 1, 2)},
			{Line: testutil.LineInput("Training", "100", 1, 1)},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, po.Status)
	assert.Equal(t, "signed", po.Note)
	require.Len(t, po.Items, 2)
	assert.Equal(t, "110.00", po.TotalAmount.StringFixed(2))

	// A bad entry rolls back the whole batch, header included.
	cancelled := domain.StatusCancelled
	_, err = f.svc.Update(ctx, domain.UpdatePurchaseOrderRequest{
		Ref:    po.PublicID,
		Status: &cancelled,
		Items: []domain.ItemChange{
			{Line: testutil.LineInput("Extra", "1", 1, 1)},
			{ID: hosting.ID.String(), Delete: true},
		},
	})
	assert.ErrorIs(t, err, domain.ErrItemNotFound)

	after, err := f.svc.Get(ctx, po.PublicID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, after.Status)
	assert.Len(t, after.Items, 2)
	assert.Equal(t, "110.00", after.TotalAmount.StringFixed(2))

	end := testutil.Date(2023, 1, 1)
	_, err = f.svc.Update(ctx, domain.UpdatePurchaseOrderRequest{Ref: po.PublicID, EndDate: &end})
	assert.ErrorIs(t, err, daterange.ErrInvalidRange)
}

func TestListFilters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := f.convert(t, domain.CreateFromInvoiceRequest{})

	other := f.seed.Customer("Globex")
	otherQuotation := f.seed.Quotation(other.ID, testutil.Date(2024, 7, 1), testutil.Date(2024, 9, 30))
	otherInvoice := f.seed.Invoice(otherQuotation)
	second := f.convert(t, domain.CreateFromInvoiceRequest{InvoiceRef: otherInvoice.PublicID, Status: domain.StatusRejected})

	all, err := f.svc.List(ctx, domain.ListPurchaseOrderRequest{})
	require.NoError(t, err)
	require.Len(t, all.PurchaseOrders, 2)
	assert.Equal(t, second.ID, all.PurchaseOrders[0].ID, "latest start date first")

	from := testutil.Date(2024, 6, 1)
	recent, err := f.svc.List(ctx, domain.ListPurchaseOrderRequest{StartFrom: &from})
	require.NoError(t, err)
	require.Len(t, recent.PurchaseOrders, 1)
	assert.Equal(t, second.ID, recent.PurchaseOrders[0].ID)

	rejected, err := f.svc.List(ctx, domain.ListPurchaseOrderRequest{Status: "rejected"})
	require.NoError(t, err)
	require.Len(t, rejected.PurchaseOrders, 1)

	byCompany, err := f.svc.List(ctx, domain.ListPurchaseOrderRequest{Search: "acme"})
	require.NoError(t, err)
	require.Len(t, byCompany.PurchaseOrders, 1)
	assert.Equal(t, first.ID, byCompany.PurchaseOrders[0].ID)

	_, err = f.svc.List(ctx, domain.ListPurchaseOrderRequest{Status: "lost"})
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)
}

func TestDeleteCascadesItems(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	po := f.convert(t, domain.CreateFromInvoiceRequest{})
	f.seed.Contract(po)
	require.NoError(t, f.svc.Delete(ctx, po.PublicID))

	_, err := f.svc.Get(ctx, po.PublicID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	var remaining int64
	require.NoError(t, f.db.Model(&domain.PurchaseOrderItem{}).Where("purchase_order_id = ?", po.ID).Count(&remaining).Error)
	assert.Zero(t, remaining)
	assert.Zero(t, testutil.Count(t, f.db, &contractdomain.Contract{}))
	assert.Equal(t, int64(1), testutil.Count(t, f.db, &invoicedomain.Invoice{}))
}
