package service

import (
	"context"
	"testing"

	contractdomain "github.com/smallbiznis/docflow/internal/contract/domain"
	"github.com/smallbiznis/docflow/internal/customer/domain"
	"github.com/smallbiznis/docflow/internal/customer/repository"
	invoicedomain "github.com/smallbiznis/docflow/internal/invoice/domain"
	purchaseorderdomain "github.com/smallbiznis/docflow/internal/purchaseorder/domain"
	quotationdomain "github.com/smallbiznis/docflow/internal/quotation/domain"
	sequencerepo "github.com/smallbiznis/docflow/internal/sequence/repository"
	sequenceservice "github.com/smallbiznis/docflow/internal/sequence/service"
	"github.com/smallbiznis/docflow/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (domain.Service, *gorm.DB, *testutil.Seed) {
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
	svc := New(Params{
		DB:    conn,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clk,
		Seq:   seq,
		Repo:  repository.Provide(),
	})
	return svc, conn, testutil.NewSeed(t, conn, node)
}

func TestCreateAssignsPublicID(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.Create(ctx, domain.CreateCustomerRequest{
		CompanyName: "  Acme Corp ",
		ContactName: "Jane Roe",
		Email:       "Jane@Acme.test",
		Metadata:    map[string]any{"segment": "smb"},
	})
	require.NoError(t, err)
	assert.Equal(t, "CUS_ID00001", first.PublicID)
	assert.Equal(t, "Acme Corp", first.CompanyName)
	assert.Equal(t, "smb", first.Metadata["segment"])

	second, err := svc.Create(ctx, domain.CreateCustomerRequest{CompanyName: "Globex"})
	require.NoError(t, err)
	assert.Equal(t, "CUS_ID00002", second.PublicID)

	byPublic, err := svc.Get(ctx, first.PublicID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, byPublic.ID)

	byID, err := svc.Get(ctx, first.ID.String())
	require.NoError(t, err)
	assert.Equal(t, first.PublicID, byID.PublicID)
}

func TestCreateValidates(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, domain.CreateCustomerRequest{CompanyName: "   "})
	assert.ErrorIs(t, err, domain.ErrInvalidCompanyName)

	_, err = svc.Create(ctx, domain.CreateCustomerRequest{CompanyName: "Acme", Email: "not-an-email"})
	assert.ErrorIs(t, err, domain.ErrInvalidEmail)

	_, err = svc.Get(ctx, "CUS_ID99999")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCreateWithTenant(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	customer, err := svc.Create(ctx, domain.CreateCustomerRequest{
		CompanyName: "Initech",
		Tenant:      &domain.TenantInput{Name: "Initech Cloud", Domain: "Initech Cloud.Example.com"},
	})
	require.NoError(t, err)
	require.NotNil(t, customer.TenantID)
	require.NotNil(t, customer.Tenant)
	assert.Equal(t, "initech-cloud.example.com", customer.Tenant.Domain)

	renamed, err := svc.SetTenant(ctx, customer.PublicID, domain.TenantInput{Name: "Initech", Domain: "initech.example.com"})
	require.NoError(t, err)
	require.NotNil(t, renamed.TenantID)
	assert.Equal(t, *customer.TenantID, *renamed.TenantID)
	assert.Equal(t, "initech.example.com", renamed.Tenant.Domain)

	_, err = svc.SetTenant(ctx, customer.PublicID, domain.TenantInput{Name: "", Domain: "x.example.com"})
	assert.ErrorIs(t, err, domain.ErrInvalidTenant)

	list, err := svc.List(ctx, domain.ListCustomerRequest{TenantID: renamed.TenantID.String()})
	require.NoError(t, err)
	require.Len(t, list.Customers, 1)
	assert.Equal(t, customer.ID, list.Customers[0].ID)
}

func TestListSearchesAndPaginates(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	for _, name := range []string{"Acme", "Globex", "Acme Labs"} {
		_, err := svc.Create(ctx, domain.CreateCustomerRequest{CompanyName: name})
		require.NoError(t, err)
	}

	found, err := svc.List(ctx, domain.ListCustomerRequest{Search: "acme"})
	require.NoError(t, err)
	assert.Len(t, found.Customers, 2)

	byID, err := svc.List(ctx, domain.ListCustomerRequest{Search: "cus_id00002"})
	require.NoError(t, err)
	require.Len(t, byID.Customers, 1)
	assert.Equal(t, "Globex", byID.Customers[0].CompanyName)

	page, err := svc.List(ctx, domain.ListCustomerRequest{PageSize: 2})
	require.NoError(t, err)
	assert.Len(t, page.Customers, 2)
	assert.True(t, page.HasMore)

	rest, err := svc.List(ctx, domain.ListCustomerRequest{PageSize: 2, PageToken: page.NextPageToken})
	require.NoError(t, err)
	assert.Len(t, rest.Customers, 1)
	assert.False(t, rest.HasMore)
}

func TestUpdate(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	customer, err := svc.Create(ctx, domain.CreateCustomerRequest{CompanyName: "Acme"})
	require.NoError(t, err)

	phone := " +62 21 555 "
	updated, err := svc.Update(ctx, domain.UpdateCustomerRequest{Ref: customer.PublicID, Phone: &phone})
	require.NoError(t, err)
	assert.Equal(t, "+62 21 555", updated.Phone)
	assert.Equal(t, customer.PublicID, updated.PublicID)

	blank := ""
	_, err = svc.Update(ctx, domain.UpdateCustomerRequest{Ref: customer.PublicID, CompanyName: &blank})
	assert.ErrorIs(t, err, domain.ErrInvalidCompanyName)
}

func TestDeleteCascadesIssuedDocuments(t *testing.T) {
	svc, conn, seed := newTestService(t)
	ctx := context.Background()

	busy, err := svc.Create(ctx, domain.CreateCustomerRequest{CompanyName: "Busy"})
	require.NoError(t, err)
	start, end := testutil.Date(2024, 1, 1), testutil.Date(2024, 12, 31)
	quotation := seed.Quotation(busy.ID, start, end, testutil.Line(t, "Hosting", "10", 1, 1))
	po := seed.PurchaseOrder(seed.Invoice(quotation), start, end, testutil.Line(t, "Hosting", "10", 1, 1))
	seed.Contract(po)

	other, err := svc.Create(ctx, domain.CreateCustomerRequest{CompanyName: "Other"})
	require.NoError(t, err)
	seed.Quotation(other.ID, start, end)

	require.NoError(t, svc.Delete(ctx, busy.PublicID))
	_, err = svc.Get(ctx, busy.PublicID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.Equal(t, int64(1), testutil.Count(t, conn, &quotationdomain.Quotation{}))
	assert.Zero(t, testutil.Count(t, conn, &quotationdomain.QuotationItem{}))
	assert.Zero(t, testutil.Count(t, conn, &invoicedomain.Invoice{}))
	assert.Zero(t, testutil.Count(t, conn, &purchaseorderdomain.PurchaseOrder{}))
	assert.Zero(t, testutil.Count(t, conn, &purchaseorderdomain.PurchaseOrderItem{}))
	assert.Zero(t, testutil.Count(t, conn, &contractdomain.Contract{}))

	idle, err := svc.Create(ctx, domain.CreateCustomerRequest{CompanyName: "Idle"})
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, idle.PublicID))
	assert.ErrorIs(t, svc.Delete(ctx, idle.PublicID), domain.ErrNotFound)
}
