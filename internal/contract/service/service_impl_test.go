package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/cockroachdb/errors"
	"github.com/smallbiznis/docflow/internal/clock"
	"github.com/smallbiznis/docflow/internal/contract/domain"
	"github.com/smallbiznis/docflow/internal/contract/repository"
	"github.com/smallbiznis/docflow/internal/daterange"
	purchaseorderdomain "github.com/smallbiznis/docflow/internal/purchaseorder/domain"
	purchaseorderrepo "github.com/smallbiznis/docflow/internal/purchaseorder/repository"
	sequencedomain "github.com/smallbiznis/docflow/internal/sequence/domain"
	sequencerepo "github.com/smallbiznis/docflow/internal/sequence/repository"
	sequenceservice "github.com/smallbiznis/docflow/internal/sequence/service"
	"github.com/smallbiznis/docflow/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	svc   domain.Service
	seq   sequencedomain.Generator
	db    *gorm.DB
	clock *clock.FakeClock
	seed  *testutil.Seed
	po    purchaseorderdomain.PurchaseOrder
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
	svc := New(Params{
		DB:             conn,
		Log:            zap.NewNop(),
		GenID:          node,
		Clock:          clk,
		Seq:            seq,
		PurchaseOrders: purchaseorderrepo.Provide(),
		Repo:           repository.Provide(),
	})

	seed := testutil.NewSeed(t, conn, node)
	return fixture{
		svc:   svc,
		seq:   seq,
		db:    conn,
		clock: clk,
		seed:  seed,
		po:    seedPurchaseOrder(seed, "Acme", testutil.Date(2024, 1, 1), testutil.Date(2024, 12, 31)),
	}
}

func seedPurchaseOrder(seed *testutil.Seed, company string, start, end time.Time) purchaseorderdomain.PurchaseOrder {
	customer := seed.Customer(company)
	quotation := seed.Quotation(customer.ID, start, end)
	return seed.PurchaseOrder(seed.Invoice(quotation), start, end)
}

func (f fixture) create(t *testing.T, req domain.CreateFromPurchaseOrderRequest) domain.Contract {
	t.Helper()
	if req.PurchaseOrderRef == "" {
		req.PurchaseOrderRef = f.po.PublicID
	}
	contract, err := f.svc.CreateFromPurchaseOrder(context.Background(), req)
	require.NoError(t, err)
	return contract
}

func TestCreateFromPurchaseOrderDerivesStatus(t *testing.T) {
	f := newFixture(t)

	contract := f.create(t, domain.CreateFromPurchaseOrderRequest{})
	assert.Equal(t, "TVS-CON0000001", contract.PublicID)
	assert.Equal(t, daterange.StatusActive, contract.Status)
	assert.Equal(t, f.po.ID, contract.PurchaseOrderID)
	assert.Equal(t, f.po.QuotationID, contract.QuotationID)
	assert.Equal(t, f.po.InvoiceID, contract.InvoiceID)
	assert.Equal(t, f.po.CustomerID, contract.CustomerID)
	assert.True(t, contract.StartDate.Equal(testutil.Date(2024, 1, 1)))
	assert.True(t, contract.EndDate.Equal(testutil.Date(2024, 12, 31)))
}

func TestStatusFollowsTheClock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	contract := f.create(t, domain.CreateFromPurchaseOrderRequest{})

	cases := []struct {
		today time.Time
		want  daterange.Status
	}{
		{testutil.Date(2024, 6, 15), daterange.StatusActive},
		{testutil.Date(2025, 1, 1), daterange.StatusExpired},
		{testutil.Date(2023, 12, 1), daterange.StatusDraft},
		{testutil.Date(2024, 12, 31), daterange.StatusActive},
	}
	for _, tc := range cases {
		f.clock.Set(tc.today)
		got, err := f.svc.Get(ctx, contract.PublicID)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got.Status, tc.today.Format(time.DateOnly))
	}
}

func TestCreateRejectsInvertedRangeWithoutTouchingCounter(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateFromPurchaseOrder(ctx, domain.CreateFromPurchaseOrderRequest{
		PurchaseOrderRef: f.po.PublicID,
		StartDate:        testutil.Date(2024, 12, 31),
		EndDate:          testutil.Date(2024, 1, 1),
	})
	assert.ErrorIs(t, err, daterange.ErrInvalidRange)

	_, err = f.svc.CreateFromPurchaseOrder(ctx, domain.CreateFromPurchaseOrderRequest{
		PurchaseOrderRef: f.po.PublicID,
		StartDate:        testutil.Date(2024, 3, 1),
		EndDate:          testutil.Date(2024, 3, 1),
	})
	assert.ErrorIs(t, err, daterange.ErrInvalidRange)

	current, err := f.seq.Current(ctx, f.db, sequencedomain.KeyContract)
	require.NoError(t, err)
	assert.Zero(t, current)

	var count int64
	require.NoError(t, f.db.Model(&domain.Contract{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestCreateOncePerPurchaseOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := f.create(t, domain.CreateFromPurchaseOrderRequest{})

	_, err := f.svc.CreateFromPurchaseOrder(ctx, domain.CreateFromPurchaseOrderRequest{PurchaseOrderRef: f.po.ID.String()})
	require.ErrorIs(t, err, domain.ErrAlreadyConverted)
	var converted *domain.AlreadyConvertedError
	require.True(t, errors.As(err, &converted))
	assert.Equal(t, first.PublicID, converted.PublicID)

	_, err = f.svc.CreateFromPurchaseOrder(ctx, domain.CreateFromPurchaseOrderRequest{PurchaseOrderRef: "PO-9999999"})
	assert.ErrorIs(t, err, domain.ErrPurchaseOrderMissing)
}

func TestUpdateOverridesStoredStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	contract := f.create(t, domain.CreateFromPurchaseOrderRequest{})
	require.Equal(t, daterange.StatusActive, contract.Status)

	// A status written behind the service's back does not survive a save.
	require.NoError(t, f.db.Model(&domain.Contract{}).
		Where("id = ?", contract.ID).
		Update("status", "Banned").Error)

	note := "renewal pending"
	updated, err := f.svc.Update(ctx, domain.UpdateContractRequest{Ref: contract.PublicID, Note: &note})
	require.NoError(t, err)
	assert.Equal(t, daterange.StatusActive, updated.Status)
	assert.Equal(t, daterange.StatusActive, storedStatus(t, f.db, contract.ID))

	end := testutil.Date(2024, 6, 1)
	updated, err = f.svc.Update(ctx, domain.UpdateContractRequest{Ref: contract.PublicID, EndDate: &end})
	require.NoError(t, err)
	assert.Equal(t, daterange.StatusExpired, updated.Status)
	assert.Equal(t, daterange.StatusExpired, storedStatus(t, f.db, contract.ID))

	start := testutil.Date(2024, 7, 1)
	_, err = f.svc.Update(ctx, domain.UpdateContractRequest{Ref: contract.PublicID, StartDate: &start})
	assert.ErrorIs(t, err, daterange.ErrInvalidRange)
	assert.Equal(t, daterange.StatusExpired, storedStatus(t, f.db, contract.ID))
}

func TestListFiltersByDerivedStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	active := f.create(t, domain.CreateFromPurchaseOrderRequest{})

	upcomingPO := seedPurchaseOrder(f.seed, "Globex", testutil.Date(2024, 9, 1), testutil.Date(2025, 8, 31))
	upcoming := f.create(t, domain.CreateFromPurchaseOrderRequest{PurchaseOrderRef: upcomingPO.PublicID})
	assert.Equal(t, daterange.StatusDraft, upcoming.Status)

	stalePO := seedPurchaseOrder(f.seed, "Initech", testutil.Date(2024, 2, 1), testutil.Date(2024, 11, 30))
	stale := f.create(t, domain.CreateFromPurchaseOrderRequest{PurchaseOrderRef: stalePO.PublicID})
	require.NoError(t, f.db.Model(&domain.Contract{}).
		Where("id = ?", stale.ID).
		Update("status", daterange.StatusDraft).Error)

	ids := func(res domain.ListContractResponse) []string {
		out := make([]string, 0, len(res.Contracts))
		for _, c := range res.Contracts {
			out = append(out, c.PublicID)
		}
		return out
	}

	res, err := f.svc.List(ctx, domain.ListContractRequest{Status: "active"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{active.PublicID, stale.PublicID}, ids(res))

	res, err = f.svc.List(ctx, domain.ListContractRequest{Status: "Draft"})
	require.NoError(t, err)
	assert.Equal(t, []string{upcoming.PublicID}, ids(res))

	// The stored snapshots say Active; the clock says otherwise.
	f.clock.Set(testutil.Date(2025, 1, 15))
	res, err = f.svc.List(ctx, domain.ListContractRequest{Status: "expired"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{active.PublicID, stale.PublicID}, ids(res))
	for _, c := range res.Contracts {
		assert.Equal(t, daterange.StatusExpired, c.Status)
	}

	res, err = f.svc.List(ctx, domain.ListContractRequest{Status: "active"})
	require.NoError(t, err)
	assert.Equal(t, []string{upcoming.PublicID}, ids(res))

	res, err = f.svc.List(ctx, domain.ListContractRequest{Search: "initech"})
	require.NoError(t, err)
	assert.Equal(t, []string{stale.PublicID}, ids(res))

	_, err = f.svc.List(ctx, domain.ListContractRequest{Status: "banned"})
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)
}

func TestDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	contract := f.create(t, domain.CreateFromPurchaseOrderRequest{})

	require.NoError(t, f.svc.Delete(ctx, contract.PublicID))
	_, err := f.svc.Get(ctx, contract.PublicID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, f.svc.Delete(ctx, contract.PublicID), domain.ErrNotFound)
}

func storedStatus(t *testing.T, conn *gorm.DB, id snowflake.ID) daterange.Status {
	t.Helper()
	var row domain.Contract
	require.NoError(t, conn.Select("status").Where("id = ?", id).Take(&row).Error)
	return row.Status
}
