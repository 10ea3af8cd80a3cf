package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	contractrepo "github.com/smallbiznis/docflow/internal/contract/repository"
	contractservice "github.com/smallbiznis/docflow/internal/contract/service"
	customerrepo "github.com/smallbiznis/docflow/internal/customer/repository"
	customerservice "github.com/smallbiznis/docflow/internal/customer/service"
	invoicerepo "github.com/smallbiznis/docflow/internal/invoice/repository"
	invoiceservice "github.com/smallbiznis/docflow/internal/invoice/service"
	"github.com/smallbiznis/docflow/internal/observability"
	purchaseorderrepo "github.com/smallbiznis/docflow/internal/purchaseorder/repository"
	purchaseorderservice "github.com/smallbiznis/docflow/internal/purchaseorder/service"
	quotationrepo "github.com/smallbiznis/docflow/internal/quotation/repository"
	quotationservice "github.com/smallbiznis/docflow/internal/quotation/service"
	"github.com/smallbiznis/docflow/internal/ratelimit"
	sequencedomain "github.com/smallbiznis/docflow/internal/sequence/domain"
	sequencerepo "github.com/smallbiznis/docflow/internal/sequence/repository"
	sequenceservice "github.com/smallbiznis/docflow/internal/sequence/service"
	"github.com/smallbiznis/docflow/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type limiterMock struct {
	mock.Mock
}

func (m *limiterMock) Allow(ctx context.Context, key string) (*ratelimit.Result, error) {
	args := m.Called(ctx, key)
	result, _ := args.Get(0).(*ratelimit.Result)
	return result, args.Error(1)
}

func newTestServer(t *testing.T, limiter ratelimit.Limiter) *gin.Engine {
	t.Helper()
	conn := testutil.OpenDB(t)
	node := testutil.Node(t)
	clk := testutil.Clock(2024, 6, 15)
	log := zap.NewNop()

	seq := sequenceservice.New(sequenceservice.Params{
		Log:       log,
		Clock:     clk,
		Numbering: testutil.Numbering(),
		Repo:      sequencerepo.Provide(),
	})
	customerRepo := customerrepo.Provide()
	quotationRepo := quotationrepo.Provide()
	invoiceRepo := invoicerepo.Provide()
	purchaseOrderRepo := purchaseorderrepo.Provide()

	customers := customerservice.New(customerservice.Params{
		DB: conn, Log: log, GenID: node, Clock: clk, Seq: seq, Repo: customerRepo,
	})

	engine := NewEngine(log, observability.Config{}, nil)
	srv := NewServer(ServerParams{
		Gin:         engine,
		Log:         log,
		Limiter:     limiter,
		CustomerSvc: customers,
		QuotationSvc: quotationservice.New(quotationservice.Params{
			DB: conn, Log: log, GenID: node, Clock: clk, Seq: seq,
			Customers: customerRepo, Repo: quotationRepo,
		}),
		InvoiceSvc: invoiceservice.New(invoiceservice.Params{
			DB: conn, Log: log, GenID: node, Clock: clk, Seq: seq,
			Quotations: quotationRepo, Repo: invoiceRepo,
		}),
		PurchaseOrderSvc: purchaseorderservice.New(purchaseorderservice.Params{
			DB: conn, Log: log, GenID: node, Clock: clk, Seq: seq,
			Customers: customers, Quotations: quotationRepo, Invoices: invoiceRepo,
			Repo: purchaseOrderRepo,
		}),
		ContractSvc: contractservice.New(contractservice.Params{
			DB: conn, Log: log, GenID: node, Clock: clk, Seq: seq,
			PurchaseOrders: purchaseOrderRepo, Repo: contractrepo.Provide(),
		}),
	})
	RegisterRoutes(srv)
	return engine
}

// envelope splits "data" into Data for single documents and List for
// collections.
type envelope struct {
	Data    map[string]any
	List    []map[string]any
	Created *bool
	Error   *errorPayload
}

func (e *envelope) UnmarshalJSON(b []byte) error {
	var raw struct {
		Data    json.RawMessage `json:"data"`
		Created *bool           `json:"created"`
		Error   *errorPayload   `json:"error"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	e.Created, e.Error = raw.Created, raw.Error

	data := bytes.TrimSpace(raw.Data)
	switch {
	case len(data) == 0:
		return nil
	case data[0] == '[':
		return json.Unmarshal(data, &e.List)
	default:
		return json.Unmarshal(data, &e.Data)
	}
}

func call(t *testing.T, engine *gin.Engine, method, path string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body == nil {
		reader = bytes.NewReader(nil)
	} else {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	var out envelope
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	}
	return rec, out
}

func assertAmount(t *testing.T, want int64, got any) {
	t.Helper()
	value, ok := got.(string)
	require.True(t, ok, "amount %v", got)
	assert.True(t, decimal.RequireFromString(value).Equal(decimal.NewFromInt(want)), "amount %s", value)
}

func TestDocumentChainOverHTTP(t *testing.T) {
	engine := newTestServer(t, nil)

	rec, customer := call(t, engine, http.MethodPost, "/api/customers", map[string]any{
		"company_name": "Acme",
		"contact_name": "Jane",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	customerID := customer.Data["public_id"].(string)

	rec, quotation := call(t, engine, http.MethodPost, "/api/quotations", map[string]any{
		"customer_id": customerID,
		"start_date":  "2024-01-01",
		"end_date":    "2024-12-31",
		"items": []map[string]any{
			{"product_name": "Hosting", "unit_price": "10", "quantity": 2, "duration_periods": 3},
			{"product_name": "Support", "unit_price": "5", "quantity": 1, "duration_periods": 1},
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assertAmount(t, 65, quotation.Data["total_amount"])
	quotationID := quotation.Data["public_id"].(string)

	rec, invoice := call(t, engine, http.MethodPost, "/api/quotations/"+quotationID+"/invoice", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.NotNil(t, invoice.Created)
	assert.True(t, *invoice.Created)
	invoiceID := invoice.Data["public_id"].(string)

	rec, dup := call(t, engine, http.MethodPost, "/api/quotations/"+quotationID+"/invoice", nil)
	require.Equal(t, http.StatusConflict, rec.Code)
	require.NotNil(t, dup.Error)
	assert.Equal(t, invoiceID, dup.Error.ExistingID)

	rec, updated := call(t, engine, http.MethodPost, "/api/quotations/"+quotationID+"/invoice", map[string]any{
		"confirm_update": true,
		"status":         "paid",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, invoiceID, updated.Data["public_id"])
	assert.Equal(t, "paid", updated.Data["status"])

	rec, po := call(t, engine, http.MethodPost, "/api/invoices/"+invoiceID+"/purchase-order", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assertAmount(t, 65, po.Data["total_amount"])
	poID := po.Data["public_id"].(string)

	rec, contract := call(t, engine, http.MethodPost, "/api/purchase-orders/"+poID+"/contract", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "Active", contract.Data["status"])
	contractID := contract.Data["public_id"].(string)

	rec, again := call(t, engine, http.MethodPost, "/api/purchase-orders/"+poID+"/contract", nil)
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, contractID, again.Error.ExistingID)

	rec, _ = call(t, engine, http.MethodDelete, "/api/purchase-orders/"+poID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec, _ = call(t, engine, http.MethodGet, "/api/contracts/"+contractID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec, _ = call(t, engine, http.MethodDelete, "/api/contracts/"+contractID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = call(t, engine, http.MethodGet, "/api/invoices/"+invoiceID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = call(t, engine, http.MethodDelete, "/api/quotations/"+quotationID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec, _ = call(t, engine, http.MethodGet, "/api/invoices/"+invoiceID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestValidationErrorsCarryFieldNames(t *testing.T) {
	engine := newTestServer(t, nil)

	rec, out := call(t, engine, http.MethodPost, "/api/quotations", map[string]any{
		"start_date": "2024-13-01",
		"end_date":   "2024-12-31",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, out.Error)
	assert.Equal(t, "validation_error", out.Error.Type)

	fields := map[string]string{}
	for _, fe := range out.Error.Errors {
		fields[fe.Field] = fe.Code
	}
	assert.Equal(t, "required", fields["customer_id"])
	assert.Equal(t, "datetime", fields["start_date"])

	rec, out = call(t, engine, http.MethodPost, "/api/customers", map[string]any{
		"company_name": "Acme",
		"email":        "not-an-email",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Len(t, out.Error.Errors, 1)
	assert.Equal(t, "email", out.Error.Errors[0].Field)
}

func TestInvertedRangeIsRejected(t *testing.T) {
	engine := newTestServer(t, nil)

	_, customer := call(t, engine, http.MethodPost, "/api/customers", map[string]any{"company_name": "Acme"})
	rec, out := call(t, engine, http.MethodPost, "/api/quotations", map[string]any{
		"customer_id": customer.Data["public_id"],
		"start_date":  "2024-12-31",
		"end_date":    "2024-01-01",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	require.Len(t, out.Error.Errors, 1)
	assert.Equal(t, "end_date", out.Error.Errors[0].Field)
}

func TestUnknownDocumentIsNotFound(t *testing.T) {
	engine := newTestServer(t, nil)

	for _, path := range []string{
		"/api/customers/CUS-9999999",
		"/api/quotations/QT-9999999",
		"/api/invoices/INV-9999999",
		"/api/purchase-orders/PO-9999999",
		"/api/contracts/CT-9999999",
	} {
		rec, out := call(t, engine, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
		if assert.NotNil(t, out.Error, path) {
			assert.Equal(t, "not_found", out.Error.Type)
		}
	}

	rec, _ := call(t, engine, http.MethodPost, "/api/invoices/INV-9999999/purchase-order", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRateLimitDenies(t *testing.T) {
	limiter := &limiterMock{}
	limiter.On("Allow", mock.Anything, "203.0.113.7").Return(&ratelimit.Result{
		Allowed:    false,
		Limit:      30,
		Remaining:  0,
		RetryAfter: 1500 * time.Millisecond,
	}, nil).Once()
	engine := newTestServer(t, limiter)

	req := httptest.NewRequest(http.MethodGet, "/api/customers", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("Retry-After"))
	assert.Equal(t, "30", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	limiter.AssertExpectations(t)
}

func TestRateLimitAllowsAndSkipsProbes(t *testing.T) {
	limiter := &limiterMock{}
	limiter.On("Allow", mock.Anything, mock.Anything).Return(&ratelimit.Result{
		Allowed:   true,
		Limit:     30,
		Remaining: 29,
	}, nil).Once()
	engine := newTestServer(t, limiter)

	rec, out := call(t, engine, http.MethodGet, "/api/approvers", nil)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "29", rec.Header().Get("X-RateLimit-Remaining"))
	assert.Empty(t, out.List)
	assert.Nil(t, out.Error)

	rec, _ = call(t, engine, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	limiter.AssertExpectations(t)
}

func TestRateLimitBackendFailure(t *testing.T) {
	limiter := &limiterMock{}
	limiter.On("Allow", mock.Anything, mock.Anything).Return(nil, errors.New("redis down"))
	engine := newTestServer(t, limiter)

	rec, out := call(t, engine, http.MethodGet, "/api/contracts", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	assert.Equal(t, "service_unavailable", out.Error.Type)
}

func TestMapError(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		kind   string
	}{
		{"contention", errors.Wrap(sequencedomain.ErrCounterContention, "next"), http.StatusServiceUnavailable, "service_unavailable"},
		{"rate limited", ErrRateLimited, http.StatusTooManyRequests, "rate_limited"},
		{"foreign key", errors.Wrap(gorm.ErrForeignKeyViolated, "insert purchase order"), http.StatusConflict, "conflict"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, payload := mapError(tc.err)
			assert.Equal(t, tc.status, status)
			assert.Equal(t, tc.kind, payload.Type)
		})
	}
}
