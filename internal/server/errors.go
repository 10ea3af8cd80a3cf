package server

import (
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/smallbiznis/docflow/internal/aggregate"
	contractdomain "github.com/smallbiznis/docflow/internal/contract/domain"
	customerdomain "github.com/smallbiznis/docflow/internal/customer/domain"
	"github.com/smallbiznis/docflow/internal/daterange"
	invoicedomain "github.com/smallbiznis/docflow/internal/invoice/domain"
	purchaseorderdomain "github.com/smallbiznis/docflow/internal/purchaseorder/domain"
	quotationdomain "github.com/smallbiznis/docflow/internal/quotation/domain"
	sequencedomain "github.com/smallbiznis/docflow/internal/sequence/domain"
	"github.com/smallbiznis/docflow/pkg/db"
	"github.com/smallbiznis/docflow/pkg/db/pagination"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type       string            `json:"type"`
	Message    string            `json:"message"`
	ExistingID string            `json:"existing_id,omitempty"`
	Errors     []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrRateLimited        = errors.New("rate_limited")
	ErrServiceUnavailable = errors.New("service_unavailable")
)

// retryAfterSeconds is advertised on 503 and on 429 when the limiter gave
// no better hint.
const retryAfterSeconds = "1"

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		if (status == http.StatusServiceUnavailable || status == http.StatusTooManyRequests) && c.Writer.Header().Get("Retry-After") == "" {
			c.Header("Retry-After", retryAfterSeconds)
		}
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

// bindError turns a ShouldBind failure into field level errors.
func bindError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return invalidRequestError()
	}
	out := &ValidationErrors{Errors: make([]ValidationError, 0, len(fieldErrs))}
	for _, fe := range fieldErrs {
		out.Errors = append(out.Errors, ValidationError{
			Field:   fieldPath(fe),
			Code:    fe.Tag(),
			Message: fieldMessage(fe),
		})
	}
	return out
}

// fieldPath drops the top level struct name: "createQuotationRequest.items[0].product_name"
// becomes "items[0].product_name".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_without":
		return "is required"
	case "datetime":
		return "must be a date formatted as " + fe.Param()
	case "oneof":
		return "must be one of: " + fe.Param()
	case "email":
		return "must be a valid email address"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "gte":
		return "must be greater than or equal to " + fe.Param()
	default:
		return "invalid value"
	}
}

var registerTagNames sync.Once

// useJSONFieldNames makes validator report json names instead of Go names.
func useJSONFieldNames() {
	registerTagNames.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(field reflect.StructField) string {
			for _, tag := range []string{"json", "form"} {
				name := strings.SplitN(field.Tag.Get(tag), ",", 2)[0]
				if name == "-" {
					return ""
				}
				if name != "" {
					return name
				}
			}
			return field.Name
		})
	})
}

// domainValidation lists domain sentinels that mean "fix your request",
// keyed to the field they concern.
var domainValidation = []struct {
	err   error
	field string
}{
	{customerdomain.ErrInvalidCompanyName, "company_name"},
	{customerdomain.ErrInvalidEmail, "email"},
	{customerdomain.ErrInvalidTenant, "tenant"},
	{customerdomain.ErrInvalidID, "id"},
	{quotationdomain.ErrInvalidID, "id"},
	{quotationdomain.ErrInvalidCustomer, "customer_id"},
	{invoicedomain.ErrInvalidID, "id"},
	{invoicedomain.ErrInvalidStatus, "status"},
	{invoicedomain.ErrInvalidDueDate, "due_date"},
	{purchaseorderdomain.ErrInvalidID, "id"},
	{purchaseorderdomain.ErrInvalidStatus, "status"},
	{purchaseorderdomain.ErrInvalidApprover, "approver_id"},
	{contractdomain.ErrInvalidID, "id"},
	{contractdomain.ErrInvalidStatus, "status"},
	{daterange.ErrInvalidRange, "end_date"},
	{daterange.ErrMissingDate, "start_date"},
	{aggregate.ErrNegativeInput, "items"},
	{aggregate.ErrMissingProductName, "product_name"},
	{pagination.ErrInvalidPageToken, "page_token"},
	{ErrInvalidRequest, "request"},
}

var notFoundErrors = []error{
	ErrNotFound,
	customerdomain.ErrNotFound,
	quotationdomain.ErrNotFound,
	quotationdomain.ErrItemNotFound,
	invoicedomain.ErrNotFound,
	invoicedomain.ErrQuotationMissing,
	purchaseorderdomain.ErrNotFound,
	purchaseorderdomain.ErrItemNotFound,
	purchaseorderdomain.ErrInvoiceMissing,
	purchaseorderdomain.ErrQuotationMissing,
	contractdomain.ErrNotFound,
	contractdomain.ErrPurchaseOrderMissing,
	gorm.ErrRecordNotFound,
}

var conflictErrors = []error{
	invoicedomain.ErrInvoiceExists,
	purchaseorderdomain.ErrAlreadyConverted,
	contractdomain.ErrAlreadyConverted,
	gorm.ErrDuplicatedKey,
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	for _, v := range domainValidation {
		if errors.Is(err, v.err) {
			return http.StatusBadRequest, errorPayload{
				Type:    "validation_error",
				Message: "validation error",
				Errors: []ValidationError{{
					Field:   validationField(err, v.field),
					Code:    v.err.Error(),
					Message: "invalid value",
				}},
			}
		}
	}

	switch {
	case isOneOf(err, notFoundErrors):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case isOneOf(err, conflictErrors), db.IsForeignKeyErr(err):
		return http.StatusConflict, errorPayload{
			Type:       "conflict",
			Message:    conflictMessage(err),
			ExistingID: existingID(err),
		}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many requests",
		}
	case errors.Is(err, sequencedomain.ErrCounterContention),
		errors.Is(err, ErrServiceUnavailable):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "service unavailable, retry shortly",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

// classifyErrorForLog feeds the request logger's error_type and error_code.
func classifyErrorForLog(err error) (string, string) {
	_, payload := mapError(err)
	code := payload.Type
	if len(payload.Errors) > 0 {
		code = payload.Errors[0].Code
	}
	return payload.Type, code
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isOneOf(err error, targets []error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// validationField prefers the field a missing date was wrapped with.
func validationField(err error, fallback string) string {
	if errors.Is(err, daterange.ErrMissingDate) {
		msg := err.Error()
		if i := strings.Index(msg, ":"); i > 0 {
			return msg[:i]
		}
	}
	return fallback
}

func existingID(err error) string {
	var invoiceExists *invoicedomain.ExistsError
	if errors.As(err, &invoiceExists) {
		return invoiceExists.PublicID
	}
	var poConverted *purchaseorderdomain.AlreadyConvertedError
	if errors.As(err, &poConverted) {
		return poConverted.PublicID
	}
	var contractConverted *contractdomain.AlreadyConvertedError
	if errors.As(err, &contractConverted) {
		return contractConverted.PublicID
	}
	return ""
}

func conflictMessage(err error) string {
	switch {
	case errors.Is(err, invoicedomain.ErrInvoiceExists):
		return "an invoice already exists for this quotation; resend with confirm_update to update it"
	case errors.Is(err, purchaseorderdomain.ErrAlreadyConverted),
		errors.Is(err, contractdomain.ErrAlreadyConverted):
		return "document already converted"
	default:
		return "conflicts with another document"
	}
}
