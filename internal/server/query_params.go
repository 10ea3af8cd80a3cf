package server

import (
	"io"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

const dateOnlyLayout = "2006-01-02"

var errInvalidDate = errors.New("invalid_date")

// parseDate reads a calendar date; blank yields the zero time.
func parseDate(value string) (time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return time.Time{}, nil
	}
	parsed, err := time.Parse(dateOnlyLayout, trimmed)
	if err != nil {
		return time.Time{}, errInvalidDate
	}
	return parsed, nil
}

func parseOptionalDate(value *string) (*time.Time, error) {
	if value == nil || strings.TrimSpace(*value) == "" {
		return nil, nil
	}
	parsed, err := parseDate(*value)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

// dateField parses value or reports a field-level validation error.
func dateField(field, value string) (time.Time, error) {
	parsed, err := parseDate(value)
	if err != nil {
		return time.Time{}, newValidationError(field, "datetime", "must be a date formatted as "+dateOnlyLayout)
	}
	return parsed, nil
}

func optionalDateField(field string, value *string) (*time.Time, error) {
	parsed, err := parseOptionalDate(value)
	if err != nil {
		return nil, newValidationError(field, "datetime", "must be a date formatted as "+dateOnlyLayout)
	}
	return parsed, nil
}

func trimPtr(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	return &trimmed
}

// bindOptionalJSON binds a body that may be absent entirely.
func bindOptionalJSON(c *gin.Context, out any) error {
	if err := c.ShouldBindJSON(out); err != nil {
		if errors.Is(err, io.EOF) {
			return binding.Validator.ValidateStruct(out)
		}
		return err
	}
	return nil
}
