// Package daterange derives a document's lifecycle status from its date range.
package daterange

import (
	"time"

	"github.com/cockroachdb/errors"
)

type Status string

const (
	StatusDraft   Status = "Draft"
	StatusActive  Status = "Active"
	StatusExpired Status = "Expired"
)

var (
	ErrInvalidRange = errors.New("invalid_date_range")
	ErrMissingDate  = errors.New("missing_date")
)

func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusActive, StatusExpired:
		return true
	}
	return false
}

// Day truncates t to midnight UTC.
func Day(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Derive compares at calendar-day precision: end before today is Expired,
// today within [start, end] is Active, anything else is Draft.
func Derive(start, end, today time.Time) Status {
	if start.IsZero() || end.IsZero() {
		return StatusDraft
	}
	s, e, now := Day(start), Day(end), Day(today)
	switch {
	case e.Before(now):
		return StatusExpired
	case !s.After(now):
		return StatusActive
	default:
		return StatusDraft
	}
}

// Validate requires both dates and end strictly after start.
func Validate(start, end time.Time) error {
	if start.IsZero() {
		return errors.Wrap(ErrMissingDate, "start_date")
	}
	if end.IsZero() {
		return errors.Wrap(ErrMissingDate, "end_date")
	}
	if !Day(end).After(Day(start)) {
		return ErrInvalidRange
	}
	return nil
}
