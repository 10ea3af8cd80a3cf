package ratelimit

import (
	"context"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

var (
	ErrEmptyKey     = errors.New("rate limiter key is empty")
	ErrInvalidRate  = errors.New("rate limiter rate must be positive")
	ErrInvalidBurst = errors.New("rate limiter burst must be positive")
)

// Limiter decides whether one more request for key may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) (*Result, error)
}

type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

func validate(key string, rate float64, burst int) error {
	if strings.TrimSpace(key) == "" {
		return ErrEmptyKey
	}
	if rate <= 0 {
		return ErrInvalidRate
	}
	if burst <= 0 {
		return ErrInvalidBurst
	}
	return nil
}
