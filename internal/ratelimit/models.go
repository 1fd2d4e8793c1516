// Package ratelimit throttles unauthenticated write endpoints per client IP
// with a sliding window.
package ratelimit

import (
	"context"
	"time"
)

// Scopes name the throttled endpoint families. Each scope has its own
// window per client.
const (
	ScopeRegister  = "register"
	ScopeChallenge = "challenge"
)

// Result is the outcome of one Allow call.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
	// RetryAfter is how long a rejected caller should wait, in whole seconds.
	RetryAfter int
}

// Store counts requests in a sliding window keyed by an opaque string.
type Store interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*Result, error)
}

// ExceededResponse is the JSON body of a 429.
type ExceededResponse struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	RetryAfter int    `json:"retry_after"`
}

func retryAfterSeconds(d time.Duration) int {
	secs := int((d + time.Second - 1) / time.Second)
	if secs < 1 {
		return 1
	}
	return secs
}
