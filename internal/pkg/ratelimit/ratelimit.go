// Package ratelimit implements fixed-window admission control keyed by an
// arbitrary source key (normally the client address).
//
// The guard is best-effort: settlement invariants never depend on it.
package ratelimit

import (
	"context"
	"time"
)

// Store decides whether one more request from key fits into the current window.
type Store interface {
	Allow(ctx context.Context, key string, window time.Duration, max int) (bool, error)
}

// Limit binds a Store to a fixed window and request budget.
type Limit struct {
	Store  Store
	Window time.Duration
	Max    int
}

// Allow reports whether key may proceed under l.
func (l Limit) Allow(ctx context.Context, key string) (bool, error) {
	return l.Store.Allow(ctx, key, l.Window, l.Max)
}
