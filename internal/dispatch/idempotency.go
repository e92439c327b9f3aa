package dispatch

import (
	"context"
	"time"

	pkgerrors "github.com/feastline/relay-backend/pkg/errors"
)

// guardStore is the Redis surface the guard uses.
type guardStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	IdempotencyKey(scope, id string) string
}

// IdempotencyGuard deduplicates provider webhook events. Providers redeliver
// on timeout, so each event id is processed at most once per TTL window.
type IdempotencyGuard struct {
	store guardStore
	ttl   time.Duration
}

// NewIdempotencyGuard builds the guard. TTL bounds the dedup window.
func NewIdempotencyGuard(store guardStore, ttl time.Duration) *IdempotencyGuard {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &IdempotencyGuard{store: store, ttl: ttl}
}

// CheckAndMark returns true when the event was already processed. A fresh
// event is marked before processing; call Release if processing fails so the
// redelivery can retry.
func (g *IdempotencyGuard) CheckAndMark(ctx context.Context, scope, eventID string) (bool, error) {
	if g == nil || g.store == nil {
		return false, nil
	}
	key := g.store.IdempotencyKey(scope, eventID)
	set, err := g.store.SetNX(ctx, key, "1", g.ttl)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check webhook idempotency")
	}
	return !set, nil
}

// Release drops the mark so a failed event can be redelivered.
func (g *IdempotencyGuard) Release(ctx context.Context, scope, eventID string) {
	if g == nil || g.store == nil {
		return
	}
	_ = g.store.Del(ctx, g.store.IdempotencyKey(scope, eventID))
}
