package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	pkgerrors "github.com/feastline/relay-backend/pkg/errors"
)

// Locker serializes dispatch attempts per order. At most one delivery-creation
// call may be in flight for a given order; a losing contender fails fast.
type Locker interface {
	Acquire(ctx context.Context, orderID uuid.UUID) (release func(), err error)
}

// lockStore is the Redis surface the lock uses.
type lockStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	DispatchLockKey(orderID string) string
}

type redisLocker struct {
	store lockStore
	ttl   time.Duration
}

// NewRedisLocker builds a Locker backed by Redis SETNX. The TTL bounds how
// long a crashed dispatcher can hold the lock.
func NewRedisLocker(store lockStore, ttl time.Duration) Locker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &redisLocker{store: store, ttl: ttl}
}

func (l *redisLocker) Acquire(ctx context.Context, orderID uuid.UUID) (func(), error) {
	key := l.store.DispatchLockKey(orderID.String())
	acquired, err := l.store.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339Nano), l.ttl)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquire dispatch lock")
	}
	if !acquired {
		return nil, pkgerrors.New(pkgerrors.CodeDispatchInProgress, "dispatch already in flight for order")
	}
	release := func() {
		// Release on a detached context: the request may already be canceled.
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		_ = l.store.Del(releaseCtx, key)
	}
	return release, nil
}

type memoryLocker struct {
	mu    sync.Mutex
	taken map[uuid.UUID]struct{}
}

// NewMemoryLocker builds a process-local Locker, used by tests and
// single-instance deployments without Redis.
func NewMemoryLocker() Locker {
	return &memoryLocker{taken: make(map[uuid.UUID]struct{})}
}

func (l *memoryLocker) Acquire(_ context.Context, orderID uuid.UUID) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, held := l.taken[orderID]; held {
		return nil, pkgerrors.New(pkgerrors.CodeDispatchInProgress, "dispatch already in flight for order")
	}
	l.taken[orderID] = struct{}{}
	release := func() {
		l.mu.Lock()
		delete(l.taken, orderID)
		l.mu.Unlock()
	}
	return release, nil
}
