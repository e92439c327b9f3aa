package dispatch

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/feastline/relay-backend/pkg/errors"
)

type stubKeyStore struct {
	mu   sync.Mutex
	keys map[string]struct{}

	setNXErr error
}

func newStubKeyStore() *stubKeyStore {
	return &stubKeyStore{keys: make(map[string]struct{})}
}

func (s *stubKeyStore) SetNX(_ context.Context, key string, _ any, _ time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.setNXErr != nil {
		return false, s.setNXErr
	}
	if _, held := s.keys[key]; held {
		return false, nil
	}
	s.keys[key] = struct{}{}
	return true, nil
}

func (s *stubKeyStore) Del(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		delete(s.keys, key)
	}
	return nil
}

func (s *stubKeyStore) DispatchLockKey(orderID string) string {
	return "lock:dispatch:" + orderID
}

func (s *stubKeyStore) IdempotencyKey(scope, id string) string {
	return "idem:" + scope + ":" + id
}

func (s *stubKeyStore) has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.keys[key]
	return ok
}

func TestRedisLocker_AcquireAndRelease(t *testing.T) {
	store := newStubKeyStore()
	locker := NewRedisLocker(store, time.Minute)
	orderID := uuid.New()

	release, err := locker.Acquire(context.Background(), orderID)
	require.NoError(t, err)
	assert.True(t, store.has(store.DispatchLockKey(orderID.String())))

	_, err = locker.Acquire(context.Background(), orderID)
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeDispatchInProgress))

	release()
	assert.False(t, store.has(store.DispatchLockKey(orderID.String())))

	release2, err := locker.Acquire(context.Background(), orderID)
	require.NoError(t, err)
	release2()
}

func TestRedisLocker_StoreFailure(t *testing.T) {
	store := newStubKeyStore()
	store.setNXErr = assert.AnError
	locker := NewRedisLocker(store, time.Minute)

	_, err := locker.Acquire(context.Background(), uuid.New())
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeDependency))
}

func TestRedisLocker_ReleaseSurvivesCanceledContext(t *testing.T) {
	store := newStubKeyStore()
	locker := NewRedisLocker(store, time.Minute)
	orderID := uuid.New()

	ctx, cancel := context.WithCancel(context.Background())
	release, err := locker.Acquire(ctx, orderID)
	require.NoError(t, err)

	cancel()
	release()
	assert.False(t, store.has(store.DispatchLockKey(orderID.String())))
}

func TestMemoryLocker_PerOrderIsolation(t *testing.T) {
	locker := NewMemoryLocker()
	first := uuid.New()
	second := uuid.New()

	releaseFirst, err := locker.Acquire(context.Background(), first)
	require.NoError(t, err)

	// A different order is unaffected by the held lock.
	releaseSecond, err := locker.Acquire(context.Background(), second)
	require.NoError(t, err)
	releaseSecond()

	_, err = locker.Acquire(context.Background(), first)
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeDispatchInProgress))

	releaseFirst()
	release, err := locker.Acquire(context.Background(), first)
	require.NoError(t, err)
	release()
}
