package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingIdempotencyStore struct{}

func (failingIdempotencyStore) Contains(context.Context, string) (bool, error) {
	return false, errors.New("store unavailable")
}

func (failingIdempotencyStore) Add(context.Context, string) error {
	return errors.New("store unavailable")
}

func countingHandler(err error) (Handler, *int) {
	var calls int
	return func(context.Context, *Event) error {
		calls++
		return err
	}, &calls
}

func TestMemoryIdempotencyStore_AddContainsExpire(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	store := NewMemoryIdempotencyStore(time.Minute)
	store.now = func() time.Time { return now }

	seen, err := store.Contains(ctx, "evt-1")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, store.Add(ctx, "evt-1"))
	seen, _ = store.Contains(ctx, "evt-1")
	assert.True(t, seen)
	assert.Equal(t, 1, store.Len())

	now = now.Add(2 * time.Minute)
	seen, _ = store.Contains(ctx, "evt-1")
	assert.False(t, seen)
	assert.Equal(t, 0, store.Len())
}

func TestMemoryIdempotencyStore_ConcurrentAccess(t *testing.T) {
	store := NewMemoryIdempotencyStore(time.Minute)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = store.Add(ctx, "evt-shared")
			_, _ = store.Contains(ctx, "evt-shared")
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, store.Len())
}

func TestIdempotentHandler_SkipsDuplicates(t *testing.T) {
	store := NewMemoryIdempotencyStore(time.Minute)
	inner, calls := countingHandler(nil)
	handler := IdempotentHandler(store, inner, testLogger())
	event := &Event{EventID: "evt-dup", EventType: "test.duplicate"}
	before := testutil.ToFloat64(ConsumerMessagesDuplicate.WithLabelValues("test.duplicate"))

	require.NoError(t, handler(context.Background(), event))
	require.NoError(t, handler(context.Background(), event))

	assert.Equal(t, 1, *calls)
	assert.InDelta(t, before+1, testutil.ToFloat64(ConsumerMessagesDuplicate.WithLabelValues("test.duplicate")), 0.001)
}

func TestIdempotentHandler_EmptyIDAlwaysPassesThrough(t *testing.T) {
	inner, calls := countingHandler(nil)
	handler := IdempotentHandler(NewMemoryIdempotencyStore(time.Minute), inner, testLogger())

	for i := 0; i < 3; i++ {
		require.NoError(t, handler(context.Background(), &Event{EventType: "test"}))
	}
	assert.Equal(t, 3, *calls)
}

func TestIdempotentHandler_FailureIsNotRecorded(t *testing.T) {
	store := NewMemoryIdempotencyStore(time.Minute)
	cause := errors.New("processing failed")
	inner, calls := countingHandler(cause)
	handler := IdempotentHandler(store, inner, testLogger())
	event := &Event{EventID: "evt-err", EventType: "test"}

	assert.ErrorIs(t, handler(context.Background(), event), cause)
	assert.ErrorIs(t, handler(context.Background(), event), cause)
	assert.Equal(t, 2, *calls)

	seen, err := store.Contains(context.Background(), "evt-err")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestIdempotentHandler_StoreErrorProcessesAnyway(t *testing.T) {
	inner, calls := countingHandler(nil)
	handler := IdempotentHandler(failingIdempotencyStore{}, inner, testLogger())

	require.NoError(t, handler(context.Background(), &Event{EventID: "evt-1", EventType: "test"}))
	assert.Equal(t, 1, *calls)
}
