package store_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/taskforge-mcp/taskforge-mcp/internal/store"
)

func TestEmitAndFetchUnprocessed_OrderedByCreatedAt(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Emit(ctx, store.EventTaskCreated, map[string]any{"n": 1}))
	require.NoError(t, s.Emit(ctx, store.EventTaskCreated, map[string]any{"n": 2}))
	require.NoError(t, s.Emit(ctx, store.EventTaskCreated, map[string]any{"n": 3}))

	events, err := s.FetchUnprocessed(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 3)
	for i, e := range events {
		require.False(t, e.Processed)
		require.Nil(t, e.ProcessedAt)
		require.JSONEq(t, fmt.Sprintf(`{"n":%d}`, i+1), string(e.Payload))
	}
}

func TestMarkProcessed_Idempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Emit(ctx, store.EventTaskCreated, map[string]any{}))

	events, err := s.FetchUnprocessed(ctx, 1)
	require.NoError(t, err)
	require.Len(t, events, 1)
	id := events[0].ID

	require.NoError(t, s.MarkProcessed(ctx, id))
	require.NoError(t, s.MarkProcessed(ctx, id)) // second call is a no-op

	remaining, err := s.FetchUnprocessed(ctx, 10)
	require.NoError(t, err)
	require.Empty(t, remaining)
}

func TestPurgeOldProcessed_IdempotentAndAgeGated(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Emit(ctx, store.EventTaskCreated, map[string]any{}))

	events, err := s.FetchUnprocessed(ctx, 1)
	require.NoError(t, err)
	require.NoError(t, s.MarkProcessed(ctx, events[0].ID))

	// Not old enough yet.
	n, err := s.PurgeOldProcessed(ctx, 24*time.Hour)
	require.NoError(t, err)
	require.Equal(t, int64(0), n)

	// With a zero threshold, everything processed is eligible.
	n, err = s.PurgeOldProcessed(ctx, 0)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	// Calling again is a no-op: nothing left to purge.
	n, err = s.PurgeOldProcessed(ctx, 0)
	require.NoError(t, err)
	require.Equal(t, int64(0), n)
}
