package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finsight-ai/finsight/pkg/models"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewStore(rdb), mr
}

func TestEnqueueCreatesRecordAndQueuesID(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	jobID, err := store.Enqueue(ctx, "What was TCS revenue in FY24?", "")
	require.NoError(t, err)
	require.NotEmpty(t, jobID)

	job, err := store.Get(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, jobID, job.JobID)
	assert.Equal(t, "What was TCS revenue in FY24?", job.Query)
	assert.Equal(t, models.JobStatusQueued, job.Status)
	assert.Empty(t, job.ChatID)
	assert.False(t, job.CreatedAt.IsZero())

	queued, err := mr.List(queueKey)
	require.NoError(t, err)
	assert.Equal(t, []string{jobID}, queued)
}

func TestEnqueuePreservesFIFOOrder(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	first, err := store.Enqueue(ctx, "first", "")
	require.NoError(t, err)
	second, err := store.Enqueue(ctx, "second", "")
	require.NoError(t, err)

	got, err := store.PopBlocking(ctx, time.Second)
	require.NoError(t, err)
	assert.Equal(t, first, got)

	got, err = store.PopBlocking(ctx, time.Second)
	require.NoError(t, err)
	assert.Equal(t, second, got)
}

func TestEnqueueWithChatID(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	jobID, err := store.Enqueue(ctx, "follow-up", "chat-42")
	require.NoError(t, err)

	job, err := store.Get(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, "chat-42", job.ChatID)
}

func TestGetMissingJob(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateMergesFields(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	jobID, err := store.Enqueue(ctx, "q", "")
	require.NoError(t, err)

	job, err := store.Update(ctx, jobID, models.JobUpdate{Status: models.JobStatusProcessing})
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusProcessing, job.Status)
	assert.Equal(t, "q", job.Query, "unrelated fields survive")

	result := map[string]any{"response": "42"}
	job, err = store.Update(ctx, jobID, models.JobUpdate{
		Status: models.JobStatusCompleted,
		Result: result,
	})
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, job.Status)
	assert.Equal(t, "42", job.Result["response"])
	assert.True(t, job.Status.IsTerminal())
}

func TestUpdateRefusesTerminalTransition(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	jobID, err := store.Enqueue(ctx, "q", "")
	require.NoError(t, err)

	_, err = store.Update(ctx, jobID, models.JobUpdate{
		Status: models.JobStatusFailed,
		Error:  "boom",
	})
	require.NoError(t, err)

	_, err = store.Update(ctx, jobID, models.JobUpdate{Status: models.JobStatusCompleted})
	require.Error(t, err)

	job, err := store.Get(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, job.Status)
	assert.Equal(t, "boom", job.Error)
}

func TestPopBlockingEmptyQueue(t *testing.T) {
	store, _ := newTestStore(t)

	jobID, err := store.PopBlocking(context.Background(), 50*time.Millisecond)
	require.NoError(t, err)
	assert.Empty(t, jobID)
}

func TestDepth(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	depth, err := store.Depth(ctx)
	require.NoError(t, err)
	assert.Zero(t, depth)

	_, err = store.Enqueue(ctx, "a", "")
	require.NoError(t, err)
	_, err = store.Enqueue(ctx, "b", "")
	require.NoError(t, err)

	depth, err = store.Depth(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, depth)
}
