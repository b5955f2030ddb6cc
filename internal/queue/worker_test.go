package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/socratic/internal/models"
)

func TestWorkerPool_HandlerSuccessDeletesMessage(t *testing.T) {
	db := openTestDB(t)
	mgr, err := NewBadgerManager(db, "test", 5*time.Minute, 3)
	require.NoError(t, err)

	var gotAttempt Attempt
	handler := func(ctx context.Context, msg *models.QueueMessage, attempt Attempt) error {
		gotAttempt = attempt
		return nil
	}
	pool := NewWorkerPool(mgr, handler, 1, 10*time.Millisecond, 0, arbor.NewLogger())

	ctx := context.Background()
	require.NoError(t, mgr.Enqueue(ctx, testMessage("job_1")))
	require.NoError(t, pool.processMessage(0))

	assert.Equal(t, 1, gotAttempt.Receive)
	assert.False(t, gotAttempt.Final)

	length, err := mgr.Length(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, length)
}

func TestWorkerPool_PanicReleasesForRetry(t *testing.T) {
	db := openTestDB(t)
	mgr, err := NewBadgerManager(db, "test", 5*time.Minute, 3)
	require.NoError(t, err)

	handler := func(ctx context.Context, msg *models.QueueMessage, attempt Attempt) error {
		panic("stage blew up")
	}
	pool := NewWorkerPool(mgr, handler, 1, 10*time.Millisecond, 0, arbor.NewLogger())

	ctx := context.Background()
	require.NoError(t, mgr.Enqueue(ctx, testMessage("job_1")))

	// The panic surfaces as a handler error instead of killing the pool
	err = pool.processMessage(0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panic")
	assert.Contains(t, err.Error(), "stage blew up")

	// The message was released and comes back as a second delivery
	delivery, err := mgr.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, "job_1", delivery.Body.JobID)
	assert.Equal(t, 2, delivery.ReceiveCount)
}

func TestWorkerPool_PanicOnFinalAttemptDropsMessage(t *testing.T) {
	db := openTestDB(t)
	mgr, err := NewBadgerManager(db, "test", 5*time.Minute, 1)
	require.NoError(t, err)

	handler := func(ctx context.Context, msg *models.QueueMessage, attempt Attempt) error {
		panic("stage blew up")
	}
	pool := NewWorkerPool(mgr, handler, 1, 10*time.Millisecond, 0, arbor.NewLogger())

	ctx := context.Background()
	require.NoError(t, mgr.Enqueue(ctx, testMessage("job_1")))

	err = pool.processMessage(0)
	require.Error(t, err)

	length, err := mgr.Length(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, length)
}
