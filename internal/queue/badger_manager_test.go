package queue

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/socratic/internal/models"
)

func openTestDB(t *testing.T) *badger.DB {
	t.Helper()

	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return db
}

func testMessage(jobID string) models.QueueMessage {
	return models.QueueMessage{
		JobID:   jobID,
		Payload: json.RawMessage(`{}`),
	}
}

func TestBadgerManager_EnqueueReceive(t *testing.T) {
	db := openTestDB(t)
	mgr, err := NewBadgerManager(db, "test", 5*time.Minute, 3)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, mgr.Enqueue(ctx, testMessage("job_1")))

	delivery, err := mgr.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, "job_1", delivery.Body.JobID)
	assert.Equal(t, 1, delivery.ReceiveCount)
	assert.False(t, delivery.Final())

	// Claimed message is invisible until the timeout elapses
	_, err = mgr.Receive(ctx)
	assert.ErrorIs(t, err, models.ErrNoMessage)
}

func TestBadgerManager_Delete(t *testing.T) {
	db := openTestDB(t)
	mgr, err := NewBadgerManager(db, "test", 5*time.Minute, 3)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, mgr.Enqueue(ctx, testMessage("job_1")))

	delivery, err := mgr.Receive(ctx)
	require.NoError(t, err)
	require.NoError(t, delivery.Delete())

	length, err := mgr.Length(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, length)

	// Double delete is a no-op
	assert.NoError(t, delivery.Delete())
}

func TestBadgerManager_ReleaseRedelivers(t *testing.T) {
	db := openTestDB(t)
	mgr, err := NewBadgerManager(db, "test", 5*time.Minute, 3)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, mgr.Enqueue(ctx, testMessage("job_1")))

	first, err := mgr.Receive(ctx)
	require.NoError(t, err)
	require.NoError(t, first.Release(0))

	second, err := mgr.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, "job_1", second.Body.JobID)
	assert.Equal(t, 2, second.ReceiveCount)
}

func TestBadgerManager_MaxReceiveDropsMessage(t *testing.T) {
	db := openTestDB(t)
	mgr, err := NewBadgerManager(db, "test", 5*time.Minute, 2)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, mgr.Enqueue(ctx, testMessage("job_1")))

	first, err := mgr.Receive(ctx)
	require.NoError(t, err)
	require.NoError(t, first.Release(0))

	second, err := mgr.Receive(ctx)
	require.NoError(t, err)
	assert.True(t, second.Final())
	require.NoError(t, second.Release(0))

	// Deliveries exhausted, the message is dropped on the next scan
	_, err = mgr.Receive(ctx)
	assert.ErrorIs(t, err, models.ErrNoMessage)

	length, err := mgr.Length(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, length)
}

func TestBadgerManager_EnqueueWithDelay(t *testing.T) {
	db := openTestDB(t)
	mgr, err := NewBadgerManager(db, "test", 5*time.Minute, 3)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, mgr.EnqueueWithDelay(ctx, testMessage("job_1"), 50*time.Millisecond))

	_, err = mgr.Receive(ctx)
	assert.ErrorIs(t, err, models.ErrNoMessage)

	time.Sleep(80 * time.Millisecond)

	delivery, err := mgr.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, "job_1", delivery.Body.JobID)
}

func TestBadgerManager_FIFOOrdering(t *testing.T) {
	db := openTestDB(t)
	mgr, err := NewBadgerManager(db, "test", 5*time.Minute, 3)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, mgr.Enqueue(ctx, testMessage("job_1")))
	time.Sleep(2 * time.Millisecond)
	require.NoError(t, mgr.Enqueue(ctx, testMessage("job_2")))

	first, err := mgr.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, "job_1", first.Body.JobID)

	second, err := mgr.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, "job_2", second.Body.JobID)
}
