package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/socratic/internal/common"
	"github.com/ternarybob/socratic/internal/interfaces"
	"github.com/ternarybob/socratic/internal/models"
	"github.com/ternarybob/socratic/internal/storage/badger"
)

func newStreamHarness(t *testing.T) (*StreamHandler, interfaces.StorageManager) {
	t.Helper()

	logger := common.GetLogger()
	cfg := common.NewDefaultConfig()
	cfg.Stream.PollInterval = "10ms"
	cfg.Stream.IdleBudget = 20
	cfg.Stream.KeepaliveTicks = 5

	storage, err := badger.NewManager(logger, &common.BadgerConfig{Path: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { storage.Close() })

	return NewStreamHandler(cfg, storage, logger), storage
}

func TestStreamJob_CompletedJobClosesImmediately(t *testing.T) {
	handler, storage := newStreamHarness(t)
	ctx := context.Background()

	job := models.NewJob("job_1", "user_1", "Notes", "notes.pdf", "")
	job.MarkCompleted(90 * time.Second)
	job.PDFGenerated = true
	require.NoError(t, storage.JobStorage().SaveJob(ctx, job))

	req := httptest.NewRequest("GET", "/api/jobs/job_1/stream", nil)
	rec := httptest.NewRecorder()
	handler.StreamJobHandler(rec, req, "job_1")

	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	body := rec.Body.String()
	assert.Contains(t, body, "retry: 3000")
	assert.Contains(t, body, "event: status")
	assert.Contains(t, body, "event: complete")
	assert.Contains(t, body, `"pdf_generated":true`)
}

func TestStreamJob_FailedJobSendsErrorEvent(t *testing.T) {
	handler, storage := newStreamHarness(t)
	ctx := context.Background()

	job := models.NewJob("job_1", "user_1", "Notes", "notes.pdf", "")
	job.MarkFailed("document contains insufficient text")
	require.NoError(t, storage.JobStorage().SaveJob(ctx, job))

	req := httptest.NewRequest("GET", "/api/jobs/job_1/stream", nil)
	rec := httptest.NewRecorder()
	handler.StreamJobHandler(rec, req, "job_1")

	body := rec.Body.String()
	assert.Contains(t, body, "event: error")
	assert.Contains(t, body, "insufficient text")
}

func TestStreamJob_UnknownJob(t *testing.T) {
	handler, _ := newStreamHarness(t)

	req := httptest.NewRequest("GET", "/api/jobs/job_missing/stream", nil)
	rec := httptest.NewRecorder()
	handler.StreamJobHandler(rec, req, "job_missing")

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStreamJob_OwnerMismatch(t *testing.T) {
	handler, storage := newStreamHarness(t)
	ctx := context.Background()

	job := models.NewJob("job_1", "user_1", "Notes", "notes.pdf", "")
	require.NoError(t, storage.JobStorage().SaveJob(ctx, job))

	req := httptest.NewRequest("GET", "/api/jobs/job_1/stream?user_id=user_2", nil)
	rec := httptest.NewRecorder()
	handler.StreamJobHandler(rec, req, "job_1")

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStreamJob_FollowsJobToCompletion(t *testing.T) {
	handler, storage := newStreamHarness(t)
	ctx := context.Background()

	job := models.NewJob("job_1", "user_1", "Notes", "notes.pdf", "")
	require.NoError(t, storage.JobStorage().SaveJob(ctx, job))

	done := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		req := httptest.NewRequest("GET", "/api/jobs/job_1/stream", nil)
		rec := httptest.NewRecorder()
		handler.StreamJobHandler(rec, req, "job_1")
		done <- rec
	}()

	// Advance the job while the stream is polling
	time.Sleep(30 * time.Millisecond)
	job.MarkProcessing()
	job.UpdateStage(models.StageExtractingText, 20, "Text extracted")
	require.NoError(t, storage.JobStorage().SaveJob(ctx, job))

	time.Sleep(30 * time.Millisecond)
	job.MarkCompleted(time.Second)
	require.NoError(t, storage.JobStorage().SaveJob(ctx, job))

	select {
	case rec := <-done:
		body := rec.Body.String()
		assert.Contains(t, body, "extracting_text")
		assert.Contains(t, body, "event: complete")
	case <-time.After(5 * time.Second):
		t.Fatal("stream did not close after job completed")
	}
}

func TestStreamJob_IdleBudgetTimeout(t *testing.T) {
	handler, storage := newStreamHarness(t)
	handler.config.Stream.IdleBudget = 4
	handler.config.Stream.KeepaliveTicks = 2
	ctx := context.Background()

	// An active job that never changes must end the stream with a
	// timeout event instead of hanging
	job := models.NewJob("job_1", "user_1", "Notes", "notes.pdf", "")
	require.NoError(t, storage.JobStorage().SaveJob(ctx, job))

	req := httptest.NewRequest("GET", "/api/jobs/job_1/stream", nil)
	rec := httptest.NewRecorder()
	handler.StreamJobHandler(rec, req, "job_1")

	body := rec.Body.String()
	assert.Contains(t, body, "event: timeout")
	assert.Contains(t, body, "idle budget")
	assert.Contains(t, body, ": keepalive")
	assert.NotContains(t, body, "event: complete")
}

// failingListStorage delegates to a real manager but fails every job
// listing, standing in for a storage outage mid-stream
type failingListStorage struct {
	interfaces.StorageManager
}

func (s *failingListStorage) JobStorage() interfaces.JobStorage {
	return &failingListJobStorage{s.StorageManager.JobStorage()}
}

type failingListJobStorage struct {
	interfaces.JobStorage
}

func (s *failingListJobStorage) ListJobs(ctx context.Context, opts *interfaces.ListOptions) ([]*models.Job, error) {
	return nil, errors.New("storage offline")
}

func TestStreamAll_StorageErrorsSurfaceThenClose(t *testing.T) {
	handler, storage := newStreamHarness(t)
	handler.storage = &failingListStorage{storage}

	req := httptest.NewRequest("GET", "/api/stream", nil)
	rec := httptest.NewRecorder()
	handler.StreamAllHandler(rec, req)

	// Each failed poll tells the client instead of ticking silently;
	// persistent failure closes the stream
	body := rec.Body.String()
	assert.Contains(t, body, "event: error")
	assert.Contains(t, body, "status read failed, retrying")
	assert.Contains(t, body, "no longer available")
	assert.NotContains(t, body, "event: complete")
}

func TestStreamAll_ClosesWhenNoActiveJobs(t *testing.T) {
	handler, storage := newStreamHarness(t)
	ctx := context.Background()

	job := models.NewJob("job_1", "user_1", "Notes", "notes.pdf", "")
	job.MarkCompleted(time.Second)
	require.NoError(t, storage.JobStorage().SaveJob(ctx, job))

	req := httptest.NewRequest("GET", "/api/stream?user_id=user_1", nil)
	rec := httptest.NewRecorder()
	handler.StreamAllHandler(rec, req)

	body := rec.Body.String()
	assert.Contains(t, body, "event: complete")
	assert.Contains(t, body, "no active jobs")
	// Terminal snapshots are never replayed to a fresh client
	assert.NotContains(t, body, "event: status")
}

func TestStreamAll_StreamsActiveJobThenCloses(t *testing.T) {
	handler, storage := newStreamHarness(t)
	ctx := context.Background()

	job := models.NewJob("job_1", "user_1", "Notes", "notes.pdf", "")
	require.NoError(t, storage.JobStorage().SaveJob(ctx, job))

	done := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		req := httptest.NewRequest("GET", "/api/stream?user_id=user_1", nil)
		rec := httptest.NewRecorder()
		handler.StreamAllHandler(rec, req)
		done <- rec
	}()

	time.Sleep(30 * time.Millisecond)
	job.MarkCompleted(time.Second)
	require.NoError(t, storage.JobStorage().SaveJob(ctx, job))

	select {
	case rec := <-done:
		body := rec.Body.String()
		assert.Contains(t, body, "event: status")
		assert.Contains(t, body, "event: complete")
	case <-time.After(5 * time.Second):
		t.Fatal("aggregate stream did not close after jobs finished")
	}
}
