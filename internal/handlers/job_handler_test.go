package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/socratic/internal/common"
	"github.com/ternarybob/socratic/internal/interfaces"
	"github.com/ternarybob/socratic/internal/models"
	"github.com/ternarybob/socratic/internal/queue"
	"github.com/ternarybob/socratic/internal/storage/badger"
)

type handlerHarness struct {
	config   *common.Config
	storage  interfaces.StorageManager
	queueMgr *queue.BadgerManager
	handler  *JobHandler
}

func newHandlerHarness(t *testing.T) *handlerHarness {
	t.Helper()

	logger := common.GetLogger()
	cfg := common.NewDefaultConfig()
	cfg.Uploads.TempDir = t.TempDir()

	storage, err := badger.NewManager(logger, &common.BadgerConfig{Path: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { storage.Close() })

	db := storage.DB().(*badgerhold.Store).Badger()
	queueMgr, err := queue.NewBadgerManager(db, "jobs", 30*time.Second, 3)
	require.NoError(t, err)

	return &handlerHarness{
		config:   cfg,
		storage:  storage,
		queueMgr: queueMgr,
		handler:  NewJobHandler(cfg, storage, queueMgr, logger),
	}
}

// multipartUpload builds a submission request body. files maps field
// name to {filename, content}.
func multipartUpload(t *testing.T, fields map[string]string, files map[string][2]string) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for name, value := range fields {
		require.NoError(t, writer.WriteField(name, value))
	}
	for field, file := range files {
		part, err := writer.CreateFormFile(field, file[0])
		require.NoError(t, err)
		_, err = part.Write([]byte(file[1]))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return &buf, writer.FormDataContentType()
}

func (h *handlerHarness) submit(t *testing.T, fields map[string]string, files map[string][2]string) *httptest.ResponseRecorder {
	t.Helper()

	body, contentType := multipartUpload(t, fields, files)
	req := httptest.NewRequest("POST", "/api/process", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.handler.SubmitHandler(rec, req)
	return rec
}

func TestSubmitHandler_QueuesJob(t *testing.T) {
	h := newHandlerHarness(t)
	ctx := context.Background()

	rec := h.submit(t,
		map[string]string{"title": "Lecture Notes", "email": "student@example.com"},
		map[string][2]string{"file": {"notes.pdf", "fake pdf content"}},
	)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	jobID, _ := resp["job_id"].(string)
	require.NotEmpty(t, jobID)

	job, err := h.storage.JobStorage().GetJob(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusPending, job.Status)
	assert.Empty(t, job.PastQuestionsPath)
	_, err = os.Stat(job.SourceFilePath)
	assert.NoError(t, err)

	// Quota consumed at submission
	user, err := h.storage.UserStorage().GetUserByEmail(ctx, "student@example.com")
	require.NoError(t, err)
	assert.Equal(t, 1, user.GenerationsUsed)

	length, err := h.queueMgr.Length(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, length)
}

func TestSubmitHandler_WithReferenceMaterial(t *testing.T) {
	h := newHandlerHarness(t)
	ctx := context.Background()

	rec := h.submit(t,
		map[string]string{"title": "Lecture Notes", "email": "student@example.com"},
		map[string][2]string{
			"file":           {"notes.pdf", "fake pdf content"},
			"past_questions": {"exam_2024.pdf", "fake exam pdf"},
		},
	)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	jobID, _ := resp["job_id"].(string)

	job, err := h.storage.JobStorage().GetJob(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, "exam_2024.pdf", job.PastQuestionsFileName)
	require.NotEmpty(t, job.PastQuestionsPath)
	_, err = os.Stat(job.PastQuestionsPath)
	assert.NoError(t, err)
}

func TestSubmitHandler_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		fields map[string]string
		files  map[string][2]string
		want   int
	}{
		{
			name:   "missing email",
			fields: map[string]string{"title": "Notes"},
			files:  map[string][2]string{"file": {"notes.pdf", "content"}},
			want:   http.StatusBadRequest,
		},
		{
			name:   "invalid email",
			fields: map[string]string{"title": "Notes", "email": "not-an-email"},
			files:  map[string][2]string{"file": {"notes.pdf", "content"}},
			want:   http.StatusBadRequest,
		},
		{
			name:   "unsupported document type",
			fields: map[string]string{"title": "Notes", "email": "student@example.com"},
			files:  map[string][2]string{"file": {"notes.txt", "content"}},
			want:   http.StatusBadRequest,
		},
		{
			name:   "missing file",
			fields: map[string]string{"title": "Notes", "email": "student@example.com"},
			want:   http.StatusBadRequest,
		},
		{
			name:   "unsupported reference type",
			fields: map[string]string{"title": "Notes", "email": "student@example.com"},
			files: map[string][2]string{
				"file":           {"notes.pdf", "content"},
				"past_questions": {"macro.exe", "binary"},
			},
			want: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHandlerHarness(t)
			rec := h.submit(t, tt.fields, tt.files)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestSubmitHandler_QuotaExhausted(t *testing.T) {
	h := newHandlerHarness(t)
	ctx := context.Background()

	user := models.NewUser("user_1", "student@example.com")
	user.GenerationsUsed = h.config.Quota.FreeGenerations
	require.NoError(t, h.storage.UserStorage().SaveUser(ctx, user))

	rec := h.submit(t,
		map[string]string{"title": "Notes", "email": "student@example.com"},
		map[string][2]string{"file": {"notes.pdf", "content"}},
	)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestDeleteJobHandler_ReclaimsQuotaOnce(t *testing.T) {
	h := newHandlerHarness(t)
	ctx := context.Background()

	user := models.NewUser("user_1", "student@example.com")
	user.GenerationsUsed = 1
	require.NoError(t, h.storage.UserStorage().SaveUser(ctx, user))

	job := models.NewJob("job_1", "user_1", "Notes", "notes.pdf", "")
	require.NoError(t, h.storage.JobStorage().SaveJob(ctx, job))

	req := httptest.NewRequest("DELETE", "/api/jobs/job_1", nil)
	rec := httptest.NewRecorder()
	h.handler.DeleteJobHandler(rec, req, "job_1")
	require.Equal(t, http.StatusOK, rec.Code)

	user, err := h.storage.UserStorage().GetUser(ctx, "user_1")
	require.NoError(t, err)
	assert.Equal(t, 0, user.GenerationsUsed)

	// Deleting again succeeds without reclaiming a second time
	rec = httptest.NewRecorder()
	h.handler.DeleteJobHandler(rec, httptest.NewRequest("DELETE", "/api/jobs/job_1", nil), "job_1")
	require.Equal(t, http.StatusOK, rec.Code)

	user, err = h.storage.UserStorage().GetUser(ctx, "user_1")
	require.NoError(t, err)
	assert.Equal(t, 0, user.GenerationsUsed)
}

func TestGetQuizHandler_NotGenerated(t *testing.T) {
	h := newHandlerHarness(t)
	ctx := context.Background()

	job := models.NewJob("job_1", "user_1", "Notes", "notes.pdf", "")
	require.NoError(t, h.storage.JobStorage().SaveJob(ctx, job))

	req := httptest.NewRequest("GET", "/api/jobs/job_1/quiz", nil)
	rec := httptest.NewRecorder()
	h.handler.GetQuizHandler(rec, req, "job_1")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestJobEndpoints_OwnerScoping(t *testing.T) {
	h := newHandlerHarness(t)
	ctx := context.Background()

	pdfPath := filepath.Join(t.TempDir(), "job_1.pdf")
	require.NoError(t, os.WriteFile(pdfPath, []byte("%PDF-1.4"), 0644))

	job := models.NewJob("job_1", "user_1", "Notes", "notes.pdf", "")
	job.PDFGenerated = true
	job.PDFPath = pdfPath
	job.QuizGenerated = true
	require.NoError(t, h.storage.JobStorage().SaveJob(ctx, job))
	require.NoError(t, h.storage.QuizStorage().SaveQuiz(ctx, models.NewQuiz("job_1", []models.QuizQuestion{
		{Question: "Q?", Options: []string{"a", "b", "c", "d"}, Answer: "A"},
	})))

	endpoints := []struct {
		name   string
		method string
		invoke func(w http.ResponseWriter, r *http.Request)
	}{
		{"get job", "GET", func(w http.ResponseWriter, r *http.Request) { h.handler.GetJobHandler(w, r, "job_1") }},
		{"get quiz", "GET", func(w http.ResponseWriter, r *http.Request) { h.handler.GetQuizHandler(w, r, "job_1") }},
		{"download pdf", "GET", func(w http.ResponseWriter, r *http.Request) { h.handler.DownloadPDFHandler(w, r, "job_1") }},
		{"delete job", "DELETE", func(w http.ResponseWriter, r *http.Request) { h.handler.DeleteJobHandler(w, r, "job_1") }},
	}

	// Another user's scope reads as not found everywhere
	for _, ep := range endpoints {
		t.Run(ep.name+" other user", func(t *testing.T) {
			req := httptest.NewRequest(ep.method, "/api/jobs/job_1?user_id=user_2", nil)
			rec := httptest.NewRecorder()
			ep.invoke(rec, req)
			assert.Equal(t, http.StatusNotFound, rec.Code)
		})
	}

	// The rejected delete must not have touched the job
	job, err := h.storage.JobStorage().GetJob(ctx, "job_1")
	require.NoError(t, err)
	assert.False(t, job.IsDeleted)

	// The owner's scope still resolves them
	for _, ep := range endpoints {
		t.Run(ep.name+" owner", func(t *testing.T) {
			req := httptest.NewRequest(ep.method, "/api/jobs/job_1?user_id=user_1", nil)
			rec := httptest.NewRecorder()
			ep.invoke(rec, req)
			assert.Equal(t, http.StatusOK, rec.Code)
		})
	}
}

func TestGetJobHandler_DeletedJobHidden(t *testing.T) {
	h := newHandlerHarness(t)
	ctx := context.Background()

	job := models.NewJob("job_1", "user_1", "Notes", "notes.pdf", "")
	job.SoftDelete()
	require.NoError(t, h.storage.JobStorage().SaveJob(ctx, job))

	req := httptest.NewRequest("GET", "/api/jobs/job_1", nil)
	rec := httptest.NewRecorder()
	h.handler.GetJobHandler(rec, req, "job_1")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
