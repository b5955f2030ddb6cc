// -----------------------------------------------------------------------
// Job Handler - document submission and job management endpoints
// -----------------------------------------------------------------------

package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/socratic/internal/common"
	"github.com/ternarybob/socratic/internal/interfaces"
	"github.com/ternarybob/socratic/internal/models"
	"github.com/ternarybob/socratic/internal/queue"
)

// JobHandler serves document submission and job management endpoints
type JobHandler struct {
	config   *common.Config
	storage  interfaces.StorageManager
	queueMgr *queue.BadgerManager
	validate *validator.Validate
	logger   arbor.ILogger

	limiterMu sync.Mutex
	limiters  map[string]*rate.Limiter
}

// submission is the validated shape of a processing request
type submission struct {
	Title string `validate:"required,max=200"`
	Email string `validate:"required,email"`
}

// NewJobHandler creates a new job handler
func NewJobHandler(config *common.Config, storage interfaces.StorageManager, queueMgr *queue.BadgerManager, logger arbor.ILogger) *JobHandler {
	return &JobHandler{
		config:   config,
		storage:  storage,
		queueMgr: queueMgr,
		validate: validator.New(),
		logger:   logger,
		limiters: make(map[string]*rate.Limiter),
	}
}

// limiter returns the per-user submission rate limiter
func (h *JobHandler) limiter(userKey string) *rate.Limiter {
	h.limiterMu.Lock()
	defer h.limiterMu.Unlock()

	l, ok := h.limiters[userKey]
	if !ok {
		perSecond := rate.Limit(float64(h.config.Uploads.RatePerMinute) / 60.0)
		l = rate.NewLimiter(perSecond, h.config.Uploads.RateBurst)
		h.limiters[userKey] = l
	}
	return l
}

// refExtensions lists accepted secondary reference material formats.
// Images are accepted at upload time; extracting text from them is
// best-effort and the pipeline continues without it when it fails.
var refExtensions = map[string]bool{
	".pdf":  true,
	".docx": true,
	".jpg":  true,
	".jpeg": true,
	".png":  true,
}

// SubmitHandler accepts a document upload and queues it for processing.
// An optional past_questions file carries secondary reference material.
// POST /api/process (multipart: file, title, email[, past_questions])
func (h *JobHandler) SubmitHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}
	ctx := r.Context()

	r.Body = http.MaxBytesReader(w, r.Body, h.config.Uploads.MaxFileSize+1024*1024)
	if err := r.ParseMultipartForm(h.config.Uploads.MaxFileSize); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid multipart form or file too large")
		return
	}

	sub := submission{
		Title: strings.TrimSpace(r.FormValue("title")),
		Email: strings.TrimSpace(r.FormValue("email")),
	}
	if err := h.validate.Struct(&sub); err != nil {
		WriteError(w, http.StatusBadRequest, fmt.Sprintf("Invalid submission: %v", err))
		return
	}

	if !h.limiter(sub.Email).Allow() {
		WriteError(w, http.StatusTooManyRequests, "Too many submissions, slow down")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "Missing document file")
		return
	}
	defer file.Close()

	if header.Size > h.config.Uploads.MaxFileSize {
		WriteError(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("File exceeds maximum size of %d bytes", h.config.Uploads.MaxFileSize))
		return
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if ext != ".pdf" && ext != ".docx" {
		WriteError(w, http.StatusBadRequest, "Only PDF and DOCX documents are supported")
		return
	}

	// Resolve or create the submitting user
	user, err := h.storage.UserStorage().GetUserByEmail(ctx, sub.Email)
	if err != nil {
		user = models.NewUser(common.NewUserID(), sub.Email)
	}

	if !user.CanGenerate(h.config.Quota.FreeGenerations) {
		WriteError(w, http.StatusForbidden,
			fmt.Sprintf("Free generation limit reached (%d). Delete an existing generation or upgrade.", h.config.Quota.FreeGenerations))
		return
	}

	// Optional secondary reference material (e.g. past exam questions)
	refFile, refHeader, refErr := r.FormFile("past_questions")
	if refErr == nil {
		defer refFile.Close()

		if refHeader.Size > h.config.Uploads.MaxFileSize {
			WriteError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("Reference file exceeds maximum size of %d bytes", h.config.Uploads.MaxFileSize))
			return
		}
		if !refExtensions[strings.ToLower(filepath.Ext(refHeader.Filename))] {
			WriteError(w, http.StatusBadRequest, "Reference material must be PDF, DOCX, or an image")
			return
		}
	}

	jobID := common.NewJobID()

	// Persist the uploads to the temp dir for the worker
	if err := os.MkdirAll(h.config.Uploads.TempDir, 0755); err != nil {
		WriteError(w, http.StatusInternalServerError, "Failed to store upload")
		return
	}
	tempPath := filepath.Join(h.config.Uploads.TempDir, jobID+ext)
	if err := h.saveUpload(file, tempPath); err != nil {
		h.logger.Error().Err(err).Str("path", tempPath).Msg("Failed to store temp upload file")
		WriteError(w, http.StatusInternalServerError, "Failed to store upload")
		return
	}

	refPath := ""
	if refErr == nil {
		refPath = filepath.Join(h.config.Uploads.TempDir,
			jobID+"_ref"+strings.ToLower(filepath.Ext(refHeader.Filename)))
		if err := h.saveUpload(refFile, refPath); err != nil {
			os.Remove(tempPath)
			h.logger.Error().Err(err).Str("path", refPath).Msg("Failed to store reference upload file")
			WriteError(w, http.StatusInternalServerError, "Failed to store upload")
			return
		}
	}

	job := models.NewJob(jobID, user.ID, sub.Title, header.Filename, tempPath)
	if refErr == nil {
		job.PastQuestionsFileName = refHeader.Filename
		job.PastQuestionsPath = refPath
	}
	if err := h.storage.JobStorage().SaveJob(ctx, job); err != nil {
		os.Remove(tempPath)
		if refPath != "" {
			os.Remove(refPath)
		}
		WriteError(w, http.StatusInternalServerError, "Failed to create job")
		return
	}

	// Quota is consumed at submission and reclaimed on deletion
	user.ConsumeGeneration()
	if err := h.storage.UserStorage().SaveUser(ctx, user); err != nil {
		h.logger.Error().Err(err).Str("user_id", user.ID).Msg("Failed to update user quota")
	}

	msg := models.QueueMessage{JobID: jobID, Payload: json.RawMessage(`{}`)}
	if err := h.queueMgr.Enqueue(ctx, msg); err != nil {
		h.logger.Error().Err(err).Str("job_id", jobID).Msg("Failed to enqueue job")
		job.MarkFailed("failed to queue job for processing")
		h.storage.JobStorage().SaveJob(ctx, job)
		WriteError(w, http.StatusInternalServerError, "Failed to queue job")
		return
	}

	h.logger.Info().
		Str("job_id", jobID).
		Str("user_id", user.ID).
		Str("file", header.Filename).
		Int64("size", header.Size).
		Msg("Document submitted for processing")

	WriteJSON(w, http.StatusAccepted, map[string]interface{}{
		"job_id":  jobID,
		"user_id": user.ID,
		"status":  job.Status,
	})
}

// saveUpload writes one multipart upload to its temp path
func (h *JobHandler) saveUpload(src io.Reader, path string) error {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		os.Remove(path)
		return err
	}
	return out.Close()
}

// ListJobsHandler returns jobs, optionally filtered by user and status.
// GET /api/jobs?user_id=&status=&limit=&offset=
func (h *JobHandler) ListJobsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	limit, offset := GetPaginationParams(r)
	opts := &interfaces.ListOptions{
		UserID: r.URL.Query().Get("user_id"),
		Status: r.URL.Query().Get("status"),
		Limit:  limit,
		Offset: offset,
	}

	jobs, err := h.storage.JobStorage().ListJobs(r.Context(), opts)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list jobs")
		WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}

	total, err := h.storage.JobStorage().CountJobs(r.Context(), opts)
	if err != nil {
		total = len(jobs)
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":   jobs,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

// ownedByRequester applies the optional user_id query scope. Every job
// read goes through it so jobs belonging to someone else read as
// missing rather than forbidden.
func ownedByRequester(r *http.Request, job *models.Job) bool {
	userID := r.URL.Query().Get("user_id")
	return userID == "" || userID == job.UserID
}

// GetJobHandler returns a single job by ID.
// GET /api/jobs/{id}?user_id=
func (h *JobHandler) GetJobHandler(w http.ResponseWriter, r *http.Request, jobID string) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	job, err := h.storage.JobStorage().GetJob(r.Context(), jobID)
	if err != nil || job.IsDeleted || !ownedByRequester(r, job) {
		WriteError(w, http.StatusNotFound, "Job not found")
		return
	}

	WriteJSON(w, http.StatusOK, job)
}

// GetQuizHandler returns the quiz generated for a job.
// GET /api/jobs/{id}/quiz?user_id=
func (h *JobHandler) GetQuizHandler(w http.ResponseWriter, r *http.Request, jobID string) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	job, err := h.storage.JobStorage().GetJob(r.Context(), jobID)
	if err != nil || job.IsDeleted || !ownedByRequester(r, job) {
		WriteError(w, http.StatusNotFound, "Job not found")
		return
	}
	if !job.QuizGenerated {
		WriteError(w, http.StatusNotFound, "No quiz was generated for this job")
		return
	}

	quiz, err := h.storage.QuizStorage().GetQuiz(r.Context(), jobID)
	if err != nil {
		WriteError(w, http.StatusNotFound, "Quiz not found")
		return
	}

	WriteJSON(w, http.StatusOK, quiz)
}

// DeleteJobHandler soft-deletes a job and reclaims the owner's quota.
// DELETE /api/jobs/{id}?user_id=
func (h *JobHandler) DeleteJobHandler(w http.ResponseWriter, r *http.Request, jobID string) {
	if !RequireMethod(w, r, "DELETE") {
		return
	}
	ctx := r.Context()

	job, err := h.storage.JobStorage().GetJob(ctx, jobID)
	if err != nil || !ownedByRequester(r, job) {
		WriteError(w, http.StatusNotFound, "Job not found")
		return
	}
	if job.IsDeleted {
		// Deleting twice must not reclaim quota twice
		WriteSuccess(w, "Job already deleted")
		return
	}

	job.SoftDelete()
	if err := h.storage.JobStorage().SaveJob(ctx, job); err != nil {
		WriteError(w, http.StatusInternalServerError, "Failed to delete job")
		return
	}

	if user, err := h.storage.UserStorage().GetUser(ctx, job.UserID); err == nil {
		user.ReclaimGeneration()
		if err := h.storage.UserStorage().SaveUser(ctx, user); err != nil {
			h.logger.Error().Err(err).Str("user_id", user.ID).Msg("Failed to reclaim user quota")
		}
	}

	h.logger.Info().Str("job_id", jobID).Msg("Job deleted")
	WriteSuccess(w, "Job deleted")
}

// DownloadPDFHandler streams the generated PDF report.
// GET /api/jobs/{id}/pdf
func (h *JobHandler) DownloadPDFHandler(w http.ResponseWriter, r *http.Request, jobID string) {
	h.serveArtifact(w, r, jobID, "pdf")
}

// DownloadAudioHandler streams the generated audio summary.
// GET /api/jobs/{id}/audio
func (h *JobHandler) DownloadAudioHandler(w http.ResponseWriter, r *http.Request, jobID string) {
	h.serveArtifact(w, r, jobID, "audio")
}

func (h *JobHandler) serveArtifact(w http.ResponseWriter, r *http.Request, jobID, kind string) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	job, err := h.storage.JobStorage().GetJob(r.Context(), jobID)
	if err != nil || job.IsDeleted || !ownedByRequester(r, job) {
		WriteError(w, http.StatusNotFound, "Job not found")
		return
	}

	var path, contentType, downloadName string
	switch kind {
	case "pdf":
		if !job.PDFGenerated {
			WriteError(w, http.StatusNotFound, "No PDF report was generated for this job")
			return
		}
		path = job.PDFPath
		contentType = "application/pdf"
		downloadName = job.ID + ".pdf"
	case "audio":
		if !job.AudioGenerated {
			WriteError(w, http.StatusNotFound, "No audio summary was generated for this job")
			return
		}
		path = job.AudioPath
		contentType = "audio/wav"
		downloadName = filepath.Base(job.AudioPath)
	}

	if _, err := os.Stat(path); err != nil {
		h.logger.Warn().Str("job_id", jobID).Str("path", path).Msg("Artifact file missing on disk")
		WriteError(w, http.StatusNotFound, "Artifact no longer available")
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", downloadName))
	http.ServeFile(w, r, path)
}
