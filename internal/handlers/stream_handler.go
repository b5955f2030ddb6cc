// -----------------------------------------------------------------------
// Stream Handler - Server-Sent Events for job status updates
// -----------------------------------------------------------------------

package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/socratic/internal/common"
	"github.com/ternarybob/socratic/internal/interfaces"
	"github.com/ternarybob/socratic/internal/models"
)

// StreamHandler publishes job status snapshots over Server-Sent Events.
// It polls storage on a fixed interval and pushes an event only when a
// snapshot actually changed, with periodic keepalive comments so proxies
// do not cut the connection.
type StreamHandler struct {
	config  *common.Config
	storage interfaces.StorageManager
	logger  arbor.ILogger
}

// NewStreamHandler creates a new SSE stream handler
func NewStreamHandler(config *common.Config, storage interfaces.StorageManager, logger arbor.ILogger) *StreamHandler {
	return &StreamHandler{
		config:  config,
		storage: storage,
		logger:  logger,
	}
}

// maxConsecutiveReadErrors is how many polls in a row may fail before
// a stream gives up on the job record
const maxConsecutiveReadErrors = 3

// StreamJobHandler streams status updates for a single job until the job
// reaches a terminal state, the client disconnects, or the idle budget
// runs out. A user_id query parameter, when present, must match the
// job's owner.
// GET /api/jobs/{id}/stream?user_id=
func (h *StreamHandler) StreamJobHandler(w http.ResponseWriter, r *http.Request, jobID string) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	job, err := h.storage.JobStorage().GetJob(r.Context(), jobID)
	if err != nil || job.IsDeleted || !ownedByRequester(r, job) {
		WriteError(w, http.StatusNotFound, "Job not found")
		return
	}

	flusher, ok := h.openStream(w)
	if !ok {
		return
	}

	h.logger.Debug().Str("job_id", jobID).Msg("Job status stream opened")

	// Initial snapshot so the client renders current state immediately
	prev := job.Snapshot()
	h.sendEvent(w, flusher, "status", prev)
	if job.IsTerminal() {
		h.sendTerminal(w, flusher, job)
		return
	}

	ticker := time.NewTicker(h.config.StreamPollInterval())
	defer ticker.Stop()

	idleTicks := 0
	readErrors := 0
	for {
		select {
		case <-r.Context().Done():
			h.logger.Debug().Str("job_id", jobID).Msg("Job status stream client disconnected")
			return
		case <-ticker.C:
			job, err := h.storage.JobStorage().GetJob(r.Context(), jobID)
			if err != nil {
				// Transient read failures keep the stream open; only a
				// persistent one ends it
				readErrors++
				if readErrors >= maxConsecutiveReadErrors {
					h.sendEvent(w, flusher, "error", map[string]string{"error": "job no longer available"})
					return
				}
				h.sendEvent(w, flusher, "error", map[string]string{"error": "status read failed, retrying"})
				continue
			}
			readErrors = 0

			if job.IsDeleted {
				h.sendEvent(w, flusher, "error", map[string]string{"error": "job was deleted"})
				return
			}

			snap := job.Snapshot()
			if snap.Changed(prev) {
				h.sendEvent(w, flusher, "status", snap)
				prev = snap
				idleTicks = 0
			} else {
				idleTicks++
			}

			if job.IsTerminal() {
				h.sendTerminal(w, flusher, job)
				return
			}

			if idleTicks >= h.config.Stream.IdleBudget {
				h.sendEvent(w, flusher, "timeout", map[string]string{"reason": "no status change within idle budget"})
				return
			}
			if idleTicks > 0 && idleTicks%h.config.Stream.KeepaliveTicks == 0 {
				fmt.Fprintf(w, ": keepalive\n\n")
				flusher.Flush()
			}
		}
	}
}

// StreamAllHandler streams status updates for every active job, optionally
// scoped to one user. The stream closes itself once no watched job is in
// a non-terminal state.
// GET /api/stream?user_id=
func (h *StreamHandler) StreamAllHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	userID := r.URL.Query().Get("user_id")

	flusher, ok := h.openStream(w)
	if !ok {
		return
	}

	h.logger.Debug().Str("user_id", userID).Msg("Aggregate status stream opened")

	ticker := time.NewTicker(h.config.StreamPollInterval())
	defer ticker.Stop()

	seen := make(map[string]models.StatusSnapshot)
	idleTicks := 0
	readErrors := 0

	// First poll immediately so clients do not wait a full interval
	_, active, ok := h.pollActive(r, w, flusher, userID, seen)
	if ok && active == 0 {
		h.sendEvent(w, flusher, "complete", map[string]string{"reason": "no active jobs"})
		return
	}
	if !ok {
		readErrors++
	}

	for {
		select {
		case <-r.Context().Done():
			h.logger.Debug().Msg("Aggregate status stream client disconnected")
			return
		case <-ticker.C:
			changed, active, ok := h.pollActive(r, w, flusher, userID, seen)
			if !ok {
				// Same tolerance as the single-job stream: transient
				// read failures keep the stream open
				readErrors++
				if readErrors >= maxConsecutiveReadErrors {
					h.sendEvent(w, flusher, "error", map[string]string{"error": "job statuses no longer available"})
					return
				}
				continue
			}
			readErrors = 0
			if active == 0 {
				h.sendEvent(w, flusher, "complete", map[string]string{"reason": "no active jobs"})
				return
			}
			if changed {
				idleTicks = 0
				continue
			}
			idleTicks++

			if idleTicks >= h.config.Stream.IdleBudget {
				h.sendEvent(w, flusher, "timeout", map[string]string{"reason": "no status change within idle budget"})
				return
			}
			if idleTicks%h.config.Stream.KeepaliveTicks == 0 {
				fmt.Fprintf(w, ": keepalive\n\n")
				flusher.Flush()
			}
		}
	}
}

// pollActive pushes snapshots for jobs whose state changed since the last
// poll. It reports whether anything was sent, how many watched jobs are
// still non-terminal, and whether the poll itself succeeded.
func (h *StreamHandler) pollActive(r *http.Request, w http.ResponseWriter, flusher http.Flusher, userID string, seen map[string]models.StatusSnapshot) (bool, int, bool) {
	jobs, err := h.storage.JobStorage().ListJobs(r.Context(), &interfaces.ListOptions{UserID: userID})
	if err != nil {
		h.logger.Warn().Err(err).Msg("Aggregate stream poll failed")
		h.sendEvent(w, flusher, "error", map[string]string{"error": "status read failed, retrying"})
		return false, 0, false
	}

	changed := false
	active := 0
	for _, job := range jobs {
		if !job.IsTerminal() {
			active++
		}
		snap := job.Snapshot()
		prev, known := seen[job.ID]
		if known && !snap.Changed(prev) {
			continue
		}
		// Never replay a terminal snapshot the client already has
		if !known && job.IsTerminal() {
			seen[job.ID] = snap
			continue
		}
		h.sendEvent(w, flusher, "status", snap)
		seen[job.ID] = snap
		changed = true
	}
	return changed, active, true
}

// openStream sets SSE headers and returns the flusher, writing a retry
// hint so clients reconnect on their own after a drop.
func (h *StreamHandler) openStream(w http.ResponseWriter) (http.Flusher, bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		WriteError(w, http.StatusServiceUnavailable, "Streaming not supported")
		return nil, false
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	fmt.Fprintf(w, "retry: %d\n\n", h.config.Stream.RetryHintMs)
	flusher.Flush()
	return flusher, true
}

// sendTerminal emits the closing event for a finished job
func (h *StreamHandler) sendTerminal(w http.ResponseWriter, flusher http.Flusher, job *models.Job) {
	if job.Status == models.JobStatusFailed {
		h.sendEvent(w, flusher, "error", map[string]string{
			"job_id": job.ID,
			"error":  job.ErrorMessage,
		})
		return
	}
	h.sendEvent(w, flusher, "complete", map[string]interface{}{
		"job_id":          job.ID,
		"processing_time": job.ProcessingTime,
		"pdf_generated":   job.PDFGenerated,
		"audio_generated": job.AudioGenerated,
		"quiz_generated":  job.QuizGenerated,
	})
}

// sendEvent writes a single SSE event with a JSON payload
func (h *StreamHandler) sendEvent(w http.ResponseWriter, flusher http.Flusher, event string, data interface{}) {
	payload, err := json.Marshal(data)
	if err != nil {
		h.logger.Warn().Err(err).Str("event", event).Msg("Failed to marshal stream event")
		return
	}
	fmt.Fprintf(w, "event: %s\n", event)
	fmt.Fprintf(w, "data: %s\n\n", payload)
	flusher.Flush()
}
