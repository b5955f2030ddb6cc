package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/socratic/internal/common"
	"github.com/ternarybob/socratic/internal/queue"
)

type APIHandler struct {
	queueMgr *queue.BadgerManager
	logger   arbor.ILogger
}

func NewAPIHandler(queueMgr *queue.BadgerManager) *APIHandler {
	return &APIHandler{
		queueMgr: queueMgr,
		logger:   common.GetLogger(),
	}
}

// VersionHandler returns version information
func (h *APIHandler) VersionHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{
		"version":    common.GetVersion(),
		"build":      common.GetBuild(),
		"git_commit": common.GetGitCommit(),
	})
}

// HealthHandler returns health check status including queue depth
func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	queueLength := 0
	if h.queueMgr != nil {
		if length, err := h.queueMgr.Length(r.Context()); err == nil {
			queueLength = length
		} else {
			h.logger.Warn().Err(err).Msg("Failed to read queue length for health check")
		}
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":       "ok",
		"queue_length": queueLength,
	})
}

// NotFoundHandler handles 404 errors with JSON response
func (h *APIHandler) NotFoundHandler(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusNotFound, map[string]interface{}{
		"error":   "Not Found",
		"path":    r.URL.Path,
		"message": "The requested endpoint does not exist",
	})
}
