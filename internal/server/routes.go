package server

import (
	"net/http"
	"strings"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// API routes - Document processing
	mux.HandleFunc("/api/process", s.app.JobHandler.SubmitHandler) // POST - submit document

	// API routes - Jobs
	mux.HandleFunc("/api/jobs", s.app.JobHandler.ListJobsHandler)
	mux.HandleFunc("/api/jobs/", s.handleJobRoutes) // Handles /api/jobs/{id} and subpaths

	// API routes - Aggregate status stream
	mux.HandleFunc("/api/stream", s.app.StreamHandler.StreamAllHandler)

	// API routes - System
	mux.HandleFunc("/api/version", s.app.APIHandler.VersionHandler)
	mux.HandleFunc("/api/health", s.app.APIHandler.HealthHandler)

	// 404 handler for unmatched API routes
	mux.HandleFunc("/api/", s.app.APIHandler.NotFoundHandler)

	return mux
}

// handleJobRoutes routes /api/jobs/{id} requests and their subpaths to
// the appropriate handler.
func (s *Server) handleJobRoutes(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
	if rest == "" {
		s.app.JobHandler.ListJobsHandler(w, r)
		return
	}

	jobID, sub, _ := strings.Cut(rest, "/")
	if jobID == "" {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}

	// GET /api/jobs/stream mirrors /api/stream for dashboard clients
	if jobID == "stream" && sub == "" {
		s.app.StreamHandler.StreamAllHandler(w, r)
		return
	}

	switch sub {
	case "":
		// GET or DELETE /api/jobs/{id}
		switch r.Method {
		case "GET":
			s.app.JobHandler.GetJobHandler(w, r, jobID)
		case "DELETE":
			s.app.JobHandler.DeleteJobHandler(w, r, jobID)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	case "stream":
		// GET /api/jobs/{id}/stream
		s.app.StreamHandler.StreamJobHandler(w, r, jobID)
	case "pdf":
		// GET /api/jobs/{id}/pdf
		s.app.JobHandler.DownloadPDFHandler(w, r, jobID)
	case "audio":
		// GET /api/jobs/{id}/audio
		s.app.JobHandler.DownloadAudioHandler(w, r, jobID)
	case "quiz":
		// GET /api/jobs/{id}/quiz
		s.app.JobHandler.GetQuizHandler(w, r, jobID)
	default:
		http.Error(w, "Not found", http.StatusNotFound)
	}
}
