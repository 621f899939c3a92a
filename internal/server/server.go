// Package server exposes the analysis pipeline over HTTP for the portal's
// frontend: enqueue, status, retry and queue statistics.
package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/iwealthdemo/asset-management-workflow-sub001/pkg/core"
	"github.com/iwealthdemo/asset-management-workflow-sub001/pkg/service"
)

// Server mounts the analysis API.
type Server struct {
	svc *service.Service
	log *slog.Logger
}

func New(svc *service.Service, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{svc: svc, log: logger}
}

// Routes returns the chi router with all analysis endpoints mounted.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealthz)
	r.Route("/api", func(r chi.Router) {
		r.Route("/documents/{documentID}/analysis", func(r chi.Router) {
			r.Post("/", s.handleEnqueue)
			r.Get("/", s.handleStatus)
			r.Post("/retry", s.handleRetry)
		})
		r.Get("/analysis/stats", s.handleStats)
	})
	return r
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type enqueueBody struct {
	OwnerType   string `json:"owner_type,omitempty"`
	OwnerID     string `json:"owner_id,omitempty"`
	Priority    string `json:"priority,omitempty"`
	MaxAttempts int    `json:"max_attempts,omitempty"`
}

type jobResponse struct {
	JobID      string    `json:"job_id"`
	DocumentID string    `json:"document_id"`
	Status     string    `json:"status"`
	Priority   string    `json:"priority"`
	CreatedAt  time.Time `json:"created_at"`
}

func (s *Server) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	var body enqueueBody
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	job, err := s.svc.Enqueue(r.Context(), service.EnqueueRequest{
		DocumentID:  chi.URLParam(r, "documentID"),
		OwnerType:   body.OwnerType,
		OwnerID:     body.OwnerID,
		Priority:    body.Priority,
		MaxAttempts: body.MaxAttempts,
	})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, jobResponse{
		JobID:      job.ID,
		DocumentID: job.DocumentID,
		Status:     string(job.Status),
		Priority:   job.Priority.String(),
		CreatedAt:  job.CreatedAt,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	report, err := s.svc.JobStatus(r.Context(), chi.URLParam(r, "documentID"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleRetry(w http.ResponseWriter, r *http.Request) {
	job, err := s.svc.Retry(r.Context(), chi.URLParam(r, "documentID"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, jobResponse{
		JobID:      job.ID,
		DocumentID: job.DocumentID,
		Status:     string(job.Status),
		Priority:   job.Priority.String(),
		CreatedAt:  job.CreatedAt,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.svc.Stats(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}

// writeServiceError maps domain errors onto HTTP statuses.
func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case core.IsValidation(err):
		s.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, core.ErrDocumentNotFound), errors.Is(err, core.ErrNoJobForDocument):
		s.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, core.ErrAnalysisInProgress), errors.Is(err, core.ErrRetryNotAllowed):
		s.writeError(w, http.StatusConflict, err.Error())
	default:
		s.log.Error("server.internal_error", "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn("server.encode_failed", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Info("http.request",
			"req_id", middleware.GetReqID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
	})
}
