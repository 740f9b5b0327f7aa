// Package server exposes the upload API: document intake plus job
// status lookups. Everything past the 202 response happens in the
// queue workers.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/redactify/redactify/internal/logging"
	"github.com/redactify/redactify/internal/models"
	"github.com/redactify/redactify/internal/services"
	"github.com/redactify/redactify/internal/state"
)

// Server wraps the HTTP components of the upload API.
type Server struct {
	mux            *http.ServeMux
	upload         *services.UploadFunction
	store          state.Store
	maxUploadBytes int64
	log            zerolog.Logger
}

// New wires the routes and returns a ready-to-start server.
func New(upload *services.UploadFunction, store state.Store, maxUploadBytes int64) *Server {
	mux := http.NewServeMux()
	s := &Server{
		mux:            mux,
		upload:         upload,
		store:          store,
		maxUploadBytes: maxUploadBytes,
		log:            logging.WithComponent("server"),
	}

	mux.HandleFunc("/upload", s.handleUpload)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/jobs", s.handleJobList)
	mux.HandleFunc("/jobs/", s.handleJobStatus)

	return s
}

// Handler returns the route mux, mainly for tests.
func (s *Server) Handler() http.Handler { return s.mux }

// Start runs the HTTP server on the given address until the context is
// cancelled, then drains in-flight requests.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.mux}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Msg("upload API listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

type uploadResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	FileID  string `json:"file_id,omitempty"`
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeJSON(w, http.StatusRequestEntityTooLarge, uploadResponse{
				Message: fmt.Sprintf("file exceeds the %d byte upload limit", tooLarge.Limit),
			})
			return
		}
		s.writeJSON(w, http.StatusBadRequest, uploadResponse{Message: "multipart form must carry a 'file' field"})
		return
	}
	defer file.Close()

	job, err := s.upload.Process(r.Context(), header.Filename, file)
	if err != nil {
		status := http.StatusInternalServerError
		message := "upload failed"
		switch {
		case errors.Is(err, services.ErrUnsupportedType),
			errors.Is(err, services.ErrInvalidPDF),
			errors.Is(err, services.ErrEmptyFile):
			status = http.StatusBadRequest
			message = err.Error()
		default:
			s.log.Error().Err(err).Str("file", header.Filename).Msg("upload processing failed")
		}
		s.writeJSON(w, status, uploadResponse{Message: message})
		return
	}

	s.writeJSON(w, http.StatusAccepted, uploadResponse{
		Success: true,
		Message: "file accepted for processing",
		FileID:  job.JobID,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	fmt.Fprintln(w, "ok")
}

func (s *Server) handleJobList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	jobs, err := s.store.List(r.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("job listing failed")
		http.Error(w, "job listing failed", http.StatusInternalServerError)
		return
	}
	if jobs == nil {
		jobs = []*models.Job{}
	}
	s.writeJSON(w, http.StatusOK, jobs)
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	jobID := strings.TrimPrefix(r.URL.Path, "/jobs/")
	if jobID == "" || strings.Contains(jobID, "/") {
		http.Error(w, "missing job id", http.StatusBadRequest)
		return
	}

	job, err := s.store.Get(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, state.ErrNotFound) {
			http.Error(w, "job not found", http.StatusNotFound)
			return
		}
		s.log.Error().Err(err).Str("jobId", jobID).Msg("job lookup failed")
		http.Error(w, "job lookup failed", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, http.StatusOK, job)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn().Err(err).Msg("failed to write response")
	}
}
