// Package server exposes the denoise service over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"hush/internal/artifacts"
	"hush/internal/history"
	"hush/internal/jobs"
	"hush/internal/logging"
	"hush/internal/pipeline"
	"hush/internal/runner"
)

// Options collects the collaborators the server needs.
type Options struct {
	Bind           string
	Registry       *jobs.Registry
	Runner         *runner.Runner
	Artifacts      *artifacts.Store
	Ledger         *history.Store
	ModelName      string
	Version        string
	MaxUploadBytes int64
	Logger         *slog.Logger
}

// Server is the HTTP API front end.
type Server struct {
	opts    Options
	logger  *slog.Logger
	mux     *http.ServeMux
	httpSrv *http.Server

	listener net.Listener
}

// New builds the server and its route table.
func New(opts Options) (*Server, error) {
	if opts.Registry == nil || opts.Runner == nil || opts.Artifacts == nil {
		return nil, errors.New("server requires registry, runner, and artifact store")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 64 << 20
	}

	srv := &Server{
		opts:   opts,
		logger: logger.With(logging.String("component", "api-server")),
		mux:    http.NewServeMux(),
	}
	srv.mux.HandleFunc("/api/denoise", srv.handleDenoise)
	srv.mux.HandleFunc("/api/status/", srv.handleStatus)
	srv.mux.HandleFunc("/api/download/", srv.handleDownload)
	srv.mux.HandleFunc("/api/jobs/", srv.handleJob)
	srv.mux.HandleFunc("/api/metrics", srv.handleMetrics)
	srv.mux.HandleFunc("/api/health", srv.handleHealth)

	srv.httpSrv = &http.Server{
		Handler:           srv.mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

// Handler returns the route table for tests.
func (s *Server) Handler() http.Handler { return s.mux }

// Start begins serving on the configured bind address. The server shuts
// down when ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.opts.Bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.httpSrv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.httpSrv.Shutdown(shutdownCtx)
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

// Stop shuts the server down, waiting briefly for in-flight requests.
func (s *Server) Stop() {
	if s.httpSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.httpSrv.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

// Addr returns the bound listen address once Start has succeeded.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

type denoiseResponse struct {
	JobID          string `json:"job_id"`
	Status         string `json:"status"`
	CheckStatusURL string `json:"check_status_url"`
}

func (s *Server) handleDenoise(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "missing file upload")
		return
	}
	defer file.Close()

	filename := filepath.Base(header.Filename)
	ext := strings.ToLower(filepath.Ext(filename))
	if ext != ".wav" {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("unsupported file type %q, expected .wav", ext))
		return
	}

	id := s.opts.Registry.Create(filename)
	inputPath := s.opts.Artifacts.InputPath(id, ext)
	if err := saveUpload(inputPath, file); err != nil {
		s.opts.Registry.Delete(id)
		s.logger.Error("failed to store upload", logging.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to store upload")
		return
	}

	s.opts.Runner.Submit(context.WithoutCancel(r.Context()), runner.Submission{
		JobID:    id,
		Filename: filename,
		Request: pipeline.Request{
			InputPath:      inputPath,
			OutputPath:     s.opts.Artifacts.OutputPath(id),
			InputSpecPath:  s.opts.Artifacts.InputSpectrogramPath(id),
			OutputSpecPath: s.opts.Artifacts.OutputSpectrogramPath(id),
		},
		InputSpecURL:  "/api/jobs/" + id + "/spec/input",
		OutputSpecURL: "/api/jobs/" + id + "/spec/output",
	})

	s.logger.Info("job accepted",
		logging.String("job_id", id),
		logging.String("filename", filename))
	s.writeJSON(w, http.StatusAccepted, denoiseResponse{
		JobID:          id,
		Status:         string(jobs.StatusProcessing),
		CheckStatusURL: "/api/status/" + id,
	})
}

type statusResponse struct {
	JobID       string       `json:"job_id"`
	Filename    string       `json:"filename"`
	Status      string       `json:"status"`
	Progress    float64      `json:"progress"`
	Message     string       `json:"message"`
	Error       string       `json:"error,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
	Result      *jobs.Result `json:"result,omitempty"`
	DownloadURL string       `json:"download_url,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/api/status/")
	if id == "" || strings.Contains(id, "/") {
		s.writeError(w, http.StatusNotFound, "job not found")
		return
	}

	job, err := s.opts.Registry.Get(id)
	if err != nil {
		s.writeError(w, http.StatusNotFound, "job not found")
		return
	}

	payload := statusResponse{
		JobID:     job.ID,
		Filename:  job.Filename,
		Status:    string(job.Status),
		Progress:  job.Progress,
		Message:   job.Message,
		Error:     job.Error,
		CreatedAt: job.CreatedAt,
		Result:    job.Result,
	}
	if !job.CompletedAt.IsZero() {
		completed := job.CompletedAt
		payload.CompletedAt = &completed
	}
	if job.Status == jobs.StatusCompleted {
		payload.DownloadURL = "/api/download/" + job.ID
	}
	s.writeJSON(w, http.StatusOK, payload)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/api/download/")
	if id == "" || strings.Contains(id, "/") {
		s.writeError(w, http.StatusNotFound, "job not found")
		return
	}

	job, err := s.opts.Registry.Get(id)
	if err != nil {
		s.writeError(w, http.StatusNotFound, "job not found")
		return
	}
	if job.Status != jobs.StatusCompleted {
		s.writeError(w, http.StatusBadRequest, "job has not completed")
		return
	}

	outputPath := s.opts.Artifacts.OutputPath(id)
	if _, err := os.Stat(outputPath); err != nil {
		s.writeError(w, http.StatusNotFound, "output file missing")
		return
	}

	base := strings.TrimSuffix(job.Filename, filepath.Ext(job.Filename))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "denoised_"+base+".wav"))
	w.Header().Set("Content-Type", "audio/wav")
	http.ServeFile(w, r, outputPath)
}

// handleJob covers DELETE /api/jobs/{id} and GET /api/jobs/{id}/spec/{which}.
func (s *Server) handleJob(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
	parts := strings.Split(rest, "/")

	switch {
	case len(parts) == 1 && parts[0] != "":
		if r.Method != http.MethodDelete {
			s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		s.deleteJob(w, parts[0])
	case len(parts) == 3 && parts[1] == "spec":
		if r.Method != http.MethodGet {
			s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		s.serveSpectrogram(w, r, parts[0], parts[2])
	default:
		s.writeError(w, http.StatusNotFound, "not found")
	}
}

func (s *Server) deleteJob(w http.ResponseWriter, id string) {
	if _, err := s.opts.Registry.Get(id); err != nil {
		s.writeError(w, http.StatusNotFound, "job not found")
		return
	}
	if err := s.opts.Artifacts.RemoveJob(id); err != nil {
		s.logger.Warn("failed to remove job artifacts",
			logging.String("job_id", id),
			logging.Error(err))
	}
	s.opts.Registry.Delete(id)
	s.writeJSON(w, http.StatusOK, map[string]string{"job_id": id, "status": "deleted"})
}

func (s *Server) serveSpectrogram(w http.ResponseWriter, r *http.Request, id, which string) {
	var path string
	switch which {
	case "input":
		path = s.opts.Artifacts.InputSpectrogramPath(id)
	case "output":
		path = s.opts.Artifacts.OutputSpectrogramPath(id)
	default:
		s.writeError(w, http.StatusNotFound, "not found")
		return
	}
	if _, err := os.Stat(path); err != nil {
		s.writeError(w, http.StatusNotFound, "spectrogram not found")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	http.ServeFile(w, r, path)
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.opts.Ledger == nil {
		s.writeJSON(w, http.StatusOK, history.Aggregates{})
		return
	}
	agg, err := s.opts.Ledger.Aggregate(r.Context())
	if err != nil {
		s.logger.Error("metrics aggregation failed", logging.Error(err))
		s.writeError(w, http.StatusInternalServerError, "metrics unavailable")
		return
	}
	s.writeJSON(w, http.StatusOK, agg)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"model":   s.opts.ModelName,
		"version": s.opts.Version,
	})
}

func saveUpload(path string, src io.Reader) error {
	dst, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create upload file: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		_ = os.Remove(path)
		return fmt.Errorf("write upload file: %w", err)
	}
	return dst.Close()
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
