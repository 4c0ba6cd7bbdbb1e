// Package server exposes question paper generation over HTTP.
package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"paper-generator/internal/models"
)

// MaxRequestBytes bounds the size of a generate request body
const MaxRequestBytes = 64 << 20

// generateFailedMessage is returned for every failed run; the cause is only logged
const generateFailedMessage = "Failed to generate paper"

// RunFunc runs the full pipeline over files and writes the document into workDir
type RunFunc func(ctx context.Context, files []string, workDir string) (*models.Result, error)

// Server serializes generation runs; only one run is in flight at a time
type Server struct {
	run     RunFunc
	workDir string
	logger  *logrus.Logger
	mu      sync.Mutex
}

// GenerateRequest carries base64 encoded PDF files
type GenerateRequest struct {
	Files []string `json:"files"`
}

// GenerateResponse carries the base64 encoded PDF paper
type GenerateResponse struct {
	ID        string   `json:"id"`
	PDF       string   `json:"pdf"`
	Questions []string `json:"questions"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// New creates a server whose per-run directories live under workDir
func New(run RunFunc, workDir string, logger *logrus.Logger) *Server {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if workDir == "" {
		workDir = os.TempDir()
	}
	return &Server{run: run, workDir: workDir, logger: logger}
}

// Router returns the HTTP routes
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(chimiddleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/generate", s.handleGenerate)
	})

	return r
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxRequestBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if len(req.Files) == 0 {
		writeError(w, http.StatusBadRequest, "no files uploaded")
		return
	}

	contents := make([][]byte, len(req.Files))
	for i, f := range req.Files {
		data, err := base64.StdEncoding.DecodeString(f)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("file %d is not valid base64: %v", i+1, err))
			return
		}
		contents[i] = data
	}

	runID := uuid.New()
	logger := s.logger.WithFields(logrus.Fields{"run_id": runID.String(), "files": len(contents)})

	res, err := s.generate(r.Context(), runID, contents)
	if err != nil {
		logger.WithError(err).Error("Generation failed")
		writeError(w, http.StatusInternalServerError, generateFailedMessage)
		return
	}

	logger.WithField("questions", len(res.Questions)).Info("Generation completed")
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) generate(ctx context.Context, runID uuid.UUID, contents [][]byte) (*GenerateResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Join(s.workDir, runID.String())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create work directory: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			s.logger.WithError(err).WithField("dir", dir).Warn("Failed to remove work directory")
		}
	}()

	files := make([]string, len(contents))
	for i, data := range contents {
		files[i] = filepath.Join(dir, fmt.Sprintf("input-%d.pdf", i+1))
		if err := os.WriteFile(files[i], data, 0o600); err != nil {
			return nil, fmt.Errorf("failed to store upload: %w", err)
		}
	}

	res, err := s.run(ctx, files, dir)
	if err != nil {
		return nil, err
	}
	if res.OutputPath == "" {
		return nil, errors.New("no document was rendered")
	}

	doc, err := os.ReadFile(res.OutputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read rendered paper: %w", err)
	}

	return &GenerateResponse{
		ID:        runID.String(),
		PDF:       base64.StdEncoding.EncodeToString(doc),
		Questions: res.Paper.Questions,
	}, nil
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.logger.WithFields(logrus.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"bytes":      ww.BytesWritten(),
			"duration":   time.Since(start).Round(time.Millisecond),
			"request_id": chimiddleware.GetReqID(r.Context()),
		}).Debug("Handled request")
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
