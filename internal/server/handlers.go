package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker/v2"

	"docintel/internal/azauth"
	"docintel/internal/docintel"
	"docintel/internal/export"
	"docintel/internal/logger"
)

// multipartMemoryLimit is how much of a parsed form is held in memory before
// spilling to disk.
const multipartMemoryLimit = 32 << 20

// statusRecorder captures the response status for logging and metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// instrument wraps the mux with request-ID logging and metrics.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.NewString()
		w.Header().Set("X-Request-Id", requestID)

		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		started := time.Now()

		s.metrics.requestInFlight.Inc()
		next.ServeHTTP(recorder, r)
		s.metrics.requestInFlight.Dec()

		duration := time.Since(started)
		s.metrics.ObserveRequest(r.Method, r.URL.Path, recorder.status, duration)

		requestLogger := logger.WithRequestID(requestID)
		requestLogger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", duration).
			Msg("Request handled")
	})
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(indexHTML)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	result, ok := s.analyzeUpload(w, r)
	if !ok {
		return
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if r.URL.Query().Get("download") != "" {
		name := strings.TrimSuffix(filepath.Base(result.DocumentMetadata.FileName),
			filepath.Ext(result.DocumentMetadata.FileName))
		w.Header().Set("Content-Disposition",
			fmt.Sprintf("attachment; filename=%q", "analysis_"+name+".json"))
	}
	w.Write(data)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	result, ok := s.analyzeUpload(w, r)
	if !ok {
		return
	}

	workbook, err := export.TablesWorkbook(result)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	name := strings.TrimSuffix(filepath.Base(result.DocumentMetadata.FileName),
		filepath.Ext(result.DocumentMetadata.FileName))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name+".xlsx"))
	if err := workbook.Write(w); err != nil {
		s.log.Error().Err(err).Msg("Failed to stream workbook")
	}
}

// analyzeUpload reads the multipart upload and runs the analysis behind the
// rate limiter and the upstream circuit breaker. On failure it writes the
// error response and returns ok=false.
func (s *Server) analyzeUpload(w http.ResponseWriter, r *http.Request) (*docintel.NormalizedResult, bool) {
	if !s.limiter.Allow() {
		s.writeError(w, http.StatusTooManyRequests, errors.New("too many analysis requests, slow down"))
		return nil, false
	}

	r.Body = http.MaxBytesReader(w, r.Body, docintel.MaxUploadBytes+multipartMemoryLimit)
	if err := r.ParseMultipartForm(multipartMemoryLimit); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid upload: %w", err))
		return nil, false
	}

	file, header, err := r.FormFile("document")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("missing document field: %w", err))
		return nil, false
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("failed to read upload: %w", err))
		return nil, false
	}

	doc := docintel.UploadedDocument{
		Data:        data,
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
	}

	result, err := s.breaker.Execute(func() (*docintel.NormalizedResult, error) {
		return s.analyzer.Analyze(r.Context(), doc)
	})
	if err != nil {
		s.metrics.ObserveAnalysis("error")
		s.writeError(w, statusForError(err), err)
		return nil, false
	}

	s.metrics.ObserveAnalysis("success")
	return result, true
}

// statusForError maps the analysis error taxonomy onto HTTP statuses.
func statusForError(err error) int {
	switch {
	case errors.Is(err, docintel.ErrEmptyInput),
		errors.Is(err, docintel.ErrUnsupportedType),
		errors.Is(err, docintel.ErrEmptyFile),
		errors.Is(err, docintel.ErrFileTooLarge):
		return http.StatusBadRequest
	case errors.Is(err, azauth.ErrMissingCredential),
		errors.Is(err, azauth.ErrCredentialUnavailable),
		errors.Is(err, docintel.ErrMissingEndpoint):
		return http.StatusInternalServerError
	case errors.Is(err, gobreaker.ErrOpenState),
		errors.Is(err, gobreaker.ErrTooManyRequests):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.log.Error().Err(err).Int("status", status).Msg("Request failed")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
