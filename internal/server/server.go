// Package server exposes the ingestion and retrieval pipelines over HTTP.
//
// Documents are addressed as /v1/documents/{name}/... with name path-escaped
// as a single segment, so "books/a.pdf" is /v1/documents/books%2Fa.pdf/pages.
// The create response carries that path.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"page-rag/internal/metrics"
	"page-rag/internal/models"
	"page-rag/internal/rag"
	"page-rag/internal/table"
)

const (
	maxBodySize     = 8 << 20
	shutdownTimeout = 10 * time.Second
)

type Server struct {
	pipeline *rag.Pipeline
	mux      *http.ServeMux
}

type createRequest struct {
	DocumentName string `json:"document_name"`
}

type createResponse struct {
	DocumentName string `json:"document_name"`
	TableID      string `json:"table_id"`
	Path         string `json:"path"`
}

type pageRequest struct {
	Text    string `json:"text"`
	PageNum int32  `json:"page_num"`
}

type matchRequest struct {
	Query string `json:"query"`
}

type askRequest struct {
	Question string `json:"question"`
}

type ingestResponse struct {
	models.IngestResult
	Errors []string `json:"errors,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func New(pipeline *rag.Pipeline) *Server {
	s := &Server{pipeline: pipeline, mux: http.NewServeMux()}

	s.mux.HandleFunc("POST /v1/documents", s.handleCreate)
	s.mux.HandleFunc("POST /v1/documents/{name}/pages", s.handleEmbedPage)
	s.mux.HandleFunc("POST /v1/documents/{name}/match", s.handleMatch)
	s.mux.HandleFunc("POST /v1/documents/{name}/ask", s.handleAsk)
	s.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})
	s.mux.Handle("GET /metrics", promhttp.Handler())
	return s
}

func (s *Server) Handler() http.Handler {
	return metrics.Middleware(s.mux)
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("Server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if !decode(w, r, &req) {
		return
	}
	if req.DocumentName == "" {
		writeError(w, http.StatusBadRequest, errors.New("document_name is required"))
		return
	}
	if err := s.pipeline.CreateTable(r.Context(), req.DocumentName); err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, createResponse{
		DocumentName: req.DocumentName,
		TableID:      table.ID(req.DocumentName),
		Path:         "/v1/documents/" + url.PathEscape(req.DocumentName),
	})
}

func (s *Server) handleEmbedPage(w http.ResponseWriter, r *http.Request) {
	var req pageRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := s.pipeline.EmbedPage(r.Context(), r.PathValue("name"), req.Text, req.PageNum)
	if err != nil {
		writeFailure(w, err)
		return
	}

	resp := ingestResponse{IngestResult: res}
	for _, e := range res.Errors {
		resp.Errors = append(resp.Errors, e.Error())
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleMatch(w http.ResponseWriter, r *http.Request) {
	var req matchRequest
	if !decode(w, r, &req) {
		return
	}
	top, err := s.pipeline.TopMatch(r.Context(), r.PathValue("name"), req.Query)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, top)
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if !decode(w, r, &req) {
		return
	}
	answer, err := s.pipeline.Ask(r.Context(), r.PathValue("name"), req.Question)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, answer)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Errorf("request body too large (max %d bytes)", maxBodySize))
			return false
		}
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid JSON: %w", err))
		return false
	}
	return true
}

// statusFor maps pipeline errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrTableNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrTableExists):
		return http.StatusConflict
	case errors.Is(err, models.ErrEmptyResult), errors.Is(err, models.ErrSchemaMismatch):
		return http.StatusUnprocessableEntity
	case errors.Is(err, models.ErrEmbeddingFailed):
		return http.StatusBadGateway
	case errors.Is(err, rag.ErrNoAnswerer):
		return http.StatusNotImplemented
	case errors.Is(err, models.ErrConnectionUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeFailure(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Int("status", status).Msg("Request failed")
	} else {
		log.Debug().Err(err).Int("status", status).Msg("Request rejected")
	}
	writeError(w, status, err)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("Failed to write response")
	}
}
