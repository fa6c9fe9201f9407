// Package httpapi exposes the review workflow over HTTP.
//
//	POST /api/review   run one submittal review
//	GET  /api/health   knowledge base readiness
//
// Other handlers may be mounted next to these with Server.Mount.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/custodia-labs/submittal-review/internal/adapters/driving/boundary"
	"github.com/custodia-labs/submittal-review/internal/core/domain"
	"github.com/custodia-labs/submittal-review/internal/core/ports/driving"
	"github.com/custodia-labs/submittal-review/internal/logger"
)

// maxRequestBytes bounds a review request body.
const maxRequestBytes = 1 << 20

// Health statuses.
const (
	StatusHealthy  = "healthy"
	StatusDegraded = "degraded"
)

// ErrMissingService is returned when a required service is not provided.
var ErrMissingService = errors.New("httpapi: knowledge and review services are required")

// HealthResponse is the body of GET /api/health.
type HealthResponse struct {
	Status string `json:"status"`
	domain.KnowledgeStatus
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error boundary.Failure `json:"error"`
}

// Server serves the review API.
type Server struct {
	knowledge driving.KnowledgeService
	review    driving.ReviewService
	mux       *http.ServeMux
}

// NewServer creates an API server.
func NewServer(knowledge driving.KnowledgeService, review driving.ReviewService) (*Server, error) {
	if knowledge == nil || review == nil {
		return nil, ErrMissingService
	}

	s := &Server{
		knowledge: knowledge,
		review:    review,
		mux:       http.NewServeMux(),
	}
	s.mux.HandleFunc("POST /api/review", s.handleReview)
	s.mux.HandleFunc("GET /api/health", s.handleHealth)
	return s, nil
}

// Mount serves h under pattern alongside the review API, e.g. an MCP
// transport at "/mcp". It must be called before Run.
func (s *Server) Mount(pattern string, h http.Handler) {
	s.mux.Handle(pattern, h)
}

// Handler returns the API handler with logging, CORS and panic recovery.
func (s *Server) Handler() http.Handler {
	return recoverPanics(logRequests(allowCORS(s.mux)))
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
// In-flight reviews get shutdownTimeout to finish.
func (s *Server) Run(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		httpServer.Shutdown(shutdownCtx) //nolint:errcheck
	}()

	logger.Info("Review API listening on %s", addr)
	err := httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) handleReview(w http.ResponseWriter, r *http.Request) {
	var req domain.SubmittalRequest
	body := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		writeFailure(w, &domain.ValidationError{Field: "body", Reason: decodeReason(err)})
		return
	}

	result, err := s.review.Review(r.Context(), req)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	status := s.knowledge.Status()
	resp := HealthResponse{Status: StatusDegraded, KnowledgeStatus: status}
	if status.Ready {
		resp.Status = StatusHealthy
	}
	writeJSON(w, http.StatusOK, resp)
}

func decodeReason(err error) string {
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxErr):
		return fmt.Sprintf("exceeds %d bytes", maxErr.Limit)
	case errors.Is(err, io.EOF):
		return "empty request body"
	default:
		return "malformed JSON: " + err.Error()
	}
}

func writeFailure(w http.ResponseWriter, err error) {
	f := boundary.Classify(err)
	if f.Status >= http.StatusInternalServerError {
		logger.Error("Review request failed: %v", err)
	}
	writeJSON(w, f.Status, ErrorResponse{Error: f})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("Writing response: %v", err)
	}
}
