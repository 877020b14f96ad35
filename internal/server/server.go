// Package server exposes the engine's operations over HTTP.
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/calyx-ai/memory-engine/internal/errs"
	"github.com/calyx-ai/memory-engine/internal/ingest"
	"github.com/calyx-ai/memory-engine/internal/model"
	"github.com/calyx-ai/memory-engine/internal/propagation"
	"github.com/calyx-ai/memory-engine/internal/retrieval"
)

// Server routes HTTP requests to the engine.
type Server struct {
	ingest      *ingest.Service
	retrieval   *retrieval.Engine
	propagation *propagation.Engine
	log         *slog.Logger
}

// New builds the HTTP server.
func New(ing *ingest.Service, ret *retrieval.Engine, prop *propagation.Engine, log *slog.Logger) *Server {
	return &Server{ingest: ing, retrieval: ret, propagation: prop, log: log}
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/ingest", s.handleIngest)
	mux.HandleFunc("POST /v1/search", s.handleSearch)
	mux.HandleFunc("POST /v1/propagate", s.handlePropagate)
	mux.HandleFunc("POST /v1/patterns", s.handlePatterns)
	mux.HandleFunc("POST /v1/pollinate", s.handlePollinate)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	return s.withRequestLog(mux)
}

func (s *Server) withRequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		w.Header().Set("X-Request-Id", reqID)
		s.log.Debug("request", "id", reqID, "method", r.Method, "path", r.URL.Path)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var d ingest.ThreadDescriptor
	if err := json.NewDecoder(r.Body).Decode(&d); err != nil {
		s.writeError(w, errs.Validation("invalid request body: %v", err))
		return
	}

	res, err := s.ingest.Ingest(r.Context(), d)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

type searchRequest struct {
	Query         string `json:"query"`
	IntentContext string `json:"intentContext,omitempty"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, errs.Validation("invalid request body: %v", err))
		return
	}

	res, err := s.retrieval.Search(r.Context(), req.Query, req.IntentContext)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

type propagateRequest struct {
	InsightPackage model.InsightPackage `json:"insightPackage"`
	SourceAppID    string               `json:"sourceAppId"`
	TargetApps     []string             `json:"targetApps,omitempty"`
}

func (s *Server) handlePropagate(w http.ResponseWriter, r *http.Request) {
	var req propagateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, errs.Validation("invalid request body: %v", err))
		return
	}

	deliveries, err := s.propagation.Propagate(r.Context(), req.InsightPackage, req.SourceAppID, req.TargetApps)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"communications": deliveries})
}

type patternsRequest struct {
	AppID string `json:"appId"`
	Topic string `json:"topic"`
	Limit int    `json:"limit,omitempty"`
}

func (s *Server) handlePatterns(w http.ResponseWriter, r *http.Request) {
	var req patternsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, errs.Validation("invalid request body: %v", err))
		return
	}

	matches, err := s.propagation.RequestPatterns(r.Context(), req.AppID, req.Topic, req.Limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"patterns": matches})
}

type pollinateRequest struct {
	AppID   string `json:"appId"`
	Concept string `json:"concept"`
}

func (s *Server) handlePollinate(w http.ResponseWriter, r *http.Request) {
	var req pollinateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, errs.Validation("invalid request body: %v", err))
		return
	}

	res, err := s.propagation.CrossPollinate(r.Context(), req.AppID, req.Concept)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errs.IsValidation(err):
		status = http.StatusBadRequest
	case errs.IsNotFound(err):
		status = http.StatusNotFound
	default:
		s.log.Error("request failed", "error", err)
	}
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}
