// Copyright 2025 AxonFlow
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package httpapi exposes the orchestrator's turn pipeline and its
// monitoring surface over HTTP, built the same way the platform's
// orchestrator.Run wires its router: a gorilla/mux.Router behind
// rs/cors, route groups registered with .Methods(), and a
// encode-or-log-the-encode-error response helper. Unlike
// orchestrator.Run (package-level state, one giant init), Server is a
// struct so tests can construct it directly against fakes.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/DanielWarg/alice-orchestrator/alice/breaker"
	"github.com/DanielWarg/alice-orchestrator/alice/cache"
	"github.com/DanielWarg/alice-orchestrator/alice/errs"
	"github.com/DanielWarg/alice-orchestrator/alice/oracle"
	"github.com/DanielWarg/alice-orchestrator/alice/pipeline"
	"github.com/DanielWarg/alice-orchestrator/alice/quota"
	"github.com/DanielWarg/alice-orchestrator/alice/tools"
	"github.com/DanielWarg/alice-orchestrator/alice/types"
	"github.com/DanielWarg/alice-orchestrator/shared/logger"
)

// MemoryClient is the subset of the memory service's contract (spec.md
// §6.2) the /api/memory/* handlers need. Production wiring points this
// at an HTTP client; tests can stub it directly.
type MemoryClient interface {
	Store(ctx context.Context, sessionID string, payload map[string]any) error
	Query(ctx context.Context, sessionID, query string) ([]map[string]any, error)
	Forget(ctx context.Context, sessionID string, scope string) error
}

// Server holds every dependency the HTTP surface needs to serve
// requests and the monitoring endpoints.
type Server struct {
	pipeline *pipeline.Pipeline
	oracle   *oracle.Client
	cache    *cache.Cache
	quota    *quota.Tracker
	breakers *breaker.Registry
	toolsReg *tools.Registry
	memory   MemoryClient
	log      *logger.Logger
}

// New creates a Server. memory may be nil, in which case the
// /api/memory/* endpoints return 503.
func New(p *pipeline.Pipeline, o *oracle.Client, c *cache.Cache, q *quota.Tracker, br *breaker.Registry, tr *tools.Registry, mem MemoryClient, log *logger.Logger) *Server {
	return &Server{pipeline: p, oracle: o, cache: c, quota: q, breakers: br, toolsReg: tr, memory: mem, log: log}
}

// Router builds the gorilla/mux router with CORS applied, matching the
// platform's Run()'s r := mux.NewRouter() / c := cors.New(...) /
// c.Handler(r) sequence.
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/chat", s.handleChat).Methods("POST")
	r.HandleFunc("/ingest", s.handleChat).Methods("POST")
	r.HandleFunc("/run", s.handleChat).Methods("POST")

	r.HandleFunc("/tools", s.handleListTools).Methods("GET")
	r.HandleFunc("/health", s.handleHealth).Methods("GET")
	r.HandleFunc("/ready", s.handleReady).Methods("GET")

	r.HandleFunc("/api/memory/store", s.handleMemoryStore).Methods("POST")
	r.HandleFunc("/api/memory/query", s.handleMemoryQuery).Methods("POST")
	r.HandleFunc("/api/memory/forget", s.handleMemoryForget).Methods("POST")

	r.HandleFunc("/api/monitoring/health", s.handleMonitoringHealth).Methods("GET")
	r.HandleFunc("/api/monitoring/cache", s.handleMonitoringCache).Methods("GET")
	r.HandleFunc("/api/monitoring/routing", s.handleMonitoringRouting).Methods("GET")
	r.HandleFunc("/api/monitoring/circuit-breakers", s.handleMonitoringBreakers).Methods("GET")
	r.HandleFunc("/api/monitoring/performance", s.handleMonitoringPerformance).Methods("GET")

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})
	return c.Handler(r)
}

// apiError is the error envelope shape from spec.md §6.1/§7.
type apiError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    string `json:"details,omitempty"`
	TraceID    string `json:"trace_id,omitempty"`
	RetryAfter int    `json:"retry_after,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeAPIError(w http.ResponseWriter, status int, code, message, traceID string, retryAfter int) {
	writeJSON(w, status, map[string]apiError{"error": {Code: code, Message: message, TraceID: traceID, RetryAfter: retryAfter}})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req types.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIError(w, http.StatusBadRequest, string(errs.ClassValidation), "invalid request body", "", 0)
		return
	}
	if req.Text == "" {
		writeAPIError(w, http.StatusBadRequest, string(errs.ClassValidation), "text is required", "", 0)
		return
	}
	if req.Version == "" {
		req.Version = "1"
	}
	if req.Timestamp.IsZero() {
		req.Timestamp = time.Now()
	}

	resp, err := s.pipeline.Run(r.Context(), req)
	if err != nil {
		if ae, ok := err.(*errs.Error); ok {
			w.Header().Set("X-Trace-Id", resp.TraceID)
			if ae.Class.Surfaces() {
				writeAPIError(w, ae.Class.HTTPStatus(), string(ae.Class), ae.Message, resp.TraceID, ae.RetryAfter)
				return
			}
			// security_requires_confirmation and similar classes still
			// surface a 200 with the confirmation payload attached.
			writeJSON(w, http.StatusOK, chatResponse(resp))
			return
		}
		writeAPIError(w, http.StatusInternalServerError, string(errs.ClassException), err.Error(), resp.TraceID, 0)
		return
	}

	w.Header().Set("X-Trace-Id", resp.TraceID)
	w.Header().Set("X-Route", string(resp.Route))
	w.Header().Set("X-Intent", resp.Intent)
	w.Header().Set("X-Intent-Confidence", formatFloat(resp.IntentConfidence))
	w.Header().Set("X-Route-Hint", string(resp.RouteHint))
	writeJSON(w, http.StatusOK, chatResponse(resp))
}

func chatResponse(resp pipeline.Response) map[string]any {
	return map[string]any{
		"trace_id":          resp.TraceID,
		"session_id":        resp.SessionID,
		"text":              resp.Text,
		"model_used":        resp.ModelUsed,
		"route":             resp.Route,
		"route_hint":        resp.RouteHint,
		"intent":            resp.Intent,
		"intent_confidence": resp.IntentConfidence,
		"latency_ms":        resp.LatencyMS,
		"cache_hit":         resp.CacheHit,
		"requires_confirm":  resp.RequiresConfirm,
		"metadata":          resp.Metadata,
	}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func (s *Server) handleListTools(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"tools": s.toolsReg.Names()})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "healthy", "service": "alice-orchestrator", "timestamp": time.Now().UTC()})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	snap := s.oracle.Get(r.Context())
	if !oracle.Admit(snap) {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"ready": false, "oracle_state": snap.State})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ready": true, "oracle_state": snap.State})
}

type memoryStoreRequest struct {
	SessionID string         `json:"session_id"`
	Payload   map[string]any `json:"payload"`
}

func (s *Server) handleMemoryStore(w http.ResponseWriter, r *http.Request) {
	if s.memory == nil {
		writeAPIError(w, http.StatusServiceUnavailable, string(errs.ClassException), "memory service not configured", "", 0)
		return
	}
	var req memoryStoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIError(w, http.StatusBadRequest, string(errs.ClassValidation), "invalid request body", "", 0)
		return
	}
	if err := s.memory.Store(r.Context(), req.SessionID, req.Payload); err != nil {
		writeAPIError(w, http.StatusInternalServerError, string(errs.ClassException), err.Error(), "", 0)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"stored": true})
}

type memoryQueryRequest struct {
	SessionID string `json:"session_id"`
	Query     string `json:"query"`
}

func (s *Server) handleMemoryQuery(w http.ResponseWriter, r *http.Request) {
	if s.memory == nil {
		writeAPIError(w, http.StatusServiceUnavailable, string(errs.ClassException), "memory service not configured", "", 0)
		return
	}
	var req memoryQueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIError(w, http.StatusBadRequest, string(errs.ClassValidation), "invalid request body", "", 0)
		return
	}
	results, err := s.memory.Query(r.Context(), req.SessionID, req.Query)
	if err != nil {
		writeAPIError(w, http.StatusInternalServerError, string(errs.ClassException), err.Error(), "", 0)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

type memoryForgetRequest struct {
	SessionID string `json:"session_id"`
	Scope     string `json:"scope"`
}

func (s *Server) handleMemoryForget(w http.ResponseWriter, r *http.Request) {
	if s.memory == nil {
		writeAPIError(w, http.StatusServiceUnavailable, string(errs.ClassException), "memory service not configured", "", 0)
		return
	}
	var req memoryForgetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIError(w, http.StatusBadRequest, string(errs.ClassValidation), "invalid request body", "", 0)
		return
	}
	if err := s.memory.Forget(r.Context(), req.SessionID, req.Scope); err != nil {
		writeAPIError(w, http.StatusInternalServerError, string(errs.ClassException), err.Error(), "", 0)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"forgotten": true})
}

func (s *Server) handleMonitoringHealth(w http.ResponseWriter, r *http.Request) {
	snap := s.oracle.Get(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"oracle_state": snap.State,
		"ram_pct":      snap.RAMPct,
		"cpu_pct":      snap.CPUPct,
		"polled_at":    snap.PolledAt,
	})
}

func (s *Server) handleMonitoringCache(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"configured": s.cache != nil})
}

func (s *Server) handleMonitoringRouting(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"micro_share": s.quota.MicroShare(), "over_cap": s.quota.OverCap()})
}

func (s *Server) handleMonitoringBreakers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"breakers": s.breakers.All()})
}

func (s *Server) handleMonitoringPerformance(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"uptime": time.Since(startedAt).String()})
}

var startedAt = time.Now()

// newRequestID is kept for handlers that need a correlation ID before
// the pipeline assigns a trace ID of its own (e.g. rejected-at-decode
// errors).
func newRequestID() string { return uuid.NewString() }
