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

// Package types holds the wire-format structs shared across the
// orchestrator's decision and protection pipeline, mirroring the
// platform's shared/types convention of a single package for
// cross-boundary data shapes.
package types

import "time"

// RouteClass is the cost/latency tier a request is routed to.
type RouteClass string

const (
	RouteMicro   RouteClass = "micro"
	RoutePlanner RouteClass = "planner"
	RouteDeep    RouteClass = "deep"
	RouteCache   RouteClass = "cache"
)

// Request is the immutable per-turn request accepted at ingress.
type Request struct {
	Version     string         `json:"v"`
	SessionID   string         `json:"session_id"`
	Text        string         `json:"text"`
	ForcedRoute RouteClass     `json:"force_route,omitempty"`
	Language    string         `json:"lang,omitempty"`
	Context     map[string]any `json:"context,omitempty"`
	Timestamp   time.Time      `json:"timestamp,omitempty"`
}

// RouteDecision is the router's (possibly overridden) output.
type RouteDecision struct {
	Class      RouteClass     `json:"class"`
	Confidence float64        `json:"confidence"`
	Reason     string         `json:"reason"`
	Features   map[string]any `json:"features,omitempty"`

	// BlockedByGuardian is set when the oracle demoted a deep route.
	BlockedByGuardian bool `json:"blocked_by_guardian,omitempty"`
}

// CacheEntry is a stored response payload plus tier metadata.
type CacheEntry struct {
	Payload        map[string]any `json:"payload"`
	CreatedAt      time.Time      `json:"created_at"`
	TTL            time.Duration  `json:"ttl"`
	Tier           string         `json:"tier"`
	CanonicalText  string         `json:"canonical_text,omitempty"`
	OriginalText   string         `json:"original_text,omitempty"`
	Intent         string         `json:"intent,omitempty"`
	ModelID        string         `json:"model_id,omitempty"`
	SchemaVersion  string         `json:"schema_version,omitempty"`
}

// PlanStep is one tool invocation in a Plan.
type PlanStep struct {
	ToolName string         `json:"tool_name"`
	Args     map[string]any `json:"args"`
	Reason   string         `json:"reason,omitempty"`
	Timeout  time.Duration  `json:"timeout,omitempty"`
}

// Plan is the planner driver's structured output before/after execution.
type Plan struct {
	Description      string         `json:"description"`
	Steps            []PlanStep     `json:"steps"`
	UserFacingResp   string         `json:"user_facing_response"`
	Guardrails       map[string]any `json:"guardrails,omitempty"`
}

// ErrorClass is the normalized failure taxonomy for a tool call.
type ErrorClass string

const (
	ErrClassNone      ErrorClass = ""
	ErrClassTimeout   ErrorClass = "timeout"
	ErrClass429       ErrorClass = "429"
	ErrClass5xx       ErrorClass = "5xx"
	ErrClassSchema    ErrorClass = "schema"
	ErrClassException ErrorClass = "exception"
	ErrClassOther     ErrorClass = "other"
)

// ToolCallRecord is the normalized outcome of one tool invocation.
type ToolCallRecord struct {
	NormalizedToolName string     `json:"normalized_tool_name"`
	OK                 bool       `json:"ok"`
	ErrorClass         ErrorClass `json:"error_class,omitempty"`
	LatencyMS          int64      `json:"latency_ms"`
}

// TurnEvent is the structured per-request record written to the turn log.
type TurnEvent struct {
	Version        string           `json:"version"`
	Timestamp      time.Time        `json:"timestamp"`
	TraceID        string           `json:"trace_id"`
	SessionID      string           `json:"session_id"`
	Route          RouteClass       `json:"route"`
	E2EMsFirst     int64            `json:"e2e_ms_first"`
	E2EMsFull      int64            `json:"e2e_ms_full"`
	RAMPeak        int64            `json:"ram_peak,omitempty"`
	ToolCalls      []ToolCallRecord `json:"tool_calls,omitempty"`
	EnergyWh       float64          `json:"energy_wh,omitempty"`
	OracleState    string           `json:"oracle_state"`
	PIIMasked      bool             `json:"pii_masked"`
	ConsentScopes  []string         `json:"consent_scopes,omitempty"`
	RAGStats       map[string]any   `json:"rag_stats,omitempty"`
	InputText      string           `json:"input_text"`
	OutputText     string           `json:"output_text"`
	Language       string           `json:"language,omitempty"`

	// Diagnostic fields carried in metadata on the HTTP response too.
	BlockedByGuardian bool   `json:"blocked_by_guardian,omitempty"`
	CacheHit          bool   `json:"cache_hit,omitempty"`
	CacheSource       string `json:"cache_source,omitempty"`
	FallbackUsed      bool   `json:"fallback_used,omitempty"`
	SchemaOK          bool   `json:"schema_ok,omitempty"`
	NLUSource         string `json:"nlu_source,omitempty"`
}
