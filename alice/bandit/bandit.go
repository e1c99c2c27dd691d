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

// Package bandit is an optional exploration client: for a small,
// deterministic canary share of sessions it asks a remote bandit
// service for a routing/tool suggestion instead of the rule-based
// router, then reports back a reward once the turn completes. Modeled
// on the platform's lightweight SendRequest/timeout HTTP client shape
// in orchestrator/llm/provider.go, narrowed to the bandit service's
// tiny contract.
package bandit

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"net/http"
	"time"
)

// Suggestion is a bandit-proposed override for the rule-based decision.
type Suggestion struct {
	RouteClass string
	ToolName   string
	Method     string // "bandit" or "error_fallback"
}

// Client is a thin HTTP client for the exploration service.
type Client struct {
	baseURL     string
	http        *http.Client
	enabled     bool
	canaryShare float64
}

// New creates a bandit Client. When enabled is false, Sample always
// reports no suggestion and callers should use the rule-based router.
func New(baseURL string, enabled bool, canaryShare float64, timeout time.Duration) *Client {
	return &Client{baseURL: baseURL, http: &http.Client{Timeout: timeout}, enabled: enabled, canaryShare: canaryShare}
}

// InCanary deterministically hashes sessionID into [0,1) and reports
// whether it falls within the configured canary share.
func InCanary(sessionID string, canaryShare float64) bool {
	if canaryShare <= 0 {
		return false
	}
	sum := sha256.Sum256([]byte(sessionID))
	bucket := binary.BigEndian.Uint32(sum[:4])
	frac := float64(bucket) / float64(^uint32(0))
	return frac < canaryShare
}

// Sample asks the bandit service for a suggestion for this session. It
// fails open: any error, including the ~40ms timeout, yields a
// Suggestion with Method "error_fallback" and the caller should fall
// back to the rule-based router.
func (c *Client) Sample(ctx context.Context, sessionID, text string) (Suggestion, bool) {
	if !c.enabled || !InCanary(sessionID, c.canaryShare) {
		return Suggestion{}, false
	}

	reqBody, err := json.Marshal(map[string]any{"session_id": sessionID, "text": text})
	if err != nil {
		return Suggestion{Method: "error_fallback"}, false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/bandit/sample", bytes.NewReader(reqBody))
	if err != nil {
		return Suggestion{Method: "error_fallback"}, false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return Suggestion{Method: "error_fallback"}, false
	}
	defer resp.Body.Close()

	var body struct {
		RouteClass string `json:"route_class"`
		ToolName   string `json:"tool_name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Suggestion{Method: "error_fallback"}, false
	}

	return Suggestion{RouteClass: body.RouteClass, ToolName: body.ToolName, Method: "bandit"}, true
}

// Reward posts the outcome of a bandit-influenced turn back to the
// service so it can update its policy. Failures are swallowed: reward
// reporting must never affect the response already sent to the user.
func (c *Client) Reward(ctx context.Context, sessionID string, reward float64) {
	if !c.enabled || c.baseURL == "" {
		return
	}

	reqBody, err := json.Marshal(map[string]any{"session_id": sessionID, "reward": reward})
	if err != nil {
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/bandit/reward", bytes.NewReader(reqBody))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return
	}
	resp.Body.Close()
}
