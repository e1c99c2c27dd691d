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

// Package nlu is a thin client for the remote NLU service, wrapped in
// a circuit breaker and backed by a keyword fallback classifier so a
// slow or down NLU dependency never blocks the pipeline (spec.md
// §4.9's fail-open NLU parse). Grounded on the platform's breaker-
// wrapped HTTP driver shape in orchestrator/llm/sdk/retry.go.
package nlu

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"regexp"
	"time"

	"github.com/DanielWarg/alice-orchestrator/alice/breaker"
	"github.com/DanielWarg/alice-orchestrator/alice/types"
)

// Result is the orchestrator-facing NLU outcome, whether it came from
// the remote service or the keyword fallback.
type Result struct {
	Intent     string
	Confidence float64
	RouteHint  types.RouteClass
	Source     string // "remote" or "keyword_fallback"
}

// Client calls the remote NLU service, falling back to keyword
// classification on timeout, error, or an open circuit.
type Client struct {
	baseURL  string
	http     *http.Client
	breakers *breaker.Registry
}

const breakerName = "nlu_service"

// New creates an NLU Client. An empty baseURL means the service is
// unconfigured and every call falls back to the keyword classifier.
func New(baseURL string, timeout time.Duration, breakers *breaker.Registry) *Client {
	return &Client{baseURL: baseURL, http: &http.Client{Timeout: timeout}, breakers: breakers}
}

// Parse calls the remote NLU service under its circuit breaker;
// failures of any kind fall back to keyword classification.
func (c *Client) Parse(ctx context.Context, text, lang, sessionID string) Result {
	if c.baseURL == "" {
		return fallback(text)
	}

	res, err := c.breakers.Execute(breakerName, func() (any, error) {
		return c.call(ctx, text, lang, sessionID)
	})
	if err != nil {
		return fallback(text)
	}

	r, ok := res.(Result)
	if !ok {
		return fallback(text)
	}
	return r
}

func (c *Client) call(ctx context.Context, text, lang, sessionID string) (Result, error) {
	reqBody, err := json.Marshal(map[string]any{
		"v":          "1",
		"text":       text,
		"lang":       lang,
		"session_id": sessionID,
	})
	if err != nil {
		return Result{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/nlu/parse", bytes.NewReader(reqBody))
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return Result{}, err
	}
	defer resp.Body.Close()

	var body struct {
		Intent struct {
			Label      string  `json:"label"`
			Confidence float64 `json:"confidence"`
		} `json:"intent"`
		RouteHint string `json:"route_hint"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Result{}, err
	}

	return Result{
		Intent:     body.Intent.Label,
		Confidence: body.Intent.Confidence,
		RouteHint:  types.RouteClass(body.RouteHint),
		Source:     "remote",
	}, nil
}

var greetingPattern = regexp.MustCompile(`(?i)\b(hej|hallå|hi|hello|hey)\b`)
var bookingPattern = regexp.MustCompile(`(?i)\b(boka|book|möte|meeting)\b`)
var weatherPattern = regexp.MustCompile(`(?i)\b(väder|weather)\b`)

// fallback classifies text with a small keyword table when the remote
// NLU service cannot be reached.
func fallback(text string) Result {
	switch {
	case greetingPattern.MatchString(text):
		return Result{Intent: "greeting.hello", Confidence: 0.6, RouteHint: types.RouteMicro, Source: "keyword_fallback"}
	case weatherPattern.MatchString(text):
		return Result{Intent: "weather.lookup", Confidence: 0.55, RouteHint: types.RouteMicro, Source: "keyword_fallback"}
	case bookingPattern.MatchString(text):
		return Result{Intent: "calendar.create_draft", Confidence: 0.55, RouteHint: types.RoutePlanner, Source: "keyword_fallback"}
	default:
		return Result{Intent: "unknown", Confidence: 0.3, RouteHint: "", Source: "keyword_fallback"}
	}
}
