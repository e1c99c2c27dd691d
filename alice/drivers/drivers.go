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

// Package drivers gives the three local model tiers (micro, planner,
// deep) plus an optional cloud planner a single Driver contract, the
// same minimal-surface shape as the platform's unified llm.Provider
// interface (orchestrator/llm/provider.go) — Name/Type/Complete/
// HealthCheck — narrowed to the one Generate call the pipeline needs
// and specialized per tier's obligations instead of being a pluggable
// multi-vendor router.
package drivers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/DanielWarg/alice-orchestrator/alice/schema"
	"github.com/DanielWarg/alice-orchestrator/alice/types"
)

// Tuning carries optional per-call generation parameters.
type Tuning struct {
	MaxTokens   int
	Temperature float64
	Grammar     string
}

// Output is the uniform result every driver returns.
type Output struct {
	Text         string
	ModelID      string
	Route        types.RouteClass
	TokensUsed   int
	LatencyMS    int64
	SchemaOK     bool
	FallbackUsed bool
	ErrorClass   types.ErrorClass
	Plan         *types.Plan
}

// Driver is the uniform contract every tier implements.
type Driver interface {
	Generate(ctx context.Context, prompt string, tuning Tuning) (Output, error)
	ModelID() string
	Route() types.RouteClass
}

// ollamaClient is the shared HTTP client used by the local drivers to
// reach the model runtime's /api/generate endpoint (spec.md §6.2).
type ollamaClient struct {
	baseURL string
	model   string
	http    *http.Client
	keepAlive string
}

func newOllamaClient(baseURL, model string, timeout time.Duration, keepAlive string) *ollamaClient {
	return &ollamaClient{baseURL: baseURL, model: model, http: &http.Client{Timeout: timeout}, keepAlive: keepAlive}
}

func (c *ollamaClient) generate(ctx context.Context, prompt, grammar string) (string, int, error) {
	body := map[string]any{
		"model":      c.model,
		"prompt":     prompt,
		"stream":     false,
		"keep_alive": c.keepAlive,
	}
	if grammar != "" {
		body["grammar"] = grammar
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return "", 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(raw))
	if err != nil {
		return "", 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()

	var out struct {
		Response        string `json:"response"`
		EvalCount       int    `json:"eval_count"`
		PromptEvalCount int    `json:"prompt_eval_count"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", 0, err
	}
	return out.Response, out.EvalCount + out.PromptEvalCount, nil
}

// MicroDriver targets sub-250ms constrained-decoding responses for
// short prompts, deterministically mapping the grammar-restricted
// output token to a canonical structured payload.
type MicroDriver struct {
	client *ollamaClient
	model  string
}

// NewMicroDriver creates a MicroDriver against an Ollama-compatible
// runtime.
func NewMicroDriver(baseURL, model string, timeout time.Duration, keepAlive string) *MicroDriver {
	return &MicroDriver{client: newOllamaClient(baseURL, model, timeout, keepAlive), model: model}
}

func (d *MicroDriver) ModelID() string           { return d.model }
func (d *MicroDriver) Route() types.RouteClass   { return types.RouteMicro }

func (d *MicroDriver) Generate(ctx context.Context, prompt string, tuning Tuning) (Output, error) {
	start := time.Now()
	text, tokens, err := d.client.generate(ctx, prompt, tuning.Grammar)
	if err != nil {
		return Output{ModelID: d.model, Route: types.RouteMicro, ErrorClass: classifyHTTPErr(err), LatencyMS: time.Since(start).Milliseconds()}, err
	}
	return Output{
		Text:       text,
		ModelID:    d.model,
		Route:      types.RouteMicro,
		TokensUsed: tokens,
		LatencyMS:  time.Since(start).Milliseconds(),
		SchemaOK:   true,
	}, nil
}

// PlannerDriver produces JSON-only output conforming to the v4 schema,
// with one bounded repair pass on failure.
type PlannerDriver struct {
	client *ollamaClient
	model  string
}

// NewPlannerDriver creates a PlannerDriver.
func NewPlannerDriver(baseURL, model string, timeout time.Duration, keepAlive string) *PlannerDriver {
	return &PlannerDriver{client: newOllamaClient(baseURL, model, timeout, keepAlive), model: model}
}

func (d *PlannerDriver) ModelID() string         { return d.model }
func (d *PlannerDriver) Route() types.RouteClass { return types.RoutePlanner }

func (d *PlannerDriver) Generate(ctx context.Context, prompt string, tuning Tuning) (Output, error) {
	start := time.Now()
	text, tokens, err := d.client.generate(ctx, prompt, "")
	if err != nil {
		return Output{ModelID: d.model, Route: types.RoutePlanner, ErrorClass: classifyHTTPErr(err), LatencyMS: time.Since(start).Milliseconds()}, err
	}

	out, _, parseErr := schema.Repair(text)
	if parseErr != nil {
		return Output{ModelID: d.model, Route: types.RoutePlanner, SchemaOK: false, ErrorClass: types.ErrClassSchema, LatencyMS: time.Since(start).Milliseconds()}, parseErr
	}

	schema.Canonicalize(&out)
	if err := schema.Validate(out); err != nil {
		return Output{ModelID: d.model, Route: types.RoutePlanner, SchemaOK: false, ErrorClass: types.ErrClassSchema, LatencyMS: time.Since(start).Milliseconds()}, err
	}

	plan := schema.ToPlan(out, "planner output", "")
	return Output{
		Text:       text,
		ModelID:    d.model,
		Route:      types.RoutePlanner,
		TokensUsed: tokens,
		LatencyMS:  time.Since(start).Milliseconds(),
		SchemaOK:   true,
		Plan:       &plan,
	}, nil
}

// DeepDriver runs long-form reasoning with an idle-release keep-alive
// timeout; subject to oracle suppression upstream in the pipeline.
type DeepDriver struct {
	client      *ollamaClient
	model       string
	idleTimeout time.Duration

	lastUsed time.Time
}

// NewDeepDriver creates a DeepDriver with the given idle release
// timeout.
func NewDeepDriver(baseURL, model string, timeout, idleTimeout time.Duration, keepAlive string) *DeepDriver {
	return &DeepDriver{client: newOllamaClient(baseURL, model, timeout, keepAlive), model: model, idleTimeout: idleTimeout}
}

func (d *DeepDriver) ModelID() string         { return d.model }
func (d *DeepDriver) Route() types.RouteClass { return types.RouteDeep }

// Idle reports whether the deep model has been unused long enough to
// be released.
func (d *DeepDriver) Idle() bool {
	return !d.lastUsed.IsZero() && time.Since(d.lastUsed) > d.idleTimeout
}

func (d *DeepDriver) Generate(ctx context.Context, prompt string, tuning Tuning) (Output, error) {
	start := time.Now()
	d.lastUsed = start
	text, tokens, err := d.client.generate(ctx, prompt, "")
	if err != nil {
		return Output{ModelID: d.model, Route: types.RouteDeep, ErrorClass: classifyHTTPErr(err), LatencyMS: time.Since(start).Milliseconds()}, err
	}
	return Output{
		Text:       text,
		ModelID:    d.model,
		Route:      types.RouteDeep,
		TokensUsed: tokens,
		LatencyMS:  time.Since(start).Milliseconds(),
		SchemaOK:   true,
	}, nil
}

var complexityPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)analyze and propose`),
	regexp.MustCompile(`(?i)evaluate alternatives`),
	regexp.MustCompile(`(?i)optimize with constraints`),
	regexp.MustCompile(`(?i)weigh.{0,20}trade-?offs`),
}

// IsHard applies the local complexity heuristic: a small weighted sum
// over word count plus reasoning-pattern regexes, thresholded at 0.6.
func IsHard(prompt string) bool {
	words := len(strings.Fields(prompt))
	score := 0.0
	if words > 60 {
		score += 0.4
	}
	for _, p := range complexityPatterns {
		if p.MatchString(prompt) {
			score += 0.3
		}
	}
	return score >= 0.6
}

func classifyHTTPErr(err error) types.ErrorClass {
	if err == nil {
		return types.ErrClassNone
	}
	if err == context.DeadlineExceeded {
		return types.ErrClassTimeout
	}
	return types.ErrClassException
}

// CloudPlannerDriver escalates HARD planner prompts to an OpenAI-
// compatible chat-completions endpoint with JSON response mode,
// engaged only when the local complexity heuristic trips.
type CloudPlannerDriver struct {
	apiKey  string
	model   string
	http    *http.Client
	baseURL string
}

// NewCloudPlannerDriver creates a CloudPlannerDriver. apiKey empty
// means the driver is unconfigured and callers should fall back to the
// local planner.
func NewCloudPlannerDriver(apiKey, model string, timeout time.Duration) *CloudPlannerDriver {
	return &CloudPlannerDriver{
		apiKey:  apiKey,
		model:   model,
		http:    &http.Client{Timeout: timeout},
		baseURL: "https://api.openai.com/v1/chat/completions",
	}
}

// Configured reports whether an API key was supplied.
func (d *CloudPlannerDriver) Configured() bool { return d.apiKey != "" }

func (d *CloudPlannerDriver) ModelID() string         { return d.model }
func (d *CloudPlannerDriver) Route() types.RouteClass { return types.RoutePlanner }

func (d *CloudPlannerDriver) Generate(ctx context.Context, prompt string, tuning Tuning) (Output, error) {
	start := time.Now()

	reqBody, err := json.Marshal(map[string]any{
		"model": d.model,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
		"response_format": map[string]string{"type": "json_object"},
	})
	if err != nil {
		return Output{ModelID: d.model, Route: types.RoutePlanner, ErrorClass: types.ErrClassException}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL, bytes.NewReader(reqBody))
	if err != nil {
		return Output{ModelID: d.model, Route: types.RoutePlanner, ErrorClass: types.ErrClassException}, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+d.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := d.http.Do(httpReq)
	if err != nil {
		return Output{ModelID: d.model, Route: types.RoutePlanner, ErrorClass: classifyHTTPErr(err), LatencyMS: time.Since(start).Milliseconds()}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return Output{ModelID: d.model, Route: types.RoutePlanner, ErrorClass: types.ErrClass429, LatencyMS: time.Since(start).Milliseconds()}, context.Canceled
	}
	if resp.StatusCode >= 500 {
		return Output{ModelID: d.model, Route: types.RoutePlanner, ErrorClass: types.ErrClass5xx, LatencyMS: time.Since(start).Milliseconds()}, context.Canceled
	}

	var body struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Usage struct {
			TotalTokens int `json:"total_tokens"`
		} `json:"usage"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Output{ModelID: d.model, Route: types.RoutePlanner, ErrorClass: types.ErrClassException, LatencyMS: time.Since(start).Milliseconds()}, err
	}

	text := ""
	if len(body.Choices) > 0 {
		text = body.Choices[0].Message.Content
	}

	out, _, parseErr := schema.Repair(text)
	if parseErr != nil {
		return Output{ModelID: d.model, Route: types.RoutePlanner, SchemaOK: false, ErrorClass: types.ErrClassSchema, LatencyMS: time.Since(start).Milliseconds()}, parseErr
	}
	schema.Canonicalize(&out)
	if err := schema.Validate(out); err != nil {
		return Output{ModelID: d.model, Route: types.RoutePlanner, SchemaOK: false, ErrorClass: types.ErrClassSchema, LatencyMS: time.Since(start).Milliseconds()}, err
	}

	plan := schema.ToPlan(out, "cloud planner output", "")
	return Output{
		Text:       text,
		ModelID:    d.model,
		Route:      types.RoutePlanner,
		TokensUsed: body.Usage.TotalTokens,
		LatencyMS:  time.Since(start).Milliseconds(),
		SchemaOK:   true,
		Plan:       &plan,
	}, nil
}
