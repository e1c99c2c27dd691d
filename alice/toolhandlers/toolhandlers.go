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

// Package toolhandlers implements the concrete tools.Handler functions
// for the planner's fixed v4 tool set (weather.lookup,
// calendar.create_draft, email.create_draft, memory.query), each a
// small HTTP call wrapped to the tools.Handler signature, the same
// bare-http-client-per-call shape alice/drivers uses for the model
// runtime rather than a generic connector abstraction — the planner's
// tool set is fixed and small, not a pluggable marketplace.
package toolhandlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/DanielWarg/alice-orchestrator/alice/memoryclient"
	"github.com/DanielWarg/alice-orchestrator/alice/tools"
)

// Config carries the external endpoints the default tool handlers call
// out to.
type Config struct {
	WeatherURL    string
	CalendarURL   string
	EmailURL      string
	Timeout       time.Duration
}

// RegisterDefaults registers the four planner tools into reg, wiring
// memory.query to mem and the rest to cfg's endpoints. Each tool has no
// FallbackTo: a failed tool call surfaces as a failed
// ToolCallRecord rather than silently degrading to a cheaper tool,
// since there is no cheaper equivalent for "send an email" or "read
// the calendar."
func RegisterDefaults(reg *tools.Registry, cfg Config, mem *memoryclient.Client) {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 400 * time.Millisecond
	}

	reg.Register(tools.Tool{Name: "weather.lookup", Handler: weatherLookup(cfg.WeatherURL), ToolTimeout: timeout})
	reg.Register(tools.Tool{Name: "calendar.create_draft", Handler: calendarCreateDraft(cfg.CalendarURL), ToolTimeout: timeout})
	reg.Register(tools.Tool{Name: "email.create_draft", Handler: emailCreateDraft(cfg.EmailURL), ToolTimeout: timeout})
	reg.Register(tools.Tool{Name: "memory.query", Handler: memoryQuery(mem), ToolTimeout: timeout})
}

func postJSON(ctx context.Context, baseURL, path string, body map[string]any) (map[string]any, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("tool endpoint not configured: %s", path)
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{}
	if dl, ok := ctx.Deadline(); ok {
		client.Timeout = time.Until(dl)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("tool %s returned status %d", path, resp.StatusCode)
	}
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

func weatherLookup(baseURL string, timeout time.Duration) tools.Handler {
	return func(ctx context.Context, args map[string]any) (map[string]any, error) {
		return postJSON(ctx, baseURL, "/lookup", args)
	}
}

func calendarCreateDraft(baseURL string, timeout time.Duration) tools.Handler {
	return func(ctx context.Context, args map[string]any) (map[string]any, error) {
		return postJSON(ctx, baseURL, "/drafts", args)
	}
}

func emailCreateDraft(baseURL string, timeout time.Duration) tools.Handler {
	return func(ctx context.Context, args map[string]any) (map[string]any, error) {
		return postJSON(ctx, baseURL, "/drafts", args)
	}
}

func memoryQuery(mem *memoryclient.Client) tools.Handler {
	return func(ctx context.Context, args map[string]any) (map[string]any, error) {
		if mem == nil || !mem.Configured() {
			return nil, fmt.Errorf("memory service not configured")
		}
		sessionID, _ := args["session_id"].(string)
		query, _ := args["query"].(string)
		results, err := mem.Query(ctx, sessionID, query)
		if err != nil {
			return nil, err
		}
		return map[string]any{"results": results}, nil
	}
}
