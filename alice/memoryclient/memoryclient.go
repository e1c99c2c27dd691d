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

// Package memoryclient is a thin HTTP client for the memory service
// dependency named in spec.md §6.2, built the same bare
// http.Client-with-timeout-and-baseURL shape as alice/nlu and
// alice/oracle rather than through the platform's generic MCP
// connector abstraction — the memory service here is a single fixed
// dependency, not a pluggable data source.
package memoryclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Client talks to the memory service's store/query/forget endpoints.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a Client. An empty baseURL means the memory service is
// unconfigured; every call then returns an error so callers can
// degrade gracefully.
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{baseURL: baseURL, http: &http.Client{Timeout: timeout}}
}

// Configured reports whether a memory service endpoint was supplied.
func (c *Client) Configured() bool { return c.baseURL != "" }

// Store persists a turn's memory payload under a session.
func (c *Client) Store(ctx context.Context, sessionID string, payload map[string]any) error {
	if !c.Configured() {
		return fmt.Errorf("memory service not configured")
	}
	return c.post(ctx, "/api/memory/store", map[string]any{"session_id": sessionID, "payload": payload}, nil)
}

// Query asks the memory service for entries matching a free-text query
// scoped to a session.
func (c *Client) Query(ctx context.Context, sessionID, query string) ([]map[string]any, error) {
	if !c.Configured() {
		return nil, fmt.Errorf("memory service not configured")
	}
	var out struct {
		Results []map[string]any `json:"results"`
	}
	if err := c.post(ctx, "/api/memory/query", map[string]any{"session_id": sessionID, "query": query}, &out); err != nil {
		return nil, err
	}
	return out.Results, nil
}

// Forget removes a session's memory, optionally scoped (e.g. to one
// consent category).
func (c *Client) Forget(ctx context.Context, sessionID, scope string) error {
	if !c.Configured() {
		return fmt.Errorf("memory service not configured")
	}
	return c.post(ctx, "/api/memory/forget", map[string]any{"session_id": sessionID, "scope": scope}, nil)
}

func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("memory service returned status %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
