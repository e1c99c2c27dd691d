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

// Package tools declares the orchestrator's tool registry and the
// executor that runs a Plan's steps against it, budget-bound per step
// and in total, with per-tool fallback edges. The registry-of-named-
// handlers shape follows the platform's connector registry
// (connectors/registry), narrowed from pluggable data connectors to
// the planner's small, fixed tool set.
package tools

import (
	"context"
	"sync"
	"time"

	"github.com/DanielWarg/alice-orchestrator/alice/breaker"
	"github.com/DanielWarg/alice-orchestrator/alice/types"
)

// Handler executes one tool call and returns its result payload.
type Handler func(ctx context.Context, args map[string]any) (map[string]any, error)

// Tool is one registry entry: a handler plus an optional cheaper
// fallback tool to try on failure.
type Tool struct {
	Name        string
	Handler     Handler
	FallbackTo  string
	ToolTimeout time.Duration
}

// Registry holds the orchestrator's declared tools by name.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates an empty tool Registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds or replaces a tool.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name] = t
}

// Lookup returns the named tool and whether it exists.
func (r *Registry) Lookup(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Names lists every registered tool name.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for n := range r.tools {
		names = append(names, n)
	}
	return names
}

// ExecConfig bounds the executor's per-request and per-step budgets.
type ExecConfig struct {
	MaxSteps        int
	TotalTimeout    time.Duration
	ToolTimeout     time.Duration
	FallbackTimeout time.Duration

	// AggregateFailureWindow and AggregateFailureThreshold gate the
	// use of fallback edges: once aggregate tool failures in the
	// window exceed the threshold, fallbacks are suspended and the
	// original failure is reported instead.
	AggregateFailureWindow    time.Duration
	AggregateFailureThreshold int
}

// DefaultExecConfig matches spec.md §4.8's defaults.
func DefaultExecConfig() ExecConfig {
	return ExecConfig{
		MaxSteps:                  2,
		TotalTimeout:              1500 * time.Millisecond,
		ToolTimeout:               400 * time.Millisecond,
		FallbackTimeout:           300 * time.Millisecond,
		AggregateFailureWindow:    30 * time.Second,
		AggregateFailureThreshold: 5,
	}
}

// Executor runs a Plan's steps against a Registry, under per-tool
// circuit breakers.
type Executor struct {
	registry *Registry
	breakers *breaker.Registry
	cfg      ExecConfig

	mu           sync.Mutex
	failureTimes []time.Time
}

// NewExecutor creates an Executor.
func NewExecutor(registry *Registry, breakers *breaker.Registry, cfg ExecConfig) *Executor {
	return &Executor{registry: registry, breakers: breakers, cfg: cfg}
}

// Run executes a Plan's steps in order, up to MaxSteps, honoring the
// total wall-clock budget, and returns a ToolCallRecord per attempted
// step (including fallback attempts).
func (e *Executor) Run(ctx context.Context, plan types.Plan) ([]types.ToolCallRecord, bool) {
	deadline := time.Now().Add(e.cfg.TotalTimeout)
	records := make([]types.ToolCallRecord, 0, len(plan.Steps))

	steps := plan.Steps
	if len(steps) > e.cfg.MaxSteps {
		steps = steps[:e.cfg.MaxSteps]
	}

	for _, step := range steps {
		if time.Now().After(deadline) {
			records = append(records, types.ToolCallRecord{
				NormalizedToolName: normalize(e.registry, step.ToolName),
				OK:                 false,
				ErrorClass:         types.ErrClassTimeout,
			})
			return records, true
		}

		rec := e.runStep(ctx, step)
		records = append(records, rec)
	}

	return records, false
}

func (e *Executor) runStep(ctx context.Context, step types.PlanStep) types.ToolCallRecord {
	start := time.Now()
	name := normalize(e.registry, step.ToolName)

	tool, ok := e.registry.Lookup(step.ToolName)
	if !ok {
		return types.ToolCallRecord{NormalizedToolName: "other", OK: false, ErrorClass: types.ErrClassSchema, LatencyMS: time.Since(start).Milliseconds()}
	}

	timeout := e.cfg.ToolTimeout
	if tool.ToolTimeout > 0 {
		timeout = tool.ToolTimeout
	}

	_, err := e.invoke(ctx, tool, step.Args, timeout)
	if err == nil {
		return types.ToolCallRecord{NormalizedToolName: name, OK: true, LatencyMS: time.Since(start).Milliseconds()}
	}

	e.recordFailure()

	if tool.FallbackTo != "" && !e.fallbacksSuspended() {
		if fb, ok := e.registry.Lookup(tool.FallbackTo); ok && e.breakers.State(tool.FallbackTo) != breaker.StateOpen {
			fbTimeout := e.cfg.FallbackTimeout
			if fbTimeout > 300*time.Millisecond {
				fbTimeout = 300 * time.Millisecond
			}
			if _, fbErr := e.invoke(ctx, fb, step.Args, fbTimeout); fbErr == nil {
				return types.ToolCallRecord{NormalizedToolName: name, OK: true, LatencyMS: time.Since(start).Milliseconds()}
			}
		}
	}

	return types.ToolCallRecord{
		NormalizedToolName: name,
		OK:                 false,
		ErrorClass:         classify(err),
		LatencyMS:          time.Since(start).Milliseconds(),
	}
}

func (e *Executor) invoke(ctx context.Context, t Tool, args map[string]any, timeout time.Duration) (map[string]any, error) {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	res, err := e.breakers.Execute(t.Name, func() (any, error) {
		return t.Handler(callCtx, args)
	})
	if err != nil {
		return nil, err
	}
	out, _ := res.(map[string]any)
	return out, nil
}

func (e *Executor) recordFailure() {
	e.mu.Lock()
	defer e.mu.Unlock()
	now := time.Now()
	e.failureTimes = append(e.failureTimes, now)

	cutoff := now.Add(-e.cfg.AggregateFailureWindow)
	i := 0
	for i < len(e.failureTimes) && e.failureTimes[i].Before(cutoff) {
		i++
	}
	e.failureTimes = e.failureTimes[i:]
}

func (e *Executor) fallbacksSuspended() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.failureTimes) > e.cfg.AggregateFailureThreshold
}

func normalize(r *Registry, name string) string {
	if _, ok := r.Lookup(name); ok {
		return name
	}
	return "other"
}

func classify(err error) types.ErrorClass {
	if err == nil {
		return types.ErrClassNone
	}
	switch err {
	case context.DeadlineExceeded:
		return types.ErrClassTimeout
	default:
		return types.ErrClassException
	}
}
