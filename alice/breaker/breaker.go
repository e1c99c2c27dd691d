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

// Package breaker gives every tool/provider dependency its own
// closed/open/half-open circuit breaker, keyed by name, the same shape
// as the platform's hand-rolled CircuitBreaker in
// orchestrator/llm/sdk/retry.go. Here the state machine itself is
// delegated to sony/gobreaker rather than reimplemented, since the
// platform's version already tracks consecutive failures, an open
// timeout, and a half-open probe count — exactly what gobreaker.Settings
// exposes.
package breaker

import (
	"sync"
	"time"

	"github.com/sony/gobreaker"
)

// State mirrors the three circuit states the orchestrator pipeline and
// /api/monitoring/circuit-breakers endpoint report on.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half_open"
)

// Config controls the failure threshold, cooldown, and half-open probe
// budget for every breaker created by a Registry.
type Config struct {
	FailureThreshold int
	OpenTimeout      time.Duration
	HalfOpenMax      int
}

// Registry hands out one named circuit breaker per tool or provider,
// creating it lazily on first use.
type Registry struct {
	mu       sync.Mutex
	cfg      Config
	breakers map[string]*gobreaker.CircuitBreaker
}

// NewRegistry creates a breaker Registry using cfg for every breaker it
// creates.
func NewRegistry(cfg Config) *Registry {
	return &Registry{
		cfg:      cfg,
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}
}

func (r *Registry) get(name string) *gobreaker.CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cb, ok := r.breakers[name]; ok {
		return cb
	}

	threshold := uint32(r.cfg.FailureThreshold)
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: uint32(r.cfg.HalfOpenMax),
		Timeout:     r.cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
	})
	r.breakers[name] = cb
	return cb
}

// Execute runs fn through the named breaker, short-circuiting with
// gobreaker.ErrOpenState (or gobreaker.ErrTooManyRequests while
// half-open) when the breaker is not letting calls through.
func (r *Registry) Execute(name string, fn func() (any, error)) (any, error) {
	return r.get(name).Execute(fn)
}

// State reports the current state of the named breaker. A breaker that
// has never been used is reported closed.
func (r *Registry) State(name string) State {
	r.mu.Lock()
	cb, ok := r.breakers[name]
	r.mu.Unlock()
	if !ok {
		return StateClosed
	}
	return fromGobreakerState(cb.State())
}

// Snapshot is a point-in-time view of one breaker's health for the
// monitoring endpoint.
type Snapshot struct {
	Name    string `json:"name"`
	State   State  `json:"state"`
	Counts  gobreaker.Counts `json:"counts"`
}

// All returns a Snapshot of every breaker the registry has created.
func (r *Registry) All() []Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Snapshot, 0, len(r.breakers))
	for name, cb := range r.breakers {
		out = append(out, Snapshot{
			Name:   name,
			State:  fromGobreakerState(cb.State()),
			Counts: cb.Counts(),
		})
	}
	return out
}

func fromGobreakerState(s gobreaker.State) State {
	switch s {
	case gobreaker.StateClosed:
		return StateClosed
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	default:
		return StateOpen
	}
}
