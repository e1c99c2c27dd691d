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

// Package quota tracks the rolling share of requests routed to the
// micro tier and enforces MICRO_MAX_SHARE, demoting further micro
// routes to planner once the window's share exceeds the cap. Modeled
// on the platform's OrchestratorMetrics sliding counters
// (orchestrator/run.go) — a mutex-guarded struct updated on every
// request rather than a separate metrics service.
package quota

import (
	"sync"
	"time"

	"github.com/DanielWarg/alice-orchestrator/alice/types"
)

type sample struct {
	at    time.Time
	route types.RouteClass
}

// Tracker maintains a sliding window of recent route decisions and
// reports whether the micro tier's share of the window has exceeded
// its configured cap.
type Tracker struct {
	mu        sync.Mutex
	window    time.Duration
	maxShare  float64
	samples   []sample
}

// NewTracker creates a Tracker over the given window with the given
// MICRO_MAX_SHARE cap (0.0-1.0).
func NewTracker(window time.Duration, maxShare float64) *Tracker {
	return &Tracker{window: window, maxShare: maxShare}
}

// Record appends a routed request to the window.
func (t *Tracker) Record(route types.RouteClass) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.samples = append(t.samples, sample{at: time.Now(), route: route})
	t.evict()
}

// MicroShare returns the current fraction of in-window requests that
// were routed to the micro tier.
func (t *Tracker) MicroShare() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.evict()
	return t.microShareLocked()
}

// OverCap reports whether admitting one more micro-routed request
// would push (or already has pushed) the window's micro share over
// MICRO_MAX_SHARE.
func (t *Tracker) OverCap() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.evict()
	if len(t.samples) == 0 {
		return false
	}
	return t.microShareLocked() >= t.maxShare
}

func (t *Tracker) microShareLocked() float64 {
	if len(t.samples) == 0 {
		return 0
	}
	micro := 0
	for _, s := range t.samples {
		if s.route == types.RouteMicro {
			micro++
		}
	}
	return float64(micro) / float64(len(t.samples))
}

func (t *Tracker) evict() {
	if t.window <= 0 {
		return
	}
	cutoff := time.Now().Add(-t.window)
	i := 0
	for i < len(t.samples) && t.samples[i].at.Before(cutoff) {
		i++
	}
	if i > 0 {
		t.samples = t.samples[i:]
	}
}
