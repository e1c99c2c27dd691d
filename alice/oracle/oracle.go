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

// Package oracle polls the health-oracle ("guardian") process and caches
// its last response for a short TTL, the same connect-with-timeout and
// client-plus-logger shape as the platform's Redis connector
// (connectors/redis/connector.go), but over plain HTTP with an
// in-memory snapshot instead of a pooled driver connection.
package oracle

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/DanielWarg/alice-orchestrator/alice/types"
	"github.com/DanielWarg/alice-orchestrator/shared/logger"
)

// State is the oracle's reported or inferred health state.
type State string

const (
	StateNormal      State = "NORMAL"
	StateBrownout    State = "BROWNOUT"
	StateDegraded    State = "DEGRADED"
	StateEmergency   State = "EMERGENCY"
	StateLockdown    State = "LOCKDOWN"
	StateTimeout     State = "TIMEOUT"
	StateUnreachable State = "UNREACHABLE"
	StateError       State = "ERROR"
)

var retryAfterTable = map[State]int{
	StateNormal:      0,
	StateBrownout:    1,
	StateDegraded:    5,
	StateEmergency:   30,
	StateLockdown:    60,
	StateTimeout:     2,
	StateUnreachable: 10,
	StateError:       5,
}

// Snapshot is the oracle's last polled (or synthesized, on error) health
// report.
type Snapshot struct {
	State   State   `json:"state"`
	RAMPct  float64 `json:"ram_pct"`
	CPUPct  float64 `json:"cpu_pct"`
	PolledAt time.Time `json:"-"`
}

// Client polls the oracle and caches its response for TTL, returning the
// cached snapshot to concurrent callers without re-polling.
type Client struct {
	baseURL string
	ttl     time.Duration
	httpc   *http.Client
	log     *logger.Logger

	mu       sync.Mutex
	snapshot Snapshot
	inflight chan struct{}
}

// New creates an oracle Client polling baseURL, caching responses for
// ttl.
func New(baseURL string, ttl time.Duration, timeout time.Duration, log *logger.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		ttl:     ttl,
		httpc:   &http.Client{Timeout: timeout},
		log:     log,
		snapshot: Snapshot{State: StateNormal, PolledAt: time.Time{}},
	}
}

// Get returns the current cached snapshot, refreshing it if the TTL has
// elapsed. Concurrent callers during a refresh share the single
// in-flight poll.
func (c *Client) Get(ctx context.Context) Snapshot {
	c.mu.Lock()
	if time.Since(c.snapshot.PolledAt) < c.ttl && !c.snapshot.PolledAt.IsZero() {
		snap := c.snapshot
		c.mu.Unlock()
		return snap
	}

	if c.inflight != nil {
		ch := c.inflight
		c.mu.Unlock()
		<-ch
		c.mu.Lock()
		snap := c.snapshot
		c.mu.Unlock()
		return snap
	}

	ch := make(chan struct{})
	c.inflight = ch
	c.mu.Unlock()

	snap := c.poll(ctx)

	c.mu.Lock()
	c.snapshot = snap
	c.inflight = nil
	c.mu.Unlock()
	close(ch)

	return snap
}

func (c *Client) poll(ctx context.Context) Snapshot {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return Snapshot{State: StateError, PolledAt: time.Now()}
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			if c.log != nil {
				c.log.Warn("", "", "oracle poll timed out", nil)
			}
			return Snapshot{State: StateTimeout, PolledAt: time.Now()}
		}
		if c.log != nil {
			c.log.Warn("", "", "oracle unreachable", map[string]interface{}{"error": err.Error()})
		}
		return Snapshot{State: StateUnreachable, PolledAt: time.Now()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Snapshot{State: StateError, PolledAt: time.Now()}
	}

	var body struct {
		State  string  `json:"state"`
		RAMPct float64 `json:"ram_pct"`
		CPUPct float64 `json:"cpu_pct"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Snapshot{State: StateError, PolledAt: time.Now()}
	}

	return Snapshot{
		State:    State(body.State),
		RAMPct:   body.RAMPct,
		CPUPct:   body.CPUPct,
		PolledAt: time.Now(),
	}
}

// Admit reports whether requests should be admitted at the given
// snapshot's state. Only EMERGENCY and LOCKDOWN deny admission; the
// oracle is an advisory availability hint, not a consistency boundary,
// so every other state (including error surrogates) fails open.
func Admit(s Snapshot) bool {
	return s.State != StateEmergency && s.State != StateLockdown
}

// RetryAfter returns the seconds a denied or degraded caller should
// wait before retrying, per the fixed table in spec.md §4.2.
func RetryAfter(s State) int {
	if v, ok := retryAfterTable[s]; ok {
		return v
	}
	return 5
}

// RecommendedTier returns the tier the oracle prefers given memory
// pressure and state.
func RecommendedTier(s Snapshot) types.RouteClass {
	switch s.State {
	case StateBrownout:
		return types.RouteMicro
	case StateDegraded:
		return types.RoutePlanner
	default:
		if s.RAMPct > 0.90 {
			return types.RouteMicro
		}
		return types.RouteMicro
	}
}

// DemoteDeep applies the deep-suppression rule: if the orchestrator
// chose deep and the oracle is not NORMAL, demote to planner.
func DemoteDeep(class types.RouteClass, s Snapshot) (types.RouteClass, bool) {
	if class == types.RouteDeep && s.State != StateNormal {
		return types.RoutePlanner, true
	}
	return class, false
}
