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

// Package pipeline composes every other alice/* component into the
// per-request state machine described in spec.md §4.9: security scrub,
// oracle admission, parallel NLU/router scoring, cache lookup, driver
// call under its breaker, tool execution, and turn-event emission.
// This is the orchestrator's single per-request entry point, the same
// role the platform's orchestrator.Run's request handler plays, but
// restructured as an explicit, testable Pipeline type rather than a
// handler closure over package-level state.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/DanielWarg/alice-orchestrator/alice/bandit"
	"github.com/DanielWarg/alice-orchestrator/alice/breaker"
	"github.com/DanielWarg/alice-orchestrator/alice/cache"
	"github.com/DanielWarg/alice-orchestrator/alice/drivers"
	"github.com/DanielWarg/alice-orchestrator/alice/errs"
	"github.com/DanielWarg/alice-orchestrator/alice/events"
	"github.com/DanielWarg/alice-orchestrator/alice/nlu"
	"github.com/DanielWarg/alice-orchestrator/alice/oracle"
	"github.com/DanielWarg/alice-orchestrator/alice/quota"
	"github.com/DanielWarg/alice-orchestrator/alice/router"
	"github.com/DanielWarg/alice-orchestrator/alice/security"
	"github.com/DanielWarg/alice-orchestrator/alice/tools"
	"github.com/DanielWarg/alice-orchestrator/alice/types"
)

// apologyPayload is the canonical Swedish apology returned whenever
// every other recovery option has been exhausted.
const apologyPayload = "Tyvärr, jag kunde inte hantera den förfrågan just nu. Försök igen om en liten stund."

// Drivers bundles the per-tier model drivers the pipeline dispatches
// to, plus the optional cloud escalation path.
type Drivers struct {
	Micro   drivers.Driver
	Planner drivers.Driver
	Deep    drivers.Driver
	Cloud   *drivers.CloudPlannerDriver
}

// Config bundles the pipeline's tunable budgets.
type Config struct {
	TotalBudget     time.Duration
	NLUTimeout      time.Duration
	CacheTTL        time.Duration
	CacheNegTTL     time.Duration
	SecurityStrict  bool
	SchemaVersion   string
}

// Pipeline wires together every dependency a turn touches.
type Pipeline struct {
	oracle   *oracle.Client
	nlu      *nlu.Client
	bandit   *bandit.Client
	cache    *cache.Cache
	quota    *quota.Tracker
	breakers *breaker.Registry
	tools    *tools.Executor
	drivers  Drivers
	events   *events.Sink
	cfg      Config
}

// New creates a Pipeline from its component dependencies.
func New(o *oracle.Client, n *nlu.Client, b *bandit.Client, c *cache.Cache, q *quota.Tracker, br *breaker.Registry, t *tools.Executor, d Drivers, ev *events.Sink, cfg Config) *Pipeline {
	return &Pipeline{oracle: o, nlu: n, bandit: b, cache: c, quota: q, breakers: br, tools: t, drivers: d, events: ev, cfg: cfg}
}

// Response is the pipeline's per-turn result, shaped for the HTTP
// layer to serialize and to derive X-* headers from.
type Response struct {
	TraceID           string
	SessionID         string
	Text              string
	ModelUsed         string
	Route             types.RouteClass
	RouteHint         types.RouteClass
	Intent            string
	IntentConfidence  float64
	LatencyMS         int64
	CacheHit          bool
	RequiresConfirm   bool
	Metadata          map[string]any
}

// Run executes the full pipeline for one request.
func (p *Pipeline) Run(ctx context.Context, req types.Request) (Response, error) {
	start := time.Now()

	if p.cfg.TotalBudget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.TotalBudget)
		defer cancel()
	}

	traceID := uuid.NewString()
	ev := types.TurnEvent{
		Version:   "1",
		Timestamp: start,
		TraceID:   traceID,
		SessionID: req.SessionID,
		InputText: req.Text,
		Language:  req.Language,
	}

	// Step 2: security scrub.
	contextStrings := stringifyContext(req.Context)
	assessment := security.Scan(req.Text, contextStrings, p.cfg.SecurityStrict)

	// Step 3: oracle admission.
	snap := p.oracle.Get(ctx)
	ev.OracleState = string(snap.State)
	if !oracle.Admit(snap) {
		return Response{TraceID: traceID, SessionID: req.SessionID}, &errs.Error{
			Class:      errs.ClassAdmissionDenied,
			Message:    "system overloaded, retry later",
			RetryAfter: oracle.RetryAfter(snap.State),
		}
	}

	// Step 4: parallel NLU parse and router scoring.
	type nluOut struct {
		res nlu.Result
	}
	nluCh := make(chan nluOut, 1)
	go func() {
		nluCtx, cancel := context.WithTimeout(ctx, p.cfg.NLUTimeout)
		defer cancel()
		nluCh <- nluOut{res: p.nlu.Parse(nluCtx, req.Text, req.Language, req.SessionID)}
	}()

	var sampled bandit.Suggestion
	usedBandit := false
	if p.bandit != nil {
		if sug, ok := p.bandit.Sample(ctx, req.SessionID, req.Text); ok {
			sampled = sug
			usedBandit = true
		}
	}

	nr := <-nluCh
	ev.NLUSource = nr.res.Source

	decision := router.Decide(req, nr.res.RouteHint, nr.res.Confidence, p.quota, 0)
	if usedBandit && sampled.RouteClass != "" {
		decision.Class = types.RouteClass(sampled.RouteClass)
		decision.Reason = "bandit suggestion"
	}

	// Step 5: deep->planner demotion per oracle state.
	if demoted, was := oracle.DemoteDeep(decision.Class, snap); was {
		decision.Class = demoted
		decision.BlockedByGuardian = true
	}
	ev.BlockedByGuardian = decision.BlockedByGuardian
	ev.Route = decision.Class

	intent := nr.res.Intent
	if intent == "" {
		intent = "unknown"
	}

	// Security: high-risk intent under STRICT requires confirmation.
	if p.cfg.SecurityStrict && assessment.RequiresBlock && security.RequiresConfirmation(intent) {
		return Response{
			TraceID:         traceID,
			SessionID:       req.SessionID,
			Text:            "Den här åtgärden kräver bekräftelse innan jag går vidare.",
			Route:           decision.Class,
			Intent:          intent,
			RequiresConfirm: true,
			LatencyMS:       time.Since(start).Milliseconds(),
		}, errs.New(errs.ClassSecurityRequiresConfirmation, "intent requires confirmation")
	}

	// Step 6-7: cache lookup.
	schemaVersion := p.cfg.SchemaVersion
	cacheResult := p.cache.Get(ctx, intent, req.Text, modelIDFor(decision.Class, p.drivers), schemaVersion)
	if cacheResult.Hit {
		ev.CacheHit = true
		ev.CacheSource = string(cacheResult.Source)
		ev.E2EMsFirst = time.Since(start).Milliseconds()
		ev.E2EMsFull = ev.E2EMsFirst
		ev.OutputText = textFromPayload(cacheResult.Payload)
		p.recordEvent(ev)
		return Response{
			TraceID:          traceID,
			SessionID:        req.SessionID,
			Text:             ev.OutputText,
			Route:            types.RouteCache,
			RouteHint:        decision.Class,
			Intent:           intent,
			IntentConfidence: nr.res.Confidence,
			CacheHit:         true,
			LatencyMS:        ev.E2EMsFull,
			Metadata:         map[string]any{"cache_source": string(cacheResult.Source)},
		}, nil
	}

	// Step 8: call the chosen driver under its breaker, degrading one
	// tier cheaper on circuit_open.
	driver := p.driverFor(decision.Class)
	if driver == nil {
		driver = p.drivers.Micro
	}

	out, driverErr := p.callDriver(ctx, driver, req.Text)
	ev.SchemaOK = out.SchemaOK
	ev.FallbackUsed = out.FallbackUsed

	if driverErr != nil {
		p.cache.SetNegative(ctx, req.Text, intent, p.cfg.CacheNegTTL)
		ev.OutputText = apologyPayload
		ev.E2EMsFull = time.Since(start).Milliseconds()
		p.recordEvent(ev)
		return Response{
			TraceID:   traceID,
			SessionID: req.SessionID,
			Text:      apologyPayload,
			Route:     decision.Class,
			Intent:    intent,
			LatencyMS: ev.E2EMsFull,
			Metadata:  map[string]any{"error_class": string(out.ErrorClass)},
		}, nil
	}

	responseText := out.Text

	// Step 9: if planner and a valid plan came back, run the executor.
	if decision.Class == types.RoutePlanner && out.Plan != nil {
		records, timedOut := p.tools.Run(ctx, *out.Plan)
		ev.ToolCalls = records
		if timedOut {
			ev.FallbackUsed = true
		}
		if out.Plan.UserFacingResp != "" {
			responseText = out.Plan.UserFacingResp
		}
	}

	// Step 10: write success to cache, write turn event.
	p.cache.Set(ctx, intent, req.Text, map[string]any{"response": responseText}, out.ModelID, schemaVersion, p.cfg.CacheTTL)

	ev.OutputText = responseText
	ev.E2EMsFirst = time.Since(start).Milliseconds()
	ev.E2EMsFull = ev.E2EMsFirst
	p.recordEvent(ev)

	if usedBandit {
		reward := rewardFor(out, ev)
		p.bandit.Reward(ctx, req.SessionID, reward)
	}

	return Response{
		TraceID:          traceID,
		SessionID:        req.SessionID,
		Text:             responseText,
		ModelUsed:        out.ModelID,
		Route:            decision.Class,
		RouteHint:        nr.res.RouteHint,
		Intent:           intent,
		IntentConfidence: nr.res.Confidence,
		LatencyMS:        ev.E2EMsFull,
		Metadata: map[string]any{
			"schema_ok":     out.SchemaOK,
			"fallback_used": out.FallbackUsed,
			"nlu_source":    nr.res.Source,
		},
	}, nil
}

// callDriver calls the driver under its named circuit breaker,
// degrading one tier cheaper when the breaker is open rather than
// propagating circuit_open to the caller.
func (p *Pipeline) callDriver(ctx context.Context, d drivers.Driver, prompt string) (drivers.Output, error) {
	name := d.ModelID()
	res, err := p.breakers.Execute(name, func() (any, error) {
		out, genErr := d.Generate(ctx, prompt, drivers.Tuning{})
		if genErr != nil {
			return out, genErr
		}
		return out, nil
	})
	if err != nil {
		if fallback := p.oneTierCheaper(d.Route()); fallback != nil {
			out, fbErr := fallback.Generate(ctx, prompt, drivers.Tuning{})
			out.FallbackUsed = true
			return out, fbErr
		}
		return drivers.Output{ErrorClass: types.ErrClassException}, err
	}
	out, _ := res.(drivers.Output)
	return out, nil
}

func (p *Pipeline) oneTierCheaper(route types.RouteClass) drivers.Driver {
	switch route {
	case types.RouteDeep:
		return p.drivers.Planner
	case types.RoutePlanner:
		return p.drivers.Micro
	default:
		return nil
	}
}

func (p *Pipeline) driverFor(class types.RouteClass) drivers.Driver {
	switch class {
	case types.RouteMicro:
		return p.drivers.Micro
	case types.RoutePlanner:
		if p.drivers.Cloud != nil && p.drivers.Cloud.Configured() {
			return p.drivers.Cloud
		}
		return p.drivers.Planner
	case types.RouteDeep:
		return p.drivers.Deep
	default:
		return p.drivers.Micro
	}
}

func (p *Pipeline) recordEvent(ev types.TurnEvent) {
	if p.events != nil {
		_ = p.events.Record(ev)
	}
}

func modelIDFor(class types.RouteClass, d Drivers) string {
	switch class {
	case types.RouteMicro:
		if d.Micro != nil {
			return d.Micro.ModelID()
		}
	case types.RoutePlanner:
		if d.Planner != nil {
			return d.Planner.ModelID()
		}
	case types.RouteDeep:
		if d.Deep != nil {
			return d.Deep.ModelID()
		}
	}
	return "unknown"
}

func textFromPayload(payload map[string]any) string {
	if v, ok := payload["response"].(string); ok {
		return v
	}
	return ""
}

func stringifyContext(ctx map[string]any) []string {
	if len(ctx) == 0 {
		return nil
	}
	out := make([]string, 0, len(ctx))
	for _, v := range ctx {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// rewardFor computes the bandit reward signal from latency, schema
// success, and fallback usage. The blend weights are tunables, per
// spec.md §4.10.
func rewardFor(out drivers.Output, ev types.TurnEvent) float64 {
	reward := 1.0
	if !out.SchemaOK && ev.Route == types.RoutePlanner {
		reward -= 0.5
	}
	if out.FallbackUsed {
		reward -= 0.3
	}
	if ev.E2EMsFull > 1500 {
		reward -= 0.2
	}
	if reward < 0 {
		reward = 0
	}
	return reward
}
