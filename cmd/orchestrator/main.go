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

// Package main is the entry point for the Alice Orchestrator service.
//
// The orchestrator routes each turn across four cost tiers (micro,
// planner, deep, cache), admits requests against a health oracle,
// executes planner tool calls under circuit breakers, and emits a
// turn event per request. See alice/pipeline for the request state
// machine and alice/httpapi for the HTTP surface.
//
// Usage:
//
//	./orchestrator
//
// Environment variables are documented in alice/config.
package main

import (
	"log"
	"net/http"
	"time"

	"github.com/DanielWarg/alice-orchestrator/alice/bandit"
	"github.com/DanielWarg/alice-orchestrator/alice/breaker"
	"github.com/DanielWarg/alice-orchestrator/alice/cache"
	"github.com/DanielWarg/alice-orchestrator/alice/config"
	"github.com/DanielWarg/alice-orchestrator/alice/drivers"
	"github.com/DanielWarg/alice-orchestrator/alice/events"
	"github.com/DanielWarg/alice-orchestrator/alice/httpapi"
	"github.com/DanielWarg/alice-orchestrator/alice/memoryclient"
	"github.com/DanielWarg/alice-orchestrator/alice/nlu"
	"github.com/DanielWarg/alice-orchestrator/alice/oracle"
	"github.com/DanielWarg/alice-orchestrator/alice/pipeline"
	"github.com/DanielWarg/alice-orchestrator/alice/quota"
	"github.com/DanielWarg/alice-orchestrator/alice/tools"
	"github.com/DanielWarg/alice-orchestrator/alice/toolhandlers"
	"github.com/DanielWarg/alice-orchestrator/shared/logger"
)

func main() {
	cfg := config.Load()
	lg := logger.New("alice-orchestrator")
	lg.Info("", "", "starting alice orchestrator", map[string]interface{}{"port": cfg.Port})

	rdb := cache.NewClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	c := cache.New(rdb, cache.Config{
		L1TTL:        cfg.CacheL1TTL,
		L2TTL:        cfg.CacheL2TTL,
		NegativeTTL:  cfg.CacheNegTTL,
		SimThreshold: cfg.CacheSimCutoff,
		L2SearchCap:  50,
	}, lg)

	o := oracle.New(cfg.OracleURL, 2*time.Second, cfg.OracleTimeout, lg)

	br := breaker.NewRegistry(breaker.Config{
		FailureThreshold: cfg.BreakerFailureThreshold,
		OpenTimeout:      cfg.BreakerOpenTimeout,
		HalfOpenMax:      cfg.BreakerHalfOpenMax,
	})

	n := nlu.New(cfg.NLUURL, 200*time.Millisecond, br)
	bc := bandit.New("", cfg.BanditEnabled, cfg.BanditCanaryShare, 40*time.Millisecond)
	q := quota.NewTracker(cfg.QuotaWindow, cfg.MicroMaxShare)

	microDriver := drivers.NewMicroDriver(cfg.OllamaEndpoint, cfg.OllamaModel, 250*time.Millisecond, "5m")
	plannerDriver := drivers.NewPlannerDriver(cfg.OllamaEndpoint, cfg.OllamaModel, 1200*time.Millisecond, "5m")
	deepDriver := drivers.NewDeepDriver(cfg.OllamaEndpoint, cfg.OllamaModel, 8*time.Second, 5*time.Minute, "0s")
	cloudDriver := drivers.NewCloudPlannerDriver(cfg.OpenAIKey, "gpt-4o-mini", 3*time.Second)

	mem := memoryclient.New(cfg.MemoryURL, cfg.MemoryTimeout)

	toolReg := tools.NewRegistry()
	toolhandlers.RegisterDefaults(toolReg, toolhandlers.Config{Timeout: 400 * time.Millisecond}, mem)
	toolExec := tools.NewExecutor(toolReg, br, tools.DefaultExecConfig())

	evSink := events.New(dirOf(cfg.TurnLogPath), eventsMode(cfg.TurnLogAsync), lg)
	defer evSink.Close()

	p := pipeline.New(o, n, bc, c, q, br, toolExec,
		pipeline.Drivers{Micro: microDriver, Planner: plannerDriver, Deep: deepDriver, Cloud: cloudDriver},
		evSink,
		pipeline.Config{
			TotalBudget:    1500 * time.Millisecond,
			NLUTimeout:     80 * time.Millisecond,
			CacheTTL:       cfg.CacheL1TTL,
			CacheNegTTL:    cfg.CacheNegTTL,
			SecurityStrict: true,
			SchemaVersion:  "v4",
		})

	server := httpapi.New(p, o, c, q, br, toolReg, mem, lg)

	lg.Info("", "", "alice orchestrator listening", map[string]interface{}{"port": cfg.Port})
	log.Fatal(http.ListenAndServe(":"+cfg.Port, server.Router()))
}

// dirOf returns the directory portion of a file path, or "." if path
// has no separator. Used to derive the turn-event log directory from
// TURN_LOG_PATH's configured file path.
func dirOf(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[:i]
		}
	}
	return "."
}

func eventsMode(async bool) events.Mode {
	if async {
		return events.ModeAsync
	}
	return events.ModeSync
}
