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

package router

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/DanielWarg/alice-orchestrator/alice/quota"
	"github.com/DanielWarg/alice-orchestrator/alice/types"
)

func TestExtractCountsMicroPattern(t *testing.T) {
	f := Extract("Hej!")
	assert.Equal(t, 1, f.MicroMatches)
}

func TestDecideGreetingRoutesMicro(t *testing.T) {
	d := Decide(types.Request{Text: "Hej"}, "", 0, nil, 0.2)
	assert.Equal(t, types.RouteMicro, d.Class)
}

func TestDecidePlannerVerb(t *testing.T) {
	d := Decide(types.Request{Text: "boka ett möte imorgon"}, "", 0, nil, 0.2)
	assert.Equal(t, types.RoutePlanner, d.Class)
}

func TestDecideDeepVerb(t *testing.T) {
	d := Decide(types.Request{Text: "kan du förklara varför detta händer och jämföra med förra månaden"}, "", 0, nil, 0.2)
	assert.Equal(t, types.RouteDeep, d.Class)
}

func TestDecideForcedRouteWins(t *testing.T) {
	d := Decide(types.Request{Text: "Hej", ForcedRoute: types.RouteDeep}, "", 0, nil, 0.2)
	assert.Equal(t, types.RouteDeep, d.Class)
	assert.Equal(t, "forced route", d.Reason)
}

func TestDecideNLUHintOverridesWhenConfident(t *testing.T) {
	d := Decide(types.Request{Text: "Hej"}, types.RouteDeep, 0.9, nil, 0.2)
	assert.Equal(t, types.RouteDeep, d.Class)
}

func TestDecideLowConfidenceNLUHintIgnored(t *testing.T) {
	d := Decide(types.Request{Text: "Hej"}, types.RouteDeep, 0.3, nil, 0.2)
	assert.Equal(t, types.RouteMicro, d.Class)
}

func TestDecideQuotaForcesAwayFromMicro(t *testing.T) {
	tr := quota.NewTracker(time.Minute, 0.2)
	for i := 0; i < 9; i++ {
		tr.Record(types.RouteMicro)
	}

	d := Decide(types.Request{Text: "vad är klockan?"}, "", 0, tr, 0.2)
	assert.Equal(t, types.RoutePlanner, d.Class)
	assert.Contains(t, d.Reason, "MICRO quota exceeded")
}

func TestDecideTieResolvesToPlanner(t *testing.T) {
	d := Decide(types.Request{Text: "xyz123"}, "", 0, nil, 0.2)
	assert.Equal(t, types.RoutePlanner, d.Class)
}
