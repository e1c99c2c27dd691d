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

// Package router scores incoming turn text against three keyword
// pattern families and picks a cost/latency tier, modulated by forced
// routes, NLU hints, and quota pressure. The priority-ordered,
// first-match-wins evaluation with an attached human-readable reason
// is the same shape as the platform's LLMRouter.selectProviderWithReason
// (examples/support-demo/backend/llm_router.go), adapted from
// data-sensitivity routing to cost-tier routing.
package router

import (
	"regexp"
	"strings"

	"github.com/DanielWarg/alice-orchestrator/alice/canon"
	"github.com/DanielWarg/alice-orchestrator/alice/quota"
	"github.com/DanielWarg/alice-orchestrator/alice/types"
)

var (
	microPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\b(hej|hallå|tjena|hejsan|morgon)\b`),
		regexp.MustCompile(`\b(hi|hello|hey)\b`),
		regexp.MustCompile(`\b(vad är klockan|what time|weather|väder)\b`),
		regexp.MustCompile(`\b(ja|nej|yes|no|tack|thanks)\b`),
		regexp.MustCompile(`\b(kom ihåg|remember|minns du)\b`),
	}

	plannerPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\b(boka|book|skicka|send|visa|show|skapa|create|ändra|modify|sök|search)\b`),
	}

	deepPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\b(förklara|explain|sammanfatta|summarize|jämför|compare)\b`),
		regexp.MustCompile(`\b(varför|why|orsak|because of|reason about)\b`),
		regexp.MustCompile(`\b(rekommendera|recommend|föreslå|suggest)\b`),
	}

	urlPattern = regexp.MustCompile(`https?://`)
	digitPattern = regexp.MustCompile(`\d`)
)

// Features is the bundle of cheap, non-I/O signals extracted from the
// turn text before scoring.
type Features struct {
	Length        int
	WordCount     int
	HasQuestion   bool
	HasExclaim    bool
	HasDigits     bool
	HasURL        bool
	MicroMatches  int
	PlannerMatches int
	DeepMatches   int
}

// Extract computes Features from raw turn text.
func Extract(raw string) Features {
	c := canon.Text(raw)
	words := canon.Tokens(c)

	f := Features{
		Length:      len(raw),
		WordCount:   len(words),
		HasQuestion: strings.Contains(raw, "?"),
		HasExclaim:  strings.Contains(raw, "!"),
		HasDigits:   digitPattern.MatchString(raw),
		HasURL:      urlPattern.MatchString(raw),
	}

	for _, p := range microPatterns {
		if p.MatchString(c) {
			f.MicroMatches++
		}
	}
	for _, p := range plannerPatterns {
		if p.MatchString(c) {
			f.PlannerMatches++
		}
	}
	for _, p := range deepPatterns {
		if p.MatchString(c) {
			f.DeepMatches++
		}
	}

	return f
}

// Score computes each class's raw score per spec.md §4.1's fixed
// table: pattern_matches*2 plus length-bucket and interaction bonuses.
func Score(f Features) map[types.RouteClass]float64 {
	scores := map[types.RouteClass]float64{
		types.RouteMicro:   float64(f.MicroMatches) * 2,
		types.RoutePlanner: float64(f.PlannerMatches) * 2,
		types.RouteDeep:    float64(f.DeepMatches) * 2,
	}

	if f.WordCount <= 4 {
		scores[types.RouteMicro] += 1.5
	} else if f.WordCount <= 12 {
		scores[types.RoutePlanner] += 1.0
	} else {
		scores[types.RouteDeep] += 1.0
	}

	if f.HasQuestion && f.WordCount <= 6 {
		scores[types.RouteMicro] += 0.5
	}
	if f.HasDigits || f.HasURL {
		scores[types.RoutePlanner] += 0.5
	}

	// Micro preference nudge: favor the cheap path when it is already
	// non-trivial.
	if scores[types.RouteMicro] > 0 {
		scores[types.RouteMicro] += 0.25
	}

	return scores
}

// Decide runs the full router policy: scoring, forced-route override,
// NLU-hint override, and quota enforcement, in that priority order.
func Decide(req types.Request, nluHint types.RouteClass, nluConfidence float64, tracker *quota.Tracker, microMaxShare float64) types.RouteDecision {
	f := Extract(req.Text)
	scores := Score(f)

	best, reason := pickBest(scores)

	if req.ForcedRoute != "" {
		return types.RouteDecision{
			Class:      req.ForcedRoute,
			Confidence: 1.0,
			Reason:     "forced route",
			Features:   featuresMap(f),
		}
	}

	if nluHint != "" && nluConfidence >= 0.7 {
		best = nluHint
		reason = "NLU hint override"
	}

	if best == types.RouteMicro && tracker != nil && tracker.OverCap() {
		best = types.RoutePlanner
		reason = "MICRO quota exceeded (MICRO_MAX_SHARE)"
	}

	if tracker != nil {
		tracker.Record(best)
	}

	total := scores[types.RouteMicro] + scores[types.RoutePlanner] + scores[types.RouteDeep]
	confidence := 0.5
	if total > 0 {
		confidence = scores[best] / total
	}

	return types.RouteDecision{
		Class:      best,
		Confidence: confidence,
		Reason:     reason,
		Features:   featuresMap(f),
	}
}

func pickBest(scores map[types.RouteClass]float64) (types.RouteClass, string) {
	best := types.RoutePlanner
	bestScore := scores[types.RoutePlanner]

	if scores[types.RouteMicro] > bestScore {
		best = types.RouteMicro
		bestScore = scores[types.RouteMicro]
	}
	if scores[types.RouteDeep] > bestScore {
		best = types.RouteDeep
		bestScore = scores[types.RouteDeep]
	}

	return best, "keyword/length scoring"
}

func featuresMap(f Features) map[string]any {
	return map[string]any{
		"length":          f.Length,
		"word_count":      f.WordCount,
		"has_question":    f.HasQuestion,
		"has_exclaim":     f.HasExclaim,
		"has_digits":      f.HasDigits,
		"has_url":         f.HasURL,
		"micro_matches":   f.MicroMatches,
		"planner_matches": f.PlannerMatches,
		"deep_matches":    f.DeepMatches,
	}
}
