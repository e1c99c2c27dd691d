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

// Package security scans user text and retrieved context for prompt
// injection attempts before a turn reaches a driver. Its pattern-set-
// with-confidence-and-category shape is narrowed from the platform's
// SQL injection scanner in agent/sqli (patterns.go's Category/Pattern
// table and basic_scanner.go's first-match-wins Scan), retargeted from
// SQL metacharacters to prompt-injection phrasing.
package security

import (
	"regexp"
)

// Category groups related injection patterns.
type Category string

const (
	CategoryOverride     Category = "instruction_override"
	CategoryExfiltration Category = "prompt_exfiltration"
	CategoryToolAbuse    Category = "tool_abuse"
)

// Pattern is one compiled injection signature.
type Pattern struct {
	Name       string
	Category   Category
	Regex      *regexp.Regexp
	Confidence float64
}

var patterns = []*Pattern{
	{
		Name:       "ignore_previous_instructions",
		Category:   CategoryOverride,
		Regex:      regexp.MustCompile(`(?i)\bignore\s+(all\s+)?(previous|prior|above)\s+instructions?\b`),
		Confidence: 0.9,
	},
	{
		Name:       "disable_safety",
		Category:   CategoryOverride,
		Regex:      regexp.MustCompile(`(?i)\bdisable\s+(safety|guardrails|filters?)\b`),
		Confidence: 0.9,
	},
	{
		Name:       "override_directive",
		Category:   CategoryOverride,
		Regex:      regexp.MustCompile(`(?i)\boverride\s+(the\s+)?(system|safety|previous)\b`),
		Confidence: 0.8,
	},
	{
		Name:       "reveal_system_prompt",
		Category:   CategoryExfiltration,
		Regex:      regexp.MustCompile(`(?i)\b(reveal|show|print|repeat)\s+(your\s+|the\s+)?system\s+prompt\b`),
		Confidence: 0.85,
	},
	{
		Name:       "act_as_developer_mode",
		Category:   CategoryExfiltration,
		Regex:      regexp.MustCompile(`(?i)\b(developer\s+mode|jailbreak|dan\s+mode)\b`),
		Confidence: 0.75,
	},
	{
		Name:       "run_arbitrary_tool",
		Category:   CategoryToolAbuse,
		Regex:      regexp.MustCompile(`(?i)\b(run|execute)\s+(tool|command|shell|code)\b`),
		Confidence: 0.7,
	},
}

// highRiskIntents require an explicit user confirmation step before a
// planner output executes, regardless of injection score.
var highRiskIntents = map[string]bool{
	"email.create_draft":    true,
	"calendar.create_draft": true,
}

// Finding is one matched pattern against a scanned text.
type Finding struct {
	PatternName string
	Category    Category
	Confidence  float64
}

// Assessment is the outcome of scanning a turn's user text and
// retrieved context.
type Assessment struct {
	Findings          []Finding
	Score             float64 // highest confidence across all findings, 0 if none
	RequiresBlock      bool    // true in strict mode when Score crosses the block threshold
	RequiresConfirm    bool    // true when the resolved intent is high-risk
}

const strictBlockThreshold = 0.8

// Scan checks raw user text and any retrieved context strings for
// injection patterns. strict gates whether a high-confidence finding
// blocks the turn outright (STRICT mode) or only gets logged.
func Scan(text string, context []string, strict bool) Assessment {
	var findings []Finding
	var maxScore float64

	scan := func(s string) {
		for _, p := range patterns {
			if p.Regex.MatchString(s) {
				findings = append(findings, Finding{PatternName: p.Name, Category: p.Category, Confidence: p.Confidence})
				if p.Confidence > maxScore {
					maxScore = p.Confidence
				}
			}
		}
	}

	scan(text)
	for _, c := range context {
		scan(c)
	}

	return Assessment{
		Findings:      findings,
		Score:         maxScore,
		RequiresBlock: strict && maxScore >= strictBlockThreshold,
	}
}

// RequiresConfirmation reports whether the resolved planner intent
// must be confirmed by the user before its tool call executes.
func RequiresConfirmation(intent string) bool {
	return highRiskIntents[intent]
}
