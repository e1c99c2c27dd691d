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

// Package schema validates and repairs the planner's v4 structured
// output. Repair is a pure two-pass pipeline — lexical repair, then
// enum-remap repair — over the raw string, as spec.md §9 requires; no
// mutable state survives past one Repair call.
package schema

import (
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/DanielWarg/alice-orchestrator/alice/types"
)

const Version = "v4"

var validIntents = map[string]bool{
	"email": true, "calendar": true, "weather": true, "memory": true, "none": true,
}

var validTools = map[string]bool{
	"email.create_draft": true, "calendar.create_draft": true,
	"weather.lookup": true, "memory.query": true, "none": true,
}

var validRenderInstructions = map[string]bool{
	"chart": true, "map": true, "scene": true, "none": true,
}

// remapTable maps near-miss or placeholder tool names to their
// canonical v4 value. Every entry here needs a unit test.
var remapTable = map[string]string{
	"create_calendar_draft": "calendar.create_draft",
	"calendar_create_draft": "calendar.create_draft",
	"create_email_draft":    "email.create_draft",
	"email_create_draft":    "email.create_draft",
	"weather_lookup":        "weather.lookup",
	"lookup_weather":        "weather.lookup",
	"memory_query":          "memory.query",
	"query_memory":          "memory.query",
	"<enum>":                "none",
	"":                      "none",
}

var renderRemapTable = map[string]string{
	"<enum>": "none",
	"":       "none",
}

// PlannerOutput mirrors the raw (pre-validation) decoded planner JSON.
type PlannerOutput struct {
	Intent            string                 `json:"intent"`
	Tool              string                 `json:"tool"`
	Args              map[string]interface{} `json:"args"`
	RenderInstruction string                 `json:"render_instruction"`
	Meta              map[string]interface{} `json:"meta"`
}

// ValidationError describes why a PlannerOutput failed validation.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// Repair runs the lexical-then-enum-remap repair pipeline on raw
// planner text and returns the parsed, repaired output. At most one
// repair pass is applied, per spec.md §4.6.
func Repair(raw string) (PlannerOutput, bool, error) {
	lexicallyRepaired := lexicalRepair(raw)

	var out PlannerOutput
	if err := json.Unmarshal([]byte(lexicallyRepaired), &out); err != nil {
		return PlannerOutput{}, false, err
	}

	repaired := enumRemap(&out)
	return out, repaired, nil
}

// lexicalRepair trims to the last closing brace and rebalances braces
// or quotes if off by exactly one — cheap recovery from truncated
// model output.
func lexicalRepair(raw string) string {
	s := strings.TrimSpace(raw)

	if idx := strings.LastIndex(s, "}"); idx >= 0 && idx < len(s)-1 {
		s = s[:idx+1]
	}

	open := strings.Count(s, "{")
	shut := strings.Count(s, "}")
	if open == shut+1 {
		s += "}"
	}

	if strings.Count(s, `"`)%2 == 1 {
		if idx := strings.LastIndex(s, "}"); idx > 0 {
			s = s[:idx] + `"` + s[idx:]
		}
	}

	return s
}

// enumRemap maps placeholder/near-miss enum values to their canonical
// form. Returns whether any remap was applied.
func enumRemap(out *PlannerOutput) bool {
	repaired := false

	if canon, ok := remapTable[out.Tool]; ok && canon != out.Tool {
		out.Tool = canon
		repaired = true
	}
	if canon, ok := renderRemapTable[out.RenderInstruction]; ok && canon != out.RenderInstruction {
		out.RenderInstruction = canon
		repaired = true
	}
	if out.Intent == "<enum>" || out.Intent == "" {
		out.Intent = "none"
		repaired = true
	}

	if out.Meta == nil {
		out.Meta = map[string]interface{}{}
	}
	if out.Meta["version"] != "4.0" {
		out.Meta["version"] = "4.0"
		repaired = true
	}
	if out.Meta["schema_version"] != Version {
		out.Meta["schema_version"] = Version
		repaired = true
	}

	return repaired
}

// Validate applies the strict v4 schema: unknown enum values are
// rejected (after repair has already had its one chance to fix them).
func Validate(out PlannerOutput) error {
	if !validIntents[out.Intent] {
		return &ValidationError{Field: "intent", Value: out.Intent, Message: "not in enum"}
	}
	if !validTools[out.Tool] {
		return &ValidationError{Field: "tool", Value: out.Tool, Message: "not in enum"}
	}
	if !validRenderInstructions[out.RenderInstruction] {
		return &ValidationError{Field: "render_instruction", Value: out.RenderInstruction, Message: "not in enum"}
	}
	return nil
}

// Canonicalize applies tool-specific argument defaults and drops nil
// entries, always run before validation.
func Canonicalize(out *PlannerOutput) {
	if out.Args == nil {
		out.Args = map[string]interface{}{}
	}

	switch out.Tool {
	case "calendar.create_draft":
		if _, ok := out.Args["start_iso"]; !ok {
			start := time.Now().Add(30 * time.Minute)
			start = start.Truncate(5 * time.Minute)
			out.Args["start_iso"] = start.Format(time.RFC3339)
		}
		if _, ok := out.Args["duration_min"]; !ok {
			out.Args["duration_min"] = 30
		}
		if _, ok := out.Args["timezone"]; !ok {
			out.Args["timezone"] = "Europe/Stockholm"
		}
		if _, ok := out.Args["attendees"]; !ok {
			out.Args["attendees"] = []string{}
		}
	case "weather.lookup":
		if _, ok := out.Args["unit"]; !ok {
			out.Args["unit"] = "metric"
		}
	case "email.create_draft":
		if _, ok := out.Args["to"]; !ok {
			out.Args["to"] = ""
		}
		if _, ok := out.Args["subject"]; !ok {
			out.Args["subject"] = ""
		}
		if _, ok := out.Args["body"]; !ok {
			out.Args["body"] = ""
		}
		if _, ok := out.Args["importance"]; !ok {
			out.Args["importance"] = "normal"
		}
	}

	for k, v := range out.Args {
		if v == nil {
			delete(out.Args, k)
		}
	}
}

// SortedArgKeys returns the args map's keys in sorted order, for
// deterministic serialization.
func SortedArgKeys(args map[string]interface{}) []string {
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ToPlan converts a validated PlannerOutput into the pipeline's Plan
// shape for the executor.
func ToPlan(out PlannerOutput, description, userFacing string) types.Plan {
	return types.Plan{
		Description:    description,
		UserFacingResp: userFacing,
		Steps: []types.PlanStep{
			{ToolName: out.Tool, Args: out.Args},
		},
	}
}
