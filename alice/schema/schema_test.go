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

package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepairRemapsNearMissTool(t *testing.T) {
	raw := `{"intent":"calendar","tool":"create_calendar_draft","args":{},"render_instruction":"<enum>","meta":{}}`

	out, repaired, err := Repair(raw)
	require.NoError(t, err)
	assert.True(t, repaired)
	assert.Equal(t, "calendar.create_draft", out.Tool)
	assert.Equal(t, "none", out.RenderInstruction)
	assert.Equal(t, "4.0", out.Meta["version"])
	assert.Equal(t, Version, out.Meta["schema_version"])

	require.NoError(t, Validate(out))
}

func TestRepairRebalancesTruncatedBrace(t *testing.T) {
	raw := `{"intent":"weather","tool":"weather.lookup","args":{},"render_instruction":"none","meta":{"version":"4.0","schema_version":"v4"}`

	out, _, err := Repair(raw)
	require.NoError(t, err)
	assert.Equal(t, "weather.lookup", out.Tool)
}

func TestValidateRejectsUnknownEnum(t *testing.T) {
	out := PlannerOutput{Intent: "calendar", Tool: "calendar.delete_everything", RenderInstruction: "none"}
	err := Validate(out)
	require.Error(t, err)
}

func TestCanonicalizeCalendarDefaults(t *testing.T) {
	out := PlannerOutput{Tool: "calendar.create_draft", Args: map[string]interface{}{}}
	Canonicalize(&out)

	assert.Equal(t, 30, out.Args["duration_min"])
	assert.Equal(t, "Europe/Stockholm", out.Args["timezone"])
	assert.Contains(t, out.Args, "start_iso")
}

func TestCanonicalizeWeatherDefaults(t *testing.T) {
	out := PlannerOutput{Tool: "weather.lookup", Args: map[string]interface{}{}}
	Canonicalize(&out)
	assert.Equal(t, "metric", out.Args["unit"])
}

func TestCanonicalizeDropsNilArgs(t *testing.T) {
	out := PlannerOutput{Tool: "email.create_draft", Args: map[string]interface{}{"cc": nil}}
	Canonicalize(&out)
	assert.NotContains(t, out.Args, "cc")
	assert.Equal(t, "normal", out.Args["importance"])
}

func TestSortedArgKeys(t *testing.T) {
	keys := SortedArgKeys(map[string]interface{}{"z": 1, "a": 2, "m": 3})
	assert.Equal(t, []string{"a", "m", "z"}, keys)
}
