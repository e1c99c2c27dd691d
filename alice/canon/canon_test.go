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

package canon

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTextFoldsQuotesAndCase(t *testing.T) {
	assert.Equal(t, `what's the weather`, Text(`What’s the weather`))
}

func TestTextCollapsesWhitespace(t *testing.T) {
	assert.Equal(t, "hello world", Text("  hello   \t world  "))
}

func TestTextFoldsFullWidth(t *testing.T) {
	assert.Equal(t, "hello", Text("ｈｅｌｌｏ"))
}

func TestTokens(t *testing.T) {
	assert.Equal(t, []string{"book", "a", "flight", "to", "paris"}, Tokens("book a flight to paris"))
}

func TestJaccardIdentical(t *testing.T) {
	a := Tokens("book a flight to paris")
	b := Tokens("book a flight to paris")
	assert.Equal(t, 1.0, Jaccard(a, b))
}

func TestJaccardPartialOverlap(t *testing.T) {
	a := Tokens("book a flight to paris")
	b := Tokens("book a flight to london")
	sim := Jaccard(a, b)
	assert.Greater(t, sim, 0.5)
	assert.Less(t, sim, 1.0)
}

func TestJaccardDisjoint(t *testing.T) {
	a := Tokens("book a flight")
	b := Tokens("cancel the order")
	assert.Equal(t, 0.0, Jaccard(a, b))
}

func TestJaccardEmptyBoth(t *testing.T) {
	assert.Equal(t, 1.0, Jaccard(nil, nil))
}
