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

// Package canon normalizes incoming turn text before it is hashed for
// cache lookup or scored by the router, so that cosmetic differences
// (full-width punctuation, curly quotes, stray whitespace) never cause
// two semantically identical turns to miss each other in the cache or
// score differently in the router. golang.org/x/text was already an
// indirect dependency of the platform's Google Cloud Storage client; it
// is promoted here to direct use for its unicode/norm and width tables,
// since the standard library has no Unicode normalization support.
package canon

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

var (
	quoteFolder = strings.NewReplacer(
		"‘", "'", "’", "'", "‛", "'", "ʼ", "'",
		"“", "\"", "”", "\"", "‟", "\"",
		"–", "-", "—", "-", "−", "-",
		" ", " ", " ", " ", " ", " ",
	)

	whitespaceRun = regexp.MustCompile(`\s+`)
)

// Text canonicalizes a turn's raw text into the form used for cache
// keys and router scoring: NFKC normalization, full-width-to-ASCII
// folding, curly-quote/dash folding, lowercasing, and whitespace
// collapsing.
func Text(raw string) string {
	s := norm.NFKC.String(raw)
	s = width.Fold.String(s)
	s = quoteFolder.Replace(s)
	s = strings.ToLower(s)
	s = whitespaceRun.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// Tokens splits canonicalized text into the lowercase word tokens used
// by the cache's Jaccard-similarity comparison and the router's
// keyword scoring.
func Tokens(canonical string) []string {
	fields := strings.FieldsFunc(canonical, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

// Jaccard computes the Jaccard similarity between two token sets, used
// by the cache's L2 near-duplicate lookup.
func Jaccard(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}

	setA := make(map[string]struct{}, len(a))
	for _, t := range a {
		setA[t] = struct{}{}
	}
	setB := make(map[string]struct{}, len(b))
	for _, t := range b {
		setB[t] = struct{}{}
	}

	intersection := 0
	for t := range setA {
		if _, ok := setB[t]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0.0
	}
	return float64(intersection) / float64(union)
}
