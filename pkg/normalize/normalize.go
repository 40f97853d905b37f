// Copyright 2023 UMH Systems GmbH
//
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

// Package normalize folds free text into a comparable form for searching
// and for matching spreadsheet headers that differ only in case, accents or
// surrounding whitespace.
package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Text lowercases s, decomposes it (NFKD), drops every non-ASCII rune and
// trims surrounding whitespace. The result is always ASCII, so Text is
// idempotent: Text(Text(s)) == Text(s).
func Text(s string) string {
	if s == "" {
		return ""
	}
	t := transform.Chain(norm.NFKD, runes.Remove(runes.Predicate(isNotASCII)))
	folded, _, err := transform.String(t, strings.ToLower(s))
	if err != nil {
		// transform only fails on invalid state; fall back to the plain lowercased input
		folded = strings.ToLower(s)
	}
	// NFKD can produce uppercase ASCII from compatibility characters (e.g. "ℌ")
	return strings.TrimSpace(strings.ToLower(folded))
}

// Contains reports whether the folded haystack contains the folded needle.
// An empty haystack never contains a non-empty needle.
func Contains(haystack, needle string) bool {
	h := Text(haystack)
	n := Text(needle)
	if h == "" {
		return n == ""
	}
	return strings.Contains(h, n)
}

func isNotASCII(r rune) bool {
	return r > unicode.MaxASCII
}
