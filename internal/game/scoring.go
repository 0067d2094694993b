/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package game

import (
	"math"
	"regexp"
	"strings"
)

var nonWord = regexp.MustCompile(`\W+`)

// tokenize lower-cases s and splits it on runs of non-word characters.
func tokenize(s string) []string {
	parts := nonWord.Split(strings.ToLower(s), -1)

	tokens := parts[:0]
	for _, p := range parts {
		if p != "" {
			tokens = append(tokens, p)
		}
	}
	return tokens
}

// Similarity scores candidate against original by lexical overlap: the
// number of candidate tokens found in the original's token set, divided by
// the longer token count, as a rounded percentage.
//
// This is not semantic similarity. Round outcomes depend on it exactly.
func Similarity(original, candidate string) int {
	if original == "" || candidate == "" {
		return 0
	}

	want := tokenize(original)
	got := tokenize(candidate)

	longest := max(len(want), len(got))
	if longest == 0 {
		return 0
	}

	set := make(map[string]struct{}, len(want))
	for _, w := range want {
		set[w] = struct{}{}
	}

	matches := 0
	for _, g := range got {
		if _, ok := set[g]; ok {
			matches++
		}
	}

	return int(math.Round(float64(matches) / float64(longest) * 100))
}
