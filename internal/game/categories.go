/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package game

import (
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

// RandomCategory asks for a pick from the full catalog.
const RandomCategory = "random"

// Catalog is the fixed set of categories used when a room asks for random.
var Catalog = []string{
	"animals",
	"architecture",
	"fantasy",
	"food",
	"landscapes",
	"objects",
	"people",
	"space",
	"sports",
	"underwater",
	"vehicles",
}

// A typed category is treated as a misspelt catalog entry only when it is
// at least minSnapLength runes long and a single edit away from it.
const (
	maxSnapDistance = 1
	minSnapLength   = 6
)

// NormalizeCategories trims, lower-cases and de-duplicates names. A long
// name one edit from a catalog entry is replaced by that entry; anything
// else is kept so rooms can play custom categories.
func NormalizeCategories(names []string) []string {
	out := make([]string, 0, len(names))

	for _, name := range names {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}

		if name != RandomCategory && utf8.RuneCountInString(name) >= minSnapLength {
			name = snapToCatalog(name)
		}

		if !slices.Contains(out, name) {
			out = append(out, name)
		}
	}

	return out
}

func snapToCatalog(name string) string {
	best, bestDist := name, maxSnapDistance+1

	for _, c := range Catalog {
		if c == name {
			return c
		}
		if d := levenshtein.ComputeDistance(name, c); d < bestDist {
			best, bestDist = c, d
		}
	}

	return best
}

// pickCategory chooses uniformly from the room's categories, or from the
// whole catalog when none are set or the random sentinel is present.
func pickCategory(rnd Rand, categories []string) string {
	pool := categories
	if len(pool) == 0 || slices.Contains(pool, RandomCategory) {
		pool = Catalog
	}
	return pool[rnd.IntN(len(pool))]
}
