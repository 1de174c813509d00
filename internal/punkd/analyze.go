// Package punkd scores road-hazard vocabulary in prompt text and turns the
// resulting weights into a temperature nudge plus a visible prompt marker.
package punkd

import (
	"sort"
	"strings"
)

// DefaultTopN is the number of tokens Analyze keeps by default.
const DefaultTopN = 16

// boosts multiplies the raw frequency of hazard terms. Unlisted tokens get 1.0.
var boosts = map[string]float64{
	"ice":          2.8,
	"wet":          2.5,
	"snow":         2.9,
	"fog":          2.3,
	"flood":        3.0,
	"construction": 2.2,
	"debris":       2.4,
	"animal":       2.1,
	"blackice":     4.0,
	"hydroplane":   3.5,
}

// Boost returns the hazard multiplier for a lowercase token.
func Boost(token string) float64 {
	if b, ok := boosts[token]; ok {
		return b
	}
	return 1.0
}

// Entry is one token with its normalized weight.
type Entry struct {
	Token  string
	Weight float64
}

// WeightMap is an immutable token -> weight table built by Analyze.
// Entries are held in descending weight order; ties keep the order in which
// the tokens first appeared in the source text. When non-empty, the first
// entry weighs exactly 1.0.
type WeightMap struct {
	entries []Entry
	index   map[string]int
}

// Len reports the number of weighted tokens.
func (w WeightMap) Len() int { return len(w.entries) }

// Empty reports whether no token was weighted.
func (w WeightMap) Empty() bool { return len(w.entries) == 0 }

// Get returns the weight of token and whether it is present.
func (w WeightMap) Get(token string) (float64, bool) {
	i, ok := w.index[token]
	if !ok {
		return 0, false
	}
	return w.entries[i].Weight, true
}

// Entries returns a copy of the entries, heaviest first.
func (w WeightMap) Entries() []Entry {
	out := make([]Entry, len(w.entries))
	copy(out, w.entries)
	return out
}

// Max returns the largest weight, or 0 for an empty map.
func (w WeightMap) Max() float64 {
	if len(w.entries) == 0 {
		return 0
	}
	return w.entries[0].Weight
}

// Mean returns the arithmetic mean of all weights, or 0 for an empty map.
func (w WeightMap) Mean() float64 {
	if len(w.entries) == 0 {
		return 0
	}
	sum := 0.0
	for _, e := range w.entries {
		sum += e.Weight
	}
	return sum / float64(len(w.entries))
}

// Tokenize returns the maximal runs of ASCII letters, digits and underscore
// in text, lowercased. Any other byte (including non-ASCII) separates tokens.
func Tokenize(text string) []string {
	var toks []string
	start := -1
	for i := 0; i < len(text); i++ {
		if isWordByte(text[i]) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			toks = append(toks, strings.ToLower(text[start:i]))
			start = -1
		}
	}
	if start >= 0 {
		toks = append(toks, strings.ToLower(text[start:]))
	}
	return toks
}

func isWordByte(c byte) bool {
	return c == '_' ||
		(c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9')
}

// Analyze scores tokens of text by frequency times hazard boost, keeps the
// topN heaviest and normalizes them against the heaviest kept score.
// Text without tokens, or topN <= 0, yields an empty map.
func Analyze(text string, topN int) WeightMap {
	if topN <= 0 {
		return WeightMap{}
	}

	counts := make(map[string]int)
	var order []string
	for _, tok := range Tokenize(text) {
		if _, seen := counts[tok]; !seen {
			order = append(order, tok)
		}
		counts[tok]++
	}
	if len(order) == 0 {
		return WeightMap{}
	}

	scored := make([]Entry, 0, len(order))
	for _, tok := range order {
		scored = append(scored, Entry{Token: tok, Weight: float64(counts[tok]) * Boost(tok)})
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Weight > scored[j].Weight
	})
	if len(scored) > topN {
		scored = scored[:topN]
	}

	maxScore := scored[0].Weight
	index := make(map[string]int, len(scored))
	for i := range scored {
		scored[i].Weight /= maxScore
		index[scored[i].Token] = i
	}
	return WeightMap{entries: scored, index: index}
}
