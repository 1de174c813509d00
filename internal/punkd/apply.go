package punkd

import (
	"fmt"
	"strings"
)

// Profile names a preset controlling how strongly hazard weights move the
// sampling temperature.
type Profile string

const (
	ProfileConservative Profile = "conservative"
	ProfileBalanced     Profile = "balanced"
	ProfileAggressive   Profile = "aggressive"
)

const (
	minMultiplier = 0.6
	maxMultiplier = 2.2
	markerLimit   = 8

	markerHeader = "[PUNKD HAZARD BOOST] "
)

var profileMultipliers = map[Profile]float64{
	ProfileConservative: 0.7,
	ProfileBalanced:     1.0,
	ProfileAggressive:   1.6,
}

// ParseProfile normalizes a user supplied profile name. Empty input maps to
// ProfileBalanced; unknown names are returned as-is and behave like balanced.
func ParseProfile(s string) Profile {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ProfileBalanced
	}
	return Profile(s)
}

// Known reports whether p is one of the named presets.
func (p Profile) Known() bool {
	_, ok := profileMultipliers[p]
	return ok
}

// Multiplier returns the preset strength; unknown profiles return 1.0.
func (p Profile) Multiplier() float64 {
	if m, ok := profileMultipliers[p]; ok {
		return m
	}
	return 1.0
}

// Marker renders up to eight of the heaviest tokens as <HAZ:token:0.00>
// annotations separated by spaces.
func Marker(w WeightMap) string {
	n := min(len(w.entries), markerLimit)
	parts := make([]string, 0, n)
	for _, e := range w.entries[:n] {
		parts = append(parts, fmt.Sprintf("<HAZ:%s:%.2f>", e.Token, e.Weight))
	}
	return strings.Join(parts, " ")
}

// Apply appends the hazard marker to prompt and returns the temperature
// multiplier implied by the mean weight, clamped to [0.6, 2.2].
// An empty map leaves the prompt untouched with multiplier 1.0.
func Apply(prompt string, w WeightMap, p Profile) (string, float64) {
	if w.Empty() {
		return prompt, 1.0
	}
	adj := 1.0 + (w.Mean()-0.5)*1.2*p.Multiplier()
	adj = max(minMultiplier, min(maxMultiplier, adj))
	return prompt + "\n\n" + markerHeader + Marker(w), adj
}
