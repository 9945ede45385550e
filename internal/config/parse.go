package config

import (
	"math"
	"strings"

	"github.com/spf13/cast"
)

// ParseFloat reads a user-typed number, ignoring a trailing percent sign.
// Unparseable input returns fallback.
func ParseFloat(text string, fallback float64) float64 {
	s := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(text), "%"))
	if s == "" {
		return fallback
	}
	v, err := cast.ToFloat64E(s)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return fallback
	}
	return v
}

// ParseVolume reads a volume such as "250k", "1.5m" or "100,000".
func ParseVolume(text string, fallback float64) float64 {
	s := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(text), ",", ""))
	mult := 1.0
	switch {
	case strings.HasSuffix(s, "k"):
		mult, s = 1_000, strings.TrimSuffix(s, "k")
	case strings.HasSuffix(s, "m"):
		mult, s = 1_000_000, strings.TrimSuffix(s, "m")
	}
	v := ParseFloat(s, math.NaN())
	if math.IsNaN(v) {
		return fallback
	}
	return v * mult
}

// ParseTopN reads the rank cutoff. "All", empty, invalid or non-positive
// input means no cutoff and returns 0.
func ParseTopN(text string) int {
	s := strings.TrimSpace(text)
	if s == "" || strings.EqualFold(s, "all") {
		return 0
	}
	n, err := cast.ToIntE(s)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
