package normalize

import (
	"fmt"
	"math"
)

// Scale selects how a numeric amount is rescaled for display.
type Scale string

// Supported scales.
const (
	ScaleRaw  Scale = "raw"
	ScaleWan  Scale = "wan"  // 1e4
	ScaleYi   Scale = "yi"   // 1e8
	ScaleAuto Scale = "auto" // yi at >= 1e8, wan at >= 1e4, raw below
)

const (
	wan = 1e4
	yi  = 1e8
)

// ParseScale parses a scale name.
func ParseScale(s string) (Scale, error) {
	switch Scale(s) {
	case ScaleRaw, ScaleWan, ScaleYi, ScaleAuto:
		return Scale(s), nil
	case "":
		return ScaleRaw, nil
	}
	return "", fmt.Errorf("unknown scale %q", s)
}

// Resolve picks the concrete scale ScaleAuto would use for v.
func Resolve(v float64) Scale {
	a := math.Abs(v)
	switch {
	case a >= yi:
		return ScaleYi
	case a >= wan:
		return ScaleWan
	default:
		return ScaleRaw
	}
}

// Format rescales v and rounds it to two decimals.
func Format(v float64, scale Scale) float64 {
	if scale == ScaleAuto {
		scale = Resolve(v)
	}
	switch scale {
	case ScaleWan:
		v /= wan
	case ScaleYi:
		v /= yi
	}
	return round2(v)
}

// Suffix returns the label suffix for a resolved scale, e.g. "(亿)".
func (s Scale) Suffix() string {
	switch s {
	case ScaleWan:
		return "(万)"
	case ScaleYi:
		return "(亿)"
	default:
		return ""
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
