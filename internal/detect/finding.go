package detect

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// Pattern type identifiers carried on findings and surfaced in the report.
const (
	PatternCycle      = "cycle"
	PatternFanIn      = "smurfing_fanin"
	PatternFanOut     = "smurfing_fanout"
	PatternShellChain = "shell_chain"
)

// Finding is one detector hit. Detectors emit heterogeneous evidence
// (cycles, bursts, chains) through this single shape so the scorer can
// consume them uniformly.
type Finding struct {
	PatternType string
	Accounts    []string // ordered member tuple (cycle order, chain order, or the single flagged account)
	Amount      decimal.Decimal
	Span        time.Duration
	RawScore    float64 // 0.0 - 1.0
}

// clip bounds v to [0, 1].
func clip(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// meanStd returns mean and population standard deviation.
func meanStd(values []float64) (mean, std float64) {
	if len(values) == 0 {
		return 0, 0
	}
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))

	var variance float64
	for _, v := range values {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(values))
	return mean, math.Sqrt(variance)
}

// coefficientOfVariation returns stddev/mean, or 1.0 when the mean is not
// positive (treated as maximally dispersed).
func coefficientOfVariation(values []float64) float64 {
	mean, std := meanStd(values)
	if mean <= 0 {
		return 1.0
	}
	return std / mean
}

// spanHours converts a duration to fractional hours for compactness scoring.
func spanHours(d time.Duration) float64 {
	return d.Hours()
}
