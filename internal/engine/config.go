package engine

import (
	"github.com/rawblock/muling-engine/internal/detect"
	"github.com/rawblock/muling-engine/internal/scoring"
)

// Config aggregates every tunable of the pipeline. Zero-value fields are
// not meaningful; start from DefaultConfig and override.
type Config struct {
	Cycle         detect.CycleConfig
	Smurfing      detect.SmurfingConfig
	ShellChain    detect.ShellChainConfig
	FalsePositive detect.FalsePositiveConfig
	Scoring       scoring.Config
}

// DefaultConfig pins the reference thresholds so regression tests can rely
// on them.
func DefaultConfig() Config {
	return Config{
		Cycle:         detect.DefaultCycleConfig(),
		Smurfing:      detect.DefaultSmurfingConfig(),
		ShellChain:    detect.DefaultShellChainConfig(),
		FalsePositive: detect.DefaultFalsePositiveConfig(),
		Scoring:       scoring.DefaultConfig(),
	}
}
