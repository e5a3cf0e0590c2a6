// Package kernelconfig loads static kernel configuration from YAML,
// grounded on the teacher's pkg/config profile-loader pattern (same
// gopkg.in/yaml.v3 dependency, same read-file-then-Unmarshal shape).
// What it configures differs entirely: instead of jurisdiction
// profiles, a kernel config fixes the Friction Engine's delay table and
// the confidence thresholds consulted at admission step 8 — the two
// places the spec allows a deployment-specific number without touching
// code.
package kernelconfig

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mek-labs/kernel/pkg/friction"
	"github.com/mek-labs/kernel/pkg/primitives"
)

// FrictionConfig mirrors friction.Table in YAML-friendly form (plain
// seconds rather than time.Duration, which yaml.v3 has no native
// notion of).
type FrictionConfig struct {
	HighSeconds             float64 `yaml:"high_seconds"`
	MediumSeconds           float64 `yaml:"medium_seconds"`
	LowSeconds              float64 `yaml:"low_seconds"`
	LowConfidenceThreshold  float64 `yaml:"low_confidence_threshold"`
	PenaltySeconds          float64 `yaml:"penalty_seconds"`
}

// ThresholdConfig mirrors guard.ConfidenceThreshold in YAML-friendly
// form.
type ThresholdConfig struct {
	High   float64 `yaml:"high"`
	Medium float64 `yaml:"medium"`
	Low    float64 `yaml:"low"`
}

// Config is the full static kernel configuration document.
type Config struct {
	Friction   FrictionConfig  `yaml:"friction"`
	Thresholds ThresholdConfig `yaml:"confidence_thresholds"`
}

// Default returns the configuration matching the spec's own ladder
// (§4.5, §4.6), for use when no config file is supplied.
func Default() Config {
	return Config{
		Friction: FrictionConfig{
			HighSeconds:            10,
			MediumSeconds:          3,
			LowSeconds:             0,
			LowConfidenceThreshold: 0.6,
			PenaltySeconds:         5,
		},
		Thresholds: ThresholdConfig{High: 0.7, Medium: 0.5, Low: 0},
	}
}

// Load reads and parses a YAML config file at path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("kernelconfig: read %s: %w", path, err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("kernelconfig: parse %s: %w", path, err)
	}
	return cfg, nil
}

// FrictionTable converts the YAML-friendly FrictionConfig into the
// friction.Table the Friction Engine actually consumes.
func (c Config) FrictionTable() friction.Table {
	return friction.Table{
		Base: map[primitives.Consequence]time.Duration{
			primitives.ConsequenceHigh:   secondsToDuration(c.Friction.HighSeconds),
			primitives.ConsequenceMedium: secondsToDuration(c.Friction.MediumSeconds),
			primitives.ConsequenceLow:    secondsToDuration(c.Friction.LowSeconds),
		},
		LowConfidenceThreshold: c.Friction.LowConfidenceThreshold,
		Penalty:                secondsToDuration(c.Friction.PenaltySeconds),
	}
}

// Threshold returns the confidence threshold step 8 enforces for a
// given consequence level.
func (c Config) Threshold(consequence primitives.Consequence) float64 {
	switch consequence {
	case primitives.ConsequenceHigh:
		return c.Thresholds.High
	case primitives.ConsequenceMedium:
		return c.Thresholds.Medium
	default:
		return c.Thresholds.Low
	}
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
