package predictor

import (
	"fmt"
	"os"
	"time"

	iso8601 "github.com/senseyeio/duration"
	"gopkg.in/yaml.v3"
)

// Config carries the closure timing constants. These are operational tuning
// parameters calibrated against observation at the crossing, so they all
// live in configuration rather than code.
type Config struct {
	// LeadTime is how long before a train's crossing time the barriers go
	// down; ClearTime covers train length plus barrier raise.
	LeadTime  time.Duration
	ClearTime time.Duration

	// MinimumOpening is the merge threshold: a predicted opening shorter
	// than this is folded into one closure window.
	MinimumOpening time.Duration

	// BriefOpeningMax bounds what gets announced as a "brief opening"
	// between two closures.
	BriefOpeningMax time.Duration

	// DwellOffset converts a stopping train's station report into its
	// crossing time.
	DwellOffset time.Duration

	Horizon           time.Duration
	LookBehind        time.Duration
	RecomputeInterval time.Duration
	Retention         time.Duration
}

type configFileSection struct {
	LeadTime          string `yaml:"lead_time"`
	ClearTime         string `yaml:"clear_time"`
	MinimumOpening    string `yaml:"minimum_opening"`
	BriefOpeningMax   string `yaml:"brief_opening_max"`
	DwellOffset       string `yaml:"dwell_offset"`
	Horizon           string `yaml:"horizon"`
	LookBehind        string `yaml:"look_behind"`
	RecomputeInterval string `yaml:"recompute_interval"`
	Retention         string `yaml:"retention"`
}

// DefaultConfig matches the reference deployment's tuning.
func DefaultConfig() Config {
	return Config{
		LeadTime:          2 * time.Minute,
		ClearTime:         30 * time.Second,
		MinimumOpening:    time.Minute,
		BriefOpeningMax:   3 * time.Minute,
		DwellOffset:       45 * time.Second,
		Horizon:           90 * time.Minute,
		LookBehind:        5 * time.Minute,
		RecomputeInterval: 5 * time.Second,
		Retention:         time.Hour,
	}
}

// LoadConfig reads the closure section of the instance configuration file,
// keeping defaults for anything unset.
func LoadConfig(path string) (Config, error) {
	config := DefaultConfig()

	file, err := os.ReadFile(path)
	if err != nil {
		return config, fmt.Errorf("cannot read closure config: %w", err)
	}

	var configFile struct {
		Closure configFileSection `yaml:"closure"`
	}
	if err := yaml.Unmarshal(file, &configFile); err != nil {
		return config, fmt.Errorf("cannot parse closure config: %w", err)
	}

	section := configFile.Closure

	for _, entry := range []struct {
		value  string
		target *time.Duration
	}{
		{section.LeadTime, &config.LeadTime},
		{section.ClearTime, &config.ClearTime},
		{section.MinimumOpening, &config.MinimumOpening},
		{section.BriefOpeningMax, &config.BriefOpeningMax},
		{section.DwellOffset, &config.DwellOffset},
		{section.Horizon, &config.Horizon},
		{section.LookBehind, &config.LookBehind},
		{section.RecomputeInterval, &config.RecomputeInterval},
		{section.Retention, &config.Retention},
	} {
		if entry.value == "" {
			continue
		}

		parsed, err := iso8601.ParseISO8601(entry.value)
		if err != nil {
			return config, fmt.Errorf("invalid closure duration %s: %w", entry.value, err)
		}

		epoch := time.Unix(0, 0).UTC()
		*entry.target = parsed.Shift(epoch).Sub(epoch)
	}

	return config, nil
}
