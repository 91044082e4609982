package coach

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Defaults applied when no rules file is configured.
const (
	DefaultMaxTradesPerDay = 5
	DefaultMaxDailyLossPct = 2.0
)

// RulesConfig holds the tunable rule thresholds. Everything else about the
// rules (trigger shapes, severities, priorities) is fixed.
type RulesConfig struct {
	MaxTradesPerDay int     `yaml:"maxTradesPerDay"`
	MaxDailyLossPct float64 `yaml:"maxDailyLossPercent"`
}

// DefaultRulesConfig returns the built-in thresholds.
func DefaultRulesConfig() RulesConfig {
	return RulesConfig{
		MaxTradesPerDay: DefaultMaxTradesPerDay,
		MaxDailyLossPct: DefaultMaxDailyLossPct,
	}
}

// LoadRulesConfig reads thresholds from a YAML file. Missing fields keep
// their defaults; an empty path returns the defaults outright.
func LoadRulesConfig(path string) (RulesConfig, error) {
	cfg := DefaultRulesConfig()
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read rules config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse rules config: %w", err)
	}
	if cfg.MaxTradesPerDay <= 0 {
		cfg.MaxTradesPerDay = DefaultMaxTradesPerDay
	}
	if cfg.MaxDailyLossPct <= 0 {
		cfg.MaxDailyLossPct = DefaultMaxDailyLossPct
	}
	return cfg, nil
}
