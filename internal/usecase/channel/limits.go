package channel

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Limits bounds the template fields for one channel. A zero bound leaves the
// field unbounded.
type Limits struct {
	MaxSubject int `yaml:"max_subject"`
	MaxBody    int `yaml:"max_body"`
}

// LimitsConfig carries the per-channel template bounds.
type LimitsConfig struct {
	SMS   Limits `yaml:"sms"`
	Push  Limits `yaml:"push"`
	Email Limits `yaml:"email"`
}

// DefaultLimits returns the built-in channel bounds.
func DefaultLimits() LimitsConfig {
	return LimitsConfig{
		SMS:   Limits{MaxSubject: 255, MaxBody: 160},
		Push:  Limits{MaxSubject: 100, MaxBody: 200},
		Email: Limits{MaxSubject: 255, MaxBody: 10000},
	}
}

// LoadLimits reads channel bounds from a YAML file. A missing path falls back
// to the defaults; a present but unparsable file is an error.
func LoadLimits(path string) (LimitsConfig, error) {
	if path == "" {
		return DefaultLimits(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultLimits(), nil
		}
		return LimitsConfig{}, fmt.Errorf("LoadLimits: %w", err)
	}

	cfg := DefaultLimits()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return LimitsConfig{}, fmt.Errorf("LoadLimits: parse %s: %w", path, err)
	}
	return cfg, nil
}
