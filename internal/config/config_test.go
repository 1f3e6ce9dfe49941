package config

import (
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.MCSamples != DefaultMCSamples {
		t.Errorf("MCSamples = %d, expected %d", cfg.MCSamples, DefaultMCSamples)
	}
	if cfg.MinEdge != DefaultMinEdge {
		t.Errorf("MinEdge = %v, expected %v", cfg.MinEdge, DefaultMinEdge)
	}
	if cfg.KellyFraction != DefaultKellyFraction {
		t.Errorf("KellyFraction = %v, expected %v", cfg.KellyFraction, DefaultKellyFraction)
	}
	if cfg.KellyCap != DefaultKellyCap {
		t.Errorf("KellyCap = %v, expected %v", cfg.KellyCap, DefaultKellyCap)
	}
	if cfg.SignalWeights["tactical"] != DefaultTacticalWeight {
		t.Errorf("tactical weight = %d, expected %d", cfg.SignalWeights["tactical"], DefaultTacticalWeight)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("MC_SAMPLES", "20000")
	t.Setenv("MC_SEED", "42")
	t.Setenv("MIN_EDGE", "0.04")
	t.Setenv("SIGNAL_WEIGHT_MOMENTUM", "15")
	t.Setenv("COMPETITION_FILTER", "false")

	cfg := Load()

	if cfg.MCSamples != 20000 {
		t.Errorf("MCSamples = %d, expected 20000", cfg.MCSamples)
	}
	if cfg.MCSeed != 42 {
		t.Errorf("MCSeed = %d, expected 42", cfg.MCSeed)
	}
	if cfg.MinEdge != 0.04 {
		t.Errorf("MinEdge = %v, expected 0.04", cfg.MinEdge)
	}
	if cfg.SignalWeights["momentum"] != 15 {
		t.Errorf("momentum weight = %d, expected 15", cfg.SignalWeights["momentum"])
	}
	if cfg.CompetitionFilter {
		t.Error("CompetitionFilter should be disabled")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"Defaults are valid", func(c *Config) {}, false},
		{"Too few samples", func(c *Config) { c.MCSamples = 100 }, true},
		{"Negative min edge", func(c *Config) { c.MinEdge = -0.1 }, true},
		{"Zero Kelly fraction", func(c *Config) { c.KellyFraction = 0 }, true},
		{"Kelly cap too high", func(c *Config) { c.KellyCap = 0.5 }, true},
		{"Day cap below match cap", func(c *Config) { c.PerDayStakeCap = 0.01 }, true},
		{"Negative signal weight", func(c *Config) { c.SignalWeights["h2h"] = -1 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{
				MCSamples:        DefaultMCSamples,
				MinEdge:          DefaultMinEdge,
				KellyFraction:    DefaultKellyFraction,
				KellyCap:         DefaultKellyCap,
				SignalWeights:    DefaultSignalWeights(),
				PerMatchStakeCap: DefaultPerMatchCap,
				PerDayStakeCap:   DefaultPerDayCap,
			}
			tt.mutate(&cfg)
			err := Validate(cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
