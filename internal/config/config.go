package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Defaults for configuration values.
const (
	DefaultMCSamples      = 10_000
	DefaultMinEdge        = 0.02
	DefaultKellyFraction  = 0.25
	DefaultKellyCap       = 0.05
	DefaultPerMatchCap    = 0.03
	DefaultPerDayCap      = 0.10
	DefaultDBPath         = "/data/quantpick.db"
	DefaultLockDir        = "/tmp/quantpick-locks"
	DefaultMomentumWeight = 10
	DefaultH2HWeight      = 8
	DefaultTacticalWeight = 12
	DefaultRefereeWeight  = 5
)

// SignalWeights maps signal name to its integer weight in the composite
// score. Recognised names: momentum, h2h, tactical, referee.
type SignalWeights map[string]int

// DefaultSignalWeights returns the documented default weight vector.
func DefaultSignalWeights() SignalWeights {
	return SignalWeights{
		"momentum": DefaultMomentumWeight,
		"h2h":      DefaultH2HWeight,
		"tactical": DefaultTacticalWeight,
		"referee":  DefaultRefereeWeight,
	}
}

// Config holds all engine configuration.
type Config struct {
	MCSamples int
	MCSeed    int64 // 0 = derive from system randomness per run
	MinEdge   float64

	KellyFraction float64
	KellyCap      float64

	SignalWeights SignalWeights

	PerMatchStakeCap float64
	PerDayStakeCap   float64

	CompetitionFilter bool

	DBPath  string
	LockDir string
}

// Load reads configuration from environment variables (and .env file if present).
func Load() Config {
	_ = godotenv.Load() // Ignore error if .env doesn't exist

	cfg := Config{
		MCSamples:         DefaultMCSamples,
		MinEdge:           DefaultMinEdge,
		KellyFraction:     DefaultKellyFraction,
		KellyCap:          DefaultKellyCap,
		SignalWeights:     DefaultSignalWeights(),
		PerMatchStakeCap:  DefaultPerMatchCap,
		PerDayStakeCap:    DefaultPerDayCap,
		CompetitionFilter: true,
		DBPath:            DefaultDBPath,
		LockDir:           DefaultLockDir,
	}

	if v := os.Getenv("MC_SAMPLES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MCSamples = n
		}
	}

	if v := os.Getenv("MC_SEED"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.MCSeed = n
		}
	}

	if v := os.Getenv("MIN_EDGE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.MinEdge = f
		}
	}

	if v := os.Getenv("KELLY_FRACTION"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.KellyFraction = f
		}
	}

	if v := os.Getenv("KELLY_CAP"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.KellyCap = f
		}
	}

	if v := os.Getenv("PER_MATCH_STAKE_CAP"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.PerMatchStakeCap = f
		}
	}

	if v := os.Getenv("PER_DAY_STAKE_CAP"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.PerDayStakeCap = f
		}
	}

	if os.Getenv("COMPETITION_FILTER") == "false" {
		cfg.CompetitionFilter = false
	}

	if v := os.Getenv("DB_PATH"); v != "" {
		cfg.DBPath = v
	}

	if v := os.Getenv("LOCK_DIR"); v != "" {
		cfg.LockDir = v
	}

	for name := range cfg.SignalWeights {
		if v := os.Getenv("SIGNAL_WEIGHT_" + strings.ToUpper(name)); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				cfg.SignalWeights[name] = n
			}
		}
	}

	return cfg
}

// Validate checks that configuration values are within acceptable ranges.
func Validate(cfg Config) error {
	if cfg.MCSamples < 1000 {
		return fmt.Errorf("MC_SAMPLES must be at least 1000, got %d", cfg.MCSamples)
	}
	if cfg.MinEdge < 0 || cfg.MinEdge > 1 {
		return fmt.Errorf("MIN_EDGE must be between 0 and 1, got %f", cfg.MinEdge)
	}
	if cfg.KellyFraction <= 0 || cfg.KellyFraction > 1 {
		return fmt.Errorf("KELLY_FRACTION must be between 0 and 1, got %f", cfg.KellyFraction)
	}
	if cfg.KellyCap <= 0 || cfg.KellyCap > 0.25 {
		return fmt.Errorf("KELLY_CAP must be between 0 and 0.25, got %f", cfg.KellyCap)
	}
	if cfg.PerMatchStakeCap <= 0 || cfg.PerMatchStakeCap > 1 {
		return fmt.Errorf("PER_MATCH_STAKE_CAP must be between 0 and 1, got %f", cfg.PerMatchStakeCap)
	}
	if cfg.PerDayStakeCap < cfg.PerMatchStakeCap {
		return fmt.Errorf("PER_DAY_STAKE_CAP %f must be at least the per-match cap %f",
			cfg.PerDayStakeCap, cfg.PerMatchStakeCap)
	}
	for name, w := range cfg.SignalWeights {
		if w < 0 || w > 100 {
			return fmt.Errorf("signal weight %s must be between 0 and 100, got %d", name, w)
		}
	}
	return nil
}
