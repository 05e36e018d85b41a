package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	assert.NoError(t, Default().Validate())
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("SNAP_TOLERANCE_M", "12.5")
	t.Setenv("MAX_SEARCH_DEPTH", "25")
	t.Setenv("DISTANCE_PRUNE_FACTOR", "not-a-number")

	cfg := FromEnv()
	assert.InDelta(t, 12.5, cfg.SnapToleranceM, 1e-9)
	assert.Equal(t, 25, cfg.MaxSearchDepth)
	// Unparseable values fall back to the default.
	assert.InDelta(t, Default().DistancePruneFactor, cfg.DistancePruneFactor, 1e-9)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative snap tolerance", func(c *Config) { c.SnapToleranceM = -1 }},
		{"zero intersection tolerance", func(c *Config) { c.IntersectionToleranceM = 0 }},
		{"snap below min segment", func(c *Config) { c.SnapToleranceM = 0.5; c.MinSegmentLengthM = 1 }},
		{"zero iterations", func(c *Config) { c.MaxResolutionIterations = 0 }},
		{"prune factor at 1", func(c *Config) { c.DistancePruneFactor = 1 }},
		{"zero budget", func(c *Config) { c.SearchVisitBudget = 0 }},
		{"similarity above 1", func(c *Config) { c.MinSimilarity = 1.5 }},
		{"zero workers", func(c *Config) { c.MaxWorkers = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			require.Error(t, cfg.Validate())
		})
	}
}
