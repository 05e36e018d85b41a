package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
)

// Config carries the numeric knobs for network building and route search.
// All distances are meters in the projected plane. Values are validated
// before any processing begins; invalid configuration is the only fatal
// error class in the pipeline.
type Config struct {
	IntersectionToleranceM  float64 // bounding-extent pad when pairing trails for intersection checks
	SnapToleranceM          float64 // max gap closed by endpoint snapping
	MaxResolutionIterations int     // resolver/snapper fixpoint cap
	MinSegmentLengthM       float64 // split points closer than this to an endpoint are folded
	MaxSearchDepth          int     // max hops per route traversal
	DistancePruneFactor     float64 // traversal pruned beyond target distance times this
	SearchVisitBudget       int64   // total traversal step budget per search
	MinSimilarity           float64 // strict-mode score floor
	PermissiveMinSimilarity float64 // permissive-mode score floor
	MaxWorkers              int     // parallel fan-out width
}

// Default returns the configuration used when nothing is overridden
func Default() *Config {
	workers := runtime.NumCPU()
	if workers > 8 {
		workers = 8
	}
	return &Config{
		IntersectionToleranceM:  2.0,
		SnapToleranceM:          5.0,
		MaxResolutionIterations: 5,
		MinSegmentLengthM:       1.0,
		MaxSearchDepth:          10,
		DistancePruneFactor:     4.0,
		SearchVisitBudget:       2_000_000,
		MinSimilarity:           0.5,
		PermissiveMinSimilarity: 0.3,
		MaxWorkers:              workers,
	}
}

// FromEnv loads the configuration from environment variables, falling
// back to defaults for anything unset.
func FromEnv() *Config {
	cfg := Default()
	cfg.IntersectionToleranceM = envFloat("INTERSECTION_TOLERANCE_M", cfg.IntersectionToleranceM)
	cfg.SnapToleranceM = envFloat("SNAP_TOLERANCE_M", cfg.SnapToleranceM)
	cfg.MaxResolutionIterations = envInt("MAX_RESOLUTION_ITERATIONS", cfg.MaxResolutionIterations)
	cfg.MinSegmentLengthM = envFloat("MIN_SEGMENT_LENGTH_M", cfg.MinSegmentLengthM)
	cfg.MaxSearchDepth = envInt("MAX_SEARCH_DEPTH", cfg.MaxSearchDepth)
	cfg.DistancePruneFactor = envFloat("DISTANCE_PRUNE_FACTOR", cfg.DistancePruneFactor)
	cfg.SearchVisitBudget = int64(envInt("SEARCH_VISIT_BUDGET", int(cfg.SearchVisitBudget)))
	cfg.MinSimilarity = envFloat("MIN_SIMILARITY", cfg.MinSimilarity)
	cfg.PermissiveMinSimilarity = envFloat("PERMISSIVE_MIN_SIMILARITY", cfg.PermissiveMinSimilarity)
	cfg.MaxWorkers = envInt("MAX_WORKERS", cfg.MaxWorkers)
	return cfg
}

// Validate rejects contradictory or out-of-range settings
func (c *Config) Validate() error {
	if c.IntersectionToleranceM <= 0 {
		return fmt.Errorf("intersection tolerance must be positive, got %v", c.IntersectionToleranceM)
	}
	if c.SnapToleranceM <= 0 {
		return fmt.Errorf("snap tolerance must be positive, got %v", c.SnapToleranceM)
	}
	if c.MinSegmentLengthM <= 0 {
		return fmt.Errorf("minimum segment length must be positive, got %v", c.MinSegmentLengthM)
	}
	if c.SnapToleranceM < c.MinSegmentLengthM {
		return fmt.Errorf("snap tolerance (%v) must not be below minimum segment length (%v)", c.SnapToleranceM, c.MinSegmentLengthM)
	}
	if c.MaxResolutionIterations < 1 {
		return fmt.Errorf("max resolution iterations must be at least 1, got %d", c.MaxResolutionIterations)
	}
	if c.MaxSearchDepth < 1 {
		return fmt.Errorf("max search depth must be at least 1, got %d", c.MaxSearchDepth)
	}
	if c.DistancePruneFactor <= 1 {
		return fmt.Errorf("distance prune factor must exceed 1, got %v", c.DistancePruneFactor)
	}
	if c.SearchVisitBudget < 1 {
		return fmt.Errorf("search visit budget must be positive, got %d", c.SearchVisitBudget)
	}
	if c.MinSimilarity < 0 || c.MinSimilarity > 1 || c.PermissiveMinSimilarity < 0 || c.PermissiveMinSimilarity > 1 {
		return fmt.Errorf("similarity floors must be within [0, 1]")
	}
	if c.MaxWorkers < 1 {
		return fmt.Errorf("max workers must be at least 1, got %d", c.MaxWorkers)
	}
	return nil
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
