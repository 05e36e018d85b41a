package resolve

import (
	"context"
	"log"

	"github.com/trailforge/trailforge_core/internal/config"
	"github.com/trailforge/trailforge_core/internal/models"
)

// Stats summarizes one network resolution run
type Stats struct {
	Passes          int
	SplitsApplied   int
	SnapsApplied    int
	UnresolvedPairs int
}

// ResolveNetwork alternates intersection resolution and endpoint snapping
// until a fixpoint is reached or the iteration cap is hit. If the cap is
// hit, the remaining candidate intersections are counted and reported but
// not forced; downstream consumers tolerate the residually imperfect
// network.
func ResolveNetwork(ctx context.Context, ts []models.Trail, cfg *config.Config) ([]models.Trail, Stats, error) {
	resolver := NewResolver(cfg)
	snapper := NewSnapper(cfg)

	var stats Stats
	converged := false

	for pass := 1; pass <= cfg.MaxResolutionIterations; pass++ {
		stats.Passes = pass

		var splits, snaps int
		var err error

		ts, splits, err = resolver.Pass(ctx, ts)
		if err != nil {
			return ts, stats, err
		}
		ts, snaps, err = snapper.Pass(ctx, ts)
		if err != nil {
			return ts, stats, err
		}

		stats.SplitsApplied += splits
		stats.SnapsApplied += snaps
		log.Printf("Resolution pass %d: %d splits, %d snaps (%d trails)", pass, splits, snaps, len(ts))

		if splits == 0 && snaps == 0 {
			converged = true
			break
		}
	}

	if !converged {
		stats.UnresolvedPairs = resolver.CountCandidates(ctx, ts)
		if stats.UnresolvedPairs > 0 {
			log.Printf("Warning: resolution hit the iteration cap with %d candidate intersections unresolved", stats.UnresolvedPairs)
		}
	}

	return ts, stats, nil
}
