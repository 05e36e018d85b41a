package resolve

import (
	"context"
	"log"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/trailforge/trailforge_core/internal/config"
	"github.com/trailforge/trailforge_core/internal/geom"
	"github.com/trailforge/trailforge_core/internal/models"
	"github.com/trailforge/trailforge_core/internal/trails"
)

// Resolver rewrites a trail set so that no two trails cross or touch at a
// point interior to either: every detected intersection becomes a shared
// endpoint by splitting the affected trails.
type Resolver struct {
	cfg *config.Config
}

// NewResolver creates a resolver with the given tolerances
func NewResolver(cfg *config.Config) *Resolver {
	return &Resolver{cfg: cfg}
}

// plannedSplit is one split point scheduled for a trail. Plans are
// collected from parallel detection and applied serially in deterministic
// order, so no trail is mutated concurrently.
type plannedSplit struct {
	TrailID uuid.UUID
	Point   orb.Point
}

// Pass runs one full detection and splitting pass. It returns the new
// trail set and the number of splits applied.
func (r *Resolver) Pass(ctx context.Context, ts []models.Trail) ([]models.Trail, int, error) {
	plans, err := r.detect(ctx, ts)
	if err != nil {
		return ts, 0, err
	}
	if len(plans) == 0 {
		return ts, 0, nil
	}
	out, applied := r.apply(ts, plans)
	return out, applied, nil
}

// CountCandidates reports how many split candidates remain in the trail
// set. Used to surface unresolved pairs when the iteration cap is hit.
func (r *Resolver) CountCandidates(ctx context.Context, ts []models.Trail) int {
	plans, err := r.detect(ctx, ts)
	if err != nil {
		return 0
	}
	return len(plans)
}

// detect finds every intersection between trail pairs whose bounding
// extents overlap. Pair analysis is fanned out across workers with
// read-only access to the trail set.
func (r *Resolver) detect(ctx context.Context, ts []models.Trail) ([]plannedSplit, error) {
	type pair struct{ i, j int }

	bounds := make([]orb.Bound, len(ts))
	for i := range ts {
		bounds[i] = ts[i].Geometry.Bound().Pad(r.cfg.IntersectionToleranceM)
	}

	var pairs []pair
	for i := 0; i < len(ts); i++ {
		for j := i + 1; j < len(ts); j++ {
			if bounds[i].Intersects(bounds[j]) {
				pairs = append(pairs, pair{i, j})
			}
		}
	}

	jobs := make(chan pair, len(pairs))
	results := make(chan []plannedSplit, len(pairs))
	var wg sync.WaitGroup

	for w := 0; w < r.cfg.MaxWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for p := range jobs {
				select {
				case <-ctx.Done():
					return
				default:
				}
				results <- r.analyzePair(ts[p.i], ts[p.j])
			}
		}()
	}

	for _, p := range pairs {
		jobs <- p
	}
	close(jobs)
	wg.Wait()
	close(results)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var plans []plannedSplit
	for batch := range results {
		plans = append(plans, batch...)
	}

	// Parallel collection order is nondeterministic; restore a stable
	// order so splitting is reproducible run to run.
	sort.Slice(plans, func(i, j int) bool {
		a, b := plans[i], plans[j]
		if a.TrailID != b.TrailID {
			return a.TrailID.String() < b.TrailID.String()
		}
		if a.Point[0] != b.Point[0] {
			return a.Point[0] < b.Point[0]
		}
		return a.Point[1] < b.Point[1]
	})
	return plans, nil
}

// analyzePair classifies every meeting point of one trail pair into split
// plans. A failed (degenerate) computation is logged and skipped; it never
// aborts the batch.
func (r *Resolver) analyzePair(a, b models.Trail) []plannedSplit {
	var plans []plannedSplit
	for _, x := range geom.Intersect(a.Geometry, b.Geometry, r.cfg.MinSegmentLengthM) {
		switch x.Kind {
		case geom.KindCrossing:
			plans = append(plans,
				plannedSplit{TrailID: a.ID, Point: x.Point},
				plannedSplit{TrailID: b.ID, Point: x.Point})
		case geom.KindTouchingA:
			// A's endpoint already coincides; only B gains a vertex.
			plans = append(plans, plannedSplit{TrailID: b.ID, Point: x.Point})
		case geom.KindTouchingB:
			plans = append(plans, plannedSplit{TrailID: a.ID, Point: x.Point})
		case geom.KindOverlap:
			// The split point lies on the longer trail's interior; ties
			// resolve the same way the overlap point was chosen.
			target := b
			if a.LengthM > b.LengthM {
				target = a
			}
			plans = append(plans, plannedSplit{TrailID: target.ID, Point: x.Point})
		case geom.KindDegenerate:
			log.Printf("Warning: intersection of %s and %s failed on degenerate geometry, skipping pair", a.Name, b.Name)
		}
	}
	return plans
}

// apply executes the planned splits. Each trail's split points are cut in
// ascending position order; points that would leave a sliver shorter than
// the minimum segment length fold into the nearest existing endpoint.
func (r *Resolver) apply(ts []models.Trail, plans []plannedSplit) ([]models.Trail, int) {
	byTrail := make(map[uuid.UUID][]orb.Point)
	for _, p := range plans {
		byTrail[p.TrailID] = append(byTrail[p.TrailID], p.Point)
	}

	out := make([]models.Trail, 0, len(ts)+len(plans))
	applied := 0

	for _, t := range ts {
		points, ok := byTrail[t.ID]
		if !ok {
			out = append(out, t)
			continue
		}

		sort.Slice(points, func(i, j int) bool {
			pi := geom.PositionOf(t.Geometry, geom.NearestPointOn(t.Geometry, points[i]))
			pj := geom.PositionOf(t.Geometry, geom.NearestPointOn(t.Geometry, points[j]))
			return pi < pj
		})

		cur := t
		for _, pt := range points {
			loc := geom.NearestPointOn(cur.Geometry, pt)
			if loc.Segment < 0 || loc.Dist > r.cfg.IntersectionToleranceM {
				continue
			}
			first, second, split := trails.Split(cur, loc, r.cfg.MinSegmentLengthM)
			if !split {
				// Folded into the nearest endpoint instead of creating a sliver.
				continue
			}
			out = append(out, first)
			cur = second
			applied++
		}
		out = append(out, cur)
	}

	return out, applied
}
