package resolve

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/trailforge/trailforge_core/internal/config"
	"github.com/trailforge/trailforge_core/internal/geom"
	"github.com/trailforge/trailforge_core/internal/models"
	"github.com/trailforge/trailforge_core/internal/trails"
)

// Snapper closes small gaps between trail endpoints and nearby trails so
// that trails that were meant to meet actually share a point. Splits of
// snap targets are delegated to the same splitting primitive the resolver
// uses.
type Snapper struct {
	cfg *config.Config
}

// NewSnapper creates a snapper with the given tolerances
func NewSnapper(cfg *config.Config) *Snapper {
	return &Snapper{cfg: cfg}
}

type snapCandidate struct {
	idx   int // index of the target trail
	loc   geom.Location
	score float64
}

// Pass runs one snapping pass over every trail endpoint. Each trail is
// snapped at most once per pass, and a trail touched by a snap (as source
// or target) is skipped for the rest of the pass to avoid chained drift.
func (s *Snapper) Pass(ctx context.Context, ts []models.Trail) ([]models.Trail, int, error) {
	processed := make(map[uuid.UUID]bool)
	snaps := 0

	order := make([]int, len(ts))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		return ts[order[a]].ID.String() < ts[order[b]].ID.String()
	})

	for _, i := range order {
		if err := ctx.Err(); err != nil {
			return ts, snaps, err
		}
		if processed[ts[i].ID] {
			continue
		}

		for _, start := range []bool{true, false} {
			ep := ts[i].Geometry[0]
			if !start {
				ep = ts[i].Geometry[len(ts[i].Geometry)-1]
			}

			best, found := s.bestCandidate(ts, i, ep, processed)
			if !found {
				continue
			}

			trails.MoveEndpoint(&ts[i], start, best.loc.Point)
			processed[ts[i].ID] = true
			snaps++

			// A snap point inside the target becomes a proper junction by
			// splitting the target there.
			target := ts[best.idx]
			if !nearTrailEndpoint(target.Geometry, best.loc.Point, s.cfg.MinSegmentLengthM) {
				first, second, ok := trails.Split(target, best.loc, s.cfg.MinSegmentLengthM)
				if ok {
					processed[first.ID] = true
					processed[second.ID] = true
					ts[best.idx] = first
					ts = append(ts, second)
				}
			}
			processed[target.ID] = true
			break
		}
	}

	return ts, snaps, nil
}

// bestCandidate scores every snap candidate for an endpoint. Candidates
// are preferred when closer and when located away from the target trail's
// own endpoints; the weight peaks at the target's midpoint.
func (s *Snapper) bestCandidate(ts []models.Trail, self int, ep orb.Point, processed map[uuid.UUID]bool) (snapCandidate, bool) {
	tol := s.cfg.SnapToleranceM
	var best snapCandidate
	found := false

	for j := range ts {
		if j == self || processed[ts[j].ID] {
			continue
		}
		if !ts[j].Geometry.Bound().Pad(tol).Contains(ep) {
			continue
		}

		locs := candidatePointsOn(ts[j].Geometry, ep, tol)
		if len(locs) == 0 {
			continue
		}
		if len(locs) > 1 {
			// Ambiguous: several distinct points on the same trail within
			// tolerance. Halve the tolerance and retry once, then fall
			// back to the single closest point.
			narrowed := candidatePointsOn(ts[j].Geometry, ep, tol/2)
			if len(narrowed) >= 1 {
				locs = narrowed
			}
			if len(locs) > 1 {
				locs = locs[:1]
			}
		}

		loc := locs[0]
		if loc.Dist <= 1e-9 {
			continue // already coincident
		}

		frac := geom.PositionOf(ts[j].Geometry, loc) / ts[j].LengthM
		midWeight := 1 - abs(2*frac-1)
		score := (1 / (1 + loc.Dist)) * (0.5 + 0.5*midWeight)

		if !found || score > best.score {
			best = snapCandidate{idx: j, loc: loc, score: score}
			found = true
		}
	}
	return best, found
}

// candidatePointsOn returns the distinct projections of p onto the
// polyline within tol, closest first. Projections within tol of an
// already-kept point collapse into it.
func candidatePointsOn(ls orb.LineString, p orb.Point, tol float64) []geom.Location {
	var locs []geom.Location
	for i := 0; i < len(ls)-1; i++ {
		pt, t := geom.ProjectOnSegment(p, ls[i], ls[i+1])
		d := geom.Distance(p, pt)
		if d <= tol {
			locs = append(locs, geom.Location{Segment: i, T: t, Point: pt, Dist: d})
		}
	}
	sort.Slice(locs, func(a, b int) bool { return locs[a].Dist < locs[b].Dist })

	var kept []geom.Location
	for _, loc := range locs {
		distinct := true
		for _, k := range kept {
			if geom.Distance(loc.Point, k.Point) <= tol {
				distinct = false
				break
			}
		}
		if distinct {
			kept = append(kept, loc)
		}
	}
	return kept
}

func nearTrailEndpoint(ls orb.LineString, p orb.Point, tol float64) bool {
	return geom.Distance(ls[0], p) <= tol || geom.Distance(ls[len(ls)-1], p) <= tol
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
