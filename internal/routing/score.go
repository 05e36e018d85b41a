package routing

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/trailforge/trailforge_core/internal/models"
)

// Denominator floors keep the similarity terms meaningful for tiny
// targets: a 200m miss against a 0m elevation target should not zero the
// whole score.
const (
	distanceFloorM  = 500.0
	elevationFloorM = 50.0
)

// Scoring weights: distance fit dominates, elevation fit refines
const (
	distanceWeight  = 0.6
	elevationWeight = 0.4
)

// Similarity scores how well a completed route matches the pattern, in
// [0, 1]. Both terms decay linearly with relative error.
func Similarity(m RouteMetrics, p models.Pattern) float64 {
	distTerm := 1 - math.Abs(m.DistanceM-p.TargetDistanceM)/math.Max(p.TargetDistanceM, distanceFloorM)
	elevTerm := 1 - math.Abs(m.GainM-p.TargetGainM)/math.Max(p.TargetGainM, elevationFloorM)
	return distanceWeight*math.Max(0, distTerm) + elevationWeight*math.Max(0, elevTerm)
}

// dedupe collapses candidates that traverse the same trails at nearly the
// same length, keeping the best-scoring one. The same loop discovered
// from different start nodes or in the opposite direction reduces to a
// single entry.
func dedupe(cands []models.RouteCandidate, targetM float64) []models.RouteCandidate {
	bucket := math.Max(targetM*0.01, 10)
	best := make(map[string]int)
	var out []models.RouteCandidate

	for _, c := range cands {
		key := signature(c, bucket)
		if i, ok := best[key]; ok {
			if c.Score > out[i].Score {
				out[i] = c
			}
			continue
		}
		best[key] = len(out)
		out = append(out, c)
	}
	return out
}

// signature identifies a route by its trail multiset, shape and rounded
// length. TrailIDs are kept sorted by construction.
func signature(c models.RouteCandidate, bucket float64) string {
	parts := make([]string, 0, len(c.TrailIDs)+2)
	for _, id := range c.TrailIDs {
		parts = append(parts, id.String())
	}
	parts = append(parts, string(c.Shape))
	parts = append(parts, fmt.Sprintf("%d", int(math.Round(c.DistanceM/bucket))))
	return strings.Join(parts, "|")
}

// sortCandidates orders by score descending, breaking ties by closeness
// to the target distance, then by distance for stability.
func sortCandidates(cands []models.RouteCandidate, p models.Pattern) {
	sort.Slice(cands, func(i, j int) bool {
		if cands[i].Score != cands[j].Score {
			return cands[i].Score > cands[j].Score
		}
		di := math.Abs(cands[i].DistanceM - p.TargetDistanceM)
		dj := math.Abs(cands[j].DistanceM - p.TargetDistanceM)
		if di != dj {
			return di < dj
		}
		return cands[i].DistanceM < cands[j].DistanceM
	})
}
