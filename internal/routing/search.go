package routing

import (
	"context"
	"fmt"
	"log"
	"math"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/trailforge/trailforge_core/internal/config"
	"github.com/trailforge/trailforge_core/internal/graph"
	"github.com/trailforge/trailforge_core/internal/models"
)

// Engine searches a network for routes matching a target pattern. The
// network is read-only, so one engine serves concurrent searches.
type Engine struct {
	cfg *config.Config
	net *graph.Network
}

// NewEngine creates a search engine over a built network
func NewEngine(cfg *config.Config, net *graph.Network) *Engine {
	return &Engine{cfg: cfg, net: net}
}

// band is the acceptable distance and elevation window for a pattern.
// Both must hold for a candidate to match; the wide window only matters
// in permissive mode.
type band struct {
	distStrictLo, distStrictHi float64
	distWideLo, distWideHi     float64
	gainStrictLo, gainStrictHi float64
	gainWideLo, gainWideHi     float64
}

func (b band) inStrict(m RouteMetrics) bool {
	return m.DistanceM >= b.distStrictLo && m.DistanceM <= b.distStrictHi &&
		m.GainM >= b.gainStrictLo && m.GainM <= b.gainStrictHi
}

func (b band) inWide(m RouteMetrics) bool {
	return m.DistanceM >= b.distWideLo && m.DistanceM <= b.distWideHi &&
		m.GainM >= b.gainWideLo && m.GainM <= b.gainWideHi
}

// Search explores the network from every node in parallel and returns
// deduplicated candidates ordered by score. An unattainable pattern
// yields an empty result, not an error.
func (e *Engine) Search(ctx context.Context, pattern models.Pattern) (*models.SearchResult, error) {
	if err := validatePattern(pattern); err != nil {
		return nil, err
	}

	strat := GetStrategy(pattern.Shape)
	b := bandFor(pattern)
	budget := atomic.Int64{}
	budget.Store(int64(e.cfg.SearchVisitBudget))

	starts := e.net.NodeIDs()
	jobs := make(chan int64, len(starts))
	results := make(chan []models.RouteCandidate, len(starts))
	var wg sync.WaitGroup

	for w := 0; w < e.cfg.MaxWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for start := range jobs {
				select {
				case <-ctx.Done():
					return
				default:
				}
				results <- e.searchFrom(ctx, start, pattern, strat, b, &budget)
			}
		}()
	}

	for _, start := range starts {
		jobs <- start
	}
	close(jobs)
	wg.Wait()
	close(results)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var all []models.RouteCandidate
	for batch := range results {
		all = append(all, batch...)
	}

	all = dedupe(all, pattern.TargetDistanceM)
	sortCandidates(all, pattern)

	truncated := budget.Load() <= 0
	if truncated {
		log.Printf("Warning: search visit budget exhausted for pattern %.0fm/%.0fm %s, results may be incomplete",
			pattern.TargetDistanceM, pattern.TargetGainM, pattern.Shape)
	}

	return &models.SearchResult{Candidates: all, Truncated: truncated, Mode: pattern.Mode}, nil
}

// searchFrom runs a depth-first exploration of simple walks rooted at one
// node. All pruning is distance- and depth-based; the shared visit budget
// bounds total work across workers.
func (e *Engine) searchFrom(ctx context.Context, start int64, pattern models.Pattern, strat Strategy, b band, budget *atomic.Int64) []models.RouteCandidate {
	st := &PathState{
		StartNodeID: start,
		NodeIDs:     []int64{start},
	}
	visited := map[int64]bool{start: true}
	var out []models.RouteCandidate

	var walk func(cur int64)
	walk = func(cur int64) {
		if ctx.Err() != nil || budget.Add(-1) <= 0 {
			return
		}

		for _, eid := range e.net.Adjacent(cur) {
			edge, _ := e.net.Edge(eid)
			next := edge.ToNodeID
			if next == cur {
				next = edge.FromNodeID
			}
			_, _, gain, loss := graph.Oriented(edge, cur)

			if next == st.StartNodeID {
				// Closing the walk is allowed once it is long enough to be a
				// genuine loop rather than a turnaround.
				if len(st.EdgeIDs)+1 >= 3 && st.DistanceM+edge.LengthM >= pattern.TargetDistanceM/2 {
					st.push(eid, next, edge.LengthM, gain, loss, true)
					e.emit(st, pattern, strat, b, &out)
					st.pop(edge.LengthM, gain, loss)
				}
				continue
			}
			if visited[next] {
				continue
			}

			st.push(eid, next, edge.LengthM, gain, loss, false)
			e.emit(st, pattern, strat, b, &out)

			if st.DistanceM < pattern.TargetDistanceM*e.cfg.DistancePruneFactor &&
				len(st.EdgeIDs) < e.cfg.MaxSearchDepth {
				visited[next] = true
				walk(next)
				delete(visited, next)
			}
			st.pop(edge.LengthM, gain, loss)
		}
	}

	walk(start)
	return out
}

func (st *PathState) push(edgeID, node int64, length, gain, loss float64, closed bool) {
	st.EdgeIDs = append(st.EdgeIDs, edgeID)
	st.NodeIDs = append(st.NodeIDs, node)
	st.DistanceM += length
	st.GainM += gain
	st.LossM += loss
	st.Closed = closed
}

func (st *PathState) pop(length, gain, loss float64) {
	st.EdgeIDs = st.EdgeIDs[:len(st.EdgeIDs)-1]
	st.NodeIDs = st.NodeIDs[:len(st.NodeIDs)-1]
	st.DistanceM -= length
	st.GainM -= gain
	st.LossM -= loss
	st.Closed = false
}

// emit evaluates the current walk against the pattern and appends a
// candidate when it completes within the acceptable window.
func (e *Engine) emit(st *PathState, pattern models.Pattern, strat Strategy, b band, out *[]models.RouteCandidate) {
	m, ok := strat.TryComplete(st)
	if !ok {
		return
	}

	strict := b.inStrict(m)
	if !strict && (pattern.Mode != models.ModePermissive || !b.inWide(m)) {
		return
	}

	score := Similarity(m, pattern)
	floor := e.cfg.MinSimilarity
	if pattern.Mode == models.ModePermissive {
		floor = e.cfg.PermissiveMinSimilarity
	}
	if score < floor {
		return
	}

	*out = append(*out, e.buildCandidate(st, m, strat, score, !strict))
}

// buildCandidate materializes the walk into a full route candidate with
// oriented geometry. Out-and-back walks get their return leg appended.
func (e *Engine) buildCandidate(st *PathState, m RouteMetrics, strat Strategy, score float64, permissiveOnly bool) models.RouteCandidate {
	var lines orb.MultiLineString
	trailIDs := make(map[uuid.UUID]bool)
	var names []string
	seenNames := make(map[string]bool)

	for i, eid := range st.EdgeIDs {
		edge, _ := e.net.Edge(eid)
		g, _, _, _ := graph.Oriented(edge, st.NodeIDs[i])
		lines = append(lines, g)
		for _, tid := range edge.TrailIDs {
			trailIDs[tid] = true
		}
		for _, name := range edge.TrailNames {
			if !seenNames[name] {
				seenNames[name] = true
				names = append(names, name)
			}
		}
	}

	if strat.Shape() == models.ShapeOutAndBack {
		for i := len(st.EdgeIDs) - 1; i >= 0; i-- {
			edge, _ := e.net.Edge(st.EdgeIDs[i])
			g, _, _, _ := graph.Oriented(edge, st.NodeIDs[i+1])
			lines = append(lines, g)
		}
	}

	ids := make([]uuid.UUID, 0, len(trailIDs))
	for tid := range trailIDs {
		ids = append(ids, tid)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })

	return models.RouteCandidate{
		ID:             uuid.New(),
		Name:           routeName(names, strat.Shape()),
		EdgeIDs:        append([]int64(nil), st.EdgeIDs...),
		NodeIDs:        append([]int64(nil), st.NodeIDs...),
		Geometry:       lines,
		DistanceM:      m.DistanceM,
		GainM:          m.GainM,
		LossM:          m.LossM,
		Shape:          strat.Shape(),
		Score:          score,
		TrailIDs:       ids,
		TrailCount:     len(ids),
		PermissiveOnly: permissiveOnly,
	}
}

func routeName(names []string, shape models.RouteShape) string {
	suffix := "Route"
	switch shape {
	case models.ShapeLoop:
		suffix = "Loop"
	case models.ShapeOutAndBack:
		suffix = "Out and Back"
	}
	switch len(names) {
	case 0:
		return "Unnamed " + suffix
	case 1:
		return names[0] + " " + suffix
	default:
		return names[0] + " / " + names[len(names)-1] + " " + suffix
	}
}

func bandFor(p models.Pattern) band {
	tol := p.TolerancePercent / 100
	// The elevation window gets an absolute floor so a near-zero gain
	// target still admits essentially flat routes.
	gainSlack := tol * math.Max(p.TargetGainM, elevationFloorM)
	return band{
		distStrictLo: p.TargetDistanceM * (1 - tol),
		distStrictHi: p.TargetDistanceM * (1 + tol),
		distWideLo:   p.TargetDistanceM * (1 - 2*tol),
		distWideHi:   p.TargetDistanceM * (1 + 2*tol),
		gainStrictLo: p.TargetGainM - gainSlack,
		gainStrictHi: p.TargetGainM + gainSlack,
		gainWideLo:   p.TargetGainM - 2*gainSlack,
		gainWideHi:   p.TargetGainM + 2*gainSlack,
	}
}

func validatePattern(p models.Pattern) error {
	if p.TargetDistanceM <= 0 {
		return fmt.Errorf("invalid pattern: target distance must be positive, got %f", p.TargetDistanceM)
	}
	if p.TargetGainM < 0 {
		return fmt.Errorf("invalid pattern: target elevation gain must be non-negative, got %f", p.TargetGainM)
	}
	if p.TolerancePercent <= 0 || p.TolerancePercent > 100 {
		return fmt.Errorf("invalid pattern: tolerance must be in (0, 100], got %f", p.TolerancePercent)
	}
	switch p.Shape {
	case models.ShapeLoop, models.ShapeOutAndBack, models.ShapePointToPoint:
	default:
		return fmt.Errorf("invalid pattern: unknown shape %q", p.Shape)
	}
	switch p.Mode {
	case models.ModeStrict, models.ModePermissive, "":
	default:
		return fmt.Errorf("invalid pattern: unknown mode %q", p.Mode)
	}
	return nil
}
