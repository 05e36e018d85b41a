package routing

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trailforge/trailforge_core/internal/config"
	"github.com/trailforge/trailforge_core/internal/graph"
	"github.com/trailforge/trailforge_core/internal/models"
)

// triangleNetwork is a single 9.5km loop with 95m of climbing
func triangleNetwork() *graph.Network {
	nodes := map[int64]models.Node{
		1: {ID: 1, Point: orb.Point{0, 0}},
		2: {ID: 2, Point: orb.Point{3000, 0}},
		3: {ID: 3, Point: orb.Point{1500, 2000}},
	}
	edges := map[int64]models.Edge{
		1: mkEdge(1, 1, 2, "Mesa Trail", 3000, 30, 30),
		2: mkEdge(2, 2, 3, "Ridge Trail", 3000, 30, 30),
		3: mkEdge(3, 3, 1, "Canyon Trail", 3500, 35, 35),
	}
	return graph.NewNetwork(nodes, edges, orb.Point{}, "test")
}

func mkEdge(id, from, to int64, name string, length, gain, loss float64) models.Edge {
	return models.Edge{
		ID:         id,
		FromNodeID: from,
		ToNodeID:   to,
		TrailIDs:   []uuid.UUID{uuid.New()},
		TrailNames: []string{name},
		Geometry:   orb.LineString{{0, 0}, {length, 0}},
		LengthM:    length,
		GainM:      gain,
		LossM:      loss,
	}
}

func TestSearchFindsLoop(t *testing.T) {
	engine := NewEngine(config.Default(), triangleNetwork())

	result, err := engine.Search(context.Background(), models.Pattern{
		TargetDistanceM:  10000,
		TargetGainM:      100,
		TolerancePercent: 20,
		Shape:            models.ShapeLoop,
		Mode:             models.ModeStrict,
	})
	require.NoError(t, err)
	require.Len(t, result.Candidates, 1)

	c := result.Candidates[0]
	assert.Equal(t, models.ShapeLoop, c.Shape)
	assert.InDelta(t, 9500, c.DistanceM, 1e-6)
	assert.InDelta(t, 95, c.GainM, 1e-6)
	assert.Greater(t, c.Score, 0.9)
	assert.Equal(t, 3, c.TrailCount)
	assert.False(t, c.PermissiveOnly)
	assert.False(t, result.Truncated)
	assert.Len(t, c.Geometry, 3)
}

func TestSearchRespectsDistanceBand(t *testing.T) {
	engine := NewEngine(config.Default(), triangleNetwork())

	result, err := engine.Search(context.Background(), models.Pattern{
		TargetDistanceM:  10000,
		TargetGainM:      100,
		TolerancePercent: 20,
		Shape:            models.ShapeLoop,
		Mode:             models.ModeStrict,
	})
	require.NoError(t, err)

	for _, c := range result.Candidates {
		assert.GreaterOrEqual(t, c.DistanceM, 8000.0)
		assert.LessOrEqual(t, c.DistanceM, 12000.0)
	}
}

func TestSearchStrictEmptyPermissiveFinds(t *testing.T) {
	// The only loop is 9.5km; a 12km +/-15% strict window misses it but
	// the doubled permissive window reaches it.
	pattern := models.Pattern{
		TargetDistanceM:  12000,
		TargetGainM:      95,
		TolerancePercent: 15,
		Shape:            models.ShapeLoop,
	}
	engine := NewEngine(config.Default(), triangleNetwork())

	pattern.Mode = models.ModeStrict
	strict, err := engine.Search(context.Background(), pattern)
	require.NoError(t, err)
	assert.Empty(t, strict.Candidates)

	pattern.Mode = models.ModePermissive
	permissive, err := engine.Search(context.Background(), pattern)
	require.NoError(t, err)
	require.Len(t, permissive.Candidates, 1)
	assert.True(t, permissive.Candidates[0].PermissiveOnly)
}

func TestSearchUnattainableIsEmptyNotError(t *testing.T) {
	engine := NewEngine(config.Default(), triangleNetwork())

	result, err := engine.Search(context.Background(), models.Pattern{
		TargetDistanceM:  500000,
		TargetGainM:      10000,
		TolerancePercent: 10,
		Shape:            models.ShapeLoop,
		Mode:             models.ModeStrict,
	})
	require.NoError(t, err)
	assert.Empty(t, result.Candidates)
	assert.False(t, result.Truncated)
}

func TestSearchOutAndBack(t *testing.T) {
	nodes := map[int64]models.Node{
		1: {ID: 1, Point: orb.Point{0, 0}},
		2: {ID: 2, Point: orb.Point{5000, 0}},
	}
	edges := map[int64]models.Edge{
		1: mkEdge(1, 1, 2, "Summit Trail", 5000, 100, 20),
	}
	engine := NewEngine(config.Default(), graph.NewNetwork(nodes, edges, orb.Point{}, "test"))

	result, err := engine.Search(context.Background(), models.Pattern{
		TargetDistanceM:  10000,
		TargetGainM:      120,
		TolerancePercent: 10,
		Shape:            models.ShapeOutAndBack,
		Mode:             models.ModeStrict,
	})
	require.NoError(t, err)
	require.Len(t, result.Candidates, 1)

	c := result.Candidates[0]
	assert.Equal(t, models.ShapeOutAndBack, c.Shape)
	assert.InDelta(t, 10000, c.DistanceM, 1e-6)
	// The descent on the way out is climbed on the way back.
	assert.InDelta(t, 120, c.GainM, 1e-6)
	assert.Len(t, c.Geometry, 2)
}

func TestSearchPointToPoint(t *testing.T) {
	engine := NewEngine(config.Default(), triangleNetwork())

	result, err := engine.Search(context.Background(), models.Pattern{
		TargetDistanceM:  6000,
		TargetGainM:      60,
		TolerancePercent: 10,
		Shape:            models.ShapePointToPoint,
		Mode:             models.ModeStrict,
	})
	require.NoError(t, err)
	require.NotEmpty(t, result.Candidates)

	for _, c := range result.Candidates {
		assert.Equal(t, models.ShapePointToPoint, c.Shape)
		assert.NotEqual(t, c.NodeIDs[0], c.NodeIDs[len(c.NodeIDs)-1])
	}
}

func TestSearchDeduplicatesDirections(t *testing.T) {
	// The same loop is discovered from all three nodes in both
	// directions; only one candidate survives.
	engine := NewEngine(config.Default(), triangleNetwork())

	result, err := engine.Search(context.Background(), models.Pattern{
		TargetDistanceM:  9500,
		TargetGainM:      95,
		TolerancePercent: 10,
		Shape:            models.ShapeLoop,
		Mode:             models.ModeStrict,
	})
	require.NoError(t, err)
	assert.Len(t, result.Candidates, 1)
}

func TestSearchOrdering(t *testing.T) {
	engine := NewEngine(config.Default(), triangleNetwork())

	result, err := engine.Search(context.Background(), models.Pattern{
		TargetDistanceM:  6000,
		TargetGainM:      60,
		TolerancePercent: 20,
		Shape:            models.ShapePointToPoint,
		Mode:             models.ModeStrict,
	})
	require.NoError(t, err)
	require.NotEmpty(t, result.Candidates)

	for i := 1; i < len(result.Candidates); i++ {
		assert.GreaterOrEqual(t, result.Candidates[i-1].Score, result.Candidates[i].Score)
	}
}

func TestSearchEnforcesElevationBand(t *testing.T) {
	// A loop with the right distance but far too little climbing must not
	// match, in either mode: distance and elevation both have to land in
	// the tolerance window.
	engine := NewEngine(config.Default(), triangleNetwork())

	pattern := models.Pattern{
		TargetDistanceM:  9500,
		TargetGainM:      1000,
		TolerancePercent: 20,
		Shape:            models.ShapeLoop,
		Mode:             models.ModeStrict,
	}
	strict, err := engine.Search(context.Background(), pattern)
	require.NoError(t, err)
	assert.Empty(t, strict.Candidates)

	pattern.Mode = models.ModePermissive
	permissive, err := engine.Search(context.Background(), pattern)
	require.NoError(t, err)
	assert.Empty(t, permissive.Candidates)

	// The same loop matches once the elevation target is honest.
	pattern.Mode = models.ModeStrict
	pattern.TargetGainM = 100
	honest, err := engine.Search(context.Background(), pattern)
	require.NoError(t, err)
	assert.Len(t, honest.Candidates, 1)
}

func TestSearchFlatRouteMatchesZeroGainTarget(t *testing.T) {
	// The elevation window has an absolute floor, so a zero-gain target
	// still admits flat terrain.
	nodes := map[int64]models.Node{
		1: {ID: 1, Point: orb.Point{0, 0}},
		2: {ID: 2, Point: orb.Point{3000, 0}},
		3: {ID: 3, Point: orb.Point{1500, 2000}},
	}
	edges := map[int64]models.Edge{
		1: mkEdge(1, 1, 2, "Flat One", 3000, 0, 0),
		2: mkEdge(2, 2, 3, "Flat Two", 3000, 0, 0),
		3: mkEdge(3, 3, 1, "Flat Three", 3500, 0, 0),
	}
	engine := NewEngine(config.Default(), graph.NewNetwork(nodes, edges, orb.Point{}, "test"))

	result, err := engine.Search(context.Background(), models.Pattern{
		TargetDistanceM:  9500,
		TargetGainM:      0,
		TolerancePercent: 20,
		Shape:            models.ShapeLoop,
		Mode:             models.ModeStrict,
	})
	require.NoError(t, err)
	require.Len(t, result.Candidates, 1)
	assert.InDelta(t, 0, result.Candidates[0].GainM, 1e-9)
}

func TestSearchBudgetTruncates(t *testing.T) {
	cfg := config.Default()
	cfg.SearchVisitBudget = 1

	engine := NewEngine(cfg, triangleNetwork())
	result, err := engine.Search(context.Background(), models.Pattern{
		TargetDistanceM:  9500,
		TargetGainM:      95,
		TolerancePercent: 10,
		Shape:            models.ShapeLoop,
		Mode:             models.ModeStrict,
	})
	require.NoError(t, err)
	assert.True(t, result.Truncated)
}

func TestSearchInvalidPattern(t *testing.T) {
	engine := NewEngine(config.Default(), triangleNetwork())

	tests := []struct {
		name    string
		pattern models.Pattern
	}{
		{"zero distance", models.Pattern{TargetDistanceM: 0, TolerancePercent: 10, Shape: models.ShapeLoop}},
		{"negative gain", models.Pattern{TargetDistanceM: 1000, TargetGainM: -5, TolerancePercent: 10, Shape: models.ShapeLoop}},
		{"zero tolerance", models.Pattern{TargetDistanceM: 1000, TolerancePercent: 0, Shape: models.ShapeLoop}},
		{"unknown shape", models.Pattern{TargetDistanceM: 1000, TolerancePercent: 10, Shape: "figure-eight"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := engine.Search(context.Background(), tt.pattern)
			assert.Error(t, err)
		})
	}
}

func TestGetAllStrategies(t *testing.T) {
	shapes := make(map[models.RouteShape]bool)
	for _, s := range GetAllStrategies() {
		shapes[s.Shape()] = true
	}
	assert.Len(t, shapes, 3)
	assert.True(t, shapes[models.ShapeLoop])
	assert.True(t, shapes[models.ShapeOutAndBack])
	assert.True(t, shapes[models.ShapePointToPoint])
}

func TestSimilarity(t *testing.T) {
	p := models.Pattern{TargetDistanceM: 10000, TargetGainM: 100}

	perfect := Similarity(RouteMetrics{DistanceM: 10000, GainM: 100}, p)
	assert.InDelta(t, 1.0, perfect, 1e-9)

	near := Similarity(RouteMetrics{DistanceM: 9500, GainM: 95}, p)
	assert.Greater(t, near, 0.9)
	assert.Less(t, near, 1.0)

	far := Similarity(RouteMetrics{DistanceM: 40000, GainM: 2000}, p)
	assert.InDelta(t, 0.0, far, 1e-9)

	// Distance fit outweighs elevation fit.
	distOff := Similarity(RouteMetrics{DistanceM: 8000, GainM: 100}, p)
	elevOff := Similarity(RouteMetrics{DistanceM: 10000, GainM: 80}, p)
	assert.Less(t, distOff, elevOff)
}
