package trails

import (
	"math"
	"testing"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trailforge/trailforge_core/internal/geom"
	"github.com/trailforge/trailforge_core/internal/models"
)

func planarTrail(name string, pts ...orb.Point) models.Trail {
	t := models.Trail{ID: uuid.New(), Name: name, Geometry: orb.LineString(pts)}
	Recalculate(&t)
	return t
}

func TestValidateAndClean(t *testing.T) {
	ts := []models.Trail{
		planarTrail("good", orb.Point{0, 0}, orb.Point{100, 0}),
		planarTrail("degenerate", orb.Point{5, 5}, orb.Point{5, 5}),
		planarTrail("too-short", orb.Point{0, 0}, orb.Point{0.2, 0}),
		planarTrail("nan", orb.Point{0, 0}, orb.Point{math.NaN(), 10}),
		planarTrail("self-crossing", orb.Point{0, 0}, orb.Point{10, 10}, orb.Point{10, 0}, orb.Point{0, 10}),
	}

	cleaned := ValidateAndClean(ts, 1.0)
	require.Len(t, cleaned, 1)
	assert.Equal(t, "good", cleaned[0].Name)
}

func TestValidateAndCleanKeepsElevationsAligned(t *testing.T) {
	// A duplicated vertex is removed together with its elevation sample.
	trail := models.Trail{
		ID:   uuid.New(),
		Name: "dup",
		Geometry: orb.LineString{
			{0, 0}, {50, 0}, {50, 0}, {100, 0},
		},
		Elevations: []float64{100, 120, 120, 90},
	}

	cleaned := ValidateAndClean([]models.Trail{trail}, 1.0)
	require.Len(t, cleaned, 1)
	require.Len(t, cleaned[0].Geometry, 3)
	require.Len(t, cleaned[0].Elevations, 3)
	assert.Equal(t, []float64{100, 120, 90}, cleaned[0].Elevations)
	assert.InDelta(t, 20, cleaned[0].GainM, 1e-9)
	assert.InDelta(t, 30, cleaned[0].LossM, 1e-9)
}

func TestSplit(t *testing.T) {
	trail := models.Trail{
		ID:         uuid.New(),
		Name:       "ridge",
		Geometry:   orb.LineString{{0, 0}, {100, 0}},
		Elevations: []float64{100, 200},
	}
	Recalculate(&trail)

	loc := geom.NearestPointOn(trail.Geometry, orb.Point{40, 0})
	first, second, ok := Split(trail, loc, 1.0)
	require.True(t, ok)

	assert.InDelta(t, 40, first.LengthM, 1e-9)
	assert.InDelta(t, 60, second.LengthM, 1e-9)
	assert.InDelta(t, trail.LengthM, first.LengthM+second.LengthM, 1e-9)

	// Elevation interpolated at the cut.
	require.Len(t, first.Elevations, 2)
	require.Len(t, second.Elevations, 2)
	assert.InDelta(t, 140, first.Elevations[1], 1e-9)
	assert.InDelta(t, 140, second.Elevations[0], 1e-9)

	// Fresh identities on both halves.
	assert.NotEqual(t, trail.ID, first.ID)
	assert.NotEqual(t, trail.ID, second.ID)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, trail.Name, first.Name)
}

func TestSplitRejectsSlivers(t *testing.T) {
	trail := planarTrail("short-end", orb.Point{0, 0}, orb.Point{100, 0})

	loc := geom.NearestPointOn(trail.Geometry, orb.Point{0.4, 0})
	_, _, ok := Split(trail, loc, 1.0)
	assert.False(t, ok)

	loc = geom.NearestPointOn(trail.Geometry, orb.Point{99.8, 0})
	_, _, ok = Split(trail, loc, 1.0)
	assert.False(t, ok)
}

func TestSplitOnExistingVertex(t *testing.T) {
	trail := models.Trail{
		ID:         uuid.New(),
		Name:       "bend",
		Geometry:   orb.LineString{{0, 0}, {50, 0}, {50, 50}},
		Elevations: []float64{10, 20, 30},
	}
	Recalculate(&trail)

	loc := geom.NearestPointOn(trail.Geometry, orb.Point{50, 0})
	first, second, ok := Split(trail, loc, 1.0)
	require.True(t, ok)

	assert.Len(t, first.Geometry, 2)
	assert.Len(t, second.Geometry, 2)
	assert.Equal(t, len(first.Geometry), len(first.Elevations))
	assert.Equal(t, len(second.Geometry), len(second.Elevations))
	assert.InDelta(t, trail.LengthM, first.LengthM+second.LengthM, 1e-9)
}

func TestMoveEndpoint(t *testing.T) {
	trail := planarTrail("gap", orb.Point{0, 3}, orb.Point{0, 50})

	MoveEndpoint(&trail, true, orb.Point{0, 0})
	assert.InDelta(t, 50, trail.LengthM, 1e-9)
	assert.Equal(t, orb.Point{0, 0}, trail.Geometry[0])
}
