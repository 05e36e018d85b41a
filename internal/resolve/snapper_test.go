package resolve

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trailforge/trailforge_core/internal/config"
	"github.com/trailforge/trailforge_core/internal/models"
)

// mkOrderedTrail pins the trail ID so the snapping order is fixed
func mkOrderedTrail(seq int, name string, pts ...orb.Point) models.Trail {
	trail := mkTrail(name, pts...)
	trail.ID = uuid.MustParse(fmt.Sprintf("00000000-0000-0000-0000-%012d", seq))
	return trail
}

func TestSnapperClosesGap(t *testing.T) {
	// A spur endpoint hovering 0.5m off another trail's midpoint snaps
	// onto it, and the target is split at the new junction.
	ts := []models.Trail{
		mkTrail("spur", orb.Point{0, 0.5}, orb.Point{0, 50}),
		mkTrail("main", orb.Point{-50, 0}, orb.Point{50, 0}),
	}

	s := NewSnapper(config.Default())
	out, snaps, err := s.Pass(context.Background(), ts)
	require.NoError(t, err)

	assert.Equal(t, 1, snaps)
	require.Len(t, out, 3)

	// The spur endpoint now sits exactly on the junction.
	var spur models.Trail
	for _, trail := range out {
		if trail.Name == "spur" {
			spur = trail
		}
	}
	require.NotEmpty(t, spur.Name)
	assert.InDelta(t, 0, spur.Geometry[0][0], 1e-9)
	assert.InDelta(t, 0, spur.Geometry[0][1], 1e-9)
}

func TestSnapperIdempotent(t *testing.T) {
	ts := []models.Trail{
		mkTrail("spur", orb.Point{0, 0.5}, orb.Point{0, 50}),
		mkTrail("main", orb.Point{-50, 0}, orb.Point{50, 0}),
	}

	s := NewSnapper(config.Default())
	out, snaps, err := s.Pass(context.Background(), ts)
	require.NoError(t, err)
	require.Equal(t, 1, snaps)

	out2, snaps2, err := s.Pass(context.Background(), out)
	require.NoError(t, err)
	assert.Equal(t, 0, snaps2)
	assert.Len(t, out2, len(out))
}

func TestSnapperRespectsTolerance(t *testing.T) {
	// A 10m gap exceeds the 5m snap tolerance and stays open.
	ts := []models.Trail{
		mkTrail("spur", orb.Point{0, 10}, orb.Point{0, 50}),
		mkTrail("main", orb.Point{-50, 0}, orb.Point{50, 0}),
	}

	s := NewSnapper(config.Default())
	out, snaps, err := s.Pass(context.Background(), ts)
	require.NoError(t, err)

	assert.Equal(t, 0, snaps)
	assert.Len(t, out, 2)
}

func TestSnapperEndpointToEndpoint(t *testing.T) {
	// Snapping onto a point near the target's own endpoint must not split
	// the target.
	ts := []models.Trail{
		mkTrail("spur", orb.Point{-50.4, 0.3}, orb.Point{-50, 50}),
		mkTrail("main", orb.Point{-50, 0}, orb.Point{50, 0}),
	}

	s := NewSnapper(config.Default())
	out, snaps, err := s.Pass(context.Background(), ts)
	require.NoError(t, err)

	assert.Equal(t, 1, snaps)
	assert.Len(t, out, 2)
}

func TestSnapperPrefersMidSegmentCandidates(t *testing.T) {
	// Two targets within tolerance: one reached near its midpoint, one
	// near its end. The mid-segment candidate wins even though it is
	// slightly farther.
	ts := []models.Trail{
		mkOrderedTrail(1, "spur", orb.Point{0, 2}, orb.Point{0, 60}),
		mkOrderedTrail(2, "mid", orb.Point{-50, 0}, orb.Point{50, 0}),
		mkOrderedTrail(3, "edge", orb.Point{-1, 3.5}, orb.Point{-1, 103.5}),
	}

	s := NewSnapper(config.Default())
	out, snaps, err := s.Pass(context.Background(), ts)
	require.NoError(t, err)
	require.Equal(t, 1, snaps)

	// "mid" was split, so the output grew by one.
	assert.Len(t, out, 4)
	names := make(map[string]int)
	for _, trail := range out {
		names[trail.Name]++
	}
	assert.Equal(t, 2, names["mid"])
	assert.Equal(t, 1, names["edge"])
}
