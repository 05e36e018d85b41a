package geom

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProjectUnprojectRoundTrip(t *testing.T) {
	origin := orb.Point{-105.3, 40.0}
	points := []orb.Point{
		{-105.3, 40.0},
		{-105.31, 40.01},
		{-105.28, 39.99},
	}

	for _, p := range points {
		planar := Project(origin, p)
		back := Unproject(origin, planar)
		assert.InDelta(t, p.Lon(), back.Lon(), 1e-9)
		assert.InDelta(t, p.Lat(), back.Lat(), 1e-9)
	}
}

func TestProjectDistances(t *testing.T) {
	origin := orb.Point{-105.3, 40.0}

	// One degree of latitude is roughly 110.5km
	a := Project(origin, orb.Point{-105.3, 40.0})
	b := Project(origin, orb.Point{-105.3, 41.0})
	assert.InDelta(t, 110574, Distance(a, b), 1)
}

func TestIntersectCrossing(t *testing.T) {
	a := orb.LineString{{0, -5}, {0, 5}}
	b := orb.LineString{{-5, 0}, {5, 0}}

	got := Intersect(a, b, 1.0)
	require.Len(t, got, 1)
	assert.Equal(t, KindCrossing, got[0].Kind)
	assert.InDelta(t, 0, got[0].Point[0], 1e-9)
	assert.InDelta(t, 0, got[0].Point[1], 1e-9)
}

func TestIntersectTouching(t *testing.T) {
	tests := []struct {
		name string
		a    orb.LineString
		b    orb.LineString
		want IntersectionKind
	}{
		{
			name: "endpoint of a touches interior of b",
			a:    orb.LineString{{0, 0}, {0, 10}},
			b:    orb.LineString{{-10, 10}, {10, 10}},
			want: KindTouchingA,
		},
		{
			name: "endpoint of b touches interior of a",
			a:    orb.LineString{{-10, 10}, {10, 10}},
			b:    orb.LineString{{0, 0}, {0, 10}},
			want: KindTouchingB,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Intersect(tt.a, tt.b, 1.0)
			require.Len(t, got, 1)
			assert.Equal(t, tt.want, got[0].Kind)
		})
	}
}

func TestIntersectSharedEndpointIgnored(t *testing.T) {
	// Two trails meeting endpoint to endpoint are already resolved.
	a := orb.LineString{{0, 0}, {10, 0}}
	b := orb.LineString{{10, 0}, {20, 10}}

	got := Intersect(a, b, 1.0)
	assert.Empty(t, got)
}

func TestIntersectDisjoint(t *testing.T) {
	a := orb.LineString{{0, 0}, {10, 0}}
	b := orb.LineString{{0, 100}, {10, 100}}

	assert.Empty(t, Intersect(a, b, 1.0))
}

func TestIntersectCollinearOverlap(t *testing.T) {
	a := orb.LineString{{0, 0}, {100, 0}}
	b := orb.LineString{{60, 0}, {160, 0}}

	got := Intersect(a, b, 1.0)
	require.Len(t, got, 1)
	assert.Equal(t, KindOverlap, got[0].Kind)
	// The shorter-or-equal polyline's endpoint inside the other: 60 on a,
	// or 100 on b. Either way the point is interior to one of them.
	x := got[0].Point[0]
	assert.True(t, x == 60 || x == 100, "split point at x=%f", x)
}

func TestIntersectDegenerate(t *testing.T) {
	got := Intersect(orb.LineString{{0, 0}}, orb.LineString{{0, 0}, {1, 1}}, 1.0)
	require.Len(t, got, 1)
	assert.Equal(t, KindDegenerate, got[0].Kind)
}

func TestIntersectMultipleCrossings(t *testing.T) {
	// A zigzag that crosses the baseline twice.
	a := orb.LineString{{0, -5}, {10, 5}, {20, -5}}
	b := orb.LineString{{-5, 0}, {25, 0}}

	got := Intersect(a, b, 0.5)
	require.Len(t, got, 2)
	for _, x := range got {
		assert.Equal(t, KindCrossing, x.Kind)
	}
}

func TestCut(t *testing.T) {
	ls := orb.LineString{{0, 0}, {10, 0}, {20, 0}}

	first, second := Cut(ls, 0, 0.5)
	assert.Equal(t, orb.LineString{{0, 0}, {5, 0}}, first)
	assert.Equal(t, orb.LineString{{5, 0}, {10, 0}, {20, 0}}, second)

	// Cutting exactly on an existing vertex must not duplicate it.
	first, second = Cut(ls, 0, 1.0)
	assert.Equal(t, orb.LineString{{0, 0}, {10, 0}}, first)
	assert.Equal(t, orb.LineString{{10, 0}, {20, 0}}, second)
}

func TestCutConservesLength(t *testing.T) {
	ls := orb.LineString{{0, 0}, {10, 3}, {25, 7}, {40, 0}}
	total := Length(ls)

	for seg := 0; seg < 3; seg++ {
		for _, frac := range []float64{0.25, 0.5, 0.75} {
			first, second := Cut(ls, seg, frac)
			assert.InDelta(t, total, Length(first)+Length(second), 1e-9)
		}
	}
}

func TestNearestPointOn(t *testing.T) {
	ls := orb.LineString{{0, 0}, {10, 0}}

	loc := NearestPointOn(ls, orb.Point{5, 3})
	assert.Equal(t, 0, loc.Segment)
	assert.InDelta(t, 0.5, loc.T, 1e-9)
	assert.InDelta(t, 3, loc.Dist, 1e-9)

	// Beyond the end clamps to the endpoint.
	loc = NearestPointOn(ls, orb.Point{15, 0})
	assert.InDelta(t, 1.0, loc.T, 1e-9)
	assert.InDelta(t, 5, loc.Dist, 1e-9)
}

func TestPositionOf(t *testing.T) {
	ls := orb.LineString{{0, 0}, {10, 0}, {10, 10}}

	loc := NearestPointOn(ls, orb.Point{10, 4})
	assert.InDelta(t, 14, PositionOf(ls, loc), 1e-9)
}

func TestIsSimple(t *testing.T) {
	tests := []struct {
		name string
		ls   orb.LineString
		want bool
	}{
		{"straight line", orb.LineString{{0, 0}, {10, 0}}, true},
		{"zigzag", orb.LineString{{0, 0}, {10, 0}, {10, 10}, {0, 10}}, true},
		{"self crossing", orb.LineString{{0, 0}, {10, 10}, {10, 0}, {0, 10}}, false},
		{"closed ring", orb.LineString{{0, 0}, {10, 0}, {10, 10}, {0, 10}, {0, 0}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsSimple(tt.ls))
		})
	}
}

func TestBufferContains(t *testing.T) {
	ls := orb.LineString{{0, 0}, {100, 0}}

	assert.True(t, BufferContains(ls, 5, orb.Point{50, 3}))
	assert.False(t, BufferContains(ls, 5, orb.Point{50, 8}))
	assert.False(t, BufferContains(ls, 5, orb.Point{50, 5})) // strictly inside
}
