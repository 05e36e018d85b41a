package geom

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// Meters per degree of latitude, and of longitude at the equator.
// Used by the local equirectangular projection; accurate to well under
// a meter over the extent of a single trail network.
const (
	metersPerDegLat = 110574.0
	metersPerDegLon = 111320.0
)

// IntersectionKind classifies how two polylines meet
type IntersectionKind int

const (
	// KindNone means the polylines do not meet, or meet only at shared endpoints
	KindNone IntersectionKind = iota
	// KindCrossing is a single point interior to both polylines (X)
	KindCrossing
	// KindTouchingA means an endpoint of A touches the interior of B (T): split B
	KindTouchingA
	// KindTouchingB means an endpoint of B touches the interior of A (T): split A
	KindTouchingB
	// KindOverlap is a collinear overlap of positive length (Y-like)
	KindOverlap
	// KindDegenerate means the computation failed on invalid geometry
	KindDegenerate
)

// Intersection is one resolved meeting point between two polylines
type Intersection struct {
	Kind  IntersectionKind
	Point orb.Point
}

// Location identifies a point on a polyline by segment index and the
// parameter along that segment in [0, 1].
type Location struct {
	Segment int
	T       float64
	Point   orb.Point
	Dist    float64
}

// Length returns the planar length of a polyline in coordinate units
func Length(ls orb.LineString) float64 {
	return planar.Length(ls)
}

// Distance returns the planar distance between two points
func Distance(a, b orb.Point) float64 {
	return planar.Distance(a, b)
}

// Project converts a lon/lat point to planar meters relative to origin
func Project(origin, p orb.Point) orb.Point {
	scale := math.Cos(origin.Lat() * math.Pi / 180)
	return orb.Point{
		(p.Lon() - origin.Lon()) * metersPerDegLon * scale,
		(p.Lat() - origin.Lat()) * metersPerDegLat,
	}
}

// Unproject converts a planar point in meters back to lon/lat
func Unproject(origin, p orb.Point) orb.Point {
	scale := math.Cos(origin.Lat() * math.Pi / 180)
	return orb.Point{
		origin.Lon() + p[0]/(metersPerDegLon*scale),
		origin.Lat() + p[1]/metersPerDegLat,
	}
}

// NearestPointOn projects p onto the polyline and returns the location of
// the closest point, including the distance from p.
func NearestPointOn(ls orb.LineString, p orb.Point) Location {
	best := Location{Segment: -1, Dist: math.Inf(1)}
	for i := 0; i < len(ls)-1; i++ {
		pt, t := projectOnSegment(p, ls[i], ls[i+1])
		d := planar.Distance(p, pt)
		if d < best.Dist {
			best = Location{Segment: i, T: t, Point: pt, Dist: d}
		}
	}
	return best
}

// WithinDistance reports whether p lies within tol of the polyline
func WithinDistance(ls orb.LineString, p orb.Point, tol float64) bool {
	return planar.DistanceFrom(ls, p) <= tol
}

// BufferContains reports whether p lies strictly inside the tolerance
// buffer of the polyline. Used for bypass-edge detection.
func BufferContains(ls orb.LineString, tol float64, p orb.Point) bool {
	return planar.DistanceFrom(ls, p) < tol
}

// Cut splits a polyline at segment index i, parameter t, returning the two
// halves. Both halves share the cut vertex. The caller is responsible for
// rejecting cuts that would produce degenerate slivers.
func Cut(ls orb.LineString, i int, t float64) (orb.LineString, orb.LineString) {
	cutPt := interpolate(ls[i], ls[i+1], t)

	first := make(orb.LineString, 0, i+2)
	first = append(first, ls[:i+1]...)
	if !cutPt.Equal(ls[i]) {
		first = append(first, cutPt)
	}

	second := make(orb.LineString, 0, len(ls)-i)
	if !cutPt.Equal(ls[i+1]) {
		second = append(second, cutPt)
	}
	second = append(second, ls[i+1:]...)

	return first, second
}

// PositionOf returns the distance in coordinate units from the start of
// the polyline to the given location.
func PositionOf(ls orb.LineString, loc Location) float64 {
	pos := 0.0
	for i := 0; i < loc.Segment; i++ {
		pos += planar.Distance(ls[i], ls[i+1])
	}
	return pos + planar.Distance(ls[loc.Segment], ls[loc.Segment+1])*loc.T
}

// IsSimple reports whether the polyline is free of self-intersections.
// Adjacent segments sharing a vertex do not count; a closed ring (first
// vertex equals last) is considered simple.
func IsSimple(ls orb.LineString) bool {
	n := len(ls) - 1
	closed := n > 1 && ls[0].Equal(ls[n])
	for i := 0; i < n; i++ {
		for j := i + 2; j < n; j++ {
			if closed && i == 0 && j == n-1 {
				continue
			}
			if _, _, hit := segmentIntersection(ls[i], ls[i+1], ls[j], ls[j+1]); hit {
				return false
			}
		}
	}
	return true
}

// Intersect computes every meeting point between two polylines and
// classifies each per the splitting policy: crossings split both sides,
// touches split only the side whose interior is hit, and collinear
// overlaps reduce to the shorter polyline's endpoint nearest the overlap.
// endpointTol is the distance within which a point counts as coinciding
// with a polyline endpoint.
func Intersect(a, b orb.LineString, endpointTol float64) []Intersection {
	if len(a) < 2 || len(b) < 2 {
		return []Intersection{{Kind: KindDegenerate}}
	}

	var out []Intersection
	seen := func(p orb.Point) bool {
		for _, x := range out {
			if x.Kind != KindOverlap && planar.Distance(x.Point, p) <= endpointTol {
				return true
			}
		}
		return false
	}
	overlapDone := false

	for i := 0; i < len(a)-1; i++ {
		for j := 0; j < len(b)-1; j++ {
			o1, o2, collinear := collinearOverlap(a[i], a[i+1], b[j], b[j+1])
			if collinear {
				if overlapDone || planar.Distance(o1, o2) <= endpointTol {
					continue
				}
				pt, ok := overlapSplitPoint(a, b, o1, o2, endpointTol)
				if ok {
					out = append(out, Intersection{Kind: KindOverlap, Point: pt})
					overlapDone = true
				}
				continue
			}

			pt, _, hit := segmentIntersection(a[i], a[i+1], b[j], b[j+1])
			if !hit || seen(pt) {
				continue
			}

			endA := isEndpoint(a, pt, endpointTol)
			endB := isEndpoint(b, pt, endpointTol)
			switch {
			case endA && endB:
				// Already a shared endpoint, nothing to split.
			case endA:
				out = append(out, Intersection{Kind: KindTouchingA, Point: pt})
			case endB:
				out = append(out, Intersection{Kind: KindTouchingB, Point: pt})
			default:
				out = append(out, Intersection{Kind: KindCrossing, Point: pt})
			}
		}
	}
	return out
}

// overlapSplitPoint picks the split point for a collinear overlap: the
// endpoint of the shorter polyline nearest the overlap region, provided
// it falls on the longer polyline's interior.
func overlapSplitPoint(a, b orb.LineString, o1, o2 orb.Point, endpointTol float64) (orb.Point, bool) {
	shorter, longer := a, b
	if planar.Length(a) > planar.Length(b) {
		shorter, longer = b, a
	}
	mid := interpolate(o1, o2, 0.5)

	cand := shorter[0]
	if planar.Distance(shorter[len(shorter)-1], mid) < planar.Distance(shorter[0], mid) {
		cand = shorter[len(shorter)-1]
	}

	loc := NearestPointOn(longer, cand)
	if loc.Segment < 0 || isEndpoint(longer, loc.Point, endpointTol) {
		return orb.Point{}, false
	}
	return loc.Point, true
}

func isEndpoint(ls orb.LineString, p orb.Point, tol float64) bool {
	return planar.Distance(ls[0], p) <= tol || planar.Distance(ls[len(ls)-1], p) <= tol
}

// segmentIntersection returns the single intersection point of two
// segments, if any. Collinear pairs report no hit; they are handled by
// collinearOverlap.
func segmentIntersection(p1, p2, q1, q2 orb.Point) (orb.Point, float64, bool) {
	rx, ry := p2[0]-p1[0], p2[1]-p1[1]
	sx, sy := q2[0]-q1[0], q2[1]-q1[1]

	rxs := rx*sy - ry*sx
	eps := 1e-12 * math.Hypot(rx, ry) * math.Hypot(sx, sy)
	if math.Abs(rxs) <= eps {
		return orb.Point{}, 0, false
	}

	qpx, qpy := q1[0]-p1[0], q1[1]-p1[1]
	t := (qpx*sy - qpy*sx) / rxs
	u := (qpx*ry - qpy*rx) / rxs
	if t < -1e-9 || t > 1+1e-9 || u < -1e-9 || u > 1+1e-9 {
		return orb.Point{}, 0, false
	}

	return orb.Point{p1[0] + t*rx, p1[1] + t*ry}, t, true
}

// collinearOverlap returns the overlap interval of two collinear segments,
// if it has positive length.
func collinearOverlap(p1, p2, q1, q2 orb.Point) (orb.Point, orb.Point, bool) {
	rx, ry := p2[0]-p1[0], p2[1]-p1[1]
	sx, sy := q2[0]-q1[0], q2[1]-q1[1]

	rlen := math.Hypot(rx, ry)
	if rlen == 0 {
		return orb.Point{}, orb.Point{}, false
	}
	eps := 1e-9 * rlen * math.Hypot(sx, sy)
	if math.Abs(rx*sy-ry*sx) > eps {
		return orb.Point{}, orb.Point{}, false
	}
	// Parallel; collinear only if q1 lies on the p-line.
	qpx, qpy := q1[0]-p1[0], q1[1]-p1[1]
	if math.Abs(qpx*ry-qpy*rx) > 1e-9*rlen*math.Max(math.Hypot(qpx, qpy), 1) {
		return orb.Point{}, orb.Point{}, false
	}

	// Parameterize both q endpoints along p.
	t0 := (qpx*rx + qpy*ry) / (rlen * rlen)
	t1 := ((q2[0]-p1[0])*rx + (q2[1]-p1[1])*ry) / (rlen * rlen)
	if t0 > t1 {
		t0, t1 = t1, t0
	}
	lo, hi := math.Max(t0, 0), math.Min(t1, 1)
	if hi <= lo {
		return orb.Point{}, orb.Point{}, false
	}
	return interpolate(p1, p2, lo), interpolate(p1, p2, hi), true
}

// ProjectOnSegment returns the closest point to p on segment ab and the
// parameter of that point along the segment.
func ProjectOnSegment(p, a, b orb.Point) (orb.Point, float64) {
	return projectOnSegment(p, a, b)
}

func projectOnSegment(p, a, b orb.Point) (orb.Point, float64) {
	abx, aby := b[0]-a[0], b[1]-a[1]
	den := abx*abx + aby*aby
	if den == 0 {
		return a, 0
	}
	t := ((p[0]-a[0])*abx + (p[1]-a[1])*aby) / den
	t = math.Max(0, math.Min(1, t))
	return interpolate(a, b, t), t
}

func interpolate(a, b orb.Point, t float64) orb.Point {
	return orb.Point{a[0] + t*(b[0]-a[0]), a[1] + t*(b[1]-a[1])}
}
