package trails

import (
	"log"
	"math"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/trailforge/trailforge_core/internal/geom"
	"github.com/trailforge/trailforge_core/internal/models"
)

// ValidateAndClean drops trails that cannot participate in a network:
// fewer than 2 distinct vertices, shorter than minLength, non-finite
// coordinates, or self-intersecting geometry. Offenders are logged and
// skipped, never fatal.
func ValidateAndClean(ts []models.Trail, minLength float64) []models.Trail {
	cleaned := make([]models.Trail, 0, len(ts))

	for _, t := range ts {
		dedupeVertices(&t)
		if len(t.Geometry) < 2 {
			log.Printf("Warning: trail %s (%s) has fewer than 2 distinct vertices, skipping", t.Name, t.ID)
			continue
		}
		if !finiteCoords(t.Geometry) {
			log.Printf("Warning: trail %s (%s) has non-finite coordinates, skipping", t.Name, t.ID)
			continue
		}
		Recalculate(&t)
		if t.LengthM < minLength {
			log.Printf("Warning: trail %s (%s) is %.2fm long, below minimum %.2fm, skipping", t.Name, t.ID, t.LengthM, minLength)
			continue
		}
		if !geom.IsSimple(t.Geometry) {
			log.Printf("Warning: trail %s (%s) is self-intersecting, skipping", t.Name, t.ID)
			continue
		}
		cleaned = append(cleaned, t)
	}

	if len(cleaned) < len(ts) {
		log.Printf("Cleaned trails: removed %d invalid of %d", len(ts)-len(cleaned), len(ts))
	}
	return cleaned
}

// Recalculate refreshes the derived scalars after any geometry change
func Recalculate(t *models.Trail) {
	t.LengthM = geom.Length(t.Geometry)

	if len(t.Elevations) != len(t.Geometry) || len(t.Elevations) == 0 {
		t.Elevations = nil
		t.GainM, t.LossM, t.MinElevM, t.MaxElevM, t.AvgElevM = 0, 0, 0, 0, 0
		return
	}

	gain, loss := 0.0, 0.0
	min, max, sum := t.Elevations[0], t.Elevations[0], 0.0
	for i, e := range t.Elevations {
		sum += e
		if e < min {
			min = e
		}
		if e > max {
			max = e
		}
		if i > 0 {
			d := e - t.Elevations[i-1]
			if d > 0 {
				gain += d
			} else {
				loss -= d
			}
		}
	}
	t.GainM, t.LossM = gain, loss
	t.MinElevM, t.MaxElevM = min, max
	t.AvgElevM = sum / float64(len(t.Elevations))
}

// Split cuts a trail at the given location, producing two trails with
// fresh identities and interpolated elevation profiles. Returns false if
// either half would be shorter than minLength.
func Split(t models.Trail, loc geom.Location, minLength float64) (models.Trail, models.Trail, bool) {
	pos := geom.PositionOf(t.Geometry, loc)
	if pos < minLength || t.LengthM-pos < minLength {
		return models.Trail{}, models.Trail{}, false
	}

	firstGeom, secondGeom := geom.Cut(t.Geometry, loc.Segment, loc.T)
	if len(firstGeom) < 2 || len(secondGeom) < 2 {
		return models.Trail{}, models.Trail{}, false
	}

	first := t
	second := t
	first.ID = uuid.New()
	second.ID = uuid.New()
	first.Geometry = firstGeom
	second.Geometry = secondGeom

	if len(t.Elevations) == len(t.Geometry) && len(t.Elevations) > 0 {
		i := loc.Segment
		cutElev := t.Elevations[i] + loc.T*(t.Elevations[i+1]-t.Elevations[i])

		fe := append([]float64(nil), t.Elevations[:i+1]...)
		if len(firstGeom) == i+2 {
			fe = append(fe, cutElev)
		}
		first.Elevations = fe

		var se []float64
		if len(secondGeom) == len(t.Geometry)-i {
			se = append(se, cutElev)
		}
		se = append(se, t.Elevations[i+1:]...)
		second.Elevations = se
	} else {
		first.Elevations = nil
		second.Elevations = nil
	}

	Recalculate(&first)
	Recalculate(&second)
	return first, second, true
}

// MoveEndpoint relocates one endpoint of a trail onto a new point and
// refreshes the derived scalars. The elevation at the moved vertex is kept.
func MoveEndpoint(t *models.Trail, start bool, pt orb.Point) {
	if start {
		t.Geometry[0] = pt
	} else {
		t.Geometry[len(t.Geometry)-1] = pt
	}
	Recalculate(t)
}

// dedupeVertices removes consecutive duplicate vertices, keeping the
// elevation profile aligned.
func dedupeVertices(t *models.Trail) {
	ls := t.Geometry
	if len(ls) == 0 {
		return
	}
	hasElev := len(t.Elevations) == len(ls)
	out := orb.LineString{ls[0]}
	var elev []float64
	if hasElev {
		elev = []float64{t.Elevations[0]}
	}
	for i, p := range ls[1:] {
		if !p.Equal(out[len(out)-1]) {
			out = append(out, p)
			if hasElev {
				elev = append(elev, t.Elevations[i+1])
			}
		}
	}
	t.Geometry = out
	if hasElev {
		t.Elevations = elev
	}
}

func finiteCoords(ls orb.LineString) bool {
	for _, p := range ls {
		if math.IsNaN(p[0]) || math.IsNaN(p[1]) || math.IsInf(p[0], 0) || math.IsInf(p[1], 0) {
			return false
		}
	}
	return true
}
