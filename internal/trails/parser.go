package trails

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/trailforge/trailforge_core/internal/geom"
	"github.com/trailforge/trailforge_core/internal/models"
)

// Raw GeoJSON envelope. Coordinates are decoded per-geometry so that the
// optional third (elevation) element survives; orb's geojson decoder keeps
// only x/y, which would silently drop elevation profiles.
type featureCollection struct {
	Type     string    `json:"type"`
	Features []feature `json:"features"`
}

type feature struct {
	Type       string                 `json:"type"`
	Properties map[string]interface{} `json:"properties"`
	Geometry   rawGeometry            `json:"geometry"`
}

type rawGeometry struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

// ParseTrailsFile reads a GeoJSON FeatureCollection of LineString or
// MultiLineString features and converts it into trails. Geometry stays in
// lon/lat; call ProjectTrails before handing the result to the resolver.
func ParseTrailsFile(path string) ([]models.Trail, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read trails file: %w", err)
	}
	return ParseTrails(data)
}

// ParseTrails parses GeoJSON bytes into trails
func ParseTrails(data []byte) ([]models.Trail, error) {
	var fc featureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("failed to parse GeoJSON: %w", err)
	}
	if fc.Type != "FeatureCollection" {
		return nil, fmt.Errorf("expected FeatureCollection, got %q", fc.Type)
	}

	var out []models.Trail
	for i, f := range fc.Features {
		lines, elevs, err := decodeLines(f.Geometry)
		if err != nil {
			log.Printf("Warning: skipping feature %d: %v", i, err)
			continue
		}

		name := stringProp(f.Properties, "name", fmt.Sprintf("trail-%d", i))
		id := idProp(f.Properties)
		ttype := InferType(f.Properties)

		for part := range lines {
			trail := models.Trail{
				ID:         id,
				Name:       name,
				Type:       ttype,
				Geometry:   lines[part],
				Elevations: elevs[part],
				CreatedAt:  time.Now(),
			}
			if part > 0 {
				// Each part of a MultiLineString is its own trail piece.
				trail.ID = uuid.New()
			}
			out = append(out, trail)
		}
	}

	log.Printf("Parsed %d trails from %d features", len(out), len(fc.Features))
	return out, nil
}

// decodeLines flattens a LineString or MultiLineString into line parts
// plus parallel elevation profiles. Elevations are nil when the input is 2D.
func decodeLines(g rawGeometry) ([]orb.LineString, [][]float64, error) {
	switch g.Type {
	case "LineString":
		var coords [][]float64
		if err := json.Unmarshal(g.Coordinates, &coords); err != nil {
			return nil, nil, fmt.Errorf("invalid LineString coordinates: %w", err)
		}
		ls, elev, err := toLine(coords)
		if err != nil {
			return nil, nil, err
		}
		return []orb.LineString{ls}, [][]float64{elev}, nil

	case "MultiLineString":
		var multi [][][]float64
		if err := json.Unmarshal(g.Coordinates, &multi); err != nil {
			return nil, nil, fmt.Errorf("invalid MultiLineString coordinates: %w", err)
		}
		var lines []orb.LineString
		var elevs [][]float64
		for _, coords := range multi {
			ls, elev, err := toLine(coords)
			if err != nil {
				return nil, nil, err
			}
			lines = append(lines, ls)
			elevs = append(elevs, elev)
		}
		return lines, elevs, nil

	default:
		return nil, nil, fmt.Errorf("unsupported geometry type %q", g.Type)
	}
}

func toLine(coords [][]float64) (orb.LineString, []float64, error) {
	if len(coords) < 2 {
		return nil, nil, fmt.Errorf("line has %d points, need at least 2", len(coords))
	}

	ls := make(orb.LineString, 0, len(coords))
	var elev []float64
	has3D := len(coords[0]) >= 3

	for _, c := range coords {
		if len(c) < 2 {
			return nil, nil, fmt.Errorf("coordinate has %d elements", len(c))
		}
		ls = append(ls, orb.Point{c[0], c[1]})
		if has3D {
			z := 0.0
			if len(c) >= 3 {
				z = c[2]
			}
			elev = append(elev, z)
		}
	}
	return ls, elev, nil
}

// ComputeOrigin returns the centroid of all trail vertices, used as the
// origin of the local planar projection.
func ComputeOrigin(ts []models.Trail) orb.Point {
	var sumLon, sumLat float64
	n := 0
	for _, t := range ts {
		for _, p := range t.Geometry {
			sumLon += p.Lon()
			sumLat += p.Lat()
			n++
		}
	}
	if n == 0 {
		return orb.Point{}
	}
	return orb.Point{sumLon / float64(n), sumLat / float64(n)}
}

// ProjectTrails converts trail geometry from lon/lat to planar meters
// relative to origin and recomputes derived scalars.
func ProjectTrails(ts []models.Trail, origin orb.Point) {
	for i := range ts {
		for j, p := range ts[i].Geometry {
			ts[i].Geometry[j] = geom.Project(origin, p)
		}
		Recalculate(&ts[i])
	}
}

// InferType determines the trail category from feature properties.
// Keyword matching first, then the explicit type field, default UNKNOWN.
func InferType(props map[string]interface{}) models.TrailType {
	raw := strings.ToUpper(stringProp(props, "trail_type", stringProp(props, "type", "")))

	switch {
	case strings.Contains(raw, "BIKE"), strings.Contains(raw, "CYCL"):
		return models.TypeBiking
	case strings.Contains(raw, "HORSE"), strings.Contains(raw, "EQUEST"):
		return models.TypeEquestria
	case strings.Contains(raw, "ROAD"), strings.Contains(raw, "PAVED"):
		return models.TypeRoad
	case strings.Contains(raw, "HIK"), strings.Contains(raw, "FOOT"), strings.Contains(raw, "WALK"):
		return models.TypeHiking
	}
	return models.TypeUnknown
}

func stringProp(props map[string]interface{}, key, fallback string) string {
	if v, ok := props[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

func idProp(props map[string]interface{}) uuid.UUID {
	for _, key := range []string{"id", "trail_uuid", "uuid"} {
		if v, ok := props[key].(string); ok {
			if id, err := uuid.Parse(v); err == nil {
				return id
			}
		}
	}
	return uuid.New()
}
