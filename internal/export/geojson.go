package export

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/trailforge/trailforge_core/internal/geom"
	"github.com/trailforge/trailforge_core/internal/graph"
	"github.com/trailforge/trailforge_core/internal/models"
)

// Network renders a built network as a GeoJSON feature collection in
// lon/lat: one LineString feature per edge, one Point feature per node.
func Network(net *graph.Network) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()

	for _, id := range net.EdgeIDs() {
		e, _ := net.Edge(id)
		f := geojson.NewFeature(unprojectLine(net.Origin, e.Geometry))
		f.Properties = geojson.Properties{
			"edge_id":     e.ID,
			"from_node":   e.FromNodeID,
			"to_node":     e.ToNodeID,
			"trail_names": e.TrailNames,
			"length_km":   e.LengthM / 1000,
			"gain_m":      e.GainM,
			"loss_m":      e.LossM,
		}
		fc.Append(f)
	}

	for _, id := range net.NodeIDs() {
		n, _ := net.Node(id)
		f := geojson.NewFeature(geom.Unproject(net.Origin, n.Point))
		f.Properties = geojson.Properties{
			"node_id": n.ID,
			"role":    string(n.Role),
			"elev_m":  n.ElevM,
			"degree":  net.Degree(n.ID),
		}
		fc.Append(f)
	}

	return fc
}

// Routes renders route candidates as a GeoJSON feature collection, one
// MultiLineString feature per route.
func Routes(net *graph.Network, routes []models.RouteCandidate) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, r := range routes {
		fc.Append(Route(net, r))
	}
	return fc
}

// Route renders one route candidate as a GeoJSON feature
func Route(net *graph.Network, r models.RouteCandidate) *geojson.Feature {
	lines := make(orb.MultiLineString, 0, len(r.Geometry))
	for _, ls := range r.Geometry {
		lines = append(lines, unprojectLine(net.Origin, ls))
	}

	f := geojson.NewFeature(lines)
	f.Properties = geojson.Properties{
		"route_uuid":                 r.ID.String(),
		"route_name":                 r.Name,
		"route_shape":                string(r.Shape),
		"route_score":                r.Score,
		"recommended_length_km":      r.DistanceM / 1000,
		"recommended_elevation_gain": r.GainM,
		"trail_count":                r.TrailCount,
	}
	if r.PermissiveOnly {
		f.Properties["permissive_only"] = true
	}
	return f
}

// MarshalNetwork serializes a network feature collection to GeoJSON bytes
func MarshalNetwork(net *graph.Network) ([]byte, error) {
	data, err := Network(net).MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("failed to marshal network geojson: %w", err)
	}
	return data, nil
}

func unprojectLine(origin orb.Point, ls orb.LineString) orb.LineString {
	out := make(orb.LineString, len(ls))
	for i, p := range ls {
		out[i] = geom.Unproject(origin, p)
	}
	return out
}
