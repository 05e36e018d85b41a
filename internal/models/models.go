package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
)

// TrailType represents the surface/usage category of a trail
type TrailType string

const (
	TypeHiking    TrailType = "HIKING"
	TypeBiking    TrailType = "BIKING"
	TypeEquestria TrailType = "EQUESTRIAN"
	TypeRoad      TrailType = "ROAD"
	TypeUnknown   TrailType = "UNKNOWN"
)

// RouteShape classifies the overall geometry of a route candidate
type RouteShape string

const (
	ShapeLoop         RouteShape = "loop"
	ShapeOutAndBack   RouteShape = "out-and-back"
	ShapePointToPoint RouteShape = "point-to-point"
)

// SearchMode selects how strictly route candidates must match the target pattern
type SearchMode string

const (
	ModeStrict     SearchMode = "strict"
	ModePermissive SearchMode = "permissive"
)

// NodeRole describes why a graph node exists
type NodeRole string

const (
	RoleEndpoint     NodeRole = "ENDPOINT"
	RoleIntersection NodeRole = "INTERSECTION"
	RoleMerged       NodeRole = "MERGED"
)

// Trail is a single non-self-intersecting polyline representing one trail
// or trail piece. Geometry is planar, in meters, relative to the network's
// projection origin. Elevations is either empty or parallel to Geometry.
type Trail struct {
	ID         uuid.UUID
	Name       string
	Type       TrailType
	Geometry   orb.LineString
	Elevations []float64

	// Derived scalars, recomputed whenever geometry changes.
	LengthM   float64
	GainM     float64
	LossM     float64
	MinElevM  float64
	MaxElevM  float64
	AvgElevM  float64
	CreatedAt time.Time
}

// Node is a unique location in the routable graph: a trail endpoint or a
// junction produced by intersection resolution and snapping.
type Node struct {
	ID        int64
	Point     orb.Point
	ElevM     float64
	Role      NodeRole
	CreatedAt time.Time
}

// Edge connects two nodes and carries the originating trail identities.
// After degree-2 merging an edge may span several trails end to end.
type Edge struct {
	ID         int64
	FromNodeID int64
	ToNodeID   int64
	TrailIDs   []uuid.UUID
	TrailNames []string
	Geometry   orb.LineString
	Elevations []float64
	LengthM    float64
	GainM      float64
	LossM      float64
	CreatedAt  time.Time
}

// RouteCandidate is a scored, classified path through the graph proposed
// as a recommended route.
type RouteCandidate struct {
	ID             uuid.UUID           `json:"route_uuid"`
	Name           string              `json:"route_name"`
	EdgeIDs        []int64             `json:"-"`
	NodeIDs        []int64             `json:"-"`
	Geometry       orb.MultiLineString `json:"-"`
	DistanceM      float64             `json:"distance_m"`
	GainM          float64             `json:"elevation_gain_m"`
	LossM          float64             `json:"elevation_loss_m"`
	Shape          RouteShape          `json:"route_shape"`
	Score          float64             `json:"route_score"`
	TrailIDs       []uuid.UUID         `json:"trail_ids"`
	TrailCount     int                 `json:"trail_count"`
	PermissiveOnly bool                `json:"permissive_only"`
}

// Pattern is the target a route search tries to match.
type Pattern struct {
	TargetDistanceM  float64    `json:"target_distance_m"`
	TargetGainM      float64    `json:"target_elevation_gain_m"`
	TolerancePercent float64    `json:"tolerance_percent"`
	Shape            RouteShape `json:"shape"`
	Mode             SearchMode `json:"mode"`
}

// BuildReport collects the counts every network build emits alongside its
// primary output.
type BuildReport struct {
	TrailsIn            int       `json:"trails_in"`
	TrailsOut           int       `json:"trails_out"`
	IntersectionsSplit  int       `json:"intersections_split"`
	SnapsApplied        int       `json:"snaps_applied"`
	ResolutionPasses    int       `json:"resolution_passes"`
	UnresolvedPairs     int       `json:"unresolved_pairs"`
	NodesBeforeMerge    int       `json:"nodes_before_merge"`
	NodesAfterMerge     int       `json:"nodes_after_merge"`
	EdgesBeforeMerge    int       `json:"edges_before_merge"`
	EdgesAfterMerge     int       `json:"edges_after_merge"`
	BypassEdgesRemoved  int       `json:"bypass_edges_removed"`
	IsolatedNodes       int       `json:"isolated_nodes"`
	ConnectedComponents int       `json:"connected_components"`
	BuiltAt             time.Time `json:"built_at"`
}

// SearchResult is the outcome of one route search invocation.
type SearchResult struct {
	Candidates []RouteCandidate `json:"candidates"`
	Truncated  bool             `json:"truncated"`
	Mode       SearchMode       `json:"mode"`
}
