package routing

import "github.com/trailforge/trailforge_core/internal/models"

// Strategy defines how a partial walk through the network completes into
// a route of a given shape. Each strategy decides when a path counts as
// finished and what its effective distance and elevation are.
type Strategy interface {
	Name() string
	Shape() models.RouteShape
	TryComplete(p *PathState) (RouteMetrics, bool)
}

// RouteMetrics is the effective distance and elevation of a completed
// route, after any shape-specific doubling.
type RouteMetrics struct {
	DistanceM float64
	GainM     float64
	LossM     float64
}

// PathState is the walk accumulated so far during search. Distances and
// elevation are oriented along the direction of travel.
type PathState struct {
	StartNodeID int64
	NodeIDs     []int64
	EdgeIDs     []int64
	DistanceM   float64
	GainM       float64
	LossM       float64

	// Closed is set when the last edge returned the walk to its start node
	Closed bool
}

// LoopStrategy completes only closed walks of at least three edges.
// Shorter closures are back-and-forth artifacts, not loops.
type LoopStrategy struct{}

func (s *LoopStrategy) Name() string             { return "loop" }
func (s *LoopStrategy) Shape() models.RouteShape { return models.ShapeLoop }

func (s *LoopStrategy) TryComplete(p *PathState) (RouteMetrics, bool) {
	if !p.Closed || len(p.EdgeIDs) < 3 {
		return RouteMetrics{}, false
	}
	return RouteMetrics{DistanceM: p.DistanceM, GainM: p.GainM, LossM: p.LossM}, true
}

// OutAndBackStrategy completes open walks by retracing them: the
// effective distance doubles and every descent on the way out becomes a
// climb on the way back.
type OutAndBackStrategy struct{}

func (s *OutAndBackStrategy) Name() string             { return "out_and_back" }
func (s *OutAndBackStrategy) Shape() models.RouteShape { return models.ShapeOutAndBack }

func (s *OutAndBackStrategy) TryComplete(p *PathState) (RouteMetrics, bool) {
	if p.Closed || len(p.EdgeIDs) == 0 {
		return RouteMetrics{}, false
	}
	return RouteMetrics{
		DistanceM: 2 * p.DistanceM,
		GainM:     p.GainM + p.LossM,
		LossM:     p.GainM + p.LossM,
	}, true
}

// PointToPointStrategy completes any open walk as-is
type PointToPointStrategy struct{}

func (s *PointToPointStrategy) Name() string             { return "point_to_point" }
func (s *PointToPointStrategy) Shape() models.RouteShape { return models.ShapePointToPoint }

func (s *PointToPointStrategy) TryComplete(p *PathState) (RouteMetrics, bool) {
	if p.Closed || len(p.EdgeIDs) == 0 {
		return RouteMetrics{}, false
	}
	return RouteMetrics{DistanceM: p.DistanceM, GainM: p.GainM, LossM: p.LossM}, true
}

// GetStrategy returns the strategy for a route shape
func GetStrategy(shape models.RouteShape) Strategy {
	switch shape {
	case models.ShapeLoop:
		return &LoopStrategy{}
	case models.ShapeOutAndBack:
		return &OutAndBackStrategy{}
	case models.ShapePointToPoint:
		return &PointToPointStrategy{}
	default:
		return &LoopStrategy{}
	}
}

// GetAllStrategies returns every available strategy
func GetAllStrategies() []Strategy {
	return []Strategy{
		&LoopStrategy{},
		&OutAndBackStrategy{},
		&PointToPointStrategy{},
	}
}
