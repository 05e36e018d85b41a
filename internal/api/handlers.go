package api

import (
	"log"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/paulmach/orb"
	"github.com/trailforge/trailforge_core/internal/cache"
	"github.com/trailforge/trailforge_core/internal/config"
	"github.com/trailforge/trailforge_core/internal/db"
	"github.com/trailforge/trailforge_core/internal/export"
	"github.com/trailforge/trailforge_core/internal/geom"
	"github.com/trailforge/trailforge_core/internal/graph"
	"github.com/trailforge/trailforge_core/internal/models"
	"github.com/trailforge/trailforge_core/internal/routing"
)

// Server holds the request handlers and the network they serve. The
// network pointer is fixed for the server's lifetime; a rebuild means a
// new server.
type Server struct {
	cfg    *config.Config
	net    *graph.Network
	engine *routing.Engine
}

// NewServer creates the handler set for a loaded network
func NewServer(cfg *config.Config, net *graph.Network) *Server {
	return &Server{
		cfg:    cfg,
		net:    net,
		engine: routing.NewEngine(cfg, net),
	}
}

// Register mounts all routes on the app
func (s *Server) Register(app *fiber.App) {
	app.Get("/health", s.Health)
	app.Get("/v2/routes/search", s.RouteSearch)
	app.Get("/v2/network/stats", s.NetworkStats)
	app.Get("/v2/network/export", s.NetworkExport)
	app.Get("/v2/trails/nearby", s.TrailsNearby)
}

// Health reports readiness of the network and its backing services
func (s *Server) Health(c *fiber.Ctx) error {
	status := fiber.Map{
		"status":  "ok",
		"network": s.net.Version,
		"nodes":   s.net.NodeCount(),
		"edges":   s.net.EdgeCount(),
	}

	if err := db.HealthCheck(c.Context()); err != nil {
		status["status"] = "degraded"
		status["database"] = err.Error()
	}
	if err := cache.HealthCheck(c.Context()); err != nil {
		status["status"] = "degraded"
		status["cache"] = err.Error()
	}

	if status["status"] != "ok" {
		return c.Status(fiber.StatusServiceUnavailable).JSON(status)
	}
	return c.JSON(status)
}

// RouteSearch handles the /v2/routes/search endpoint
func (s *Server) RouteSearch(c *fiber.Ctx) error {
	pattern, err := parsePattern(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	result, err := s.searchCached(c, pattern)
	if err != nil {
		log.Printf("Route search failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "route search failed",
		})
	}

	return c.JSON(result)
}

// searchCached runs a search through the cache with a mutex lock so that
// concurrent identical searches are computed once.
func (s *Server) searchCached(c *fiber.Ctx, pattern models.Pattern) (*models.SearchResult, error) {
	ctx := c.Context()
	key := cache.PatternKey(pattern, s.net.Version)
	lockKey := cache.LockKey(key)

	cached, err := cache.GetResult(ctx, key)
	if err == nil && cached != nil {
		return cached, nil
	}

	acquired, err := cache.AcquireLock(ctx, lockKey, 10*time.Second)
	if err != nil {
		log.Printf("Failed to acquire search lock: %v", err)
		// Continue without lock (degrade gracefully)
	} else if !acquired {
		cached, err := cache.WaitForLock(ctx, key, 5*time.Second)
		if err == nil && cached != nil {
			return cached, nil
		}
		// If waiting failed, compute anyway
	}
	defer func() {
		if acquired {
			cache.ReleaseLock(ctx, lockKey)
		}
	}()

	result, err := s.engine.Search(ctx, pattern)
	if err != nil {
		return nil, err
	}

	if err := cache.SetResult(ctx, key, result, 0); err != nil {
		log.Printf("Failed to cache search result: %v", err)
	}
	return result, nil
}

// NetworkStats handles the /v2/network/stats endpoint
func (s *Server) NetworkStats(c *fiber.Ctx) error {
	comps := s.net.Components()
	largest := 0
	if len(comps) > 0 {
		largest = len(comps[0])
	}

	return c.JSON(fiber.Map{
		"version":              s.net.Version,
		"node_count":           s.net.NodeCount(),
		"edge_count":           s.net.EdgeCount(),
		"total_length_km":      s.net.TotalLengthM() / 1000,
		"connected_components": len(comps),
		"largest_component":    largest,
	})
}

// NetworkExport handles the /v2/network/export endpoint
func (s *Server) NetworkExport(c *fiber.Ctx) error {
	data, err := export.MarshalNetwork(s.net)
	if err != nil {
		log.Printf("Network export failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "network export failed",
		})
	}
	c.Set(fiber.HeaderContentType, "application/geo+json")
	return c.Send(data)
}

// TrailsNearby handles the /v2/trails/nearby endpoint: the network nodes
// closest to a lon/lat point.
func (s *Server) TrailsNearby(c *fiber.Ctx) error {
	lon, errLon := strconv.ParseFloat(c.Query("lon"), 64)
	lat, errLat := strconv.ParseFloat(c.Query("lat"), 64)
	if errLon != nil || errLat != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "missing or invalid required parameters: lon and lat",
		})
	}

	limit := c.QueryInt("limit", 10)
	maxDist := 5000.0
	if v := c.Query("max_dist_m"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			maxDist = f
		}
	}

	p := geom.Project(s.net.Origin, orb.Point{lon, lat})
	nodes := s.net.FindNearestNodes(p, limit, maxDist)

	type nearby struct {
		NodeID int64    `json:"node_id"`
		Lon    float64  `json:"lon"`
		Lat    float64  `json:"lat"`
		DistM  float64  `json:"dist_m"`
		Role   string   `json:"role"`
		Trails []string `json:"trails"`
	}

	out := make([]nearby, 0, len(nodes))
	for _, n := range nodes {
		ll := geom.Unproject(s.net.Origin, n.Point)
		var trailNames []string
		seen := make(map[string]bool)
		for _, eid := range s.net.Adjacent(n.ID) {
			e, _ := s.net.Edge(eid)
			for _, name := range e.TrailNames {
				if !seen[name] {
					seen[name] = true
					trailNames = append(trailNames, name)
				}
			}
		}
		out = append(out, nearby{
			NodeID: n.ID,
			Lon:    ll.Lon(),
			Lat:    ll.Lat(),
			DistM:  geom.Distance(n.Point, p),
			Role:   string(n.Role),
			Trails: trailNames,
		})
	}

	return c.JSON(fiber.Map{"nodes": out})
}

// parsePattern builds a search pattern from query parameters
func parsePattern(c *fiber.Ctx) (models.Pattern, error) {
	distKM, err := strconv.ParseFloat(c.Query("distance_km"), 64)
	if err != nil {
		return models.Pattern{}, fiber.NewError(fiber.StatusBadRequest, "missing or invalid required parameter: distance_km")
	}

	gain := 0.0
	if v := c.Query("elevation_gain"); v != "" {
		gain, err = strconv.ParseFloat(v, 64)
		if err != nil {
			return models.Pattern{}, fiber.NewError(fiber.StatusBadRequest, "invalid parameter: elevation_gain")
		}
	}

	tolerance := 20.0
	if v := c.Query("tolerance"); v != "" {
		tolerance, err = strconv.ParseFloat(v, 64)
		if err != nil {
			return models.Pattern{}, fiber.NewError(fiber.StatusBadRequest, "invalid parameter: tolerance")
		}
	}

	shape := models.RouteShape(c.Query("shape", string(models.ShapeLoop)))
	mode := models.SearchMode(c.Query("mode", string(models.ModeStrict)))

	return models.Pattern{
		TargetDistanceM:  distKM * 1000,
		TargetGainM:      gain,
		TolerancePercent: tolerance,
		Shape:            shape,
		Mode:             mode,
	}, nil
}
