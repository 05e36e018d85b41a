package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/trailforge/trailforge_core/internal/config"
	"github.com/trailforge/trailforge_core/internal/db"
	"github.com/trailforge/trailforge_core/internal/export"
	"github.com/trailforge/trailforge_core/internal/graph"
	"github.com/trailforge/trailforge_core/internal/models"
	"github.com/trailforge/trailforge_core/internal/routing"
)

// Generates route recommendations for a stored network and persists them
// to route_recommendations, where downstream tooling picks them up.
func main() {
	version := flag.String("version", "", "Network version to load (default: latest)")
	distanceKM := flag.Float64("distance-km", 0, "Target route distance in kilometers (required)")
	gain := flag.Float64("elevation-gain", 0, "Target elevation gain in meters")
	tolerance := flag.Float64("tolerance", 20, "Tolerance in percent")
	shape := flag.String("shape", "all", "Route shape: loop, out-and-back, point-to-point or all")
	mode := flag.String("mode", string(models.ModeStrict), "Search mode: strict or permissive")
	topN := flag.Int("top", 50, "Maximum recommendations to keep per shape")
	exportPath := flag.String("export", "", "Write the recommendations as GeoJSON to this path")
	skipPersist := flag.Bool("skip-persist", false, "Search without writing recommendations to the database")

	flag.Parse()

	if *distanceKM <= 0 {
		fmt.Println("Usage: trailforge-find-routes --distance-km=<km> [--elevation-gain=<m>] [--shape=loop|out-and-back|point-to-point|all]")
		flag.PrintDefaults()
		os.Exit(1)
	}

	cfg := config.FromEnv()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	pool, err := db.GetDB()
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	store := graph.NewStore(pool)

	var net *graph.Network
	if *version == "" {
		net, err = store.LoadLatestNetwork(ctx)
	} else {
		net, err = store.LoadNetwork(ctx, *version)
	}
	if err != nil {
		log.Fatalf("Failed to load network: %v", err)
	}

	shapes, err := selectShapes(*shape)
	if err != nil {
		log.Fatalf("Invalid shape: %v", err)
	}

	engine := routing.NewEngine(cfg, net)
	startTime := time.Now()
	var routes []models.RouteCandidate

	for _, s := range shapes {
		pattern := models.Pattern{
			TargetDistanceM:  *distanceKM * 1000,
			TargetGainM:      *gain,
			TolerancePercent: *tolerance,
			Shape:            s,
			Mode:             models.SearchMode(*mode),
		}
		result, err := engine.Search(ctx, pattern)
		if err != nil {
			log.Fatalf("Search failed for shape %s: %v", s, err)
		}

		kept := result.Candidates
		if len(kept) > *topN {
			kept = kept[:*topN]
		}
		log.Printf("Shape %s: %d candidates, keeping %d (truncated=%v)",
			s, len(result.Candidates), len(kept), result.Truncated)
		routes = append(routes, kept...)
	}

	log.Printf("Found %d recommendations in %v", len(routes), time.Since(startTime))

	if *skipPersist {
		log.Println("Skipping persistence (--skip-persist)")
	} else {
		if err := store.EnsureSchema(ctx); err != nil {
			log.Fatalf("Failed to ensure schema: %v", err)
		}
		if err := store.SaveRoutes(ctx, net.Version, routes); err != nil {
			log.Fatalf("Failed to persist recommendations: %v", err)
		}
	}

	if *exportPath != "" {
		data, err := export.Routes(net, routes).MarshalJSON()
		if err != nil {
			log.Fatalf("Failed to render recommendations: %v", err)
		}
		if err := os.WriteFile(*exportPath, data, 0o644); err != nil {
			log.Fatalf("Failed to write %s: %v", *exportPath, err)
		}
		log.Printf("Exported %d recommendations to %s", len(routes), *exportPath)
	}
}

// selectShapes expands the shape flag, covering every strategy for "all"
func selectShapes(flagValue string) ([]models.RouteShape, error) {
	if flagValue == "all" {
		var shapes []models.RouteShape
		for _, s := range routing.GetAllStrategies() {
			shapes = append(shapes, s.Shape())
		}
		return shapes, nil
	}

	shape := models.RouteShape(flagValue)
	switch shape {
	case models.ShapeLoop, models.ShapeOutAndBack, models.ShapePointToPoint:
		return []models.RouteShape{shape}, nil
	default:
		return nil, fmt.Errorf("unknown shape %q", flagValue)
	}
}
