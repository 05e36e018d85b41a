package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/trailforge/trailforge_core/internal/config"
	"github.com/trailforge/trailforge_core/internal/db"
	"github.com/trailforge/trailforge_core/internal/graph"
	"github.com/trailforge/trailforge_core/internal/resolve"
	"github.com/trailforge/trailforge_core/internal/trails"
)

func main() {
	// Command-line flags
	trailsPath := flag.String("trails", "", "Path to trail GeoJSON file (required)")
	version := flag.String("version", "", "Network version label (default: generated)")
	intersectionTol := flag.Float64("intersection-tolerance", 0, "Intersection tolerance in meters (overrides env)")
	snapTol := flag.Float64("snap-tolerance", 0, "Endpoint snap tolerance in meters (overrides env)")
	skipPersist := flag.Bool("skip-persist", false, "Build the network without writing to the database")

	flag.Parse()

	if *trailsPath == "" {
		fmt.Println("Usage: trailforge-import --trails=<path.geojson> [--version=<label>] [--skip-persist]")
		flag.PrintDefaults()
		os.Exit(1)
	}

	if _, err := os.Stat(*trailsPath); os.IsNotExist(err) {
		log.Fatalf("Trail file not found: %s", *trailsPath)
	}

	cfg := config.FromEnv()
	if *intersectionTol > 0 {
		cfg.IntersectionToleranceM = *intersectionTol
	}
	if *snapTol > 0 {
		cfg.SnapToleranceM = *snapTol
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	networkVersion := *version
	if networkVersion == "" {
		networkVersion = fmt.Sprintf("net-%s-%s", time.Now().Format("20060102-150405"), uuid.New().String()[:8])
	}

	log.Println("Starting trail network import...")
	log.Printf("Trail file: %s", *trailsPath)
	log.Printf("Network version: %s", networkVersion)

	ctx := context.Background()
	startTime := time.Now()

	// Parse trails
	log.Println("Step 1/5: Parsing trail GeoJSON...")
	ts, err := trails.ParseTrailsFile(*trailsPath)
	if err != nil {
		log.Fatalf("Failed to parse trails: %v", err)
	}
	trailsIn := len(ts)
	log.Printf("Parsed %d trails", trailsIn)

	// Project to local planar coordinates
	log.Println("Step 2/5: Projecting to planar coordinates...")
	origin := trails.ComputeOrigin(ts)
	trails.ProjectTrails(ts, origin)

	// Validate and clean
	log.Println("Step 3/5: Validating and cleaning trails...")
	ts = trails.ValidateAndClean(ts, cfg.MinSegmentLengthM)
	log.Printf("Kept %d of %d trails", len(ts), trailsIn)
	if len(ts) == 0 {
		log.Fatalf("No usable trails after validation")
	}

	// Resolve intersections and snap endpoints
	log.Println("Step 4/5: Resolving intersections...")
	ts, stats, err := resolve.ResolveNetwork(ctx, ts, cfg)
	if err != nil {
		log.Fatalf("Failed to resolve network: %v", err)
	}

	// Build the graph
	log.Println("Step 5/5: Building network graph...")
	builder := graph.NewBuilder(cfg)
	net, report, err := builder.Build(ctx, ts, origin, networkVersion)
	if err != nil {
		log.Fatalf("Failed to build network: %v", err)
	}
	report.TrailsIn = trailsIn
	report.TrailsOut = len(ts)
	report.IntersectionsSplit = stats.SplitsApplied
	report.SnapsApplied = stats.SnapsApplied
	report.ResolutionPasses = stats.Passes
	report.UnresolvedPairs = stats.UnresolvedPairs

	log.Printf("Build summary: %d trails in, %d trails out, %d splits, %d snaps, %d passes",
		report.TrailsIn, report.TrailsOut, report.IntersectionsSplit, report.SnapsApplied, report.ResolutionPasses)
	log.Printf("Network: %d nodes, %d edges, %d components",
		report.NodesAfterMerge, report.EdgesAfterMerge, report.ConnectedComponents)

	if *skipPersist {
		log.Println("Skipping persistence (--skip-persist)")
	} else {
		pool, err := db.GetDB()
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()

		store := graph.NewStore(pool)
		if err := store.EnsureSchema(ctx); err != nil {
			log.Fatalf("Failed to ensure schema: %v", err)
		}
		if err := store.SaveNetwork(ctx, net, report); err != nil {
			log.Fatalf("Failed to persist network: %v", err)
		}
	}

	log.Printf("Import completed in %v", time.Since(startTime))
}
