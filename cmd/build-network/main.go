package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/trailforge/trailforge_core/internal/db"
	"github.com/trailforge/trailforge_core/internal/export"
	"github.com/trailforge/trailforge_core/internal/graph"
)

// Rebuilds the export artifacts for a stored network, or just inspects
// it. The importer owns the full pipeline; this tool works from what is
// already in the database.
func main() {
	version := flag.String("version", "", "Network version to load (default: latest)")
	exportPath := flag.String("export", "", "Write the network as GeoJSON to this path")
	yes := flag.Bool("yes", false, "Skip the confirmation prompt")

	flag.Parse()

	log.Println("Trail network inspection tool")

	pool, err := db.GetDB()
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	store := graph.NewStore(pool)

	startTime := time.Now()
	var net *graph.Network
	if *version == "" {
		net, err = store.LoadLatestNetwork(ctx)
	} else {
		net, err = store.LoadNetwork(ctx, *version)
	}
	if err != nil {
		log.Fatalf("Failed to load network: %v", err)
	}

	comps := net.Components()
	log.Printf("Network %s:", net.Version)
	log.Printf("   Nodes: %d", net.NodeCount())
	log.Printf("   Edges: %d", net.EdgeCount())
	log.Printf("   Total length: %.1f km", net.TotalLengthM()/1000)
	log.Printf("   Components: %d", len(comps))
	log.Printf("   Load time: %v", time.Since(startTime))

	if *exportPath == "" {
		return
	}

	if !*yes {
		if _, err := os.Stat(*exportPath); err == nil {
			fmt.Printf("File %s exists and will be overwritten. Continue? (yes/no): ", *exportPath)
			var confirm string
			fmt.Scanln(&confirm)
			if confirm != "yes" && confirm != "y" {
				log.Println("Export cancelled")
				return
			}
		}
	}

	data, err := export.MarshalNetwork(net)
	if err != nil {
		log.Fatalf("Failed to render network: %v", err)
	}
	if err := os.WriteFile(*exportPath, data, 0o644); err != nil {
		log.Fatalf("Failed to write %s: %v", *exportPath, err)
	}
	log.Printf("Exported network GeoJSON to %s (%d bytes)", *exportPath, len(data))
}
