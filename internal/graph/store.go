package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/paulmach/orb"
	"github.com/trailforge/trailforge_core/internal/models"
)

const batchSize = 1000

// Store persists built networks and route recommendations to Postgres.
// Geometry is stored as JSON coordinate arrays in the network's planar
// frame together with the projection origin, so a load round-trips
// exactly what was built.
type Store struct {
	db *pgxpool.Pool
}

// NewStore creates a store on an existing connection pool
func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// EnsureSchema creates the network tables if they do not exist
func (s *Store) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS network_meta (
			version      TEXT PRIMARY KEY,
			origin_lon   DOUBLE PRECISION NOT NULL,
			origin_lat   DOUBLE PRECISION NOT NULL,
			report       JSONB,
			built_at     TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS network_node (
			version      TEXT NOT NULL REFERENCES network_meta(version) ON DELETE CASCADE,
			id           BIGINT NOT NULL,
			x            DOUBLE PRECISION NOT NULL,
			y            DOUBLE PRECISION NOT NULL,
			elev_m       DOUBLE PRECISION NOT NULL,
			role         TEXT NOT NULL,
			PRIMARY KEY (version, id)
		)`,
		`CREATE TABLE IF NOT EXISTS network_edge (
			version      TEXT NOT NULL REFERENCES network_meta(version) ON DELETE CASCADE,
			id           BIGINT NOT NULL,
			from_node    BIGINT NOT NULL,
			to_node      BIGINT NOT NULL,
			trail_ids    UUID[] NOT NULL,
			trail_names  TEXT[] NOT NULL,
			geometry     JSONB NOT NULL,
			elevations   JSONB,
			length_m     DOUBLE PRECISION NOT NULL,
			gain_m       DOUBLE PRECISION NOT NULL,
			loss_m       DOUBLE PRECISION NOT NULL,
			PRIMARY KEY (version, id)
		)`,
		`CREATE TABLE IF NOT EXISTS route_recommendations (
			route_uuid                 UUID PRIMARY KEY,
			version                    TEXT NOT NULL,
			route_name                 TEXT NOT NULL,
			route_shape                TEXT NOT NULL,
			route_score                DOUBLE PRECISION NOT NULL,
			route_path                 JSONB NOT NULL,
			recommended_length_km      DOUBLE PRECISION NOT NULL,
			recommended_elevation_gain DOUBLE PRECISION NOT NULL,
			trail_count                INTEGER NOT NULL,
			created_at                 TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_edge_from ON network_edge(version, from_node)`,
		`CREATE INDEX IF NOT EXISTS idx_edge_to ON network_edge(version, to_node)`,
		`CREATE INDEX IF NOT EXISTS idx_routes_version ON route_recommendations(version)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to ensure schema: %w", err)
		}
	}
	return nil
}

// SaveNetwork replaces any stored network with the same version
func (s *Store) SaveNetwork(ctx context.Context, net *Network, report *models.BuildReport) error {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal build report: %w", err)
	}

	if _, err := s.db.Exec(ctx, "DELETE FROM network_meta WHERE version = $1", net.Version); err != nil {
		return fmt.Errorf("failed to clear previous network %s: %w", net.Version, err)
	}

	_, err = s.db.Exec(ctx,
		`INSERT INTO network_meta (version, origin_lon, origin_lat, report, built_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		net.Version, net.Origin.Lon(), net.Origin.Lat(), reportJSON, report.BuiltAt)
	if err != nil {
		return fmt.Errorf("failed to insert network meta: %w", err)
	}

	if err := s.saveNodes(ctx, net); err != nil {
		return err
	}
	if err := s.saveEdges(ctx, net); err != nil {
		return err
	}

	log.Printf("Persisted network %s: %d nodes, %d edges", net.Version, net.NodeCount(), net.EdgeCount())
	return nil
}

func (s *Store) saveNodes(ctx context.Context, net *Network) error {
	batch := &pgx.Batch{}
	count := 0

	for _, id := range net.NodeIDs() {
		n, _ := net.Node(id)
		batch.Queue(
			`INSERT INTO network_node (version, id, x, y, elev_m, role)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			net.Version, n.ID, n.Point[0], n.Point[1], n.ElevM, string(n.Role))
		count++

		if count%batchSize == 0 {
			if err := s.executeBatch(ctx, batch); err != nil {
				return fmt.Errorf("failed to insert nodes: %w", err)
			}
			batch = &pgx.Batch{}
		}
	}

	if batch.Len() > 0 {
		if err := s.executeBatch(ctx, batch); err != nil {
			return fmt.Errorf("failed to insert nodes: %w", err)
		}
	}
	return nil
}

func (s *Store) saveEdges(ctx context.Context, net *Network) error {
	batch := &pgx.Batch{}
	count := 0

	for _, id := range net.EdgeIDs() {
		e, _ := net.Edge(id)
		geomJSON, err := json.Marshal(e.Geometry)
		if err != nil {
			return fmt.Errorf("failed to marshal edge %d geometry: %w", id, err)
		}
		var elevJSON []byte
		if e.Elevations != nil {
			elevJSON, err = json.Marshal(e.Elevations)
			if err != nil {
				return fmt.Errorf("failed to marshal edge %d elevations: %w", id, err)
			}
		}

		batch.Queue(
			`INSERT INTO network_edge
			 (version, id, from_node, to_node, trail_ids, trail_names, geometry, elevations, length_m, gain_m, loss_m)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			net.Version, e.ID, e.FromNodeID, e.ToNodeID, e.TrailIDs, e.TrailNames,
			geomJSON, elevJSON, e.LengthM, e.GainM, e.LossM)
		count++

		if count%batchSize == 0 {
			if err := s.executeBatch(ctx, batch); err != nil {
				return fmt.Errorf("failed to insert edges: %w", err)
			}
			batch = &pgx.Batch{}
		}
	}

	if batch.Len() > 0 {
		if err := s.executeBatch(ctx, batch); err != nil {
			return fmt.Errorf("failed to insert edges: %w", err)
		}
	}
	return nil
}

// SaveRoutes persists route recommendations for a network version
func (s *Store) SaveRoutes(ctx context.Context, version string, routes []models.RouteCandidate) error {
	batch := &pgx.Batch{}

	for _, r := range routes {
		pathJSON, err := json.Marshal(r.Geometry)
		if err != nil {
			return fmt.Errorf("failed to marshal route %s path: %w", r.ID, err)
		}
		batch.Queue(
			`INSERT INTO route_recommendations
			 (route_uuid, version, route_name, route_shape, route_score, route_path,
			  recommended_length_km, recommended_elevation_gain, trail_count)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			 ON CONFLICT (route_uuid) DO NOTHING`,
			r.ID, version, r.Name, string(r.Shape), r.Score, pathJSON,
			r.DistanceM/1000, r.GainM, r.TrailCount)
	}

	if batch.Len() > 0 {
		if err := s.executeBatch(ctx, batch); err != nil {
			return fmt.Errorf("failed to insert routes: %w", err)
		}
	}
	log.Printf("Persisted %d route recommendations for network %s", len(routes), version)
	return nil
}

// LoadLatestNetwork loads the most recently built network
func (s *Store) LoadLatestNetwork(ctx context.Context) (*Network, error) {
	var version string
	err := s.db.QueryRow(ctx,
		"SELECT version FROM network_meta ORDER BY built_at DESC LIMIT 1").Scan(&version)
	if err != nil {
		return nil, fmt.Errorf("no stored network found: %w", err)
	}
	return s.LoadNetwork(ctx, version)
}

// LoadNetwork loads a stored network by version
func (s *Store) LoadNetwork(ctx context.Context, version string) (*Network, error) {
	var originLon, originLat float64
	err := s.db.QueryRow(ctx,
		"SELECT origin_lon, origin_lat FROM network_meta WHERE version = $1", version).
		Scan(&originLon, &originLat)
	if err != nil {
		return nil, fmt.Errorf("network %s not found: %w", version, err)
	}

	nodes, err := s.loadNodes(ctx, version)
	if err != nil {
		return nil, err
	}
	edges, err := s.loadEdges(ctx, version)
	if err != nil {
		return nil, err
	}

	log.Printf("Loaded network %s: %d nodes, %d edges", version, len(nodes), len(edges))
	return NewNetwork(nodes, edges, orb.Point{originLon, originLat}, version), nil
}

func (s *Store) loadNodes(ctx context.Context, version string) (map[int64]models.Node, error) {
	rows, err := s.db.Query(ctx,
		"SELECT id, x, y, elev_m, role FROM network_node WHERE version = $1", version)
	if err != nil {
		return nil, fmt.Errorf("failed to query nodes: %w", err)
	}
	defer rows.Close()

	nodes := make(map[int64]models.Node)
	for rows.Next() {
		var n models.Node
		var role string
		if err := rows.Scan(&n.ID, &n.Point[0], &n.Point[1], &n.ElevM, &role); err != nil {
			return nil, fmt.Errorf("failed to scan node: %w", err)
		}
		n.Role = models.NodeRole(role)
		nodes[n.ID] = n
	}
	return nodes, rows.Err()
}

func (s *Store) loadEdges(ctx context.Context, version string) (map[int64]models.Edge, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, from_node, to_node, trail_ids, trail_names, geometry, elevations,
		        length_m, gain_m, loss_m
		 FROM network_edge WHERE version = $1`, version)
	if err != nil {
		return nil, fmt.Errorf("failed to query edges: %w", err)
	}
	defer rows.Close()

	edges := make(map[int64]models.Edge)
	for rows.Next() {
		var e models.Edge
		var geomJSON, elevJSON []byte
		if err := rows.Scan(&e.ID, &e.FromNodeID, &e.ToNodeID, &e.TrailIDs, &e.TrailNames,
			&geomJSON, &elevJSON, &e.LengthM, &e.GainM, &e.LossM); err != nil {
			return nil, fmt.Errorf("failed to scan edge: %w", err)
		}
		if err := json.Unmarshal(geomJSON, &e.Geometry); err != nil {
			return nil, fmt.Errorf("failed to decode edge %d geometry: %w", e.ID, err)
		}
		if len(elevJSON) > 0 {
			if err := json.Unmarshal(elevJSON, &e.Elevations); err != nil {
				return nil, fmt.Errorf("failed to decode edge %d elevations: %w", e.ID, err)
			}
		}
		edges[e.ID] = e
	}
	return edges, rows.Err()
}

func (s *Store) executeBatch(ctx context.Context, batch *pgx.Batch) error {
	results := s.db.SendBatch(ctx, batch)
	defer results.Close()

	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			return err
		}
	}
	return nil
}
