package graph

import (
	"context"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/quadtree"
	"github.com/trailforge/trailforge_core/internal/config"
	"github.com/trailforge/trailforge_core/internal/geom"
	"github.com/trailforge/trailforge_core/internal/models"
)

// Builder constructs a routable network from a resolved trail set.
// It runs once to completion per invocation; re-running rebuilds nodes
// and edges from scratch.
type Builder struct {
	cfg *config.Config

	// Nodes protected from degree-2 merging, e.g. required waypoints.
	Protected map[int64]bool
}

// NewBuilder creates a graph builder
func NewBuilder(cfg *config.Config) *Builder {
	return &Builder{cfg: cfg, Protected: make(map[int64]bool)}
}

type endpointItem struct {
	idx int
	pt  orb.Point
}

func (e *endpointItem) Point() orb.Point { return e.pt }

// Build converts trails into a node/edge network: endpoint clustering,
// one edge per trail, degree-2 chain merging, bypass removal, and
// connectivity validation. Warnings are reported, never fatal.
func (b *Builder) Build(ctx context.Context, ts []models.Trail, origin orb.Point, version string) (*Network, *models.BuildReport, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	report := &models.BuildReport{TrailsOut: len(ts), BuiltAt: time.Now()}

	// Keep trail processing order stable regardless of input order.
	sorted := append([]models.Trail(nil), ts...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID.String() < sorted[j].ID.String() })

	nodes, endpointNode := b.buildNodes(sorted)
	edges := b.buildEdges(sorted, nodes, endpointNode)
	report.NodesBeforeMerge = len(nodes)
	report.EdgesBeforeMerge = len(edges)
	log.Printf("Created %d nodes and %d edges from %d trails", len(nodes), len(edges), len(sorted))

	merged := b.mergeDegreeTwo(nodes, edges)
	if merged > 0 {
		log.Printf("Merged %d degree-2 chain nodes", merged)
	}

	report.BypassEdgesRemoved = b.removeBypasses(nodes, edges)
	if report.BypassEdgesRemoved > 0 {
		log.Printf("Warning: removed %d bypass edges", report.BypassEdgesRemoved)
	}

	report.IsolatedNodes = dropIsolated(nodes, edges)
	if report.IsolatedNodes > 0 {
		log.Printf("Warning: dropped %d isolated nodes", report.IsolatedNodes)
	}

	assignRoles(nodes, edges)

	net := NewNetwork(nodes, edges, origin, version)
	report.NodesAfterMerge = len(nodes)
	report.EdgesAfterMerge = len(edges)
	report.ConnectedComponents = len(net.Components())
	if report.ConnectedComponents > 1 {
		log.Printf("Warning: network has %d connected components; route search is scoped per component", report.ConnectedComponents)
	}

	return net, report, nil
}

// buildNodes clusters trail endpoints within the snap tolerance into
// shared nodes using union-find over quadtree neighborhoods.
func (b *Builder) buildNodes(ts []models.Trail) (map[int64]models.Node, []int64) {
	type endpoint struct {
		pt   orb.Point
		elev float64
	}
	eps := make([]endpoint, 0, len(ts)*2)
	bound := orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{1, 1}}

	for i, t := range ts {
		start := endpoint{pt: t.Geometry[0]}
		end := endpoint{pt: t.Geometry[len(t.Geometry)-1]}
		if len(t.Elevations) == len(t.Geometry) && len(t.Elevations) > 0 {
			start.elev = t.Elevations[0]
			end.elev = t.Elevations[len(t.Elevations)-1]
		}
		eps = append(eps, start, end)
		if i == 0 {
			bound = orb.Bound{Min: start.pt, Max: start.pt}
		}
		bound = bound.Extend(start.pt).Extend(end.pt)
	}

	qt := quadtree.New(bound.Pad(b.cfg.SnapToleranceM))
	items := make([]*endpointItem, len(eps))
	for i := range eps {
		items[i] = &endpointItem{idx: i, pt: eps[i].pt}
		if err := qt.Add(items[i]); err != nil {
			log.Printf("Warning: failed to index endpoint %d: %v", i, err)
		}
	}

	parent := make([]int, len(eps))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(x int) int {
		if parent[x] != x {
			parent[x] = find(parent[x])
		}
		return parent[x]
	}
	union := func(a, c int) {
		ra, rc := find(a), find(c)
		if ra != rc {
			if ra > rc {
				ra, rc = rc, ra
			}
			parent[rc] = ra
		}
	}

	var buf []orb.Pointer
	for i := range items {
		buf = qt.KNearest(buf[:0], items[i].pt, 16, b.cfg.SnapToleranceM)
		for _, ptr := range buf {
			other := ptr.(*endpointItem)
			if geom.Distance(items[i].pt, other.pt) <= b.cfg.SnapToleranceM {
				union(i, other.idx)
			}
		}
	}

	// One node per cluster, positioned at the cluster centroid.
	type acc struct {
		sx, sy, se float64
		n          int
	}
	accs := make(map[int]*acc)
	for i := range eps {
		r := find(i)
		a, ok := accs[r]
		if !ok {
			a = &acc{}
			accs[r] = a
		}
		a.sx += eps[i].pt[0]
		a.sy += eps[i].pt[1]
		a.se += eps[i].elev
		a.n++
	}

	nodes := make(map[int64]models.Node)
	endpointNode := make([]int64, len(eps))
	rootNode := make(map[int]int64)
	nextID := int64(1)

	for i := range eps {
		r := find(i)
		id, ok := rootNode[r]
		if !ok {
			a := accs[r]
			id = nextID
			nextID++
			rootNode[r] = id
			nodes[id] = models.Node{
				ID:        id,
				Point:     orb.Point{a.sx / float64(a.n), a.sy / float64(a.n)},
				ElevM:     a.se / float64(a.n),
				Role:      models.RoleEndpoint,
				CreatedAt: time.Now(),
			}
		}
		endpointNode[i] = id
	}

	return nodes, endpointNode
}

// buildEdges creates one edge per trail, aligned to its cluster nodes.
// Self-loop edges (both endpoints clustered into the same node) are
// degenerate products of clustering and are dropped with a warning.
func (b *Builder) buildEdges(ts []models.Trail, nodes map[int64]models.Node, endpointNode []int64) map[int64]models.Edge {
	edges := make(map[int64]models.Edge)
	nextID := int64(1)

	for i, t := range ts {
		from := endpointNode[2*i]
		to := endpointNode[2*i+1]
		if from == to {
			log.Printf("Warning: trail %s (%s) collapses to a self-loop after clustering, dropping", t.Name, t.ID)
			continue
		}

		g := append(orb.LineString(nil), t.Geometry...)
		g[0] = nodes[from].Point
		g[len(g)-1] = nodes[to].Point

		edges[nextID] = models.Edge{
			ID:         nextID,
			FromNodeID: from,
			ToNodeID:   to,
			TrailIDs:   []uuid.UUID{t.ID},
			TrailNames: []string{t.Name},
			Geometry:   g,
			Elevations: append([]float64(nil), t.Elevations...),
			LengthM:    geom.Length(g),
			GainM:      t.GainM,
			LossM:      t.LossM,
			CreatedAt:  time.Now(),
		}
		nextID++
	}
	return edges
}

// mergeDegreeTwo repeatedly collapses unprotected nodes with exactly two
// incident edges into a single spanning edge. Nodes whose merge would
// produce a self-loop (pure cycles) are left alone.
func (b *Builder) mergeDegreeTwo(nodes map[int64]models.Node, edges map[int64]models.Edge) int {
	merged := 0
	nextEdgeID := int64(0)
	for id := range edges {
		if id > nextEdgeID {
			nextEdgeID = id
		}
	}
	nextEdgeID++

	for {
		adj := adjacency(edges)

		var target int64 = -1
		for _, nid := range sortedNodeIDs(nodes) {
			if b.Protected[nid] {
				continue
			}
			inc := adj[nid]
			if len(inc) != 2 || inc[0] == inc[1] {
				continue
			}
			e1, e2 := edges[inc[0]], edges[inc[1]]
			a := otherEnd(e1, nid)
			c := otherEnd(e2, nid)
			if a == nid || c == nid || a == c {
				continue // self-loop, or a merge that would create one
			}
			target = nid
			break
		}
		if target < 0 {
			return merged
		}

		inc := adj[target]
		e1, e2 := edges[inc[0]], edges[inc[1]]
		a := otherEnd(e1, target)
		c := otherEnd(e2, target)

		g1, el1, gain1, loss1 := oriented(e1, a)
		g2, el2, gain2, loss2 := oriented(e2, target)

		g := append(append(orb.LineString(nil), g1...), g2[1:]...)
		var el []float64
		if len(el1) == len(g1) && len(el2) == len(g2) && len(el1) > 0 {
			el = append(append([]float64(nil), el1...), el2[1:]...)
		}

		edges[nextEdgeID] = models.Edge{
			ID:         nextEdgeID,
			FromNodeID: a,
			ToNodeID:   c,
			TrailIDs:   append(append([]uuid.UUID(nil), e1.TrailIDs...), e2.TrailIDs...),
			TrailNames: append(append([]string(nil), e1.TrailNames...), e2.TrailNames...),
			Geometry:   g,
			Elevations: el,
			LengthM:    e1.LengthM + e2.LengthM,
			GainM:      gain1 + gain2,
			LossM:      loss1 + loss2,
			CreatedAt:  time.Now(),
		}
		nextEdgeID++

		delete(edges, e1.ID)
		delete(edges, e2.ID)
		delete(nodes, target)
		merged++
	}
}

// removeBypasses deletes edges whose tolerance buffer contains a node
// that is not one of their own endpoints: such edges silently skip over a
// junction and would corrupt search results.
func (b *Builder) removeBypasses(nodes map[int64]models.Node, edges map[int64]models.Edge) int {
	removed := 0
	for _, eid := range sortedEdgeIDs(edges) {
		e := edges[eid]
		for _, nid := range sortedNodeIDs(nodes) {
			if nid == e.FromNodeID || nid == e.ToNodeID {
				continue
			}
			if geom.BufferContains(e.Geometry, b.cfg.SnapToleranceM, nodes[nid].Point) {
				log.Printf("Warning: edge %d bypasses node %d, removing", eid, nid)
				delete(edges, eid)
				removed++
				break
			}
		}
	}
	return removed
}

func dropIsolated(nodes map[int64]models.Node, edges map[int64]models.Edge) int {
	adj := adjacency(edges)
	dropped := 0
	for _, nid := range sortedNodeIDs(nodes) {
		if len(adj[nid]) == 0 {
			delete(nodes, nid)
			dropped++
		}
	}
	return dropped
}

func assignRoles(nodes map[int64]models.Node, edges map[int64]models.Edge) {
	adj := adjacency(edges)
	for id, n := range nodes {
		if len(adj[id]) >= 3 {
			n.Role = models.RoleIntersection
		} else {
			n.Role = models.RoleEndpoint
		}
		nodes[id] = n
	}
}

// oriented returns the edge's geometry, elevation profile and gain/loss
// as seen when traversing from the given node.
func oriented(e models.Edge, from int64) (orb.LineString, []float64, float64, float64) {
	if e.FromNodeID == from {
		return e.Geometry, e.Elevations, e.GainM, e.LossM
	}
	g := append(orb.LineString(nil), e.Geometry...)
	g.Reverse()
	el := append([]float64(nil), e.Elevations...)
	for i, j := 0, len(el)-1; i < j; i, j = i+1, j-1 {
		el[i], el[j] = el[j], el[i]
	}
	return g, el, e.LossM, e.GainM
}

func otherEnd(e models.Edge, nid int64) int64 {
	if e.FromNodeID == nid {
		return e.ToNodeID
	}
	return e.FromNodeID
}

func adjacency(edges map[int64]models.Edge) map[int64][]int64 {
	adj := make(map[int64][]int64)
	for _, e := range edges {
		adj[e.FromNodeID] = append(adj[e.FromNodeID], e.ID)
		adj[e.ToNodeID] = append(adj[e.ToNodeID], e.ID)
	}
	for _, ids := range adj {
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	}
	return adj
}

func sortedNodeIDs(nodes map[int64]models.Node) []int64 {
	ids := make([]int64, 0, len(nodes))
	for id := range nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func sortedEdgeIDs(edges map[int64]models.Edge) []int64 {
	ids := make([]int64, 0, len(edges))
	for id := range edges {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
