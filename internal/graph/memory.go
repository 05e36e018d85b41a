package graph

import (
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/quadtree"
	"github.com/trailforge/trailforge_core/internal/models"
)

// Network is an immutable in-memory trail network. It is built once and
// then shared freely across goroutines; no locking is needed because
// nothing mutates it after construction. Callers that reload a network
// swap the pointer atomically instead of mutating in place.
type Network struct {
	nodes map[int64]models.Node
	edges map[int64]models.Edge
	adj   map[int64][]int64 // node ID -> incident edge IDs, ascending

	// Origin is the lon/lat reference of the planar projection all node
	// and edge coordinates are expressed in.
	Origin orb.Point

	// Version identifies the build this network came from; cache keys
	// incorporate it so stale results die with the network.
	Version string

	qt *quadtree.Quadtree
}

type nodeItem struct {
	id int64
	pt orb.Point
}

func (n *nodeItem) Point() orb.Point { return n.pt }

// NewNetwork assembles the lookup structures for a built node/edge set
func NewNetwork(nodes map[int64]models.Node, edges map[int64]models.Edge, origin orb.Point, version string) *Network {
	net := &Network{
		nodes:   nodes,
		edges:   edges,
		adj:     adjacency(edges),
		Origin:  origin,
		Version: version,
	}

	if len(nodes) > 0 {
		var bound orb.Bound
		first := true
		for _, n := range nodes {
			if first {
				bound = orb.Bound{Min: n.Point, Max: n.Point}
				first = false
			}
			bound = bound.Extend(n.Point)
		}
		net.qt = quadtree.New(bound.Pad(1))
		for _, id := range sortedNodeIDs(nodes) {
			net.qt.Add(&nodeItem{id: id, pt: nodes[id].Point})
		}
	}

	return net
}

// Node returns the node with the given ID
func (n *Network) Node(id int64) (models.Node, bool) {
	node, ok := n.nodes[id]
	return node, ok
}

// Edge returns the edge with the given ID
func (n *Network) Edge(id int64) (models.Edge, bool) {
	e, ok := n.edges[id]
	return e, ok
}

// Adjacent returns the IDs of the edges incident to a node, ascending
func (n *Network) Adjacent(nodeID int64) []int64 {
	return n.adj[nodeID]
}

// Degree returns the number of edges incident to a node
func (n *Network) Degree(nodeID int64) int {
	return len(n.adj[nodeID])
}

// NodeIDs returns every node ID in ascending order
func (n *Network) NodeIDs() []int64 {
	return sortedNodeIDs(n.nodes)
}

// EdgeIDs returns every edge ID in ascending order
func (n *Network) EdgeIDs() []int64 {
	return sortedEdgeIDs(n.edges)
}

// NodeCount returns the number of nodes
func (n *Network) NodeCount() int { return len(n.nodes) }

// EdgeCount returns the number of edges
func (n *Network) EdgeCount() int { return len(n.edges) }

// TotalLengthM returns the summed length of every edge in meters
func (n *Network) TotalLengthM() float64 {
	total := 0.0
	for _, e := range n.edges {
		total += e.LengthM
	}
	return total
}

// FindNearestNodes returns up to limit nodes within maxDist of p, closest
// first. p is in the network's planar coordinates.
func (n *Network) FindNearestNodes(p orb.Point, limit int, maxDist float64) []models.Node {
	if n.qt == nil || limit <= 0 {
		return nil
	}
	ptrs := n.qt.KNearest(nil, p, limit, maxDist)
	out := make([]models.Node, 0, len(ptrs))
	for _, ptr := range ptrs {
		out = append(out, n.nodes[ptr.(*nodeItem).id])
	}
	sort.Slice(out, func(i, j int) bool {
		di := planarDistSq(out[i].Point, p)
		dj := planarDistSq(out[j].Point, p)
		if di != dj {
			return di < dj
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Components returns the connected components of the network as sorted
// node ID lists, largest first.
func (n *Network) Components() [][]int64 {
	seen := make(map[int64]bool, len(n.nodes))
	var comps [][]int64

	for _, start := range sortedNodeIDs(n.nodes) {
		if seen[start] {
			continue
		}
		var comp []int64
		queue := []int64{start}
		seen[start] = true
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			comp = append(comp, cur)
			for _, eid := range n.adj[cur] {
				e := n.edges[eid]
				for _, next := range []int64{e.FromNodeID, e.ToNodeID} {
					if !seen[next] {
						seen[next] = true
						queue = append(queue, next)
					}
				}
			}
		}
		sort.Slice(comp, func(i, j int) bool { return comp[i] < comp[j] })
		comps = append(comps, comp)
	}

	sort.Slice(comps, func(i, j int) bool {
		if len(comps[i]) != len(comps[j]) {
			return len(comps[i]) > len(comps[j])
		}
		return comps[i][0] < comps[j][0]
	})
	return comps
}

// Oriented returns an edge's geometry, elevation profile and gain/loss as
// seen when traversing from the given node.
func Oriented(e models.Edge, from int64) (orb.LineString, []float64, float64, float64) {
	return oriented(e, from)
}

func planarDistSq(a, b orb.Point) float64 {
	dx, dy := a[0]-b[0], a[1]-b[1]
	return dx*dx + dy*dy
}
