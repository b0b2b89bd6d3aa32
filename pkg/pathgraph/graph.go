package pathgraph

import (
	"errors"
	"fmt"

	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("mummer.path")

// Capacities of the slot tables. Indices are stable: a slot keeps its index
// for as long as it is used and freed slots are reused lowest first.
const (
	MaxNodes       = 50
	MaxConnections = 30
	MaxEdges       = 450
	MaxPolygons    = 50
)

// None marks a missing node, edge or polygon index.
const None = -1

var (
	ErrBadIndex        = errors.New("index out of range")
	ErrMissingNode     = errors.New("node not defined")
	ErrConnectionsFull = errors.New("node has no free connection slot")
)

// EdgeKind tells authored edges from the ones the graph adds itself.
type EdgeKind uint8

const (
	// EdgeAuthored edges come from the scene and are never removed by the graph.
	EdgeAuthored EdgeKind = iota
	// EdgeInferred edges are diagonals added by Build and removed by Clear.
	EdgeInferred
	// EdgeQuery edges exist only while one FindPath call runs.
	EdgeQuery
)

func (k EdgeKind) String() string {
	switch k {
	case EdgeAuthored:
		return "authored"
	case EdgeInferred:
		return "inferred"
	case EdgeQuery:
		return "query"
	default:
		return fmt.Sprintf("EdgeKind(%d)", uint8(k))
	}
}

type connection struct {
	used     bool
	node     int
	edge     int
	distance int
	enabled  bool
}

type node struct {
	used      bool
	temporary bool
	x, y      int
	scale     int
	conns     [MaxConnections]connection
	connCount int
}

type edge struct {
	used      bool
	enabled   bool
	kind      EdgeKind
	polyCount int // enabled polygons using this edge
	n1, n2    int
	distance  int
}

func (e *edge) hasNode(n int) bool { return e.n1 == n || e.n2 == n }

type polygon struct {
	used    bool
	enabled bool
	nodes   [3]int
	edges   [3]int
}

func (p *polygon) hasEdge(e int) bool {
	return e != None && (p.edges[0] == e || p.edges[1] == e || p.edges[2] == e)
}

func (p *polygon) hasNode(n int) bool {
	return n != None && (p.nodes[0] == n || p.nodes[1] == n || p.nodes[2] == n)
}

// Graph is a triangulated walkable area: nodes joined by edges, with
// triangles over those edges. Path queries splice temporary nodes into the
// graph and take them out again before returning.
//
// A Graph is not safe for concurrent use.
type Graph struct {
	nodes [MaxNodes]node
	edges [MaxEdges]edge
	polys [MaxPolygons]polygon

	nodeCount int
	edgeCount int
	polyCount int
	built     bool
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{}
}

// ---------------------------------------------------------------------------
// Authoring
// ---------------------------------------------------------------------------

// AddNode defines node i. Redefining a used slot drops its edges and the
// polygons over it.
func (g *Graph) AddNode(i, x, y, scale int) error {
	if i < 0 || i >= MaxNodes {
		return fmt.Errorf("node %d: %w", i, ErrBadIndex)
	}
	if g.nodes[i].used {
		for p := range g.polys {
			if poly := &g.polys[p]; poly.used && poly.hasNode(i) {
				g.setPolygonCounts(poly, -1)
				poly.used = false
				g.polyCount--
			}
		}
		g.removeNode(i)
	}
	g.nodes[i] = node{used: true, x: x, y: y, scale: scale}
	g.nodeCount++
	return nil
}

// AddEdge defines edge i between two existing nodes.
func (g *Graph) AddEdge(i, n1, n2 int, enabled bool) error {
	if i < 0 || i >= MaxEdges {
		return fmt.Errorf("edge %d: %w", i, ErrBadIndex)
	}
	for _, n := range [2]int{n1, n2} {
		if !g.validNode(n) {
			return fmt.Errorf("edge %d: node %d: %w", i, n, ErrMissingNode)
		}
	}
	if g.edges[i].used {
		g.removeEdge(i)
	}
	c1, c2 := g.nodes[n1].freeConnection(), g.nodes[n2].freeConnection()
	if c1 < 0 || c2 < 0 {
		return fmt.Errorf("edge %d: %w", i, ErrConnectionsFull)
	}
	g.linkEdge(i, n1, n2, c1, c2, enabled, EdgeAuthored)
	return nil
}

// AddPolygon defines triangle i over three nodes. It fails when any of the
// three edges between them is missing. An enabled polygon counts towards
// the polygon count of its edges.
func (g *Graph) AddPolygon(i, n1, n2, n3 int, enabled bool) bool {
	if i < 0 || i >= MaxPolygons {
		return false
	}
	if !g.validNode(n1) || !g.validNode(n2) || !g.validNode(n3) {
		return false
	}
	e1 := g.edgeBetween(n1, n2)
	e2 := g.edgeBetween(n2, n3)
	e3 := g.edgeBetween(n3, n1)
	if e1 == None || e2 == None || e3 == None {
		return false
	}

	p := &g.polys[i]
	if p.used {
		g.setPolygonCounts(p, -1)
	} else {
		g.polyCount++
	}
	*p = polygon{used: true, enabled: enabled, nodes: [3]int{n1, n2, n3}, edges: [3]int{e1, e2, e3}}
	g.setPolygonCounts(p, 1)
	return true
}

// Reset drops every node, edge and polygon.
func (g *Graph) Reset() {
	*g = Graph{}
}

func (g *Graph) setPolygonCounts(p *polygon, delta int) {
	if !p.enabled {
		return
	}
	for _, e := range p.edges {
		g.edges[e].polyCount += delta
	}
}

// ---------------------------------------------------------------------------
// Inspection
// ---------------------------------------------------------------------------

// NodeInfo describes a node.
type NodeInfo struct {
	Index       int
	X, Y, Scale int
	Connections int
	Temporary   bool
}

// EdgeInfo describes an edge.
type EdgeInfo struct {
	Index        int
	Node1, Node2 int
	Enabled      bool
	Kind         EdgeKind
	PolygonCount int
	Distance     int
}

// PolygonInfo describes a triangle.
type PolygonInfo struct {
	Index   int
	Nodes   [3]int
	Edges   [3]int
	Enabled bool
}

// Node returns node i.
func (g *Graph) Node(i int) (NodeInfo, bool) {
	if !g.validNode(i) {
		return NodeInfo{}, false
	}
	n := &g.nodes[i]
	return NodeInfo{Index: i, X: n.x, Y: n.y, Scale: n.scale, Connections: n.connCount, Temporary: n.temporary}, true
}

// Edge returns edge i.
func (g *Graph) Edge(i int) (EdgeInfo, bool) {
	if i < 0 || i >= MaxEdges || !g.edges[i].used {
		return EdgeInfo{}, false
	}
	e := &g.edges[i]
	return EdgeInfo{Index: i, Node1: e.n1, Node2: e.n2, Enabled: e.enabled, Kind: e.kind, PolygonCount: e.polyCount, Distance: e.distance}, true
}

// Polygon returns triangle i.
func (g *Graph) Polygon(i int) (PolygonInfo, bool) {
	if i < 0 || i >= MaxPolygons || !g.polys[i].used {
		return PolygonInfo{}, false
	}
	p := &g.polys[i]
	return PolygonInfo{Index: i, Nodes: p.nodes, Edges: p.edges, Enabled: p.enabled}, true
}

// Stats counts the entities of a graph by kind.
type Stats struct {
	Nodes          int
	TemporaryNodes int
	Edges          int
	InferredEdges  int
	QueryEdges     int
	Polygons       int
	Built          bool
}

// Stats returns the current entity counts.
func (g *Graph) Stats() Stats {
	st := Stats{Polygons: g.polyCount, Built: g.built}
	for i := range g.nodes {
		switch n := &g.nodes[i]; {
		case !n.used:
		case n.temporary:
			st.TemporaryNodes++
		default:
			st.Nodes++
		}
	}
	for i := range g.edges {
		e := &g.edges[i]
		if !e.used {
			continue
		}
		switch e.kind {
		case EdgeAuthored:
			st.Edges++
		case EdgeInferred:
			st.InferredEdges++
		case EdgeQuery:
			st.QueryEdges++
		}
	}
	return st
}

// ---------------------------------------------------------------------------
// Slot management
// ---------------------------------------------------------------------------

func (g *Graph) validNode(i int) bool {
	return i >= 0 && i < MaxNodes && g.nodes[i].used
}

func (n *node) freeConnection() int {
	for i := range n.conns {
		if !n.conns[i].used {
			return i
		}
	}
	return -1
}

func (g *Graph) freeNode() int {
	for i := range g.nodes {
		if !g.nodes[i].used {
			return i
		}
	}
	return None
}

func (g *Graph) freeEdge() int {
	for i := range g.edges {
		if !g.edges[i].used {
			return i
		}
	}
	return None
}

// edgeBetween returns the edge joining two nodes, or None.
func (g *Graph) edgeBetween(n1, n2 int) int {
	if !g.validNode(n1) || n2 == None {
		return None
	}
	n := &g.nodes[n1]
	for i := range n.conns {
		if c := &n.conns[i]; c.used && c.node == n2 {
			return c.edge
		}
	}
	return None
}

func (g *Graph) linkEdge(i, n1, n2, c1, c2 int, enabled bool, kind EdgeKind) {
	d := g.nodeDistance(n1, n2)
	g.edges[i] = edge{used: true, enabled: enabled, kind: kind, n1: n1, n2: n2, distance: d}
	g.edgeCount++

	a, b := &g.nodes[n1], &g.nodes[n2]
	a.conns[c1] = connection{used: true, node: n2, edge: i, distance: d, enabled: enabled}
	a.connCount++
	b.conns[c2] = connection{used: true, node: n1, edge: i, distance: d, enabled: enabled}
	b.connCount++
}

// insertEdge adds an enabled edge of kind between two nodes unless they are
// already connected. It fails when a table is full.
func (g *Graph) insertEdge(n1, n2 int, kind EdgeKind) bool {
	if g.edgeBetween(n1, n2) != None {
		return true
	}
	i := g.freeEdge()
	if i == None {
		return false
	}
	c1, c2 := g.nodes[n1].freeConnection(), g.nodes[n2].freeConnection()
	if c1 < 0 || c2 < 0 {
		return false
	}
	g.linkEdge(i, n1, n2, c1, c2, true, kind)
	return true
}

// addTemporaryNode places a query node and returns its index, or None
// when the node table is full.
func (g *Graph) addTemporaryNode(x, y, scale int) int {
	i := g.freeNode()
	if i == None {
		return None
	}
	g.nodes[i] = node{used: true, temporary: true, x: x, y: y, scale: scale}
	g.nodeCount++
	return i
}

func (g *Graph) removeNode(i int) {
	if !g.validNode(i) {
		return
	}
	if g.nodes[i].connCount > 0 {
		for e := range g.edges {
			if g.edges[e].used && g.edges[e].hasNode(i) {
				g.removeEdge(e)
			}
		}
	}
	g.nodes[i].used = false
	g.nodeCount--
}

func (g *Graph) removeEdge(i int) {
	e := &g.edges[i]
	if !e.used {
		return
	}
	g.unlink(e.n1, e.n2)
	g.unlink(e.n2, e.n1)
	e.used = false
	g.edgeCount--
}

func (g *Graph) unlink(from, to int) {
	n := &g.nodes[from]
	for i := range n.conns {
		if c := &n.conns[i]; c.used && c.node == to {
			c.used = false
			n.connCount--
		}
	}
}

// removeEdgesOfKind drops every edge of kind.
func (g *Graph) removeEdgesOfKind(kind EdgeKind) {
	for i := range g.edges {
		if g.edges[i].used && g.edges[i].kind == kind {
			g.removeEdge(i)
		}
	}
}
