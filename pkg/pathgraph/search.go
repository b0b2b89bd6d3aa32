package pathgraph

import (
	"math"
	"sort"
)

// Waypoint is one point of a path result. Node is None for points that
// were spliced into the graph for the query; Edge then names the edge the
// point lies on, if any. Direction points towards the next waypoint and is
// -1 on the last one.
type Waypoint struct {
	X, Y      int
	Scale     int
	Node      int
	Edge      int
	Polygon   int
	Direction int
}

// anchor is a candidate attachment point for a query endpoint that lies
// outside every polygon.
type anchor struct {
	x, y     int
	node     int
	edge     int
	distance int
}

// closestPoints appends the candidate anchors for (x, y) on every authored
// edge and sorts them by distance. With snapToNode a projection falling on
// an edge end yields that node; otherwise both ends of a disabled or
// degenerate edge are offered.
func (g *Graph) closestPoints(anchors []anchor, x, y int, snapToNode bool) []anchor {
	for i := range g.edges {
		e := &g.edges[i]
		if !e.used || e.kind != EdgeAuthored || !(e.enabled || snapToNode) {
			continue
		}
		a, b := &g.nodes[e.n1], &g.nodes[e.n2]
		px, py, d := g.closestPointOnSegment(x, y, e.n1, e.n2)
		d1, d2 := Distance(px, py, a.x, a.y), Distance(px, py, b.x, b.y)

		switch {
		case d1 > 0 && d2 > 0 && e.enabled:
			px, py = snapToLine(a.x, a.y, px, py, b.x, b.y)
			anchors = append(anchors, anchor{x: px, y: py, node: None, edge: i, distance: d})
		case snapToNode:
			n := e.n2
			if d1 == 0 {
				n = e.n1
			}
			nn := &g.nodes[n]
			anchors = append(anchors, anchor{x: nn.x, y: nn.y, node: n, edge: None, distance: Distance(x, y, nn.x, nn.y)})
		default:
			anchors = append(anchors,
				anchor{x: a.x, y: a.y, node: e.n1, edge: None, distance: Distance(x, y, a.x, a.y)},
				anchor{x: b.x, y: b.y, node: e.n2, edge: None, distance: Distance(x, y, b.x, b.y)})
		}
	}
	sort.SliceStable(anchors, func(i, j int) bool { return anchors[i].distance < anchors[j].distance })
	return anchors
}

// connectIfLegal joins n1 and n2 with a new edge of kind when the segment
// crosses no boundary edge and at least threshold shared edges. Authored
// edges skip1 and skip2 are not tested. Nodes that are already connected
// count as joined.
func (g *Graph) connectIfLegal(n1, n2, threshold, skip1, skip2 int, kind EdgeKind) bool {
	if g.edgeCount >= MaxEdges || n1 == n2 || n1 == None || n2 == None {
		return false
	}
	if g.edgeBetween(n1, n2) != None {
		return true
	}
	a, b := &g.nodes[n1], &g.nodes[n2]
	crossings := 0
	for i := range g.edges {
		e := &g.edges[i]
		if !e.used || e.kind != EdgeAuthored || i == skip1 || i == skip2 || e.hasNode(n1) || e.hasNode(n2) {
			continue
		}
		c, d := &g.nodes[e.n1], &g.nodes[e.n2]
		if !segmentsIntersect(a.x, a.y, b.x, b.y, c.x, c.y, d.x, d.y) {
			continue
		}
		switch {
		case e.polyCount < 2:
			return false
		case e.polyCount == 2:
			crossings++
		}
	}
	if crossings < threshold {
		return false
	}
	return g.insertEdge(n1, n2, kind)
}

// spliceIntoPolygon joins node n to the three vertices of polygon p.
func (g *Graph) spliceIntoPolygon(n, p int) {
	for _, v := range g.polys[p].nodes {
		g.insertEdge(n, v, EdgeQuery)
	}
}

// spliceOntoEdge joins node n, lying on edge e, to the vertices of every
// enabled polygon using e, or to the ends of e when no polygon does.
func (g *Graph) spliceOntoEdge(n, e int) {
	if g.edges[e].polyCount == 0 {
		g.insertEdge(n, g.edges[e].n1, EdgeQuery)
		g.insertEdge(n, g.edges[e].n2, EdgeQuery)
		return
	}
	for i := range g.polys {
		if p := &g.polys[i]; p.used && p.enabled && p.hasEdge(e) {
			g.spliceIntoPolygon(n, i)
		}
	}
}

func (g *Graph) enabledPolygon(match func(p *polygon) bool) bool {
	for i := range g.polys {
		if p := &g.polys[i]; p.used && p.enabled && match(p) {
			return true
		}
	}
	return false
}

// touching reports whether node n and edge e belong to a common enabled
// polygon, or n is an end of e.
func (g *Graph) touching(n, e int) bool {
	if n == None || e == None {
		return false
	}
	if g.edges[e].hasNode(n) {
		return true
	}
	return g.enabledPolygon(func(p *polygon) bool { return p.hasNode(n) && p.hasEdge(e) })
}

func (g *Graph) sameEnabledPolygon(e1, e2, n1, n2 int) bool {
	if e1 != None && e2 != None && g.enabledPolygon(func(p *polygon) bool { return p.hasEdge(e1) && p.hasEdge(e2) }) {
		return true
	}
	return n1 != None && n2 != None && g.enabledPolygon(func(p *polygon) bool { return p.hasNode(n1) && p.hasNode(n2) })
}

// endpoint is one resolved end of a query: the node it sits on plus the
// polygon containing it or the edge it was spliced onto.
type endpoint struct {
	node    int
	edge    int
	polygon int
}

// join links the two query endpoints directly when they share a polygon
// and falls back to the legality test otherwise.
func (g *Graph) join(src, dst endpoint) bool {
	direct := false
	switch {
	case dst.polygon != None && src.polygon != None:
	case dst.polygon != None:
		p := &g.polys[dst.polygon]
		if src.edge != None {
			direct = p.hasEdge(src.edge)
		} else {
			direct = p.hasNode(src.node)
		}
	case src.polygon != None:
		p := &g.polys[src.polygon]
		if dst.edge != None {
			direct = p.hasEdge(dst.edge)
		} else {
			direct = p.hasNode(dst.node)
		}
	default:
		direct = (src.edge == dst.edge && src.edge != None) ||
			g.sameEnabledPolygon(src.edge, dst.edge, src.node, dst.node) ||
			g.touching(src.node, dst.edge) ||
			g.touching(dst.node, src.edge)
	}
	if direct {
		g.insertEdge(src.node, dst.node, EdgeQuery)
		return true
	}
	return g.connectIfLegal(src.node, dst.node, 1, src.edge, dst.edge, EdgeQuery)
}

// bridge tries to reach both endpoints from the vertices of every other
// enabled polygon.
func (g *Graph) bridge(src, dst endpoint) {
	for i := range g.polys {
		if g.edgeCount >= MaxEdges {
			return
		}
		p := &g.polys[i]
		if !p.used || !p.enabled {
			continue
		}
		for _, v := range p.nodes {
			if i != src.polygon {
				g.connectIfLegal(v, src.node, 1, src.edge, None, EdgeQuery)
			}
			if i != dst.polygon {
				g.connectIfLegal(v, dst.node, 1, dst.edge, None, EdgeQuery)
			}
		}
	}
}

const unreachable = math.MaxInt32

type label struct {
	open bool
	ring int
	dist int
	pred int
}

// relax labels every node reachable from src over enabled connections.
// Nodes improved while processing ring k are reprocessed in ring k+1 until
// no label changes.
func (g *Graph) relax(src int) *[MaxNodes]label {
	var labels [MaxNodes]label
	for i := range labels {
		labels[i] = label{ring: -1, dist: unreachable, pred: None}
	}
	labels[src] = label{open: true, dist: 0, pred: None}
	open := 1

	for ring := 0; open > 0; ring++ {
		for i := range labels {
			l := &labels[i]
			if !l.open || l.ring != ring {
				continue
			}
			l.open = false
			open--
			n := &g.nodes[i]
			for c := range n.conns {
				conn := &n.conns[c]
				if !conn.used || !conn.enabled || conn.node == l.pred {
					continue
				}
				next := &labels[conn.node]
				if d := l.dist + conn.distance; d < next.dist {
					if !next.open {
						next.open = true
						open++
					}
					next.ring = ring + 1
					next.dist = d
					next.pred = i
				}
			}
		}
	}
	return &labels
}

// shortestPath returns the simplified waypoint list from src to dst, or nil
// when dst is unreachable.
func (g *Graph) shortestPath(src, dst int) []Waypoint {
	labels := g.relax(src)
	if labels[dst].pred == None {
		return nil
	}

	var chain []int
	for n := dst; n != None && len(chain) <= MaxNodes; n = labels[n].pred {
		chain = append(chain, n)
	}
	path := make([]Waypoint, 0, len(chain))
	for i := len(chain) - 1; i >= 0; i-- {
		n := chain[i]
		e := g.edgeBetween(n, labels[n].pred)
		if e != None && g.edges[e].kind != EdgeAuthored {
			e = None
		}
		nn := &g.nodes[n]
		path = append(path, Waypoint{X: nn.x, Y: nn.y, Scale: nn.scale, Node: n, Edge: e, Polygon: None})
	}
	return g.simplify(path)
}

// connected reports whether two nodes share an enabled connection.
func (g *Graph) connected(n1, n2 int) bool {
	if !g.validNode(n1) || n2 == None {
		return false
	}
	n := &g.nodes[n1]
	for i := range n.conns {
		if c := &n.conns[i]; c.used && c.enabled && c.node == n2 {
			return true
		}
	}
	return false
}

// simplify drops every waypoint whose neighbours are directly connected and
// fills in the directions.
func (g *Graph) simplify(path []Waypoint) []Waypoint {
	if len(path) == 0 {
		return path
	}
	for i := 0; i < len(path)-2; {
		if g.connected(path[i].Node, path[i+2].Node) {
			path = append(path[:i+1], path[i+2:]...)
			i = 0
			continue
		}
		path[i].Direction = Direction(path[i].X, path[i].Y, path[i+1].X, path[i+1].Y)
		i++
	}
	if len(path) == 2 && path[0].X == path[1].X && path[0].Y == path[1].Y {
		path = path[:1]
	}
	if n := len(path); n > 1 {
		path[n-2].Direction = Direction(path[n-2].X, path[n-2].Y, path[n-1].X, path[n-1].Y)
	}
	path[len(path)-1].Direction = -1
	return path
}

// detach rewrites the end waypoints that refer to the temporary node n.
func detach(path []Waypoint, n, e int) {
	if len(path) == 0 {
		return
	}
	for _, i := range [2]int{0, len(path) - 1} {
		if path[i].Node == n {
			path[i].Node = None
			path[i].Edge = e
		}
	}
}

// FindPath computes a walk from (sx, sy) to (dx, dy). Endpoints off the
// node set are spliced into the graph for the duration of the call and
// removed again before it returns, whatever the outcome. A source or
// destination on a node without connections succeeds with no waypoints.
func (g *Graph) FindPath(sx, sy, dx, dy int) ([]Waypoint, bool) {
	if g.edgeCount == 0 {
		return nil, false
	}
	defer g.discardQuery()

	path, ok := g.findPath(sx, sy, dx, dy)
	log.Debugf("path (%d,%d) -> (%d,%d): %d waypoints, ok=%v", sx, sy, dx, dy, len(path), ok)
	return path, ok
}

func (g *Graph) findPath(sx, sy, dx, dy int) ([]Waypoint, bool) {
	src := endpoint{node: g.NodeAt(sx, sy), edge: None, polygon: g.PolygonAt(sx, sy)}
	if src.node != None && g.nodes[src.node].connCount == 0 {
		return nil, true
	}
	if n := g.NodeAt(dx, dy); n != None && g.nodes[n].connCount == 0 {
		return nil, true
	}

	temporary := false
	if src.node == None {
		if src.polygon == None {
			anchors := g.closestPoints(nil, sx, sy, true)
			if len(anchors) == 0 {
				return nil, false
			}
			a := anchors[0]
			src.edge = a.edge
			if a.node == None {
				sx, sy = a.x, a.y
			} else {
				src.node = a.node
			}
		}
		if src.node == None {
			scale := 0
			switch {
			case src.edge != None:
				scale = g.EdgeScale(sy, src.edge)
			case src.polygon != None:
				scale = g.PolygonScale(sy, src.polygon)
			}
			if src.node = g.addTemporaryNode(sx, sy, scale); src.node == None {
				return nil, false
			}
			temporary = true
			if src.polygon != None {
				g.spliceIntoPolygon(src.node, src.polygon)
			} else {
				g.spliceOntoEdge(src.node, src.edge)
			}
		}
	}

	path, ok := g.route(src, dx, dy)
	if temporary {
		detach(path, src.node, src.edge)
	}
	return path, ok
}

// route searches from the resolved source to (dx, dy), trying each
// destination anchor in order of distance until one yields a path.
func (g *Graph) route(src endpoint, dx, dy int) ([]Waypoint, bool) {
	destPoly := g.PolygonAt(dx, dy)
	if destPoly != None && destPoly == src.polygon {
		return g.direct(src, dx, dy), true
	}

	var anchors []anchor
	if destPoly != None {
		if g.NodeAt(dx, dy) == None {
			anchors = append(anchors, anchor{x: dx, y: dy, node: None, edge: None})
		}
		if src.polygon != None && src.edge != None &&
			g.polys[destPoly].hasEdge(src.edge) && g.polys[src.polygon].hasEdge(src.edge) {
			src.edge = None
		}
	}
	anchors = g.closestPoints(anchors, dx, dy, false)

	for _, a := range anchors {
		dst := endpoint{node: a.node, edge: a.edge, polygon: None}
		if a.node == None && a.edge == None {
			dst.polygon = destPoly
		}

		temporary := false
		if dst.node == None {
			scale := 0
			switch {
			case dst.edge != None:
				scale = g.EdgeScale(a.y, dst.edge)
			case dst.polygon != None:
				scale = g.PolygonScale(a.y, dst.polygon)
			}
			if dst.node = g.addTemporaryNode(a.x, a.y, scale); dst.node == None {
				return nil, false
			}
			temporary = true
			if dst.polygon != None {
				g.spliceIntoPolygon(dst.node, dst.polygon)
			} else {
				g.spliceOntoEdge(dst.node, dst.edge)
			}
		}

		var path []Waypoint
		if src.node != dst.node {
			if !g.join(src, dst) {
				g.bridge(src, dst)
			}
			path = g.shortestPath(src.node, dst.node)
		} else {
			n := &g.nodes[dst.node]
			scale := n.scale
			if src.polygon != None {
				scale = g.PolygonScale(n.y, src.polygon)
			}
			path = []Waypoint{{X: n.x, Y: n.y, Scale: scale, Node: dst.node, Edge: src.edge, Polygon: src.polygon, Direction: -1}}
		}

		if temporary {
			g.removeNode(dst.node)
			detach(path, dst.node, dst.edge)
		}
		if len(path) > 0 {
			return path, true
		}
	}
	return nil, false
}

// direct answers a query whose ends share a polygon: a straight line with
// the scale taken from the polygon.
func (g *Graph) direct(src endpoint, dx, dy int) []Waypoint {
	n := &g.nodes[src.node]
	p := src.polygon
	path := []Waypoint{{
		X: n.x, Y: n.y, Scale: g.PolygonScale(n.y, p),
		Node: None, Edge: None, Polygon: p,
		Direction: Direction(n.x, n.y, dx, dy),
	}}
	if n.x != dx || n.y != dy {
		path = append(path, Waypoint{
			X: dx, Y: dy, Scale: g.PolygonScale(dy, p),
			Node: None, Edge: None, Polygon: p,
			Direction: -1,
		})
	}
	return path
}

// discardQuery removes every temporary node and query edge.
func (g *Graph) discardQuery() {
	for i := range g.nodes {
		if g.nodes[i].used && g.nodes[i].temporary {
			g.removeNode(i)
		}
	}
	g.removeEdgesOfKind(EdgeQuery)
}
