package pathgraph

import "fmt"

// Build adds an inferred edge between every vertex pair of two distinct
// enabled polygons whose segment stays inside the walkable area. Searches
// on a built graph cut across polygons instead of following their edges.
func (g *Graph) Build() {
	if g.edgeCount == 0 {
		return
	}
	added := g.edgeCount
	for i := 0; i < MaxPolygons && g.edgeCount < MaxEdges; i++ {
		outer := &g.polys[i]
		if !outer.used || !outer.enabled {
			continue
		}
		for j := i + 1; j < MaxPolygons && g.edgeCount < MaxEdges; j++ {
			inner := &g.polys[j]
			if !inner.used || !inner.enabled {
				continue
			}
			for _, a := range outer.nodes {
				for _, b := range inner.nodes {
					g.connectIfLegal(a, b, 1, None, None, EdgeInferred)
				}
			}
		}
	}
	log.Debugf("built path graph: %d inferred edges", g.edgeCount-added)
}

// Clear removes everything Build and path queries added.
func (g *Graph) Clear() {
	g.discardQuery()
	g.removeEdgesOfKind(EdgeInferred)
}

// Toggle switches the graph between built and cleared mode. Switching to the
// current mode does nothing.
func (g *Graph) Toggle(build bool) {
	switch {
	case build && !g.built:
		g.Build()
		g.built = true
	case !build && g.built:
		g.Clear()
		g.built = false
	}
}

// Built reports whether the graph is in built mode.
func (g *Graph) Built() bool {
	return g.built
}

// SetEdgeEnabled opens or closes an authored edge. A built graph is
// rebuilt for the new set of walkable edges.
func (g *Graph) SetEdgeEnabled(i int, on bool) error {
	if i < 0 || i >= MaxEdges || !g.edges[i].used {
		return fmt.Errorf("edge %d: %w", i, ErrBadIndex)
	}
	e := &g.edges[i]
	if e.enabled == on {
		return nil
	}
	g.rebuild(func() {
		e.enabled = on
		g.setConnectionEnabled(e.n1, e.n2, on)
		g.setConnectionEnabled(e.n2, e.n1, on)
	})
	return nil
}

// SetPolygonEnabled opens or closes a polygon. Its edges only count the
// polygon while it is enabled.
func (g *Graph) SetPolygonEnabled(i int, on bool) error {
	if i < 0 || i >= MaxPolygons || !g.polys[i].used {
		return fmt.Errorf("polygon %d: %w", i, ErrBadIndex)
	}
	p := &g.polys[i]
	if p.enabled == on {
		return nil
	}
	g.rebuild(func() {
		g.setPolygonCounts(p, -1)
		p.enabled = on
		g.setPolygonCounts(p, 1)
	})
	return nil
}

func (g *Graph) rebuild(change func()) {
	if g.built {
		g.Clear()
	}
	change()
	if g.built {
		g.Build()
	}
}

func (g *Graph) setConnectionEnabled(from, to int, on bool) {
	n := &g.nodes[from]
	for i := range n.conns {
		if c := &n.conns[i]; c.used && c.node == to {
			c.enabled = on
			return
		}
	}
}
