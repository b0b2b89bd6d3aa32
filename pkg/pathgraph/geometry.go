package pathgraph

// Distance approximates the Euclidean distance with integer arithmetic:
// the longer axis plus half the shorter one.
func Distance(x1, y1, x2, y2 int) int {
	dx, dy := abs(x1-x2), abs(y1-y2)
	switch {
	case dx < dy:
		return dx/2 + dy
	case dx > dy:
		return dx + dy/2
	default:
		return dx * 3 / 2
	}
}

func (g *Graph) nodeDistance(n1, n2 int) int {
	a, b := &g.nodes[n1], &g.nodes[n2]
	return Distance(a.x, a.y, b.x, b.y)
}

// Direction returns the octant from (x1, y1) towards (x2, y2): 0 up,
// 2 right, 4 down, 6 left and the diagonals in between. Identical points
// give -1.
func Direction(x1, y1, x2, y2 int) int {
	if x1 == x2 {
		switch {
		case y2 > y1:
			return 4
		case y2 < y1:
			return 0
		default:
			return -1
		}
	}
	dx, dy := abs(x2-x1), abs(y2-y1)
	switch {
	case dx >= dy*6:
		if x2 >= x1 {
			return 2
		}
		return 6
	case dx < dy:
		if y2 >= y1 {
			return 4
		}
		return 0
	case y2 >= y1:
		if x2 >= x1 {
			return 3
		}
		return 5
	default:
		if x2 >= x1 {
			return 1
		}
		return 7
	}
}

// closestPointOnSegment bisects the segment n1-n2 towards the foot of the
// perpendicular from (x, y). Points beyond the segment converge on the
// nearer end. It returns the point and its distance to (x, y).
func (g *Graph) closestPointOnSegment(x, y, n1, n2 int) (int, int, int) {
	ax, ay := g.nodes[n1].x, g.nodes[n1].y
	bx, by := g.nodes[n2].x, g.nodes[n2].y
	ex, ey := bx, by

	var oddX, oddY bool
	var prev, last int
	var mx, my int
	for iter := 0; iter < 64; iter++ {
		mx, my = ax+ex, ay+ey
		// alternate the rounding of odd sums so the bisection cannot stall
		if mx&1 != 0 {
			if oddX {
				mx++
			}
			oddX = !oddX
		}
		if my&1 != 0 {
			if oddY {
				my++
			}
			oddY = !oddY
		}
		mx, my = mx/2, my/2

		d := (x-mx)*(bx-mx) + (y-my)*(by-my)
		if d == 0 || d == prev {
			break
		}
		prev, last = last, d
		if d > 0 {
			ax, ay = mx, my
		} else {
			ex, ey = mx, my
		}
	}
	return mx, my, Distance(mx, my, x, y)
}

// snapToLine moves (x, y) onto the line through (x1, y1) and (x3, y3),
// adjusting the coordinate of the minor axis. Axis-aligned lines and
// points on an end are left alone.
func snapToLine(x1, y1, x, y, x3, y3 int) (int, int) {
	dx, dy := x3-x1, y3-y1
	if dx == 0 || dy == 0 || (x1 == x && y1 == y) || (x3 == x && y3 == y) {
		return x, y
	}
	if abs(dx) >= abs(dy) {
		y = y1 + (x-x1)*dy/dx
	}
	if abs(dx) <= abs(dy) {
		x = x1 + (y-y1)*dx/dy
	}
	return x, y
}

// segmentsIntersect reports whether segment 1-2 touches segment 3-4.
// Parallel segments never intersect.
func segmentsIntersect(x1, y1, x2, y2, x3, y3, x4, y4 int) bool {
	den := (y3-y4)*(x1-x2) - (y1-y2)*(x3-x4)
	if den == 0 {
		return false
	}
	s := (x1-x3)*(y3-y4) - (y1-y3)*(x3-x4)
	t := -(y1-y3)*(x1-x2) + (x1-x3)*(y1-y2)
	if den < 0 {
		den, s, t = -den, -s, -t
	}
	return s >= 0 && t >= 0 && den >= s && den >= t
}

// PolygonAt returns the first enabled polygon that strictly contains
// (x, y), or None. Points on an edge or a vertex are outside.
func (g *Graph) PolygonAt(x, y int) int {
	for i := range g.polys {
		p := &g.polys[i]
		if !p.used || !p.enabled {
			continue
		}
		a, b, c := &g.nodes[p.nodes[0]], &g.nodes[p.nodes[1]], &g.nodes[p.nodes[2]]
		ax, ay := a.x-x, a.y-y
		bx, by := b.x-x, b.y-y
		cx, cy := c.x-x, c.y-y
		d1 := by*ax - bx*ay
		d2 := cy*bx - cx*by
		d3 := ay*cx - ax*cy
		if (d1 < 0 && d2 < 0 && d3 < 0) || (d1 > 0 && d2 > 0 && d3 > 0) {
			return i
		}
	}
	return None
}

// NodeAt returns the node exactly at (x, y), or None.
func (g *Graph) NodeAt(x, y int) int {
	for i := range g.nodes {
		if n := &g.nodes[i]; n.used && n.x == x && n.y == y {
			return i
		}
	}
	return None
}

// EdgeScale interpolates the node scales of edge e at height y.
func (g *Graph) EdgeScale(y, e int) int {
	a, b := &g.nodes[g.edges[e].n1], &g.nodes[g.edges[e].n2]
	switch {
	case a.scale == b.scale || a.y == b.y:
		return a.scale
	case a.y > b.y:
		return a.scale - (a.y-y)*(a.scale-b.scale)/(a.y-b.y)
	default:
		return b.scale - (b.y-y)*(b.scale-a.scale)/(b.y-a.y)
	}
}

// PolygonScale interpolates the scale of polygon p at height y between its
// topmost and bottommost vertex.
func (g *Graph) PolygonScale(y, p int) int {
	poly := &g.polys[p]
	y1, s1 := g.nodes[poly.nodes[0]].y, g.nodes[poly.nodes[0]].scale
	y2, s2 := g.nodes[poly.nodes[1]].y, g.nodes[poly.nodes[1]].scale
	y3, s3 := g.nodes[poly.nodes[2]].y, g.nodes[poly.nodes[2]].scale
	if s1 == s2 && s2 == s3 {
		return s1
	}
	if y1 > y2 {
		y1, y2, s1, s2 = y2, y1, s2, s1
	}
	if y1 > y3 {
		y1, y3, s1, s3 = y3, y1, s3, s1
	}
	if y3 < y2 {
		y3, s3 = y2, s2
	}
	if y3 == y1 {
		return s3
	}
	return s3 - (y3-y)*(s3-s1)/(y3-y1)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
