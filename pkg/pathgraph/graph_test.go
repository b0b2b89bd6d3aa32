package pathgraph

import (
	"errors"
	"math/rand"
	"testing"
)

type point struct{ x, y int }

// square builds two triangles over a 100x100 square split along the
// diagonal from (0,0) to (100,100). Scale grows from 50 at the top to 100
// at the bottom.
func square(t *testing.T) *Graph {
	t.Helper()
	g := New()
	nodes := []struct{ x, y, scale int }{{0, 0, 50}, {100, 0, 50}, {100, 100, 100}, {0, 100, 100}}
	for i, n := range nodes {
		if err := g.AddNode(i, n.x, n.y, n.scale); err != nil {
			t.Fatalf("AddNode(%d) failed: %v", i, err)
		}
	}
	for i, e := range [][2]int{{0, 1}, {1, 2}, {2, 3}, {3, 0}, {0, 2}} {
		if err := g.AddEdge(i, e[0], e[1], true); err != nil {
			t.Fatalf("AddEdge(%d) failed: %v", i, err)
		}
	}
	if !g.AddPolygon(0, 0, 1, 2, true) || !g.AddPolygon(1, 0, 2, 3, true) {
		t.Fatal("AddPolygon failed")
	}
	return g
}

// lShape builds three unit squares of 100 forming an L: A on top, B below
// it and C to the right of B.
func lShape(t *testing.T) *Graph {
	t.Helper()
	g := New()
	nodes := []point{{0, 0}, {100, 0}, {100, 100}, {0, 100}, {0, 200}, {100, 200}, {200, 100}, {200, 200}}
	for i, n := range nodes {
		if err := g.AddNode(i, n.x, n.y, 100); err != nil {
			t.Fatalf("AddNode(%d) failed: %v", i, err)
		}
	}
	edges := [][2]int{
		{0, 1}, {1, 2}, {2, 3}, {3, 0}, {0, 2},
		{3, 4}, {4, 5}, {5, 2}, {3, 5},
		{2, 6}, {6, 7}, {7, 5}, {2, 7},
	}
	for i, e := range edges {
		if err := g.AddEdge(i, e[0], e[1], true); err != nil {
			t.Fatalf("AddEdge(%d) failed: %v", i, err)
		}
	}
	polys := [][3]int{{0, 1, 2}, {0, 2, 3}, {3, 2, 5}, {3, 5, 4}, {2, 6, 7}, {2, 7, 5}}
	for i, p := range polys {
		if !g.AddPolygon(i, p[0], p[1], p[2], true) {
			t.Fatalf("AddPolygon(%d) failed", i)
		}
	}
	return g
}

func TestAuthoringErrors(t *testing.T) {
	g := New()
	if err := g.AddNode(MaxNodes, 0, 0, 100); !errors.Is(err, ErrBadIndex) {
		t.Errorf("Expected ErrBadIndex, got %v", err)
	}
	g.AddNode(0, 0, 0, 100)
	if err := g.AddEdge(0, 0, 1, true); !errors.Is(err, ErrMissingNode) {
		t.Errorf("Expected ErrMissingNode, got %v", err)
	}
	g.AddNode(1, 10, 0, 100)
	g.AddNode(2, 0, 10, 100)
	g.AddEdge(0, 0, 1, true)
	g.AddEdge(1, 1, 2, true)
	if g.AddPolygon(0, 0, 1, 2, true) {
		t.Error("AddPolygon should fail while edge 2-0 is missing")
	}
	g.AddEdge(2, 2, 0, true)
	if !g.AddPolygon(0, 0, 1, 2, true) {
		t.Error("AddPolygon failed with all edges present")
	}
	if e, _ := g.Edge(0); e.PolygonCount != 1 {
		t.Errorf("edge polygon count = %d, want 1", e.PolygonCount)
	}
}

func TestRedefiningNodeDropsItsEdges(t *testing.T) {
	g := square(t)
	g.AddNode(1, 150, 0, 50)
	if _, ok := g.Edge(0); ok {
		t.Error("edge 0 should be gone with its node")
	}
	if st := g.Stats(); st.Nodes != 4 || st.Edges != 3 || st.Polygons != 1 {
		t.Errorf("stats after redefinition: %+v", st)
	}
	if n, _ := g.Node(1); n.X != 150 || n.Connections != 0 {
		t.Errorf("node 1 = %+v", n)
	}
}

func TestDistance(t *testing.T) {
	tests := []struct {
		x1, y1, x2, y2 int
		want           int
	}{
		{0, 0, 10, 4, 12},
		{0, 0, 4, 10, 12},
		{0, 0, 10, 10, 15},
		{5, 5, 5, 5, 0},
		{10, 0, 0, 0, 10},
	}
	for _, tt := range tests {
		if got := Distance(tt.x1, tt.y1, tt.x2, tt.y2); got != tt.want {
			t.Errorf("Distance(%d,%d,%d,%d) = %d, want %d", tt.x1, tt.y1, tt.x2, tt.y2, got, tt.want)
		}
	}
}

func TestDirection(t *testing.T) {
	tests := []struct {
		x, y int
		want int
	}{
		{0, -10, 0},
		{10, -10, 1},
		{10, 0, 2},
		{60, 10, 2},
		{10, 10, 3},
		{0, 10, 4},
		{-10, 10, 5},
		{-10, 0, 6},
		{-10, -10, 7},
		{0, 0, -1},
	}
	for _, tt := range tests {
		if got := Direction(0, 0, tt.x, tt.y); got != tt.want {
			t.Errorf("Direction to (%d,%d) = %d, want %d", tt.x, tt.y, got, tt.want)
		}
	}
}

func TestTriangleContainment(t *testing.T) {
	g := New()
	for i, p := range []point{{0, 0}, {10, 0}, {0, 10}, {5, -10}} {
		g.AddNode(i, p.x, p.y, 100)
	}
	for i, e := range [][2]int{{0, 1}, {1, 2}, {2, 0}, {0, 3}, {3, 1}} {
		g.AddEdge(i, e[0], e[1], true)
	}
	g.AddPolygon(0, 0, 1, 2, true)
	g.AddPolygon(1, 0, 3, 1, true)

	if got := g.PolygonAt(1, 1); got != 0 {
		t.Errorf("PolygonAt(1,1) = %d, want 0", got)
	}
	if got := g.PolygonAt(9, 9); got != None {
		t.Errorf("PolygonAt(9,9) = %d, want None", got)
	}
	if got := g.PolygonAt(5, -3); got != 1 {
		t.Errorf("PolygonAt(5,-3) = %d, want 1", got)
	}
	if got := g.PolygonAt(5, 0); got != None {
		t.Errorf("shared edge point resolved to polygon %d", got)
	}
	if got := g.PolygonAt(0, 0); got != None {
		t.Errorf("vertex resolved to polygon %d", got)
	}

	g.SetPolygonEnabled(0, false)
	if got := g.PolygonAt(1, 1); got != None {
		t.Errorf("disabled polygon still found: %d", got)
	}
}

func TestDisabledPolygonDoesNotHideEnabledFloor(t *testing.T) {
	g := New()
	for i, p := range []point{{0, 0}, {100, 0}, {0, 100}} {
		g.AddNode(i, p.x, p.y, 100)
	}
	for i, e := range [][2]int{{0, 1}, {1, 2}, {2, 0}} {
		g.AddEdge(i, e[0], e[1], true)
	}
	if !g.AddPolygon(0, 0, 1, 2, false) || !g.AddPolygon(1, 0, 1, 2, true) {
		t.Fatal("AddPolygon failed")
	}

	if got := g.PolygonAt(10, 10); got != 1 {
		t.Fatalf("PolygonAt(10,10) = %d, want 1", got)
	}
	path, ok := g.FindPath(10, 10, 20, 20)
	if !ok || len(path) != 2 {
		t.Fatalf("FindPath = %v, %v", path, ok)
	}
	for i, p := range []point{{10, 10}, {20, 20}} {
		if path[i].X != p.x || path[i].Y != p.y || path[i].Polygon != 1 {
			t.Errorf("waypoint %d = %+v, want (%d,%d) in polygon 1", i, path[i], p.x, p.y)
		}
	}
}

func TestScales(t *testing.T) {
	g := square(t)
	if got := g.PolygonScale(20, 0); got != 60 {
		t.Errorf("PolygonScale(20, 0) = %d, want 60", got)
	}
	if got := g.PolygonScale(60, 1); got != 80 {
		t.Errorf("PolygonScale(60, 1) = %d, want 80", got)
	}
	if got := g.EdgeScale(50, 3); got != 75 {
		t.Errorf("EdgeScale(50, 3) = %d, want 75", got)
	}
	if got := g.EdgeScale(70, 0); got != 50 {
		t.Errorf("flat edge scale = %d, want 50", got)
	}
}

func TestFindPathEmptyGraph(t *testing.T) {
	if _, ok := New().FindPath(0, 0, 10, 10); ok {
		t.Error("Expected failure on a graph without edges")
	}
}

func TestFindPathSamePolygon(t *testing.T) {
	g := square(t)
	path, ok := g.FindPath(60, 20, 80, 30)
	if !ok || len(path) != 2 {
		t.Fatalf("FindPath = %v, %v", path, ok)
	}
	want := []Waypoint{
		{X: 60, Y: 20, Scale: 60, Node: None, Edge: None, Polygon: 0, Direction: 3},
		{X: 80, Y: 30, Scale: 65, Node: None, Edge: None, Polygon: 0, Direction: -1},
	}
	for i := range want {
		if path[i] != want[i] {
			t.Errorf("waypoint %d = %+v, want %+v", i, path[i], want[i])
		}
	}
}

func TestFindPathToSelf(t *testing.T) {
	g := square(t)
	for _, p := range []point{{60, 20}, {0, 0}, {50, 0}, {50, 50}} {
		path, ok := g.FindPath(p.x, p.y, p.x, p.y)
		if !ok || len(path) > 1 {
			t.Errorf("FindPath(%v, %v) = %v, %v", p, p, path, ok)
			continue
		}
		if len(path) == 1 && (path[0].X != p.x || path[0].Y != p.y || path[0].Direction != -1) {
			t.Errorf("FindPath(%v, %v) waypoint %+v", p, p, path[0])
		}
	}
}

func TestFindPathAcrossSharedEdge(t *testing.T) {
	g := square(t)
	path, ok := g.FindPath(60, 20, 20, 60)
	if !ok || len(path) != 2 {
		t.Fatalf("FindPath = %v, %v", path, ok)
	}
	if path[0].Direction != 5 || path[1].Direction != -1 {
		t.Errorf("directions %d, %d", path[0].Direction, path[1].Direction)
	}
	if path[0].Node != None || path[1].Node != None {
		t.Error("temporary nodes leaked into the result")
	}
	if path[0].Scale != 60 || path[1].Scale != 80 {
		t.Errorf("scales %d, %d", path[0].Scale, path[1].Scale)
	}
}

func TestFindPathSnapsOffMeshSource(t *testing.T) {
	g := square(t)
	path, ok := g.FindPath(-10, 50, 90, 50)
	if !ok || len(path) != 2 {
		t.Fatalf("FindPath = %v, %v", path, ok)
	}
	if path[0].X != 0 || path[0].Y != 50 || path[0].Edge != 3 || path[0].Node != None {
		t.Errorf("source waypoint = %+v, want (0,50) on edge 3", path[0])
	}
	if path[1].X != 90 || path[1].Y != 50 {
		t.Errorf("destination waypoint = %+v", path[1])
	}
}

func TestFindPathAroundCorner(t *testing.T) {
	g := lShape(t)
	path, ok := g.FindPath(90, 10, 190, 150)
	if !ok {
		t.Fatal("Expected a path around the corner")
	}
	want := []point{{90, 10}, {100, 100}, {190, 150}}
	if len(path) != len(want) {
		t.Fatalf("Expected %d waypoints, got %+v", len(want), path)
	}
	for i, w := range want {
		if path[i].X != w.x || path[i].Y != w.y {
			t.Errorf("waypoint %d = (%d,%d), want %v", i, path[i].X, path[i].Y, w)
		}
	}
	if path[1].Node != 2 {
		t.Errorf("corner waypoint node = %d, want 2", path[1].Node)
	}
	if path[0].Direction != 4 || path[1].Direction != 3 || path[2].Direction != -1 {
		t.Errorf("directions %d %d %d", path[0].Direction, path[1].Direction, path[2].Direction)
	}
}

func TestFindPathIsolatedNode(t *testing.T) {
	g := square(t)
	g.AddNode(10, 500, 500, 100)
	if path, ok := g.FindPath(500, 500, 60, 20); !ok || len(path) != 0 {
		t.Errorf("from isolated node: %v, %v", path, ok)
	}
	if path, ok := g.FindPath(60, 20, 500, 500); !ok || len(path) != 0 {
		t.Errorf("to isolated node: %v, %v", path, ok)
	}
}

func TestBuildAndClear(t *testing.T) {
	g := square(t)
	g.Build()
	st := g.Stats()
	if st.InferredEdges != 1 {
		t.Fatalf("Expected 1 inferred edge, got %+v", st)
	}
	if g.edgeBetween(1, 3) == None {
		t.Error("Build did not join 1 and 3")
	}
	g.Clear()
	if st := g.Stats(); st.InferredEdges != 0 || st.Edges != 5 {
		t.Errorf("stats after Clear: %+v", st)
	}
}

func TestToggle(t *testing.T) {
	g := square(t)
	g.Toggle(true)
	g.Toggle(true)
	if !g.Built() || g.Stats().InferredEdges != 1 {
		t.Fatalf("after Toggle(true): %+v", g.Stats())
	}
	g.Toggle(false)
	if g.Built() || g.Stats().InferredEdges != 0 {
		t.Errorf("after Toggle(false): %+v", g.Stats())
	}
}

func TestSetPolygonEnabledRebuilds(t *testing.T) {
	g := square(t)
	g.Toggle(true)
	if err := g.SetPolygonEnabled(1, false); err != nil {
		t.Fatal(err)
	}
	if e, _ := g.Edge(4); e.PolygonCount != 1 {
		t.Errorf("diagonal polygon count = %d, want 1", e.PolygonCount)
	}
	if n := g.Stats().InferredEdges; n != 0 {
		t.Errorf("Expected no inferred edges with one polygon, got %d", n)
	}
	g.SetPolygonEnabled(1, true)
	if n := g.Stats().InferredEdges; n != 1 {
		t.Errorf("Expected the diagonal back after re-enabling, got %d", n)
	}
	if err := g.SetPolygonEnabled(9, true); !errors.Is(err, ErrBadIndex) {
		t.Errorf("Expected ErrBadIndex, got %v", err)
	}
}

func TestSetEdgeEnabled(t *testing.T) {
	g := square(t)
	if err := g.SetEdgeEnabled(0, false); err != nil {
		t.Fatal(err)
	}
	if e, _ := g.Edge(0); e.Enabled {
		t.Error("edge 0 still enabled")
	}
	if g.connected(0, 1) || g.connected(1, 0) {
		t.Error("connections of a disabled edge must be disabled")
	}
	g.SetEdgeEnabled(0, true)
	if !g.connected(0, 1) {
		t.Error("re-enabled edge not connected")
	}
	if err := g.SetEdgeEnabled(300, true); !errors.Is(err, ErrBadIndex) {
		t.Errorf("Expected ErrBadIndex, got %v", err)
	}
}

func TestFindPathLeavesNoTemporaries(t *testing.T) {
	g := lShape(t)
	rng := rand.New(rand.NewSource(7))
	for _, built := range []bool{false, true} {
		g.Toggle(built)
		before := g.Stats()
		for i := 0; i < 1000; i++ {
			sx, sy := rng.Intn(300)-50, rng.Intn(300)-50
			dx, dy := rng.Intn(300)-50, rng.Intn(300)-50
			path, ok := g.FindPath(sx, sy, dx, dy)
			if after := g.Stats(); after != before {
				t.Fatalf("query %d (%d,%d)->(%d,%d) changed the graph: %+v -> %+v", i, sx, sy, dx, dy, before, after)
			}
			if ok && len(path) > 0 && path[len(path)-1].Direction != -1 {
				t.Fatalf("query %d: last waypoint has direction %d", i, path[len(path)-1].Direction)
			}
		}
	}
}
