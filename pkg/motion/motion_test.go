package motion

import (
	"testing"

	"github.com/chazu/mummer/pkg/pathgraph"
)

type directionCall struct {
	octant     int
	walking    bool
	firstFrame bool
}

type mockSprite struct {
	calls []directionCall
}

func (s *mockSprite) SetDirection(a *Actor, octant int, walking, firstFrame bool) {
	s.calls = append(s.calls, directionCall{octant, walking, firstFrame})
}

func (s *mockSprite) Bounds(a *Actor) Rect {
	return Rect{a.X - 10, a.Y - 40, a.X + 10, a.Y}
}

func (s *mockSprite) last() directionCall {
	return s.calls[len(s.calls)-1]
}

func wp(x, y, scale, dir int) pathgraph.Waypoint {
	return pathgraph.Waypoint{X: x, Y: y, Scale: scale, Node: pathgraph.None, Edge: pathgraph.None, Polygon: pathgraph.None, Direction: dir}
}

// fixedPaths answers every query with the same waypoints, starting at the
// actor's position.
func fixedPaths(rest ...pathgraph.Waypoint) PathFinder {
	return PathFunc(func(sx, sy, dx, dy int) ([]pathgraph.Waypoint, bool) {
		path := []pathgraph.Waypoint{wp(sx, sy, 100, pathgraph.Direction(sx, sy, rest[0].X, rest[0].Y))}
		return append(path, rest...), true
	})
}

func TestScaleInterpolation(t *testing.T) {
	sprite := &mockSprite{}
	c := NewController(nil, sprite)
	a := NewActor("HERO", 0, 0, 50, 5<<SubpixelShift)
	c.StartWalk(a, []pathgraph.Waypoint{wp(0, 0, 50, 4), wp(0, 100, 100, -1)})

	for i := 0; i < 10; i++ {
		if !c.Advance(a) {
			t.Fatalf("walk ended early at frame %d", i)
		}
	}
	if a.Y != 50 || a.Scale != 75 {
		t.Errorf("at midpoint: y %d scale %d, want 50 and 75", a.Y, a.Scale)
	}

	frames := 10
	for c.Advance(a) {
		frames++
	}
	if a.X != 0 || a.Y != 100 || a.Scale != 100 || a.IsWalking() {
		t.Errorf("after walk: %+v", a)
	}
	if frames != 19 {
		t.Errorf("walk took %d moving frames, want 19", frames)
	}
	if got := sprite.last(); got.walking || !got.firstFrame || got.octant != 4 {
		t.Errorf("final sprite call %+v, want idle facing 4", got)
	}
}

func TestScaleFollowsLongerAxis(t *testing.T) {
	c := NewController(nil, nil)
	a := NewActor("HERO", 0, 0, 100, 10<<SubpixelShift)
	c.StartWalk(a, []pathgraph.Waypoint{wp(0, 0, 100, 2), wp(200, 1, 50, -1)})

	for a.X < 100 {
		if !c.Advance(a) {
			t.Fatalf("walk ended early at x=%d", a.X)
		}
	}
	want := 50 + (200-a.X)/4
	if a.Scale != want || a.Scale < 70 || a.Scale > 80 {
		t.Errorf("at x=%d y=%d: scale %d, want %d", a.X, a.Y, a.Scale, want)
	}
}

func TestSubpixelAccumulation(t *testing.T) {
	c := NewController(nil, nil)
	// a third of a pixel per frame
	a := NewActor("SLOW", 0, 0, 100, 85)
	c.StartWalk(a, []pathgraph.Waypoint{wp(0, 0, 100, 2), wp(10, 0, 100, -1)})
	c.Advance(a)
	c.Advance(a)
	if a.X != 0 {
		t.Fatalf("moved a whole pixel after 170 subpixels: x=%d", a.X)
	}
	c.Advance(a)
	if a.X != 0 || a.xsub != 255 {
		t.Errorf("x=%d sub=%d, want 0 and 255", a.X, a.xsub)
	}
	c.Advance(a)
	if a.X != 1 {
		t.Errorf("x=%d after 340 subpixels, want 1", a.X)
	}
}

func TestDirectionChangesOnlyWhenItChanges(t *testing.T) {
	sprite := &mockSprite{}
	c := NewController(nil, sprite)
	a := NewActor("HERO", 0, 0, 100, 10<<SubpixelShift)
	c.StartWalk(a, []pathgraph.Waypoint{
		wp(0, 0, 100, 2), wp(10, 0, 100, 2), wp(20, 0, 100, 4), wp(20, 10, 100, -1),
	})
	if len(sprite.calls) != 1 || sprite.calls[0] != (directionCall{2, true, true}) {
		t.Fatalf("start calls %+v", sprite.calls)
	}
	for c.Advance(a) {
	}
	want := []directionCall{{2, true, true}, {4, true, false}, {4, false, true}}
	if len(sprite.calls) != len(want) {
		t.Fatalf("sprite calls %+v, want %+v", sprite.calls, want)
	}
	for i := range want {
		if sprite.calls[i] != want[i] {
			t.Errorf("call %d = %+v, want %+v", i, sprite.calls[i], want[i])
		}
	}
	if a.Direction != 4 {
		t.Errorf("direction = %d, want 4", a.Direction)
	}
}

func TestShortPathStaysIdle(t *testing.T) {
	sprite := &mockSprite{}
	c := NewController(PathFunc(func(sx, sy, dx, dy int) ([]pathgraph.Waypoint, bool) {
		w := wp(sx, sy, 100, -1)
		w.Node = 3
		return []pathgraph.Waypoint{w}, true
	}), sprite)
	a := NewActor("HERO", 10, 10, 100, 256)
	if !c.WalkTo(a, 30, 10) {
		t.Fatal("WalkTo failed")
	}
	if a.IsWalking() {
		t.Error("one waypoint must not start a walk")
	}
	if a.Node != 3 {
		t.Errorf("node = %d, want 3", a.Node)
	}
	if got := sprite.last(); got != (directionCall{2, false, true}) {
		t.Errorf("actor should look towards the target, got %+v", got)
	}
}

func TestFailedQueryLooksAtTarget(t *testing.T) {
	sprite := &mockSprite{}
	c := NewController(PathFunc(func(int, int, int, int) ([]pathgraph.Waypoint, bool) { return nil, false }), sprite)
	a := NewActor("HERO", 10, 10, 100, 256)
	if c.WalkTo(a, 10, 0) {
		t.Error("WalkTo should report the failed query")
	}
	if a.IsWalking() || a.Direction != 0 {
		t.Errorf("walking %v direction %d", a.IsWalking(), a.Direction)
	}
}

func TestRedirectReversalStops(t *testing.T) {
	sprite := &mockSprite{}
	c := NewController(fixedPaths(wp(100, 0, 100, -1)), sprite)
	a := NewActor("HERO", 50, 0, 100, 256)
	c.WalkTo(a, 100, 0)
	c.Advance(a)

	c.SetPaths(fixedPaths(wp(0, 0, 100, -1)))
	c.Redirect(a, 0, 0)
	if a.IsWalking() {
		t.Fatal("a reversal should stop the actor")
	}
	if a.Direction != 6 || sprite.last() != (directionCall{6, false, true}) {
		t.Errorf("direction %d, last call %+v", a.Direction, sprite.last())
	}
}

func TestRedirectSameWayContinues(t *testing.T) {
	c := NewController(fixedPaths(wp(100, 0, 100, -1)), nil)
	a := NewActor("HERO", 50, 0, 100, 256)
	c.WalkTo(a, 100, 0)
	c.Advance(a)

	c.SetPaths(fixedPaths(wp(120, 20, 100, -1)))
	c.Redirect(a, 120, 20)
	if !a.IsWalking() {
		t.Fatal("a forward redirect should keep walking")
	}
	if x, y := a.Destination(); x != 120 || y != 20 {
		t.Errorf("destination (%d,%d)", x, y)
	}
}

func TestStopAndPut(t *testing.T) {
	sprite := &mockSprite{}
	c := NewController(fixedPaths(wp(100, 0, 100, -1)), sprite)
	a := NewActor("HERO", 0, 0, 100, 256)
	c.Add(a)
	c.WalkTo(a, 100, 0)

	c.Stop(a, 3)
	if a.IsWalking() || a.Direction != 3 {
		t.Errorf("after Stop: walking %v direction %d", a.IsWalking(), a.Direction)
	}

	c.Put(a, 40, 60)
	if a.X != 40 || a.Y != 60 || a.Node != pathgraph.None {
		t.Errorf("after Put: %+v", a)
	}
	if !c.Bounds(a).Contains(40, 50) {
		t.Error("bounds should follow the actor")
	}
	if arrived := c.AdvanceAll(); len(arrived) != 0 {
		t.Errorf("idle actors reported arrival: %v", arrived)
	}
}

func TestAdvanceAllReportsArrivals(t *testing.T) {
	c := NewController(fixedPaths(wp(3, 0, 100, -1)), nil)
	fast := NewActor("FAST", 0, 0, 100, 4<<SubpixelShift)
	slow := NewActor("SLOW", 0, 0, 100, 1<<SubpixelShift)
	c.Add(fast)
	c.Add(slow)
	c.WalkTo(fast, 3, 0)
	c.WalkTo(slow, 3, 0)

	arrived := c.AdvanceAll()
	if len(arrived) != 1 || arrived[0] != fast {
		t.Fatalf("first frame arrivals %v", arrived)
	}
	c.AdvanceAll()
	if arrived := c.AdvanceAll(); len(arrived) != 1 || arrived[0] != slow {
		t.Errorf("slow actor arrivals %v", arrived)
	}

	c.Remove("FAST")
	if _, ok := c.Actor("FAST"); ok || len(c.Actors()) != 1 {
		t.Error("Remove did not drop the actor")
	}
}

func TestStateRoundTripMidWalk(t *testing.T) {
	c := NewController(nil, nil)
	a := NewActor("HERO", 0, 0, 100, 85)
	c.StartWalk(a, []pathgraph.Waypoint{wp(0, 0, 100, 2), wp(10, 0, 100, 4), wp(10, 10, 100, -1)})
	c.Advance(a)

	b := RestoreActor(a.State())
	for i := 0; i < 200; i++ {
		ma, mb := c.Advance(a), c.Advance(b)
		if ma != mb || a.X != b.X || a.Y != b.Y || a.xsub != b.xsub {
			t.Fatalf("frame %d diverged: %+v vs %+v", i, a, b)
		}
		if !ma {
			break
		}
	}
	if a.IsWalking() {
		t.Error("walk did not finish")
	}
}
