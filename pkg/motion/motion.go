// Package motion walks actors along path graph waypoints, one frame at a
// time.
//
// Positions carry an 8-bit fractional part so that slow or diagonal walks
// keep their exact heading. A walking actor always moves from the previous
// waypoint towards the current one; its scale is interpolated between the
// two so it shrinks and grows with the perspective of the room.
package motion

import (
	"math"

	"github.com/tliron/commonlog"

	"github.com/chazu/mummer/pkg/pathgraph"
)

var log = commonlog.GetLogger("mummer.motion")

// SubpixelShift is the number of fractional bits in actor positions.
const SubpixelShift = 8

const subpixelMask = 1<<SubpixelShift - 1

// PathFinder answers walk queries. *pathgraph.Graph implements it.
type PathFinder interface {
	FindPath(sx, sy, dx, dy int) ([]pathgraph.Waypoint, bool)
}

// PathFunc adapts an ordinary function to PathFinder.
type PathFunc func(sx, sy, dx, dy int) ([]pathgraph.Waypoint, bool)

func (f PathFunc) FindPath(sx, sy, dx, dy int) ([]pathgraph.Waypoint, bool) {
	return f(sx, sy, dx, dy)
}

// Sprite is the renderer's view of an actor. The controller only tells it
// where the actor faces and whether it walks.
type Sprite interface {
	// SetDirection selects the idle or walking animation for an octant.
	// firstFrame restarts the animation.
	SetDirection(a *Actor, octant int, walking, firstFrame bool)
	// Bounds returns the screen rectangle the actor currently covers.
	Bounds(a *Actor) Rect
}

// Rect is a screen rectangle, X2 and Y2 exclusive.
type Rect struct {
	X1, Y1, X2, Y2 int
}

// Contains reports whether the point lies inside r.
func (r Rect) Contains(x, y int) bool {
	return x >= r.X1 && x < r.X2 && y >= r.Y1 && y < r.Y2
}

type nopSprite struct{}

func (nopSprite) SetDirection(*Actor, int, bool, bool) {}

func (nopSprite) Bounds(a *Actor) Rect { return Rect{a.X, a.Y, a.X + 1, a.Y + 1} }

// Actor is a character on screen.
type Actor struct {
	Name      string
	X, Y      int
	Scale     int
	Direction int
	// Speed is the walking speed in subpixels per frame.
	Speed int

	// Where the actor stands in the path graph, None when unknown.
	Node, Edge, Polygon int

	xsub, ysub   int
	path         []pathgraph.Waypoint
	index        int
	destX, destY int
}

// NewActor places an idle actor facing down.
func NewActor(name string, x, y, scale, speed int) *Actor {
	return &Actor{
		Name: name, X: x, Y: y, Scale: scale, Direction: 4, Speed: speed,
		Node: pathgraph.None, Edge: pathgraph.None, Polygon: pathgraph.None,
		destX: x, destY: y,
	}
}

// IsWalking reports whether the actor follows a path.
func (a *Actor) IsWalking() bool {
	return a.index > 0
}

// Destination returns the point of the last walk request.
func (a *Actor) Destination() (int, int) {
	return a.destX, a.destY
}

// Remaining returns the waypoints still ahead, the current target first.
func (a *Actor) Remaining() []pathgraph.Waypoint {
	if !a.IsWalking() {
		return nil
	}
	return append([]pathgraph.Waypoint(nil), a.path[a.index:]...)
}

// heading returns the delta of the segment being walked.
func (a *Actor) heading() (int, int) {
	prev, next := a.path[a.index-1], a.path[a.index]
	return next.X - prev.X, next.Y - prev.Y
}

func (a *Actor) idle() {
	a.path = nil
	a.index = 0
	a.xsub, a.ysub = 0, 0
}

// Controller moves a set of actors.
type Controller struct {
	paths  PathFinder
	sprite Sprite
	actors []*Actor
}

// NewController returns a controller querying paths for walk requests.
// A nil sprite discards direction changes.
func NewController(paths PathFinder, sprite Sprite) *Controller {
	if sprite == nil {
		sprite = nopSprite{}
	}
	return &Controller{paths: paths, sprite: sprite}
}

// SetPaths replaces the walkable area, usually on a room change.
func (c *Controller) SetPaths(paths PathFinder) {
	c.paths = paths
}

// Add registers an actor. Actors advance in the order they were added.
func (c *Controller) Add(a *Actor) {
	c.actors = append(c.actors, a)
}

// Remove drops the named actor.
func (c *Controller) Remove(name string) {
	for i, a := range c.actors {
		if a.Name == name {
			c.actors = append(c.actors[:i], c.actors[i+1:]...)
			return
		}
	}
}

// Actor returns the named actor.
func (c *Controller) Actor(name string) (*Actor, bool) {
	for _, a := range c.actors {
		if a.Name == name {
			return a, true
		}
	}
	return nil, false
}

// Actors returns every registered actor.
func (c *Controller) Actors() []*Actor {
	return c.actors
}

// Bounds returns the rectangle the actor covers on screen.
func (c *Controller) Bounds(a *Actor) Rect {
	return c.sprite.Bounds(a)
}

// StartWalk makes the actor follow path. With fewer than two waypoints the
// actor stays idle and looks towards its destination.
func (c *Controller) StartWalk(a *Actor, path []pathgraph.Waypoint) {
	wasWalking := a.IsWalking()
	current := -1
	if wasWalking {
		current = a.path[a.index-1].Direction
	}
	a.xsub, a.ysub = 0, 0

	if len(path) < 2 {
		a.Node, a.Edge, a.Polygon = pathgraph.None, pathgraph.None, pathgraph.None
		if len(path) == 1 {
			a.Node, a.Edge, a.Polygon = path[0].Node, path[0].Edge, path[0].Polygon
		}
		a.idle()
		if a.X != a.destX || a.Y != a.destY {
			c.look(a)
		}
		return
	}

	a.path = append(a.path[:0:0], path...)
	a.index = 1
	a.Scale = path[0].Scale
	a.Node, a.Edge, a.Polygon = path[0].Node, path[0].Edge, path[0].Polygon
	if d := path[0].Direction; d != current && d != -1 {
		a.Direction = d
		c.sprite.SetDirection(a, d, true, !wasWalking)
	}
	log.Debugf("%s walks %d waypoints to (%d,%d)", a.Name, len(path), a.destX, a.destY)
}

// WalkTo queries a path from the actor's position to (x, y) and starts it.
// It reports whether the query succeeded.
func (c *Controller) WalkTo(a *Actor, x, y int) bool {
	a.destX, a.destY = x, y
	var path []pathgraph.Waypoint
	ok := false
	if c.paths != nil {
		path, ok = c.paths.FindPath(a.X, a.Y, x, y)
	}
	if !ok {
		log.Debugf("%s: no path to (%d,%d)", a.Name, x, y)
		path = nil
	}
	c.StartWalk(a, path)
	return ok
}

// Redirect is WalkTo for interactive requests. When the new path starts
// against the direction the actor was walking, the actor stops and turns
// towards the target instead of reversing in place.
func (c *Controller) Redirect(a *Actor, x, y int) bool {
	if !a.IsWalking() {
		return c.WalkTo(a, x, y)
	}
	ox, oy := a.heading()
	ok := c.WalkTo(a, x, y)
	if a.IsWalking() {
		nx, ny := a.path[1].X-a.path[0].X, a.path[1].Y-a.path[0].Y
		if ox*nx+oy*ny < 0 {
			a.idle()
			c.look(a)
		}
	}
	return ok
}

// Advance moves a walking actor one frame. It returns false once the actor
// is idle, including the frame on which it reaches its last waypoint.
func (c *Controller) Advance(a *Actor) bool {
	if !a.IsWalking() {
		return false
	}
	prev, next := a.path[a.index-1], a.path[a.index]

	fx := a.X<<SubpixelShift + a.xsub
	fy := a.Y<<SubpixelShift + a.ysub
	rx := next.X<<SubpixelShift - fx
	ry := next.Y<<SubpixelShift - fy
	if d := int(math.Hypot(float64(rx), float64(ry))); d > a.step() {
		fx += rx * a.step() / d
		fy += ry * a.step() / d
		a.X, a.xsub = fx>>SubpixelShift, fx&subpixelMask
		a.Y, a.ysub = fy>>SubpixelShift, fy&subpixelMask
		a.Scale = interpolateScale(prev, next, a.X, a.Y)
		return true
	}

	a.X, a.Y = next.X, next.Y
	a.xsub, a.ysub = 0, 0
	a.Scale = next.Scale
	a.Node, a.Edge, a.Polygon = next.Node, next.Edge, next.Polygon
	if a.index+1 < len(a.path) {
		if next.Direction != -1 && next.Direction != prev.Direction {
			a.Direction = next.Direction
			c.sprite.SetDirection(a, next.Direction, true, false)
		}
		a.index++
		return true
	}

	a.idle()
	c.sprite.SetDirection(a, a.Direction, false, true)
	log.Debugf("%s arrived at (%d,%d)", a.Name, a.X, a.Y)
	return false
}

// AdvanceAll moves every walking actor one frame and returns the ones that
// arrived.
func (c *Controller) AdvanceAll() []*Actor {
	var arrived []*Actor
	for _, a := range c.actors {
		if a.IsWalking() && !c.Advance(a) {
			arrived = append(arrived, a)
		}
	}
	return arrived
}

// Stop ends a walk. The actor faces dir, or its destination when dir is -1.
func (c *Controller) Stop(a *Actor, dir int) {
	a.idle()
	if dir >= 0 && dir < 8 {
		a.Direction = dir
		c.sprite.SetDirection(a, dir, false, true)
		return
	}
	a.Node, a.Edge, a.Polygon = pathgraph.None, pathgraph.None, pathgraph.None
	c.look(a)
}

// Put moves an actor without walking.
func (c *Controller) Put(a *Actor, x, y int) {
	a.idle()
	a.X, a.Y = x, y
	a.destX, a.destY = x, y
	a.Node, a.Edge, a.Polygon = pathgraph.None, pathgraph.None, pathgraph.None
	c.sprite.SetDirection(a, a.Direction, false, false)
}

// look turns an idle actor towards its destination, keeping the current
// facing when it already stands there.
func (c *Controller) look(a *Actor) {
	if d := pathgraph.Direction(a.X, a.Y, a.destX, a.destY); d != -1 {
		a.Direction = d
	}
	c.sprite.SetDirection(a, a.Direction, false, true)
}

func (a *Actor) step() int {
	if a.Speed < 1 {
		return 1
	}
	return a.Speed
}

// interpolateScale blends the scales of two waypoints by the position
// between them, along the axis the segment covers most.
func interpolateScale(prev, next pathgraph.Waypoint, x, y int) int {
	dx, dy := next.X-prev.X, next.Y-prev.Y
	switch {
	case prev.Scale == next.Scale:
		return next.Scale
	case dx != 0 && abs(dx) >= abs(dy):
		return next.Scale - (next.X-x)*(next.Scale-prev.Scale)/dx
	case dy != 0:
		return next.Scale - (next.Y-y)*(next.Scale-prev.Scale)/dy
	default:
		return next.Scale
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
