package motion

import "github.com/chazu/mummer/pkg/pathgraph"

// ActorState is the saved form of an actor, walk included.
type ActorState struct {
	Name      string
	X, Y      int
	Scale     int
	Direction int
	Speed     int
	Node      int
	Edge      int
	Polygon   int
	XSub      int
	YSub      int
	DestX     int
	DestY     int
	Path      []pathgraph.Waypoint
	Index     int
}

// State captures the actor.
func (a *Actor) State() ActorState {
	return ActorState{
		Name: a.Name, X: a.X, Y: a.Y, Scale: a.Scale, Direction: a.Direction, Speed: a.Speed,
		Node: a.Node, Edge: a.Edge, Polygon: a.Polygon,
		XSub: a.xsub, YSub: a.ysub, DestX: a.destX, DestY: a.destY,
		Path:  append([]pathgraph.Waypoint(nil), a.path...),
		Index: a.index,
	}
}

// RestoreActor rebuilds an actor from its saved state. A walk whose index
// does not fit its path is dropped.
func RestoreActor(st ActorState) *Actor {
	a := &Actor{
		Name: st.Name, X: st.X, Y: st.Y, Scale: st.Scale, Direction: st.Direction, Speed: st.Speed,
		Node: st.Node, Edge: st.Edge, Polygon: st.Polygon,
		xsub: st.XSub & subpixelMask, ysub: st.YSub & subpixelMask,
		destX: st.DestX, destY: st.DestY,
	}
	if st.Index > 0 && st.Index < len(st.Path) {
		a.path = append([]pathgraph.Waypoint(nil), st.Path...)
		a.index = st.Index
	}
	return a
}
