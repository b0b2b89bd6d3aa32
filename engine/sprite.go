package engine

import "github.com/chazu/mummer/pkg/motion"

// Base size of an actor at scale 100.
const (
	actorWidth  = 40
	actorHeight = 100
)

// pose is the animation an actor currently shows.
type pose struct {
	Octant  int
	Walking bool
	Frame   int
}

// sprites tracks actor animations for a headless world. It implements
// motion.Sprite.
type sprites struct {
	poses map[string]*pose
}

func newSprites() *sprites {
	return &sprites{poses: make(map[string]*pose)}
}

func (s *sprites) get(name string) *pose {
	p, ok := s.poses[name]
	if !ok {
		p = &pose{Octant: 4}
		s.poses[name] = p
	}
	return p
}

func (s *sprites) SetDirection(a *motion.Actor, octant int, walking, firstFrame bool) {
	p := s.get(a.Name)
	p.Octant = octant
	p.Walking = walking
	if firstFrame {
		p.Frame = 0
	}
}

// Bounds scales the base size and anchors it at the actor's feet.
func (s *sprites) Bounds(a *motion.Actor) motion.Rect {
	w := actorWidth * a.Scale / 100
	h := actorHeight * a.Scale / 100
	return motion.Rect{X1: a.X - w/2, Y1: a.Y - h, X2: a.X + w/2 + 1, Y2: a.Y + 1}
}

// step advances the walking animations by one frame.
func (s *sprites) step() {
	for _, p := range s.poses {
		if p.Walking {
			p.Frame++
		}
	}
}
