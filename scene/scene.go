// Package scene loads the YAML description of a game world: rooms with
// their walkable area, named points and objects, the characters and other
// actors, sounds, texts and a scripted input track for headless runs.
package scene

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/chazu/mummer/pkg/pathgraph"
)

// Version is the only scene format version understood.
const Version = 1

var (
	ErrUnknownRoom = errors.New("unknown room")
	ErrBadPolygon  = errors.New("polygon needs three nodes joined by edges")
)

// Scene is a parsed scene.yaml.
type Scene struct {
	Version   int    `yaml:"version"`
	StartRoom string `yaml:"start_room"`
	// Characters are the playable actors, in character order. They follow
	// the player from room to room.
	Characters []Actor       `yaml:"characters"`
	Rooms      []Room        `yaml:"rooms"`
	Sounds     []Sound       `yaml:"sounds"`
	Music      []Sound       `yaml:"music"`
	Texts      []Text        `yaml:"texts"`
	Input      []InputEvent  `yaml:"input"`
	Items      []string      `yaml:"items"`
	Dialog     DialogOptions `yaml:"dialog"`
}

// Room is one location.
type Room struct {
	Name    string   `yaml:"name"`
	Path    Path     `yaml:"path"`
	Points  []Point  `yaml:"points"`
	Objects []Object `yaml:"objects"`
	// Actors are the non-playable actors of the room, placed anew on
	// every entry.
	Actors []Actor `yaml:"actors"`
}

// Path is the authored walkable area of a room.
type Path struct {
	Nodes    []Node    `yaml:"nodes"`
	Edges    []Edge    `yaml:"edges"`
	Polygons []Polygon `yaml:"polygons"`
	// Built starts the room with inferred diagonals.
	Built bool `yaml:"built"`
}

type Node struct {
	ID    int `yaml:"id"`
	X     int `yaml:"x"`
	Y     int `yaml:"y"`
	Scale int `yaml:"scale"`
}

type Edge struct {
	ID       int  `yaml:"id"`
	From     int  `yaml:"from"`
	To       int  `yaml:"to"`
	Disabled bool `yaml:"disabled"`
}

type Polygon struct {
	ID       int   `yaml:"id"`
	Nodes    []int `yaml:"nodes"`
	Disabled bool  `yaml:"disabled"`
}

// Point is a named walk target. An empty owner makes it visible to every
// character.
type Point struct {
	Name  string `yaml:"name"`
	Owner string `yaml:"owner"`
	X     int    `yaml:"x"`
	Y     int    `yaml:"y"`
}

// Object is a toggleable, optionally animated room object.
type Object struct {
	Name  string `yaml:"name"`
	Owner string `yaml:"owner"`
	On    bool   `yaml:"on"`
	// Frames is the animation length in ticks; zero means not animatable.
	Frames int `yaml:"frames"`
}

// Actor is a character on screen.
type Actor struct {
	Name  string `yaml:"name"`
	X     int    `yaml:"x"`
	Y     int    `yaml:"y"`
	Scale int    `yaml:"scale"`
	// Speed overrides the configured walk speed, in pixels per frame.
	Speed int `yaml:"speed"`
}

// Sound is a sound effect or music track. File is a WAV file relative to
// the scene; without one the sound is MS milliseconds of silence.
type Sound struct {
	Name string `yaml:"name"`
	ID   int32  `yaml:"id"`
	File string `yaml:"file"`
	MS   int    `yaml:"ms"`
}

// Text is a dialog line.
type Text struct {
	ID   int32  `yaml:"id"`
	Text string `yaml:"text"`
	// MS overrides the reading time derived from the text length.
	MS int `yaml:"ms"`
}

// DialogOptions tunes reading times of texts.
type DialogOptions struct {
	BaseMS    int `yaml:"base_ms"`
	PerCharMS int `yaml:"per_char_ms"`
}

// InputEvent is a player action injected at a tick. Kind is "press" (a
// mouse press without a target), "click" (press and walk the active
// character to X, Y) or "choose" (pick dialog line Choice, 0-based).
type InputEvent struct {
	Tick   uint64 `yaml:"tick"`
	Kind   string `yaml:"kind"`
	X      int    `yaml:"x"`
	Y      int    `yaml:"y"`
	Choice int    `yaml:"choice"`
}

// Load reads and validates a scene file.
func Load(path string) (*Scene, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	s, err := Parse(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Parse decodes and validates a scene document.
func Parse(data []byte) (*Scene, error) {
	var s Scene
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	if s.Version != Version {
		return nil, fmt.Errorf("unsupported scene.yaml version: %d", s.Version)
	}
	s.applyDefaults()
	if err := s.validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Scene) applyDefaults() {
	sort.SliceStable(s.Input, func(i, j int) bool { return s.Input[i].Tick < s.Input[j].Tick })
	if s.StartRoom == "" && len(s.Rooms) > 0 {
		s.StartRoom = s.Rooms[0].Name
	}
	if s.Dialog.BaseMS <= 0 {
		s.Dialog.BaseMS = 1000
	}
	if s.Dialog.PerCharMS <= 0 {
		s.Dialog.PerCharMS = 50
	}
	for i := range s.Characters {
		if s.Characters[i].Scale == 0 {
			s.Characters[i].Scale = 100
		}
	}
	for r := range s.Rooms {
		for i := range s.Rooms[r].Actors {
			if s.Rooms[r].Actors[i].Scale == 0 {
				s.Rooms[r].Actors[i].Scale = 100
			}
		}
	}
}

func (s *Scene) validate() error {
	seen := make(map[string]bool, len(s.Rooms))
	for _, r := range s.Rooms {
		if r.Name == "" {
			return errors.New("room without a name")
		}
		if seen[r.Name] {
			return fmt.Errorf("room %s defined twice", r.Name)
		}
		seen[r.Name] = true
		if _, err := r.Graph(); err != nil {
			return fmt.Errorf("room %s: %w", r.Name, err)
		}
	}
	if s.StartRoom != "" && !seen[s.StartRoom] {
		return fmt.Errorf("start room %s: %w", s.StartRoom, ErrUnknownRoom)
	}
	for _, ev := range s.Input {
		switch ev.Kind {
		case "press", "click", "choose":
		default:
			return fmt.Errorf("input at tick %d: unknown kind %q", ev.Tick, ev.Kind)
		}
	}
	return nil
}

// Room returns the named room.
func (s *Scene) Room(name string) (*Room, bool) {
	for i := range s.Rooms {
		if s.Rooms[i].Name == name {
			return &s.Rooms[i], true
		}
	}
	return nil, false
}

// Text returns a dialog line.
func (s *Scene) Text(id int32) (Text, bool) {
	for _, t := range s.Texts {
		if t.ID == id {
			return t, true
		}
	}
	return Text{}, false
}

// ReadingMS returns how long a text stays on screen.
func (s *Scene) ReadingMS(t Text) int {
	if t.MS > 0 {
		return t.MS
	}
	return s.Dialog.BaseMS + len([]rune(t.Text))*s.Dialog.PerCharMS
}

// Graph builds the room's path graph.
func (r *Room) Graph() (*pathgraph.Graph, error) {
	g := pathgraph.New()
	for _, n := range r.Path.Nodes {
		if err := g.AddNode(n.ID, n.X, n.Y, n.Scale); err != nil {
			return nil, err
		}
	}
	for _, e := range r.Path.Edges {
		if err := g.AddEdge(e.ID, e.From, e.To, !e.Disabled); err != nil {
			return nil, err
		}
	}
	for _, p := range r.Path.Polygons {
		if len(p.Nodes) != 3 || !g.AddPolygon(p.ID, p.Nodes[0], p.Nodes[1], p.Nodes[2], !p.Disabled) {
			return nil, fmt.Errorf("polygon %d: %w", p.ID, ErrBadPolygon)
		}
	}
	if r.Path.Built {
		g.Toggle(true)
	}
	return g, nil
}

// Point returns the named point visible to owner. Points owned by that
// character win over shared ones.
func (r *Room) Point(owner, name string) (Point, bool) {
	var shared *Point
	for i := range r.Points {
		p := &r.Points[i]
		if p.Name != name {
			continue
		}
		if p.Owner == owner {
			return *p, true
		}
		if p.Owner == "" && shared == nil {
			shared = p
		}
	}
	if shared != nil {
		return *shared, true
	}
	return Point{}, false
}
