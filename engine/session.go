package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chazu/mummer/manifest"
	"github.com/chazu/mummer/pkg/bytecode"
	"github.com/chazu/mummer/scene"
	"github.com/chazu/mummer/vm"
	"github.com/chazu/mummer/vm/savestate"
)

var (
	// ErrSessionOver is returned once a fatal script error ended the
	// session.
	ErrSessionOver = errors.New("game session is over")
	// ErrNotStarted is returned when no start procedure could run.
	ErrNotStarted = errors.New("start procedure did not run")
)

// Session runs one game: the scheduler, the world and the input track,
// advanced by a fixed frame time.
type Session struct {
	manifest *manifest.Manifest
	scene    *scene.Scene
	script   *bytecode.Script
	world    *World
	sched    *vm.Scheduler
	frame    time.Duration
	input    []scene.InputEvent
	over     error
}

// NewSession prepares a game without running anything.
func NewSession(m *manifest.Manifest, script *bytecode.Script, sc *scene.Scene) (*Session, error) {
	opts, err := m.VMOptions()
	if err != nil {
		return nil, err
	}
	w, err := NewWorld(m, sc)
	if err != nil {
		return nil, err
	}
	return &Session{
		manifest: m,
		scene:    sc,
		script:   script,
		world:    w,
		sched:    vm.NewScheduler(script, w, opts),
		frame:    m.FrameTime(),
		input:    sc.Input,
	}, nil
}

// World returns the game world.
func (s *Session) World() *World { return s.world }

// Scheduler returns the process scheduler.
func (s *Session) Scheduler() *vm.Scheduler { return s.sched }

// Over returns the error that ended the session, nil while it runs.
func (s *Session) Over() error { return s.over }

// SetTrace logs every executed instruction.
func (s *Session) SetTrace(on bool) {
	s.sched.SetTrace(on)
}

// Start enters the start room and creates the start procedure, the
// configured one when procedure is empty.
func (s *Session) Start(procedure string) error {
	if procedure == "" {
		procedure = s.manifest.Game.Start
	}
	if room := s.scene.StartRoom; room != "" && !s.world.ChangeRoom(room) {
		return fmt.Errorf("start room %s: %w", room, scene.ErrUnknownRoom)
	}
	if s.sched.CreateProcess(vm.CharacterNone, procedure, 0) == nil {
		return fmt.Errorf("%s: %w", procedure, ErrNotStarted)
	}
	log.Infof("started %s", procedure)
	return nil
}

// Tick runs one frame: queued input, every process, then actors, animations
// and audio.
func (s *Session) Tick() error {
	if s.over != nil {
		return fmt.Errorf("%w: %w", ErrSessionOver, s.over)
	}

	next := s.sched.TickCount() + 1
	for len(s.input) > 0 && s.input[0].Tick <= next {
		ev := s.input[0]
		s.input = s.input[1:]
		switch ev.Kind {
		case "press":
			s.world.Press()
		case "click":
			s.world.Click(ev.X, ev.Y)
		case "choose":
			s.world.Choose(ev.Choice)
		}
	}

	if err := s.sched.Tick(s.frame); err != nil {
		s.over = err
		log.Errorf("session over: %s", err)
		return fmt.Errorf("%w: %w", ErrSessionOver, err)
	}
	s.world.advance(s.frame)
	return nil
}

// Run ticks until no process is left, the context ends or, when ticks is
// positive, that many frames ran.
func (s *Session) Run(ctx context.Context, ticks int) error {
	for i := 0; ticks <= 0 || i < ticks; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if s.sched.Len() == 0 {
			log.Infof("no process left after %d ticks", s.sched.TickCount())
			return nil
		}
		if err := s.Tick(); err != nil {
			return err
		}
	}
	return nil
}

// Snapshot captures the whole game between two ticks.
func (s *Session) Snapshot() (*savestate.SaveGame, error) {
	snap, err := s.sched.Snapshot()
	if err != nil {
		return nil, err
	}
	g := &savestate.SaveGame{
		Version:   savestate.Version,
		Game:      s.manifest.Game.Name,
		Scheduler: snap,
		Variables: s.script.SnapshotVariables(),
	}
	s.world.capture(g)
	return g, nil
}

// Restore replaces the running game with a snapshot. A save that cannot
// be restored leaves the running game untouched.
func (s *Session) Restore(g *savestate.SaveGame) error {
	if g.Game != s.manifest.Game.Name {
		return fmt.Errorf("save belongs to game %q, not %q", g.Game, s.manifest.Game.Name)
	}
	if n := len(s.script.Variables); len(g.Variables) != n {
		return fmt.Errorf("save has %d variables, script has %d", len(g.Variables), n)
	}
	if _, ok := s.scene.Room(g.Room); g.Room != "" && !ok {
		return fmt.Errorf("save room %s: %w", g.Room, scene.ErrUnknownRoom)
	}
	// killing the old processes cancels their walks and sounds, so the
	// world is restored after them
	if err := s.sched.Restore(g.Scheduler); err != nil {
		return err
	}
	if err := s.script.RestoreVariables(g.Variables); err != nil {
		return err
	}
	if err := s.world.restore(g); err != nil {
		return err
	}
	s.input = s.scene.Input
	for len(s.input) > 0 && s.input[0].Tick <= g.Scheduler.Tick {
		s.input = s.input[1:]
	}
	s.over = nil
	return nil
}

// Save writes the game to a slot.
func (s *Session) Save(ctx context.Context, store *savestate.Store, slot int, name string) error {
	g, err := s.Snapshot()
	if err != nil {
		return err
	}
	return store.Save(ctx, slot, name, g)
}

// Load reads a slot and resumes from it.
func (s *Session) Load(ctx context.Context, store *savestate.Store, slot int) error {
	g, err := store.Load(ctx, slot)
	if err != nil {
		return err
	}
	return s.Restore(g)
}
