package vm

import (
	"fmt"
	"sync"
)

// ---------------------------------------------------------------------------
// Semaphore: advisory, counted, never blocks
// ---------------------------------------------------------------------------

// Semaphore is the advisory exclusivity token of one character. It only
// counts holders; nothing ever waits on it. A character is free when the
// counter is zero.
type Semaphore struct {
	name    string
	mu      sync.Mutex
	counter int
	gen     uint64 // bumped by ForceRelease
}

// NewSemaphore creates a released semaphore.
func NewSemaphore(name string) *Semaphore {
	return &Semaphore{name: name}
}

// Name identifies the semaphore in save games.
func (s *Semaphore) Name() string { return s.name }

// Counter returns the number of live lock handles.
func (s *Semaphore) Counter() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counter
}

// IsReleased reports whether no handle holds the semaphore.
func (s *Semaphore) IsReleased() bool {
	return s.Counter() == 0
}

// Acquire hands out a new lock handle.
func (s *Semaphore) Acquire() *Lock {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counter++
	return &Lock{sem: s, gen: s.gen}
}

// TryAcquire hands out a handle only if the semaphore is released.
func (s *Semaphore) TryAcquire() (*Lock, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.counter != 0 {
		return nil, false
	}
	s.counter++
	return &Lock{sem: s, gen: s.gen}, true
}

// ForceRelease clears the counter regardless of outstanding handles.
// Handles released afterwards are ignored.
func (s *Semaphore) ForceRelease() {
	s.mu.Lock()
	s.counter = 0
	s.gen++
	s.mu.Unlock()
}

func (s *Semaphore) release(gen uint64) {
	s.mu.Lock()
	if gen == s.gen && s.counter > 0 {
		s.counter--
	}
	s.mu.Unlock()
}

// ---------------------------------------------------------------------------
// Lock: one holder's handle
// ---------------------------------------------------------------------------

// Lock is a handle on a Semaphore. Releasing is idempotent and a nil Lock
// is a released lock.
type Lock struct {
	sem *Semaphore
	gen uint64
}

// Release gives the handle back. Calling it again does nothing.
func (l *Lock) Release() {
	if l == nil || l.sem == nil {
		return
	}
	l.sem.release(l.gen)
	l.sem = nil
}

// Held reports whether the handle still counts against its semaphore.
func (l *Lock) Held() bool {
	return l != nil && l.sem != nil
}

// Semaphore returns the semaphore of a held handle, or nil.
func (l *Lock) Semaphore() *Semaphore {
	if l == nil {
		return nil
	}
	return l.sem
}

// Clone acquires a second handle on the same semaphore.
func (l *Lock) Clone() *Lock {
	if !l.Held() {
		return nil
	}
	return l.sem.Acquire()
}

// ---------------------------------------------------------------------------
// Locks: registry keyed by character
// ---------------------------------------------------------------------------

// Locks owns one semaphore per character, including CharacterNone which
// acts as the game-wide lock.
type Locks struct {
	mu    sync.Mutex
	byID  map[Character]*Semaphore
	names map[string]*Semaphore
}

// NewLocks creates an empty registry. Semaphores are created on demand.
func NewLocks() *Locks {
	return &Locks{
		byID:  make(map[Character]*Semaphore),
		names: make(map[string]*Semaphore),
	}
}

// SemaphoreFor returns the semaphore of a character.
func (l *Locks) SemaphoreFor(c Character) *Semaphore {
	l.mu.Lock()
	defer l.mu.Unlock()
	if s, ok := l.byID[c]; ok {
		return s
	}
	s := NewSemaphore(semaphoreName(c))
	l.byID[c] = s
	l.names[s.name] = s
	return s
}

// SemaphoreByName finds a semaphore by the name it is saved under, or
// nil if the name does not belong to this registry.
func (l *Locks) SemaphoreByName(name string) *Semaphore {
	l.mu.Lock()
	s := l.names[name]
	l.mu.Unlock()
	if s != nil {
		return s
	}
	if name == "game" {
		return l.SemaphoreFor(CharacterNone)
	}
	var c int32
	if _, err := fmt.Sscanf(name, "character-%d", &c); err == nil && c > 0 {
		return l.SemaphoreFor(Character(c))
	}
	return nil
}

// ReleaseAll force-releases every semaphore.
func (l *Locks) ReleaseAll() {
	l.mu.Lock()
	sems := make([]*Semaphore, 0, len(l.byID))
	for _, s := range l.byID {
		sems = append(sems, s)
	}
	l.mu.Unlock()
	for _, s := range sems {
		s.ForceRelease()
	}
}

func semaphoreName(c Character) string {
	if c == CharacterNone {
		return "game"
	}
	return fmt.Sprintf("character-%d", int32(c))
}
