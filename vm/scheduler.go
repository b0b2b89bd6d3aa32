package vm

import (
	"time"

	"github.com/chazu/mummer/pkg/bytecode"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("mummer.vm")

// Options configure a Scheduler for one game.
type Options struct {
	// ABI selects the kernel call convention of the script resource.
	ABI bytecode.ABI
	// OpMap translates raw opcodes; nil means the default numbering.
	OpMap bytecode.OpMap
	// Kernels translates raw kernel call indices; nil means the default.
	Kernels KernelMap
	// Locks hands out character semaphores; nil creates a private registry.
	Locks CharacterLocks
	// Characters is the number of playable characters (default 2).
	Characters int
	// ChangeCharacterUsesGameLock makes ChangeCharacter kill every process
	// and retag the caller as CharacterNone.
	ChangeCharacterUsesGameLock bool
	// RoomEntryPrefix names the procedure started by ChangeRoom.
	RoomEntryPrefix string
	// CharacterVariable and RealCharacterVariable receive the character
	// of the running process and the active character.
	CharacterVariable     string
	RealCharacterVariable string
	// Trace logs every executed instruction.
	Trace bool
}

func (o *Options) applyDefaults() {
	if o.ABI == 0 {
		o.ABI = bytecode.ABIv3
	}
	if o.OpMap == nil {
		o.OpMap = bytecode.DefaultOpMap()
	}
	if o.Kernels == nil {
		o.Kernels = DefaultKernelMap()
	}
	if o.Locks == nil {
		o.Locks = NewLocks()
	}
	if o.Characters <= 0 {
		o.Characters = 2
	}
	if o.RoomEntryPrefix == "" {
		o.RoomEntryPrefix = "ENTRAR_"
	}
	if o.CharacterVariable == "" {
		o.CharacterVariable = "m_o_f"
	}
	if o.RealCharacterVariable == "" {
		o.RealCharacterVariable = "m_o_f_real"
	}
}

// Scheduler owns every process of a loaded script and resumes them in
// creation order once per tick. It is not safe for concurrent use; the
// game loop drives it from one goroutine.
type Scheduler struct {
	script    *bytecode.Script
	host      Host
	opts      Options
	processes []*Process
	current   *Process
	nextPID   uint32

	tick    uint64
	clock   time.Duration
	elapsed time.Duration

	// shared input timer of HadNoMousePressFor
	timerSet   bool
	timerStart time.Duration

	// configured variables the script does not declare, warned once
	missingVars map[string]bool
}

// NewScheduler creates a scheduler for script. host may be nil, in which
// case a NullHost is used.
func NewScheduler(script *bytecode.Script, host Host, opts Options) *Scheduler {
	opts.applyDefaults()
	if host == nil {
		host = &NullHost{}
	}
	return &Scheduler{
		script:      script,
		host:        host,
		opts:        opts,
		nextPID:     1,
		missingVars: make(map[string]bool),
	}
}

// Script returns the loaded script resource.
func (s *Scheduler) Script() *bytecode.Script { return s.script }

// Host returns the collaborator set.
func (s *Scheduler) Host() Host { return s.host }

// Options returns the effective options.
func (s *Scheduler) Options() Options { return s.opts }

// Locks returns the character lock registry.
func (s *Scheduler) Locks() CharacterLocks { return s.opts.Locks }

// SetTrace switches instruction tracing.
func (s *Scheduler) SetTrace(on bool) { s.opts.Trace = on }

// Now is the scheduler clock: the sum of all elapsed tick durations.
func (s *Scheduler) Now() time.Duration { return s.clock }

// TickCount is the number of ticks run so far.
func (s *Scheduler) TickCount() uint64 { return s.tick }

// Elapsed is the duration passed to the current or last Tick.
func (s *Scheduler) Elapsed() time.Duration { return s.elapsed }

// Current returns the process being resumed, or nil between turns.
func (s *Scheduler) Current() *Process { return s.current }

// Len returns the number of live processes.
func (s *Scheduler) Len() int {
	n := 0
	for _, p := range s.processes {
		if p.status != ProcessFinished {
			n++
		}
	}
	return n
}

// Processes returns the live processes in resume order.
func (s *Scheduler) Processes() []*Process {
	out := make([]*Process, 0, len(s.processes))
	for _, p := range s.processes {
		if p.status != ProcessFinished {
			out = append(out, p)
		}
	}
	return out
}

// Process finds a live process by id.
func (s *Scheduler) Process(pid uint32) *Process {
	for _, p := range s.processes {
		if p.pid == pid && p.status != ProcessFinished {
			return p
		}
	}
	return nil
}

// CreateProcess starts procedure for character. It returns nil when the
// procedure does not exist or when a foreground process already holds the
// character's lock.
func (s *Scheduler) CreateProcess(character Character, procedure string, flags ProcessFlags) *Process {
	pc, ok := s.script.Procedure(procedure)
	if !ok {
		if flags&FlagAllowMissing == 0 {
			log.Warningf("unknown procedure %q", procedure)
		}
		return nil
	}

	var lock *Lock
	if flags&FlagBackground == 0 {
		lock, ok = s.opts.Locks.SemaphoreFor(character).TryAcquire()
		if !ok {
			log.Debugf("character %d is locked, not starting %q", character, procedure)
			return nil
		}
	}

	p := s.newProcess(procedure, character, lock)
	p.tasks = []Task{newScriptTask(pc)}
	s.processes = append(s.processes, p)
	log.Debugf("%s: started at %d for character %d", p, pc, character)
	return p
}

func (s *Scheduler) newProcess(name string, character Character, lock *Lock) *Process {
	p := &Process{
		pid:       s.nextPID,
		name:      name,
		character: character,
		lock:      lock,
		sched:     s,
	}
	s.nextPID++
	return p
}

// Fork duplicates the script state of parent into a new process placed
// right after it. The fork sees 1 on top of its copied stack; it first
// runs on the next tick.
func (s *Scheduler) Fork(parent *Process) *Process {
	st := parent.Script()
	if st == nil {
		return nil
	}
	child := s.newProcess(parent.name+" FORKED", parent.character, parent.lock.Clone())
	cst := st.fork()
	cst.push(Number(1))
	child.tasks = []Task{cst}

	idx := len(s.processes)
	for i, p := range s.processes {
		if p == parent {
			idx = i + 1
			break
		}
	}
	s.processes = append(s.processes, nil)
	copy(s.processes[idx+1:], s.processes[idx:])
	s.processes[idx] = child
	log.Debugf("%s: forked from %s at %d", child, parent, st.pc)
	return child
}

// KillAllFor kills every process tagged with character, or every process
// when character is CharacterNone. The process currently running is
// spared. The killed character's semaphore is force-released.
func (s *Scheduler) KillAllFor(character Character) {
	for _, p := range s.processes {
		if p == s.current || p.status == ProcessFinished {
			continue
		}
		if character == CharacterNone || p.character == character {
			log.Debugf("%s: killed", p)
			p.kill()
		}
	}
	if character != CharacterNone {
		s.opts.Locks.SemaphoreFor(character).ForceRelease()
	}
}

// Kill force-finishes one process.
func (s *Scheduler) Kill(pid uint32) bool {
	p := s.Process(pid)
	if p == nil {
		return false
	}
	p.kill()
	return true
}

// Tick advances the clock by elapsed and resumes every live process once,
// in table order. Processes created during the tick first run on the next
// one. A fatal script error aborts the tick and is returned as a
// *ScriptError.
func (s *Scheduler) Tick(elapsed time.Duration) error {
	s.tick++
	s.elapsed = elapsed
	s.clock += elapsed

	live := make([]*Process, len(s.processes))
	copy(live, s.processes)
	for _, p := range live {
		if p.status == ProcessFinished {
			continue
		}
		s.current = p
		err := p.run()
		s.current = nil
		if err != nil {
			return err
		}
	}
	s.reclaim()
	return nil
}

// reclaim drops finished processes from the table.
func (s *Scheduler) reclaim() {
	kept := s.processes[:0]
	for _, p := range s.processes {
		if p.status == ProcessFinished {
			p.lock.Release()
			continue
		}
		kept = append(kept, p)
	}
	for i := len(kept); i < len(s.processes); i++ {
		s.processes[i] = nil
	}
	s.processes = kept
}

// Reset kills every process and clears the clock.
func (s *Scheduler) Reset() {
	for _, p := range s.processes {
		p.kill()
	}
	s.processes = nil
	s.tick = 0
	s.clock = 0
	s.elapsed = 0
	s.timerSet = false
	s.nextPID = 1
}

// setCharacterVariables publishes the running and active characters to
// script memory.
func (s *Scheduler) setCharacterVariables(p *Process) {
	active := s.host.ActiveCharacter()
	if s.opts.ABI == bytecode.ABIv1 {
		s.setVariable(s.opts.CharacterVariable, int32(active)-1)
		return
	}
	s.setVariable(s.opts.CharacterVariable, int32(p.character))
	s.setVariable(s.opts.RealCharacterVariable, int32(active))
}

func (s *Scheduler) setVariable(name string, value int32) {
	if s.script.SetVariable(name, value) || s.missingVars[name] {
		return
	}
	s.missingVars[name] = true
	log.Warningf("script declares no variable %q", name)
}
