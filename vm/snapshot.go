package vm

import (
	"fmt"
	"time"
)

// ProcessState is the persistent form of a process: its script position,
// both stacks, the lock flag and the sub-task it waits on.
type ProcessState struct {
	PID               uint32       `cbor:"pid"`
	Name              string       `cbor:"name"`
	Character         int32        `cbor:"character"`
	PC                uint32       `cbor:"pc"`
	Stack             []StackEntry `cbor:"stack"`
	CallStack         []uint32     `cbor:"calls"`
	HasLock           bool         `cbor:"lock"`
	LockName          string       `cbor:"lockName,omitempty"`
	Status            uint8        `cbor:"status"`
	ReturnsFromKernel bool         `cbor:"returnsFromKernel"`
	FirstExecution    bool         `cbor:"firstExecution"`
	LastKernel        int32        `cbor:"lastKernel"`
	ReturnValue       int32        `cbor:"returnValue"`
	Waiting           []TaskState  `cbor:"waiting,omitempty"`
}

// Snapshot is the persistent form of a scheduler.
type Snapshot struct {
	Tick         uint64         `cbor:"tick"`
	ClockMS      int64          `cbor:"clock"`
	NextPID      uint32         `cbor:"nextPid"`
	TimerSet     bool           `cbor:"timerSet"`
	TimerStartMS int64          `cbor:"timerStart"`
	Processes    []ProcessState `cbor:"processes"`
}

// Snapshot captures every live process. It fails if a process waits on a
// sub-task that cannot be persisted.
func (s *Scheduler) Snapshot() (Snapshot, error) {
	snap := Snapshot{
		Tick:         s.tick,
		ClockMS:      ms(s.clock),
		NextPID:      s.nextPID,
		TimerSet:     s.timerSet,
		TimerStartMS: ms(s.timerStart),
	}
	for _, p := range s.Processes() {
		st, err := p.snapshot()
		if err != nil {
			return Snapshot{}, err
		}
		snap.Processes = append(snap.Processes, st)
	}
	return snap, nil
}

func (p *Process) snapshot() (ProcessState, error) {
	script := p.Script()
	if script == nil {
		return ProcessState{}, fmt.Errorf("process %s has no script task", p)
	}
	st := ProcessState{
		PID:               p.pid,
		Name:              p.name,
		Character:         int32(p.character),
		PC:                script.pc,
		Stack:             script.Stack(),
		CallStack:         script.CallStack(),
		HasLock:           p.lock.Held(),
		Status:            uint8(p.status),
		ReturnsFromKernel: script.returnsFromKernel,
		FirstExecution:    script.firstExecution,
		LastKernel:        script.lastKernel,
		ReturnValue:       p.returnValue,
	}
	if sem := p.lock.Semaphore(); sem != nil {
		st.LockName = sem.Name()
	}
	for _, t := range p.tasks[1:] {
		pt, ok := t.(Persistent)
		if !ok {
			return ProcessState{}, fmt.Errorf("process %s: task %s cannot be saved", p, t.Kind())
		}
		st.Waiting = append(st.Waiting, pt.State())
	}
	return st, nil
}

// Restore replaces every process with the ones in snap. Locks are
// re-acquired by semaphore name, falling back to the character's own.
func (s *Scheduler) Restore(snap Snapshot) error {
	procs := make([]*Process, 0, len(snap.Processes))
	for _, st := range snap.Processes {
		p, err := s.restoreProcess(st)
		if err != nil {
			for _, q := range procs {
				q.lock.Release()
			}
			return err
		}
		procs = append(procs, p)
	}

	for _, p := range s.processes {
		p.kill()
	}
	s.processes = procs
	s.tick = snap.Tick
	s.clock = time.Duration(snap.ClockMS) * time.Millisecond
	s.nextPID = snap.NextPID
	s.timerSet = snap.TimerSet
	s.timerStart = time.Duration(snap.TimerStartMS) * time.Millisecond
	for _, p := range procs {
		if p.pid >= s.nextPID {
			s.nextPID = p.pid + 1
		}
	}
	return nil
}

func (s *Scheduler) restoreProcess(st ProcessState) (*Process, error) {
	script := &ScriptTask{
		pc:                st.PC,
		stack:             append([]StackEntry(nil), st.Stack...),
		calls:             append([]uint32(nil), st.CallStack...),
		lastKernel:        st.LastKernel,
		returnsFromKernel: st.ReturnsFromKernel,
		firstExecution:    st.FirstExecution,
	}
	for _, e := range script.stack {
		if e.Kind > EntryString {
			return nil, fmt.Errorf("process %d: invalid stack entry kind %d", st.PID, e.Kind)
		}
	}

	p := &Process{
		pid:         st.PID,
		name:        st.Name,
		character:   Character(st.Character),
		status:      ProcessStatus(st.Status),
		returnValue: st.ReturnValue,
		sched:       s,
		tasks:       []Task{script},
	}
	for _, ts := range st.Waiting {
		t, err := restoreTask(ts)
		if err != nil {
			return nil, fmt.Errorf("process %d: %w", st.PID, err)
		}
		p.tasks = append(p.tasks, t)
	}
	if p.status == ProcessFinished {
		p.updateStatus()
	}

	if st.HasLock {
		sem := s.opts.Locks.SemaphoreByName(st.LockName)
		if sem == nil {
			sem = s.opts.Locks.SemaphoreFor(p.character)
		}
		p.lock = sem.Acquire()
	}
	return p, nil
}
