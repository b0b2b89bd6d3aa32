package vm

import "fmt"

// ProcessStatus is the suspension state of a process.
type ProcessStatus uint8

const (
	ProcessRunnable ProcessStatus = iota
	ProcessWaiting                // blocked on a sub-task
	ProcessFinished
)

func (s ProcessStatus) String() string {
	switch s {
	case ProcessRunnable:
		return "Runnable"
	case ProcessWaiting:
		return "WaitingOnSubTask"
	case ProcessFinished:
		return "Finished"
	default:
		return fmt.Sprintf("ProcessStatus(%d)", uint8(s))
	}
}

// ProcessFlags modify CreateProcess.
type ProcessFlags uint8

const (
	// FlagAllowMissing makes an unknown procedure a silent no-op.
	FlagAllowMissing ProcessFlags = 1 << iota
	// FlagBackground skips the character lock.
	FlagBackground
)

// Process is one cooperative thread of script execution: a ScriptTask at
// the bottom of a task stack plus whatever sub-task it currently waits on.
type Process struct {
	pid         uint32
	name        string
	character   Character
	tasks       []Task
	status      ProcessStatus
	returnValue int32
	lock        *Lock
	sched       *Scheduler
}

// PID returns the process id. Ids start at 1 and are never reused.
func (p *Process) PID() uint32 { return p.pid }

// Name is the procedure name, with " FORKED" appended for forks.
func (p *Process) Name() string { return p.name }

// Character returns the character tag of the process.
func (p *Process) Character() Character { return p.character }

// Status returns the current suspension state.
func (p *Process) Status() ProcessStatus { return p.status }

// Scheduler returns the owning scheduler.
func (p *Process) Scheduler() *Scheduler { return p.sched }

// HasLock reports whether the process holds its character lock.
func (p *Process) HasLock() bool { return p.lock.Held() }

// ReturnValue is the value the last finished task handed down.
func (p *Process) ReturnValue() int32 { return p.returnValue }

// Script returns the bottom script task.
func (p *Process) Script() *ScriptTask {
	if len(p.tasks) == 0 {
		return nil
	}
	st, _ := p.tasks[0].(*ScriptTask)
	return st
}

// Waiting returns the sub-task the script waits on, or nil.
func (p *Process) Waiting() Task {
	if len(p.tasks) < 2 {
		return nil
	}
	return p.tasks[len(p.tasks)-1]
}

// IsActiveForPlayer reports whether the process acts for the character
// the player currently controls.
func (p *Process) IsActiveForPlayer() bool {
	return p.character == CharacterNone || p.character == p.sched.host.ActiveCharacter()
}

func (p *Process) String() string {
	return fmt.Sprintf("%d:%s", p.pid, p.name)
}

// run resumes the task stack until the top task yields or the stack
// empties. A finished sub-task hands its value to the task below, which
// resumes in the same turn.
func (p *Process) run() error {
	for len(p.tasks) > 0 && p.status != ProcessFinished {
		top := p.tasks[len(p.tasks)-1]
		ret, err := top.Run(p)
		if err != nil {
			return err
		}
		if p.status == ProcessFinished {
			return nil
		}
		switch ret.Kind {
		case ReturnYield:
			p.updateStatus()
			return nil
		case ReturnWaiting:
			if ret.Task == nil {
				log.Warningf("%s: waited on a nil task", p)
				p.returnValue = 0
				continue
			}
			p.tasks = append(p.tasks, ret.Task)
		case ReturnFinished:
			p.tasks = p.tasks[:len(p.tasks)-1]
			p.returnValue = ret.Value
		}
	}
	if len(p.tasks) == 0 {
		p.finish()
	}
	return nil
}

func (p *Process) updateStatus() {
	switch {
	case len(p.tasks) == 0:
		p.status = ProcessFinished
	case len(p.tasks) == 1:
		p.status = ProcessRunnable
	default:
		p.status = ProcessWaiting
	}
}

// finish marks the process done and gives its lock back.
func (p *Process) finish() {
	if p.status == ProcessFinished {
		return
	}
	p.status = ProcessFinished
	p.lock.Release()
	log.Debugf("%s: finished with %d", p, p.returnValue)
}

// kill cancels every task from the top down and force-finishes.
func (p *Process) kill() {
	for i := len(p.tasks) - 1; i >= 0; i-- {
		if c, ok := p.tasks[i].(Canceler); ok {
			c.Cancel(p)
		}
	}
	p.tasks = nil
	p.finish()
}
