package vm

import "time"

// Sub-tasks are small explicit state machines. Each one runs immediately
// when the script starts waiting on it and then once per tick until it
// finishes.

func init() {
	RegisterTaskKind("delay", func(st TaskState) (Task, error) {
		v, err := stateInts(st, 1)
		if err != nil {
			return nil, err
		}
		return &DelayTask{Until: time.Duration(v[0]) * time.Millisecond}, nil
	})
	RegisterTaskKind("sleep", func(st TaskState) (Task, error) {
		v, err := stateInts(st, 1)
		if err != nil {
			return nil, err
		}
		return &SleepTask{Remaining: int32(v[0])}, nil
	})
	RegisterTaskKind("timer", func(st TaskState) (Task, error) {
		v, err := stateInts(st, 4)
		if err != nil {
			return nil, err
		}
		return &TimerTask{Seconds: int32(v[0]), result: int32(v[1]), pressed: v[2] != 0, checked: v[3] != 0}, nil
	})
	RegisterTaskKind("sound", func(st TaskState) (Task, error) {
		v, err := stateInts(st, 1)
		if err != nil {
			return nil, err
		}
		return &PlaySoundTask{ID: SoundID(v[0])}, nil
	})
	RegisterTaskKind("text", func(st TaskState) (Task, error) {
		v, err := stateInts(st, 2)
		if err != nil {
			return nil, err
		}
		return &TextTask{ID: TextID(v[0]), Until: time.Duration(v[1]) * time.Millisecond}, nil
	})
	RegisterTaskKind("dialog", func(st TaskState) (Task, error) {
		v, err := stateInts(st, 2)
		if err != nil {
			return nil, err
		}
		return &DialogTask{Character: Character(v[0]), opened: v[1] != 0}, nil
	})
	RegisterTaskKind("animate", func(st TaskState) (Task, error) {
		v, err := stateInts(st, 1)
		if err != nil {
			return nil, err
		}
		return &AnimateTask{Owner: Character(v[0]), Object: st.Text}, nil
	})
	RegisterTaskKind("arrival", func(st TaskState) (Task, error) {
		return &ArrivalTask{Actor: st.Text}, nil
	})
	RegisterTaskKind("sync", func(st TaskState) (Task, error) {
		v, err := stateInts(st, 2)
		if err != nil {
			return nil, err
		}
		return &SyncTask{Partner: uint32(v[0]), matchedAt: uint64(v[1])}, nil
	})
}

func ms(d time.Duration) int64 { return int64(d / time.Millisecond) }

// ---------------------------------------------------------------------------
// Timing
// ---------------------------------------------------------------------------

// DelayTask waits until the scheduler clock reaches Until.
type DelayTask struct {
	Until time.Duration
}

func (t *DelayTask) Kind() string { return "delay" }

func (t *DelayTask) Run(p *Process) (TaskReturn, error) {
	if p.sched.clock >= t.Until {
		return Finish(0), nil
	}
	return Yield(), nil
}

func (t *DelayTask) State() TaskState {
	return TaskState{Kind: t.Kind(), Ints: []int64{ms(t.Until)}}
}

// SleepTask waits a number of ticks.
type SleepTask struct {
	Remaining int32
}

func (t *SleepTask) Kind() string { return "sleep" }

func (t *SleepTask) Run(p *Process) (TaskReturn, error) {
	if t.Remaining <= 0 {
		return Finish(0), nil
	}
	t.Remaining--
	return Yield(), nil
}

func (t *SleepTask) State() TaskState {
	return TaskState{Kind: t.Kind(), Ints: []int64{int64(t.Remaining)}}
}

// TimerTask answers HadNoMousePressFor: 0 if the mouse was pressed, 2 if
// the time has not run out yet and 1 once it has, which also resets the
// shared timer. It always waits one tick before answering.
type TimerTask struct {
	Seconds int32

	result  int32
	pressed bool
	checked bool
}

func (t *TimerTask) Kind() string { return "timer" }

func (t *TimerTask) Run(p *Process) (TaskReturn, error) {
	if t.checked {
		return Finish(t.result), nil
	}
	s := p.sched
	t.pressed = t.pressed || s.host.WasMousePressed()
	if !s.timerSet {
		s.timerSet = true
		s.timerStart = s.clock
	}
	elapsed := int32((s.clock - s.timerStart) / time.Second)
	if t.Seconds >= elapsed {
		if t.pressed {
			t.result = 0
		} else {
			t.result = 2
		}
	} else {
		t.result = 1
		s.timerSet = false
	}
	t.checked = true
	return Yield(), nil
}

func (t *TimerTask) State() TaskState {
	return TaskState{Kind: t.Kind(), Ints: []int64{int64(t.Seconds), int64(t.result), boolInt(t.pressed), boolInt(t.checked)}}
}

// ---------------------------------------------------------------------------
// Sound, text and dialog
// ---------------------------------------------------------------------------

// PlaySoundTask waits for a sound effect to stop.
type PlaySoundTask struct {
	ID SoundID
}

func (t *PlaySoundTask) Kind() string { return "sound" }

func (t *PlaySoundTask) Run(p *Process) (TaskReturn, error) {
	if p.sched.host.IsSoundPlaying(t.ID) {
		return Yield(), nil
	}
	return Finish(0), nil
}

func (t *PlaySoundTask) Cancel(p *Process) {
	p.sched.host.StopSound(t.ID)
}

func (t *PlaySoundTask) State() TaskState {
	return TaskState{Kind: t.Kind(), Ints: []int64{int64(t.ID)}}
}

// TextTask waits while a text is on screen. A non-zero Until also ends
// the wait when the clock reaches it.
type TextTask struct {
	ID    TextID
	Until time.Duration
}

func (t *TextTask) Kind() string { return "text" }

func (t *TextTask) Run(p *Process) (TaskReturn, error) {
	s := p.sched
	if t.Until > 0 && s.clock >= t.Until {
		return Finish(0), nil
	}
	if t.Until == 0 && !s.host.IsTextShowing(t.ID) {
		return Finish(0), nil
	}
	return Yield(), nil
}

func (t *TextTask) State() TaskState {
	return TaskState{Kind: t.Kind(), Ints: []int64{int64(t.ID), ms(t.Until)}}
}

// DialogTask opens the dialog menu of a character and waits for a choice.
// It finishes with the return value attached to the chosen line.
type DialogTask struct {
	Character Character
	opened    bool
}

func (t *DialogTask) Kind() string { return "dialog" }

func (t *DialogTask) Run(p *Process) (TaskReturn, error) {
	h := p.sched.host
	if !t.opened {
		if !h.OpenDialogMenu(t.Character) {
			log.Warningf("%s: dialog menu without lines", p)
			return Finish(0), nil
		}
		t.opened = true
		return Yield(), nil
	}
	if v, done := h.DialogChoice(t.Character); done {
		return Finish(v), nil
	}
	return Yield(), nil
}

func (t *DialogTask) Cancel(p *Process) {
	p.sched.host.ResetDialog(t.Character)
}

func (t *DialogTask) State() TaskState {
	return TaskState{Kind: t.Kind(), Ints: []int64{int64(t.Character), boolInt(t.opened)}}
}

// ---------------------------------------------------------------------------
// Objects and actors
// ---------------------------------------------------------------------------

// AnimateTask waits for an object animation to end.
type AnimateTask struct {
	Owner  Character
	Object string
}

func (t *AnimateTask) Kind() string { return "animate" }

func (t *AnimateTask) Run(p *Process) (TaskReturn, error) {
	if p.sched.host.IsAnimating(t.Owner, t.Object) {
		return Yield(), nil
	}
	return Finish(1), nil
}

func (t *AnimateTask) State() TaskState {
	return TaskState{Kind: t.Kind(), Ints: []int64{int64(t.Owner)}, Text: t.Object}
}

// ArrivalTask waits until an actor stops walking.
type ArrivalTask struct {
	Actor string
}

func (t *ArrivalTask) Kind() string { return "arrival" }

func (t *ArrivalTask) Run(p *Process) (TaskReturn, error) {
	if p.sched.host.IsWalking(t.Actor) {
		return Yield(), nil
	}
	return Finish(1), nil
}

func (t *ArrivalTask) Cancel(p *Process) {
	p.sched.host.StopWalking(t.Actor, -1)
}

func (t *ArrivalTask) State() TaskState {
	return TaskState{Kind: t.Kind(), Text: t.Actor}
}

// ---------------------------------------------------------------------------
// Sync
// ---------------------------------------------------------------------------

// SyncTask is one side of a two-process rendezvous. Once both processes
// wait on each other they are released together and resume on the next
// tick with 1. If the partner is gone the wait ends with 0.
type SyncTask struct {
	Partner   uint32
	matchedAt uint64 // tick of the match, 0 while waiting
}

func (t *SyncTask) Kind() string { return "sync" }

func (t *SyncTask) Run(p *Process) (TaskReturn, error) {
	s := p.sched
	if t.matchedAt != 0 {
		if s.tick > t.matchedAt {
			return Finish(1), nil
		}
		return Yield(), nil
	}
	partner := s.Process(t.Partner)
	if partner == nil || partner == p {
		return Finish(0), nil
	}
	if other, ok := partner.Waiting().(*SyncTask); ok && other.Partner == p.pid {
		t.matchedAt = s.tick
		other.matchedAt = s.tick
	}
	return Yield(), nil
}

func (t *SyncTask) State() TaskState {
	return TaskState{Kind: t.Kind(), Ints: []int64{int64(t.Partner), int64(t.matchedAt)}}
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
