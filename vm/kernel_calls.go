package vm

import (
	"strings"
	"time"

	"github.com/chazu/mummer/pkg/bytecode"
)

// kernelArgs reads kernel call arguments by position from the top of the
// operand stack without popping them.
type kernelArgs struct {
	s *Scheduler
	p *Process
	t *ScriptTask
}

func (a kernelArgs) entry(i int) StackEntry {
	if len(a.t.stack) < i+1 {
		throwf(ErrMissingArgument, "argument %d of %d", i, len(a.t.stack))
	}
	return a.t.stack[len(a.t.stack)-1-i]
}

func (a kernelArgs) number(i int) int32 {
	e := a.entry(i)
	switch e.Kind {
	case EntryNumber:
		return e.Value
	case EntryVariable:
		log.Warningf("%s: misuse of variable address as number for argument %d", a.p, i)
		return e.Value
	default:
		throwf(ErrTypeMismatch, "argument %d: expected number, found %s", i, e)
		return 0
	}
}

func (a kernelArgs) str(i int) string {
	e := a.entry(i)
	switch e.Kind {
	case EntryString:
		s, err := a.s.script.StringAt(uint32(e.Value))
		if err != nil {
			throwf(ErrBadAddress, "argument %d: %v", i, err)
		}
		return s
	case EntryVariable:
		log.Warningf("%s: misuse of variable address as string for argument %d", a.p, i)
		return ""
	default:
		throwf(ErrTypeMismatch, "argument %d: expected string, found %s", i, e)
		return ""
	}
}

// numberOrString accepts a string where only zero versus non-zero matters.
func (a kernelArgs) numberOrString(i int) int32 {
	e := a.entry(i)
	if e.Kind == EntryVariable {
		throwf(ErrTypeMismatch, "argument %d: expected number or string, found %s", i, e)
	}
	return e.Value
}

// optionalString accepts a string or the number 0 meaning "none".
func (a kernelArgs) optionalString(i int) (string, bool) {
	e := a.entry(i)
	if e.Kind == EntryNumber && e.Value == 0 {
		return "", false
	}
	if e.Kind != EntryString {
		throwf(ErrTypeMismatch, "argument %d: expected optional string, found %s", i, e)
	}
	return a.str(i), true
}

// character decodes a character argument. v1 scripts have no "none"
// value and count characters from zero.
func (a kernelArgs) character(i int) Character {
	v := a.number(i)
	n := int32(a.s.opts.Characters)
	if a.s.opts.ABI == bytecode.ABIv1 {
		if v < 0 || v >= n {
			throwf(ErrBadCharacter, "argument %d: %d", i, v)
		}
		return Character(v + 1)
	}
	if v < 0 || v > n {
		throwf(ErrBadCharacter, "argument %d: %d", i, v)
	}
	return Character(v)
}

// relatedCharacter is the character a process acts for: the active one
// under v1, the process tag otherwise.
func (s *Scheduler) relatedCharacter(p *Process) Character {
	if s.opts.ABI == bytecode.ABIv1 {
		c := s.host.ActiveCharacter()
		if c == CharacterNone {
			throwf(ErrBadCharacter, "no active character")
		}
		return c
	}
	if p.character == CharacterNone {
		throwf(ErrBadCharacter, "process is not bound to a character")
	}
	return p.character
}

// kernelCall dispatches one KernelCall instruction. Unknown indices are
// logged and answered with -1; mapped calls without a handler with 0.
func (s *Scheduler) kernelCall(p *Process, t *ScriptTask, raw int32) TaskReturn {
	call, ok := s.opts.Kernels.Lookup(raw)
	if !ok {
		log.Warningf("%s: unknown kernel call %d", p, raw)
		t.lastKernel = -1
		return Finish(-1)
	}
	t.lastKernel = raw
	log.Debugf("%d: %5d Kernel %s", p.pid, t.pc-1, call)

	h := s.host
	a := kernelArgs{s: s, p: p, t: t}
	switch call {
	case KernelNop:
		return Finish(0)

	// control
	case KernelDelay:
		ms := a.number(0)
		if ms <= 0 {
			return Finish(0)
		}
		return WaitFor(&DelayTask{Until: s.clock + time.Duration(ms)*time.Millisecond})
	case KernelSleep:
		ticks := a.number(0)
		if ticks <= 0 {
			return Finish(0)
		}
		return WaitFor(&SleepTask{Remaining: ticks})
	case KernelHadNoMousePressFor:
		seconds := int32(60)
		if s.opts.ABI != bytecode.ABIv1 {
			seconds = a.number(0)
		}
		return WaitFor(&TimerTask{Seconds: seconds})
	case KernelFork:
		s.Fork(p)
		return Finish(0)
	case KernelKillProcesses:
		s.killProcessesFor(p, a.character(0))
		return Finish(1)
	case KernelStartScript:
		var flags ProcessFlags
		if a.number(1) != 0 {
			flags |= FlagBackground
		}
		child := s.CreateProcess(p.character, a.str(0), flags)
		if child == nil {
			return Finish(0)
		}
		return Finish(int32(child.pid))
	case KernelCurrentProcess:
		return Finish(int32(p.pid))
	case KernelSyncScript:
		return WaitFor(&SyncTask{Partner: uint32(a.number(0))})

	// sound and text
	case KernelPlaySound:
		name := a.str(0)
		id, ok := h.PlaySound(name)
		if !ok {
			log.Warningf("%s: unknown sound %q", p, name)
			return Finish(0)
		}
		if a.number(1) == 0 {
			return WaitFor(&PlaySoundTask{ID: id})
		}
		return Finish(1)
	case KernelPlayMusic:
		if p.IsActiveForPlayer() {
			h.StartMusic(a.number(0))
		}
		return Finish(0)
	case KernelStopMusic:
		if p.IsActiveForPlayer() {
			h.StopMusic()
		}
		return Finish(0)
	case KernelWaitForMusicToEnd:
		log.Warningf("%s: WaitForMusicToEnd is not implemented", p)
		return Finish(0)
	case KernelShowText:
		d := time.Duration(a.number(1)) * time.Millisecond
		id := h.ShowText(a.number(0), d)
		return WaitFor(&TextTask{ID: id, Until: s.clock + d})
	case KernelSayText:
		speaker := a.str(0)
		dialogID := a.number(1)
		if strings.HasPrefix(speaker, "MENU_") {
			h.AddDialogLine(s.relatedCharacter(p), dialogID)
			return Finish(1)
		}
		id, ok := h.SayText(speaker, dialogID)
		if !ok {
			log.Warningf("%s: unknown speaker %q", p, speaker)
			return Finish(1)
		}
		return WaitFor(&TextTask{ID: id})
	case KernelSetDialogLineReturn:
		h.SetDialogLineReturn(s.relatedCharacter(p), a.number(0))
		return Finish(0)
	case KernelDialogMenu:
		return WaitFor(&DialogTask{Character: s.relatedCharacter(p)})

	// world state
	case KernelChangeCharacter:
		s.changeCharacter(p, a.character(0))
		return Finish(1)
	case KernelChangeRoom:
		room := a.str(0)
		if p.IsActiveForPlayer() && !h.ChangeRoom(room) {
			log.Warningf("%s: unknown room %q", p, room)
			return Finish(1)
		}
		// the caller still holds the character lock, so the entry
		// procedure runs without one
		s.CreateProcess(p.character, s.opts.RoomEntryPrefix+room, FlagAllowMissing|FlagBackground)
		return Finish(1)
	case KernelToggleRoomFloor:
		h.TogglePathSystem()
		return Finish(1)
	case KernelSetPathEdgeEnabled:
		index, enabled := a.number(1), a.number(2) != 0
		if a.number(0) == 0 {
			h.SetPathEdgeEnabled(index, enabled)
		} else {
			h.SetPathPolygonEnabled(index, enabled)
		}
		return Finish(1)
	case KernelOn, KernelOff:
		name := a.str(0)
		if !h.ToggleObject(p.character, name, call == KernelOn) {
			log.Warningf("%s: unknown object %q", p, name)
		}
		return Finish(0)
	case KernelAnimate:
		name := a.str(0)
		if !h.StartAnimation(p.character, name) {
			log.Warningf("%s: cannot animate unknown object %q", p, name)
			return Finish(1)
		}
		if a.numberOrString(1) != 0 {
			return Finish(1)
		}
		return WaitFor(&AnimateTask{Owner: p.character, Object: name})
	case KernelPickup:
		h.Pickup(s.relatedCharacter(p), a.str(0), a.number(1) == 0)
		return Finish(1)
	case KernelDrop:
		item, ok := a.optionalString(0)
		if ok {
			h.Drop(s.relatedCharacter(p), item)
		}
		return Finish(1)

	// actors
	case KernelStopAndTurn:
		actor := a.str(0)
		if !h.HasActor(actor) {
			log.Warningf("%s: stop-and-turn for unknown actor %q", p, actor)
			return Finish(1)
		}
		h.StopWalking(actor, a.number(1))
		return Finish(1)
	case KernelStopAndTurnMe:
		h.StopWalking(h.ActorFor(s.relatedCharacter(p)), a.number(0))
		return Finish(1)
	case KernelGo, KernelGoToNode:
		actor := a.str(0)
		if !h.HasActor(actor) {
			log.Warningf("%s: go for unknown actor %q", p, actor)
			return Finish(1)
		}
		var started bool
		if call == KernelGo {
			target := a.str(1)
			x, y, ok := h.PointOf(p.character, target)
			if !ok {
				log.Warningf("%s: go to unknown target %q", p, target)
				return Finish(0)
			}
			started = h.WalkTo(actor, x, y)
		} else {
			started = h.WalkToNode(actor, a.number(1))
		}
		if !started || a.number(2)&1 != 0 {
			return Finish(1)
		}
		return WaitFor(&ArrivalTask{Actor: actor})
	case KernelPut:
		actor, target := a.str(0), a.str(1)
		if !h.HasActor(actor) {
			log.Warningf("%s: put for unknown actor %q", p, actor)
			return Finish(1)
		}
		x, y, ok := h.PointOf(p.character, target)
		if !ok {
			log.Warningf("%s: put at unknown target %q", p, target)
			return Finish(0)
		}
		h.Put(actor, x, y)
		return Finish(1)
	case KernelPutAtNode:
		actor := a.str(0)
		if !h.PutAtNode(actor, a.number(1)) {
			log.Warningf("%s: put %q at node %d failed", p, actor, a.number(1))
		}
		return Finish(1)
	}

	log.Warningf("%s: kernel call %s has no handler", p, call)
	return Finish(0)
}

// killProcessesFor kills every process of a character, or of all
// characters for CharacterNone, and drops the caller's own lock.
func (s *Scheduler) killProcessesFor(p *Process, c Character) {
	if c == CharacterNone {
		for ch := Character(1); ch <= Character(s.opts.Characters); ch++ {
			s.killProcessesFor(p, ch)
		}
		s.KillAllFor(CharacterNone)
		return
	}
	s.KillAllFor(c)
	s.host.StopAllSounds()
	s.host.StopTexts()
	p.lock.Release()
	s.host.ResetDialog(c)
}

// changeCharacter switches the active character and moves the caller's
// lock to the new character's semaphore.
func (s *Scheduler) changeCharacter(p *Process, c Character) {
	if c != CharacterNone {
		s.host.SetActiveCharacter(c)
	}
	if s.opts.ChangeCharacterUsesGameLock {
		s.killProcessesFor(p, CharacterNone)
		c = CharacterNone
	}
	p.character = c
	p.lock.Release()
	p.lock = s.opts.Locks.SemaphoreFor(c).Acquire()
}
