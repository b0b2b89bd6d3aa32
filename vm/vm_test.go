package vm

import (
	"errors"
	"testing"
	"time"

	"github.com/chazu/mummer/pkg/bytecode"
)

const testFrame = 50 * time.Millisecond

// mockHost records what scripts asked the engine to do.
type mockHost struct {
	NullHost
	actors   map[string]bool
	points   map[string][2]int32
	walking  map[string]bool
	stopped  []string
	pressed  bool
	sounds   map[SoundID]bool
	nextID   SoundID
	toggled  map[string]bool
	rooms    map[string]bool
	entered  []string
	animated map[string]bool
}

func newMockHost() *mockHost {
	return &mockHost{
		NullHost: NullHost{Active: 1},
		actors:   map[string]bool{"HERO": true},
		points:   map[string][2]int32{"DOOR": {100, 50}},
		walking:  make(map[string]bool),
		sounds:   make(map[SoundID]bool),
		toggled:  make(map[string]bool),
		rooms:    map[string]bool{"HALL": true},
		animated: make(map[string]bool),
	}
}

func (h *mockHost) HasActor(name string) bool { return h.actors[name] }

func (h *mockHost) PointOf(_ Character, name string) (int32, int32, bool) {
	p, ok := h.points[name]
	return p[0], p[1], ok
}

func (h *mockHost) WalkTo(actor string, x, y int32) bool {
	h.walking[actor] = true
	return true
}

func (h *mockHost) IsWalking(actor string) bool { return h.walking[actor] }

func (h *mockHost) StopWalking(actor string, dir int32) {
	h.walking[actor] = false
	h.stopped = append(h.stopped, actor)
}

func (h *mockHost) WasMousePressed() bool { return h.pressed }

func (h *mockHost) PlaySound(name string) (SoundID, bool) {
	if name == "" {
		return 0, false
	}
	h.nextID++
	h.sounds[h.nextID] = true
	return h.nextID, true
}

func (h *mockHost) IsSoundPlaying(id SoundID) bool { return h.sounds[id] }
func (h *mockHost) StopSound(id SoundID) { h.sounds[id] = false }

func (h *mockHost) ToggleObject(_ Character, name string, on bool) bool {
	h.toggled[name] = on
	return true
}

func (h *mockHost) StartAnimation(_ Character, name string) bool {
	h.animated[name] = true
	return true
}

func (h *mockHost) IsAnimating(_ Character, name string) bool { return h.animated[name] }

func (h *mockHost) ChangeRoom(name string) bool {
	h.entered = append(h.entered, name)
	return h.rooms[name]
}

func assemble(t *testing.T, abi bytecode.ABI, src string) *bytecode.Script {
	t.Helper()
	s, err := bytecode.Assemble("test", src, bytecode.AsmOptions{ABI: abi, Kernels: DefaultKernelMap().Resolver()})
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	return s
}

func newTestScheduler(t *testing.T, abi bytecode.ABI, src string) (*Scheduler, *mockHost) {
	t.Helper()
	host := newMockHost()
	return NewScheduler(assemble(t, abi, src), host, Options{ABI: abi}), host
}

func tickN(t *testing.T, s *Scheduler, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if err := s.Tick(testFrame); err != nil {
			t.Fatalf("Tick %d failed: %v", s.TickCount(), err)
		}
	}
}

func mustVar(t *testing.T, s *Scheduler, name string) int32 {
	t.Helper()
	v, ok := s.Script().Variable(name)
	if !ok {
		t.Fatalf("variable %q not declared", name)
	}
	return v
}

func start(t *testing.T, s *Scheduler, c Character, proc string) *Process {
	t.Helper()
	p := s.CreateProcess(c, proc, 0)
	if p == nil {
		t.Fatalf("CreateProcess(%d, %q) returned nil", c, proc)
	}
	return p
}

// ---------------------------------------------------------------------------
// Interpreter
// ---------------------------------------------------------------------------

func TestVMBinaryOperandOrder(t *testing.T) {
	tests := []struct {
		op   string
		want int32
	}{
		{"Sub", -2},
		{"Add", 8},
		{"Mul", 15},
		{"Less", 1},
		{"Greater", 0},
		{"LessEquals", 1},
		{"GreaterEquals", 0},
		{"Equals", 0},
		{"NotEquals", 1},
		{"BitAnd", 1},
		{"BitOr", 7},
	}

	for _, tt := range tests {
		t.Run(tt.op, func(t *testing.T) {
			src := `
.var result
proc MAIN
    PushAddr &result
    PushValue 5
    PushValue 3
    ` + tt.op + `
    Store
    Pop1
    ReturnVoid
`
			s, _ := newTestScheduler(t, bytecode.ABIv3, src)
			start(t, s, 1, "MAIN")
			tickN(t, s, 1)
			if got := mustVar(t, s, "result"); got != tt.want {
				t.Errorf("5 %s 3 pushed in order gave %d, want %d", tt.op, got, tt.want)
			}
			if s.Len() != 0 {
				t.Errorf("process should have finished, %d live", s.Len())
			}
		})
	}
}

func TestVMStoreIsAnExpression(t *testing.T) {
	s, _ := newTestScheduler(t, bytecode.ABIv3, `
.var a
.var b
proc MAIN
    PushAddr &a
    PushAddr &b
    PushValue 7
    Store
    Store
    Pop1
    ReturnVoid
`)
	start(t, s, 1, "MAIN")
	tickN(t, s, 1)
	if a, b := mustVar(t, s, "a"), mustVar(t, s, "b"); a != 7 || b != 7 {
		t.Errorf("a, b = %d, %d; want 7, 7", a, b)
	}
}

func TestVMUnaryAndJumps(t *testing.T) {
	s, _ := newTestScheduler(t, bytecode.ABIv3, `
.var count
.var neg
.var not
proc MAIN
loop:
    PushAddr &count
    Deref
    PushValue 3
    Less
    JumpIfFalse done
    PushAddr &count
    PushAddr &count
    Deref
    PushValue 1
    Add
    Store
    Pop1
    Jump loop
done:
    PushAddr &neg
    PushValue 4
    Negate
    Store
    Pop1
    PushAddr &not
    PushValue 0
    BooleanNot
    Store
    Pop1
    ReturnVoid
`)
	start(t, s, 1, "MAIN")
	tickN(t, s, 1)
	if got := mustVar(t, s, "count"); got != 3 {
		t.Errorf("count = %d, want 3", got)
	}
	if got := mustVar(t, s, "neg"); got != -4 {
		t.Errorf("neg = %d, want -4", got)
	}
	if got := mustVar(t, s, "not"); got != 1 {
		t.Errorf("not = %d, want 1", got)
	}
}

func TestVMScriptCallReturnValue(t *testing.T) {
	s, _ := newTestScheduler(t, bytecode.ABIv3, `
.var r
proc MAIN
    PushAddr &r
    ScriptCall twice
    Store
    Pop1
    ReturnVoid
twice:
    PushValue 21
    Dup
    Add
    ReturnValue
`)
	start(t, s, 1, "MAIN")
	tickN(t, s, 1)
	if got := mustVar(t, s, "r"); got != 42 {
		t.Errorf("r = %d, want 42", got)
	}
}

func TestVMFinishValue(t *testing.T) {
	s, _ := newTestScheduler(t, bytecode.ABIv3, `
proc MAIN
    PushValue 9
    ReturnValue
`)
	p := start(t, s, 1, "MAIN")
	tickN(t, s, 1)
	if p.Status() != ProcessFinished || p.ReturnValue() != 9 {
		t.Errorf("status %s value %d, want Finished 9", p.Status(), p.ReturnValue())
	}
}

func TestVMFatalErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want error
		pc   uint32
	}{
		{"pop empty", "proc MAIN\n    Pop1\n", ErrStackUnderflow, 0},
		{"pc out of range", "proc MAIN\n    PushValue 1\n", ErrPCOutOfRange, 1},
		{"string as number", ".string s \"x\"\nproc MAIN\n    PushValue @s\n    LoadString\n    Negate\n", ErrTypeMismatch, 2},
		{"bad variable offset", ".var v\nproc MAIN\n    PushAddr 2\n", ErrBadAddress, 0},
		{"popn too many", "proc MAIN\n    PushValue 1\n    PopN 2\n", ErrStackUnderflow, 1},
		{"missing popn", "proc MAIN\n    KernelCall Nop\n    ReturnVoid\n", ErrMissingPopN, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestScheduler(t, bytecode.ABIv3, tt.src)
			start(t, s, 1, "MAIN")
			err := s.Tick(testFrame)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Expected %v, got %v", tt.want, err)
			}
			var se *ScriptError
			if !errors.As(err, &se) {
				t.Fatalf("Expected *ScriptError, got %T", err)
			}
			if se.PC != tt.pc || se.Procedure != "MAIN" {
				t.Errorf("error context pc %d in %q, want pc %d in MAIN", se.PC, se.Procedure, tt.pc)
			}
		})
	}
}

func TestVMRecoverableInput(t *testing.T) {
	script := assemble(t, bytecode.ABIv3, `
.var a
.var b
.var k
proc MAIN
    PushAddr &a
    PushAddr &b
    PushValue 10
    Add
    Store
    Pop1
    PushAddr &k
    KernelCall 999
    PopN 0
    Store
    Pop1
    ReturnVoid
`)
	// splice an unknown raw opcode in front of the final return
	last := script.Instructions[len(script.Instructions)-1]
	script.Instructions[len(script.Instructions)-1] = bytecode.Instruction{Op: 77, Arg: 0}
	script.Instructions = append(script.Instructions, last)

	s := NewScheduler(script, newMockHost(), Options{})
	start(t, s, 1, "MAIN")
	tickN(t, s, 1)

	// &b used as a number yields its index
	if got := mustVar(t, s, "a"); got != 11 {
		t.Errorf("a = %d, want 11", got)
	}
	if got := mustVar(t, s, "k"); got != -1 {
		t.Errorf("unknown kernel call returned %d, want -1", got)
	}
	if s.Len() != 0 {
		t.Error("script should run past the unknown opcode and finish")
	}
}

func TestVMReturnWithEmptyCallStack(t *testing.T) {
	s, _ := newTestScheduler(t, bytecode.ABIv3, `
proc MAIN
    ReturnVoid 5
`)
	p := start(t, s, 1, "MAIN")
	tickN(t, s, 1)
	if p.Status() != ProcessFinished || p.ReturnValue() != 0 {
		t.Errorf("ReturnVoid at depth zero: %s %d", p.Status(), p.ReturnValue())
	}
}

func TestCallStackStartsWithSentinel(t *testing.T) {
	task := newScriptTask(0)
	if got := task.CallStack(); len(got) != 1 || got[0] != callSentinel {
		t.Fatalf("fresh call stack = %v, want only the sentinel", got)
	}
	if pc := task.popCall(nil); pc != callSentinel {
		t.Errorf("top level return went to %d", pc)
	}
	if len(task.CallStack()) != 0 {
		t.Error("sentinel was not consumed")
	}
}

// ---------------------------------------------------------------------------
// Kernel call ABI
// ---------------------------------------------------------------------------

func TestKernelReturnABI(t *testing.T) {
	src := `
.var r
.var pid
proc MAIN
    PushAddr &r
    PushValue 0
    kcall Delay 1
    PushValue 5
    Add
    Store
    Pop1
    PushAddr &pid
    kcall CurrentProcess 0
    Store
    Pop1
    ReturnVoid
`
	for _, abi := range []bytecode.ABI{bytecode.ABIv1, bytecode.ABIv3} {
		t.Run(abi.String(), func(t *testing.T) {
			s, _ := newTestScheduler(t, abi, src)
			p := start(t, s, 1, "MAIN")
			tickN(t, s, 1)
			if got := mustVar(t, s, "r"); got != 5 {
				t.Errorf("r = %d, want 5", got)
			}
			if got := mustVar(t, s, "pid"); got != int32(p.PID()) {
				t.Errorf("pid = %d, want %d", got, p.PID())
			}
		})
	}
}

func TestCharacterVariables(t *testing.T) {
	src := `
.var m_o_f
.var m_o_f_real
proc MAIN
    ReturnVoid
`
	s, host := newTestScheduler(t, bytecode.ABIv3, src)
	host.Active = 1
	start(t, s, 2, "MAIN")
	tickN(t, s, 1)
	if a, b := mustVar(t, s, "m_o_f"), mustVar(t, s, "m_o_f_real"); a != 2 || b != 1 {
		t.Errorf("v3 m_o_f, m_o_f_real = %d, %d; want 2, 1", a, b)
	}

	s, host = newTestScheduler(t, bytecode.ABIv1, src)
	host.Active = 2
	start(t, s, 2, "MAIN")
	tickN(t, s, 1)
	if got := mustVar(t, s, "m_o_f"); got != 1 {
		t.Errorf("v1 m_o_f = %d, want 1", got)
	}
}

func TestMissingCharacterVariablesAreReported(t *testing.T) {
	s, _ := newTestScheduler(t, bytecode.ABIv3, `
.var m_o_f
proc MAIN
    ReturnVoid
`)
	start(t, s, 1, "MAIN")
	tickN(t, s, 1)
	if !s.missingVars["m_o_f_real"] {
		t.Error("missing m_o_f_real was not reported")
	}
	if s.missingVars["m_o_f"] {
		t.Error("declared m_o_f reported as missing")
	}
}

// ---------------------------------------------------------------------------
// Sub-tasks
// ---------------------------------------------------------------------------

func TestDelayCountsElapsedTime(t *testing.T) {
	s, _ := newTestScheduler(t, bytecode.ABIv3, `
proc MAIN
    PushValue 100
    kcall Delay 1
    ReturnVoid
`)
	p := start(t, s, 1, "MAIN")
	tickN(t, s, 1)
	if p.Status() != ProcessWaiting {
		t.Fatalf("after tick 1: %s, want WaitingOnSubTask", p.Status())
	}
	tickN(t, s, 1)
	if p.Status() != ProcessWaiting {
		t.Fatalf("after tick 2: %s, want WaitingOnSubTask", p.Status())
	}
	tickN(t, s, 1)
	if p.Status() != ProcessFinished {
		t.Fatalf("after tick 3: %s, want Finished", p.Status())
	}
}

func TestSleepCountsTicks(t *testing.T) {
	s, _ := newTestScheduler(t, bytecode.ABIv3, `
proc MAIN
    PushValue 3
    kcall Sleep 1
    ReturnVoid
`)
	p := start(t, s, 1, "MAIN")
	tickN(t, s, 3)
	if p.Status() != ProcessWaiting {
		t.Fatalf("after 3 ticks: %s", p.Status())
	}
	tickN(t, s, 1)
	if p.Status() != ProcessFinished {
		t.Fatalf("after 4 ticks: %s", p.Status())
	}
}

func TestHadNoMousePressFor(t *testing.T) {
	src := `
.var r
proc MAIN
    PushAddr &r
    PushValue 1
    kcall HadNoMousePressFor 1
    Store
    Pop1
    ReturnVoid
`
	s, host := newTestScheduler(t, bytecode.ABIv3, src)
	s.Script().SetVariable("r", 99)
	start(t, s, 1, "MAIN")
	tickN(t, s, 1)
	if got := mustVar(t, s, "r"); got != 99 {
		t.Fatalf("timer answered in the same tick: %d", got)
	}
	tickN(t, s, 1)
	if got := mustVar(t, s, "r"); got != 2 {
		t.Errorf("no press within time: %d, want 2", got)
	}

	host.pressed = true
	start(t, s, 1, "MAIN")
	tickN(t, s, 2)
	if got := mustVar(t, s, "r"); got != 0 {
		t.Errorf("pressed: %d, want 0", got)
	}

	host.pressed = false
	tickN(t, s, 40)
	start(t, s, 1, "MAIN")
	tickN(t, s, 2)
	if got := mustVar(t, s, "r"); got != 1 {
		t.Errorf("expired: %d, want 1", got)
	}
	if s.timerSet {
		t.Error("expiry should reset the shared timer")
	}
}

func TestPlaySoundWaitsUntilStopped(t *testing.T) {
	s, host := newTestScheduler(t, bytecode.ABIv3, `
.string boom "boom"
proc MAIN
    PushValue 0
    PushValue @boom
    kcall PlaySound 2
    ReturnVoid
`)
	p := start(t, s, 1, "MAIN")
	tickN(t, s, 2)
	if p.Status() != ProcessWaiting {
		t.Fatalf("status %s, want WaitingOnSubTask", p.Status())
	}
	host.sounds[1] = false
	tickN(t, s, 1)
	if p.Status() != ProcessFinished {
		t.Fatalf("status %s, want Finished", p.Status())
	}
}

func TestGoWaitsForArrival(t *testing.T) {
	src := `
.string hero "HERO"
.string door "DOOR"
.var r
proc MAIN
    PushAddr &r
    PushValue 0
    PushValue @door
    PushValue @hero
    kcall Go 3
    Store
    Pop1
    ReturnVoid
`
	s, host := newTestScheduler(t, bytecode.ABIv3, src)
	p := start(t, s, 1, "MAIN")
	tickN(t, s, 3)
	if p.Status() != ProcessWaiting || !host.walking["HERO"] {
		t.Fatalf("status %s walking %v", p.Status(), host.walking["HERO"])
	}
	host.walking["HERO"] = false
	tickN(t, s, 1)
	if p.Status() != ProcessFinished || mustVar(t, s, "r") != 1 {
		t.Errorf("after arrival: %s r=%d", p.Status(), mustVar(t, s, "r"))
	}
}

func TestKillCancelsSubTasks(t *testing.T) {
	s, host := newTestScheduler(t, bytecode.ABIv3, `
.string hero "HERO"
.string door "DOOR"
proc MAIN
    PushValue 0
    PushValue @door
    PushValue @hero
    kcall Go 3
    ReturnVoid
`)
	p := start(t, s, 1, "MAIN")
	tickN(t, s, 1)
	s.KillAllFor(CharacterNone)
	if p.Status() != ProcessFinished {
		t.Fatalf("killed process status %s", p.Status())
	}
	if len(host.stopped) != 1 || host.walking["HERO"] {
		t.Errorf("kill should stop the walk, stopped=%v", host.stopped)
	}
	if p.HasLock() {
		t.Error("killed process still holds its lock")
	}
	tickN(t, s, 1)
	if s.Len() != 0 {
		t.Errorf("killed process not reclaimed, %d live", s.Len())
	}
}

func TestObjectToggleAndRoomChange(t *testing.T) {
	s, host := newTestScheduler(t, bytecode.ABIv3, `
.string lamp "LAMP"
.string hall "HALL"
.var entered
proc MAIN
    PushValue @lamp
    kcall On 1
    Pop1
    PushValue @hall
    kcall ChangeRoom 1
    Pop1
    ReturnVoid
proc ENTRAR_HALL
    PushAddr &entered
    PushValue 1
    Store
    Pop1
    ReturnVoid
`)
	start(t, s, CharacterNone, "MAIN")
	tickN(t, s, 1)
	if !host.toggled["LAMP"] {
		t.Error("On did not toggle LAMP")
	}
	if len(host.entered) != 1 || host.entered[0] != "HALL" {
		t.Errorf("rooms entered: %v", host.entered)
	}
	tickN(t, s, 1)
	if got := mustVar(t, s, "entered"); got != 1 {
		t.Errorf("room entry procedure did not run")
	}
}
