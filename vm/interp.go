package vm

import (
	"fmt"

	"github.com/chazu/mummer/pkg/bytecode"
)

// callSentinel sits at the bottom of every call stack; returning to it
// ends the script.
const callSentinel = ^uint32(0)

// fault carries a fatal error out of deeply nested stack helpers. It is
// recovered in ScriptTask.Run and never escapes the package.
type fault struct {
	err error
}

func throwf(base error, format string, args ...any) {
	panic(fault{fmt.Errorf("%w: "+format, append([]any{base}, args...)...)})
}

// ScriptTask interprets bytecode for one process. All execution state
// lives here so many processes can run the same procedure.
type ScriptTask struct {
	pc                uint32
	stack             []StackEntry
	calls             []uint32
	lastKernel        int32
	returnsFromKernel bool
	firstExecution    bool
}

func newScriptTask(pc uint32) *ScriptTask {
	return &ScriptTask{pc: pc, calls: []uint32{callSentinel}, firstExecution: true}
}

// Kind implements Task.
func (t *ScriptTask) Kind() string { return "script" }

// PC returns the index of the next instruction.
func (t *ScriptTask) PC() uint32 { return t.pc }

// Stack returns a copy of the operand stack, bottom first.
func (t *ScriptTask) Stack() []StackEntry {
	return append([]StackEntry(nil), t.stack...)
}

// CallStack returns a copy of the return address stack.
func (t *ScriptTask) CallStack() []uint32 {
	return append([]uint32(nil), t.calls...)
}

// fork copies the execution state for a forked process.
func (t *ScriptTask) fork() *ScriptTask {
	return &ScriptTask{
		pc:             t.pc,
		stack:          append([]StackEntry(nil), t.stack...),
		calls:          append([]uint32(nil), t.calls...),
		lastKernel:     t.lastKernel,
		firstExecution: true,
	}
}

// Run implements Task. It executes instructions until a kernel call has
// to wait or the outermost procedure returns.
func (t *ScriptTask) Run(p *Process) (ret TaskReturn, err error) {
	s := p.sched
	pc := t.pc
	opName := "-"
	defer func() {
		if r := recover(); r != nil {
			f, ok := r.(fault)
			if !ok {
				panic(r)
			}
			err = &ScriptError{
				PID:       p.pid,
				Process:   p.name,
				Procedure: s.script.ProcedureAt(pc),
				PC:        pc,
				Op:        opName,
				Err:       f.err,
			}
		}
	}()

	if t.firstExecution || t.returnsFromKernel {
		s.setCharacterVariables(p)
	}
	if t.returnsFromKernel {
		opName = bytecode.OpKernelCall.String()
		t.returnsFromKernel = false
		t.kernelReturn(s, p.returnValue)
	}
	t.firstExecution = false

	code := s.script.Instructions
	vars := s.script.Variables
	for {
		pc = t.pc
		if int(t.pc) >= len(code) {
			throwf(ErrPCOutOfRange, "pc %d, %d instructions", t.pc, len(code))
		}
		in := code[t.pc]
		t.pc++

		op, ok := s.opts.OpMap.Lookup(in.Op)
		if !ok {
			log.Warningf("%s: unknown opcode %d at %d", p, in.Op, pc)
			continue
		}
		opName = op.String()
		if s.opts.Trace {
			log.Infof("%d: %5d %-14s %8d Stack: %s", p.pid, pc, opName, in.Arg, t.describeTop(s))
		}

		switch op {
		case bytecode.OpNop:
		case bytecode.OpDup:
			if len(t.stack) == 0 {
				throwf(ErrStackUnderflow, "dup on empty stack")
			}
			t.push(t.stack[len(t.stack)-1])
		case bytecode.OpPushAddr:
			t.pushVariable(s, in.Arg)
		case bytecode.OpPushDynAddr:
			addr := t.popNumber(p)
			switch {
			case addr < 0 || int(addr) >= len(s.script.Strings):
				throwf(ErrBadAddress, "dynamic address %d", addr)
			case int(addr) < len(vars)*4:
				t.pushVariable(s, addr)
			default:
				t.pushString(s, addr)
			}
		case bytecode.OpPushValue:
			t.push(Number(in.Arg))
		case bytecode.OpDeref:
			t.push(Number(vars[t.popVariable()]))
		case bytecode.OpPop1:
			t.popN(1)
		case bytecode.OpPopN:
			t.popN(in.Arg)
		case bytecode.OpStore:
			v := t.popNumber(p)
			vars[t.popVariable()] = v
			t.push(Number(v))
		case bytecode.OpLoadString:
			t.pushString(s, t.popNumber(p))

		case bytecode.OpScriptCall:
			t.calls = append(t.calls, t.pc)
			t.pc = uint32(in.Arg - 1)
		case bytecode.OpKernelCall:
			kr := s.kernelCall(p, t, in.Arg)
			if kr.Kind == ReturnWaiting {
				t.returnsFromKernel = true
				return kr, nil
			}
			t.kernelReturn(s, kr.Value)
		case bytecode.OpJumpIfFalse:
			if t.popNumber(p) == 0 {
				t.jump(in.Arg)
			}
		case bytecode.OpJumpIfTrue:
			if t.popNumber(p) != 0 {
				t.jump(in.Arg)
			}
		case bytecode.OpJump:
			t.jump(in.Arg)

		case bytecode.OpNegate:
			t.push(Number(-t.popNumber(p)))
		case bytecode.OpBooleanNot:
			t.push(Number(b2i(t.popNumber(p) == 0)))
		case bytecode.OpMul:
			t.push(Number(t.popNumber(p) * t.popNumber(p)))
		case bytecode.OpAdd:
			t.push(Number(t.popNumber(p) + t.popNumber(p)))

		// the right operand is pushed first, so the top of stack is the left one
		case bytecode.OpSub:
			a, b := t.popPair(p)
			t.push(Number(a - b))
		case bytecode.OpLess:
			a, b := t.popPair(p)
			t.push(Number(b2i(a < b)))
		case bytecode.OpGreater:
			a, b := t.popPair(p)
			t.push(Number(b2i(a > b)))
		case bytecode.OpLessEquals:
			a, b := t.popPair(p)
			t.push(Number(b2i(a <= b)))
		case bytecode.OpGreaterEquals:
			a, b := t.popPair(p)
			t.push(Number(b2i(a >= b)))
		case bytecode.OpEquals:
			a, b := t.popPair(p)
			t.push(Number(b2i(a == b)))
		case bytecode.OpNotEquals:
			a, b := t.popPair(p)
			t.push(Number(b2i(a != b)))
		case bytecode.OpBitAnd:
			a, b := t.popPair(p)
			t.push(Number(a & b))
		case bytecode.OpBitOr:
			a, b := t.popPair(p)
			t.push(Number(a | b))

		case bytecode.OpReturnVoid:
			t.pc = t.popCall(p)
			t.push(Number(in.Arg))
			if t.pc == callSentinel {
				return Finish(0), nil
			}
		case bytecode.OpReturnValue:
			v := t.popNumber(p)
			t.pc = t.popCall(p)
			if t.pc == callSentinel {
				return Finish(v), nil
			}
			t.push(Number(v))

		default:
			log.Warningf("%s: unhandled operation %s at %d", p, op, pc)
		}
	}
}

// kernelReturn removes the kernel call arguments and pushes its result.
// v3 scripts carry a PopN right after every KernelCall; v1 scripts pop a
// fixed count per call.
func (t *ScriptTask) kernelReturn(s *Scheduler, value int32) {
	if s.opts.ABI == bytecode.ABIv1 {
		t.popN(int32(s.opts.Kernels.ArgCount(t.lastKernel)))
	} else {
		code := s.script.Instructions
		if int(t.pc) >= len(code) {
			throwf(ErrMissingPopN, "script ends after kernel call")
		}
		next := code[t.pc]
		if op, ok := s.opts.OpMap.Lookup(next.Op); !ok || op != bytecode.OpPopN {
			throwf(ErrMissingPopN, "found raw opcode %d", next.Op)
		}
		t.popN(next.Arg)
		t.pc++
	}
	t.push(Number(value))
}

func (t *ScriptTask) jump(arg int32) {
	target := int64(t.pc) - 1 + int64(arg)
	if target < 0 {
		throwf(ErrPCOutOfRange, "jump to %d", target)
	}
	t.pc = uint32(target)
}

// ---------------------------------------------------------------------------
// Stack helpers
// ---------------------------------------------------------------------------

func (t *ScriptTask) push(e StackEntry) {
	t.stack = append(t.stack, e)
}

func (t *ScriptTask) pushVariable(s *Scheduler, offset int32) {
	index := offset / 4
	if offset < 0 || offset%4 != 0 || int(index) >= len(s.script.Variables) {
		throwf(ErrBadAddress, "variable offset %d", offset)
	}
	t.push(Variable(uint32(index)))
}

func (t *ScriptTask) pushString(s *Scheduler, offset int32) {
	if offset < 0 || int(offset) >= len(s.script.Strings) {
		throwf(ErrBadAddress, "string offset %d", offset)
	}
	t.push(String(uint32(offset)))
}

func (t *ScriptTask) pop() StackEntry {
	if len(t.stack) == 0 {
		throwf(ErrStackUnderflow, "pop on empty stack")
	}
	e := t.stack[len(t.stack)-1]
	t.stack = t.stack[:len(t.stack)-1]
	return e
}

// popNumber accepts a variable reference and yields its index.
func (t *ScriptTask) popNumber(p *Process) int32 {
	e := t.pop()
	switch e.Kind {
	case EntryNumber:
		return e.Value
	case EntryVariable:
		log.Warningf("%s: misuse of variable address as number at %d", p, t.pc-1)
		return e.Value
	default:
		throwf(ErrTypeMismatch, "expected number, found %s", e)
		return 0
	}
}

// popPair pops the top entry, then the one below it.
func (t *ScriptTask) popPair(p *Process) (top, next int32) {
	top = t.popNumber(p)
	next = t.popNumber(p)
	return top, next
}

func (t *ScriptTask) popVariable() int32 {
	e := t.pop()
	if e.Kind != EntryVariable {
		throwf(ErrTypeMismatch, "expected variable, found %s", e)
	}
	return e.Value
}

func (t *ScriptTask) popN(n int32) {
	if n < 0 || int(n) > len(t.stack) {
		throwf(ErrStackUnderflow, "pop %d of %d entries", n, len(t.stack))
	}
	t.stack = t.stack[:len(t.stack)-int(n)]
}

func (t *ScriptTask) popCall(p *Process) uint32 {
	if len(t.calls) == 0 {
		log.Warningf("%s: return below the call stack", p)
		return callSentinel
	}
	pc := t.calls[len(t.calls)-1]
	t.calls = t.calls[:len(t.calls)-1]
	return pc
}

func (t *ScriptTask) describeTop(s *Scheduler) string {
	if len(t.stack) == 0 {
		return "empty"
	}
	top := t.stack[len(t.stack)-1]
	switch top.Kind {
	case EntryVariable:
		if int(top.Value) < len(s.script.Variables) {
			return fmt.Sprintf("Var %d (%d)", top.Value, s.script.Variables[top.Value])
		}
	case EntryString:
		str, _ := s.script.StringAt(uint32(top.Value))
		return fmt.Sprintf("String %d (%q)", top.Value, str)
	}
	return top.String()
}

func b2i(b bool) int32 {
	if b {
		return 1
	}
	return 0
}
