package bytecode

import (
	"fmt"
	"strings"
)

// Op is a canonical script operation. Script resources store raw opcode
// numbers that differ between game generations; an OpMap translates them.
type Op byte

const (
	// ========================================================================
	// Stack manipulation
	// ========================================================================

	OpNop         Op = iota // No operation
	OpDup                   // Duplicate top of stack
	OpPushAddr              // Push variable reference: arg is a byte offset into memory
	OpPushDynAddr           // Pop address, push variable or string reference
	OpPushValue             // Push number: arg
	OpDeref                 // Pop variable reference, push its value
	OpPop1                  // Discard top of stack
	OpPopN                  // Discard arg entries
	OpStore                 // Pop value, pop variable, write, push value
	OpLoadString            // Pop offset, push string reference

	// ========================================================================
	// Control flow
	// ========================================================================

	OpScriptCall  // Push return pc, jump to arg-1
	OpKernelCall  // Invoke kernel call arg
	OpJumpIfFalse // Pop, jump arg instructions from here if zero
	OpJumpIfTrue  // Pop, jump arg instructions from here if non-zero
	OpJump        // Jump arg instructions from here

	// ========================================================================
	// Arithmetic and logic
	// ========================================================================

	OpNegate
	OpBooleanNot
	OpMul
	OpAdd
	OpSub // top - next

	// ========================================================================
	// Comparison (the left operand is on top of the stack)
	// ========================================================================

	OpLess          // top < next
	OpGreater       // top > next
	OpLessEquals    // top <= next
	OpGreaterEquals // top >= next
	OpEquals
	OpNotEquals
	OpBitAnd
	OpBitOr

	// ========================================================================
	// Return
	// ========================================================================

	OpReturnValue // Pop value, pop return pc
	OpReturnVoid  // Pop return pc, push arg

	opCount
)

// OpInfo provides metadata about each operation for tracing and validation.
type OpInfo struct {
	Name      string // Human-readable name
	StackPop  int    // Entries popped (-1 = variable)
	StackPush int    // Entries pushed
	HasArg    bool   // Whether the instruction argument is meaningful
}

var opInfoTable = [opCount]OpInfo{
	OpNop:         {"Nop", 0, 0, false},
	OpDup:         {"Dup", 1, 2, false},
	OpPushAddr:    {"PushAddr", 0, 1, true},
	OpPushDynAddr: {"PushDynAddr", 1, 1, false},
	OpPushValue:   {"PushValue", 0, 1, true},
	OpDeref:       {"Deref", 1, 1, false},
	OpPop1:        {"Pop1", 1, 0, false},
	OpPopN:        {"PopN", -1, 0, true},
	OpStore:       {"Store", 2, 1, false},
	OpLoadString:  {"LoadString", 1, 1, false},

	OpScriptCall:  {"ScriptCall", 0, 0, true},
	OpKernelCall:  {"KernelCall", 0, 0, true},
	OpJumpIfFalse: {"JumpIfFalse", 1, 0, true},
	OpJumpIfTrue:  {"JumpIfTrue", 1, 0, true},
	OpJump:        {"Jump", 0, 0, true},

	OpNegate:     {"Negate", 1, 1, false},
	OpBooleanNot: {"BooleanNot", 1, 1, false},
	OpMul:        {"Mul", 2, 1, false},
	OpAdd:        {"Add", 2, 1, false},
	OpSub:        {"Sub", 2, 1, false},

	OpLess:          {"Less", 2, 1, false},
	OpGreater:       {"Greater", 2, 1, false},
	OpLessEquals:    {"LessEquals", 2, 1, false},
	OpGreaterEquals: {"GreaterEquals", 2, 1, false},
	OpEquals:        {"Equals", 2, 1, false},
	OpNotEquals:     {"NotEquals", 2, 1, false},
	OpBitAnd:        {"BitAnd", 2, 1, false},
	OpBitOr:         {"BitOr", 2, 1, false},

	OpReturnValue: {"ReturnValue", 1, 0, false},
	OpReturnVoid:  {"ReturnVoid", 0, 1, true},
}

// GetOpInfo returns metadata for an operation.
// Returns an OpInfo named "UNKNOWN(n)" if the operation is not defined.
func GetOpInfo(op Op) OpInfo {
	if op < opCount {
		return opInfoTable[op]
	}
	return OpInfo{Name: fmt.Sprintf("UNKNOWN(%d)", byte(op))}
}

// String returns the human-readable name of an operation.
func (op Op) String() string {
	return GetOpInfo(op).Name
}

// Valid reports whether op is a defined operation.
func (op Op) Valid() bool {
	return op < opCount
}

// IsJump returns true for relative jump instructions.
func (op Op) IsJump() bool {
	return op >= OpJumpIfFalse && op <= OpJump
}

// IsReturn returns true if this operation returns from a procedure.
func (op Op) IsReturn() bool {
	return op == OpReturnValue || op == OpReturnVoid
}

// IsBinary returns true for operations popping two numbers and pushing one.
func (op Op) IsBinary() bool {
	return op >= OpMul && op <= OpBitOr
}

// LookupOp finds an operation by name, ignoring case.
func LookupOp(name string) (Op, bool) {
	for op := Op(0); op < opCount; op++ {
		if strings.EqualFold(opInfoTable[op].Name, name) {
			return op, true
		}
	}
	return 0, false
}

// AllOps returns every defined operation in canonical order.
func AllOps() []Op {
	ops := make([]Op, 0, opCount)
	for op := Op(0); op < opCount; op++ {
		ops = append(ops, op)
	}
	return ops
}

// OpCount returns the number of defined operations.
func OpCount() int {
	return int(opCount)
}

// OpMap translates raw resource opcodes into canonical operations.
// The raw opcode is the index into the slice.
type OpMap []Op

// DefaultOpMap maps raw opcode n to the canonical operation n.
func DefaultOpMap() OpMap {
	return OpMap(AllOps())
}

// ParseOpMap builds a map from operation names listed in raw opcode order.
func ParseOpMap(names []string) (OpMap, error) {
	m := make(OpMap, 0, len(names))
	for i, name := range names {
		op, ok := LookupOp(name)
		if !ok {
			return nil, fmt.Errorf("opcode map entry %d: unknown operation %q", i, name)
		}
		m = append(m, op)
	}
	return m, nil
}

// Lookup returns the canonical operation for a raw opcode.
func (m OpMap) Lookup(raw int32) (Op, bool) {
	if raw < 0 || int(raw) >= len(m) {
		return 0, false
	}
	return m[raw], true
}

// Raw returns the raw opcode used for op, or -1 if op is not mapped.
func (m OpMap) Raw(op Op) int32 {
	for i, o := range m {
		if o == op {
			return int32(i)
		}
	}
	return -1
}
