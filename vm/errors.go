package vm

import (
	"errors"
	"fmt"
)

// Fatal interpreter errors. They abort the game session.
var (
	ErrPCOutOfRange    = errors.New("program counter out of range")
	ErrStackUnderflow  = errors.New("operand stack underflow")
	ErrTypeMismatch    = errors.New("operand has the wrong type")
	ErrBadAddress      = errors.New("invalid variable or string address")
	ErrMissingArgument = errors.New("kernel call argument missing")
	ErrMissingPopN     = errors.New("kernel call is not followed by PopN")
	ErrBadCharacter    = errors.New("invalid character")
	ErrUnknownTaskKind = errors.New("unknown task kind")
)

// ScriptError carries the diagnostic context of a fatal interpreter error.
type ScriptError struct {
	PID       uint32
	Process   string
	Procedure string
	PC        uint32
	Op        string
	Err       error
}

func (e *ScriptError) Error() string {
	return fmt.Sprintf("process %d (%s) in %s at pc %d [%s]: %v",
		e.PID, e.Process, e.Procedure, e.PC, e.Op, e.Err)
}

func (e *ScriptError) Unwrap() error {
	return e.Err
}
