package bytecode

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ABI identifies the kernel-call calling convention of a script generation.
type ABI uint8

const (
	// ABIv1 pops a fixed, per-kernel-call argument count after the call returns.
	ABIv1 ABI = 1
	// ABIv3 relies on a PopN instruction emitted right after every KernelCall.
	ABIv3 ABI = 3
)

// String returns "v1" or "v3".
func (a ABI) String() string {
	switch a {
	case ABIv1:
		return "v1"
	case ABIv3:
		return "v3"
	default:
		return fmt.Sprintf("abi(%d)", uint8(a))
	}
}

// ParseABI accepts "v1", "v3", "1" or "3".
func ParseABI(s string) (ABI, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "v1", "1":
		return ABIv1, nil
	case "v3", "3":
		return ABIv3, nil
	}
	return 0, fmt.Errorf("unknown script abi %q", s)
}

// Instruction is one raw (opcode, argument) pair as stored in a resource.
type Instruction struct {
	Op  int32
	Arg int32
}

// ErrUnknownProcedure is returned when a procedure name is not defined.
var ErrUnknownProcedure = errors.New("unknown procedure")

// Script is a loaded script resource: the flat instruction table shared by
// all procedures, the string blob, and the variable memory.
//
// Instructions, strings and procedure offsets never change after load.
// Variables are the mutable world state scripts read and write.
type Script struct {
	Name          string
	Instructions  []Instruction
	Strings       []byte
	Variables     []int32
	VariableNames map[string]uint32 // name -> variable index
	Procedures    map[string]uint32 // name -> entry pc (zero-based)
}

// NewScript creates an empty script resource.
func NewScript(name string) *Script {
	return &Script{
		Name:          name,
		VariableNames: make(map[string]uint32),
		Procedures:    make(map[string]uint32),
	}
}

// Procedure returns the entry pc of a procedure.
func (s *Script) Procedure(name string) (uint32, bool) {
	pc, ok := s.Procedures[name]
	return pc, ok
}

// HasProcedure reports whether behavior/action is defined.
func (s *Script) HasProcedure(behavior, action string) bool {
	_, ok := s.Procedures[behavior+"/"+action]
	return ok
}

// ProcedureNames returns all procedure names sorted by entry pc.
func (s *Script) ProcedureNames() []string {
	names := make([]string, 0, len(s.Procedures))
	for name := range s.Procedures {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		pi, pj := s.Procedures[names[i]], s.Procedures[names[j]]
		if pi != pj {
			return pi < pj
		}
		return names[i] < names[j]
	})
	return names
}

// ProcedureAt returns the name of the procedure containing pc.
func (s *Script) ProcedureAt(pc uint32) string {
	best := ""
	var bestPC uint32
	for _, name := range s.ProcedureNames() {
		start := s.Procedures[name]
		if start <= pc && (best == "" || start >= bestPC) {
			best, bestPC = name, start
		}
	}
	return best
}

// StringAt reads the NUL-terminated string starting at a blob offset.
func (s *Script) StringAt(offset uint32) (string, error) {
	if int(offset) >= len(s.Strings) {
		return "", fmt.Errorf("string offset %d out of range (blob size %d)", offset, len(s.Strings))
	}
	end := bytes.IndexByte(s.Strings[offset:], 0)
	if end < 0 {
		return string(s.Strings[offset:]), nil
	}
	return string(s.Strings[offset : int(offset)+end]), nil
}

// VariableIndex looks up a named variable.
func (s *Script) VariableIndex(name string) (uint32, bool) {
	idx, ok := s.VariableNames[name]
	return idx, ok
}

// Variable returns the value of a named variable, or 0 and false if it
// does not exist.
func (s *Script) Variable(name string) (int32, bool) {
	idx, ok := s.VariableNames[name]
	if !ok || int(idx) >= len(s.Variables) {
		return 0, false
	}
	return s.Variables[idx], true
}

// SetVariable writes a named variable. Unknown names are ignored and
// reported with false.
func (s *Script) SetVariable(name string, value int32) bool {
	idx, ok := s.VariableNames[name]
	if !ok || int(idx) >= len(s.Variables) {
		return false
	}
	s.Variables[idx] = value
	return true
}

// AddVariable declares a variable and returns its index. Declaring an
// existing name returns the existing index.
func (s *Script) AddVariable(name string) uint32 {
	if idx, ok := s.VariableNames[name]; ok {
		return idx
	}
	idx := uint32(len(s.Variables))
	s.Variables = append(s.Variables, 0)
	s.VariableNames[name] = idx
	return idx
}

// AddString appends a NUL-terminated string to the blob and returns its offset.
func (s *Script) AddString(str string) uint32 {
	offset := uint32(len(s.Strings))
	s.Strings = append(s.Strings, str...)
	s.Strings = append(s.Strings, 0)
	return offset
}

// AddProcedure registers a procedure entry point.
func (s *Script) AddProcedure(name string, pc uint32) {
	s.Procedures[name] = pc
}

// Emit appends an instruction using the default opcode numbering and
// returns its pc.
func (s *Script) Emit(op Op, arg int32) uint32 {
	s.Instructions = append(s.Instructions, Instruction{Op: int32(op), Arg: arg})
	return uint32(len(s.Instructions) - 1)
}

// CodeLen returns the number of instructions.
func (s *Script) CodeLen() int {
	return len(s.Instructions)
}

// MemorySize returns the variable memory size in bytes.
func (s *Script) MemorySize() int {
	return len(s.Variables) * 4
}

// SnapshotVariables returns a copy of the variable memory.
func (s *Script) SnapshotVariables() []int32 {
	out := make([]int32, len(s.Variables))
	copy(out, s.Variables)
	return out
}

// RestoreVariables overwrites variable memory. The length must match.
func (s *Script) RestoreVariables(values []int32) error {
	if len(values) != len(s.Variables) {
		return fmt.Errorf("variable memory size mismatch: have %d, restoring %d", len(s.Variables), len(values))
	}
	copy(s.Variables, values)
	return nil
}
