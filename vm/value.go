package vm

import "fmt"

// ---------------------------------------------------------------------------
// StackEntry: tagged operand stack value
// ---------------------------------------------------------------------------

// EntryKind tags an operand stack entry.
type EntryKind uint8

const (
	EntryNumber   EntryKind = iota // plain int32
	EntryVariable                  // index into variable memory
	EntryString                    // offset into the string blob
)

func (k EntryKind) String() string {
	switch k {
	case EntryNumber:
		return "Number"
	case EntryVariable:
		return "Var"
	case EntryString:
		return "String"
	default:
		return fmt.Sprintf("EntryKind(%d)", uint8(k))
	}
}

// StackEntry is one operand stack slot. Value holds the number, the
// variable index or the string offset depending on Kind.
type StackEntry struct {
	Kind  EntryKind
	Value int32
}

// Number creates a number entry.
func Number(v int32) StackEntry {
	return StackEntry{Kind: EntryNumber, Value: v}
}

// Variable creates a variable reference entry.
func Variable(index uint32) StackEntry {
	return StackEntry{Kind: EntryVariable, Value: int32(index)}
}

// String creates a string reference entry.
func String(offset uint32) StackEntry {
	return StackEntry{Kind: EntryString, Value: int32(offset)}
}

// IsNumber reports whether the entry holds a plain number.
func (e StackEntry) IsNumber() bool { return e.Kind == EntryNumber }

// IsVariable reports whether the entry references a variable.
func (e StackEntry) IsVariable() bool { return e.Kind == EntryVariable }

// IsString reports whether the entry references a string.
func (e StackEntry) IsString() bool { return e.Kind == EntryString }

func (e StackEntry) String() string {
	return fmt.Sprintf("%s %d", e.Kind, e.Value)
}
