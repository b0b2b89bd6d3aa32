package bytecode

import (
	"fmt"
	"strings"
)

// Disassembler renders instructions with a game's opcode and kernel maps.
type Disassembler struct {
	Script  *Script
	OpMap   OpMap
	Kernels func(raw int32) string
}

// NewDisassembler uses the default opcode map and numeric kernel names.
func NewDisassembler(s *Script) *Disassembler {
	return &Disassembler{Script: s, OpMap: DefaultOpMap()}
}

// Disassemble returns a human-readable listing of the whole script.
func (d *Disassembler) Disassemble() string {
	var sb strings.Builder
	s := d.Script

	if s.Name != "" {
		sb.WriteString(fmt.Sprintf("; === %s ===\n", s.Name))
	}
	sb.WriteString(fmt.Sprintf("; %d instructions, %d variables, %d bytes of strings\n",
		len(s.Instructions), len(s.Variables), len(s.Strings)))

	starts := make(map[uint32][]string)
	for _, name := range s.ProcedureNames() {
		pc := s.Procedures[name]
		starts[pc] = append(starts[pc], name)
	}

	for pc := range s.Instructions {
		for _, name := range starts[uint32(pc)] {
			sb.WriteString(fmt.Sprintf("\nproc %s\n", name))
		}
		sb.WriteString(d.DisassembleInstruction(uint32(pc)))
		sb.WriteString("\n")
	}
	return sb.String()
}

// DisassembleInstruction formats the instruction at pc.
func (d *Disassembler) DisassembleInstruction(pc uint32) string {
	if int(pc) >= len(d.Script.Instructions) {
		return fmt.Sprintf("[%05d] <out of range>", pc)
	}
	in := d.Script.Instructions[pc]
	op, ok := d.OpMap.Lookup(in.Op)
	if !ok {
		return fmt.Sprintf("[%05d] %-14s %8d", pc, fmt.Sprintf("<raw %d>", in.Op), in.Arg)
	}

	line := fmt.Sprintf("[%05d] %-14s %8d", pc, op, in.Arg)
	switch {
	case op.IsJump():
		line += fmt.Sprintf("  ; -> %05d", int64(pc)+int64(in.Arg))
	case op == OpScriptCall:
		target := uint32(in.Arg - 1)
		line += fmt.Sprintf("  ; -> %05d %s", target, d.Script.ProcedureAt(target))
	case op == OpKernelCall && d.Kernels != nil:
		line += "  ; " + d.Kernels(in.Arg)
	case op == OpPushAddr && in.Arg >= 0:
		if name := d.variableName(uint32(in.Arg) / 4); name != "" {
			line += "  ; &" + name
		}
	}
	return line
}

func (d *Disassembler) variableName(idx uint32) string {
	for name, i := range d.Script.VariableNames {
		if i == idx {
			return name
		}
	}
	return ""
}

// DisassembleToLines returns the listing split into lines.
func (d *Disassembler) DisassembleToLines() []string {
	return strings.Split(strings.TrimRight(d.Disassemble(), "\n"), "\n")
}
