package bytecode

import (
	"fmt"
	"strconv"
	"strings"
)

// KernelResolver maps a kernel call name to its raw index.
type KernelResolver func(name string) (int32, bool)

// AsmOptions configures Assemble.
type AsmOptions struct {
	ABI     ABI
	Kernels KernelResolver
}

// Assemble builds a script resource from assembly text.
//
//	; comment
//	.var score                 ; declare a variable
//	.string hello "Hi there"   ; declare a string
//	proc MAIN                  ; procedure entry (behavior/action allowed)
//	loop:                      ; label
//	    PushAddr &score        ; &name = variable byte offset
//	    PushValue @hello       ; @name = string blob offset
//	    JumpIfFalse loop       ; labels resolve to relative offsets
//	    ScriptCall helper      ; absolute target for calls
//	    kcall Delay 1          ; KernelCall plus PopN 1 under the v3 abi
//
// The string blob starts with one zeroed word per variable so that
// PushDynAddr can tell variable addresses from string offsets.
func Assemble(name, src string, opts AsmOptions) (*Script, error) {
	if opts.ABI == 0 {
		opts.ABI = ABIv3
	}
	a := &assembler{
		script:  NewScript(name),
		opts:    opts,
		labels:  make(map[string]uint32),
		strings: make(map[string]uint32),
	}
	lines := strings.Split(src, "\n")
	if err := a.declare(lines); err != nil {
		return nil, err
	}
	if err := a.emit(lines); err != nil {
		return nil, err
	}
	return a.script, nil
}

type assembler struct {
	script  *Script
	opts    AsmOptions
	labels  map[string]uint32
	strings map[string]uint32
}

type asmString struct {
	label string
	text  string
}

// declare collects variables, strings, labels and procedure entries.
func (a *assembler) declare(lines []string) error {
	var strs []asmString
	pc := uint32(0)
	for i, raw := range lines {
		fields, err := splitAsmLine(raw)
		if err != nil {
			return fmt.Errorf("line %d: %w", i+1, err)
		}
		if len(fields) == 0 {
			continue
		}
		switch {
		case fields[0] == ".var":
			if len(fields) != 2 {
				return fmt.Errorf("line %d: .var takes one name", i+1)
			}
			a.script.AddVariable(fields[1])
		case fields[0] == ".string":
			if len(fields) != 3 {
				return fmt.Errorf("line %d: .string takes a label and a quoted text", i+1)
			}
			text, err := strconv.Unquote(fields[2])
			if err != nil {
				return fmt.Errorf("line %d: bad string literal: %w", i+1, err)
			}
			strs = append(strs, asmString{fields[1], text})
		case fields[0] == "proc":
			if len(fields) != 2 {
				return fmt.Errorf("line %d: proc takes one name", i+1)
			}
			a.script.AddProcedure(fields[1], pc)
			a.labels[fields[1]] = pc
		case strings.HasSuffix(fields[0], ":") && len(fields) == 1:
			label := strings.TrimSuffix(fields[0], ":")
			if _, dup := a.labels[label]; dup {
				return fmt.Errorf("line %d: duplicate label %q", i+1, label)
			}
			a.labels[label] = pc
		case fields[0] == "kcall":
			pc++
			if a.opts.ABI == ABIv3 {
				pc++
			}
		default:
			pc++
		}
	}

	a.script.Strings = make([]byte, a.script.MemorySize())
	for _, s := range strs {
		a.strings[s.label] = a.script.AddString(s.text)
	}
	if len(a.script.Strings) == 0 {
		a.script.Strings = []byte{0}
	}
	return nil
}

func (a *assembler) emit(lines []string) error {
	for i, raw := range lines {
		fields, _ := splitAsmLine(raw)
		if len(fields) == 0 {
			continue
		}
		head := fields[0]
		if head == ".var" || head == ".string" || head == "proc" ||
			(strings.HasSuffix(head, ":") && len(fields) == 1) {
			continue
		}
		pc := uint32(len(a.script.Instructions))

		if head == "kcall" {
			if len(fields) != 3 {
				return fmt.Errorf("line %d: kcall takes a kernel name and an argument count", i+1)
			}
			idx, err := a.kernel(fields[1])
			if err != nil {
				return fmt.Errorf("line %d: %w", i+1, err)
			}
			n, err := strconv.ParseInt(fields[2], 0, 32)
			if err != nil {
				return fmt.Errorf("line %d: bad argument count %q", i+1, fields[2])
			}
			a.script.Emit(OpKernelCall, idx)
			if a.opts.ABI == ABIv3 {
				a.script.Emit(OpPopN, int32(n))
			}
			continue
		}

		op, ok := LookupOp(head)
		if !ok {
			return fmt.Errorf("line %d: unknown operation %q", i+1, head)
		}
		var arg int32
		if len(fields) > 2 {
			return fmt.Errorf("line %d: too many operands", i+1)
		}
		if len(fields) == 2 {
			v, err := a.operand(op, pc, fields[1])
			if err != nil {
				return fmt.Errorf("line %d: %w", i+1, err)
			}
			arg = v
		} else if GetOpInfo(op).HasArg && op != OpReturnVoid {
			return fmt.Errorf("line %d: %s needs an operand", i+1, op)
		}
		a.script.Emit(op, arg)
	}
	return nil
}

func (a *assembler) operand(op Op, pc uint32, text string) (int32, error) {
	switch {
	case strings.HasPrefix(text, "&"):
		idx, ok := a.script.VariableIndex(text[1:])
		if !ok {
			return 0, fmt.Errorf("undeclared variable %q", text[1:])
		}
		return int32(idx * 4), nil
	case strings.HasPrefix(text, "@"):
		off, ok := a.strings[text[1:]]
		if !ok {
			return 0, fmt.Errorf("undeclared string %q", text[1:])
		}
		return int32(off), nil
	}
	if v, err := strconv.ParseInt(text, 0, 32); err == nil {
		return int32(v), nil
	}
	if op == OpKernelCall {
		return a.kernel(text)
	}
	target, ok := a.labels[text]
	if !ok {
		return 0, fmt.Errorf("undefined label %q", text)
	}
	switch {
	case op.IsJump():
		return int32(target) - int32(pc), nil
	case op == OpScriptCall:
		return int32(target) + 1, nil
	}
	return 0, fmt.Errorf("%s does not take a label operand", op)
}

func (a *assembler) kernel(name string) (int32, error) {
	if a.opts.Kernels != nil {
		if idx, ok := a.opts.Kernels(name); ok {
			return idx, nil
		}
	}
	if v, err := strconv.ParseInt(name, 0, 32); err == nil {
		return int32(v), nil
	}
	return 0, fmt.Errorf("unknown kernel call %q", name)
}

// splitAsmLine splits a line into fields, keeping a quoted string as one
// field and dropping comments.
func splitAsmLine(line string) ([]string, error) {
	var fields []string
	i := 0
	for i < len(line) {
		c := line[i]
		switch {
		case c == ' ' || c == '\t' || c == '\r' || c == ',':
			i++
		case c == ';' || c == '#':
			return fields, nil
		case c == '"':
			j := i + 1
			for j < len(line) && line[j] != '"' {
				if line[j] == '\\' {
					j++
				}
				j++
			}
			if j >= len(line) {
				return nil, fmt.Errorf("unterminated string")
			}
			fields = append(fields, line[i:j+1])
			i = j + 1
		default:
			j := i
			for j < len(line) && !strings.ContainsRune(" \t\r,;", rune(line[j])) {
				j++
			}
			fields = append(fields, line[i:j])
			i = j
		}
	}
	return fields, nil
}
