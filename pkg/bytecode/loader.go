package bytecode

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
)

// Resource format errors.
var (
	ErrBlobNotTerminated = errors.New("string blob does not end with a NUL terminator")
	ErrUnalignedVariable = errors.New("unaligned variable offset")
	ErrMemorySize        = errors.New("script memory size is not a multiple of 4")
)

// resourceReader reads the little-endian script resource layout,
// remembering the first error.
type resourceReader struct {
	r   *bufio.Reader
	err error
}

func (rr *resourceReader) u32() uint32 {
	if rr.err != nil {
		return 0
	}
	var b [4]byte
	if _, err := io.ReadFull(rr.r, b[:]); err != nil {
		rr.err = err
		return 0
	}
	return binary.LittleEndian.Uint32(b[:])
}

func (rr *resourceReader) i32() int32 {
	return int32(rr.u32())
}

func (rr *resourceReader) bytes(n uint32) []byte {
	if rr.err != nil {
		return nil
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(rr.r, buf); err != nil {
		rr.err = err
		return nil
	}
	return buf
}

// name reads a u8 length-prefixed string.
func (rr *resourceReader) name() string {
	if rr.err != nil {
		return ""
	}
	n, err := rr.r.ReadByte()
	if err != nil {
		rr.err = err
		return ""
	}
	return string(rr.bytes(uint32(n)))
}

// Load reads a script resource.
//
// Layout (little-endian):
//
//	[blob_size:u32] [memory_size:u32, v3 only] [blob]
//	[var_count:u32] { [name] [offset:u32] }
//	[proc_count:u32] { [name] [offset:u32, one-based] [reserved:u32] }
//	[behavior_count:u32] { [name] [var_count:u32] [proc_count:u32] { procs } }
//	[instr_count:u32] { [op:i32] [arg:i32] }
//
// Names are u8 length-prefixed. Behavior procedures are registered as
// "behavior/action".
func Load(r io.Reader, abi ABI) (*Script, error) {
	rr := &resourceReader{r: bufio.NewReader(r)}
	s := NewScript("")

	blobSize := rr.u32()
	var memorySize uint32
	if abi != ABIv1 {
		memorySize = rr.u32()
	}
	s.Strings = rr.bytes(blobSize)
	if rr.err != nil {
		return nil, fmt.Errorf("reading string blob: %w", rr.err)
	}
	if blobSize == 0 || s.Strings[blobSize-1] != 0 {
		return nil, ErrBlobNotTerminated
	}

	varCount := rr.u32()
	for i := uint32(0); i < varCount && rr.err == nil; i++ {
		name := rr.name()
		offset := rr.u32()
		if rr.err != nil {
			break
		}
		if offset%4 != 0 {
			return nil, fmt.Errorf("variable %q at offset %d: %w", name, offset, ErrUnalignedVariable)
		}
		s.VariableNames[name] = offset / 4
	}

	if memorySize == 0 {
		// v1 stores the memory size implicitly in the variable table
		for _, idx := range s.VariableNames {
			if (idx+1)*4 > memorySize {
				memorySize = (idx + 1) * 4
			}
		}
	}
	if memorySize%4 != 0 {
		return nil, fmt.Errorf("memory size %d: %w", memorySize, ErrMemorySize)
	}
	s.Variables = make([]int32, memorySize/4)

	readProcs := func(prefix string) {
		count := rr.u32()
		for i := uint32(0); i < count && rr.err == nil; i++ {
			name := rr.name()
			offset := rr.u32()
			rr.u32()
			if rr.err == nil {
				s.Procedures[prefix+name] = offset - 1
			}
		}
	}
	readProcs("")

	behaviorCount := rr.u32()
	for i := uint32(0); i < behaviorCount && rr.err == nil; i++ {
		behavior := rr.name() + "/"
		if n := rr.u32(); n != 0 && rr.err == nil {
			return nil, fmt.Errorf("behavior %q declares %d variables, expected none", behavior, n)
		}
		readProcs(behavior)
	}

	instrCount := rr.u32()
	if rr.err == nil {
		s.Instructions = make([]Instruction, 0, instrCount)
	}
	for i := uint32(0); i < instrCount && rr.err == nil; i++ {
		op := rr.i32()
		arg := rr.i32()
		s.Instructions = append(s.Instructions, Instruction{Op: op, Arg: arg})
	}
	if rr.err != nil {
		return nil, fmt.Errorf("reading script resource: %w", rr.err)
	}
	return s, nil
}

// Encode writes s in the layout read by Load.
func Encode(w io.Writer, s *Script, abi ABI) error {
	bw := bufio.NewWriter(w)
	var scratch [4]byte
	u32 := func(v uint32) {
		binary.LittleEndian.PutUint32(scratch[:], v)
		bw.Write(scratch[:])
	}
	name := func(n string) error {
		if len(n) > 255 {
			return fmt.Errorf("name %q longer than 255 bytes", n)
		}
		bw.WriteByte(byte(len(n)))
		bw.WriteString(n)
		return nil
	}

	blob := s.Strings
	if len(blob) == 0 || blob[len(blob)-1] != 0 {
		blob = append(append([]byte(nil), blob...), 0)
	}
	u32(uint32(len(blob)))
	if abi != ABIv1 {
		u32(uint32(s.MemorySize()))
	}
	bw.Write(blob)

	varNames := make([]string, 0, len(s.VariableNames))
	for n := range s.VariableNames {
		varNames = append(varNames, n)
	}
	sort.Strings(varNames)
	u32(uint32(len(varNames)))
	for _, n := range varNames {
		if err := name(n); err != nil {
			return err
		}
		u32(s.VariableNames[n] * 4)
	}

	var plain []string
	behaviors := make(map[string][]string)
	var behaviorOrder []string
	for _, n := range s.ProcedureNames() {
		b, action, ok := strings.Cut(n, "/")
		if !ok {
			plain = append(plain, n)
			continue
		}
		if _, seen := behaviors[b]; !seen {
			behaviorOrder = append(behaviorOrder, b)
		}
		behaviors[b] = append(behaviors[b], action)
	}

	writeProcs := func(prefix string, names []string) error {
		u32(uint32(len(names)))
		for _, n := range names {
			if err := name(n); err != nil {
				return err
			}
			u32(s.Procedures[prefix+n] + 1)
			u32(0)
		}
		return nil
	}
	if err := writeProcs("", plain); err != nil {
		return err
	}
	u32(uint32(len(behaviorOrder)))
	for _, b := range behaviorOrder {
		if err := name(b); err != nil {
			return err
		}
		u32(0)
		if err := writeProcs(b+"/", behaviors[b]); err != nil {
			return err
		}
	}

	u32(uint32(len(s.Instructions)))
	for _, in := range s.Instructions {
		u32(uint32(in.Op))
		u32(uint32(in.Arg))
	}
	return bw.Flush()
}
