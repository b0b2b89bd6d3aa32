// Package bytecode defines the script resource executed by the mummer
// process VM: a flat table of (opcode, argument) instructions shared by all
// procedures, a NUL-terminated string blob, and the variable memory that
// scripts read and write through variable references.
//
// # Architecture Overview
//
//   - Ops: the canonical stack-machine operations. Raw opcodes stored in a
//     resource are translated through an OpMap because every game
//     generation numbers them differently.
//
//   - Script: the loaded resource. Procedures are named entry points into
//     the instruction table; several processes may execute the same
//     procedure at once since all execution state lives in the process.
//
//   - Load/Encode: the little-endian binary resource layout.
//
//   - Assemble: a small text assembler used by tests and the mummer CLI.
//
//   - Disassembler: listings annotated with jump targets and kernel names.
//
// # Jump encoding
//
// Jumps are relative to the jump instruction itself: executing a jump at
// pc with argument n continues at pc+n. ScriptCall arguments are one-based
// absolute instruction indices.
package bytecode
