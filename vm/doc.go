// Package vm implements the mummer process virtual machine.
//
// This package contains:
//   - The bytecode interpreter (ScriptTask) with its tagged operand stack
//   - Kernel call dispatch and the per-game kernel map
//   - The cooperative process scheduler, forks and two-process sync
//   - Advisory per-character locks
//   - Resumable sub-tasks for delays, sounds, text, dialogs and walking
//   - Process snapshots for save games
//
// Nothing in this package blocks: every process runs until it yields and
// the caller drives time forward with Scheduler.Tick.
package vm
