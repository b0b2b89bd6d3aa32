package vm

import (
	"fmt"
	"strings"

	"github.com/chazu/mummer/pkg/bytecode"
)

// KernelCall is a canonical engine service callable from scripts.
type KernelCall int32

const (
	// ========================================================================
	// Control
	// ========================================================================

	KernelNop KernelCall = iota
	KernelDelay
	KernelSleep
	KernelHadNoMousePressFor
	KernelFork
	KernelKillProcesses
	KernelStartScript
	KernelCurrentProcess
	KernelSyncScript

	// ========================================================================
	// Sound and text
	// ========================================================================

	KernelPlaySound
	KernelPlayMusic
	KernelStopMusic
	KernelWaitForMusicToEnd
	KernelShowText
	KernelSayText
	KernelSetDialogLineReturn
	KernelDialogMenu

	// ========================================================================
	// World state
	// ========================================================================

	KernelChangeCharacter
	KernelChangeRoom
	KernelToggleRoomFloor
	KernelSetPathEdgeEnabled
	KernelOn
	KernelOff
	KernelAnimate
	KernelPickup
	KernelDrop

	// ========================================================================
	// Actors
	// ========================================================================

	KernelStopAndTurn
	KernelStopAndTurnMe
	KernelGo
	KernelGoToNode
	KernelPut
	KernelPutAtNode

	kernelCallCount
)

type kernelInfo struct {
	name   string
	argsV1 int // arguments popped after the call under the v1 abi
}

var kernelInfoTable = [kernelCallCount]kernelInfo{
	KernelNop:                {"Nop", 0},
	KernelDelay:              {"Delay", 1},
	KernelSleep:              {"Sleep", 1},
	KernelHadNoMousePressFor: {"HadNoMousePressFor", 0},
	KernelFork:               {"Fork", 0},
	KernelKillProcesses:      {"KillProcesses", 1},
	KernelStartScript:        {"StartScript", 2},
	KernelCurrentProcess:     {"CurrentProcess", 0},
	KernelSyncScript:         {"SyncScript", 1},

	KernelPlaySound:           {"PlaySound", 2},
	KernelPlayMusic:           {"PlayMusic", 1},
	KernelStopMusic:           {"StopMusic", 0},
	KernelWaitForMusicToEnd:   {"WaitForMusicToEnd", 0},
	KernelShowText:            {"ShowText", 2},
	KernelSayText:             {"SayText", 2},
	KernelSetDialogLineReturn: {"SetDialogLineReturn", 1},
	KernelDialogMenu:          {"DialogMenu", 0},

	KernelChangeCharacter:    {"ChangeCharacter", 1},
	KernelChangeRoom:         {"ChangeRoom", 1},
	KernelToggleRoomFloor:    {"ToggleRoomFloor", 0},
	KernelSetPathEdgeEnabled: {"SetPathEdgeEnabled", 3},
	KernelOn:                 {"On", 1},
	KernelOff:                {"Off", 1},
	KernelAnimate:            {"Animate", 2},
	KernelPickup:             {"Pickup", 2},
	KernelDrop:               {"Drop", 1},

	KernelStopAndTurn:   {"StopAndTurn", 2},
	KernelStopAndTurnMe: {"StopAndTurnMe", 1},
	KernelGo:            {"Go", 3},
	KernelGoToNode:      {"GoToNode", 3},
	KernelPut:           {"Put", 2},
	KernelPutAtNode:     {"PutAtNode", 2},
}

// String returns the canonical name.
func (k KernelCall) String() string {
	if k >= 0 && k < kernelCallCount {
		return kernelInfoTable[k].name
	}
	return fmt.Sprintf("KERNEL(%d)", int32(k))
}

// ArgCount returns the number of arguments popped under the v1 abi.
func (k KernelCall) ArgCount() int {
	if k >= 0 && k < kernelCallCount {
		return kernelInfoTable[k].argsV1
	}
	return 0
}

// LookupKernelCall finds a call by name, ignoring case.
func LookupKernelCall(name string) (KernelCall, bool) {
	for k := KernelCall(0); k < kernelCallCount; k++ {
		if strings.EqualFold(kernelInfoTable[k].name, name) {
			return k, true
		}
	}
	return 0, false
}

// AllKernelCalls returns every call in canonical order.
func AllKernelCalls() []KernelCall {
	out := make([]KernelCall, 0, kernelCallCount)
	for k := KernelCall(0); k < kernelCallCount; k++ {
		out = append(out, k)
	}
	return out
}

// KernelMap translates raw kernel indices of a game into calls. The raw
// index is the slice index.
type KernelMap []KernelCall

// DefaultKernelMap maps raw index n to call n.
func DefaultKernelMap() KernelMap {
	return KernelMap(AllKernelCalls())
}

// ParseKernelMap builds a map from call names in raw index order.
func ParseKernelMap(names []string) (KernelMap, error) {
	m := make(KernelMap, 0, len(names))
	for i, name := range names {
		k, ok := LookupKernelCall(name)
		if !ok {
			return nil, fmt.Errorf("kernel map entry %d: unknown kernel call %q", i, name)
		}
		m = append(m, k)
	}
	return m, nil
}

// Lookup returns the call for a raw index.
func (m KernelMap) Lookup(raw int32) (KernelCall, bool) {
	if raw < 0 || int(raw) >= len(m) {
		return 0, false
	}
	return m[raw], true
}

// ArgCount returns the v1 argument count of a raw index, 0 if unmapped.
func (m KernelMap) ArgCount(raw int32) int {
	k, ok := m.Lookup(raw)
	if !ok {
		return 0
	}
	return k.ArgCount()
}

// Name returns the call name of a raw index for listings.
func (m KernelMap) Name(raw int32) string {
	if k, ok := m.Lookup(raw); ok {
		return k.String()
	}
	return fmt.Sprintf("<unknown kernel %d>", raw)
}

// Resolver returns a name-to-raw-index resolver for the assembler.
func (m KernelMap) Resolver() bytecode.KernelResolver {
	return func(name string) (int32, bool) {
		k, ok := LookupKernelCall(name)
		if !ok {
			return 0, false
		}
		for i, mk := range m {
			if mk == k {
				return int32(i), true
			}
		}
		return 0, false
	}
}
