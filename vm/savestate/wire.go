// Package savestate stores saved games: a canonical CBOR encoding of the
// whole game state and a SQLite table of numbered slots.
package savestate

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/chazu/mummer/pkg/motion"
	"github.com/chazu/mummer/vm"
)

// Version is the current save format. Older or newer saves are rejected.
const Version = 1

// ErrVersion is returned for saves written in another format version.
var ErrVersion = errors.New("unsupported save version")

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("savestate: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// SaveGame is everything needed to resume a session at a tick boundary.
// Objects lists "ROOM/NAME" for every object switched on.
type SaveGame struct {
	Version          int                 `cbor:"version"`
	Game             string              `cbor:"game"`
	Room             string              `cbor:"room"`
	ActiveCharacter  int32               `cbor:"active"`
	Scheduler        vm.Snapshot         `cbor:"scheduler"`
	Variables        []int32             `cbor:"variables"`
	Actors           []motion.ActorState `cbor:"actors,omitempty"`
	Objects          []string            `cbor:"objects,omitempty"`
	Inventory        []Holding           `cbor:"inventory,omitempty"`
	Dialogs          []Dialog            `cbor:"dialogs,omitempty"`
	PathBuilt        bool                `cbor:"pathBuilt"`
	DisabledEdges    []int               `cbor:"disabledEdges,omitempty"`
	DisabledPolygons []int               `cbor:"disabledPolygons,omitempty"`
}

// Holding is the inventory of one character.
type Holding struct {
	Character int32    `cbor:"character"`
	Items     []string `cbor:"items"`
	Held      string   `cbor:"held,omitempty"`
}

// Dialog is the dialog menu being assembled or shown for a character.
type Dialog struct {
	Character int32        `cbor:"character"`
	Lines     []DialogLine `cbor:"lines"`
	Open      bool         `cbor:"open"`
}

// DialogLine is a menu line and the value returned when it is chosen.
type DialogLine struct {
	ID     int32 `cbor:"id"`
	Return int32 `cbor:"return"`
}

// Marshal encodes a save. A zero Version is filled in.
func Marshal(g *SaveGame) ([]byte, error) {
	if g.Version == 0 {
		g.Version = Version
	}
	return cborEncMode.Marshal(g)
}

// Unmarshal decodes a save and checks its version.
func Unmarshal(data []byte) (*SaveGame, error) {
	var g SaveGame
	if err := cbor.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("savestate: unmarshal: %w", err)
	}
	if g.Version != Version {
		return nil, fmt.Errorf("savestate: version %d: %w", g.Version, ErrVersion)
	}
	return &g, nil
}
