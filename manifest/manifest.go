// Package manifest handles mummer.toml game configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/chazu/mummer/pkg/bytecode"
	"github.com/chazu/mummer/vm"
)

// FileName is the name of the configuration file of a game directory.
const FileName = "mummer.toml"

// Manifest represents a mummer.toml game configuration.
type Manifest struct {
	Game    Game    `toml:"game"`
	Timing  Timing  `toml:"timing"`
	Opcodes Opcodes `toml:"opcodes"`
	Kernel  Kernel  `toml:"kernel"`
	Log     Log     `toml:"log"`
	Saves   Saves   `toml:"saves"`

	// Dir is the directory containing the mummer.toml file (set at load time).
	Dir string `toml:"-"`
}

// Game describes the script resource and its conventions.
type Game struct {
	Name string `toml:"name"`
	// ABI is the kernel call convention, "v1" or "v3".
	ABI    string `toml:"abi"`
	Script string `toml:"script"`
	Scene  string `toml:"scene"`
	// Start is the procedure run when a session starts.
	Start                       string   `toml:"start"`
	RoomEntryPrefix             string   `toml:"room-entry-prefix"`
	ChangeCharacterUsesGameLock bool     `toml:"change-character-uses-game-lock"`
	Characters                  []string `toml:"characters"`
	CharacterVariable           string   `toml:"character-variable"`
	RealCharacterVariable       string   `toml:"real-character-variable"`
}

// Timing configures the frame loop.
type Timing struct {
	FrameMS int `toml:"frame-ms"`
	// WalkSpeed is the default actor speed in pixels per frame.
	WalkSpeed int `toml:"walk-speed"`
}

// Opcodes lists operation names in raw opcode order. Empty means the
// default numbering.
type Opcodes struct {
	Order []string `toml:"order"`
}

// Kernel lists kernel call names in raw index order. Empty means the
// default numbering.
type Kernel struct {
	Order []string `toml:"order"`
}

// Log configures the log backend.
type Log struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

// Saves configures the save slot database.
type Saves struct {
	DB string `toml:"db"`
}

// Load parses a mummer.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	m.applyDefaults()
	if _, err := m.VMOptions(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &m, nil
}

// FindAndLoad walks up from startDir to find a mummer.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// Default returns the manifest used when a game directory has none.
func Default(dir string) *Manifest {
	m := &Manifest{Dir: dir}
	m.applyDefaults()
	return m
}

func (m *Manifest) applyDefaults() {
	if m.Game.Name == "" {
		m.Game.Name = filepath.Base(m.Dir)
	}
	if m.Game.ABI == "" {
		m.Game.ABI = "v3"
	}
	if m.Game.Script == "" {
		m.Game.Script = "script.masm"
	}
	if m.Game.Scene == "" {
		m.Game.Scene = "scene.yaml"
	}
	if m.Game.Start == "" {
		m.Game.Start = "MAIN"
	}
	if len(m.Game.Characters) == 0 {
		m.Game.Characters = []string{"MORTADELO", "FILEMON"}
	}
	if m.Timing.FrameMS <= 0 {
		m.Timing.FrameMS = 50
	}
	if m.Timing.WalkSpeed <= 0 {
		m.Timing.WalkSpeed = 4
	}
	if m.Saves.DB == "" {
		m.Saves.DB = filepath.Join(".mummer", "saves.db")
	}
}

// ScriptABI parses the configured calling convention.
func (m *Manifest) ScriptABI() (bytecode.ABI, error) {
	return bytecode.ParseABI(m.Game.ABI)
}

// VMOptions translates the configuration into scheduler options.
func (m *Manifest) VMOptions() (vm.Options, error) {
	abi, err := m.ScriptABI()
	if err != nil {
		return vm.Options{}, err
	}
	opts := vm.Options{
		ABI:                         abi,
		Characters:                  len(m.Game.Characters),
		ChangeCharacterUsesGameLock: m.Game.ChangeCharacterUsesGameLock,
		RoomEntryPrefix:             m.Game.RoomEntryPrefix,
		CharacterVariable:           m.Game.CharacterVariable,
		RealCharacterVariable:       m.Game.RealCharacterVariable,
	}
	if len(m.Opcodes.Order) > 0 {
		if opts.OpMap, err = bytecode.ParseOpMap(m.Opcodes.Order); err != nil {
			return vm.Options{}, fmt.Errorf("opcodes: %w", err)
		}
	}
	if len(m.Kernel.Order) > 0 {
		if opts.Kernels, err = vm.ParseKernelMap(m.Kernel.Order); err != nil {
			return vm.Options{}, fmt.Errorf("kernel: %w", err)
		}
	}
	return opts, nil
}

// FrameTime returns the duration of one tick.
func (m *Manifest) FrameTime() time.Duration {
	return time.Duration(m.Timing.FrameMS) * time.Millisecond
}

// Character returns the 1-based character number of a name, or
// vm.CharacterNone when the name is unknown.
func (m *Manifest) Character(name string) vm.Character {
	for i, c := range m.Game.Characters {
		if c == name {
			return vm.Character(i + 1)
		}
	}
	return vm.CharacterNone
}

// ScriptPath returns the absolute path of the script resource.
func (m *Manifest) ScriptPath() string {
	return m.resolve(m.Game.Script)
}

// ScenePath returns the absolute path of the scene description.
func (m *Manifest) ScenePath() string {
	return m.resolve(m.Game.Scene)
}

// SavesPath returns the absolute path of the save database.
func (m *Manifest) SavesPath() string {
	return m.resolve(m.Saves.DB)
}

func (m *Manifest) resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(m.Dir, p)
}
