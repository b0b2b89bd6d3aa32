package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/chazu/mummer/manifest"
	"github.com/chazu/mummer/pkg/bytecode"
	"github.com/chazu/mummer/scene"
	"github.com/chazu/mummer/vm"
)

// LoadScript reads the script resource of a game. Files ending in .masm
// are assembled, anything else is read as a binary resource.
func LoadScript(m *manifest.Manifest) (*bytecode.Script, error) {
	abi, err := m.ScriptABI()
	if err != nil {
		return nil, err
	}
	path := m.ScriptPath()
	if strings.EqualFold(filepath.Ext(path), ".masm") {
		src, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		kernels := vm.DefaultKernelMap()
		if opts, err := m.VMOptions(); err == nil && opts.Kernels != nil {
			kernels = opts.Kernels
		}
		s, err := bytecode.Assemble(m.Game.Name, string(src), bytecode.AsmOptions{ABI: abi, Kernels: kernels.Resolver()})
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return s, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	s, err := bytecode.Load(f, abi)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Open loads the game found at or above dir. Without a mummer.toml the
// defaults apply to dir itself.
func Open(dir string) (*Session, error) {
	m, err := manifest.FindAndLoad(dir)
	if err != nil {
		return nil, err
	}
	if m == nil {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return nil, err
		}
		m = manifest.Default(abs)
	}
	script, err := LoadScript(m)
	if err != nil {
		return nil, err
	}
	sc, err := scene.Load(m.ScenePath())
	if err != nil {
		return nil, err
	}
	return NewSession(m, script, sc)
}
