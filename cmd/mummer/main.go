// Mummer CLI - runs, inspects and saves scripted adventure games
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/chazu/mummer/engine"
	"github.com/chazu/mummer/manifest"
	"github.com/chazu/mummer/pkg/bytecode"
	"github.com/chazu/mummer/scene"
	"github.com/chazu/mummer/vm"
	"github.com/chazu/mummer/vm/savestate"
)

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: mummer <command> [options]\n\n")
	fmt.Fprintf(os.Stderr, "Commands:\n")
	fmt.Fprintf(os.Stderr, "  run     Run a game headless until its processes end\n")
	fmt.Fprintf(os.Stderr, "  disasm  Print the script listing\n")
	fmt.Fprintf(os.Stderr, "  asm     Assemble a .masm file into a script resource\n")
	fmt.Fprintf(os.Stderr, "  path    Find a walk path through a room\n")
	fmt.Fprintf(os.Stderr, "  saves   List or delete save slots\n")
	fmt.Fprintf(os.Stderr, "\nExamples:\n")
	fmt.Fprintf(os.Stderr, "  mummer run -dir ./game -ticks 200 -save 1\n")
	fmt.Fprintf(os.Stderr, "  mummer run -dir ./game -load 1\n")
	fmt.Fprintf(os.Stderr, "  mummer path -dir ./game -room STREET 20 10 80 90\n")
	fmt.Fprintf(os.Stderr, "  mummer saves -dir ./game -delete 1\n")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	args := os.Args[2:]
	switch os.Args[1] {
	case "run":
		err = runCommand(args)
	case "disasm":
		err = disasmCommand(args)
	case "asm":
		err = asmCommand(args)
	case "path":
		err = pathCommand(args)
	case "saves":
		err = savesCommand(args)
	case "-h", "--help", "help":
		usage()
		return
	default:
		fmt.Fprintf(os.Stderr, "Unknown command %q\n\n", os.Args[1])
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadManifest finds mummer.toml at or above dir and configures logging
// from it. verbose raises the configured verbosity.
func loadManifest(dir string, verbose int) (*manifest.Manifest, error) {
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
	var path *string
	if m.Log.File != "" {
		p := m.Log.File
		if !filepath.IsAbs(p) {
			p = filepath.Join(m.Dir, p)
		}
		path = &p
	}
	commonlog.Configure(max(m.Log.Verbosity, verbose), path)
	return m, nil
}

func runCommand(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	dir := fs.String("dir", ".", "Game directory")
	start := fs.String("start", "", "Start procedure (default from mummer.toml)")
	ticks := fs.Int("ticks", 0, "Stop after this many ticks (0 runs until no process is left)")
	trace := fs.Bool("trace", false, "Log every executed instruction")
	saveSlot := fs.Int("save", 0, "Save to this slot when the run stops")
	loadSlot := fs.Int("load", 0, "Resume from this slot instead of starting")
	verbose := fs.Int("v", 0, "Log verbosity")
	fs.Parse(args)

	m, err := loadManifest(*dir, *verbose)
	if err != nil {
		return err
	}
	script, err := engine.LoadScript(m)
	if err != nil {
		return err
	}
	sc, err := scene.Load(m.ScenePath())
	if err != nil {
		return err
	}
	s, err := engine.NewSession(m, script, sc)
	if err != nil {
		return err
	}
	s.SetTrace(*trace)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var store *savestate.Store
	if *saveSlot > 0 || *loadSlot > 0 {
		if store, err = savestate.Open(m.SavesPath()); err != nil {
			return err
		}
		defer store.Close()
	}

	if *loadSlot > 0 {
		if err := s.Load(ctx, store, *loadSlot); err != nil {
			return fmt.Errorf("loading slot %d: %w", *loadSlot, err)
		}
	} else if err := s.Start(*start); err != nil {
		return err
	}

	runErr := s.Run(ctx, *ticks)
	if runErr != nil && ctx.Err() == nil {
		return runErr
	}

	sched := s.Scheduler()
	room := "-"
	if r := s.World().Room(); r != nil {
		room = r.Name
	}
	fmt.Printf("tick %d, room %s, %d processes\n", sched.TickCount(), room, sched.Len())
	for _, p := range sched.Processes() {
		fmt.Printf("  %s\n", p)
	}

	if *saveSlot > 0 {
		name := fmt.Sprintf("%s tick %d", room, sched.TickCount())
		if err := s.Save(context.Background(), store, *saveSlot, name); err != nil {
			return fmt.Errorf("saving slot %d: %w", *saveSlot, err)
		}
		fmt.Printf("saved slot %d\n", *saveSlot)
	}
	return nil
}

func disasmCommand(args []string) error {
	fs := flag.NewFlagSet("disasm", flag.ExitOnError)
	dir := fs.String("dir", ".", "Game directory")
	fs.Parse(args)

	m, err := loadManifest(*dir, 0)
	if err != nil {
		return err
	}
	script, err := engine.LoadScript(m)
	if err != nil {
		return err
	}
	opts, err := m.VMOptions()
	if err != nil {
		return err
	}
	d := bytecode.NewDisassembler(script)
	if opts.OpMap != nil {
		d.OpMap = opts.OpMap
	}
	kernels := opts.Kernels
	if kernels == nil {
		kernels = vm.DefaultKernelMap()
	}
	d.Kernels = kernels.Name
	fmt.Print(d.Disassemble())
	return nil
}

func asmCommand(args []string) error {
	fs := flag.NewFlagSet("asm", flag.ExitOnError)
	abiName := fs.String("abi", "v3", "Calling convention: v1 or v3")
	output := fs.String("o", "", "Output file (default: input with .bin)")
	fs.Parse(args)

	if fs.NArg() != 1 {
		return fmt.Errorf("asm takes one .masm file")
	}
	input := fs.Arg(0)
	abi, err := bytecode.ParseABI(*abiName)
	if err != nil {
		return err
	}
	src, err := os.ReadFile(input)
	if err != nil {
		return err
	}
	name := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	script, err := bytecode.Assemble(name, string(src), bytecode.AsmOptions{
		ABI:     abi,
		Kernels: vm.DefaultKernelMap().Resolver(),
	})
	if err != nil {
		return fmt.Errorf("%s: %w", input, err)
	}

	out := *output
	if out == "" {
		out = strings.TrimSuffix(input, filepath.Ext(input)) + ".bin"
	}
	f, err := os.Create(out)
	if err != nil {
		return err
	}
	if err := bytecode.Encode(f, script, abi); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Printf("wrote %s (%d instructions)\n", out, len(script.Instructions))
	return nil
}

func pathCommand(args []string) error {
	fs := flag.NewFlagSet("path", flag.ExitOnError)
	dir := fs.String("dir", ".", "Game directory")
	roomName := fs.String("room", "", "Room (default: the start room)")
	built := fs.Bool("built", false, "Infer diagonals before searching")
	fs.Parse(args)

	if fs.NArg() != 4 {
		return fmt.Errorf("path takes four coordinates: sx sy dx dy")
	}
	var c [4]int
	for i := range c {
		v, err := strconv.Atoi(fs.Arg(i))
		if err != nil {
			return fmt.Errorf("bad coordinate %q", fs.Arg(i))
		}
		c[i] = v
	}

	m, err := loadManifest(*dir, 0)
	if err != nil {
		return err
	}
	sc, err := scene.Load(m.ScenePath())
	if err != nil {
		return err
	}
	name := *roomName
	if name == "" {
		name = sc.StartRoom
	}
	r, ok := sc.Room(name)
	if !ok {
		return fmt.Errorf("%s: %w", name, scene.ErrUnknownRoom)
	}
	g, err := r.Graph()
	if err != nil {
		return err
	}
	if *built && !g.Built() {
		g.Toggle(true)
	}

	path, ok := g.FindPath(c[0], c[1], c[2], c[3])
	if !ok {
		fmt.Println("no path")
		return nil
	}
	for _, wp := range path {
		fmt.Printf("(%d,%d) scale %d node %d edge %d polygon %d dir %d\n",
			wp.X, wp.Y, wp.Scale, wp.Node, wp.Edge, wp.Polygon, wp.Direction)
	}
	return nil
}

func savesCommand(args []string) error {
	fs := flag.NewFlagSet("saves", flag.ExitOnError)
	dir := fs.String("dir", ".", "Game directory")
	del := fs.Int("delete", 0, "Delete this slot")
	fs.Parse(args)

	m, err := loadManifest(*dir, 0)
	if err != nil {
		return err
	}
	store, err := savestate.Open(m.SavesPath())
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	if *del > 0 {
		if err := store.Delete(ctx, *del); err != nil {
			return err
		}
		fmt.Printf("deleted slot %d\n", *del)
		return nil
	}

	slots, err := store.List(ctx)
	if err != nil {
		return err
	}
	if len(slots) == 0 {
		fmt.Println("no saves")
		return nil
	}
	for _, s := range slots {
		fmt.Printf("%3d  %-24s %-12s tick %-6d %s\n",
			s.Slot, s.Name, s.Game, s.Tick, s.SavedAt.Format("2006-01-02 15:04"))
	}
	return nil
}
