package engine

import (
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/chazu/mummer/pkg/motion"
	"github.com/chazu/mummer/pkg/pathgraph"
	"github.com/chazu/mummer/vm"
	"github.com/chazu/mummer/vm/savestate"
)

// capture writes the world into a save.
func (w *World) capture(g *savestate.SaveGame) {
	if w.room != nil {
		g.Room = w.room.Name
	}
	g.ActiveCharacter = int32(w.active)
	for _, a := range w.actors.Actors() {
		g.Actors = append(g.Actors, a.State())
	}
	g.Objects = w.switchedOn()

	for _, c := range sortedKeys(w.inventory) {
		h := w.inventory[c]
		g.Inventory = append(g.Inventory, savestate.Holding{
			Character: int32(c),
			Items:     slices.Clone(h.items),
			Held:      h.held,
		})
	}

	for _, c := range sortedKeys(w.dialogs) {
		d := w.dialogs[c]
		sd := savestate.Dialog{Character: int32(c), Open: d.open}
		for _, l := range d.lines {
			sd.Lines = append(sd.Lines, savestate.DialogLine{ID: l.id, Return: l.ret})
		}
		g.Dialogs = append(g.Dialogs, sd)
	}

	if w.graph == nil {
		return
	}
	g.PathBuilt = w.graph.Built()
	for i := 0; i < pathgraph.MaxEdges; i++ {
		if e, ok := w.graph.Edge(i); ok && e.Kind == pathgraph.EdgeAuthored && !e.Enabled {
			g.DisabledEdges = append(g.DisabledEdges, i)
		}
	}
	for i := 0; i < pathgraph.MaxPolygons; i++ {
		if p, ok := w.graph.Polygon(i); ok && !p.Enabled {
			g.DisabledPolygons = append(g.DisabledPolygons, i)
		}
	}
}

// restore replaces the world state with a save. Texts and running
// animations are not saved and end.
func (w *World) restore(g *savestate.SaveGame) error {
	if g.Room != "" && !w.ChangeRoom(g.Room) {
		return fmt.Errorf("save refers to unknown room %s", g.Room)
	}
	w.active = vm.Character(g.ActiveCharacter)
	w.clock = time.Duration(g.Scheduler.ClockMS) * time.Millisecond

	for _, a := range slices.Clone(w.actors.Actors()) {
		w.actors.Remove(a.Name)
	}
	for _, st := range g.Actors {
		a := motion.RestoreActor(st)
		w.actors.Add(a)
		w.sprites.SetDirection(a, a.Direction, a.IsWalking(), true)
	}

	for k, o := range w.objects {
		o.on = slices.Contains(g.Objects, k)
		o.animLeft = 0
	}

	clear(w.inventory)
	for _, h := range g.Inventory {
		w.inventory[vm.Character(h.Character)] = &holding{items: slices.Clone(h.Items), held: h.Held}
	}
	clear(w.dialogs)
	for _, sd := range g.Dialogs {
		d := &dialog{open: sd.Open}
		for _, l := range sd.Lines {
			d.lines = append(d.lines, dialogLine{id: l.ID, ret: l.Return})
		}
		w.dialogs[vm.Character(sd.Character)] = d
	}
	w.choice = -1
	w.pressed = false

	if w.graph == nil {
		return nil
	}
	w.graph.Toggle(g.PathBuilt)
	for i := 0; i < pathgraph.MaxEdges; i++ {
		if e, ok := w.graph.Edge(i); ok && e.Kind == pathgraph.EdgeAuthored {
			w.graph.SetEdgeEnabled(i, !slices.Contains(g.DisabledEdges, i))
		}
	}
	for i := 0; i < pathgraph.MaxPolygons; i++ {
		if _, ok := w.graph.Polygon(i); ok {
			w.graph.SetPolygonEnabled(i, !slices.Contains(g.DisabledPolygons, i))
		}
	}
	return nil
}

func sortedKeys[V any](m map[vm.Character]V) []vm.Character {
	return slices.Sorted(maps.Keys(m))
}
