package engine

import (
	"slices"
	"testing"
	"time"

	"github.com/chazu/mummer/manifest"
	"github.com/chazu/mummer/scene"
	"github.com/chazu/mummer/vm"
)

const (
	mortadelo vm.Character = 1
	filemon   vm.Character = 2
)

func streetWorld(t *testing.T) *World {
	t.Helper()
	m, err := manifest.Load("testdata/game")
	if err != nil {
		t.Fatalf("manifest.Load: %v", err)
	}
	sc, err := scene.Load(m.ScenePath())
	if err != nil {
		t.Fatalf("scene.Load: %v", err)
	}
	w, err := NewWorld(m, sc)
	if err != nil {
		t.Fatalf("NewWorld: %v", err)
	}
	if !w.ChangeRoom("STREET") {
		t.Fatal("ChangeRoom STREET failed")
	}
	return w
}

func TestObjectOwnership(t *testing.T) {
	w := streetWorld(t)

	if !w.ToggleObject(mortadelo, "LAMP", true) || !w.ObjectOn("LAMP") {
		t.Error("shared LAMP should switch on for any character")
	}
	if w.ToggleObject(mortadelo, "SAFE", true) {
		t.Error("SAFE belongs to FILEMON")
	}
	if !w.ToggleObject(filemon, "SAFE", true) {
		t.Error("FILEMON should reach his SAFE")
	}
	if w.StartAnimation(filemon, "LAMP") {
		t.Error("LAMP has no animation frames")
	}

	if !w.StartAnimation(filemon, "SAFE") {
		t.Fatal("SAFE animation did not start")
	}
	for i := 0; i < 3; i++ {
		if !w.IsAnimating(filemon, "SAFE") {
			t.Fatalf("SAFE stopped animating after %d frames", i)
		}
		w.advance(50 * time.Millisecond)
	}
	if w.IsAnimating(filemon, "SAFE") {
		t.Error("SAFE should stop after its 3 frames")
	}

	if got := w.switchedOn(); !slices.Equal(got, []string{"STREET/LAMP", "STREET/SAFE"}) {
		t.Errorf("switched on = %v", got)
	}
}

func TestPointOf(t *testing.T) {
	w := streetWorld(t)

	tests := []struct {
		owner vm.Character
		name  string
		x, y  int32
		ok    bool
	}{
		{mortadelo, "DOOR", 80, 90, true},
		{filemon, "DOOR", 70, 95, true},
		{vm.CharacterNone, "DOOR", 80, 90, true},
		{mortadelo, "FILEMON", 90, 40, true},
		{mortadelo, "WINDOW", 0, 0, false},
	}
	for _, tt := range tests {
		x, y, ok := w.PointOf(tt.owner, tt.name)
		if ok != tt.ok || x != tt.x || y != tt.y {
			t.Errorf("PointOf(%d, %s) = %d,%d,%v, want %d,%d,%v", tt.owner, tt.name, x, y, ok, tt.x, tt.y, tt.ok)
		}
	}
}

func TestInventory(t *testing.T) {
	w := streetWorld(t)

	w.Pickup(mortadelo, "KEY", true)
	w.Pickup(mortadelo, "KEY", false)
	w.Pickup(mortadelo, "MAP", false)
	items, held := w.Items(mortadelo)
	if !slices.Equal(items, []string{"KEY", "MAP"}) || held != "KEY" {
		t.Errorf("items = %v held %q", items, held)
	}
	if items, _ := w.Items(filemon); len(items) != 0 {
		t.Errorf("FILEMON should carry nothing, got %v", items)
	}

	w.Drop(mortadelo, "KEY")
	items, held = w.Items(mortadelo)
	if !slices.Equal(items, []string{"MAP"}) || held != "" {
		t.Errorf("after drop: items = %v held %q", items, held)
	}
}

func TestTextReadingTime(t *testing.T) {
	w := streetWorld(t)

	id, ok := w.SayText("MORTADELO", 3)
	if !ok {
		t.Fatal("SayText failed")
	}
	if _, ok := w.SayText("NOBODY", 3); ok {
		t.Error("an unknown speaker should not talk")
	}
	for i := 0; i < 4; i++ {
		if !w.IsTextShowing(id) {
			t.Fatalf("text gone after %d frames", i)
		}
		w.advance(50 * time.Millisecond)
	}
	if w.IsTextShowing(id) {
		t.Error("a 200ms text should be gone after 4 frames of 50ms")
	}

	// "Leave": 1000 + 5*50
	id, _ = w.SayText("FILEMON", 2)
	for i := 0; i < 24; i++ {
		w.advance(50 * time.Millisecond)
	}
	if !w.IsTextShowing(id) {
		t.Error("text ended before its reading time")
	}
	w.advance(50 * time.Millisecond)
	if w.IsTextShowing(id) {
		t.Error("text outlived its reading time")
	}
}

func TestDialogMenu(t *testing.T) {
	w := streetWorld(t)

	if w.OpenDialogMenu(mortadelo) {
		t.Error("an empty menu should not open")
	}
	w.AddDialogLine(mortadelo, 1)
	w.SetDialogLineReturn(mortadelo, 7)
	w.AddDialogLine(mortadelo, 2)
	w.SetDialogLineReturn(mortadelo, 9)

	w.Choose(0)
	if !w.OpenDialogMenu(mortadelo) {
		t.Fatal("menu did not open")
	}
	if _, ok := w.DialogChoice(mortadelo); ok {
		t.Error("a choice made before the menu opened should be dropped")
	}

	w.Choose(5)
	v, ok := w.DialogChoice(mortadelo)
	if !ok || v != 9 {
		t.Errorf("DialogChoice = %d,%v, want the last line 9", v, ok)
	}
	if w.OpenDialogMenu(mortadelo) {
		t.Error("choosing should reset the menu")
	}
}

func TestPathToggles(t *testing.T) {
	w := streetWorld(t)
	g := w.Graph()

	built := g.Built()
	w.TogglePathSystem()
	if g.Built() == built {
		t.Error("TogglePathSystem did not toggle")
	}

	w.SetPathEdgeEnabled(4, false)
	if e, ok := g.Edge(4); !ok || e.Enabled {
		t.Error("edge 4 should be disabled")
	}
	w.SetPathPolygonEnabled(1, false)
	if p, ok := g.Polygon(1); !ok || p.Enabled {
		t.Error("polygon 1 should be disabled")
	}
	w.SetPathEdgeEnabled(40, false)
}

func TestChangeRoomKeepsCharacters(t *testing.T) {
	w := streetWorld(t)

	if !w.WalkTo("MORTADELO", 80, 60) {
		t.Fatal("walk did not start")
	}
	w.advance(50 * time.Millisecond)
	a, _ := w.Actors().Actor("MORTADELO")
	x, y := a.X, a.Y

	if w.ChangeRoom("NOWHERE") {
		t.Error("unknown room accepted")
	}
	if !w.ChangeRoom("OFFICE") {
		t.Fatal("ChangeRoom OFFICE failed")
	}
	if a.IsWalking() || a.X != x || a.Y != y {
		t.Errorf("MORTADELO should stop in place, got %+v", a)
	}
	if !w.HasActor("BOSS") {
		t.Error("BOSS missing in OFFICE")
	}
	w.ChangeRoom("STREET")
	if w.HasActor("BOSS") {
		t.Error("BOSS should stay in OFFICE")
	}
}

func TestClickOnActorOnlyPresses(t *testing.T) {
	w := streetWorld(t)

	w.Click(90, 30)
	if !w.WasMousePressed() {
		t.Error("click should press")
	}
	if w.IsWalking("MORTADELO") {
		t.Error("clicking FILEMON should not walk MORTADELO")
	}
	w.advance(50 * time.Millisecond)
	if w.WasMousePressed() {
		t.Error("press should last one frame")
	}

	w.Click(60, 20)
	if !w.IsWalking("MORTADELO") {
		t.Error("clicking the floor should walk the active character")
	}
}
