package savestate

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/chazu/mummer/pkg/motion"
	"github.com/chazu/mummer/pkg/pathgraph"
	"github.com/chazu/mummer/vm"
)

func sampleSave() *SaveGame {
	return &SaveGame{
		Game:            "prisoner",
		Room:            "HALL",
		ActiveCharacter: 1,
		Scheduler: vm.Snapshot{
			Tick:    42,
			ClockMS: 2100,
			NextPID: 3,
			Processes: []vm.ProcessState{{
				PID:       2,
				Name:      "MAIN",
				Character: 1,
				PC:        7,
				Stack:     []vm.StackEntry{vm.Variable(0), vm.Number(7), vm.Number(120)},
				CallStack: []uint32{3},
				HasLock:   true,
				LockName:  "character-1",
				Status:    1,
				Waiting:   []vm.TaskState{{Kind: "delay", Ints: []int64{2220}}},
			}},
		},
		Variables: []int32{0, 5, -1},
		Actors: []motion.ActorState{{
			Name: "HERO", X: 10, Y: 20, Scale: 80, Direction: 2, Speed: 512,
			Node: pathgraph.None, Edge: 3, Polygon: pathgraph.None, XSub: 17,
			Path: []pathgraph.Waypoint{
				{X: 10, Y: 20, Scale: 80, Node: pathgraph.None, Edge: 3, Polygon: pathgraph.None, Direction: 2},
				{X: 60, Y: 20, Scale: 80, Node: 4, Edge: pathgraph.None, Polygon: pathgraph.None, Direction: -1},
			},
			Index: 1,
		}},
		Objects:          []string{"HALL/DOOR"},
		Inventory:        []Holding{{Character: 1, Items: []string{"KEY"}, Held: "KEY"}},
		PathBuilt:        true,
		DisabledEdges:    []int{4},
		DisabledPolygons: []int{1},
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	in := sampleSave()
	data, err := Marshal(in)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if in.Version != Version {
		t.Errorf("Marshal did not stamp the version: %d", in.Version)
	}
	out, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !reflect.DeepEqual(in, out) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", out, in)
	}

	again, _ := Marshal(out)
	if string(again) != string(data) {
		t.Error("encoding is not deterministic")
	}
}

func TestUnmarshalRejectsOtherVersions(t *testing.T) {
	g := sampleSave()
	g.Version = Version + 1
	data, _ := Marshal(g)
	if _, err := Unmarshal(data); !errors.Is(err, ErrVersion) {
		t.Errorf("Expected ErrVersion, got %v", err)
	}
	if _, err := Unmarshal([]byte{0xff, 0x00}); err == nil {
		t.Error("Expected an error for garbage input")
	}
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "saves", "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	s.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return s
}

func TestStoreSaveLoad(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.Save(ctx, 1, "before the door", sampleSave()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := s.Load(ctx, 1)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(got, sampleSaveStamped()) {
		t.Errorf("loaded save differs: %+v", got)
	}

	if _, err := s.Load(ctx, 2); !errors.Is(err, ErrSlotNotFound) {
		t.Errorf("Expected ErrSlotNotFound, got %v", err)
	}
}

func sampleSaveStamped() *SaveGame {
	g := sampleSave()
	g.Version = Version
	return g
}

func TestStoreListAndOverwrite(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	later := sampleSave()
	later.Scheduler.Tick = 99
	s.Save(ctx, 3, "third", sampleSave())
	s.Save(ctx, 1, "first", sampleSave())
	s.Save(ctx, 3, "third again", later)

	slots, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	want := []SlotInfo{
		{Slot: 1, Name: "first", Game: "prisoner", Tick: 42, SavedAt: time.UnixMilli(1700000000000)},
		{Slot: 3, Name: "third again", Game: "prisoner", Tick: 99, SavedAt: time.UnixMilli(1700000000000)},
	}
	if len(slots) != len(want) {
		t.Fatalf("List returned %d slots, want %d", len(slots), len(want))
	}
	for i := range want {
		if slots[i].Slot != want[i].Slot || slots[i].Name != want[i].Name || slots[i].Tick != want[i].Tick ||
			slots[i].Game != want[i].Game || !slots[i].SavedAt.Equal(want[i].SavedAt) {
			t.Errorf("slot %d = %+v, want %+v", i, slots[i], want[i])
		}
	}
}

func TestStoreDelete(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	s.Save(ctx, 1, "only", sampleSave())
	if err := s.Delete(ctx, 1); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Delete(ctx, 1); !errors.Is(err, ErrSlotNotFound) {
		t.Errorf("Expected ErrSlotNotFound on second delete, got %v", err)
	}
	if slots, _ := s.List(ctx); len(slots) != 0 {
		t.Errorf("slots left after delete: %v", slots)
	}
}
