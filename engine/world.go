// Package engine runs a game headlessly: World implements every
// collaborator the scheduler talks to on top of the scene description,
// and Session drives scheduler, actors and audio one frame at a time.
package engine

import (
	"path/filepath"
	"slices"
	"sort"
	"time"

	"github.com/tliron/commonlog"

	"github.com/chazu/mummer/audio"
	"github.com/chazu/mummer/manifest"
	"github.com/chazu/mummer/pkg/motion"
	"github.com/chazu/mummer/pkg/pathgraph"
	"github.com/chazu/mummer/scene"
	"github.com/chazu/mummer/vm"
)

var log = commonlog.GetLogger("mummer.engine")

type objectState struct {
	on       bool
	frames   int
	animLeft int
}

type text struct {
	id    vm.TextID
	until time.Duration
}

type dialogLine struct {
	id  int32
	ret int32
}

type dialog struct {
	lines []dialogLine
	open  bool
}

type holding struct {
	items []string
	held  string
}

// World is the game state outside the scripts.
type World struct {
	manifest *manifest.Manifest
	scene    *scene.Scene

	room    *scene.Room
	graph   *pathgraph.Graph
	actors  *motion.Controller
	sprites *sprites
	mixer   *audio.Mixer

	active    vm.Character
	objects   map[string]*objectState
	texts     []text
	nextText  vm.TextID
	dialogs   map[vm.Character]*dialog
	inventory map[vm.Character]*holding

	clock   time.Duration
	pressed bool
	choice  int
}

var _ vm.Host = (*World)(nil)

// NewWorld builds a world with no current room. Sounds are loaded relative
// to the scene directory.
func NewWorld(m *manifest.Manifest, sc *scene.Scene) (*World, error) {
	w := &World{
		manifest:  m,
		scene:     sc,
		sprites:   newSprites(),
		mixer:     audio.NewMixer(audio.DefaultSampleRate),
		active:    1,
		objects:   make(map[string]*objectState),
		nextText:  1,
		dialogs:   make(map[vm.Character]*dialog),
		inventory: make(map[vm.Character]*holding),
		choice:    -1,
	}
	w.actors = motion.NewController(nil, w.sprites)

	dir := filepath.Dir(m.ScenePath())
	for _, s := range sc.Sounds {
		c, err := w.clip(dir, s)
		if err != nil {
			return nil, err
		}
		w.mixer.AddSound(s.Name, c)
	}
	for _, s := range sc.Music {
		c, err := w.clip(dir, s)
		if err != nil {
			return nil, err
		}
		w.mixer.AddMusic(s.ID, c)
	}

	for _, r := range sc.Rooms {
		for _, o := range r.Objects {
			w.objects[objectKey(r.Name, o.Name)] = &objectState{on: o.On, frames: o.Frames}
		}
	}
	for _, c := range sc.Characters {
		w.actors.Add(w.newActor(c))
	}
	return w, nil
}

func (w *World) clip(dir string, s scene.Sound) (audio.Clip, error) {
	if s.File == "" {
		return audio.SilentClip(w.mixer.SampleRate(), time.Duration(s.MS)*time.Millisecond), nil
	}
	path := s.File
	if !filepath.IsAbs(path) {
		path = filepath.Join(dir, path)
	}
	return audio.LoadWAV(path, w.mixer.SampleRate())
}

func (w *World) newActor(a scene.Actor) *motion.Actor {
	speed := a.Speed
	if speed <= 0 {
		speed = w.manifest.Timing.WalkSpeed
	}
	return motion.NewActor(a.Name, a.X, a.Y, a.Scale, speed<<motion.SubpixelShift)
}

func objectKey(room, name string) string {
	return room + "/" + name
}

// Room returns the current room, nil before the first ChangeRoom.
func (w *World) Room() *scene.Room { return w.room }

// Graph returns the walkable area of the current room.
func (w *World) Graph() *pathgraph.Graph { return w.graph }

// Actors returns the motion controller.
func (w *World) Actors() *motion.Controller { return w.actors }

// Mixer returns the audio mixer.
func (w *World) Mixer() *audio.Mixer { return w.mixer }

// Clock returns the world time.
func (w *World) Clock() time.Duration { return w.clock }

// characterName returns the actor name of c, "" for CharacterNone and
// unknown characters.
func (w *World) characterName(c vm.Character) string {
	if c < 1 || int(c) > len(w.scene.Characters) {
		return ""
	}
	return w.scene.Characters[c-1].Name
}

// ---------------------------------------------------------------------------
// Player
// ---------------------------------------------------------------------------

func (w *World) ActiveCharacter() vm.Character { return w.active }

func (w *World) SetActiveCharacter(c vm.Character) {
	log.Infof("active character: %d (%s)", c, w.characterName(c))
	w.active = c
}

// ChangeRoom loads the walkable area and actors of a room. Characters
// keep their positions.
func (w *World) ChangeRoom(name string) bool {
	r, ok := w.scene.Room(name)
	if !ok {
		return false
	}
	g, err := r.Graph()
	if err != nil {
		log.Errorf("room %s: %s", name, err)
		return false
	}
	if w.room != nil {
		for _, a := range w.room.Actors {
			w.actors.Remove(a.Name)
		}
	}
	w.room, w.graph = r, g
	w.actors.SetPaths(g)
	for _, a := range w.actors.Actors() {
		w.actors.Stop(a, a.Direction)
		a.Node, a.Edge, a.Polygon = pathgraph.None, pathgraph.None, pathgraph.None
	}
	for _, a := range r.Actors {
		w.actors.Add(w.newActor(a))
	}
	w.mixer.StopAllSounds()
	w.StopTexts()
	log.Infof("entered room %s", name)
	return true
}

// ---------------------------------------------------------------------------
// Objects
// ---------------------------------------------------------------------------

// object returns the state of a room object visible to owner.
func (w *World) object(owner vm.Character, name string) *objectState {
	if w.room == nil {
		return nil
	}
	who := w.characterName(owner)
	for _, o := range w.room.Objects {
		if o.Name == name && (o.Owner == "" || o.Owner == who) {
			return w.objects[objectKey(w.room.Name, name)]
		}
	}
	return nil
}

func (w *World) ToggleObject(owner vm.Character, name string, on bool) bool {
	o := w.object(owner, name)
	if o == nil {
		return false
	}
	o.on = on
	return true
}

// ObjectOn reports whether a current room object is switched on.
func (w *World) ObjectOn(name string) bool {
	o := w.object(vm.CharacterNone, name)
	return o != nil && o.on
}

func (w *World) StartAnimation(owner vm.Character, name string) bool {
	o := w.object(owner, name)
	if o == nil || o.frames <= 0 {
		return false
	}
	o.animLeft = o.frames
	return true
}

func (w *World) IsAnimating(owner vm.Character, name string) bool {
	o := w.object(owner, name)
	return o != nil && o.animLeft > 0
}

// ---------------------------------------------------------------------------
// Motion
// ---------------------------------------------------------------------------

func (w *World) ActorFor(c vm.Character) string {
	return w.characterName(c)
}

func (w *World) HasActor(name string) bool {
	_, ok := w.actors.Actor(name)
	return ok
}

// PointOf resolves a walk target: a named point of the current room, or
// another actor.
func (w *World) PointOf(owner vm.Character, name string) (int32, int32, bool) {
	if w.room != nil {
		if p, ok := w.room.Point(w.characterName(owner), name); ok {
			return int32(p.X), int32(p.Y), true
		}
	}
	if a, ok := w.actors.Actor(name); ok {
		return int32(a.X), int32(a.Y), true
	}
	return 0, 0, false
}

func (w *World) WalkTo(actor string, x, y int32) bool {
	a, ok := w.actors.Actor(actor)
	if !ok {
		return false
	}
	w.actors.WalkTo(a, int(x), int(y))
	return a.IsWalking()
}

func (w *World) WalkToNode(actor string, node int32) bool {
	if w.graph == nil {
		return false
	}
	n, ok := w.graph.Node(int(node))
	if !ok {
		log.Warningf("walk to unknown node %d", node)
		return false
	}
	return w.WalkTo(actor, int32(n.X), int32(n.Y))
}

func (w *World) Put(actor string, x, y int32) bool {
	a, ok := w.actors.Actor(actor)
	if !ok {
		return false
	}
	w.actors.Put(a, int(x), int(y))
	return true
}

func (w *World) PutAtNode(actor string, node int32) bool {
	a, ok := w.actors.Actor(actor)
	if !ok || w.graph == nil {
		return false
	}
	n, ok := w.graph.Node(int(node))
	if !ok {
		return false
	}
	w.actors.Put(a, n.X, n.Y)
	a.Node = n.Index
	a.Scale = n.Scale
	return true
}

func (w *World) StopWalking(actor string, direction int32) {
	if a, ok := w.actors.Actor(actor); ok {
		w.actors.Stop(a, int(direction))
	}
}

func (w *World) IsWalking(actor string) bool {
	a, ok := w.actors.Actor(actor)
	return ok && a.IsWalking()
}

// ---------------------------------------------------------------------------
// Path control
// ---------------------------------------------------------------------------

func (w *World) TogglePathSystem() {
	if w.graph != nil {
		w.graph.Toggle(!w.graph.Built())
	}
}

func (w *World) SetPathEdgeEnabled(index int32, enabled bool) {
	if w.graph == nil {
		return
	}
	if err := w.graph.SetEdgeEnabled(int(index), enabled); err != nil {
		log.Warningf("path edge: %s", err)
	}
}

func (w *World) SetPathPolygonEnabled(index int32, enabled bool) {
	if w.graph == nil {
		return
	}
	if err := w.graph.SetPolygonEnabled(int(index), enabled); err != nil {
		log.Warningf("path polygon: %s", err)
	}
}

// ---------------------------------------------------------------------------
// Audio
// ---------------------------------------------------------------------------

func (w *World) PlaySound(name string) (vm.SoundID, bool) { return w.mixer.PlaySound(name) }
func (w *World) IsSoundPlaying(id vm.SoundID) bool { return w.mixer.IsSoundPlaying(id) }
func (w *World) StopSound(id vm.SoundID) { w.mixer.StopSound(id) }
func (w *World) StartMusic(id int32) { w.mixer.StartMusic(id) }
func (w *World) StopMusic() { w.mixer.StopMusic() }
func (w *World) StopAllSounds() { w.mixer.StopAllSounds() }

// ---------------------------------------------------------------------------
// Text and dialog
// ---------------------------------------------------------------------------

func (w *World) addText(d time.Duration) vm.TextID {
	id := w.nextText
	w.nextText++
	w.texts = append(w.texts, text{id: id, until: w.clock + d})
	return id
}

// SayText shows a dialog line for its reading time. The speaker must be
// an actor of the current room.
func (w *World) SayText(speaker string, dialogID int32) (vm.TextID, bool) {
	if !w.HasActor(speaker) {
		return 0, false
	}
	t, ok := w.scene.Text(dialogID)
	if !ok {
		log.Warningf("%s says unknown text %d", speaker, dialogID)
		t = scene.Text{ID: dialogID}
	}
	d := time.Duration(w.scene.ReadingMS(t)) * time.Millisecond
	log.Infof("%s: %s", speaker, t.Text)
	return w.addText(d), true
}

func (w *World) ShowText(dialogID int32, duration time.Duration) vm.TextID {
	if t, ok := w.scene.Text(dialogID); ok {
		log.Infof("%s", t.Text)
	}
	return w.addText(duration)
}

func (w *World) IsTextShowing(id vm.TextID) bool {
	for _, t := range w.texts {
		if t.id == id {
			return w.clock < t.until
		}
	}
	return false
}

func (w *World) StopTexts() {
	w.texts = w.texts[:0]
}

func (w *World) dialog(c vm.Character) *dialog {
	d, ok := w.dialogs[c]
	if !ok {
		d = &dialog{}
		w.dialogs[c] = d
	}
	return d
}

func (w *World) AddDialogLine(c vm.Character, dialogID int32) {
	d := w.dialog(c)
	d.lines = append(d.lines, dialogLine{id: dialogID})
}

// SetDialogLineReturn sets the value returned when the last added line is
// chosen.
func (w *World) SetDialogLineReturn(c vm.Character, value int32) {
	d := w.dialog(c)
	if len(d.lines) == 0 {
		log.Warningf("dialog return %d without a line", value)
		return
	}
	d.lines[len(d.lines)-1].ret = value
}

func (w *World) OpenDialogMenu(c vm.Character) bool {
	d := w.dialog(c)
	if len(d.lines) == 0 {
		return false
	}
	d.open = true
	w.choice = -1
	return true
}

// DialogChoice consumes the choice of the input track. An out of range
// choice picks the last line.
func (w *World) DialogChoice(c vm.Character) (int32, bool) {
	d := w.dialog(c)
	if !d.open || w.choice < 0 {
		return 0, false
	}
	i := min(w.choice, len(d.lines)-1)
	v := d.lines[i].ret
	w.choice = -1
	w.ResetDialog(c)
	return v, true
}

func (w *World) ResetDialog(c vm.Character) {
	delete(w.dialogs, c)
}

// ---------------------------------------------------------------------------
// Inventory
// ---------------------------------------------------------------------------

func (w *World) holding(c vm.Character) *holding {
	h, ok := w.inventory[c]
	if !ok {
		h = &holding{}
		w.inventory[c] = h
	}
	return h
}

func (w *World) Pickup(c vm.Character, item string, hold bool) {
	if len(w.scene.Items) > 0 && !slices.Contains(w.scene.Items, item) {
		log.Warningf("pickup of unknown item %s", item)
	}
	h := w.holding(c)
	if !slices.Contains(h.items, item) {
		h.items = append(h.items, item)
	}
	if hold {
		h.held = item
	}
}

func (w *World) Drop(c vm.Character, item string) {
	h := w.holding(c)
	if i := slices.Index(h.items, item); i >= 0 {
		h.items = slices.Delete(h.items, i, i+1)
	}
	if h.held == item {
		h.held = ""
	}
}

// Items returns the inventory of c and the item in hand.
func (w *World) Items(c vm.Character) ([]string, string) {
	h, ok := w.inventory[c]
	if !ok {
		return nil, ""
	}
	return slices.Clone(h.items), h.held
}

// ---------------------------------------------------------------------------
// Input
// ---------------------------------------------------------------------------

func (w *World) WasMousePressed() bool { return w.pressed }

// Press registers a mouse press for the coming tick.
func (w *World) Press() {
	w.pressed = true
}

// Click presses and sends the active character towards (x, y). A click on
// another actor only presses.
func (w *World) Click(x, y int) {
	w.pressed = true
	name := w.characterName(w.active)
	a, ok := w.actors.Actor(name)
	if !ok {
		return
	}
	for _, other := range w.actors.Actors() {
		if other != a && w.actors.Bounds(other).Contains(x, y) {
			log.Debugf("clicked on %s", other.Name)
			return
		}
	}
	w.actors.Redirect(a, x, y)
}

// Choose picks a line of the open dialog menu.
func (w *World) Choose(line int) {
	w.pressed = true
	w.choice = line
}

// advance moves the world one frame forward after the scripts ran.
func (w *World) advance(d time.Duration) {
	w.actors.AdvanceAll()
	w.sprites.step()
	for _, o := range w.objects {
		if o.animLeft > 0 {
			o.animLeft--
		}
	}
	w.mixer.Advance(d)
	w.clock += d
	w.pressed = false

	kept := w.texts[:0]
	for _, t := range w.texts {
		if w.clock < t.until {
			kept = append(kept, t)
		}
	}
	w.texts = kept
}

// switchedOn lists the keys of every object switched on, sorted.
func (w *World) switchedOn() []string {
	var keys []string
	for k, o := range w.objects {
		if o.on {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}
