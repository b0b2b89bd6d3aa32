package vm

import "time"

// Character identifies a playable character. CharacterNone tags processes
// that do not drive any character.
type Character int32

// CharacterNone is the global, non-character tag.
const CharacterNone Character = 0

// SoundID identifies a playing sound effect.
type SoundID int32

// TextID identifies a line of text or speech on screen.
type TextID int32

// The narrow collaborator interfaces used by the interpreter and kernel
// calls. engine.World implements all of them; tests embed NullHost and
// override what they need.

// CharacterLocks hands out per-character semaphores.
type CharacterLocks interface {
	SemaphoreFor(c Character) *Semaphore
	SemaphoreByName(name string) *Semaphore
}

// Player is the player's view of the game: who is active and where.
type Player interface {
	ActiveCharacter() Character
	SetActiveCharacter(c Character)
	// ChangeRoom switches the current room and reports whether it exists.
	ChangeRoom(name string) bool
}

// Objects toggles and animates named room objects.
type Objects interface {
	ToggleObject(owner Character, name string, on bool) bool
	// StartAnimation reports false when no animatable object has that name.
	StartAnimation(owner Character, name string) bool
	IsAnimating(owner Character, name string) bool
}

// MotionSink drives walking actors. Walk calls start a path query and
// report false when the actor or target is unknown.
type MotionSink interface {
	ActorFor(c Character) string
	HasActor(name string) bool
	PointOf(owner Character, name string) (x, y int32, ok bool)
	WalkTo(actor string, x, y int32) bool
	WalkToNode(actor string, node int32) bool
	Put(actor string, x, y int32) bool
	PutAtNode(actor string, node int32) bool
	StopWalking(actor string, direction int32)
	IsWalking(actor string) bool
}

// PathControl toggles the walkable area of the current room.
type PathControl interface {
	TogglePathSystem()
	SetPathEdgeEnabled(index int32, enabled bool)
	SetPathPolygonEnabled(index int32, enabled bool)
}

// AudioTrigger plays sounds and music.
type AudioTrigger interface {
	PlaySound(name string) (SoundID, bool)
	IsSoundPlaying(id SoundID) bool
	StopSound(id SoundID)
	StartMusic(id int32)
	StopMusic()
	StopAllSounds()
}

// TextSink shows speech and captions.
type TextSink interface {
	SayText(speaker string, dialogID int32) (TextID, bool)
	ShowText(dialogID int32, duration time.Duration) TextID
	IsTextShowing(id TextID) bool
	StopTexts()
}

// DialogMenu collects choice lines and reports the chosen one.
type DialogMenu interface {
	AddDialogLine(c Character, dialogID int32)
	SetDialogLineReturn(c Character, value int32)
	OpenDialogMenu(c Character) bool
	// DialogChoice returns the return value of the chosen line once the
	// player picked one.
	DialogChoice(c Character) (value int32, done bool)
	ResetDialog(c Character)
}

// Inventory moves items between the room and a character.
type Inventory interface {
	Pickup(c Character, item string, hold bool)
	Drop(c Character, item string)
}

// Input reports player input relevant to scripts.
type Input interface {
	WasMousePressed() bool
}

// Host bundles every collaborator the scheduler needs.
type Host interface {
	Player
	Objects
	MotionSink
	PathControl
	AudioTrigger
	TextSink
	DialogMenu
	Inventory
	Input
}

// NullHost implements Host with neutral results: nothing exists, nothing
// plays and nothing is ever pending.
type NullHost struct {
	Active Character
}

var _ Host = (*NullHost)(nil)

func (h *NullHost) ActiveCharacter() Character { return h.Active }
func (h *NullHost) SetActiveCharacter(c Character) { h.Active = c }
func (h *NullHost) ChangeRoom(string) bool { return false }
func (h *NullHost) ToggleObject(Character, string, bool) bool { return false }
func (h *NullHost) StartAnimation(Character, string) bool { return false }
func (h *NullHost) IsAnimating(Character, string) bool { return false }
func (h *NullHost) ActorFor(Character) string { return "" }
func (h *NullHost) HasActor(string) bool { return false }
func (h *NullHost) PointOf(Character, string) (int32, int32, bool) { return 0, 0, false }
func (h *NullHost) WalkTo(string, int32, int32) bool { return false }
func (h *NullHost) WalkToNode(string, int32) bool { return false }
func (h *NullHost) Put(string, int32, int32) bool { return false }
func (h *NullHost) PutAtNode(string, int32) bool { return false }
func (h *NullHost) StopWalking(string, int32) {}
func (h *NullHost) IsWalking(string) bool { return false }
func (h *NullHost) TogglePathSystem() {}
func (h *NullHost) SetPathEdgeEnabled(int32, bool) {}
func (h *NullHost) SetPathPolygonEnabled(int32, bool) {}
func (h *NullHost) PlaySound(string) (SoundID, bool) { return 0, false }
func (h *NullHost) IsSoundPlaying(SoundID) bool { return false }
func (h *NullHost) StopSound(SoundID) {}
func (h *NullHost) StartMusic(int32) {}
func (h *NullHost) StopMusic() {}
func (h *NullHost) StopAllSounds() {}
func (h *NullHost) SayText(string, int32) (TextID, bool) { return 0, false }
func (h *NullHost) ShowText(int32, time.Duration) TextID { return 0 }
func (h *NullHost) IsTextShowing(TextID) bool { return false }
func (h *NullHost) StopTexts() {}
func (h *NullHost) AddDialogLine(Character, int32) {}
func (h *NullHost) SetDialogLineReturn(Character, int32) {}
func (h *NullHost) OpenDialogMenu(Character) bool { return false }
func (h *NullHost) DialogChoice(Character) (int32, bool) { return 0, true }
func (h *NullHost) ResetDialog(Character) {}
func (h *NullHost) Pickup(Character, string, bool) {}
func (h *NullHost) Drop(Character, string) {}
func (h *NullHost) WasMousePressed() bool { return false }
