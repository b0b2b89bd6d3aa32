// Package audio plays sound effects and music through a beep mixer that is
// pumped by the game loop instead of a speaker. Scripts only ever ask
// whether a sound still plays, so the mixer advances in step with the
// ticks and the results are the same on every run.
package audio

import (
	"fmt"
	"os"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/wav"
	"github.com/tliron/commonlog"

	"github.com/chazu/mummer/vm"
)

var log = commonlog.GetLogger("mummer.audio")

// DefaultSampleRate is the mixing rate used when none is configured.
const DefaultSampleRate = beep.SampleRate(22050)

const chunkSize = 512

// Clip produces a fresh stream of one sound at the mixer's sample rate.
type Clip func() beep.Streamer

// SilentClip returns a clip of d of silence.
func SilentClip(rate beep.SampleRate, d time.Duration) Clip {
	n := rate.N(d)
	return func() beep.Streamer {
		return beep.Silence(n)
	}
}

// LoadWAV decodes a WAV file into memory and returns a clip resampled to
// rate.
func LoadWAV(path string, rate beep.SampleRate) (Clip, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	s, format, err := wav.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	defer s.Close()

	buf := beep.NewBuffer(format)
	buf.Append(s)
	return func() beep.Streamer {
		st := buf.Streamer(0, buf.Len())
		if format.SampleRate == rate {
			return st
		}
		return beep.Resample(4, format.SampleRate, rate, st)
	}, nil
}

type voice struct {
	ctrl *beep.Ctrl
	done bool
}

func (v *voice) stop() {
	v.ctrl.Streamer = nil
	v.done = true
}

// Mixer implements vm.AudioTrigger. It is not safe for concurrent use.
type Mixer struct {
	rate   beep.SampleRate
	mixer  beep.Mixer
	sounds map[string]Clip
	tracks map[int32]Clip

	voices map[vm.SoundID]*voice
	nextID vm.SoundID
	music  *voice
	track  int32

	buf [][2]float64
}

var _ vm.AudioTrigger = (*Mixer)(nil)

// NewMixer returns an empty mixer at rate.
func NewMixer(rate beep.SampleRate) *Mixer {
	if rate <= 0 {
		rate = DefaultSampleRate
	}
	return &Mixer{
		rate:   rate,
		sounds: make(map[string]Clip),
		tracks: make(map[int32]Clip),
		voices: make(map[vm.SoundID]*voice),
		nextID: 1,
		buf:    make([][2]float64, chunkSize),
	}
}

// SampleRate returns the mixing rate.
func (m *Mixer) SampleRate() beep.SampleRate {
	return m.rate
}

// AddSound registers a sound effect.
func (m *Mixer) AddSound(name string, c Clip) {
	m.sounds[name] = c
}

// AddMusic registers a music track.
func (m *Mixer) AddMusic(id int32, c Clip) {
	m.tracks[id] = c
}

func (m *Mixer) start(c Clip) *voice {
	v := &voice{}
	v.ctrl = &beep.Ctrl{Streamer: beep.Seq(c(), beep.Callback(func() { v.done = true }))}
	m.mixer.Add(v.ctrl)
	return v
}

// PlaySound starts a registered sound effect.
func (m *Mixer) PlaySound(name string) (vm.SoundID, bool) {
	c, ok := m.sounds[name]
	if !ok {
		log.Warningf("unknown sound %s", name)
		return 0, false
	}
	id := m.nextID
	m.nextID++
	m.voices[id] = m.start(c)
	log.Debugf("sound %d: %s", id, name)
	return id, true
}

// IsSoundPlaying reports whether the sound has samples left.
func (m *Mixer) IsSoundPlaying(id vm.SoundID) bool {
	v, ok := m.voices[id]
	return ok && !v.done
}

// StopSound silences one sound.
func (m *Mixer) StopSound(id vm.SoundID) {
	if v, ok := m.voices[id]; ok {
		v.stop()
		delete(m.voices, id)
	}
}

// StopAllSounds silences every sound effect. Music keeps playing.
func (m *Mixer) StopAllSounds() {
	for id, v := range m.voices {
		v.stop()
		delete(m.voices, id)
	}
}

// StartMusic replaces the current track.
func (m *Mixer) StartMusic(id int32) {
	c, ok := m.tracks[id]
	if !ok {
		log.Warningf("unknown music track %d", id)
		return
	}
	m.StopMusic()
	m.music = m.start(c)
	m.track = id
	log.Debugf("music %d", id)
}

// StopMusic silences the current track.
func (m *Mixer) StopMusic() {
	if m.music != nil {
		m.music.stop()
		m.music = nil
	}
}

// MusicPlaying returns the current track.
func (m *Mixer) MusicPlaying() (int32, bool) {
	if m.music == nil || m.music.done {
		return 0, false
	}
	return m.track, true
}

// Advance mixes d worth of samples and forgets finished sounds.
func (m *Mixer) Advance(d time.Duration) {
	for n := m.rate.N(d); n > 0; {
		chunk := m.buf
		if n < len(chunk) {
			chunk = chunk[:n]
		}
		m.mixer.Stream(chunk)
		n -= len(chunk)
	}
	for id, v := range m.voices {
		if v.done {
			delete(m.voices, id)
		}
	}
}

// Playing returns the number of streams in the mixer, music included.
func (m *Mixer) Playing() int {
	return m.mixer.Len()
}
