// Package simhost provides an in-memory host with a native music player, used
// to drive the engine without a real application.
package simhost

import (
	"sync"
	"time"
)

// Host implements engine.Host in memory.
type Host struct {
	mu sync.Mutex

	location   string
	seqActive  bool
	seqID      string
	focused    bool
	musicVol   float64
	nativeVol  float64
	track      string
	playing    bool
	stopCalls  int
	trackStart int
}

func New() *Host {
	return &Host{
		location:  "Farm",
		focused:   true,
		musicVol:  1,
		nativeVol: 1,
	}
}

func (h *Host) Location() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.location
}

func (h *Host) SequenceActive() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.seqActive
}

func (h *Host) SequenceID() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.seqID
}

func (h *Host) MusicVolume() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.musicVol
}

func (h *Host) NativeVolume() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.nativeVol
}

func (h *Host) SetNativeVolume(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nativeVol = v
}

func (h *Host) NativePlaying() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.playing
}

func (h *Host) StopNative() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.playing = false
	h.stopCalls++
}

func (h *Host) Focused() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.focused
}

func (h *Host) SetLocation(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.location = name
}

// StartSequence begins a scripted sequence. An empty id means the host
// cannot tell which one.
func (h *Host) StartSequence(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.seqActive = true
	h.seqID = id
}

func (h *Host) EndSequence() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.seqActive = false
	h.seqID = ""
}

func (h *Host) SetMusicVolume(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.musicVol = v
}

func (h *Host) SetFocused(focused bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.focused = focused
}

// PlayNative starts the host's own track, as the host does when the engine
// allows it.
func (h *Host) PlayNative(track string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.track = track
	h.playing = track != ""
	h.trackStart++
}

// NativeTrack returns the last native track and whether it is still playing.
func (h *Host) NativeTrack() (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.track, h.playing
}

// StopCalls returns how many times native playback was force-stopped.
func (h *Host) StopCalls() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stopCalls
}

// NativeStarts returns how many native tracks were started.
func (h *Host) NativeStarts() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.trackStart
}

// Clock is a manually advanced clock.
type Clock struct {
	mu sync.Mutex
	t  time.Time
}

func NewClock(start time.Time) *Clock {
	return &Clock{t: start}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}
