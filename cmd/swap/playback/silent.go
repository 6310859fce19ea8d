package playback

import (
	"sync"

	"github.com/gigurra/trackswap/cmd/swap/decode"
)

// SilentBackend produces voices that track their state without making sound.
// Useful for headless hosts and simulations.
type SilentBackend struct {
	mu     sync.Mutex
	voices []*SilentVoice
}

// NewSilentBackend creates a SilentBackend.
func NewSilentBackend() *SilentBackend {
	return &SilentBackend{}
}

func (b *SilentBackend) Load(pcm *decode.PCM) (Voice, error) {
	v := &SilentVoice{state: StateStopped, volume: 1, pcm: pcm}
	b.mu.Lock()
	b.voices = append(b.voices, v)
	b.mu.Unlock()
	return v, nil
}

// Loaded returns how many voices were created.
func (b *SilentBackend) Loaded() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.voices)
}

// EndAll marks every playing voice as finished, as if its audio ran out.
func (b *SilentBackend) EndAll() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	ended := 0
	for _, v := range b.voices {
		if v.State() == StatePlaying {
			v.End()
			ended++
		}
	}
	return ended
}

// SilentVoice is a Voice without audio output.
type SilentVoice struct {
	mu     sync.Mutex
	pcm    *decode.PCM
	state  State
	volume float64
	plays  int
	closed bool
}

func (v *SilentVoice) Play() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return ErrClosed
	}
	v.state = StatePlaying
	v.plays++
	return nil
}

func (v *SilentVoice) Stop() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.state = StateStopped
}

func (v *SilentVoice) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

func (v *SilentVoice) SetVolume(vol float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.volume = vol
}

// Volume returns the last volume set.
func (v *SilentVoice) Volume() float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.volume
}

// Plays returns how many times playback was started.
func (v *SilentVoice) Plays() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.plays
}

// End stops the voice as if it reached the end of its audio.
func (v *SilentVoice) End() {
	v.Stop()
}

func (v *SilentVoice) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.state = StateStopped
	v.closed = true
	v.pcm = nil
	return nil
}

// Closed reports whether Close was called.
func (v *SilentVoice) Closed() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.closed
}
