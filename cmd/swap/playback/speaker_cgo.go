//go:build (linux && cgo) || windows || darwin

package playback

import (
	"math"
	"sync"
	"time"

	"github.com/gigurra/trackswap/cmd/swap/decode"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/speaker"
)

// AudioAvailable indicates whether audio playback is supported in this build.
const AudioAvailable = true

type speakerBackend struct {
	mu          sync.Mutex
	initialized bool
	sampleRate  beep.SampleRate
}

// NewSpeakerBackend returns a Backend that plays through the system speaker.
func NewSpeakerBackend() Backend {
	return &speakerBackend{
		sampleRate: beep.SampleRate(44100),
	}
}

func (b *speakerBackend) initSpeaker() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.initialized {
		return nil
	}
	if err := speaker.Init(b.sampleRate, b.sampleRate.N(time.Second/10)); err != nil {
		return err
	}
	b.initialized = true
	return nil
}

func (b *speakerBackend) Load(pcm *decode.PCM) (Voice, error) {
	if err := b.initSpeaker(); err != nil {
		return nil, err
	}
	return &speakerVoice{backend: b, pcm: pcm, state: StateStopped, volume: 1}, nil
}

type speakerVoice struct {
	mu      sync.Mutex
	backend *speakerBackend
	pcm     *decode.PCM

	ctrl   *beep.Ctrl
	vol    *effects.Volume
	state  State
	volume float64
	playID uint64 // bumped on every start/stop so stale callbacks are ignored
	closed bool
}

func (v *speakerVoice) Play() error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.closed {
		return ErrClosed
	}
	v.stopLocked()

	resampled := beep.Resample(4, v.pcm.Format().SampleRate, v.backend.sampleRate, v.pcm.Streamer())
	v.vol = &effects.Volume{Streamer: resampled, Base: 2}
	applyVolume(v.vol, v.volume)
	v.ctrl = &beep.Ctrl{Streamer: v.vol}

	v.playID++
	id := v.playID
	speaker.Play(beep.Seq(v.ctrl, beep.Callback(func() {
		// The speaker lock is held here
		go v.finished(id)
	})))
	v.state = StatePlaying
	return nil
}

func (v *speakerVoice) finished(id uint64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if id == v.playID && v.state == StatePlaying {
		v.state = StateStopped
		v.ctrl = nil
		v.vol = nil
	}
}

func (v *speakerVoice) Stop() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.stopLocked()
}

func (v *speakerVoice) stopLocked() {
	if v.ctrl != nil {
		speaker.Lock()
		v.ctrl.Streamer = nil
		v.ctrl.Paused = true
		speaker.Unlock()
	}
	v.playID++
	v.ctrl = nil
	v.vol = nil
	v.state = StateStopped
}

func (v *speakerVoice) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

func (v *speakerVoice) SetVolume(vol float64) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.volume = vol
	if v.vol != nil {
		speaker.Lock()
		applyVolume(v.vol, vol)
		speaker.Unlock()
	}
}

func (v *speakerVoice) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.stopLocked()
	v.closed = true
	v.pcm = nil
	return nil
}

// applyVolume maps a linear [0, 1] volume onto the base-2 volume effect.
func applyVolume(e *effects.Volume, linear float64) {
	if linear <= 0 {
		e.Silent = true
		return
	}
	e.Silent = false
	e.Volume = math.Log2(math.Min(linear, 1))
}
