package playback

import (
	"errors"

	"github.com/gigurra/trackswap/cmd/swap/decode"
)

var ErrClosed = errors.New("voice is closed")

// State is the playback state of a voice.
type State string

const (
	StateStopped State = "stopped"
	StatePlaying State = "playing"
	StatePaused  State = "paused"
)

// Voice is a loaded, playable audio handle.
type Voice interface {
	// Play starts playback from the beginning.
	Play() error
	// Stop halts playback immediately.
	Stop()
	State() State
	SetVolume(v float64)
	// Close releases the voice. A closed voice cannot be played again.
	Close() error
}

// Backend creates voices from decoded audio.
type Backend interface {
	Load(pcm *decode.PCM) (Voice, error)
}

// NativeAudio is the host's own music player as seen by the manager.
type NativeAudio interface {
	// MusicVolume is the user's music volume setting in [0, 1].
	MusicVolume() float64
	// NativeVolume is the current volume of the host's player.
	NativeVolume() float64
	SetNativeVolume(v float64)
	NativePlaying() bool
	// StopNative stops the host's current track immediately.
	StopNative()
	// Focused reports whether the host application is active.
	Focused() bool
}
