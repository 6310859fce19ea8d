//go:build !((linux && cgo) || windows || darwin)

package playback

// AudioAvailable indicates whether audio playback is supported in this build.
const AudioAvailable = false

// NewSpeakerBackend falls back to silent voices when built without audio support.
func NewSpeakerBackend() Backend {
	return NewSilentBackend()
}
