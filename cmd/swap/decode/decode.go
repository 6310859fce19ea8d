// Package decode turns wav and ogg files into 16-bit PCM buffers for playback.
package decode

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/vorbis"
	"github.com/gopxl/beep/v2/wav"
)

var ErrUnsupportedFormat = errors.New("unsupported audio format")

// FramesPerRead is the number of frames pulled from a decoder per step.
const FramesPerRead = 4096

// PCM is signed 16-bit little-endian interleaved audio.
type PCM struct {
	Data       []byte
	SampleRate int
	Channels   int // 1 (mono) or 2 (stereo)
}

// Frames returns the number of sample frames in the buffer.
func (p *PCM) Frames() int {
	if p == nil || p.Channels <= 0 {
		return 0
	}
	return len(p.Data) / (2 * p.Channels)
}

// Duration returns the playing time of the buffer.
func (p *PCM) Duration() time.Duration {
	if p == nil || p.SampleRate <= 0 {
		return 0
	}
	return time.Duration(p.Frames()) * time.Second / time.Duration(p.SampleRate)
}

// Format returns the beep format describing the buffer.
func (p *PCM) Format() beep.Format {
	return beep.Format{
		SampleRate:  beep.SampleRate(p.SampleRate),
		NumChannels: p.Channels,
		Precision:   2,
	}
}

// Supported reports whether path has an extension File can decode.
func Supported(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav", ".ogg":
		return true
	}
	return false
}

// File decodes the audio file at path, picking the container by extension.
func File(path string) (*PCM, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if !Supported(path) {
		return nil, fmt.Errorf("%w '%s' for '%s', use .wav or .ogg", ErrUnsupportedFormat, ext, path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	pcm, err := Decode(f, ext)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return pcm, nil
}

// Decode reads a whole stream of the given container type (".wav" or ".ogg").
func Decode(r io.ReadCloser, ext string) (*PCM, error) {
	var (
		streamer beep.StreamSeekCloser
		format   beep.Format
		err      error
	)
	switch strings.ToLower(ext) {
	case ".wav":
		streamer, format, err = wav.Decode(r)
	case ".ogg":
		streamer, format, err = vorbis.Decode(r)
	default:
		return nil, fmt.Errorf("%w '%s'", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return nil, err
	}
	defer streamer.Close()

	return FromStreamer(streamer, format)
}

// FromStreamer drains s into a PCM buffer. Samples are clamped to [-1, 1] and
// scaled by 32767 with rounding. One decoded channel yields mono, anything
// more yields stereo.
func FromStreamer(s beep.Streamer, format beep.Format) (*PCM, error) {
	channels := 2
	if format.NumChannels <= 1 {
		channels = 1
	}

	buf := make([][2]float64, FramesPerRead)
	out := bytes.NewBuffer(make([]byte, 0, 1024*1024))
	frame := make([]byte, 2*channels)

	for {
		n, ok := s.Stream(buf)
		for i := 0; i < n; i++ {
			for c := 0; c < channels; c++ {
				binary.LittleEndian.PutUint16(frame[2*c:], uint16(toInt16(buf[i][c])))
			}
			out.Write(frame)
		}
		if !ok {
			break
		}
	}
	if err := s.Err(); err != nil {
		return nil, err
	}

	return &PCM{
		Data:       out.Bytes(),
		SampleRate: int(format.SampleRate),
		Channels:   channels,
	}, nil
}

func toInt16(f float64) int16 {
	if f > 1 {
		f = 1
	} else if f < -1 {
		f = -1
	}
	return int16(math.Round(f * math.MaxInt16))
}
