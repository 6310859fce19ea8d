package decode

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/gopxl/beep/v2"
)

// Streamer returns a fresh beep.StreamSeeker reading the buffer from the start.
func (p *PCM) Streamer() beep.StreamSeeker {
	return &pcmStreamer{pcm: p}
}

type pcmStreamer struct {
	pcm *PCM
	pos int // frame
}

func (s *pcmStreamer) Stream(samples [][2]float64) (n int, ok bool) {
	frames := s.pcm.Frames()
	if s.pos >= frames {
		return 0, false
	}
	for n < len(samples) && s.pos < frames {
		s.sampleAt(s.pos, &samples[n])
		s.pos++
		n++
	}
	return n, true
}

func (s *pcmStreamer) sampleAt(frame int, out *[2]float64) {
	ch := s.pcm.Channels
	off := frame * 2 * ch
	left := float64(int16(binary.LittleEndian.Uint16(s.pcm.Data[off:]))) / math.MaxInt16
	right := left
	if ch == 2 {
		right = float64(int16(binary.LittleEndian.Uint16(s.pcm.Data[off+2:]))) / math.MaxInt16
	}
	out[0], out[1] = left, right
}

func (s *pcmStreamer) Err() error { return nil }

func (s *pcmStreamer) Len() int { return s.pcm.Frames() }

func (s *pcmStreamer) Position() int { return s.pos }

func (s *pcmStreamer) Seek(p int) error {
	if p < 0 || p > s.pcm.Frames() {
		return fmt.Errorf("seek position %d out of range [0, %d]", p, s.pcm.Frames())
	}
	s.pos = p
	return nil
}
