package engine

import (
	"strconv"
	"strings"
	"time"
)

// sequenceState is reset whenever the scripted sequence changes, including
// when one starts or ends.
type sequenceState struct {
	key          string // scene.Context.SequenceKey
	counts       map[string]int
	lastRequest  map[string]time.Time
	nativeRolls  map[string]bool
	customPlayed bool
}

func newSequenceState(key string) *sequenceState {
	return &sequenceState{
		key:         key,
		counts:      map[string]int{},
		lastRequest: map[string]time.Time{},
		nativeRolls: map[string]bool{},
	}
}

// occurrence returns the repeat index for trackID. A request within window of
// the previous one for the same track is the same occurrence.
func (s *sequenceState) occurrence(trackID string, now time.Time, window time.Duration) (repeat int, same bool) {
	k := strings.ToLower(trackID)
	last, seen := s.lastRequest[k]
	s.lastRequest[k] = now

	if seen && s.counts[k] > 0 && now.Sub(last) < window {
		return s.counts[k], true
	}
	s.counts[k]++
	return s.counts[k], false
}

func occurrenceKey(trackID string, repeat int) string {
	return strings.ToLower(trackID) + "#" + strconv.Itoa(repeat)
}
