// Package keys builds the ordered candidate lookup keys for a track request.
package keys

import (
	"fmt"
	"strings"

	"github.com/gigurra/trackswap/cmd/swap/scene"
)

// Key segment tokens. Matching is case-insensitive.
const (
	Separator      = "|"
	LocationPrefix = "location="
	SequencePrefix = "scriptedId="
	RepeatPrefix   = "repeat="
	SequenceActive = "sequenceActive"
)

// Build returns the candidate keys for trackID in ctx, most specific first.
// repeat <= 0 means no repeat index. The bare trackID is always last.
func Build(trackID string, ctx scene.Context, repeat int) []string {
	loc := LocationPrefix + ctx.Location
	list := make([]string, 0, 8)

	if ctx.HasSequenceID() {
		seq := SequencePrefix + ctx.SequenceID
		if repeat > 0 {
			rep := fmt.Sprintf("%s%d", RepeatPrefix, repeat)
			list = append(list,
				join(trackID, loc, seq, rep),
				join(trackID, seq, rep),
			)
		}
		list = append(list,
			join(trackID, loc, seq),
			join(trackID, seq),
		)
	}

	if ctx.SequenceActive {
		list = append(list,
			join(trackID, loc, SequenceActive),
			join(trackID, SequenceActive),
		)
	}

	list = append(list, join(trackID, loc), trackID)
	return list
}

func join(parts ...string) string {
	return strings.Join(parts, Separator)
}

// Equal reports whether two keys are the same lookup unit.
func Equal(a, b string) bool {
	return strings.EqualFold(a, b)
}

// TrackName returns the track part of a key.
func TrackName(key string) string {
	if i := strings.Index(key, Separator); i >= 0 {
		return key[:i]
	}
	return key
}

// Suggestions renders keys as JSON skeleton entries a content author can paste
// into a replacement file. Case-insensitive duplicates are dropped.
func Suggestions(keys []string) string {
	var lines []string
	for _, k := range unique(keys) {
		lines = append(lines,
			fmt.Sprintf("  %q: [", k),
			`    ""`,
			"  ],",
		)
	}
	return strings.Join(lines, "\n")
}

// SingleLineSuggestions renders one compact JSON entry per unique key.
func SingleLineSuggestions(keys []string) []string {
	var out []string
	for _, k := range unique(keys) {
		out = append(out, fmt.Sprintf(`%q: [ "" ],`, k))
	}
	return out
}

func unique(keys []string) []string {
	seen := make(map[string]bool, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		lk := strings.ToLower(k)
		if seen[lk] {
			continue
		}
		seen[lk] = true
		out = append(out, k)
	}
	return out
}
