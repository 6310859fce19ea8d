// Package scene captures the host's situational context for a single music
// decision.
package scene

import (
	"fmt"
	"strings"
)

// UnknownLocation is reported when the host has no current location.
const UnknownLocation = "UnknownLocation"

// Source is the narrow capability a host implements so a Context can be read.
type Source interface {
	Location() string
	SequenceActive() bool
	// SequenceID returns the id of the active scripted sequence, or "" when
	// the host cannot tell.
	SequenceID() string
}

// Context is an immutable snapshot of where the host is. It is taken fresh on
// every decision and never cached beyond it.
type Context struct {
	Location       string
	SequenceActive bool
	SequenceID     string // "" when no sequence is active or its id is unknown
}

// Snapshot reads src into a Context. Panics raised by the host are recovered
// and replaced with fallback values.
func Snapshot(src Source) Context {
	if src == nil {
		return Context{Location: UnknownLocation}
	}

	ctx := Context{
		Location:       strings.TrimSpace(read(src.Location, "")),
		SequenceActive: read(src.SequenceActive, false),
	}
	if ctx.Location == "" {
		ctx.Location = UnknownLocation
	}
	if ctx.SequenceActive {
		ctx.SequenceID = strings.TrimSpace(read(src.SequenceID, ""))
	}
	return ctx
}

// HasSequenceID reports whether a sequence is active and its id is known.
func (c Context) HasSequenceID() bool {
	return c.SequenceActive && c.SequenceID != ""
}

// SequenceKey identifies the current sequence state. Two contexts with the
// same SequenceKey belong to the same scripted sequence (or to none).
func (c Context) SequenceKey() string {
	if !c.SequenceActive {
		return ""
	}
	return "active:" + strings.ToLower(c.SequenceID)
}

func (c Context) String() string {
	if !c.SequenceActive {
		return fmt.Sprintf("sequenceActive=false, location=%s", c.Location)
	}
	id := c.SequenceID
	if id == "" {
		id = "UnknownSequenceId"
	}
	return fmt.Sprintf("sequenceActive=true, location=%s, sequenceId=%s", c.Location, id)
}

func read[T any](f func() T, fallback T) (v T) {
	defer func() {
		if r := recover(); r != nil {
			v = fallback
		}
	}()
	return f()
}
