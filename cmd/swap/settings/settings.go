// Package settings holds the user's persisted choices: which replacements and
// origins are disabled, how often native music wins, and logging toggles.
package settings

import (
	"encoding/json"
	"errors"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/tailscale/hujson"
)

const (
	PercentStep = 5
	MaxPercent  = 100
)

// Settings is the persisted user configuration. Values handed out by a Store
// are shared and must not be mutated; use Store.Update.
type Settings struct {
	// NativeInsteadPercent is the chance (0-100) that native music plays
	// instead of a matched replacement.
	NativeInsteadPercent   int   `json:"nativeInsteadPercent"`
	EnableDebugLogging     bool  `json:"enableDebugLogging"`
	ShowSuggestionsAlways  bool  `json:"showSuggestionsAlways"`
	DisabledReplacementIDs IDSet `json:"disabledReplacementIds"`
	DisabledOriginIDs      IDSet `json:"disabledOriginIds"`
}

// fileSettings distinguishes missing fields from false ones.
type fileSettings struct {
	NativeInsteadPercent   *int  `json:"nativeInsteadPercent"`
	EnableDebugLogging     *bool `json:"enableDebugLogging"`
	ShowSuggestionsAlways  *bool `json:"showSuggestionsAlways"`
	DisabledReplacementIDs IDSet `json:"disabledReplacementIds"`
	DisabledOriginIDs      IDSet `json:"disabledOriginIds"`
}

// DefaultSettings returns the settings used when no file exists.
func DefaultSettings() *Settings {
	return &Settings{
		NativeInsteadPercent:   0,
		EnableDebugLogging:     true,
		ShowSuggestionsAlways:  true,
		DisabledReplacementIDs: IDSet{},
		DisabledOriginIDs:      IDSet{},
	}
}

// Load reads settings from path. Returns defaults if the file doesn't exist.
// Comments and trailing commas are accepted.
func Load(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultSettings(), nil
		}
		return nil, err
	}
	return Parse(data)
}

// Parse decodes settings from JSON (with comments), filling missing fields
// with defaults.
func Parse(data []byte) (*Settings, error) {
	std, err := hujson.Standardize(data)
	if err != nil {
		return nil, err
	}

	var fs fileSettings
	if err := json.Unmarshal(std, &fs); err != nil {
		return nil, err
	}

	s := DefaultSettings()
	if fs.NativeInsteadPercent != nil {
		s.NativeInsteadPercent = ClampPercent(*fs.NativeInsteadPercent)
	}
	if fs.EnableDebugLogging != nil {
		s.EnableDebugLogging = *fs.EnableDebugLogging
	}
	if fs.ShowSuggestionsAlways != nil {
		s.ShowSuggestionsAlways = *fs.ShowSuggestionsAlways
	}
	if fs.DisabledReplacementIDs != nil {
		s.DisabledReplacementIDs = fs.DisabledReplacementIDs
	}
	if fs.DisabledOriginIDs != nil {
		s.DisabledOriginIDs = fs.DisabledOriginIDs
	}
	return s, nil
}

// Save writes settings to path, creating the directory if needed.
func Save(path string, s *Settings) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Clone returns a deep copy.
func (s *Settings) Clone() *Settings {
	c := *s
	c.DisabledReplacementIDs = maps.Clone(s.DisabledReplacementIDs)
	c.DisabledOriginIDs = maps.Clone(s.DisabledOriginIDs)
	if c.DisabledReplacementIDs == nil {
		c.DisabledReplacementIDs = IDSet{}
	}
	if c.DisabledOriginIDs == nil {
		c.DisabledOriginIDs = IDSet{}
	}
	return &c
}

func (s *Settings) OriginEnabled(originID string) bool {
	return s == nil || !s.DisabledOriginIDs.Has(originID)
}

func (s *Settings) ReplacementEnabled(replacementID string) bool {
	return s == nil || !s.DisabledReplacementIDs.Has(replacementID)
}

// ClampPercent limits p to [0, 100].
func ClampPercent(p int) int {
	return min(max(p, 0), MaxPercent)
}

// IDSet is a case-insensitive set of ids. It keeps the casing an id was first
// added with and serializes as a sorted array.
type IDSet map[string]string

func (s IDSet) Has(id string) bool {
	_, ok := s[strings.ToLower(strings.TrimSpace(id))]
	return ok
}

func (s *IDSet) Add(id string) {
	id = strings.TrimSpace(id)
	if id == "" {
		return
	}
	if *s == nil {
		*s = IDSet{}
	}
	k := strings.ToLower(id)
	if _, ok := (*s)[k]; !ok {
		(*s)[k] = id
	}
}

func (s IDSet) Remove(id string) {
	delete(s, strings.ToLower(strings.TrimSpace(id)))
}

// Set adds id when on is true and removes it otherwise.
func (s *IDSet) Set(id string, on bool) {
	if on {
		s.Add(id)
	} else {
		s.Remove(id)
	}
}

// Values returns the ids sorted.
func (s IDSet) Values() []string {
	return slices.Sorted(maps.Values(s))
}

func (s IDSet) MarshalJSON() ([]byte, error) {
	values := s.Values()
	if values == nil {
		values = []string{}
	}
	return json.Marshal(values)
}

func (s *IDSet) UnmarshalJSON(data []byte) error {
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return err
	}
	*s = IDSet{}
	for _, id := range ids {
		s.Add(id)
	}
	return nil
}
