// Package registry holds the merged set of replacement assets per candidate
// key, built from a base configuration plus any number of add-on sources.
package registry

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync/atomic"
)

// Entry is one (key, asset) pair.
type Entry struct {
	Key   string
	Asset Asset
}

// ReloadStats summarizes a reload.
type ReloadStats struct {
	Keys     int
	Files    int
	AddOns   int
	Warnings int
}

type keyAssets struct {
	key    string // casing as first seen
	assets []Asset
}

// table is never mutated after it has been published.
type table struct {
	byKey map[string]*keyAssets
	order []string
}

func (t *table) len() int {
	if t == nil {
		return 0
	}
	return len(t.byKey)
}

// Registry maps candidate keys to ordered lists of assets. Reloads build a new
// table and publish it atomically, so readers never see a partial merge.
type Registry struct {
	sources SourceProvider
	log     *slog.Logger
	current atomic.Pointer[table]
}

// New creates a registry reading from sources. A nil logger means
// slog.Default().
func New(sources SourceProvider, log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	if sources == nil {
		sources = StaticSources(nil)
	}
	return &Registry{sources: sources, log: log}
}

// Reload re-reads every source and swaps the merged result in. Sources that
// fail to read or parse are logged and skipped.
func (r *Registry) Reload() ReloadStats {
	var stats ReloadStats
	next := &table{byKey: make(map[string]*keyAssets)}

	sources, err := r.sources.Sources()
	if err != nil {
		stats.Warnings++
		r.log.Warn("failed to list replacement sources, continuing with what was found", "error", err)
	}

	for _, src := range sources {
		if r.merge(next, src, &stats) {
			stats.Files++
			if src.AddOn {
				stats.AddOns++
			}
		}
	}

	stats.Keys = len(next.byKey)
	r.current.Store(next)

	// an empty table reloads on every lookup
	level := slog.LevelInfo
	if stats.Keys == 0 {
		level = slog.LevelDebug
	}
	r.log.Log(context.Background(), level, "loaded music replacements",
		"keys", stats.Keys, "files", stats.Files, "addOns", stats.AddOns, "warnings", stats.Warnings)
	return stats
}

func (r *Registry) merge(into *table, src Source, stats *ReloadStats) bool {
	data, err := os.ReadFile(src.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			r.log.Debug("replacement file not found, skipping", "origin", src.OriginID, "path", src.Path)
		} else {
			stats.Warnings++
			r.log.Warn("failed to read replacement file", "origin", src.OriginID, "path", src.Path, "error", err)
		}
		return false
	}

	entries, err := parseReplacements(data, func(key, msg string) {
		stats.Warnings++
		r.log.Warn("skipping replacement entry", "origin", src.OriginID, "key", key, "reason", msg)
	})
	if err != nil {
		stats.Warnings++
		r.log.Warn("skipping replacement file", "origin", src.OriginID, "path", src.Path, "error", err)
		return false
	}

	for _, e := range entries {
		lk := strings.ToLower(e.key)
		ka, ok := into.byKey[lk]
		if !ok {
			ka = &keyAssets{key: e.key}
			into.byKey[lk] = ka
			into.order = append(into.order, lk)
		}
		for _, p := range e.paths {
			ka.assets = append(ka.assets, Asset{
				RelativePath: p,
				OriginID:     src.OriginID,
				OriginName:   src.OriginName,
				BaseDir:      src.BaseDir,
			})
		}
	}
	return true
}

// loaded returns the current table, reloading first when it is empty.
func (r *Registry) loaded() *table {
	t := r.current.Load()
	if t.len() == 0 {
		r.Reload()
		t = r.current.Load()
	}
	return t
}

// Len returns the number of keys currently loaded, without reloading.
func (r *Registry) Len() int {
	return r.current.Load().len()
}

// Resolve walks candidateKeys in order and returns the first key that still
// has enabled assets. Disabled origins and replacements are removed before
// the emptiness check, so a fully disabled key falls through.
func (r *Registry) Resolve(candidateKeys []string, en Enablement) (string, []Asset, bool) {
	t := r.loaded()
	for _, key := range candidateKeys {
		ka, ok := t.byKey[strings.ToLower(key)]
		if !ok || len(ka.assets) == 0 {
			continue
		}
		if assets := Enabled(key, ka.assets, en); len(assets) > 0 {
			return key, assets, true
		}
	}
	return "", nil, false
}

// Has reports whether any candidate key resolves.
func (r *Registry) Has(candidateKeys []string, en Enablement) (string, bool) {
	key, _, ok := r.Resolve(candidateKeys, en)
	return key, ok
}

// Lookup returns the assets configured under key, ignoring enablement.
func (r *Registry) Lookup(key string) []Asset {
	ka, ok := r.loaded().byKey[strings.ToLower(key)]
	if !ok {
		return nil
	}
	return append([]Asset(nil), ka.assets...)
}

// ListAll enumerates every (key, asset) pair in natural order.
func (r *Registry) ListAll() []Entry {
	t := r.loaded()
	var out []Entry
	for _, lk := range t.order {
		ka := t.byKey[lk]
		for _, a := range ka.assets {
			out = append(out, Entry{Key: ka.key, Asset: a})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return entryLess(out[i], out[j])
	})
	return out
}
