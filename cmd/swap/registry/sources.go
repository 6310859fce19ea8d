package registry

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/tailscale/hujson"
)

// FileName is the replacement file looked up in every source directory.
const FileName = "musicReplacements.json"

// ManifestName is the optional add-on pack manifest.
const ManifestName = "manifest.json"

// Source is one configuration file contributing replacements.
type Source struct {
	Path       string // replacement file
	BaseDir    string // directory asset paths are relative to
	OriginID   string
	OriginName string
	AddOn      bool
}

// SourceProvider lists the sources merged on every reload. It may return
// partial results together with an error.
type SourceProvider interface {
	Sources() ([]Source, error)
}

// StaticSources is a fixed list of sources.
type StaticSources []Source

func (s StaticSources) Sources() ([]Source, error) {
	return s, nil
}

// DirSources discovers a base source in BaseDir plus one add-on source per
// sub-directory of PacksDir.
type DirSources struct {
	BaseDir  string
	BaseID   string
	BaseName string
	PacksDir string
}

func (d DirSources) Sources() ([]Source, error) {
	var sources []Source

	if d.BaseDir != "" {
		id := d.BaseID
		if id == "" {
			id = "base"
		}
		name := d.BaseName
		if name == "" {
			name = id
		}
		sources = append(sources, Source{
			Path:       filepath.Join(d.BaseDir, FileName),
			BaseDir:    d.BaseDir,
			OriginID:   id,
			OriginName: name,
		})
	}

	if d.PacksDir == "" {
		return sources, nil
	}

	entries, err := os.ReadDir(d.PacksDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return sources, nil
		}
		return sources, err
	}

	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		dir := filepath.Join(d.PacksDir, entry.Name())
		id, name := readManifest(dir, entry.Name())
		sources = append(sources, Source{
			Path:       filepath.Join(dir, FileName),
			BaseDir:    dir,
			OriginID:   id,
			OriginName: name,
			AddOn:      true,
		})
	}
	return sources, nil
}

type manifest struct {
	UniqueID string `json:"UniqueID"`
	ID       string `json:"id"`
	Name     string `json:"Name"`
}

// readManifest returns the pack id and name, falling back to the directory
// name when the manifest is missing or incomplete.
func readManifest(dir, fallback string) (string, string) {
	id, name := fallback, fallback

	data, err := os.ReadFile(filepath.Join(dir, ManifestName))
	if err != nil {
		return id, name
	}
	std, err := hujson.Standardize(data)
	if err != nil {
		return id, name
	}
	var m manifest
	if err := json.Unmarshal(std, &m); err != nil {
		return id, name
	}

	switch {
	case strings.TrimSpace(m.UniqueID) != "":
		id = strings.TrimSpace(m.UniqueID)
	case strings.TrimSpace(m.ID) != "":
		id = strings.TrimSpace(m.ID)
	}
	if strings.TrimSpace(m.Name) != "" {
		name = strings.TrimSpace(m.Name)
	} else {
		name = id
	}
	return id, name
}
