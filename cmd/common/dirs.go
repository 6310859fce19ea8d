package common

import (
	"os"
	"path/filepath"
)

// ConfigDir returns the trackswap config directory (~/.trackswap).
// TRACKSWAP_HOME overrides it.
func ConfigDir() string {
	if dir := os.Getenv("TRACKSWAP_HOME"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".trackswap")
}

// SettingsPath returns the path of the persisted user settings.
func SettingsPath() string {
	return filepath.Join(ConfigDir(), "config.json")
}

// PacksDir returns the directory scanned for add-on replacement packs.
func PacksDir() string {
	return filepath.Join(ConfigDir(), "packs")
}

// Paths locates the replacement files and settings a command works on.
type Paths struct {
	Dir      string // holds the base musicReplacements.json
	Packs    string
	Settings string
}

// Resolved fills empty fields with the defaults under ConfigDir.
func (p Paths) Resolved() Paths {
	if p.Dir == "" {
		p.Dir = ConfigDir()
	}
	if p.Packs == "" {
		p.Packs = PacksDir()
	}
	if p.Settings == "" {
		p.Settings = SettingsPath()
	}
	return p
}
