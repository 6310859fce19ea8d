package common

import (
	"bytes"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
)

func TestConfigDir_EnvOverride(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("TRACKSWAP_HOME", dir)

	if got := ConfigDir(); got != dir {
		t.Errorf("ConfigDir() = %q, want %q", got, dir)
	}
	if got, want := SettingsPath(), filepath.Join(dir, "config.json"); got != want {
		t.Errorf("SettingsPath() = %q, want %q", got, want)
	}
	if got, want := PacksDir(), filepath.Join(dir, "packs"); got != want {
		t.Errorf("PacksDir() = %q, want %q", got, want)
	}
}

func TestNewLogger_LevelSwitch(t *testing.T) {
	var buf bytes.Buffer
	logger, level := NewLogger(&buf, false)

	logger.Debug("hidden")
	if buf.Len() != 0 {
		t.Fatalf("debug line written at info level: %q", buf.String())
	}

	SetDebug(level, true)
	logger.Debug("shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Errorf("expected debug line after SetDebug(true), got %q", buf.String())
	}
	if level.Level() != slog.LevelDebug {
		t.Errorf("level = %v, want debug", level.Level())
	}
}

func TestPaths_Resolved(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("TRACKSWAP_HOME", dir)

	got := Paths{Packs: "/custom/packs"}.Resolved()
	want := Paths{Dir: dir, Packs: "/custom/packs", Settings: filepath.Join(dir, "config.json")}
	if got != want {
		t.Errorf("Resolved() = %+v, want %+v", got, want)
	}
}
