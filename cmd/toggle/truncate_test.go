package toggle

import (
	"testing"

	"github.com/charmbracelet/lipgloss"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		name  string
		fn    func(string, int) string
		input string
		width int
		want  string
	}{
		{"end fits", truncateEnd, "spring1", 10, "spring1"},
		{"end cut", truncateEnd, "spring1|location=Town", 10, "spring1|l…"},
		{"end one cell", truncateEnd, "spring1", 1, "…"},
		{"end zero", truncateEnd, "spring1", 0, ""},
		{"end wide runes", truncateEnd, "春の歌春の歌", 7, "春の歌…"},
		{"start fits", truncateStart, "a.ogg", 10, "a.ogg"},
		{"start cut", truncateStart, "music/spring/a.ogg", 8, "…g/a.ogg"},
		{"start one cell", truncateStart, "music/a.ogg", 1, "…"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.fn(tt.input, tt.width); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFitEntry(t *testing.T) {
	if got := fitEntry("spring1", "a.ogg", 0); got != "spring1 → a.ogg" {
		t.Errorf("unbounded = %q", got)
	}
	if got := fitEntry("spring1", "a.ogg", 40); got != "spring1 → a.ogg" {
		t.Errorf("fits = %q", got)
	}

	got := fitEntry("spring1|location=Town|scriptedId=E1", "music/seasons/spring/theme.ogg", 30)
	if w := lipgloss.Width(got); w > 30 {
		t.Errorf("width = %d, want <= 30 (%q)", w, got)
	}
	if got != "spring1|loca… → …ing/theme.ogg" {
		t.Errorf("fitted = %q", got)
	}
}
