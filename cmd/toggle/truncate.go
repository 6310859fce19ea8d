package toggle

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

// truncateEnd cuts s to maxWidth display cells, ending in "…" when cut.
func truncateEnd(s string, maxWidth int) string {
	if maxWidth <= 0 {
		return ""
	}
	if lipgloss.Width(s) <= maxWidth {
		return s
	}
	if maxWidth == 1 {
		return "…"
	}

	result := make([]rune, 0, len(s))
	width := 0
	for _, r := range s {
		rw := runewidth.RuneWidth(r)
		if width+rw > maxWidth-1 {
			break
		}
		result = append(result, r)
		width += rw
	}
	return string(result) + "…"
}

// truncateStart keeps the end of s, which is where file names are.
func truncateStart(s string, maxWidth int) string {
	if maxWidth <= 0 {
		return ""
	}
	if lipgloss.Width(s) <= maxWidth {
		return s
	}
	if maxWidth == 1 {
		return "…"
	}

	runes := []rune(s)
	start := len(runes)
	width := 0
	for start > 0 {
		rw := runewidth.RuneWidth(runes[start-1])
		if width+rw > maxWidth-1 {
			break
		}
		start--
		width += rw
	}
	return "…" + string(runes[start:])
}

// fitEntry renders "key → path" in at most maxWidth cells. The key gets up to
// half the room, the path takes the rest and loses its beginning first.
func fitEntry(key, path string, maxWidth int) string {
	const arrow = " → "
	full := key + arrow + path
	if maxWidth <= 0 || lipgloss.Width(full) <= maxWidth {
		return full
	}

	room := maxWidth - lipgloss.Width(arrow)
	if room < 2 {
		return truncateEnd(full, maxWidth)
	}
	keyRoom := min(lipgloss.Width(key), room/2)
	key = truncateEnd(key, keyRoom)
	return key + arrow + truncateStart(path, room-lipgloss.Width(key))
}
