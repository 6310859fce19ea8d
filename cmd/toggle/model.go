package toggle

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/gigurra/trackswap/cmd/swap/registry"
	"github.com/gigurra/trackswap/cmd/swap/settings"
)

var (
	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("62"))
	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("250"))
	originStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
	offStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	helpStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

type itemKind int

const (
	itemPercent itemKind = iota
	itemDebug
	itemSuggestions
	itemOrigin
	itemReplacement
)

type item struct {
	kind       itemKind
	originID   string
	originName string
	key        string
	path       string
	id         string // replacement id
}

type model struct {
	store  *settings.Store
	items  []item
	cursor int
	offset int
	width  int
	height int
	err    error
}

func newModel(store *settings.Store, groups []registry.OriginGroup) model {
	items := []item{{kind: itemPercent}, {kind: itemDebug}, {kind: itemSuggestions}}
	for _, g := range groups {
		items = append(items, item{kind: itemOrigin, originID: g.OriginID, originName: g.OriginName})
		for _, e := range g.Entries {
			items = append(items, item{
				kind:     itemReplacement,
				originID: g.OriginID,
				key:      e.Key,
				path:     e.Asset.RelativePath,
				id:       registry.ReplacementID(e.Key, e.Asset),
			})
		}
	}
	return model{store: store, items: items}
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m = m.scrolled()
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.items)-1 {
				m.cursor++
			}
		case "home", "g":
			m.cursor = 0
		case "end", "G":
			m.cursor = len(m.items) - 1
		case "left", "h", "-":
			m = m.adjustPercent(-settings.PercentStep)
		case "right", "l", "+":
			m = m.adjustPercent(settings.PercentStep)
		case " ", "enter", "x":
			m = m.toggle()
		}
		m = m.scrolled()
	}
	return m, nil
}

func (m model) adjustPercent(delta int) model {
	if m.items[m.cursor].kind != itemPercent {
		return m
	}
	m.err = m.store.Update(func(s *settings.Settings) {
		s.NativeInsteadPercent += delta
	})
	return m
}

func (m model) toggle() model {
	it := m.items[m.cursor]
	m.err = m.store.Update(func(s *settings.Settings) {
		switch it.kind {
		case itemDebug:
			s.EnableDebugLogging = !s.EnableDebugLogging
		case itemSuggestions:
			s.ShowSuggestionsAlways = !s.ShowSuggestionsAlways
		case itemOrigin:
			s.DisabledOriginIDs.Set(it.originID, s.OriginEnabled(it.originID))
		case itemReplacement:
			s.DisabledReplacementIDs.Set(it.id, s.ReplacementEnabled(it.id))
		}
	})
	return m
}

// visibleRows is the number of item rows that fit between header and help.
func (m model) visibleRows() int {
	if m.height <= 0 {
		return len(m.items)
	}
	return max(m.height-6, 1)
}

func (m model) scrolled() model {
	rows := m.visibleRows()
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+rows {
		m.offset = m.cursor - rows + 1
	}
	m.offset = max(0, min(m.offset, len(m.items)-rows))
	return m
}

func (m model) View() string {
	s := m.store.Current()
	var b strings.Builder

	b.WriteString("\n  ")
	b.WriteString(headerStyle.Render("Music replacement settings"))
	if p := m.store.Path(); p != "" {
		b.WriteString(helpStyle.Render("  " + p))
	}
	b.WriteString("\n\n")

	end := min(m.offset+m.visibleRows(), len(m.items))
	for i := m.offset; i < end; i++ {
		line := m.renderItem(m.items[i], s)
		if i == m.cursor {
			line = selectedStyle.Render("> " + line)
		} else {
			line = "  " + line
		}
		b.WriteString(line + "\n")
	}
	if len(m.items) == 3 {
		b.WriteString(helpStyle.Render("  No replacements configured") + "\n")
	}

	b.WriteString("\n")
	if m.err != nil {
		b.WriteString(errorStyle.Render("  Failed to save: "+m.err.Error()) + "\n")
	}
	b.WriteString(helpStyle.Render("  ↑/↓ move • space toggle • ←/→ adjust • q quit"))
	b.WriteString("\n")
	return b.String()
}

func (m model) renderItem(it item, s *settings.Settings) string {
	switch it.kind {
	case itemPercent:
		return fmt.Sprintf("Native music instead  %3d%%", s.NativeInsteadPercent)
	case itemDebug:
		return checkbox(s.EnableDebugLogging) + " Debug logging"
	case itemSuggestions:
		return checkbox(s.ShowSuggestionsAlways) + " Always log key suggestions"
	case itemOrigin:
		label := checkbox(s.OriginEnabled(it.originID)) + " " + it.originName + " [" + it.originID + "]"
		return originStyle.Render(label)
	default:
		label := fitEntry(it.key, it.path, m.width-12)
		line := "    " + checkbox(s.ReplacementEnabled(it.id)) + " " + label
		if !s.OriginEnabled(it.originID) {
			return offStyle.Render(line)
		}
		return line
	}
}

func checkbox(on bool) string {
	if on {
		return "[x]"
	}
	return "[ ]"
}
