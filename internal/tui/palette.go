// ABOUTME: Command palette overlay: type a command name, optionally followed by arguments
// ABOUTME: Case-insensitive filter on the name, wrapping navigation, enter runs and esc dismisses

package tui

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/ansi"

	"github.com/mariosdrth/npm-explorer/internal/commands"
)

const maxPaletteVisible = 10

// PaletteEntry is one listed command.
type PaletteEntry struct {
	Name        string
	Description string
}

// PaletteRunMsg carries the "name args" line to dispatch.
type PaletteRunMsg struct{ Input string }

// PaletteDismissMsg closes the palette without running anything.
type PaletteDismissMsg struct{}

// PaletteModel is a filterable command list.
type PaletteModel struct {
	entries  []PaletteEntry
	visible  []PaletteEntry
	selected int
	input    string
	width    int
}

// PaletteEntries lists the registry's commands.
func PaletteEntries(r *commands.Registry) []PaletteEntry {
	var out []PaletteEntry
	for _, c := range r.List() {
		out = append(out, PaletteEntry{Name: c.Name, Description: c.Description})
	}
	return out
}

// NewPaletteModel creates a palette over entries.
func NewPaletteModel(entries []PaletteEntry) PaletteModel {
	m := PaletteModel{entries: entries}
	m.applyFilter()
	return m
}

// SetWidth limits rendered lines to w cells.
func (m PaletteModel) SetWidth(w int) PaletteModel {
	m.width = w
	return m
}

// Input returns the typed line.
func (m PaletteModel) Input() string { return m.input }

// Selected returns the highlighted command name.
func (m PaletteModel) Selected() string {
	if len(m.visible) == 0 {
		return ""
	}
	return m.visible[m.selected].Name
}

// Init implements tea.Model.
func (m PaletteModel) Init() tea.Cmd { return nil }

// Update edits the line and moves the selection.
func (m PaletteModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	km, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch km.Type {
	case tea.KeyRunes, tea.KeySpace:
		if km.Type == tea.KeySpace {
			m.input += " "
		} else {
			m.input += string(km.Runes)
		}
		m.selected = 0
		m.applyFilter()
	case tea.KeyBackspace:
		if r := []rune(m.input); len(r) > 0 {
			m.input = string(r[:len(r)-1])
			m.selected = 0
			m.applyFilter()
		}
	case tea.KeyUp:
		if n := len(m.visible); n > 0 {
			m.selected = (m.selected - 1 + n) % n
		}
	case tea.KeyDown:
		if n := len(m.visible); n > 0 {
			m.selected = (m.selected + 1) % n
		}
	case tea.KeyEnter:
		line := m.line()
		if line == "" {
			return m, nil
		}
		return m, func() tea.Msg { return PaletteRunMsg{Input: line} }
	case tea.KeyEsc:
		return m, func() tea.Msg { return PaletteDismissMsg{} }
	}
	return m, nil
}

// line is the selected command name followed by any typed arguments.
func (m PaletteModel) line() string {
	name, args := splitCommand(m.input)
	if sel := m.Selected(); sel != "" {
		name = sel
	}
	if name == "" {
		return ""
	}
	if args != "" {
		return name + " " + args
	}
	return name
}

func splitCommand(input string) (name, args string) {
	input = strings.TrimLeft(input, " :")
	name, args, _ = strings.Cut(input, " ")
	return name, strings.TrimSpace(args)
}

func (m *PaletteModel) applyFilter() {
	name, _ := splitCommand(m.input)
	lower := strings.ToLower(name)
	m.visible = m.visible[:0:0]
	for _, e := range m.entries {
		if strings.Contains(strings.ToLower(e.Name), lower) {
			m.visible = append(m.visible, e)
		}
	}
}

// View renders the input line and up to maxPaletteVisible commands.
func (m PaletteModel) View() string {
	s := Styles()
	var b strings.Builder
	b.WriteString(s.Accent.Render(":") + m.input + s.Dim.Render("█"))

	total := len(m.visible)
	start, end := 0, total
	if total > maxPaletteVisible {
		start = max(m.selected-maxPaletteVisible/2, 0)
		end = start + maxPaletteVisible
		if end > total {
			end = total
			start = end - maxPaletteVisible
		}
	}
	for i := start; i < end; i++ {
		e := m.visible[i]
		line := "  " + PadRight(e.Name, 16) + " " + e.Description
		if m.width > 0 {
			line = ansi.Truncate(line, m.width, "…")
		}
		if i == m.selected {
			line = s.Bold.Render(s.Selection.Render(line))
		} else {
			line = s.Dim.Render(line)
		}
		b.WriteByte('\n')
		b.WriteString(line)
	}
	return b.String()
}
