// ABOUTME: Scrollable package.json view with outdated markers in a left gutter
// ABOUTME: Marker lines show the wanted version after the text

package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/mariosdrth/npm-explorer/internal/gutter"
)

// GutterGlyph marks an outdated line.
const GutterGlyph = "▲"

// ManifestModel shows the manifest with gutter markers.
type ManifestModel struct {
	path    string
	text    []byte
	markers []gutter.Marker
	vp      viewport.Model
}

// NewManifestModel creates an empty view.
func NewManifestModel() ManifestModel {
	return ManifestModel{vp: viewport.New(0, 0)}
}

// SetDocument replaces the shown document and its markers.
func (m ManifestModel) SetDocument(path string, text []byte, markers []gutter.Marker) ManifestModel {
	m.path = path
	m.text = text
	m.markers = markers
	m.vp.SetContent(m.render())
	return m
}

// SetSize sets the visible area.
func (m ManifestModel) SetSize(width, height int) ManifestModel {
	m.vp.Width = width
	m.vp.Height = max(height-1, 0)
	m.vp.SetContent(m.render())
	return m
}

// Markers returns the markers shown.
func (m ManifestModel) Markers() []gutter.Marker { return m.markers }

// Path returns the shown document's path.
func (m ManifestModel) Path() string { return m.path }

// Init implements tea.Model.
func (m ManifestModel) Init() tea.Cmd { return nil }

// Update scrolls the viewport.
func (m ManifestModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	m.vp, cmd = m.vp.Update(msg)
	return m, cmd
}

func (m ManifestModel) render() string {
	s := Styles()
	if len(m.text) == 0 {
		return s.Muted.Render("No manifest loaded.")
	}
	lines := gutter.Lines(m.text, m.markers)
	digits := len(fmt.Sprint(len(lines)))
	var b strings.Builder
	for i, l := range lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		mark := "  "
		if l.Marker != nil {
			mark = s.Gutter.Render(GutterGlyph) + " "
		}
		b.WriteString(mark)
		b.WriteString(s.LineNo.Render(fmt.Sprintf("%*d ", digits, l.Number)))
		b.WriteString(strings.ReplaceAll(l.Text, "\t", "  "))
		if l.Marker != nil {
			b.WriteString(s.Outdated.Render("  ← " + l.Marker.Wanted + " wanted"))
		}
	}
	return b.String()
}

// View renders the title line and the document.
func (m ManifestModel) View() string {
	s := Styles()
	title := s.Title.Render(m.path)
	if n := len(m.markers); n > 0 {
		title += s.Warning.Render(fmt.Sprintf("  %d outdated", n))
	}
	return title + "\n" + m.vp.View()
}
