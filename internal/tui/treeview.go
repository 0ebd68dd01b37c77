// ABOUTME: Tree view of Tasks, Dependencies and Dev Dependencies with a fuzzy filter
// ABOUTME: Rows are flattened from the provider's sections; headers stay when a child matches

package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/ansi"
	"github.com/sahilm/fuzzy"

	"github.com/mariosdrth/npm-explorer/internal/tree"
)

type rowKind int

const (
	rowSection rowKind = iota
	rowTask
	rowDependency
)

type treeRow struct {
	kind    rowKind
	section tree.Kind
	task    tree.Task
	dep     tree.Dependency
}

func (r treeRow) name() string {
	switch r.kind {
	case rowTask:
		return r.task.Name
	case rowDependency:
		return r.dep.Name
	default:
		return string(r.section)
	}
}

// TreeModel shows the manifest tree.
type TreeModel struct {
	all    []treeRow
	rows   []treeRow
	cursor int
	offset int
	height int
	width  int

	filter    textinput.Model
	filtering bool
	keys      KeyMap
}

// NewTreeModel creates an empty tree.
func NewTreeModel() TreeModel {
	ti := textinput.New()
	ti.Prompt = "/"
	ti.Placeholder = "filter"
	return TreeModel{filter: ti, keys: DefaultKeyMap()}
}

// SetKeys replaces the key bindings.
func (m TreeModel) SetKeys(k KeyMap) TreeModel {
	m.keys = k
	return m
}

// SetSections replaces the tree content, keeping the cursor on the same
// item when it still exists.
func (m TreeModel) SetSections(sections []tree.Section) TreeModel {
	prev, hadPrev := m.Selected()
	m.all = nil
	for _, s := range sections {
		m.all = append(m.all, treeRow{kind: rowSection, section: s.Kind})
		for _, t := range s.Tasks {
			m.all = append(m.all, treeRow{kind: rowTask, section: s.Kind, task: t})
		}
		for _, d := range s.Dependencies {
			m.all = append(m.all, treeRow{kind: rowDependency, section: s.Kind, dep: d})
		}
	}
	m.applyFilter()
	if hadPrev {
		for i, r := range m.rows {
			if r.kind == prev.kind && r.section == prev.section && r.name() == prev.name() {
				m.cursor = i
				break
			}
		}
	}
	m.clampCursor()
	return m
}

// SetSize sets the visible area.
func (m TreeModel) SetSize(width, height int) TreeModel {
	m.width = width
	m.height = height
	m.filter.Width = max(width-2, 1)
	return m
}

// Empty reports whether there is nothing to show.
func (m TreeModel) Empty() bool { return len(m.all) == 0 }

// Filtering reports whether the filter input has focus.
func (m TreeModel) Filtering() bool { return m.filtering }

// Selected returns the row under the cursor, skipping section headers.
func (m TreeModel) Selected() (treeRow, bool) {
	if m.cursor < 0 || m.cursor >= len(m.rows) {
		return treeRow{}, false
	}
	r := m.rows[m.cursor]
	return r, r.kind != rowSection
}

// Init implements tea.Model.
func (m TreeModel) Init() tea.Cmd { return nil }

// Update moves the cursor and edits the filter.
func (m TreeModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	keys := m.keys
	km, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	if m.filtering {
		switch km.Type {
		case tea.KeyEsc:
			m.filtering = false
			m.filter.Blur()
			m.filter.SetValue("")
			m.applyFilter()
			return m, nil
		case tea.KeyEnter:
			m.filtering = false
			m.filter.Blur()
			return m, nil
		}
		var cmd tea.Cmd
		m.filter, cmd = m.filter.Update(km)
		m.applyFilter()
		return m, cmd
	}
	switch {
	case key.Matches(km, keys.Up):
		m.move(-1)
	case key.Matches(km, keys.Down):
		m.move(1)
	case key.Matches(km, keys.Filter):
		m.filtering = true
		return m, m.filter.Focus()
	}
	return m, nil
}

func (m *TreeModel) move(delta int) {
	if len(m.rows) == 0 {
		return
	}
	next := m.cursor
	for {
		next += delta
		if next < 0 || next >= len(m.rows) {
			return
		}
		if m.rows[next].kind != rowSection {
			m.cursor = next
			m.scrollToCursor()
			return
		}
	}
}

func (m *TreeModel) clampCursor() {
	if m.cursor >= len(m.rows) {
		m.cursor = len(m.rows) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
	if len(m.rows) > 0 && m.rows[m.cursor].kind == rowSection {
		m.move(1)
	}
	m.scrollToCursor()
}

func (m *TreeModel) scrollToCursor() {
	h := m.listHeight()
	if h <= 0 {
		return
	}
	if m.cursor < m.offset {
		m.offset = max(m.cursor-1, 0)
	}
	if m.cursor >= m.offset+h {
		m.offset = m.cursor - h + 1
	}
}

func (m TreeModel) listHeight() int {
	if m.filtering || m.filter.Value() != "" {
		return m.height - 1
	}
	return m.height
}

// rowSource feeds item names to the fuzzy matcher.
type rowSource []treeRow

func (s rowSource) String(i int) string { return s[i].name() }
func (s rowSource) Len() int            { return len(s) }

func (m *TreeModel) applyFilter() {
	pattern := strings.TrimSpace(m.filter.Value())
	if pattern == "" {
		m.rows = append([]treeRow(nil), m.all...)
		m.clampCursor()
		return
	}
	var items rowSource
	for _, r := range m.all {
		if r.kind != rowSection {
			items = append(items, r)
		}
	}
	matched := make(map[int]bool)
	for _, match := range fuzzy.FindFrom(pattern, items) {
		matched[match.Index] = true
	}

	m.rows = nil
	var header *treeRow
	item := 0
	for _, r := range m.all {
		if r.kind == rowSection {
			h := r
			header = &h
			continue
		}
		if matched[item] {
			if header != nil {
				m.rows = append(m.rows, *header)
				header = nil
			}
			m.rows = append(m.rows, r)
		}
		item++
	}
	m.cursor = 0
	m.offset = 0
	m.clampCursor()
}

// View renders the visible rows.
func (m TreeModel) View() string {
	s := Styles()
	if len(m.all) == 0 {
		return s.Muted.Render("No package.json found. Use :select-path to choose one.")
	}
	var lines []string
	h := m.listHeight()
	end := len(m.rows)
	if h > 0 {
		end = min(m.offset+h, len(m.rows))
	}
	for i := m.offset; i < end; i++ {
		lines = append(lines, m.renderRow(m.rows[i], i == m.cursor))
	}
	if m.filtering || m.filter.Value() != "" {
		lines = append(lines, m.filter.View())
	}
	return strings.Join(lines, "\n")
}

func (m TreeModel) renderRow(r treeRow, selected bool) string {
	s := Styles()
	var line string
	switch r.kind {
	case rowSection:
		return s.Section.Render("▾ " + string(r.section))
	case rowTask:
		line = fmt.Sprintf("  %s  %s", r.task.Name, s.Muted.Render(r.task.Script))
	case rowDependency:
		desc := r.dep.Description()
		if r.dep.Outdated {
			desc = s.Outdated.Render(desc)
		} else {
			desc = s.Muted.Render(desc)
		}
		name := r.dep.Name
		if !r.dep.Installed {
			name += s.Error.Render(" (not installed)")
		}
		line = fmt.Sprintf("  %s  %s", name, desc)
	}
	if m.width > 0 {
		line = ansi.Truncate(line, m.width, "…")
	}
	if selected {
		return s.Selection.Render(line)
	}
	return line
}
