// ABOUTME: Registry browser: search with paging and sorting, package detail, readme and downloads
// ABOUTME: Shares panel.State transitions with the web panel; stale responses are dropped by generation

package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/ansi"
	"github.com/dustin/go-humanize"

	"github.com/mariosdrth/npm-explorer/internal/panel"
	"github.com/mariosdrth/npm-explorer/internal/registry"
)

type searchResultMsg struct {
	gen int
	res *registry.SearchResponse
	err error
}

type packageLoadedMsg struct {
	gen    int
	detail *registry.PackageDetail
	readme string
	err    error
}

type downloadsLoadedMsg struct {
	gen   int
	weeks []registry.WeeklyBucket
}

// browserExitMsg asks the app to leave the browser.
type browserExitMsg struct{}

// InstallRequestMsg asks the app to install a package.
type InstallRequestMsg struct {
	Name    string
	Version string
	Dev     bool
}

// BrowserModel browses the registry.
type BrowserModel struct {
	ctx  context.Context
	reg  panel.Registry
	deps panel.Dependencies
	keys KeyMap
	now  func() time.Time

	state panel.State
	prev  *panel.State

	input textinput.Model
	spin  spinner.Model
	vp    viewport.Model
	md    *MarkdownRenderer

	gen     int
	loading bool
	err     error
	results *registry.SearchResponse
	cursor  int
	detail  *registry.PackageDetail
	readme  string
	weeks   []registry.WeeklyBucket

	width, height int
}

// NewBrowserModel creates a browser paging size results at a time. deps
// may be nil.
func NewBrowserModel(ctx context.Context, reg panel.Registry, deps panel.Dependencies, size int) BrowserModel {
	ti := textinput.New()
	ti.Prompt = "search: "
	ti.Placeholder = "package name or keywords:<kw>"
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	return BrowserModel{
		ctx:   ctx,
		reg:   reg,
		deps:  deps,
		keys:  DefaultKeyMap(),
		now:   time.Now,
		state: panel.NewState(size),
		input: ti,
		spin:  sp,
		vp:    viewport.New(0, 0),
		md:    NewMarkdownRenderer(),
	}
}

// SetSize sets the visible area.
func (m BrowserModel) SetSize(width, height int) BrowserModel {
	m.width = width
	m.height = height
	m.input.Width = max(width-len(m.input.Prompt)-1, 1)
	m.vp.Width = width
	m.vp.Height = max(height-2, 0)
	if m.detail != nil {
		m.vp.SetContent(m.renderDetail())
	}
	return m
}

// State returns the browser's panel state.
func (m BrowserModel) State() panel.State { return m.state }

// Loading reports whether a fetch is in flight.
func (m BrowserModel) Loading() bool { return m.loading }

// InputFocused reports whether the search box has focus.
func (m BrowserModel) InputFocused() bool { return m.input.Focused() }

// FocusInput puts the cursor in the search box.
func (m BrowserModel) FocusInput() (BrowserModel, tea.Cmd) {
	m.input.SetValue(m.state.SearchText)
	return m, m.input.Focus()
}

// Search runs a new query.
func (m BrowserModel) Search(text string) (BrowserModel, tea.Cmd) {
	if !m.state.Search(text) {
		return m, nil
	}
	m.prev = nil
	return m.fetch()
}

// Open shows the detail of name, remembering the current search.
func (m BrowserModel) Open(name string) (BrowserModel, tea.Cmd) {
	name = strings.TrimSpace(name)
	if name == "" {
		return m, nil
	}
	if m.state.SearchText != "" {
		prev := m.state
		m.prev = &prev
	}
	m.state.Select(m.lookup(name))
	return m.fetch()
}

func (m BrowserModel) lookup(name string) panel.Target {
	if m.deps != nil {
		if d, ok := m.deps.Dependency(name, nil); ok {
			return panel.Target{Name: d.Name, Installed: true, Version: d.Version, Dev: d.Dev}
		}
	}
	return panel.Target{Name: name}
}

func (m BrowserModel) fetch() (BrowserModel, tea.Cmd) {
	m.gen++
	m.loading = true
	m.err = nil
	m.detail = nil
	m.readme = ""
	m.weeks = nil
	gen, st, reg, ctx := m.gen, m.state, m.reg, m.ctx

	if st.SearchText != "" {
		search := func() tea.Msg {
			res, err := reg.Search(ctx, st.SearchText, st.SearchResultsFrom, st.SearchSize, st.SearchType)
			return searchResultMsg{gen: gen, res: res, err: err}
		}
		return m, tea.Batch(m.spin.Tick, search)
	}
	if st.Dependency == nil {
		m.loading = false
		return m, nil
	}
	name := st.Dependency.Name
	load := func() tea.Msg {
		d, err := reg.Package(ctx, name)
		if err != nil {
			return packageLoadedMsg{gen: gen, err: err}
		}
		return packageLoadedMsg{gen: gen, detail: d, readme: reg.Readme(ctx, d)}
	}
	downloads := func() tea.Msg {
		days, err := reg.Downloads(ctx, name)
		if err != nil {
			return downloadsLoadedMsg{gen: gen}
		}
		return downloadsLoadedMsg{gen: gen, weeks: registry.WeeklyBuckets(days)}
	}
	return m, tea.Batch(m.spin.Tick, load, downloads)
}

// Init implements tea.Model.
func (m BrowserModel) Init() tea.Cmd { return nil }

// Update handles fetch results and keys.
func (m BrowserModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		if !m.loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case searchResultMsg:
		if msg.gen != m.gen {
			return m, nil
		}
		m.loading = false
		m.err = msg.err
		if msg.err == nil {
			m.results = msg.res
			m.state.Total = msg.res.Total
			m.cursor = 0
		}
		return m, nil

	case packageLoadedMsg:
		if msg.gen != m.gen {
			return m, nil
		}
		m.loading = false
		m.err = msg.err
		m.detail = msg.detail
		m.readme = msg.readme
		if m.detail != nil {
			m.vp.SetContent(m.renderDetail())
			m.vp.GotoTop()
		}
		return m, nil

	case downloadsLoadedMsg:
		if msg.gen != m.gen {
			return m, nil
		}
		m.weeks = msg.weeks
		if m.detail != nil {
			m.vp.SetContent(m.renderDetail())
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m BrowserModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.input.Focused() {
		switch msg.Type {
		case tea.KeyEnter:
			m.input.Blur()
			return m.Search(m.input.Value())
		case tea.KeyEsc:
			m.input.Blur()
			return m, nil
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}

	if m.state.Dependency != nil {
		return m.handleDetailKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Back):
		return m, func() tea.Msg { return browserExitMsg{} }
	case key.Matches(msg, m.keys.Filter), key.Matches(msg, m.keys.Search):
		return m.FocusInput()
	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, m.keys.Down):
		if m.results != nil && m.cursor < len(m.results.Objects)-1 {
			m.cursor++
		}
	case key.Matches(msg, m.keys.Enter):
		if m.results != nil && m.cursor < len(m.results.Objects) {
			return m.Open(m.results.Objects[m.cursor].Package.Name)
		}
	case key.Matches(msg, m.keys.NextPage):
		if m.state.NextPage() {
			return m.fetch()
		}
	case key.Matches(msg, m.keys.PrevPage):
		if m.state.PreviousPage() {
			return m.fetch()
		}
	case key.Matches(msg, m.keys.Sort):
		if m.state.SortBy((m.state.SearchType + 1) % 4) {
			return m.fetch()
		}
	}
	return m, nil
}

func (m BrowserModel) handleDetailKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Back):
		if m.prev == nil {
			return m, func() tea.Msg { return browserExitMsg{} }
		}
		m.state = *m.prev
		m.prev = nil
		m.gen++
		m.loading = false
		m.detail = nil
		return m, nil
	case key.Matches(msg, m.keys.Search), key.Matches(msg, m.keys.Filter):
		return m.FocusInput()
	case key.Matches(msg, m.keys.Install), key.Matches(msg, m.keys.InstallDev):
		if m.detail == nil {
			return m, nil
		}
		t := *m.state.Dependency
		req := InstallRequestMsg{Name: t.Name, Version: m.detail.Latest(), Dev: msg.String() == "I"}
		if t.Installed {
			req.Dev = t.Dev
		}
		return m, func() tea.Msg { return req }
	}
	var cmd tea.Cmd
	m.vp, cmd = m.vp.Update(msg)
	return m, cmd
}

// Installed refreshes the inspected package's declared state, e.g. after
// an install finished.
func (m BrowserModel) Installed() BrowserModel {
	if m.state.Dependency == nil {
		return m
	}
	t := m.lookup(m.state.Dependency.Name)
	m.state.Dependency = &t
	if m.detail != nil {
		m.vp.SetContent(m.renderDetail())
	}
	return m
}

// View renders the search box and the current page.
func (m BrowserModel) View() string {
	s := Styles()
	var b strings.Builder
	if m.input.Focused() {
		b.WriteString(m.input.View())
	} else {
		b.WriteString(s.Muted.Render("search: ") + m.state.SearchText)
	}
	b.WriteByte('\n')

	switch {
	case m.loading:
		b.WriteString(m.spin.View() + " Loading...")
	case m.err != nil:
		b.WriteString(s.Error.Render(panel.ErrorMessage(m.err)))
	case m.state.Dependency != nil && m.detail != nil:
		b.WriteString(m.vp.View())
	case m.results != nil:
		b.WriteString(m.renderResults())
	default:
		b.WriteString(s.Muted.Render("Press s to search the registry."))
	}
	return b.String()
}

func (m BrowserModel) renderResults() string {
	s := Styles()
	res := m.results
	var lines []string
	if res.Total == 0 {
		lines = append(lines, s.Muted.Render("No packages found"))
		return strings.Join(lines, "\n")
	}
	from := m.state.SearchResultsFrom
	lines = append(lines, s.Muted.Render(fmt.Sprintf("Showing %s-%s of %s packages · sort: %s",
		panel.FormatCount(int64(from+1)), panel.FormatCount(int64(from+len(res.Objects))),
		panel.FormatCount(int64(res.Total)), m.state.SearchType)))
	if pages := registry.TotalPages(res.Total, m.state.SearchSize); pages > 1 {
		lines = append(lines, renderPages(registry.Paginate(pages, m.state.ActivePage, 2)))
	}

	for i, o := range res.Objects {
		head := s.Bold.Render(o.Package.Name) + " " + s.Muted.Render(o.Package.Version)
		meta := o.AuthorName()
		if meta == "" {
			meta = "No author provided"
		}
		if !o.Package.Date.IsZero() {
			meta += " · published " + registry.TimeAgo(m.now(), o.Package.Date)
		}
		entry := []string{head, "  " + Truncate(registry.PlainText(o.Package.Description), max(m.width-4, 10)), "  " + s.Muted.Render(meta)}
		for j := range entry {
			if m.width > 0 {
				entry[j] = ansi.Truncate(entry[j], m.width-2, "…")
			}
			if i == m.cursor {
				entry[j] = s.Accent.Render("│ ") + entry[j]
			} else {
				entry[j] = "  " + entry[j]
			}
		}
		lines = append(lines, entry...)
	}
	return strings.Join(lines, "\n")
}

func renderPages(items []registry.PageItem) string {
	s := Styles()
	parts := []string{"‹"}
	for _, it := range items {
		switch {
		case it.Ellipsis:
			parts = append(parts, "…")
		case it.Active:
			parts = append(parts, s.Accent.Render(fmt.Sprintf("[%d]", it.Page)))
		default:
			parts = append(parts, fmt.Sprint(it.Page))
		}
	}
	parts = append(parts, "›")
	return strings.Join(parts, " ")
}

func (m BrowserModel) renderDetail() string {
	s := Styles()
	d := m.detail
	t := m.state.Dependency
	latest := d.Latest()

	var lines []string
	lines = append(lines, s.Title.Render(t.Name)+" "+s.Muted.Render(latest))
	if a := d.AuthorName(); a != "" {
		lines = append(lines, a)
	}
	if desc := registry.PlainText(d.Description); desc != "" {
		lines = append(lines, desc)
	}
	if t.Installed {
		line := fmt.Sprintf("Version (%s) installed", t.Version)
		if t.Dev {
			line += " as dev dependency"
		}
		lines = append(lines, s.Success.Render(line))
		if m.deps != nil {
			if dep, ok := m.deps.Dependency(t.Name, nil); ok && dep.Outdated {
				lines = append(lines, s.Warning.Render("Newer version available: "+dep.WantedVersion))
			}
		}
	} else {
		lines = append(lines, s.Muted.Render("Not in package.json · i install · I install as dev"))
	}

	if n := len(m.weeks); n > 0 {
		last := m.weeks[n-1]
		values := make([]int64, n)
		for i, w := range m.weeks {
			values[i] = w.Downloads
		}
		lines = append(lines, "",
			fmt.Sprintf("Weekly Downloads: %s (%s)", s.Bold.Render(panel.FormatCount(last.Downloads)), last.Label()),
			s.Sparkline.Render(Sparkline(values, max(m.width, 10))))
	}

	lines = append(lines, "")
	if p := d.Published(latest); !p.IsZero() {
		lines = append(lines, "Last publish   "+registry.TimeAgo(m.now(), p))
	}
	if v, ok := d.Version(latest); ok && v.Dist.UnpackedSize > 0 {
		lines = append(lines, "Unpacked Size  "+humanize.Bytes(uint64(v.Dist.UnpackedSize)))
		if v.Dist.FileCount > 0 {
			lines = append(lines, fmt.Sprintf("Total Files    %d", v.Dist.FileCount))
		}
	}
	lines = append(lines, "Npm Page       "+panel.NpmPageURL+t.Name)
	if d.Repository.URL != "" {
		lines = append(lines, "Repository     "+d.Repository.WebURL())
	}
	if d.Homepage != "" {
		lines = append(lines, "Homepage       "+d.Homepage)
	}
	if d.License != "" {
		lines = append(lines, "License        "+string(d.License))
	}
	if len(d.Keywords) > 0 {
		kws := make([]string, len(d.Keywords))
		for i, k := range d.Keywords {
			kws[i] = s.Keyword.Render(k)
		}
		lines = append(lines, "Keywords       "+strings.Join(kws, " "))
	}

	lines = append(lines, "")
	if readme := m.md.Render(m.readme, max(m.width-2, 20)); readme != "" {
		lines = append(lines, readme)
	} else {
		lines = append(lines, s.Muted.Render("No Readme found for this package"))
	}
	return strings.Join(lines, "\n")
}
