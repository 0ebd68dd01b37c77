// ABOUTME: Root Bubble Tea model: tree, manifest and registry views plus palette and confirm overlays
// ABOUTME: Tree commands run as tea.Cmds; npm jobs report back when they settle

package tui

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/ansi"

	"github.com/mariosdrth/npm-explorer/internal/commands"
	"github.com/mariosdrth/npm-explorer/internal/gutter"
	"github.com/mariosdrth/npm-explorer/internal/log"
	"github.com/mariosdrth/npm-explorer/internal/npm"
)

type view int

const (
	viewTree view = iota
	viewManifest
	viewBrowser
)

// TreeChangedMsg is sent after the provider refreshed.
type TreeChangedMsg struct{}

// EditSelectionMsg asks the app to open a selection in $EDITOR.
type EditSelectionMsg struct{ Selection commands.Selection }

// TaskFinishedMsg reports any npm task that settled, including installs
// started from a registry panel.
type TaskFinishedMsg struct{ Task *npm.Task }

// KeysReloadedMsg is sent after the key binding files were re-read.
type KeysReloadedMsg struct{}

type statusMsg struct {
	text string
	err  error
}

type jobStartedMsg struct{ job *commands.Job }

type jobDoneMsg struct{ job *commands.Job }

type manifestLoadedMsg struct {
	path    string
	text    []byte
	markers []gutter.Marker
	err     error
}

type confirmPrompt struct {
	question string
	action   tea.Cmd
}

// shared holds state that must survive value copies of AppModel.
type shared struct {
	program *tea.Program
	ctx     context.Context
	cancel  context.CancelFunc
}

// AppModel is the root model.
type AppModel struct {
	sh   *shared
	deps AppDeps
	keys KeyMap

	view     view
	tree     TreeModel
	manifest ManifestModel
	browser  BrowserModel

	palette *PaletteModel
	confirm *confirmPrompt
	notice  string

	status    string
	statusErr bool
	running   int

	width, height int
}

// NewAppModel creates the app and loads the current tree.
func NewAppModel(deps AppDeps) AppModel {
	ctx, cancel := context.WithCancel(context.Background())
	size := 0
	if s := deps.Handlers.Tree.Settings(); s != nil {
		size = s.Panel.SearchSize
	}
	if deps.Commands == nil {
		deps.Commands = commands.NewRegistry()
	}
	keys := DefaultKeyMap()
	if deps.Keys != nil {
		keys = KeyMapFrom(deps.Keys)
	}
	browser := NewBrowserModel(ctx, deps.Registry, deps.Handlers.Tree, size)
	browser.keys = keys
	m := AppModel{
		sh:       &shared{ctx: ctx, cancel: cancel},
		deps:     deps,
		keys:     keys,
		tree:     NewTreeModel().SetKeys(keys),
		manifest: NewManifestModel(),
		browser:  browser,
	}
	m.tree = m.tree.SetSections(deps.Handlers.Tree.Sections())
	return m
}

// Init refreshes the tree once the program runs.
func (m AppModel) Init() tea.Cmd {
	return m.refresh()
}

func (m *AppModel) taskStatus(t *npm.Task) {
	if err := t.Err(); err != nil {
		m.setStatus(t.Name()+" failed", err)
		return
	}
	m.setStatus("Finished: "+t.Name(), nil)
}

func (m AppModel) ctx() context.Context { return m.sh.ctx }

// Update routes messages to overlays first, then to the active view.
func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m.resize(), nil

	case TreeChangedMsg:
		m.tree = m.tree.SetSections(m.deps.Handlers.Tree.Sections())
		m.browser = m.browser.Installed()
		if m.view == viewManifest {
			return m, m.loadManifest()
		}
		return m, nil

	case statusMsg:
		m.setStatus(msg.text, msg.err)
		return m, nil

	case jobStartedMsg:
		m.running++
		m.setStatus("Started: "+msg.job.Task.Name(), nil)
		return m, waitJob(msg.job)

	case jobDoneMsg:
		m.running = max(m.running-1, 0)
		m.taskStatus(msg.job.Task)
		return m, nil

	case TaskFinishedMsg:
		m.taskStatus(msg.Task)
		return m, nil

	case KeysReloadedMsg:
		if m.deps.Keys == nil {
			return m, nil
		}
		m.keys = KeyMapFrom(m.deps.Keys)
		m.tree = m.tree.SetKeys(m.keys)
		m.browser.keys = m.keys
		m.setStatus("Key bindings reloaded.", nil)
		return m, nil

	case EditSelectionMsg:
		return m, tea.ExecProcess(EditorCommand(msg.Selection), func(err error) tea.Msg {
			if err != nil {
				return statusMsg{err: fmt.Errorf("editor: %w", err)}
			}
			return statusMsg{text: "Edited " + filepath.Base(msg.Selection.Path)}
		})

	case manifestLoadedMsg:
		if msg.err != nil {
			m.setStatus("", msg.err)
			return m, nil
		}
		m.manifest = m.manifest.SetDocument(msg.path, msg.text, msg.markers)
		return m, nil

	case InstallRequestMsg:
		req := msg
		return m, m.startJob(func(ctx context.Context) (*commands.Job, error) {
			return m.deps.Handlers.InstallDependency(ctx, req.Name, req.Version, req.Dev)
		})

	case browserExitMsg:
		m.view = viewTree
		return m, nil

	case PaletteRunMsg:
		m.palette = nil
		return m, m.dispatch(msg.Input)

	case noticeMsg:
		switch {
		case msg.err != nil:
			m.setStatus("", msg.err)
		case strings.Contains(strings.TrimSpace(msg.text), "\n"):
			m.notice = strings.TrimRight(msg.text, "\n")
		default:
			m.setStatus(msg.text, nil)
		}
		return m, nil

	case PaletteDismissMsg:
		m.palette = nil
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	if m.view == viewBrowser {
		updated, cmd := m.browser.Update(msg)
		m.browser = updated.(BrowserModel)
		return m, cmd
	}
	return m, nil
}

func (m *AppModel) setStatus(text string, err error) {
	m.statusErr = err != nil
	if err != nil {
		log.Warn("tui: %s: %v", text, err)
		if text != "" {
			text += ": "
		}
		text += err.Error()
	}
	m.status = text
}

func (m AppModel) resize() AppModel {
	body := m.bodyHeight()
	m.tree = m.tree.SetSize(m.width, body)
	m.manifest = m.manifest.SetSize(m.width, body)
	m.browser = m.browser.SetSize(m.width, body)
	if m.palette != nil {
		p := m.palette.SetWidth(m.width)
		m.palette = &p
	}
	return m
}

// bodyHeight leaves room for the header, status and footer lines.
func (m AppModel) bodyHeight() int {
	return max(m.height-3, 1)
}

func (m AppModel) quit() (tea.Model, tea.Cmd) {
	m.sh.cancel()
	return m, tea.Quit
}

func (m AppModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		return m.quit()
	}

	if m.palette != nil {
		updated, cmd := m.palette.Update(msg)
		p := updated.(PaletteModel)
		m.palette = &p
		return m, cmd
	}

	if m.confirm != nil {
		c := m.confirm
		switch {
		case key.Matches(msg, m.keys.Yes):
			m.confirm = nil
			return m, c.action
		case key.Matches(msg, m.keys.No):
			m.confirm = nil
			m.setStatus("Cancelled.", nil)
		}
		return m, nil
	}

	if m.notice != "" {
		m.notice = ""
		return m, nil
	}

	if m.view == viewTree && m.tree.Filtering() {
		updated, cmd := m.tree.Update(msg)
		m.tree = updated.(TreeModel)
		return m, cmd
	}
	if m.view == viewBrowser && m.browser.InputFocused() {
		updated, cmd := m.browser.Update(msg)
		m.browser = updated.(BrowserModel)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m.quit()
	case key.Matches(msg, m.keys.NextView):
		return m.switchView((m.view + 1) % 3)
	case key.Matches(msg, m.keys.Palette):
		p := NewPaletteModel(PaletteEntries(m.deps.Commands)).SetWidth(m.width)
		m.palette = &p
		return m, nil
	}

	switch m.view {
	case viewManifest:
		return m.handleManifestKey(msg)
	case viewBrowser:
		updated, cmd := m.browser.Update(msg)
		m.browser = updated.(BrowserModel)
		return m, cmd
	}
	return m.handleTreeKey(msg)
}

func (m AppModel) switchView(v view) (tea.Model, tea.Cmd) {
	m.view = v
	if v == viewManifest {
		return m, m.loadManifest()
	}
	return m, nil
}

func (m AppModel) handleManifestKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Back):
		m.view = viewTree
		return m, nil
	case key.Matches(msg, m.keys.Refresh):
		return m, m.loadManifest()
	}
	updated, cmd := m.manifest.Update(msg)
	m.manifest = updated.(ManifestModel)
	return m, cmd
}

func (m AppModel) handleTreeKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	h := m.deps.Handlers
	row, ok := m.tree.Selected()

	switch {
	case key.Matches(msg, m.keys.Refresh):
		return m, m.refresh()
	case key.Matches(msg, m.keys.Manifest):
		return m.switchView(viewManifest)
	case key.Matches(msg, m.keys.Search):
		m.view = viewBrowser
		var cmd tea.Cmd
		m.browser, cmd = m.browser.FocusInput()
		return m, cmd
	}

	if !ok {
		updated, cmd := m.tree.Update(msg)
		m.tree = updated.(TreeModel)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.Enter):
		if row.kind == rowTask {
			name := row.task.Name
			return m, m.startJob(func(ctx context.Context) (*commands.Job, error) {
				return h.RunTask(ctx, name)
			})
		}
		m.view = viewBrowser
		var cmd tea.Cmd
		m.browser, cmd = m.browser.Open(row.dep.Name)
		return m, cmd

	case key.Matches(msg, m.keys.Edit):
		return m, m.run(func(ctx context.Context) error {
			if row.kind == rowTask {
				return h.EditTask(ctx, row.task.Name)
			}
			return h.EditDependency(ctx, row.dep)
		})

	case key.Matches(msg, m.keys.Delete):
		name := row.name()
		m.confirm = &confirmPrompt{
			question: fmt.Sprintf("Delete %s from %s?", name, row.section),
			action: m.run(func(ctx context.Context) error {
				if row.kind == rowTask {
					return h.DeleteTask(ctx, name)
				}
				return h.DeleteDependency(ctx, row.dep)
			}),
		}
		return m, nil

	case key.Matches(msg, m.keys.Update) && row.kind == rowDependency:
		return m, m.startJob(func(ctx context.Context) (*commands.Job, error) {
			return h.UpdateDependency(ctx, row.dep)
		})

	case key.Matches(msg, m.keys.Uninstall) && row.kind == rowDependency:
		m.confirm = &confirmPrompt{
			question: fmt.Sprintf("Uninstall %s?", row.dep.Name),
			action: m.startJob(func(ctx context.Context) (*commands.Job, error) {
				return h.UninstallDependency(ctx, row.dep)
			}),
		}
		return m, nil

	case key.Matches(msg, m.keys.OpenPanel) && row.kind == rowDependency:
		return m, m.openPanel(row.dep.Name)
	}

	updated, cmd := m.tree.Update(msg)
	m.tree = updated.(TreeModel)
	return m, cmd
}

func (m AppModel) openPanel(name string) tea.Cmd {
	srv := m.deps.Panels
	return func() tea.Msg {
		if srv == nil || srv.URL() == "" {
			return statusMsg{text: "Panel server is not running; start with --serve"}
		}
		p := srv.OpenDependency(name)
		return statusMsg{text: "Panel: " + srv.PanelURL(p)}
	}
}

func (m AppModel) refresh() tea.Cmd {
	h, ctx := m.deps.Handlers, m.ctx()
	return func() tea.Msg {
		if err := h.Tree.Refresh(ctx); err != nil {
			return statusMsg{err: err}
		}
		return TreeChangedMsg{}
	}
}

// run executes fn off the event loop and reports its error.
func (m AppModel) run(fn func(ctx context.Context) error) tea.Cmd {
	ctx := m.ctx()
	return func() tea.Msg {
		if err := fn(ctx); err != nil {
			return statusMsg{err: err}
		}
		return TreeChangedMsg{}
	}
}

func (m AppModel) startJob(fn func(ctx context.Context) (*commands.Job, error)) tea.Cmd {
	ctx := m.ctx()
	return func() tea.Msg {
		job, err := fn(ctx)
		if err != nil {
			return statusMsg{err: err}
		}
		if job == nil {
			return statusMsg{text: "Nothing to run."}
		}
		return jobStartedMsg{job: job}
	}
}

func waitJob(job *commands.Job) tea.Cmd {
	return func() tea.Msg {
		<-job.Settled()
		return jobDoneMsg{job: job}
	}
}

func (m AppModel) dispatch(input string) tea.Cmd {
	h, reg, ctx := m.deps.Handlers, m.deps.Commands, m.ctx()
	return func() tea.Msg {
		out, err := reg.Dispatch(ctx, h, input)
		return noticeMsg{text: out, err: err}
	}
}

// noticeMsg carries palette output; multi-line output is shown until the
// next key press.
type noticeMsg struct {
	text string
	err  error
}

func (m AppModel) loadManifest() tea.Cmd {
	h, g, ctx := m.deps.Handlers, m.deps.Gutter, m.ctx()
	return func() tea.Msg {
		path := h.Tree.Manifest()
		if path == "" {
			return manifestLoadedMsg{}
		}
		text, err := os.ReadFile(path)
		if err != nil {
			return manifestLoadedMsg{err: fmt.Errorf("reading manifest: %w", err)}
		}
		var markers []gutter.Marker
		if g != nil {
			markers = g.Update(ctx, gutter.Document{Path: path, Text: text})
		}
		return manifestLoadedMsg{path: path, text: text, markers: markers}
	}
}

// View renders header, body, status and footer.
func (m AppModel) View() string {
	s := Styles()
	var b strings.Builder

	header := s.Title.Render("npm-explorer")
	if m.deps.Version != "" {
		header += s.Muted.Render(" " + m.deps.Version)
	}
	if rel := m.relativeManifest(); rel != "" {
		header += s.Muted.Render(" · " + rel)
	}
	if m.running > 0 {
		header += s.Warning.Render(fmt.Sprintf(" · %d running", m.running))
	}
	b.WriteString(header)
	b.WriteByte('\n')

	body := m.body()
	lines := strings.Split(body, "\n")
	h := m.bodyHeight()
	if m.height > 0 && len(lines) > h {
		lines = lines[:h]
	}
	for len(lines) < h && m.height > 0 {
		lines = append(lines, "")
	}
	b.WriteString(strings.Join(lines, "\n"))
	b.WriteByte('\n')

	status := m.status
	if m.confirm != nil {
		status = s.Warning.Render(m.confirm.question + " (y/n)")
	} else if m.statusErr {
		status = s.Error.Render(status)
	}
	if m.width > 0 {
		status = ansi.Truncate(status, m.width, "…")
	}
	b.WriteString(status)
	b.WriteByte('\n')
	b.WriteString(m.footer())
	return b.String()
}

func (m AppModel) body() string {
	switch {
	case m.palette != nil:
		return m.palette.View()
	case m.notice != "":
		return m.notice
	}
	switch m.view {
	case viewManifest:
		return m.manifest.View()
	case viewBrowser:
		return m.browser.View()
	}
	return m.tree.View()
}

func (m AppModel) footer() string {
	k := m.keys
	switch {
	case m.palette != nil:
		return helpLine(k.Up, k.Down, k.Enter, k.Back)
	case m.view == viewManifest:
		return helpLine(k.Up, k.Down, k.Refresh, k.Back, k.NextView, k.Quit)
	case m.view == viewBrowser:
		return helpLine(k.Search, k.Enter, k.NextPage, k.PrevPage, k.Sort, k.Install, k.InstallDev, k.Back)
	}
	return helpLine(k.Enter, k.Edit, k.Delete, k.Update, k.Uninstall, k.OpenPanel, k.Filter, k.Palette, k.Quit)
}

func (m AppModel) relativeManifest() string {
	t := m.deps.Handlers.Tree
	path := t.Manifest()
	if path == "" {
		return ""
	}
	if rel, err := filepath.Rel(t.Root(), path); err == nil {
		return rel
	}
	return path
}
