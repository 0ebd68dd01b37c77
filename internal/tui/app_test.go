// ABOUTME: Tests for AppModel: view switching, tree commands, confirm prompt, palette dispatch and browser install
// ABOUTME: Uses a temp workspace with a fake npm; tests set HOME so they do not run in parallel

package tui

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mariosdrth/npm-explorer/internal/commands"
	"github.com/mariosdrth/npm-explorer/internal/manifest"
)

var _ tea.Model = AppModel{}

func newTestApp(t *testing.T) (*workspace, AppModel) {
	t.Helper()
	ws := newWorkspace(t)
	m := NewAppModel(ws.deps)
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return ws, updated.(AppModel)
}

func readArgs(t *testing.T, ws *workspace) string {
	t.Helper()
	data, err := os.ReadFile(ws.argsLog)
	if err != nil {
		t.Fatalf("reading npm log: %v", err)
	}
	return string(data)
}

func TestAppModel_InitialTree(t *testing.T) {
	_, m := newTestApp(t)

	v := m.View()
	for _, want := range []string{"npm-explorer", "package.json", "Tasks", "build", "lodash", "Newer version 4.17.21", "Dev Dependencies", "glob"} {
		if !strings.Contains(v, want) {
			t.Errorf("View() missing %q", want)
		}
	}
	if got := len(strings.Split(v, "\n")); got != 40 {
		t.Errorf("View() has %d lines; want 40", got)
	}
}

func TestAppModel_ManifestViewShowsMarkers(t *testing.T) {
	_, m := newTestApp(t)

	m = press(t, m, "tab")
	if m.view != viewManifest {
		t.Fatalf("view = %d; want manifest", m.view)
	}
	if got := len(m.manifest.Markers()); got != 1 {
		t.Fatalf("markers = %d; want 1", got)
	}
	v := m.View()
	for _, want := range []string{"1 outdated", GutterGlyph, "4.17.21 wanted"} {
		if !strings.Contains(v, want) {
			t.Errorf("manifest View() missing %q", want)
		}
	}

	m = press(t, m, "esc")
	if m.view != viewTree {
		t.Errorf("view after esc = %d; want tree", m.view)
	}
}

func TestAppModel_RunTask(t *testing.T) {
	ws, m := newTestApp(t)

	m = press(t, m, "enter")
	if m.running != 0 {
		t.Errorf("running = %d; want 0 once settled", m.running)
	}
	if !strings.HasPrefix(m.status, "Finished: ") {
		t.Errorf("status = %q; want a finished message", m.status)
	}
	if got := readArgs(t, ws); !strings.Contains(got, "run build") {
		t.Errorf("npm args = %q; want run build", got)
	}
}

func TestAppModel_DeleteConfirm(t *testing.T) {
	ws, m := newTestApp(t)

	m = press(t, m, "down", "d")
	if m.confirm == nil {
		t.Fatal("no confirm prompt after d")
	}
	if v := m.View(); !strings.Contains(v, "Delete lodash from Dependencies? (y/n)") {
		t.Errorf("View() = %q; want the prompt", v)
	}

	m = press(t, m, "n")
	if m.confirm != nil || m.status != "Cancelled." {
		t.Fatalf("after n: confirm = %v, status = %q", m.confirm, m.status)
	}

	m = press(t, m, "d", "y")
	data, err := os.ReadFile(filepath.Join(ws.root, manifest.FileName))
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "lodash") {
		t.Errorf("manifest still lists lodash:\n%s", data)
	}
	if strings.Contains(m.View(), "lodash") {
		t.Error("tree still shows lodash")
	}
}

func TestAppModel_EditUsesOpener(t *testing.T) {
	ws, m := newTestApp(t)
	var opened []commands.Selection
	ws.deps.Handlers.Opener = commands.OpenerFunc(func(sel commands.Selection) error {
		opened = append(opened, sel)
		return nil
	})

	_ = press(t, m, "e")
	if len(opened) != 1 {
		t.Fatalf("opened = %d selections; want 1", len(opened))
	}
	if got := opened[0].Start.Line; got != 3 {
		t.Errorf("selection line = %d; want 3", got)
	}

	_, cmd := m.Update(EditSelectionMsg{Selection: opened[0]})
	if cmd == nil {
		t.Error("EditSelectionMsg returned no command")
	}
}

func TestAppModel_PaletteHelp(t *testing.T) {
	_, m := newTestApp(t)

	m = press(t, m, ":")
	if m.palette == nil {
		t.Fatal("palette not open after :")
	}
	m = press(t, m, "help", "enter")
	if m.palette != nil {
		t.Error("palette still open after enter")
	}
	if !strings.Contains(m.View(), ":refresh - ") {
		t.Errorf("View() = %q; want the help notice", m.View())
	}

	m = press(t, m, "x")
	if m.notice != "" {
		t.Error("notice kept after a key press")
	}
	if m.confirm != nil {
		t.Error("key that closed the notice also reached the tree")
	}
}

func TestAppModel_PaletteUnknownCommand(t *testing.T) {
	_, m := newTestApp(t)

	m = press(t, m, ":", "nope", "enter")
	if !m.statusErr || !strings.Contains(m.status, "unknown command: nope") {
		t.Errorf("status = %q (err %v); want unknown command", m.status, m.statusErr)
	}
}

func TestAppModel_BrowserInstall(t *testing.T) {
	ws, m := newTestApp(t)

	m = press(t, m, "s")
	if m.view != viewBrowser || !m.browser.InputFocused() {
		t.Fatal("s did not focus the registry search")
	}
	m = press(t, m, "react", "enter")
	if !strings.Contains(m.View(), "Showing 1-20 of 45 packages") {
		t.Fatalf("View() = %q; want search results", m.View())
	}

	m = press(t, m, "enter", "I")
	args := readArgs(t, ws)
	if !strings.Contains(args, "install") || !strings.Contains(args, "react-0@1.2.0") {
		t.Errorf("npm args = %q; want install react-0@1.2.0", args)
	}

	m = press(t, m, "esc", "esc")
	if m.view != viewTree {
		t.Errorf("view = %d; want tree after leaving the browser", m.view)
	}
}

func TestAppModel_EnterOnDependencyOpensDetail(t *testing.T) {
	_, m := newTestApp(t)

	m = press(t, m, "down", "enter")
	if m.view != viewBrowser {
		t.Fatalf("view = %d; want browser", m.view)
	}
	v := m.View()
	for _, want := range []string{"Version (^4.17.20) installed", "Newer version available: 4.17.21"} {
		if !strings.Contains(v, want) {
			t.Errorf("detail View() missing %q", want)
		}
	}
}

func TestAppModel_OpenPanelWithoutServer(t *testing.T) {
	_, m := newTestApp(t)

	m = press(t, m, "down", "o")
	if !strings.Contains(m.status, "not running") {
		t.Errorf("status = %q; want a server hint", m.status)
	}
}

func TestAppModel_Quit(t *testing.T) {
	_, m := newTestApp(t)

	_, cmd := m.Update(keyMsgs("q")[0])
	if cmd == nil {
		t.Fatal("q returned no command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q did not quit")
	}
	if m.sh.ctx.Err() == nil {
		t.Error("context not cancelled on quit")
	}
}
