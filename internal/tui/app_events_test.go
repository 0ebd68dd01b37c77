// ABOUTME: Tests for messages the program sends from outside the model
// ABOUTME: Tasks settled outside the tree and key binding reloads update the status and key map

package tui

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mariosdrth/npm-explorer/internal/keybindings"
	"github.com/mariosdrth/npm-explorer/internal/npm"
)

func TestAppModel_TaskFinishedFromPanel(t *testing.T) {
	ws, m := newTestApp(t)

	h := ws.deps.Handlers
	task, err := h.Runner.Start(context.Background(), h.Tree.Builder().Package(npm.VerbInstall, "chalk", "5.3.0", false))
	if err != nil {
		t.Fatal(err)
	}
	<-task.Done()

	updated, _ := m.Update(TaskFinishedMsg{Task: task})
	m = updated.(AppModel)
	if want := "Finished: " + task.Name(); m.status != want {
		t.Errorf("status = %q; want %q", m.status, want)
	}
	if m.running != 0 {
		t.Errorf("running = %d; a task started elsewhere must not count", m.running)
	}
}

func TestAppModel_KeysReloaded(t *testing.T) {
	ws := newWorkspace(t)
	path := filepath.Join(t.TempDir(), "keybindings.json")
	ws.deps.Keys = keybindings.New("", path)
	m := NewAppModel(ws.deps)
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	m = updated.(AppModel)

	if err := os.WriteFile(path, []byte(`{"down": ["n"]}`), 0o600); err != nil {
		t.Fatal(err)
	}
	ws.deps.Keys.Reload("", path)
	updated, _ = m.Update(KeysReloadedMsg{})
	m = updated.(AppModel)

	if m.status != "Key bindings reloaded." {
		t.Errorf("status = %q", m.status)
	}
	m = press(t, m, "n")
	r, ok := m.tree.Selected()
	if !ok || r.name() != "lodash" {
		t.Errorf("selection after n = %v; want lodash", r.name())
	}
}
