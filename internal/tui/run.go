// ABOUTME: Entry point for the terminal UI
// ABOUTME: Creates the tea.Program, wires provider, runner, key binding and editor callbacks into it, blocks until exit

package tui

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mariosdrth/npm-explorer/internal/commands"
	"github.com/mariosdrth/npm-explorer/internal/npm"
	"github.com/mariosdrth/npm-explorer/internal/tree"
)

// Run starts the terminal UI. It blocks until the user quits.
func Run(deps AppDeps) error {
	m := NewAppModel(deps)

	p := tea.NewProgram(
		m,
		tea.WithAltScreen(),
		tea.WithOutput(os.Stderr),
	)

	// The model copy held by the program shares sh.
	m.sh.program = p
	defer m.sh.cancel()

	unsubscribe := deps.Handlers.Tree.Subscribe(func(tree.Changed) {
		p.Send(TreeChangedMsg{})
	})
	defer unsubscribe()

	if r := deps.Handlers.Runner; r != nil && r.Finished != nil {
		defer r.Finished.Subscribe(func(t *npm.Task) {
			p.Send(TaskFinishedMsg{Task: t})
		})()
	}
	if deps.Keys != nil {
		defer deps.Keys.Subscribe(func() {
			p.Send(KeysReloadedMsg{})
		})()
	}

	prevOpener := deps.Handlers.Opener
	deps.Handlers.Opener = commands.OpenerFunc(func(sel commands.Selection) error {
		p.Send(EditSelectionMsg{Selection: sel})
		return nil
	})
	defer func() { deps.Handlers.Opener = prevOpener }()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("bubble tea: %w", err)
	}
	return nil
}
