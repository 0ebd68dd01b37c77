// ABOUTME: Dependency injection struct for the terminal UI
// ABOUTME: Built by the CLI; every field except Handlers may be nil

package tui

import (
	"github.com/mariosdrth/npm-explorer/internal/commands"
	"github.com/mariosdrth/npm-explorer/internal/gutter"
	"github.com/mariosdrth/npm-explorer/internal/keybindings"
	"github.com/mariosdrth/npm-explorer/internal/panel"
)

// AppDeps bundles everything the app talks to.
type AppDeps struct {
	Handlers *commands.Handlers
	Commands *commands.Registry
	Registry panel.Registry
	Gutter   *gutter.Decorator
	Panels   *panel.Server
	Keys     *keybindings.Manager
	Version  string
}
