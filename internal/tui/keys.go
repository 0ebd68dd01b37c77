// ABOUTME: Key bindings for the terminal UI views
// ABOUTME: Built from the configurable key bindings; the footer help is generated from them

package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"

	"github.com/mariosdrth/npm-explorer/internal/keybindings"
)

// KeyMap lists every binding the app reacts to.
type KeyMap struct {
	Up        key.Binding
	Down      key.Binding
	Enter     key.Binding
	Back      key.Binding
	Quit      key.Binding
	NextView  key.Binding
	Palette   key.Binding
	Filter    key.Binding
	Refresh   key.Binding
	Edit      key.Binding
	Delete    key.Binding
	Update    key.Binding
	Uninstall key.Binding
	Manifest  key.Binding
	Search    key.Binding
	OpenPanel key.Binding

	NextPage   key.Binding
	PrevPage   key.Binding
	Sort       key.Binding
	Install    key.Binding
	InstallDev key.Binding

	Yes key.Binding
	No  key.Binding
}

// helpKeys shortens key names for the footer.
var helpKeys = map[string]string{"up": "↑", "down": "↓", "left": "←", "right": "→"}

// KeyMapFrom builds the bindings from m. Confirm answers are fixed.
func KeyMapFrom(m *keybindings.Manager) KeyMap {
	bind := func(a keybindings.Action, desc string) key.Binding {
		keys := m.Keys(a)
		if len(keys) == 0 {
			return key.NewBinding(key.WithDisabled())
		}
		var shown []string
		for _, k := range keys[:min(len(keys), 2)] {
			if short, ok := helpKeys[k]; ok {
				k = short
			}
			shown = append(shown, k)
		}
		return key.NewBinding(key.WithKeys(keys...), key.WithHelp(strings.Join(shown, "/"), desc))
	}
	return KeyMap{
		Up:        bind(keybindings.ActionUp, "up"),
		Down:      bind(keybindings.ActionDown, "down"),
		Enter:     bind(keybindings.ActionOpen, "open"),
		Back:      bind(keybindings.ActionBack, "back"),
		Quit:      bind(keybindings.ActionQuit, "quit"),
		NextView:  bind(keybindings.ActionNextView, "next view"),
		Palette:   bind(keybindings.ActionPalette, "commands"),
		Filter:    bind(keybindings.ActionFilter, "filter"),
		Refresh:   bind(keybindings.ActionRefresh, "refresh"),
		Edit:      bind(keybindings.ActionEdit, "edit"),
		Delete:    bind(keybindings.ActionDelete, "delete"),
		Update:    bind(keybindings.ActionUpdate, "update"),
		Uninstall: bind(keybindings.ActionUninstall, "uninstall"),
		Manifest:  bind(keybindings.ActionManifest, "manifest"),
		Search:    bind(keybindings.ActionSearch, "search registry"),
		OpenPanel: bind(keybindings.ActionOpenPanel, "open panel"),

		NextPage:   bind(keybindings.ActionNextPage, "next page"),
		PrevPage:   bind(keybindings.ActionPrevPage, "prev page"),
		Sort:       bind(keybindings.ActionSort, "sort"),
		Install:    bind(keybindings.ActionInstall, "install"),
		InstallDev: bind(keybindings.ActionInstallDev, "install dev"),

		Yes: key.NewBinding(key.WithKeys("y", "Y")),
		No:  key.NewBinding(key.WithKeys("n", "N", "esc")),
	}
}

// DefaultKeyMap returns the built-in bindings.
func DefaultKeyMap() KeyMap {
	return KeyMapFrom(keybindings.NewFromBindings(keybindings.Defaults()))
}

// helpLine renders bindings as "key desc" pairs for the footer.
func helpLine(bindings ...key.Binding) string {
	s := Styles()
	var out string
	for i, b := range bindings {
		h := b.Help()
		if h.Key == "" {
			continue
		}
		if i > 0 {
			out += s.FooterText.Render(" · ")
		}
		out += s.FooterKey.Render(h.Key) + " " + s.FooterText.Render(h.Desc)
	}
	return out
}
