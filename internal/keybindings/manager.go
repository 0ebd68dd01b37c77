// ABOUTME: Key bindings for the terminal UI actions with O(1) key-to-action lookup
// ABOUTME: Project bindings override global ones, which override defaults; detects conflicts and reloads

package keybindings

import (
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"slices"
	"sort"
	"strings"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"gopkg.in/yaml.v3"

	"github.com/mariosdrth/npm-explorer/internal/eventbus"
	"github.com/mariosdrth/npm-explorer/internal/log"
)

// Action names something the terminal UI can do.
type Action string

const (
	ActionUp         Action = "up"
	ActionDown       Action = "down"
	ActionOpen       Action = "open"
	ActionBack       Action = "back"
	ActionQuit       Action = "quit"
	ActionNextView   Action = "nextView"
	ActionPalette    Action = "palette"
	ActionFilter     Action = "filter"
	ActionRefresh    Action = "refresh"
	ActionEdit       Action = "edit"
	ActionDelete     Action = "delete"
	ActionUpdate     Action = "update"
	ActionUninstall  Action = "uninstall"
	ActionManifest   Action = "manifest"
	ActionSearch     Action = "search"
	ActionOpenPanel  Action = "openPanel"
	ActionNextPage   Action = "nextPage"
	ActionPrevPage   Action = "prevPage"
	ActionSort       Action = "sort"
	ActionInstall    Action = "install"
	ActionInstallDev Action = "installDev"
)

// Defaults returns the built-in bindings. Keys use tea.KeyMsg.String()
// spelling: "enter", "esc", "ctrl+s", "I".
func Defaults() map[Action][]string {
	return map[Action][]string{
		ActionUp:         {"up", "k"},
		ActionDown:       {"down", "j"},
		ActionOpen:       {"enter"},
		ActionBack:       {"esc"},
		ActionQuit:       {"q", "ctrl+c"},
		ActionNextView:   {"tab"},
		ActionPalette:    {":"},
		ActionFilter:     {"/"},
		ActionRefresh:    {"r"},
		ActionEdit:       {"e"},
		ActionDelete:     {"d"},
		ActionUpdate:     {"u"},
		ActionUninstall:  {"x"},
		ActionManifest:   {"m"},
		ActionSearch:     {"s"},
		ActionOpenPanel:  {"o"},
		ActionNextPage:   {"n", "right"},
		ActionPrevPage:   {"p", "left"},
		ActionSort:       {"ctrl+s"},
		ActionInstall:    {"i"},
		ActionInstallDev: {"I"},
	}
}

// categories group actions for FormatAll.
var categories = []struct {
	name    string
	actions []Action
}{
	{"Navigation", []Action{ActionUp, ActionDown, ActionOpen, ActionBack, ActionNextView, ActionQuit}},
	{"Tree", []Action{ActionFilter, ActionRefresh, ActionEdit, ActionDelete, ActionUpdate, ActionUninstall, ActionManifest, ActionSearch, ActionOpenPanel, ActionPalette}},
	{"Registry", []Action{ActionNextPage, ActionPrevPage, ActionSort, ActionInstall, ActionInstallDev}},
}

// ConflictInfo describes a key bound to more than one action.
type ConflictInfo struct {
	Key     string
	Actions []Action
}

// Manager resolves keys to actions.
type Manager struct {
	mu       sync.RWMutex
	bindings map[Action][]string
	lookup   map[string][]Action
	reloaded *eventbus.Bus[struct{}]
}

// New loads overrides from the global and project files. Missing files are
// ignored; unreadable ones are logged and skipped.
func New(globalPath, projectPath string) *Manager {
	m := &Manager{reloaded: eventbus.New[struct{}]()}
	m.Reload(globalPath, projectPath)
	return m
}

// NewFromBindings creates a manager over bindings as given.
func NewFromBindings(bindings map[Action][]string) *Manager {
	m := &Manager{reloaded: eventbus.New[struct{}]()}
	m.set(bindings)
	return m
}

// Subscribe registers fn to run after every Reload.
func (m *Manager) Subscribe(fn func()) func() {
	return m.reloaded.Subscribe(func(struct{}) { fn() })
}

// Reload re-reads both files, rebuilds the lookup table and notifies
// subscribers.
func (m *Manager) Reload(globalPath, projectPath string) {
	bindings := Defaults()
	for _, path := range []string{globalPath, projectPath} {
		if path == "" {
			continue
		}
		overrides, err := Load(path)
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				log.Warn("keybindings: %v", err)
			}
			continue
		}
		maps.Copy(bindings, overrides)
	}
	m.set(bindings)
	m.reloaded.Publish(struct{}{})
}

// Load reads a JSON or YAML object of action name to key list. Unknown
// action names are dropped.
func Load(path string) (map[Action][]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var raw map[string][]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	known := Defaults()
	out := make(map[Action][]string, len(raw))
	for name, keys := range raw {
		a := Action(name)
		if _, ok := known[a]; !ok {
			log.Debug("keybindings: %s: unknown action %q", path, name)
			continue
		}
		out[a] = keys
	}
	return out, nil
}

func (m *Manager) set(bindings map[Action][]string) {
	lookup := make(map[string][]Action, len(bindings)*2)
	for action, keys := range bindings {
		for _, k := range keys {
			lookup[k] = append(lookup[k], action)
		}
	}
	m.mu.Lock()
	m.bindings = bindings
	m.lookup = lookup
	m.mu.Unlock()
}

// Keys returns the keys bound to action.
func (m *Manager) Keys(action Action) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.bindings[action])
}

// ActionForKey returns the action bound to msg, or "" if unbound. A key
// bound to several actions resolves to the first in name order.
func (m *Manager) ActionForKey(msg tea.KeyMsg) Action {
	m.mu.RLock()
	defer m.mu.RUnlock()
	actions := m.lookup[msg.String()]
	if len(actions) == 0 {
		return ""
	}
	return slices.Min(actions)
}

// Conflicts lists keys bound to several actions, sorted by key. Keys that
// are shared only by actions of different views are not conflicts.
func (m *Manager) Conflicts() []ConflictInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []ConflictInfo
	for k, actions := range m.lookup {
		if len(actions) < 2 || !sameView(actions) {
			continue
		}
		sorted := slices.Clone(actions)
		slices.Sort(sorted)
		out = append(out, ConflictInfo{Key: k, Actions: sorted})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// sameView reports whether two of actions are handled by the same view.
// Registry actions only apply in the browser, tree actions only in the tree.
func sameView(actions []Action) bool {
	seen := map[string]int{}
	for _, a := range actions {
		seen[viewOf(a)]++
	}
	for view, n := range seen {
		if n > 1 || (view == "" && len(actions) > 1) {
			return true
		}
	}
	return false
}

func viewOf(a Action) string {
	for _, c := range categories {
		if slices.Contains(c.actions, a) {
			if c.name == "Navigation" {
				return ""
			}
			return c.name
		}
	}
	return ""
}

// FormatAll renders every binding grouped by category, followed by any
// conflicts.
func (m *Manager) FormatAll() string {
	var b strings.Builder
	b.WriteString("Keybindings:\n")
	for _, cat := range categories {
		fmt.Fprintf(&b, "\n## %s\n", cat.name)
		for _, action := range cat.actions {
			keys := m.Keys(action)
			if len(keys) == 0 {
				continue
			}
			fmt.Fprintf(&b, "  %-20s %s\n", strings.Join(keys, ", "), action)
		}
	}
	if conflicts := m.Conflicts(); len(conflicts) > 0 {
		b.WriteString("\n## Conflicts\n")
		for _, c := range conflicts {
			names := make([]string, len(c.Actions))
			for i, a := range c.Actions {
				names[i] = string(a)
			}
			fmt.Fprintf(&b, "  %-20s %s\n", c.Key, strings.Join(names, ", "))
		}
	}
	return b.String()
}
