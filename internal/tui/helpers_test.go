// ABOUTME: Shared fixtures for terminal UI tests: fake registry, temp workspace, key and cmd helpers
// ABOUTME: drain runs commands to completion, skipping spinner ticks that would loop forever

package tui

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/mariosdrth/npm-explorer/internal/commands"
	"github.com/mariosdrth/npm-explorer/internal/config"
	"github.com/mariosdrth/npm-explorer/internal/gutter"
	"github.com/mariosdrth/npm-explorer/internal/manifest"
	"github.com/mariosdrth/npm-explorer/internal/npm"
	"github.com/mariosdrth/npm-explorer/internal/registry"
	"github.com/mariosdrth/npm-explorer/internal/tree"
)

const sampleManifest = `{
	"name": "demo",
	"scripts": {
		"build": "tsc -p ."
	},
	"dependencies": {
		"lodash": "^4.17.20"
	},
	"devDependencies": {
		"glob": "^7.2.0"
	}
}
`

type searchCall struct {
	text string
	from int
	size int
	sort registry.SortType
}

type fakeRegistry struct {
	mu    sync.Mutex
	calls []searchCall
	total int
}

func (f *fakeRegistry) Search(_ context.Context, text string, from, size int, sort registry.SortType) (*registry.SearchResponse, error) {
	f.mu.Lock()
	f.calls = append(f.calls, searchCall{text: text, from: from, size: size, sort: sort})
	f.mu.Unlock()
	res := &registry.SearchResponse{Total: f.total}
	for i := from; i < min(from+size, f.total); i++ {
		var r registry.SearchResult
		r.Package.Name = fmt.Sprintf("%s-%d", text, i)
		r.Package.Version = "1.0.0"
		r.Package.Description = "package <b>number</b> " + fmt.Sprint(i)
		res.Objects = append(res.Objects, r)
	}
	return res, nil
}

func (f *fakeRegistry) Package(_ context.Context, name string) (*registry.PackageDetail, error) {
	if name == "missing" {
		return nil, &registry.StatusError{Code: 404, Status: "Not Found"}
	}
	d := &registry.PackageDetail{
		Name:        name,
		Description: "A fake package",
		DistTags:    map[string]string{"latest": "1.2.0"},
		Keywords:    registry.Keywords{"util"},
		License:     "MIT",
	}
	v := registry.Version{Tag: "1.2.0"}
	v.Detail.Dist.UnpackedSize = 2048
	d.Versions = []registry.Version{{Tag: "1.0.0"}, v}
	return d, nil
}

func (f *fakeRegistry) Downloads(context.Context, string) ([]registry.DailyDownloads, error) {
	days := make([]registry.DailyDownloads, 14)
	for i := range days {
		days[i] = registry.DailyDownloads{Downloads: int64(100 * (i + 1)), Day: fmt.Sprintf("2024-01-%02d", i+1)}
	}
	return days, nil
}

func (f *fakeRegistry) Readme(context.Context, *registry.PackageDetail) string {
	return "# Fake\n\nSome readme text."
}

func (f *fakeRegistry) lastCall() searchCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return searchCall{}
	}
	return f.calls[len(f.calls)-1]
}

type workspace struct {
	root    string
	argsLog string
	deps    AppDeps
	reg     *fakeRegistry
}

// newWorkspace creates a manifest, a fake npm that logs its arguments and
// app dependencies over both. lodash is reported outdated.
func newWorkspace(t *testing.T) *workspace {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake npm is a shell script")
	}
	t.Setenv("HOME", t.TempDir())

	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, manifest.FileName), []byte(sampleManifest), 0o644); err != nil {
		t.Fatal(err)
	}
	bin := t.TempDir()
	argsLog := filepath.Join(bin, "args.log")
	script := "#!/bin/sh\necho \"$*\" >> \"" + argsLog + "\"\n"
	npmPath := filepath.Join(bin, "npm")
	if err := os.WriteFile(npmPath, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}

	s := &config.Settings{
		ProjectRoot: root,
		NpmPath:     npmPath,
		RunMode:     config.RunModeTask,
		ShowGutter:  true,
		Panel:       config.PanelSettings{SearchSize: 20},
	}
	outdated := func(context.Context, npm.Builder) []npm.OutdatedEntry {
		return []npm.OutdatedEntry{{Name: "lodash", Current: "4.17.20", Wanted: "4.17.21", Latest: "4.17.21"}}
	}
	p := tree.New(s)
	p.SetOutdatedFunc(outdated)
	if err := p.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	g := gutter.New(p)
	g.SetOutdatedFunc(outdated)

	reg := &fakeRegistry{total: 45}
	h := commands.New(p, npm.NewRunner(config.RunModeTask, nil), nil)
	return &workspace{
		root:    root,
		argsLog: argsLog,
		reg:     reg,
		deps: AppDeps{
			Handlers: h,
			Commands: commands.NewRegistry(),
			Registry: reg,
			Gutter:   g,
			Version:  "test",
		},
	}
}

// keyMsgs turns names into key messages: "enter", "esc", "tab", "up",
// "down", "backspace", "space" and "ctrl+s" are special, anything else is
// typed as one message.
func keyMsgs(names ...string) []tea.KeyMsg {
	special := map[string]tea.KeyType{
		"enter":     tea.KeyEnter,
		"esc":       tea.KeyEsc,
		"tab":       tea.KeyTab,
		"up":        tea.KeyUp,
		"down":      tea.KeyDown,
		"backspace": tea.KeyBackspace,
		"space":     tea.KeySpace,
		"ctrl+s":    tea.KeyCtrlS,
	}
	var out []tea.KeyMsg
	for _, n := range names {
		if kt, ok := special[n]; ok {
			km := tea.KeyMsg{Type: kt}
			if kt == tea.KeySpace {
				km.Runes = []rune{' '}
			}
			out = append(out, km)
			continue
		}
		out = append(out, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(n)})
	}
	return out
}

// press sends keys to m, draining the commands each key returns.
func press[M tea.Model](t *testing.T, m M, names ...string) M {
	t.Helper()
	for _, k := range keyMsgs(names...) {
		updated, cmd := m.Update(k)
		m = drain(t, updated.(M), cmd)
	}
	return m
}

// drain runs cmd and every command that follows from it.
func drain[M tea.Model](t *testing.T, m M, cmd tea.Cmd) M {
	t.Helper()
	queue := []tea.Cmd{cmd}
	for steps := 0; len(queue) > 0; steps++ {
		if steps > 1000 {
			t.Fatal("drain: too many commands")
		}
		c := queue[0]
		queue = queue[1:]
		if c == nil {
			continue
		}
		switch msg := c().(type) {
		case nil, spinner.TickMsg, tea.QuitMsg:
		case tea.BatchMsg:
			queue = append(queue, msg...)
		default:
			updated, next := m.Update(msg)
			m = updated.(M)
			queue = append(queue, next)
		}
	}
	return m
}
