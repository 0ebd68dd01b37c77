// ABOUTME: Tree provider: Tasks, Dependencies and Dev Dependencies built from the manifest
// ABOUTME: Refresh re-reads the manifest, re-runs the outdated check and publishes Changed

package tree

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/mariosdrth/npm-explorer/internal/config"
	"github.com/mariosdrth/npm-explorer/internal/eventbus"
	"github.com/mariosdrth/npm-explorer/internal/log"
	"github.com/mariosdrth/npm-explorer/internal/manifest"
	"github.com/mariosdrth/npm-explorer/internal/npm"
	"golang.org/x/sync/errgroup"
)

// Kind identifies a top-level tree section.
type Kind string

const (
	KindTasks           Kind = "Tasks"
	KindDependencies    Kind = "Dependencies"
	KindDevDependencies Kind = "Dev Dependencies"
)

// Task is a script declared in the manifest.
type Task struct {
	Name   string
	Script string
}

// Dependency is a declared package with its derived flags.
type Dependency struct {
	Name             string
	Version          string // declared range
	Dev              bool
	Installed        bool
	InstalledVersion string
	Outdated         bool
	WantedVersion    string // set only when Outdated
}

// Section returns the manifest section the dependency lives in.
func (d Dependency) Section() manifest.Section {
	if d.Dev {
		return manifest.SectionDevDependencies
	}
	return manifest.SectionDependencies
}

// Description is the secondary text shown next to the name.
func (d Dependency) Description() string {
	s := "Current version: " + d.Version
	if d.Outdated {
		s += " - Newer version " + d.WantedVersion
	}
	return s
}

// Section is one populated top-level node.
type Section struct {
	Kind         Kind
	Tasks        []Task
	Dependencies []Dependency
}

// Len returns the number of children.
func (s Section) Len() int {
	if s.Kind == KindTasks {
		return len(s.Tasks)
	}
	return len(s.Dependencies)
}

// Changed is published after every refresh.
type Changed struct {
	Manifest string // path, "" when none was found
	Empty    bool
}

// OutdatedFunc runs the outdated check; npm.Outdated in production.
type OutdatedFunc func(ctx context.Context, b npm.Builder) []npm.OutdatedEntry

// Provider owns the tree state for one workspace root.
type Provider struct {
	root     string
	outdated OutdatedFunc
	bus      *eventbus.Bus[Changed]

	mu           sync.RWMutex
	settings     *config.Settings
	manifestPath string
	tasks        []Task
	deps         []Dependency
	devDeps      []Dependency
}

// New creates a provider. It is empty until the first Refresh.
func New(s *config.Settings) *Provider {
	return &Provider{
		root:     s.ProjectRoot,
		settings: s,
		outdated: npm.Outdated,
		bus:      eventbus.New[Changed](),
	}
}

// SetOutdatedFunc replaces the outdated check.
func (p *Provider) SetOutdatedFunc(fn OutdatedFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.outdated = fn
}

// SetSettings swaps the settings used by the next refresh.
func (p *Provider) SetSettings(s *config.Settings) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.settings = s
}

// Settings returns the current settings.
func (p *Provider) Settings() *config.Settings {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.settings
}

// Root returns the workspace root.
func (p *Provider) Root() string { return p.root }

// Manifest returns the path of the manifest from the last refresh, or "".
func (p *Provider) Manifest() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.manifestPath
}

// Dir returns the directory commands run in: the manifest's directory when
// one was found, else root joined with the configured relative path.
func (p *Provider) Dir() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.manifestPath != "" {
		return filepath.Dir(p.manifestPath)
	}
	return filepath.Join(p.root, p.settings.RelativePath)
}

// Builder returns a command builder for the current manifest directory.
func (p *Provider) Builder() npm.Builder {
	return npm.NewBuilder(p.Settings(), p.Dir())
}

// Subscribe registers for Changed events.
func (p *Provider) Subscribe(fn func(Changed)) func() {
	return p.bus.Subscribe(fn)
}

// Refresh rebuilds the tree. Manifest and outdated failures degrade to empty.
func (p *Provider) Refresh(ctx context.Context) error {
	s := p.Settings()
	p.mu.RLock()
	outdatedFn := p.outdated
	p.mu.RUnlock()

	path, err := manifest.Locate(p.root, s.RelativePath)
	if err != nil {
		if !errors.Is(err, manifest.ErrNotFound) {
			log.Debug("tree: locating manifest: %v", err)
		}
		p.store("", nil, nil, nil)
		return nil
	}
	dir := filepath.Dir(path)

	var (
		m        *manifest.Manifest
		outdated []npm.OutdatedEntry
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var rerr error
		m, rerr = manifest.Read(path)
		if rerr != nil {
			log.Debug("tree: %v", rerr)
			m = nil
		}
		return nil
	})
	g.Go(func() error {
		octx := gctx
		if s.OutdatedTimeout > 0 {
			var cancel context.CancelFunc
			octx, cancel = context.WithTimeout(gctx, s.OutdatedTimeout)
			defer cancel()
		}
		outdated = outdatedFn(octx, npm.NewBuilder(s, dir))
		return nil
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("refreshing tree: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if m == nil {
		p.store(path, nil, nil, nil)
		return nil
	}
	tasks, deps, devDeps := Join(m, outdated, func(name string) npm.Installed {
		return npm.InstalledPackage(dir, name)
	})
	p.store(path, tasks, deps, devDeps)
	return nil
}

func (p *Provider) store(path string, tasks []Task, deps, devDeps []Dependency) {
	p.mu.Lock()
	p.manifestPath = path
	p.tasks = tasks
	p.deps = deps
	p.devDeps = devDeps
	empty := len(tasks)+len(deps)+len(devDeps) == 0
	p.mu.Unlock()

	p.bus.Publish(Changed{Manifest: path, Empty: empty})
}

// Join derives tasks and dependencies from a manifest and an outdated check.
// A dependency is outdated when the check lists it and its declared range
// does not already contain the wanted version.
func Join(m *manifest.Manifest, outdated []npm.OutdatedEntry, installed func(name string) npm.Installed) ([]Task, []Dependency, []Dependency) {
	tasks := make([]Task, 0, len(m.Scripts))
	for _, e := range m.Scripts {
		tasks = append(tasks, Task{Name: e.Name, Script: e.Value})
	}
	build := func(entries []manifest.Entry, dev bool) []Dependency {
		out := make([]Dependency, 0, len(entries))
		for _, e := range entries {
			d := Dependency{Name: e.Name, Version: e.Value, Dev: dev}
			if o, ok := npm.Find(outdated, e.Name); ok && !strings.Contains(e.Value, o.Wanted) {
				d.Outdated = true
				d.WantedVersion = o.Wanted
			}
			if installed != nil {
				inst := installed(e.Name)
				d.Installed = inst.Present
				d.InstalledVersion = inst.Version
			}
			out = append(out, d)
		}
		return out
	}
	return tasks, build(m.Dependencies, false), build(m.DevDependencies, true)
}

// Empty reports whether the last refresh produced no items.
func (p *Provider) Empty() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.tasks)+len(p.deps)+len(p.devDeps) == 0
}

// Sections returns the non-empty sections in display order.
func (p *Provider) Sections() []Section {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var out []Section
	if len(p.tasks) > 0 {
		out = append(out, Section{Kind: KindTasks, Tasks: append([]Task(nil), p.tasks...)})
	}
	if len(p.deps) > 0 {
		out = append(out, Section{Kind: KindDependencies, Dependencies: append([]Dependency(nil), p.deps...)})
	}
	if len(p.devDeps) > 0 {
		out = append(out, Section{Kind: KindDevDependencies, Dependencies: append([]Dependency(nil), p.devDeps...)})
	}
	return out
}

// Task looks up a script by exact name.
func (p *Provider) Task(name string) (Task, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, t := range p.tasks {
		if t.Name == name {
			return t, true
		}
	}
	return Task{}, false
}

// Dependency looks up a dependency by name. A nil section searches
// dependencies first, then devDependencies.
func (p *Provider) Dependency(name string, section *manifest.Section) (Dependency, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var lists [][]Dependency
	switch {
	case section == nil:
		lists = [][]Dependency{p.deps, p.devDeps}
	case *section == manifest.SectionDevDependencies:
		lists = [][]Dependency{p.devDeps}
	default:
		lists = [][]Dependency{p.deps}
	}
	for _, list := range lists {
		for _, d := range list {
			if d.Name == name {
				return d, true
			}
		}
	}
	return Dependency{}, false
}
