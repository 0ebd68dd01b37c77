// ABOUTME: One registry panel: applies page events to its State and repaints over a message bus
// ABOUTME: Fetches are generation-checked so stale or post-dispose completions never repaint

package panel

import (
	"context"
	"strings"
	"sync"

	"github.com/mariosdrth/npm-explorer/internal/commands"
	"github.com/mariosdrth/npm-explorer/internal/eventbus"
	"github.com/mariosdrth/npm-explorer/internal/log"
	"github.com/mariosdrth/npm-explorer/internal/manifest"
	"github.com/mariosdrth/npm-explorer/internal/registry"
	"github.com/mariosdrth/npm-explorer/internal/tree"
)

// Registry is the part of the registry client a panel uses.
type Registry interface {
	Search(ctx context.Context, text string, from, size int, sort registry.SortType) (*registry.SearchResponse, error)
	Package(ctx context.Context, name string) (*registry.PackageDetail, error)
	Downloads(ctx context.Context, name string) ([]registry.DailyDownloads, error)
	Readme(ctx context.Context, d *registry.PackageDetail) string
}

// Dependencies reports the manifest's declared dependencies.
type Dependencies interface {
	Dependency(name string, section *manifest.Section) (tree.Dependency, bool)
}

// InstallFunc starts an install and returns a channel closed once the
// install and the tree refresh after it have finished.
type InstallFunc func(ctx context.Context, name, version string, asDev bool) (<-chan struct{}, error)

// HandlersInstaller installs through the command handlers.
func HandlersInstaller(h *commands.Handlers) InstallFunc {
	return func(ctx context.Context, name, version string, asDev bool) (<-chan struct{}, error) {
		job, err := h.InstallDependency(ctx, name, version, asDev)
		if err != nil {
			return nil, err
		}
		return job.Settled(), nil
	}
}

// Options are the collaborators shared by every panel.
type Options struct {
	Registry     Registry
	Dependencies Dependencies
	Install      InstallFunc
	Renderer     *Renderer
	SearchSize   int
}

// Panel is one open registry view.
type Panel struct {
	ID string

	opts Options
	bus  *eventbus.Bus[Message]

	mu       sync.Mutex
	state    State
	fragment string
	graph    *Message
	gen      int
}

// New creates a panel showing target, or searching for search when target
// is nil. Call Refresh to load its content.
func New(id string, opts Options, target *Target, search string) *Panel {
	if opts.Renderer == nil {
		opts.Renderer = NewRenderer()
	}
	p := &Panel{
		ID:    id,
		opts:  opts,
		bus:   eventbus.New[Message](),
		state: NewState(opts.SearchSize),
	}
	if target != nil {
		p.state.Select(*target)
	} else {
		p.state.Search(search)
	}
	p.fragment = opts.Renderer.Loading()
	return p
}

// State returns a copy of the panel state.
func (p *Panel) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	st := p.state
	if st.Dependency != nil {
		t := *st.Dependency
		st.Dependency = &t
	}
	return st
}

// Fragment returns the last rendered content.
func (p *Panel) Fragment() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fragment
}

// Snapshot returns what a newly connected page needs to catch up: the
// current content and, for a package, its chart.
func (p *Panel) Snapshot() (string, *Message) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fragment, p.graph
}

// Subscribe delivers every message posted to the page.
func (p *Panel) Subscribe(fn func(Message)) func() {
	return p.bus.Subscribe(fn)
}

// Dispose marks the panel closed. Pending fetches and installs finish
// without repainting.
func (p *Panel) Dispose() {
	p.mu.Lock()
	p.state.Disposed = true
	p.mu.Unlock()
}

// Disposed reports whether Dispose was called.
func (p *Panel) Disposed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state.Disposed
}

// HandleEvent applies ev and refreshes when the state changed. Installs
// return immediately and repaint once the install has settled.
func (p *Panel) HandleEvent(ctx context.Context, ev Event) {
	if p.Disposed() {
		return
	}
	switch ev.Command {
	case EventSearch:
		p.update(ctx, func(s *State) bool { return s.Search(ev.SearchText) })
	case EventKeywordClicked:
		p.update(ctx, func(s *State) bool { return s.SearchKeyword(ev.Keyword) })
	case EventPageClicked:
		p.update(ctx, func(s *State) bool { return s.GoToPage(ev.Page) })
	case EventNextPageClicked:
		p.update(ctx, (*State).NextPage)
	case EventPreviousPageClicked:
		p.update(ctx, (*State).PreviousPage)
	case EventSortPackagesOptimal, EventSortPackagesPopularity, EventSortPackagesQuality, EventSortPackagesMaintenance:
		sort := sortEvents[ev.Command]
		p.update(ctx, func(s *State) bool { return s.SortBy(sort) })
	case EventSearchResultSelected:
		p.selectPackage(ctx, ev.PackageName)
	case EventInstallVersion:
		p.installVersion(ctx, ev.Version)
	case EventInstallVersionForNewPackage:
		p.installNewPackage(ctx, ev.Version, ev.IsDev)
	default:
		log.Debug("panel %s: unknown command %q", p.ID, ev.Command)
	}
}

func (p *Panel) update(ctx context.Context, fn func(*State) bool) {
	p.mu.Lock()
	changed := fn(&p.state)
	p.mu.Unlock()
	if changed {
		p.Refresh(ctx)
	}
}

// Refresh shows the loading placeholder, fetches and renders the current
// view and, for a package, posts its weekly download chart.
func (p *Panel) Refresh(ctx context.Context) {
	p.mu.Lock()
	if p.state.Disposed {
		p.mu.Unlock()
		return
	}
	p.gen++
	gen := p.gen
	st := p.state
	p.graph = nil
	p.mu.Unlock()

	p.paint(gen, p.opts.Renderer.Loading())

	switch {
	case st.SearchText != "":
		p.refreshSearch(ctx, gen, st)
	case st.Dependency != nil:
		p.refreshPackage(ctx, gen, *st.Dependency)
	}
}

func (p *Panel) refreshSearch(ctx context.Context, gen int, st State) {
	res, err := p.opts.Registry.Search(ctx, st.SearchText, st.SearchResultsFrom, st.SearchSize, st.SearchType)
	if err != nil {
		p.paint(gen, p.opts.Renderer.Error(err))
		return
	}
	if !p.current(gen, func(s *State) { s.Total = res.Total }) {
		return
	}
	html, err := p.opts.Renderer.Search(st, res)
	if err != nil {
		log.Error("panel %s: %v", p.ID, err)
		return
	}
	p.paint(gen, html)
}

func (p *Panel) refreshPackage(ctx context.Context, gen int, target Target) {
	d, err := p.opts.Registry.Package(ctx, target.Name)
	if err != nil {
		p.paint(gen, p.opts.Renderer.Error(err))
		return
	}
	readme := p.opts.Registry.Readme(ctx, d)
	var dep *tree.Dependency
	if target.Installed && p.opts.Dependencies != nil {
		section := sectionOf(target.Dev)
		if found, ok := p.opts.Dependencies.Dependency(target.Name, &section); ok {
			dep = &found
		}
	}
	html, err := p.opts.Renderer.Package(target, d, readme, dep)
	if err != nil {
		log.Error("panel %s: %v", p.ID, err)
		return
	}
	if !p.paint(gen, html) {
		return
	}

	days, err := p.opts.Registry.Downloads(ctx, target.Name)
	if err != nil {
		log.Debug("panel %s: downloads for %s: %v", p.ID, target.Name, err)
		return
	}
	graph := graphMessage(registry.WeeklyBuckets(days))
	if p.current(gen, func(*State) { p.graph = &graph }) {
		p.bus.Publish(graph)
	}
}

// current runs fn under the lock when gen is still the latest refresh of a
// live panel.
func (p *Panel) current(gen int, fn func(*State)) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state.Disposed || p.gen != gen {
		return false
	}
	if fn != nil {
		fn(&p.state)
	}
	return true
}

func (p *Panel) paint(gen int, html string) bool {
	if !p.current(gen, func(*State) { p.fragment = html }) {
		return false
	}
	p.bus.Publish(htmlMessage(html))
	return true
}

// selectPackage moves the panel to name, declared state taken from the
// manifest.
func (p *Panel) selectPackage(ctx context.Context, name string) {
	name = strings.TrimSpace(name)
	if name == "" {
		return
	}
	p.bus.Publish(loadingMessage(true))
	target := p.lookup(name, nil)
	p.mu.Lock()
	p.state.Select(target)
	p.mu.Unlock()
	p.Refresh(ctx)
	p.bus.Publish(loadingMessage(false))
}

func (p *Panel) lookup(name string, section *manifest.Section) Target {
	if p.opts.Dependencies != nil {
		if d, ok := p.opts.Dependencies.Dependency(name, section); ok {
			return Target{Name: d.Name, Installed: true, Version: d.Version, Dev: d.Dev}
		}
	}
	return Target{Name: name}
}

// installVersion installs another version of the inspected, declared
// package and updates the installed-version line once settled.
func (p *Panel) installVersion(ctx context.Context, version string) {
	st := p.State()
	if st.Dependency == nil || !st.Dependency.Installed || p.opts.Install == nil {
		log.Debug("panel %s: installVersion without a declared package", p.ID)
		return
	}
	target := *st.Dependency
	p.bus.Publish(loadingMessage(true))
	// npm must finish even if the page that asked for it goes away.
	settled, err := p.opts.Install(context.WithoutCancel(ctx), target.Name, cleanVersion(version), target.Dev)
	if err != nil {
		log.Warn("panel %s: install %s: %v", p.ID, target.Name, err)
		p.bus.Publish(loadingMessage(false))
		return
	}
	go func() {
		<-settled
		if p.Disposed() {
			return
		}
		section := sectionOf(target.Dev)
		next := p.lookup(target.Name, &section)
		if !next.Installed {
			next = target
		}
		p.mu.Lock()
		if p.state.Dependency != nil && p.state.Dependency.Name == target.Name {
			p.state.Dependency = &next
		}
		p.mu.Unlock()
		p.bus.Publish(Message{Command: MessageUpdateVersion, NewVersion: next.Version, IsDev: next.Dev})
		p.bus.Publish(loadingMessage(false))
	}()
}

// installNewPackage adds the inspected package to the manifest and
// re-renders it once settled.
func (p *Panel) installNewPackage(ctx context.Context, version string, dev bool) {
	st := p.State()
	if st.Dependency == nil || st.Dependency.Name == "" || p.opts.Install == nil {
		log.Debug("panel %s: installVersionForNewPackage without a package", p.ID)
		return
	}
	requested := *st.Dependency
	p.mu.Lock()
	p.gen++ // drop any fetch still in flight
	p.mu.Unlock()
	p.bus.Publish(htmlMessage(p.opts.Renderer.Loading()))

	settled, err := p.opts.Install(context.WithoutCancel(ctx), requested.Name, cleanVersion(version), dev)
	if err != nil {
		log.Warn("panel %s: install %s: %v", p.ID, requested.Name, err)
		p.Refresh(ctx)
		return
	}
	go func() {
		<-settled
		if p.Disposed() {
			return
		}
		next := p.lookup(requested.Name, nil)
		if !next.Installed {
			next = requested
		}
		p.mu.Lock()
		still := p.state.Dependency != nil && p.state.Dependency.Name == requested.Name
		if still {
			p.state.Select(next)
		}
		p.mu.Unlock()
		if still {
			p.Refresh(context.WithoutCancel(ctx))
		}
	}()
}

// cleanVersion strips the label suffix older pages send with the value.
func cleanVersion(v string) string {
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(v), "(latest)"))
}

func sectionOf(dev bool) manifest.Section {
	if dev {
		return manifest.SectionDevDependencies
	}
	return manifest.SectionDependencies
}
