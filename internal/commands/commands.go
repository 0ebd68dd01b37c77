// ABOUTME: Command handlers for tree items: run, edit, delete, install, update, uninstall
// ABOUTME: npm commands run through the runner; the tree refreshes when a task finishes

package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/mariosdrth/npm-explorer/internal/config"
	"github.com/mariosdrth/npm-explorer/internal/log"
	"github.com/mariosdrth/npm-explorer/internal/manifest"
	"github.com/mariosdrth/npm-explorer/internal/npm"
	"github.com/mariosdrth/npm-explorer/internal/tree"
)

// Selection is a range of the manifest to reveal in an editor.
type Selection struct {
	Path  string
	Start manifest.Position
	End   manifest.Position
}

// String formats the selection as path:line:col-line:col, 1-based, with
// columns in code points.
func (s Selection) String() string {
	return fmt.Sprintf("%s:%d:%d-%d:%d", s.Path, s.Start.Line+1, s.Start.Column+1, s.End.Line+1, s.End.Column+1)
}

// Opener reveals a selection to the user.
type Opener interface {
	Open(sel Selection) error
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(sel Selection) error

// Open calls f(sel).
func (f OpenerFunc) Open(sel Selection) error { return f(sel) }

// Job is a started npm task plus the tree refresh that follows it.
type Job struct {
	Task    *npm.Task
	settled chan struct{}
}

// Settled is closed once the task has exited and any follow-up refresh is done.
func (j *Job) Settled() <-chan struct{} { return j.settled }

// Wait blocks until Settled or ctx is done and returns the task's exit error.
func (j *Job) Wait(ctx context.Context) error {
	select {
	case <-j.settled:
		return j.Task.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Handlers implements every tree and palette command.
type Handlers struct {
	Tree   *tree.Provider
	Runner *npm.Runner
	Opener Opener
}

// New wires handlers together.
func New(p *tree.Provider, r *npm.Runner, o Opener) *Handlers {
	return &Handlers{Tree: p, Runner: r, Opener: o}
}

// RunTask runs `npm run <name>`. Unknown scripts are a no-op.
func (h *Handlers) RunTask(ctx context.Context, name string) (*Job, error) {
	m, err := h.readManifest()
	if err != nil {
		return nil, ignoreNotFound(err)
	}
	if _, ok := m.Lookup(manifest.SectionScripts, name); !ok {
		log.Debug("commands: %v: %q", npm.ErrNoScript, name)
		return nil, nil
	}
	return h.start(ctx, h.Tree.Builder().Script(name), false)
}

// EditTask reveals the script's command string.
func (h *Handlers) EditTask(ctx context.Context, name string) error {
	return h.edit(manifest.SectionScripts, name)
}

// EditDependency reveals the dependency's declared version.
func (h *Handlers) EditDependency(ctx context.Context, dep tree.Dependency) error {
	return h.edit(dep.Section(), dep.Name)
}

func (h *Handlers) edit(section manifest.Section, name string) error {
	path := h.Tree.Manifest()
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading manifest: %w", err)
	}
	span, ok := manifest.ValueSpan(data, section, name)
	if !ok {
		log.Debug("commands: %s.%s not found in %s", section, name, path)
		return nil
	}
	sel := Selection{
		Path:  path,
		Start: manifest.PositionAt(data, span.Start),
		End:   manifest.PositionAt(data, span.End),
	}
	if h.Opener == nil {
		return nil
	}
	return h.Opener.Open(sel)
}

// DeleteTask removes a script from the manifest.
func (h *Handlers) DeleteTask(ctx context.Context, name string) error {
	return h.remove(ctx, manifest.SectionScripts, name)
}

// DeleteDependency removes a dependency entry from the manifest without
// running npm.
func (h *Handlers) DeleteDependency(ctx context.Context, dep tree.Dependency) error {
	return h.remove(ctx, dep.Section(), dep.Name)
}

func (h *Handlers) remove(ctx context.Context, section manifest.Section, name string) error {
	path := h.Tree.Manifest()
	if path == "" {
		return nil
	}
	if err := manifest.RemoveEntry(path, section, name); err != nil {
		return fmt.Errorf("deleting %s: %w", name, err)
	}
	return h.Tree.Refresh(ctx)
}

// UpdateDependency runs npm update for one dependency.
func (h *Handlers) UpdateDependency(ctx context.Context, dep tree.Dependency) (*Job, error) {
	return h.start(ctx, h.Tree.Builder().Package(npm.VerbUpdate, dep.Name, "", dep.Dev), true)
}

// UninstallDependency runs npm uninstall for one dependency.
func (h *Handlers) UninstallDependency(ctx context.Context, dep tree.Dependency) (*Job, error) {
	return h.start(ctx, h.Tree.Builder().Package(npm.VerbUninstall, dep.Name, "", dep.Dev), true)
}

// InstallDependency installs name, optionally at version, optionally as a
// dev dependency.
func (h *Handlers) InstallDependency(ctx context.Context, name, version string, asDev bool) (*Job, error) {
	return h.start(ctx, h.Tree.Builder().Package(npm.VerbInstall, name, version, asDev), true)
}

// UpdateAll runs npm update with no package names.
func (h *Handlers) UpdateAll(ctx context.Context) (*Job, error) {
	return h.start(ctx, h.Tree.Builder().All(npm.VerbUpdate), true)
}

// InstallAll runs npm install with no package names.
func (h *Handlers) InstallAll(ctx context.Context) (*Job, error) {
	return h.start(ctx, h.Tree.Builder().All(npm.VerbInstall), true)
}

// CheckOutdated runs a human-readable npm outdated. It never refreshes.
func (h *Handlers) CheckOutdated(ctx context.Context) (*Job, error) {
	return h.start(ctx, h.Tree.Builder().All(npm.VerbOutdated), false)
}

// Paths lists every manifest directory of the workspace.
func (h *Handlers) Paths() ([]string, error) {
	return manifest.Discover(h.Tree.Root())
}

// SelectPath makes choice the manifest directory, persists it in the
// project settings and refreshes.
func (h *Handlers) SelectPath(ctx context.Context, choice string) error {
	paths, err := h.Paths()
	if err != nil {
		return fmt.Errorf("listing manifests: %w", err)
	}
	if !slices.Contains(paths, choice) {
		return fmt.Errorf("no %s in %q", manifest.FileName, choice)
	}
	if err := config.SaveProjectValue(h.Tree.Root(), "relativePath", choice); err != nil {
		return fmt.Errorf("saving relativePath: %w", err)
	}
	s := *h.Tree.Settings()
	s.RelativePath = choice
	h.Tree.SetSettings(&s)
	return h.Tree.Refresh(ctx)
}

func (h *Handlers) start(ctx context.Context, cmd npm.Command, refresh bool) (*Job, error) {
	task, err := h.Runner.Start(ctx, cmd)
	if err != nil {
		return nil, err
	}
	job := &Job{Task: task, settled: make(chan struct{})}
	go func() {
		defer close(job.settled)
		<-task.Done()
		if !refresh {
			return
		}
		if err := h.Tree.Refresh(context.WithoutCancel(ctx)); err != nil {
			log.Warn("refresh after %q: %v", task.Name(), err)
		}
	}()
	return job, nil
}

func (h *Handlers) readManifest() (*manifest.Manifest, error) {
	path := h.Tree.Manifest()
	if path == "" {
		return nil, manifest.ErrNotFound
	}
	return manifest.Read(path)
}

func ignoreNotFound(err error) error {
	if errors.Is(err, manifest.ErrNotFound) {
		return nil
	}
	return err
}
