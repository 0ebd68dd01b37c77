// ABOUTME: Per-invocation wiring: settings, tree provider, npm runner, handlers, registry client and metrics
// ABOUTME: Also builds the panel server and the file watcher that refreshes on manifest or settings saves

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/mariosdrth/npm-explorer/internal/commands"
	"github.com/mariosdrth/npm-explorer/internal/config"
	"github.com/mariosdrth/npm-explorer/internal/gutter"
	"github.com/mariosdrth/npm-explorer/internal/keybindings"
	"github.com/mariosdrth/npm-explorer/internal/log"
	"github.com/mariosdrth/npm-explorer/internal/npm"
	"github.com/mariosdrth/npm-explorer/internal/panel"
	"github.com/mariosdrth/npm-explorer/internal/registry"
	"github.com/mariosdrth/npm-explorer/internal/tree"
)

type env struct {
	root     string
	flags    *pflag.FlagSet
	out      io.Writer
	settings *config.Settings
	tree     *tree.Provider
	runner   *npm.Runner
	handlers *commands.Handlers
	metrics  *prometheus.Registry
	registry *registry.Client
	gutter   *gutter.Decorator
	keys     *keybindings.Manager
}

// newEnv loads settings for the workspace and wires the components. The
// tree is not refreshed yet.
func newEnv(cmd *cobra.Command, opts *rootOptions) (*env, error) {
	root := opts.root
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("getting working directory: %w", err)
		}
		root = wd
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving workspace root: %w", err)
	}

	s, err := config.Load(root, cmd.Flags())
	if err != nil {
		return nil, fmt.Errorf("loading settings: %w", err)
	}
	if opts.verbose {
		log.SetLevel(log.LevelDebug)
	} else {
		log.SetLevel(log.ParseLevel(s.LogLevel))
	}

	out := cmd.OutOrStdout()
	metrics := prometheus.NewRegistry()
	p := tree.New(s)
	runner := npm.NewRunner(s.RunMode, out)
	opener := commands.OpenerFunc(func(sel commands.Selection) error {
		_, err := fmt.Fprintln(out, sel.String())
		return err
	})
	return &env{
		root:     root,
		flags:    cmd.Flags(),
		out:      out,
		settings: s,
		tree:     p,
		runner:   runner,
		handlers: commands.New(p, runner, opener),
		metrics:  metrics,
		registry: registry.New(s.Registry, registry.WithMetrics(registry.NewMetrics(metrics))),
		gutter:   gutter.New(p),
		keys:     keyManager(root),
	}, nil
}

// loadTree refreshes the provider once.
func (e *env) loadTree(ctx context.Context) error {
	if err := e.tree.Refresh(ctx); err != nil {
		return fmt.Errorf("reading tree: %w", err)
	}
	return nil
}

// panelServer creates the registry panel server over the shared metrics
// registry.
func (e *env) panelServer() *panel.Server {
	r := panel.NewRenderer()
	r.SideDistance = e.settings.Panel.PageSideDistance
	return panel.NewServer(e.settings.Panel.Addr, panel.Options{
		Registry:     e.registry,
		Dependencies: e.tree,
		Install:      panel.HandlersInstaller(e.handlers),
		Renderer:     r,
		SearchSize:   e.settings.Panel.SearchSize,
	}, e.metrics)
}

// watch refreshes the tree when the manifest is saved and reloads settings
// or key bindings when their files change. The returned function stops watching.
func (e *env) watch(ctx context.Context) (func(), error) {
	var paths []string
	for _, dir := range []string{config.GlobalDir(), config.ProjectDir(e.root)} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			continue
		}
		for _, name := range []string{"settings.json", "settings.yaml", "settings.yml"} {
			paths = append(paths, filepath.Join(dir, name))
		}
	}
	globalKeys, projectKeys := config.GlobalKeybindingsFile(), config.ProjectKeybindingsFile(e.root)
	for _, p := range []string{globalKeys, projectKeys} {
		if info, err := os.Stat(filepath.Dir(p)); err == nil && info.IsDir() {
			paths = append(paths, p)
		}
	}
	if m := e.tree.Manifest(); m != "" {
		paths = append(paths, m)
	}

	w, err := config.NewWatcher(paths, func(path string) {
		if path == globalKeys || path == projectKeys {
			e.keys.Reload(globalKeys, projectKeys)
			log.Info("key bindings reloaded from %s", path)
			return
		}
		if path != e.tree.Manifest() {
			s, err := config.Load(e.root, e.flags)
			if err != nil {
				log.Warn("settings reload: %v", err)
				return
			}
			log.Info("settings reloaded from %s", path)
			e.tree.SetSettings(s)
		}
		if err := e.tree.Refresh(ctx); err != nil {
			log.Warn("refresh after %s changed: %v", path, err)
		}
	})
	if err != nil {
		return nil, err
	}
	w.Start()
	unsubscribe := e.tree.Subscribe(func(c tree.Changed) {
		if c.Manifest == "" {
			return
		}
		if err := w.Add(c.Manifest); err != nil {
			log.Debug("watching %s: %v", c.Manifest, err)
		}
	})
	return func() {
		unsubscribe()
		w.Stop()
	}, nil
}
