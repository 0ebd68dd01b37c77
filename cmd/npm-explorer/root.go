// ABOUTME: Root cobra command: persistent settings flags, TUI when stdout is a terminal, tree table otherwise
// ABOUTME: The TUI logs to a file and optionally runs the panel server alongside it

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/mariosdrth/npm-explorer/internal/commands"
	"github.com/mariosdrth/npm-explorer/internal/config"
	"github.com/mariosdrth/npm-explorer/internal/log"
	"github.com/mariosdrth/npm-explorer/internal/tui"
)

type rootOptions struct {
	root    string
	verbose bool
	serve   bool
	plain   bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "npm-explorer",
		Short: "Browse package.json scripts and dependencies and the npm registry",
		Long: `npm-explorer shows a project's package.json as a tree of tasks, dependencies
and dev dependencies, runs npm commands against it, marks outdated entries
and browses the npm registry.

Without a subcommand it starts the terminal UI when stdout is a terminal and
prints the tree otherwise.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.plain || !isTerminal(cmd.OutOrStdout()) {
				return runTree(cmd, opts)
			}
			return runUI(cmd, opts)
		},
	}
	cmd.SetVersionTemplate(fmt.Sprintf("npm-explorer %s (%s) built %s\n", version, commit, date))

	pf := cmd.PersistentFlags()
	pf.StringVarP(&opts.root, "root", "C", "", "Workspace root (default: current directory)")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "Debug logging")
	pf.String("relative-path", "", "Manifest directory relative to the workspace root")
	pf.String("npm-path", "", "Package manager binary")
	pf.String("run-mode", "", "How npm commands run: task or terminal")
	pf.Bool("no-gutter", false, "Do not mark outdated entries in the manifest")
	pf.String("log-level", "", "Log level: debug, info, warn or error")
	pf.String("panel-addr", "", "Listen address of the registry panel server")
	pf.String("registry", "", "Registry base URL")
	_ = cmd.RegisterFlagCompletionFunc("run-mode", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{config.RunModeTask, config.RunModeTerminal}, cobra.ShellCompDirectiveNoFileComp
	})

	cmd.Flags().BoolVar(&opts.serve, "serve", false, "Also run the registry panel server")
	cmd.Flags().BoolVar(&opts.plain, "plain", false, "Print the tree instead of starting the terminal UI")

	cmd.AddCommand(
		newTreeCmd(opts),
		newRunCmd(opts),
		newEditCmd(opts),
		newDeleteCmd(opts),
		newUpdateCmd(opts),
		newUninstallCmd(opts),
		newInstallCmd(opts),
		newAllCmd(opts, "update-all", "Run npm update for every dependency", (*commands.Handlers).UpdateAll),
		newAllCmd(opts, "install-all", "Run npm install", (*commands.Handlers).InstallAll),
		newAllCmd(opts, "check-outdated", "Run npm outdated", (*commands.Handlers).CheckOutdated),
		newSelectPathCmd(opts),
		newGutterCmd(opts),
		newConfigCmd(opts),
		newSearchCmd(opts),
		newShowCmd(opts),
		newServeCmd(opts),
		newKeysCmd(opts),
		newChangelogCmd(),
		newVersionCmd(),
		newUpgradeCmd(),
	)
	return cmd
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// runUI starts the terminal UI. Logs go to the log file and terminal-mode
// npm output is discarded so neither draws over the screen.
func runUI(cmd *cobra.Command, opts *rootOptions) error {
	e, err := newEnv(cmd, opts)
	if err != nil {
		return err
	}

	logPath := config.LogFile()
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return fmt.Errorf("creating log directory: %w", err)
	}
	closeLog, err := log.OpenFile(logPath)
	if err != nil {
		return err
	}
	defer closeLog()
	e.runner.Output = io.Discard

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	if err := e.loadTree(ctx); err != nil {
		return err
	}
	stop, err := e.watch(ctx)
	if err != nil {
		log.Warn("file watching disabled: %v", err)
	} else {
		defer stop()
	}

	deps := tui.AppDeps{
		Handlers: e.handlers,
		Commands: commands.NewRegistry(),
		Registry: e.registry,
		Gutter:   e.gutter,
		Keys:     e.keys,
		Version:  version,
	}

	g, gctx := errgroup.WithContext(ctx)
	if opts.serve {
		srv := e.panelServer()
		ln, err := srv.Listen()
		if err != nil {
			return err
		}
		deps.Panels = srv
		log.Info("panel server listening on %s", srv.URL())
		g.Go(func() error { return srv.Serve(gctx, ln) })
	}
	g.Go(func() error {
		defer cancel()
		return tui.Run(deps)
	})
	return g.Wait()
}

// runTree prints the tree once.
func runTree(cmd *cobra.Command, opts *rootOptions) error {
	e, err := newEnv(cmd, opts)
	if err != nil {
		return err
	}
	if err := e.loadTree(cmd.Context()); err != nil {
		return err
	}
	return printTree(e.out, e.tree)
}
