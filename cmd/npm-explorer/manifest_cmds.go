// ABOUTME: Subcommands acting on the workspace manifest: tree, run, edit, delete, install, update, uninstall
// ABOUTME: Also the whole-project npm commands, select-path, gutter and config

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mariosdrth/npm-explorer/internal/commands"
	"github.com/mariosdrth/npm-explorer/internal/gutter"
	"github.com/mariosdrth/npm-explorer/internal/manifest"
	"github.com/mariosdrth/npm-explorer/internal/tree"
)

// loadedEnv builds the env and refreshes the tree.
func loadedEnv(cmd *cobra.Command, opts *rootOptions) (*env, error) {
	e, err := newEnv(cmd, opts)
	if err != nil {
		return nil, err
	}
	if err := e.loadTree(cmd.Context()); err != nil {
		return nil, err
	}
	return e, nil
}

// dependency finds name in the tree; dev restricts the search to
// devDependencies.
func (e *env) dependency(name string, dev bool) (tree.Dependency, error) {
	var section *manifest.Section
	if dev {
		s := manifest.SectionDevDependencies
		section = &s
	}
	d, ok := e.tree.Dependency(name, section)
	if !ok {
		return tree.Dependency{}, fmt.Errorf("%s is not declared in %s", name, manifestName(e.tree))
	}
	return d, nil
}

func manifestName(p *tree.Provider) string {
	if m := p.Manifest(); m != "" {
		return m
	}
	return manifest.FileName
}

func newTreeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tree",
		Short: "Print tasks, dependencies and dev dependencies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTree(cmd, opts)
		},
	}
}

func newRunCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run <script>",
		Short: "Run a manifest script",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadedEnv(cmd, opts)
			if err != nil {
				return err
			}
			if _, ok := e.tree.Task(args[0]); !ok {
				return fmt.Errorf("no script %q in %s", args[0], manifestName(e.tree))
			}
			job, err := e.handlers.RunTask(cmd.Context(), args[0])
			return finish(cmd.Context(), e.out, e.settings.RunMode, job, err)
		},
	}
}

func newEditCmd(opts *rootOptions) *cobra.Command {
	var task, dev bool
	cmd := &cobra.Command{
		Use:   "edit <name>",
		Short: "Print the location of a dependency version or script command",
		Long: `Print the manifest range holding a dependency's declared version, or a
script's command with --task, as path:line:column-line:column.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadedEnv(cmd, opts)
			if err != nil {
				return err
			}
			if task {
				if _, ok := e.tree.Task(args[0]); !ok {
					return fmt.Errorf("no script %q in %s", args[0], manifestName(e.tree))
				}
				return e.handlers.EditTask(cmd.Context(), args[0])
			}
			d, err := e.dependency(args[0], dev)
			if err != nil {
				return err
			}
			return e.handlers.EditDependency(cmd.Context(), d)
		},
	}
	cmd.Flags().BoolVar(&task, "task", false, "Name is a script")
	cmd.Flags().BoolVar(&dev, "dev", false, "Look only in devDependencies")
	return cmd
}

func newDeleteCmd(opts *rootOptions) *cobra.Command {
	var task, dev bool
	cmd := &cobra.Command{
		Use:   "delete <name>",
		Short: "Remove a dependency or script from the manifest without running npm",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadedEnv(cmd, opts)
			if err != nil {
				return err
			}
			if task {
				if _, ok := e.tree.Task(args[0]); !ok {
					return fmt.Errorf("no script %q in %s", args[0], manifestName(e.tree))
				}
				if err := e.handlers.DeleteTask(cmd.Context(), args[0]); err != nil {
					return err
				}
			} else {
				d, err := e.dependency(args[0], dev)
				if err != nil {
					return err
				}
				if err := e.handlers.DeleteDependency(cmd.Context(), d); err != nil {
					return err
				}
			}
			fmt.Fprintf(e.out, "Removed %s.\n", args[0])
			return nil
		},
	}
	cmd.Flags().BoolVar(&task, "task", false, "Name is a script")
	cmd.Flags().BoolVar(&dev, "dev", false, "Look only in devDependencies")
	return cmd
}

// newDependencyCmd builds a command that runs an npm job for one declared
// dependency.
func newDependencyCmd(opts *rootOptions, use, short string, start func(*commands.Handlers, context.Context, tree.Dependency) (*commands.Job, error)) *cobra.Command {
	var dev bool
	cmd := &cobra.Command{
		Use:   use + " <name>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadedEnv(cmd, opts)
			if err != nil {
				return err
			}
			d, err := e.dependency(args[0], dev)
			if err != nil {
				return err
			}
			job, err := start(e.handlers, cmd.Context(), d)
			return finish(cmd.Context(), e.out, e.settings.RunMode, job, err)
		},
	}
	cmd.Flags().BoolVar(&dev, "dev", false, "Look only in devDependencies")
	return cmd
}

func newUpdateCmd(opts *rootOptions) *cobra.Command {
	return newDependencyCmd(opts, "update", "Run npm update for a dependency", (*commands.Handlers).UpdateDependency)
}

func newUninstallCmd(opts *rootOptions) *cobra.Command {
	return newDependencyCmd(opts, "uninstall", "Run npm uninstall for a dependency", (*commands.Handlers).UninstallDependency)
}

func newInstallCmd(opts *rootOptions) *cobra.Command {
	var dev bool
	cmd := &cobra.Command{
		Use:   "install <name> [version]",
		Short: "Install a registry package, optionally at a version",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadedEnv(cmd, opts)
			if err != nil {
				return err
			}
			var version string
			if len(args) == 2 {
				version = args[1]
			}
			job, err := e.handlers.InstallDependency(cmd.Context(), args[0], version, dev)
			return finish(cmd.Context(), e.out, e.settings.RunMode, job, err)
		},
	}
	cmd.Flags().BoolVarP(&dev, "dev", "D", false, "Save as a dev dependency")
	return cmd
}

func newAllCmd(opts *rootOptions, use, short string, start func(*commands.Handlers, context.Context) (*commands.Job, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := loadedEnv(cmd, opts)
			if err != nil {
				return err
			}
			job, err := start(e.handlers, cmd.Context())
			return finish(cmd.Context(), e.out, e.settings.RunMode, job, err)
		},
	}
}

func newSelectPathCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "select-path [dir]",
		Short: "List manifests in the workspace or choose which one to use",
		Long: `Without an argument, list the directory of every package.json in the
workspace. With one, store it as relativePath in the project settings.
Use "." for the workspace root.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv(cmd, opts)
			if err != nil {
				return err
			}
			if len(args) == 0 {
				paths, err := e.handlers.Paths()
				if err != nil {
					return err
				}
				for _, p := range paths {
					mark := "  "
					if p == e.settings.RelativePath {
						mark = "* "
					}
					if p == "" {
						p = "."
					}
					fmt.Fprintln(e.out, mark+p)
				}
				return nil
			}
			choice := args[0]
			if choice == "." {
				choice = ""
			}
			if err := e.handlers.SelectPath(cmd.Context(), choice); err != nil {
				return err
			}
			fmt.Fprintf(e.out, "Using %s\n", e.tree.Manifest())
			return nil
		},
	}
}

func newGutterCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "gutter [file]",
		Short: "Print the manifest lines of outdated dependencies",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadedEnv(cmd, opts)
			if err != nil {
				return err
			}
			path := e.tree.Manifest()
			if len(args) == 1 {
				path = args[0]
			}
			if path == "" {
				return fmt.Errorf("no %s found", manifest.FileName)
			}
			text, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("reading %s: %w", path, err)
			}
			markers := e.gutter.Update(cmd.Context(), gutter.Document{Path: path, Text: text})
			for _, l := range gutter.Lines(text, markers) {
				if l.Marker == nil {
					continue
				}
				fmt.Fprintf(e.out, "%s:%d: %s %s wanted\n", path, l.Number, l.Marker.Name, l.Marker.Wanted)
			}
			return nil
		},
	}
}

func newConfigCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := newEnv(cmd, opts)
			if err != nil {
				return err
			}
			out, err := e.settings.Dump()
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(e.out, out)
			return err
		},
	}
}
