// ABOUTME: Builds npm command lines for install, update, uninstall, run and outdated
// ABOUTME: Configured extra arguments win; dev entries default to --save-dev when none are set

package npm

import (
	"context"
	"os/exec"
	"strings"

	"github.com/mariosdrth/npm-explorer/internal/config"
)

// Verb is an npm subcommand.
type Verb string

const (
	VerbInstall   Verb = "install"
	VerbUpdate    Verb = "update"
	VerbUninstall Verb = "uninstall"
	VerbRun       Verb = "run"
	VerbOutdated  Verb = "outdated"
)

// SaveDev is appended for dev dependencies when no arguments are configured.
const SaveDev = "--save-dev"

// Command is a fully resolved npm invocation.
type Command struct {
	Path string   // npm binary
	Args []string // arguments after the binary
	Dir  string   // working directory; "" means the current one
}

// String renders the command the way a user would type it.
func (c Command) String() string {
	parts := make([]string, 0, len(c.Args)+1)
	parts = append(parts, "npm")
	parts = append(parts, c.Args...)
	return strings.Join(parts, " ")
}

// Exec returns an exec.Cmd bound to ctx.
func (c Command) Exec(ctx context.Context) *exec.Cmd {
	cmd := exec.CommandContext(ctx, c.Path, c.Args...)
	cmd.Dir = c.Dir
	return cmd
}

// Builder creates commands from settings.
type Builder struct {
	NpmPath   string
	Dir       string
	Arguments config.CommandArguments
}

// NewBuilder returns a builder for the manifest directory dir.
func NewBuilder(s *config.Settings, dir string) Builder {
	return Builder{NpmPath: s.NpmPath, Dir: dir, Arguments: s.CommandArguments}
}

// Package builds `npm <verb> [args] <name[@version]>` for a single package.
func (b Builder) Package(verb Verb, name, version string, dev bool) Command {
	target := name
	if version != "" {
		target = name + "@" + version
	}
	return b.build(verb, dev, target)
}

// All builds `npm <verb> [args]` with no package names (update-all, install-all).
func (b Builder) All(verb Verb) Command {
	return b.build(verb, false)
}

// Script builds `npm run <name>`.
func (b Builder) Script(name string) Command {
	return b.command(string(VerbRun), name)
}

// Outdated builds `npm --prefix <dir> outdated --json`.
func (b Builder) Outdated() Command {
	args := []string{}
	if b.Dir != "" {
		args = append(args, "--prefix", b.Dir)
	}
	args = append(args, string(VerbOutdated), "--json")
	return b.command(args...)
}

func (b Builder) build(verb Verb, dev bool, targets ...string) Command {
	args := []string{string(verb)}
	extra := strings.Fields(b.configured(verb, dev))
	if len(extra) == 0 && dev {
		extra = []string{SaveDev}
	}
	args = append(args, extra...)
	args = append(args, targets...)
	return b.command(args...)
}

func (b Builder) configured(verb Verb, dev bool) string {
	a := b.Arguments
	switch verb {
	case VerbInstall:
		if dev {
			return a.InstallDev
		}
		return a.Install
	case VerbUpdate:
		if dev {
			return a.UpdateDev
		}
		return a.Update
	case VerbUninstall:
		if dev {
			return a.UninstallDev
		}
		return a.Uninstall
	}
	return ""
}

func (b Builder) command(args ...string) Command {
	path := b.NpmPath
	if path == "" {
		path = "npm"
	}
	return Command{Path: path, Args: args, Dir: b.Dir}
}
