// ABOUTME: Command palette registry and dispatch for the terminal UI
// ABOUTME: Provides refresh, update-all, install-all, check-outdated, select-path, run and help

package commands

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Command is a palette entry.
type Command struct {
	Name        string
	Description string
	Execute     func(ctx context.Context, h *Handlers, args string) (string, error)
}

// Registry holds the palette commands.
type Registry struct {
	commands map[string]*Command
}

// NewRegistry creates a registry with all palette commands registered.
func NewRegistry() *Registry {
	r := &Registry{commands: make(map[string]*Command)}
	r.registerCoreCommands()
	return r
}

// Get returns a command by name.
func (r *Registry) Get(name string) (*Command, bool) {
	cmd, ok := r.commands[name]
	return cmd, ok
}

// List returns all commands sorted by name.
func (r *Registry) List() []*Command {
	result := make([]*Command, 0, len(r.commands))
	for _, cmd := range r.commands {
		result = append(result, cmd)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})
	return result
}

// Dispatch parses "name args", looks up the command and executes it.
func (r *Registry) Dispatch(ctx context.Context, h *Handlers, input string) (string, error) {
	input = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(input), ":"))
	if input == "" {
		return "", fmt.Errorf("empty command")
	}
	parts := strings.SplitN(input, " ", 2)
	name := parts[0]
	args := ""
	if len(parts) > 1 {
		args = strings.TrimSpace(parts[1])
	}

	cmd, ok := r.commands[name]
	if !ok {
		return "", fmt.Errorf("unknown command: %s", name)
	}
	return cmd.Execute(ctx, h, args)
}

func started(job *Job, err error) (string, error) {
	if err != nil {
		return "", err
	}
	if job == nil {
		return "Nothing to run.", nil
	}
	return "Started: " + job.Task.Name(), nil
}

func (r *Registry) registerCoreCommands() {
	core := []*Command{
		{
			Name:        "refresh",
			Description: "Re-read the manifest and re-run the outdated check",
			Execute: func(ctx context.Context, h *Handlers, _ string) (string, error) {
				if err := h.Tree.Refresh(ctx); err != nil {
					return "", err
				}
				return "Refreshed.", nil
			},
		},
		{
			Name:        "update-all",
			Description: "Run npm update for every dependency",
			Execute: func(ctx context.Context, h *Handlers, _ string) (string, error) {
				return started(h.UpdateAll(ctx))
			},
		},
		{
			Name:        "install-all",
			Description: "Run npm install",
			Execute: func(ctx context.Context, h *Handlers, _ string) (string, error) {
				return started(h.InstallAll(ctx))
			},
		},
		{
			Name:        "check-outdated",
			Description: "Run npm outdated",
			Execute: func(ctx context.Context, h *Handlers, _ string) (string, error) {
				return started(h.CheckOutdated(ctx))
			},
		},
		{
			Name:        "run",
			Description: "Run a manifest script",
			Execute: func(ctx context.Context, h *Handlers, args string) (string, error) {
				if args == "" {
					return "", fmt.Errorf("usage: run <script>")
				}
				return started(h.RunTask(ctx, args))
			},
		},
		{
			Name:        "select-path",
			Description: "Choose which package.json to show",
			Execute: func(ctx context.Context, h *Handlers, args string) (string, error) {
				if args == "" {
					paths, err := h.Paths()
					if err != nil {
						return "", err
					}
					var b strings.Builder
					b.WriteString("Manifests:\n")
					for _, p := range paths {
						if p == "" {
							p = "."
						}
						fmt.Fprintf(&b, "  %s\n", p)
					}
					return b.String(), nil
				}
				if args == "." {
					args = ""
				}
				if err := h.SelectPath(ctx, args); err != nil {
					return "", err
				}
				return "Manifest path set.", nil
			},
		},
		{
			Name:        "help",
			Description: "Show available commands",
			Execute: func(_ context.Context, _ *Handlers, _ string) (string, error) {
				var b strings.Builder
				b.WriteString("Available commands:\n")
				for _, cmd := range r.List() {
					fmt.Fprintf(&b, "  :%s - %s\n", cmd.Name, cmd.Description)
				}
				return b.String(), nil
			},
		},
	}
	for _, cmd := range core {
		r.commands[cmd.Name] = cmd
	}
}
