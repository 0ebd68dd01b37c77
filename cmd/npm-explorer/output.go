// ABOUTME: Plain-text output for non-interactive commands
// ABOUTME: go-pretty tables for the tree and search results, task output after a job settles

package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/mariosdrth/npm-explorer/internal/commands"
	"github.com/mariosdrth/npm-explorer/internal/config"
	"github.com/mariosdrth/npm-explorer/internal/registry"
	"github.com/mariosdrth/npm-explorer/internal/tree"
)

const maxDescription = 60

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.Style().Format.Header = text.FormatDefault
	return t
}

// printTree writes one row per tree item, or a hint when the tree is empty.
func printTree(w io.Writer, p *tree.Provider) error {
	sections := p.Sections()
	if len(sections) == 0 {
		if p.Manifest() == "" {
			_, err := fmt.Fprintln(w, "No package.json found.")
			return err
		}
		_, err := fmt.Fprintf(w, "%s has no scripts or dependencies.\n", p.Manifest())
		return err
	}

	fmt.Fprintln(w, p.Manifest())
	t := newTable(w)
	t.AppendHeader(table.Row{"Section", "Name", "Value", "Installed", "Wanted"})
	for i, s := range sections {
		if i > 0 {
			t.AppendSeparator()
		}
		for _, task := range s.Tasks {
			t.AppendRow(table.Row{s.Kind, task.Name, task.Script, "", ""})
		}
		for _, d := range s.Dependencies {
			installed := d.InstalledVersion
			if installed == "" && d.Installed {
				installed = "yes"
			}
			if !d.Installed {
				installed = "no"
			}
			t.AppendRow(table.Row{s.Kind, d.Name, d.Version, installed, d.WantedVersion})
		}
	}
	t.Render()
	return nil
}

// printSearch writes a page of search results with its summary line.
func printSearch(w io.Writer, res *registry.SearchResponse, from int, sort registry.SortType) {
	if len(res.Objects) == 0 {
		fmt.Fprintln(w, "No packages found.")
		return
	}
	fmt.Fprintf(w, "Showing %d-%d of %d packages · sort: %s\n", from+1, from+len(res.Objects), res.Total, sort)
	t := newTable(w)
	t.AppendHeader(table.Row{"Name", "Version", "Description", "Author"})
	for _, o := range res.Objects {
		desc := registry.PlainText(o.Package.Description)
		if r := []rune(desc); len(r) > maxDescription {
			desc = string(r[:maxDescription-1]) + "…"
		}
		t.AppendRow(table.Row{o.Package.Name, o.Package.Version, desc, authorOrDefault(o.AuthorName())})
	}
	t.Render()
}

func authorOrDefault(name string) string {
	if name == "" {
		return "No author provided"
	}
	return name
}

// finish waits for job and, in task mode, prints what npm wrote. A nil job
// means nothing was started.
func finish(ctx context.Context, w io.Writer, mode string, job *commands.Job, err error) error {
	if err != nil {
		return err
	}
	if job == nil {
		return nil
	}
	werr := job.Wait(ctx)
	if mode != config.RunModeTerminal {
		if out := strings.TrimRight(job.Task.Output(), "\n"); out != "" {
			fmt.Fprintln(w, out)
		}
	}
	if werr != nil {
		return fmt.Errorf("%s: %w", job.Task.Name(), werr)
	}
	return nil
}
