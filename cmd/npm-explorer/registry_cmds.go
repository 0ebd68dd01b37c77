// ABOUTME: Registry subcommands: search prints a page of results, show prints one package
// ABOUTME: serve runs the registry panel server until interrupted and reports npm tasks panels start

package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/mariosdrth/npm-explorer/internal/log"
	"github.com/mariosdrth/npm-explorer/internal/npm"
	"github.com/mariosdrth/npm-explorer/internal/panel"
	"github.com/mariosdrth/npm-explorer/internal/registry"
	"github.com/mariosdrth/npm-explorer/internal/tui"
)

const readmeWidth = 80

var sortNames = map[string]registry.SortType{
	"optimal":     registry.SortOptimal,
	"popularity":  registry.SortPopularity,
	"quality":     registry.SortQuality,
	"maintenance": registry.SortMaintenance,
}

func parseSort(s string) (registry.SortType, error) {
	t, ok := sortNames[strings.ToLower(s)]
	if !ok {
		return 0, fmt.Errorf("unknown sort %q: want optimal, popularity, quality or maintenance", s)
	}
	return t, nil
}

func newSearchCmd(opts *rootOptions) *cobra.Command {
	var (
		page     int
		sortName string
	)
	cmd := &cobra.Command{
		Use:   "search <text>",
		Short: "Search the registry",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sort, err := parseSort(sortName)
			if err != nil {
				return err
			}
			if page < 1 {
				return fmt.Errorf("--page must be at least 1")
			}
			e, err := newEnv(cmd, opts)
			if err != nil {
				return err
			}
			size := e.settings.Panel.SearchSize
			from := (page - 1) * size
			res, err := e.registry.Search(cmd.Context(), strings.Join(args, " "), from, size, sort)
			if err != nil {
				return fmt.Errorf("searching: %w", err)
			}
			printSearch(e.out, res, from, sort)
			return nil
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "Result page, starting at 1")
	cmd.Flags().StringVar(&sortName, "sort", "optimal", "Ranking: optimal, popularity, quality or maintenance")
	_ = cmd.RegisterFlagCompletionFunc("sort", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"optimal", "popularity", "quality", "maintenance"}, cobra.ShellCompDirectiveNoFileComp
	})
	return cmd
}

func newShowCmd(opts *rootOptions) *cobra.Command {
	var readme bool
	cmd := &cobra.Command{
		Use:   "show <name>",
		Short: "Print a registry package's details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadedEnv(cmd, opts)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			d, err := e.registry.Package(ctx, args[0])
			if err != nil {
				return errors.New(panel.ErrorMessage(err))
			}
			days, err := e.registry.Downloads(ctx, args[0])
			if err != nil {
				log.Debug("downloads for %s: %v", args[0], err)
			}

			w := e.out
			latest := d.Latest()
			fmt.Fprintf(w, "%s %s\n", d.Name, latest)
			fmt.Fprintf(w, "Author: %s\n", authorOrDefault(d.AuthorName()))
			if d.Description != "" {
				fmt.Fprintln(w, registry.PlainText(d.Description))
			}
			if dep, ok := e.tree.Dependency(d.Name, nil); ok {
				line := fmt.Sprintf("Version (%s) installed", dep.Version)
				if dep.Dev {
					line += " as dev dependency"
				}
				fmt.Fprintln(w, line)
				if dep.Outdated {
					fmt.Fprintf(w, "Newer version available: %s\n", dep.WantedVersion)
				}
			} else {
				fmt.Fprintf(w, "Not in %s\n", manifestName(e.tree))
			}

			if weeks := registry.WeeklyBuckets(days); len(weeks) > 0 {
				last := weeks[len(weeks)-1]
				fmt.Fprintf(w, "Weekly Downloads: %s (%s)\n", panel.FormatCount(last.Downloads), last.Label())
			}
			if t := d.Published(latest); !t.IsZero() {
				fmt.Fprintf(w, "Last publish: %s\n", registry.TimeAgo(time.Now(), t))
			}
			if v, ok := d.Version(latest); ok {
				if v.Dist.UnpackedSize > 0 {
					fmt.Fprintf(w, "Unpacked Size: %s\n", humanize.Bytes(uint64(v.Dist.UnpackedSize)))
				}
				if v.Dist.FileCount > 0 {
					fmt.Fprintf(w, "Total Files: %d\n", v.Dist.FileCount)
				}
			}
			fmt.Fprintf(w, "Npm Page: %s%s\n", panel.NpmPageURL, d.Name)
			if u := d.Repository.WebURL(); u != "" {
				fmt.Fprintf(w, "Repository: %s\n", u)
			}
			if d.Homepage != "" {
				fmt.Fprintf(w, "Homepage: %s\n", d.Homepage)
			}
			if d.License != "" {
				fmt.Fprintf(w, "License: %s\n", d.License)
			}
			if len(d.Keywords) > 0 {
				fmt.Fprintf(w, "Keywords: %s\n", strings.Join(d.Keywords, ", "))
			}

			if !readme {
				return nil
			}
			text := e.registry.Readme(ctx, d)
			fmt.Fprintln(w)
			switch {
			case strings.TrimSpace(text) == "":
				fmt.Fprintln(w, "No Readme found for this package")
			case isTerminal(w):
				fmt.Fprintln(w, tui.NewMarkdownRenderer().Render(text, readmeWidth))
			default:
				fmt.Fprintln(w, registry.HTMLToMarkdown(text))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&readme, "readme", false, "Also print the readme")
	return cmd
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	var dependency, search string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the registry panel server until interrupted",
		Long: `Serve registry panels over HTTP. Panels are opened with POST /panels, or at
start-up with --dependency or --search; their URLs are printed. Prometheus
metrics are served at /metrics.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := loadedEnv(cmd, opts)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if stop, err := e.watch(ctx); err != nil {
				log.Warn("file watching disabled: %v", err)
			} else {
				defer stop()
			}

			// Installs started from a panel have no other place to report.
			defer e.runner.Finished.Subscribe(func(t *npm.Task) {
				if err := t.Err(); err != nil {
					fmt.Fprintf(e.out, "%s failed: %v\n", t.Name(), err)
					return
				}
				fmt.Fprintf(e.out, "Finished: %s\n", t.Name())
			})()

			srv := e.panelServer()
			ln, err := srv.Listen()
			if err != nil {
				return err
			}
			fmt.Fprintf(e.out, "Panel server: %s\n", srv.URL())
			switch {
			case dependency != "":
				fmt.Fprintln(e.out, srv.PanelURL(srv.OpenDependency(dependency)))
			case search != "":
				fmt.Fprintln(e.out, srv.PanelURL(srv.Open(nil, search)))
			}
			return srv.Serve(ctx, ln)
		},
	}
	cmd.Flags().StringVar(&dependency, "dependency", "", "Open a panel for this package")
	cmd.Flags().StringVar(&search, "search", "", "Open a panel searching for this text")
	return cmd
}
