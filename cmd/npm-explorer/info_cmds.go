// ABOUTME: keys prints the active key bindings; changelog prints release notes
// ABOUTME: Both read local files only and never touch the manifest

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mariosdrth/npm-explorer/internal/changelog"
	"github.com/mariosdrth/npm-explorer/internal/config"
	"github.com/mariosdrth/npm-explorer/internal/keybindings"
	"github.com/mariosdrth/npm-explorer/internal/tui"
)

// keyManager loads the user and project key binding overrides for root.
func keyManager(root string) *keybindings.Manager {
	return keybindings.New(config.GlobalKeybindingsFile(), config.ProjectKeybindingsFile(root))
}

func newKeysCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "keys",
		Short: "List the terminal UI key bindings",
		Long: `keys lists the key bindings of the terminal UI. Defaults are overridden by
~/.npm-explorer/keybindings.json, which is overridden by the project's
.npm-explorer/keybindings.json. Keys bound to two actions of the same view
are listed as conflicts.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			root := opts.root
			if root == "" {
				wd, err := os.Getwd()
				if err != nil {
					return fmt.Errorf("getting working directory: %w", err)
				}
				root = wd
			}
			root, err := filepath.Abs(root)
			if err != nil {
				return fmt.Errorf("resolving workspace root: %w", err)
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), keyManager(root).FormatAll())
			return err
		},
	}
}

func newChangelogCmd() *cobra.Command {
	var release string
	cmd := &cobra.Command{
		Use:   "changelog",
		Short: "Print the changelog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			text := changelog.Get()
			if release != "" {
				s, ok := changelog.Release(release)
				if !ok {
					return fmt.Errorf("no changelog entry for %s", release)
				}
				text = s
			}
			w := cmd.OutOrStdout()
			if isTerminal(w) {
				text = tui.NewMarkdownRenderer().Render(text, readmeWidth)
			}
			_, err := fmt.Fprintln(w, text)
			return err
		},
	}
	cmd.Flags().StringVar(&release, "release", "", "Only this release, e.g. 0.3.0 or Unreleased")
	_ = cmd.RegisterFlagCompletionFunc("release", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return changelog.Versions(), cobra.ShellCompDirectiveNoFileComp
	})
	return cmd
}
