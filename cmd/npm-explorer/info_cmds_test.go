// ABOUTME: Tests for the keys and changelog subcommands
// ABOUTME: Project key binding overrides and conflicts show up in keys; changelog filters by release

package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mariosdrth/npm-explorer/internal/changelog"
	"github.com/mariosdrth/npm-explorer/internal/config"
)

func TestKeysCommand_ProjectOverride(t *testing.T) {
	ws := newWorkspace(t)
	dir := config.ProjectDir(ws.root)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "keybindings.json"), []byte(`{"edit": ["d"]}`), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := ws.run(t, "keys")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "## Conflicts") || !strings.Contains(out, "delete, edit") {
		t.Errorf("keys output missing the conflict:\n%s", out)
	}
}

func TestKeysCommand_Defaults(t *testing.T) {
	ws := newWorkspace(t)

	out, err := ws.run(t, "keys")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "Keybindings:\n") || strings.Contains(out, "Conflicts") {
		t.Errorf("keys output = %q", out)
	}
}

func TestChangelogCommand(t *testing.T) {
	t.Parallel()

	out, err := execute(t, context.Background(), "changelog", "--release", changelog.Unreleased)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "## [Unreleased]") {
		t.Errorf("changelog output = %q", out)
	}

	if _, err := execute(t, context.Background(), "changelog", "--release", "99.0.0"); err == nil || !strings.Contains(err.Error(), "no changelog entry for 99.0.0") {
		t.Errorf("err = %v; want a missing entry", err)
	}
}
