// ABOUTME: Workspace scan for every package.json, used by the select-path command
// ABOUTME: Skips node_modules, VCS and editor directories; returns slash-separated relative dirs

package manifest

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
)

var skipDirs = map[string]bool{
	"node_modules":  true,
	".git":          true,
	".vscode":       true,
	".vscode-test":  true,
	".npm-explorer": true,
}

// Discover walks root and returns the directory of every manifest relative
// to root ("" for the root itself), sorted.
func Discover(root string) ([]string, error) {
	var dirs []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable subtrees are skipped, not fatal.
			if d != nil && d.IsDir() && path != root {
				return filepath.SkipDir
			}
			return err
		}
		if d.IsDir() {
			if path != root && skipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Name() != FileName {
			return nil
		}
		rel, err := filepath.Rel(root, filepath.Dir(path))
		if err != nil {
			return err
		}
		if rel == "." {
			rel = ""
		}
		dirs = append(dirs, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning for manifests: %w", err)
	}
	sort.Strings(dirs)
	return dirs, nil
}
