// ABOUTME: Standard filesystem paths for npm-explorer configuration and logs
// ABOUTME: Resolves ~/.npm-explorer/ for global and .npm-explorer/ for project-local paths

package config

import (
	"os"
	"path/filepath"
)

const (
	globalDirName  = ".npm-explorer"
	projectDirName = ".npm-explorer"

	keybindingsName = "keybindings.json"
)

// settingsNames are tried in order; the first existing file wins.
var settingsNames = []string{"settings.json", "settings.yaml", "settings.yml"}

// GlobalDir returns the user-global config directory (~/.npm-explorer/).
func GlobalDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", globalDirName)
	}
	return filepath.Join(home, globalDirName)
}

// ProjectDir returns the project-local config directory (.npm-explorer/ in the workspace root).
func ProjectDir(projectRoot string) string {
	return filepath.Join(projectRoot, projectDirName)
}

// GlobalSettingsFile returns the existing global settings file, or "".
func GlobalSettingsFile() string {
	return findSettings(GlobalDir())
}

// ProjectSettingsFile returns the existing project settings file, or "".
func ProjectSettingsFile(projectRoot string) string {
	return findSettings(ProjectDir(projectRoot))
}

// LogFile returns the path the TUI writes its log to.
func LogFile() string {
	return filepath.Join(GlobalDir(), "npm-explorer.log")
}

func findSettings(dir string) string {
	for _, name := range settingsNames {
		p := filepath.Join(dir, name)
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p
		}
	}
	return ""
}

// GlobalKeybindingsFile returns the path of the user-global key bindings.
func GlobalKeybindingsFile() string {
	return filepath.Join(GlobalDir(), keybindingsName)
}

// ProjectKeybindingsFile returns the path of the project key bindings.
func ProjectKeybindingsFile(projectRoot string) string {
	return filepath.Join(ProjectDir(projectRoot), keybindingsName)
}
