// ABOUTME: Settings loading with koanf: defaults, global file, project file, env, then flags
// ABOUTME: Later layers override earlier ones; JSON and YAML settings files are both accepted

package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// EnvPrefix prefixes environment overrides. Nested keys use a double
// underscore: NPM_EXPLORER_REGISTRY__URL sets registry.url.
const EnvPrefix = "NPM_EXPLORER_"

// Run modes for package-manager commands.
const (
	RunModeTask     = "task"
	RunModeTerminal = "terminal"
)

// CommandArguments are the extra arguments appended per verb and section.
type CommandArguments struct {
	Install      string `koanf:"install" yaml:"install"`
	InstallDev   string `koanf:"installDev" yaml:"installDev"`
	Update       string `koanf:"update" yaml:"update"`
	UpdateDev    string `koanf:"updateDev" yaml:"updateDev"`
	Uninstall    string `koanf:"uninstall" yaml:"uninstall"`
	UninstallDev string `koanf:"uninstallDev" yaml:"uninstallDev"`
}

// RegistrySettings configures the registry client.
type RegistrySettings struct {
	URL          string        `koanf:"url" yaml:"url"`
	DownloadsURL string        `koanf:"downloadsURL" yaml:"downloadsURL"`
	GitHubAPI    string        `koanf:"githubAPI" yaml:"githubAPI"`
	GitLabAPI    string        `koanf:"gitlabAPI" yaml:"gitlabAPI"`
	Timeout      time.Duration `koanf:"timeout" yaml:"timeout"`
}

// PanelSettings configures the registry panel server.
type PanelSettings struct {
	Addr             string `koanf:"addr" yaml:"addr"`
	SearchSize       int    `koanf:"searchSize" yaml:"searchSize"`
	PageSideDistance int    `koanf:"pageSideDistance" yaml:"pageSideDistance"`
}

// Settings holds the merged configuration.
type Settings struct {
	RelativePath     string           `koanf:"relativePath" yaml:"relativePath"`
	ShowGutter       bool             `koanf:"showGutter" yaml:"showGutter"`
	NpmPath          string           `koanf:"npmPath" yaml:"npmPath"`
	RunMode          string           `koanf:"runMode" yaml:"runMode"`
	CommandArguments CommandArguments `koanf:"commandArguments" yaml:"commandArguments"`
	Registry         RegistrySettings `koanf:"registry" yaml:"registry"`
	Panel            PanelSettings    `koanf:"panel" yaml:"panel"`
	OutdatedTimeout  time.Duration    `koanf:"outdatedTimeout" yaml:"outdatedTimeout"`
	LogLevel         string           `koanf:"logLevel" yaml:"logLevel"`

	// ProjectRoot is the workspace root the settings were loaded for.
	ProjectRoot string `koanf:"-" yaml:"-"`
}

// Defaults returns the built-in values as a flat koanf map.
func Defaults() map[string]any {
	return map[string]any{
		"relativePath":                  "",
		"showGutter":                    true,
		"npmPath":                       "npm",
		"runMode":                       RunModeTask,
		"commandArguments.install":      "",
		"commandArguments.installDev":   "",
		"commandArguments.update":       "",
		"commandArguments.updateDev":    "",
		"commandArguments.uninstall":    "",
		"commandArguments.uninstallDev": "",
		"registry.url":                  "https://registry.npmjs.org",
		"registry.downloadsURL":         "https://api.npmjs.org",
		"registry.githubAPI":            "https://api.github.com",
		"registry.gitlabAPI":            "https://gitlab.com/api/v4",
		"registry.timeout":              "30s",
		"panel.addr":                    "127.0.0.1:0",
		"panel.searchSize":              20,
		"panel.pageSideDistance":        2,
		"outdatedTimeout":               "0s",
		"logLevel":                      "info",
	}
}

// flagKeys maps command-line flag names onto settings keys.
var flagKeys = map[string]string{
	"relative-path": "relativePath",
	"npm-path":      "npmPath",
	"run-mode":      "runMode",
	"no-gutter":     "showGutter",
	"log-level":     "logLevel",
	"panel-addr":    "panel.addr",
	"registry":      "registry.url",
}

// Load reads settings for projectRoot. flags may be nil; only flags that
// were explicitly set override lower layers.
func Load(projectRoot string, flags *pflag.FlagSet) (*Settings, error) {
	k := koanf.New(".")

	defaults := Defaults()
	if err := k.Load(confmap.Provider(defaults, "."), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	for _, path := range []string{GlobalSettingsFile(), ProjectSettingsFile(projectRoot)} {
		if path == "" {
			continue
		}
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("reading settings %s: %w", path, err)
		}
	}

	canonical := canonicalKeys(defaults)
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		key = strings.ReplaceAll(key, "__", ".")
		if c, ok := canonical[key]; ok {
			return c
		}
		// Unknown variables are dropped.
		return ""
	}), nil); err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			if f.Name == "no-gutter" {
				return key, f.Value.String() != "true"
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("loading flags: %w", err)
		}
	}

	var s Settings
	if err := k.Unmarshal("", &s); err != nil {
		return nil, fmt.Errorf("decoding settings: %w", err)
	}
	s.ProjectRoot = projectRoot
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate rejects values the rest of the program cannot work with.
func (s *Settings) Validate() error {
	switch s.RunMode {
	case RunModeTask, RunModeTerminal:
	default:
		return fmt.Errorf("invalid runMode %q: expected %q or %q", s.RunMode, RunModeTask, RunModeTerminal)
	}
	if s.NpmPath == "" {
		return fmt.Errorf("npmPath must not be empty")
	}
	if s.Panel.SearchSize < 1 || s.Panel.SearchSize > 250 {
		return fmt.Errorf("panel.searchSize must be between 1 and 250, got %d", s.Panel.SearchSize)
	}
	if s.Panel.PageSideDistance < 0 {
		return fmt.Errorf("panel.pageSideDistance must not be negative")
	}
	return nil
}

// canonicalKeys maps lower-cased dotted keys to their camelCase spelling.
func canonicalKeys(defaults map[string]any) map[string]string {
	out := make(map[string]string, len(defaults))
	for k := range defaults {
		out[strings.ToLower(k)] = k
	}
	return out
}
