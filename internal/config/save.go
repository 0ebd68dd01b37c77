// ABOUTME: Persists single settings values into the project settings file
// ABOUTME: Keeps the existing file format (JSON or YAML); creates settings.json when absent

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// SaveProjectValue sets a dotted key (e.g. "relativePath") in the project
// settings file, leaving other keys untouched.
func SaveProjectValue(projectRoot, key string, value any) error {
	path := ProjectSettingsFile(projectRoot)
	if path == "" {
		path = filepath.Join(ProjectDir(projectRoot), "settings.json")
	}
	isYAML := strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml")

	doc := map[string]any{}
	data, err := os.ReadFile(path)
	switch {
	case err == nil && len(strings.TrimSpace(string(data))) > 0:
		if isYAML {
			err = yaml.Unmarshal(data, &doc)
		} else {
			err = json.Unmarshal(data, &doc)
		}
		if err != nil {
			return fmt.Errorf("parsing %s: %w", path, err)
		}
	case err != nil && !os.IsNotExist(err):
		return fmt.Errorf("reading %s: %w", path, err)
	}

	setDotted(doc, key, value)

	var out []byte
	if isYAML {
		out, err = yaml.Marshal(doc)
	} else {
		out, err = json.MarshalIndent(doc, "", "  ")
		out = append(out, '\n')
	}
	if err != nil {
		return fmt.Errorf("encoding settings: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating settings directory: %w", err)
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

func setDotted(doc map[string]any, key string, value any) {
	parts := strings.Split(key, ".")
	cur := doc
	for _, p := range parts[:len(parts)-1] {
		next, ok := cur[p].(map[string]any)
		if !ok {
			next = map[string]any{}
			cur[p] = next
		}
		cur = next
	}
	cur[parts[len(parts)-1]] = value
}

// Dump renders the effective settings as YAML.
func (s *Settings) Dump() (string, error) {
	out, err := yaml.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("encoding settings: %w", err)
	}
	return string(out), nil
}
