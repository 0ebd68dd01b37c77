// ABOUTME: Embedded changelog shown by the changelog command
// ABOUTME: Splits CHANGELOG.md into release sections keyed by version

package changelog

import (
	_ "embed"
	"strings"
)

//go:embed CHANGELOG.md
var content string

// Unreleased is the section name for changes not yet released.
const Unreleased = "Unreleased"

// Get returns the embedded changelog content.
func Get() string {
	if content == "" {
		return "No changelog available."
	}
	return content
}

// Release returns the section for version, heading included. A leading "v"
// is ignored. The second result is false when no such section exists.
func Release(version string) (string, bool) {
	return section(content, strings.TrimPrefix(version, "v"))
}

// Versions lists the section names in file order, newest first.
func Versions() []string {
	var out []string
	for _, line := range strings.Split(content, "\n") {
		if name, ok := heading(line); ok {
			out = append(out, name)
		}
	}
	return out
}

func section(text, version string) (string, bool) {
	lines := strings.Split(text, "\n")
	start := -1
	for i, line := range lines {
		name, ok := heading(line)
		if !ok {
			continue
		}
		if start >= 0 {
			return strings.TrimSpace(strings.Join(lines[start:i], "\n")), true
		}
		if name == version {
			start = i
		}
	}
	if start < 0 {
		return "", false
	}
	return strings.TrimSpace(strings.Join(lines[start:], "\n")), true
}

// heading parses "## [1.2.0]" into "1.2.0".
func heading(line string) (string, bool) {
	rest, ok := strings.CutPrefix(line, "## [")
	if !ok {
		return "", false
	}
	name, _, ok := strings.Cut(rest, "]")
	return name, ok
}
