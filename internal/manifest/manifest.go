// ABOUTME: package.json reader exposing scripts, dependencies and devDependencies in key order
// ABOUTME: Locates exactly one manifest under the workspace root; zero or many means not found

package manifest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mariosdrth/npm-explorer/internal/jsonorder"
)

// FileName is the manifest file looked up under the workspace root.
const FileName = "package.json"

// ErrNotFound reports that zero or more than one manifest matched.
var ErrNotFound = errors.New("package.json not found")

// Section names a string map of the manifest.
type Section string

const (
	SectionScripts         Section = "scripts"
	SectionDependencies    Section = "dependencies"
	SectionDevDependencies Section = "devDependencies"
)

// Entry is one name/value pair of a section.
type Entry struct {
	Name  string
	Value string
}

// Manifest is the parsed view of a package.json.
type Manifest struct {
	Name            string
	Version         string
	Scripts         []Entry
	Dependencies    []Entry
	DevDependencies []Entry
}

// Section returns the entries of the named section.
func (m *Manifest) Section(s Section) []Entry {
	switch s {
	case SectionScripts:
		return m.Scripts
	case SectionDependencies:
		return m.Dependencies
	case SectionDevDependencies:
		return m.DevDependencies
	}
	return nil
}

// Lookup finds an entry by name in a section.
func (m *Manifest) Lookup(s Section, name string) (Entry, bool) {
	for _, e := range m.Section(s) {
		if e.Name == name {
			return e, true
		}
	}
	return Entry{}, false
}

// Locate returns the single manifest under root/relativePath. relativePath
// may contain glob patterns. Zero or several matches yield ErrNotFound.
func Locate(root, relativePath string) (string, error) {
	pattern := filepath.Join(root, relativePath, FileName)
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return "", fmt.Errorf("bad manifest path %q: %w", relativePath, err)
	}
	if len(matches) != 1 {
		return "", ErrNotFound
	}
	return matches[0], nil
}

// Read loads and parses the manifest at path.
func Read(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	return Parse(data)
}

// Parse decodes manifest JSON. Absent sections are empty. Non-string values
// inside a section are skipped.
func Parse(data []byte) (*Manifest, error) {
	root, err := jsonorder.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}
	if root.Kind != jsonorder.Object {
		return nil, fmt.Errorf("parsing manifest: top-level value is not an object")
	}

	m := &Manifest{
		Scripts:         entries(root.Get(string(SectionScripts))),
		Dependencies:    entries(root.Get(string(SectionDependencies))),
		DevDependencies: entries(root.Get(string(SectionDevDependencies))),
	}
	m.Name, _ = root.Get("name").StringValue()
	m.Version, _ = root.Get("version").StringValue()
	return m, nil
}

func entries(v *jsonorder.Value) []Entry {
	if v == nil || v.Kind != jsonorder.Object {
		return []Entry{}
	}
	out := make([]Entry, 0, len(v.Members))
	seen := make(map[string]int, len(v.Members))
	for _, m := range v.Members {
		s, ok := m.Value.StringValue()
		if !ok {
			continue
		}
		// Duplicate keys keep the first position and the last value.
		if i, dup := seen[m.Key]; dup {
			out[i].Value = s
			continue
		}
		seen[m.Key] = len(out)
		out = append(out, Entry{Name: m.Key, Value: s})
	}
	return out
}
