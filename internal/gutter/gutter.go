// ABOUTME: Gutter markers for outdated dependencies in an open package.json
// ABOUTME: Locates each outdated entry's value with JSON-aware spans and holds the last result

package gutter

import (
	"bytes"
	"context"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/mariosdrth/npm-explorer/internal/log"
	"github.com/mariosdrth/npm-explorer/internal/manifest"
	"github.com/mariosdrth/npm-explorer/internal/npm"
	"github.com/mariosdrth/npm-explorer/internal/tree"
)

// Document is the file being shown.
type Document struct {
	Path string
	Text []byte
}

// Marker flags the line of one outdated dependency.
type Marker struct {
	Name    string
	Section manifest.Section
	Line    int // zero based
	Offset  int // byte offset of the version value
	Wanted  string
}

// Decorator computes markers for the active document.
type Decorator struct {
	provider *tree.Provider

	mu       sync.Mutex
	outdated tree.OutdatedFunc
	markers  []Marker
}

// New creates a decorator reading settings and the manifest path from p.
func New(p *tree.Provider) *Decorator {
	return &Decorator{provider: p, outdated: npm.Outdated}
}

// SetOutdatedFunc replaces the outdated check.
func (d *Decorator) SetOutdatedFunc(fn tree.OutdatedFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.outdated = fn
}

// Markers returns the markers of the last Update.
func (d *Decorator) Markers() []Marker {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Marker(nil), d.markers...)
}

// Clear drops all markers.
func (d *Decorator) Clear() {
	d.set(nil)
}

// Update recomputes the markers for doc. It returns nil when gutters are
// disabled or doc is not the manifest; both cases clear earlier markers.
func (d *Decorator) Update(ctx context.Context, doc Document) []Marker {
	s := d.provider.Settings()
	if !s.ShowGutter || !IsManifest(doc.Path, d.provider.Manifest()) {
		d.Clear()
		return nil
	}

	d.mu.Lock()
	outdatedFn := d.outdated
	d.mu.Unlock()

	if s.OutdatedTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.OutdatedTimeout)
		defer cancel()
	}
	entries := outdatedFn(ctx, npm.NewBuilder(s, filepath.Dir(doc.Path)))
	if ctx.Err() != nil {
		log.Debug("gutter: outdated check for %s: %v", doc.Path, ctx.Err())
		return d.Markers()
	}

	markers := Locate(doc.Text, entries)
	d.set(markers)
	return markers
}

func (d *Decorator) set(markers []Marker) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.markers = markers
}

// IsManifest reports whether path is the tree's manifest. Without a known
// manifest any package.json qualifies.
func IsManifest(path, manifestPath string) bool {
	if path == "" {
		return false
	}
	if manifestPath == "" {
		return filepath.Base(path) == manifest.FileName
	}
	a, errA := filepath.Abs(path)
	b, errB := filepath.Abs(manifestPath)
	if errA != nil || errB != nil {
		return filepath.Clean(path) == filepath.Clean(manifestPath)
	}
	return a == b
}

// Locate places a marker on the value of every outdated entry declared in
// text, ordered by position in the document. A name declared in both
// sections is judged by its dependencies entry. Entries whose declared range
// already contains the wanted version are skipped, as in the tree.
func Locate(text []byte, entries []npm.OutdatedEntry) []Marker {
	var out []Marker
	for _, e := range entries {
		for _, section := range []manifest.Section{manifest.SectionDependencies, manifest.SectionDevDependencies} {
			span, ok := manifest.ValueSpan(text, section, e.Name)
			if !ok {
				continue
			}
			if strings.Contains(string(text[span.Start:span.End]), e.Wanted) {
				break
			}
			out = append(out, Marker{
				Name:    e.Name,
				Section: section,
				Line:    manifest.PositionAt(text, span.Start).Line,
				Offset:  span.Start,
				Wanted:  e.Wanted,
			})
			break
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Offset < out[j].Offset })
	return out
}

// Line is one line of a document with its marker, if any.
type Line struct {
	Number int // one based
	Text   string
	Marker *Marker
}

// Lines splits text into lines and attaches markers by line.
func Lines(text []byte, markers []Marker) []Line {
	byLine := make(map[int]*Marker, len(markers))
	for i := range markers {
		byLine[markers[i].Line] = &markers[i]
	}
	raw := bytes.Split(bytes.TrimSuffix(text, []byte("\n")), []byte("\n"))
	lines := make([]Line, len(raw))
	for i, l := range raw {
		lines[i] = Line{
			Number: i + 1,
			Text:   strings.TrimRight(string(l), "\r"),
			Marker: byLine[i],
		}
	}
	return lines
}
