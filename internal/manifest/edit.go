// ABOUTME: JSON-aware manifest edits: delete a section key, locate a value span, map offsets
// ABOUTME: Writes replace the whole document atomically; there is no merge with concurrent edits

package manifest

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"unicode/utf8"

	"github.com/mariosdrth/npm-explorer/internal/jsonorder"
)

// Indent is the indentation used when a manifest is rewritten.
const Indent = "\t"

// Span is a half-open byte range [Start, End) in the manifest text.
type Span struct {
	Start int
	End   int
}

// Position is a zero-based line and column. Column counts Unicode code
// points from the start of the line, not bytes and not UTF-16 units.
type Position struct {
	Line   int
	Column int
}

// DeleteEntry removes name from section and re-serializes the document with
// tab indentation. A missing key still yields the re-serialized document.
// A trailing newline in the input is kept.
func DeleteEntry(data []byte, section Section, name string) ([]byte, error) {
	root, err := jsonorder.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}
	if root.Kind != jsonorder.Object {
		return nil, fmt.Errorf("parsing manifest: top-level value is not an object")
	}
	root.Get(string(section)).Delete(name)

	out, err := root.Marshal(Indent)
	if err != nil {
		return nil, fmt.Errorf("serializing manifest: %w", err)
	}
	if bytes.HasSuffix(data, []byte("\n")) {
		out = append(out, '\n')
	}
	return out, nil
}

// RemoveEntry deletes name from section of the manifest at path and saves it.
func RemoveEntry(path string, section Section, name string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading manifest: %w", err)
	}
	out, err := DeleteEntry(data, section, name)
	if err != nil {
		return err
	}
	return writeAtomic(path, out)
}

// writeAtomic writes data to a temp file next to path and renames it over
// path, keeping the original permissions.
func writeAtomic(path string, data []byte) error {
	mode := os.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".package.json.*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp manifest: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing temp manifest: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp manifest: %w", err)
	}
	if err := os.Chmod(tmpPath, mode); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("setting manifest mode: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp manifest: %w", err)
	}
	return nil
}

// ValueSpan locates the contents (without quotes) of the string value of
// name inside section. It reports false when the document does not parse,
// the key is absent, or the value is not a string.
func ValueSpan(data []byte, section Section, name string) (Span, bool) {
	root, err := jsonorder.Parse(data)
	if err != nil {
		return Span{}, false
	}
	v := root.Get(string(section)).Get(name)
	if v == nil || v.Kind != jsonorder.String {
		return Span{}, false
	}
	return Span{Start: int(v.Start) + 1, End: int(v.End) - 1}, true
}

// PositionAt converts a byte offset into a line/column position. Columns
// count code points: "é" is one column, and a character outside the BMP is
// one column here but two UTF-16 units in editors that count those.
func PositionAt(data []byte, offset int) Position {
	if offset > len(data) {
		offset = len(data)
	}
	var pos Position
	lineStart := 0
	for i := 0; i < offset; i++ {
		if data[i] == '\n' {
			pos.Line++
			lineStart = i + 1
		}
	}
	pos.Column = utf8.RuneCount(data[lineStart:offset])
	return pos
}
