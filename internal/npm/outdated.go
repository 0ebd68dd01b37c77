// ABOUTME: Runs `npm outdated --json` and decodes the result into filtered entries
// ABOUTME: Any subprocess or decode failure degrades to an empty list

package npm

import (
	"bytes"
	"context"
	"encoding/json"
	"sort"

	"github.com/mariosdrth/npm-explorer/internal/log"
)

// OutdatedEntry is one row of `npm outdated`.
type OutdatedEntry struct {
	Name    string `json:"-"`
	Current string `json:"current"`
	Wanted  string `json:"wanted"`
	Latest  string `json:"latest"`
}

// Outdated runs the outdated check. npm exits non-zero whenever something is
// outdated, so stdout is decoded regardless of the exit status.
func Outdated(ctx context.Context, b Builder) []OutdatedEntry {
	cmd := b.Outdated().Exec(ctx)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil && stdout.Len() == 0 {
		log.Debug("npm outdated: %v", err)
		return nil
	}
	entries, err := ParseOutdated(stdout.Bytes())
	if err != nil {
		log.Debug("npm outdated: decoding output: %v", err)
		return nil
	}
	return entries
}

// ParseOutdated decodes `npm outdated --json` output sorted by name.
// Linked and git entries, and entries already at the wanted version, are dropped.
func ParseOutdated(data []byte) ([]OutdatedEntry, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	raw := map[string]OutdatedEntry{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	out := make([]OutdatedEntry, 0, len(raw))
	for name, e := range raw {
		if e.Wanted == "linked" || e.Wanted == "git" || e.Current == e.Wanted {
			continue
		}
		e.Name = name
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Find returns the entry for name.
func Find(entries []OutdatedEntry, name string) (OutdatedEntry, bool) {
	for _, e := range entries {
		if e.Name == name {
			return e, true
		}
	}
	return OutdatedEntry{}, false
}
