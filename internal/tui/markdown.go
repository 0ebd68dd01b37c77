// ABOUTME: Readme renderer for the terminal: HTML blocks to markdown, then glamour
// ABOUTME: Caches rendered results keyed by content hash + width

package tui

import (
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/mariosdrth/npm-explorer/internal/log"
	"github.com/mariosdrth/npm-explorer/internal/registry"
)

// MarkdownRenderer wraps glamour with a render cache.
type MarkdownRenderer struct {
	cache map[string]string
}

// NewMarkdownRenderer creates a renderer with an empty cache.
func NewMarkdownRenderer() *MarkdownRenderer {
	return &MarkdownRenderer{cache: make(map[string]string)}
}

// Render styles a readme for a terminal of the given width.
func (r *MarkdownRenderer) Render(readme string, width int) string {
	if strings.TrimSpace(readme) == "" {
		return ""
	}
	key := cacheKey(readme, width)
	if cached, ok := r.cache[key]; ok {
		return cached
	}

	md := registry.HTMLToMarkdown(readme)
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		log.Debug("tui: glamour: %v", err)
		return md
	}
	out, err := renderer.Render(md)
	if err != nil {
		log.Debug("tui: rendering readme: %v", err)
		return md
	}
	out = strings.TrimRight(out, "\n ")
	r.cache[key] = out
	return out
}

func cacheKey(content string, width int) string {
	h := sha256.Sum256([]byte(content))
	return fmt.Sprintf("%x:%d", h[:8], width)
}
