// ABOUTME: Sets the lipgloss background before BubbleTea's init() sends OSC colour queries
// ABOUTME: Reads COLORFGBG to pick light or dark; must be imported (with _) before bubbletea

package termfix

import (
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

func init() {
	// Once the background is set explicitly, lipgloss skips the OSC 10/11
	// query whose late reply would leak into the first frame. This package
	// must not import bubbletea, directly or transitively.
	lipgloss.SetHasDarkBackground(DarkBackground(os.Getenv("COLORFGBG")))
}

// DarkBackground interprets a COLORFGBG value ("fg;bg" or "fg;other;bg").
// Background colours 7 and 15 are light; anything else, including an
// unset or malformed value, counts as dark.
func DarkBackground(colorfgbg string) bool {
	parts := strings.Split(colorfgbg, ";")
	switch strings.TrimSpace(parts[len(parts)-1]) {
	case "7", "15":
		return len(parts) < 2
	default:
		return true
	}
}
