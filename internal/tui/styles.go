// ABOUTME: Lipgloss palette for the terminal UI; Styles() returns the cached set
// ABOUTME: Adaptive colors pick light or dark variants from the terminal background

package tui

import (
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// ThemeStyles holds the styles shared by every view.
type ThemeStyles struct {
	Title     lipgloss.Style
	Section   lipgloss.Style
	Muted     lipgloss.Style
	Accent    lipgloss.Style
	Selection lipgloss.Style
	Border    lipgloss.Style

	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style

	Outdated  lipgloss.Style
	Gutter    lipgloss.Style
	LineNo    lipgloss.Style
	Keyword   lipgloss.Style
	Sparkline lipgloss.Style

	FooterKey  lipgloss.Style
	FooterText lipgloss.Style

	Bold lipgloss.Style
	Dim  lipgloss.Style
}

var (
	stylesOnce sync.Once
	styles     ThemeStyles
)

// Styles returns the palette, building it on first use.
func Styles() ThemeStyles {
	stylesOnce.Do(func() { styles = buildStyles() })
	return styles
}

func buildStyles() ThemeStyles {
	accent := lipgloss.AdaptiveColor{Light: "#5E1AFF", Dark: "#8956FF"}
	muted := lipgloss.AdaptiveColor{Light: "#656D76", Dark: "#9DA5B4"}
	warning := lipgloss.AdaptiveColor{Light: "#9A6700", Dark: "#E3B341"}
	return ThemeStyles{
		Title:     lipgloss.NewStyle().Bold(true).Foreground(accent),
		Section:   lipgloss.NewStyle().Bold(true),
		Muted:     lipgloss.NewStyle().Foreground(muted),
		Accent:    lipgloss.NewStyle().Foreground(accent),
		Selection: lipgloss.NewStyle().Reverse(true),
		Border:    lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#D0D7DE", Dark: "#3C3C3C"}),

		Success: lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#1A7F37", Dark: "#3FB950"}),
		Warning: lipgloss.NewStyle().Foreground(warning),
		Error:   lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#CF222E", Dark: "#F85149"}),

		Outdated:  lipgloss.NewStyle().Foreground(warning),
		Gutter:    lipgloss.NewStyle().Foreground(warning).Bold(true),
		LineNo:    lipgloss.NewStyle().Foreground(muted),
		Keyword:   lipgloss.NewStyle().Foreground(accent).Underline(true),
		Sparkline: lipgloss.NewStyle().Foreground(accent),

		FooterKey:  lipgloss.NewStyle().Foreground(accent).Bold(true),
		FooterText: lipgloss.NewStyle().Foreground(muted),

		Bold: lipgloss.NewStyle().Bold(true),
		Dim:  lipgloss.NewStyle().Faint(true),
	}
}
