// Package ui provides terminal styling, markdown rendering and pager
// support for continuity's CLI output.
// Uses the Ayu color theme with adaptive light/dark mode support.
package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jzempel/continuity/internal/types"
)

// Ayu theme color palette
// Dark: https://terminalcolors.com/themes/ayu/dark/
// Light: https://terminalcolors.com/themes/ayu/light/
var (
	ColorPass = lipgloss.AdaptiveColor{
		Light: "#86b300", // ayu light bright green
		Dark:  "#c2d94c", // ayu dark bright green
	}
	ColorWarn = lipgloss.AdaptiveColor{
		Light: "#f2ae49", // ayu light bright yellow
		Dark:  "#ffb454", // ayu dark bright yellow
	}
	ColorFail = lipgloss.AdaptiveColor{
		Light: "#f07171", // ayu light bright red
		Dark:  "#f07178", // ayu dark bright red
	}
	ColorMuted = lipgloss.AdaptiveColor{
		Light: "#828c99", // ayu light muted
		Dark:  "#6c7680", // ayu dark muted
	}
	ColorAccent = lipgloss.AdaptiveColor{
		Light: "#399ee6", // ayu light bright blue
		Dark:  "#59c2ff", // ayu dark bright blue
	}
)

var (
	PassStyle   = lipgloss.NewStyle().Foreground(ColorPass)
	WarnStyle   = lipgloss.NewStyle().Foreground(ColorWarn)
	FailStyle   = lipgloss.NewStyle().Foreground(ColorFail)
	MutedStyle  = lipgloss.NewStyle().Foreground(ColorMuted)
	AccentStyle = lipgloss.NewStyle().Foreground(ColorAccent)

	// HeaderStyle is used for item titles.
	HeaderStyle = lipgloss.NewStyle().Bold(true)
	// CategoryStyle for section headers - bold with accent color
	CategoryStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorAccent)
)

// Status icons
const (
	IconPass = "✓"
	IconWarn = "⚠"
	IconFail = "✗"
	IconSkip = "-"
)

// Task checkboxes
const (
	BoxDone = "[x]"
	BoxOpen = "[ ]"
)

const SeparatorLight = "──────────────────────────────────────────"

func RenderWarn(s string) string   { return WarnStyle.Render(s) }
func RenderFail(s string) string   { return FailStyle.Render(s) }
func RenderMuted(s string) string  { return MutedStyle.Render(s) }
func RenderAccent(s string) string { return AccentStyle.Render(s) }
func RenderHeader(s string) string { return HeaderStyle.Render(s) }

// RenderCategory renders a category header in uppercase with accent color
func RenderCategory(s string) string {
	return CategoryStyle.Render(strings.ToUpper(s))
}

// RenderSeparator renders the light separator line in muted color
func RenderSeparator() string {
	return MutedStyle.Render(SeparatorLight)
}

func RenderPassIcon() string { return PassStyle.Render(IconPass) }
func RenderWarnIcon() string { return WarnStyle.Render(IconWarn) }
func RenderFailIcon() string { return FailStyle.Render(IconFail) }
func RenderSkipIcon() string { return MutedStyle.Render(IconSkip) }

// RenderStatus colors a normalized status.
func RenderStatus(s types.Status) string {
	switch s {
	case types.StatusStarted:
		return AccentStyle.Render(string(s))
	case types.StatusFinished:
		return PassStyle.Render(string(s))
	case types.StatusRejected:
		return FailStyle.Render(string(s))
	case types.StatusUnstarted:
		return string(s)
	}
	return MutedStyle.Render(string(s))
}

// RenderTask renders one checklist line.
func RenderTask(t types.Task) string {
	if t.Done {
		return MutedStyle.Render(BoxDone+" ") + MutedStyle.Render(t.Description)
	}
	return BoxOpen + " " + t.Description
}
