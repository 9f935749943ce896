package ui

import (
	"os"

	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// IsTerminal reports whether stdout is a terminal.
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// ShouldUseColor reports whether output should carry ANSI colors.
// NO_COLOR (any value) and CLICOLOR=0 turn color off; CLICOLOR_FORCE
// turns it on even when stdout is not a terminal.
func ShouldUseColor() bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	if os.Getenv("CLICOLOR") == "0" {
		return false
	}
	if force := os.Getenv("CLICOLOR_FORCE"); force != "" && force != "0" {
		return true
	}
	if !IsTerminal() {
		return false
	}
	return termenv.NewOutput(os.Stdout).ColorProfile() != termenv.Ascii
}

// HasDarkBackground reports the terminal background, defaulting to dark
// when it cannot be queried.
func HasDarkBackground() bool {
	if !IsTerminal() {
		return true
	}
	return termenv.HasDarkBackground()
}

// TerminalWidth returns the width of stdout, or fallback.
func TerminalWidth(fallback int) int {
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		return w
	}
	return fallback
}
