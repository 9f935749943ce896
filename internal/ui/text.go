package ui

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Default truncation settings
const (
	DefaultMaxLines     = 15 // Default max lines for description display
	DefaultContextLines = 5  // Lines to show at beginning and end when truncating
)

// TruncateLines truncates text to maxLines, showing context from beginning and end.
// If the text has fewer lines than maxLines, returns it unchanged.
// Shows contextLines at the beginning and end with a truncation indicator in the middle.
func TruncateLines(text string, maxLines, contextLines int) string {
	if text == "" {
		return text
	}

	lines := strings.Split(text, "\n")
	totalLines := len(lines)

	// No truncation needed
	if totalLines <= maxLines {
		return text
	}

	// Ensure context makes sense
	if contextLines < 1 {
		contextLines = DefaultContextLines
	}
	// If maxLines is too small for context, just show first maxLines
	if maxLines < contextLines*2+3 {
		return strings.Join(lines[:maxLines], "\n") + "\n..."
	}

	// Calculate how many lines to show from each end
	beginLines := contextLines
	endLines := contextLines
	hiddenLines := totalLines - beginLines - endLines

	// Build truncated output
	var result strings.Builder
	result.WriteString(strings.Join(lines[:beginLines], "\n"))
	result.WriteString("\n")
	result.WriteString(RenderSeparator())
	result.WriteString("\n")
	result.WriteString(RenderMuted(fmt.Sprintf("... %d lines hidden, use --full to see them ...", hiddenLines)))
	result.WriteString("\n")
	result.WriteString(RenderSeparator())
	result.WriteString("\n")
	result.WriteString(strings.Join(lines[totalLines-endLines:], "\n"))

	return result.String()
}

// TruncateSimple performs simple end truncation with "..." suffix.
// UTF-8 safe.
func TruncateSimple(text string, maxLen int) string {
	if utf8.RuneCountInString(text) <= maxLen {
		return text
	}
	runes := []rune(text)
	if maxLen <= 3 {
		return "..."
	}
	return string(runes[:maxLen-3]) + "..."
}

// WrapText wraps text at word boundaries to fit within maxWidth.
// Preserves existing line breaks.
func WrapText(text string, maxWidth int) string {
	if maxWidth <= 0 {
		maxWidth = 80
	}

	var result strings.Builder
	lines := strings.Split(text, "\n")

	for i, line := range lines {
		if i > 0 {
			result.WriteString("\n")
		}
		result.WriteString(wrapLine(line, maxWidth))
	}

	return result.String()
}

// wrapLine wraps a single line at word boundaries.
func wrapLine(line string, maxWidth int) string {
	if utf8.RuneCountInString(line) <= maxWidth {
		return line
	}

	var result strings.Builder
	words := strings.Fields(line)
	currentLen := 0

	for _, word := range words {
		wordLen := utf8.RuneCountInString(word)

		// If this is first word on line, add it even if too long
		if currentLen == 0 {
			result.WriteString(word)
			currentLen = wordLen
			continue
		}

		// Check if word fits on current line (with space)
		if currentLen+1+wordLen <= maxWidth {
			result.WriteString(" ")
			result.WriteString(word)
			currentLen += 1 + wordLen
		} else {
			// Start new line
			result.WriteString("\n")
			result.WriteString(word)
			currentLen = wordLen
		}
	}

	return result.String()
}
