package ui

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/jzempel/continuity/internal/types"
)

func TestShouldUseColor(t *testing.T) {
	tests := []struct {
		name          string
		noColor       string
		cliColor      string
		cliColorForce string
		wantColor     bool
	}{
		{
			name:      "NO_COLOR disables color",
			noColor:   "1",
			wantColor: false,
		},
		{
			name:      "CLICOLOR=0 disables color",
			cliColor:  "0",
			wantColor: false,
		},
		{
			name:          "CLICOLOR_FORCE enables color even in non-TTY",
			cliColorForce: "1",
			wantColor:     true,
		},
		{
			name:          "NO_COLOR takes precedence over CLICOLOR_FORCE",
			noColor:       "1",
			cliColorForce: "1",
			wantColor:     false,
		},
		{
			name:          "CLICOLOR_FORCE=0 does not force",
			cliColorForce: "0",
			wantColor:     false, // stdout is not a TTY under go test
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			unsetEnv(t, "NO_COLOR")
			t.Setenv("CLICOLOR", tt.cliColor)
			t.Setenv("CLICOLOR_FORCE", tt.cliColorForce)
			if tt.noColor != "" {
				t.Setenv("NO_COLOR", tt.noColor)
			}

			if got := ShouldUseColor(); got != tt.wantColor {
				t.Errorf("ShouldUseColor() = %v, want %v", got, tt.wantColor)
			}
		})
	}
}

func TestRenderMarkdownPlainWithoutColor(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	in := "# Heading\n\n- [ ] task"
	if got := RenderMarkdown(in); got != in {
		t.Errorf("RenderMarkdown() = %q, want input unchanged", got)
	}
}

func TestRenderMarkdownWithColor(t *testing.T) {
	unsetEnv(t, "NO_COLOR")
	t.Setenv("CLICOLOR_FORCE", "1")
	got := RenderMarkdown("Some **bold** text")
	if !strings.Contains(got, "bold") {
		t.Errorf("RenderMarkdown() dropped content: %q", got)
	}
}

func TestToPagerWritesDirectlyWhenNotATerminal(t *testing.T) {
	var buf bytes.Buffer
	if err := ToPager("line 1\nline 2\n", PagerOptions{Out: &buf}); err != nil {
		t.Fatalf("ToPager() error = %v", err)
	}
	if buf.String() != "line 1\nline 2\n" {
		t.Errorf("ToPager() wrote %q", buf.String())
	}
}

func TestGetPagerCommand(t *testing.T) {
	t.Setenv("CONTINUITY_PAGER", "")
	t.Setenv("PAGER", "")
	if got := getPagerCommand(); got != "less" {
		t.Errorf("default pager = %q, want less", got)
	}
	t.Setenv("PAGER", "more")
	if got := getPagerCommand(); got != "more" {
		t.Errorf("PAGER = %q, want more", got)
	}
	t.Setenv("CONTINUITY_PAGER", "bat --plain")
	if got := getPagerCommand(); got != "bat --plain" {
		t.Errorf("CONTINUITY_PAGER = %q", got)
	}
}

func TestContentHeight(t *testing.T) {
	for in, want := range map[string]int{"": 0, "one": 1, "one\n": 1, "a\nb\nc\n": 3} {
		if got := contentHeight(in); got != want {
			t.Errorf("contentHeight(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestRenderTask(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	if got := RenderTask(types.Task{Description: "write docs"}); got != "[ ] write docs" {
		t.Errorf("RenderTask(open) = %q", got)
	}
	if got := RenderTask(types.Task{Description: "ship", Done: true}); !strings.Contains(got, "[x]") {
		t.Errorf("RenderTask(done) = %q", got)
	}
	if got := RenderStatus(types.StatusStarted); !strings.Contains(got, "started") {
		t.Errorf("RenderStatus() = %q", got)
	}
}

// unsetEnv removes key for the duration of the test.
func unsetEnv(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	_ = os.Unsetenv(key)
}
