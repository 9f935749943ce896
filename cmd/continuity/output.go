package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/jzempel/continuity/internal/types"
	"github.com/jzempel/continuity/internal/ui"
	"github.com/jzempel/continuity/internal/workflow"
)

// outputJSON outputs data as pretty-printed JSON to stdout.
func outputJSON(v interface{}) {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding JSON: %v\n", err)
		exit(types.ExitGeneric, err)
	}
}

// outputJSONError outputs an error as JSON to stderr and exits with exitCode.
func outputJSONError(err error, code string, exitCode int) {
	errObj := map[string]string{"error": err.Error()}
	if code != "" {
		errObj["code"] = code
	}
	encoder := json.NewEncoder(os.Stderr)
	encoder.SetIndent("", "  ")
	_ = encoder.Encode(errObj) // Best effort: if JSON encoding fails, error is already printed to stderr
	exit(exitCode, err)
}

// finishReport prints r and exits on err. A failed operation lists the
// steps it got through so a partial state (a created branch, an
// unchanged tracker) is visible.
func finishReport(r *workflow.Report, err error, summary func(*workflow.Report) string) {
	if jsonOutput {
		if err != nil {
			_ = json.NewEncoder(os.Stdout).Encode(r)
			fatal(err)
		}
		outputJSON(r)
		return
	}
	if err != nil {
		if r != nil && len(r.Steps) > 1 {
			writeSteps(os.Stderr, r)
		}
		fatal(err)
	}
	if summary != nil {
		fmt.Printf("%s %s\n", ui.RenderPassIcon(), summary(r))
	}
}

// writeSteps prints one line per step.
func writeSteps(w io.Writer, r *workflow.Report) {
	for _, s := range r.Steps {
		fmt.Fprintln(w, formatStep(s))
	}
}

func formatStep(s workflow.Step) string {
	var icon string
	switch s.State {
	case workflow.StepDone:
		icon = ui.RenderPassIcon()
	case workflow.StepSkipped:
		icon = ui.RenderSkipIcon()
	default:
		icon = ui.RenderFailIcon()
	}
	line := fmt.Sprintf("  %s %s", icon, s.Name)
	switch {
	case s.State == workflow.StepFailed && s.Err != nil:
		line += ": " + ui.RenderFail(s.Err.Error())
	case s.Detail != "":
		line += ui.RenderMuted(" (" + s.Detail + ")")
	}
	return line
}
