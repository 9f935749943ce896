package github

import (
	"regexp"
	"strings"

	"github.com/jzempel/continuity/internal/types"
)

// taskPattern matches markdown checklist lines such as "- [ ] write docs",
// "* [x] ship" or "1. [ ] review". Group 2 is the check mark.
var taskPattern = regexp.MustCompile(`(?m)^([ \t]*(?:[-*+]|\d+\.)[ \t]+\[)([ xX])(\][ \t]+)(\S.*)$`)

// ParseTasks extracts the checklist from an issue body.
func ParseTasks(body string) []types.Task {
	matches := taskPattern.FindAllStringSubmatch(body, -1)
	if len(matches) == 0 {
		return nil
	}
	tasks := make([]types.Task, len(matches))
	for i, m := range matches {
		tasks[i] = types.Task{
			Number:      i + 1,
			Description: strings.TrimRight(m[4], "\r"),
			Done:        m[2] != " ",
		}
	}
	return tasks
}

// SetTaskInBody rewrites only the check mark of checklist entry index
// (1-based), leaving every other byte of the body untouched.
func SetTaskInBody(body string, index int, done bool) (string, bool) {
	locs := taskPattern.FindAllStringSubmatchIndex(body, -1)
	if index < 1 || index > len(locs) {
		return body, false
	}
	loc := locs[index-1]
	mark := " "
	if done {
		mark = "x"
	}
	return body[:loc[4]] + mark + body[loc[5]:], true
}
