package config

import (
	"fmt"
	"strings"

	"github.com/jzempel/continuity/internal/naming"
)

// Templates holds the naming templates. Empty fields use the naming
// package defaults.
type Templates struct {
	Branch  string `json:"branch,omitempty" yaml:"branch,omitempty"`
	PRTitle string `json:"pr_title,omitempty" yaml:"pr-title,omitempty"`
	PRBody  string `json:"pr_body,omitempty" yaml:"pr-body,omitempty"`
	Commit  string `json:"commit,omitempty" yaml:"commit,omitempty"`
	Merge   string `json:"merge,omitempty" yaml:"merge,omitempty"`
}

// Settings is the immutable configuration the workflow engine runs with.
type Settings struct {
	Tracker           string    `json:"tracker"`
	IntegrationBranch string    `json:"integration_branch"`
	Remote            string    `json:"remote"`
	Exclusive         bool      `json:"exclusive"`
	DeleteRemote      bool      `json:"delete_remote"`
	Comments          bool      `json:"comments"`
	Templates         Templates `json:"templates"`
}

// DefaultSettings returns the settings of an empty configuration.
func DefaultSettings() Settings {
	return Settings{
		IntegrationBranch: "main",
		Remote:            "origin",
		Comments:          true,
	}
}

// Load snapshots the current configuration.
func Load() Settings {
	if v == nil {
		return DefaultSettings()
	}
	s := Settings{
		Tracker:           strings.ToLower(GetString("tracker")),
		IntegrationBranch: GetString("integration-branch"),
		Remote:            GetString("remote"),
		Exclusive:         GetBool("exclusive"),
		DeleteRemote:      GetBool("delete-remote"),
		Comments:          GetBool("comments"),
		Templates: Templates{
			Branch:  GetString("templates.branch"),
			PRTitle: GetString("templates.pr-title"),
			PRBody:  GetString("templates.pr-body"),
			Commit:  GetString("templates.commit"),
			Merge:   GetString("templates.merge"),
		},
	}
	if s.IntegrationBranch == "" {
		s.IntegrationBranch = "main"
	}
	if s.Remote == "" {
		s.Remote = "origin"
	}
	return s
}

// BranchTemplate returns the branch template in effect.
func (s Settings) BranchTemplate() string {
	if s.Templates.Branch == "" {
		return naming.DefaultBranchTemplate
	}
	return s.Templates.Branch
}

// Warnings lists template problems worth showing during init. They never
// stop a command: unknown tokens render verbatim.
func (s Settings) Warnings() []string {
	var out []string
	check := func(name, tmpl string) {
		if unknown := naming.UnknownTokens(tmpl); len(unknown) > 0 {
			out = append(out, fmt.Sprintf("templates.%s uses unknown tokens %s; they are left as written",
				name, strings.Join(unknown, ", ")))
		}
	}
	check("branch", s.Templates.Branch)
	check("pr-title", s.Templates.PRTitle)
	check("pr-body", s.Templates.PRBody)
	check("commit", s.Templates.Commit)
	check("merge", s.Templates.Merge)
	if !strings.Contains(s.BranchTemplate(), "{id}") {
		out = append(out, "templates.branch has no {id} token; review, finish and tasks cannot find the item for a branch")
	}
	return out
}

// Store exposes the loaded configuration to tracker adapters.
type Store struct{}

// GetString implements tracker.ConfigStore.
func (Store) GetString(key string) string { return GetString(key) }

// AllStrings implements tracker.ConfigStore.
func (Store) AllStrings() map[string]string {
	out := map[string]string{}
	for _, key := range AllKeys() {
		out[key] = GetString(key)
	}
	return out
}
