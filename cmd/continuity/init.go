package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/jzempel/continuity/internal/config"
	"github.com/jzempel/continuity/internal/git"
	"github.com/jzempel/continuity/internal/tracker"
	"github.com/jzempel/continuity/internal/types"
	"github.com/jzempel/continuity/internal/ui"
	"github.com/jzempel/continuity/internal/workflow"
)

var initCmd = &cobra.Command{
	Use:     "init",
	Short:   "Configure continuity for this repository",
	GroupID: groupSetup,
	Long: `Configure the tracker, integration branch and credentials for this
repository, install the prepare-commit-msg hook and add git aliases
(git start, git finish, ...).

Repository settings are written to .continuity/config.yaml. Tokens go to
the user-wide config file so they are never committed.

The form uses keyboard navigation:
  - Tab/Shift+Tab: Move between fields
  - Enter: Submit the form (on the last field or submit button)
  - Ctrl+C: Cancel and exit`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fresh, _ := cmd.Flags().GetBool("new")
		runInit(rootCtx, fresh)
	},
}

// initAnswers holds the form fields.
type initAnswers struct {
	Tracker           string
	IntegrationBranch string
	Exclusive         bool

	GitHubToken string
	GitHubOwner string
	GitHubRepo  string
	GitLabToken string

	PivotalToken     string
	PivotalProjectID string

	JiraURL      string
	JiraUsername string
	JiraToken    string
	JiraProject  string

	Save bool
}

func runInit(ctx context.Context, fresh bool) {
	repo := git.Open("")
	root, err := repo.Toplevel(ctx)
	if err != nil {
		FatalErrorWithHint("not in a git repository", "Run 'continuity init' inside the repository you want to configure")
	}

	answers := defaultAnswers(ctx, repo, fresh)
	remoteURL, _ := repo.RemoteURL(ctx, "origin")
	onGitLab := false
	if info, err := git.ParseRepoURL(remoteURL); err == nil {
		onGitLab = info.Platform == git.PlatformGitLab
	}

	if err := initForm(&answers, onGitLab).Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			fmt.Fprintln(os.Stderr, "Initialization cancelled.")
			exit(types.ExitOK, nil)
		}
		FatalError("form error: %v", err)
	}
	if !answers.Save {
		fmt.Fprintln(os.Stderr, "Initialization cancelled.")
		return
	}

	values := answers.values()
	for k, v := range values {
		config.Set(k, v)
	}
	var store tracker.ConfigStore = config.Store{}
	if fresh {
		store = tracker.MapStore(values)
	}
	e, err := openEngine(ctx, store, config.Load())
	if err != nil {
		fatal(err)
	}

	exe, err := os.Executable()
	if err != nil {
		exe = "continuity"
	}
	writer := &configWriter{project: config.ProjectPath(root), user: config.UserPath()}
	r, err := e.Init(ctx, workflow.InitOptions{
		Values:     values,
		New:        fresh,
		Writer:     writer,
		Executable: exe,
		Aliases:    aliasesFor(answers.Tracker),
	})
	if err != nil || jsonOutput {
		finishReport(r, err, nil)
		return
	}

	writeSteps(os.Stdout, r)
	for _, w := range e.Settings.Warnings() {
		WarnError("%s", w)
	}
	fmt.Printf("\n%s continuity is configured for %s in %s\n", ui.RenderPassIcon(), e.Tracker.DisplayName(), writer.project)
}

// defaultAnswers seeds the form from stored configuration unless fresh
// is set.
func defaultAnswers(ctx context.Context, repo *git.Repo, fresh bool) initAnswers {
	a := initAnswers{Tracker: "github", IntegrationBranch: "main", Save: true}
	if branch, err := repo.CurrentBranch(ctx); err == nil {
		a.IntegrationBranch = branch
	}
	if fresh {
		return a
	}
	get := config.GetString
	if v := get("tracker"); v != "" {
		a.Tracker = v
	}
	if config.IsSet("integration-branch") && get("integration-branch") != "" {
		a.IntegrationBranch = get("integration-branch")
	}
	a.Exclusive = config.GetBool("exclusive")
	a.GitHubToken, a.GitHubOwner, a.GitHubRepo = get("github.token"), get("github.owner"), get("github.repo")
	a.GitLabToken = get("gitlab.token")
	a.PivotalToken, a.PivotalProjectID = get("pivotal.token"), get("pivotal.project-id")
	a.JiraURL, a.JiraUsername = get("jira.url"), get("jira.username")
	a.JiraToken, a.JiraProject = get("jira.token"), get("jira.project")
	return a
}

func initForm(a *initAnswers, onGitLab bool) *huh.Form {
	required := func(name string) func(string) error {
		return func(s string) error {
			if strings.TrimSpace(s) == "" {
				return fmt.Errorf("%s is required", name)
			}
			return nil
		}
	}
	numeric := func(s string) error {
		if _, err := strconv.Atoi(strings.TrimSpace(s)); err != nil {
			return fmt.Errorf("project id must be a number")
		}
		return nil
	}

	return huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Tracker").
				Description("Where your issues or stories live").
				Options(
					huh.NewOption("GitHub Issues", "github"),
					huh.NewOption("Pivotal Tracker", "pivotal"),
					huh.NewOption("Jira", "jira"),
				).
				Value(&a.Tracker),

			huh.NewInput().
				Title("Integration branch").
				Description("Work branches start from and merge back into this branch").
				Value(&a.IntegrationBranch).
				Validate(required("integration branch")),

			huh.NewConfirm().
				Title("Exclude items not assigned to you?").
				Description("start only picks items you own").
				Value(&a.Exclusive),
		),

		huh.NewGroup(
			huh.NewInput().
				Title("GitHub token").
				Description("Personal access token with repo scope").
				EchoMode(huh.EchoModePassword).
				Value(&a.GitHubToken).
				Validate(required("GitHub token")),
			huh.NewInput().
				Title("Repository owner").
				Description("Leave empty to use the origin remote").
				Value(&a.GitHubOwner),
			huh.NewInput().
				Title("Repository name").
				Description("Leave empty to use the origin remote").
				Value(&a.GitHubRepo),
		).WithHideFunc(func() bool { return a.Tracker != "github" }),

		huh.NewGroup(
			huh.NewInput().
				Title("Pivotal Tracker API token").
				EchoMode(huh.EchoModePassword).
				Value(&a.PivotalToken).
				Validate(required("API token")),
			huh.NewInput().
				Title("Pivotal Tracker project ID").
				Value(&a.PivotalProjectID).
				Validate(numeric),
		).WithHideFunc(func() bool { return a.Tracker != "pivotal" }),

		huh.NewGroup(
			huh.NewInput().
				Title("Jira URL").
				Placeholder("https://example.atlassian.net").
				Value(&a.JiraURL).
				Validate(required("Jira URL")),
			huh.NewInput().
				Title("Jira username").
				Description("Account email for Jira Cloud; leave empty for a bearer token").
				Value(&a.JiraUsername),
			huh.NewInput().
				Title("Jira API token").
				EchoMode(huh.EchoModePassword).
				Value(&a.JiraToken).
				Validate(required("API token")),
			huh.NewInput().
				Title("Jira project key").
				Placeholder("PROJ").
				Value(&a.JiraProject).
				Validate(required("project key")),
		).WithHideFunc(func() bool { return a.Tracker != "jira" }),

		huh.NewGroup(
			huh.NewInput().
				Title("GitLab token").
				Description("Used by review to open merge requests").
				EchoMode(huh.EchoModePassword).
				Value(&a.GitLabToken),
		).WithHideFunc(func() bool { return !onGitLab }),

		huh.NewGroup(
			huh.NewConfirm().
				Title("Save this configuration?").
				Affirmative("Save").
				Negative("Cancel").
				Value(&a.Save),
		),
	).WithTheme(huh.ThemeDracula())
}

// values flattens the answers into dotted configuration keys. Fields
// belonging to other trackers are left out.
func (a initAnswers) values() map[string]string {
	out := map[string]string{
		"tracker":            a.Tracker,
		"integration-branch": strings.TrimSpace(a.IntegrationBranch),
		"exclusive":          strconv.FormatBool(a.Exclusive),
	}
	set := func(key, value string) {
		if value = strings.TrimSpace(value); value != "" {
			out[key] = value
		}
	}
	switch a.Tracker {
	case "github":
		set("github.token", a.GitHubToken)
		set("github.owner", a.GitHubOwner)
		set("github.repo", a.GitHubRepo)
	case "pivotal":
		set("pivotal.token", a.PivotalToken)
		set("pivotal.project-id", a.PivotalProjectID)
	case "jira":
		set("jira.url", a.JiraURL)
		set("jira.username", a.JiraUsername)
		set("jira.token", a.JiraToken)
		set("jira.project", strings.ToUpper(a.JiraProject))
	}
	set("gitlab.token", a.GitLabToken)
	return out
}

// aliasesFor lists the git aliases init installs. Listing commands use
// the tracker's vocabulary.
func aliasesFor(trackerName string) []string {
	aliases := []string{"start", "review", "finish", "tasks"}
	switch trackerName {
	case "pivotal":
		return append(aliases, "story", "backlog")
	case "jira":
		return append(aliases, "issue", "issues", "backlog")
	}
	return append(aliases, "issue", "issues")
}

// configWriter splits credentials from repository settings.
type configWriter struct {
	project string
	user    string
}

// Write implements workflow.ConfigWriter. The user file is shared by
// every repository, so fresh only resets the repository file.
func (w *configWriter) Write(values map[string]string, fresh bool) error {
	public, secret := config.SplitSecrets(values)
	if err := config.Save(w.project, public, fresh); err != nil {
		return err
	}
	if len(secret) == 0 {
		return nil
	}
	return config.Save(w.user, secret, false)
}

func init() {
	initCmd.Flags().Bool("new", false, "Ignore stored values and start from scratch")
	rootCmd.AddCommand(initCmd)
}
