package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jzempel/continuity/internal/workflow"
)

var reviewCmd = &cobra.Command{
	Use:     "review",
	Short:   "Push the current branch and open a pull request",
	GroupID: groupWork,
	Long: `Push the current work branch and open a pull request (GitHub) or merge
request (GitLab) against the branch it was started from. Running review
again updates the open request.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		opts := workflow.ReviewOptions{}
		opts.Title, _ = cmd.Flags().GetString("title")
		opts.Body, _ = cmd.Flags().GetString("body")
		opts.Draft, _ = cmd.Flags().GetBool("draft")

		r, err := engine.Review(rootCtx, opts)
		finishReport(r, err, func(r *workflow.Report) string {
			verb := "Updated"
			if s := r.Step(workflow.StepPullRequest); s != nil && strings.HasPrefix(s.Detail, "opened") {
				verb = "Opened"
			}
			return fmt.Sprintf("%s %s into %s", verb, r.PullRequest.URL, r.Base)
		})
	},
}

func init() {
	reviewCmd.Flags().String("title", "", "Pull request title (default from templates.pr-title)")
	reviewCmd.Flags().String("body", "", "Pull request body (default from templates.pr-body)")
	reviewCmd.Flags().Bool("draft", false, "Open the pull request as a draft")
	rootCmd.AddCommand(reviewCmd)
}
