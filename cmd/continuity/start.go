package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jzempel/continuity/internal/workflow"
)

var startCmd = &cobra.Command{
	Use:     "start [selector]",
	Short:   "Start a branch for the next available item",
	GroupID: groupWork,
	Long: `Create a work branch from the integration branch for a tracker item and
mark the item started, claiming it if nobody owns it.

Without a selector the first available item is picked: the first one that
is unassigned or assigned to you, in the tracker's order.

Examples:
  continuity start            # next available item
  continuity start 42         # GitHub issue #42
  continuity start PROJ-12    # Jira issue
  continuity start -u         # only items assigned to you`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		opts := startOptions(cmd, args)
		r, err := engine.Start(rootCtx, opts)
		finishReport(r, err, func(r *workflow.Report) string {
			return fmt.Sprintf("Started %s on %s", r.Item.Key, r.Branch)
		})
	},
}

// startOptions reads the start flags. The assigned-only flags only
// override the exclusive setting when given.
func startOptions(cmd *cobra.Command, args []string) workflow.StartOptions {
	opts := workflow.StartOptions{}
	if len(args) > 0 {
		opts.Selector = args[0]
	}
	opts.Ignore, _ = cmd.Flags().GetBool("ignore")
	opts.Force, _ = cmd.Flags().GetBool("force")
	for _, name := range []string{"assignedtoyou", "myissues", "mywork"} {
		if cmd.Flags().Changed(name) {
			v, _ := cmd.Flags().GetBool(name)
			opts.AssignedOnly = &v
		}
	}
	return opts
}

func init() {
	startCmd.Flags().BoolP("assignedtoyou", "u", false, "Only consider items assigned to you")
	startCmd.Flags().Bool("myissues", false, "Alias for --assignedtoyou")
	startCmd.Flags().BoolP("mywork", "m", false, "Alias for --assignedtoyou (Pivotal Tracker naming)")
	startCmd.Flags().BoolP("ignore", "i", false, "Start even if the item is owned by someone else or already started")
	startCmd.Flags().BoolP("force", "f", false, "Start from the current branch instead of the integration branch")
	rootCmd.AddCommand(startCmd)
}
