package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/jzempel/continuity/internal/types"
	"github.com/jzempel/continuity/internal/ui"
	"github.com/jzempel/continuity/internal/workflow"
)

var tasksCmd = &cobra.Command{
	Use:     "tasks",
	Short:   "List or check off the current item's tasks",
	GroupID: groupWork,
	Long: `List the checklist of the item bound to the current branch, or mark one
task done (--check) or not done (--uncheck) by its number.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		opts := workflow.TasksOptions{}
		opts.Check, _ = cmd.Flags().GetInt("check")
		opts.Uncheck, _ = cmd.Flags().GetInt("uncheck")

		r, err := engine.Tasks(rootCtx, opts)
		if err != nil || jsonOutput {
			finishReport(r, err, nil)
			return
		}
		writeTasks(os.Stdout, r.Item, r.Tasks)
	},
}

func writeTasks(w io.Writer, item *types.TrackerItem, tasks []types.Task) {
	fmt.Fprintf(w, "%s %s\n", ui.RenderAccent(item.Key), ui.RenderHeader(item.Title))
	if len(tasks) == 0 {
		fmt.Fprintln(w, ui.RenderMuted("  no tasks"))
		return
	}
	for _, t := range tasks {
		fmt.Fprintf(w, "  %2d. %s\n", t.Number, ui.RenderTask(t))
	}
}

func init() {
	tasksCmd.Flags().IntP("check", "x", 0, "Mark task `N` done")
	tasksCmd.Flags().IntP("uncheck", "o", 0, "Mark task `N` not done")
	tasksCmd.MarkFlagsMutuallyExclusive("check", "uncheck")
	rootCmd.AddCommand(tasksCmd)
}
