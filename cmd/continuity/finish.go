package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jzempel/continuity/internal/workflow"
)

var finishCmd = &cobra.Command{
	Use:     "finish <branch> [-- <git merge args>...]",
	Short:   "Merge a work branch and mark its item finished",
	GroupID: groupWork,
	Long: `Merge a work branch into the current branch, which must be the branch the
work was started from, then delete it and mark the tracker item finished.

A merge conflict stops before anything is deleted or finished. Arguments
after "--" are passed to git merge.`,
	Example: `  continuity finish issue/42-fix-crash
  continuity finish issue/42-fix-crash -- --log -s recursive`,
	Args: func(cmd *cobra.Command, args []string) error {
		if n := len(finishBranchArgs(cmd, args)); n != 1 {
			return fmt.Errorf("accepts 1 branch, received %d", n)
		}
		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		opts := finishOptions(cmd, args)
		r, err := engine.Finish(rootCtx, opts)
		finishReport(r, err, func(r *workflow.Report) string {
			return fmt.Sprintf("Finished %s: merged %s into %s", r.Item.Key, r.Branch, r.Base)
		})
	},
}

// finishBranchArgs returns the arguments before "--".
func finishBranchArgs(cmd *cobra.Command, args []string) []string {
	if dash := cmd.ArgsLenAtDash(); dash >= 0 {
		return args[:dash]
	}
	return args
}

func finishOptions(cmd *cobra.Command, args []string) workflow.FinishOptions {
	opts := workflow.FinishOptions{Branch: finishBranchArgs(cmd, args)[0]}
	if dash := cmd.ArgsLenAtDash(); dash >= 0 {
		opts.MergeArgs = args[dash:]
	}
	opts.DeleteRemote, _ = cmd.Flags().GetBool("delete-remote")
	return opts
}

func init() {
	finishCmd.Flags().Bool("delete-remote", false, "Also delete the branch on the remote (default from delete-remote)")
	rootCmd.AddCommand(finishCmd)
}
