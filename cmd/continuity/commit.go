package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jzempel/continuity/internal/config"
	"github.com/jzempel/continuity/internal/debug"
)

// commitCmd is run by the prepare-commit-msg hook. It never fails the
// commit: any problem leaves the message as it is.
var commitCmd = &cobra.Command{
	Use:    "commit <file> [source [sha]]",
	Short:  "Prepare a commit message (git hook)",
	Hidden: true,
	Args:   cobra.RangeArgs(1, 3),
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) > 1 && (args[1] == "merge" || args[1] == "squash") {
			return
		}
		if err := prepareCommitFile(args[0]); err != nil {
			debug.Logf("commit hook: %v\n", err)
		}
	},
}

func prepareCommitFile(path string) error {
	e, err := openEngine(rootCtx, config.Store{}, config.Load())
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path) // #nosec G304 - path is supplied by git
	if err != nil {
		return err
	}
	message, err := e.PrepareCommitMessage(rootCtx, string(data))
	if err != nil {
		return err
	}
	if message == string(data) {
		return nil
	}
	return os.WriteFile(path, []byte(message), 0o600)
}

var currentCmd = &cobra.Command{
	Use:    "current",
	Short:  "Print the item id bound to the current branch",
	Hidden: true,
	Args:   cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		id, err := engine.CurrentID(rootCtx)
		if err != nil {
			fatal(err)
		}
		if jsonOutput {
			outputJSON(map[string]string{"id": id})
			return
		}
		fmt.Println(id)
	},
}

func init() {
	rootCmd.AddCommand(commitCmd, currentCmd)
}
