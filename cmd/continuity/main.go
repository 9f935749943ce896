package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jzempel/continuity/internal/config"
	"github.com/jzempel/continuity/internal/debug"
	"github.com/jzempel/continuity/internal/telemetry"
	"github.com/jzempel/continuity/internal/types"
	"github.com/jzempel/continuity/internal/workflow"

	// Tracker backends register themselves.
	_ "github.com/jzempel/continuity/internal/tracker/github"
	_ "github.com/jzempel/continuity/internal/tracker/jira"
	_ "github.com/jzempel/continuity/internal/tracker/pivotal"
)

var (
	jsonOutput  bool
	verboseFlag bool
	quietFlag   bool
	noPager     bool

	rootCtx    context.Context
	rootCancel context.CancelFunc

	// command is the telemetry span for this invocation.
	command *telemetry.Command

	// engine is opened in PersistentPreRun for commands that talk to the tracker.
	engine *workflow.Engine
)

// Command groups for organized help output.
const (
	groupWork  = "work"
	groupItems = "items"
	groupSetup = "setup"
)

// offlineCommands run without an initialized tracker.
var offlineCommands = map[string]bool{
	"version":    true,
	"init":       true,
	"commit":     true,
	"help":       true,
	"completion": true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Enable verbose/debug output")
	rootCmd.PersistentFlags().BoolVarP(&quietFlag, "quiet", "q", false, "Suppress non-essential output (errors only)")
	rootCmd.PersistentFlags().BoolVar(&noPager, "no-pager", false, "Disable pager output")
	rootCmd.Flags().Bool("version", false, "Print version information")

	rootCmd.AddGroup(
		&cobra.Group{ID: groupWork, Title: "Working On Items:"},
		&cobra.Group{ID: groupItems, Title: "Viewing Items:"},
		&cobra.Group{ID: groupSetup, Title: "Setup:"},
	)
	rootCmd.SetHelpCommandGroupID(groupSetup)
	rootCmd.SetCompletionCommandGroupID(groupSetup)
}

var rootCmd = &cobra.Command{
	Use:   "continuity",
	Short: "continuity - Git workflow tied to your issue tracker",
	Long: `Keeps git branches and tracker items moving together. Start work on an
issue or story, open it for review and merge it when finished; continuity
updates GitHub Issues, Pivotal Tracker or Jira along the way.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	Run: func(cmd *cobra.Command, args []string) {
		if v, _ := cmd.Flags().GetBool("version"); v {
			fmt.Printf("continuity version %s (%s)\n", Version, Build)
			return
		}
		_ = cmd.Help()
	},
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupSignalContext()
		applyVerbosityFlags()

		if err := config.Initialize(); err != nil {
			FatalErrorWithHint(err.Error(), "Fix or remove the configuration file and retry")
		}
		initTelemetry(cmd)

		if offlineCommands[cmd.Name()] {
			return
		}
		e, err := openEngine(rootCtx, config.Store{}, config.Load())
		if err != nil {
			fatal(err)
		}
		engine = e
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		endCommand(nil)
	},
}

// initTelemetry starts the command span. Resource attributes name the
// configured tracker and the remote repository.
func initTelemetry(cmd *cobra.Command) {
	cfg := telemetry.FromEnv()
	if cfg.Enabled {
		if err := telemetry.Init(rootCtx, cfg, workspaceFor(rootCtx, config.Load())); err != nil {
			debug.Logf("telemetry disabled: %v\n", err)
		}
	}
	rootCtx, command = telemetry.StartCommand(rootCtx, cmd.Name())
}

// endCommand records the outcome, flushes telemetry and releases the
// signal context.
func endCommand(err error) {
	command.End(err)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	telemetry.Shutdown(ctx)
	if rootCancel != nil {
		rootCancel()
	}
}

// setupSignalContext cancels in-flight work on Ctrl+C or SIGTERM. The
// engine checks the context between steps, so an interrupted command
// stops before its next side effect.
func setupSignalContext() {
	rootCtx, rootCancel = signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func applyVerbosityFlags() {
	debug.SetVerbose(verboseFlag)
	debug.SetQuiet(quietFlag || jsonOutput)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		fmt.Fprintf(os.Stderr, "Run '%s --help' for usage.\n", rootCmd.CommandPath())
		exit(types.ExitUsage, err)
	}
}
