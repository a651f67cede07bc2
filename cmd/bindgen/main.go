package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/teranos/bindgen/cmd/bindgen/commands"
	"github.com/teranos/bindgen/errors"
	"github.com/teranos/bindgen/logger"
)

var rootCmd = &cobra.Command{
	Use:   "bindgen",
	Short: "bindgen - Go bindings from native C headers",
	Long: `bindgen - Go bindings from native C headers.

bindgen parses C API headers in isolated worker processes, runs the
configured mod pipeline over the declarations and emits Go source.

Available commands:
  generate - Parse, transform and emit every configured unit
  check    - Verify that emitted bindings are up to date
  config   - Create and inspect bindgen.toml
  mods     - List the available mods
  version  - Show version information

Examples:
  bindgen config init          # Write a starter bindgen.toml
  bindgen generate -v          # Generate with progress logs
  bindgen generate --watch     # Regenerate when headers or config change
  bindgen check                # Exit 1 when bindings are stale`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		verbosity, _ := cmd.Flags().GetCount("verbose")
		jsonLogs, _ := cmd.Flags().GetBool("json-logs")
		if err := logger.Initialize(verbosity, jsonLogs); err != nil {
			return errors.Wrap(err, "failed to initialize logger")
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Cleanup()
	},
}

func init() {
	rootCmd.PersistentFlags().CountP("verbose", "v", "Increase output verbosity (repeat for more detail: -v, -vv, -vvv)")
	rootCmd.PersistentFlags().StringP("config", "c", "", "Project config file (default: nearest bindgen.toml)")
	rootCmd.PersistentFlags().Bool("json-logs", false, "Write logs as JSON")

	rootCmd.AddCommand(commands.GenerateCmd)
	rootCmd.AddCommand(commands.CheckCmd)
	rootCmd.AddCommand(commands.WorkerCmd)
	rootCmd.AddCommand(commands.ConfigCmd)
	rootCmd.AddCommand(commands.ModsCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err == nil {
		return
	}

	var exit *commands.ExitError
	if errors.As(err, &exit) {
		if exit.Err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", exit.Err)
		}
		os.Exit(exit.Code)
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	for _, hint := range errors.GetAllHints(err) {
		fmt.Fprintf(os.Stderr, "Hint: %s\n", hint)
	}
	os.Exit(1)
}
