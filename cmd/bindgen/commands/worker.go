package commands

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/teranos/bindgen/logger"
	"github.com/teranos/bindgen/parse"
	"github.com/teranos/bindgen/subagent"
)

// WorkerCmd is the worker side of generate. It is started by the
// coordinator with the serialized unit options as its only argument and
// reports over stdout with the I:/W:/T:/E: line protocol.
var WorkerCmd = &cobra.Command{
	Use:    subagent.WorkerCommand + " <options>",
	Short:  "Parse one unit (started by generate)",
	Hidden: true,
	Args:   cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		handler := parse.WorkerHandler(&parse.DirectFrontend{})
		code := subagent.Serve(cmd.Context(), args[0], os.Stdout, logger.Level, handler)
		if code != subagent.ExitOK {
			// already reported on stdout as E: lines
			return &ExitError{Code: code}
		}
		return nil
	},
}
