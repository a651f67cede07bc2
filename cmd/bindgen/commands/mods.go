package commands

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/bindgen/mod"
)

// ModsCmd lists the mods a config can name.
var ModsCmd = &cobra.Command{
	Use:   "mods",
	Short: "List the available mods",
	RunE: func(cmd *cobra.Command, args []string) error {
		data := pterm.TableData{{"Name", "Version", "Description"}}
		for _, info := range mod.Default().List() {
			data = append(data, []string{info.Name, info.Version, info.Description})
		}
		table, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), table)
		return nil
	},
}
