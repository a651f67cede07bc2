package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/teranos/bindgen/config"
	"github.com/teranos/bindgen/errors"
)

// ConfigCmd manages bindgen.toml.
var ConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Create and inspect bindgen configuration",
	Long: `Create and inspect bindgen configuration.

Configuration sources (in order of precedence):
1. Environment variables (BINDGEN_* prefix, e.g. BINDGEN_OUTPUT_DIR)
2. Project config (./bindgen.toml, searched upward, or --config)
3. Global config (~/.bindgen/config.toml)
4. Default values

Examples:
  bindgen config init                 # Write ./bindgen.toml
  bindgen config show                 # Effective configuration as TOML
  bindgen config show --format yaml   # ... as YAML
  bindgen config where                # Which files were merged`,
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a starter bindgen.toml",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	RunE:  runConfigShow,
}

var configWhereCmd = &cobra.Command{
	Use:   "where",
	Short: "Show where configuration is loaded from",
	RunE:  runConfigWhere,
}

var (
	configForce  bool
	configFormat string
)

func init() {
	configInitCmd.Flags().BoolVarP(&configForce, "force", "f", false, "Overwrite an existing file (a .back1 copy is kept)")
	configShowCmd.Flags().StringVar(&configFormat, "format", "toml", "Output format: toml, json, yaml")

	ConfigCmd.AddCommand(configInitCmd)
	ConfigCmd.AddCommand(configShowCmd)
	ConfigCmd.AddCommand(configWhereCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := config.ProjectFileName
	if len(args) == 1 {
		path = args[0]
	}
	if err := config.Init(path, configForce); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}

	out := cmd.OutOrStdout()
	switch configFormat {
	case "json":
		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return errors.Wrap(err, "failed to marshal config to JSON")
		}
		fmt.Fprintln(out, string(data))
	case "yaml":
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return errors.Wrap(err, "failed to marshal config to YAML")
		}
		fmt.Fprintf(out, "# bindgen configuration\n%s", data)
	case "toml":
		data, err := config.Marshal(cfg)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "# bindgen configuration\n%s", data)
	default:
		return errors.Newf("unsupported format: %s (supported: toml, json, yaml)", configFormat)
	}
	return nil
}

func runConfigWhere(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		wd, _ := os.Getwd()
		path = config.FindProjectConfig(wd)
	}

	mark := func(p string) string {
		if p == "" {
			return "(none)"
		}
		if _, err := os.Stat(p); err != nil {
			return p + " (missing)"
		}
		return p
	}
	fmt.Fprintf(out, "env:     %s_* variables\n", config.EnvPrefix)
	fmt.Fprintf(out, "project: %s\n", mark(path))
	fmt.Fprintf(out, "global:  %s\n", mark(config.GlobalConfigPath()))
	return nil
}
