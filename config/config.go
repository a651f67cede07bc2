// Package config resolves the generator configuration: which units are
// parsed, which mods run in what order with which parameters, and where the
// emitted bindings go.
package config

import (
	"time"

	"github.com/teranos/bindgen/subagent"
)

// Config represents the resolved bindgen configuration. The pipeline treats
// it as read-only.
type Config struct {
	Generator GeneratorConfig `mapstructure:"generator"`
	Parse     ParseConfig     `mapstructure:"parse"`
	Output    OutputConfig    `mapstructure:"output"`
	Manifest  ManifestConfig  `mapstructure:"manifest"`
	Report    ReportConfig    `mapstructure:"report"`
	Units     []UnitConfig    `mapstructure:"units"`
	Mods      []ModConfig     `mapstructure:"mods"`

	// Files lists the config files merged into this value, lowest
	// precedence first.
	Files []string `mapstructure:"-"`
}

// GeneratorConfig controls the unit fan-out.
type GeneratorConfig struct {
	MaxWorkers  int           `mapstructure:"max_workers"`  // 0 = runtime.NumCPU()
	UnitTimeout time.Duration `mapstructure:"unit_timeout"` // 0 = no per-unit deadline
	KillGrace   time.Duration `mapstructure:"kill_grace"`
	FailFast    bool          `mapstructure:"fail_fast"`
	// InProcess parses in the coordinator instead of worker subprocesses.
	// Units are then serialized behind the native parser lock.
	InProcess bool `mapstructure:"in_process"`
}

// ParseConfig holds parse settings shared by every unit.
type ParseConfig struct {
	IncludeDirs []string `mapstructure:"include_dirs"`
	Defines     []string `mapstructure:"defines"`
}

// Granularity values for OutputConfig.Granularity.
const (
	GranularityExtension = "extension"
	GranularityKind      = "kind"
	GranularitySingle    = "single"
)

// OutputConfig configures emission.
type OutputConfig struct {
	Dir         string `mapstructure:"dir"`
	Package     string `mapstructure:"package"`
	Granularity string `mapstructure:"granularity"`
	// Write disables writing artifacts when false; results are still
	// reported.
	Write bool `mapstructure:"write"`
}

// ManifestConfig configures the artifact manifest used by `bindgen check`.
type ManifestConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// ReportConfig configures the run report.
type ReportConfig struct {
	Path string `mapstructure:"path"` // empty = no YAML report
}

// UnitConfig is one parse unit. Namespace identifies the unit everywhere:
// logs, diagnostics, output subdirectory.
type UnitConfig struct {
	Namespace   string   `mapstructure:"namespace"`
	Headers     []string `mapstructure:"headers"`
	IncludeDirs []string `mapstructure:"include_dirs"`
	Defines     []string `mapstructure:"defines"`
	Package     string   `mapstructure:"package"` // defaults to output.package
}

// ModConfig selects one mod. Every key other than the named ones is a
// mod parameter, decoded strictly by the mod itself.
type ModConfig struct {
	Name    string                 `mapstructure:"name"`
	Version string                 `mapstructure:"version"` // semver constraint, empty = any
	Enabled *bool                  `mapstructure:"enabled"` // nil = enabled
	Params  map[string]interface{} `mapstructure:",remain"`
}

// IsEnabled reports whether the mod should run.
func (m ModConfig) IsEnabled() bool {
	return m.Enabled == nil || *m.Enabled
}

// UnitOptions builds the subagent options for one unit. Shared parse
// settings come first so unit defines can override them.
func (c *Config) UnitOptions(u UnitConfig) subagent.Options {
	opts := subagent.Options{
		Namespace:   u.Namespace,
		Headers:     append([]string(nil), u.Headers...),
		IncludeDirs: append(append([]string(nil), u.IncludeDirs...), c.Parse.IncludeDirs...),
		Defines:     append(append([]string(nil), c.Parse.Defines...), u.Defines...),
		Output: subagent.OutputHints{
			Dir:     c.Output.Dir,
			Package: u.Package,
		},
	}
	if opts.Output.Package == "" {
		opts.Output.Package = c.Output.Package
	}
	return opts
}

// Unit returns the unit with the given namespace.
func (c *Config) Unit(namespace string) (UnitConfig, bool) {
	for _, u := range c.Units {
		if u.Namespace == namespace {
			return u, true
		}
	}
	return UnitConfig{}, false
}
