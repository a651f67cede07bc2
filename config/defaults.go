package config

import (
	"time"

	"github.com/spf13/viper"
)

// File names and locations.
const (
	ProjectFileName = "bindgen.toml"
	GlobalDirName   = ".bindgen"
	GlobalFileName  = "config.toml"
	EnvPrefix       = "BINDGEN"
)

// DefaultMods returns the pipeline written by `bindgen config init`. Mods
// that cannot run without parameters get example ones; exclude ships
// disabled since any pattern is project specific.
func DefaultMods() []ModConfig {
	off := false
	return []ModConfig{
		{Name: "exclude", Enabled: &off, Params: map[string]interface{}{
			"names": []string{"*_MAX_ENUM"},
			"kinds": []string{"constant"},
		}},
		{Name: "extensions", Params: map[string]interface{}{
			"suffixes": []string{"KHR", "EXT"},
		}},
		{Name: "flow"},
		{Name: "rename"},
		{Name: "typemap"},
		{Name: "overloads"},
		{Name: "location-docs"},
		{Name: "lint"},
		{Name: "inject"},
		{Name: "strip-locations"},
	}
}

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	// Generator
	v.SetDefault("generator.max_workers", 0) // 0 = one per CPU
	v.SetDefault("generator.unit_timeout", 5*time.Minute)
	v.SetDefault("generator.kill_grace", 2*time.Second)
	v.SetDefault("generator.fail_fast", false)
	v.SetDefault("generator.in_process", false)

	// Parse
	v.SetDefault("parse.include_dirs", []string{})
	v.SetDefault("parse.defines", []string{})

	// Output
	v.SetDefault("output.dir", "bindings")
	v.SetDefault("output.package", "bindings")
	v.SetDefault("output.granularity", GranularityExtension)
	v.SetDefault("output.write", true)

	// Manifest
	v.SetDefault("manifest.enabled", true)
	v.SetDefault("manifest.path", ".bindgen/manifest.db")

	// Report
	v.SetDefault("report.path", "")
}
