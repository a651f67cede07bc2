package config

import (
	"go/token"
	"strings"

	"github.com/teranos/bindgen/errors"
)

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	// Zero means "one per CPU"; negative is invalid
	if c.Generator.MaxWorkers < 0 {
		return errors.InvalidConfigf("generator.max_workers must be >= 0, got %d", c.Generator.MaxWorkers)
	}
	// Zero means no deadline
	if c.Generator.UnitTimeout < 0 {
		return errors.InvalidConfigf("generator.unit_timeout must be >= 0, got %s", c.Generator.UnitTimeout)
	}
	if c.Generator.KillGrace < 0 {
		return errors.InvalidConfigf("generator.kill_grace must be >= 0, got %s", c.Generator.KillGrace)
	}

	switch c.Output.Granularity {
	case GranularityExtension, GranularityKind, GranularitySingle:
	default:
		return errors.WithHintf(
			errors.InvalidConfigf("output.granularity %q is not supported", c.Output.Granularity),
			"use one of %s, %s, %s", GranularityExtension, GranularityKind, GranularitySingle,
		)
	}
	if err := validatePackage("output.package", c.Output.Package); err != nil {
		return err
	}
	if c.Manifest.Enabled && c.Manifest.Path == "" {
		return errors.InvalidConfigf("manifest.path cannot be empty when the manifest is enabled")
	}

	seen := make(map[string]bool, len(c.Units))
	for i, u := range c.Units {
		if strings.TrimSpace(u.Namespace) == "" {
			return errors.InvalidConfigf("units[%d].namespace cannot be empty", i)
		}
		if seen[u.Namespace] {
			return errors.WithHint(
				errors.InvalidConfigf("unit namespace %q is used more than once", u.Namespace),
				"namespaces name output directories and must be unique",
			)
		}
		seen[u.Namespace] = true
		if len(u.Headers) == 0 {
			return errors.InvalidConfigf("unit %q has no headers", u.Namespace)
		}
		if u.Package != "" {
			if err := validatePackage("units."+u.Namespace+".package", u.Package); err != nil {
				return err
			}
		}
	}

	for i, m := range c.Mods {
		if strings.TrimSpace(m.Name) == "" {
			return errors.InvalidConfigf("mods[%d].name cannot be empty", i)
		}
	}

	return nil
}

func validatePackage(key, name string) error {
	if !token.IsIdentifier(name) || strings.ToLower(name) != name {
		return errors.InvalidConfigf("%s %q is not a valid Go package name", key, name)
	}
	return nil
}
