package subagent

import (
	"encoding/json"
	"strings"

	"github.com/teranos/bindgen/errors"
)

// OutputHints tell the worker where its results go.
type OutputHints struct {
	// Dir is the directory generated files are written to.
	Dir string `json:"dir,omitempty"`
	// Package is the Go package name of the generated code.
	Package string `json:"package,omitempty"`
	// Payload is the file the worker writes the parsed unit to.
	Payload string `json:"payload,omitempty"`
}

// Options describe one parse unit. They are treated as immutable once
// built; use Clone before changing a copy.
type Options struct {
	Namespace   string      `json:"namespace"`
	Headers     []string    `json:"headers"`
	IncludeDirs []string    `json:"include_dirs,omitempty"`
	Defines     []string    `json:"defines,omitempty"`
	Output      OutputHints `json:"output"`
}

// Clone returns a deep copy of o.
func (o Options) Clone() Options {
	c := o
	c.Headers = append([]string(nil), o.Headers...)
	c.IncludeDirs = append([]string(nil), o.IncludeDirs...)
	c.Defines = append([]string(nil), o.Defines...)
	return c
}

// Validate checks the fields the worker cannot run without.
func (o Options) Validate() error {
	if strings.TrimSpace(o.Namespace) == "" {
		return errors.InvalidConfigf("unit namespace is empty")
	}
	if len(o.Headers) == 0 {
		return errors.WithHint(
			errors.InvalidConfigf("unit %q has no headers", o.Namespace),
			"list at least one header in the unit's headers array",
		)
	}
	for _, d := range o.Defines {
		name, _, _ := strings.Cut(d, "=")
		if strings.TrimSpace(name) == "" {
			return errors.InvalidConfigf("unit %q has a define with no name: %q", o.Namespace, d)
		}
	}
	return nil
}

// DefineMap splits Defines into names and values. A bare NAME maps to "".
func (o Options) DefineMap() map[string]string {
	m := make(map[string]string, len(o.Defines))
	for _, d := range o.Defines {
		name, value, _ := strings.Cut(d, "=")
		m[strings.TrimSpace(name)] = value
	}
	return m
}

// Encode serializes o for the worker command line. The result is JSON with
// every double quote escaped.
func (o Options) Encode() (string, error) {
	b, err := json.Marshal(o)
	if err != nil {
		return "", errors.Wrap(err, "failed to encode subagent options")
	}
	return strings.ReplaceAll(string(b), `"`, `\"`), nil
}

// DecodeOptions reverses Encode.
func DecodeOptions(s string) (Options, error) {
	var o Options
	raw := strings.ReplaceAll(s, `\"`, `"`)
	if err := json.Unmarshal([]byte(raw), &o); err != nil {
		return Options{}, errors.WithHint(
			errors.Wrap(err, "failed to decode subagent options"),
			"the worker subcommand is started by the generator; it is not meant to be run by hand",
		)
	}
	return o, nil
}
