package config

import (
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-getter"

	"github.com/teranos/bindgen/errors"
)

// ExpandPath resolves a configured path against base. It handles ~ and
// rejects anything go-getter detects as a remote source; headers must be on
// local disk before generation starts.
func ExpandPath(path, base string) (string, error) {
	if path == "" {
		return "", nil
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", errors.Wrap(err, "failed to get home directory")
		}
		return filepath.Join(home, strings.TrimPrefix(path[1:], "/")), nil
	}
	if base == "" {
		base = "."
	}
	if filepath.IsAbs(path) {
		return filepath.Clean(path), nil
	}
	absBase, err := filepath.Abs(base)
	if err != nil {
		return "", errors.Wrap(err, "failed to make base path absolute")
	}

	detected, err := getter.Detect(path, absBase, getter.Detectors)
	if err != nil {
		return "", errors.Wrapf(err, "invalid path %q", path)
	}
	u, err := url.Parse(detected)
	if err != nil {
		return "", errors.Wrapf(err, "failed to parse path %q", path)
	}

	switch u.Scheme {
	case "file":
		return filepath.Clean(u.Path), nil
	case "":
		return filepath.Join(absBase, path), nil
	}
	return "", errors.WithHint(
		errors.Newf("unsupported path scheme %q in %q", u.Scheme, path),
		"fetch remote headers before running bindgen and point the config at the local copy",
	)
}

// resolvePaths expands every path-valued setting against base, the
// directory of the project config file.
func (c *Config) resolvePaths(base string) error {
	var err error
	expand := func(p *string) {
		if err != nil {
			return
		}
		*p, err = ExpandPath(*p, base)
	}
	expandAll := func(ps []string) {
		for i := range ps {
			expand(&ps[i])
		}
	}

	expand(&c.Output.Dir)
	expand(&c.Manifest.Path)
	expand(&c.Report.Path)
	expandAll(c.Parse.IncludeDirs)
	for i := range c.Units {
		expandAll(c.Units[i].IncludeDirs)
		for j, h := range c.Units[i].Headers {
			// headers not found next to the config are left for the
			// include dirs to resolve
			if p, perr := ExpandPath(h, base); perr == nil && exists(p) {
				c.Units[i].Headers[j] = p
			}
		}
	}
	return err
}

func exists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
