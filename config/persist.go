package config

import (
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"

	"github.com/teranos/bindgen/errors"
)

// document is the on-disk shape of a Config. Durations are written as
// strings so viper reads them back unchanged.
type document struct {
	Generator generatorDoc             `toml:"generator"`
	Parse     ParseConfig              `toml:"parse"`
	Output    outputDoc                `toml:"output"`
	Manifest  manifestDoc              `toml:"manifest"`
	Report    reportDoc                `toml:"report"`
	Units     []unitDoc                `toml:"units"`
	Mods      []map[string]interface{} `toml:"mods"`
}

type generatorDoc struct {
	MaxWorkers  int    `toml:"max_workers"`
	UnitTimeout string `toml:"unit_timeout"`
	KillGrace   string `toml:"kill_grace"`
	FailFast    bool   `toml:"fail_fast"`
	InProcess   bool   `toml:"in_process"`
}

type outputDoc struct {
	Dir         string `toml:"dir"`
	Package     string `toml:"package"`
	Granularity string `toml:"granularity"`
	Write       bool   `toml:"write"`
}

type manifestDoc struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

type reportDoc struct {
	Path string `toml:"path,omitempty"`
}

type unitDoc struct {
	Namespace   string   `toml:"namespace"`
	Headers     []string `toml:"headers"`
	IncludeDirs []string `toml:"include_dirs,omitempty"`
	Defines     []string `toml:"defines,omitempty"`
	Package     string   `toml:"package,omitempty"`
}

// Marshal renders c as TOML that Load reads back to an equal Config.
func Marshal(c *Config) ([]byte, error) {
	doc := document{
		Generator: generatorDoc{
			MaxWorkers:  c.Generator.MaxWorkers,
			UnitTimeout: c.Generator.UnitTimeout.String(),
			KillGrace:   c.Generator.KillGrace.String(),
			FailFast:    c.Generator.FailFast,
			InProcess:   c.Generator.InProcess,
		},
		Parse: c.Parse,
		Output: outputDoc{
			Dir:         c.Output.Dir,
			Package:     c.Output.Package,
			Granularity: c.Output.Granularity,
			Write:       c.Output.Write,
		},
		Manifest: manifestDoc(c.Manifest),
		Report:   reportDoc(c.Report),
	}
	for _, u := range c.Units {
		doc.Units = append(doc.Units, unitDoc(u))
	}
	for _, m := range c.Mods {
		entry := make(map[string]interface{}, len(m.Params)+3)
		for k, v := range m.Params {
			entry[k] = v
		}
		entry["name"] = m.Name
		if m.Version != "" {
			entry["version"] = m.Version
		}
		if m.Enabled != nil {
			entry["enabled"] = *m.Enabled
		}
		doc.Mods = append(doc.Mods, entry)
	}

	data, err := toml.Marshal(doc)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal config")
	}
	return data, nil
}

// Template returns the config written by `bindgen config init`: defaults,
// one example unit and the default mod pipeline.
func Template() *Config {
	v := viper.New()
	SetDefaults(v)
	c, _ := LoadWithViper(v)
	c.Units = []UnitConfig{{
		Namespace: "example",
		Headers:   []string{"include/example.h"},
	}}
	c.Mods = DefaultMods()
	return c
}

// Save writes c to path, rotating up to three backups of the previous file.
func Save(c *Config, path string) error {
	data, err := Marshal(c)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return errors.Wrap(err, "failed to create config directory")
	}
	if err := createBackup(path); err != nil {
		return errors.Wrap(err, "failed to create backup")
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.Wrapf(err, "failed to write config %s", path)
	}
	return nil
}

// Init writes the template to path. An existing file is kept unless force
// is set.
func Init(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return errors.WithHint(
			errors.Newf("config file %s already exists", path),
			"pass --force to overwrite it (a .back1 copy is kept)",
		)
	}
	return Save(Template(), path)
}

// createBackup creates rotating backups (.back1, .back2, .back3) before modifying config
func createBackup(configPath string) error {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil
	}

	back3 := configPath + ".back3"
	back2 := configPath + ".back2"
	back1 := configPath + ".back1"

	if err := os.Remove(back3); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "failed to delete old backup %s", back3)
	}
	if _, err := os.Stat(back2); err == nil {
		if err := os.Rename(back2, back3); err != nil {
			return errors.Wrap(err, "failed to rotate .back2 to .back3")
		}
	}
	if _, err := os.Stat(back1); err == nil {
		if err := os.Rename(back1, back2); err != nil {
			return errors.Wrap(err, "failed to rotate .back1 to .back2")
		}
	}

	content, err := os.ReadFile(configPath)
	if err != nil {
		return errors.Wrap(err, "failed to read config for backup")
	}
	if err := os.WriteFile(back1, content, 0644); err != nil {
		return errors.Wrap(err, "failed to create .back1")
	}
	return nil
}
