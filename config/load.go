package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/teranos/bindgen/errors"
)

// Load reads the configuration. Precedence, lowest to highest: defaults,
// global config (~/.bindgen/config.toml), project config, BINDGEN_* env vars.
// An empty projectFile searches upward from the working directory for
// bindgen.toml.
func Load(projectFile string) (*Config, error) {
	if projectFile != "" {
		if _, err := os.Stat(projectFile); err != nil {
			return nil, errors.WithHint(
				errors.Wrapf(errors.ErrInvalidConfig, "config file %s: %v", projectFile, err),
				"run `bindgen config init` to create one",
			)
		}
	} else {
		wd, _ := os.Getwd()
		projectFile = FindProjectConfig(wd)
	}

	v := newViper()
	files, err := mergeConfigFiles(v, GlobalConfigPath(), projectFile)
	if err != nil {
		return nil, err
	}

	cfg, err := LoadWithViper(v)
	if err != nil {
		return nil, err
	}
	cfg.Files = files

	base, _ := os.Getwd()
	if projectFile != "" {
		base = filepath.Dir(projectFile)
	}
	if err := cfg.resolvePaths(base); err != nil {
		return nil, errors.Wrap(err, "failed to resolve configured paths")
	}
	return cfg, nil
}

// LoadFromFile loads a single file over the defaults, without the global
// config or env overrides.
func LoadFromFile(configPath string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)
	files, err := mergeConfigFiles(v, configPath)
	if err != nil {
		return nil, err
	}
	cfg, err := LoadWithViper(v)
	if err != nil {
		return nil, err
	}
	cfg.Files = files
	if err := cfg.resolvePaths(filepath.Dir(configPath)); err != nil {
		return nil, errors.Wrap(err, "failed to resolve configured paths")
	}
	return cfg, nil
}

// LoadWithViper decodes a prepared viper instance. Paths are left as they are.
func LoadWithViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(errors.WithSecondaryError(errors.ErrInvalidConfig, err), "failed to unmarshal config")
	}
	return &cfg, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)
	return v
}

// mergeConfigFiles merges the existing files into v in order. Merged values
// sit below env overrides. Returns the files that were merged.
func mergeConfigFiles(v *viper.Viper, paths ...string) ([]string, error) {
	var merged []string
	for _, path := range paths {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); err != nil {
			continue
		}
		tmp := viper.New()
		tmp.SetConfigFile(path)
		tmp.SetConfigType("toml")
		if err := tmp.ReadInConfig(); err != nil {
			return nil, errors.WithHint(
				errors.Wrapf(errors.WithSecondaryError(errors.ErrInvalidConfig, err), "failed to read config file %s", path),
				"the file must be valid TOML",
			)
		}
		if err := v.MergeConfigMap(tmp.AllSettings()); err != nil {
			return nil, errors.Wrapf(err, "failed to merge config file %s", path)
		}
		merged = append(merged, path)
	}
	return merged, nil
}

// FindProjectConfig walks up from dir looking for bindgen.toml. Returns ""
// when none is found.
func FindProjectConfig(dir string) string {
	if dir == "" {
		return ""
	}
	for {
		p := filepath.Join(dir, ProjectFileName)
		if _, err := os.Stat(p); err == nil {
			return p
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// GlobalConfigPath returns ~/.bindgen/config.toml, or "" without a home
// directory. BINDGEN_HOME replaces ~/.bindgen.
func GlobalConfigPath() string {
	if dir := os.Getenv(EnvPrefix + "_HOME"); dir != "" {
		return filepath.Join(dir, GlobalFileName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, GlobalDirName, GlobalFileName)
}
