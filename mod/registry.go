package mod

import (
	"sort"
	"sync"

	"github.com/Masterminds/semver/v3"

	"github.com/teranos/bindgen/errors"
)

type registration struct {
	info    Info
	version *semver.Version
	factory Factory
}

// Registry maps mod names to factories.
type Registry struct {
	mu   sync.RWMutex
	mods map[string]registration
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{mods: make(map[string]registration)}
}

// Register adds a mod. Names must be unique and versions valid semver.
func (r *Registry) Register(info Info, factory Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if info.Name == "" {
		return errors.New("mod name cannot be empty")
	}
	if _, exists := r.mods[info.Name]; exists {
		return errors.Newf("mod already registered: %s", info.Name)
	}
	v, err := semver.NewVersion(info.Version)
	if err != nil {
		return errors.Wrapf(err, "mod %s has invalid version %q", info.Name, info.Version)
	}

	r.mods[info.Name] = registration{info: info, version: v, factory: factory}
	return nil
}

// Get retrieves a mod by name
func (r *Registry) Get(name string) (Info, Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.mods[name]
	return reg.info, reg.factory, ok
}

// List returns every registered mod sorted by name.
func (r *Registry) List() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Info, 0, len(r.mods))
	for _, reg := range r.mods {
		out = append(out, reg.info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Names returns every registered mod name, sorted.
func (r *Registry) Names() []string {
	infos := r.List()
	names := make([]string, len(infos))
	for i, info := range infos {
		names[i] = info.Name
	}
	return names
}

// checkVersion verifies the registered version against a constraint such
// as "^1.2" or ">= 1.0, < 2". An empty constraint accepts any version.
func (r *Registry) checkVersion(name, constraint string) error {
	if constraint == "" {
		return nil
	}
	r.mu.RLock()
	reg, ok := r.mods[name]
	r.mu.RUnlock()
	if !ok {
		return errors.Wrapf(errors.ErrUnknownMod, "%s", name)
	}

	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return errors.Wrapf(errors.WithSecondaryError(errors.ErrInvalidConfig, err),
			"mod %s: invalid version constraint %q", name, constraint)
	}
	if !c.Check(reg.version) {
		return errors.WithHintf(
			errors.InvalidConfigf("mod %s version %s does not satisfy %q", name, reg.version, constraint),
			"this build provides %s %s", name, reg.version,
		)
	}
	return nil
}

// Default returns a registry holding every built-in mod.
func Default() *Registry {
	r := NewRegistry()
	for _, b := range builtins {
		if err := r.Register(b.info, b.factory); err != nil {
			panic(err)
		}
	}
	return r
}

type builtin struct {
	info    Info
	factory Factory
}

// builtins is filled by the init functions of the mod files.
var builtins []builtin

func registerBuiltin(info Info, factory Factory) {
	builtins = append(builtins, builtin{info: info, factory: factory})
}
