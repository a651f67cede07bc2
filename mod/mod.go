// Package mod implements the transformation passes that run between parsing
// and emission, and the engine that runs them in configured order.
//
// A mod receives the previous mod's declaration set and returns the set the
// next mod sees, plus diagnostics. Ownership of the set moves with the call:
// a mod may change it in place and must not keep a reference to it after
// returning. Mods never rewrite a declaration's native name, type or
// parameter types; they attach attributes.
package mod

import (
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/go-viper/mapstructure/v2"

	"github.com/teranos/bindgen/config"
	"github.com/teranos/bindgen/decl"
	"github.com/teranos/bindgen/diag"
	"github.com/teranos/bindgen/errors"
)

// Mod is one transformation pass.
type Mod interface {
	Name() string
	Traits() Traits
	Apply(set *decl.Set, cfg *config.Config) (*decl.Set, []diag.Diagnostic)
}

// Traits declare what a mod depends on and what it changes. Build uses them
// to warn about orderings that cannot work.
type Traits struct {
	// NeedsLocations mods read Declaration.Loc.
	NeedsLocations bool
	// DiscardsLocations mods clear Declaration.Loc.
	DiscardsLocations bool
	// Injects mods add verbatim code snippets.
	Injects bool
	// AffectsBehavior mods change what the emitted code does or is called.
	AffectsBehavior bool
}

// Factory builds a configured mod from its parameters.
type Factory func(params map[string]interface{}) (Mod, error)

// Info describes a registered mod.
type Info struct {
	Name        string
	Version     string
	Description string
}

// decodeParams decodes mod parameters into out. Unknown keys are errors so
// a misspelled parameter never silently does nothing.
func decodeParams(params map[string]interface{}, out interface{}) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
		Result:           out,
		DecodeHook:       mapstructure.StringToSliceHookFunc(","),
	})
	if err != nil {
		return errors.Wrap(err, "failed to create parameter decoder")
	}
	if err := dec.Decode(params); err != nil {
		return errors.WithSecondaryError(errors.ErrInvalidConfig, err)
	}
	return nil
}

// patterns is a list of doublestar name patterns.
type patterns []string

func (ps patterns) validate(param string) error {
	for _, p := range ps {
		if !doublestar.ValidatePattern(p) {
			return errors.InvalidConfigf("%s: invalid pattern %q", param, p)
		}
	}
	return nil
}

// match reports whether name matches any pattern.
func (ps patterns) match(name string) bool {
	for _, p := range ps {
		if ok, _ := doublestar.Match(p, name); ok {
			return true
		}
	}
	return false
}

// first returns the index of the first matching pattern, or -1.
func (ps patterns) first(name string) int {
	for i, p := range ps {
		if ok, _ := doublestar.Match(p, name); ok {
			return i
		}
	}
	return -1
}

// parseKinds validates declaration kind names from parameters.
func parseKinds(param string, names []string) (map[decl.Kind]bool, error) {
	if len(names) == 0 {
		return nil, nil
	}
	out := make(map[decl.Kind]bool, len(names))
	for _, n := range names {
		k, err := decl.ParseKind(n)
		if err != nil {
			return nil, errors.Wrapf(errors.WithSecondaryError(errors.ErrInvalidConfig, err), "%s", param)
		}
		out[k] = true
	}
	return out, nil
}

// kindOK treats a nil kind filter as "all kinds".
func kindOK(kinds map[decl.Kind]bool, k decl.Kind) bool {
	return kinds == nil || kinds[k]
}

type pair struct{ key, value string }

// parsePairs reads "KEY=VALUE" entries. Parameter maps keyed by native
// names are written this way because config keys are case-folded.
func parsePairs(param string, raw []string) ([]pair, error) {
	out := make([]pair, 0, len(raw))
	for _, r := range raw {
		k, v, ok := strings.Cut(r, "=")
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		if !ok || k == "" || v == "" {
			return nil, errors.WithHint(
				errors.InvalidConfigf("%s: entry %q is not KEY=VALUE", param, r),
				`write entries like "vkCreateInstance=CreateInstance"`,
			)
		}
		out = append(out, pair{key: k, value: v})
	}
	return out, nil
}

// splitTarget splits "function.param" into its parts; param is "" for a
// bare declaration name.
func splitTarget(target string) (name, param string) {
	name, param, _ = strings.Cut(target, ".")
	return name, param
}

// anyMatch reports whether any declaration of the allowed kinds matches ps.
func anyMatch(set *decl.Set, ps patterns, kinds map[decl.Kind]bool) bool {
	for _, d := range set.All() {
		if kindOK(kinds, d.Kind) && ps.match(d.Name) {
			return true
		}
	}
	return false
}
