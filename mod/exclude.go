package mod

import (
	"github.com/teranos/bindgen/config"
	"github.com/teranos/bindgen/decl"
	"github.com/teranos/bindgen/diag"
	"github.com/teranos/bindgen/errors"
)

// NameExclude suppresses declarations by name pattern and kind.
const NameExclude = "exclude"

func init() {
	registerBuiltin(Info{
		Name:        NameExclude,
		Version:     "1.0.0",
		Description: "suppress declarations matching name patterns or kinds",
	}, newExclude)
}

type excludeParams struct {
	Names  []string `mapstructure:"names"`
	Kinds  []string `mapstructure:"kinds"`
	Reason string   `mapstructure:"reason"`
	// Remove drops matches from the set instead of marking them.
	Remove bool `mapstructure:"remove"`
}

type excludeMod struct {
	names  patterns
	kinds  map[decl.Kind]bool
	reason string
	remove bool
}

func newExclude(params map[string]interface{}) (Mod, error) {
	var p excludeParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if len(p.Names) == 0 && len(p.Kinds) == 0 {
		return nil, errors.InvalidConfigf("exclude needs names or kinds")
	}
	names := patterns(p.Names)
	if err := names.validate("names"); err != nil {
		return nil, err
	}
	kinds, err := parseKinds("kinds", p.Kinds)
	if err != nil {
		return nil, err
	}
	if p.Reason == "" {
		p.Reason = "excluded by configuration"
	}
	return &excludeMod{names: names, kinds: kinds, reason: p.Reason, remove: p.Remove}, nil
}

func (m *excludeMod) Name() string   { return NameExclude }
func (m *excludeMod) Traits() Traits { return Traits{AffectsBehavior: true} }

func (m *excludeMod) matches(d *decl.Declaration) bool {
	if !kindOK(m.kinds, d.Kind) {
		return false
	}
	return len(m.names) == 0 || m.names.match(d.Name)
}

func (m *excludeMod) Apply(set *decl.Set, _ *config.Config) (*decl.Set, []diag.Diagnostic) {
	var ds []diag.Diagnostic
	for _, p := range m.names {
		if !anyMatch(set, patterns{p}, m.kinds) {
			ds = append(ds, diag.Warningf(diag.ModUnresolved, "pattern %q matched no declaration", p))
		}
	}

	if m.remove {
		return set.Filter(func(d *decl.Declaration) bool { return !m.matches(d) }), ds
	}
	for _, d := range set.All() {
		if m.matches(d) {
			d.Attrs = d.Attrs.With(decl.Exclude{Reason: m.reason})
		}
	}
	return set, ds
}
