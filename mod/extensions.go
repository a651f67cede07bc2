package mod

import (
	"strings"

	"github.com/teranos/bindgen/config"
	"github.com/teranos/bindgen/decl"
	"github.com/teranos/bindgen/diag"
	"github.com/teranos/bindgen/errors"
)

// NameExtensions groups declarations into extensions.
const NameExtensions = "extensions"

func init() {
	registerBuiltin(Info{
		Name:        NameExtensions,
		Version:     "1.0.0",
		Description: "assign declarations to extension groups by pattern or vendor suffix",
	}, newExtensions)
}

type extensionRule struct {
	Name  string   `mapstructure:"name"`
	Match []string `mapstructure:"match"`
}

type extensionsParams struct {
	Rules []extensionRule `mapstructure:"rules"`
	// Suffixes are vendor tags such as KHR or EXT; a name ending in one
	// joins the extension of that name.
	Suffixes []string `mapstructure:"suffixes"`
	// Group reorders the set so each extension is contiguous, ordered by
	// first appearance.
	Group bool `mapstructure:"group"`
}

type extensionsMod struct {
	rules    []extensionRule
	suffixes []string
	group    bool
}

func newExtensions(params map[string]interface{}) (Mod, error) {
	var p extensionsParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if len(p.Rules) == 0 && len(p.Suffixes) == 0 {
		return nil, errors.InvalidConfigf("extensions needs rules or suffixes")
	}
	for i, r := range p.Rules {
		if r.Name == "" || len(r.Match) == 0 {
			return nil, errors.InvalidConfigf("extensions: rules[%d] needs name and match", i)
		}
		if err := patterns(r.Match).validate("rules." + r.Name); err != nil {
			return nil, err
		}
	}
	return &extensionsMod{rules: p.Rules, suffixes: p.Suffixes, group: p.Group}, nil
}

func (m *extensionsMod) Name() string   { return NameExtensions }
func (m *extensionsMod) Traits() Traits { return Traits{AffectsBehavior: true} }

func (m *extensionsMod) extensionOf(name string) string {
	for _, r := range m.rules {
		if patterns(r.Match).match(name) {
			return r.Name
		}
	}
	for _, s := range m.suffixes {
		if len(name) > len(s) && strings.HasSuffix(name, s) {
			return s
		}
	}
	return ""
}

func (m *extensionsMod) Apply(set *decl.Set, _ *config.Config) (*decl.Set, []diag.Diagnostic) {
	var ds []diag.Diagnostic
	for _, r := range m.rules {
		if !anyMatch(set, patterns(r.Match), nil) {
			ds = append(ds, diag.Warningf(diag.ModUnresolved, "extension %s matched no declaration", r.Name))
		}
	}

	for _, d := range set.All() {
		if ext := m.extensionOf(d.Name); ext != "" {
			d.Attrs = d.Attrs.With(decl.Extension{Name: ext})
		}
	}

	if m.group {
		// core first, then extensions in order of first appearance
		rank := map[string]int{"": 0}
		for _, d := range set.All() {
			if _, ok := rank[d.ExtensionName()]; !ok {
				rank[d.ExtensionName()] = len(rank)
			}
		}
		set.SortStable(func(a, b *decl.Declaration) bool {
			return rank[a.ExtensionName()] < rank[b.ExtensionName()]
		})
	}
	return set, ds
}
