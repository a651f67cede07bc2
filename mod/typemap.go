package mod

import (
	"strings"

	"github.com/teranos/bindgen/config"
	"github.com/teranos/bindgen/decl"
	"github.com/teranos/bindgen/diag"
)

// NameTypemap overrides the Go type chosen for native types.
const NameTypemap = "typemap"

func init() {
	registerBuiltin(Info{
		Name:        NameTypemap,
		Version:     "1.0.0",
		Description: "override the Go type of native types, declarations or parameters",
	}, newTypemap)
}

type typemapParams struct {
	// Types are "native type=Go type", applied wherever the type appears.
	Types []string `mapstructure:"types"`
	// Targets are "declaration=Go type" or "function.param=Go type".
	Targets []string `mapstructure:"targets"`
}

type typemapMod struct {
	types   map[string]string
	order   []string
	targets []pair
}

func newTypemap(params map[string]interface{}) (Mod, error) {
	var p typemapParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	types, err := parsePairs("types", p.Types)
	if err != nil {
		return nil, err
	}
	targets, err := parsePairs("targets", p.Targets)
	if err != nil {
		return nil, err
	}
	m := &typemapMod{types: make(map[string]string, len(types)), targets: targets}
	for _, t := range types {
		key := normalizeType(t.key)
		if _, dup := m.types[key]; !dup {
			m.order = append(m.order, key)
		}
		m.types[key] = t.value
	}
	return m, nil
}

func (m *typemapMod) Name() string   { return NameTypemap }
func (m *typemapMod) Traits() Traits { return Traits{AffectsBehavior: true} }

func (m *typemapMod) Apply(set *decl.Set, _ *config.Config) (*decl.Set, []diag.Diagnostic) {
	used := make(map[string]bool, len(m.types))
	override := func(native string, as decl.Attrs) decl.Attrs {
		key := normalizeType(native)
		if goType, ok := m.types[key]; ok {
			used[key] = true
			return as.With(decl.TypeOverride{Type: goType})
		}
		return as
	}

	for _, d := range set.All() {
		switch d.Kind {
		case decl.KindFunction, decl.KindTypedef, decl.KindConstant:
			d.Attrs = override(d.Type, d.Attrs)
		}
		if d.Kind == decl.KindEnum {
			continue
		}
		for i := range d.Params {
			d.Params[i].Attrs = override(d.Params[i].Type, d.Params[i].Attrs)
		}
	}

	var ds []diag.Diagnostic
	for _, k := range m.order {
		if !used[k] {
			ds = append(ds, diag.Infof(diag.ModUnresolved, "type %q does not occur in this unit", k))
		}
	}
	for _, t := range m.targets {
		name, param := splitTarget(t.key)
		found := false
		if param == "" {
			for _, d := range set.Lookup(name) {
				d.Attrs = d.Attrs.With(decl.TypeOverride{Type: t.value})
				found = true
			}
		} else {
			found = eachParam(set, name, param, func(p *decl.Param) {
				p.Attrs = p.Attrs.With(decl.TypeOverride{Type: t.value})
			})
		}
		if !found {
			ds = append(ds, diag.Warningf(diag.ModUnresolved, "type target %q matches nothing", t.key))
		}
	}
	return set, ds
}

// normalizeType collapses whitespace so "const  char *" matches "const char*".
func normalizeType(t string) string {
	t = strings.Join(strings.Fields(t), " ")
	return strings.ReplaceAll(t, " *", "*")
}
