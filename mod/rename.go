package mod

import (
	"github.com/teranos/bindgen/config"
	"github.com/teranos/bindgen/decl"
	"github.com/teranos/bindgen/diag"
	"github.com/teranos/bindgen/errors"
	"github.com/teranos/bindgen/naming"
)

// NameRename derives Go names from native names.
const NameRename = "rename"

func init() {
	registerBuiltin(Info{
		Name:        NameRename,
		Version:     "1.1.0",
		Description: "strip API prefixes and convert native names to Go case",
	}, newRename)
}

// Case styles.
const (
	casePascal = "pascal"
	caseCamel  = "camel"
	caseKeep   = "keep"
)

type renameParams struct {
	StripPrefix      []string `mapstructure:"strip_prefix"`
	StripParamPrefix []string `mapstructure:"strip_param_prefix"`
	Case             string   `mapstructure:"case"`
	ParamCase        string   `mapstructure:"param_case"`
	// Overrides are "native=emit" or "function.param=emit".
	Overrides []string `mapstructure:"overrides"`
}

type renameMod struct {
	strip      []string
	stripParam []string
	declCase   string
	paramCase  string
	overrides  []pair
}

func newRename(params map[string]interface{}) (Mod, error) {
	p := renameParams{Case: casePascal, ParamCase: caseCamel}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	for _, c := range []string{p.Case, p.ParamCase} {
		switch c {
		case casePascal, caseCamel, caseKeep:
		default:
			return nil, errors.WithHintf(errors.InvalidConfigf("rename: unknown case %q", c),
				"use %s, %s or %s", casePascal, caseCamel, caseKeep)
		}
	}
	overrides, err := parsePairs("overrides", p.Overrides)
	if err != nil {
		return nil, err
	}
	return &renameMod{
		strip:      p.StripPrefix,
		stripParam: p.StripParamPrefix,
		declCase:   p.Case,
		paramCase:  p.ParamCase,
		overrides:  overrides,
	}, nil
}

func (m *renameMod) Name() string   { return NameRename }
func (m *renameMod) Traits() Traits { return Traits{AffectsBehavior: true} }

func convert(name, style string) string {
	switch style {
	case casePascal:
		return naming.ToPascalCase(name)
	case caseCamel:
		return naming.ToCamelCase(name)
	}
	return name
}

func (m *renameMod) Apply(set *decl.Set, _ *config.Config) (*decl.Set, []diag.Diagnostic) {
	for _, d := range set.All() {
		d.Attrs = d.Attrs.With(decl.EmitName{Name: naming.Safe(convert(naming.StripPrefix(d.Name, m.strip...), m.declCase))})

		for i := range d.Params {
			p := &d.Params[i]
			var name string
			switch d.Kind {
			case decl.KindFunction:
				name = convert(naming.StripPrefix(p.Name, m.stripParam...), m.paramCase)
			case decl.KindStruct:
				// fields are exported
				name = naming.ToPascalCase(naming.StripPrefix(p.Name, m.stripParam...))
			default:
				name = convert(naming.StripPrefix(p.Name, m.strip...), m.declCase)
			}
			if name == "" {
				continue
			}
			p.Attrs = p.Attrs.With(decl.EmitName{Name: naming.Safe(name)})
		}
	}

	var ds []diag.Diagnostic
	for _, o := range m.overrides {
		if !applyOverride(set, o) {
			ds = append(ds, diag.Warningf(diag.ModUnresolved, "rename override %q matches no declaration", o.key))
		}
	}
	return set, ds
}

func applyOverride(set *decl.Set, o pair) bool {
	name, param := splitTarget(o.key)
	found := false
	for _, d := range set.Lookup(name) {
		if param == "" {
			d.Attrs = d.Attrs.With(decl.EmitName{Name: o.value})
			found = true
			continue
		}
		if p, ok := d.Param(param); ok {
			p.Attrs = p.Attrs.With(decl.EmitName{Name: o.value})
			found = true
		}
	}
	// enum members are addressed by their own name
	if !found && param == "" {
		for _, d := range set.All() {
			if d.Kind != decl.KindEnum {
				continue
			}
			if p, ok := d.Param(name); ok {
				p.Attrs = p.Attrs.With(decl.EmitName{Name: o.value})
				found = true
			}
		}
	}
	return found
}
