package mod

import (
	"github.com/teranos/bindgen/config"
	"github.com/teranos/bindgen/decl"
	"github.com/teranos/bindgen/diag"
	"github.com/teranos/bindgen/errors"
)

// NameLint checks the set before emission.
const NameLint = "lint"

func init() {
	registerBuiltin(Info{
		Name:        NameLint,
		Version:     "1.0.0",
		Description: "report name conflicts, dangling lengths and missing attributes",
	}, newLint)
}

type lintParams struct {
	// RequireAttrs are attribute kinds every declaration of Kinds must carry.
	RequireAttrs []string `mapstructure:"require_attrs"`
	Kinds        []string `mapstructure:"kinds"`
	MaxParams    int      `mapstructure:"max_params"`
	// Fatal makes every finding halt the unit.
	Fatal bool `mapstructure:"fatal"`
}

type lintMod struct {
	require   []decl.AttrKind
	kinds     map[decl.Kind]bool
	maxParams int
	fatal     bool
}

func newLint(params map[string]interface{}) (Mod, error) {
	var p lintParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	m := &lintMod{maxParams: p.MaxParams, fatal: p.Fatal}
	for _, name := range p.RequireAttrs {
		k, err := decl.ParseAttrKind(name)
		if err != nil {
			return nil, errors.Wrap(errors.WithSecondaryError(errors.ErrInvalidConfig, err), "lint: require_attrs")
		}
		m.require = append(m.require, k)
	}
	kinds, err := parseKinds("kinds", p.Kinds)
	if err != nil {
		return nil, err
	}
	if kinds == nil {
		kinds = map[decl.Kind]bool{decl.KindFunction: true}
	}
	m.kinds = kinds
	if p.MaxParams < 0 {
		return nil, errors.InvalidConfigf("lint: max_params must be >= 0, got %d", p.MaxParams)
	}
	return m, nil
}

func (m *lintMod) Name() string { return NameLint }
func (m *lintMod) Traits() Traits {
	return Traits{NeedsLocations: true}
}

func (m *lintMod) Apply(set *decl.Set, _ *config.Config) (*decl.Set, []diag.Diagnostic) {
	var ds []diag.Diagnostic
	report := func(d diag.Diagnostic) {
		if m.fatal {
			d = d.AsFatal()
		}
		ds = append(ds, d)
	}

	// Go names share the package scope, except functions which become
	// methods of their extension type.
	owners := make(map[string]string)
	for _, d := range set.All() {
		if d.Excluded() {
			continue
		}
		scope := "package"
		if d.Kind == decl.KindFunction {
			scope = "ext:" + d.ExtensionName()
		}
		names := []string{d.EmitName()}
		if d.Kind == decl.KindEnum {
			for i := range d.Params {
				names = append(names, d.Params[i].EmitName())
			}
		}
		for _, n := range names {
			key := scope + "/" + n
			if prev, ok := owners[key]; ok && prev != d.Name {
				report(diag.Warningf(diag.ModConflict, "%s and %s both emit as %s", prev, d.Name, n).At(d.Loc))
				continue
			}
			owners[key] = d.Name
		}

		for _, p := range d.Params {
			if s, ok := decl.Get[decl.Span](p.Attrs); ok {
				if _, found := d.Param(s.LengthParam); !found {
					report(diag.Warningf(diag.ModUnresolved, "%s.%s is sized by unknown parameter %s", d.Name, p.Name, s.LengthParam).At(d.Loc))
				}
			}
		}

		if m.maxParams > 0 && d.Kind == decl.KindFunction && len(d.Params) > m.maxParams {
			report(diag.Warningf(diag.ModLint, "%s has %d parameters, more than %d", d.Name, len(d.Params), m.maxParams).At(d.Loc))
		}

		if kindOK(m.kinds, d.Kind) {
			for _, k := range m.require {
				if !d.Attrs.Has(k) {
					report(diag.Warningf(diag.ModLint, "%s has no %s attribute", d.Name, k).At(d.Loc))
				}
			}
		}
	}
	return set, ds
}
