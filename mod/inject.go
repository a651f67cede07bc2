package mod

import (
	"github.com/teranos/bindgen/config"
	"github.com/teranos/bindgen/decl"
	"github.com/teranos/bindgen/diag"
	"github.com/teranos/bindgen/errors"
)

// NameInject adds verbatim code to generated function bodies.
const NameInject = "inject"

func init() {
	registerBuiltin(Info{
		Name:        NameInject,
		Version:     "1.0.0",
		Description: "inject code at the begin or end stage of generated functions",
	}, newInject)
}

type snippet struct {
	Match []string `mapstructure:"match"`
	Stage string   `mapstructure:"stage"`
	Code  string   `mapstructure:"code"`
}

type injectParams struct {
	Snippets []snippet `mapstructure:"snippets"`
}

type injectMod struct {
	snippets []snippet
}

func newInject(params map[string]interface{}) (Mod, error) {
	var p injectParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	for i, s := range p.Snippets {
		if len(s.Match) == 0 || s.Code == "" {
			return nil, errors.InvalidConfigf("inject: snippets[%d] needs match and code", i)
		}
		if err := patterns(s.Match).validate("snippets.match"); err != nil {
			return nil, err
		}
		switch decl.InjectStage(s.Stage) {
		case decl.InjectBegin, decl.InjectEnd:
		case "":
			p.Snippets[i].Stage = string(decl.InjectBegin)
		default:
			return nil, errors.WithHintf(
				errors.InvalidConfigf("inject: snippets[%d] has unknown stage %q", i, s.Stage),
				"use %s or %s", decl.InjectBegin, decl.InjectEnd,
			)
		}
	}
	return &injectMod{snippets: p.Snippets}, nil
}

func (m *injectMod) Name() string { return NameInject }
func (m *injectMod) Traits() Traits {
	return Traits{Injects: true, AffectsBehavior: true}
}

func (m *injectMod) Apply(set *decl.Set, _ *config.Config) (*decl.Set, []diag.Diagnostic) {
	fns := map[decl.Kind]bool{decl.KindFunction: true}
	var ds []diag.Diagnostic
	for i, s := range m.snippets {
		ps := patterns(s.Match)
		if !anyMatch(set, ps, fns) {
			ds = append(ds, diag.Warningf(diag.ModUnresolved, "snippet %d matched no function", i))
			continue
		}
		for _, d := range set.All() {
			if d.Kind == decl.KindFunction && ps.match(d.Name) {
				d.Attrs = d.Attrs.With(decl.Inject{Stage: decl.InjectStage(s.Stage), Code: s.Code})
			}
		}
	}
	return set, ds
}
