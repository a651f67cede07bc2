package mod

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/teranos/bindgen/config"
	"github.com/teranos/bindgen/decl"
	"github.com/teranos/bindgen/diag"
	"github.com/teranos/bindgen/errors"
)

// NameFlow infers pointer parameter direction and array lengths.
const NameFlow = "flow"

func init() {
	registerBuiltin(Info{
		Name:        NameFlow,
		Version:     "1.0.0",
		Description: "infer out parameters and count/array pairs",
	}, newFlow)
}

type flowParams struct {
	// CountSuffixes end the name of a length parameter ("pItemCount").
	CountSuffixes []string `mapstructure:"count_suffixes"`
	// OutFunctions are the functions whose trailing non-const pointer is
	// an output.
	OutFunctions []string `mapstructure:"out_functions"`
	// Flows are "function.param=in|out|inout".
	Flows []string `mapstructure:"flows"`
	// Counts are "function.param=N" for fixed-size arrays.
	Counts []string `mapstructure:"counts"`
}

type flowOverride struct {
	fn, param string
	dir       decl.FlowDir
}

type countOverride struct {
	fn, param string
	n         int
}

type flowMod struct {
	suffixes []string
	out      patterns
	flows    []flowOverride
	counts   []countOverride
}

func newFlow(params map[string]interface{}) (Mod, error) {
	p := flowParams{
		CountSuffixes: []string{"Count", "Size"},
		OutFunctions:  []string{"*Create*", "*Get*", "*Enumerate*", "*Allocate*", "*Acquire*"},
	}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	out := patterns(p.OutFunctions)
	if err := out.validate("out_functions"); err != nil {
		return nil, err
	}

	m := &flowMod{suffixes: p.CountSuffixes, out: out}

	flows, err := parsePairs("flows", p.Flows)
	if err != nil {
		return nil, err
	}
	for _, f := range flows {
		fn, param := splitTarget(f.key)
		if param == "" {
			return nil, errors.InvalidConfigf("flows: %q must name function.param", f.key)
		}
		dir, err := decl.ParseFlowDir(f.value)
		if err != nil {
			return nil, errors.Wrap(errors.WithSecondaryError(errors.ErrInvalidConfig, err), "flows")
		}
		m.flows = append(m.flows, flowOverride{fn: fn, param: param, dir: dir})
	}

	counts, err := parsePairs("counts", p.Counts)
	if err != nil {
		return nil, err
	}
	for _, c := range counts {
		fn, param := splitTarget(c.key)
		n, err := strconv.Atoi(c.value)
		if param == "" || err != nil || n <= 0 {
			return nil, errors.InvalidConfigf("counts: %q must be function.param=N with N > 0", c.key+"="+c.value)
		}
		m.counts = append(m.counts, countOverride{fn: fn, param: param, n: n})
	}
	return m, nil
}

func (m *flowMod) Name() string   { return NameFlow }
func (m *flowMod) Traits() Traits { return Traits{AffectsBehavior: true} }

func (m *flowMod) Apply(set *decl.Set, _ *config.Config) (*decl.Set, []diag.Diagnostic) {
	for _, d := range set.All() {
		switch d.Kind {
		case decl.KindFunction:
			m.spans(d)
			m.outputs(d)
		case decl.KindStruct:
			m.spans(d)
		}
	}

	var ds []diag.Diagnostic
	for _, f := range m.flows {
		if !eachParam(set, f.fn, f.param, func(p *decl.Param) {
			p.Attrs = p.Attrs.With(decl.Flow{Dir: f.dir})
		}) {
			ds = append(ds, diag.Warningf(diag.ModUnresolved, "flow override %s.%s matches no parameter", f.fn, f.param))
		}
	}
	for _, c := range m.counts {
		if !eachParam(set, c.fn, c.param, func(p *decl.Param) {
			p.Attrs = p.Attrs.With(decl.Count{N: c.n})
		}) {
			ds = append(ds, diag.Warningf(diag.ModUnresolved, "count override %s.%s matches no parameter", c.fn, c.param))
		}
	}
	return set, ds
}

// spans pairs every integer length parameter with the pointer it sizes.
func (m *flowMod) spans(d *decl.Declaration) {
	for i := range d.Params {
		count := &d.Params[i]
		if !decl.IsInteger(count.Type) && !(decl.IsPointer(count.Type) && decl.IsInteger(decl.Elem(count.Type))) {
			continue
		}
		stem := m.countStem(count.Name)
		if stem == "" {
			continue
		}
		for j := range d.Params {
			ptr := &d.Params[j]
			if j == i || !decl.IsPointer(ptr.Type) || decl.IsFuncPointer(ptr.Type) || ptr.Attrs.Has(decl.AttrSpan) {
				continue
			}
			if !strings.HasPrefix(strings.ToLower(hungarian(ptr.Name)), stem) {
				continue
			}
			ptr.Attrs = ptr.Attrs.With(decl.Span{LengthParam: count.Name})
			if decl.IsPointer(count.Type) && d.Kind == decl.KindFunction {
				// the callee reports how many it wrote
				count.Attrs = count.Attrs.With(decl.Flow{Dir: decl.FlowInOut})
			}
			break
		}
	}
}

// countStem returns the lower-cased name a sized pointer must start with,
// or "" when name is not a length parameter. A trailing y is dropped so
// "PropertyCount" sizes "Properties".
func (m *flowMod) countStem(name string) string {
	base := hungarian(name)
	for _, s := range m.suffixes {
		if len(base) > len(s) && strings.HasSuffix(base, s) {
			stem := strings.ToLower(strings.TrimSuffix(base, s))
			return strings.TrimSuffix(stem, "y")
		}
	}
	return ""
}

// outputs marks the trailing non-const pointer of matching functions.
func (m *flowMod) outputs(d *decl.Declaration) {
	if len(d.Params) == 0 || !m.out.match(d.Name) {
		return
	}
	last := &d.Params[len(d.Params)-1]
	t := last.Type
	if !decl.IsPointer(t) || decl.IsConst(t) || decl.IsVoidPointer(t) || decl.IsFuncPointer(t) || last.Attrs.Has(decl.AttrFlow) {
		return
	}
	last.Attrs = last.Attrs.With(decl.Flow{Dir: decl.FlowOut})
}

// hungarian strips a pointer-prefix such as p or pp ("ppEnabledNames").
func hungarian(name string) string {
	i := 0
	for i < len(name) && name[i] == 'p' {
		i++
	}
	if i > 0 && i < len(name) && unicode.IsUpper(rune(name[i])) {
		return name[i:]
	}
	return name
}

// eachParam calls fn for every parameter named param of declarations named
// name. It reports whether any matched.
func eachParam(set *decl.Set, name, param string, fn func(*decl.Param)) bool {
	found := false
	for _, d := range set.Lookup(name) {
		if p, ok := d.Param(param); ok {
			fn(p)
			found = true
		}
	}
	return found
}
