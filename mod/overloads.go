package mod

import (
	"github.com/teranos/bindgen/config"
	"github.com/teranos/bindgen/decl"
	"github.com/teranos/bindgen/diag"
	"github.com/teranos/bindgen/errors"
)

// NameOverloads merges redeclarations and splits raw pointer variants.
const NameOverloads = "overloads"

func init() {
	registerBuiltin(Info{
		Name:        NameOverloads,
		Version:     "1.0.0",
		Description: "merge duplicate declarations and add raw pointer-form variants",
	}, newOverloads)
}

type overloadsParams struct {
	// MergeDuplicates keeps only the first of identical redeclarations.
	MergeDuplicates bool `mapstructure:"merge_duplicates"`
	// SplitRaw adds a pointer-form variant next to every function whose
	// friendly form differs from the native one.
	SplitRaw  bool   `mapstructure:"split_raw"`
	RawSuffix string `mapstructure:"raw_suffix"`
}

type overloadsMod struct {
	merge     bool
	splitRaw  bool
	rawSuffix string
}

func newOverloads(params map[string]interface{}) (Mod, error) {
	p := overloadsParams{MergeDuplicates: true, SplitRaw: true, RawSuffix: "Raw"}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if p.SplitRaw && p.RawSuffix == "" {
		return nil, errors.InvalidConfigf("overloads: raw_suffix cannot be empty when split_raw is set")
	}
	return &overloadsMod{merge: p.MergeDuplicates, splitRaw: p.SplitRaw, rawSuffix: p.RawSuffix}, nil
}

func (m *overloadsMod) Name() string   { return NameOverloads }
func (m *overloadsMod) Traits() Traits { return Traits{AffectsBehavior: true} }

func (m *overloadsMod) Apply(set *decl.Set, _ *config.Config) (*decl.Set, []diag.Diagnostic) {
	var ds []diag.Diagnostic

	if m.merge {
		seen := make(map[string]bool, set.Len())
		for i := 0; i < set.Len(); {
			d := set.At(i)
			k := d.Key()
			if !seen[k] {
				seen[k] = true
				i++
				continue
			}
			ds = append(ds, diag.Infof(diag.ModConflict, "merged redeclaration of %s", d.Name).At(d.Loc))
			set.RemoveAt(i)
		}
	}

	if m.splitRaw {
		for i := 0; i < set.Len(); i++ {
			d := set.At(i)
			if d.Kind != decl.KindFunction || d.Attrs.Has(decl.AttrRaw) || d.Excluded() || !friendly(d) {
				continue
			}
			raw := d.Clone()
			raw.Attrs = raw.Attrs.With(decl.Raw{}).With(decl.EmitName{Name: d.EmitName() + m.rawSuffix})
			set.InsertAfter(i, raw)
			i++
		}
	}
	return set, ds
}

// friendly reports whether any parameter is emitted differently from its
// native pointer form.
func friendly(d *decl.Declaration) bool {
	for _, p := range d.Params {
		if p.Attrs.Has(decl.AttrSpan) || p.Attrs.Has(decl.AttrCount) {
			return true
		}
		if f, ok := decl.Get[decl.Flow](p.Attrs); ok && f.Dir != decl.FlowIn {
			return true
		}
	}
	return false
}
