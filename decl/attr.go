package decl

import (
	"github.com/teranos/bindgen/errors"
)

// AttrKind names an attribute variant. Mod configuration refers to
// attributes by these names.
type AttrKind string

const (
	AttrEmitName     AttrKind = "emit_name"
	AttrFlow         AttrKind = "flow"
	AttrCount        AttrKind = "count"
	AttrSpan         AttrKind = "span"
	AttrExtension    AttrKind = "extension"
	AttrInject       AttrKind = "inject"
	AttrTypeOverride AttrKind = "type_override"
	AttrExclude      AttrKind = "exclude"
	AttrDoc          AttrKind = "doc"
	AttrRaw          AttrKind = "raw"
)

var attrKinds = []AttrKind{
	AttrEmitName, AttrFlow, AttrCount, AttrSpan, AttrExtension,
	AttrInject, AttrTypeOverride, AttrExclude, AttrDoc, AttrRaw,
}

// ParseAttrKind validates an attribute kind name from configuration.
func ParseAttrKind(s string) (AttrKind, error) {
	for _, k := range attrKinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", errors.WithHintf(
		errors.Newf("unknown attribute kind %q", s),
		"known kinds: %v", attrKinds,
	)
}

// Attr is the closed set of metadata a mod can attach to a declaration or
// parameter. Only types in this package implement it.
type Attr interface {
	Kind() AttrKind
	sealed()
}

// EmitName is the name used in generated code.
type EmitName struct{ Name string }

// FlowDir is the data direction of a pointer parameter.
type FlowDir uint8

const (
	FlowIn FlowDir = iota
	FlowOut
	FlowInOut
)

func (f FlowDir) String() string {
	switch f {
	case FlowOut:
		return "out"
	case FlowInOut:
		return "inout"
	}
	return "in"
}

// ParseFlowDir accepts "in", "out" and "inout".
func ParseFlowDir(s string) (FlowDir, error) {
	switch s {
	case "in":
		return FlowIn, nil
	case "out":
		return FlowOut, nil
	case "inout":
		return FlowInOut, nil
	}
	return FlowIn, errors.Newf("unknown flow %q", s)
}

// Flow marks a pointer parameter's direction.
type Flow struct{ Dir FlowDir }

// Count fixes the element count of a pointer parameter.
type Count struct{ N int }

// Span marks a pointer parameter whose length is carried by LengthParam.
type Span struct{ LengthParam string }

// Extension groups a declaration under a named extension.
type Extension struct{ Name string }

// InjectStage selects where in a generated body an Inject snippet goes.
type InjectStage string

const (
	InjectBegin InjectStage = "begin"
	InjectEnd   InjectStage = "end"
)

// Inject adds a code snippet to a generated function body.
type Inject struct {
	Stage InjectStage
	Code  string
}

// TypeOverride replaces the mapped target type.
type TypeOverride struct{ Type string }

// Exclude suppresses emission.
type Exclude struct{ Reason string }

// Doc is a documentation line for generated code.
type Doc struct{ Text string }

// Raw requests the native pointer form instead of the friendly form.
type Raw struct{}

func (EmitName) Kind() AttrKind     { return AttrEmitName }
func (Flow) Kind() AttrKind         { return AttrFlow }
func (Count) Kind() AttrKind        { return AttrCount }
func (Span) Kind() AttrKind         { return AttrSpan }
func (Extension) Kind() AttrKind    { return AttrExtension }
func (Inject) Kind() AttrKind       { return AttrInject }
func (TypeOverride) Kind() AttrKind { return AttrTypeOverride }
func (Exclude) Kind() AttrKind      { return AttrExclude }
func (Doc) Kind() AttrKind          { return AttrDoc }
func (Raw) Kind() AttrKind          { return AttrRaw }

func (EmitName) sealed()     {}
func (Flow) sealed()         {}
func (Count) sealed()        {}
func (Span) sealed()         {}
func (Extension) sealed()    {}
func (Inject) sealed()       {}
func (TypeOverride) sealed() {}
func (Exclude) sealed()      {}
func (Doc) sealed()          {}
func (Raw) sealed()          {}

// repeatable kinds accumulate; all others replace an existing value.
func repeatable(k AttrKind) bool {
	return k == AttrInject || k == AttrDoc
}

// Attrs is an ordered attribute list.
type Attrs []Attr

// With returns attrs plus a. A non-repeatable kind replaces any existing
// attribute of the same kind in place.
func (as Attrs) With(a Attr) Attrs {
	out := make(Attrs, 0, len(as)+1)
	replaced := false
	for _, x := range as {
		if x.Kind() == a.Kind() && !repeatable(a.Kind()) {
			if !replaced {
				out = append(out, a)
				replaced = true
			}
			continue
		}
		out = append(out, x)
	}
	if !replaced {
		out = append(out, a)
	}
	return out
}

// Without returns attrs with every attribute of kind k removed.
func (as Attrs) Without(k AttrKind) Attrs {
	out := make(Attrs, 0, len(as))
	for _, x := range as {
		if x.Kind() != k {
			out = append(out, x)
		}
	}
	return out
}

// Has reports whether an attribute of kind k is present.
func (as Attrs) Has(k AttrKind) bool {
	for _, x := range as {
		if x.Kind() == k {
			return true
		}
	}
	return false
}

// Get returns the first attribute of type T.
func Get[T Attr](as Attrs) (T, bool) {
	for _, x := range as {
		if v, ok := x.(T); ok {
			return v, true
		}
	}
	var zero T
	return zero, false
}

// All returns every attribute of type T in order.
func All[T Attr](as Attrs) []T {
	var out []T
	for _, x := range as {
		if v, ok := x.(T); ok {
			out = append(out, v)
		}
	}
	return out
}

func (as Attrs) clone() Attrs {
	if as == nil {
		return nil
	}
	out := make(Attrs, len(as))
	copy(out, as)
	return out
}
