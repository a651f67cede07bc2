// Package decl is the canonical model of a parsed native API: functions,
// structs, enums, constants and typedefs in header order.
package decl

import (
	"strings"

	"github.com/teranos/bindgen/diag"
)

// Location is where a declaration appears in its header.
type Location = diag.Location

// Param is a function parameter, struct field or enum member.
type Param struct {
	Name  string `msgpack:"name"`
	Type  string `msgpack:"type,omitempty"`
	Value string `msgpack:"value,omitempty"`
	Attrs Attrs  `msgpack:"-"`
}

// Declaration is one top-level native declaration.
//
// Name, Type, the parameter types and constant and enum values form the
// native contract and are never
// rewritten by mods; mods express intent through Attrs. Attributes are
// assigned after parsing and are not part of the worker payload.
type Declaration struct {
	Kind   Kind      `msgpack:"kind"`
	Name   string    `msgpack:"name"`
	Type   string    `msgpack:"type,omitempty"`
	Params []Param   `msgpack:"params,omitempty"`
	Value  string    `msgpack:"value,omitempty"`
	Loc    *Location `msgpack:"loc,omitempty"`
	Attrs  Attrs     `msgpack:"-"`
}

// Signature is the native shape of the declaration, used together with
// Name to tell duplicates apart.
func (d *Declaration) Signature() string {
	var b strings.Builder
	switch d.Kind {
	case KindFunction:
		b.WriteString(d.Type)
		b.WriteString("(")
		for i, p := range d.Params {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(p.Type)
		}
		b.WriteString(")")
	case KindStruct:
		b.WriteString("struct{")
		for i, p := range d.Params {
			if i > 0 {
				b.WriteString("; ")
			}
			b.WriteString(p.Type)
		}
		b.WriteString("}")
	case KindEnum:
		b.WriteString("enum")
	case KindConstant:
		b.WriteString("const")
	case KindTypedef:
		b.WriteString("= ")
		b.WriteString(d.Type)
	}
	return b.String()
}

// Key identifies the native contract: name plus signature, and for
// constants and enums the values as well.
func (d *Declaration) Key() string {
	k := d.Name + " " + d.Signature()
	switch d.Kind {
	case KindConstant:
		k += " " + d.Value
	case KindEnum:
		var b strings.Builder
		b.WriteString("{")
		for i, p := range d.Params {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(p.Name)
			b.WriteString("=")
			b.WriteString(p.Value)
		}
		b.WriteString("}")
		k += b.String()
	}
	return k
}

// EmitName is the generated name, defaulting to the native name.
func (d *Declaration) EmitName() string {
	if a, ok := Get[EmitName](d.Attrs); ok && a.Name != "" {
		return a.Name
	}
	return d.Name
}

// EmitName is the generated name, defaulting to the native name.
func (p *Param) EmitName() string {
	if a, ok := Get[EmitName](p.Attrs); ok && a.Name != "" {
		return a.Name
	}
	return p.Name
}

// Excluded reports whether the declaration is suppressed from emission.
func (d *Declaration) Excluded() bool {
	return d.Attrs.Has(AttrExclude)
}

// ExtensionName returns the extension the declaration belongs to, or "".
func (d *Declaration) ExtensionName() string {
	if a, ok := Get[Extension](d.Attrs); ok {
		return a.Name
	}
	return ""
}

// Param returns the parameter with the given native name.
func (d *Declaration) Param(name string) (*Param, bool) {
	for i := range d.Params {
		if d.Params[i].Name == name {
			return &d.Params[i], true
		}
	}
	return nil, false
}

// Clone returns a deep copy.
func (d *Declaration) Clone() *Declaration {
	c := *d
	c.Attrs = d.Attrs.clone()
	if d.Loc != nil {
		loc := *d.Loc
		c.Loc = &loc
	}
	if d.Params != nil {
		c.Params = make([]Param, len(d.Params))
		for i, p := range d.Params {
			p.Attrs = p.Attrs.clone()
			c.Params[i] = p
		}
	}
	return &c
}
