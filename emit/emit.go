// Package emit turns a final declaration set into generated source files.
package emit

import (
	"path"
	"strings"

	"github.com/teranos/bindgen/config"
	"github.com/teranos/bindgen/decl"
	"github.com/teranos/bindgen/diag"
	"github.com/teranos/bindgen/naming"
)

// Source tags diagnostics raised during emission.
const Source = "emit"

// Sink receives what an emitter produces. gen.Context implements it.
type Sink interface {
	EmitOutput(hint, content string)
	EmitDiagnostic(d diag.Diagnostic)
}

// Options select what one unit's emission looks like.
type Options struct {
	// Namespace names the unit; it prefixes every file and names the core
	// API type.
	Namespace string
	// Package is the Go package of the generated files. Hints are placed
	// in a directory of the same name.
	Package string
	// Granularity is one of the config.Granularity values.
	Granularity string
}

// Emitter generates source for one unit.
type Emitter interface {
	// Language returns the target language name.
	Language() string
	// Emit writes every artifact for set to sink. Problems with individual
	// declarations become diagnostics; an error means nothing usable was
	// produced.
	Emit(set *decl.Set, opts Options, sink Sink) error
}

// PreludeFile is the per-package file holding the native call interface.
const PreludeFile = "native.go"

// fileKey groups declarations into files.
func fileKey(d *decl.Declaration, granularity string) string {
	switch granularity {
	case config.GranularitySingle:
		return ""
	case config.GranularityKind:
		switch d.Kind {
		case decl.KindConstant:
			return "constants"
		case decl.KindEnum:
			return "enums"
		case decl.KindStruct:
			return "structs"
		case decl.KindTypedef:
			return "typedefs"
		}
		return "functions"
	}
	if ext := d.ExtensionName(); ext != "" {
		return naming.ToSnakeCase(ext)
	}
	return "core"
}

// hint is the output path of a file within the unit.
func (o Options) hint(key string) string {
	name := fileBase(o.Namespace)
	if key != "" {
		name += "_" + key
	}
	return o.packageFile(name + ".go")
}

func (o Options) packageFile(name string) string {
	return path.Join(o.Package, name)
}

func fileBase(namespace string) string {
	s := naming.ToSnakeCase(namespace)
	s = strings.Map(func(r rune) rune {
		if r == '_' || r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
			return r
		}
		return '_'
	}, s)
	if s == "" {
		return "unit"
	}
	return s
}
