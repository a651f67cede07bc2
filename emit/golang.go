package emit

import (
	"fmt"
	"strings"

	"github.com/teranos/bindgen/config"
	"github.com/teranos/bindgen/decl"
	"github.com/teranos/bindgen/diag"
	"github.com/teranos/bindgen/errors"
	"github.com/teranos/bindgen/naming"
)

// GoEmitter generates Go bindings that call through a NativeContext.
type GoEmitter struct {
	// Format runs import fixing and gofumpt over every file. Disable it to
	// inspect raw output.
	Format bool
}

// NewGoEmitter creates a formatting Go emitter.
func NewGoEmitter() *GoEmitter {
	return &GoEmitter{Format: true}
}

// Language returns "go"
func (g *GoEmitter) Language() string {
	return "go"
}

// receiver is the method receiver of every generated function.
const receiver = "api"

// file accumulates one output file.
type file struct {
	key    string
	body   strings.Builder
	groups map[string]bool
}

// Emit implements Emitter.
func (g *GoEmitter) Emit(set *decl.Set, opts Options, sink Sink) error {
	if opts.Package == "" {
		return errors.New("emit: no Go package name")
	}
	if opts.Granularity == "" {
		opts.Granularity = config.GranularityExtension
	}

	r := newResolver(set)
	var files []*file
	byKey := make(map[string]*file)
	emitted := 0

	for _, d := range set.All() {
		if d.Excluded() {
			continue
		}
		key := fileKey(d, opts.Granularity)
		f, ok := byKey[key]
		if !ok {
			f = &file{key: key, groups: make(map[string]bool)}
			byKey[key] = f
			files = append(files, f)
		}

		var ds []diag.Diagnostic
		switch d.Kind {
		case decl.KindConstant:
			ds = g.constant(&f.body, d)
		case decl.KindEnum:
			ds = g.enum(&f.body, d)
		case decl.KindStruct:
			g.structure(&f.body, r, d)
		case decl.KindTypedef:
			g.typedef(&f.body, r, d)
		case decl.KindFunction:
			group := groupType(opts.Namespace, d.ExtensionName())
			if !f.groups[group] {
				f.groups[group] = true
				g.group(&f.body, group, d.ExtensionName())
			}
			g.function(&f.body, r, group, d)
		}
		for _, x := range ds {
			sink.EmitDiagnostic(x.At(d.Loc))
		}
		emitted++
	}
	for _, x := range r.diagnostics() {
		sink.EmitDiagnostic(x)
	}

	g.write(sink, opts.packageFile(PreludeFile), prelude(opts.Package))
	for _, f := range files {
		var b strings.Builder
		fmt.Fprintf(&b, "// Code generated by bindgen from %s. DO NOT EDIT.\n\npackage %s\n", opts.Namespace, opts.Package)
		b.WriteString(f.body.String())
		g.write(sink, opts.hint(f.key), b.String())
	}
	if emitted == 0 {
		sink.EmitDiagnostic(diag.Infof(diag.EmitUnsupported, "unit %s has no declarations to emit", opts.Namespace).From(Source))
	}
	return nil
}

func (g *GoEmitter) write(sink Sink, hint, src string) {
	if g.Format {
		out, err := Format(hint, []byte(src))
		if err != nil {
			sink.EmitDiagnostic(diag.Warningf(diag.EmitFormat, "%s left unformatted: %v", hint, err).From(Source))
		} else {
			src = string(out)
		}
	}
	sink.EmitOutput(hint, src)
}

func prelude(pkg string) string {
	return fmt.Sprintf(`// Code generated by bindgen. DO NOT EDIT.

package %s

// NativeContext resolves native entry points and calls them. ret points at
// the result, or is nil for void functions.
type NativeContext interface {
	Invoke(entryPoint string, ret any, args ...any) error
}
`, pkg)
}

// groupType names the type carrying the functions of one extension.
func groupType(namespace, ext string) string {
	if ext == "" {
		return naming.Safe(naming.ToPascalCase(fileBase(namespace)))
	}
	return naming.Safe(naming.ToPascalCase(ext))
}

func (g *GoEmitter) group(b *strings.Builder, typ, ext string) {
	b.WriteString("\n")
	if ext != "" {
		fmt.Fprintf(b, "// %sExtensionName is the native name of the %s extension.\n", typ, ext)
		fmt.Fprintf(b, "const %sExtensionName = %q\n\n", typ, ext)
		fmt.Fprintf(b, "// %s holds the functions of the %s extension.\n", typ, ext)
	} else {
		fmt.Fprintf(b, "// %s holds the core functions.\n", typ)
	}
	fmt.Fprintf(b, "type %s struct {\n\tctx NativeContext\n}\n\n", typ)
	fmt.Fprintf(b, "// New%s binds the functions to ctx.\n", typ)
	fmt.Fprintf(b, "func New%s(ctx NativeContext) *%s {\n\treturn &%s{ctx: ctx}\n}\n", typ, typ, typ)
}

func docs(b *strings.Builder, first string, d *decl.Declaration) {
	fmt.Fprintf(b, "\n// %s\n", first)
	ds := decl.All[decl.Doc](d.Attrs)
	if len(ds) > 0 {
		b.WriteString("//\n")
	}
	for _, doc := range ds {
		for _, line := range strings.Split(doc.Text, "\n") {
			fmt.Fprintf(b, "// %s\n", line)
		}
	}
}

func override(as decl.Attrs) (string, bool) {
	if o, ok := decl.Get[decl.TypeOverride](as); ok && o.Type != "" {
		return o.Type, true
	}
	return "", false
}

func (g *GoEmitter) constant(b *strings.Builder, d *decl.Declaration) []diag.Diagnostic {
	lit, ok := cleanLiteral(d.Value, d.Type)
	if !ok {
		return []diag.Diagnostic{diag.Warningf(diag.EmitUnsupported, "constant %s has no literal value (%q)", d.Name, d.Value).From(Source)}
	}
	name := d.EmitName()
	docs(b, fmt.Sprintf("%s is %s.", name, d.Name), d)
	if t, ok := override(d.Attrs); ok {
		fmt.Fprintf(b, "const %s %s = %s\n", name, t, lit)
		return nil
	}
	fmt.Fprintf(b, "const %s = %s\n", name, lit)
	return nil
}

func (g *GoEmitter) enum(b *strings.Builder, d *decl.Declaration) []diag.Diagnostic {
	name := d.EmitName()
	base := "int32"
	if t, ok := override(d.Attrs); ok {
		base = t
	}
	docs(b, fmt.Sprintf("%s mirrors %s.", name, d.Name), d)
	fmt.Fprintf(b, "type %s %s\n", name, base)

	var ds []diag.Diagnostic
	var members []string
	for _, m := range d.Params {
		v, ok := cleanInt(m.Value)
		if !ok {
			ds = append(ds, diag.Warningf(diag.EmitUnsupported, "enum member %s has no integer value (%q)", m.Name, m.Value).From(Source))
			continue
		}
		members = append(members, fmt.Sprintf("\t%s %s = %s\n", m.EmitName(), name, v))
	}
	if len(members) > 0 {
		b.WriteString("\nconst (\n")
		for _, m := range members {
			b.WriteString(m)
		}
		b.WriteString(")\n")
	}
	return ds
}

func fieldName(p *decl.Param, i int) string {
	name := p.EmitName()
	if name == "" {
		return fmt.Sprintf("Field%d", i)
	}
	if !naming.Exported(name) {
		name = naming.ToPascalCase(name)
	}
	return naming.Safe(name)
}

func (g *GoEmitter) structure(b *strings.Builder, r *resolver, d *decl.Declaration) {
	name := d.EmitName()
	docs(b, fmt.Sprintf("%s mirrors %s.", name, d.Name), d)
	fmt.Fprintf(b, "type %s struct {\n", name)
	for i := range d.Params {
		p := &d.Params[i]
		t, ok := override(p.Attrs)
		if !ok {
			t = r.goType(p.Type)
		}
		fmt.Fprintf(b, "\t%s %s\n", fieldName(p, i), t)
	}
	b.WriteString("}\n")
}

func (g *GoEmitter) typedef(b *strings.Builder, r *resolver, d *decl.Declaration) {
	name := d.EmitName()
	t, ok := override(d.Attrs)
	if !ok {
		c := parseCType(d.Type)
		if !c.fn && c.stars == 0 && len(c.arrays) == 0 && c.base == d.Name {
			// typedef struct X X with no body anywhere
			t = "struct{}"
		} else {
			t = r.goType(d.Type)
		}
	}
	if t == "" {
		t = "struct{}"
	}
	docs(b, fmt.Sprintf("%s mirrors %s.", name, d.Name), d)
	fmt.Fprintf(b, "type %s %s\n", name, t)
}
