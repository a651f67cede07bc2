package parse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"go.uber.org/zap"

	"github.com/teranos/bindgen/decl"
	"github.com/teranos/bindgen/diag"
	"github.com/teranos/bindgen/logger"
)

// walker collects declarations from one header's syntax tree.
type walker struct {
	src  []byte
	cols columnMap
	file string
	// defined tracks macros known at the current point of the walk, seeded
	// from the unit's defines and extended by #define.
	defined map[string]string
	decls   []decl.Declaration
	diags   []diag.Diagnostic
	log     *zap.SugaredLogger
}

func newWalker(src []byte, cols columnMap, file string, defines map[string]string, log *zap.SugaredLogger) *walker {
	defined := make(map[string]string, len(defines))
	for k, v := range defines {
		defined[k] = v
	}
	return &walker{src: src, cols: cols, file: file, defined: defined, log: log}
}

func (w *walker) walk(root *sitter.Node) {
	if root.HasError() {
		w.collectErrors(root)
	}
	w.items(root)
}

func (w *walker) text(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	return strings.Join(strings.Fields(n.Content(w.src)), " ")
}

func (w *walker) loc(n *sitter.Node) *decl.Location {
	p := n.StartPoint()
	row := int(p.Row)
	return &decl.Location{File: w.file, Line: row + 1, Column: w.cols.original(row, int(p.Column)) + 1}
}

// items dispatches every named child of n.
func (w *walker) items(n *sitter.Node) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		w.item(n.NamedChild(i))
	}
}

// body dispatches the content of a conditional block, skipping its
// condition, name and alternative.
func (w *walker) body(n *sitter.Node) {
	for i := 0; i < int(n.ChildCount()); i++ {
		switch n.FieldNameForChild(i) {
		case "name", "condition", "alternative":
			continue
		}
		child := n.Child(i)
		if child.IsNamed() {
			w.item(child)
		}
	}
}

func (w *walker) item(n *sitter.Node) {
	switch n.Type() {
	case "preproc_def":
		w.define(n)
	case "preproc_ifdef", "preproc_elifdef":
		w.ifdef(n)
	case "preproc_if", "preproc_elif":
		w.ifBranch(n)
	case "preproc_else":
		w.body(n)
	case "linkage_specification":
		if b := n.ChildByFieldName("body"); b != nil {
			if b.Type() == "declaration_list" {
				w.items(b)
			} else {
				w.item(b)
			}
		}
	case "declaration", "function_definition":
		w.declaration(n)
	case "type_definition":
		w.typedef(n)
	case "struct_specifier", "union_specifier":
		w.record(n, "")
	case "enum_specifier":
		w.enum(n, "")
	case "comment", "preproc_include", "preproc_call", "preproc_function_def", "ERROR":
	default:
		logger.Trace(w.log, "Skipping top-level node", "node", n.Type(), logger.FieldFile, w.file, logger.FieldLine, int(n.StartPoint().Row)+1)
	}
}

func (w *walker) define(n *sitter.Node) {
	name := w.text(n.ChildByFieldName("name"))
	value := strings.TrimSpace(w.text(n.ChildByFieldName("value")))
	w.defined[name] = value
	if name == "" || value == "" {
		return
	}
	w.decls = append(w.decls, decl.Declaration{
		Kind:  decl.KindConstant,
		Name:  name,
		Type:  constType(value),
		Value: value,
		Loc:   w.loc(n),
	})
}

func (w *walker) ifdef(n *sitter.Node) {
	directive := n.Child(0).Type()
	_, take := w.defined[w.text(n.ChildByFieldName("name"))]
	if strings.HasSuffix(directive, "ndef") {
		take = !take
	}
	if take {
		w.body(n)
	} else if alt := n.ChildByFieldName("alternative"); alt != nil {
		w.item(alt)
	}
}

// ifBranch handles #if and #elif. Conditions it cannot evaluate take the
// first branch.
func (w *walker) ifBranch(n *sitter.Node) {
	v, known := w.eval(n.ChildByFieldName("condition"))
	switch {
	case !known || v:
		w.body(n)
	default:
		if alt := n.ChildByFieldName("alternative"); alt != nil {
			w.item(alt)
		}
	}
}

// eval computes a preprocessor condition where that is possible from
// defines alone.
func (w *walker) eval(n *sitter.Node) (value bool, known bool) {
	if n == nil {
		return false, false
	}
	switch n.Type() {
	case "number_literal":
		i, err := strconv.ParseInt(strings.TrimRight(w.text(n), "uUlL"), 0, 64)
		return i != 0, err == nil
	case "identifier":
		v, ok := w.defined[w.text(n)]
		if !ok {
			return false, true
		}
		i, err := strconv.ParseInt(strings.TrimRight(v, "uUlL"), 0, 64)
		return i != 0, err == nil
	case "preproc_defined":
		for i := 0; i < int(n.NamedChildCount()); i++ {
			if id := n.NamedChild(i); id.Type() == "identifier" {
				_, ok := w.defined[w.text(id)]
				return ok, true
			}
		}
	case "parenthesized_expression":
		if n.NamedChildCount() == 1 {
			return w.eval(n.NamedChild(0))
		}
	case "unary_expression":
		if w.text(n.ChildByFieldName("operator")) == "!" {
			v, ok := w.eval(n.ChildByFieldName("argument"))
			return !v, ok
		}
	case "binary_expression":
		l, lok := w.eval(n.ChildByFieldName("left"))
		r, rok := w.eval(n.ChildByFieldName("right"))
		switch w.text(n.ChildByFieldName("operator")) {
		case "&&":
			if (lok && !l) || (rok && !r) {
				return false, true
			}
			return l && r, lok && rok
		case "||":
			if (lok && l) || (rok && r) {
				return true, true
			}
			return l || r, lok && rok
		}
	}
	return false, false
}

// declarator is the unwrapped form of a C declarator.
type declarator struct {
	name string
	typ  string
	// fn is set for function prototypes (not function pointers).
	fn *sitter.Node
}

// unwrap walks a declarator chain, accumulating pointer and array suffixes
// onto base.
func (w *walker) unwrap(n *sitter.Node, base string) declarator {
	var (
		name       string
		outerStars int
		innerStars int
		arrays     string
		fn         *sitter.Node
	)
	for cur := n; cur != nil; {
		switch cur.Type() {
		case "identifier", "field_identifier", "type_identifier", "primitive_type":
			name = w.text(cur)
			cur = nil
		case "pointer_declarator", "abstract_pointer_declarator":
			if fn == nil {
				outerStars++
			} else {
				innerStars++
			}
			cur = cur.ChildByFieldName("declarator")
		case "array_declarator", "abstract_array_declarator":
			arrays += "[" + w.text(cur.ChildByFieldName("size")) + "]"
			cur = cur.ChildByFieldName("declarator")
		case "function_declarator", "abstract_function_declarator":
			if fn == nil {
				fn = cur
			}
			cur = cur.ChildByFieldName("declarator")
		case "parenthesized_declarator", "abstract_parenthesized_declarator", "attributed_declarator":
			if cur.NamedChildCount() == 0 {
				cur = nil
			} else {
				cur = cur.NamedChild(0)
			}
		default:
			cur = nil
		}
	}

	typ := base + strings.Repeat("*", outerStars)
	if fn != nil && innerStars > 0 {
		// function pointer
		var ptypes []string
		for _, p := range w.params(fn.ChildByFieldName("parameters")) {
			ptypes = append(ptypes, p.Type)
		}
		return declarator{
			name: name,
			typ:  fmt.Sprintf("%s(%s)(%s)%s", typ, strings.Repeat("*", innerStars), strings.Join(ptypes, ", "), arrays),
		}
	}
	return declarator{name: name, typ: typ + arrays, fn: fn}
}

// baseType is the qualified type specifier of a declaration-like node.
func (w *walker) baseType(n *sitter.Node) string {
	var quals []string
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if c := n.NamedChild(i); c.Type() == "type_qualifier" {
			quals = append(quals, w.text(c))
		}
	}
	t := w.typeName(n.ChildByFieldName("type"))
	if len(quals) == 0 {
		return t
	}
	return strings.Join(quals, " ") + " " + t
}

// typeName renders a type specifier without any body it carries.
func (w *walker) typeName(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	switch n.Type() {
	case "struct_specifier", "union_specifier", "enum_specifier":
		kw := strings.TrimSuffix(n.Type(), "_specifier")
		if name := n.ChildByFieldName("name"); name != nil {
			return kw + " " + w.text(name)
		}
		return kw
	}
	return w.text(n)
}

func (w *walker) declarators(n *sitter.Node) []*sitter.Node {
	var out []*sitter.Node
	for i := 0; i < int(n.ChildCount()); i++ {
		if n.FieldNameForChild(i) == "declarator" {
			d := n.Child(i)
			if d.Type() == "init_declarator" {
				d = d.ChildByFieldName("declarator")
			}
			out = append(out, d)
		}
	}
	return out
}

func (w *walker) declaration(n *sitter.Node) {
	base := w.baseType(n)
	for _, d := range w.declarators(n) {
		info := w.unwrap(d, base)
		if info.fn == nil || info.name == "" {
			// variables are not part of the model
			continue
		}
		w.decls = append(w.decls, decl.Declaration{
			Kind:   decl.KindFunction,
			Name:   info.name,
			Type:   info.typ,
			Params: w.params(info.fn.ChildByFieldName("parameters")),
			Loc:    w.loc(n),
		})
	}
	if t := n.ChildByFieldName("type"); t != nil && t.ChildByFieldName("body") != nil {
		w.item(t)
	}
}

func (w *walker) params(list *sitter.Node) []decl.Param {
	if list == nil {
		return nil
	}
	var out []decl.Param
	for i := 0; i < int(list.NamedChildCount()); i++ {
		p := list.NamedChild(i)
		switch p.Type() {
		case "parameter_declaration":
			base := w.baseType(p)
			d := p.ChildByFieldName("declarator")
			if d == nil {
				if base == "void" {
					continue
				}
				out = append(out, decl.Param{Type: base})
				continue
			}
			info := w.unwrap(d, base)
			out = append(out, decl.Param{Name: info.name, Type: info.typ})
		case "variadic_parameter":
			out = append(out, decl.Param{Name: "...", Type: "..."})
		}
	}
	return out
}

func (w *walker) typedef(n *sitter.Node) {
	t := n.ChildByFieldName("type")
	base := w.baseType(n)
	hasBody := t != nil && t.ChildByFieldName("body") != nil
	tag := ""
	if t != nil {
		tag = w.text(t.ChildByFieldName("name"))
	}
	bodyEmitted := false

	for _, d := range w.declarators(n) {
		info := w.unwrap(d, base)
		if info.name == "" {
			continue
		}
		plain := d.Type() == "type_identifier"
		if hasBody && plain && (tag == "" || tag == info.name) && !bodyEmitted {
			w.specifier(t, info.name)
			bodyEmitted = true
			continue
		}
		if hasBody && !bodyEmitted {
			w.specifier(t, "")
			bodyEmitted = true
		}
		typ := info.typ
		if info.fn != nil {
			var ptypes []string
			for _, p := range w.params(info.fn.ChildByFieldName("parameters")) {
				ptypes = append(ptypes, p.Type)
			}
			typ = fmt.Sprintf("%s(%s)", typ, strings.Join(ptypes, ", "))
		}
		w.decls = append(w.decls, decl.Declaration{
			Kind: decl.KindTypedef,
			Name: info.name,
			Type: typ,
			Loc:  w.loc(n),
		})
	}
}

func (w *walker) specifier(t *sitter.Node, name string) {
	if t.Type() == "enum_specifier" {
		w.enum(t, name)
	} else {
		w.record(t, name)
	}
}

// record emits a struct or union with a body. name overrides the tag.
func (w *walker) record(n *sitter.Node, name string) {
	body := n.ChildByFieldName("body")
	if body == nil {
		return
	}
	if name == "" {
		name = w.text(n.ChildByFieldName("name"))
	}
	if name == "" {
		return
	}

	var fields []decl.Param
	for i := 0; i < int(body.NamedChildCount()); i++ {
		f := body.NamedChild(i)
		if f.Type() != "field_declaration" {
			continue
		}
		base := w.baseType(f)
		for _, d := range w.declarators(f) {
			info := w.unwrap(d, base)
			fields = append(fields, decl.Param{Name: info.name, Type: info.typ})
		}
	}

	d := decl.Declaration{Kind: decl.KindStruct, Name: name, Params: fields, Loc: w.loc(n)}
	if n.Type() == "union_specifier" {
		d.Type = "union"
	}
	w.decls = append(w.decls, d)
}

// enum emits an enum with a body. Members without an explicit value get
// the previous integer value plus one where that is known.
func (w *walker) enum(n *sitter.Node, name string) {
	body := n.ChildByFieldName("body")
	if body == nil {
		return
	}
	if name == "" {
		name = w.text(n.ChildByFieldName("name"))
	}
	if name == "" {
		return
	}

	var (
		members []decl.Param
		next    int64
		known   = true
	)
	for i := 0; i < int(body.NamedChildCount()); i++ {
		e := body.NamedChild(i)
		if e.Type() != "enumerator" {
			continue
		}
		m := decl.Param{Name: w.text(e.ChildByFieldName("name"))}
		if v := e.ChildByFieldName("value"); v != nil {
			m.Value = w.text(v)
			parsed, err := strconv.ParseInt(strings.TrimRight(m.Value, "uUlL"), 0, 64)
			known = err == nil
			next = parsed + 1
		} else if known {
			m.Value = strconv.FormatInt(next, 10)
			next++
		}
		members = append(members, m)
	}

	w.decls = append(w.decls, decl.Declaration{Kind: decl.KindEnum, Name: name, Params: members, Loc: w.loc(n)})
}

// collectErrors reports ERROR and MISSING nodes as warnings.
func (w *walker) collectErrors(n *sitter.Node) {
	if n.IsError() || n.IsMissing() {
		msg := "syntax error"
		if n.IsMissing() {
			msg = "missing " + n.Type()
		} else if t := w.text(n); t != "" {
			if len(t) > 40 {
				t = t[:40] + "..."
			}
			msg = fmt.Sprintf("syntax error near %q", t)
		}
		w.diags = append(w.diags, diag.Warningf(diag.ParseSyntax, "%s", msg).At(w.loc(n)).From(Stage))
		return
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		if child.HasError() || child.IsError() || child.IsMissing() {
			w.collectErrors(child)
		}
	}
}

var (
	intLiteral    = regexp.MustCompile(`^\(?-?(0[xX][0-9a-fA-F]+|[0-9]+)([uU]?[lL]{0,2}|[lL]{1,2}[uU])\)?$`)
	floatLiteral  = regexp.MustCompile(`^\(?-?[0-9]*\.[0-9]+([eE][-+]?[0-9]+)?[fF]?\)?$`)
	stringLiteral = regexp.MustCompile(`^".*"$`)
)

// constType infers the native type of a macro value. Values that are not a
// single literal have no type.
func constType(v string) string {
	switch {
	case stringLiteral.MatchString(v):
		return "const char*"
	case floatLiteral.MatchString(v):
		if strings.HasSuffix(strings.TrimRight(v, ")"), "f") || strings.HasSuffix(strings.TrimRight(v, ")"), "F") {
			return "float"
		}
		return "double"
	case intLiteral.MatchString(v):
		suffix := strings.ToUpper(intLiteral.FindStringSubmatch(v)[2])
		switch {
		case strings.Contains(suffix, "U") && strings.Contains(suffix, "LL"):
			return "uint64_t"
		case strings.Contains(suffix, "LL"):
			return "int64_t"
		case strings.Contains(suffix, "U"):
			return "uint32_t"
		}
		return "int"
	}
	return ""
}
