package emit

import (
	"sort"
	"strconv"
	"strings"

	"github.com/teranos/bindgen/decl"
	"github.com/teranos/bindgen/diag"
)

// TypeMapping defines how native scalar types map to Go types.
// long is taken to be 64 bits wide.
var TypeMapping = map[string]string{
	"char":               "byte",
	"signed char":        "int8",
	"unsigned char":      "uint8",
	"short":              "int16",
	"unsigned short":     "uint16",
	"int":                "int32",
	"signed":             "int32",
	"unsigned":           "uint32",
	"unsigned int":       "uint32",
	"long":               "int64",
	"unsigned long":      "uint64",
	"long long":          "int64",
	"unsigned long long": "uint64",
	"float":              "float32",
	"double":             "float64",
	"bool":               "bool",
	"_Bool":              "bool",
	"int8_t":             "int8",
	"uint8_t":            "uint8",
	"int16_t":            "int16",
	"uint16_t":           "uint16",
	"int32_t":            "int32",
	"uint32_t":           "uint32",
	"int64_t":            "int64",
	"uint64_t":           "uint64",
	"size_t":             "uint",
	"ssize_t":            "int",
	"intptr_t":           "int",
	"uintptr_t":          "uintptr",
}

// ctype is a native type split into its parts.
type ctype struct {
	base string
	// stars counts pointer levels.
	stars int
	// constBase is set when the pointee itself is const.
	constBase bool
	arrays    []string
	fn        bool
}

var qualifiers = map[string]bool{
	"volatile": true, "restrict": true, "struct": true, "union": true, "enum": true,
}

func parseCType(t string) ctype {
	var c ctype
	if strings.Contains(t, "(") {
		c.fn = true
		return c
	}
	if i := strings.Index(t, "["); i >= 0 {
		for _, dim := range strings.Split(strings.Trim(t[i:], "[]"), "][") {
			c.arrays = append(c.arrays, strings.TrimSpace(dim))
		}
		t = t[:i]
	}
	var words []string
	for _, tok := range strings.Fields(strings.ReplaceAll(t, "*", " * ")) {
		switch {
		case tok == "*":
			c.stars++
		case tok == "const":
			if c.stars == 0 {
				c.constBase = true
			}
		case qualifiers[tok]:
		default:
			words = append(words, tok)
		}
	}
	c.base = strings.Join(words, " ")
	return c
}

// resolver maps native types to Go types for one unit.
type resolver struct {
	set *decl.Set
	// unknown collects named types with no declaration, reported once.
	unknown map[string]bool
}

func newResolver(set *decl.Set) *resolver {
	return &resolver{set: set, unknown: make(map[string]bool)}
}

// named returns the emitted name of a declared type.
func (r *resolver) named(name string) (string, bool) {
	for _, d := range r.set.Lookup(name) {
		switch d.Kind {
		case decl.KindStruct, decl.KindEnum, decl.KindTypedef:
			return d.EmitName(), true
		}
	}
	return "", false
}

// goType maps a native type. It returns "" for void.
func (r *resolver) goType(native string) string {
	c := parseCType(native)
	if c.fn {
		return "uintptr"
	}
	stars := c.stars
	var base string
	switch {
	case c.base == "void" && stars == 0:
		return ""
	case c.base == "void":
		base, stars = "unsafe.Pointer", stars-1
	case c.base == "char" && c.constBase && stars > 0:
		base, stars = "string", stars-1
	default:
		if t, ok := TypeMapping[c.base]; ok {
			base = t
		} else if t, ok := r.named(c.base); ok {
			base = t
		} else if stars > 0 {
			// pointer to an incomplete type: an opaque handle
			base, stars = "uintptr", stars-1
		} else {
			r.unknown[c.base] = true
			base = "uintptr"
		}
	}

	var b strings.Builder
	for _, dim := range c.arrays {
		b.WriteString("[" + r.arrayLen(dim) + "]")
	}
	b.WriteString(strings.Repeat("*", stars))
	b.WriteString(base)
	return b.String()
}

// arrayLen maps an array dimension: a literal, or a constant from the set.
func (r *resolver) arrayLen(dim string) string {
	if v, ok := cleanInt(dim); ok {
		return v
	}
	for _, d := range r.set.Lookup(dim) {
		if d.Kind == decl.KindConstant {
			return d.EmitName()
		}
	}
	r.unknown[dim] = true
	return "0"
}

// diagnostics reports every unresolved type name, sorted.
func (r *resolver) diagnostics() []diag.Diagnostic {
	names := make([]string, 0, len(r.unknown))
	for n := range r.unknown {
		names = append(names, n)
	}
	sort.Strings(names)
	out := make([]diag.Diagnostic, len(names))
	for i, n := range names {
		out[i] = diag.Warningf(diag.EmitUnsupported, "unknown native type %q emitted as uintptr", n).From(Source)
	}
	return out
}

// elem strips one pointer level from a Go type.
func elem(goType string) string {
	return strings.TrimPrefix(goType, "*")
}

// cleanInt normalizes an integer literal, dropping C suffixes and
// surrounding parentheses.
func cleanInt(v string) (string, bool) {
	v = strings.TrimSpace(v)
	for strings.HasPrefix(v, "(") && strings.HasSuffix(v, ")") {
		v = strings.TrimSpace(v[1 : len(v)-1])
	}
	v = strings.TrimRight(v, "uUlL")
	if v == "" {
		return "", false
	}
	if _, err := strconv.ParseInt(v, 0, 64); err != nil {
		if _, err := strconv.ParseUint(v, 0, 64); err != nil {
			return "", false
		}
	}
	return v, true
}

// cleanLiteral turns a native constant value into a Go literal.
func cleanLiteral(v, nativeType string) (string, bool) {
	v = strings.TrimSpace(v)
	for strings.HasPrefix(v, "(") && strings.HasSuffix(v, ")") {
		v = strings.TrimSpace(v[1 : len(v)-1])
	}
	switch nativeType {
	case "const char*":
		if _, err := strconv.Unquote(v); err != nil {
			return "", false
		}
		return v, true
	case "float", "double":
		v = strings.TrimRight(v, "fF")
		if _, err := strconv.ParseFloat(v, 64); err != nil {
			return "", false
		}
		return v, true
	}
	return cleanInt(v)
}
