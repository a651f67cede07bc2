package emit

import (
	"fmt"
	"strings"

	"github.com/teranos/bindgen/decl"
	"github.com/teranos/bindgen/naming"
)

type goVar struct {
	name, typ string
}

// call is the Go shape of one native function.
type call struct {
	params   []goVar
	results  []goVar
	variadic string
	pre      []string
	args     []string
}

var reserved = map[string]bool{"ret": true, "err": true, receiver: true}

func paramName(p *decl.Param, i int) string {
	name := p.EmitName()
	if name == "" {
		return fmt.Sprintf("arg%d", i)
	}
	name = naming.Safe(name)
	if reserved[name] {
		name += "_"
	}
	return name
}

// shape works out the parameters, results and call arguments of d. The raw
// form keeps every native parameter as it is.
func shape(r *resolver, d *decl.Declaration) call {
	var c call
	raw := d.Attrs.Has(decl.AttrRaw)

	// length parameter -> the span it sizes
	lengths := make(map[string]string)
	if !raw {
		for i := range d.Params {
			if s, ok := decl.Get[decl.Span](d.Params[i].Attrs); ok {
				if _, found := d.Param(s.LengthParam); found {
					if _, taken := lengths[s.LengthParam]; !taken {
						lengths[s.LengthParam] = paramName(&d.Params[i], i)
					}
				}
			}
		}
	}

	for i := range d.Params {
		p := &d.Params[i]
		if p.Type == "..." {
			c.variadic = "args"
			continue
		}
		name := paramName(p, i)
		typ, ok := override(p.Attrs)
		if !ok {
			typ = r.goType(p.Type)
		}
		if raw {
			c.params = append(c.params, goVar{name, typ})
			c.args = append(c.args, name)
			continue
		}

		flow, _ := decl.Get[decl.Flow](p.Attrs)
		if span, ok := lengths[p.Name]; ok {
			if decl.IsPointer(p.Type) {
				// the callee writes back how many elements it filled
				c.results = append(c.results, goVar{name, elem(typ)})
				c.pre = append(c.pre, fmt.Sprintf("%s = %s(len(%s))", name, elem(typ), span))
				c.args = append(c.args, "&"+name)
			} else {
				c.args = append(c.args, fmt.Sprintf("%s(len(%s))", typ, span))
			}
			continue
		}
		if s, ok := decl.Get[decl.Span](p.Attrs); ok {
			if _, found := d.Param(s.LengthParam); found && strings.HasPrefix(typ, "*") {
				c.params = append(c.params, goVar{name, "[]" + elem(typ)})
				c.args = append(c.args, name)
				continue
			}
		}
		if n, ok := decl.Get[decl.Count](p.Attrs); ok && strings.HasPrefix(typ, "*") {
			arr := fmt.Sprintf("[%d]%s", n.N, elem(typ))
			if flow.Dir == decl.FlowOut {
				c.results = append(c.results, goVar{name, arr})
				c.args = append(c.args, "&"+name)
			} else {
				c.params = append(c.params, goVar{name, "*" + arr})
				c.args = append(c.args, name)
			}
			continue
		}
		if flow.Dir == decl.FlowOut && strings.HasPrefix(typ, "*") {
			c.results = append(c.results, goVar{name, elem(typ)})
			c.args = append(c.args, "&"+name)
			continue
		}
		c.params = append(c.params, goVar{name, typ})
		c.args = append(c.args, name)
	}
	return c
}

func joinVars(vs []goVar) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = v.name + " " + v.typ
	}
	return strings.Join(parts, ", ")
}

func (g *GoEmitter) function(b *strings.Builder, r *resolver, group string, d *decl.Declaration) {
	c := shape(r, d)
	name := d.EmitName()
	if d.Attrs.Has(decl.AttrRaw) {
		docs(b, fmt.Sprintf("%s calls %s with native pointer arguments.", name, d.Name), d)
	} else {
		docs(b, fmt.Sprintf("%s calls %s.", name, d.Name), d)
	}

	ret, ok := override(d.Attrs)
	if !ok {
		ret = r.goType(d.Type)
	}
	results := c.results
	retArg := "nil"
	if ret != "" {
		results = append(results, goVar{"ret", ret})
		retArg = "&ret"
	}
	results = append(results, goVar{"err", "error"})

	params := joinVars(c.params)
	if c.variadic != "" {
		if params != "" {
			params += ", "
		}
		params += c.variadic + " ...any"
	}
	fmt.Fprintf(b, "func (%s *%s) %s(%s) (%s) {\n", receiver, group, name, params, joinVars(results))

	injects := decl.All[decl.Inject](d.Attrs)
	stage := func(s decl.InjectStage) {
		for _, in := range injects {
			if in.Stage == s {
				for _, line := range strings.Split(in.Code, "\n") {
					fmt.Fprintf(b, "\t%s\n", line)
				}
			}
		}
	}

	stage(decl.InjectBegin)
	for _, s := range c.pre {
		fmt.Fprintf(b, "\t%s\n", s)
	}
	args := append([]string{fmt.Sprintf("%q", d.Name), retArg}, c.args...)
	if c.variadic != "" {
		fmt.Fprintf(b, "\terr = %s.ctx.Invoke(%s, append([]any{%s}, %s...)...)\n",
			receiver, args[0]+", "+args[1], strings.Join(c.args, ", "), c.variadic)
	} else {
		fmt.Fprintf(b, "\terr = %s.ctx.Invoke(%s)\n", receiver, strings.Join(args, ", "))
	}
	stage(decl.InjectEnd)
	b.WriteString("\treturn\n}\n")
}
