package diag

import "fmt"

// Location is a position in a native header. Line and Column are 1-based;
// a zero Line means the position is unknown.
type Location struct {
	File   string `msgpack:"file" yaml:"file"`
	Line   int    `msgpack:"line" yaml:"line"`
	Column int    `msgpack:"column" yaml:"column"`
}

func (l Location) String() string {
	switch {
	case l.File == "":
		return ""
	case l.Line == 0:
		return l.File
	case l.Column == 0:
		return fmt.Sprintf("%s:%d", l.File, l.Line)
	}
	return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
}

// Diagnostic is a finding attached to a generation context.
//
// Source names the stage or mod that produced it ("parse", "emit", or a mod
// name). Fatal halts the remaining stages of the owning context only.
type Diagnostic struct {
	Severity Severity  `msgpack:"severity" yaml:"severity"`
	Code     Code      `msgpack:"code" yaml:"code"`
	Message  string    `msgpack:"message" yaml:"message"`
	Location *Location `msgpack:"location,omitempty" yaml:"location,omitempty"`
	Source   string    `msgpack:"source,omitempty" yaml:"source,omitempty"`
	Fatal    bool      `msgpack:"fatal,omitempty" yaml:"fatal,omitempty"`
}

func (d Diagnostic) String() string {
	var prefix string
	if d.Location != nil {
		if loc := d.Location.String(); loc != "" {
			prefix = loc + ": "
		}
	}
	src := ""
	if d.Source != "" {
		src = " [" + d.Source + "]"
	}
	fatal := ""
	if d.Fatal {
		fatal = " (fatal)"
	}
	return fmt.Sprintf("%s%s %s%s: %s%s", prefix, d.Severity, d.Code, src, d.Message, fatal)
}

// At returns a copy of d positioned at loc.
func (d Diagnostic) At(loc *Location) Diagnostic {
	if loc != nil {
		l := *loc
		d.Location = &l
	}
	return d
}

// From returns a copy of d attributed to source, unless it already has one.
func (d Diagnostic) From(source string) Diagnostic {
	if d.Source == "" {
		d.Source = source
	}
	return d
}

// AsFatal returns a copy of d that halts its context.
func (d Diagnostic) AsFatal() Diagnostic {
	d.Fatal = true
	if d.Severity < SevError {
		d.Severity = SevError
	}
	return d
}
