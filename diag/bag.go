package diag

import (
	"sort"
	"sync"
)

// Bag collects diagnostics in arrival order. It is safe for concurrent use
// and never drops or rewrites an item once added.
type Bag struct {
	mu    sync.Mutex
	items []Diagnostic
}

func NewBag() *Bag {
	return &Bag{}
}

// Add appends diagnostics to the bag.
func (b *Bag) Add(ds ...Diagnostic) {
	b.mu.Lock()
	b.items = append(b.items, ds...)
	b.mu.Unlock()
}

func (b *Bag) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}

// Items returns a copy of the collected diagnostics.
func (b *Bag) Items() []Diagnostic {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Diagnostic, len(b.items))
	copy(out, b.items)
	return out
}

// HasFatal returns true if any diagnostic in ds halts its context.
func HasFatal(ds []Diagnostic) bool {
	for i := range ds {
		if ds[i].Fatal {
			return true
		}
	}
	return false
}

// HasErrors returns true if any diagnostic has Severity >= Error
func HasErrors(ds []Diagnostic) bool {
	for i := range ds {
		if ds[i].Severity >= SevError {
			return true
		}
	}
	return false
}

// Count returns the number of diagnostics with the given severity.
func Count(ds []Diagnostic, sev Severity) int {
	n := 0
	for i := range ds {
		if ds[i].Severity == sev {
			n++
		}
	}
	return n
}

// Sorted returns ds ordered by file, line, column, severity (desc) and code
// for stable report output. The input is not modified.
func Sorted(ds []Diagnostic) []Diagnostic {
	out := make([]Diagnostic, len(ds))
	copy(out, ds)
	sort.SliceStable(out, func(i, j int) bool {
		li, lj := locOf(out[i]), locOf(out[j])
		if li.File != lj.File {
			return li.File < lj.File
		}
		if li.Line != lj.Line {
			return li.Line < lj.Line
		}
		if li.Column != lj.Column {
			return li.Column < lj.Column
		}
		if out[i].Severity != out[j].Severity {
			return out[i].Severity > out[j].Severity
		}
		return out[i].Code < out[j].Code
	})
	return out
}

func locOf(d Diagnostic) Location {
	if d.Location == nil {
		return Location{}
	}
	return *d.Location
}
