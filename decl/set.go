package decl

import (
	"sort"

	"github.com/RoaringBitmap/roaring"
)

// Set is an ordered collection of declarations. Insertion order is
// emission order. Duplicate names are allowed; lookups by name return every
// position, and Resolve picks one by signature.
//
// A Set is not safe for concurrent mutation. Each generation context owns
// its own.
type Set struct {
	decls  []*Declaration
	byName map[string]*roaring.Bitmap
	byFile map[string]*roaring.Bitmap
}

// NewSet builds a set from ds in order. The declarations are copied.
func NewSet(ds ...Declaration) *Set {
	s := &Set{
		byName: make(map[string]*roaring.Bitmap),
		byFile: make(map[string]*roaring.Bitmap),
	}
	for i := range ds {
		s.Add(ds[i].Clone())
	}
	return s
}

// Add appends d and indexes it. The set takes ownership of d.
func (s *Set) Add(d *Declaration) {
	pos := uint32(len(s.decls))
	s.decls = append(s.decls, d)
	s.index(d, pos)
}

func (s *Set) index(d *Declaration, pos uint32) {
	bm, ok := s.byName[d.Name]
	if !ok {
		bm = roaring.New()
		s.byName[d.Name] = bm
	}
	bm.Add(pos)

	if d.Loc != nil && d.Loc.File != "" {
		fm, ok := s.byFile[d.Loc.File]
		if !ok {
			fm = roaring.New()
			s.byFile[d.Loc.File] = fm
		}
		fm.Add(pos)
	}
}

func (s *Set) reindex() {
	s.byName = make(map[string]*roaring.Bitmap, len(s.byName))
	s.byFile = make(map[string]*roaring.Bitmap, len(s.byFile))
	for i, d := range s.decls {
		s.index(d, uint32(i))
	}
}

func (s *Set) Len() int { return len(s.decls) }

// At returns the declaration at position i.
func (s *Set) At(i int) *Declaration { return s.decls[i] }

// All returns the declarations in order. The slice is a copy; the
// declarations are shared with the set.
func (s *Set) All() []*Declaration {
	out := make([]*Declaration, len(s.decls))
	copy(out, s.decls)
	return out
}

// Values returns deep copies of the declarations in order.
func (s *Set) Values() []Declaration {
	out := make([]Declaration, len(s.decls))
	for i, d := range s.decls {
		out[i] = *d.Clone()
	}
	return out
}

// Lookup returns every declaration named name, in set order.
func (s *Set) Lookup(name string) []*Declaration {
	return s.collect(s.byName[name])
}

// InFile returns every declaration located in file, in set order.
func (s *Set) InFile(file string) []*Declaration {
	return s.collect(s.byFile[file])
}

func (s *Set) collect(bm *roaring.Bitmap) []*Declaration {
	if bm == nil {
		return nil
	}
	out := make([]*Declaration, 0, bm.GetCardinality())
	it := bm.Iterator()
	for it.HasNext() {
		out = append(out, s.decls[it.Next()])
	}
	return out
}

// Resolve returns the first declaration with the given name and signature.
func (s *Set) Resolve(name, signature string) (*Declaration, bool) {
	for _, d := range s.Lookup(name) {
		if d.Signature() == signature {
			return d, true
		}
	}
	return nil, false
}

// Names returns distinct names in first-appearance order.
func (s *Set) Names() []string {
	seen := make(map[string]bool, len(s.byName))
	out := make([]string, 0, len(s.byName))
	for _, d := range s.decls {
		if !seen[d.Name] {
			seen[d.Name] = true
			out = append(out, d.Name)
		}
	}
	return out
}

// Files returns the distinct source files, sorted.
func (s *Set) Files() []string {
	out := make([]string, 0, len(s.byFile))
	for f := range s.byFile {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// Keys returns the native contract keys present in the set.
func (s *Set) Keys() map[string]struct{} {
	out := make(map[string]struct{}, len(s.decls))
	for _, d := range s.decls {
		out[d.Key()] = struct{}{}
	}
	return out
}

// Clone returns a deep copy of the set.
func (s *Set) Clone() *Set {
	c := &Set{decls: make([]*Declaration, len(s.decls))}
	for i, d := range s.decls {
		c.decls[i] = d.Clone()
	}
	c.reindex()
	return c
}

// Filter returns a new set holding deep copies of the declarations keep
// accepts, in order.
func (s *Set) Filter(keep func(*Declaration) bool) *Set {
	c := NewSet()
	for _, d := range s.decls {
		if keep(d) {
			c.Add(d.Clone())
		}
	}
	return c
}

// SortStable reorders the set in place. This is the only operation that
// changes declaration order.
func (s *Set) SortStable(less func(a, b *Declaration) bool) {
	sort.SliceStable(s.decls, func(i, j int) bool {
		return less(s.decls[i], s.decls[j])
	})
	s.reindex()
}

// InsertAfter places d directly after position i and reindexes.
func (s *Set) InsertAfter(i int, d *Declaration) {
	s.decls = append(s.decls, nil)
	copy(s.decls[i+2:], s.decls[i+1:])
	s.decls[i+1] = d
	s.reindex()
}

// RemoveAt deletes the declaration at position i and reindexes.
func (s *Set) RemoveAt(i int) {
	s.decls = append(s.decls[:i], s.decls[i+1:]...)
	s.reindex()
}
