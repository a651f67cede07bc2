package mod

import (
	"fmt"
	"path/filepath"

	"github.com/teranos/bindgen/config"
	"github.com/teranos/bindgen/decl"
	"github.com/teranos/bindgen/diag"
)

// Location mods.
const (
	NameLocationDocs   = "location-docs"
	NameStripLocations = "strip-locations"
)

func init() {
	registerBuiltin(Info{
		Name:        NameLocationDocs,
		Version:     "1.0.0",
		Description: "document each declaration with the header position it came from",
	}, newLocationDocs)
	registerBuiltin(Info{
		Name:        NameStripLocations,
		Version:     "1.0.0",
		Description: "drop source locations so output does not depend on header paths",
	}, newStripLocations)
}

type locationDocsParams struct {
	// BaseDir makes file names relative; empty keeps only the base name.
	BaseDir string `mapstructure:"base_dir"`
	Prefix  string `mapstructure:"prefix"`
}

type locationDocsMod struct {
	baseDir string
	prefix  string
}

func newLocationDocs(params map[string]interface{}) (Mod, error) {
	p := locationDocsParams{Prefix: "Declared at"}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	return &locationDocsMod{baseDir: p.BaseDir, prefix: p.Prefix}, nil
}

func (m *locationDocsMod) Name() string { return NameLocationDocs }
func (m *locationDocsMod) Traits() Traits {
	return Traits{NeedsLocations: true}
}

func (m *locationDocsMod) file(f string) string {
	if m.baseDir != "" {
		if rel, err := filepath.Rel(m.baseDir, f); err == nil {
			return filepath.ToSlash(rel)
		}
	}
	return filepath.Base(f)
}

func (m *locationDocsMod) Apply(set *decl.Set, _ *config.Config) (*decl.Set, []diag.Diagnostic) {
	missing := 0
	for _, d := range set.All() {
		if d.Loc == nil || d.Loc.File == "" {
			missing++
			continue
		}
		d.Attrs = d.Attrs.With(decl.Doc{Text: fmt.Sprintf("%s %s:%d.", m.prefix, m.file(d.Loc.File), d.Loc.Line)})
	}
	if missing > 0 {
		return set, []diag.Diagnostic{diag.Warningf(diag.ModUnresolved, "%d declarations have no source location", missing)}
	}
	return set, nil
}

type stripLocationsMod struct{}

func newStripLocations(params map[string]interface{}) (Mod, error) {
	var p struct{}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	return stripLocationsMod{}, nil
}

func (stripLocationsMod) Name() string { return NameStripLocations }
func (stripLocationsMod) Traits() Traits {
	return Traits{DiscardsLocations: true}
}

func (stripLocationsMod) Apply(set *decl.Set, _ *config.Config) (*decl.Set, []diag.Diagnostic) {
	// rebuilt so the file index matches
	out := decl.NewSet()
	for _, d := range set.All() {
		d.Loc = nil
		out.Add(d)
	}
	return out, nil
}
