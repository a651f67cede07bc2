package mod

import (
	"strings"

	"github.com/teranos/bindgen/config"
	"github.com/teranos/bindgen/diag"
	"github.com/teranos/bindgen/errors"
)

// Source tags diagnostics produced while building or running the pipeline
// itself rather than by one mod.
const Source = "pipeline"

// Build turns mod configuration into a pipeline. Unknown mods, unsatisfied
// version constraints and bad parameters are configuration errors. Orderings
// that contradict the mods' declared traits are returned as warnings; the
// configured order is always kept.
func Build(r *Registry, mcs []config.ModConfig) (*Pipeline, []diag.Diagnostic, error) {
	var mods []Mod
	for i, mc := range mcs {
		if !mc.IsEnabled() {
			continue
		}
		_, factory, ok := r.Get(mc.Name)
		if !ok {
			return nil, nil, errors.WithHintf(
				errors.Wrapf(errors.ErrUnknownMod, "mods[%d]: %q", i, mc.Name),
				"available mods: %s", strings.Join(r.Names(), ", "),
			)
		}
		if err := r.checkVersion(mc.Name, mc.Version); err != nil {
			return nil, nil, err
		}
		m, err := factory(mc.Params)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "mods[%d] %s", i, mc.Name)
		}
		mods = append(mods, m)
	}
	return NewPipeline(mods...), CheckOrder(mods), nil
}

// CheckOrder reports orderings the engine will not correct:
// a location-discarding mod before one that needs locations, and a
// behavior-affecting mod after an injecting one.
func CheckOrder(mods []Mod) []diag.Diagnostic {
	var ds []diag.Diagnostic
	for i, a := range mods {
		at := a.Traits()
		for _, b := range mods[i+1:] {
			bt := b.Traits()
			if at.DiscardsLocations && bt.NeedsLocations {
				ds = append(ds, diag.Warningf(diag.ModOrdering,
					"%s needs source locations but runs after %s discards them", b.Name(), a.Name()).From(Source))
			}
			if at.Injects && bt.AffectsBehavior && !bt.Injects {
				ds = append(ds, diag.Warningf(diag.ModOrdering,
					"%s runs after %s injected snippets; injection should come last", b.Name(), a.Name()).From(Source))
			}
		}
	}
	return ds
}
