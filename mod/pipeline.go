package mod

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/bindgen/config"
	"github.com/teranos/bindgen/decl"
	"github.com/teranos/bindgen/diag"
	"github.com/teranos/bindgen/logger"
)

// Pipeline runs mods strictly in order.
type Pipeline struct {
	mods []Mod
	// Logger defaults to the global logger.
	Logger *zap.SugaredLogger
}

// NewPipeline creates a pipeline over mods in the given order.
func NewPipeline(mods ...Mod) *Pipeline {
	return &Pipeline{mods: append([]Mod(nil), mods...)}
}

// Names returns the mod names in run order.
func (p *Pipeline) Names() []string {
	names := make([]string, len(p.mods))
	for i, m := range p.mods {
		names[i] = m.Name()
	}
	return names
}

// Len returns the number of mods.
func (p *Pipeline) Len() int { return len(p.mods) }

func (p *Pipeline) log() *zap.SugaredLogger {
	if p.Logger != nil {
		return p.Logger
	}
	return logger.Logger.Named("mod")
}

// Run applies every mod to set in order. Each mod's diagnostics are tagged
// with its name. The run stops at the first fatal diagnostic and reports
// fatal=true; the caller must then skip emission. Run takes ownership of set.
func (p *Pipeline) Run(ctx context.Context, set *decl.Set, cfg *config.Config) (*decl.Set, []diag.Diagnostic, bool) {
	log := p.log()
	var out []diag.Diagnostic

	for _, m := range p.mods {
		name := m.Name()
		if err := ctx.Err(); err != nil {
			out = append(out, diag.Fatalf(diag.ModAborted, "pipeline cancelled before %s: %v", name, err).From(Source))
			return set, out, true
		}

		start := time.Now()
		before := set.Keys()
		next, ds := apply(m, set, cfg)
		for i := range ds {
			ds[i] = ds[i].From(name)
		}
		out = append(out, ds...)

		if next == nil {
			if !diag.HasFatal(ds) {
				out = append(out, diag.Fatalf(diag.ModPanic, "%s returned no declaration set", name).From(name))
			}
			log.Warnw("Mod failed", logger.FieldMod, name)
			return set, out, true
		}

		fabricated := fabrications(name, before, next)
		out = append(out, fabricated...)

		logger.Trace(log, "Mod applied",
			logger.FieldMod, name,
			logger.FieldDecls, next.Len(),
			logger.FieldCount, len(ds),
			logger.FieldDurationMS, time.Since(start).Milliseconds())

		if diag.HasFatal(ds) || len(fabricated) > 0 {
			log.Infow("Pipeline halted by fatal diagnostic", logger.FieldMod, name)
			return next, out, true
		}
		set = next
	}
	return set, out, false
}

// apply runs one mod, converting a panic into a fatal diagnostic.
func apply(m Mod, set *decl.Set, cfg *config.Config) (next *decl.Set, ds []diag.Diagnostic) {
	defer func() {
		if r := recover(); r != nil {
			next = nil
			ds = append(ds, diag.Fatalf(diag.ModPanic, "%s panicked: %v", m.Name(), r))
		}
	}()
	return m.Apply(set, cfg)
}

// fabrications reports declarations whose native contract was not in the
// mod's input.
func fabrications(name string, before map[string]struct{}, after *decl.Set) []diag.Diagnostic {
	var ds []diag.Diagnostic
	for _, d := range after.All() {
		if _, ok := before[d.Key()]; ok {
			continue
		}
		ds = append(ds, diag.Fatalf(diag.ModFabricated,
			"%s produced %s which is not a native declaration of this unit", name, quoteKey(d)).At(d.Loc).From(name))
	}
	return ds
}

func quoteKey(d *decl.Declaration) string {
	return fmt.Sprintf("%q", d.Key())
}
