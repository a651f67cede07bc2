package gen

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/bindgen/decl"
	"github.com/teranos/bindgen/diag"
	"github.com/teranos/bindgen/emit"
	"github.com/teranos/bindgen/logger"
	"github.com/teranos/bindgen/mod"
	"github.com/teranos/bindgen/parse"
)

// Stage is the diagnostic source of the generator itself.
const Stage = "gen"

// Generator runs Parse -> Mods -> Emit for one context at a time. It holds
// no per-unit state and is safe for concurrent use.
type Generator struct {
	Frontend parse.Frontend
	Registry *mod.Registry
	Emitter  emit.Emitter
	Logger   *zap.SugaredLogger
}

// New creates a generator.
func New(frontend parse.Frontend, registry *mod.Registry, emitter emit.Emitter) *Generator {
	return &Generator{Frontend: frontend, Registry: registry, Emitter: emitter}
}

func (g *Generator) log() *zap.SugaredLogger {
	if g.Logger != nil {
		return g.Logger
	}
	return logger.Logger.Named(Stage)
}

// Generate runs the pipeline for gc and takes its result. Failures of any
// stage are reported in the result; they never affect other contexts.
func (g *Generator) Generate(ctx context.Context, gc *Context) Result {
	start := time.Now()
	log := g.log().With(logger.FieldsFromContext(logger.WithUnit(ctx, gc.Namespace))...)

	status, set := g.run(ctx, gc, log)

	res, err := gc.Result()
	if err != nil {
		// the caller already took the result; nothing left to report into
		log.Errorw("Generation result taken twice", logger.FieldError, err)
		return Result{Namespace: gc.Namespace, Status: StatusFailed}
	}
	res.Status = status
	res.Duration = time.Since(start)
	if set != nil && status == StatusOK {
		res.Decls = set.Len()
	}

	fields := []interface{}{
		logger.FieldStatus, status.String(),
		logger.FieldOutputs, len(res.Outputs),
		logger.FieldCount, len(res.Diagnostics),
		logger.FieldDurationMS, res.Duration.Milliseconds(),
	}
	if status == StatusOK {
		log.Infow("Unit generated", append(fields, logger.FieldDecls, res.Decls)...)
	} else {
		log.Warnw("Unit not generated", fields...)
	}
	return res
}

func (g *Generator) run(ctx context.Context, gc *Context, log *zap.SugaredLogger) (Status, *decl.Set) {
	if err := ctx.Err(); err != nil {
		gc.EmitDiagnostic(diag.Fatalf(diag.GenAborted, "unit %s cancelled before it started: %v", gc.Namespace, err).From(Stage))
		return StatusAborted, nil
	}
	if gc.Config == nil {
		gc.EmitDiagnostic(diag.Fatalf(diag.GenConfig, "unit %s has no configuration", gc.Namespace).From(Stage))
		return StatusFailed, nil
	}

	// ordering warnings belong to the mods stage and wait for the parse
	pipeline, ordering, err := mod.Build(g.Registry, gc.Config.Mods)
	if err != nil {
		gc.EmitDiagnostics(ordering)
		gc.EmitDiagnostic(diag.Fatalf(diag.GenConfig, "%v", err).From(Stage))
		return StatusFailed, nil
	}
	pipeline.Logger = log.Named(mod.Source)

	// Parse
	logger.Trace(log, "Parsing unit", logger.FieldStage, parse.Stage)
	unit, err := g.Frontend.Parse(ctx, gc.Options)
	if err != nil {
		if f, ok := parse.AsFailure(err); ok {
			gc.EmitDiagnostics(f.Diagnostics())
			if f.Aborted() {
				return StatusAborted, nil
			}
			return StatusFailed, nil
		}
		gc.EmitDiagnostic(diag.Fatalf(diag.ParseWorker, "%v", err).From(parse.Stage))
		return StatusFailed, nil
	}
	gc.Parsed = unit.Set
	gc.EmitDiagnostics(unit.Diagnostics)
	if diag.HasFatal(unit.Diagnostics) {
		return StatusFailed, nil
	}

	// Mods
	logger.Trace(log, "Running mods", logger.FieldStage, mod.Source, logger.FieldCount, pipeline.Len())
	gc.EmitDiagnostics(ordering)
	set, ds, fatal := pipeline.Run(ctx, unit.Set.Clone(), gc.Config)
	gc.EmitDiagnostics(ds)
	if fatal {
		if ctx.Err() != nil {
			return StatusAborted, nil
		}
		return StatusFailed, nil
	}

	// Emit
	if err := ctx.Err(); err != nil {
		gc.EmitDiagnostic(diag.Fatalf(diag.GenAborted, "unit %s cancelled before emission: %v", gc.Namespace, err).From(Stage))
		return StatusAborted, nil
	}
	logger.Trace(log, "Emitting unit", logger.FieldStage, emit.Source, logger.FieldDecls, set.Len())
	opts := emit.Options{
		Namespace:   gc.Namespace,
		Package:     gc.Options.Output.Package,
		Granularity: gc.Config.Output.Granularity,
	}
	if err := g.Emitter.Emit(set, opts, gc); err != nil {
		gc.EmitDiagnostic(diag.Fatalf(diag.EmitFailed, "%v", err).From(emit.Source))
		return StatusFailed, set
	}
	return StatusOK, set
}
