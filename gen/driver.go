package gen

import (
	"context"
	"runtime"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/teranos/bindgen/config"
	"github.com/teranos/bindgen/diag"
	"github.com/teranos/bindgen/errors"
	"github.com/teranos/bindgen/logger"
)

// ErrUnitFailed is returned by Driver.Run under fail-fast when a unit did
// not generate.
var ErrUnitFailed = errors.New("unit failed")

// Driver fans units out to a Generator with a bounded number running at
// once.
type Driver struct {
	Generator *Generator
	// MaxWorkers bounds concurrent units; 0 means runtime.NumCPU().
	MaxWorkers int
	// UnitTimeout bounds each unit; 0 means no limit.
	UnitTimeout time.Duration
	// FailFast stops starting new units after the first failure and
	// cancels the ones running.
	FailFast bool
	Logger   *zap.SugaredLogger
}

// NewDriver configures a driver from the generator settings of cfg.
func NewDriver(g *Generator, cfg config.GeneratorConfig) *Driver {
	return &Driver{
		Generator:   g,
		MaxWorkers:  cfg.MaxWorkers,
		UnitTimeout: cfg.UnitTimeout,
		FailFast:    cfg.FailFast,
	}
}

func (d *Driver) log() *zap.SugaredLogger {
	if d.Logger != nil {
		return d.Logger
	}
	return logger.Logger.Named("driver")
}

func (d *Driver) limit(n int) int {
	limit := d.MaxWorkers
	if limit <= 0 {
		limit = runtime.NumCPU()
	}
	return max(1, min(limit, n))
}

// Contexts creates one context per configured unit.
func Contexts(cfg *config.Config) []*Context {
	out := make([]*Context, len(cfg.Units))
	for i, u := range cfg.Units {
		out[i] = NewContext(cfg, cfg.UnitOptions(u))
	}
	return out
}

// Run generates every context and returns their results in input order.
// Without fail-fast the error is always nil: failures are per unit.
func (d *Driver) Run(ctx context.Context, contexts []*Context) ([]Result, error) {
	results := make([]Result, len(contexts))
	if len(contexts) == 0 {
		return results, nil
	}

	limit := d.limit(len(contexts))
	d.log().Debugw("Generating units", logger.FieldCount, len(contexts), "max_workers", limit)

	// Without fail-fast no goroutine returns an error, so gctx is only
	// cancelled together with ctx.
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i, gc := range contexts {
		g.Go(func() error {
			// index i is owned by this goroutine alone
			if d.FailFast && gctx.Err() != nil && ctx.Err() == nil {
				results[i] = skipped(gc)
				return nil
			}

			uctx := logger.WithUnit(gctx, gc.Namespace)
			if d.UnitTimeout > 0 {
				var cancel context.CancelFunc
				uctx, cancel = context.WithTimeout(uctx, d.UnitTimeout)
				defer cancel()
			}

			results[i] = d.Generator.Generate(uctx, gc)
			if d.FailFast && !results[i].OK() {
				return errors.Wrapf(ErrUnitFailed, "unit %s %s", gc.Namespace, results[i].Status)
			}
			return nil
		})
	}
	err := g.Wait()
	return results, err
}

func skipped(gc *Context) Result {
	gc.EmitDiagnostic(diag.Fatalf(diag.GenSkipped, "unit %s skipped after an earlier unit failed", gc.Namespace).From(Stage))
	res, err := gc.Result()
	if err != nil {
		return Result{Namespace: gc.Namespace, Status: StatusSkipped}
	}
	res.Status = StatusSkipped
	return res
}
