package commands

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/teranos/bindgen/config"
	"github.com/teranos/bindgen/diag"
	"github.com/teranos/bindgen/emit"
	"github.com/teranos/bindgen/errors"
	"github.com/teranos/bindgen/gen"
	"github.com/teranos/bindgen/logger"
	"github.com/teranos/bindgen/mod"
	"github.com/teranos/bindgen/parse"
	"github.com/teranos/bindgen/subagent"
)

// loadConfig loads the config named by --config, or the nearest
// bindgen.toml, and validates it.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(cfg.Units) == 0 {
		return nil, errors.WithHint(
			errors.InvalidConfigf("no units configured"),
			"add a [[units]] table with a namespace and headers to bindgen.toml",
		)
	}
	return cfg, nil
}

// workerArgs are the persistent flags a worker needs to log like its
// coordinator.
func workerArgs(cmd *cobra.Command) []string {
	var args []string
	if n, _ := cmd.Flags().GetCount("verbose"); n > 0 {
		args = append(args, "-"+strings.Repeat("v", n))
	}
	if j, _ := cmd.Flags().GetBool("json-logs"); j {
		args = append(args, "--json-logs")
	}
	return args
}

func newFrontend(cmd *cobra.Command, cfg *config.Config) parse.Frontend {
	if cfg.Generator.InProcess {
		return &parse.DirectFrontend{Logger: logger.ComponentLogger(parse.Stage)}
	}
	return parse.NewSubagentFrontend(&subagent.Runner{
		BaseArgs:  workerArgs(cmd),
		KillGrace: cfg.Generator.KillGrace,
		Stderr:    cmd.ErrOrStderr(),
	})
}

// selectUnits keeps the units named in only, in config order.
func selectUnits(cfg *config.Config, only []string) error {
	if len(only) == 0 {
		return nil
	}
	var kept []config.UnitConfig
	for _, name := range only {
		if _, ok := cfg.Unit(name); !ok {
			return errors.WithHintf(errors.InvalidConfigf("unknown unit %q", name),
				"configured units: %s", strings.Join(unitNames(cfg), ", "))
		}
	}
	for _, u := range cfg.Units {
		for _, name := range only {
			if u.Namespace == name {
				kept = append(kept, u)
				break
			}
		}
	}
	cfg.Units = kept
	return nil
}

func unitNames(cfg *config.Config) []string {
	out := make([]string, len(cfg.Units))
	for i, u := range cfg.Units {
		out[i] = u.Namespace
	}
	return out
}

// run is one pass of every configured unit through the generator.
type run struct {
	ID        string
	StartedAt time.Time
	Results   []gen.Result
}

func generateAll(ctx context.Context, frontend parse.Frontend, cfg *config.Config, log *zap.SugaredLogger) (*run, error) {
	r := &run{ID: uuid.NewString(), StartedAt: time.Now()}
	ctx = logger.WithRunID(ctx, r.ID)
	log = log.With(logger.FieldRunID, r.ID)

	g := gen.New(frontend, mod.Default(), emit.NewGoEmitter())
	g.Logger = log.Named(gen.Stage)
	d := gen.NewDriver(g, cfg.Generator)
	d.Logger = log.Named("driver")

	log.Infow("Generating", logger.FieldCount, len(cfg.Units), "config", cfg.Files)
	results, err := d.Run(ctx, gen.Contexts(cfg))
	r.Results = results
	if err != nil && !errors.Is(err, gen.ErrUnitFailed) {
		return r, err
	}
	return r, nil
}

// writeResult writes the outputs of one unit. A write failure turns the
// unit into a failed one.
func writeResult(w *emit.Writer, res *gen.Result) []emit.Artifact {
	if !res.OK() {
		return nil
	}
	artifacts := make([]emit.Artifact, 0, len(res.Outputs))
	for _, o := range res.Outputs {
		a, err := w.Write(o.Hint, o.Content)
		if err != nil {
			res.Diagnostics = append(res.Diagnostics,
				diag.Fatalf(diag.EmitWrite, "%v", err).From(emit.Source))
			res.Status = gen.StatusFailed
			continue
		}
		artifacts = append(artifacts, a)
	}
	return artifacts
}
