package commands

import (
	"context"
	"path/filepath"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/teranos/bindgen/config"
	"github.com/teranos/bindgen/db"
	"github.com/teranos/bindgen/emit"
	"github.com/teranos/bindgen/errors"
	"github.com/teranos/bindgen/logger"
	"github.com/teranos/bindgen/report"
)

var (
	generateWatch      bool
	generateInProcess  bool
	generateFailFast   bool
	generateDryRun     bool
	generateMaxWorkers int
	generateUnits      []string
)

// GenerateCmd parses, transforms and emits every configured unit.
var GenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate Go bindings for every configured unit",
	Long: `Generate Go bindings for every configured unit.

Each unit is parsed in its own worker process, so a crash in the native
parser only fails that unit. Mods run in configured order, then the Go
emitter writes one package per unit under output.dir.

A unit that fails is reported and the others still generate; the command
exits nonzero when any unit failed.

Examples:
  bindgen generate                    # All units
  bindgen generate --unit vulkan      # One unit
  bindgen generate --in-process       # Parse without worker processes
  bindgen generate --dry-run -vv      # Run everything but write nothing
  bindgen generate --watch            # Regenerate on change`,
	RunE: runGenerate,
}

func init() {
	GenerateCmd.Flags().BoolVarP(&generateWatch, "watch", "w", false, "Regenerate when the config or a header changes")
	GenerateCmd.Flags().BoolVar(&generateInProcess, "in-process", false, "Parse in this process instead of worker subprocesses")
	GenerateCmd.Flags().BoolVar(&generateFailFast, "fail-fast", false, "Stop starting units after the first failure")
	GenerateCmd.Flags().BoolVar(&generateDryRun, "dry-run", false, "Generate without writing files, manifest or report")
	GenerateCmd.Flags().IntVarP(&generateMaxWorkers, "max-workers", "j", -1, "Units generated at once (0 = one per CPU)")
	GenerateCmd.Flags().StringSliceVarP(&generateUnits, "unit", "u", nil, "Only generate these units")
}

// applyGenerateFlags lets command line flags override the loaded config.
func applyGenerateFlags(cmd *cobra.Command, cfg *config.Config) error {
	if generateInProcess {
		cfg.Generator.InProcess = true
	}
	if generateFailFast {
		cfg.Generator.FailFast = true
	}
	if generateDryRun {
		cfg.Output.Write = false
		cfg.Manifest.Enabled = false
		cfg.Report.Path = ""
	}
	if cmd.Flags().Changed("max-workers") {
		cfg.Generator.MaxWorkers = generateMaxWorkers
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	return selectUnits(cfg, generateUnits)
}

func runGenerate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := applyGenerateFlags(cmd, cfg); err != nil {
		return err
	}

	if !generateWatch {
		_, err := generateOnce(cmd, cfg)
		return err
	}
	return watch(cmd, cfg)
}

// generateOnce runs every unit, writes artifacts, manifest and report, and
// prints the summary. The error is non-nil when any unit failed.
func generateOnce(cmd *cobra.Command, cfg *config.Config) (*report.Report, error) {
	ctx := cmd.Context()
	log := logger.ComponentLogger("generate")
	verbosity, _ := cmd.Flags().GetCount("verbose")

	r, err := generateAll(ctx, newFrontend(cmd, cfg), cfg, log)
	if err != nil {
		return nil, err
	}

	rep := report.New(r.ID, r.StartedAt)
	rep.ConfigFiles = cfg.Files

	var writer *emit.Writer
	if cfg.Output.Write {
		writer = emit.NewDirWriter(cfg.Output.Dir)
	}

	var manifest *db.Manifest
	if cfg.Manifest.Enabled && cfg.Output.Write {
		manifest = beginManifest(ctx, cfg.Manifest.Path, r, log)
		if manifest != nil {
			defer manifest.Close()
		}
	}

	for i := range r.Results {
		res := &r.Results[i]
		var artifacts []emit.Artifact
		if writer != nil {
			artifacts = writeResult(writer, res)
		}
		if manifest != nil && res.OK() {
			if err := manifest.Record(ctx, r.ID, res.Namespace, entries(artifacts)); err != nil {
				log.Warnw("Manifest not updated", logger.FieldUnit, res.Namespace, logger.FieldError, err)
			}
		}
		rep.Add(*res, artifacts)
	}
	rep.Finish(time.Now())

	if manifest != nil {
		status := db.RunOK
		switch {
		case ctx.Err() != nil:
			status = db.RunCanceled
		case !rep.OK():
			status = db.RunFailed
		}
		// the run row outlives a cancelled context
		if err := manifest.FinishRun(context.WithoutCancel(ctx), db.Run{
			ID:         r.ID,
			FinishedAt: rep.FinishedAt,
			Status:     status,
			Units:      len(rep.Units),
			Failed:     rep.Failed(),
		}); err != nil {
			log.Warnw("Run not recorded", logger.FieldError, err)
		}
	}

	if cfg.Report.Path != "" {
		if err := rep.Save(cfg.Report.Path); err != nil {
			return rep, err
		}
		log.Infow("Report written", logger.FieldFile, cfg.Report.Path)
	}

	if err := report.NewConsole(cmd.OutOrStdout(), verbosity).Print(rep); err != nil {
		return rep, err
	}
	if !cfg.Output.Write {
		pterm.Info.Println("Dry run: nothing was written")
	}
	if failed := rep.Failed(); failed > 0 {
		return rep, errors.Newf("%d of %d units failed", failed, len(rep.Units))
	}
	return rep, nil
}

// beginManifest opens the manifest and records the run start. A manifest
// that cannot be used is logged and skipped; the outputs are still written.
func beginManifest(ctx context.Context, path string, r *run, log *zap.SugaredLogger) *db.Manifest {
	manifest, err := db.OpenManifest(path, log)
	if err != nil {
		log.Warnw("Manifest unavailable, artifacts will not be recorded", logger.FieldFile, path, logger.FieldError, err)
		return nil
	}
	if err := manifest.BeginRun(ctx, r.ID, r.StartedAt); err != nil {
		log.Warnw("Manifest unavailable, artifacts will not be recorded", logger.FieldFile, path, logger.FieldError, err)
		manifest.Close()
		return nil
	}
	return manifest
}

func entries(artifacts []emit.Artifact) []db.Entry {
	out := make([]db.Entry, len(artifacts))
	for i, a := range artifacts {
		out[i] = db.Entry{Path: a.Path, Hash: a.Hash, Size: int64(a.Size)}
	}
	return out
}

// watch generates once, then again every time the watcher reloads the
// config, until interrupted.
func watch(cmd *cobra.Command, cfg *config.Config) error {
	log := logger.ComponentLogger("watch")
	path := projectFile(cfg)
	if path == "" {
		return errors.WithHint(errors.New("--watch needs a config file"),
			"run `bindgen config init` or pass --config")
	}

	w, err := config.NewWatcher(path, cfg)
	if err != nil {
		return err
	}

	regen := make(chan *config.Config, 1)
	w.OnReload(func(next *config.Config) error {
		if err := applyGenerateFlags(cmd, next); err != nil {
			return err
		}
		// drop a pending config that was never picked up
		select {
		case <-regen:
		default:
		}
		regen <- next
		return nil
	})

	ctx := cmd.Context()
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	if _, err := generateOnce(cmd, cfg); err != nil {
		log.Warnw("Generation failed", logger.FieldError, err)
	}
	pterm.Info.Printf("Watching %d files in %s\n", len(w.Files()), filepath.Dir(path))

	for {
		select {
		case <-ctx.Done():
			return <-done
		case err := <-done:
			return err
		case next := <-regen:
			if _, err := generateOnce(cmd, next); err != nil {
				log.Warnw("Generation failed", logger.FieldError, err)
			}
		}
	}
}

// projectFile is the last merged config file; the global config, when
// present, is merged before it.
func projectFile(cfg *config.Config) string {
	if len(cfg.Files) == 0 {
		return ""
	}
	return cfg.Files[len(cfg.Files)-1]
}
