package commands

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/bindgen/config"
	"github.com/teranos/bindgen/db"
	"github.com/teranos/bindgen/emit"
	"github.com/teranos/bindgen/errors"
	"github.com/teranos/bindgen/gen"
	"github.com/teranos/bindgen/logger"
)

// CheckCmd verifies that the bindings on disk match what generate would
// write now.
var CheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Check if generated bindings are up to date",
	Long: `Check if generated bindings match the current headers and config.

Every unit is generated in memory and compared with the files under
output.dir. Files the manifest lists that would no longer be emitted are
reported as orphaned.

Exit codes:
  0 - Bindings are up to date
  1 - Bindings are out of date
  2 - A unit failed to generate or the check itself failed

Examples:
  bindgen check                  # All units
  bindgen check --unit vulkan    # One unit`,
	RunE: runCheck,
}

var checkUnits []string

func init() {
	CheckCmd.Flags().StringSliceVarP(&checkUnits, "unit", "u", nil, "Only check these units")
}

// checkResult lists artifact paths by how they differ from disk.
type checkResult struct {
	Missing  []string
	Stale    []string
	Orphaned []string
	Failed   []string
	Current  int
}

func (c checkResult) upToDate() bool {
	return len(c.Missing)+len(c.Stale)+len(c.Orphaned)+len(c.Failed) == 0
}

// compareOutputs compares the outputs of successful units with disk, and
// recorded manifest entries of the checked units with the outputs.
func compareOutputs(results []gen.Result, disk *emit.Writer, recorded []db.Entry) (checkResult, error) {
	var c checkResult
	mem := emit.NewMemWriter()
	emitted := make(map[string]bool)
	checked := make(map[string]bool)

	for _, res := range results {
		checked[res.Namespace] = true
		if !res.OK() {
			c.Failed = append(c.Failed, res.Namespace)
			continue
		}
		for _, o := range res.Outputs {
			a, err := mem.Write(o.Hint, o.Content)
			if err != nil {
				return c, err
			}
			if emitted[a.Path] {
				continue
			}
			emitted[a.Path] = true

			onDisk, err := disk.Read(a.Path)
			if err != nil {
				return c, err
			}
			switch {
			case onDisk == nil:
				c.Missing = append(c.Missing, a.Path)
			case emit.Hash(string(onDisk)) != a.Hash:
				c.Stale = append(c.Stale, a.Path)
			default:
				c.Current++
			}
		}
	}

	for _, e := range recorded {
		if !checked[e.Unit] || emitted[e.Path] {
			continue
		}
		// a failed unit's files cannot be judged
		if onDisk, err := disk.Read(e.Path); err == nil && onDisk != nil && !contains(c.Failed, e.Unit) {
			c.Orphaned = append(c.Orphaned, e.Path)
		}
	}

	sort.Strings(c.Missing)
	sort.Strings(c.Stale)
	sort.Strings(c.Orphaned)
	return c, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func recordedEntries(cmd *cobra.Command, cfg *config.Config) ([]db.Entry, error) {
	if !cfg.Manifest.Enabled {
		return nil, nil
	}
	if _, err := os.Stat(cfg.Manifest.Path); err != nil {
		return nil, nil
	}
	m, err := db.OpenManifest(cfg.Manifest.Path, logger.ComponentLogger("manifest"))
	if err != nil {
		return nil, err
	}
	defer m.Close()
	return m.Entries(cmd.Context(), "")
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return &ExitError{Code: ExitCheckFailed, Err: err}
	}
	if err := selectUnits(cfg, checkUnits); err != nil {
		return &ExitError{Code: ExitCheckFailed, Err: err}
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Checking generated bindings...")

	r, err := generateAll(cmd.Context(), newFrontend(cmd, cfg), cfg, logger.ComponentLogger("check"))
	if err != nil {
		return &ExitError{Code: ExitCheckFailed, Err: err}
	}
	recorded, err := recordedEntries(cmd, cfg)
	if err != nil {
		return &ExitError{Code: ExitCheckFailed, Err: errors.Wrap(err, "failed to read manifest")}
	}
	c, err := compareOutputs(r.Results, emit.NewDirWriter(cfg.Output.Dir), recorded)
	if err != nil {
		return &ExitError{Code: ExitCheckFailed, Err: err}
	}

	printCheck(out, c)
	switch {
	case len(c.Failed) > 0:
		return &ExitError{Code: ExitCheckFailed, Err: errors.Newf("%d units failed to generate; run `bindgen generate -v` for details", len(c.Failed))}
	case !c.upToDate():
		return &ExitError{Code: ExitStale, Err: errors.New("bindings are out of date - run `bindgen generate` to update")}
	}
	return nil
}

func printCheck(out io.Writer, c checkResult) {
	if c.upToDate() {
		fmt.Fprint(out, pterm.Success.Sprintf("Bindings are up to date (%d files)\n", c.Current))
		return
	}
	sections := []struct {
		title string
		paths []string
	}{
		{"missing", c.Missing},
		{"out of date", c.Stale},
		{"orphaned", c.Orphaned},
		{"failed units", c.Failed},
	}
	for _, s := range sections {
		if len(s.paths) == 0 {
			continue
		}
		fmt.Fprintf(out, "\n%s:\n", s.title)
		for _, p := range s.paths {
			fmt.Fprintf(out, "  - %s\n", p)
		}
	}
}
