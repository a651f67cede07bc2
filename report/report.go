// Package report summarizes a generate run: a YAML file for tooling and a
// console summary for people.
package report

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/teranos/bindgen/diag"
	"github.com/teranos/bindgen/emit"
	"github.com/teranos/bindgen/errors"
	"github.com/teranos/bindgen/gen"
	"github.com/teranos/bindgen/version"
)

// Unit is the outcome of one unit.
type Unit struct {
	Namespace   string            `yaml:"namespace"`
	Status      string            `yaml:"status"`
	Decls       int               `yaml:"decls"`
	DurationMS  int64             `yaml:"duration_ms"`
	Errors      int               `yaml:"errors"`
	Warnings    int               `yaml:"warnings"`
	Artifacts   []emit.Artifact   `yaml:"artifacts,omitempty"`
	Diagnostics []diag.Diagnostic `yaml:"diagnostics,omitempty"`
}

// OK reports whether the unit generated.
func (u Unit) OK() bool {
	return u.Status == gen.StatusOK.String()
}

// Changed counts artifacts whose content differed from what was on disk.
func (u Unit) Changed() int {
	n := 0
	for _, a := range u.Artifacts {
		if a.Changed {
			n++
		}
	}
	return n
}

// Report is one generate run.
type Report struct {
	RunID       string       `yaml:"run_id"`
	Version     version.Info `yaml:"version"`
	ConfigFiles []string     `yaml:"config_files,omitempty"`
	StartedAt   time.Time    `yaml:"started_at"`
	FinishedAt  time.Time    `yaml:"finished_at"`
	Units       []Unit       `yaml:"units"`
}

// New starts a report for a run.
func New(runID string, started time.Time) *Report {
	return &Report{RunID: runID, Version: version.Get(), StartedAt: started}
}

// Add appends the result of one unit and the artifacts written for it.
func (r *Report) Add(res gen.Result, artifacts []emit.Artifact) {
	u := Unit{
		Namespace:   res.Namespace,
		Status:      res.Status.String(),
		Decls:       res.Decls,
		DurationMS:  res.Duration.Milliseconds(),
		Artifacts:   artifacts,
		Diagnostics: res.Diagnostics,
	}
	for _, d := range res.Diagnostics {
		switch {
		case d.Fatal || d.Severity == diag.SevError:
			u.Errors++
		case d.Severity == diag.SevWarning:
			u.Warnings++
		}
	}
	r.Units = append(r.Units, u)
}

// Finish stamps the end of the run.
func (r *Report) Finish(at time.Time) {
	r.FinishedAt = at
}

// Failed counts units that did not generate.
func (r *Report) Failed() int {
	n := 0
	for _, u := range r.Units {
		if !u.OK() {
			n++
		}
	}
	return n
}

// OK reports whether every unit generated.
func (r *Report) OK() bool {
	return r.Failed() == 0
}

// Duration is the wall time of the run.
func (r *Report) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// WriteYAML encodes the report.
func (r *Report) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return errors.Wrap(err, "failed to encode run report")
	}
	return errors.Wrap(enc.Close(), "failed to encode run report")
}

// Save writes the YAML report to path, creating parent directories.
func (r *Report) Save(path string) error {
	var buf bytes.Buffer
	if err := r.WriteYAML(&buf); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "failed to create report directory for %s", path)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return errors.Wrapf(err, "failed to write report %s", path)
	}
	return nil
}

// Load reads a report written by Save.
func Load(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read report %s", path)
	}
	var r Report
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, errors.Wrapf(err, "failed to parse report %s", path)
	}
	return &r, nil
}
