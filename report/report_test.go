package report

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/pterm/pterm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/bindgen/diag"
	"github.com/teranos/bindgen/emit"
	"github.com/teranos/bindgen/gen"
)

func sampleReport() *Report {
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	r := New("run-1", start)
	r.Add(gen.Result{
		Namespace: "vulkan",
		Status:    gen.StatusOK,
		Decls:     12,
		Duration:  40 * time.Millisecond,
		Diagnostics: []diag.Diagnostic{
			diag.Warningf(diag.EmitUnsupported, "unknown native type %q emitted as uintptr", "Display").From(emit.Source),
			diag.Infof(diag.ModLint, "nothing to lint").From("lint"),
		},
	}, []emit.Artifact{
		{Path: "vk/native.go", Hash: "aa", Size: 100},
		{Path: "vk/vulkan_core.go", Hash: "bb", Size: 900, Changed: true},
	})
	r.Add(gen.Result{
		Namespace: "broken",
		Status:    gen.StatusFailed,
		Diagnostics: []diag.Diagnostic{
			diag.Fatalf(diag.ParseWorker, "segfault in parser").From("parse"),
		},
	}, nil)
	r.Finish(start.Add(2 * time.Second))
	return r
}

func TestReportCounts(t *testing.T) {
	r := sampleReport()

	assert.Equal(t, 1, r.Failed())
	assert.False(t, r.OK())
	assert.Equal(t, 2*time.Second, r.Duration())

	vk := r.Units[0]
	assert.True(t, vk.OK())
	assert.Equal(t, 0, vk.Errors)
	assert.Equal(t, 1, vk.Warnings)
	assert.Equal(t, 1, vk.Changed())
	assert.Equal(t, int64(40), vk.DurationMS)

	broken := r.Units[1]
	assert.False(t, broken.OK())
	assert.Equal(t, 1, broken.Errors)
}

func TestReportSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports", "last.yaml")
	r := sampleReport()
	r.ConfigFiles = []string{"bindgen.toml"}
	require.NoError(t, r.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "run-1", loaded.RunID)
	assert.Equal(t, []string{"bindgen.toml"}, loaded.ConfigFiles)
	require.Len(t, loaded.Units, 2)
	assert.Equal(t, "failed", loaded.Units[1].Status)
	require.Len(t, loaded.Units[1].Diagnostics, 1)
	assert.Equal(t, diag.ParseWorker, loaded.Units[1].Diagnostics[0].Code)
	assert.True(t, loaded.Units[1].Diagnostics[0].Fatal)
	assert.Equal(t, r.Units[0].Artifacts, loaded.Units[0].Artifacts)
}

func TestReportYAMLNamesSeverities(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, sampleReport().WriteYAML(&buf))

	out := buf.String()
	assert.Contains(t, out, "run_id: run-1")
	assert.Contains(t, out, "severity: warning")
	assert.Contains(t, out, "code: emit.unsupported")
	assert.Contains(t, out, "path: vk/vulkan_core.go")
}

func TestConsolePrint(t *testing.T) {
	pterm.DisableStyling()
	t.Cleanup(pterm.EnableStyling)

	tests := []struct {
		name      string
		verbosity int
		contains  []string
		excludes  []string
	}{
		{
			name:      "failures only",
			verbosity: 0,
			contains:  []string{"vulkan", "broken", "segfault in parser", "1 of 2 units failed"},
			excludes:  []string{"Display", "nothing to lint"},
		},
		{
			name:      "warnings",
			verbosity: 1,
			contains:  []string{"[vulkan]", "Display"},
			excludes:  []string{"nothing to lint"},
		},
		{
			name:      "everything",
			verbosity: 2,
			contains:  []string{"nothing to lint"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, NewConsole(&buf, tt.verbosity).Print(sampleReport()))
			for _, s := range tt.contains {
				assert.Contains(t, buf.String(), s)
			}
			for _, s := range tt.excludes {
				assert.NotContains(t, buf.String(), s)
			}
		})
	}
}

func TestConsoleSuccess(t *testing.T) {
	pterm.DisableStyling()
	t.Cleanup(pterm.EnableStyling)

	r := New("run-2", time.Now())
	r.Add(gen.Result{Namespace: "glfw", Status: gen.StatusOK}, nil)
	r.Finish(r.StartedAt.Add(1500 * time.Millisecond))

	var buf bytes.Buffer
	require.NoError(t, NewConsole(&buf, 0).Print(r))
	assert.Contains(t, buf.String(), "Generated 1 units in 1.5s")
}
