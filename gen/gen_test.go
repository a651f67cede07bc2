package gen

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/teranos/bindgen/config"
	"github.com/teranos/bindgen/decl"
	"github.com/teranos/bindgen/diag"
	"github.com/teranos/bindgen/emit"
	"github.com/teranos/bindgen/errors"
	"github.com/teranos/bindgen/mod"
	"github.com/teranos/bindgen/parse"
	"github.com/teranos/bindgen/subagent"
)

type frontendFunc func(ctx context.Context, opts subagent.Options) (*parse.Unit, error)

func (f frontendFunc) Parse(ctx context.Context, opts subagent.Options) (*parse.Unit, error) {
	return f(ctx, opts)
}

// unitSet is a fresh parse result; every call returns new declarations.
func unitSet(params int) *decl.Set {
	fn := decl.Declaration{Kind: decl.KindFunction, Name: "sampleDraw", Type: "void"}
	for i := 0; i < params; i++ {
		fn.Params = append(fn.Params, decl.Param{Name: string(rune('a' + i)), Type: "int"})
	}
	return decl.NewSet(
		decl.Declaration{Kind: decl.KindConstant, Name: "SAMPLE_VERSION", Type: "int", Value: "3",
			Loc: &decl.Location{File: "sample.h", Line: 4, Column: 1}},
		decl.Declaration{Kind: decl.KindStruct, Name: "SampleExtent", Params: []decl.Param{
			{Name: "width", Type: "uint32_t"},
		}},
		fn,
	)
}

// staticFrontend parses every unit into unitSet(params) plus one warning.
func staticFrontend(params map[string]int) parse.Frontend {
	return frontendFunc(func(_ context.Context, opts subagent.Options) (*parse.Unit, error) {
		return &parse.Unit{
			Namespace:   opts.Namespace,
			Set:         unitSet(params[opts.Namespace]),
			Diagnostics: []diag.Diagnostic{diag.Warningf(diag.ParseUnsupported, "%s: skipped a macro", opts.Namespace).From(parse.Stage)},
		}, nil
	})
}

func testConfig(units ...string) *config.Config {
	cfg := &config.Config{
		Output: config.OutputConfig{Package: "bindings", Granularity: config.GranularityExtension},
		Mods: []config.ModConfig{
			{Name: mod.NameRename, Params: map[string]interface{}{"strip_prefix": []interface{}{"sample"}}},
			{Name: mod.NameLint, Params: map[string]interface{}{"max_params": 2, "fatal": true}},
		},
	}
	for _, u := range units {
		cfg.Units = append(cfg.Units, config.UnitConfig{Namespace: u, Headers: []string{u + ".h"}, Package: u})
	}
	return cfg
}

func newGenerator(f parse.Frontend) *Generator {
	g := New(f, mod.Default(), &emit.GoEmitter{})
	g.Logger = zap.NewNop().Sugar()
	return g
}

func newDriver(f parse.Frontend, maxWorkers int) *Driver {
	d := NewDriver(newGenerator(f), config.GeneratorConfig{MaxWorkers: maxWorkers})
	d.Logger = zap.NewNop().Sugar()
	return d
}

func hints(r Result) []string {
	out := make([]string, len(r.Outputs))
	for i, o := range r.Outputs {
		out[i] = o.Hint
	}
	return out
}

func codes(ds []diag.Diagnostic) []diag.Code {
	out := make([]diag.Code, len(ds))
	for i, d := range ds {
		out[i] = d.Code
	}
	return out
}

func TestContextResultOnce(t *testing.T) {
	gc := NewContext(testConfig(), subagent.Options{Namespace: "sample"})
	gc.EmitOutput("sample/a.go", "package sample\n")
	gc.EmitDiagnostic(diag.Infof(diag.ModLint, "first"))
	gc.EmitDiagnostics([]diag.Diagnostic{diag.Infof(diag.ModLint, "second")})

	res, err := gc.Result()
	require.NoError(t, err)
	assert.Equal(t, "sample", res.Namespace)
	assert.Equal(t, []string{"sample/a.go"}, hints(res))
	require.Len(t, res.Diagnostics, 2)
	assert.Equal(t, "first", res.Diagnostics[0].Message)

	_, err = gc.Result()
	assert.True(t, errors.Is(err, ErrResultTaken))

	assert.Panics(t, func() { gc.EmitOutput("sample/b.go", "") })
	assert.Panics(t, func() { gc.EmitDiagnostic(diag.Infof(diag.ModLint, "late")) })
}

func TestContextConcurrentAppends(t *testing.T) {
	gc := NewContext(testConfig(), subagent.Options{Namespace: "sample"})
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			gc.EmitDiagnostic(diag.Infof(diag.ModLint, "d%d", i))
		}()
	}
	wg.Wait()

	res, err := gc.Result()
	require.NoError(t, err)
	assert.Len(t, res.Diagnostics, 50)
}

func TestContextOptionsAreCopied(t *testing.T) {
	opts := subagent.Options{Namespace: "sample", Headers: []string{"sample.h"}}
	gc := NewContext(testConfig(), opts)
	opts.Headers[0] = "changed.h"
	assert.Equal(t, "sample.h", gc.Options.Headers[0])
}

func TestGenerateSuccess(t *testing.T) {
	cfg := testConfig("sample")
	gc := NewContext(cfg, cfg.UnitOptions(cfg.Units[0]))

	res := newGenerator(staticFrontend(nil)).Generate(context.Background(), gc)

	require.True(t, res.OK(), "%v", res.Diagnostics)
	assert.Equal(t, StatusOK, res.Status)
	assert.Equal(t, 3, res.Decls)
	assert.Equal(t, []string{"sample/native.go", "sample/sample_core.go"}, hints(res))
	assert.Contains(t, res.Outputs[1].Content, "type Extent struct")
	assert.Contains(t, res.Outputs[1].Content, "func (api *Sample) Draw() (err error)")
	assert.Equal(t, []diag.Code{diag.ParseUnsupported}, codes(res.Diagnostics))

	// the parsed syntax is kept as the frontend returned it
	require.NotNil(t, gc.Parsed)
	assert.Equal(t, "SampleExtent", gc.Parsed.At(1).EmitName())
}

func TestGenerateOrderingWarningsFollowParse(t *testing.T) {
	cfg := testConfig("sample")
	cfg.Mods = []config.ModConfig{
		{Name: mod.NameStripLocations},
		{Name: mod.NameLocationDocs},
	}
	gc := NewContext(cfg, cfg.UnitOptions(cfg.Units[0]))

	res := newGenerator(staticFrontend(nil)).Generate(context.Background(), gc)

	require.True(t, res.OK(), "%v", res.Diagnostics)
	got := codes(res.Diagnostics)
	require.GreaterOrEqual(t, len(got), 2)
	assert.Equal(t, []diag.Code{diag.ParseUnsupported, diag.ModOrdering}, got[:2])
}

func TestGenerateFatalModSkipsEmission(t *testing.T) {
	cfg := testConfig("sample")
	gc := NewContext(cfg, cfg.UnitOptions(cfg.Units[0]))

	res := newGenerator(staticFrontend(map[string]int{"sample": 3})).Generate(context.Background(), gc)

	assert.Equal(t, StatusFailed, res.Status)
	assert.Empty(t, res.Outputs)
	assert.Equal(t, []diag.Code{diag.ParseUnsupported, diag.ModLint}, codes(res.Diagnostics))
	assert.True(t, res.Diagnostics[1].Fatal)
	assert.Equal(t, mod.NameLint, res.Diagnostics[1].Source)
}

func TestGenerateParseFailure(t *testing.T) {
	tests := []struct {
		name   string
		status subagent.Status
		want   Status
		code   diag.Code
	}{
		{"exited", subagent.StatusExited, StatusFailed, diag.ParseWorker},
		{"failed to start", subagent.StatusFailedToStart, StatusFailed, diag.ParseWorker},
		{"aborted", subagent.StatusAborted, StatusAborted, diag.ParseAborted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := frontendFunc(func(_ context.Context, opts subagent.Options) (*parse.Unit, error) {
				return nil, &parse.Failure{Namespace: opts.Namespace, Status: tt.status, ExitCode: 3, Errors: []string{"boom", "again"}}
			})
			cfg := testConfig("sample")
			res := newGenerator(f).Generate(context.Background(), NewContext(cfg, cfg.UnitOptions(cfg.Units[0])))

			assert.Equal(t, tt.want, res.Status)
			assert.Empty(t, res.Outputs)
			require.Len(t, res.Diagnostics, 2)
			assert.Equal(t, tt.code, res.Diagnostics[0].Code)
			assert.Equal(t, "boom", res.Diagnostics[0].Message)
			assert.Equal(t, "again", res.Diagnostics[1].Message)
		})
	}
}

func TestGenerateBadModConfig(t *testing.T) {
	cfg := testConfig("sample")
	cfg.Mods = []config.ModConfig{{Name: "no-such-mod"}}
	parsed := false
	f := frontendFunc(func(context.Context, subagent.Options) (*parse.Unit, error) {
		parsed = true
		return &parse.Unit{Set: unitSet(0)}, nil
	})

	res := newGenerator(f).Generate(context.Background(), NewContext(cfg, cfg.UnitOptions(cfg.Units[0])))

	assert.Equal(t, StatusFailed, res.Status)
	assert.False(t, parsed, "no worker is started for a broken pipeline")
	require.Len(t, res.Diagnostics, 1)
	assert.Equal(t, diag.GenConfig, res.Diagnostics[0].Code)
}

func TestGenerateCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cfg := testConfig("sample")

	res := newGenerator(staticFrontend(nil)).Generate(ctx, NewContext(cfg, cfg.UnitOptions(cfg.Units[0])))

	assert.Equal(t, StatusAborted, res.Status)
	assert.Equal(t, []diag.Code{diag.GenAborted}, codes(res.Diagnostics))
}

func TestDriverSiblingUnaffectedByFatal(t *testing.T) {
	cfg := testConfig("good", "bad")
	d := newDriver(staticFrontend(map[string]int{"good": 1, "bad": 3}), 2)

	results, err := d.Run(context.Background(), Contexts(cfg))
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "good", results[0].Namespace)
	assert.Equal(t, StatusOK, results[0].Status)
	assert.Equal(t, []string{"good/native.go", "good/good_core.go"}, hints(results[0]))

	assert.Equal(t, "bad", results[1].Namespace)
	assert.Equal(t, StatusFailed, results[1].Status)
	assert.Empty(t, results[1].Outputs)
	assert.True(t, diag.HasFatal(results[1].Diagnostics))
}

func TestDriverContextIsolation(t *testing.T) {
	cfg := testConfig("alpha", "beta")
	d := newDriver(staticFrontend(nil), 2)

	results, err := d.Run(context.Background(), Contexts(cfg))
	require.NoError(t, err)

	seen := make(map[string]string)
	for _, r := range results {
		require.True(t, r.OK())
		for _, o := range r.Outputs {
			prev, dup := seen[o.Hint]
			assert.False(t, dup, "%s emitted by %s and %s", o.Hint, prev, r.Namespace)
			seen[o.Hint] = r.Namespace
			assert.Contains(t, o.Content, "package "+r.Namespace)
		}
	}
	assert.Len(t, seen, 4)
}

func TestDriverBoundsConcurrencyAndKeepsOrder(t *testing.T) {
	var running, peak atomic.Int32
	f := frontendFunc(func(_ context.Context, opts subagent.Options) (*parse.Unit, error) {
		n := running.Add(1)
		defer running.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		return &parse.Unit{Namespace: opts.Namespace, Set: unitSet(0)}, nil
	})

	units := []string{"u0", "u1", "u2", "u3", "u4", "u5"}
	results, err := newDriver(f, 2).Run(context.Background(), Contexts(testConfig(units...)))
	require.NoError(t, err)

	for i, r := range results {
		assert.Equal(t, units[i], r.Namespace)
		assert.True(t, r.OK())
	}
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestDriverUnitTimeout(t *testing.T) {
	f := frontendFunc(func(ctx context.Context, opts subagent.Options) (*parse.Unit, error) {
		if opts.Namespace == "slow" {
			<-ctx.Done()
			return nil, &parse.Failure{Namespace: opts.Namespace, Status: subagent.StatusAborted, ExitCode: -1, Err: ctx.Err()}
		}
		return &parse.Unit{Namespace: opts.Namespace, Set: unitSet(0)}, nil
	})
	d := newDriver(f, 2)
	d.UnitTimeout = 50 * time.Millisecond

	results, err := d.Run(context.Background(), Contexts(testConfig("slow", "fast")))
	require.NoError(t, err)

	assert.Equal(t, StatusAborted, results[0].Status)
	assert.Equal(t, diag.ParseAborted, results[0].Diagnostics[0].Code)
	assert.Equal(t, StatusOK, results[1].Status)
}

func TestDriverFailFast(t *testing.T) {
	d := newDriver(staticFrontend(map[string]int{"bad": 3}), 1)
	d.FailFast = true

	results, err := d.Run(context.Background(), Contexts(testConfig("bad", "next", "last")))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnitFailed))

	assert.Equal(t, StatusFailed, results[0].Status)
	for _, r := range results[1:] {
		assert.Equal(t, StatusSkipped, r.Status, r.Namespace)
		assert.Equal(t, []diag.Code{diag.GenSkipped}, codes(r.Diagnostics))
	}
}

func TestDriverDeterminism(t *testing.T) {
	cfg := testConfig("alpha", "beta", "bad")
	f := staticFrontend(map[string]int{"bad": 3})

	first, err := newDriver(f, 3).Run(context.Background(), Contexts(cfg))
	require.NoError(t, err)
	second, err := newDriver(f, 3).Run(context.Background(), Contexts(cfg))
	require.NoError(t, err)

	for i := range first {
		assert.Equal(t, first[i].Status, second[i].Status)
		assert.Equal(t, first[i].Outputs, second[i].Outputs)
		assert.Equal(t, first[i].Diagnostics, second[i].Diagnostics)
	}
}

func TestDriverNoUnits(t *testing.T) {
	results, err := newDriver(staticFrontend(nil), 0).Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}
