package mod

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/teranos/bindgen/config"
	"github.com/teranos/bindgen/decl"
	"github.com/teranos/bindgen/diag"
	"github.com/teranos/bindgen/errors"
)

func loc(line int) *decl.Location {
	return &decl.Location{File: "include/sample.h", Line: line, Column: 1}
}

// sampleSet mirrors parse/testdata/sample.h plus one vendor extension.
func sampleSet() *decl.Set {
	return decl.NewSet(
		decl.Declaration{Kind: decl.KindConstant, Name: "SAMPLE_VERSION", Type: "int", Value: "3", Loc: loc(4)},
		decl.Declaration{Kind: decl.KindTypedef, Name: "SampleFlags", Type: "uint32_t", Loc: loc(8)},
		decl.Declaration{Kind: decl.KindEnum, Name: "SampleResult", Loc: loc(11), Params: []decl.Param{
			{Name: "SAMPLE_SUCCESS", Value: "0"},
			{Name: "SAMPLE_ERROR", Value: "-3"},
		}},
		decl.Declaration{Kind: decl.KindStruct, Name: "SampleExtent", Loc: loc(18), Params: []decl.Param{
			{Name: "width", Type: "uint32_t"},
			{Name: "height", Type: "uint32_t"},
		}},
		decl.Declaration{Kind: decl.KindFunction, Name: "sampleCreateDevice", Type: "SampleResult", Loc: loc(31), Params: []decl.Param{
			{Name: "pExtent", Type: "const SampleExtent*"},
			{Name: "pDevice", Type: "SampleDevice*"},
		}},
		decl.Declaration{Kind: decl.KindFunction, Name: "sampleGetItems", Type: "void", Loc: loc(32), Params: []decl.Param{
			{Name: "device", Type: "SampleDevice"},
			{Name: "pItemCount", Type: "uint32_t*"},
			{Name: "pItems", Type: "SampleExtent*"},
		}},
		decl.Declaration{Kind: decl.KindFunction, Name: "sampleDestroySurfaceKHR", Type: "void", Loc: loc(33), Params: []decl.Param{
			{Name: "device", Type: "SampleDevice"},
		}},
	)
}

// funcMod is a test mod backed by a function.
type funcMod struct {
	name   string
	traits Traits
	fn     func(*decl.Set) (*decl.Set, []diag.Diagnostic)
}

func (m funcMod) Name() string   { return m.name }
func (m funcMod) Traits() Traits { return m.traits }
func (m funcMod) Apply(s *decl.Set, _ *config.Config) (*decl.Set, []diag.Diagnostic) {
	return m.fn(s)
}

func passthrough(name string, ran *[]string) Mod {
	return funcMod{name: name, fn: func(s *decl.Set) (*decl.Set, []diag.Diagnostic) {
		*ran = append(*ran, name)
		return s, []diag.Diagnostic{diag.Infof(diag.ModLint, "%s ran", name)}
	}}
}

func quiet(p *Pipeline) *Pipeline {
	p.Logger = zap.NewNop().Sugar()
	return p
}

func TestDefaultRegistry(t *testing.T) {
	r := Default()
	assert.Equal(t, []string{
		"exclude", "extensions", "flow", "inject", "lint", "location-docs",
		"overloads", "rename", "strip-locations", "typemap",
	}, r.Names())

	for _, mc := range config.DefaultMods() {
		_, _, ok := r.Get(mc.Name)
		assert.True(t, ok, "default mod %s is registered", mc.Name)
	}
}

func TestBuildTemplatePipeline(t *testing.T) {
	p, ds, err := Build(Default(), config.Template().Mods)
	require.NoError(t, err)
	assert.Empty(t, ds)
	assert.Equal(t, []string{
		"extensions", "flow", "rename", "typemap", "overloads",
		"location-docs", "lint", "inject", "strip-locations",
	}, p.Names())

	// the shipped example parameters for exclude are valid once enabled
	mcs := config.DefaultMods()
	mcs[0].Enabled = nil
	p, _, err = Build(Default(), mcs)
	require.NoError(t, err)
	assert.Equal(t, NameExclude, p.Names()[0])
}

func TestRegistryRegister(t *testing.T) {
	r := NewRegistry()
	factory := func(map[string]interface{}) (Mod, error) { return nil, nil }

	require.NoError(t, r.Register(Info{Name: "a", Version: "1.2.3"}, factory))
	assert.Error(t, r.Register(Info{Name: "a", Version: "1.2.3"}, factory), "duplicate")
	assert.Error(t, r.Register(Info{Name: "b", Version: "one"}, factory), "bad version")
	assert.Error(t, r.Register(Info{Version: "1.0.0"}, factory), "no name")
}

func TestBuildUnknownMod(t *testing.T) {
	_, _, err := Build(Default(), []config.ModConfig{{Name: "renamer"}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrUnknownMod))
	assert.Contains(t, errors.FlattenHints(err), "rename")
}

func TestBuildVersionConstraints(t *testing.T) {
	tests := []struct {
		constraint string
		wantErr    bool
	}{
		{constraint: ""},
		{constraint: "^1.0"},
		{constraint: ">= 1.1, < 2"},
		{constraint: "^2", wantErr: true},
		{constraint: "not a constraint", wantErr: true},
	}
	for _, tt := range tests {
		_, _, err := Build(Default(), []config.ModConfig{{Name: NameRename, Version: tt.constraint}})
		if tt.wantErr {
			require.Error(t, err, tt.constraint)
			assert.True(t, errors.IsInvalidConfig(err), tt.constraint)
			continue
		}
		assert.NoError(t, err, tt.constraint)
	}
}

func TestBuildRejectsBadParameters(t *testing.T) {
	tests := []struct {
		name string
		mc   config.ModConfig
	}{
		{"unknown key", config.ModConfig{Name: NameRename, Params: map[string]interface{}{"stripprefix": "vk"}}},
		{"unknown attribute kind", config.ModConfig{Name: NameLint, Params: map[string]interface{}{"require_attrs": []interface{}{"docs"}}}},
		{"unknown case", config.ModConfig{Name: NameRename, Params: map[string]interface{}{"case": "upper"}}},
		{"bad pair", config.ModConfig{Name: NameTypemap, Params: map[string]interface{}{"types": []interface{}{"uint32_t"}}}},
		{"bad flow", config.ModConfig{Name: NameFlow, Params: map[string]interface{}{"flows": []interface{}{"f.p=sideways"}}}},
		{"flow without param", config.ModConfig{Name: NameFlow, Params: map[string]interface{}{"flows": []interface{}{"f=out"}}}},
		{"zero count", config.ModConfig{Name: NameFlow, Params: map[string]interface{}{"counts": []interface{}{"f.p=0"}}}},
		{"bad kind", config.ModConfig{Name: NameExclude, Params: map[string]interface{}{"kinds": []interface{}{"klass"}}}},
		{"bad pattern", config.ModConfig{Name: NameExclude, Params: map[string]interface{}{"names": []interface{}{"["}}}},
		{"exclude nothing", config.ModConfig{Name: NameExclude}},
		{"bad stage", config.ModConfig{Name: NameInject, Params: map[string]interface{}{"snippets": []interface{}{
			map[string]interface{}{"match": []interface{}{"*"}, "stage": "middle", "code": "x()"},
		}}}},
		{"empty raw suffix", config.ModConfig{Name: NameOverloads, Params: map[string]interface{}{"raw_suffix": ""}}},
		{"params on strip-locations", config.ModConfig{Name: NameStripLocations, Params: map[string]interface{}{"x": 1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Build(Default(), []config.ModConfig{tt.mc})
			require.Error(t, err)
			assert.True(t, errors.IsInvalidConfig(err), "%+v", err)
		})
	}
}

func TestBuildSkipsDisabledMods(t *testing.T) {
	off := false
	p, ds, err := Build(Default(), []config.ModConfig{
		{Name: NameRename},
		{Name: NameLint, Enabled: &off},
		{Name: NameStripLocations},
	})
	require.NoError(t, err)
	assert.Empty(t, ds)
	assert.Equal(t, []string{NameRename, NameStripLocations}, p.Names())
}

func TestBuildOrderingWarnings(t *testing.T) {
	_, ds, err := Build(Default(), config.DefaultMods())
	require.NoError(t, err)
	assert.Empty(t, ds, "the default order is consistent")

	p, ds, err := Build(Default(), []config.ModConfig{
		{Name: NameStripLocations},
		{Name: NameLocationDocs},
		{Name: NameInject},
		{Name: NameRename},
	})
	require.NoError(t, err)
	assert.Equal(t, 4, p.Len(), "the configured order is kept")
	require.Len(t, ds, 2)
	for _, d := range ds {
		assert.Equal(t, diag.ModOrdering, d.Code)
		assert.Equal(t, diag.SevWarning, d.Severity)
		assert.Equal(t, Source, d.Source)
	}
	assert.Contains(t, ds[0].Message, "location-docs needs source locations")
	assert.Contains(t, ds[1].Message, "rename runs after inject")
}

func TestPipelineRunsInOrderAndTagsDiagnostics(t *testing.T) {
	var ran []string
	p := quiet(NewPipeline(passthrough("a", &ran), passthrough("b", &ran), passthrough("c", &ran)))

	out, ds, fatal := p.Run(context.Background(), sampleSet(), nil)
	assert.False(t, fatal)
	assert.Equal(t, 7, out.Len())
	assert.Equal(t, []string{"a", "b", "c"}, ran)
	require.Len(t, ds, 3)
	for i, src := range []string{"a", "b", "c"} {
		assert.Equal(t, src, ds[i].Source)
	}
}

func TestPipelineFatalShortCircuit(t *testing.T) {
	var ran []string
	halt := funcMod{name: "halt", fn: func(s *decl.Set) (*decl.Set, []diag.Diagnostic) {
		ran = append(ran, "halt")
		return s, []diag.Diagnostic{
			diag.Warningf(diag.ModLint, "before"),
			diag.Fatalf(diag.ModLint, "stop"),
		}
	}}
	p := quiet(NewPipeline(passthrough("a", &ran), halt, passthrough("c", &ran)))

	_, ds, fatal := p.Run(context.Background(), sampleSet(), nil)
	assert.True(t, fatal)
	assert.Equal(t, []string{"a", "halt"}, ran, "mods after the fatal one do not run")
	require.Len(t, ds, 3)
	assert.Equal(t, "stop", ds[2].Message)
	assert.True(t, ds[2].Fatal)
	assert.Equal(t, "halt", ds[2].Source)
}

func TestPipelinePanicBecomesFatal(t *testing.T) {
	var ran []string
	boom := funcMod{name: "boom", fn: func(*decl.Set) (*decl.Set, []diag.Diagnostic) {
		panic("index out of range")
	}}
	p := quiet(NewPipeline(boom, passthrough("after", &ran)))

	_, ds, fatal := p.Run(context.Background(), sampleSet(), nil)
	assert.True(t, fatal)
	assert.Empty(t, ran)
	require.Len(t, ds, 1)
	assert.Equal(t, diag.ModPanic, ds[0].Code)
	assert.Equal(t, "boom", ds[0].Source)
	assert.Contains(t, ds[0].Message, "index out of range")
}

func TestPipelineNilSetIsFatal(t *testing.T) {
	nilMod := funcMod{name: "nil", fn: func(*decl.Set) (*decl.Set, []diag.Diagnostic) { return nil, nil }}
	_, ds, fatal := quiet(NewPipeline(nilMod)).Run(context.Background(), sampleSet(), nil)
	assert.True(t, fatal)
	require.Len(t, ds, 1)
	assert.Equal(t, diag.ModPanic, ds[0].Code)
}

func TestPipelineRejectsFabricatedDeclarations(t *testing.T) {
	tests := []struct {
		name string
		fn   func(*decl.Set) (*decl.Set, []diag.Diagnostic)
	}{
		{"new declaration", func(s *decl.Set) (*decl.Set, []diag.Diagnostic) {
			s.Add(&decl.Declaration{Kind: decl.KindFunction, Name: "sampleInvented", Type: "void"})
			return s, nil
		}},
		{"changed parameter type", func(s *decl.Set) (*decl.Set, []diag.Diagnostic) {
			s.Lookup("sampleCreateDevice")[0].Params[1].Type = "void*"
			return s, nil
		}},
		{"renamed native name", func(s *decl.Set) (*decl.Set, []diag.Diagnostic) {
			s.Lookup("SampleFlags")[0].Name = "Flags"
			return s, nil
		}},
		{"changed constant value", func(s *decl.Set) (*decl.Set, []diag.Diagnostic) {
			s.Lookup("SAMPLE_VERSION")[0].Value = "999"
			return s, nil
		}},
		{"changed enum member value", func(s *decl.Set) (*decl.Set, []diag.Diagnostic) {
			s.Lookup("SampleResult")[0].Params[1].Value = "999"
			return s, nil
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := quiet(NewPipeline(funcMod{name: "liar", fn: tt.fn}))
			_, ds, fatal := p.Run(context.Background(), sampleSet(), nil)
			assert.True(t, fatal)
			require.Len(t, ds, 1)
			assert.Equal(t, diag.ModFabricated, ds[0].Code)
			assert.Equal(t, "liar", ds[0].Source)
		})
	}
}

func TestPipelineCancelled(t *testing.T) {
	var ran []string
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, ds, fatal := quiet(NewPipeline(passthrough("a", &ran))).Run(ctx, sampleSet(), nil)
	assert.True(t, fatal)
	assert.Empty(t, ran)
	require.Len(t, ds, 1)
	assert.Equal(t, diag.ModAborted, ds[0].Code)
}

func TestPipelineDeterminism(t *testing.T) {
	mcs := []config.ModConfig{
		{Name: NameExclude, Params: map[string]interface{}{"names": []interface{}{"*Destroy*"}}},
		{Name: NameExtensions, Params: map[string]interface{}{"suffixes": []interface{}{"KHR"}, "group": true}},
		{Name: NameFlow},
		{Name: NameRename, Params: map[string]interface{}{"strip_prefix": []interface{}{"sample"}, "strip_param_prefix": []interface{}{"p"}}},
		{Name: NameTypemap, Params: map[string]interface{}{"types": []interface{}{"uint32_t=uint32", "double=float64"}}},
		{Name: NameOverloads},
		{Name: NameLocationDocs},
		{Name: NameLint, Params: map[string]interface{}{"require_attrs": []interface{}{"doc"}}},
		{Name: NameInject, Params: map[string]interface{}{"snippets": []interface{}{
			map[string]interface{}{"match": []interface{}{"sampleCreate*"}, "code": "defer trace()()"},
		}}},
		{Name: NameStripLocations},
	}

	run := func() ([]*decl.Declaration, []diag.Diagnostic) {
		p, buildDiags, err := Build(Default(), mcs)
		require.NoError(t, err)
		require.Empty(t, buildDiags)
		out, ds, fatal := quiet(p).Run(context.Background(), sampleSet(), &config.Config{})
		require.False(t, fatal, "%v", ds)
		return out.All(), ds
	}

	a, adiags := run()
	b, bdiags := run()
	assert.Equal(t, a, b)
	assert.Equal(t, adiags, bdiags)
	assert.NotEmpty(t, adiags, "typemap reports the unused double mapping")
}
