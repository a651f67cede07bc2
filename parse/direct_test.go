package parse

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/teranos/bindgen/decl"
	"github.com/teranos/bindgen/diag"
	"github.com/teranos/bindgen/errors"
	"github.com/teranos/bindgen/subagent"
)

var sampleDefines = []string{"SAMPLEAPI_ATTR=", "SAMPLEAPI_CALL=", "SAMPLEAPI_PTR="}

func sampleUnit(defines ...string) subagent.Options {
	return subagent.Options{
		Namespace:   "sample",
		Headers:     []string{"sample.h"},
		IncludeDirs: []string{"testdata"},
		Defines:     append(append([]string(nil), sampleDefines...), defines...),
	}
}

func parseSample(t *testing.T, defines ...string) *Unit {
	t.Helper()
	f := &DirectFrontend{Logger: zap.NewNop().Sugar()}
	u, err := f.Parse(context.Background(), sampleUnit(defines...))
	require.NoError(t, err)
	return u
}

func one(t *testing.T, u *Unit, name string) *decl.Declaration {
	t.Helper()
	ds := u.Set.Lookup(name)
	require.Len(t, ds, 1, "declaration %s", name)
	return ds[0]
}

func TestDirectParseOrder(t *testing.T) {
	u := parseSample(t)

	assert.Empty(t, u.Diagnostics)
	assert.Equal(t, []string{
		"SAMPLE_VERSION", "SAMPLE_NAME", "SAMPLE_SCALE",
		"SampleFlags", "SampleDevice", "SampleResult", "SampleExtent", "PFN_sampleCallback",
		"sampleStable", "sampleCreateDevice", "sampleGetItems", "sampleGetName", "sampleInC",
	}, u.Set.Names())
}

func TestDirectConstants(t *testing.T) {
	u := parseSample(t)

	v := one(t, u, "SAMPLE_VERSION")
	assert.Equal(t, decl.KindConstant, v.Kind)
	assert.Equal(t, "3", v.Value)
	assert.Equal(t, "int", v.Type)
	assert.Equal(t, decl.Location{File: "sample.h", Line: 4, Column: 1}, *v.Loc)

	assert.Equal(t, "const char*", one(t, u, "SAMPLE_NAME").Type)
	assert.Equal(t, "float", one(t, u, "SAMPLE_SCALE").Type)
	assert.Empty(t, u.Set.Lookup("SAMPLE_H"), "guard macros carry no value")
}

func TestDirectTypes(t *testing.T) {
	u := parseSample(t)

	flags := one(t, u, "SampleFlags")
	assert.Equal(t, decl.KindTypedef, flags.Kind)
	assert.Equal(t, "uint32_t", flags.Type)

	assert.Equal(t, "struct SampleDevice_T*", one(t, u, "SampleDevice").Type)
	assert.Equal(t, "void(*)(SampleDevice, const char*)", one(t, u, "PFN_sampleCallback").Type)

	res := one(t, u, "SampleResult")
	assert.Equal(t, decl.KindEnum, res.Kind)
	require.Len(t, res.Params, 4)
	assert.Equal(t, []string{"0", "1", "-3", "-2"},
		[]string{res.Params[0].Value, res.Params[1].Value, res.Params[2].Value, res.Params[3].Value})
	assert.Equal(t, "SAMPLE_NOT_READY", res.Params[1].Name)

	ext := one(t, u, "SampleExtent")
	assert.Equal(t, decl.KindStruct, ext.Kind)
	assert.Equal(t, []decl.Param{{Name: "width", Type: "uint32_t"}, {Name: "height", Type: "uint32_t"}}, ext.Params)
}

func TestDirectFunctions(t *testing.T) {
	u := parseSample(t)

	create := one(t, u, "sampleCreateDevice")
	assert.Equal(t, decl.KindFunction, create.Kind)
	assert.Equal(t, "SampleResult(const SampleExtent*, SampleDevice*)", create.Signature())
	assert.Equal(t, "pDevice", create.Params[1].Name)

	name := one(t, u, "sampleGetName")
	assert.Equal(t, "const char*", name.Type)
	assert.Empty(t, name.Params)

	assert.Equal(t, "void(int)", one(t, u, "sampleInC").Signature())
	assert.Empty(t, u.Set.Lookup("sampleNever"))
	assert.Equal(t, 31, create.Loc.Line)
}

func TestDirectIfdefSelectsBranch(t *testing.T) {
	u := parseSample(t, "SAMPLE_ENABLE_BETA")

	assert.Len(t, u.Set.Lookup("sampleBeta"), 1)
	assert.Empty(t, u.Set.Lookup("sampleStable"))
}

func TestDirectMissingHeaderIsFatalDiagnostic(t *testing.T) {
	opts := sampleUnit()
	opts.Headers = []string{"nope.h", "sample.h"}

	u, err := (&DirectFrontend{Logger: zap.NewNop().Sugar()}).Parse(context.Background(), opts)
	require.NoError(t, err)

	require.NotEmpty(t, u.Diagnostics)
	assert.Equal(t, diag.ParseMissing, u.Diagnostics[0].Code)
	assert.True(t, diag.HasFatal(u.Diagnostics))
	assert.NotZero(t, u.Set.Len(), "later headers are still parsed")
}

func TestDirectSyntaxErrorsAreWarnings(t *testing.T) {
	opts := sampleUnit()
	opts.Headers = []string{"broken.h"}

	u, err := (&DirectFrontend{Logger: zap.NewNop().Sugar()}).Parse(context.Background(), opts)
	require.NoError(t, err)

	require.NotEmpty(t, u.Diagnostics)
	for _, d := range u.Diagnostics {
		assert.Equal(t, diag.ParseSyntax, d.Code)
		assert.Equal(t, diag.SevWarning, d.Severity)
		assert.False(t, d.Fatal)
		require.NotNil(t, d.Location)
		assert.Equal(t, "broken.h", d.Location.File)
		assert.GreaterOrEqual(t, d.Location.Line, 1)
	}
}

func TestDirectCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := (&DirectFrontend{}).Parse(ctx, sampleUnit())

	f, ok := AsFailure(err)
	require.True(t, ok)
	assert.True(t, f.Aborted())
}

func TestParseFailureCancelledIsAborted(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := parseFailure(ctx, sampleUnit(), "sample.h", errors.New("operation limit was hit"))
	assert.True(t, f.Aborted())
	assert.Equal(t, subagent.StatusAborted, f.Status)
	assert.True(t, errors.IsAborted(f.Err), "%+v", f.Err)

	f = parseFailure(context.Background(), sampleUnit(), "sample.h", errors.New("operation limit was hit"))
	assert.False(t, f.Aborted())
	assert.Equal(t, subagent.StatusExited, f.Status)
	assert.Equal(t, []string{"operation limit was hit"}, f.Errors)
}

func TestSubstituter(t *testing.T) {
	s := newSubstituter([]string{"API=", "CALL=__stdcall", "BARE"})
	src := "#ifdef API\n#define X \\\n  API\nAPI int CALL f(void); int APIX;\n"

	got, _ := s.apply([]byte(src))

	assert.Equal(t, "#ifdef API\n#define X \\\n  API\n    int __stdcall f(void); int APIX;\n", string(got))

	same, cols := newSubstituter(nil).apply([]byte("same"))
	assert.Equal(t, []byte("same"), same)
	assert.Equal(t, 7, cols.original(0, 7))
}

func TestSubstituterSkipsCommentsAndLiterals(t *testing.T) {
	s := newSubstituter([]string{"API=", "ABI=x"})
	src := strings.Join([]string{
		`API void f(void); // API call`,
		`/* API`,
		`   still API */ API int g;`,
		`const char* s = "API"; char c = 'A'; ABI h;`,
	}, "\n")

	got, _ := s.apply([]byte(src))

	assert.Equal(t, strings.Join([]string{
		`    void f(void); // API call`,
		`/* API`,
		`   still API */     int g;`,
		`const char* s = "API"; char c = 'A'; x   h;`,
	}, "\n"), string(got))
}

func TestSubstituterKeepsColumns(t *testing.T) {
	s := newSubstituter([]string{"CALL=__stdcall", "R=int"})
	got, cols := s.apply([]byte("R CALL f(void); R g(void);"))

	line := string(got)
	assert.Equal(t, "int __stdcall f(void); int g(void);", line)

	// columns after each replacement map back to the header text
	assert.Equal(t, 0, cols.original(0, strings.Index(line, "int __stdcall")))
	assert.Equal(t, 7, cols.original(0, strings.Index(line, "f(void)")))
	assert.Equal(t, 16, cols.original(0, strings.Index(line, "int g")))
	assert.Equal(t, 18, cols.original(0, strings.Index(line, "g(void)")))
}

func TestDirectLocationsIgnoreDefineWidth(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "wide.h"),
		[]byte("CC void first(void); CC void second(void);\n"), 0o644))

	f := &DirectFrontend{Logger: zap.NewNop().Sugar()}
	u, err := f.Parse(context.Background(), subagent.Options{
		Namespace:   "wide",
		Headers:     []string{"wide.h"},
		IncludeDirs: []string{dir},
		Defines:     []string{"CC=extern"},
	})
	require.NoError(t, err)

	assert.Equal(t, decl.Location{File: "wide.h", Line: 1, Column: 1}, *one(t, u, "first").Loc)
	assert.Equal(t, decl.Location{File: "wide.h", Line: 1, Column: 22}, *one(t, u, "second").Loc)
}

func TestConstType(t *testing.T) {
	tests := map[string]string{
		"3":         "int",
		"0x10":      "int",
		"(~0U)":     "",
		"1U":        "uint32_t",
		"1ULL":      "uint64_t",
		"-5LL":      "int64_t",
		"1.0":       "double",
		"0.5f":      "float",
		`"name"`:    "const char*",
		"A | B":     "",
		"(1)":       "int",
	}
	for in, want := range tests {
		assert.Equal(t, want, constType(in), in)
	}
}
