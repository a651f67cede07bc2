package parse

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/c"
	"go.uber.org/zap"

	"github.com/teranos/bindgen/decl"
	"github.com/teranos/bindgen/diag"
	"github.com/teranos/bindgen/errors"
	"github.com/teranos/bindgen/logger"
	"github.com/teranos/bindgen/subagent"
)

// nativeMu serializes in-process use of the native parser.
var nativeMu sync.Mutex

// DirectFrontend parses headers in the current process with tree-sitter's
// C grammar.
type DirectFrontend struct {
	Logger *zap.SugaredLogger
}

func (f *DirectFrontend) log() *zap.SugaredLogger {
	if f.Logger != nil {
		return f.Logger
	}
	return logger.Logger.Named(Stage)
}

// Parse reads and parses every header of opts in order. A header that
// cannot be found is a fatal diagnostic; syntax errors are warnings.
func (f *DirectFrontend) Parse(ctx context.Context, opts subagent.Options) (*Unit, error) {
	nativeMu.Lock()
	defer nativeMu.Unlock()

	unit := &Unit{Namespace: opts.Namespace, Set: decl.NewSet()}
	defines := opts.DefineMap()
	subst := newSubstituter(opts.Defines)

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(c.GetLanguage())

	for _, header := range opts.Headers {
		if err := ctx.Err(); err != nil {
			return nil, aborted(opts, err)
		}

		path, ok := resolveHeader(header, opts.IncludeDirs)
		if !ok {
			unit.Diagnostics = append(unit.Diagnostics,
				diag.Fatalf(diag.ParseMissing, "header %s not found in %v", header, opts.IncludeDirs).From(Stage))
			continue
		}

		src, err := os.ReadFile(path)
		if err != nil {
			unit.Diagnostics = append(unit.Diagnostics,
				diag.Fatalf(diag.ParseMissing, "failed to read header %s: %v", path, err).From(Stage))
			continue
		}

		text, cols := subst.apply(src)
		tree, err := parser.ParseCtx(ctx, nil, text)
		if err != nil {
			return nil, parseFailure(ctx, opts, header, err)
		}

		w := newWalker(text, cols, header, defines, f.log())
		w.walk(tree.RootNode())
		tree.Close()

		for i := range w.decls {
			unit.Set.Add(&w.decls[i])
		}
		unit.Diagnostics = append(unit.Diagnostics, w.diags...)

		logger.Trace(f.log(), "Header parsed", logger.FieldFile, header, logger.FieldDecls, len(w.decls))
	}
	return unit, nil
}

// parseFailure classifies an error from the native parser. tree-sitter only
// gives up when it is cancelled, which is an abort rather than a crash.
func parseFailure(ctx context.Context, opts subagent.Options, header string, err error) *Failure {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return aborted(opts, ctxErr)
	}
	return &Failure{
		Namespace: opts.Namespace,
		Status:    subagent.StatusExited,
		ExitCode:  subagent.ExitFailed,
		Errors:    []string{err.Error()},
		Err:       errors.Wrapf(err, "tree-sitter failed on %s", header),
	}
}

func aborted(opts subagent.Options, err error) *Failure {
	return &Failure{
		Namespace: opts.Namespace,
		Status:    subagent.StatusAborted,
		ExitCode:  -1,
		Err:       errors.WithSecondaryError(errors.ErrAborted, err),
	}
}

// resolveHeader finds header as given, then under each include dir.
func resolveHeader(header string, includeDirs []string) (string, bool) {
	if filepath.IsAbs(header) {
		return header, fileExists(header)
	}
	if fileExists(header) {
		return header, true
	}
	for _, dir := range includeDirs {
		p := filepath.Join(dir, header)
		if fileExists(p) {
			return p, true
		}
	}
	return "", false
}

func fileExists(p string) bool {
	st, err := os.Stat(p)
	return err == nil && !st.IsDir()
}

// substituter replaces NAME=VALUE defines as whole words in code, leaving
// preprocessor directives, comments and string or character literals alone.
// Shorter values are padded with spaces; longer ones are recorded in a
// columnMap so locations still point into the original header.
type substituter struct {
	re     *regexp.Regexp
	values map[string]string
}

func newSubstituter(defines []string) *substituter {
	s := &substituter{values: make(map[string]string)}
	var names []string
	for _, d := range defines {
		name, value, ok := strings.Cut(d, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			continue
		}
		if _, dup := s.values[name]; !dup {
			names = append(names, regexp.QuoteMeta(name))
		}
		s.values[name] = value
	}
	if len(names) > 0 {
		s.re = regexp.MustCompile(`\b(?:` + strings.Join(names, "|") + `)\b`)
	}
	return s
}

func (s *substituter) apply(src []byte) ([]byte, columnMap) {
	if s.re == nil {
		return src, nil
	}
	lines := strings.Split(string(src), "\n")
	cols := columnMap{}
	inDirective, inComment := false, false
	for i, line := range lines {
		directive := inDirective || strings.HasPrefix(strings.TrimLeft(line, " \t"), "#")
		inDirective = directive && strings.HasSuffix(strings.TrimRight(line, " \t\r"), `\`)
		var spans [][2]int
		spans, inComment = codeSpans(line, inComment)
		if directive {
			continue
		}
		lines[i] = s.replaceLine(line, spans, i, cols)
	}
	return []byte(strings.Join(lines, "\n")), cols
}

func (s *substituter) replaceLine(line string, spans [][2]int, row int, cols columnMap) string {
	var b strings.Builder
	last := 0
	for _, sp := range spans {
		for _, m := range s.re.FindAllStringIndex(line[sp[0]:sp[1]], -1) {
			start, end := sp[0]+m[0], sp[0]+m[1]
			value := s.values[line[start:end]]
			if n := end - start - len(value); n > 0 {
				value += strings.Repeat(" ", n)
			}
			b.WriteString(line[last:start])
			b.WriteString(value)
			last = end
			if d := end - start - len(value); d != 0 {
				cols[row] = append(cols[row], shift{at: b.Len(), delta: d})
			}
		}
	}
	if last == 0 {
		return line
	}
	b.WriteString(line[last:])
	return b.String()
}

// codeSpans returns the byte ranges of line outside comments and literals.
// inComment carries an open block comment across lines.
func codeSpans(line string, inComment bool) ([][2]int, bool) {
	var spans [][2]int
	code := 0
	for i := 0; i < len(line); i++ {
		if inComment {
			if strings.HasPrefix(line[i:], "*/") {
				inComment = false
				i++
				code = i + 1
			}
			continue
		}
		switch ch := line[i]; {
		case strings.HasPrefix(line[i:], "/*"):
			spans = appendSpan(spans, code, i)
			inComment = true
			i++
		case strings.HasPrefix(line[i:], "//"):
			return appendSpan(spans, code, i), false
		case ch == '"' || ch == '\'':
			spans = appendSpan(spans, code, i)
			i = literalEnd(line, i)
			code = i + 1
		}
	}
	if !inComment {
		spans = appendSpan(spans, code, len(line))
	}
	return spans, inComment
}

func appendSpan(spans [][2]int, start, end int) [][2]int {
	if end > start {
		spans = append(spans, [2]int{start, end})
	}
	return spans
}

// literalEnd returns the index of the quote closing the literal opened at i,
// or the last index of line when it is unterminated.
func literalEnd(line string, i int) int {
	quote := line[i]
	for j := i + 1; j < len(line); j++ {
		switch line[j] {
		case '\\':
			j++
		case quote:
			return j
		}
	}
	return len(line) - 1
}

type shift struct {
	at    int // column in the substituted line where the shift starts
	delta int // original length minus substituted length
}

// columnMap maps columns of substituted lines back to the header text.
type columnMap map[int][]shift

func (m columnMap) original(row, col int) int {
	orig := col
	for _, s := range m[row] {
		if s.at > col {
			break
		}
		orig += s.delta
	}
	return orig
}
