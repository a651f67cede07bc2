package emit

import (
	"strings"

	"golang.org/x/tools/imports"
	"mvdan.cc/gofumpt/format"

	"github.com/teranos/bindgen/errors"
)

// Format fixes imports and applies gofumpt to generated Go source. Files
// that are not Go are returned unchanged.
func Format(filename string, src []byte) ([]byte, error) {
	if !strings.HasSuffix(filename, ".go") {
		return src, nil
	}
	out, err := imports.Process(filename, src, &imports.Options{
		Comments:  true,
		TabIndent: true,
		TabWidth:  8,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fix imports of %s", filename)
	}
	out, err = format.Source(out, format.Options{})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to format %s", filename)
	}
	return out, nil
}
