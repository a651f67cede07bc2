package emit

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path"
	"sync"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"

	"github.com/teranos/bindgen/errors"
)

// Artifact is one written output file.
type Artifact struct {
	Path string `yaml:"path"`
	Hash string `yaml:"hash"`
	Size int    `yaml:"size"`
	// Changed is false when the file already held the same content and
	// was left untouched.
	Changed bool `yaml:"changed"`
}

// Writer places emitted outputs on a filesystem. Two units may emit the
// same hint only with identical content.
type Writer struct {
	fs billy.Filesystem

	mu      sync.Mutex
	written map[string]string
}

// NewWriter writes into fs.
func NewWriter(fs billy.Filesystem) *Writer {
	return &Writer{fs: fs, written: make(map[string]string)}
}

// NewDirWriter writes below dir on disk.
func NewDirWriter(dir string) *Writer {
	return NewWriter(osfs.New(dir))
}

// NewMemWriter writes into memory; used for dry runs and checks.
func NewMemWriter() *Writer {
	return NewWriter(memfs.New())
}

// Filesystem returns the underlying filesystem.
func (w *Writer) Filesystem() billy.Filesystem {
	return w.fs
}

// Hash returns the content hash recorded for artifacts.
func Hash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// Write stores content at hint.
func (w *Writer) Write(hint, content string) (Artifact, error) {
	a := Artifact{Path: hint, Hash: Hash(content), Size: len(content)}

	w.mu.Lock()
	defer w.mu.Unlock()

	if prev, ok := w.written[hint]; ok {
		if prev != a.Hash {
			return a, errors.WithHint(
				errors.Newf("two units emitted different content for %s", hint),
				"give each unit its own package or namespace",
			)
		}
		return a, nil
	}

	existing, err := w.read(hint)
	if err != nil {
		return a, err
	}
	if existing != nil && Hash(string(existing)) == a.Hash {
		w.written[hint] = a.Hash
		return a, nil
	}

	if dir := path.Dir(hint); dir != "." {
		if err := w.fs.MkdirAll(dir, 0o755); err != nil {
			return a, errors.Wrapf(err, "failed to create %s", dir)
		}
	}
	if err := util.WriteFile(w.fs, hint, []byte(content), 0o644); err != nil {
		return a, errors.Wrapf(err, "failed to write %s", hint)
	}
	w.written[hint] = a.Hash
	a.Changed = true
	return a, nil
}

// Read returns the current content at hint, or nil when there is none.
func (w *Writer) Read(hint string) ([]byte, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.read(hint)
}

func (w *Writer) read(hint string) ([]byte, error) {
	f, err := w.fs.Open(hint)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "failed to open %s", hint)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", hint)
	}
	return data, nil
}
