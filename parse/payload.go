package parse

import (
	"bufio"
	"os"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/teranos/bindgen/decl"
	"github.com/teranos/bindgen/diag"
	"github.com/teranos/bindgen/errors"
	"github.com/teranos/bindgen/version"
)

// payload is what a worker hands back to the coordinator.
type payload struct {
	Version      int                `msgpack:"version"`
	Namespace    string             `msgpack:"namespace"`
	Declarations []decl.Declaration `msgpack:"declarations"`
	Diagnostics  []diag.Diagnostic  `msgpack:"diagnostics"`
}

// WritePayload stores u at path for the coordinator to read.
func WritePayload(path string, u *Unit) error {
	p := payload{
		Version:      version.PayloadVersion,
		Namespace:    u.Namespace,
		Declarations: u.Set.Values(),
		Diagnostics:  u.Diagnostics,
	}

	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "failed to create payload %s", path)
	}
	w := bufio.NewWriter(f)
	if err := msgpack.NewEncoder(w).Encode(&p); err != nil {
		f.Close()
		return errors.Wrapf(err, "failed to encode payload %s", path)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return errors.Wrapf(err, "failed to write payload %s", path)
	}
	return errors.Wrapf(f.Close(), "failed to close payload %s", path)
}

// ReadPayload loads a unit written by WritePayload.
func ReadPayload(path string) (*Unit, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open payload %s", path)
	}
	defer f.Close()

	var p payload
	if err := msgpack.NewDecoder(bufio.NewReader(f)).Decode(&p); err != nil {
		return nil, errors.Wrapf(err, "failed to decode payload %s", path)
	}
	if p.Version != version.PayloadVersion {
		return nil, errors.WithHint(
			errors.Newf("payload %s has version %d, expected %d", path, p.Version, version.PayloadVersion),
			"the worker executable is a different bindgen build than the coordinator",
		)
	}
	return &Unit{
		Namespace:   p.Namespace,
		Set:         decl.NewSet(p.Declarations...),
		Diagnostics: p.Diagnostics,
	}, nil
}
