// Package artifact writes stage outputs with all-or-nothing semantics.
//
// A stage stages every output file in its destination directory under a
// hidden temporary name and publishes them with Commit, which renames each
// temporary file over its final name. Readers therefore see either the
// previous file or the complete new one, never a partial write. A stage that
// fails calls Abort and leaves nothing behind.
package artifact

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"

	"github.com/YuminosukeSato/tabpipe/pkg/errors"
)

// Artifact identifies a file on disk by path and content digest.
type Artifact struct {
	Path   string `json:"path"`
	SHA256 string `json:"sha256"`
	Bytes  int64  `json:"bytes"`
}

type staged struct {
	tmp   string
	final string
}

// Batch is a set of files published together. Not safe for concurrent use.
type Batch struct {
	dir    string
	staged []staged
	closed bool
}

// NewBatch prepares a batch writing into dir, creating it if needed.
func NewBatch(dir string) (*Batch, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create output directory %s", dir)
	}
	return &Batch{dir: dir}, nil
}

// Dir returns the destination directory.
func (b *Batch) Dir() string { return b.dir }

// Write stages name by streaming fn's output into a temporary file and
// returns the artifact the file will have once committed.
func (b *Batch) Write(name string, fn func(w io.Writer) error) (Artifact, error) {
	if b.closed {
		return Artifact{}, errors.Newf("artifact batch for %s already closed", b.dir)
	}
	final := filepath.Join(b.dir, name)

	f, err := os.CreateTemp(b.dir, "."+name+".tmp-*")
	if err != nil {
		return Artifact{}, errors.Wrapf(err, "stage %s", final)
	}
	tmp := f.Name()

	h := sha256.New()
	cw := &countingWriter{w: io.MultiWriter(f, h)}
	werr := fn(cw)
	if werr == nil {
		werr = f.Sync()
	}
	if cerr := f.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		_ = os.Remove(tmp)
		return Artifact{}, errors.Wrapf(werr, "write %s", final)
	}

	b.staged = append(b.staged, staged{tmp: tmp, final: final})
	return Artifact{Path: final, SHA256: hex.EncodeToString(h.Sum(nil)), Bytes: cw.n}, nil
}

// Commit publishes every staged file in the order it was written. Write the
// file that marks a run as complete (the ledger) last.
func (b *Batch) Commit() error {
	if b.closed {
		return errors.Newf("artifact batch for %s already closed", b.dir)
	}
	b.closed = true
	for i, s := range b.staged {
		if err := os.Rename(s.tmp, s.final); err != nil {
			for _, rest := range b.staged[i:] {
				_ = os.Remove(rest.tmp)
			}
			return errors.Wrapf(err, "publish %s", s.final)
		}
	}
	return nil
}

// Abort discards every staged file. Safe to call after Commit.
func (b *Batch) Abort() {
	if b.closed {
		return
	}
	b.closed = true
	for _, s := range b.staged {
		_ = os.Remove(s.tmp)
	}
}

// WriteFile atomically replaces path with fn's output.
func WriteFile(path string, fn func(w io.Writer) error) (Artifact, error) {
	b, err := NewBatch(filepath.Dir(path))
	if err != nil {
		return Artifact{}, err
	}
	a, err := b.Write(filepath.Base(path), fn)
	if err != nil {
		b.Abort()
		return Artifact{}, err
	}
	return a, b.Commit()
}

// Describe computes the artifact of an existing file.
func Describe(path string) (Artifact, error) {
	f, err := os.Open(path)
	if err != nil {
		return Artifact{}, err
	}
	defer f.Close()

	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return Artifact{}, errors.Wrapf(err, "digest %s", path)
	}
	return Artifact{Path: path, SHA256: hex.EncodeToString(h.Sum(nil)), Bytes: n}, nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
