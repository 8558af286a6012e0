// Package claim implements the per-hash install lock with claim files.
//
// A claim is a file named after the content hash, created with O_EXCL so
// creation doubles as the cross-process acquisition. Concurrent installs
// of the same hash from different environments or processes serialize on
// the claim; releasing removes the file.
package claim

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.trai.ch/cairn/internal/core/domain"
	"go.trai.ch/zerr"
)

const pollInterval = 100 * time.Millisecond

// Table hands out per-hash install claims backed by a claim directory.
type Table struct {
	dir string
}

// NewTable creates a claim table rooted at dir.
func NewTable(dir string) *Table {
	return &Table{dir: dir}
}

// Acquire blocks until the claim file for hash is created or ctx is done.
func (t *Table) Acquire(ctx context.Context, hash string) (func(), error) {
	if len(hash) != domain.HashLength {
		return nil, zerr.With(zerr.Wrap(domain.ErrIncompleteSpec, "malformed content hash"), "hash", hash)
	}
	if err := os.MkdirAll(t.dir, 0o750); err != nil {
		return nil, zerr.Wrap(err, "creating claim directory")
	}

	path := filepath.Join(t.dir, hash)
	contents := fmt.Sprintf("pid %d\n", os.Getpid())

	for {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
		if err == nil {
			_, _ = f.WriteString(contents)
			if cerr := f.Close(); cerr != nil {
				_ = os.Remove(path)
				return nil, zerr.Wrap(cerr, "writing claim file")
			}
			return func() { _ = os.Remove(path) }, nil
		}
		if !os.IsExist(err) {
			return nil, zerr.Wrap(err, "creating claim file")
		}

		select {
		case <-ctx.Done():
			return nil, zerr.With(zerr.Wrap(ctx.Err(), "waiting for install claim"), "hash", hash)
		case <-time.After(pollInterval):
		}
	}
}
