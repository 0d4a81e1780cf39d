// Package lock provides the advisory cross-process guard a single kb
// serve instance holds against its data root. Grounded on
// BeadsLog/cmd/bd/sync.go's TryLock/Unlock usage of gofrs/flock, adapted
// from a per-sync-operation lock to a whole-process lock held for the
// lifetime of the engine, since this engine is single-writer-per-process
// (spec.md Non-goals) and the lock exists to fail fast, not serialise
// an otherwise-concurrent workload.
package lock

import (
	"fmt"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/shirokuma-go/kb/internal/kberrors"
)

// Lock wraps an advisory file lock under a data root.
type Lock struct {
	fl *flock.Flock
}

// Acquire takes the advisory lock at dataRoot/.kb.lock, failing fast if
// another process already holds it.
func Acquire(dataRoot string) (*Lock, error) {
	path := filepath.Join(dataRoot, ".kb.lock")
	fl := flock.New(path)
	locked, err := fl.TryLock()
	if err != nil {
		return nil, kberrors.NewIoError(path, err)
	}
	if !locked {
		return nil, kberrors.NewConflict("another kb process already holds the lock at %s", path)
	}
	return &Lock{fl: fl}, nil
}

// Release gives up the lock. Safe to call on a nil Lock.
func (l *Lock) Release() error {
	if l == nil {
		return nil
	}
	if err := l.fl.Unlock(); err != nil {
		return fmt.Errorf("release lock: %w", err)
	}
	return nil
}
