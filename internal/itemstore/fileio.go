package itemstore

import (
	"os"
	"path/filepath"

	"github.com/shirokuma-go/kb/internal/kberrors"
)

// atomicWrite writes data to path via write-to-temp + rename in path's own
// directory, so the rename is guaranteed same-filesystem (spec §4.6.8).
// Grounded on BeadsLog/internal/daemon/registry.go's persist routine.
func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return kberrors.NewIoError(dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return kberrors.NewIoError(dir, err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return kberrors.NewIoError(path, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return kberrors.NewIoError(path, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return kberrors.NewIoError(path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return kberrors.NewIoError(path, err)
	}
	return nil
}

// removeIfExists unlinks path, treating a missing file as success (spec
// §4.6.4: "Unlink the file (ignore missing)"). Returns whether a file was
// actually removed.
func removeIfExists(path string) (bool, error) {
	err := os.Remove(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, kberrors.NewIoError(path, err)
}
