// Package storage provides StorageAdapter implementations.
package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/Skryldev/adimage-uploader/core"
	apperrors "github.com/Skryldev/adimage-uploader/errors"
)

// Local stores files on the local filesystem.  Writes go to a temporary file
// in the target directory and are renamed into place, so a reader never sees
// a half-written report.
type Local struct {
	rootDir     string
	permissions os.FileMode
}

// NewLocal creates a Local storage adapter rooted at dir.  An empty dir means
// keys are resolved against the working directory.
func NewLocal(dir string, perm os.FileMode) *Local {
	if perm == 0 {
		perm = 0o644
	}
	return &Local{rootDir: dir, permissions: perm}
}

// Resolve returns the filesystem path for key.  Absolute key paths are used
// as-is; Bucket maps to a subdirectory otherwise.
func (l *Local) Resolve(key core.StorageKey) string {
	if filepath.IsAbs(key.Path) {
		return filepath.Clean(key.Path)
	}
	return filepath.Join(l.rootDir, filepath.Clean(key.Bucket), filepath.Clean(key.Path))
}

func (l *Local) Put(ctx context.Context, key core.StorageKey, r io.Reader, _ map[string]string) error {
	if err := ctx.Err(); err != nil {
		return apperrors.Wrap(apperrors.KindReportWrite, "local.put", err)
	}

	path := l.Resolve(key)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return apperrors.Wrap(apperrors.KindReportWrite, "local.put.mkdir", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return apperrors.Wrap(apperrors.KindReportWrite, "local.put.create", err)
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return apperrors.Wrap(apperrors.KindReportWrite, "local.put.copy", err)
	}
	if err := tmp.Chmod(l.permissions); err != nil {
		tmp.Close()
		return apperrors.Wrap(apperrors.KindReportWrite, "local.put.chmod", err)
	}
	if err := tmp.Close(); err != nil {
		return apperrors.Wrap(apperrors.KindReportWrite, "local.put.close", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return apperrors.Wrap(apperrors.KindReportWrite, "local.put.rename", fmt.Errorf("%s: %w", path, err))
	}
	return nil
}
