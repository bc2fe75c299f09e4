// Package archive enumerates the eligible image entries of a ZIP file.
package archive

import (
	"archive/zip"
	"context"
	"fmt"
	"iter"
	"path"
	"strings"
	"sync/atomic"

	"github.com/Skryldev/adimage-uploader/config"
	"github.com/Skryldev/adimage-uploader/core"
	apperrors "github.com/Skryldev/adimage-uploader/errors"
	"github.com/Skryldev/adimage-uploader/utils"
)

const (
	// metadataDir holds resource forks added by macOS archivers.
	metadataDir = "__MACOSX"
	// appleDoublePrefix marks AppleDouble sidecar files.
	appleDoublePrefix = "._"
)

// Options controls which entries are eligible and how they are read.
type Options struct {
	Extensions    map[string]struct{} // lower-case, without the dot
	MaxEntryBytes int64               // 0 = no limit
	ChunkSize     int
}

// OptionsFromConfig derives Options from the run configuration.
func OptionsFromConfig(cfg config.Config) Options {
	return Options{
		Extensions:    cfg.Extensions(),
		MaxEntryBytes: cfg.MaxEntryBytes,
		ChunkSize:     cfg.ChunkSize,
	}
}

// Archive is an opened ZIP file.  It implements core.Source; its items can be
// iterated exactly once.
type Archive struct {
	path     string
	rc       *zip.ReadCloser
	entries  []*zip.File
	skipped  int
	opts     Options
	consumed atomic.Bool
}

// Open reads the central directory of the archive at p and selects the
// eligible entries.  Entry contents are not read until Items is iterated.
func Open(p string, opts Options) (*Archive, error) {
	rc, err := zip.OpenReader(p)
	if err != nil {
		return nil, apperrors.New(apperrors.KindArchiveRead, "archive.open", fmt.Errorf("%s: %w", p, err))
	}

	a := &Archive{path: p, rc: rc, opts: opts}
	for _, f := range rc.File {
		if Eligible(f.Name, f.FileInfo().IsDir(), opts.Extensions) {
			a.entries = append(a.entries, f)
		} else {
			a.skipped++
		}
	}
	return a, nil
}

// Eligible reports whether an entry should be processed: it must be a regular
// file outside the macOS metadata directory, must not be an AppleDouble
// sidecar, and must carry one of the given extensions (case-insensitive).
func Eligible(name string, isDir bool, exts map[string]struct{}) bool {
	if isDir || strings.HasSuffix(name, "/") {
		return false
	}
	name = strings.ReplaceAll(name, "\\", "/")
	for _, seg := range strings.Split(path.Dir(name), "/") {
		if seg == metadataDir {
			return false
		}
	}
	base := path.Base(name)
	if strings.HasPrefix(base, appleDoublePrefix) {
		return false
	}
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(base), "."))
	if ext == "" {
		return false
	}
	_, ok := exts[ext]
	return ok
}

// Len returns the number of eligible entries.
func (a *Archive) Len() int { return len(a.entries) }

// Skipped returns the number of entries that were filtered out.
func (a *Archive) Skipped() int { return a.skipped }

// Path returns the archive's location on disk.
func (a *Archive) Path() string { return a.path }

// Items yields the eligible entries in central-directory order, reading each
// one only when the consumer asks for it.  A second iteration yields
// ErrArchiveConsumed.
func (a *Archive) Items(ctx context.Context) iter.Seq2[core.ArchiveItem, error] {
	return func(yield func(core.ArchiveItem, error) bool) {
		if !a.consumed.CompareAndSwap(false, true) {
			yield(core.ArchiveItem{}, apperrors.New(apperrors.KindArchiveRead, "archive.items", apperrors.ErrArchiveConsumed))
			return
		}
		for i, f := range a.entries {
			if err := ctx.Err(); err != nil {
				yield(core.ArchiveItem{}, apperrors.Wrap(apperrors.KindInternal, "archive.items", err))
				return
			}
			data, err := a.read(ctx, f)
			if err != nil {
				yield(core.ArchiveItem{}, err)
				return
			}
			item := core.ArchiveItem{
				Index: i,
				Path:  f.Name,
				Name:  path.Base(strings.ReplaceAll(f.Name, "\\", "/")),
				Data:  data,
			}
			if !yield(item, nil) {
				return
			}
		}
	}
}

func (a *Archive) read(ctx context.Context, f *zip.File) ([]byte, error) {
	op := "archive.read"
	if limit := a.opts.MaxEntryBytes; limit > 0 && f.UncompressedSize64 > uint64(limit) {
		return nil, apperrors.New(apperrors.KindArchiveRead, op, fmt.Errorf("%s: %w", f.Name, apperrors.ErrTooLarge))
	}
	rc, err := f.Open()
	if err != nil {
		return nil, apperrors.New(apperrors.KindArchiveRead, op, fmt.Errorf("%s: %w", f.Name, err))
	}
	defer rc.Close()

	data, err := utils.ReadAll(ctx, &utils.LimitedReader{R: rc, Max: a.opts.MaxEntryBytes}, a.opts.ChunkSize)
	if err != nil {
		return nil, apperrors.New(apperrors.KindArchiveRead, op, fmt.Errorf("%s: %w", f.Name, err))
	}
	return data, nil
}

// Close releases the underlying file.
func (a *Archive) Close() error { return a.rc.Close() }
