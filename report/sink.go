package report

import (
	"bytes"
	"context"

	"github.com/Skryldev/adimage-uploader/core"
	apperrors "github.com/Skryldev/adimage-uploader/errors"
)

// Sink renders results and stores them through a StorageAdapter, optionally
// copying the report to a mirror.  It implements core.Sink.
type Sink struct {
	store  core.StorageAdapter
	mirror core.StorageAdapter
	logger core.Logger
}

// Option customises a Sink.
type Option func(*Sink)

// WithMirror uploads every report to m after the primary write.  Mirror
// failures are logged, not returned.
func WithMirror(m core.StorageAdapter) Option { return func(s *Sink) { s.mirror = m } }

// WithLogger attaches a structured logger.
func WithLogger(l core.Logger) Option {
	return func(s *Sink) {
		if l != nil {
			s.logger = l
		}
	}
}

func NewSink(store core.StorageAdapter, opts ...Option) *Sink {
	s := &Sink{store: store, logger: core.NopLogger{}}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Write renders results in format and stores them at dest, adding the
// format's extension when dest lacks it.  It returns the written path.
func (s *Sink) Write(ctx context.Context, results []core.Result, format string, dest string) (string, error) {
	f, err := ParseFormat(format)
	if err != nil {
		return "", apperrors.New(apperrors.KindReportWrite, "report.format", err)
	}
	path := OutputPath(dest, f)

	var buf bytes.Buffer
	if err := Render(&buf, results, f); err != nil {
		return "", apperrors.New(apperrors.KindReportWrite, "report.render", err)
	}

	meta := map[string]string{"Content-Type": f.ContentType()}
	key := core.StorageKey{Path: path}
	if err := s.store.Put(ctx, key, bytes.NewReader(buf.Bytes()), meta); err != nil {
		return "", apperrors.Wrap(apperrors.KindReportWrite, "report.write", err)
	}
	s.logger.Info("report saved", "path", path, "format", string(f), "rows", len(results))

	if s.mirror != nil {
		if err := s.mirror.Put(ctx, key, bytes.NewReader(buf.Bytes()), meta); err != nil {
			s.logger.Warn("report mirror failed", "path", path, "error", err)
		} else {
			s.logger.Info("report mirrored", "path", path)
		}
	}
	return path, nil
}
