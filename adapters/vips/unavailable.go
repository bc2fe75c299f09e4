//go:build !vips

package vips

import (
	"context"
	"errors"

	"github.com/Skryldev/adimage-uploader/core"
	apperrors "github.com/Skryldev/adimage-uploader/errors"
)

// Available reports whether this binary was built with libvips.
const Available = false

// ErrUnavailable is returned when the binary was built without the vips tag.
var ErrUnavailable = errors.New("built without libvips support (rebuild with -tags vips)")

// Transformer is a placeholder so callers compile without the vips tag.
type Transformer struct{}

// NewTransformer always fails without the vips build tag.
func NewTransformer(BackendConfig) (*Transformer, error) {
	return nil, apperrors.New(apperrors.KindConfig, "vips.startup", ErrUnavailable)
}

func (t *Transformer) Shutdown() {}

func (t *Transformer) Fit(_ context.Context, _ []byte, meta core.Metadata, _, _ int) ([]byte, core.Metadata, error) {
	return nil, meta, apperrors.New(apperrors.KindConfig, "vips.fit", ErrUnavailable)
}

func (t *Transformer) Recompress(_ context.Context, _ []byte, meta core.Metadata, _ int) ([]byte, core.Metadata, error) {
	return nil, meta, apperrors.New(apperrors.KindConfig, "vips.recompress", ErrUnavailable)
}

var _ core.Transformer = (*Transformer)(nil)
