//go:build vips

package vips

import (
	"context"
	"sync"

	govips "github.com/davidbyttow/govips/v2/vips"

	"github.com/Skryldev/adimage-uploader/core"
	apperrors "github.com/Skryldev/adimage-uploader/errors"
	"github.com/Skryldev/adimage-uploader/utils"
)

// Available reports whether this binary was built with libvips.
const Available = true

var startOnce sync.Once

// Transformer is a libvips-powered core.Transformer.  Fit uses
// vips_thumbnail, which shrinks JPEGs on load so the full bitmap is never
// allocated.  Safe for concurrent use across goroutines.
type Transformer struct {
	cfg BackendConfig
}

// NewTransformer initialises libvips once per process and returns a
// Transformer.  Call Shutdown when the process exits.
func NewTransformer(cfg BackendConfig) (*Transformer, error) {
	cfg = cfg.withDefaults()
	startOnce.Do(func() {
		govips.LoggingSettings(nil, govips.LogLevelError)
		govips.Startup(&govips.Config{
			ConcurrencyLevel: cfg.MaxWorkers,
			MaxCacheSize:     cfg.MaxCacheSize,
			ReportLeaks:      cfg.ReportLeaks,
		})
	})
	return &Transformer{cfg: cfg}, nil
}

// Shutdown releases all libvips resources.
func (t *Transformer) Shutdown() { govips.Shutdown() }

func (t *Transformer) Fit(ctx context.Context, data []byte, meta core.Metadata, maxW, maxH int) ([]byte, core.Metadata, error) {
	dstW, dstH := utils.FitWithin(meta.Width, meta.Height, maxW, maxH)
	if dstW == meta.Width && dstH == meta.Height {
		return data, meta, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, meta, apperrors.Wrap(apperrors.KindInternal, "vips.fit", err)
	}

	ref, err := govips.NewThumbnailFromBuffer(data, dstW, dstH, govips.InterestingNone)
	if err != nil {
		return nil, meta, apperrors.Wrap(apperrors.KindDecode, "vips.fit", err)
	}
	defer ref.Close()

	out, format, err := t.export(ref, meta.Format)
	if err != nil {
		return nil, meta, err
	}
	return out, core.Metadata{
		Format:    format,
		Width:     ref.Width(),
		Height:    ref.Height(),
		SizeBytes: int64(len(out)),
	}, nil
}

func (t *Transformer) Recompress(ctx context.Context, data []byte, meta core.Metadata, quality int) ([]byte, core.Metadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, meta, apperrors.Wrap(apperrors.KindInternal, "vips.recompress", err)
	}
	ref, err := govips.NewImageFromBuffer(data)
	if err != nil {
		return nil, meta, apperrors.Wrap(apperrors.KindDecode, "vips.recompress", err)
	}
	defer ref.Close()

	out, err := t.jpeg(ref, quality)
	if err != nil {
		return nil, meta, err
	}
	return out, core.Metadata{
		Format:    core.FormatJPEG,
		Width:     ref.Width(),
		Height:    ref.Height(),
		SizeBytes: int64(len(out)),
	}, nil
}

// export keeps the source format when libvips can write it, JPEG otherwise.
func (t *Transformer) export(ref *govips.ImageRef, format core.Format) ([]byte, core.Format, error) {
	switch format {
	case core.FormatJPEG, core.FormatPNG, core.FormatWebP, core.FormatGIF:
		if buf, _, err := ref.ExportNative(); err == nil {
			return buf, format, nil
		}
	}
	buf, err := t.jpeg(ref, t.cfg.DefaultQuality)
	return buf, core.FormatJPEG, err
}

func (t *Transformer) jpeg(ref *govips.ImageRef, quality int) ([]byte, error) {
	if quality <= 0 {
		quality = t.cfg.DefaultQuality
	}
	if ref.HasAlpha() {
		if err := ref.Flatten(&govips.Color{R: 255, G: 255, B: 255}); err != nil {
			return nil, apperrors.Wrap(apperrors.KindEncode, "vips.flatten", err)
		}
	}
	ep := govips.NewJpegExportParams()
	ep.Quality = quality
	ep.StripMetadata = true
	buf, _, err := ref.ExportJpeg(ep)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindEncode, "vips.encode.jpeg", err)
	}
	return buf, nil
}

var _ core.Transformer = (*Transformer)(nil)
