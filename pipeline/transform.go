package pipeline

import (
	"context"
	"fmt"
	"image"

	"github.com/Skryldev/adimage-uploader/core"
	apperrors "github.com/Skryldev/adimage-uploader/errors"
	"github.com/Skryldev/adimage-uploader/utils"
	xdraw "golang.org/x/image/draw"
)

// StdTransformer is the pure-Go core.Transformer.  It decodes through the
// registry, scales with golang.org/x/image/draw and re-encodes in the source
// format where an encoder exists, JPEG otherwise.
type StdTransformer struct {
	Registry core.Registry
	// Resampler controls quality vs speed.  Defaults to draw.BiLinear.
	Resampler xdraw.Interpolator
}

// NewStdTransformer returns a StdTransformer bound to reg.
func NewStdTransformer(reg core.Registry) *StdTransformer {
	return &StdTransformer{Registry: reg}
}

// ── Fit ───────────────────────────────────────────────────────────────────────

func (t *StdTransformer) Fit(ctx context.Context, data []byte, meta core.Metadata, maxW, maxH int) ([]byte, core.Metadata, error) {
	dstW, dstH := utils.FitWithin(meta.Width, meta.Height, maxW, maxH)
	if dstW == meta.Width && dstH == meta.Height {
		return data, meta, nil // nothing to do
	}

	src, err := t.decode(ctx, data, meta.Format, "fit")
	if err != nil {
		return nil, meta, err
	}
	if err := ctx.Err(); err != nil {
		return nil, meta, apperrors.Wrap(apperrors.KindInternal, "fit", err)
	}

	sampler := t.Resampler
	if sampler == nil {
		sampler = xdraw.BiLinear
	}
	dst := image.NewRGBA(image.Rect(0, 0, dstW, dstH))
	sampler.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Src, nil)

	out, format, err := t.encode(ctx, dst, meta.Format, core.EncodeOptions{})
	if err != nil {
		return nil, meta, err
	}
	return out, core.Metadata{
		Format:    format,
		Width:     dstW,
		Height:    dstH,
		SizeBytes: int64(len(out)),
	}, nil
}

// ── Recompress ────────────────────────────────────────────────────────────────

func (t *StdTransformer) Recompress(ctx context.Context, data []byte, meta core.Metadata, quality int) ([]byte, core.Metadata, error) {
	src, err := t.decode(ctx, data, meta.Format, "recompress")
	if err != nil {
		return nil, meta, err
	}

	enc, ok := t.Registry.EncoderFor(core.FormatJPEG)
	if !ok {
		return nil, meta, apperrors.New(apperrors.KindEncode, "recompress",
			fmt.Errorf("%w: %s", apperrors.ErrUnsupportedFormat, core.FormatJPEG))
	}
	out, err := enc.Encode(ctx, src, core.EncodeOptions{Quality: quality})
	if err != nil {
		return nil, meta, err
	}
	b := src.Bounds()
	return out, core.Metadata{
		Format:    core.FormatJPEG,
		Width:     b.Dx(),
		Height:    b.Dy(),
		SizeBytes: int64(len(out)),
	}, nil
}

func (t *StdTransformer) decode(ctx context.Context, data []byte, format core.Format, op string) (image.Image, error) {
	if len(data) == 0 {
		return nil, apperrors.New(apperrors.KindDecode, op, apperrors.ErrEmptyInput)
	}
	dec, ok := t.Registry.DecoderFor(format)
	if !ok {
		return nil, apperrors.New(apperrors.KindDecode, op,
			fmt.Errorf("%w: %s", apperrors.ErrUnsupportedFormat, format))
	}
	return dec.Decode(ctx, utils.BytesReader(data))
}

// encode prefers the source format and falls back to JPEG when no encoder is
// registered for it (WebP has no pure-Go encoder).
func (t *StdTransformer) encode(ctx context.Context, img image.Image, format core.Format, opts core.EncodeOptions) ([]byte, core.Format, error) {
	enc, ok := t.Registry.EncoderFor(format)
	if !ok {
		format = core.FormatJPEG
		if enc, ok = t.Registry.EncoderFor(format); !ok {
			return nil, format, apperrors.New(apperrors.KindEncode, "encode",
				fmt.Errorf("%w: %s", apperrors.ErrUnsupportedFormat, format))
		}
	}
	data, err := enc.Encode(ctx, img, opts)
	if err != nil {
		return nil, format, err
	}
	return data, format, nil
}
