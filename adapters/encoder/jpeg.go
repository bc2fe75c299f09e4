// Package encoder serialises decoded images back to bytes.
package encoder

import (
	"bytes"
	"context"
	"image"
	"image/draw"
	"image/jpeg"

	"github.com/Skryldev/adimage-uploader/core"
	apperrors "github.com/Skryldev/adimage-uploader/errors"
)

// JPEG encodes images to JPEG format.  Transparent pixels are composited onto
// white, since JPEG carries no alpha channel.
type JPEG struct {
	DefaultQuality int // used when EncodeOptions.Quality == 0
}

func NewJPEG(defaultQuality int) *JPEG {
	if defaultQuality <= 0 {
		defaultQuality = 80
	}
	return &JPEG{DefaultQuality: defaultQuality}
}

func (j *JPEG) CanEncode(format core.Format) bool {
	return format == core.FormatJPEG
}

func (j *JPEG) Encode(ctx context.Context, img image.Image, opts core.EncodeOptions) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.KindEncode, "jpeg.encode", err)
	}
	if img == nil {
		return nil, apperrors.New(apperrors.KindEncode, "jpeg.encode", apperrors.ErrEmptyInput)
	}

	quality := opts.Quality
	if quality <= 0 {
		quality = j.DefaultQuality
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, Flatten(img), &jpeg.Options{Quality: quality}); err != nil {
		return nil, apperrors.Wrap(apperrors.KindEncode, "jpeg.encode", err)
	}
	return buf.Bytes(), nil
}

// Flatten composites img over an opaque white background.  Images that are
// already opaque are returned as-is.
func Flatten(img image.Image) image.Image {
	if o, ok := img.(interface{ Opaque() bool }); ok && o.Opaque() {
		return img
	}
	b := img.Bounds()
	dst := image.NewRGBA(b)
	draw.Draw(dst, b, image.White, image.Point{}, draw.Src)
	draw.Draw(dst, b, img, b.Min, draw.Over)
	return dst
}
