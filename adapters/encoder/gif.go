package encoder

import (
	"bytes"
	"context"
	"image"
	"image/gif"

	"github.com/Skryldev/adimage-uploader/core"
	apperrors "github.com/Skryldev/adimage-uploader/errors"
)

// GIF encodes a single frame with the full 256-colour palette.
type GIF struct{}

func NewGIF() *GIF { return &GIF{} }

func (g *GIF) CanEncode(format core.Format) bool { return format == core.FormatGIF }

func (g *GIF) Encode(ctx context.Context, img image.Image, _ core.EncodeOptions) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.KindEncode, "gif.encode", err)
	}
	if img == nil {
		return nil, apperrors.New(apperrors.KindEncode, "gif.encode", apperrors.ErrEmptyInput)
	}

	var buf bytes.Buffer
	if err := gif.Encode(&buf, img, &gif.Options{NumColors: 256}); err != nil {
		return nil, apperrors.Wrap(apperrors.KindEncode, "gif.encode", err)
	}
	return buf.Bytes(), nil
}

// RegisterAll installs every encoder this package provides.  WebP has no
// pure-Go encoder, so WebP input is re-encoded as JPEG by the transformer.
func RegisterAll(reg core.Registry, quality int) {
	reg.RegisterEncoder(core.FormatJPEG, NewJPEG(quality))
	reg.RegisterEncoder(core.FormatPNG, NewPNG())
	reg.RegisterEncoder(core.FormatGIF, NewGIF())
}
