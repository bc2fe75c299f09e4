package encoder

import (
	"bytes"
	"context"
	"image"
	"image/png"

	"github.com/Skryldev/adimage-uploader/core"
	apperrors "github.com/Skryldev/adimage-uploader/errors"
)

// PNG encodes images to PNG format at best compression; the output is only
// ever produced to get under a byte limit.
type PNG struct {
	enc png.Encoder
}

func NewPNG() *PNG {
	return &PNG{enc: png.Encoder{CompressionLevel: png.BestCompression}}
}

func (p *PNG) CanEncode(format core.Format) bool { return format == core.FormatPNG }

func (p *PNG) Encode(ctx context.Context, img image.Image, _ core.EncodeOptions) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.KindEncode, "png.encode", err)
	}
	if img == nil {
		return nil, apperrors.New(apperrors.KindEncode, "png.encode", apperrors.ErrEmptyInput)
	}

	var buf bytes.Buffer
	if err := p.enc.Encode(&buf, img); err != nil {
		return nil, apperrors.Wrap(apperrors.KindEncode, "png.encode", err)
	}
	return buf.Bytes(), nil
}
