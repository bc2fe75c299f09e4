package decoder

import (
	"image/jpeg"

	"github.com/Skryldev/adimage-uploader/core"
)

// NewJPEG decodes JPEG images using the standard library.
func NewJPEG() *Codec {
	return &Codec{format: core.FormatJPEG, decode: jpeg.Decode, config: jpeg.DecodeConfig}
}
