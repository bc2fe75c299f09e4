package decoder

import (
	"github.com/Skryldev/adimage-uploader/core"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

// BMP and TIFF are never uploaded with the default format list, but decoding
// their headers lets a mislabelled entry be reported by its real format.

func NewBMP() *Codec {
	return &Codec{format: core.FormatBMP, decode: bmp.Decode, config: bmp.DecodeConfig}
}

func NewTIFF() *Codec {
	return &Codec{format: core.FormatTIFF, decode: tiff.Decode, config: tiff.DecodeConfig}
}
