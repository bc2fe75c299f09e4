package decoder

import (
	"image/png"

	"github.com/Skryldev/adimage-uploader/core"
)

func NewPNG() *Codec {
	return &Codec{format: core.FormatPNG, decode: png.Decode, config: png.DecodeConfig}
}
