package decoder

import (
	"image/gif"

	"github.com/Skryldev/adimage-uploader/core"
)

// NewGIF decodes the first frame of a GIF.  DecodeConfig reports the logical
// screen size, which is what the upload limits apply to.
func NewGIF() *Codec {
	return &Codec{format: core.FormatGIF, decode: gif.Decode, config: gif.DecodeConfig}
}
