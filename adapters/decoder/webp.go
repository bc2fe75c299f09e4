package decoder

import (
	"github.com/Skryldev/adimage-uploader/core"
	"golang.org/x/image/webp"
)

// NewWebP decodes WebP images using golang.org/x/image/webp.
// NOTE: animated WebP is not supported; only the first frame is read.
func NewWebP() *Codec {
	return &Codec{format: core.FormatWebP, decode: webp.Decode, config: webp.DecodeConfig}
}
