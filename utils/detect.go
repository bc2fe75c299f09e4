package utils

import (
	"bytes"
	"strings"

	"github.com/Skryldev/adimage-uploader/core"
)

// sniffLen is the number of leading bytes DetectFormat looks at.
const sniffLen = 512

var (
	pngMagic  = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}
	tiffLE    = []byte{'I', 'I', 0x2a, 0x00}
	tiffBE    = []byte{'M', 'M', 0x00, 0x2a}
	gif87a    = []byte("GIF87a")
	gif89a    = []byte("GIF89a")
	riffMagic = []byte("RIFF")
	webpMagic = []byte("WEBP")
)

// DetectFormat identifies the image format from its magic bytes.  The file
// name is never consulted.
func DetectFormat(data []byte) core.Format {
	head := data
	if len(head) > sniffLen {
		head = head[:sniffLen]
	}
	switch {
	case len(head) == 0:
		return core.FormatUnknown
	case len(head) > 3 && head[0] == 0xff && head[1] == 0xd8 && head[2] == 0xff:
		return core.FormatJPEG
	case bytes.HasPrefix(head, pngMagic):
		return core.FormatPNG
	case bytes.HasPrefix(head, gif87a), bytes.HasPrefix(head, gif89a):
		return core.FormatGIF
	case len(head) >= 12 && bytes.Equal(head[:4], riffMagic) && bytes.Equal(head[8:12], webpMagic):
		return core.FormatWebP
	case len(head) >= 2 && head[0] == 'B' && head[1] == 'M':
		return core.FormatBMP
	case bytes.HasPrefix(head, tiffLE), bytes.HasPrefix(head, tiffBE):
		return core.FormatTIFF
	case isAVIF(head):
		return core.FormatAVIF
	case isSVG(head):
		return core.FormatSVG
	}
	return core.FormatUnknown
}

// isAVIF looks for an ISO-BMFF ftyp box naming an AVIF brand.
func isAVIF(head []byte) bool {
	if len(head) < 12 || string(head[4:8]) != "ftyp" {
		return false
	}
	return bytes.Contains(head[8:], []byte("avif")) || bytes.Contains(head[8:], []byte("avis"))
}

func isSVG(head []byte) bool {
	trimmed := strings.TrimSpace(string(head))
	return strings.HasPrefix(trimmed, "<svg") ||
		(strings.HasPrefix(trimmed, "<?xml") && strings.Contains(trimmed, "<svg"))
}
