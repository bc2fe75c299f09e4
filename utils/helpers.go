package utils

import (
	"bytes"
	"fmt"
	"math"
)

const bytesPerMB = 1024 * 1024

// FitWithin computes the largest (w, h) that keeps the source aspect ratio and
// fits inside maxW x maxH.  It never upscales; a zero bound leaves that axis
// unconstrained.
func FitWithin(srcW, srcH, maxW, maxH int) (int, int) {
	if srcW <= 0 || srcH <= 0 {
		return srcW, srcH
	}
	scale := 1.0
	if maxW > 0 && srcW > maxW {
		scale = math.Min(scale, float64(maxW)/float64(srcW))
	}
	if maxH > 0 && srcH > maxH {
		scale = math.Min(scale, float64(maxH)/float64(srcH))
	}
	if scale >= 1 {
		return srcW, srcH
	}
	w := int(math.Round(float64(srcW) * scale))
	h := int(math.Round(float64(srcH) * scale))
	// Rounding may overshoot by one pixel on the constrained axis.
	if maxW > 0 && w > maxW {
		w = maxW
	}
	if maxH > 0 && h > maxH {
		h = maxH
	}
	return max(w, 1), max(h, 1)
}

// FormatMB renders a byte count as megabytes with two decimals ("1.50MB").
func FormatMB(n int64) string {
	return fmt.Sprintf("%.2fMB", float64(n)/bytesPerMB)
}

// CloneBytes returns a copy of b (safe for use after the source buffer is released).
func CloneBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// BytesReader creates an io.Reader backed by b without allocation.
func BytesReader(b []byte) *bytes.Reader {
	return bytes.NewReader(b)
}
