package encoder

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/Skryldev/adimage-uploader/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func translucent(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 0, G: 0, B: 0, A: 0})
		}
	}
	return img
}

func TestJPEGFlattensOntoWhite(t *testing.T) {
	data, err := NewJPEG(0).Encode(context.Background(), translucent(16, 16), core.EncodeOptions{})
	require.NoError(t, err)

	img, err := jpeg.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	r, g, b, _ := img.At(8, 8).RGBA()
	// fully transparent black must come out (near) white, not black
	assert.Greater(t, r>>8, uint32(240))
	assert.Greater(t, g>>8, uint32(240))
	assert.Greater(t, b>>8, uint32(240))
}

func TestJPEGQualityAffectsSize(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for i := range src.Pix {
		src.Pix[i] = uint8(i * 31)
	}
	enc := NewJPEG(80)
	ctx := context.Background()

	low, err := enc.Encode(ctx, src, core.EncodeOptions{Quality: 10})
	require.NoError(t, err)
	high, err := enc.Encode(ctx, src, core.EncodeOptions{Quality: 95})
	require.NoError(t, err)
	assert.Less(t, len(low), len(high))
}

func TestEncodersRoundTrip(t *testing.T) {
	reg := core.NewRegistry()
	RegisterAll(reg, 80)
	src := image.NewRGBA(image.Rect(0, 0, 20, 10))
	ctx := context.Background()

	for _, f := range []core.Format{core.FormatPNG, core.FormatGIF} {
		enc, ok := reg.EncoderFor(f)
		require.True(t, ok)
		data, err := enc.Encode(ctx, src, core.EncodeOptions{})
		require.NoError(t, err)

		var cfg image.Config
		if f == core.FormatPNG {
			cfg, err = png.DecodeConfig(bytes.NewReader(data))
		} else {
			cfg, err = gif.DecodeConfig(bytes.NewReader(data))
		}
		require.NoError(t, err)
		assert.Equal(t, 20, cfg.Width)
		assert.Equal(t, 10, cfg.Height)
	}

	_, ok := reg.EncoderFor(core.FormatWebP)
	assert.False(t, ok)
}

func TestEncodeNilImage(t *testing.T) {
	_, err := NewPNG().Encode(context.Background(), nil, core.EncodeOptions{})
	assert.Error(t, err)
}
