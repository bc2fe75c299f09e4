package decoder

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
	apperrors "github.com/Skryldev/adimage-uploader/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solid(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	return img
}

func encodeAll(t *testing.T) map[core.Format][]byte {
	t.Helper()
	img := solid(40, 30)
	out := map[core.Format][]byte{}

	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}))
	out[core.FormatJPEG] = bytes.Clone(buf.Bytes())

	buf.Reset()
	require.NoError(t, png.Encode(&buf, img))
	out[core.FormatPNG] = bytes.Clone(buf.Bytes())

	buf.Reset()
	require.NoError(t, gif.Encode(&buf, img, nil))
	out[core.FormatGIF] = bytes.Clone(buf.Bytes())
	return out
}

func TestDecodeConfigReadsHeader(t *testing.T) {
	ctx := context.Background()
	reg := core.NewRegistry()
	RegisterAll(reg)

	for f, data := range encodeAll(t) {
		dec, ok := reg.DecoderFor(f)
		require.True(t, ok, "decoder for %s", f)

		cfg, err := dec.DecodeConfig(ctx, bytes.NewReader(data))
		require.NoError(t, err)
		assert.Equal(t, 40, cfg.Width)
		assert.Equal(t, 30, cfg.Height)

		img, err := dec.Decode(ctx, bytes.NewReader(data))
		require.NoError(t, err)
		assert.Equal(t, image.Rect(0, 0, 40, 30), img.Bounds())
	}
}

func TestDecodeErrorsAreClassified(t *testing.T) {
	_, err := NewPNG().DecodeConfig(context.Background(), bytes.NewReader([]byte("not a png")))
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindDecode))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewJPEG().Decode(ctx, bytes.NewReader(nil))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRegistryListsFormats(t *testing.T) {
	reg := core.NewRegistry()
	RegisterAll(reg)
	assert.Equal(t,
		[]core.Format{core.FormatBMP, core.FormatGIF, core.FormatJPEG, core.FormatPNG, core.FormatTIFF, core.FormatWebP},
		reg.DecodableFormats())
	_, ok := reg.DecoderFor(core.FormatAVIF)
	assert.False(t, ok)
}
