// Package decoder provides format-specific image decoders.
package decoder

import (
	"context"
	"image"
	"io"

	"github.com/Skryldev/adimage-uploader/core"
	apperrors "github.com/Skryldev/adimage-uploader/errors"
)

// Codec decodes a single format through the functions its package exposes.
// Every decoder in this package is a Codec; only the format-specific
// constructors differ.
type Codec struct {
	format core.Format
	decode func(io.Reader) (image.Image, error)
	config func(io.Reader) (image.Config, error)
}

func (c *Codec) CanDecode(format core.Format) bool { return format == c.format }

// DecodeConfig reads only the header.
func (c *Codec) DecodeConfig(ctx context.Context, r io.Reader) (image.Config, error) {
	op := string(c.format) + ".config"
	if err := ctx.Err(); err != nil {
		return image.Config{}, apperrors.Wrap(apperrors.KindDecode, op, err)
	}
	cfg, err := c.config(r)
	if err != nil {
		return image.Config{}, apperrors.Wrap(apperrors.KindDecode, op, err)
	}
	return cfg, nil
}

func (c *Codec) Decode(ctx context.Context, r io.Reader) (image.Image, error) {
	op := string(c.format) + ".decode"
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.KindDecode, op, err)
	}
	img, err := c.decode(r)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindDecode, op, err)
	}
	return img, nil
}

// RegisterAll installs every decoder this package provides.
func RegisterAll(reg core.Registry) {
	for _, c := range []*Codec{NewJPEG(), NewPNG(), NewGIF(), NewWebP(), NewBMP(), NewTIFF()} {
		reg.RegisterDecoder(c.format, c)
	}
}
