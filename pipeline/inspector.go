package pipeline

import (
	"context"
	"fmt"

	"github.com/Skryldev/adimage-uploader/config"
	"github.com/Skryldev/adimage-uploader/core"
	apperrors "github.com/Skryldev/adimage-uploader/errors"
	"github.com/Skryldev/adimage-uploader/utils"
)

// Inspector checks raw image bytes against the configured limits and repairs
// size and dimension violations.  It is safe for concurrent use.
type Inspector struct {
	reg       core.Registry
	tf        core.Transformer
	maxWidth  int
	maxHeight int
	maxPixels int64
	maxBytes  int64
	quality   int
	supports  func(format string) bool
}

// NewInspector builds an Inspector from cfg.  tf performs the actual resizing
// and recompression.
func NewInspector(cfg config.Config, reg core.Registry, tf core.Transformer) *Inspector {
	return &Inspector{
		reg:       reg,
		tf:        tf,
		maxWidth:  cfg.MaxWidth,
		maxHeight: cfg.MaxHeight,
		maxPixels: cfg.MaxInputPixels,
		maxBytes:  cfg.MaxImageBytes,
		quality:   cfg.LossyQuality,
		supports:  cfg.Supports,
	}
}

// Inspect reads only the image header.  Every rule is evaluated and all
// violations are reported together; a header that cannot be read yields a
// single decode violation and no metadata.
func (i *Inspector) Inspect(ctx context.Context, data []byte) core.Verdict {
	size := int64(len(data))
	format := utils.DetectFormat(data)

	if format == core.FormatUnknown {
		return decodeFailure(apperrors.ErrUnsupportedFormat)
	}

	dec, ok := i.reg.DecoderFor(format)
	if !ok {
		// Recognised but not decodable (AVIF, SVG).  Report it by name when
		// it is not an allowed format anyway.
		if !i.supports(string(format)) {
			return core.Verdict{
				Violations: []core.Violation{formatViolation(format)},
				Metadata:   core.Metadata{Format: format, SizeBytes: size},
			}
		}
		return decodeFailure(fmt.Errorf("%w: %s", apperrors.ErrUnsupportedFormat, format))
	}

	hdr, err := dec.DecodeConfig(ctx, utils.BytesReader(data))
	if err != nil {
		return decodeFailure(err)
	}

	meta := core.Metadata{Format: format, Width: hdr.Width, Height: hdr.Height, SizeBytes: size}
	var violations []core.Violation
	if !i.supports(string(format)) {
		violations = append(violations, formatViolation(format))
	}
	if meta.Width > i.maxWidth {
		violations = append(violations, core.Violation{
			Rule:    core.RuleWidth,
			Message: fmt.Sprintf("image width (%dpx) exceeds maximum allowed (%dpx)", meta.Width, i.maxWidth),
		})
	}
	if meta.Height > i.maxHeight {
		violations = append(violations, core.Violation{
			Rule:    core.RuleHeight,
			Message: fmt.Sprintf("image height (%dpx) exceeds maximum allowed (%dpx)", meta.Height, i.maxHeight),
		})
	}
	if px := int64(meta.Width) * int64(meta.Height); i.maxPixels > 0 && px > i.maxPixels {
		violations = append(violations, core.Violation{
			Rule: core.RulePixels,
			Message: fmt.Sprintf("image dimensions (%dx%d) exceed the input pixel limit (%d pixels)",
				meta.Width, meta.Height, i.maxPixels),
		})
	}
	if size > i.maxBytes {
		violations = append(violations, core.Violation{
			Rule: core.RuleSize,
			Message: fmt.Sprintf("file size (%s) exceeds maximum allowed (%s)",
				utils.FormatMB(size), utils.FormatMB(i.maxBytes)),
		})
	}

	return core.Verdict{
		Valid:       len(violations) == 0,
		Violations:  violations,
		Metadata:    meta,
		HasMetadata: true,
	}
}

// Optimize downsizes images that exceed the dimension limits and then, if the
// bytes are still over the size limit, recompresses them as lossy JPEG.  A
// compliant buffer is returned unchanged.
func (i *Inspector) Optimize(ctx context.Context, data []byte, meta core.Metadata) ([]byte, core.Metadata, error) {
	out := data
	meta.SizeBytes = int64(len(data))
	if i.maxPixels > 0 && int64(meta.Width)*int64(meta.Height) > i.maxPixels {
		return nil, meta, apperrors.New(apperrors.KindValidation, "optimize",
			fmt.Errorf("%dx%d exceeds the input pixel limit", meta.Width, meta.Height))
	}

	if meta.Width > i.maxWidth || meta.Height > i.maxHeight {
		var err error
		out, meta, err = i.tf.Fit(ctx, out, meta, i.maxWidth, i.maxHeight)
		if err != nil {
			return nil, meta, apperrors.Wrap(apperrors.KindValidation, "optimize.fit", err)
		}
	}

	if meta.SizeBytes > i.maxBytes {
		var err error
		out, meta, err = i.tf.Recompress(ctx, out, meta, i.quality)
		if err != nil {
			return nil, meta, apperrors.Wrap(apperrors.KindValidation, "optimize.recompress", err)
		}
	}
	return out, meta, nil
}

func decodeFailure(cause error) core.Verdict {
	return core.Verdict{
		Violations: []core.Violation{{
			Rule:    core.RuleDecode,
			Message: "error processing image: " + apperrors.Message(cause),
		}},
	}
}

func formatViolation(f core.Format) core.Violation {
	return core.Violation{Rule: core.RuleFormat, Message: fmt.Sprintf("unsupported format: %s", f)}
}
