package core

import (
	"context"
	"image"
	"io"
	"iter"
	"time"
)

// Decoder reads image headers and pixels for one or more formats.
// Implementations live in adapters/decoder/.
type Decoder interface {
	// DecodeConfig reads only as much of r as needed for the dimensions.
	DecodeConfig(ctx context.Context, r io.Reader) (image.Config, error)
	// Decode reads the full pixel buffer.
	Decode(ctx context.Context, r io.Reader) (image.Image, error)
	CanDecode(format Format) bool
}

// Encoder serialises pixels to bytes in a target format.
// Implementations live in adapters/encoder/.
type Encoder interface {
	Encode(ctx context.Context, img image.Image, opts EncodeOptions) ([]byte, error)
	CanEncode(format Format) bool
}

// Registry maps Format values to Decoder/Encoder implementations.
type Registry interface {
	DecoderFor(format Format) (Decoder, bool)
	EncoderFor(format Format) (Encoder, bool)
	RegisterDecoder(format Format, d Decoder)
	RegisterEncoder(format Format, e Encoder)
}

// Transformer rewrites encoded images.  The stdlib implementation lives in
// pipeline/; adapters/vips provides a libvips one.
type Transformer interface {
	// Fit scales the image down so it fits inside maxW x maxH, keeping the
	// aspect ratio.  It never upscales.
	Fit(ctx context.Context, data []byte, meta Metadata, maxW, maxH int) ([]byte, Metadata, error)
	// Recompress re-encodes the image as lossy JPEG at the given quality.
	Recompress(ctx context.Context, data []byte, meta Metadata, quality int) ([]byte, Metadata, error)
}

// Inspector validates raw image bytes and repairs correctable violations.
type Inspector interface {
	Inspect(ctx context.Context, data []byte) Verdict
	Optimize(ctx context.Context, data []byte, meta Metadata) ([]byte, Metadata, error)
}

// Uploader performs exactly one remote call per invocation and returns the
// image hash assigned by the remote API.
type Uploader interface {
	Upload(ctx context.Context, req UploadRequest) (string, error)
}

// CredentialProvider supplies the bearer token for upload calls.
type CredentialProvider interface {
	Credential(ctx context.Context) (string, error)
}

// Source is a finite, single-use sequence of archive items.
type Source interface {
	// Len returns the number of items Items will yield.
	Len() int
	// Items yields items lazily in enumeration order.
	Items(ctx context.Context) iter.Seq2[ArchiveItem, error]
}

// ItemRunner drives one item through its state machine.  Implementations
// must always return a Result; errors are folded into it.
type ItemRunner interface {
	Run(ctx context.Context, item ArchiveItem) Result
}

// Sink persists the ordered results of a run.
type Sink interface {
	Write(ctx context.Context, results []Result, format string, dest string) (string, error)
}

// ProgressObserver is a purely presentational view of a run.
type ProgressObserver interface {
	Update(message string, increment int)
	Success(message string)
	Error(message string)
}

// ProgressSizer is implemented by observers that need the item count once
// the archive has been opened.
type ProgressSizer interface {
	SetTotal(total int)
}

// ProgressFunc is invoked after every item reaches a terminal state.
type ProgressFunc func(completed, total int, name string)

// StorageKey uniquely identifies a stored object.
type StorageKey struct {
	Bucket string
	Path   string
}

// StorageAdapter persists report files.
// Implementations live in adapters/storage/.
type StorageAdapter interface {
	Put(ctx context.Context, key StorageKey, r io.Reader, meta map[string]string) error
}

// Hook is an optional observer invoked around pipeline stages.
type Hook interface {
	BeforeStage(ctx context.Context, stage State, item ArchiveItem)
	AfterStage(ctx context.Context, stage State, item ArchiveItem, d time.Duration, err error)
}

// MetricsCollector receives performance observations from the pipeline.
type MetricsCollector interface {
	RecordStageTime(stage string, d time.Duration)
	RecordThroughput(bytes int64)
	RecordError(stage string, kind string)
}

// Logger is a minimal structured logging interface.
type Logger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
}

// NopLogger discards everything.
type NopLogger struct{}

func (NopLogger) Debug(string, ...interface{}) {}
func (NopLogger) Info(string, ...interface{})  {}
func (NopLogger) Warn(string, ...interface{})  {}
func (NopLogger) Error(string, ...interface{}) {}
