package hooks

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/Skryldev/adimage-uploader/config"
	"github.com/Skryldev/adimage-uploader/core"
	apperrors "github.com/Skryldev/adimage-uploader/errors"
)

// ── Structured logger adapter ─────────────────────────────────────────────────

// ZerologLogger wraps zerolog to satisfy core.Logger.  Fields are key/value
// pairs, as with every other core.Logger.
type ZerologLogger struct {
	log  zerolog.Logger
	file io.Closer
}

// NewZerologLogger writes human-readable lines to console and, when
// cfg.File is set, JSON lines to a size-rotated file keeping cfg.MaxFiles
// backups.
func NewZerologLogger(cfg config.LogConfig, console io.Writer) (*ZerologLogger, error) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	if console == nil {
		console = os.Stderr
	}

	writers := []io.Writer{zerolog.ConsoleWriter{Out: console, TimeFormat: time.RFC3339}}
	var file *lumberjack.Logger
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
			return nil, apperrors.New(apperrors.KindConfig, "log.file", err)
		}
		file = &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    20, // megabytes
			MaxBackups: cfg.MaxFiles,
			MaxAge:     14,
		}
		writers = append(writers, file)
	}

	l := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(level).
		With().
		Timestamp().
		Logger()

	zl := &ZerologLogger{log: l}
	if file != nil {
		zl.file = file
	}
	return zl, nil
}

// NewZerolog adapts an existing zerolog.Logger.
func NewZerolog(l zerolog.Logger) *ZerologLogger { return &ZerologLogger{log: l} }

// With returns a child logger that always carries the given fields.
func (z *ZerologLogger) With(fields ...interface{}) *ZerologLogger {
	return &ZerologLogger{log: z.log.With().Fields(fields).Logger(), file: z.file}
}

func (z *ZerologLogger) Debug(msg string, fields ...interface{}) {
	z.log.Debug().Fields(fields).Msg(msg)
}
func (z *ZerologLogger) Info(msg string, fields ...interface{}) {
	z.log.Info().Fields(fields).Msg(msg)
}
func (z *ZerologLogger) Warn(msg string, fields ...interface{}) {
	z.log.Warn().Fields(fields).Msg(msg)
}
func (z *ZerologLogger) Error(msg string, fields ...interface{}) {
	z.log.Error().Fields(fields).Msg(msg)
}

// Close flushes and closes the file sink, if any.
func (z *ZerologLogger) Close() error {
	if z.file == nil {
		return nil
	}
	return z.file.Close()
}

var _ core.Logger = (*ZerologLogger)(nil)
