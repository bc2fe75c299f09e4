package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Codec selects the image transformer backend.
type Codec string

const (
	CodecGo   Codec = "go"   // pure Go, always available
	CodecVips Codec = "vips" // libvips; requires the "vips" build tag
)

// Config is the top-level configuration struct.  A Config is read once before
// a run and passed by value; nothing mutates it afterwards.
type Config struct {
	// Worker pool controls.
	Concurrency int `mapstructure:"concurrency"`

	// Retry of transient upload failures.
	MaxRetries int           `mapstructure:"max_retries"`
	RetryDelay time.Duration `mapstructure:"retry_delay"`

	// Remote API.
	APIBaseURL     string        `mapstructure:"api_base_url"`
	APIVersion     string        `mapstructure:"api_version"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`

	// Image limits.
	MaxImageBytes    int64    `mapstructure:"max_image_bytes"`
	MaxWidth         int      `mapstructure:"max_width"`
	MaxHeight        int      `mapstructure:"max_height"`
	MaxInputPixels   int64    `mapstructure:"max_input_pixels"` // width*height above this is never decoded
	SupportedFormats []string `mapstructure:"supported_formats"`
	LossyQuality     int      `mapstructure:"lossy_quality"` // 1-100; default 80
	Codec            Codec    `mapstructure:"codec"`

	// Archive reading.
	MaxEntryBytes int64 `mapstructure:"max_entry_bytes"`
	ChunkSize     int   `mapstructure:"chunk_size"` // streaming chunk size in bytes; default 32 KiB

	Log    LogConfig    `mapstructure:"log"`
	Report ReportConfig `mapstructure:"report"`
	Token  TokenConfig  `mapstructure:"token"`
}

// LogConfig controls the console and file loggers.
type LogConfig struct {
	Level    string `mapstructure:"level"` // "debug", "info", "warn", "error"
	File     string `mapstructure:"file"`  // empty disables the file sink
	MaxFiles int    `mapstructure:"max_files"`
}

// ReportConfig controls report rendering and the optional mirror.
type ReportConfig struct {
	DefaultFormat string       `mapstructure:"default_format"`
	Mirror        MirrorConfig `mapstructure:"mirror"`
}

// MirrorConfig configures an S3-compatible bucket that receives a copy of
// every written report.
type MirrorConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	Prefix    string `mapstructure:"prefix"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

// TokenConfig controls the access token store.
type TokenConfig struct {
	File            string        `mapstructure:"file"`
	Encrypt         bool          `mapstructure:"encrypt"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
}

// Default returns a Config populated with the production defaults.
func Default() Config {
	return Config{
		Concurrency:      3,
		MaxRetries:       3,
		RetryDelay:       time.Second,
		APIBaseURL:       "https://graph.facebook.com",
		APIVersion:       "v22.0",
		RequestTimeout:   60 * time.Second,
		MaxImageBytes:    30 * 1024 * 1024,
		MaxWidth:         1936,
		MaxHeight:        1936,
		MaxInputPixels:   268402689,
		SupportedFormats: []string{"png", "jpg", "jpeg", "gif", "webp"},
		LossyQuality:     80,
		Codec:            CodecGo,
		MaxEntryBytes:    256 * 1024 * 1024,
		ChunkSize:        32 * 1024,
		Log: LogConfig{
			Level:    "info",
			File:     "logs/upload.log",
			MaxFiles: 5,
		},
		Report: ReportConfig{
			DefaultFormat: "csv",
		},
		Token: TokenConfig{
			File:            "accesstoken.json",
			Encrypt:         true,
			RefreshInterval: 24 * time.Hour,
		},
	}
}

var reportFormats = []string{"csv", "json", "excel", "xlsx", "html"}

// Validate returns an error if the configuration is inconsistent.
func Validate(c Config) error {
	var errs []error
	if c.Concurrency < 1 {
		errs = append(errs, errors.New("config: concurrency must be at least 1"))
	}
	if c.MaxRetries < 0 {
		errs = append(errs, errors.New("config: max_retries must not be negative"))
	}
	if c.RetryDelay < 0 {
		errs = append(errs, errors.New("config: retry_delay must not be negative"))
	}
	if c.MaxImageBytes <= 0 {
		errs = append(errs, errors.New("config: max_image_bytes must be positive"))
	}
	if c.MaxWidth <= 0 || c.MaxHeight <= 0 {
		errs = append(errs, errors.New("config: max_width and max_height must be positive"))
	}
	if c.MaxInputPixels <= 0 {
		errs = append(errs, errors.New("config: max_input_pixels must be positive"))
	}
	if len(c.SupportedFormats) == 0 {
		errs = append(errs, errors.New("config: supported_formats must not be empty"))
	}
	if c.LossyQuality < 1 || c.LossyQuality > 100 {
		errs = append(errs, errors.New("config: lossy_quality must be between 1 and 100"))
	}
	if c.Codec != CodecGo && c.Codec != CodecVips {
		errs = append(errs, fmt.Errorf("config: unknown codec %q", c.Codec))
	}
	if c.ChunkSize <= 0 {
		errs = append(errs, errors.New("config: chunk_size must be positive"))
	}
	if c.APIBaseURL == "" || c.APIVersion == "" {
		errs = append(errs, errors.New("config: api_base_url and api_version are required"))
	}
	if !isReportFormat(c.Report.DefaultFormat) {
		errs = append(errs, fmt.Errorf("config: unsupported report format %q", c.Report.DefaultFormat))
	}
	if m := c.Report.Mirror; m.Enabled && (m.Endpoint == "" || m.Bucket == "") {
		errs = append(errs, errors.New("config: report.mirror requires endpoint and bucket"))
	}
	return errors.Join(errs...)
}

// Extensions returns the lower-cased extensions eligible for upload.
func (c Config) Extensions() map[string]struct{} {
	out := make(map[string]struct{}, len(c.SupportedFormats))
	for _, f := range c.SupportedFormats {
		out[strings.TrimPrefix(strings.ToLower(strings.TrimSpace(f)), ".")] = struct{}{}
	}
	return out
}

// Supports reports whether a decoded format name is allowed.  "jpg" and
// "jpeg" are interchangeable.
func (c Config) Supports(format string) bool {
	exts := c.Extensions()
	format = strings.ToLower(format)
	if _, ok := exts[format]; ok {
		return true
	}
	switch format {
	case "jpeg":
		_, ok := exts["jpg"]
		return ok
	case "jpg":
		_, ok := exts["jpeg"]
		return ok
	}
	return false
}

func isReportFormat(f string) bool {
	f = strings.ToLower(f)
	for _, rf := range reportFormats {
		if rf == f {
			return true
		}
	}
	return false
}
