package core

import (
	"strings"
	"time"
)

// Format identifies an image codec.
type Format string

const (
	FormatJPEG    Format = "jpeg"
	FormatPNG     Format = "png"
	FormatGIF     Format = "gif"
	FormatWebP    Format = "webp"
	FormatBMP     Format = "bmp"
	FormatTIFF    Format = "tiff"
	FormatAVIF    Format = "avif"
	FormatSVG     Format = "svg"
	FormatUnknown Format = "unknown"
)

// ContentType returns the MIME type used when uploading the format.
func (f Format) ContentType() string {
	switch f {
	case FormatSVG:
		return "image/svg+xml"
	case FormatUnknown, "":
		return "application/octet-stream"
	}
	return "image/" + string(f)
}

// Extension returns the canonical file extension, without the dot.
func (f Format) Extension() string {
	if f == FormatJPEG {
		return "jpg"
	}
	return string(f)
}

// ParseFormat normalises a format or extension name ("JPG", ".jpeg", "png").
func ParseFormat(s string) Format {
	s = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), ".")
	switch s {
	case "jpg", "jpeg", "jpe":
		return FormatJPEG
	case "png":
		return FormatPNG
	case "gif":
		return FormatGIF
	case "webp":
		return FormatWebP
	case "bmp":
		return FormatBMP
	case "tif", "tiff":
		return FormatTIFF
	case "avif":
		return FormatAVIF
	case "svg":
		return FormatSVG
	}
	return FormatUnknown
}

// Metadata holds image information recovered without loading pixel data.
type Metadata struct {
	Format    Format
	Width     int
	Height    int
	SizeBytes int64
}

// ArchiveItem is one eligible entry read from the input archive.  It is owned
// by the worker that processes it and must not be mutated.
type ArchiveItem struct {
	Index int    // position in enumeration order
	Path  string // full path inside the archive
	Name  string // base name, used as the report's image name
	Data  []byte
}

// Rule names a single validation check.
type Rule string

const (
	RuleDecode Rule = "decode"
	RuleFormat Rule = "format"
	RuleWidth  Rule = "width"
	RuleHeight Rule = "height"
	RuleSize   Rule = "size"
	RulePixels Rule = "pixels" // too many pixels to decode; never corrected
)

// Correctable reports whether the optimizer can repair a violation of r.
func (r Rule) Correctable() bool {
	switch r {
	case RuleWidth, RuleHeight, RuleSize:
		return true
	}
	return false
}

// Violation is one failed validation rule.
type Violation struct {
	Rule    Rule
	Message string
}

// Verdict is the outcome of inspecting raw image bytes against the limits.
type Verdict struct {
	Valid       bool
	Violations  []Violation
	Metadata    Metadata
	HasMetadata bool // false when the header could not be decoded
}

// Errors returns the violation messages in check order.
func (v Verdict) Errors() []string {
	out := make([]string, 0, len(v.Violations))
	for _, vi := range v.Violations {
		out = append(out, vi.Message)
	}
	return out
}

// Correctable reports whether every violation can be repaired by optimizing.
func (v Verdict) Correctable() bool {
	if !v.HasMetadata {
		return false
	}
	for _, vi := range v.Violations {
		if !vi.Rule.Correctable() {
			return false
		}
	}
	return true
}

// State is a position in the per-item state machine.
type State int

const (
	StatePending State = iota
	StateValidating
	StateInvalid
	StateOptimizing
	StateUploading
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateValidating:
		return "validating"
	case StateInvalid:
		return "invalid"
	case StateOptimizing:
		return "optimizing"
	case StateUploading:
		return "uploading"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Status is the report-level outcome of one item.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Result is the single, immutable outcome recorded for an ArchiveItem.
type Result struct {
	ImageName string `json:"image_name"`
	ImageHash string `json:"image_hash,omitempty"`
	Status    Status `json:"status"`
	Error     string `json:"error,omitempty"`
	ImagePath string `json:"image_path"`
	State     State  `json:"-"`
}

// Succeeded reports whether the item was uploaded.
func (r Result) Succeeded() bool { return r.Status == StatusSuccess }

// UploadRequest is everything the remote uploader needs for one call.
type UploadRequest struct {
	AccountID  string
	Name       string
	Data       []byte
	Metadata   Metadata
	Credential string
}

// EncodeOptions carries format-specific encoding parameters.
type EncodeOptions struct {
	Quality int // 1-100; 0 = use encoder default
}

// Summary describes a finished run.
type Summary struct {
	RunID      string
	Total      int
	Succeeded  int
	Failed     []string // archive paths of items that did not upload
	Results    []Result
	ReportPath string
	Duration   time.Duration
}
