// Package report renders upload results and persists them.
package report

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Format is a report encoding.
type Format string

const (
	CSV   Format = "csv"
	JSON  Format = "json"
	Excel Format = "excel"
	HTML  Format = "html"
)

// ParseFormat accepts a format name or file extension.
func ParseFormat(s string) (Format, error) {
	switch strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), ".") {
	case "csv":
		return CSV, nil
	case "json":
		return JSON, nil
	case "excel", "xlsx":
		return Excel, nil
	case "html", "htm":
		return HTML, nil
	}
	return "", fmt.Errorf("unsupported report format: %s", s)
}

// Extension returns the file extension written for f, without the dot.
func (f Format) Extension() string {
	if f == Excel {
		return "xlsx"
	}
	return string(f)
}

// ContentType returns the MIME type of a rendered report.
func (f Format) ContentType() string {
	switch f {
	case CSV:
		return "text/csv; charset=utf-8"
	case JSON:
		return "application/json"
	case Excel:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case HTML:
		return "text/html; charset=utf-8"
	}
	return "application/octet-stream"
}

// Resolve picks the report format: an explicit choice wins, then the output
// file's extension, then fallback.
func Resolve(explicit, output, fallback string) (Format, error) {
	if explicit != "" {
		return ParseFormat(explicit)
	}
	if ext := filepath.Ext(output); ext != "" {
		if f, err := ParseFormat(ext); err == nil {
			return f, nil
		}
	}
	return ParseFormat(fallback)
}

// OutputPath appends f's extension to output unless it already carries an
// extension belonging to f.
func OutputPath(output string, f Format) string {
	if ext := filepath.Ext(output); ext != "" {
		if got, err := ParseFormat(ext); err == nil && got == f {
			return output
		}
	}
	return output + "." + f.Extension()
}
