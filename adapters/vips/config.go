// Package vips provides a libvips-backed core.Transformer.  It is compiled
// only with the "vips" build tag; without it NewTransformer reports that the
// backend is unavailable and callers fall back to the pure-Go transformer.
package vips

import "runtime"

// BackendConfig configures the libvips backend.
type BackendConfig struct {
	DefaultQuality int
	MaxCacheSize   int
	MaxWorkers     int
	ReportLeaks    bool
}

func (c BackendConfig) withDefaults() BackendConfig {
	if c.DefaultQuality <= 0 {
		c.DefaultQuality = 80
	}
	if c.MaxWorkers <= 0 {
		c.MaxWorkers = runtime.NumCPU()
	}
	return c
}
