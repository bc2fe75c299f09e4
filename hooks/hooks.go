// Package hooks provides production-ready Hook and Logger implementations.
package hooks

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Skryldev/adimage-uploader/core"
	apperrors "github.com/Skryldev/adimage-uploader/errors"
)

// ── Logging hook ──────────────────────────────────────────────────────────────

// LoggingHook logs before/after each pipeline stage.
type LoggingHook struct {
	logger core.Logger
}

// NewLoggingHook creates a LoggingHook.
func NewLoggingHook(l core.Logger) *LoggingHook { return &LoggingHook{logger: l} }

func (h *LoggingHook) BeforeStage(_ context.Context, stage core.State, item core.ArchiveItem) {
	h.logger.Debug("pipeline.stage.start",
		"stage", stage.String(),
		"path", item.Path,
		"bytes", len(item.Data),
	)
}

func (h *LoggingHook) AfterStage(_ context.Context, stage core.State, item core.ArchiveItem, d time.Duration, err error) {
	if err != nil {
		h.logger.Warn("pipeline.stage.error",
			"stage", stage.String(),
			"path", item.Path,
			"duration_ms", d.Milliseconds(),
			"kind", string(apperrors.KindOf(err)),
			"error", apperrors.Message(err),
		)
		return
	}
	h.logger.Debug("pipeline.stage.done",
		"stage", stage.String(),
		"path", item.Path,
		"duration_ms", d.Milliseconds(),
	)
}

// ── In-memory metrics collector ───────────────────────────────────────────────

// InMemoryMetrics accumulates metrics atomically; safe for concurrent use.
type InMemoryMetrics struct {
	mu sync.RWMutex

	stageDurationsMs map[string]int64 // cumulative ms per stage
	stageCalls       map[string]int64
	stageErrors      map[string]int64
	errorKinds       map[string]int64

	uploadedBytes int64
}

// NewInMemoryMetrics creates an empty metrics store.
func NewInMemoryMetrics() *InMemoryMetrics {
	return &InMemoryMetrics{
		stageDurationsMs: make(map[string]int64),
		stageCalls:       make(map[string]int64),
		stageErrors:      make(map[string]int64),
		errorKinds:       make(map[string]int64),
	}
}

func (m *InMemoryMetrics) RecordStageTime(stage string, d time.Duration) {
	m.mu.Lock()
	m.stageDurationsMs[stage] += d.Milliseconds()
	m.stageCalls[stage]++
	m.mu.Unlock()
}

func (m *InMemoryMetrics) RecordThroughput(bytes int64) {
	atomic.AddInt64(&m.uploadedBytes, bytes)
}

func (m *InMemoryMetrics) RecordError(stage string, kind string) {
	m.mu.Lock()
	m.stageErrors[stage]++
	m.errorKinds[kind]++
	m.mu.Unlock()
}

// Snapshot returns a copy of current metrics.
func (m *InMemoryMetrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return MetricsSnapshot{
		StageDurationsMs: copyCounts(m.stageDurationsMs),
		StageCalls:       copyCounts(m.stageCalls),
		StageErrors:      copyCounts(m.stageErrors),
		ErrorKinds:       copyCounts(m.errorKinds),
		UploadedBytes:    atomic.LoadInt64(&m.uploadedBytes),
	}
}

func copyCounts(src map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

// MetricsSnapshot is an immutable point-in-time copy of metrics.
type MetricsSnapshot struct {
	StageDurationsMs map[string]int64
	StageCalls       map[string]int64
	StageErrors      map[string]int64
	ErrorKinds       map[string]int64
	UploadedBytes    int64
}

// Fields flattens the snapshot into key/value pairs for a core.Logger.
func (s MetricsSnapshot) Fields() []interface{} {
	out := []interface{}{"uploaded_bytes", s.UploadedBytes}
	for stage, calls := range s.StageCalls {
		out = append(out, stage+"_calls", calls, stage+"_ms", s.StageDurationsMs[stage])
	}
	for stage, n := range s.StageErrors {
		out = append(out, stage+"_errors", n)
	}
	return out
}

// ── Metrics hook ──────────────────────────────────────────────────────────────

// MetricsHook feeds pipeline events into a MetricsCollector.
type MetricsHook struct {
	collector core.MetricsCollector
}

// NewMetricsHook creates a MetricsHook.
func NewMetricsHook(c core.MetricsCollector) *MetricsHook { return &MetricsHook{collector: c} }

func (h *MetricsHook) BeforeStage(context.Context, core.State, core.ArchiveItem) {}

func (h *MetricsHook) AfterStage(_ context.Context, stage core.State, item core.ArchiveItem, d time.Duration, err error) {
	h.collector.RecordStageTime(stage.String(), d)
	if err != nil {
		h.collector.RecordError(stage.String(), string(apperrors.KindOf(err)))
		return
	}
	if stage == core.StateUploading {
		h.collector.RecordThroughput(int64(len(item.Data)))
	}
}
