package core

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	apperrors "github.com/Skryldev/adimage-uploader/errors"
	"golang.org/x/sync/errgroup"
)

// Processor runs a Source through an ItemRunner on a fixed-size worker pool.
// A single producer feeds an unbuffered task channel, so at most Workers items
// are in flight at any moment.  Results are written by index into a pre-sized
// slice and therefore come back in enumeration order whatever the latency of
// individual items.
type Processor struct {
	runner   ItemRunner
	workers  int
	logger   Logger
	progress ProgressFunc

	// Atomic counters for lightweight internal metrics.
	succeededCount int64
	failedCount    int64
}

// New creates a Processor with the given pool width.  Values below 1 are
// raised to 1.
func New(runner ItemRunner, workers int) *Processor {
	if workers < 1 {
		workers = 1
	}
	return &Processor{runner: runner, workers: workers, logger: NopLogger{}}
}

// SetLogger attaches a structured logger.
func (p *Processor) SetLogger(l Logger) {
	if l != nil {
		p.logger = l
	}
}

// SetProgress registers a callback invoked once per finished item.  The
// callback runs on a dedicated goroutine and never blocks the workers.
func (p *Processor) SetProgress(fn ProgressFunc) { p.progress = fn }

type progressEvent struct {
	completed int
	name      string
}

// Run blocks until every dispatched item is terminal.  It returns exactly one
// Result per item the source produced.  A source error or cancellation of ctx
// stops dispatch and is returned alongside the results gathered so far.
func (p *Processor) Run(ctx context.Context, src Source) ([]Result, error) {
	total := src.Len()
	results := make([]Result, total)
	start := time.Now()

	p.logger.Info("batch started", "total", total, "workers", p.workers)

	// Sized to total so a send can never block a worker.
	events := make(chan progressEvent, max(total, 1))
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		for ev := range events {
			if p.progress != nil {
				p.progress(ev.completed, total, ev.name)
			}
		}
	}()

	var (
		completed atomic.Int64
		produced  int
	)
	tasks := make(chan ArchiveItem)
	g, gctx := errgroup.WithContext(ctx)

	// ── Producer ──────────────────────────────────────────────────────────────
	g.Go(func() error {
		defer close(tasks)
		for item, err := range src.Items(gctx) {
			if err != nil {
				return apperrors.Wrap(apperrors.KindArchiveRead, "processor.produce", err)
			}
			if produced >= total {
				return apperrors.New(apperrors.KindArchiveRead, "processor.produce",
					fmt.Errorf("source yielded more than the %d items it announced", total))
			}
			item.Index = produced
			select {
			case tasks <- item:
				produced++
			case <-gctx.Done():
				return apperrors.Wrap(apperrors.KindInternal, "processor.produce", gctx.Err())
			}
		}
		return nil
	})

	// ── Workers ───────────────────────────────────────────────────────────────
	for w := 0; w < p.workers; w++ {
		g.Go(func() error {
			for item := range tasks {
				res := p.safeRun(gctx, item)
				results[item.Index] = res
				if res.Succeeded() {
					atomic.AddInt64(&p.succeededCount, 1)
				} else {
					atomic.AddInt64(&p.failedCount, 1)
				}
				events <- progressEvent{completed: int(completed.Add(1)), name: item.Name}
			}
			return nil
		})
	}

	err := g.Wait()
	close(events)
	<-drained

	results = results[:produced]
	succeeded, failed := p.Stats()
	p.logger.Info("batch finished",
		"total", total,
		"completed", completed.Load(),
		"succeeded", succeeded,
		"failed", failed,
		"duration", time.Since(start).String())
	return results, err
}

// safeRun converts a panicking runner into a failed Result.
func (p *Processor) safeRun(ctx context.Context, item ArchiveItem) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("worker panicked", "path", item.Path, "panic", r)
			res = Result{
				ImageName: item.Name,
				ImagePath: item.Path,
				Status:    StatusError,
				Error:     fmt.Sprintf("panic: %v", r),
				State:     StateFailed,
			}
		}
	}()
	return p.runner.Run(ctx, item)
}

// Stats returns the number of succeeded and failed items across all runs of p.
func (p *Processor) Stats() (succeeded, failed int64) {
	return atomic.LoadInt64(&p.succeededCount), atomic.LoadInt64(&p.failedCount)
}
