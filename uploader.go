// Package uploader uploads every image in a ZIP archive to the Graph API
// adimages edge and writes an ordered report of the returned hashes.
//
// Typical use:
//
//	up, err := uploader.New(cfg, uploader.Options{Logger: logger})
//	summary, err := up.Run(ctx, uploader.RunParams{
//		AccountID:  "1234567890",
//		InputPath:  "creatives.zip",
//		OutputPath: "hashes.csv",
//	})
package uploader

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Skryldev/adimage-uploader/adapters/archive"
	"github.com/Skryldev/adimage-uploader/adapters/decoder"
	"github.com/Skryldev/adimage-uploader/adapters/encoder"
	"github.com/Skryldev/adimage-uploader/adapters/graphapi"
	"github.com/Skryldev/adimage-uploader/adapters/storage"
	"github.com/Skryldev/adimage-uploader/adapters/vips"
	"github.com/Skryldev/adimage-uploader/config"
	"github.com/Skryldev/adimage-uploader/core"
	"github.com/Skryldev/adimage-uploader/credentials"
	apperrors "github.com/Skryldev/adimage-uploader/errors"
	"github.com/Skryldev/adimage-uploader/pipeline"
	"github.com/Skryldev/adimage-uploader/report"
)

// Options injects collaborators.  Every nil field gets a production default
// derived from the Config.
type Options struct {
	Uploader    core.Uploader           // default: graphapi.Client
	Credentials core.CredentialProvider // default: credentials.Store
	Sink        core.Sink               // default: report.Sink over local files
	Observer    core.ProgressObserver
	Logger      core.Logger
	Hooks       []core.Hook
	Transformer core.Transformer // default: chosen by Config.Codec
}

// RunParams describes one batch.
type RunParams struct {
	AccountID   string
	InputPath   string
	OutputPath  string
	Format      string // csv, json, excel or html; empty derives it from OutputPath
	Concurrency int    // overrides Config.Concurrency when > 0
}

// Uploader is the primary entry point.
type Uploader struct {
	cfg    config.Config
	opts   Options
	reg    *core.CodecRegistry
	tf     core.Transformer
	vips   *vips.Transformer
	logger core.Logger
}

// New validates cfg and wires the codec registry and transformer.
func New(cfg config.Config, opts Options) (*Uploader, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, apperrors.New(apperrors.KindConfig, "uploader.new", err)
	}

	u := &Uploader{cfg: cfg, opts: opts, reg: core.NewRegistry(), logger: opts.Logger}
	if u.logger == nil {
		u.logger = core.NopLogger{}
	}
	decoder.RegisterAll(u.reg)
	encoder.RegisterAll(u.reg, cfg.LossyQuality)

	u.tf = opts.Transformer
	if u.tf == nil && cfg.Codec == config.CodecVips {
		tf, err := vips.NewTransformer(vips.BackendConfig{
			DefaultQuality: cfg.LossyQuality,
			MaxWorkers:     cfg.Concurrency,
		})
		if err != nil {
			u.logger.Warn("libvips unavailable, using the pure-Go codec", "error", apperrors.Message(err))
		} else {
			u.tf, u.vips = tf, tf
		}
	}
	if u.tf == nil {
		u.tf = pipeline.NewStdTransformer(u.reg)
	}
	return u, nil
}

// Registry exposes the codec registry so callers can add formats.
func (u *Uploader) Registry() *core.CodecRegistry { return u.reg }

// Close releases the libvips backend when one was started.
func (u *Uploader) Close() error {
	if u.vips != nil {
		u.vips.Shutdown()
	}
	return nil
}

// Run processes every eligible archive entry and writes the report.
//
// Per-item failures are recorded in the returned Summary.  An error is
// returned only when the archive cannot be read, the credential cannot be
// resolved or the report cannot be written; in the last case the Summary
// still carries every Result.  When an entry turns out to be unreadable after
// earlier items were processed, the report is written with those items before
// the archive error is returned.
func (u *Uploader) Run(ctx context.Context, p RunParams) (*core.Summary, error) {
	start := time.Now()
	cfg := u.cfg
	if p.Concurrency > 0 {
		cfg.Concurrency = p.Concurrency
	}
	if p.AccountID == "" || p.InputPath == "" || p.OutputPath == "" {
		return nil, apperrors.New(apperrors.KindConfig, "uploader.run",
			fmt.Errorf("account id, input and output paths are required"))
	}
	format, err := report.Resolve(p.Format, p.OutputPath, cfg.Report.DefaultFormat)
	if err != nil {
		return nil, apperrors.New(apperrors.KindConfig, "uploader.run", err)
	}

	summary := &core.Summary{RunID: uuid.NewString()}
	logger := withFields(u.logger, "run_id", summary.RunID)
	observe := u.opts.Observer

	// ── Archive ───────────────────────────────────────────────────────────────
	arc, err := archive.Open(p.InputPath, archive.OptionsFromConfig(cfg))
	if err != nil {
		return nil, err
	}
	defer arc.Close()

	summary.Total = arc.Len()
	logger.Info("archive opened",
		"path", p.InputPath,
		"eligible", summary.Total,
		"skipped", arc.Skipped(),
		"concurrency", cfg.Concurrency)
	if observe != nil {
		if sz, ok := observe.(core.ProgressSizer); ok {
			sz.SetTotal(summary.Total)
		}
		observe.Update("Starting image processing", 0)
	}

	// ── Credential ────────────────────────────────────────────────────────────
	creds := credentials.NewCached(u.credentialProvider(logger))
	if summary.Total > 0 {
		if _, err := creds.Credential(ctx); err != nil {
			return nil, apperrors.Wrap(apperrors.KindCredential, "uploader.credential", err)
		}
	}

	// ── Pipeline ──────────────────────────────────────────────────────────────
	pl := pipeline.New(pipeline.NewInspector(cfg, u.reg, u.tf), u.uploader(logger), creds).
		ForAccount(p.AccountID).
		WithRetry(cfg.MaxRetries, cfg.RetryDelay).
		WithLogger(logger)
	for _, h := range u.opts.Hooks {
		pl.AddHook(h)
	}

	proc := core.New(pl, cfg.Concurrency)
	proc.SetLogger(logger)
	if observe != nil {
		proc.SetProgress(func(_, _ int, name string) {
			observe.Update("Processed "+name, 1)
		})
	}

	results, runErr := proc.Run(ctx, arc)
	summary.Results = results
	for _, r := range results {
		if r.Succeeded() {
			summary.Succeeded++
		} else {
			summary.Failed = append(summary.Failed, r.ImagePath)
		}
	}
	if runErr != nil {
		if apperrors.IsKind(runErr, apperrors.KindArchiveRead) && len(results) > 0 {
			u.writePartial(ctx, logger, summary, string(format), p.OutputPath)
		}
		summary.Duration = time.Since(start)
		return summary, runErr
	}

	// ── Report ────────────────────────────────────────────────────────────────
	path, err := u.sink(ctx, logger).Write(ctx, results, string(format), p.OutputPath)
	summary.ReportPath = path
	summary.Duration = time.Since(start)
	if err != nil {
		return summary, apperrors.Wrap(apperrors.KindReportWrite, "uploader.report", err)
	}

	logger.Info("run finished",
		"total", summary.Total,
		"succeeded", summary.Succeeded,
		"failed", len(summary.Failed),
		"report", path,
		"duration", summary.Duration.String())
	return summary, nil
}

// writePartial persists the results gathered before the archive failed.  The
// hashes are logged as well so they survive a report that cannot be written.
func (u *Uploader) writePartial(ctx context.Context, l core.Logger, s *core.Summary, format, output string) {
	for _, r := range s.Results {
		if r.Succeeded() {
			l.Info("image uploaded before archive error", "path", r.ImagePath, "hash", r.ImageHash)
		}
	}
	path, err := u.sink(ctx, l).Write(ctx, s.Results, format, output)
	if err != nil {
		l.Error("partial report not written", "error", apperrors.Message(err))
		return
	}
	s.ReportPath = path
	l.Warn("partial report written", "report", path, "items", len(s.Results), "total", s.Total)
}

func (u *Uploader) sink(ctx context.Context, l core.Logger) core.Sink {
	if u.opts.Sink != nil {
		return u.opts.Sink
	}
	return u.defaultSink(ctx, l)
}

func (u *Uploader) uploader(l core.Logger) core.Uploader {
	if u.opts.Uploader != nil {
		return u.opts.Uploader
	}
	return graphapi.New(u.cfg, graphapi.WithLogger(l))
}

func (u *Uploader) credentialProvider(l core.Logger) core.CredentialProvider {
	if u.opts.Credentials != nil {
		return u.opts.Credentials
	}
	return credentials.NewStore(u.cfg.Token, credentials.WithLogger(l))
}

// defaultSink writes reports to the local filesystem and, when configured,
// mirrors them to an S3-compatible bucket.  A mirror that cannot be reached
// is logged and skipped.
func (u *Uploader) defaultSink(ctx context.Context, l core.Logger) core.Sink {
	opts := []report.Option{report.WithLogger(l)}
	if m := u.cfg.Report.Mirror; m.Enabled {
		mirror, err := storage.NewMinio(ctx, m)
		if err != nil {
			l.Warn("report mirror disabled", "endpoint", m.Endpoint, "error", err)
		} else {
			opts = append(opts, report.WithMirror(mirror))
		}
	}
	return report.NewSink(storage.NewLocal("", 0o644), opts...)
}

// ── Run-scoped logger ─────────────────────────────────────────────────────────

type fieldLogger struct {
	core.Logger
	fields []interface{}
}

func withFields(l core.Logger, fields ...interface{}) core.Logger {
	return fieldLogger{Logger: l, fields: fields}
}

func (f fieldLogger) merge(extra []interface{}) []interface{} {
	out := make([]interface{}, 0, len(f.fields)+len(extra))
	return append(append(out, f.fields...), extra...)
}

func (f fieldLogger) Debug(msg string, fields ...interface{}) { f.Logger.Debug(msg, f.merge(fields)...) }
func (f fieldLogger) Info(msg string, fields ...interface{})  { f.Logger.Info(msg, f.merge(fields)...) }
func (f fieldLogger) Warn(msg string, fields ...interface{})  { f.Logger.Warn(msg, f.merge(fields)...) }
func (f fieldLogger) Error(msg string, fields ...interface{}) { f.Logger.Error(msg, f.merge(fields)...) }
