// Package pipeline drives a single archive item through validation,
// optimization and upload, running hooks and retrying transient failures.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Skryldev/adimage-uploader/core"
	apperrors "github.com/Skryldev/adimage-uploader/errors"
)

// Pipeline is the per-item state machine:
//
//	Pending → Validating → (Invalid | Optimizing) → Uploading → (Succeeded | Failed)
//
// Optimizing is skipped when the image is already compliant.  Run never
// returns an error; every failure is folded into the Result.
type Pipeline struct {
	inspector  core.Inspector
	uploader   core.Uploader
	creds      core.CredentialProvider
	accountID  string
	hooks      []core.Hook
	maxRetries int
	retryDelay time.Duration
	logger     core.Logger
}

// New returns a Pipeline that uploads through uploader.  creds may be nil when
// the uploader does not need a token.
func New(inspector core.Inspector, uploader core.Uploader, creds core.CredentialProvider) *Pipeline {
	return &Pipeline{
		inspector: inspector,
		uploader:  uploader,
		creds:     creds,
		logger:    core.NopLogger{},
	}
}

// ForAccount sets the ad account every upload targets.
func (p *Pipeline) ForAccount(accountID string) *Pipeline {
	p.accountID = accountID
	return p
}

// AddHook registers an observer.
func (p *Pipeline) AddHook(h core.Hook) *Pipeline {
	p.hooks = append(p.hooks, h)
	return p
}

// WithRetry sets the maximum retry count and delay for transient upload
// failures.
func (p *Pipeline) WithRetry(maxRetries int, delay time.Duration) *Pipeline {
	p.maxRetries = maxRetries
	p.retryDelay = delay
	return p
}

// WithLogger attaches a structured logger.
func (p *Pipeline) WithLogger(l core.Logger) *Pipeline {
	if l != nil {
		p.logger = l
	}
	return p
}

// Run processes one item and always returns its Result.
func (p *Pipeline) Run(ctx context.Context, item core.ArchiveItem) (res core.Result) {
	res = core.Result{ImageName: item.Name, ImagePath: item.Path, State: core.StatePending}
	defer func() {
		if r := recover(); r != nil {
			err := apperrors.New(apperrors.KindInternal, "pipeline.run", fmt.Errorf("panic: %v", r))
			p.logger.Error("item panicked", "path", item.Path, "panic", r)
			res = fail(res, core.StateFailed, err)
		}
	}()

	if err := ctx.Err(); err != nil {
		return fail(res, core.StateFailed, apperrors.Wrap(apperrors.KindInternal, "pipeline.run", err))
	}
	data := item.Data

	// ── Validating ────────────────────────────────────────────────────────────
	res.State = core.StateValidating
	var verdict core.Verdict
	err := p.stage(ctx, core.StateValidating, item, func() error {
		verdict = p.inspector.Inspect(ctx, data)
		if verdict.Valid || verdict.Correctable() {
			return nil
		}
		return validationError("inspect", verdict)
	})
	if err != nil {
		return fail(res, core.StateInvalid, err)
	}
	meta := verdict.Metadata

	// ── Optimizing ────────────────────────────────────────────────────────────
	if !verdict.Valid {
		res.State = core.StateOptimizing
		err = p.stage(ctx, core.StateOptimizing, item, func() error {
			out, _, err := p.inspector.Optimize(ctx, data, meta)
			if err != nil {
				return err
			}
			after := p.inspector.Inspect(ctx, out)
			if !after.Valid {
				return validationError("optimize", after)
			}
			p.logger.Debug("image optimized", "path", item.Path,
				"before_bytes", len(data), "after_bytes", len(out),
				"width", after.Metadata.Width, "height", after.Metadata.Height)
			data, meta = out, after.Metadata
			return nil
		})
		if err != nil {
			return fail(res, core.StateFailed, err)
		}
	}

	// ── Uploading ─────────────────────────────────────────────────────────────
	res.State = core.StateUploading
	var hash string
	err = p.stage(ctx, core.StateUploading, item, func() error {
		var cred string
		if p.creds != nil {
			c, err := p.creds.Credential(ctx)
			if err != nil {
				return err
			}
			cred = c
		}
		req := core.UploadRequest{
			AccountID:  p.accountID,
			Name:       item.Name,
			Data:       data,
			Metadata:   meta,
			Credential: cred,
		}
		var err error
		hash, err = p.uploadWithRetry(ctx, req)
		return err
	})
	if err != nil {
		return fail(res, core.StateFailed, err)
	}

	res.ImageHash = hash
	res.Status = core.StatusSuccess
	res.State = core.StateSucceeded
	return res
}

// uploadWithRetry calls the uploader, retrying only retryable errors.
func (p *Pipeline) uploadWithRetry(ctx context.Context, req core.UploadRequest) (string, error) {
	var (
		hash string
		err  error
	)
	attempts := p.maxRetries + 1
	for i := 0; i < attempts; i++ {
		hash, err = p.uploader.Upload(ctx, req)
		if err == nil {
			return hash, nil
		}
		if !apperrors.IsRetryable(err) || i == attempts-1 {
			break
		}
		p.logger.Warn("retrying upload", "name", req.Name, "attempt", i+1, "error", err)
		select {
		case <-ctx.Done():
			return "", apperrors.Wrap(apperrors.KindTransport, "pipeline.upload", ctx.Err())
		case <-time.After(p.retryDelay):
		}
	}
	return "", err
}

func (p *Pipeline) stage(ctx context.Context, s core.State, item core.ArchiveItem, fn func() error) error {
	for _, h := range p.hooks {
		h.BeforeStage(ctx, s, item)
	}
	start := time.Now()
	err := fn()
	d := time.Since(start)
	for _, h := range p.hooks {
		h.AfterStage(ctx, s, item, d, err)
	}
	return err
}

func validationError(op string, v core.Verdict) error {
	return apperrors.New(apperrors.KindValidation, op, errors.New(strings.Join(v.Errors(), ", ")))
}

func fail(res core.Result, s core.State, err error) core.Result {
	res.Status = core.StatusError
	res.Error = apperrors.Message(err)
	res.ImageHash = ""
	res.State = s
	return res
}
