package graphapi

import (
	"context"
	"crypto/md5"
	"encoding/hex"

	"github.com/Skryldev/adimage-uploader/core"
	apperrors "github.com/Skryldev/adimage-uploader/errors"
)

// DryRun is a core.Uploader that never touches the network.  It returns the
// MD5 hex digest of the bytes, which is how the Graph API derives image
// hashes, so a dry-run report predicts the real one.
type DryRun struct {
	logger core.Logger
}

func NewDryRun(l core.Logger) *DryRun {
	if l == nil {
		l = core.NopLogger{}
	}
	return &DryRun{logger: l}
}

func (d *DryRun) Upload(ctx context.Context, req core.UploadRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", apperrors.New(apperrors.KindTransport, "dryrun.upload", err)
	}
	sum := md5.Sum(req.Data)
	hash := hex.EncodeToString(sum[:])
	d.logger.Debug("dry run upload", "name", req.Name, "bytes", len(req.Data), "hash", hash)
	return hash, nil
}
