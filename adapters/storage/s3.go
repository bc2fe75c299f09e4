package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/Skryldev/adimage-uploader/config"
	"github.com/Skryldev/adimage-uploader/core"
	apperrors "github.com/Skryldev/adimage-uploader/errors"
	"github.com/minio/minio-go/v7"
	miniocreds "github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Client defines the minimal object-store interface used by the adapter.
// This allows injection of a real minio client or test doubles.
type S3Client interface {
	PutObject(ctx context.Context, bucket, key string, body io.Reader, size int64, meta map[string]string) error
}

// S3 is the StorageAdapter backed by an S3-compatible store.
type S3 struct {
	client S3Client
	bucket string
	prefix string
}

// NewS3 creates an S3 adapter.  client must not be nil.
func NewS3(client S3Client, defaultBucket, prefix string) (*S3, error) {
	if client == nil {
		return nil, fmt.Errorf("s3 storage: client must not be nil")
	}
	return &S3{client: client, bucket: defaultBucket, prefix: strings.Trim(prefix, "/")}, nil
}

// NewMinio builds an S3 adapter for the mirror configuration, creating the
// bucket when it does not exist yet.
func NewMinio(ctx context.Context, cfg config.MirrorConfig) (*S3, error) {
	client, err := newMinioClient(cfg)
	if err != nil {
		return nil, apperrors.New(apperrors.KindConfig, "s3.init", err)
	}
	if err := client.ensureBucket(ctx, cfg.Bucket, cfg.Region); err != nil {
		return nil, apperrors.Transient(apperrors.KindReportWrite, "s3.bucket", err)
	}
	return NewS3(client, cfg.Bucket, cfg.Prefix)
}

// Key returns the object key for a storage path.
func (s *S3) Key(p string) string {
	base := path.Base(strings.ReplaceAll(p, "\\", "/"))
	if s.prefix == "" {
		return base
	}
	return s.prefix + "/" + base
}

func (s *S3) Put(ctx context.Context, key core.StorageKey, r io.Reader, meta map[string]string) error {
	if err := ctx.Err(); err != nil {
		return apperrors.Wrap(apperrors.KindReportWrite, "s3.put", err)
	}
	bucket := key.Bucket
	if bucket == "" {
		bucket = s.bucket
	}
	size := int64(-1)
	if br, ok := r.(*bytes.Reader); ok {
		size = int64(br.Len())
	}
	if err := s.client.PutObject(ctx, bucket, s.Key(key.Path), r, size, meta); err != nil {
		return apperrors.Transient(apperrors.KindReportWrite, "s3.put", err)
	}
	return nil
}

// ── minio-go ──────────────────────────────────────────────────────────────────

type minioClient struct {
	client *minio.Client
}

func newMinioClient(cfg config.MirrorConfig) (*minioClient, error) {
	endpoint := cfg.Endpoint
	useSSL := cfg.UseSSL

	if strings.HasPrefix(endpoint, "http") {
		u, err := url.Parse(endpoint)
		if err != nil {
			return nil, fmt.Errorf("parse endpoint: %w", err)
		}
		endpoint = u.Host
		useSSL = u.Scheme == "https"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  miniocreds.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: useSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio: %w", err)
	}
	return &minioClient{client: client}, nil
}

func (m *minioClient) ensureBucket(ctx context.Context, bucket, region string) error {
	exists, err := m.client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("bucket exists %s: %w", bucket, err)
	}
	if exists {
		return nil
	}
	if err := m.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: region}); err != nil {
		return fmt.Errorf("create bucket %s: %w", bucket, err)
	}
	return nil
}

func (m *minioClient) PutObject(ctx context.Context, bucket, key string, body io.Reader, size int64, meta map[string]string) error {
	opts := minio.PutObjectOptions{UserMetadata: make(map[string]string, len(meta))}
	for k, v := range meta {
		if k == "Content-Type" {
			opts.ContentType = v
			continue
		}
		opts.UserMetadata[k] = v
	}
	_, err := m.client.PutObject(ctx, bucket, key, body, size, opts)
	return err
}
