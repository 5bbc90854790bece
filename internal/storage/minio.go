package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"onetee-be/internal/config"
	"onetee-be/internal/logger"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

const uploadExpiry = 15 * time.Minute

var ErrForeignObject = errors.New("url does not point into the product bucket")

// ImageStore keeps product images in one S3-compatible bucket.
type ImageStore struct {
	client     *minio.Client
	bucket     string
	publicBase string
	now        func() time.Time
}

func NewImageStore(cfg config.StorageConfig) (*ImageStore, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("MINIO_ENDPOINT is required")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.Secure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	publicBase := cfg.PublicURL
	if publicBase == "" {
		scheme := "http"
		if cfg.Secure {
			scheme = "https"
		}
		publicBase = scheme + "://" + cfg.Endpoint
	}

	return &ImageStore{
		client:     client,
		bucket:     cfg.ProductBucket,
		publicBase: strings.TrimRight(publicBase, "/"),
		now:        time.Now,
	}, nil
}

// EnsureBucket creates the product bucket on first boot.
func (s *ImageStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if exists {
		return nil
	}

	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket %s: %w", s.bucket, err)
	}

	logger.FromCtx(ctx).Info("storage bucket created", zap.String("bucket", s.bucket))
	return nil
}

func (s *ImageStore) publicURL(key string) string {
	return s.publicBase + "/" + s.bucket + "/" + key
}

func (s *ImageStore) PresignUpload(ctx context.Context, key, contentType string) (string, string, time.Time, error) {
	expiresAt := s.now().Add(uploadExpiry)

	u, err := s.client.PresignedPutObject(ctx, s.bucket, key, uploadExpiry)
	if err != nil {
		return "", "", time.Time{}, fmt.Errorf("presign %s: %w", key, err)
	}

	logger.FromCtx(ctx).Debug("presigned image upload",
		zap.String("layer", "storage"),
		zap.String("key", key),
		zap.String("content_type", contentType),
	)
	return u.String(), s.publicURL(key), expiresAt, nil
}

// Remove deletes the object behind a public URL previously handed out by
// PresignUpload. Missing objects are not an error.
func (s *ImageStore) Remove(ctx context.Context, publicURL string) error {
	prefix := s.publicBase + "/" + s.bucket + "/"
	key, ok := strings.CutPrefix(publicURL, prefix)
	if !ok || key == "" {
		return fmt.Errorf("%w: %s", ErrForeignObject, publicURL)
	}

	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove %s: %w", key, err)
	}
	return nil
}
