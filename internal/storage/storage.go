// Package storage persists conversation media in MinIO.
package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"conviaq_backend/platform/config"
	"conviaq_backend/platform/logger"
)

// Service uploads and serves media objects. A nil Service (storage not
// configured) is tolerated by callers; media then stays at the gateway.
type Service struct {
	client *minio.Client
	bucket string
	log    *logger.Logger
}

// New connects to MinIO and ensures the media bucket exists.
func New(ctx context.Context, cfg config.StorageConfig, log *logger.Logger) (*Service, error) {
	client, err := minio.New(cfg.GetMinIOEndpoint(), &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.GetMinIOAccessKey(), cfg.GetMinIOSecretKey(), ""),
		Secure: cfg.GetMinIOUseSSL(),
	})
	if err != nil {
		return nil, fmt.Errorf("storage: connect: %w", err)
	}

	svc := &Service{client: client, bucket: cfg.GetMediaBucket(), log: log}
	if err := svc.ensureBucket(ctx); err != nil {
		return nil, err
	}
	return svc, nil
}

func (s *Service) ensureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("storage: bucket check: %w", err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("storage: create bucket: %w", err)
	}
	return nil
}

// UploadMedia stores one media payload under a tenant-scoped key and returns
// the object key.
func (s *Service) UploadMedia(ctx context.Context, tenantID int64, contentType string, size int64, body io.Reader) (string, error) {
	key := fmt.Sprintf("tenants/%d/media/%s", tenantID, uuid.NewString())

	_, err := s.client.PutObject(ctx, s.bucket, key, body, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("storage: upload %s: %w", key, err)
	}
	return key, nil
}

// PresignedURL returns a short-lived download URL for a stored object.
func (s *Service) PresignedURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, expiry, nil)
	if err != nil {
		return "", fmt.Errorf("storage: presign %s: %w", key, err)
	}
	return u.String(), nil
}

// Delete removes a stored object. Used when a tenant is purged.
func (s *Service) Delete(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("storage: delete %s: %w", key, err)
	}
	return nil
}
