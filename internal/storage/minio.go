package storage

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type MinioConfig struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	UseSSL        bool
	PublicBaseURL string // defaults to http(s)://<Endpoint>
}

// MinioStore implements ObjectStore on MinIO or any S3-compatible endpoint.
type MinioStore struct {
	client  *minio.Client
	baseURL string
	logger  *slog.Logger
}

func NewMinioStore(cfg MinioConfig, logger *slog.Logger) (*MinioStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}
	base := cfg.PublicBaseURL
	if base == "" {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		base = scheme + "://" + cfg.Endpoint
	}
	return &MinioStore{client: client, baseURL: base, logger: logger}, nil
}

func (s *MinioStore) ListBuckets(ctx context.Context) ([]string, error) {
	buckets, err := s.client.ListBuckets(ctx)
	if err != nil {
		return nil, fmt.Errorf("s3 list buckets: %w", err)
	}
	names := make([]string, 0, len(buckets))
	for _, b := range buckets {
		names = append(names, b.Name)
	}
	return names, nil
}

func (s *MinioStore) CreateBucket(ctx context.Context, name string, public bool) error {
	if err := s.client.MakeBucket(ctx, name, minio.MakeBucketOptions{}); err != nil {
		// another worker may have won the race
		exists, errExists := s.client.BucketExists(ctx, name)
		if errExists != nil || !exists {
			return fmt.Errorf("s3 make bucket %s: %w", name, err)
		}
	}
	if public {
		if err := s.client.SetBucketPolicy(ctx, name, publicReadPolicy(name)); err != nil {
			return fmt.Errorf("s3 set bucket policy %s: %w", name, err)
		}
	}
	s.logger.Info("storage.bucket.created", "bucket", name, "public", public)
	return nil
}

func (s *MinioStore) Upload(ctx context.Context, bucket, path string, data []byte, contentType string) (string, error) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	info, err := s.client.PutObject(ctx, bucket, path, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("s3 put object: %w", err)
	}
	s.logger.Debug("storage.upload.ok", "bucket", bucket, "key", path, "size", info.Size)
	return PublicURL(s.baseURL, bucket, path), nil
}

func publicReadPolicy(bucket string) string {
	return fmt.Sprintf(`{"Version":"2012-10-17","Statement":[{"Effect":"Allow","Principal":{"AWS":["*"]},"Action":["s3:GetObject"],"Resource":["arn:aws:s3:::%s/*"]}]}`, bucket)
}
