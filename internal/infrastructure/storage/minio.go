package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	miniocreds "github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/fastygo/ocxers/internal/config"
)

// minioAPI is the part of *minio.Client the uploader calls.
type minioAPI interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// Minio uploads objects to a MinIO (or other S3-compatible) server.
type Minio struct {
	api    minioAPI
	bucket string
	base   string
}

// NewMinio connects to the configured endpoint and makes sure the bucket exists.
func NewMinio(ctx context.Context, cfg config.StorageConfig) (*Minio, error) {
	endpoint := strings.TrimPrefix(strings.TrimPrefix(cfg.Endpoint, "https://"), "http://")
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  miniocreds.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}
	scheme := "http"
	if cfg.UseSSL {
		scheme = "https"
	}
	return NewMinioWithAPI(ctx, client, cfg.Bucket, scheme+"://"+endpoint)
}

// NewMinioWithAPI allows injecting a fake API.
func NewMinioWithAPI(ctx context.Context, api minioAPI, bucket, base string) (*Minio, error) {
	m := &Minio{api: api, bucket: bucket, base: strings.TrimSuffix(base, "/")}
	if err := m.ensureBucket(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure bucket exists: %w", err)
	}
	return m, nil
}

func (m *Minio) ensureBucket(ctx context.Context) error {
	exists, err := m.api.BucketExists(ctx, m.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if exists {
		return nil
	}
	if err := m.api.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

// Put stores body under key and returns its location.
func (m *Minio) Put(ctx context.Context, key, contentType string, body io.Reader, size int64) (string, error) {
	_, err := m.api.PutObject(ctx, m.bucket, key, body, size, minio.PutObjectOptions{
		ContentType:  contentType,
		UserMetadata: map[string]string{"x-amz-acl": "public-read"},
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload object: %w", err)
	}
	return m.base + "/" + m.bucket + "/" + escapeKey(key), nil
}
