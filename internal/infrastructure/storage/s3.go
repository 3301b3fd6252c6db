// Package storage uploads objects to S3-compatible object stores.
package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/fastygo/ocxers/internal/config"
)

// s3API is the part of *s3.Client the uploader calls.
type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

var loadAWSConfig = awsconfig.LoadDefaultConfig

// S3 uploads publicly readable objects to an AWS S3 bucket.
type S3 struct {
	api      s3API
	bucket   string
	region   string
	endpoint string
}

// NewS3 builds an uploader from the storage settings. Static credentials are
// used when configured; otherwise the default AWS credential chain applies.
func NewS3(ctx context.Context, cfg config.StorageConfig) (*S3, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := loadAWSConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewS3WithAPI(client, cfg.Bucket, cfg.Region, cfg.Endpoint), nil
}

// NewS3WithAPI allows injecting a fake API.
func NewS3WithAPI(api s3API, bucket, region, endpoint string) *S3 {
	return &S3{api: api, bucket: bucket, region: region, endpoint: endpoint}
}

// Put stores body under key and returns its public location.
func (s *S3) Put(ctx context.Context, key, contentType string, body io.Reader, size int64) (string, error) {
	in := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   body,
		ACL:    types.ObjectCannedACLPublicRead,
	}
	if contentType != "" {
		in.ContentType = aws.String(contentType)
	}
	if size >= 0 {
		in.ContentLength = aws.Int64(size)
	}
	if _, err := s.api.PutObject(ctx, in); err != nil {
		return "", fmt.Errorf("failed to upload object: %w", err)
	}
	return s.location(key), nil
}

func (s *S3) location(key string) string {
	if s.endpoint != "" {
		base := strings.TrimSuffix(s.endpoint, "/")
		return base + "/" + s.bucket + "/" + escapeKey(key)
	}
	host := fmt.Sprintf("%s.s3.%s.amazonaws.com", s.bucket, s.region)
	return (&url.URL{Scheme: "https", Host: host, Path: "/" + key}).String()
}

func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
