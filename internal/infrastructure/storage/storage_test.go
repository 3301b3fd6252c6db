package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	in   *s3.PutObjectInput
	body []byte
	err  error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.in = in
	f.body, _ = io.ReadAll(in.Body)
	return &s3.PutObjectOutput{}, f.err
}

func TestS3_Put(t *testing.T) {
	t.Parallel()
	api := &fakeS3{}
	up := NewS3WithAPI(api, "bucket", "us-east-1", "")

	loc, err := up.Put(context.Background(), "uploads/__ocxers__/u1/documents/my file.png", "image/png", bytes.NewReader([]byte("png")), 3)
	require.NoError(t, err)
	assert.Equal(t, "https://bucket.s3.us-east-1.amazonaws.com/uploads/__ocxers__/u1/documents/my%20file.png", loc)

	require.NotNil(t, api.in)
	assert.Equal(t, "bucket", aws.ToString(api.in.Bucket))
	assert.Equal(t, "uploads/__ocxers__/u1/documents/my file.png", aws.ToString(api.in.Key))
	assert.Equal(t, "image/png", aws.ToString(api.in.ContentType))
	assert.Equal(t, types.ObjectCannedACLPublicRead, api.in.ACL)
	assert.Equal(t, int64(3), aws.ToInt64(api.in.ContentLength))
	assert.Equal(t, []byte("png"), api.body)
}

func TestS3_PutWithEndpointAndError(t *testing.T) {
	t.Parallel()
	up := NewS3WithAPI(&fakeS3{}, "bucket", "us-east-1", "http://localhost:9000/")
	loc, err := up.Put(context.Background(), "a/b.txt", "", bytes.NewReader(nil), -1)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9000/bucket/a/b.txt", loc)

	failing := NewS3WithAPI(&fakeS3{err: errors.New("denied")}, "bucket", "us-east-1", "")
	_, err = failing.Put(context.Background(), "a/b.txt", "", bytes.NewReader(nil), 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "denied")
}

type fakeMinio struct {
	exists    bool
	existsErr error
	made      bool
	makeErr   error
	putKey    string
	putOpts   minio.PutObjectOptions
	putErr    error
}

func (f *fakeMinio) BucketExists(context.Context, string) (bool, error) {
	return f.exists, f.existsErr
}

func (f *fakeMinio) MakeBucket(context.Context, string, minio.MakeBucketOptions) error {
	f.made = true
	return f.makeErr
}

func (f *fakeMinio) PutObject(_ context.Context, _ string, objectName string, _ io.Reader, _ int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	f.putKey = objectName
	f.putOpts = opts
	return minio.UploadInfo{Key: objectName}, f.putErr
}

func TestMinio(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	api := &fakeMinio{}
	m, err := NewMinioWithAPI(ctx, api, "bucket", "http://minio:9000/")
	require.NoError(t, err)
	assert.True(t, api.made)

	loc, err := m.Put(ctx, "up/__ocxers__/u1/documents/a.pdf", "application/pdf", bytes.NewReader([]byte("x")), 1)
	require.NoError(t, err)
	assert.Equal(t, "http://minio:9000/bucket/up/__ocxers__/u1/documents/a.pdf", loc)
	assert.Equal(t, "application/pdf", api.putOpts.ContentType)
	assert.Equal(t, "public-read", api.putOpts.UserMetadata["x-amz-acl"])

	api.putErr = errors.New("boom")
	_, err = m.Put(ctx, "k", "", bytes.NewReader(nil), 0)
	assert.Error(t, err)
}

func TestMinio_BucketErrors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	_, err := NewMinioWithAPI(ctx, &fakeMinio{existsErr: errors.New("down")}, "bucket", "http://minio")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to ensure bucket exists")

	_, err = NewMinioWithAPI(ctx, &fakeMinio{makeErr: errors.New("denied")}, "bucket", "http://minio")
	assert.Error(t, err)

	api := &fakeMinio{exists: true}
	_, err = NewMinioWithAPI(ctx, api, "bucket", "http://minio")
	require.NoError(t, err)
	assert.False(t, api.made)
}
