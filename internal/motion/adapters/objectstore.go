package adapters

import (
	"bytes"
	"context"
	"fmt"

	"github.com/banshee-data/motionwatch/internal/config"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioMirror uploads snapshots to an S3-compatible bucket.
type MinioMirror struct {
	client *minio.Client
	bucket string
}

// NewMinioMirror connects to the deployment's object store and creates the
// bucket if it does not exist.
func NewMinioMirror(ctx context.Context, d *config.Deployment) (*MinioMirror, error) {
	client, err := minio.New(d.S3.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(d.S3.AccessKey, d.S3.SecretKey, ""),
		Secure: d.S3.Secure,
	})
	if err != nil {
		return nil, fmt.Errorf("create object store client: %w", err)
	}
	exists, err := client.BucketExists(ctx, d.S3.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", d.S3.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, d.S3.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", d.S3.Bucket, err)
		}
	}
	return &MinioMirror{client: client, bucket: d.S3.Bucket}, nil
}

// Put uploads data under key.
func (m *MinioMirror) Put(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := m.client.PutObject(ctx, m.bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("upload %s/%s: %w", m.bucket, key, err)
	}
	return nil
}
