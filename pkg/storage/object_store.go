package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

var (
	// ErrWrite indicates the backend rejected or lost an upload.
	ErrWrite = errors.New("storage write failed")
	// ErrDelete indicates the backend failed to remove an object.
	ErrDelete = errors.New("storage delete failed")
)

// ProgressFunc observes upload progress as a percentage. Values are
// monotonically non-decreasing within one upload, starting at 0.
type ProgressFunc func(percent int)

// ObjectStore provides access to bucket-organized object storage.
type ObjectStore interface {
	// Upload writes an object and returns its durable public URL. The object
	// either fully exists at key afterwards or, on error or cancellation, not
	// at all.
	Upload(ctx context.Context, bucket, key string, r io.Reader, size int64, contentType string, progress ProgressFunc) (string, error)
	// Remove deletes by key. Removing an absent key is not an error.
	Remove(ctx context.Context, bucket, key string) error
}

// MinioStore implements ObjectStore for MinIO/S3 compatible storage.
type MinioStore struct {
	client    *minio.Client
	publicURL string
}

// NewMinioStore connects to MinIO and ensures the given buckets exist.
// publicURL is the externally reachable base under which objects are served.
func NewMinioStore(endpoint, accessKey, secretKey, publicURL string, useSSL bool, buckets []string) (*MinioStore, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio client: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, bucket := range buckets {
		exists, err := client.BucketExists(ctx, bucket)
		if err != nil {
			return nil, fmt.Errorf("check bucket %s: %w", bucket, err)
		}
		if !exists {
			if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
				return nil, fmt.Errorf("create bucket %s: %w", bucket, err)
			}
		}
	}
	return &MinioStore{
		client:    client,
		publicURL: strings.TrimRight(publicURL, "/"),
	}, nil
}

// Upload writes the object. MinIO commits an object only once the final part
// lands, so an abandoned upload leaves nothing visible at the key.
func (m *MinioStore) Upload(ctx context.Context, bucket, key string, r io.Reader, size int64, contentType string, progress ProgressFunc) (string, error) {
	if progress != nil {
		progress(0)
		r = newProgressReader(r, size, progress)
	}
	_, err := m.client.PutObject(ctx, bucket, key, r, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("%w: put %s/%s: %v", ErrWrite, bucket, key, err)
	}
	if progress != nil {
		progress(100)
	}
	return m.publicURL + "/" + bucket + "/" + key, nil
}

// Remove deletes an object. MinIO treats removal of an absent key as success,
// which matches the idempotency contract.
func (m *MinioStore) Remove(ctx context.Context, bucket, key string) error {
	if err := m.client.RemoveObject(ctx, bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("%w: remove %s/%s: %v", ErrDelete, bucket, key, err)
	}
	return nil
}
