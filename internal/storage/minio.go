package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// partSize bounds the memory MinIO buffers per part when the stream length
// is unknown.
const partSize = 16 << 20

// MinioConfig holds connection settings for an S3-compatible backend.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// MinioStorage implements Storage using a MinIO (or any S3-compatible) bucket.
// Objects stay private to the bucket; reads go through Open and the
// application's static routes.
type MinioStorage struct {
	client *minio.Client
	bucket string
}

// NewMinioStorage creates a MinIO client, ensures the bucket exists, and
// returns a ready-to-use MinioStorage.
func NewMinioStorage(ctx context.Context, cfg MinioConfig, log *slog.Logger) (*MinioStorage, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket existence: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %q: %w", cfg.Bucket, err)
		}
		log.Info("created bucket", "bucket", cfg.Bucket)
	}

	return &MinioStorage{client: client, bucket: cfg.Bucket}, nil
}

// Put streams r to the bucket under key. MinIO only exposes the object once
// the upload (single or multipart) completes.
func (s *MinioStorage) Put(ctx context.Context, key string, r io.Reader, contentType string) (*Object, error) {
	if !ValidKey(key) {
		return nil, ErrInvalidKey
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	info, err := s.client.PutObject(ctx, s.bucket, key, r, -1, minio.PutObjectOptions{
		ContentType: contentType,
		PartSize:    partSize,
	})
	if err != nil {
		return nil, fmt.Errorf("put object %q: %w", key, err)
	}
	return &Object{Key: key, Size: info.Size, ETag: `"` + info.ETag + `"`}, nil
}

// Open returns a seekable reader for the object at key.
func (s *MinioStorage) Open(ctx context.Context, key string) (*File, error) {
	if !ValidKey(key) {
		return nil, ErrInvalidKey
	}

	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get object %q: %w", key, err)
	}
	st, err := obj.Stat()
	if err != nil {
		_ = obj.Close()
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("stat object %q: %w", key, err)
	}

	return &File{
		ReadSeekCloser: obj,
		Size:           st.Size,
		ModTime:        st.LastModified,
		ContentType:    st.ContentType,
	}, nil
}
