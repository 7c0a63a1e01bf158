package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/basel-ax/leonardo-publisher/internal/domain"
)

// Config holds the S3-compatible endpoint and target bucket
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Prefix    string
	UseSSL    bool
}

// objectPutter is the subset of *minio.Client the store uses
type objectPutter interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// Store publishes uploads as objects in a MinIO bucket
type Store struct {
	client   objectPutter
	endpoint string
	bucket   string
	prefix   string
	scheme   string
}

// New connects a Store to the configured endpoint
func New(cfg Config) (*Store, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("missing endpoint")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("missing bucket")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to init Minio client: %w", err)
	}

	return newStore(client, cfg), nil
}

func newStore(client objectPutter, cfg Config) *Store {
	scheme := "http"
	if cfg.UseSSL {
		scheme = "https"
	}
	return &Store{
		client:   client,
		endpoint: cfg.Endpoint,
		bucket:   cfg.Bucket,
		prefix:   strings.Trim(cfg.Prefix, "/"),
		scheme:   scheme,
	}
}

// Publish writes the upload to {prefix}/{filename} and returns its URL.
// Existing objects with the same key are overwritten.
func (s *Store) Publish(ctx context.Context, upload domain.Upload) (string, error) {
	key := path.Join(s.prefix, upload.Filename)

	contentType := upload.ContentType
	if contentType == "" {
		contentType = "image/jpeg"
	}

	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(upload.Content), int64(len(upload.Content)), minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("failed to upload image to Minio: %w", err)
	}

	return fmt.Sprintf("%s://%s/%s/%s", s.scheme, s.endpoint, s.bucket, key), nil
}
