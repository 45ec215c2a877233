package storage

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Options configures an S3-compatible bucket (MinIO, AWS, R2, ...).
type S3Options struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	Bucket        string
	PublicBaseURL string
}

// S3ObjectStore stores objects in an S3-compatible bucket that is publicly
// readable under PublicBaseURL. Retrieval URIs are PublicBaseURL/key and never expire.
type S3ObjectStore struct {
	client *minio.Client
	opts   S3Options
}

func NewS3ObjectStore(ctx context.Context, opts S3Options) (*S3ObjectStore, error) {
	endpoint := opts.Endpoint
	secure := strings.HasPrefix(endpoint, "https://")
	if u, err := url.Parse(endpoint); err == nil && u.Scheme != "" {
		endpoint = u.Host
		secure = u.Scheme == "https"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: secure,
	})
	if err != nil {
		return nil, fmt.Errorf("s3 client: %w", err)
	}

	exists, err := client.BucketExists(ctx, opts.Bucket)
	if err != nil {
		return nil, fmt.Errorf("s3 bucket check: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("s3 bucket %q does not exist", opts.Bucket)
	}

	opts.PublicBaseURL = strings.TrimRight(opts.PublicBaseURL, "/")
	if opts.PublicBaseURL == "" {
		return nil, fmt.Errorf("s3 public base URL is required")
	}
	return &S3ObjectStore{client: client, opts: opts}, nil
}

func (s *S3ObjectStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, s.opts.Bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

func (s *S3ObjectStore) RetrievalURI(ctx context.Context, key string) (string, error) {
	if _, err := s.client.StatObject(ctx, s.opts.Bucket, key, minio.StatObjectOptions{}); err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" || resp.StatusCode == 404 {
			return "", fmt.Errorf("object %s: %w", key, ErrNotFound)
		}
		return "", fmt.Errorf("stat %s: %w", key, err)
	}
	return s.opts.PublicBaseURL + "/" + key, nil
}
