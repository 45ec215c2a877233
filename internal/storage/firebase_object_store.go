package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
)

const downloadTokensKey = "firebaseStorageDownloadTokens"

// FirebaseObjectStore writes objects to a Firebase Storage bucket and returns
// token-based download URLs, the same form the Firebase client SDKs produce.
type FirebaseObjectStore struct {
	bucket *storage.BucketHandle
	name   string
}

func NewFirebaseObjectStore(bucket *storage.BucketHandle, name string) *FirebaseObjectStore {
	return &FirebaseObjectStore{bucket: bucket, name: name}
}

// Put overwrites the object at key and attaches a fresh download token.
func (s *FirebaseObjectStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	w := s.bucket.Object(key).NewWriter(ctx)
	w.ContentType = contentType
	w.Metadata = map[string]string{downloadTokensKey: uuid.NewString()}

	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("write %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize %s: %w", key, err)
	}
	return nil
}

// RetrievalURI returns the download URL for key, minting a token if the object has none.
func (s *FirebaseObjectStore) RetrievalURI(ctx context.Context, key string) (string, error) {
	obj := s.bucket.Object(key)
	attrs, err := obj.Attrs(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return "", fmt.Errorf("object %s: %w", key, ErrNotFound)
		}
		return "", fmt.Errorf("object attrs: %w", err)
	}

	token := firstToken(attrs.Metadata[downloadTokensKey])
	if token == "" {
		token = uuid.NewString()
		md := map[string]string{}
		for k, v := range attrs.Metadata {
			md[k] = v
		}
		md[downloadTokensKey] = token
		if _, err := obj.Update(ctx, storage.ObjectAttrsToUpdate{Metadata: md}); err != nil {
			return "", fmt.Errorf("update metadata: %w", err)
		}
	}

	bucket := attrs.Bucket
	if bucket == "" {
		bucket = s.name
	}
	return firebaseDownloadURL(bucket, key, token), nil
}

func firstToken(tokens string) string {
	first, _, _ := strings.Cut(tokens, ",")
	return strings.TrimSpace(first)
}

func firebaseDownloadURL(bucket, objectName, token string) string {
	// https://firebasestorage.googleapis.com/v0/b/{bucket}/o/{path}?alt=media&token={token}
	return fmt.Sprintf(
		"https://firebasestorage.googleapis.com/v0/b/%s/o/%s?alt=media&token=%s",
		bucket,
		url.PathEscape(objectName),
		url.QueryEscape(token),
	)
}
