package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/google/uuid"
)

// Upload validation errors, surfaced before any network call.
var (
	ErrUploadTooLarge  = errors.New("file exceeds the 5 MB upload limit")
	ErrUnsupportedMIME = errors.New("unsupported file type (allowed: image/jpeg, image/png, image/webp)")
)

// MaxUploadBytes is the temp-uploads size limit (5 MB).
const MaxUploadBytes = 5 * 1024 * 1024

var allowedUploadMIME = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

// ObjectStore is the outbound contract to the object storage backend.
type ObjectStore interface {
	// EnsureBucket idempotently creates the temp-uploads bucket.
	EnsureBucket(ctx context.Context) error
	// Upload stores an object and returns its public URL.
	Upload(ctx context.Context, key, contentType string, body io.Reader) (string, error)
}

// StorageService validates and stores temporary uploads. The size
// limit and MIME allowlist are enforced here on every upload; the
// bucket itself has no native policy.
type StorageService struct {
	store ObjectStore
}

// NewStorageService creates a new StorageService.
func NewStorageService(store ObjectStore) *StorageService {
	return &StorageService{
		store: store,
	}
}

// ValidateUpload rejects oversized or non-image files.
func (s *StorageService) ValidateUpload(contentType string, size int64) error {
	if size > MaxUploadBytes {
		return ErrUploadTooLarge
	}
	if !allowedUploadMIME[contentType] {
		return ErrUnsupportedMIME
	}
	return nil
}

// Provision idempotently ensures the temp-uploads bucket exists.
func (s *StorageService) Provision(ctx context.Context) error {
	if err := s.store.EnsureBucket(ctx); err != nil {
		return fmt.Errorf("failed to provision upload bucket: %w", err)
	}
	return nil
}

// UploadTemp stores a user's upload under a unique per-user key and
// returns the public URL.
func (s *StorageService) UploadTemp(ctx context.Context, userID, filename, contentType string, body io.Reader) (string, error) {
	key := fmt.Sprintf("uploads/%s/%d_%s%s", userID, time.Now().UnixNano(), uuid.New().String(), path.Ext(filename))
	url, err := s.store.Upload(ctx, key, contentType, body)
	if err != nil {
		return "", fmt.Errorf("failed to upload object %s: %w", key, err)
	}
	return url, nil
}
