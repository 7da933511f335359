package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/garyjia/expense-capture/internal/application/port"
)

const gcsOpTimeout = 2 * time.Minute

// GCSFileStorage implements port.FileStorage on a Cloud Storage bucket.
// Relative paths become object names under an optional prefix.
type GCSFileStorage struct {
	client *storage.Client
	bucket string
	prefix string
	logger *zap.Logger
}

// NewGCSFileStorage creates a bucket-backed storage using Application
// Default Credentials
func NewGCSFileStorage(ctx context.Context, bucket, prefix string, logger *zap.Logger) (*GCSFileStorage, error) {
	if bucket == "" {
		return nil, fmt.Errorf("gcs bucket is required")
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}

	return &GCSFileStorage{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		logger: logger,
	}, nil
}

// Save uploads content as the object for path
func (s *GCSFileStorage) Save(ctx context.Context, p string, content []byte) error {
	name, err := s.objectName(p)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, gcsOpTimeout)
	defer cancel()

	w := s.client.Bucket(s.bucket).Object(name).NewWriter(ctx)
	if _, err := w.Write(content); err != nil {
		_ = w.Close()
		return fmt.Errorf("write GCS object %s: %w", name, err)
	}
	if err := w.Close(); err != nil {
		s.logger.Error("Failed to finalize upload",
			zap.String("bucket", s.bucket),
			zap.String("object", name),
			zap.Error(err))
		return fmt.Errorf("finalize upload: %w", err)
	}
	return nil
}

// Read downloads the object for path
func (s *GCSFileStorage) Read(ctx context.Context, p string) ([]byte, error) {
	name, err := s.objectName(p)
	if err != nil {
		return nil, err
	}

	r, err := s.client.Bucket(s.bucket).Object(name).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, fmt.Errorf("%w: %s", port.ErrFileNotFound, p)
	}
	if err != nil {
		return nil, fmt.Errorf("open GCS object reader: %w", err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read GCS object: %w", err)
	}
	return data, nil
}

// Exists reports whether the object for path exists
func (s *GCSFileStorage) Exists(ctx context.Context, p string) bool {
	name, err := s.objectName(p)
	if err != nil {
		return false
	}
	_, err = s.client.Bucket(s.bucket).Object(name).Attrs(ctx)
	return err == nil
}

// Delete removes the object for path. Deleting a missing object succeeds.
func (s *GCSFileStorage) Delete(ctx context.Context, p string) error {
	name, err := s.objectName(p)
	if err != nil {
		return err
	}
	err = s.client.Bucket(s.bucket).Object(name).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("delete GCS object %s: %w", name, err)
	}
	return nil
}

// Close releases the storage client
func (s *GCSFileStorage) Close() error {
	return s.client.Close()
}

func (s *GCSFileStorage) objectName(p string) (string, error) {
	cleaned := path.Clean("/" + strings.TrimSpace(p))
	if cleaned == "/" || cleaned != "/"+strings.TrimSpace(p) {
		return "", fmt.Errorf("%w: %q", ErrPathEscapes, p)
	}
	return objectKey(s.prefix, strings.TrimPrefix(cleaned, "/")), nil
}

func objectKey(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}

// Verify interface compliance
var _ port.FileStorage = (*GCSFileStorage)(nil)
