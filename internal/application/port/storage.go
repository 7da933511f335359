package port

import (
	"context"
	"errors"
)

// ErrFileNotFound is returned when a stored file does not exist. It is kept
// distinct from every other I/O failure.
var ErrFileNotFound = errors.New("file not found")

// FileStorage defines file storage operations on storage-relative paths
type FileStorage interface {
	Save(ctx context.Context, path string, content []byte) error
	Read(ctx context.Context, path string) ([]byte, error)
	Exists(ctx context.Context, path string) bool
	Delete(ctx context.Context, path string) error
}
