package service

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/garyjia/expense-capture/internal/application/port"
	"github.com/garyjia/expense-capture/internal/domain/entity"
)

// RetrievalService re-serves stored originals. Only registered files owned
// by the caller are readable; anything else is reported as not found.
type RetrievalService struct {
	base
	files   port.StoredFileRepository
	storage port.FileStorage
}

// NewRetrievalService creates a new RetrievalService
func NewRetrievalService(
	files port.StoredFileRepository,
	storage port.FileStorage,
	auth entity.Authorizer,
	logger Logger,
) *RetrievalService {
	return &RetrievalService{
		base:    newBase(auth, nil, logger),
		files:   files,
		storage: storage,
	}
}

// Retrieve returns the bytes of a stored file with presentation metadata
func (s *RetrievalService) Retrieve(ctx context.Context, req port.RetrieveRequest) (*entity.RetrievedFile, error) {
	if err := s.authorize(req.UserID); err != nil {
		return nil, err
	}
	p := strings.TrimSpace(req.Path)
	if p == "" {
		return nil, fmt.Errorf("%w: Path is required", port.ErrInvalidRequest)
	}

	stored, err := s.files.GetByPath(ctx, path.Clean(p))
	if err != nil {
		s.logError("Failed to look up stored file", err, "path", p)
		return nil, fmt.Errorf("failed to look up file: %w", err)
	}
	if stored == nil || stored.UserID != req.UserID {
		s.logInfo("Rejected retrieval of unknown file", "path", p, "user_id", req.UserID)
		return nil, fmt.Errorf("%w: %s", port.ErrFileNotFound, p)
	}

	data, err := s.storage.Read(ctx, stored.Path)
	if err != nil {
		if errors.Is(err, port.ErrFileNotFound) {
			return nil, err
		}
		s.logError("Failed to read stored file", err, "path", stored.Path)
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	name := path.Base(stored.Path)
	return &entity.RetrievedFile{
		Data:        data,
		ContentType: entity.ContentTypeFor(name),
		Disposition: entity.DispositionFor(req.Preview),
		FileName:    name,
	}, nil
}

// Verify interface compliance
var _ port.FileRetriever = (*RetrievalService)(nil)
