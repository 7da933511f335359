package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/expense-capture/internal/application/port"
	"github.com/garyjia/expense-capture/internal/domain/entity"
	"github.com/garyjia/expense-capture/internal/infrastructure/persistence/sqlite"
)

// StoredFileRepository implements port.StoredFileRepository on SQLite
type StoredFileRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewStoredFileRepository creates a new stored file repository
func NewStoredFileRepository(db *sqlite.DB, logger *zap.Logger) *StoredFileRepository {
	return &StoredFileRepository{
		db:     db,
		logger: logger,
	}
}

// Create registers an uploaded file
func (r *StoredFileRepository) Create(ctx context.Context, f *entity.StoredFile) error {
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.Executor(ctx).ExecContext(ctx, `
		INSERT INTO stored_files (path, user_id, original_name, content_type, size, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		f.Path, f.UserID, f.OriginalName, f.ContentType, f.Size, f.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to register stored file", zap.String("path", f.Path), zap.Error(err))
		return fmt.Errorf("failed to register stored file: %w", err)
	}
	return nil
}

// GetByPath retrieves a registered file, or nil if the path is unknown
func (r *StoredFileRepository) GetByPath(ctx context.Context, path string) (*entity.StoredFile, error) {
	row := r.db.Executor(ctx).QueryRowContext(ctx, `
		SELECT path, user_id, original_name, content_type, size, bill_id, created_at, claimed_at
		FROM stored_files
		WHERE path = ?`, path)

	f, err := scanStoredFile(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get stored file", zap.String("path", path), zap.Error(err))
		return nil, fmt.Errorf("failed to get stored file: %w", err)
	}
	return f, nil
}

// Claim marks a file as referenced by a committed bill
func (r *StoredFileRepository) Claim(ctx context.Context, path, billID string, at time.Time) error {
	result, err := r.db.Executor(ctx).ExecContext(ctx,
		`UPDATE stored_files SET bill_id = ?, claimed_at = ? WHERE path = ?`,
		billID, at.UTC(), path,
	)
	if err != nil {
		r.logger.Error("Failed to claim stored file",
			zap.String("path", path),
			zap.String("bill_id", billID),
			zap.Error(err))
		return fmt.Errorf("failed to claim stored file: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", port.ErrFileNotFound, path)
	}
	return nil
}

// ListUnclaimedBefore returns files never claimed and registered before cutoff
func (r *StoredFileRepository) ListUnclaimedBefore(ctx context.Context, cutoff time.Time, limit int) ([]*entity.StoredFile, error) {
	rows, err := r.db.Executor(ctx).QueryContext(ctx, `
		SELECT path, user_id, original_name, content_type, size, bill_id, created_at, claimed_at
		FROM stored_files
		WHERE claimed_at IS NULL AND created_at < ?
		ORDER BY created_at ASC
		LIMIT ?`, cutoff.UTC(), limit)
	if err != nil {
		r.logger.Error("Failed to list unclaimed files", zap.Error(err))
		return nil, fmt.Errorf("failed to list unclaimed files: %w", err)
	}
	defer rows.Close()

	var files []*entity.StoredFile
	for rows.Next() {
		f, err := scanStoredFile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan stored file: %w", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// Delete removes a file from the registry
func (r *StoredFileRepository) Delete(ctx context.Context, path string) error {
	if _, err := r.db.Executor(ctx).ExecContext(ctx, `DELETE FROM stored_files WHERE path = ?`, path); err != nil {
		r.logger.Error("Failed to delete stored file", zap.String("path", path), zap.Error(err))
		return fmt.Errorf("failed to delete stored file: %w", err)
	}
	return nil
}

func scanStoredFile(s scanner) (*entity.StoredFile, error) {
	var f entity.StoredFile
	var billID sql.NullString
	var claimedAt sql.NullTime

	if err := s.Scan(&f.Path, &f.UserID, &f.OriginalName, &f.ContentType, &f.Size,
		&billID, &f.CreatedAt, &claimedAt); err != nil {
		return nil, err
	}
	f.BillID = billID.String
	if claimedAt.Valid {
		t := claimedAt.Time
		f.ClaimedAt = &t
	}
	return &f, nil
}

// Verify interface compliance
var _ port.StoredFileRepository = (*StoredFileRepository)(nil)
