package sqlite

import (
	"context"
	"fmt"

	"github.com/bookclubapp/bookclub-server/internal/domain"
)

// RecordUpload writes the audit row for an applied reading list.
func (s *Store) RecordUpload(ctx context.Context, u *domain.ReadingListUpload) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reading_list_uploads (id, admin_user_id, filename, mode, rows_imported, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		u.ID,
		u.AdminUserID,
		u.Filename,
		u.Mode,
		u.RowsImported,
		formatTime(u.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("record upload: %w", err)
	}
	return nil
}

// ListUploads lists reading-list upload audit rows, newest first.
func (s *Store) ListUploads(ctx context.Context, limit int) ([]domain.ReadingListUpload, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, admin_user_id, filename, mode, rows_imported, created_at
		FROM reading_list_uploads
		ORDER BY created_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list uploads: %w", err)
	}
	defer rows.Close()

	var uploads []domain.ReadingListUpload
	for rows.Next() {
		var (
			u         domain.ReadingListUpload
			createdAt string
		)
		if err := rows.Scan(&u.ID, &u.AdminUserID, &u.Filename, &u.Mode, &u.RowsImported, &createdAt); err != nil {
			return nil, fmt.Errorf("scan upload: %w", err)
		}
		if u.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		uploads = append(uploads, u)
	}
	return uploads, rows.Err()
}

// ClearUploads deletes all upload audit rows, returning how many were
// removed.
func (s *Store) ClearUploads(ctx context.Context) (int, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM reading_list_uploads`)
	if err != nil {
		return 0, fmt.Errorf("clear uploads: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}
