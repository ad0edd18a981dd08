package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/bookclubapp/bookclub-server/internal/domain"
	"github.com/bookclubapp/bookclub-server/internal/store"
)

// userColumns is the ordered list of columns selected in user queries.
// Must match the scan order in scanUser.
const userColumns = `id, name, email, password_hash, role, is_approved, profile_image_url, created_at`

// scanUser scans a sql.Row (or sql.Rows via its Scan method) into a domain.User.
func scanUser(scanner interface{ Scan(dest ...any) error }) (*domain.User, error) {
	var u domain.User

	var (
		role         string
		isApproved   int
		profileImage sql.NullString
		createdAt    string
	)

	err := scanner.Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&u.PasswordHash,
		&role,
		&isApproved,
		&profileImage,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}

	u.Role = domain.Role(role)
	u.IsApproved = isApproved != 0
	if profileImage.Valid {
		u.ProfileImageURL = &profileImage.String
	}
	u.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, err
	}

	return &u, nil
}

// CreateUser inserts a new user. Returns store.ErrAlreadyExists when the
// email is already registered.
func (s *Store) CreateUser(ctx context.Context, u *domain.User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, name, email, password_hash, role, is_approved, profile_image_url, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID,
		u.Name,
		strings.ToLower(strings.TrimSpace(u.Email)),
		u.PasswordHash,
		string(u.Role),
		boolToInt(u.IsApproved),
		nullableString(u.ProfileImageURL),
		formatTime(u.CreatedAt),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return store.ErrAlreadyExists.WithMessage("email already registered")
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetUserByID fetches a user by ID.
func (s *Store) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound.WithMessage("user not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// GetUserByEmail fetches a user by email, case-insensitively.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE lower(email) = lower(?)`,
		strings.TrimSpace(email))
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound.WithMessage("user not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

// CountUsers returns the total number of registered users.
func (s *Store) CountUsers(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return count, nil
}

// ListPendingUsers lists users awaiting admin approval, oldest first.
func (s *Store) ListPendingUsers(ctx context.Context) ([]*domain.User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE is_approved = 0 ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("list pending users: %w", err)
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pending user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// ApproveUser marks a user as approved.
func (s *Store) ApproveUser(ctx context.Context, id string) error {
	return s.updateUser(ctx, id, `UPDATE users SET is_approved = 1 WHERE id = ?`)
}

// SetUserRole changes a user's role. Admins are always approved.
func (s *Store) SetUserRole(ctx context.Context, id string, role domain.Role) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE users SET role = ?, is_approved = CASE WHEN ? = 'admin' THEN 1 ELSE is_approved END WHERE id = ?`,
		string(role), string(role), id)
	if err != nil {
		return fmt.Errorf("set user role: %w", err)
	}
	return requireRowAffected(result, "user not found")
}

// DeleteUser removes a user; their books, comments and likes cascade.
func (s *Store) DeleteUser(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return requireRowAffected(result, "user not found")
}

// UpdateUserName renames a user.
func (s *Store) UpdateUserName(ctx context.Context, id, name string) error {
	result, err := s.db.ExecContext(ctx, `UPDATE users SET name = ? WHERE id = ?`, name, id)
	if err != nil {
		return fmt.Errorf("update user name: %w", err)
	}
	return requireRowAffected(result, "user not found")
}

// SetUserProfileImage replaces a user's profile image URL. nil clears it.
func (s *Store) SetUserProfileImage(ctx context.Context, id string, url *string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE users SET profile_image_url = ? WHERE id = ?`, nullableString(url), id)
	if err != nil {
		return fmt.Errorf("set profile image: %w", err)
	}
	return requireRowAffected(result, "user not found")
}

func (s *Store) updateUser(ctx context.Context, id, query string) error {
	result, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return requireRowAffected(result, "user not found")
}

func requireRowAffected(result sql.Result, message string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return store.ErrNotFound.WithMessage(message)
	}
	return nil
}

// ListMemberSummaries lists approved members with their comment counts,
// sorted by name.
func (s *Store) ListMemberSummaries(ctx context.Context) ([]domain.MemberSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT
			u.id, u.name, u.role, u.profile_image_url, u.created_at,
			COUNT(c.id) AS comments_count
		FROM users u
		LEFT JOIN comments c ON c.user_id = u.id
		WHERE u.is_approved = 1
		GROUP BY u.id, u.name, u.role, u.created_at
		ORDER BY lower(u.name) ASC`)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	var members []domain.MemberSummary
	for rows.Next() {
		var (
			m            domain.MemberSummary
			role         string
			profileImage sql.NullString
			createdAt    string
		)
		if err := rows.Scan(&m.ID, &m.Name, &role, &profileImage, &createdAt, &m.CommentsCount); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		m.Role = domain.Role(role)
		if profileImage.Valid {
			m.ProfileImageURL = &profileImage.String
		}
		if m.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// GetMemberDetail fetches one approved member with comment and reading
// counts. Books read counts distinct completed identities, not rows.
func (s *Store) GetMemberDetail(ctx context.Context, memberID string) (*domain.MemberDetail, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT
			u.id, u.name, u.role, u.profile_image_url, u.created_at,
			(SELECT COUNT(*) FROM comments c WHERE c.user_id = u.id) AS comments_count,
			(
				SELECT COUNT(*)
				FROM (
					SELECT volume, lower(title), lower(author)
					FROM books b
					WHERE b.user_id = u.id AND b.is_completed = 1
					GROUP BY volume, lower(title), lower(author)
				)
			) AS books_read
		FROM users u
		WHERE u.id = ? AND u.is_approved = 1`, memberID)

	var (
		m            domain.MemberDetail
		role         string
		profileImage sql.NullString
		createdAt    string
	)
	err := row.Scan(&m.ID, &m.Name, &role, &profileImage, &createdAt, &m.CommentsCount, &m.BooksRead)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound.WithMessage("member not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get member: %w", err)
	}
	m.Role = domain.Role(role)
	if profileImage.Valid {
		m.ProfileImageURL = &profileImage.String
	}
	if m.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &m, nil
}

// ListRecentCommentsByMember lists a member's latest comments, newest
// first, resolving each commented book to the viewer's own copy of the
// same identity when the viewer has one.
func (s *Store) ListRecentCommentsByMember(ctx context.Context, memberID, viewerID string, limit int) ([]domain.MemberComment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT
			c.id, c.text, c.created_at,
			b.id, b.title, b.author, b.volume,
			(
				SELECT b2.id
				FROM books b2
				WHERE b2.user_id = ?
					AND b2.volume = b.volume
					AND lower(b2.title) = lower(b.title)
					AND lower(b2.author) = lower(b.author)
				LIMIT 1
			) AS viewer_book_id
		FROM comments c
		INNER JOIN books b ON b.id = c.book_id
		WHERE c.user_id = ?
		ORDER BY c.created_at DESC
		LIMIT ?`, viewerID, memberID, limit)
	if err != nil {
		return nil, fmt.Errorf("list member comments: %w", err)
	}
	defer rows.Close()

	var comments []domain.MemberComment
	for rows.Next() {
		var (
			c            domain.MemberComment
			viewerBookID sql.NullString
		)
		if err := rows.Scan(&c.ID, &c.Text, &c.CreatedAt, &c.BookID, &c.BookTitle, &c.BookAuthor, &c.Volume, &viewerBookID); err != nil {
			return nil, fmt.Errorf("scan member comment: %w", err)
		}
		if viewerBookID.Valid {
			c.ViewerBookID = &viewerBookID.String
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}
