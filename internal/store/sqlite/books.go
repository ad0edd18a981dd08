package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bookclubapp/bookclub-server/internal/domain"
	"github.com/bookclubapp/bookclub-server/internal/store"
)

// bookColumns is the ordered list of columns selected in book queries.
// Must match the scan order in scanBook.
const bookColumns = `id, user_id, year, volume, title, author, isbn, month,
	meeting_starts_at, meeting_location, thumbnail_url, featured_image_url,
	resources_json, is_featured, is_completed, completed_at, rating, rated_at, created_at`

// scanBook scans a sql.Row (or sql.Rows via its Scan method) into a domain.BookRecord.
func scanBook(scanner interface{ Scan(dest ...any) error }) (*domain.BookRecord, error) {
	var b domain.BookRecord

	var (
		isbn          sql.NullString
		meetingStarts sql.NullString
		meetingLoc    sql.NullString
		thumbnail     sql.NullString
		featuredImage sql.NullString
		resourcesJSON string
		isFeatured    int
		isCompleted   int
		completedAt   sql.NullString
		rating        sql.NullInt64
		ratedAt       sql.NullString
		createdAt     string
	)

	err := scanner.Scan(
		&b.ID,
		&b.UserID,
		&b.Year,
		&b.Volume,
		&b.Title,
		&b.Author,
		&isbn,
		&b.Month,
		&meetingStarts,
		&meetingLoc,
		&thumbnail,
		&featuredImage,
		&resourcesJSON,
		&isFeatured,
		&isCompleted,
		&completedAt,
		&rating,
		&ratedAt,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}

	if isbn.Valid {
		b.ISBN = &isbn.String
	}
	if b.MeetingStartsAt, err = parseNullableTime(meetingStarts); err != nil {
		return nil, err
	}
	if meetingLoc.Valid {
		b.MeetingLocation = &meetingLoc.String
	}
	if thumbnail.Valid {
		b.ThumbnailURL = &thumbnail.String
	}
	if featuredImage.Valid {
		b.FeaturedImageURL = &featuredImage.String
	}
	b.Resources = parseResourcesJSON(resourcesJSON)
	b.IsFeatured = isFeatured != 0
	b.IsCompleted = isCompleted != 0
	if b.CompletedAt, err = parseNullableTime(completedAt); err != nil {
		return nil, err
	}
	if rating.Valid {
		v := int(rating.Int64)
		b.Rating = &v
	}
	if b.RatedAt, err = parseNullableTime(ratedAt); err != nil {
		return nil, err
	}
	if b.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}

	return &b, nil
}

// parseResourcesJSON decodes a resources_json column value, tolerating
// malformed stored values.
func parseResourcesJSON(raw string) []domain.ResourceLink {
	if raw == "" {
		return []domain.ResourceLink{}
	}
	var links []domain.ResourceLink
	if err := json.Unmarshal([]byte(raw), &links); err != nil {
		return []domain.ResourceLink{}
	}
	return domain.NormalizeResourceLinks(links)
}

// encodeResourcesJSON encodes resource links for the resources_json column.
func encodeResourcesJSON(links []domain.ResourceLink) string {
	normalized := domain.NormalizeResourceLinks(links)
	data, err := json.Marshal(normalized)
	if err != nil {
		return "[]"
	}
	return string(data)
}

// InsertBook inserts a member's copy of a catalog book.
func (s *Store) InsertBook(ctx context.Context, b *domain.BookRecord) error {
	return insertBook(ctx, s.db, b)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertBook(ctx context.Context, db execer, b *domain.BookRecord) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO books (
			id, user_id, year, volume, title, author, isbn, month,
			meeting_starts_at, meeting_location, thumbnail_url, featured_image_url,
			resources_json, is_featured, is_completed, completed_at, rating, rated_at, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID,
		b.UserID,
		b.Year,
		b.Volume,
		b.Title,
		b.Author,
		nullableString(b.ISBN),
		b.Month,
		nullTimeString(b.MeetingStartsAt),
		nullableString(b.MeetingLocation),
		nullableString(b.ThumbnailURL),
		nullableString(b.FeaturedImageURL),
		encodeResourcesJSON(b.Resources),
		boolToInt(b.IsFeatured),
		boolToInt(b.IsCompleted),
		nullTimeString(b.CompletedAt),
		nullInt(b.Rating),
		nullTimeString(b.RatedAt),
		formatTime(b.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert book: %w", err)
	}
	return nil
}

// GetBookForUser fetches a book by ID, scoped to its owner.
func (s *Store) GetBookForUser(ctx context.Context, bookID, userID string) (*domain.BookRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+bookColumns+` FROM books WHERE id = ? AND user_id = ?`, bookID, userID)
	b, err := scanBook(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound.WithMessage("book not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get book: %w", err)
	}
	return b, nil
}

// SetCompletion marks a member's copy of a book completed or not.
// Ratings only exist on completed copies, so un-completing resets the
// rating too.
func (s *Store) SetCompletion(ctx context.Context, bookID, userID string, completed bool, at time.Time) error {
	var result sql.Result
	var err error
	if completed {
		result, err = s.db.ExecContext(ctx,
			`UPDATE books SET is_completed = 1, completed_at = ? WHERE id = ? AND user_id = ?`,
			formatTime(at), bookID, userID)
	} else {
		result, err = s.db.ExecContext(ctx,
			`UPDATE books SET is_completed = 0, completed_at = NULL, rating = NULL, rated_at = NULL
			 WHERE id = ? AND user_id = ?`,
			bookID, userID)
	}
	if err != nil {
		return fmt.Errorf("set completion: %w", err)
	}
	return requireRowAffected(result, "book not found")
}

// SetRating records a member's rating for their copy of a book. Only
// completed copies can carry a rating.
func (s *Store) SetRating(ctx context.Context, bookID, userID string, rating int, at time.Time) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE books SET rating = ?, rated_at = ? WHERE id = ? AND user_id = ? AND is_completed = 1`,
		rating, formatTime(at), bookID, userID)
	if err != nil {
		return fmt.Errorf("set rating: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("set rating: %w", err)
	}
	if rows == 0 {
		var count int
		if err := s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM books WHERE id = ? AND user_id = ?`, bookID, userID).Scan(&count); err != nil {
			return fmt.Errorf("set rating: %w", err)
		}
		if count == 0 {
			return store.ErrNotFound.WithMessage("book not found")
		}
		return store.ErrInvalidInput.WithMessage("Complete the book before leaving a rating.")
	}
	return nil
}

// ClearRating removes a member's rating from their copy of a book.
func (s *Store) ClearRating(ctx context.Context, bookID, userID string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE books SET rating = NULL, rated_at = NULL WHERE id = ? AND user_id = ?`,
		bookID, userID)
	if err != nil {
		return fmt.Errorf("clear rating: %w", err)
	}
	return requireRowAffected(result, "book not found")
}

// ListBookViews lists one member's catalog copies with club-wide
// aggregates. Rating aggregates span every member's copy of the same
// identity; participant and completion counts only count approved members.
// Ordered newest volume first, then by year, month and insertion order.
func (s *Store) ListBookViews(ctx context.Context, userID string) ([]domain.BookView, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT
			id, volume, year, title, author, isbn, month,
			meeting_starts_at, meeting_location, thumbnail_url, featured_image_url,
			resources_json, is_featured, is_completed, completed_at, rating, rated_at,
			(
				SELECT ROUND(AVG(b2.rating), 2)
				FROM books b2
				WHERE b2.volume = books.volume
					AND lower(b2.title) = lower(books.title)
					AND lower(b2.author) = lower(books.author)
					AND b2.rating IS NOT NULL
			) AS average_rating,
			(
				SELECT COUNT(*)
				FROM books b2
				WHERE b2.volume = books.volume
					AND lower(b2.title) = lower(books.title)
					AND lower(b2.author) = lower(books.author)
					AND b2.rating IS NOT NULL
			) AS ratings_count,
			(
				SELECT COUNT(*)
				FROM books b2
				INNER JOIN users u2 ON u2.id = b2.user_id
				WHERE b2.volume = books.volume
					AND lower(b2.title) = lower(books.title)
					AND lower(b2.author) = lower(books.author)
					AND u2.is_approved = 1
			) AS participants_count,
			(
				SELECT COUNT(*)
				FROM books b2
				INNER JOIN users u2 ON u2.id = b2.user_id
				WHERE b2.volume = books.volume
					AND lower(b2.title) = lower(books.title)
					AND lower(b2.author) = lower(books.author)
					AND b2.is_completed = 1
					AND u2.is_approved = 1
			) AS completed_count,
			CASE lower(month)
				WHEN 'january' THEN 1
				WHEN 'february' THEN 2
				WHEN 'march' THEN 3
				WHEN 'april' THEN 4
				WHEN 'may' THEN 5
				WHEN 'june' THEN 6
				WHEN 'july' THEN 7
				WHEN 'august' THEN 8
				WHEN 'september' THEN 9
				WHEN 'october' THEN 10
				WHEN 'november' THEN 11
				WHEN 'december' THEN 12
				ELSE 0
			END AS month_order
		FROM books
		WHERE user_id = ?
		ORDER BY volume DESC, year ASC, month_order ASC, created_at ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list book views: %w", err)
	}
	defer rows.Close()

	var views []domain.BookView
	for rows.Next() {
		var (
			v             domain.BookView
			isbn          sql.NullString
			meetingStarts sql.NullString
			meetingLoc    sql.NullString
			thumbnail     sql.NullString
			featuredImage sql.NullString
			resourcesJSON string
			isFeatured    int
			isCompleted   int
			completedAt   sql.NullString
			rating        sql.NullInt64
			ratedAt       sql.NullString
			averageRating sql.NullFloat64
			monthOrder    int
		)
		err := rows.Scan(
			&v.ID, &v.Volume, &v.Year, &v.Title, &v.Author, &isbn, &v.Month,
			&meetingStarts, &meetingLoc, &thumbnail, &featuredImage,
			&resourcesJSON, &isFeatured, &isCompleted, &completedAt, &rating, &ratedAt,
			&averageRating, &v.RatingsCount, &v.ParticipantsCount, &v.CompletedCount,
			&monthOrder,
		)
		if err != nil {
			return nil, fmt.Errorf("scan book view: %w", err)
		}

		if isbn.Valid && isbn.String != "" {
			v.ISBN = &isbn.String
		}
		if meetingStarts.Valid && meetingStarts.String != "" {
			v.MeetingStartsAt = &meetingStarts.String
		}
		if meetingLoc.Valid {
			v.MeetingLocation = meetingLoc.String
		}
		if thumbnail.Valid && thumbnail.String != "" {
			v.ThumbnailURL = &thumbnail.String
		}
		if featuredImage.Valid && featuredImage.String != "" {
			v.FeaturedImageURL = &featuredImage.String
		}
		v.Resources = parseResourcesJSON(resourcesJSON)
		v.IsFeatured = isFeatured != 0
		v.IsCompleted = isCompleted != 0
		if completedAt.Valid && completedAt.String != "" {
			v.CompletedAt = &completedAt.String
		}
		if rating.Valid {
			r := int(rating.Int64)
			v.UserRating = &r
		}
		if ratedAt.Valid && ratedAt.String != "" {
			v.RatedAt = &ratedAt.String
		}
		if averageRating.Valid {
			v.AverageRating = &averageRating.Float64
		}
		v.Comments = []domain.CommentView{}

		views = append(views, v)
	}
	return views, rows.Err()
}

// CountBooksByFeaturedImage counts rows still pointing at a featured
// image URL, used before deleting the underlying file.
func (s *Store) CountBooksByFeaturedImage(ctx context.Context, url string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM books WHERE featured_image_url = ?`, url).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count featured image refs: %w", err)
	}
	return count, nil
}

// ListMeetings lists scheduled discussions for a volume, one row per
// book identity, soonest first.
func (s *Store) ListMeetings(ctx context.Context, volume int) ([]domain.Meeting, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT
			MIN(id) AS id,
			volume,
			title,
			author,
			meeting_starts_at,
			meeting_location
		FROM books
		WHERE meeting_starts_at IS NOT NULL
			AND trim(meeting_starts_at) != ''
			AND volume = ?
		GROUP BY volume, lower(title), lower(author)
		ORDER BY meeting_starts_at ASC, lower(title) ASC`, volume)
	if err != nil {
		return nil, fmt.Errorf("list meetings: %w", err)
	}
	defer rows.Close()

	var meetings []domain.Meeting
	for rows.Next() {
		var (
			m        domain.Meeting
			location sql.NullString
		)
		if err := rows.Scan(&m.ID, &m.Volume, &m.Title, &m.Author, &m.StartsAt, &location); err != nil {
			return nil, fmt.Errorf("scan meeting: %w", err)
		}
		if location.Valid && location.String != "" {
			m.Location = &location.String
		}
		meetings = append(meetings, m)
	}
	return meetings, rows.Err()
}

// GetDashboardStats computes club-wide activity counts. Book counts are
// distinct identities.
func (s *Store) GetDashboardStats(ctx context.Context, currentVolume int, now time.Time) (*domain.DashboardStats, error) {
	var stats domain.DashboardStats

	queries := []struct {
		dest  *int
		query string
		args  []any
	}{
		{
			dest: &stats.BooksRead,
			query: `SELECT COUNT(*) FROM (
				SELECT volume, lower(title), lower(author)
				FROM books
				GROUP BY volume, lower(title), lower(author))`,
		},
		{
			dest: &stats.CurrentVolumeBooks,
			query: `SELECT COUNT(*) FROM (
				SELECT lower(title), lower(author)
				FROM books
				WHERE volume = ?
				GROUP BY lower(title), lower(author))`,
			args: []any{currentVolume},
		},
		{
			dest:  &stats.ActiveMembers,
			query: `SELECT COUNT(*) FROM users WHERE is_approved = 1`,
		},
		{
			dest:  &stats.Discussions,
			query: `SELECT COUNT(*) FROM comments`,
		},
		{
			dest: &stats.UpcomingEvents,
			query: `SELECT COUNT(*) FROM (
				SELECT volume, lower(title), lower(author)
				FROM books
				WHERE meeting_starts_at IS NOT NULL
					AND trim(meeting_starts_at) != ''
					AND meeting_starts_at >= ?
				GROUP BY volume, lower(title), lower(author))`,
			args: []any{formatTime(now)},
		},
	}

	for _, q := range queries {
		if err := s.db.QueryRowContext(ctx, q.query, q.args...).Scan(q.dest); err != nil {
			return nil, fmt.Errorf("dashboard stats: %w", err)
		}
	}
	return &stats, nil
}
