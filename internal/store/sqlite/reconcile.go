package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/bookclubapp/bookclub-server/internal/domain"
	"github.com/bookclubapp/bookclub-server/internal/id"
	"github.com/bookclubapp/bookclub-server/internal/readinglist"
	"github.com/bookclubapp/bookclub-server/internal/store"
)

// bookRef identifies one member's copy of a book, used as the reference
// for identity fan-outs.
type bookRef struct {
	ID     string
	Volume int
	Title  string
	Author string
}

// getBookRef loads the reference copy for a fan-out. The reference must
// be owned by the requesting admin so identity lookups start from a row
// they can actually see.
func getBookRef(ctx context.Context, tx *sql.Tx, bookID, userID string) (*bookRef, error) {
	var ref bookRef
	err := tx.QueryRowContext(ctx,
		`SELECT id, volume, title, author FROM books WHERE id = ? AND user_id = ?`,
		bookID, userID).Scan(&ref.ID, &ref.Volume, &ref.Title, &ref.Author)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound.WithMessage("book not found")
	}
	if err != nil {
		return nil, fmt.Errorf("load reference book: %w", err)
	}
	return &ref, nil
}

func countUsersTx(ctx context.Context, tx *sql.Tx) (int, error) {
	var count int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return count, nil
}

// ApplyReadingList reconciles parsed rows into every member's catalog
// copy in one transaction. Replace mode first clears each touched
// volume per member. Matching is by identity; matched rows keep the
// member's completion and rating, refresh month, featured flag, year
// and volume, and only overwrite optional fields the row provides.
func (s *Store) ApplyReadingList(ctx context.Context, rows []readinglist.Row, mode domain.UploadMode) (*domain.ApplySummary, error) {
	summary := &domain.ApplySummary{RowsReceived: len(rows)}

	volumes := make([]int, 0, 4)
	seenVolumes := make(map[int]bool)
	for _, row := range rows {
		if !seenVolumes[row.Volume] {
			seenVolumes[row.Volume] = true
			volumes = append(volumes, row.Volume)
		}
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		userRows, err := tx.QueryContext(ctx, `SELECT id FROM users`)
		if err != nil {
			return fmt.Errorf("list users: %w", err)
		}
		var userIDs []string
		for userRows.Next() {
			var userID string
			if err := userRows.Scan(&userID); err != nil {
				userRows.Close()
				return fmt.Errorf("scan user id: %w", err)
			}
			userIDs = append(userIDs, userID)
		}
		if err := userRows.Err(); err != nil {
			userRows.Close()
			return err
		}
		userRows.Close()

		for _, userID := range userIDs {
			if mode == domain.UploadModeReplace {
				for _, volume := range volumes {
					if _, err := tx.ExecContext(ctx,
						`DELETE FROM books WHERE user_id = ? AND volume = ?`, userID, volume); err != nil {
						return fmt.Errorf("clear volume %d: %w", volume, err)
					}
				}
			}

			for _, row := range rows {
				if row.IsFeatured {
					// Only one book per volume is featured at a time.
					if _, err := tx.ExecContext(ctx,
						`UPDATE books SET is_featured = 0 WHERE user_id = ? AND volume = ?`,
						userID, row.Volume); err != nil {
						return fmt.Errorf("clear featured: %w", err)
					}
				}

				var existingID string
				err := tx.QueryRowContext(ctx, `
					SELECT id FROM books
					WHERE user_id = ? AND volume = ? AND lower(title) = lower(?) AND lower(author) = lower(?)
					LIMIT 1`,
					userID, row.Volume, row.Title, row.Author).Scan(&existingID)
				switch {
				case errors.Is(err, sql.ErrNoRows):
					if err := s.insertRowForUser(ctx, tx, userID, row); err != nil {
						return err
					}
					summary.BooksInserted++
				case err != nil:
					return fmt.Errorf("find existing book: %w", err)
				default:
					if err := s.mergeRowIntoBook(ctx, tx, existingID, userID, row); err != nil {
						return err
					}
					summary.BooksUpdated++
				}
			}
		}

		summary.UsersAffected = len(userIDs)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return summary, nil
}

func (s *Store) insertRowForUser(ctx context.Context, tx *sql.Tx, userID string, row readinglist.Row) error {
	var resourcesJSON string
	if row.Resources != nil {
		resourcesJSON = encodeResourcesJSON(row.Resources)
	} else {
		resourcesJSON = "[]"
	}
	bookID, err := id.Generate(id.PrefixBook)
	if err != nil {
		return fmt.Errorf("generate book id: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO books (
			id, user_id, year, volume, title, author, isbn, month,
			meeting_starts_at, meeting_location, thumbnail_url, featured_image_url,
			resources_json, is_featured, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		bookID,
		userID,
		row.Year,
		row.Volume,
		row.Title,
		row.Author,
		nullString(row.ISBN),
		row.Month,
		nullTimeString(row.MeetingStartsAt),
		nullString(row.MeetingLocation),
		nullString(row.ThumbnailURL),
		nullString(row.FeaturedImageURL),
		resourcesJSON,
		boolToInt(row.IsFeatured),
		formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("insert catalog row: %w", err)
	}
	return nil
}

func (s *Store) mergeRowIntoBook(ctx context.Context, tx *sql.Tx, bookID, userID string, row readinglist.Row) error {
	var resourcesJSON sql.NullString
	if row.Resources != nil {
		resourcesJSON = sql.NullString{String: encodeResourcesJSON(row.Resources), Valid: true}
	}
	_, err := tx.ExecContext(ctx, `
		UPDATE books
		SET
			month = ?,
			meeting_starts_at = COALESCE(?, meeting_starts_at),
			meeting_location = COALESCE(?, meeting_location),
			thumbnail_url = COALESCE(?, thumbnail_url),
			featured_image_url = COALESCE(?, featured_image_url),
			resources_json = COALESCE(?, resources_json),
			isbn = COALESCE(?, isbn),
			is_featured = ?,
			year = ?,
			volume = ?
		WHERE id = ? AND user_id = ?`,
		row.Month,
		nullTimeString(row.MeetingStartsAt),
		nullString(row.MeetingLocation),
		nullString(row.ThumbnailURL),
		nullString(row.FeaturedImageURL),
		resourcesJSON,
		nullString(row.ISBN),
		boolToInt(row.IsFeatured),
		row.Year,
		row.Volume,
		bookID,
		userID,
	)
	if err != nil {
		return fmt.Errorf("merge catalog row: %w", err)
	}
	return nil
}

// FeatureBookForAllUsers features the identity of the reference book in
// every member's catalog, unfeaturing the rest of the volume first.
func (s *Store) FeatureBookForAllUsers(ctx context.Context, requestUserID, referenceBookID string) (*domain.FeatureResult, error) {
	var result domain.FeatureResult
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		ref, err := getBookRef(ctx, tx, referenceBookID, requestUserID)
		if err != nil {
			return err
		}
		if result.UsersAffected, err = countUsersTx(ctx, tx); err != nil {
			return err
		}

		unfeatured, err := tx.ExecContext(ctx,
			`UPDATE books SET is_featured = 0 WHERE volume = ?`, ref.Volume)
		if err != nil {
			return fmt.Errorf("unfeature volume: %w", err)
		}
		n, err := unfeatured.RowsAffected()
		if err != nil {
			return err
		}
		result.BooksUnfeatured = int(n)

		featured, err := tx.ExecContext(ctx, `
			UPDATE books SET is_featured = 1
			WHERE volume = ? AND lower(title) = lower(?) AND lower(author) = lower(?)`,
			ref.Volume, ref.Title, ref.Author)
		if err != nil {
			return fmt.Errorf("feature identity: %w", err)
		}
		if n, err = featured.RowsAffected(); err != nil {
			return err
		}
		result.BooksFeatured = int(n)

		result.Volume = ref.Volume
		result.Title = ref.Title
		result.Author = ref.Author
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// fanOutUpdate applies an UPDATE to every member's copy of the
// reference book's identity.
func (s *Store) fanOutUpdate(ctx context.Context, requestUserID, referenceBookID, setClause string, setArgs ...any) (*domain.FanOutResult, error) {
	var result domain.FanOutResult
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		ref, err := getBookRef(ctx, tx, referenceBookID, requestUserID)
		if err != nil {
			return err
		}
		if result.UsersAffected, err = countUsersTx(ctx, tx); err != nil {
			return err
		}

		args := append(setArgs, ref.Volume, ref.Title, ref.Author)
		updated, err := tx.ExecContext(ctx, `
			UPDATE books SET `+setClause+`
			WHERE volume = ? AND lower(title) = lower(?) AND lower(author) = lower(?)`,
			args...)
		if err != nil {
			return fmt.Errorf("fan out update: %w", err)
		}
		n, err := updated.RowsAffected()
		if err != nil {
			return err
		}
		result.BooksUpdated = int(n)

		result.Volume = ref.Volume
		result.Title = ref.Title
		result.Author = ref.Author
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// AssignMeetingForAllUsers schedules the discussion for the reference
// book's identity on every member's copy.
func (s *Store) AssignMeetingForAllUsers(ctx context.Context, requestUserID, referenceBookID, startsAt string, location *string) (*domain.FanOutResult, error) {
	return s.fanOutUpdate(ctx, requestUserID, referenceBookID,
		`meeting_starts_at = ?, meeting_location = ?`, startsAt, nullableString(location))
}

// ClearMeetingForAllUsers removes the scheduled discussion from every
// member's copy of the reference book's identity.
func (s *Store) ClearMeetingForAllUsers(ctx context.Context, requestUserID, referenceBookID string) (*domain.FanOutResult, error) {
	return s.fanOutUpdate(ctx, requestUserID, referenceBookID,
		`meeting_starts_at = NULL, meeting_location = NULL`)
}

// UpdateThumbnailForAllUsers sets or clears the cover thumbnail on
// every member's copy of the reference book's identity.
func (s *Store) UpdateThumbnailForAllUsers(ctx context.Context, requestUserID, referenceBookID string, thumbnailURL *string) (*domain.FanOutResult, error) {
	return s.fanOutUpdate(ctx, requestUserID, referenceBookID,
		`thumbnail_url = ?`, nullableString(thumbnailURL))
}

// UpdateFeaturedImageForAllUsers sets or clears the featured hero image
// on every member's copy, returning the previous image so orphaned
// uploads can be released.
func (s *Store) UpdateFeaturedImageForAllUsers(ctx context.Context, requestUserID, referenceBookID string, featuredImageURL *string) (*domain.FanOutResult, string, error) {
	var previous string
	var result *domain.FanOutResult
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		ref, err := getBookRef(ctx, tx, referenceBookID, requestUserID)
		if err != nil {
			return err
		}

		var prev sql.NullString
		err = tx.QueryRowContext(ctx, `
			SELECT featured_image_url FROM books
			WHERE volume = ? AND lower(title) = lower(?) AND lower(author) = lower(?)
				AND featured_image_url IS NOT NULL
			LIMIT 1`,
			ref.Volume, ref.Title, ref.Author).Scan(&prev)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("load previous featured image: %w", err)
		}
		previous = prev.String

		var r domain.FanOutResult
		if r.UsersAffected, err = countUsersTx(ctx, tx); err != nil {
			return err
		}
		updated, err := tx.ExecContext(ctx, `
			UPDATE books SET featured_image_url = ?
			WHERE volume = ? AND lower(title) = lower(?) AND lower(author) = lower(?)`,
			nullableString(featuredImageURL), ref.Volume, ref.Title, ref.Author)
		if err != nil {
			return fmt.Errorf("update featured image: %w", err)
		}
		n, err := updated.RowsAffected()
		if err != nil {
			return err
		}
		r.BooksUpdated = int(n)
		r.Volume = ref.Volume
		r.Title = ref.Title
		r.Author = ref.Author
		result = &r
		return nil
	})
	if err != nil {
		return nil, "", err
	}
	return result, previous, nil
}

// UpdateISBNForAllUsers sets or clears the ISBN on every member's copy
// of the reference book's identity. When an ISBN is set, the resolved
// cover (if any) and the ThriftBooks purchase link propagate with it;
// clearing the ISBN removes the ThriftBooks link.
func (s *Store) UpdateISBNForAllUsers(ctx context.Context, requestUserID, referenceBookID string, isbn, coverURL, thriftBooksURL *string, applyCover bool) (*domain.ISBNResult, error) {
	var result domain.ISBNResult
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		ref, err := getBookRef(ctx, tx, referenceBookID, requestUserID)
		if err != nil {
			return err
		}
		if result.UsersAffected, err = countUsersTx(ctx, tx); err != nil {
			return err
		}

		identityWhere := ` WHERE volume = ? AND lower(title) = lower(?) AND lower(author) = lower(?)`
		identityArgs := []any{ref.Volume, ref.Title, ref.Author}

		updated, err := tx.ExecContext(ctx,
			`UPDATE books SET isbn = ?`+identityWhere,
			append([]any{nullableString(isbn)}, identityArgs...)...)
		if err != nil {
			return fmt.Errorf("update isbn: %w", err)
		}
		n, err := updated.RowsAffected()
		if err != nil {
			return err
		}
		result.BooksUpdated = int(n)

		if isbn != nil && applyCover {
			covers, err := tx.ExecContext(ctx,
				`UPDATE books SET thumbnail_url = ?`+identityWhere,
				append([]any{nullableString(coverURL)}, identityArgs...)...)
			if err != nil {
				return fmt.Errorf("update covers: %w", err)
			}
			if n, err = covers.RowsAffected(); err != nil {
				return err
			}
			result.CoversUpdated = int(n)
		}

		rows, err := tx.QueryContext(ctx,
			`SELECT id, resources_json FROM books`+identityWhere, identityArgs...)
		if err != nil {
			return fmt.Errorf("list identity resources: %w", err)
		}
		type resourceRow struct {
			id  string
			raw string
		}
		var matches []resourceRow
		for rows.Next() {
			var r resourceRow
			if err := rows.Scan(&r.id, &r.raw); err != nil {
				rows.Close()
				return fmt.Errorf("scan resources: %w", err)
			}
			matches = append(matches, r)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return err
		}
		rows.Close()

		for _, match := range matches {
			existing := parseResourcesJSON(match.raw)
			stripped := domain.RemoveResourceLabel(existing, domain.ThriftBooksLabel)
			next := stripped
			if isbn != nil && thriftBooksURL != nil {
				next = domain.MergeResourceLinks(stripped,
					[]domain.ResourceLink{{Label: domain.ThriftBooksLabel, URL: *thriftBooksURL}})
			}
			if resourceLinksEqual(existing, next) {
				continue
			}
			if _, err := tx.ExecContext(ctx,
				`UPDATE books SET resources_json = ? WHERE id = ?`,
				encodeResourcesJSON(next), match.id); err != nil {
				return fmt.Errorf("update purchase links: %w", err)
			}
			result.ResourcesUpdated++
		}

		result.Volume = ref.Volume
		result.Title = ref.Title
		result.Author = ref.Author
		return nil
	})
	if err != nil {
		return nil, err
	}
	result.ISBN = isbn
	result.ThriftBooksURL = thriftBooksURL
	result.CoverURL = coverURL
	result.CoverResolved = coverURL != nil
	result.CoverSyncAttempted = isbn != nil && applyCover
	return &result, nil
}

// DeleteBookForAllUsers removes every member's copy of the reference
// book's identity, reporting the featured images those copies used.
func (s *Store) DeleteBookForAllUsers(ctx context.Context, requestUserID, referenceBookID string) (*domain.DeleteResult, error) {
	var result domain.DeleteResult
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		ref, err := getBookRef(ctx, tx, referenceBookID, requestUserID)
		if err != nil {
			return err
		}

		imageRows, err := tx.QueryContext(ctx, `
			SELECT DISTINCT featured_image_url FROM books
			WHERE volume = ? AND lower(title) = lower(?) AND lower(author) = lower(?)
				AND featured_image_url IS NOT NULL`,
			ref.Volume, ref.Title, ref.Author)
		if err != nil {
			return fmt.Errorf("list featured images: %w", err)
		}
		for imageRows.Next() {
			var url string
			if err := imageRows.Scan(&url); err != nil {
				imageRows.Close()
				return fmt.Errorf("scan featured image: %w", err)
			}
			if url != "" {
				result.FeaturedImageURLs = append(result.FeaturedImageURLs, url)
			}
		}
		if err := imageRows.Err(); err != nil {
			imageRows.Close()
			return err
		}
		imageRows.Close()

		if result.UsersAffected, err = countUsersTx(ctx, tx); err != nil {
			return err
		}
		deleted, err := tx.ExecContext(ctx, `
			DELETE FROM books
			WHERE volume = ? AND lower(title) = lower(?) AND lower(author) = lower(?)`,
			ref.Volume, ref.Title, ref.Author)
		if err != nil {
			return fmt.Errorf("delete identity: %w", err)
		}
		n, err := deleted.RowsAffected()
		if err != nil {
			return err
		}
		result.BooksDeleted = int(n)

		result.Volume = ref.Volume
		result.Title = ref.Title
		result.Author = ref.Author
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// ClearVolumeForAllUsers deletes every member's rows for a volume.
func (s *Store) ClearVolumeForAllUsers(ctx context.Context, volume int) (*domain.ClearVolumeResult, error) {
	result := domain.ClearVolumeResult{Volume: volume}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		if result.UsersAffected, err = countUsersTx(ctx, tx); err != nil {
			return err
		}
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM books WHERE volume = ?`, volume).Scan(&result.BooksDeleted); err != nil {
			return fmt.Errorf("count volume books: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM books WHERE volume = ?`, volume); err != nil {
			return fmt.Errorf("clear volume: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// ListBooksWithISBN lists every row that has an ISBN, for cover and
// purchase-link backfills. Missing-cover filtering is up to the caller.
func (s *Store) ListBooksWithISBN(ctx context.Context) ([]*domain.BookRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+bookColumns+` FROM books WHERE isbn IS NOT NULL AND trim(isbn) != ''`)
	if err != nil {
		return nil, fmt.Errorf("list books with isbn: %w", err)
	}
	defer rows.Close()

	var books []*domain.BookRecord
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, fmt.Errorf("scan book: %w", err)
		}
		books = append(books, b)
	}
	return books, rows.Err()
}

// UpdateBookThumbnail sets the thumbnail on a single row if it does not
// already have one, and reports whether the row changed. Backfills run
// slow provider lookups between selecting candidates and writing, so
// the empty check lives in the UPDATE to avoid clobbering a cover set
// in the meantime.
func (s *Store) UpdateBookThumbnail(ctx context.Context, bookID, thumbnailURL string) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE books SET thumbnail_url = ?
		 WHERE id = ? AND (thumbnail_url IS NULL OR trim(thumbnail_url) = '')`,
		thumbnailURL, bookID)
	if err != nil {
		return false, fmt.Errorf("update thumbnail: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update thumbnail: %w", err)
	}
	return rows > 0, nil
}

// UpdateBookResources replaces the purchase/resource links on a single
// row, used by purchase-link backfills.
func (s *Store) UpdateBookResources(ctx context.Context, bookID string, links []domain.ResourceLink) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE books SET resources_json = ? WHERE id = ?`, encodeResourcesJSON(links), bookID)
	if err != nil {
		return fmt.Errorf("update resources: %w", err)
	}
	return nil
}

func resourceLinksEqual(a, b []domain.ResourceLink) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
