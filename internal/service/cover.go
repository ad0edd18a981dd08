package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/bookclubapp/bookclub-server/internal/config"
	"github.com/bookclubapp/bookclub-server/internal/domain"
	"github.com/bookclubapp/bookclub-server/internal/metadata/googlebooks"
	"github.com/bookclubapp/bookclub-server/internal/metadata/openlibrary"
	"github.com/bookclubapp/bookclub-server/internal/normalize"
	"github.com/bookclubapp/bookclub-server/internal/readinglist"
	"github.com/bookclubapp/bookclub-server/internal/store/sqlite"
)

// ISBNLookup is the metadata resolved for one ISBN, merged across
// providers.
type ISBNLookup struct {
	Title        string `json:"title,omitempty"`
	Author       string `json:"author,omitempty"`
	Year         int    `json:"year,omitempty"`
	Month        string `json:"month,omitempty"`
	ThumbnailURL string `json:"thumbnailUrl,omitempty"`
	ISBN         string `json:"isbn"`
}

// CoverBackfillSummary reports a cover backfill pass over the catalog.
type CoverBackfillSummary struct {
	Candidates        int  `json:"candidates"`
	ISBNCandidates    int  `json:"isbnCandidates"`
	ISBNResolved      int  `json:"isbnResolved"`
	BooksUpdated      int  `json:"booksUpdated"`
	EnrichmentEnabled bool `json:"enrichmentEnabled"`
}

// ThriftBooksBackfillSummary reports a purchase-link backfill pass.
type ThriftBooksBackfillSummary struct {
	Candidates   int `json:"candidates"`
	BooksUpdated int `json:"booksUpdated"`
}

// CoverService resolves cover images and book metadata from Open
// Library and Google Books, and keeps ISBN-derived purchase links in
// sync.
type CoverService struct {
	store       *sqlite.Store
	openLibrary *openlibrary.Client
	googleBooks *googlebooks.Client
	enabled     bool
	logger      *slog.Logger
}

// NewCoverService creates a new cover service. Lookup calls are bounded
// by the configured timeout.
func NewCoverService(store *sqlite.Store, cfg config.EnrichmentConfig, logger *slog.Logger) *CoverService {
	return &CoverService{
		store:       store,
		openLibrary: openlibrary.NewClient(cfg.LookupTimeout, logger),
		googleBooks: googlebooks.NewClient(cfg.LookupTimeout, logger),
		enabled:     cfg.Enabled,
		logger:      logger,
	}
}

// Enabled reports whether cover enrichment is switched on.
func (s *CoverService) Enabled() bool {
	return s.enabled
}

// ThriftBooksURL builds the ThriftBooks search link for an ISBN.
func ThriftBooksURL(isbn string) string {
	if isbn == "" {
		return ""
	}
	return "https://www.thriftbooks.com/browse/?b.search=" + url.QueryEscape(isbn)
}

// UpsertThriftBooksLink replaces any ThriftBooks entry in the links
// with a fresh one derived from the ISBN.
func UpsertThriftBooksLink(links []domain.ResourceLink, isbn string) []domain.ResourceLink {
	thriftURL := ThriftBooksURL(isbn)
	if thriftURL == "" {
		return links
	}
	stripped := domain.RemoveResourceLabel(links, domain.ThriftBooksLabel)
	return domain.MergeResourceLinks(stripped,
		[]domain.ResourceLink{{Label: domain.ThriftBooksLabel, URL: thriftURL}})
}

// ResolveCover finds the best cover URL for an ISBN, trying Open
// Library first and Google Books second. Returns "" when enrichment is
// disabled or no provider has a cover; lookup failures are logged and
// treated as misses.
func (s *CoverService) ResolveCover(ctx context.Context, isbn string) string {
	if isbn == "" || !s.enabled {
		return ""
	}

	cover, err := s.openLibrary.CoverURL(ctx, isbn)
	if err != nil {
		s.logger.Debug("open library cover lookup failed", "isbn", isbn, "error", err)
	}
	if cover != "" {
		return cover
	}

	cover, err = s.googleBooks.CoverURL(ctx, isbn)
	if err != nil {
		s.logger.Debug("google books cover lookup failed", "isbn", isbn, "error", err)
	}
	return cover
}

// LookupBook resolves book metadata for an ISBN, preferring Google
// Books and falling back to Open Library. A missing thumbnail is
// filled from the Open Library cover archive when possible. Returns
// (nil, nil) when no provider knows the ISBN.
func (s *CoverService) LookupBook(ctx context.Context, isbn string) (*ISBNLookup, error) {
	if google, err := s.googleBooks.Lookup(ctx, isbn); err != nil {
		s.logger.Debug("google books lookup failed", "isbn", isbn, "error", err)
	} else if google != nil {
		lookup := &ISBNLookup{
			Title:        google.Title,
			Author:       google.Author,
			Year:         google.Year,
			Month:        google.Month,
			ThumbnailURL: google.ThumbnailURL,
			ISBN:         google.ISBN,
		}
		s.fillCoverFromArchive(ctx, isbn, lookup)
		return lookup, nil
	}

	openLib, err := s.openLibrary.Lookup(ctx, isbn)
	if err != nil {
		s.logger.Debug("open library lookup failed", "isbn", isbn, "error", err)
	}
	if openLib == nil {
		return nil, nil
	}
	lookup := &ISBNLookup{
		Title:        openLib.Title,
		Author:       openLib.Author,
		Year:         openLib.Year,
		Month:        openLib.Month,
		ThumbnailURL: openLib.ThumbnailURL,
		ISBN:         openLib.ISBN,
	}
	s.fillCoverFromArchive(ctx, isbn, lookup)
	return lookup, nil
}

func (s *CoverService) fillCoverFromArchive(ctx context.Context, isbn string, lookup *ISBNLookup) {
	if lookup.ThumbnailURL != "" {
		return
	}
	cover, err := s.openLibrary.CoverURL(ctx, isbn)
	if err != nil {
		s.logger.Debug("cover archive probe failed", "isbn", isbn, "error", err)
		return
	}
	lookup.ThumbnailURL = cover
}

// EnrichRows prepares parsed reading-list rows for reconciliation:
// rows with an ISBN gain a ThriftBooks purchase link, and rows without
// a thumbnail get a resolved cover. Covers are resolved once per ISBN.
func (s *CoverService) EnrichRows(ctx context.Context, rows []readinglist.Row) []readinglist.Row {
	coverByISBN := make(map[string]string)
	for i := range rows {
		row := &rows[i]
		if row.ISBN != "" {
			row.Resources = UpsertThriftBooksLink(row.Resources, row.ISBN)
		}

		if !s.enabled || row.ThumbnailURL != "" || row.ISBN == "" {
			continue
		}
		cover, seen := coverByISBN[row.ISBN]
		if !seen {
			cover = s.ResolveCover(ctx, row.ISBN)
			coverByISBN[row.ISBN] = cover
		}
		if cover != "" {
			row.ThumbnailURL = cover
		}
	}
	return rows
}

// BackfillCovers resolves covers for every catalog row that has an
// ISBN but no thumbnail. Each distinct ISBN is looked up once.
func (s *CoverService) BackfillCovers(ctx context.Context) (*CoverBackfillSummary, error) {
	if !s.enabled {
		return &CoverBackfillSummary{}, nil
	}
	summary := &CoverBackfillSummary{EnrichmentEnabled: true}

	books, err := s.store.ListBooksWithISBN(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing backfill candidates: %w", err)
	}

	idsByISBN := make(map[string][]string)
	for _, book := range books {
		if book.ThumbnailURL != nil && strings.TrimSpace(*book.ThumbnailURL) != "" {
			continue
		}
		summary.Candidates++
		isbn := normalize.ISBN(*book.ISBN)
		if isbn == "" {
			continue
		}
		idsByISBN[isbn] = append(idsByISBN[isbn], book.ID)
	}
	summary.ISBNCandidates = len(idsByISBN)

	for isbn, ids := range idsByISBN {
		cover := s.ResolveCover(ctx, isbn)
		if cover == "" {
			continue
		}
		summary.ISBNResolved++
		for _, bookID := range ids {
			updated, err := s.store.UpdateBookThumbnail(ctx, bookID, cover)
			if err != nil {
				return nil, err
			}
			if updated {
				summary.BooksUpdated++
			}
		}
	}
	return summary, nil
}

// BackfillThriftBooks ensures every catalog row with an ISBN carries
// its ThriftBooks purchase link.
func (s *CoverService) BackfillThriftBooks(ctx context.Context) (*ThriftBooksBackfillSummary, error) {
	books, err := s.store.ListBooksWithISBN(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing backfill candidates: %w", err)
	}

	summary := &ThriftBooksBackfillSummary{Candidates: len(books)}
	for _, book := range books {
		isbn := normalize.ISBN(*book.ISBN)
		if isbn == "" {
			continue
		}
		merged := UpsertThriftBooksLink(book.Resources, isbn)
		if resourceLinksMatch(book.Resources, merged) {
			continue
		}
		if err := s.store.UpdateBookResources(ctx, book.ID, merged); err != nil {
			return nil, err
		}
		summary.BooksUpdated++
	}
	return summary, nil
}

func resourceLinksMatch(a, b []domain.ResourceLink) bool {
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
