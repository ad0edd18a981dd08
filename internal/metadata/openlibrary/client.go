// Package openlibrary provides access to the Open Library covers and books APIs.
package openlibrary

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bookclubapp/bookclub-server/internal/normalize"
	"golang.org/x/time/rate"
)

const (
	coversBaseURL = "https://covers.openlibrary.org"
	booksBaseURL  = "https://openlibrary.org"
)

// Book is the subset of Open Library volume data the club catalog can use.
type Book struct {
	Title        string
	Author       string
	Year         int
	Month        string
	ThumbnailURL string
	ISBN         string
}

// Client provides access to Open Library for cover and metadata lookups.
type Client struct {
	httpClient  *http.Client
	rateLimiter *rate.Limiter
	logger      *slog.Logger
}

// NewClient creates a new Open Library client. Requests are bounded by the
// given timeout and politely rate limited.
func NewClient(timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		// 1 request per second, burst of 5.
		rateLimiter: rate.NewLimiter(rate.Every(time.Second), 5),
		logger:      logger,
	}
}

// wait blocks until rate limiter allows a request.
func (c *Client) wait(ctx context.Context) error {
	return c.rateLimiter.Wait(ctx)
}

// CoverURL probes the covers API for a large cover image. Returns "" when
// Open Library has no cover for the ISBN.
func (c *Client) CoverURL(ctx context.Context, isbn string) (string, error) {
	if err := c.wait(ctx); err != nil {
		return "", err
	}

	// default=false turns the placeholder image into a 404.
	probeURL := fmt.Sprintf("%s/b/isbn/%s-L.jpg?default=false", coversBaseURL, url.PathEscape(isbn))
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, probeURL, nil)
	if err != nil {
		return "", fmt.Errorf("build cover probe request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("probe cover: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", nil
	}
	return fmt.Sprintf("%s/b/isbn/%s-L.jpg", coversBaseURL, url.PathEscape(isbn)), nil
}

// booksResponse models the /api/books payload for a single bibkey.
type booksEntry struct {
	Title   string `json:"title"`
	Authors []struct {
		Name string `json:"name"`
	} `json:"authors"`
	PublishDate string `json:"publish_date"`
	Cover       struct {
		Small  string `json:"small"`
		Medium string `json:"medium"`
		Large  string `json:"large"`
	} `json:"cover"`
}

// Lookup fetches book metadata by ISBN. Returns (nil, nil) when Open Library
// has no record.
func (c *Client) Lookup(ctx context.Context, isbn string) (*Book, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/api/books?bibkeys=ISBN:%s&format=json&jscmd=data", booksBaseURL, url.QueryEscape(isbn))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build books request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch book data: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("books API returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read books response: %w", err)
	}

	var payload map[string]booksEntry
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode books response: %w", err)
	}

	entry, ok := payload["ISBN:"+isbn]
	if !ok {
		return nil, nil
	}

	book := &Book{
		Title: strings.TrimSpace(entry.Title),
		Year:  publishedYearLoose(entry.PublishDate),
		Month: publishedMonthLoose(entry.PublishDate),
		ISBN:  isbn,
	}
	if len(entry.Authors) > 0 {
		book.Author = strings.TrimSpace(entry.Authors[0].Name)
	}

	for _, candidate := range []string{entry.Cover.Large, entry.Cover.Medium, entry.Cover.Small} {
		if candidate != "" {
			book.ThumbnailURL = normalize.UpgradeHTTPS(candidate)
			break
		}
	}

	return book, nil
}
