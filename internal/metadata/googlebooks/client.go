// Package googlebooks provides access to the Google Books volumes API.
package googlebooks

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

const baseURL = "https://www.googleapis.com/books/v1"

// Book is the subset of Google Books volume data the club catalog can use.
type Book struct {
	Title        string
	Author       string
	Year         int
	Month        string
	ThumbnailURL string
	ISBN         string
}

// Client provides access to the Google Books volumes API.
type Client struct {
	httpClient  *http.Client
	rateLimiter *rate.Limiter
	logger      *slog.Logger
}

// NewClient creates a new Google Books client. Requests are bounded by the
// given timeout; the unauthenticated quota is generous but not unlimited.
func NewClient(timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		// 100 requests per minute, burst of 5.
		rateLimiter: rate.NewLimiter(rate.Every(600*time.Millisecond), 5),
		logger:      logger,
	}
}

// wait blocks until rate limiter allows a request.
func (c *Client) wait(ctx context.Context) error {
	return c.rateLimiter.Wait(ctx)
}

// imageLinks holds cover candidates in ascending quality order.
type imageLinks struct {
	SmallThumbnail string `json:"smallThumbnail"`
	Thumbnail      string `json:"thumbnail"`
	Medium         string `json:"medium"`
	Large          string `json:"large"`
	ExtraLarge     string `json:"extraLarge"`
}

// bestURL picks the largest available image and upgrades it to https.
func (l *imageLinks) bestURL() string {
	for _, candidate := range []string{l.ExtraLarge, l.Large, l.Medium, l.Thumbnail, l.SmallThumbnail} {
		if candidate != "" {
			return normalize.UpgradeHTTPS(candidate)
		}
	}
	return ""
}

type volumeInfo struct {
	Title               string      `json:"title"`
	Authors             []string    `json:"authors"`
	PublishedDate       string      `json:"publishedDate"`
	ImageLinks          *imageLinks `json:"imageLinks"`
	IndustryIdentifiers []struct {
		Type       string `json:"type"`
		Identifier string `json:"identifier"`
	} `json:"industryIdentifiers"`
}

type volumesResponse struct {
	Items []struct {
		VolumeInfo volumeInfo `json:"volumeInfo"`
	} `json:"items"`
}

// CoverURL looks up the best cover image for an ISBN. Returns "" when
// Google Books has no usable image.
func (c *Client) CoverURL(ctx context.Context, isbn string) (string, error) {
	info, err := c.fetchVolume(ctx, isbn)
	if err != nil {
		return "", err
	}
	if info == nil || info.ImageLinks == nil {
		return "", nil
	}
	return info.ImageLinks.bestURL(), nil
}

// Lookup fetches book metadata by ISBN. Returns (nil, nil) when Google
// Books has no matching volume.
func (c *Client) Lookup(ctx context.Context, isbn string) (*Book, error) {
	info, err := c.fetchVolume(ctx, isbn)
	if err != nil {
		return nil, err
	}
	if info == nil {
		return nil, nil
	}

	book := &Book{
		Title: strings.TrimSpace(info.Title),
		Year:  publishedYear(info.PublishedDate),
		Month: publishedMonth(info.PublishedDate),
		ISBN:  c.preferredISBN(info, isbn),
	}
	if len(info.Authors) > 0 {
		book.Author = strings.TrimSpace(info.Authors[0])
	}
	if info.ImageLinks != nil {
		book.ThumbnailURL = info.ImageLinks.bestURL()
	}
	return book, nil
}

// preferredISBN favors the API's ISBN-13 over ISBN-10 over the query value.
func (c *Client) preferredISBN(info *volumeInfo, fallback string) string {
	for _, wanted := range []string{"ISBN_13", "ISBN_10"} {
		for _, ident := range info.IndustryIdentifiers {
			if strings.EqualFold(ident.Type, wanted) {
				if normalized := normalize.ISBN(ident.Identifier); normalized != "" {
					return normalized
				}
			}
		}
	}
	return fallback
}

func (c *Client) fetchVolume(ctx context.Context, isbn string) (*volumeInfo, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/volumes?q=isbn:%s&maxResults=1&printType=books", baseURL, url.QueryEscape(isbn))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build volumes request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch volume: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("volumes API returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read volumes response: %w", err)
	}

	var payload volumesResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode volumes response: %w", err)
	}

	if len(payload.Items) == 0 {
		return nil, nil
	}
	return &payload.Items[0].VolumeInfo, nil
}
