// Package readinglist parses uploaded reading-list files (CSV or JSON) into
// validated rows ready for reconciliation.
package readinglist

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/bookclubapp/bookclub-server/internal/domain"
	"github.com/bookclubapp/bookclub-server/internal/errors"
	"github.com/bookclubapp/bookclub-server/internal/normalize"
)

// MaxRows caps the size of one uploaded list.
const MaxRows = 1000

// Field length limits, enforced per row.
const (
	maxTitleLen    = 200
	maxAuthorLen   = 160
	maxMonthLen    = 30
	maxLocationLen = 160
	maxURLLen      = 500
	minYear        = 2025
	maxYear        = 2100
	maxVolume      = 99
)

// Row is one validated reading-list entry. Zero/empty optional fields mean
// "not provided" and never overwrite existing catalog values during a merge.
type Row struct {
	Volume           int
	Year             int
	Title            string
	Author           string
	ISBN             string
	Month            string
	MeetingStartsAt  *time.Time
	MeetingLocation  string
	ThumbnailURL     string
	FeaturedImageURL string
	Resources        []domain.ResourceLink
	IsFeatured       bool
}

// Identity returns the row's logical identity key.
func (r *Row) Identity() string {
	return domain.BookIdentity(r.Volume, r.Title, r.Author)
}

// Options adjusts how rows are interpreted.
type Options struct {
	// DefaultVolume fills in rows that carry no volume column. Zero means
	// no default, making a missing volume a row error.
	DefaultVolume int
	// LegacyYear derives a display year for rows without one. Required.
	LegacyYear func(volume int) int
}

// Parse decodes and validates an uploaded reading list. JSON is detected by
// MIME type or a .json filename suffix, everything else is treated as CSV.
// The first invalid row aborts the whole parse with a row-numbered error.
func Parse(data []byte, filename, mimeType string, opts Options) ([]Row, error) {
	var (
		raw []map[string]any
		err error
	)
	if strings.Contains(mimeType, "application/json") || strings.HasSuffix(strings.ToLower(filename), ".json") {
		raw, err = decodeJSONRows(data)
	} else {
		raw, err = decodeCSVRows(data)
	}
	if err != nil {
		return nil, err
	}

	if len(raw) == 0 {
		return nil, errors.Validation("reading list file is empty")
	}
	if len(raw) > MaxRows {
		return nil, errors.Validationf("reading list file is too large, maximum %d rows", MaxRows)
	}

	rows := make([]Row, 0, len(raw))
	for i, rec := range raw {
		row, err := parseRow(rec, i+1, opts)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// decodeJSONRows accepts either a bare array of row objects or an object
// with a "rows" array.
func decodeJSONRows(data []byte) ([]map[string]any, error) {
	var direct []map[string]any
	if err := json.Unmarshal(data, &direct); err == nil {
		return direct, nil
	}

	var wrapped struct {
		Rows []map[string]any `json:"rows"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, errors.Wrap(err, errors.CodeValidation, "reading list JSON is malformed")
	}
	return wrapped.Rows, nil
}

// decodeCSVRows reads a header-keyed CSV into generic row maps.
func decodeCSVRows(data []byte) ([]map[string]any, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeValidation, "reading list CSV is malformed")
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	var rows []map[string]any
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeValidation, "reading list CSV is malformed")
		}

		row := make(map[string]any, len(header))
		empty := true
		for i, col := range header {
			if i >= len(record) {
				break
			}
			val := strings.TrimSpace(record[i])
			row[col] = val
			if val != "" {
				empty = false
			}
		}
		if empty {
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// fieldNameCleaner strips spaces, underscores and hyphens so header
// variations like "Meeting Date" and "meeting_date" compare equal.
var fieldNameCleaner = regexp.MustCompile(`[\s_-]+`)

func normalizeFieldName(name string) string {
	return fieldNameCleaner.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "")
}

// field returns the first non-empty value matching any alias, trying exact
// keys first and normalized keys second.
func field(row map[string]any, aliases ...string) (any, bool) {
	for _, alias := range aliases {
		if v, ok := row[alias]; ok && v != nil && v != "" {
			return v, true
		}
	}
	normalized := make([]string, len(aliases))
	for i, alias := range aliases {
		normalized[i] = normalizeFieldName(alias)
	}
	for key, v := range row {
		if v == nil {
			continue
		}
		nk := normalizeFieldName(key)
		for _, alias := range normalized {
			if nk == alias {
				return v, true
			}
		}
	}
	return nil, false
}

func fieldString(row map[string]any, aliases ...string) string {
	v, ok := field(row, aliases...)
	if !ok {
		return ""
	}
	return strings.TrimSpace(anyToString(v))
}

func anyToString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", t)
	}
}

// fieldNumber parses an optional numeric field. The bool reports presence of
// a usable number; garbage values count as absent, matching spreadsheet
// tools that pad columns with stray text.
func fieldNumber(row map[string]any, aliases ...string) (int, bool) {
	v, ok := field(row, aliases...)
	if !ok {
		return 0, false
	}
	switch t := v.(type) {
	case float64:
		return int(t), true
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return int(f), true
	default:
		return 0, false
	}
}

func fieldBool(row map[string]any, aliases ...string) bool {
	v, ok := field(row, aliases...)
	if !ok {
		return false
	}
	switch t := v.(type) {
	case bool:
		return t
	case float64:
		return t == 1
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "1", "true", "yes", "y":
			return true
		}
	}
	return false
}

// dateTimeLayouts covers the formats club admins actually put in
// spreadsheets, most specific first.
var dateTimeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"01/02/2006 15:04",
	"01/02/2006",
}

// parseDateTime parses an optional date/time field. A present but
// unparseable value is reported as invalid rather than dropped.
func parseDateTime(raw string) (*time.Time, bool) {
	if raw == "" {
		return nil, true
	}
	for _, layout := range dateTimeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			utc := t.UTC()
			return &utc, true
		}
	}
	return nil, false
}

//nolint:gocyclo // Row validation is intentionally one linear pass.
func parseRow(rec map[string]any, rowNum int, opts Options) (Row, error) {
	invalid := func(format string, args ...any) (Row, error) {
		return Row{}, errors.Validationf("invalid row %d: %s", rowNum, fmt.Sprintf(format, args...))
	}

	volume, hasVolume := fieldNumber(rec, "volume", "Volume", "season", "Season")
	if !hasVolume {
		if opts.DefaultVolume == 0 {
			return invalid("volume is required (add a volume column or choose a volume in the admin form)")
		}
		volume = opts.DefaultVolume
	}
	if volume < 1 || volume > maxVolume {
		return invalid("volume must be between 1 and %d", maxVolume)
	}

	year, hasYear := fieldNumber(rec, "year", "Year")
	if !hasYear {
		if opts.LegacyYear == nil {
			return invalid("year is required")
		}
		year = opts.LegacyYear(volume)
	} else if year < minYear || year > maxYear {
		return invalid("year must be between %d and %d", minYear, maxYear)
	}

	title := fieldString(rec, "title", "Title")
	if title == "" || len(title) > maxTitleLen {
		return invalid("title is required and must be at most %d characters", maxTitleLen)
	}

	author := fieldString(rec, "author", "Author")
	if author == "" || len(author) > maxAuthorLen {
		return invalid("author is required and must be at most %d characters", maxAuthorLen)
	}

	month := fieldString(rec, "month", "Month")
	if month == "" || len(month) > maxMonthLen {
		return invalid("month is required and must be at most %d characters", maxMonthLen)
	}
	// Canonicalize recognized month names ("june" -> "June") so catalog
	// rows display consistently regardless of upload casing.
	if n := domain.MonthOrder(month); n > 0 {
		month = domain.MonthNames()[n-1]
	}

	var isbn string
	if raw := fieldString(rec, "isbn", "ISBN"); raw != "" {
		isbn = normalize.ISBN(raw)
		if isbn == "" {
			return invalid("isbn %q is not a valid ISBN-10 or ISBN-13", raw)
		}
	}

	meetingStartsAt, ok := parseDateTime(fieldString(rec,
		"meetingStartsAt", "meeting_starts_at", "meetingDate", "meeting_date",
		"meetingDateTime", "meeting_datetime"))
	if !ok {
		return invalid("meeting date must be a valid date/time")
	}

	location := fieldString(rec, "meetingLocation", "meeting_location", "location")
	if len(location) > maxLocationLen {
		return invalid("meeting location must be at most %d characters", maxLocationLen)
	}

	var thumbnailURL string
	if raw := fieldString(rec, "thumbnailUrl", "thumbnail_url", "thumbnail", "coverImage", "cover_image"); raw != "" {
		thumbnailURL = normalize.CoerceHTTPURL(raw)
		if thumbnailURL == "" || len(thumbnailURL) > maxURLLen {
			return invalid("thumbnail must be a valid http(s) URL")
		}
	}

	resources, err := parseRowResources(rec, rowNum)
	if err != nil {
		return Row{}, err
	}

	return Row{
		Volume:          volume,
		Year:            year,
		Title:           title,
		Author:          author,
		ISBN:            isbn,
		Month:           month,
		MeetingStartsAt: meetingStartsAt,
		MeetingLocation: location,
		ThumbnailURL:    thumbnailURL,
		Resources:       resources,
		IsFeatured:      fieldBool(rec, "isFeatured", "is_featured", "IsFeatured"),
	}, nil
}

// parseRowResources collects resource links from an embedded JSON column,
// well-known storefront columns, and up to three generic label/url pairs.
func parseRowResources(rec map[string]any, rowNum int) ([]domain.ResourceLink, error) {
	var links []domain.ResourceLink
	push := func(label, rawURL string) error {
		if strings.TrimSpace(rawURL) == "" {
			return nil
		}
		u := normalize.CoerceHTTPURL(rawURL)
		if u == "" || len(u) > maxURLLen {
			return errors.Validationf("invalid row %d: resource %q must have a valid http(s) URL", rowNum, label)
		}
		links = append(links, domain.ResourceLink{Label: label, URL: u})
		return nil
	}

	if embedded, ok := field(rec, "resources", "Resources"); ok {
		parsed, err := parseEmbeddedResources(embedded, rowNum)
		if err != nil {
			return nil, err
		}
		for _, l := range parsed {
			if err := push(l.Label, l.URL); err != nil {
				return nil, err
			}
		}
	}

	storefronts := []struct {
		label   string
		aliases []string
	}{
		{"Amazon", []string{"amazonUrl", "amazon_url", "amazon"}},
		{"Bookshop", []string{"bookshopUrl", "bookshop_url", "bookshop"}},
		{"Barnes & Noble", []string{"barnesAndNobleUrl", "barnes_and_noble_url", "bnUrl", "bn_url"}},
		{"IndieBound", []string{"indieBoundUrl", "indiebound_url", "indiebound"}},
		{domain.ThriftBooksLabel, []string{"thriftbooksUrl", "thriftbooks_url", "thriftbooks"}},
	}
	for _, sf := range storefronts {
		if err := push(sf.label, fieldString(rec, sf.aliases...)); err != nil {
			return nil, err
		}
	}

	for i := 1; i <= 3; i++ {
		label := fieldString(rec, fmt.Sprintf("resource%dLabel", i), fmt.Sprintf("resource_%d_label", i))
		if label == "" {
			label = fmt.Sprintf("Resource %d", i)
		}
		if err := push(label, fieldString(rec, fmt.Sprintf("resource%dUrl", i), fmt.Sprintf("resource_%d_url", i))); err != nil {
			return nil, err
		}
	}

	deduped := domain.MergeResourceLinks(links, nil)
	if len(deduped) == 0 {
		return nil, nil
	}
	return deduped, nil
}

// parseEmbeddedResources handles the "resources" column, which may arrive as
// a JSON array (JSON uploads) or a JSON string (CSV cells).
func parseEmbeddedResources(v any, rowNum int) ([]domain.ResourceLink, error) {
	var entries []map[string]any
	switch t := v.(type) {
	case string:
		trimmed := strings.TrimSpace(t)
		if trimmed == "" {
			return nil, nil
		}
		if err := json.Unmarshal([]byte(trimmed), &entries); err != nil {
			return nil, errors.Validationf("invalid row %d: resources must be valid JSON when provided as text", rowNum)
		}
	case []any:
		for i, item := range t {
			entry, ok := item.(map[string]any)
			if !ok {
				return nil, errors.Validationf("invalid row %d: resource %d must be an object", rowNum, i+1)
			}
			entries = append(entries, entry)
		}
	default:
		return nil, errors.Validationf("invalid row %d: resources must be an array", rowNum)
	}

	links := make([]domain.ResourceLink, 0, len(entries))
	for i, entry := range entries {
		label := strings.TrimSpace(anyToString(firstNonNil(entry["label"], entry["name"])))
		if label == "" {
			label = fmt.Sprintf("Resource %d", i+1)
		}
		url := anyToString(firstNonNil(entry["url"], entry["link"]))
		links = append(links, domain.ResourceLink{Label: label, URL: url})
	}
	return links, nil
}

func firstNonNil(values ...any) any {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}
