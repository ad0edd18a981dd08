package domain

import (
	"fmt"
	"strings"
	"time"
)

// ResourceLinkLimit caps how many purchase/resource links a catalog row keeps.
const ResourceLinkLimit = 12

// ThriftBooksLabel is the label used for synthesized ThriftBooks purchase links.
const ThriftBooksLabel = "ThriftBooks"

// ResourceLink is a labeled external link attached to a book (storefronts,
// reading guides, author pages).
type ResourceLink struct {
	Label string `json:"label"`
	URL   string `json:"url"`
}

// BookRecord is one member's copy of a club selection. Every member owns a
// full copy of the shared catalog; the per-member fields (completion, rating)
// live alongside the shared ones and are reconciled by identity.
type BookRecord struct {
	ID               string         `json:"id"`
	UserID           string         `json:"-"`
	Volume           int            `json:"volume"`
	Year             int            `json:"year"`
	Title            string         `json:"title"`
	Author           string         `json:"author"`
	ISBN             *string        `json:"isbn"`
	Month            string         `json:"month"`
	MeetingStartsAt  *time.Time     `json:"meetingStartsAt"`
	MeetingLocation  *string        `json:"meetingLocation"`
	ThumbnailURL     *string        `json:"thumbnailUrl"`
	FeaturedImageURL *string        `json:"featuredImageUrl"`
	Resources        []ResourceLink `json:"resources"`
	IsFeatured       bool           `json:"isFeatured"`
	IsCompleted      bool           `json:"isCompleted"`
	CompletedAt      *time.Time     `json:"completedAt"`
	Rating           *int           `json:"rating"`
	RatedAt          *time.Time     `json:"ratedAt"`
	CreatedAt        time.Time      `json:"createdAt"`
}

// Identity returns the record's logical identity key.
func (b *BookRecord) Identity() string {
	return BookIdentity(b.Volume, b.Title, b.Author)
}

// BookIdentity derives the logical identity of a club selection. Two rows
// with the same key are the same book across all member catalogs, so the
// title and author comparison is case-insensitive and whitespace-trimmed.
func BookIdentity(volume int, title, author string) string {
	return fmt.Sprintf("%d::%s::%s",
		volume,
		strings.ToLower(strings.TrimSpace(title)),
		strings.ToLower(strings.TrimSpace(author)),
	)
}

// monthOrder maps month names to their sort position. Anything unrecognized
// (including the empty month) sorts first within a volume.
var monthOrder = map[string]int{
	"January":   1,
	"February":  2,
	"March":     3,
	"April":     4,
	"May":       5,
	"June":      6,
	"July":      7,
	"August":    8,
	"September": 9,
	"October":   10,
	"November":  11,
	"December":  12,
}

// MonthOrder returns the catalog sort position for a month name, 0 when
// unknown. Matching is case-insensitive, like the catalog's SQL ordering.
func MonthOrder(month string) int {
	if n, ok := monthOrder[month]; ok {
		return n
	}
	for name, n := range monthOrder {
		if strings.EqualFold(name, month) {
			return n
		}
	}
	return 0
}

// MonthNames lists the accepted month names in calendar order.
func MonthNames() []string {
	names := make([]string, 12)
	for name, n := range monthOrder {
		names[n-1] = name
	}
	return names
}

// LegacyYear maps a volume number to its display year. The highest volume is
// the current calendar year and each earlier volume is one year before it.
func LegacyYear(volume, currentVolume, currentYear int) int {
	base := currentYear - (currentVolume - 1)
	return base + volume - 1
}

// NormalizeResourceLinks drops malformed entries, trims label and URL, and
// caps the list at ResourceLinkLimit.
func NormalizeResourceLinks(links []ResourceLink) []ResourceLink {
	out := make([]ResourceLink, 0, len(links))
	for _, l := range links {
		label := strings.TrimSpace(l.Label)
		url := strings.TrimSpace(l.URL)
		if label == "" || url == "" {
			continue
		}
		out = append(out, ResourceLink{Label: label, URL: url})
		if len(out) == ResourceLinkLimit {
			break
		}
	}
	return out
}

// MergeResourceLinks combines existing links with incoming ones, existing
// first, deduplicated case-insensitively on label plus exact URL.
func MergeResourceLinks(existing, incoming []ResourceLink) []ResourceLink {
	seen := make(map[string]bool, len(existing)+len(incoming))
	out := make([]ResourceLink, 0, len(existing)+len(incoming))
	for _, l := range append(NormalizeResourceLinks(existing), NormalizeResourceLinks(incoming)...) {
		key := strings.ToLower(l.Label) + "::" + l.URL
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, l)
		if len(out) == ResourceLinkLimit {
			break
		}
	}
	return out
}

// RemoveResourceLabel returns links with every entry matching the label
// (case-insensitive) removed.
func RemoveResourceLabel(links []ResourceLink, label string) []ResourceLink {
	out := make([]ResourceLink, 0, len(links))
	for _, l := range links {
		if strings.EqualFold(l.Label, label) {
			continue
		}
		out = append(out, l)
	}
	return out
}
