package domain

import "time"

// BookView is a member's copy of a catalog book enriched with the
// club-wide aggregates computed across every member's copy of the same
// identity.
type BookView struct {
	ID                string         `json:"id"`
	Volume            int            `json:"volume"`
	Year              int            `json:"year"`
	Title             string         `json:"title"`
	Author            string         `json:"author"`
	ISBN              *string        `json:"isbn"`
	Month             string         `json:"month"`
	MeetingStartsAt   *string        `json:"meetingStartsAt"`
	MeetingLocation   string         `json:"meetingLocation"`
	ThumbnailURL      *string        `json:"thumbnailUrl"`
	FeaturedImageURL  *string        `json:"featuredImageUrl"`
	Resources         []ResourceLink `json:"resources"`
	IsFeatured        bool           `json:"isFeatured"`
	IsCompleted       bool           `json:"isCompleted"`
	CompletedAt       *string        `json:"completedAt"`
	UserRating        *int           `json:"userRating"`
	RatedAt           *string        `json:"ratedAt"`
	AverageRating     *float64       `json:"averageRating"`
	RatingsCount      int            `json:"ratingsCount"`
	ParticipantsCount int            `json:"participantsCount"`
	CompletedCount    int            `json:"completedCount"`
	Comments          []CommentView  `json:"comments"`
}

// Identity returns the shared-book identity for this view.
func (b *BookView) Identity() string {
	return BookIdentity(b.Volume, b.Title, b.Author)
}

// CommentView is a discussion comment as shown inside a book view.
// Comments attach to identities, not to a single member's row, so the
// same comment appears under every member's copy of the book.
type CommentView struct {
	ID              string  `json:"id"`
	Text            string  `json:"text"`
	AuthorName      string  `json:"authorName"`
	AuthorUserID    string  `json:"authorUserId"`
	ParentCommentID *string `json:"parentCommentId"`
	CreatedAt       string  `json:"createdAt"`
	LikesCount      int     `json:"likesCount"`
	IsLikedByUser   bool    `json:"isLikedByUser"`
}

// CommentRow is a raw comment joined with its book's identity fields,
// before identity correlation against a viewer's catalog.
type CommentRow struct {
	ID              string
	BookID          string
	Text            string
	CreatedAt       string
	ParentCommentID *string
	AuthorUserID    string
	AuthorName      string
	Volume          int
	Title           string
	Author          string
}

// Identity returns the shared-book identity of the commented book.
func (c *CommentRow) Identity() string {
	return BookIdentity(c.Volume, c.Title, c.Author)
}

// VolumeGroup groups a volume's books for the catalog payload.
type VolumeGroup struct {
	Volume int        `json:"volume"`
	Books  []BookView `json:"books"`
}

// CatalogPayload is the full catalog for one member: their per-user
// copies grouped by volume, with club-wide aggregates folded in.
type CatalogPayload struct {
	CurrentVolume             int           `json:"currentVolume"`
	PastVolume                int           `json:"pastVolume"`
	FeaturedImageFallbackURLs []string      `json:"featuredImageFallbackUrls"`
	Volumes                   []VolumeGroup `json:"volumes"`
	CurrentBooks              []BookView    `json:"currentBooks"`
	PastBooks                 []BookView    `json:"pastBooks"`
	PastVolumes               []VolumeGroup `json:"pastVolumes"`
	OtherBooks                []BookView    `json:"otherBooks"`
}

// Meeting is one scheduled discussion, deduplicated per book identity.
type Meeting struct {
	ID       string  `json:"id"`
	Volume   int     `json:"volume"`
	Title    string  `json:"title"`
	Author   string  `json:"author"`
	StartsAt string  `json:"startsAt"`
	Location *string `json:"location"`
}

// MemberSummary is a roster entry for an approved member.
type MemberSummary struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Role            Role      `json:"role"`
	ProfileImageURL *string   `json:"profileImageUrl"`
	CreatedAt       time.Time `json:"createdAt"`
	CommentsCount   int       `json:"commentsCount"`
}

// MemberDetail extends the roster entry with reading stats.
type MemberDetail struct {
	MemberSummary
	BooksRead int `json:"booksRead"`
}

// MemberComment is one of a member's recent comments, resolved to the
// viewer's copy of the book when the viewer has one.
type MemberComment struct {
	ID           string  `json:"id"`
	Text         string  `json:"text"`
	CreatedAt    string  `json:"createdAt"`
	BookID       string  `json:"bookId"`
	BookTitle    string  `json:"bookTitle"`
	BookAuthor   string  `json:"bookAuthor"`
	Volume       int     `json:"volume"`
	ViewerBookID *string `json:"viewerBookId"`
}

// MemberProfile is the profile payload for a single member.
type MemberProfile struct {
	Member         MemberDetail    `json:"member"`
	RecentComments []MemberComment `json:"recentComments"`
}

// DashboardStats summarizes club activity. Book counts are identity
// counts, not per-member row counts.
type DashboardStats struct {
	BooksRead          int `json:"booksRead"`
	ActiveMembers      int `json:"activeMembers"`
	Discussions        int `json:"discussions"`
	UpcomingEvents     int `json:"upcomingEvents"`
	CurrentVolumeBooks int `json:"currentVolumeBooks"`
}

// DashboardPayload is the club-wide dashboard.
type DashboardPayload struct {
	Stats    DashboardStats  `json:"stats"`
	Members  []MemberSummary `json:"members"`
	Schedule []Meeting       `json:"schedule"`
}
