package domain

import "time"

// UploadMode controls how an applied reading list treats rows that are
// already in member catalogs.
type UploadMode string

const (
	// UploadModeAppend folds incoming rows into existing ones by identity.
	UploadModeAppend UploadMode = "append"
	// UploadModeReplace clears the touched volumes in every member catalog
	// before applying rows.
	UploadModeReplace UploadMode = "replace"
)

// Valid reports whether the mode is one of the accepted values.
func (m UploadMode) Valid() bool {
	return m == UploadModeAppend || m == UploadModeReplace
}

// ReadingListUpload is the audit record written for each applied list.
// Mode records what happened; besides the upload modes it also takes
// values like "clear" and "backfill" for maintenance operations.
type ReadingListUpload struct {
	ID           string    `json:"id"`
	AdminUserID  string    `json:"adminUserId"`
	Filename     string    `json:"filename"`
	Mode         string    `json:"mode"`
	RowsImported int       `json:"rowsImported"`
	CreatedAt    time.Time `json:"createdAt"`
}

// ApplySummary reports what a reconciliation pass did across every
// member catalog.
type ApplySummary struct {
	UsersAffected int `json:"usersAffected"`
	RowsReceived  int `json:"rowsReceived"`
	BooksInserted int `json:"booksInserted"`
	BooksUpdated  int `json:"booksUpdated"`
}

// FanOutResult reports an admin operation applied to every member's
// copy of one book identity.
type FanOutResult struct {
	UsersAffected int    `json:"usersAffected"`
	BooksUpdated  int    `json:"booksUpdated"`
	Volume        int    `json:"volume"`
	Title         string `json:"title"`
	Author        string `json:"author"`
}

// FeatureResult reports a featured-book fan-out.
type FeatureResult struct {
	UsersAffected   int    `json:"usersAffected"`
	BooksUnfeatured int    `json:"booksUnfeatured"`
	BooksFeatured   int    `json:"booksFeatured"`
	Volume          int    `json:"volume"`
	Title           string `json:"title"`
	Author          string `json:"author"`
}

// ISBNResult reports an ISBN fan-out, including the cover and purchase
// link propagation it triggers.
type ISBNResult struct {
	FanOutResult
	CoversUpdated      int     `json:"coversUpdated"`
	ResourcesUpdated   int     `json:"resourcesUpdated"`
	ISBN               *string `json:"isbn"`
	ThriftBooksURL     *string `json:"thriftBooksUrl"`
	CoverURL           *string `json:"coverUrl"`
	CoverResolved      bool    `json:"coverResolved"`
	CoverSyncAttempted bool    `json:"coverSyncAttempted"`
}

// DeleteResult reports a delete fan-out. FeaturedImageURLs lists the
// distinct featured images the deleted copies pointed at, so orphaned
// uploads can be cleaned up.
type DeleteResult struct {
	UsersAffected     int      `json:"usersAffected"`
	BooksDeleted      int      `json:"booksDeleted"`
	Volume            int      `json:"volume"`
	Title             string   `json:"title"`
	Author            string   `json:"author"`
	FeaturedImageURLs []string `json:"-"`
}

// ClearVolumeResult reports a whole-volume clear across all members.
type ClearVolumeResult struct {
	Volume        int `json:"volume"`
	UsersAffected int `json:"usersAffected"`
	BooksDeleted  int `json:"booksDeleted"`
}
