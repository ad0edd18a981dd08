package domain

import "time"

// Comment is a member's comment on a book. Replies reference their parent
// comment; deleting a comment removes its whole reply subtree.
type Comment struct {
	ID              string    `json:"id"`
	UserID          string    `json:"userId"`
	BookID          string    `json:"bookId"`
	ParentCommentID *string   `json:"parentCommentId"`
	Text            string    `json:"text"`
	CreatedAt       time.Time `json:"createdAt"`
}

// CommentLikes summarizes like state for one comment as seen by a viewer.
type CommentLikes struct {
	Count       int  `json:"count"`
	LikedByUser bool `json:"likedByUser"`
}
