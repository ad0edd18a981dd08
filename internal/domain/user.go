package domain

import "time"

// Role determines what a member is allowed to do.
type Role string

const (
	RoleMember Role = "member"
	RoleAdmin  Role = "admin"
)

// User is a club member. New accounts start unapproved; an unapproved
// member still owns a full catalog copy, but their comments and ratings
// stay invisible to the rest of the club until an admin approves them.
type User struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Email           string    `json:"email"`
	PasswordHash    string    `json:"-"`
	Role            Role      `json:"role"`
	IsApproved      bool      `json:"isApproved"`
	ProfileImageURL *string   `json:"profileImageUrl"`
	CreatedAt       time.Time `json:"createdAt"`
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
