// Package model defines the data structures used throughout the application.
package model

import "time"

// Role is the privilege level of a User. Exactly two values exist.
type Role string

const (
	RoleUser  Role = "User"
	RoleAdmin Role = "Admin"
)

// IsValid reports whether r is one of the two known roles.
func (r Role) IsValid() bool {
	return r == RoleUser || r == RoleAdmin
}

// User is the stored identity record.
//
// PasswordHash carries json:"-" so an accidental json.Marshal of a User never
// leaks it, but code that renders users outward should still go through
// Public(): a PublicUser has no hash field at all, so there is nothing to leak.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Username     string    `json:"username"`
	FullName     string    `json:"fullName"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// PublicUser is the sanitized view of a User: admin listings, profile pages
// and the session all carry this type.
type PublicUser struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Username  string    `json:"username"`
	FullName  string    `json:"fullName"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Public strips the password hash.
func (u User) Public() PublicUser {
	return PublicUser{
		ID:        u.ID,
		Email:     u.Email,
		Username:  u.Username,
		FullName:  u.FullName,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

// IsAdmin is a convenience for role checks in handlers and middleware.
func (u PublicUser) IsAdmin() bool {
	return u.Role == RoleAdmin
}
