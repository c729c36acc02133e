// Package repository declares the storage ports the services depend on.
//
// Users, Reviews and Favorites are three independent stores. Nothing here
// offers a transaction spanning them; callers that touch more than one store
// do so as a sequence of separate writes.
package repository

import (
	"context"

	"github.com/sakif/game-reviews/internal/model"
)

// UserRepository persists identity records.
//
// Create returns an apperror.ErrConflict error when the email is taken.
// GetByID, GetByEmail and Delete return apperror.ErrNotFound for a missing row.
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	List(ctx context.Context) ([]model.User, error)
	Update(ctx context.Context, id string, upd UserUpdate) (UpdateResult, error)
	Delete(ctx context.Context, id string) error
}

// ReviewRepository persists reviews. Author is a plain back-reference.
type ReviewRepository interface {
	Create(ctx context.Context, review *model.Review) error
	ListByAuthor(ctx context.Context, author string) ([]model.Review, error)
	ListByGame(ctx context.Context, game string) ([]model.Review, error)
	Delete(ctx context.Context, id string) error
}

// FavoriteRepository persists the one-per-user favourites list.
type FavoriteRepository interface {
	Create(ctx context.Context, fav *model.Favorite) error
	GetByUser(ctx context.Context, userID string) (*model.Favorite, error)
	AddGame(ctx context.Context, userID, game string) error
	DeleteByUser(ctx context.Context, userID string) error
}

// UpdateResult mirrors what a SQL server reports for an UPDATE: how many rows
// the WHERE clause matched, and how many of those actually had a value change.
type UpdateResult struct {
	Matched int64
	Changed int64
}

// UserUpdate is a partial update. Nil fields are left untouched.
// There is intentionally no field for request-only inputs (password
// confirmation, CSRF token, admin marker): they cannot reach storage.
type UserUpdate struct {
	Email        *string
	Username     *string
	FullName     *string
	PasswordHash *string
	Role         *model.Role
}

// IsEmpty reports whether the update sets nothing.
func (u UserUpdate) IsEmpty() bool {
	return u.Email == nil && u.Username == nil && u.FullName == nil &&
		u.PasswordHash == nil && u.Role == nil
}

// Differs reports whether applying u to current would change any stored value.
func (u UserUpdate) Differs(current *model.User) bool {
	switch {
	case u.Email != nil && *u.Email != current.Email:
		return true
	case u.Username != nil && *u.Username != current.Username:
		return true
	case u.FullName != nil && *u.FullName != current.FullName:
		return true
	case u.PasswordHash != nil && *u.PasswordHash != current.PasswordHash:
		return true
	case u.Role != nil && *u.Role != current.Role:
		return true
	}
	return false
}
