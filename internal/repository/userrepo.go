// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"

	"github.com/and161185/chat-directory/internal/model"
	"github.com/gofrs/uuid/v5"
)

// UserRepository provides access to the user directory.
type UserRepository interface {
	// Create inserts a new user.
	Create(ctx context.Context, u *model.User) error
	// GetByID loads a user by ID.
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	// SearchPrefix returns users whose username starts with prefix, ascending by code point.
	SearchPrefix(ctx context.Context, prefix string) ([]model.User, error)
	// ListAllExcept returns every user but the excluded one, in no particular order.
	ListAllExcept(ctx context.Context, excluded uuid.UUID) ([]model.User, error)
	// UpdateProfilePictureRef replaces the picture reference of a single user.
	UpdateProfilePictureRef(ctx context.Context, id uuid.UUID, ref string) error
}
