// Package service contains the application services: the user directory,
// the profile picture update coordinator and the conversation index.
package service

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/and161185/chat-directory/internal/errs"
	"github.com/and161185/chat-directory/internal/model"
	"github.com/and161185/chat-directory/internal/repository"
	"github.com/gofrs/uuid/v5"
)

// DirectoryService answers user lookups and prefix searches.
type DirectoryService interface {
	// Search returns users whose username starts with prefix, ascending by
	// code point. A blank prefix yields an empty result.
	Search(ctx context.Context, prefix string) ([]model.User, error)
	// ListAllExcept returns every user but excluded, unordered.
	ListAllExcept(ctx context.Context, excluded uuid.UUID) ([]model.User, error)
	// Get returns a single user.
	Get(ctx context.Context, id uuid.UUID) (*model.User, error)
	// UpdateProfilePictureRef commits a new picture reference for one user.
	UpdateProfilePictureRef(ctx context.Context, id uuid.UUID, ref string) error
	// Create provisions a user record on behalf of the account system.
	Create(ctx context.Context, u *model.User) (*model.User, error)
}

type DirectoryServiceImpl struct {
	users repository.UserRepository
}

// NewDirectoryService constructs DirectoryService over a user repository.
func NewDirectoryService(users repository.UserRepository) *DirectoryServiceImpl {
	return &DirectoryServiceImpl{users: users}
}

// Search matches exact code points; no trimming and no case folding is
// applied to a non-blank prefix.
func (s *DirectoryServiceImpl) Search(ctx context.Context, prefix string) ([]model.User, error) {
	if strings.TrimSpace(prefix) == "" {
		return []model.User{}, nil
	}
	if !utf8.ValidString(prefix) {
		return nil, fmt.Errorf("search: prefix is not valid UTF-8: %w", errs.ErrInvalidInput)
	}
	users, err := s.users.SearchPrefix(ctx, prefix)
	if err != nil {
		return nil, errs.Classify("search users", err)
	}
	return users, nil
}

// ListAllExcept delegates to the repository.
func (s *DirectoryServiceImpl) ListAllExcept(ctx context.Context, excluded uuid.UUID) ([]model.User, error) {
	users, err := s.users.ListAllExcept(ctx, excluded)
	if err != nil {
		return nil, errs.Classify("list users", err)
	}
	return users, nil
}

// Get fetches a user by id.
func (s *DirectoryServiceImpl) Get(ctx context.Context, id uuid.UUID) (*model.User, error) {
	if id == uuid.Nil {
		return nil, fmt.Errorf("get user: empty id: %w", errs.ErrInvalidInput)
	}
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, errs.Classify("get user", err)
	}
	return u, nil
}

// UpdateProfilePictureRef writes the reference; ErrNotFound if the user is gone.
func (s *DirectoryServiceImpl) UpdateProfilePictureRef(ctx context.Context, id uuid.UUID, ref string) error {
	if id == uuid.Nil {
		return fmt.Errorf("update picture ref: empty id: %w", errs.ErrInvalidInput)
	}
	if err := s.users.UpdateProfilePictureRef(ctx, id, ref); err != nil {
		return errs.Classify("update picture ref", err)
	}
	return nil
}

// Create validates and stores a new user, assigning an id when missing.
func (s *DirectoryServiceImpl) Create(ctx context.Context, u *model.User) (*model.User, error) {
	if u == nil || strings.TrimSpace(u.Username) == "" {
		return nil, fmt.Errorf("create user: empty username: %w", errs.ErrInvalidInput)
	}
	if !utf8.ValidString(u.Username) {
		return nil, fmt.Errorf("create user: username is not valid UTF-8: %w", errs.ErrInvalidInput)
	}
	cpy := *u
	if cpy.ID == uuid.Nil {
		id, err := uuid.NewV4()
		if err != nil {
			return nil, err
		}
		cpy.ID = id
	}
	if err := s.users.Create(ctx, &cpy); err != nil {
		return nil, errs.Classify("create user", err)
	}
	return &cpy, nil
}
