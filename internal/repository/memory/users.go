// Package memory contains in-process implementations of repository interfaces,
// used for local development and as reference behaviour in tests.
package memory

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/and161185/chat-directory/internal/errs"
	"github.com/and161185/chat-directory/internal/model"
	"github.com/and161185/chat-directory/internal/repository"
	"github.com/gofrs/uuid/v5"
)

// UserRepo keeps users in a map plus a username index sorted by code point.
type UserRepo struct {
	mu     sync.RWMutex
	byID   map[uuid.UUID]model.User
	sorted []string // usernames, ascending
	byName map[string]uuid.UUID
	now    func() time.Time
}

var _ repository.UserRepository = (*UserRepo)(nil)

// NewUserRepo returns an empty repository.
func NewUserRepo() *UserRepo {
	return &UserRepo{
		byID:   map[uuid.UUID]model.User{},
		byName: map[string]uuid.UUID{},
		now:    time.Now,
	}
}

// Create inserts a new user; usernames are unique.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[u.ID]; ok {
		return errs.ErrAlreadyExists
	}
	if _, ok := r.byName[u.Username]; ok {
		return errs.ErrAlreadyExists
	}
	cpy := *u
	if cpy.CreatedAt.IsZero() {
		cpy.CreatedAt = r.now()
	}
	r.byID[cpy.ID] = cpy
	r.byName[cpy.Username] = cpy.ID
	i, _ := slices.BinarySearch(r.sorted, cpy.Username)
	r.sorted = slices.Insert(r.sorted, i, cpy.Username)
	return nil
}

// GetByID returns a copy of the stored user.
func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.byID[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return &u, nil
}

// SearchPrefix walks the sorted index from the first name >= prefix.
func (r *UserRepo) SearchPrefix(ctx context.Context, prefix string) ([]model.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []model.User{}
	for i := sort.SearchStrings(r.sorted, prefix); i < len(r.sorted); i++ {
		name := r.sorted[i]
		if !strings.HasPrefix(name, prefix) {
			break
		}
		out = append(out, r.byID[r.byName[name]])
	}
	return out, nil
}

// ListAllExcept returns every user but excluded, in map order.
func (r *UserRepo) ListAllExcept(ctx context.Context, excluded uuid.UUID) ([]model.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.User, 0, len(r.byID))
	for id, u := range r.byID {
		if id != excluded {
			out = append(out, u)
		}
	}
	return out, nil
}

// UpdateProfilePictureRef replaces the picture ref of an existing user.
func (r *UserRepo) UpdateProfilePictureRef(ctx context.Context, id uuid.UUID, ref string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[id]
	if !ok {
		return errs.ErrNotFound
	}
	u.ProfilePictureRef = ref
	r.byID[id] = u
	return nil
}
