package postgres

import (
	"context"
	"errors"

	"github.com/and161185/chat-directory/internal/errs"
	"github.com/and161185/chat-directory/internal/model"
	"github.com/and161185/chat-directory/internal/repository"
	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
)

// UserRepo implements UserRepository using PostgreSQL.
type UserRepo struct{ db *DB }

// NewUserRepo constructs a user repository.
func NewUserRepo(db *DB) *UserRepo { return &UserRepo{db: db} }

var _ repository.UserRepository = (*UserRepo)(nil)

const userColumns = `id, username, full_name, email, COALESCE(profile_picture_ref, ''), created_at`

func scanUser(row pgx.Row) (model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Username, &u.FullName, &u.Email, &u.ProfilePictureRef, &u.CreatedAt)
	return u, err
}

// Create inserts a new user row.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	const q = `
INSERT INTO users (id, username, full_name, email, profile_picture_ref)
VALUES ($1, $2, $3, $4, NULLIF($5, ''))`
	_, err := r.db.Pool.Exec(ctx, q, u.ID, u.Username, u.FullName, u.Email, u.ProfilePictureRef)
	if isUniqueViolation(err) {
		return errs.ErrAlreadyExists
	}
	return err
}

// GetByID selects a user by ID.
func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE id=$1`
	u, err := scanUser(r.db.Pool.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// SearchPrefix runs a range scan over usernames. The "C" collation compares
// UTF-8 bytes, which is code-point order, and lets the planner use the
// username_c index.
func (r *UserRepo) SearchPrefix(ctx context.Context, prefix string) ([]model.User, error) {
	const bounded = `
SELECT ` + userColumns + `
FROM users
WHERE username COLLATE "C" >= $1 AND username COLLATE "C" < $2
ORDER BY username COLLATE "C"`
	const open = `
SELECT ` + userColumns + `
FROM users
WHERE username COLLATE "C" >= $1
ORDER BY username COLLATE "C"`

	var (
		rows pgx.Rows
		err  error
	)
	if hi, ok := repository.PrefixUpperBound(prefix); ok {
		rows, err = r.db.Pool.Query(ctx, bounded, prefix, hi)
	} else {
		rows, err = r.db.Pool.Query(ctx, open, prefix)
	}
	if err != nil {
		return nil, err
	}
	return collectUsers(rows)
}

// ListAllExcept returns all users but the excluded one.
func (r *UserRepo) ListAllExcept(ctx context.Context, excluded uuid.UUID) ([]model.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE id <> $1`
	rows, err := r.db.Pool.Query(ctx, q, excluded)
	if err != nil {
		return nil, err
	}
	return collectUsers(rows)
}

// UpdateProfilePictureRef sets profile_picture_ref of a single row.
func (r *UserRepo) UpdateProfilePictureRef(ctx context.Context, id uuid.UUID, ref string) error {
	const q = `
UPDATE users
SET profile_picture_ref = NULLIF($2, ''), updated_at = now()
WHERE id = $1`
	tag, err := r.db.Pool.Exec(ctx, q, id, ref)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

func collectUsers(rows pgx.Rows) ([]model.User, error) {
	defer rows.Close()

	out := []model.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}
