package postgres

import (
	"context"
	"errors"

	"github.com/and161185/chat-directory/internal/model"
	"github.com/and161185/chat-directory/internal/repository"
	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
)

// MessageRepo reads message history written by the messaging transport.
type MessageRepo struct{ db *DB }

// NewMessageRepo constructs a message history reader.
func NewMessageRepo(db *DB) *MessageRepo { return &MessageRepo{db: db} }

var _ repository.MessageHistory = (*MessageRepo)(nil)

// LastMessage returns the newest message exchanged by a and b in either direction.
func (r *MessageRepo) LastMessage(ctx context.Context, a, b uuid.UUID) (model.LastMessage, bool, error) {
	const q = `
SELECT body, created_at
FROM messages
WHERE (sender_id=$1 AND recipient_id=$2) OR (sender_id=$2 AND recipient_id=$1)
ORDER BY created_at DESC, id DESC
LIMIT 1`
	var m model.LastMessage
	if err := r.db.Pool.QueryRow(ctx, q, a, b).Scan(&m.Body, &m.At); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.LastMessage{}, false, nil
		}
		return model.LastMessage{}, false, err
	}
	return m, true, nil
}
