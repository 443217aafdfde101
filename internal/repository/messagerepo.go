package repository

import (
	"context"

	"github.com/and161185/chat-directory/internal/model"
	"github.com/gofrs/uuid/v5"
)

// MessageHistory is the read side of the messaging transport.
type MessageHistory interface {
	// LastMessage returns the most recent message between a and b in either
	// direction. ok is false when the pair never exchanged a message.
	LastMessage(ctx context.Context, a, b uuid.UUID) (msg model.LastMessage, ok bool, err error)
}
