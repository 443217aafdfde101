package memory

import (
	"context"
	"sync"

	"github.com/and161185/chat-directory/internal/model"
	"github.com/and161185/chat-directory/internal/repository"
	"github.com/gofrs/uuid/v5"
)

type pair [2]uuid.UUID

func pairOf(a, b uuid.UUID) pair {
	if a.String() > b.String() {
		a, b = b, a
	}
	return pair{a, b}
}

// MessageLog remembers the latest message per unordered pair of users.
type MessageLog struct {
	mu   sync.RWMutex
	last map[pair]model.LastMessage
}

var _ repository.MessageHistory = (*MessageLog)(nil)

// NewMessageLog returns an empty log.
func NewMessageLog() *MessageLog {
	return &MessageLog{last: map[pair]model.LastMessage{}}
}

// Record stores m as the latest message between a and b unless a newer one is known.
func (l *MessageLog) Record(a, b uuid.UUID, m model.LastMessage) {
	l.mu.Lock()
	defer l.mu.Unlock()

	k := pairOf(a, b)
	if cur, ok := l.last[k]; ok && cur.At.After(m.At) {
		return
	}
	l.last[k] = m
}

// LastMessage implements repository.MessageHistory.
func (l *MessageLog) LastMessage(ctx context.Context, a, b uuid.UUID) (model.LastMessage, bool, error) {
	if err := ctx.Err(); err != nil {
		return model.LastMessage{}, false, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()

	m, ok := l.last[pairOf(a, b)]
	return m, ok, nil
}
