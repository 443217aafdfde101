// Package redishistory reads last-message previews that the messaging
// transport mirrors into Redis hashes.
//
// Layout: one hash per unordered pair of users at
// "<prefix>:<lowerID>:<higherID>" with fields "body" and "at"
// (RFC 3339 with nanoseconds). A missing key means no message yet.
package redishistory

import (
	"context"
	"fmt"
	"time"

	"github.com/and161185/chat-directory/internal/model"
	"github.com/and161185/chat-directory/internal/repository"
	"github.com/gofrs/uuid/v5"
	"github.com/redis/go-redis/v9"
)

// DefaultKeyPrefix is used when no prefix is configured.
const DefaultKeyPrefix = "chat:last"

// hashReader is the part of redis.Cmdable the adapter needs.
type hashReader interface {
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
}

// History implements repository.MessageHistory on top of Redis.
type History struct {
	rdb    hashReader
	prefix string
}

var _ repository.MessageHistory = (*History)(nil)

// New wraps a Redis client.
func New(rdb redis.Cmdable, prefix string) *History {
	return newWithReader(rdb, prefix)
}

func newWithReader(rdb hashReader, prefix string) *History {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &History{rdb: rdb, prefix: prefix}
}

// Key returns the hash key holding the last message of the pair.
func (h *History) Key(a, b uuid.UUID) string {
	x, y := a.String(), b.String()
	if x > y {
		x, y = y, x
	}
	return h.prefix + ":" + x + ":" + y
}

// LastMessage implements repository.MessageHistory.
func (h *History) LastMessage(ctx context.Context, a, b uuid.UUID) (model.LastMessage, bool, error) {
	fields, err := h.rdb.HGetAll(ctx, h.Key(a, b)).Result()
	if err != nil {
		return model.LastMessage{}, false, err
	}
	if len(fields) == 0 {
		return model.LastMessage{}, false, nil
	}
	m := model.LastMessage{Body: fields["body"]}
	if raw := fields["at"]; raw != "" {
		at, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return model.LastMessage{}, false, fmt.Errorf("parse %q of %s: %w", raw, h.Key(a, b), err)
		}
		m.At = at
	}
	return m, true, nil
}
