package memory

import (
	"context"
	"testing"
	"time"

	"github.com/and161185/chat-directory/internal/model"
	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/require"
)

func TestMessageLog(t *testing.T) {
	t.Parallel()

	a, b, c := uuid.Must(uuid.NewV4()), uuid.Must(uuid.NewV4()), uuid.Must(uuid.NewV4())
	t0 := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	l := NewMessageLog()
	l.Record(a, b, model.LastMessage{Body: "first", At: t0})
	l.Record(b, a, model.LastMessage{Body: "reply", At: t0.Add(time.Minute)})
	l.Record(a, b, model.LastMessage{Body: "late delivery", At: t0.Add(-time.Hour)})

	for _, pair := range [][2]uuid.UUID{{a, b}, {b, a}} {
		m, ok, err := l.LastMessage(context.Background(), pair[0], pair[1])
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, "reply", m.Body)
	}

	_, ok, err := l.LastMessage(context.Background(), a, c)
	require.NoError(t, err)
	require.False(t, ok)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err = l.LastMessage(ctx, a, b)
	require.ErrorIs(t, err, context.Canceled)
}
