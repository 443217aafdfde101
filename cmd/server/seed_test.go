package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/and161185/chat-directory/internal/errs"
	"github.com/and161185/chat-directory/internal/repository/memory"
	"github.com/and161185/chat-directory/internal/service"
)

func writeSeed(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestSeed_MemoryBackends(t *testing.T) {
	t.Parallel()

	path := writeSeed(t, "seed.yaml", `
users:
  - username: alice
    full_name: Alice Liddell
    email: alice@example.com
  - username: alex
  - id: 6ba7b810-9dad-11d1-80b4-00c04fd430c8
    username: bob
messages:
  - from: alice
    to: bob
    body: see you tomorrow
    at: "2024-05-01T10:00:00Z"
`)
	f, err := loadSeed(path)
	require.NoError(t, err)

	ctx := context.Background()
	dir := service.NewDirectoryService(memory.NewUserRepo())
	msgs := memory.NewMessageLog()
	users, messages, err := applySeed(ctx, f, dir, msgs)
	require.NoError(t, err)
	require.Equal(t, 3, users)
	require.Equal(t, 1, messages)

	found, err := dir.Search(ctx, "al")
	require.NoError(t, err)
	require.Len(t, found, 2)
	require.Equal(t, "alex", found[0].Username)
	require.Equal(t, "Alice Liddell", found[1].FullName)
	alice := found[1]

	bob, err := dir.Search(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, bob, 1)
	require.Equal(t, "6ba7b810-9dad-11d1-80b4-00c04fd430c8", bob[0].ID.String())

	m, ok, err := msgs.LastMessage(ctx, bob[0].ID, alice.ID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "see you tomorrow", m.Body)
	require.True(t, m.At.Equal(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)))
}

func TestSeed_JSON(t *testing.T) {
	t.Parallel()

	path := writeSeed(t, "seed.json", `{"users":[{"username":"carol","email":"c@example.com"}]}`)
	f, err := loadSeed(path)
	require.NoError(t, err)
	require.Len(t, f.Users, 1)
	require.Equal(t, "c@example.com", f.Users[0].Email)
}

func TestSeed_Errors(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	newDir := func() service.DirectoryService { return service.NewDirectoryService(memory.NewUserRepo()) }

	_, err := loadSeed(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	cases := map[string]*seedFile{
		"bad id":           {Users: []seedUser{{ID: "nope", Username: "a"}}},
		"empty username":   {Users: []seedUser{{Username: " "}}},
		"unknown sender":   {Users: []seedUser{{Username: "a"}}, Messages: []seedMessage{{From: "zed", To: "a", Body: "hi"}}},
		"bad message time": {Users: []seedUser{{Username: "a"}, {Username: "b"}}, Messages: []seedMessage{{From: "a", To: "b", At: "yesterday"}}},
	}
	for name, f := range cases {
		_, _, err := applySeed(ctx, f, newDir(), memory.NewMessageLog())
		require.ErrorIs(t, err, errs.ErrInvalidInput, name)
	}

	dup := &seedFile{Users: []seedUser{{Username: "a"}, {Username: "a"}}}
	_, _, err = applySeed(ctx, dup, newDir(), memory.NewMessageLog())
	require.ErrorIs(t, err, errs.ErrAlreadyExists)

	// messages need somewhere to go
	withMsg := &seedFile{Users: []seedUser{{Username: "a"}, {Username: "b"}}, Messages: []seedMessage{{From: "a", To: "b", Body: "hi"}}}
	users, _, err := applySeed(ctx, withMsg, newDir(), nil)
	require.ErrorIs(t, err, errs.ErrInvalidInput)
	require.Equal(t, 2, users)
}
