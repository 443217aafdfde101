package media

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/and161185/chat-directory/internal/errs"
	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/require"
)

func newLocal(t *testing.T, max int64) (*LocalStore, string) {
	t.Helper()
	dir := t.TempDir()
	s, err := NewLocalStore(dir, "http://localhost:8080/media/", max)
	require.NoError(t, err)
	return s, dir
}

func readAll(t *testing.T, rc io.ReadCloser) string {
	t.Helper()
	defer rc.Close()
	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	return string(b)
}

func TestLocalStore_PutGetDelete(t *testing.T) {
	t.Parallel()

	s, _ := newLocal(t, 0)
	ctx := context.Background()
	k := Key{OwnerID: uuid.Must(uuid.NewV4()), Slot: "profile"}

	url1, err := s.Put(ctx, k, strings.NewReader("first"))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(url1, "http://localhost:8080/media/"+k.OwnerID.String()+"/profile?v="))
	require.Equal(t, "first", readAll(t, mustGet(t, s, k)))

	url2, err := s.Put(ctx, k, strings.NewReader("second"))
	require.NoError(t, err)
	require.NotEqual(t, url1, url2, "content version must change with content")
	require.Equal(t, "second", readAll(t, mustGet(t, s, k)))

	require.NoError(t, s.Delete(ctx, k))
	_, err = s.Get(ctx, k)
	require.ErrorIs(t, err, errs.ErrNotFound)
	require.NoError(t, s.Delete(ctx, k), "delete is idempotent")
}

func mustGet(t *testing.T, s Store, k Key) io.ReadCloser {
	t.Helper()
	rc, err := s.Get(context.Background(), k)
	require.NoError(t, err)
	return rc
}

type failingReader struct{ after int }

func (f *failingReader) Read(p []byte) (int, error) {
	if f.after <= 0 {
		return 0, errors.New("disk on fire")
	}
	n := min(len(p), f.after)
	for i := range p[:n] {
		p[i] = 'x'
	}
	f.after -= n
	return n, nil
}

func TestLocalStore_FailedPut_KeepsPreviousObject(t *testing.T) {
	t.Parallel()

	s, dir := newLocal(t, 0)
	ctx := context.Background()
	k := Key{OwnerID: uuid.Must(uuid.NewV4()), Slot: "profile"}

	_, err := s.Put(ctx, k, strings.NewReader("old"))
	require.NoError(t, err)

	_, err = s.Put(ctx, k, &failingReader{after: 10})
	require.Error(t, err)
	require.Equal(t, "old", readAll(t, mustGet(t, s, k)))

	entries, err := os.ReadDir(filepath.Join(dir, KeyPrefix, k.OwnerID.String()))
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp file must be cleaned up")
}

func TestLocalStore_MaxBytes(t *testing.T) {
	t.Parallel()

	s, _ := newLocal(t, 4)
	k := Key{OwnerID: uuid.Must(uuid.NewV4()), Slot: "profile"}

	_, err := s.Put(context.Background(), k, strings.NewReader("12345"))
	require.ErrorIs(t, err, errs.ErrInvalidInput)
	_, err = s.Get(context.Background(), k)
	require.ErrorIs(t, err, errs.ErrNotFound)

	_, err = s.Put(context.Background(), k, strings.NewReader("1234"))
	require.NoError(t, err)
}

func TestLocalStore_EmptyPayload(t *testing.T) {
	t.Parallel()

	s, dir := newLocal(t, 0)
	ctx := context.Background()
	k := Key{OwnerID: uuid.Must(uuid.NewV4()), Slot: "profile"}

	_, err := s.Put(ctx, k, strings.NewReader(""))
	require.ErrorIs(t, err, errs.ErrInvalidInput)
	require.ErrorIs(t, err, ErrEmptyPayload)
	_, err = s.Get(ctx, k)
	require.ErrorIs(t, err, errs.ErrNotFound)

	// an existing picture survives an empty upload
	_, err = s.Put(ctx, k, strings.NewReader("old"))
	require.NoError(t, err)
	_, err = s.Put(ctx, k, bytes.NewReader(nil))
	require.ErrorIs(t, err, errs.ErrInvalidInput)
	require.Equal(t, "old", readAll(t, mustGet(t, s, k)))

	entries, err := os.ReadDir(filepath.Join(dir, KeyPrefix, k.OwnerID.String()))
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp file must be cleaned up")
}

func TestLocalStore_CanceledContext(t *testing.T) {
	t.Parallel()

	s, _ := newLocal(t, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	k := Key{OwnerID: uuid.Must(uuid.NewV4()), Slot: "profile"}

	_, err := s.Put(ctx, k, bytes.NewReader([]byte("data")))
	require.ErrorIs(t, err, context.Canceled)
	_, err = s.Get(context.Background(), k)
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestKey_Validate(t *testing.T) {
	t.Parallel()

	id := uuid.Must(uuid.NewV4())
	require.NoError(t, Key{OwnerID: id, Slot: "profile"}.Validate())
	require.ErrorIs(t, Key{Slot: "profile"}.Validate(), errs.ErrInvalidInput)
	require.ErrorIs(t, Key{OwnerID: id, Slot: "../etc"}.Validate(), errs.ErrInvalidInput)
	require.ErrorIs(t, Key{OwnerID: id}.Validate(), errs.ErrInvalidInput)
	require.Equal(t, "profilePictures/"+id.String()+"/profile", Key{OwnerID: id, Slot: "profile"}.Path())
}
