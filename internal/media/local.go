package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/and161185/chat-directory/internal/errs"
)

// LocalStore keeps objects on the local filesystem. Objects are written to a
// temporary file in the target directory and renamed into place, so a reader
// sees either the old or the new object.
type LocalStore struct {
	basePath string
	baseURL  string
	maxBytes int64
}

var _ Store = (*LocalStore)(nil)

// NewLocalStore creates the base directory if needed. baseURL is the public
// prefix under which the media HTTP handler serves objects.
func NewLocalStore(basePath, baseURL string, maxBytes int64) (*LocalStore, error) {
	if basePath == "" {
		basePath = "./data/media"
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create base path: %w", err)
	}
	return &LocalStore{
		basePath: basePath,
		baseURL:  strings.TrimRight(baseURL, "/"),
		maxBytes: maxBytes,
	}, nil
}

func (s *LocalStore) file(k Key) string {
	return filepath.Join(s.basePath, filepath.FromSlash(k.Path()))
}

// Put writes the object atomically and returns its versioned URL.
func (s *LocalStore) Put(ctx context.Context, k Key, r io.Reader) (url string, err error) {
	if err := k.Validate(); err != nil {
		return "", err
	}
	dst := s.file(k)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", fmt.Errorf("create directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+k.Slot+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	h := newHash()
	if _, err = io.Copy(tmp, source(ctx, r, s.maxBytes, h)); err != nil {
		return "", fmt.Errorf("write object: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		return "", fmt.Errorf("sync object: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return "", fmt.Errorf("close object: %w", err)
	}
	if err = errs.ContextErr(ctx); err != nil {
		return "", err
	}
	if err = os.Rename(tmp.Name(), dst); err != nil {
		return "", fmt.Errorf("publish object: %w", err)
	}
	return versionedURL(s.URL(k), h.Sum(nil)), nil
}

// Get opens the stored file.
func (s *LocalStore) Get(ctx context.Context, k Key) (io.ReadCloser, error) {
	if err := k.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(s.file(k))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errs.ErrNotFound
		}
		return nil, fmt.Errorf("open object: %w", err)
	}
	return f, nil
}

// Delete removes the stored file.
func (s *LocalStore) Delete(ctx context.Context, k Key) error {
	if err := k.Validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Remove(s.file(k)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}

// URL returns baseURL/<owner>/<slot>.
func (s *LocalStore) URL(k Key) string {
	return s.baseURL + "/" + k.OwnerID.String() + "/" + k.Slot
}
