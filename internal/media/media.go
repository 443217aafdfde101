// Package media stores binary objects such as profile pictures, keyed by
// owner and slot, and resolves them to URLs that renderers can fetch.
package media

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"regexp"

	"github.com/and161185/chat-directory/internal/errs"
	"github.com/gofrs/uuid/v5"
	"golang.org/x/crypto/blake2b"
)

// KeyPrefix is the top-level folder of every stored object.
const KeyPrefix = "profilePictures"

var slotRe = regexp.MustCompile(`^[a-z0-9_-]{1,64}$`)

// Key addresses one object. Writing to an existing key replaces the object.
type Key struct {
	OwnerID uuid.UUID
	Slot    string
}

// Validate checks that the key can be mapped onto a storage path.
func (k Key) Validate() error {
	if k.OwnerID == uuid.Nil {
		return fmt.Errorf("media key: empty owner: %w", errs.ErrInvalidInput)
	}
	if !slotRe.MatchString(k.Slot) {
		return fmt.Errorf("media key: bad slot %q: %w", k.Slot, errs.ErrInvalidInput)
	}
	return nil
}

// Path is the object path relative to the store root.
func (k Key) Path() string {
	return KeyPrefix + "/" + k.OwnerID.String() + "/" + k.Slot
}

// Store is a binary object store with atomic per-object writes.
type Store interface {
	// Put streams r into the object at k, replacing any previous object, and
	// returns a URL for the new content. Readers never see a partial object.
	Put(ctx context.Context, k Key, r io.Reader) (string, error)
	// Get opens the object at k. errs.ErrNotFound when absent.
	Get(ctx context.Context, k Key) (io.ReadCloser, error)
	// Delete removes the object at k. Deleting a missing object is not an error.
	Delete(ctx context.Context, k Key) error
	// URL returns the location of the object at k without a content version.
	URL(k Key) string
}

// versionedURL appends the content version so caches drop an overwritten image.
func versionedURL(base string, sum []byte) string {
	return base + "?v=" + hex.EncodeToString(sum[:8])
}

func newHash() hash.Hash {
	h, err := blake2b.New256(nil)
	if err != nil {
		// only fails for oversized keys
		panic(err)
	}
	return h
}

// ctxReader fails reads once ctx is done so long uploads honour deadlines.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := errs.ContextErr(c.ctx); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

// limitedReader reports errTooLarge instead of a silent EOF past max bytes
// (no limit when max <= 0) and ErrEmptyPayload when the source ends before
// yielding a byte.
type limitedReader struct {
	r   io.Reader
	n   int64
	max int64
}

func (l *limitedReader) Read(p []byte) (int, error) {
	if l.max > 0 && l.n > l.max {
		return 0, errTooLarge(l.max)
	}
	n, err := l.r.Read(p)
	l.n += int64(n)
	if l.max > 0 && l.n > l.max {
		return n, errTooLarge(l.max)
	}
	if l.n == 0 && errors.Is(err, io.EOF) {
		return 0, ErrEmptyPayload
	}
	return n, err
}

// ErrEmptyPayload rejects an upload without a single byte.
var ErrEmptyPayload = fmt.Errorf("empty payload: %w", errs.ErrInvalidInput)

func errTooLarge(max int64) error {
	return fmt.Errorf("payload exceeds %d bytes: %w", max, errs.ErrInvalidInput)
}

// source wraps the caller's reader with deadline, size limit and hashing.
func source(ctx context.Context, r io.Reader, max int64, h hash.Hash) io.Reader {
	return io.TeeReader(&limitedReader{r: ctxReader{ctx: ctx, r: r}, max: max}, h)
}
