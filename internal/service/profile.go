package service

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/and161185/chat-directory/internal/errs"
	"github.com/and161185/chat-directory/internal/media"
	"github.com/and161185/chat-directory/internal/model"
	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"
)

// ProfileState is a step of the profile picture update.
//
//	Idle -> Uploading -> Committing -> Committed
//	           |             |
//	           v             v
//	     UploadFailed   CommitFailed
type ProfileState int

const (
	StateIdle ProfileState = iota
	StateUploading
	StateCommitting
	StateCommitted
	StateUploadFailed
	StateCommitFailed
)

func (s ProfileState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateUploading:
		return "uploading"
	case StateCommitting:
		return "committing"
	case StateCommitted:
		return "committed"
	case StateUploadFailed:
		return "upload_failed"
	case StateCommitFailed:
		return "commit_failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether no further transition can happen.
func (s ProfileState) Terminal() bool {
	return s == StateCommitted || s == StateUploadFailed || s == StateCommitFailed
}

// ProfileUpdateResult is the outcome of one UpdatePicture call.
type ProfileUpdateResult struct {
	State ProfileState
	Ref   string // URL returned by the media store; set from Committing on
}

// CommitError reports that the picture was uploaded but the directory was
// not updated. It matches errs.ErrPartialFailure only: the cause is kept in
// Cause and is not part of the unwrap chain.
type CommitError struct {
	UserID uuid.UUID
	Ref    string
	Cause  error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("profile picture of %s uploaded but not applied: %v", e.UserID, e.Cause)
}

func (e *CommitError) Unwrap() error { return errs.ErrPartialFailure }

// TransitionFunc observes state changes of UpdatePicture.
type TransitionFunc func(userID uuid.UUID, from, to ProfileState)

// ProfileService changes profile pictures.
type ProfileService interface {
	// UpdatePicture stores the image read from r and then points the user's
	// record at it. It runs at most once and never retries.
	UpdatePicture(ctx context.Context, userID uuid.UUID, r io.Reader) (ProfileUpdateResult, error)
}

type ProfileServiceImpl struct {
	dir            DirectoryService
	store          media.Store
	log            *zap.Logger
	onTransition   TransitionFunc
	cleanupTimeout time.Duration
}

// ProfileOption customizes ProfileServiceImpl.
type ProfileOption func(*ProfileServiceImpl)

// WithTransitionHook registers fn to be called on every state change.
func WithTransitionHook(fn TransitionFunc) ProfileOption {
	return func(s *ProfileServiceImpl) { s.onTransition = fn }
}

// WithCleanupTimeout bounds the best-effort orphan delete.
func WithCleanupTimeout(d time.Duration) ProfileOption {
	return func(s *ProfileServiceImpl) {
		if d > 0 {
			s.cleanupTimeout = d
		}
	}
}

// NewProfileService wires the coordinator to its collaborators.
func NewProfileService(dir DirectoryService, store media.Store, log *zap.Logger, opts ...ProfileOption) *ProfileServiceImpl {
	if log == nil {
		log = zap.NewNop()
	}
	s := &ProfileServiceImpl{dir: dir, store: store, log: log, cleanupTimeout: 10 * time.Second}
	for _, o := range opts {
		o(s)
	}
	return s
}

type profileRun struct {
	s      *ProfileServiceImpl
	userID uuid.UUID
	res    ProfileUpdateResult
}

func (r *profileRun) move(to ProfileState) {
	from := r.res.State
	r.res.State = to
	r.s.log.Debug("profile picture update",
		zap.String("user", r.userID.String()),
		zap.Stringer("from", from),
		zap.Stringer("to", to),
	)
	if r.s.onTransition != nil {
		r.s.onTransition(r.userID, from, to)
	}
}

// UpdatePicture uploads first and commits second, so the directory never
// references an object that was not stored. A failed commit leaves an
// orphan, which is deleted on a best-effort basis.
func (s *ProfileServiceImpl) UpdatePicture(ctx context.Context, userID uuid.UUID, r io.Reader) (ProfileUpdateResult, error) {
	run := &profileRun{s: s, userID: userID, res: ProfileUpdateResult{State: StateIdle}}
	if userID == uuid.Nil || r == nil {
		return run.res, fmt.Errorf("update picture: empty user id or payload: %w", errs.ErrInvalidInput)
	}
	key := media.Key{OwnerID: userID, Slot: model.ProfileSlot}

	run.move(StateUploading)
	ref, err := s.store.Put(ctx, key, r)
	if err != nil {
		run.move(StateUploadFailed)
		return run.res, errs.Classify("upload profile picture", err)
	}
	run.res.Ref = ref

	run.move(StateCommitting)
	if err := s.dir.UpdateProfilePictureRef(ctx, userID, ref); err != nil {
		run.move(StateCommitFailed)
		s.removeOrphan(ctx, key)
		return run.res, &CommitError{UserID: userID, Ref: ref, Cause: err}
	}

	run.move(StateCommitted)
	s.log.Info("profile picture updated", zap.String("user", userID.String()), zap.String("ref", ref))
	return run.res, nil
}

// removeOrphan runs even when the caller's context is already done; its
// failure only costs storage and is never reported.
func (s *ProfileServiceImpl) removeOrphan(ctx context.Context, key media.Key) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cleanupTimeout)
	defer cancel()
	if err := s.store.Delete(cctx, key); err != nil {
		s.log.Warn("orphaned profile picture not removed",
			zap.String("user", key.OwnerID.String()),
			zap.String("path", key.Path()),
			zap.Error(err),
		)
		return
	}
	s.log.Info("orphaned profile picture removed", zap.String("user", key.OwnerID.String()))
}
