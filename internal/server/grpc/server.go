// Package grpcserver exposes the directory gRPC API handlers.
package grpcserver

import (
	"context"
	"errors"
	"io"

	"github.com/and161185/chat-directory/internal/convert"
	"github.com/and161185/chat-directory/internal/errs"
	"github.com/and161185/chat-directory/internal/service"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// Server wires services into gRPC handlers.
type Server struct {
	dir     service.DirectoryService
	convs   service.ConversationService
	profile service.ProfileService
	log     *zap.Logger
}

var _ DirectoryServer = (*Server)(nil)

// New constructs a gRPC server with injected services.
func New(dir service.DirectoryService, convs service.ConversationService, profile service.ProfileService, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{dir: dir, convs: convs, profile: profile, log: log}
}

// statusFor maps a service error onto a gRPC status.
func statusFor(op string, err error) error {
	code := codes.Internal
	switch errs.Kind(err) {
	case errs.ErrPartialFailure:
		code = codes.Aborted
	case errs.ErrTimeout:
		code = codes.DeadlineExceeded
	case errs.ErrNotFound:
		code = codes.NotFound
	case errs.ErrInvalidInput:
		code = codes.InvalidArgument
	case errs.ErrStoreFailure:
		code = codes.Unavailable
	case errs.ErrUnauthorized:
		code = codes.Unauthenticated
	case errs.ErrAlreadyExists:
		code = codes.AlreadyExists
	default:
		if errors.Is(err, context.Canceled) {
			code = codes.Canceled
		}
	}
	return status.Errorf(code, "%s: %v", op, err)
}

// SearchUsers returns users whose username starts with the given prefix.
func (s *Server) SearchUsers(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if _, ok := UserIDFromCtx(ctx); !ok {
		return nil, status.Error(codes.Unauthenticated, "no auth")
	}
	users, err := s.dir.Search(ctx, convert.PrefixFromRequest(req))
	if err != nil {
		return nil, statusFor("search", err)
	}
	return convert.UsersResponse(users), nil
}

// GetUser returns a single directory record.
func (s *Server) GetUser(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if _, ok := UserIDFromCtx(ctx); !ok {
		return nil, status.Error(codes.Unauthenticated, "no auth")
	}
	id, err := convert.IDFromRequest(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "bad id")
	}
	u, err := s.dir.Get(ctx, id)
	if err != nil {
		return nil, statusFor("get user", err)
	}
	return convert.UserResponse(*u), nil
}

// ListConversations lists the caller's conversations.
func (s *Server) ListConversations(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	viewer, ok := UserIDFromCtx(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "no auth")
	}
	list, err := s.convs.ListFor(ctx, viewer)
	if err != nil {
		return nil, statusFor("list conversations", err)
	}
	return convert.ConversationsResponse(list), nil
}

// UpdateProfilePicture streams the uploaded chunks into the profile
// coordinator and replies with the terminal state.
func (s *Server) UpdateProfilePicture(stream PictureUploadServer) error {
	ctx := stream.Context()
	viewer, ok := UserIDFromCtx(ctx)
	if !ok {
		return status.Error(codes.Unauthenticated, "no auth")
	}

	pr, pw := io.Pipe()
	go func() {
		for {
			chunk, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				_ = pw.Close()
				return
			}
			if err != nil {
				_ = pw.CloseWithError(recvErr(ctx, err))
				return
			}
			if _, err := pw.Write(chunk.GetValue()); err != nil {
				return
			}
		}
	}()

	res, err := s.profile.UpdatePicture(ctx, viewer, pr)
	_ = pr.CloseWithError(io.ErrClosedPipe)
	if err != nil {
		s.log.Info("profile picture not updated",
			zap.String("user", viewer.String()),
			zap.Stringer("state", res.State),
			zap.Error(err),
		)
		return statusFor("update profile picture", err)
	}
	return stream.SendAndClose(convert.ProfileResponse(res.State.String(), res.Ref))
}

// recvErr turns a Recv failure caused by the end of the call into the
// matching context error, so a stalled upload is reported as a timeout.
func recvErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return errs.ContextErr(ctx)
	}
	switch status.Code(err) {
	case codes.DeadlineExceeded:
		return context.DeadlineExceeded
	case codes.Canceled:
		return context.Canceled
	}
	return err
}
