package grpcserver

import (
	"context"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

func makeJWT(t *testing.T, sub string, key []byte, method jwt.SigningMethod, iat time.Time, ttl time.Duration) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   sub,
		IssuedAt:  jwt.NewNumericDate(iat),
		NotBefore: jwt.NewNumericDate(iat),
		ExpiresAt: jwt.NewNumericDate(iat.Add(ttl)),
	}
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func jwtFor(t *testing.T, sub string, key []byte, ttl time.Duration) string {
	t.Helper()
	return makeJWT(t, sub, key, jwt.SigningMethodHS256, time.Now().UTC().Add(-5*time.Second), ttl)
}

func ctxWithAuth(token string) context.Context {
	return metadata.NewIncomingContext(context.Background(),
		metadata.Pairs("authorization", "Bearer "+token))
}

func Test_bearerTokenFromMD_OkAndErrors(t *testing.T) {
	t.Parallel()

	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("authorization", "Bearer abc.def.ghi"))
	got, err := bearerTokenFromMD(ctx)
	require.NoError(t, err)
	require.Equal(t, "abc.def.ghi", got)

	ctx = metadata.NewIncomingContext(context.Background(), metadata.Pairs("authorization", "Basic foo"))
	_, err = bearerTokenFromMD(ctx)
	require.Error(t, err, "non-bearer")

	ctx = metadata.NewIncomingContext(context.Background(), metadata.Pairs("authorization", "Bearer   "))
	_, err = bearerTokenFromMD(ctx)
	require.Error(t, err, "empty token")

	_, err = bearerTokenFromMD(context.Background())
	require.Error(t, err, "no metadata")
}

func Test_bearerTokenFromMD_MultipleHeaders_CaseInsensitive_Spaces(t *testing.T) {
	t.Parallel()

	md := metadata.New(nil)
	md.Append("authorization", "Basic foo")
	md.Append("authorization", "  bearer   tok.part.sig   ")
	got, err := bearerTokenFromMD(metadata.NewIncomingContext(context.Background(), md))
	require.NoError(t, err)
	require.Equal(t, "tok.part.sig", got)
}

func Test_userIDFromCtx(t *testing.T) {
	t.Parallel()

	key := []byte("secret")
	a := NewAuthenticator(key)
	sub := uuid.Must(uuid.NewV4()).String()
	now := time.Now().UTC()

	id, err := a.userIDFromCtx(ctxWithAuth(makeJWT(t, sub, key, jwt.SigningMethodHS256, now.Add(-time.Minute), 10*time.Minute)))
	require.NoError(t, err)
	require.Equal(t, sub, id.String())

	bad := map[string]string{
		"expired":     makeJWT(t, sub, key, jwt.SigningMethodHS256, now.Add(-2*time.Hour), time.Hour),
		"bad subject": makeJWT(t, "not-a-uuid", key, jwt.SigningMethodHS256, now, time.Hour),
		"nil subject": makeJWT(t, uuid.Nil.String(), key, jwt.SigningMethodHS256, now, time.Hour),
		"wrong alg":   makeJWT(t, sub, key, jwt.SigningMethodHS384, now, time.Hour),
		"wrong key":   makeJWT(t, sub, []byte("other"), jwt.SigningMethodHS256, now, time.Hour),
		"nbf future":  makeJWT(t, sub, key, jwt.SigningMethodHS256, now.Add(10*time.Minute), time.Hour),
		"garbage":     "this-is-not-a-jwt",
	}
	for name, tok := range bad {
		_, err := a.userIDFromCtx(ctxWithAuth(tok))
		require.Error(t, err, name)
	}

	_, err = a.userIDFromCtx(context.Background())
	require.Error(t, err, "missing metadata")
}

func Test_userIDFromCtx_LeewayAllowsSmallClockSkew(t *testing.T) {
	t.Parallel()

	key := []byte("k")
	a := NewAuthenticator(key)
	sub := uuid.Must(uuid.NewV4()).String()
	now := time.Now().UTC()
	claims := jwt.RegisteredClaims{
		Subject:   sub,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now.Add(10 * time.Second)),
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute)),
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
	require.NoError(t, err)

	_, err = a.userIDFromCtx(ctxWithAuth(tok))
	require.NoError(t, err)
}

func TestAuthUnary(t *testing.T) {
	t.Parallel()

	key := []byte("secret")
	a := NewAuthenticator(key)
	ic := a.AuthUnary()
	want := uuid.Must(uuid.NewV4())

	var seen uuid.UUID
	h := func(ctx context.Context, _ any) (any, error) {
		seen, _ = UserIDFromCtx(ctx)
		return "ok", nil
	}

	_, err := ic(ctxWithAuth(jwtFor(t, want.String(), key, time.Hour)), nil, &grpc.UnaryServerInfo{FullMethod: SearchUsersMethod}, h)
	require.NoError(t, err)
	require.Equal(t, want, seen)

	_, err = ic(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: SearchUsersMethod}, h)
	require.Equal(t, codes.Unauthenticated, status.Code(err))

	// health checks bypass authentication
	_, err = ic(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}, h)
	require.NoError(t, err)
}

type ctxStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s ctxStream) Context() context.Context { return s.ctx }

func TestAuthStream(t *testing.T) {
	t.Parallel()

	key := []byte("secret")
	ic := NewAuthenticator(key).AuthStream()
	want := uuid.Must(uuid.NewV4())
	info := &grpc.StreamServerInfo{FullMethod: UpdateProfilePictureMethod, IsClientStream: true}

	var seen uuid.UUID
	h := func(_ any, ss grpc.ServerStream) error {
		seen, _ = UserIDFromCtx(ss.Context())
		return nil
	}

	require.NoError(t, ic(nil, ctxStream{ctx: ctxWithAuth(jwtFor(t, want.String(), key, time.Hour))}, info, h))
	require.Equal(t, want, seen)

	err := ic(nil, ctxStream{ctx: context.Background()}, info, h)
	require.Equal(t, codes.Unauthenticated, status.Code(err))
}
