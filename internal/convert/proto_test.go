package convert

import (
	"testing"
	"time"

	"github.com/and161185/chat-directory/internal/model"
	u "github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"
)

func mustUUID(t *testing.T, s string) u.UUID {
	t.Helper()
	id, err := u.FromString(s)
	require.NoError(t, err)
	return id
}

func TestUsersResponse_PreservesOrderAndFields(t *testing.T) {
	t.Parallel()

	created := time.Date(2024, 3, 1, 10, 0, 0, 123, time.UTC)
	in := []model.User{
		{ID: mustUUID(t, "11111111-1111-1111-1111-111111111111"), Username: "alex", FullName: "Alex A", Email: "alex@x", CreatedAt: created},
		{ID: mustUUID(t, "22222222-2222-2222-2222-222222222222"), Username: "alice", ProfilePictureRef: "https://cdn/p?v=ab"},
	}

	got, err := FromUsersResponse(UsersResponse(in))
	require.NoError(t, err)
	require.Equal(t, in, got)

	// absent ref and zero time are omitted on the wire
	w := ToStructUser(in[1])
	_, hasCreated := w.GetFields()[FieldCreatedAt]
	require.False(t, hasCreated)
	_, hasRef := ToStructUser(in[0]).GetFields()[FieldProfilePictureRef]
	require.False(t, hasRef)
}

func TestUsersResponse_Empty(t *testing.T) {
	t.Parallel()

	got, err := FromUsersResponse(UsersResponse(nil))
	require.NoError(t, err)
	require.Empty(t, got)

	got, err = FromUsersResponse(&structpb.Struct{})
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestFromUsersResponse_Malformed(t *testing.T) {
	t.Parallel()

	notList := &structpb.Struct{Fields: map[string]*structpb.Value{FieldUsers: structpb.NewStringValue("x")}}
	_, err := FromUsersResponse(notList)
	require.Error(t, err)

	badID := UsersResponse([]model.User{{Username: "a"}})
	badID.GetFields()[FieldUsers].GetListValue().GetValues()[0].GetStructValue().GetFields()[FieldID] = structpb.NewStringValue("nope")
	_, err = FromUsersResponse(badID)
	require.ErrorContains(t, err, "user[0]")
}

func TestUserResponse(t *testing.T) {
	t.Parallel()

	usr := model.User{ID: mustUUID(t, "33333333-3333-3333-3333-333333333333"), Username: "bob"}
	got, err := FromUserResponse(UserResponse(usr))
	require.NoError(t, err)
	require.Equal(t, usr, got)

	_, err = FromUserResponse(&structpb.Struct{})
	require.Error(t, err)
}

func TestConversationsResponse(t *testing.T) {
	t.Parallel()

	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	in := []model.ConversationSummary{
		{Counterpart: model.User{ID: mustUUID(t, "44444444-4444-4444-4444-444444444444"), Username: "carol"}, PreviewText: "hi...", LastMessageAt: at, HasMessage: true},
		{Counterpart: model.User{ID: mustUUID(t, "55555555-5555-5555-5555-555555555555"), Username: "dave"}, PreviewText: "No messages yet"},
	}
	got, err := FromConversationsResponse(ConversationsResponse(in))
	require.NoError(t, err)
	require.Equal(t, in, got)
}

func TestRequests(t *testing.T) {
	t.Parallel()

	require.Equal(t, "al", PrefixFromRequest(SearchRequest("al")))
	require.Equal(t, "", PrefixFromRequest(&structpb.Struct{}))

	id := mustUUID(t, "66666666-6666-6666-6666-666666666666")
	got, err := IDFromRequest(GetUserRequest(id))
	require.NoError(t, err)
	require.Equal(t, id, got)

	_, err = IDFromRequest(&structpb.Struct{})
	require.Error(t, err)

	state, ref := FromProfileResponse(ProfileResponse("committed", "https://x"))
	require.Equal(t, "committed", state)
	require.Equal(t, "https://x", ref)
}
