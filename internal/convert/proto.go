// Package convert maps domain entities to and from the protobuf well-known
// types carried by the directory gRPC API.
package convert

import (
	"fmt"
	"time"

	"github.com/and161185/chat-directory/internal/model"
	u "github.com/gofrs/uuid/v5"
	"google.golang.org/protobuf/types/known/structpb"
)

// Field names shared by server and client.
const (
	FieldID                = "id"
	FieldUsername          = "username"
	FieldFullName          = "full_name"
	FieldEmail             = "email"
	FieldProfilePictureRef = "profile_picture_ref"
	FieldCreatedAt         = "created_at"
	FieldUser              = "user"
	FieldUsers             = "users"
	FieldPrefix            = "prefix"
	FieldCounterpart       = "counterpart"
	FieldPreview           = "preview"
	FieldLastMessageAt     = "last_message_at"
	FieldHasMessage        = "has_message"
	FieldConversations     = "conversations"
	FieldState             = "state"
	FieldRef               = "ref"
)

// --- helpers ---

func ts(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTS(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}

func str(s *structpb.Struct, key string) string {
	return s.GetFields()[key].GetStringValue()
}

func list(s *structpb.Struct, key string) ([]*structpb.Struct, error) {
	v, ok := s.GetFields()[key]
	if !ok {
		return nil, nil
	}
	lv, ok := v.GetKind().(*structpb.Value_ListValue)
	if !ok {
		return nil, fmt.Errorf("%s: not a list", key)
	}
	out := make([]*structpb.Struct, 0, len(lv.ListValue.GetValues()))
	for i, it := range lv.ListValue.GetValues() {
		st := it.GetStructValue()
		if st == nil {
			return nil, fmt.Errorf("%s[%d]: not an object", key, i)
		}
		out = append(out, st)
	}
	return out, nil
}

func structList(items []*structpb.Struct) *structpb.Value {
	vals := make([]*structpb.Value, 0, len(items))
	for _, it := range items {
		vals = append(vals, structpb.NewStructValue(it))
	}
	return structpb.NewListValue(&structpb.ListValue{Values: vals})
}

// --- requests ---

// SearchRequest builds the SearchUsers request.
func SearchRequest(prefix string) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		FieldPrefix: structpb.NewStringValue(prefix),
	}}
}

// PrefixFromRequest extracts the search prefix; a missing field reads as "".
func PrefixFromRequest(in *structpb.Struct) string {
	return str(in, FieldPrefix)
}

// GetUserRequest builds the GetUser request.
func GetUserRequest(id u.UUID) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		FieldID: structpb.NewStringValue(id.String()),
	}}
}

// IDFromRequest parses the id field of a request.
func IDFromRequest(in *structpb.Struct) (u.UUID, error) {
	var id u.UUID
	if err := id.UnmarshalText([]byte(str(in, FieldID))); err != nil {
		return u.Nil, fmt.Errorf("invalid id: %w", err)
	}
	return id, nil
}

// --- users ---

// ToStructUser converts a directory record to its wire form.
func ToStructUser(usr model.User) *structpb.Struct {
	f := map[string]*structpb.Value{
		FieldID:       structpb.NewStringValue(usr.ID.String()),
		FieldUsername: structpb.NewStringValue(usr.Username),
		FieldFullName: structpb.NewStringValue(usr.FullName),
		FieldEmail:    structpb.NewStringValue(usr.Email),
	}
	if usr.ProfilePictureRef != "" {
		f[FieldProfilePictureRef] = structpb.NewStringValue(usr.ProfilePictureRef)
	}
	if c := ts(usr.CreatedAt); c != "" {
		f[FieldCreatedAt] = structpb.NewStringValue(c)
	}
	return &structpb.Struct{Fields: f}
}

// FromStructUser parses a wire user.
func FromStructUser(in *structpb.Struct) (model.User, error) {
	if in == nil {
		return model.User{}, fmt.Errorf("nil user")
	}
	id, err := IDFromRequest(in)
	if err != nil {
		return model.User{}, err
	}
	created, err := parseTS(str(in, FieldCreatedAt))
	if err != nil {
		return model.User{}, fmt.Errorf("invalid created_at: %w", err)
	}
	return model.User{
		ID:                id,
		Username:          str(in, FieldUsername),
		FullName:          str(in, FieldFullName),
		Email:             str(in, FieldEmail),
		ProfilePictureRef: str(in, FieldProfilePictureRef),
		CreatedAt:         created,
	}, nil
}

// UserResponse wraps a single user.
func UserResponse(usr model.User) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		FieldUser: structpb.NewStructValue(ToStructUser(usr)),
	}}
}

// FromUserResponse unwraps a GetUser response.
func FromUserResponse(in *structpb.Struct) (model.User, error) {
	return FromStructUser(in.GetFields()[FieldUser].GetStructValue())
}

// UsersResponse wraps a list of users preserving order.
func UsersResponse(us []model.User) *structpb.Struct {
	items := make([]*structpb.Struct, 0, len(us))
	for _, usr := range us {
		items = append(items, ToStructUser(usr))
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{FieldUsers: structList(items)}}
}

// FromUsersResponse unwraps a SearchUsers response.
func FromUsersResponse(in *structpb.Struct) ([]model.User, error) {
	items, err := list(in, FieldUsers)
	if err != nil {
		return nil, err
	}
	out := make([]model.User, 0, len(items))
	for i, it := range items {
		usr, err := FromStructUser(it)
		if err != nil {
			return nil, fmt.Errorf("user[%d]: %w", i, err)
		}
		out = append(out, usr)
	}
	return out, nil
}

// --- conversations ---

// ToStructSummary converts a conversation summary to its wire form.
func ToStructSummary(s model.ConversationSummary) *structpb.Struct {
	f := map[string]*structpb.Value{
		FieldCounterpart: structpb.NewStructValue(ToStructUser(s.Counterpart)),
		FieldPreview:     structpb.NewStringValue(s.PreviewText),
		FieldHasMessage:  structpb.NewBoolValue(s.HasMessage),
	}
	if at := ts(s.LastMessageAt); at != "" {
		f[FieldLastMessageAt] = structpb.NewStringValue(at)
	}
	return &structpb.Struct{Fields: f}
}

// ConversationsResponse wraps summaries preserving order.
func ConversationsResponse(list []model.ConversationSummary) *structpb.Struct {
	items := make([]*structpb.Struct, 0, len(list))
	for _, s := range list {
		items = append(items, ToStructSummary(s))
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{FieldConversations: structList(items)}}
}

// FromConversationsResponse unwraps a ListConversations response.
func FromConversationsResponse(in *structpb.Struct) ([]model.ConversationSummary, error) {
	items, err := list(in, FieldConversations)
	if err != nil {
		return nil, err
	}
	out := make([]model.ConversationSummary, 0, len(items))
	for i, it := range items {
		cp, err := FromStructUser(it.GetFields()[FieldCounterpart].GetStructValue())
		if err != nil {
			return nil, fmt.Errorf("conversation[%d]: %w", i, err)
		}
		at, err := parseTS(str(it, FieldLastMessageAt))
		if err != nil {
			return nil, fmt.Errorf("conversation[%d]: invalid last_message_at: %w", i, err)
		}
		out = append(out, model.ConversationSummary{
			Counterpart:   cp,
			PreviewText:   str(it, FieldPreview),
			LastMessageAt: at,
			HasMessage:    it.GetFields()[FieldHasMessage].GetBoolValue(),
		})
	}
	return out, nil
}

// --- profile picture ---

// ProfileResponse reports the terminal state of an upload and the committed ref.
func ProfileResponse(state, ref string) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		FieldState: structpb.NewStringValue(state),
		FieldRef:   structpb.NewStringValue(ref),
	}}
}

// FromProfileResponse returns state and ref of an UpdateProfilePicture response.
func FromProfileResponse(in *structpb.Struct) (state, ref string) {
	return str(in, FieldState), str(in, FieldRef)
}
