// Package model defines domain entities used by services and repositories.
package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// ProfileSlot is the media slot holding a user's profile picture.
const ProfileSlot = "profile"

// User is a directory record. Accounts are created by an external
// account-lifecycle system; this core reads them and edits the picture ref.
type User struct {
	ID                uuid.UUID // PK, immutable
	Username          string    // unique, search/sort key
	FullName          string
	Email             string
	ProfilePictureRef string    // empty when never set
	CreatedAt         time.Time // maintained by the backing store
}

// HasProfilePicture reports whether a picture reference has been committed.
func (u User) HasProfilePicture() bool { return u.ProfilePictureRef != "" }

// LastMessage is the most recent message exchanged between two users.
type LastMessage struct {
	Body string
	At   time.Time // zero when the source does not know the timestamp
}

// ConversationSummary pairs a counterpart with a preview of the latest message.
type ConversationSummary struct {
	Counterpart   User
	PreviewText   string    // truncated body or placeholder, never blank
	LastMessageAt time.Time // zero when unknown
	HasMessage    bool      // false when PreviewText is the placeholder
}
