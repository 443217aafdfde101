package main

import (
	"context"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/spf13/viper"

	"github.com/and161185/chat-directory/internal/errs"
	"github.com/and161185/chat-directory/internal/model"
	"github.com/and161185/chat-directory/internal/repository/memory"
	"github.com/and161185/chat-directory/internal/service"
)

// seedFile is the content of --seed. Messages refer to users by username.
//
//	users:
//	  - username: alice
//	    full_name: Alice Liddell
//	messages:
//	  - from: alice
//	    to: bob
//	    body: see you
//	    at: "2024-05-01T10:00:00Z"
type seedFile struct {
	Users    []seedUser    `mapstructure:"users"`
	Messages []seedMessage `mapstructure:"messages"`
}

type seedUser struct {
	ID                string `mapstructure:"id"`
	Username          string `mapstructure:"username"`
	FullName          string `mapstructure:"full_name"`
	Email             string `mapstructure:"email"`
	ProfilePictureRef string `mapstructure:"profile_picture_ref"`
}

type seedMessage struct {
	From string `mapstructure:"from"`
	To   string `mapstructure:"to"`
	Body string `mapstructure:"body"`
	At   string `mapstructure:"at"`
}

func loadSeed(path string) (*seedFile, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read seed %s: %w", path, err)
	}
	var f seedFile
	if err := v.Unmarshal(&f); err != nil {
		return nil, fmt.Errorf("decode seed %s: %w", path, err)
	}
	return &f, nil
}

// applySeed creates the users through the directory and records the
// messages in msgs. msgs may be nil only when the file has no messages.
func applySeed(ctx context.Context, f *seedFile, dir service.DirectoryService, msgs *memory.MessageLog) (users, messages int, err error) {
	ids := make(map[string]uuid.UUID, len(f.Users))
	for _, su := range f.Users {
		u := &model.User{
			Username:          su.Username,
			FullName:          su.FullName,
			Email:             su.Email,
			ProfilePictureRef: su.ProfilePictureRef,
		}
		if su.ID != "" {
			id, err := uuid.FromString(su.ID)
			if err != nil {
				return users, 0, fmt.Errorf("seed user %q: bad id: %w", su.Username, errs.ErrInvalidInput)
			}
			u.ID = id
		}
		created, err := dir.Create(ctx, u)
		if err != nil {
			return users, 0, fmt.Errorf("seed user %q: %w", su.Username, err)
		}
		ids[created.Username] = created.ID
		users++
	}

	if len(f.Messages) > 0 && msgs == nil {
		return users, 0, fmt.Errorf("seed messages require the memory history backend: %w", errs.ErrInvalidInput)
	}
	for i, sm := range f.Messages {
		from, ok := ids[sm.From]
		to, ok2 := ids[sm.To]
		if !ok || !ok2 {
			return users, messages, fmt.Errorf("seed message %d: unknown user %q or %q: %w", i, sm.From, sm.To, errs.ErrInvalidInput)
		}
		m := model.LastMessage{Body: sm.Body}
		if sm.At != "" {
			at, err := time.Parse(time.RFC3339Nano, sm.At)
			if err != nil {
				return users, messages, fmt.Errorf("seed message %d: bad time %q: %w", i, sm.At, errs.ErrInvalidInput)
			}
			m.At = at
		}
		msgs.Record(from, to, m)
		messages++
	}
	return users, messages, nil
}
