package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/and161185/chat-directory/internal/model"
)

// printer renders results as aligned text or JSON.
type printer struct {
	w      io.Writer
	asJSON bool
}

func newPrinter(w io.Writer, asJSON bool) *printer {
	return &printer{w: w, asJSON: asJSON}
}

func (p *printer) json(v any) error {
	enc := json.NewEncoder(p.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

type userRow struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	FullName string `json:"full_name,omitempty"`
	Email    string `json:"email,omitempty"`
	Picture  string `json:"profile_picture,omitempty"`
}

func toRow(usr model.User) userRow {
	return userRow{
		ID:       usr.ID.String(),
		Username: usr.Username,
		FullName: usr.FullName,
		Email:    usr.Email,
		Picture:  usr.ProfilePictureRef,
	}
}

func (p *printer) users(us []model.User) error {
	rows := make([]userRow, 0, len(us))
	for _, usr := range us {
		rows = append(rows, toRow(usr))
	}
	if p.asJSON {
		return p.json(rows)
	}
	if len(rows) == 0 {
		_, err := fmt.Fprintln(p.w, "no users found")
		return err
	}
	tw := tabwriter.NewWriter(p.w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "USERNAME\tFULL NAME\tEMAIL\tID")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Username, r.FullName, r.Email, r.ID)
	}
	return tw.Flush()
}

func (p *printer) user(usr model.User) error {
	if p.asJSON {
		return p.json(toRow(usr))
	}
	picture := usr.ProfilePictureRef
	if picture == "" {
		picture = "-"
	}
	_, err := fmt.Fprintf(p.w, "id=%s\nusername=%s\nfull_name=%s\nemail=%s\npicture=%s\n",
		usr.ID, usr.Username, usr.FullName, usr.Email, picture)
	return err
}

type conversationRow struct {
	With    string `json:"with"`
	UserID  string `json:"user_id"`
	Preview string `json:"preview"`
	At      string `json:"at,omitempty"`
}

func (p *printer) conversations(list []model.ConversationSummary) error {
	rows := make([]conversationRow, 0, len(list))
	for _, s := range list {
		r := conversationRow{With: s.Counterpart.Username, UserID: s.Counterpart.ID.String(), Preview: s.PreviewText}
		if !s.LastMessageAt.IsZero() {
			r.At = s.LastMessageAt.UTC().Format(time.RFC3339)
		}
		rows = append(rows, r)
	}
	if p.asJSON {
		return p.json(rows)
	}
	tw := tabwriter.NewWriter(p.w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "WITH\tLAST MESSAGE\tPREVIEW")
	for _, r := range rows {
		at := r.At
		if at == "" {
			at = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", r.With, at, r.Preview)
	}
	return tw.Flush()
}

func (p *printer) profile(state, ref string) error {
	if p.asJSON {
		return p.json(map[string]string{"state": state, "ref": ref})
	}
	_, err := fmt.Fprintf(p.w, "%s %s\n", state, ref)
	return err
}
