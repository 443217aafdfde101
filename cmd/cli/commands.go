package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/and161185/chat-directory/internal/convert"
	u "github.com/gofrs/uuid/v5"
	"github.com/spf13/pflag"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// chunkSize is the payload of one upload message.
const chunkSize = 32 << 10

func cmdLogin(args []string, stdout io.Writer) error {
	fs := pflag.NewFlagSet("login", pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	token := fs.String("token", "", "session token issued by the account service")
	if err := fs.Parse(args); err != nil {
		return err
	}
	tok := strings.TrimSpace(*token)
	if tok == "" {
		return errors.New("need --token")
	}
	exp, sub, err := tokenExpiry(tok)
	if err != nil {
		return err
	}
	if err := saveToken(tok, exp); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "ok (user %s, expires %s)\n", sub, exp.UTC().Format("2006-01-02 15:04"))
	return nil
}

func cmdSearch(ctx context.Context, cli directoryClient, out *printer, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: search <prefix>")
	}
	resp, err := cli.SearchUsers(ctx, convert.SearchRequest(args[0]))
	if err != nil {
		return err
	}
	users, err := convert.FromUsersResponse(resp)
	if err != nil {
		return err
	}
	return out.users(users)
}

func cmdUser(ctx context.Context, cli directoryClient, out *printer, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: user <uuid>")
	}
	id, err := u.FromString(args[0])
	if err != nil {
		return fmt.Errorf("bad id: %w", err)
	}
	resp, err := cli.GetUser(ctx, convert.GetUserRequest(id))
	if err != nil {
		return err
	}
	usr, err := convert.FromUserResponse(resp)
	if err != nil {
		return err
	}
	return out.user(usr)
}

func cmdConversations(ctx context.Context, cli directoryClient, out *printer) error {
	resp, err := cli.ListConversations(ctx)
	if err != nil {
		return err
	}
	list, err := convert.FromConversationsResponse(resp)
	if err != nil {
		return err
	}
	return out.conversations(list)
}

func openInput(p string) (io.ReadCloser, error) {
	if p == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	return os.Open(p)
}

func cmdAvatar(ctx context.Context, cli directoryClient, out *printer, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: avatar <file|->")
	}
	in, err := openInput(args[0])
	if err != nil {
		return err
	}
	defer in.Close()
	return uploadPicture(ctx, cli, out, in)
}

func uploadPicture(ctx context.Context, cli directoryClient, out *printer, r io.Reader) error {
	stream, err := cli.UpdateProfilePicture(ctx)
	if err != nil {
		return err
	}

	buf := make([]byte, chunkSize)
	for {
		n, rerr := r.Read(buf)
		if n > 0 {
			// the server may reject early; its status arrives with CloseAndRecv
			if err := stream.Send(wrapperspb.Bytes(append([]byte(nil), buf[:n]...))); err != nil {
				if errors.Is(err, io.EOF) {
					break
				}
				return err
			}
		}
		if errors.Is(rerr, io.EOF) {
			break
		}
		if rerr != nil {
			return fmt.Errorf("read picture: %w", rerr)
		}
	}

	resp, err := stream.CloseAndRecv()
	if err != nil {
		return err
	}
	state, ref := convert.FromProfileResponse(resp)
	return out.profile(state, ref)
}
