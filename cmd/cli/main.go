// Command chatdir is a CLI client for the directory service.
package main

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	grpcserver "github.com/and161185/chat-directory/internal/server/grpc"
	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/pflag"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// ---- config/token store ----

type tokenFile struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func cfgDir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "chatdir")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "chatdir")
}

func tokenPath() string { return filepath.Join(cfgDir(), "token.json") }

func saveToken(tok string, exp time.Time) error {
	if err := os.MkdirAll(cfgDir(), 0o700); err != nil {
		return err
	}
	f, err := os.OpenFile(tokenPath(), os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(tokenFile{AccessToken: tok, ExpiresAt: exp})
}

// loadToken prefers CHATDIR_TOKEN over the saved token.
func loadToken() (string, error) {
	if v := strings.TrimSpace(os.Getenv("CHATDIR_TOKEN")); v != "" {
		return v, nil
	}
	b, err := os.ReadFile(tokenPath())
	if err != nil {
		return "", errors.New("no token (run login)")
	}
	var tf tokenFile
	if err := json.Unmarshal(b, &tf); err != nil {
		return "", err
	}
	if tf.AccessToken == "" || time.Now().After(tf.ExpiresAt) {
		return "", errors.New("no valid token (login required)")
	}
	return tf.AccessToken, nil
}

// tokenExpiry reads exp without verifying the signature; the server does that.
func tokenExpiry(tok string) (time.Time, string, error) {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(tok, &claims); err != nil {
		return time.Time{}, "", fmt.Errorf("parse token: %w", err)
	}
	exp := time.Now().Add(15 * time.Minute)
	if claims.ExpiresAt != nil {
		exp = claims.ExpiresAt.Time
	}
	return exp, claims.Subject, nil
}

// ---- grpc dial ----

type bearerCreds struct {
	token  string
	secure bool
}

func (b bearerCreds) GetRequestMetadata(context.Context, ...string) (map[string]string, error) {
	return map[string]string{"authorization": "Bearer " + b.token}, nil
}
func (b bearerCreds) RequireTransportSecurity() bool { return b.secure }

type dialOptions struct {
	addr      string
	caPath    string
	insecure  bool
	plaintext bool
}

func loadTLS(caPath string, insecure bool) (credentials.TransportCredentials, error) {
	if insecure {
		return credentials.NewTLS(&tls.Config{InsecureSkipVerify: true}), nil
	}
	if caPath == "" {
		return credentials.NewClientTLSFromCert(nil, ""), nil
	}
	pem, err := os.ReadFile(caPath)
	if err != nil {
		return nil, err
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, errors.New("bad CA cert")
	}
	return credentials.NewTLS(&tls.Config{RootCAs: pool}), nil
}

func dial(o dialOptions, bearer string) (*grpc.ClientConn, error) {
	var creds credentials.TransportCredentials
	if o.plaintext {
		creds = insecure.NewCredentials()
	} else {
		c, err := loadTLS(o.caPath, o.insecure)
		if err != nil {
			return nil, err
		}
		creds = c
	}
	opts := []grpc.DialOption{grpc.WithTransportCredentials(creds)}
	if bearer != "" {
		opts = append(opts, grpc.WithPerRPCCredentials(bearerCreds{token: bearer, secure: !o.plaintext}))
	}
	return grpc.NewClient(o.addr, opts...)
}

// directoryClient is the subset of grpcserver.Client used by the commands.
type directoryClient interface {
	SearchUsers(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	GetUser(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	ListConversations(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error)
	UpdateProfilePicture(ctx context.Context, opts ...grpc.CallOption) (grpcserver.PictureUploadClient, error)
}

// ---- main ----

var (
	version   = "dev"
	buildDate = "unknown"
)

func usage(w io.Writer, fs *pflag.FlagSet) {
	fmt.Fprintf(w, `chatdir CLI
Usage:
  chatdir [--addr HOST:PORT] [--cacert file | --insecure | --plaintext] [--json] <cmd> [args]

Commands:
  version
  login   --token <jwt>        (saves token; CHATDIR_TOKEN overrides)
  search  <prefix>             users whose username starts with prefix
  user    <uuid>               show one user
  conversations                 list conversations, most recent first
  avatar  <file|->             upload a new profile picture

Flags:
%s`, fs.FlagUsages())
}

// main dispatches subcommands and configures TLS/auth for RPC calls.
func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := pflag.NewFlagSet("chatdir", pflag.ContinueOnError)
	fs.SetInterspersed(false)
	fs.SetOutput(io.Discard)
	var o dialOptions
	fs.StringVar(&o.addr, "addr", "localhost:8443", "server addr")
	fs.StringVar(&o.caPath, "cacert", "", "CA cert (PEM)")
	fs.BoolVar(&o.insecure, "insecure", false, "skip cert verify (dev)")
	fs.BoolVar(&o.plaintext, "plaintext", false, "no TLS (dev)")
	asJSON := fs.Bool("json", false, "print JSON")
	timeout := fs.Duration("timeout", 30*time.Second, "request timeout")

	if err := fs.Parse(args); err != nil {
		if !errors.Is(err, pflag.ErrHelp) {
			fmt.Fprintln(stderr, err)
		}
		usage(stderr, fs)
		return 2
	}
	if fs.NArg() < 1 {
		usage(stderr, fs)
		return 2
	}
	cmd, rest := fs.Arg(0), fs.Args()[1:]

	switch cmd {
	case "version":
		fmt.Fprintf(stdout, "chatdir %s (%s)\n", version, buildDate)
		return 0
	case "login":
		return report(stderr, cmdLogin(rest, stdout))
	case "search", "user", "conversations", "avatar":
	default:
		usage(stderr, fs)
		return 2
	}

	token, err := loadToken()
	if err != nil {
		return report(stderr, err)
	}
	conn, err := dial(o, token)
	if err != nil {
		return report(stderr, err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	out := newPrinter(stdout, *asJSON)
	cli := grpcserver.NewClient(conn)
	return report(stderr, dispatch(ctx, cli, out, cmd, rest))
}

func dispatch(ctx context.Context, cli directoryClient, out *printer, cmd string, args []string) error {
	switch cmd {
	case "search":
		return cmdSearch(ctx, cli, out, args)
	case "user":
		return cmdUser(ctx, cli, out, args)
	case "conversations":
		return cmdConversations(ctx, cli, out)
	case "avatar":
		return cmdAvatar(ctx, cli, out, args)
	}
	return fmt.Errorf("unknown command %q", cmd)
}

// ---- helpers ----

func report(w io.Writer, err error) int {
	if err == nil {
		return 0
	}
	if s, ok := status.FromError(err); ok {
		fmt.Fprintf(w, "rpc error: code=%s msg=%s\n", s.Code(), s.Message())
		return 1
	}
	fmt.Fprintln(w, err)
	return 1
}
