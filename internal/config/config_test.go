package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/and161185/chat-directory/internal/errs"
	"github.com/and161185/chat-directory/internal/service"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load([]string{"--jwt-key", "k"})
	require.NoError(t, err)

	require.Equal(t, ":8443", cfg.Addr)
	require.Equal(t, BackendPostgres, cfg.DirectoryBackend)
	require.Equal(t, BackendPostgres, cfg.HistoryBackend)
	require.Equal(t, BackendLocal, cfg.Media.Backend)
	require.Equal(t, int64(10<<20), cfg.Media.MaxBytes)
	require.Equal(t, cfg.Media.MaxBytes, cfg.Media.S3.MaxBytes)
	require.Equal(t, service.DefaultWordLimit, cfg.Conversations.WordLimit)
	require.Equal(t, service.DefaultPlaceholder, cfg.Conversations.Placeholder)
	require.Equal(t, service.DefaultLookupConcurrency, cfg.Conversations.Concurrency)
	require.Equal(t, 10*time.Second, cfg.CleanupTimeout)
	require.Equal(t, "chat:last", cfg.Redis.Prefix)
}

func TestLoad_Precedence(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "chatdir.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
jwt_key: from-file
history:
  backend: redis
conversations:
  word_limit: 5
  placeholder: Nenhuma mensagem ainda
media:
  backend: s3
  s3:
    bucket: pictures
`), 0o600))

	t.Setenv("CHATDIR_CONVERSATIONS_WORD_LIMIT", "7")
	t.Setenv("CHATDIR_REDIS_ADDR", "redis:6379")

	cfg, err := Load([]string{"--config", file, "--word-limit", "9"})
	require.NoError(t, err)

	require.Equal(t, "from-file", cfg.JWTKey)
	require.Equal(t, BackendRedis, cfg.HistoryBackend)
	require.Equal(t, "redis:6379", cfg.Redis.Addr)
	require.Equal(t, 9, cfg.Conversations.WordLimit, "flag wins over env and file")
	require.Equal(t, "Nenhuma mensagem ainda", cfg.Conversations.Placeholder)
	require.Equal(t, BackendS3, cfg.Media.Backend)
	require.Equal(t, "pictures", cfg.Media.S3.Bucket)
}

func TestLoad_EnvOverFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "chatdir.json")
	require.NoError(t, os.WriteFile(file, []byte(`{"jwt_key":"k","conversations":{"word_limit":5}}`), 0o600))

	t.Setenv("CHATDIR_CONFIG", file)
	t.Setenv("CHATDIR_CONVERSATIONS_WORD_LIMIT", "7")

	cfg, err := Load(nil)
	require.NoError(t, err)
	require.Equal(t, 7, cfg.Conversations.WordLimit)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load([]string{"--no-such-flag"})
	require.Error(t, err)

	_, err = Load([]string{"--config", filepath.Join(t.TempDir(), "missing.yaml"), "--jwt-key", "k"})
	require.Error(t, err)

	_, err = Load(nil)
	require.ErrorIs(t, err, errs.ErrInvalidInput)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	valid := func() Config {
		return Config{
			Addr: ":1", DSN: "postgres://x", JWTKey: "k",
			DirectoryBackend: BackendPostgres, HistoryBackend: BackendPostgres,
			Media:          MediaConfig{Backend: BackendLocal, LocalPath: "/tmp", LocalBaseURL: "http://x", MaxBytes: 1},
			Conversations:  service.ConversationConfig{WordLimit: 13, Placeholder: "none", Concurrency: 1},
			CleanupTimeout: time.Second,
		}
	}
	c := valid()
	require.NoError(t, c.Validate())

	broken := map[string]func(*Config){
		"no jwt key":        func(c *Config) { c.JWTKey = " " },
		"half tls":          func(c *Config) { c.TLSCert = "cert.pem" },
		"unknown directory": func(c *Config) { c.DirectoryBackend = "mysql" },
		"unknown history":   func(c *Config) { c.HistoryBackend = "kafka" },
		"unknown media":     func(c *Config) { c.Media.Backend = "ftp" },
		"postgres no dsn":   func(c *Config) { c.DSN = "" },
		"redis no addr":     func(c *Config) { c.HistoryBackend = BackendRedis },
		"s3 no bucket":      func(c *Config) { c.Media.Backend = BackendS3 },
		"zero word limit":   func(c *Config) { c.Conversations.WordLimit = 0 },
		"blank placeholder": func(c *Config) { c.Conversations.Placeholder = "  " },
		"zero concurrency":  func(c *Config) { c.Conversations.Concurrency = 0 },
		"zero max bytes":    func(c *Config) { c.Media.MaxBytes = 0 },
		"zero cleanup":      func(c *Config) { c.CleanupTimeout = 0 },
		"seed on postgres":  func(c *Config) { c.Seed = "users.yaml" },
	}
	for name, mutate := range broken {
		c := valid()
		mutate(&c)
		require.ErrorIs(t, c.Validate(), errs.ErrInvalidInput, name)
	}

	mem := valid()
	mem.DSN = ""
	mem.DirectoryBackend = BackendMemory
	mem.HistoryBackend = BackendMemory
	mem.Seed = "users.yaml"
	require.NoError(t, mem.Validate())
}

func TestLoad_Seed(t *testing.T) {
	cfg, err := Load([]string{"--jwt-key", "k", "--directory-backend", "memory", "--history-backend", "memory", "--seed", "users.yaml"})
	require.NoError(t, err)
	require.Equal(t, "users.yaml", cfg.Seed)

	_, err = Load([]string{"--jwt-key", "k", "--seed", "users.yaml"})
	require.ErrorIs(t, err, errs.ErrInvalidInput)
}
