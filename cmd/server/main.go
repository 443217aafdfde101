// Command chatdir-server starts the directory gRPC server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/and161185/chat-directory/internal/config"
	"github.com/and161185/chat-directory/internal/media"
	"github.com/and161185/chat-directory/internal/migrate"
	"github.com/and161185/chat-directory/internal/repository"
	"github.com/and161185/chat-directory/internal/repository/memory"
	"github.com/and161185/chat-directory/internal/repository/postgres"
	"github.com/and161185/chat-directory/internal/repository/redishistory"
	grpcserver "github.com/and161185/chat-directory/internal/server/grpc"
	"github.com/and161185/chat-directory/internal/server/httpmedia"
	"github.com/and161185/chat-directory/internal/service"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// main loads configuration, runs migrations, and starts the gRPC server and,
// for the local media store, the media HTTP endpoint.
func main() {
	logger, _ := zap.NewProduction()
	code := run(os.Args[1:], logger)
	_ = logger.Sync()
	os.Exit(code)
}

func run(args []string, logger *zap.Logger) int {
	cfg, err := config.Load(args)
	if errors.Is(err, pflag.ErrHelp) {
		return 0
	}
	if err != nil {
		logger.Error("config", zap.Error(err))
		return 1
	}
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("addr", cfg.Addr),
		zap.String("directory", cfg.DirectoryBackend),
		zap.String("history", cfg.HistoryBackend),
		zap.String("media", cfg.Media.Backend),
	)

	// Context with OS signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var closers []func()
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}()

	var db *postgres.DB
	if cfg.DirectoryBackend == config.BackendPostgres || cfg.HistoryBackend == config.BackendPostgres {
		if err := migrate.Up(ctx, cfg.DSN, logger); err != nil {
			logger.Error("migrate up", zap.Error(err))
			return 1
		}
		db, err = postgres.New(ctx, cfg.DSN)
		if err != nil {
			logger.Error("postgres", zap.Error(err))
			return 1
		}
		closers = append(closers, db.Close)
	}

	users := userRepository(cfg, db)
	var memLog *memory.MessageLog
	if cfg.HistoryBackend == config.BackendMemory {
		memLog = memory.NewMessageLog()
	}
	history, closeHistory, err := messageHistory(ctx, cfg, db, memLog)
	if err != nil {
		logger.Error("message history", zap.Error(err))
		return 1
	}
	closers = append(closers, closeHistory)

	store, err := mediaStore(ctx, cfg)
	if err != nil {
		logger.Error("media store", zap.Error(err))
		return 1
	}

	// Services
	dirSvc := service.NewDirectoryService(users)
	if cfg.Seed != "" {
		f, err := loadSeed(cfg.Seed)
		if err != nil {
			logger.Error("seed", zap.Error(err))
			return 1
		}
		nUsers, nMessages, err := applySeed(ctx, f, dirSvc, memLog)
		if err != nil {
			logger.Error("seed", zap.String("file", cfg.Seed), zap.Error(err))
			return 1
		}
		logger.Info("seed loaded", zap.String("file", cfg.Seed), zap.Int("users", nUsers), zap.Int("messages", nMessages))
	} else if cfg.DirectoryBackend == config.BackendMemory {
		logger.Warn("memory directory without --seed starts empty")
	}
	convSvc := service.NewConversationService(dirSvc, history, cfg.Conversations, logger.Named("conversations"))
	profileSvc := service.NewProfileService(dirSvc, store, logger.Named("profile"),
		service.WithCleanupTimeout(cfg.CleanupTimeout))

	// gRPC server with interceptors
	auth := grpcserver.NewAuthenticator([]byte(cfg.JWTKey))
	opts := []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(
			grpcserver.RecoverUnary(logger),
			grpcserver.LoggingUnary(logger),
			auth.AuthUnary(),
		),
		grpc.ChainStreamInterceptor(
			grpcserver.RecoverStream(logger),
			grpcserver.LoggingStream(logger),
			auth.AuthStream(),
		),
	}
	if cfg.TLSCert != "" {
		creds, err := credentials.NewServerTLSFromFile(cfg.TLSCert, cfg.TLSKey)
		if err != nil {
			logger.Error("failed to load TLS cert/key", zap.Error(err))
			return 1
		}
		opts = append(opts, grpc.Creds(creds))
	} else {
		logger.Warn("TLS disabled, serving plaintext gRPC")
	}
	s := grpc.NewServer(opts...)

	grpcserver.Register(s, grpcserver.New(dirSvc, convSvc, profileSvc, logger))

	// Health & reflection (dev)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(s, hs)
	hs.SetServingStatus(grpcserver.ServiceName, healthpb.HealthCheckResponse_SERVING)
	if cfg.Dev {
		reflection.Register(s)
	}

	lis, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		logger.Error("listen", zap.Error(err))
		return 1
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.Addr), zap.Bool("tls", cfg.TLSCert != ""))
		errCh <- s.Serve(lis)
	}()

	var mediaSrv *http.Server
	if cfg.Media.Backend == config.BackendLocal {
		mediaSrv = &http.Server{
			Addr:              cfg.Media.HTTPAddr,
			Handler:           httpmedia.NewRouter(store, logger.Named("media")),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info("media endpoint listening", zap.String("addr", cfg.Media.HTTPAddr))
			if err := mediaSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("media http: %w", err)
			}
		}()
	}

	// Wait for stop
	exitCode := 0
	select {
	case <-ctx.Done():
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
		exitCode = 1
	}

	// graceful shutdown
	hs.Shutdown()
	if mediaSrv != nil {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = mediaSrv.Shutdown(sctx)
		cancel()
	}
	done := make(chan struct{})
	go func() {
		s.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		s.Stop()
	}

	logger.Info("shutdown complete")
	return exitCode
}

func userRepository(cfg *config.Config, db *postgres.DB) repository.UserRepository {
	if cfg.DirectoryBackend == config.BackendMemory {
		return memory.NewUserRepo()
	}
	return postgres.NewUserRepo(db)
}

func messageHistory(ctx context.Context, cfg *config.Config, db *postgres.DB, memLog *memory.MessageLog) (repository.MessageHistory, func(), error) {
	switch cfg.HistoryBackend {
	case config.BackendMemory:
		return memLog, func() {}, nil
	case config.BackendRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, nil, fmt.Errorf("redis ping: %w", err)
		}
		return redishistory.New(rdb, cfg.Redis.Prefix), func() { _ = rdb.Close() }, nil
	default:
		return postgres.NewMessageRepo(db), func() {}, nil
	}
}

func mediaStore(ctx context.Context, cfg *config.Config) (media.Store, error) {
	if cfg.Media.Backend == config.BackendS3 {
		return media.NewS3Store(ctx, cfg.Media.S3)
	}
	return media.NewLocalStore(cfg.Media.LocalPath, cfg.Media.LocalBaseURL, cfg.Media.MaxBytes)
}
