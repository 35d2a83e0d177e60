package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/mmynk/settleup/internal/auth"
	"github.com/mmynk/settleup/internal/config"
	"github.com/mmynk/settleup/internal/metrics"
	"github.com/mmynk/settleup/internal/recurring"
	"github.com/mmynk/settleup/internal/storage"
	"github.com/mmynk/settleup/internal/storage/postgres"
	"github.com/mmynk/settleup/internal/storage/sqlite"
	"github.com/mmynk/settleup/pkg/logging"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(".env")
	if err != nil {
		return err
	}
	logging.Setup(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	denylist, closeDenylist, err := openDenylist(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeDenylist()

	authenticator, err := auth.NewPasswordAuthenticator(store, auth.HashConfig{Algorithm: "bcrypt", Cost: cfg.HashCost()})
	if err != nil {
		return err
	}

	m := metrics.New()
	handler := newRouter(routerDeps{
		store:         store,
		authenticator: authenticator,
		jwtManager:    auth.NewJWTManager(cfg.JWTSecret, cfg.TokenTTL),
		denylist:      denylist,
		metrics:       m,
		corsOrigins:   cfg.CORSOrigins,
	})

	// Runs before the deferred store.Close so no tick touches a closed store.
	schedCtx, stopScheduler := context.WithCancel(ctx)
	waitScheduler := startScheduler(schedCtx, recurring.NewScheduler(store, cfg.RecurringInterval, m))
	defer func() {
		stopScheduler()
		waitScheduler()
	}()

	srv := &http.Server{
		Addr: cfg.Addr(),
		// h2c serves HTTP/2 without TLS for Connect clients
		Handler:           h2c.NewHandler(handler, &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Connect server starting", "address", srv.Addr, "url", fmt.Sprintf("http://localhost%s", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
		slog.Info("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	slog.Info("Server stopped")
	return nil
}

// startScheduler runs s until ctx is done. The returned func blocks until the
// scheduler has exited.
func startScheduler(ctx context.Context, s *recurring.Scheduler) (wait func()) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Run(ctx)
	}()
	return func() { <-done }
}

// openStore uses Postgres when DATABASE_URL is set and SQLite otherwise.
func openStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	if cfg.DatabaseURL != "" {
		store, err := postgres.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize postgres storage: %w", err)
		}
		slog.Info("Storage initialized", "backend", "postgres")
		return store, nil
	}

	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize sqlite storage: %w", err)
	}
	slog.Info("Storage initialized", "backend", "sqlite", "database", cfg.DBPath)
	return store, nil
}

// openDenylist connects to redis when REDIS_ADDR is set. Without it, logout
// cannot revoke tokens before they expire.
func openDenylist(ctx context.Context, cfg *config.Config) (auth.TokenDenylist, func(), error) {
	if cfg.RedisAddr == "" {
		slog.Warn("REDIS_ADDR not set, token revocation disabled")
		return auth.NoopDenylist{}, func() {}, nil
	}

	client, err := auth.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword)
	if err != nil {
		return nil, nil, err
	}
	slog.Info("Token denylist initialized", "redis", cfg.RedisAddr)
	return auth.NewRedisDenylist(client), func() { client.Close() }, nil
}
