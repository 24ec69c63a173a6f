package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"

	"authflow/core"
)

func main() {
	cfg, err := core.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logCloser, err := core.SetupLogging(cfg, "api.log")
	if err != nil {
		log.Fatalf("failed to setup logging: %v", err)
	}
	defer logCloser.Close()

	if err := run(ctx, cfg); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg core.Config) error {
	backends := map[string]core.Pinger{}

	var users core.UserRepository
	switch cfg.UserStore {
	case core.BackendPostgres:
		db, err := core.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		defer db.Close()
		if cfg.AutoMigrate {
			if err := core.RunMigrations(ctx, db); err != nil {
				return err
			}
		}
		users = core.NewPgUserRepository(db)
		backends["postgres"] = db
	default:
		slog.Warn("using in-memory user store; accounts are lost on restart")
		users = core.NewMemoryUserRepository()
	}

	var sessions core.SessionStore
	switch cfg.SessionStore {
	case core.BackendRedis:
		redisClient, err := core.NewRedisClient(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer redisClient.Close()
		sessions = core.NewRedisSessionStore(redisClient, cfg.SessionMaxAge)
		backends["redis"] = core.PingFunc(func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	default:
		slog.Warn("using in-memory session store; sessions are lost on restart")
		sessions = core.NewMemorySessionStore(clockwork.NewRealClock(), cfg.SessionMaxAge)
	}

	hasher, err := core.NewPasswordHasher(cfg)
	if err != nil {
		return err
	}
	authService := core.NewRepositoryAuthService(users, hasher)

	if err := core.BootstrapUser(ctx, authService, cfg); err != nil {
		return fmt.Errorf("bootstrap user: %w", err)
	}

	router := core.NewRouter(cfg, core.Dependencies{
		Auth:     authService,
		Sessions: sessions,
		Backends: backends,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting api server", "addr", srv.Addr, "mode", cfg.GinMode,
			"user_store", cfg.UserStore, "session_store", cfg.SessionStore, "hasher", cfg.PasswordHasher)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	slog.Info("shutting down api server")
	return srv.Shutdown(shutdownCtx)
}
