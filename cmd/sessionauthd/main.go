// Command sessionauthd serves the session-backed auth and user-management
// API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/MrEthical07/sessionauth"
	"github.com/MrEthical07/sessionauth/internal/config"
	"github.com/MrEthical07/sessionauth/internal/httpapi"
	"github.com/MrEthical07/sessionauth/internal/logger"
	"github.com/MrEthical07/sessionauth/internal/userstore"
	"github.com/MrEthical07/sessionauth/internal/users"
)

var version = "dev"

func main() {
	dev := flag.Bool("dev", false, "run against in-process redis and an in-memory user store")
	flag.Parse()

	// A missing .env is fine; the environment may be set another way.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := run(ctx, cfg, log, *dev); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

type backends struct {
	redis    redis.UniversalClient
	users    userstore.Repository
	provider sessionauth.UserProvider
	database httpapi.Pinger
	close    func()
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger, dev bool) error {
	var (
		b   *backends
		err error
	)
	if dev {
		b, err = devBackends(log)
	} else {
		b, err = productionBackends(ctx, cfg, log)
	}
	if err != nil {
		return err
	}
	defer b.close()

	builder := sessionauth.New().
		WithConfig(cfg.Auth()).
		WithRedis(b.redis).
		WithUserProvider(b.provider).
		WithLogger(logger.WithComponent(log, "engine"))
	if cfg.EnableAuditLog {
		builder = builder.WithAuditSink(sessionauth.NewSlogSink(logger.WithComponent(log, "audit")))
	}
	engine, err := builder.Build()
	if err != nil {
		return fmt.Errorf("failed to build auth engine: %w", err)
	}
	defer engine.Close()

	if cfg.OtelMetricsEnabled {
		stopMetrics, err := startOtelMetrics(ctx, cfg, engine, logger.WithComponent(log, "otel"))
		if err != nil {
			return err
		}
		defer func() {
			if err := stopMetrics(context.Background()); err != nil {
				log.Warn("otel metrics shutdown failed", "error", err)
			}
		}()
	}

	svc := users.NewService(b.users, engine, engine.Hasher(), log)
	api, err := httpapi.New(httpapi.Options{
		Engine:    engine,
		Users:     svc,
		Logger:    log,
		Version:   version,
		Database:  b.database,
		AuthRate:  rate.Limit(cfg.AuthRequestsPerSecond),
		AuthBurst: cfg.AuthBurst,
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting server", "addr", srv.Addr, "version", version, "dev", dev)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	log.Info("server stopped")
	return nil
}

func devBackends(log *slog.Logger) (*backends, error) {
	mr, err := miniredis.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start miniredis: %w", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	mem := userstore.NewMemory()

	log.Warn("running with in-memory backends; nothing is persisted", "redis", mr.Addr())
	return &backends{
		redis:    rdb,
		users:    mem,
		provider: mem,
		close: func() {
			_ = rdb.Close()
			mr.Close()
		},
	}, nil
}

func productionBackends(ctx context.Context, cfg *config.Config, log *slog.Logger) (*backends, error) {
	pool, err := userstore.OpenPool(ctx, userstore.PoolConfig{
		DSN:            cfg.DatabaseDSN(),
		MaxConns:       cfg.Database.MaxConnections,
		MinConns:       cfg.Database.MinConnections,
		AcquireTimeout: cfg.Database.AcquireTimeout,
		IdleTimeout:    cfg.Database.IdleTimeout,
	}, log)
	if err != nil {
		return nil, err
	}
	pg := userstore.NewPostgres(pool, log)
	if err := pg.Migrate(ctx); err != nil {
		pg.Close()
		return nil, err
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		pg.Close()
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 2 * time.Second
	opts.WriteTimeout = 2 * time.Second
	opts.PoolTimeout = 3 * time.Second
	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		pg.Close()
		return nil, fmt.Errorf("failed to reach redis: %w", err)
	}
	log.Info("redis connection established")

	return &backends{
		redis:    rdb,
		users:    pg,
		provider: pg,
		database: pg,
		close: func() {
			_ = rdb.Close()
			pg.Close()
		},
	}, nil
}
