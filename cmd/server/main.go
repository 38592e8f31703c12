package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/playperu/weaver/internal/auth"
	"github.com/playperu/weaver/internal/config"
	"github.com/playperu/weaver/internal/coordinator"
	"github.com/playperu/weaver/internal/database"
	"github.com/playperu/weaver/internal/handler/health"
	"github.com/playperu/weaver/internal/kv"
	"github.com/playperu/weaver/internal/migrations"
	"github.com/playperu/weaver/internal/server"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, stdout io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	// --- Store ---
	store, checks, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	hosts := cfg.HostAllowlist
	if cfg.SeedDemo {
		if err := auth.SeedDemo(ctx, logger, store); err != nil {
			return fmt.Errorf("seeding demo sessions: %w", err)
		}
		if len(hosts) == 0 {
			hosts = []string{auth.DemoSessions[0].UserID}
		}
	}
	if len(hosts) == 0 {
		logger.Warn("HOST_ALLOWLIST is empty, nobody can create games")
	}

	// --- Games ---
	resolver := auth.NewResolver(store)
	games := coordinator.New(store, resolver, logger, coordinator.Options{
		Hosts:  hosts,
		LeadIn: cfg.LeadIn,
	})
	defer games.Close()

	// --- HTTP Server ---
	srv := server.New(cfg.HTTPAddr, logger, server.Deps{
		Games:        games,
		Sessions:     resolver,
		AdminKeyHash: cfg.AdminKeyHash,
		Checks:       checks,
		SPADir:       cfg.SPADir,
	})

	// --- Run ---
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting http server", "addr", cfg.HTTPAddr, "store", cfg.StoreBackend, "hosts", len(hosts))
		return srv.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down http server")
		return srv.Shutdown(context.Background())
	})

	return g.Wait()
}

// openStore connects the configured backend and returns its health checks
// and a func releasing the connection.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (kv.Store, map[string]health.Checker, func(), error) {
	switch cfg.StoreBackend {
	case config.BackendRedis:
		rdb, err := kv.OpenRedis(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("connecting to redis: %w", err)
		}
		logger.Info("connected to redis")

		store := kv.NewRedis(rdb)
		checks := map[string]health.Checker{"redis": health.CheckerFunc(store.Ping)}
		return store, checks, func() { rdb.Close() }, nil

	case config.BackendMemory:
		logger.Warn("using in-memory store, state is lost on restart")
		return kv.NewMemory(), map[string]health.Checker{}, func() {}, nil

	default:
		db, err := database.Open(ctx, cfg.DBPath)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("connecting to sqlite: %w", err)
		}
		if err := migrations.Run(ctx, db); err != nil {
			db.Close()
			return nil, nil, nil, fmt.Errorf("running migrations: %w", err)
		}
		logger.Info("connected to sqlite", "path", cfg.DBPath)

		store := kv.NewSQLite(db)
		checks := map[string]health.Checker{"sqlite": health.CheckerFunc(store.Ping)}
		return store, checks, func() { db.Close() }, nil
	}
}
