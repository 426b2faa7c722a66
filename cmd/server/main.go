package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"ledger-engine/internal/config"
	"ledger-engine/internal/httpapi"
	"ledger-engine/internal/ledger"
	"ledger-engine/internal/store"

	"github.com/jackc/pgx/v5/pgxpool"
)

func clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}

func main() {
	start := time.Now()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg := config.Load()
	slog.Info("startup begin", "addr", cfg.HTTPAddr, "migrate", cfg.Migrate, "env", cfg.Env)

	// DB pool sizing
	maxConns := cfg.DBMaxConns
	if maxConns <= 0 {
		cpu := runtime.GOMAXPROCS(0)
		maxConns = clamp(cpu*4, 4, 50)
	}

	startCtx, startCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer startCancel()

	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		slog.Error("parse dsn failed", "error", err)
		os.Exit(1)
	}
	poolCfg.MaxConns = int32(maxConns)
	poolCfg.MinConns = 1
	poolCfg.HealthCheckPeriod = 10 * time.Second
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(startCtx, poolCfg)
	if err != nil {
		slog.Error("db connect failed", "error", err)
		os.Exit(1)
	}

	if err := pool.Ping(startCtx); err != nil {
		slog.Error("db ping failed", "error", err)
		os.Exit(1)
	}

	if cfg.Migrate {
		if err := store.Migrate(startCtx, pool); err != nil {
			slog.Error("migrations failed", "error", err)
			os.Exit(1)
		}
		slog.Info("migrations complete")
	}

	st := store.New(pool)
	engine := ledger.NewEngine(st, st)
	statements := ledger.NewStatementGenerator(st, st)
	app := httpapi.Router(httpapi.NewHandlers(engine, statements))

	go func() {
		slog.Info("ready", "took", time.Since(start).Truncate(time.Millisecond).String(), "addr", cfg.HTTPAddr)
		if err := app.Listen(cfg.HTTPAddr); err != nil {
			slog.Error("listen failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		slog.Error("shutdown error", "error", err)
	}
	pool.Close()
	slog.Info("bye")
}
