package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/olindqvist/terrain-grid-cache/internal/core/config"
	"github.com/olindqvist/terrain-grid-cache/internal/core/router"
	"github.com/olindqvist/terrain-grid-cache/internal/core/server"
	"github.com/olindqvist/terrain-grid-cache/internal/engine"
	"github.com/olindqvist/terrain-grid-cache/internal/invalidation/kafkaconsumer"
	"github.com/olindqvist/terrain-grid-cache/internal/logger"
	"github.com/olindqvist/terrain-grid-cache/internal/store/leveldbstore"
)

var Version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// optional .env for local development; env always wins
	_ = godotenv.Load()

	cfg := config.FromEnv()

	zl := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   cfg.LogConsole,
		Component: "terrain-server",
	}, os.Stdout)
	appLog := logger.NewSlog(&zl)

	appLog.Info("starting terrain server",
		"addr", cfg.Addr,
		"version", Version,
		"db_path", cfg.DBPath,
		"cell_size", cfg.CellSize,
		"cache_cells", cfg.CacheCells)

	kv, err := openStore(cfg.DBPath)
	if err != nil {
		appLog.Error("open store failed", "err", err)
		return 1
	}
	defer func() { _ = kv.Close() }()

	eng, err := engine.New(kv, engine.Config{
		Extent:     cfg.Extent,
		CellSize:   cfg.CellSize,
		CacheCells: cfg.CacheCells,
	}, appLog)
	if err != nil {
		appLog.Error("engine setup failed", "err", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Invalidation.Enabled {
		kcfg := kafkaconsumer.FromEnv()
		consumer := kafkaconsumer.New(kcfg, appLog, eng)
		go func() {
			if err := consumer.Start(ctx); err != nil {
				appLog.Error("invalidation consumer exited", "err", err)
			}
		}()
	}

	rt := router.New(eng, appLog)
	if err := server.Run(ctx, cfg, appLog, rt, eng); err != nil {
		appLog.Error("server exited with error", "err", err)
		return 1
	}
	appLog.Info("server stopped")
	return 0
}

func openStore(path string) (*leveldbstore.Store, error) {
	if path == ":memory:" {
		return leveldbstore.OpenMem()
	}
	return leveldbstore.Open(path)
}
