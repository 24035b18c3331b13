package main

import (
	"context"
	"flag"
	"time"

	"github.com/vncsmyrnk/scorepoll/internal/adapters/repository"
	"github.com/vncsmyrnk/scorepoll/internal/config"
	"github.com/vncsmyrnk/scorepoll/internal/core/services"
	"github.com/vncsmyrnk/scorepoll/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Get().Fatal("invalid configuration", "err", err)
	}

	var workers int
	var timeout time.Duration
	flag.StringVar(&cfg.Storage.Backend, "backend", cfg.Storage.Backend, "Storage backend (bolt or postgres)")
	flag.StringVar(&cfg.Storage.BoltPath, "bolt-path", cfg.Storage.BoltPath, "Bolt database file")
	flag.IntVar(&workers, "workers", 4, "Polls rebuilt concurrently")
	flag.DurationVar(&timeout, "timeout", 5*time.Minute, "Job timeout")
	flag.Parse()

	logger.Initialize(cfg.LogLevel)
	log := logger.Job("resultrebuild")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	store, err := repository.OpenStore(ctx, cfg)
	if err != nil {
		log.Fatal("failed to open poll store", "err", err)
	}
	defer store.Close()

	log.Info("starting result rebuild", "backend", cfg.Storage.Backend, "workers", workers)

	n, err := services.NewMaintenanceService(store, workers).RebuildResults(ctx)
	if err != nil {
		store.Close()
		log.Fatal("result rebuild failed", "rebuilt", n, "err", err)
	}

	log.Info("result rebuild completed", "rebuilt", n)
}
