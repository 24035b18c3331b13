package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/vncsmyrnk/scorepoll/internal/adapters/export"
	"github.com/vncsmyrnk/scorepoll/internal/adapters/repository"
	"github.com/vncsmyrnk/scorepoll/internal/config"
	"github.com/vncsmyrnk/scorepoll/internal/core/ports"
	"github.com/vncsmyrnk/scorepoll/internal/core/services"
	"github.com/vncsmyrnk/scorepoll/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Get().Fatal("invalid configuration", "err", err)
	}

	var out, object string
	var timeout time.Duration
	flag.StringVar(&cfg.Storage.Backend, "backend", cfg.Storage.Backend, "Storage backend (bolt or postgres)")
	flag.StringVar(&cfg.Storage.BoltPath, "bolt-path", cfg.Storage.BoltPath, "Bolt database file")
	flag.StringVar(&out, "out", "polls.jsonl", "Output file, used when no minio endpoint is configured")
	flag.StringVar(&object, "object", "", "Object name in the export bucket (default polls-<timestamp>.jsonl)")
	flag.DurationVar(&timeout, "timeout", 5*time.Minute, "Job timeout")
	flag.Parse()

	logger.Initialize(cfg.LogLevel)
	log := logger.Job("export")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	store, err := repository.OpenStore(ctx, cfg)
	if err != nil {
		log.Fatal("failed to open poll store", "err", err)
	}
	defer store.Close()

	sink, dest, err := openSink(ctx, cfg, out, object)
	if err != nil {
		store.Close()
		log.Fatal("failed to open export sink", "err", err)
	}

	n, err := services.NewMaintenanceService(store, 1).Export(ctx, sink)
	if err != nil {
		store.Close()
		log.Fatal("export failed", "exported", n, "err", err)
	}

	log.Info("export completed", "polls", n, "destination", dest)
}

func openSink(ctx context.Context, cfg *config.Config, out, object string) (ports.ExportSink, string, error) {
	if cfg.Export.MinioEndpoint == "" {
		sink, err := export.NewFileSink(out)
		return sink, out, err
	}

	if object == "" {
		object = fmt.Sprintf("polls-%s.jsonl", time.Now().UTC().Format("20060102T150405Z"))
	}
	sink, err := export.NewMinioSink(ctx, export.MinioConfig{
		Endpoint:  cfg.Export.MinioEndpoint,
		AccessKey: cfg.Export.MinioAccessKey,
		SecretKey: cfg.Export.MinioSecretKey,
		Bucket:    cfg.Export.MinioBucket,
		UseSSL:    cfg.Export.MinioUseSSL,
	}, object)
	return sink, cfg.Export.MinioBucket + "/" + object, err
}
