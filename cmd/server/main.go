package main

import (
	"context"
	"errors"
	stdhttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vncsmyrnk/scorepoll/internal/adapters/handler/http"
	"github.com/vncsmyrnk/scorepoll/internal/adapters/idgen"
	"github.com/vncsmyrnk/scorepoll/internal/adapters/repository"
	"github.com/vncsmyrnk/scorepoll/internal/adapters/token"
	"github.com/vncsmyrnk/scorepoll/internal/config"
	"github.com/vncsmyrnk/scorepoll/internal/core/domain"
	"github.com/vncsmyrnk/scorepoll/internal/core/ports"
	"github.com/vncsmyrnk/scorepoll/internal/core/services"
	"github.com/vncsmyrnk/scorepoll/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Get().Fatal("invalid configuration", "err", err)
	}
	logger.Initialize(cfg.LogLevel)
	log := logger.Get()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := repository.OpenStore(ctx, cfg)
	if err != nil {
		log.Fatal("failed to open poll store", "backend", cfg.Storage.Backend, "err", err)
	}
	defer store.Close()

	pollService := services.NewPollService(store, idgen.NewUUID())
	voteService := services.NewVoteService(store, domain.ScoreRange{Min: cfg.Scores.Min, Max: cfg.Scores.Max})

	var verifier ports.TokenVerifier
	if cfg.Auth.JWTSecret != "" {
		verifier = token.NewHS256Verifier([]byte(cfg.Auth.JWTSecret))
	}
	requireUser := verifier != nil

	handler := http.NewHandler(
		http.NewPollHandler(pollService),
		http.NewVoteHandler(voteService, requireUser),
		http.NewRPCHandler(pollService, voteService, requireUser),
		verifier,
		cfg.CORS.AllowOrigins,
	)
	server := &stdhttp.Server{
		Addr:              cfg.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", "addr", server.Addr, "backend", cfg.Storage.Backend, "auth", requireUser)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("gracefully shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server stopped", "err", err)
		store.Close()
		os.Exit(1)
	}
}
