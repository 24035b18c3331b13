package services

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/vncsmyrnk/scorepoll/internal/core/domain"
	"github.com/vncsmyrnk/scorepoll/internal/core/ports"
	"github.com/vncsmyrnk/scorepoll/internal/logger"
)

type maintenanceService struct {
	store   ports.PollStore
	workers int
	log     *log.Logger
}

func NewMaintenanceService(store ports.PollStore, workers int) ports.MaintenanceService {
	if workers < 1 {
		workers = 1
	}
	return &maintenanceService{
		store:   store,
		workers: workers,
		log:     logger.Service("maintenance"),
	}
}

// Export writes every stored poll to sink. A record that fails to decode
// aborts the export.
func (s *maintenanceService) Export(ctx context.Context, sink ports.ExportSink) (int, error) {
	count := 0
	err := s.store.ForEach(ctx, func(poll *domain.Poll) error {
		if err := sink.Write(ctx, poll); err != nil {
			return fmt.Errorf("failed to export poll %s: %w", poll.ID, err)
		}
		count++
		return nil
	})
	if err != nil {
		return count, errors.Join(fmt.Errorf("export aborted after %d polls: %w", count, err), sink.Abort())
	}

	if err := sink.Close(ctx); err != nil {
		return count, fmt.Errorf("failed to finish export: %w", err)
	}

	s.log.Info("export finished", "polls", count)
	return count, nil
}

// RebuildResults recomputes the cached result of every poll that has votes.
// Polls are rebuilt concurrently, each through the store's atomic update.
func (s *maintenanceService) RebuildResults(ctx context.Context) (int, error) {
	var ids []domain.PollID
	err := s.store.ForEach(ctx, func(poll *domain.Poll) error {
		if len(poll.Votes) > 0 {
			ids = append(ids, poll.ID)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to list polls: %w", err)
	}

	var rebuilt atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for _, id := range ids {
		id := id
		g.Go(func() error {
			_, err := s.store.UpdateAtomic(gctx, id, func(current *domain.Poll) (*domain.Poll, error) {
				next := current.Clone()
				next.Result = domain.Aggregate(next.Votes, next.Options)
				return next, nil
			})
			if err != nil {
				return fmt.Errorf("failed to rebuild poll %s: %w", id, err)
			}
			rebuilt.Add(1)
			return nil
		})
	}

	err = g.Wait()
	n := int(rebuilt.Load())
	if err != nil {
		return n, err
	}

	s.log.Info("results rebuilt", "polls", n)
	return n, nil
}
