package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/log"

	"github.com/vncsmyrnk/scorepoll/internal/core/domain"
	"github.com/vncsmyrnk/scorepoll/internal/core/ports"
	"github.com/vncsmyrnk/scorepoll/internal/logger"
)

// createAttempts is the number of ids tried before giving up with
// ErrIDCollision.
const createAttempts = 2

type pollService struct {
	store ports.PollStore
	ids   ports.IDGenerator
	log   *log.Logger
}

func NewPollService(store ports.PollStore, ids ports.IDGenerator) ports.PollService {
	return &pollService{
		store: store,
		ids:   ids,
		log:   logger.Service("poll"),
	}
}

func (s *pollService) Create(ctx context.Context, input ports.CreatePollInput) (*domain.Poll, error) {
	if strings.TrimSpace(input.Title) == "" {
		return nil, domain.InvalidInputf("title is required")
	}
	if !utf8.ValidString(input.Title) || !utf8.ValidString(input.Description) {
		return nil, domain.InvalidInputf("title and description must be valid UTF-8")
	}
	if len(input.Options) == 0 {
		return nil, domain.InvalidInputf("at least one option is required")
	}

	seen := make(map[domain.OptionID]struct{}, len(input.Options))
	for _, opt := range input.Options {
		if strings.TrimSpace(string(opt.ID)) == "" {
			return nil, domain.InvalidInputf("option id is required")
		}
		if !utf8.ValidString(string(opt.ID)) || !utf8.ValidString(opt.Title) || !utf8.ValidString(opt.Description) {
			return nil, domain.InvalidInputf("option %q must be valid UTF-8", opt.ID)
		}
		if _, dup := seen[opt.ID]; dup {
			return nil, domain.InvalidInputf("duplicate option id %q", opt.ID)
		}
		seen[opt.ID] = struct{}{}
	}

	for attempt := 1; attempt <= createAttempts; attempt++ {
		id := s.ids.NewPollID()
		poll := domain.NewPoll(id, input.Title, input.Description, input.Options)

		err := s.store.PutNew(ctx, id, poll)
		if err == nil {
			s.log.Info("poll created", "poll_id", id, "options", len(poll.Options))
			return poll, nil
		}
		if !errors.Is(err, domain.ErrAlreadyExists) {
			return nil, fmt.Errorf("failed to create poll: %w", err)
		}
		s.log.Warn("generated poll id already taken", "poll_id", id, "attempt", attempt)
	}

	return nil, fmt.Errorf("%w: %d generated ids were already taken", domain.ErrIDCollision, createAttempts)
}

func (s *pollService) GetPoll(ctx context.Context, id string) (*domain.Poll, error) {
	if id == "" {
		return nil, domain.InvalidInputf("poll id is required")
	}
	return s.store.Get(ctx, domain.PollID(id))
}
