package ports

import (
	"context"

	"github.com/vncsmyrnk/scorepoll/internal/core/domain"
)

// TransformFunc derives the next version of a poll. Returning an error
// aborts the update without writing anything.
type TransformFunc func(current *domain.Poll) (*domain.Poll, error)

// PollStore is a durable mapping from poll id to poll record. Mutations of the
// same id are serialized; mutations of different ids are independent.
type PollStore interface {
	PutNew(ctx context.Context, id domain.PollID, poll *domain.Poll) error
	Get(ctx context.Context, id domain.PollID) (*domain.Poll, error)
	UpdateAtomic(ctx context.Context, id domain.PollID, fn TransformFunc) (*domain.Poll, error)
	ForEach(ctx context.Context, fn func(*domain.Poll) error) error
	Close() error
}

type IDGenerator interface {
	NewPollID() domain.PollID
}

type CreatePollInput struct {
	Title       string
	Description string
	Options     []domain.PollOption
}

type PollService interface {
	Create(ctx context.Context, input CreatePollInput) (*domain.Poll, error)
	GetPoll(ctx context.Context, id string) (*domain.Poll, error)
}
