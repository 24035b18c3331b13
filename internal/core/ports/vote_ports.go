package ports

import (
	"context"

	"github.com/vncsmyrnk/scorepoll/internal/core/domain"
)

type VoteInput struct {
	PollID string
	Vote   domain.Vote
}

type VoteService interface {
	Vote(ctx context.Context, input VoteInput) (*domain.Poll, error)
}
