package services

import (
	"context"

	"github.com/charmbracelet/log"

	"github.com/vncsmyrnk/scorepoll/internal/core/domain"
	"github.com/vncsmyrnk/scorepoll/internal/core/ports"
	"github.com/vncsmyrnk/scorepoll/internal/logger"
)

type voteService struct {
	store  ports.PollStore
	scores domain.ScoreRange
	log    *log.Logger
}

func NewVoteService(store ports.PollStore, scores domain.ScoreRange) ports.VoteService {
	return &voteService{
		store:  store,
		scores: scores,
		log:    logger.Service("vote"),
	}
}

// Vote appends input.Vote to the poll and returns the committed poll. Option
// membership is checked against the record read under the store's key lock.
func (s *voteService) Vote(ctx context.Context, input ports.VoteInput) (*domain.Poll, error) {
	if input.PollID == "" {
		return nil, domain.InvalidInputf("poll id is required")
	}

	vote := input.Vote.Clone()
	if vote.Scores == nil {
		vote.Scores = map[domain.OptionID]*float64{}
	}
	if err := vote.ValidateScores(s.scores); err != nil {
		return nil, err
	}

	poll, err := s.store.UpdateAtomic(ctx, domain.PollID(input.PollID), func(current *domain.Poll) (*domain.Poll, error) {
		if err := vote.ValidateAgainst(current); err != nil {
			return nil, err
		}
		return domain.AppendVote(current, vote), nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Debug("vote recorded", "poll_id", poll.ID, "votes", len(poll.Votes))
	return poll, nil
}
