package services

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vncsmyrnk/scorepoll/internal/core/domain"
	"github.com/vncsmyrnk/scorepoll/internal/core/ports"
)

func setupVoting(t *testing.T, scores domain.ScoreRange) (*memStore, ports.VoteService, *domain.Poll) {
	t.Helper()
	store := newMemStore()
	poll, err := NewPollService(store, &seqIDs{ids: []domain.PollID{"p1"}}).Create(context.Background(), lunchInput())
	require.NoError(t, err)
	return store, NewVoteService(store, scores), poll
}

func TestVoteReturnsUpdatedPoll(t *testing.T) {
	_, svc, _ := setupVoting(t, domain.ScoreRange{})
	ctx := context.Background()

	for _, v := range []domain.Vote{
		{VoterName: "ann", Scores: map[domain.OptionID]*float64{"A": domain.Score(5)}},
		{VoterName: "bob", Scores: map[domain.OptionID]*float64{"A": domain.Score(3)}},
	} {
		_, err := svc.Vote(ctx, ports.VoteInput{PollID: "p1", Vote: v})
		require.NoError(t, err)
	}
	poll, err := svc.Vote(ctx, ports.VoteInput{PollID: "p1", Vote: domain.Vote{
		VoterName: "cid",
		Scores:    map[domain.OptionID]*float64{"A": nil},
	}})
	require.NoError(t, err)

	require.Len(t, poll.Votes, 3)
	assert.Equal(t, "cid", poll.Votes[2].VoterName)
	assert.InDelta(t, 4.0, *poll.Result["A"], 1e-9)
	_, present := poll.Result["B"]
	assert.False(t, present)
}

func TestVoteUnknownOptionLeavesPollUnchanged(t *testing.T) {
	store, svc, _ := setupVoting(t, domain.ScoreRange{})
	ctx := context.Background()
	before, err := store.Get(ctx, "p1")
	require.NoError(t, err)

	_, err = svc.Vote(ctx, ports.VoteInput{PollID: "p1", Vote: domain.Vote{
		VoterName: "eve",
		Scores:    map[domain.OptionID]*float64{"Z": domain.Score(5)},
	}})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	after, err := store.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestVoteUnknownPoll(t *testing.T) {
	_, svc, _ := setupVoting(t, domain.ScoreRange{})
	_, err := svc.Vote(context.Background(), ports.VoteInput{PollID: "nope", Vote: domain.Vote{VoterName: "ann"}})
	assert.ErrorIs(t, err, domain.ErrPollNotFound)
}

func TestVoteScoreRange(t *testing.T) {
	lo, hi := 0.0, 10.0
	_, svc, _ := setupVoting(t, domain.ScoreRange{Min: &lo, Max: &hi})

	_, err := svc.Vote(context.Background(), ports.VoteInput{PollID: "p1", Vote: domain.Vote{
		VoterName: "ann",
		Scores:    map[domain.OptionID]*float64{"A": domain.Score(11)},
	}})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestVoteWithoutScoresIsFullAbstention(t *testing.T) {
	_, svc, _ := setupVoting(t, domain.ScoreRange{})

	poll, err := svc.Vote(context.Background(), ports.VoteInput{PollID: "p1", Vote: domain.Vote{VoterName: "ann"}})
	require.NoError(t, err)
	require.Len(t, poll.Votes, 1)
	assert.NotNil(t, poll.Votes[0].Scores)
	assert.NotNil(t, poll.Result)
	assert.Empty(t, poll.Result)
}

func TestConcurrentVotesAreTotallyOrdered(t *testing.T) {
	store, svc, _ := setupVoting(t, domain.ScoreRange{})
	ctx := context.Background()

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Vote(ctx, ports.VoteInput{PollID: "p1", Vote: domain.Vote{
				VoterName: fmt.Sprintf("v%d", i),
				Scores:    map[domain.OptionID]*float64{"B": domain.Score(2)},
			}})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	poll, err := store.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Len(t, poll.Votes, n)
	assert.Equal(t, domain.Aggregate(poll.Votes, poll.Options), poll.Result)
}
