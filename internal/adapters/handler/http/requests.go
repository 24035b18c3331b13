package http

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/vncsmyrnk/scorepoll/internal/core/domain"
	"github.com/vncsmyrnk/scorepoll/internal/core/ports"
)

const maxBodyBytes = 1 << 20

type optionRequest struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

type createPollRequest struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Options     []optionRequest `json:"options"`
}

func (req createPollRequest) input() ports.CreatePollInput {
	options := make([]domain.PollOption, len(req.Options))
	for i, opt := range req.Options {
		options[i] = domain.PollOption{
			ID:          domain.OptionID(opt.ID),
			Title:       opt.Title,
			Description: opt.Description,
		}
	}
	return ports.CreatePollInput{
		Title:       req.Title,
		Description: req.Description,
		Options:     options,
	}
}

// voteRequest mirrors domain.Vote. A JSON null score is an abstention.
type voteRequest struct {
	UserID    string              `json:"user_id"`
	VoterName string              `json:"voter_name"`
	Scores    map[string]*float64 `json:"scores"`
}

func (req voteRequest) vote() domain.Vote {
	scores := make(map[domain.OptionID]*float64, len(req.Scores))
	for opt, s := range req.Scores {
		scores[domain.OptionID(opt)] = s
	}
	return domain.Vote{
		UserID:    req.UserID,
		VoterName: req.VoterName,
		Scores:    scores,
	}
}

// decodeBody reads a single JSON value from the request into v.
func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return domain.InvalidInputf("invalid request body: %v", err)
	}
	if dec.More() {
		return domain.InvalidInputf("invalid request body: trailing data")
	}
	return nil
}
