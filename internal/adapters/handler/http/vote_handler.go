package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vncsmyrnk/scorepoll/internal/codec"
	"github.com/vncsmyrnk/scorepoll/internal/core/ports"
)

type VoteHandler struct {
	service     ports.VoteService
	requireUser bool
}

// NewVoteHandler builds the vote endpoint. With requireUser set, votes are
// accepted only from authenticated callers.
func NewVoteHandler(service ports.VoteService, requireUser bool) *VoteHandler {
	return &VoteHandler{
		service:     service,
		requireUser: requireUser,
	}
}

func (h *VoteHandler) VoteOnPoll(w http.ResponseWriter, r *http.Request) {
	var req voteRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	input := ports.VoteInput{
		PollID: chi.URLParam(r, "id"),
		Vote:   req.vote(),
	}
	if err := stampVoter(r.Context(), h.requireUser, &input); err != nil {
		writeError(w, err)
		return
	}

	poll, err := h.service.Vote(r.Context(), input)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, codec.TaggedPoll{Poll: poll})
}
