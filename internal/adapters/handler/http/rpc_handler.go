package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/vncsmyrnk/scorepoll/internal/codec"
	"github.com/vncsmyrnk/scorepoll/internal/core/domain"
	"github.com/vncsmyrnk/scorepoll/internal/core/ports"
	"github.com/vncsmyrnk/scorepoll/internal/logger"
)

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
	ID      json.RawMessage `json:"id"`
}

type rpcErrorData struct {
	Kind string `json:"kind"`
}

type rpcError struct {
	Code    int           `json:"code"`
	Message string        `json:"message"`
	Data    *rpcErrorData `json:"data,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  any             `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
	ID      json.RawMessage `json:"id"`
}

var nullID = json.RawMessage("null")

// RPCHandler serves the poll operations as JSON-RPC 2.0 methods over POST.
type RPCHandler struct {
	polls       ports.PollService
	votes       ports.VoteService
	requireUser bool
}

func NewRPCHandler(polls ports.PollService, votes ports.VoteService, requireUser bool) *RPCHandler {
	return &RPCHandler{
		polls:       polls,
		votes:       votes,
		requireUser: requireUser,
	}
}

func (h *RPCHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeRPC(w, nullID, nil, &rpcError{Code: codeParseError, Message: "failed to read request"})
		return
	}

	var req rpcRequest
	if err := json.Unmarshal(body, &req); err != nil {
		code := codeParseError
		if json.Valid(body) {
			code = codeInvalidRequest
		}
		writeRPC(w, nullID, nil, &rpcError{Code: code, Message: err.Error()})
		return
	}

	id := req.ID
	if len(id) == 0 {
		id = nullID
	}
	if req.JSONRPC != "2.0" || req.Method == "" {
		writeRPC(w, id, nil, &rpcError{Code: codeInvalidRequest, Message: `expected "jsonrpc": "2.0" and a method`})
		return
	}

	result, rpcErr := h.call(r.Context(), req.Method, req.Params)
	writeRPC(w, id, result, rpcErr)
}

func (h *RPCHandler) call(ctx context.Context, method string, params json.RawMessage) (any, *rpcError) {
	var (
		poll *domain.Poll
		err  error
	)

	switch method {
	case "create_poll":
		var req createPollRequest
		if err := decodeParams(params, []any{&req}, &req); err != nil {
			return nil, errorToRPC(err)
		}
		poll, err = h.polls.Create(ctx, req.input())

	case "get_poll":
		var named struct {
			PollID string `json:"poll_id"`
		}
		if err := decodeParams(params, []any{&named.PollID}, &named); err != nil {
			return nil, errorToRPC(err)
		}
		poll, err = h.polls.GetPoll(ctx, named.PollID)

	case "vote":
		var named struct {
			PollID string      `json:"poll_id"`
			Vote   voteRequest `json:"vote"`
		}
		if err := decodeParams(params, []any{&named.PollID, &named.Vote}, &named); err != nil {
			return nil, errorToRPC(err)
		}
		input := ports.VoteInput{PollID: named.PollID, Vote: named.Vote.vote()}
		if err := stampVoter(ctx, h.requireUser, &input); err != nil {
			return nil, errorToRPC(err)
		}
		poll, err = h.votes.Vote(ctx, input)

	default:
		return nil, &rpcError{Code: codeMethodNotFound, Message: "method not found: " + method}
	}

	if err != nil {
		return nil, errorToRPC(err)
	}
	return codec.TaggedPoll{Poll: poll}, nil
}

// decodeParams accepts either positional params, decoded in order into
// positional, or a single object decoded into named.
func decodeParams(params json.RawMessage, positional []any, named any) error {
	params = bytes.TrimSpace(params)
	if len(params) == 0 {
		return domain.InvalidInputf("params are required")
	}

	if params[0] != '[' {
		if err := json.Unmarshal(params, named); err != nil {
			return domain.InvalidInputf("invalid params: %v", err)
		}
		return nil
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(params, &raw); err != nil {
		return domain.InvalidInputf("invalid params: %v", err)
	}
	if len(raw) != len(positional) {
		return domain.InvalidInputf("expected %d params, got %d", len(positional), len(raw))
	}
	for i, dst := range positional {
		if err := json.Unmarshal(raw[i], dst); err != nil {
			return domain.InvalidInputf("invalid param %d: %v", i, err)
		}
	}
	return nil
}

func errorToRPC(err error) *rpcError {
	apiErr := toAPIError(err)
	return &rpcError{Code: apiErr.Code, Message: apiErr.Message, Data: &rpcErrorData{Kind: apiErr.Kind}}
}

// writeRPC always answers 200; failures travel in the error member.
func writeRPC(w http.ResponseWriter, id json.RawMessage, result any, rpcErr *rpcError) {
	resp := rpcResponse{JSONRPC: "2.0", ID: id}
	if rpcErr != nil {
		resp.Error = rpcErr
	} else {
		resp.Result = result
	}

	body, err := json.Marshal(resp)
	if err != nil {
		logger.HTTP().Error("failed to encode rpc response", "err", err)
		apiErr := internalError()
		resp = rpcResponse{
			JSONRPC: "2.0",
			ID:      id,
			Error:   &rpcError{Code: apiErr.Code, Message: apiErr.Message, Data: &rpcErrorData{Kind: apiErr.Kind}},
		}
		body, _ = json.Marshal(resp)
	}
	writeBody(w, http.StatusOK, body)
}
