package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vncsmyrnk/scorepoll/internal/adapters/repository/bolt"
	"github.com/vncsmyrnk/scorepoll/internal/adapters/token"
	"github.com/vncsmyrnk/scorepoll/internal/core/domain"
	"github.com/vncsmyrnk/scorepoll/internal/core/ports"
	"github.com/vncsmyrnk/scorepoll/internal/core/services"
)

type counterIDs struct{ n atomic.Int64 }

func (c *counterIDs) NewPollID() domain.PollID {
	return domain.PollID(fmt.Sprintf("poll-%d", c.n.Add(1)))
}

const testSecret = "test-secret"

func setupServer(t *testing.T, withAuth bool) *httptest.Server {
	t.Helper()
	store, err := bolt.Open(filepath.Join(t.TempDir(), "polls.db"), time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	pollSvc := services.NewPollService(store, &counterIDs{})
	voteSvc := services.NewVoteService(store, domain.ScoreRange{})

	var verifier ports.TokenVerifier
	if withAuth {
		verifier = token.NewHS256Verifier([]byte(testSecret))
	}

	router := NewHandler(
		NewPollHandler(pollSvc),
		NewVoteHandler(voteSvc, withAuth),
		NewRPCHandler(pollSvc, voteSvc, withAuth),
		verifier,
		[]string{"*"},
	)
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server
}

func post(t *testing.T, url, body string, headers ...string) (int, []byte) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewBufferString(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	return do(t, req)
}

func get(t *testing.T, url string) (int, []byte) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	return do(t, req)
}

func do(t *testing.T, req *http.Request) (int, []byte) {
	t.Helper()
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, body
}

type taggedPoll struct {
	V1 struct {
		ID      string                       `json:"id"`
		Title   string                       `json:"title"`
		Options []map[string]string          `json:"options"`
		Votes   []map[string]json.RawMessage `json:"votes"`
		Result  map[string]*float64          `json:"result"`
	} `json:"V1"`
}

type errorBody struct {
	Error apiError `json:"error"`
}

const lunch = `{"title":"Lunch","description":"","options":[{"id":"A","title":"Pizza","description":""},{"id":"B","title":"Sushi","description":""}]}`

func TestRESTPollLifecycle(t *testing.T) {
	server := setupServer(t, false)

	status, body := post(t, server.URL+"/api/polls", lunch)
	require.Equal(t, http.StatusCreated, status, string(body))

	var created taggedPoll
	require.NoError(t, json.Unmarshal(body, &created))
	assert.Equal(t, "poll-1", created.V1.ID)
	assert.Len(t, created.V1.Options, 2)
	assert.Empty(t, created.V1.Votes)
	assert.Nil(t, created.V1.Result)

	for _, vote := range []string{
		`{"voter_name":"ann","scores":{"A":5}}`,
		`{"voter_name":"bob","scores":{"A":3}}`,
		`{"voter_name":"cid","scores":{"A":null}}`,
	} {
		status, body = post(t, server.URL+"/api/polls/poll-1/votes", vote)
		require.Equal(t, http.StatusCreated, status, string(body))
	}

	var voted taggedPoll
	require.NoError(t, json.Unmarshal(body, &voted))
	assert.Len(t, voted.V1.Votes, 3)
	require.Contains(t, voted.V1.Result, "A")
	assert.InDelta(t, 4.0, *voted.V1.Result["A"], 1e-9)
	assert.NotContains(t, voted.V1.Result, "B")

	status, first := get(t, server.URL+"/api/polls/poll-1")
	require.Equal(t, http.StatusOK, status)
	_, second := get(t, server.URL+"/api/polls/poll-1")
	assert.Equal(t, first, second)
}

func TestRESTErrors(t *testing.T) {
	server := setupServer(t, false)

	status, body := post(t, server.URL+"/api/polls", `{"title":"Empty","options":[]}`)
	assert.Equal(t, http.StatusBadRequest, status)
	var e errorBody
	require.NoError(t, json.Unmarshal(body, &e))
	assert.Equal(t, "invalid_input", e.Error.Kind)
	assert.Equal(t, codeInvalidParams, e.Error.Code)

	status, body = get(t, server.URL+"/api/polls/missing")
	assert.Equal(t, http.StatusNotFound, status)
	require.NoError(t, json.Unmarshal(body, &e))
	assert.Equal(t, "not_found", e.Error.Kind)

	status, _ = post(t, server.URL+"/api/polls", `{"title":`)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = post(t, server.URL+"/api/polls", lunch)
	require.Equal(t, http.StatusCreated, status)
	_, before := get(t, server.URL+"/api/polls/poll-1")

	status, body = post(t, server.URL+"/api/polls/poll-1/votes", `{"voter_name":"eve","scores":{"Z":5}}`)
	assert.Equal(t, http.StatusBadRequest, status)
	require.NoError(t, json.Unmarshal(body, &e))
	assert.Equal(t, "invalid_input", e.Error.Kind)

	_, after := get(t, server.URL+"/api/polls/poll-1")
	assert.Equal(t, before, after)
}

type rpcReply struct {
	Result *taggedPoll     `json:"result"`
	Error  *rpcError       `json:"error"`
	ID     json.RawMessage `json:"id"`
}

func call(t *testing.T, server *httptest.Server, body string, headers ...string) rpcReply {
	t.Helper()
	status, raw := post(t, server.URL+"/rpc", body, headers...)
	require.Equal(t, http.StatusOK, status, string(raw))
	var reply rpcReply
	require.NoError(t, json.Unmarshal(raw, &reply), string(raw))
	return reply
}

func TestVotesNearFloatLimitStayReadable(t *testing.T) {
	server := setupServer(t, false)

	status, body := post(t, server.URL+"/api/polls", lunch)
	require.Equal(t, http.StatusCreated, status, string(body))

	for _, voter := range []string{"ann", "bob"} {
		status, body = post(t, server.URL+"/api/polls/poll-1/votes", `{"voter_name":"`+voter+`","scores":{"A":1.7e308}}`)
		require.Equal(t, http.StatusCreated, status, string(body))
		require.NotEmpty(t, body)
	}

	status, body = get(t, server.URL+"/api/polls/poll-1")
	require.Equal(t, http.StatusOK, status, string(body))
	var fetched taggedPoll
	require.NoError(t, json.Unmarshal(body, &fetched))
	require.Contains(t, fetched.V1.Result, "A")
	assert.InEpsilon(t, 1.7e308, *fetched.V1.Result["A"], 1e-12)

	reply := call(t, server, `{"jsonrpc":"2.0","id":1,"method":"get_poll","params":["poll-1"]}`)
	require.Nil(t, reply.Error)
	assert.Len(t, reply.Result.V1.Votes, 2)
}

func TestUnencodableResponseIsInternalError(t *testing.T) {
	rec := httptest.NewRecorder()
	writeJSON(rec, http.StatusCreated, map[string]float64{"A": math.Inf(1)})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "internal", body.Error.Kind)
	assert.Equal(t, codeInternal, body.Error.Code)

	rec = httptest.NewRecorder()
	writeRPC(rec, json.RawMessage(`7`), map[string]float64{"A": math.NaN()}, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	var reply struct {
		Result json.RawMessage `json:"result"`
		Error  *rpcError       `json:"error"`
		ID     json.RawMessage `json:"id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reply))
	assert.Empty(t, reply.Result)
	require.NotNil(t, reply.Error)
	assert.Equal(t, codeInternal, reply.Error.Code)
	assert.JSONEq(t, `7`, string(reply.ID))
}

func TestRPCMethods(t *testing.T) {
	server := setupServer(t, false)

	reply := call(t, server, `{"jsonrpc":"2.0","id":1,"method":"create_poll","params":[`+lunch+`]}`)
	require.Nil(t, reply.Error)
	assert.JSONEq(t, `1`, string(reply.ID))
	require.NotNil(t, reply.Result)
	id := reply.Result.V1.ID

	reply = call(t, server, `{"jsonrpc":"2.0","id":"x","method":"vote","params":["`+id+`",{"voter_name":"ann","scores":{"B":7}}]}`)
	require.Nil(t, reply.Error)
	assert.InDelta(t, 7.0, *reply.Result.V1.Result["B"], 1e-9)

	reply = call(t, server, `{"jsonrpc":"2.0","id":2,"method":"vote","params":{"poll_id":"`+id+`","vote":{"voter_name":"bob","scores":{"B":3}}}}`)
	require.Nil(t, reply.Error)
	assert.InDelta(t, 5.0, *reply.Result.V1.Result["B"], 1e-9)

	reply = call(t, server, `{"jsonrpc":"2.0","id":3,"method":"get_poll","params":{"poll_id":"`+id+`"}}`)
	require.Nil(t, reply.Error)
	assert.Len(t, reply.Result.V1.Votes, 2)

	reply = call(t, server, `{"jsonrpc":"2.0","id":4,"method":"get_poll","params":["`+id+`"]}`)
	require.Nil(t, reply.Error)
	assert.Equal(t, "Lunch", reply.Result.V1.Title)
}

func TestRPCErrors(t *testing.T) {
	server := setupServer(t, false)

	cases := []struct {
		name string
		body string
		code int
		kind string
	}{
		{"parse error", `{"jsonrpc":`, codeParseError, ""},
		{"batch", `[]`, codeInvalidRequest, ""},
		{"missing version", `{"id":1,"method":"get_poll","params":["x"]}`, codeInvalidRequest, ""},
		{"unknown method", `{"jsonrpc":"2.0","id":1,"method":"delete_poll","params":[]}`, codeMethodNotFound, ""},
		{"not found", `{"jsonrpc":"2.0","id":1,"method":"get_poll","params":["nope"]}`, codeNotFound, "not_found"},
		{"empty options", `{"jsonrpc":"2.0","id":1,"method":"create_poll","params":[{"title":"t","options":[]}]}`, codeInvalidParams, "invalid_input"},
		{"wrong arity", `{"jsonrpc":"2.0","id":1,"method":"vote","params":["nope"]}`, codeInvalidParams, "invalid_input"},
		{"vote on missing poll", `{"jsonrpc":"2.0","id":1,"method":"vote","params":["nope",{"voter_name":"a","scores":{}}]}`, codeNotFound, "not_found"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			reply := call(t, server, tc.body)
			require.NotNil(t, reply.Error)
			assert.Nil(t, reply.Result)
			assert.Equal(t, tc.code, reply.Error.Code)
			if tc.kind != "" {
				require.NotNil(t, reply.Error.Data)
				assert.Equal(t, tc.kind, reply.Error.Data.Kind)
			}
		})
	}
}

func signToken(t *testing.T, secret, sub string) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": sub,
		"exp": time.Now().Add(15 * time.Minute).Unix(),
		"iat": time.Now().Unix(),
	}).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func TestVoteRequiresTokenWhenAuthEnabled(t *testing.T) {
	server := setupServer(t, true)

	status, _ := post(t, server.URL+"/api/polls", lunch)
	require.Equal(t, http.StatusCreated, status)

	vote := `{"user_id":"spoofed","voter_name":"ann","scores":{"A":4}}`

	status, _ = post(t, server.URL+"/api/polls/poll-1/votes", vote)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = post(t, server.URL+"/api/polls/poll-1/votes", vote, "Authorization", "Bearer "+signToken(t, "wrong", "u-1"))
	assert.Equal(t, http.StatusUnauthorized, status)

	status, body := post(t, server.URL+"/api/polls/poll-1/votes", vote, "Authorization", "Bearer "+signToken(t, testSecret, "u-1"))
	require.Equal(t, http.StatusCreated, status, string(body))
	var voted taggedPoll
	require.NoError(t, json.Unmarshal(body, &voted))
	require.Len(t, voted.V1.Votes, 1)
	assert.JSONEq(t, `"u-1"`, string(voted.V1.Votes[0]["user_id"]))

	reply := call(t, server, `{"jsonrpc":"2.0","id":1,"method":"vote","params":["poll-1",{"voter_name":"bob","scores":{}}]}`)
	require.NotNil(t, reply.Error)
	assert.Equal(t, codeUnauthorized, reply.Error.Code)

	status, _ = get(t, server.URL+"/api/polls/poll-1")
	assert.Equal(t, http.StatusOK, status)
}

func TestToAPIError(t *testing.T) {
	cases := []struct {
		err    error
		kind   string
		status int
	}{
		{fmt.Errorf("x: %w", domain.ErrPollNotFound), "not_found", http.StatusNotFound},
		{fmt.Errorf("x: %w", domain.ErrAlreadyExists), "already_exists", http.StatusConflict},
		{fmt.Errorf("x: %w", domain.ErrIDCollision), "id_collision", http.StatusConflict},
		{fmt.Errorf("%w: %w", domain.ErrTransformFailed, domain.InvalidInputf("bad")), "invalid_input", http.StatusBadRequest},
		{fmt.Errorf("x: %w", domain.ErrCorrupt), "corrupt", http.StatusInternalServerError},
		{fmt.Errorf("%w: disk", domain.ErrStorageUnavailable), "storage_unavailable", http.StatusServiceUnavailable},
		{errors.New("boom"), "internal", http.StatusInternalServerError},
	}
	for _, tc := range cases {
		got := toAPIError(tc.err)
		assert.Equal(t, tc.kind, got.Kind, tc.err.Error())
		assert.Equal(t, tc.status, got.status, tc.err.Error())
	}
	assert.Equal(t, "internal error", toAPIError(errors.New("secret detail")).Message)
}

func TestHealthz(t *testing.T) {
	server := setupServer(t, false)
	status, body := get(t, server.URL+"/healthz")
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))
}
