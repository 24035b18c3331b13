package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/vncsmyrnk/scorepoll/internal/core/ports"
	"github.com/vncsmyrnk/scorepoll/internal/logger"
)

type contextKey string

const UserIDKey contextKey = "user_id"

// Authenticate resolves the caller from a bearer token or the access_token
// cookie. Requests without a token pass through anonymously; a token that
// fails verification is rejected.
func Authenticate(verifier ports.TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok := bearerToken(r)
			if tok == "" {
				next.ServeHTTP(w, r)
				return
			}

			payload, err := verifier.Verify(r.Context(), tok)
			if err != nil {
				logger.HTTP().Debug("rejected access token", "err", err)
				writeError(w, errUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), UserIDKey, payload.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if tok, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(tok)
		}
	}
	if cookie, err := r.Cookie("access_token"); err == nil {
		return cookie.Value
	}
	return ""
}

func userIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(UserIDKey).(string)
	return id
}

// stampVoter sets the vote's user id from the authenticated caller. With
// auth required the body's user_id is ignored.
func stampVoter(ctx context.Context, requireUser bool, input *ports.VoteInput) error {
	if !requireUser {
		if id := userIDFrom(ctx); id != "" {
			input.Vote.UserID = id
		}
		return nil
	}
	id := userIDFrom(ctx)
	if id == "" {
		return errUnauthorized
	}
	input.Vote.UserID = id
	return nil
}
