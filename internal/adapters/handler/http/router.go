package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/vncsmyrnk/scorepoll/internal/core/ports"
	"github.com/vncsmyrnk/scorepoll/internal/logger"
)

// NewHandler wires the REST and JSON-RPC routes. verifier may be nil, in
// which case no authentication is attempted.
func NewHandler(pollHandler *PollHandler, voteHandler *VoteHandler, rpcHandler *RPCHandler, verifier ports.TokenVerifier, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{
		Logger:  logger.HTTP().StandardLog(),
		NoColor: true,
	}))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	if verifier != nil {
		r.Use(Authenticate(verifier))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if rpcHandler != nil {
		r.Method(http.MethodPost, "/rpc", rpcHandler)
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/polls", func(r chi.Router) {
			r.Post("/", pollHandler.CreatePoll)
			r.Get("/{id}", pollHandler.GetPoll)
			if voteHandler != nil {
				r.Post("/{id}/votes", voteHandler.VoteOnPoll)
			}
		})
	})

	return r
}
