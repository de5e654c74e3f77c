package httpapi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/roach88/ladder/internal/chat"
	"github.com/roach88/ladder/internal/ledger"
	"github.com/roach88/ladder/internal/store"
)

// Reader is the read side of ladder.Service used by the JSON endpoints.
type Reader interface {
	Stats(ctx context.Context, p ledger.ParticipantID) (ledger.Record, error)
	Leaderboard(ctx context.Context) ([]ledger.Record, error)
	Match(ctx context.Context, id ledger.MatchID) (ledger.Match, error)
	OpenMatches(ctx context.Context) ([]ledger.Match, error)
	Waiting(ctx context.Context) ([]ledger.ParticipantID, error)
	History(ctx context.Context, id ledger.MatchID) ([]store.Event, error)
}

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators of the HTTP transport.
type Deps struct {
	Ladder     Reader
	Dispatcher *chat.Dispatcher
	Names      chat.Directory
	Health     Pinger

	// AllowedOrigins enables CORS for browser dashboards. Empty disables it.
	AllowedOrigins []string
}

// NewRouter builds the chi router:
//
//	POST /v1/messages                     chat webhook
//	GET  /v1/leaderboard                  all records, best first
//	GET  /v1/participants/{id}/stats      one record
//	GET  /v1/matches                      open matches
//	GET  /v1/matches/{id}                 one match
//	GET  /v1/matches/{id}/history         audit trail
//	GET  /v1/queue                        waiting participants
//	GET  /healthz                         store reachability
func NewRouter(deps Deps) http.Handler {
	h := &handler{
		ladder: deps.Ladder,
		chat:   deps.Dispatcher,
		names:  deps.Names,
		health: deps.Health,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	if len(deps.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: deps.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type", middleware.RequestIDHeader},
			MaxAge:         300,
		}))
	}

	r.Get("/healthz", h.healthz)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/messages", h.postMessage)
		r.Get("/leaderboard", h.leaderboard)
		r.Get("/participants/{id}/stats", h.participantStats)
		r.Get("/queue", h.queue)

		r.Route("/matches", func(r chi.Router) {
			r.Get("/", h.openMatches)
			r.Get("/{id}", h.match)
			r.Get("/{id}/history", h.history)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		errorResponse(w, http.StatusNotFound, string(ledger.CodeNotFound), "the requested resource could not be found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		errorResponse(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
	})

	return r
}
