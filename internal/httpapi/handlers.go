package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/roach88/ladder/internal/chat"
	"github.com/roach88/ladder/internal/ledger"
	"github.com/roach88/ladder/internal/store"
)

type handler struct {
	ladder Reader
	chat   *chat.Dispatcher
	names  chat.Directory
	health Pinger
}

// messageRequest is the chat webhook payload. Identity and the admin flag
// are resolved by the platform integration that calls the webhook.
type messageRequest struct {
	ParticipantID int64  `json:"participant_id"`
	DisplayName   string `json:"display_name"`
	IsAdmin       bool   `json:"is_admin"`
	Text          string `json:"text"`
}

type messageResponse struct {
	Status string `json:"status"`
	Reply  string `json:"reply,omitempty"`
	Code   string `json:"code,omitempty"`
}

type recordResponse struct {
	ParticipantID int64  `json:"participant_id"`
	Name          string `json:"name"`
	Wins          int    `json:"wins"`
	Losses        int    `json:"losses"`
}

type matchResponse struct {
	ID      int64    `json:"id"`
	Players [2]int64 `json:"players"`
	State   string   `json:"state"`
	Winner  int64    `json:"winner,omitempty"`
}

type eventResponse struct {
	Seq    int64  `json:"seq"`
	ID     string `json:"id"`
	Kind   string `json:"kind"`
	Actor  int64  `json:"actor"`
	Winner int64  `json:"winner,omitempty"`
}

// postMessage runs one chat message through the dispatcher. Rejected
// commands are still 200: the reply text is what the chat user sees.
func (h *handler) postMessage(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if err := readJSON(w, r, &req); err != nil {
		badRequest(w, err)
		return
	}
	if req.ParticipantID <= 0 {
		badRequest(w, errors.New("participant_id must be positive"))
		return
	}

	reply, handled, err := h.chat.Handle(r.Context(), chat.Message{
		Author: ledger.ParticipantID(req.ParticipantID),
		Name:   req.DisplayName,
		Admin:  req.IsAdmin,
		Text:   req.Text,
	})
	if err != nil {
		failure(w, r, err)
		return
	}

	switch {
	case !handled:
		writeJSON(w, http.StatusOK, messageResponse{Status: "ignored"})
	case reply.OK():
		writeJSON(w, http.StatusOK, messageResponse{Status: "ok", Reply: reply.Text})
	default:
		writeJSON(w, http.StatusOK, messageResponse{Status: "rejected", Reply: reply.Text, Code: string(reply.Code)})
	}
}

func (h *handler) leaderboard(w http.ResponseWriter, r *http.Request) {
	records, err := h.ladder.Leaderboard(r.Context())
	if err != nil {
		failure(w, r, err)
		return
	}

	limit, err := parseLimit(r, len(records))
	if err != nil {
		badRequest(w, err)
		return
	}

	entries := make([]recordResponse, 0, limit)
	for _, rec := range records[:limit] {
		entries = append(entries, h.record(rec))
	}
	writeJSON(w, http.StatusOK, envelope{"entries": entries})
}

func (h *handler) participantStats(w http.ResponseWriter, r *http.Request) {
	p, err := chat.ParseParticipant(chi.URLParam(r, "id"))
	if err != nil {
		failure(w, r, err)
		return
	}

	rec, err := h.ladder.Stats(r.Context(), p)
	if err != nil {
		failure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.record(rec))
}

func (h *handler) queue(w http.ResponseWriter, r *http.Request) {
	waiting, err := h.ladder.Waiting(r.Context())
	if err != nil {
		failure(w, r, err)
		return
	}

	ids := make([]int64, 0, len(waiting))
	for _, p := range waiting {
		ids = append(ids, int64(p))
	}
	writeJSON(w, http.StatusOK, envelope{"waiting": ids})
}

func (h *handler) openMatches(w http.ResponseWriter, r *http.Request) {
	open, err := h.ladder.OpenMatches(r.Context())
	if err != nil {
		failure(w, r, err)
		return
	}

	matches := make([]matchResponse, 0, len(open))
	for _, m := range open {
		matches = append(matches, toMatchResponse(m))
	}
	writeJSON(w, http.StatusOK, envelope{"matches": matches})
}

func (h *handler) match(w http.ResponseWriter, r *http.Request) {
	id, err := chat.ParseMatchID(chi.URLParam(r, "id"))
	if err != nil {
		failure(w, r, err)
		return
	}

	m, err := h.ladder.Match(r.Context(), id)
	if err != nil {
		failure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toMatchResponse(m))
}

func (h *handler) history(w http.ResponseWriter, r *http.Request) {
	id, err := chat.ParseMatchID(chi.URLParam(r, "id"))
	if err != nil {
		failure(w, r, err)
		return
	}

	events, err := h.ladder.History(r.Context(), id)
	if err != nil {
		failure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"match_id": int64(id), "events": toEventResponses(events)})
}

func (h *handler) healthz(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		if err := h.health.Ping(r.Context()); err != nil {
			errorResponse(w, http.StatusServiceUnavailable, string(ledger.CodePersistenceFailure), "store unreachable")
			return
		}
	}
	writeJSON(w, http.StatusOK, envelope{"status": "ok"})
}

func (h *handler) record(r ledger.Record) recordResponse {
	return recordResponse{
		ParticipantID: int64(r.Participant),
		Name:          chat.DisplayName(h.names, r.Participant),
		Wins:          r.Wins,
		Losses:        r.Losses,
	}
}

func toMatchResponse(m ledger.Match) matchResponse {
	return matchResponse{
		ID:      int64(m.ID),
		Players: [2]int64{int64(m.Players[0]), int64(m.Players[1])},
		State:   m.State.String(),
		Winner:  int64(m.Winner),
	}
}

func toEventResponses(events []store.Event) []eventResponse {
	out := make([]eventResponse, 0, len(events))
	for _, ev := range events {
		out = append(out, eventResponse{
			Seq:    ev.Seq,
			ID:     ev.ID,
			Kind:   string(ev.Kind),
			Actor:  int64(ev.Actor),
			Winner: int64(ev.Winner),
		})
	}
	return out
}

// parseLimit reads ?limit=N, clamped to max. Absent means max.
func parseLimit(r *http.Request, max int) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return max, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, errors.New("limit must be a positive integer")
	}
	if n > max {
		n = max
	}
	return n, nil
}
