package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"meownopoly/internal/board"
	"meownopoly/internal/engine"
	"meownopoly/internal/game"
	"meownopoly/internal/models"
	"meownopoly/internal/rules"
)

const keepAlive = 15 * time.Second

// Handler handles JSON API requests
type Handler struct {
	gameService *game.Service
	log         *zap.Logger
}

// NewHandler creates a new handler
func NewHandler(gameService *game.Service, log *zap.Logger) *Handler {
	return &Handler{gameService: gameService, log: log}
}

// RegisterRoutes sets up the routes
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/health", h.handleHealth)
	mux.HandleFunc("GET /api/maps", h.handleMaps)
	mux.HandleFunc("GET /api/sessions", h.handleListSessions)
	mux.HandleFunc("GET /api/sessions/{sessionID}", h.handleGetSession)
	mux.HandleFunc("POST /api/sessions/{sessionID}/action", h.handleAction)
	mux.HandleFunc("POST /api/sessions/{sessionID}/chat", h.handleChat)
	mux.HandleFunc("GET /api/sessions/{sessionID}/stream", h.handleStream)
	mux.HandleFunc("POST /api/queue", h.handleEnqueue)
	mux.HandleFunc("GET /api/queue/{playerID}", h.handleTicket)
	mux.HandleFunc("DELETE /api/queue/{playerID}", h.handleLeaveQueue)
}

type actionRequest struct {
	Action          models.Action `json:"action"`
	ExpectedVersion int64         `json:"expectedVersion"`
	PlayerID        string        `json:"playerId"`
}

type actionResponse struct {
	OK bool `json:"ok"`
	game.Result
}

type chatRequest struct {
	PlayerID string `json:"playerId"`
	Name     string `json:"name"`
	Text     string `json:"text"`
}

type enqueueRequest struct {
	PlayerID string `json:"playerId"`
	Name     string `json:"name"`
}

type errorResponse struct {
	OK        bool   `json:"ok"`
	Reason    string `json:"reason"`
	Retryable bool   `json:"retryable"`
}

type mapsResponse struct {
	Board *board.Board `json:"board"`
	Rules rules.Rules  `json:"rules"`
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	active, finished, err := h.gameService.StoredCounts(r.Context())
	if err != nil {
		h.log.Warn("health: count stored sessions", zap.Error(err))
		respondJSON(w, http.StatusServiceUnavailable, map[string]any{"ok": false, "error": "store unavailable"})
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"ok":       true,
		"sessions": len(h.gameService.ListSessions()),
		"queue":    h.gameService.QueueLength(),
		"stored": map[string]int{
			"active":   active,
			"finished": finished,
		},
	})
}

func (h *Handler) handleMaps(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, mapsResponse{Board: h.gameService.Board(), Rules: h.gameService.Rules()})
}

func (h *Handler) handleListSessions(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.gameService.ListSessions())
}

func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	st, err := h.gameService.GetSession(r.Context(), r.PathValue("sessionID"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, st)
}

func (h *Handler) handleAction(w http.ResponseWriter, r *http.Request) {
	var req actionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, errorResponse{Reason: "invalid request body"})
		return
	}
	res, err := h.gameService.Act(r.Context(), r.PathValue("sessionID"), req.Action, req.ExpectedVersion, req.PlayerID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, actionResponse{OK: true, Result: res})
}

func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, errorResponse{Reason: "invalid request body"})
		return
	}
	entry, err := h.gameService.Chat(r.Context(), r.PathValue("sessionID"), req.PlayerID, req.Name, req.Text)
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, entry)
}

func (h *Handler) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	var req enqueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, errorResponse{Reason: "invalid request body"})
		return
	}
	ticket, err := h.gameService.Enqueue(r.Context(), req.PlayerID, req.Name)
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, ticket)
}

func (h *Handler) handleTicket(w http.ResponseWriter, r *http.Request) {
	ticket, ok := h.gameService.Ticket(r.PathValue("playerID"))
	if !ok {
		respondJSON(w, http.StatusNotFound, errorResponse{Reason: "player is not queued"})
		return
	}
	respondJSON(w, http.StatusOK, ticket)
}

func (h *Handler) handleLeaveQueue(w http.ResponseWriter, r *http.Request) {
	if !h.gameService.LeaveQueue(r.PathValue("playerID")) {
		respondJSON(w, http.StatusNotFound, errorResponse{Reason: "player is not waiting"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleStream pushes every snapshot of a session as a server-sent event.
func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}
	sub, err := h.gameService.Subscribe(r.Context(), r.PathValue("sessionID"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	defer sub.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ping := time.NewTicker(keepAlive)
	defer ping.Stop()
	var ids eventIDs
	for {
		select {
		case snap, ok := <-sub.C():
			if !ok {
				return
			}
			fmt.Fprintf(w, "id: %s\nevent: state\ndata: %s\n\n", ids.next(snap.Version), snap.Data)
			flusher.Flush()
		case <-ping.C:
			fmt.Fprint(w, ": keep-alive\n\n")
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

// eventIDs numbers the frames of one stream. A frame that carries a new
// version is identified by it; chat frames repeat the version and get a
// ".n" suffix so no id is sent twice.
type eventIDs struct {
	version int64
	repeats int
	started bool
}

func (e *eventIDs) next(version int64) string {
	id := strconv.FormatInt(version, 10)
	if e.started && version == e.version {
		e.repeats++
		return id + "." + strconv.Itoa(e.repeats)
	}
	e.version, e.repeats, e.started = version, 0, true
	return id
}

// StatusFor maps a coordinator or engine error to an HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, game.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, game.ErrVersionConflict):
		return http.StatusConflict
	case errors.Is(err, engine.ErrNotYourTurn):
		return http.StatusForbidden
	case errors.Is(err, engine.ErrGameOver):
		return http.StatusGone
	case errors.Is(err, game.ErrEmptyChat), errors.Is(err, game.ErrInvalidName), engine.IsRejection(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	reason := err.Error()
	if status == http.StatusInternalServerError {
		h.log.Error("request failed", zap.Error(err))
		reason = "internal error"
	}
	respondJSON(w, status, errorResponse{Reason: reason, Retryable: game.IsRetryable(err)})
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
