package htmx

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/a-h/templ"
	"go.uber.org/zap"

	"meownopoly/internal/api"
	"meownopoly/internal/game"
	"meownopoly/internal/models"
)

// Handler handles HTMX requests with SSE for real-time updates.
type Handler struct {
	gameService *game.Service
	log         *zap.Logger
}

// NewHandler creates a new HTMX handler.
func NewHandler(gameService *game.Service, log *zap.Logger) *Handler {
	return &Handler{gameService: gameService, log: log}
}

// RegisterRoutes sets up the HTMX routes.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", h.handleLobby)
	mux.HandleFunc("GET /htmx/sessions", h.handleSessions)
	mux.HandleFunc("GET /htmx/sessions/{sessionID}", h.handleSession)
	mux.HandleFunc("POST /htmx/sessions/{sessionID}/action", h.handleAction)
	mux.HandleFunc("POST /htmx/sessions/{sessionID}/chat", h.handleChat)
	mux.HandleFunc("POST /htmx/queue", h.handleEnqueue)
	mux.HandleFunc("GET /htmx/queue/{playerID}", h.handleTicket)
	mux.HandleFunc("GET /htmx/sse/{sessionID}", h.handleSSE)
}

func getPlayerFromRequest(r *http.Request) string {
	player := r.FormValue("player")
	if player == "" {
		player = r.URL.Query().Get("player")
	}
	return player
}

func (h *Handler) handleLobby(w http.ResponseWriter, r *http.Request) {
	h.renderHTML(w, r, http.StatusOK, Page("Meownopoly", Lobby(h.gameService.ListSessions())))
}

func (h *Handler) handleSessions(w http.ResponseWriter, r *http.Request) {
	h.renderHTML(w, r, http.StatusOK, SessionList(h.gameService.ListSessions()))
}

func (h *Handler) handleSession(w http.ResponseWriter, r *http.Request) {
	st, err := h.gameService.GetSession(r.Context(), r.PathValue("sessionID"))
	if err != nil {
		h.renderHTML(w, r, api.StatusFor(err), Page("Meownopoly", ErrorStatus(err.Error())))
		return
	}
	view := SessionView(st, h.gameService.Board(), getPlayerFromRequest(r))
	if r.Header.Get("HX-Request") == "true" {
		h.renderHTML(w, r, http.StatusOK, view)
		return
	}
	h.renderHTML(w, r, http.StatusOK, Page("Meownopoly "+st.ID, view))
}

func (h *Handler) handleAction(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("sessionID")
	player := getPlayerFromRequest(r)
	version, err := strconv.ParseInt(r.FormValue("version"), 10, 64)
	if err != nil {
		h.renderHTML(w, r, http.StatusBadRequest, ErrorStatus("version is required"))
		return
	}
	act := models.Action{Type: models.ActionType(r.FormValue("type"))}
	if s := r.FormValue("space"); s != "" {
		if act.Space, err = strconv.Atoi(s); err != nil {
			h.renderHTML(w, r, http.StatusBadRequest, ErrorStatus("space must be a number"))
			return
		}
	}

	res, err := h.gameService.Act(r.Context(), sessionID, act, version, player)
	if err != nil {
		// htmx only swaps 2xx responses, so rejections come back as 200
		// with the message above the current state.
		st, getErr := h.gameService.GetSession(r.Context(), sessionID)
		if getErr != nil {
			h.renderHTML(w, r, http.StatusOK, ErrorStatus(err.Error()))
			return
		}
		h.renderHTML(w, r, http.StatusOK, templ.Join(ErrorStatus(err.Error()), SessionContent(st, h.gameService.Board(), player)))
		return
	}
	h.renderHTML(w, r, http.StatusOK, SessionContent(res.State, h.gameService.Board(), player))
}

func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	_, err := h.gameService.Chat(r.Context(), r.PathValue("sessionID"), getPlayerFromRequest(r), r.FormValue("name"), r.FormValue("text"))
	if err != nil {
		h.renderHTML(w, r, api.StatusFor(err), ErrorStatus(err.Error()))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	ticket, err := h.gameService.Enqueue(r.Context(), getPlayerFromRequest(r), r.FormValue("name"))
	if err != nil {
		h.renderHTML(w, r, http.StatusOK, ErrorStatus(err.Error()))
		return
	}
	h.renderHTML(w, r, http.StatusOK, TicketStatus(ticket))
}

func (h *Handler) handleTicket(w http.ResponseWriter, r *http.Request) {
	ticket, ok := h.gameService.Ticket(r.PathValue("playerID"))
	if !ok {
		h.renderHTML(w, r, http.StatusOK, ErrorStatus("You are no longer queued."))
		return
	}
	h.renderHTML(w, r, http.StatusOK, TicketStatus(ticket))
}

func (h *Handler) handleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}
	sub, err := h.gameService.Subscribe(r.Context(), r.PathValue("sessionID"))
	if err != nil {
		http.Error(w, err.Error(), api.StatusFor(err))
		return
	}
	defer sub.Close()
	player := r.URL.Query().Get("player")

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case snap, ok := <-sub.C():
			if !ok {
				return
			}
			html, err := renderToString(r.Context(), SessionContent(snap.State, h.gameService.Board(), player))
			if err != nil {
				h.log.Error("render session", zap.String("session", snap.SessionID), zap.Error(err))
				return
			}
			fmt.Fprintf(w, "event: state-update\ndata: %s\n\n", strings.ReplaceAll(html, "\n", ""))
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

func (h *Handler) renderHTML(w http.ResponseWriter, r *http.Request, status int, c templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := c.Render(r.Context(), w); err != nil {
		h.log.Warn("render html", zap.String("path", r.URL.Path), zap.Error(err))
	}
}

func renderToString(ctx context.Context, component templ.Component) (string, error) {
	var buf bytes.Buffer
	if err := component.Render(ctx, &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}
