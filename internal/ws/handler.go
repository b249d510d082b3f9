package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"meownopoly/internal/api"
	"meownopoly/internal/broadcast"
	"meownopoly/internal/engine"
	"meownopoly/internal/game"
	"meownopoly/internal/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 8 << 10
)

// Message types exchanged over the socket.
const (
	TypeAction = "action"
	TypeChat   = "chat"
	TypeState  = "state"
	TypeResult = "result"
	TypeError  = "error"
)

// ClientMessage is a frame sent by a player. Action frames carry the same
// fields as the HTTP action endpoint; chat frames carry Name and Text.
type ClientMessage struct {
	Type            string        `json:"type"`
	Action          models.Action `json:"action"`
	ExpectedVersion int64         `json:"expectedVersion"`
	PlayerID        string        `json:"playerId"`
	Name            string        `json:"name,omitempty"`
	Text            string        `json:"text,omitempty"`
}

// ServerMessage is a frame pushed to a client: a state snapshot, the result
// of one of its requests, or a rejection.
type ServerMessage struct {
	Type      string          `json:"type"`
	Version   int64           `json:"version,omitempty"`
	State     json.RawMessage `json:"state,omitempty"`
	Outcome   *engine.Outcome `json:"outcome,omitempty"`
	Reason    string          `json:"reason,omitempty"`
	Retryable bool            `json:"retryable,omitempty"`
}

// Handler handles WebSocket connections for real-time game updates.
type Handler struct {
	gameService *game.Service
	log         *zap.Logger
	upgrader    websocket.Upgrader
}

// NewHandler creates a new WebSocket handler. Upgrades are accepted from the
// allowed origins, or from any origin when the list is empty.
func NewHandler(gameService *game.Service, log *zap.Logger, allowedOrigins []string) *Handler {
	allow := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		if o != "" {
			allow[o] = struct{}{}
		}
	}
	return &Handler{
		gameService: gameService,
		log:         log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" || len(allow) == 0 {
					return true
				}
				_, ok := allow[origin]
				return ok
			},
		},
	}
}

// RegisterRoutes sets up the WebSocket routes.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /ws/{sessionID}", h.handleWebSocket)
}

func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("sessionID")

	sub, err := h.gameService.Subscribe(r.Context(), sessionID)
	if err != nil {
		http.Error(w, err.Error(), api.StatusFor(err))
		return
	}
	defer sub.Close()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug("websocket upgrade failed", zap.String("session", sessionID), zap.Error(err))
		return
	}
	defer conn.Close()

	replies := make(chan ServerMessage, 8)
	stop := make(chan struct{})
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		h.writeLoop(conn, sub, replies, stop)
	}()

	h.readLoop(r.Context(), conn, sessionID, replies, writerDone)
	close(stop)
	<-writerDone
}

// writeLoop owns every write on conn. It returns when the subscription is
// dropped, a write fails or stop is closed.
func (h *Handler) writeLoop(conn *websocket.Conn, sub *broadcast.Subscription, replies <-chan ServerMessage, stop <-chan struct{}) {
	defer conn.Close()
	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		var msg ServerMessage
		select {
		case snap, ok := <-sub.C():
			if !ok {
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "session closed"),
					time.Now().Add(writeWait))
				return
			}
			msg = ServerMessage{Type: TypeState, Version: snap.Version, State: snap.Data}
		case msg = <-replies:
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
			continue
		case <-stop:
			return
		}
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(msg); err != nil {
			h.log.Debug("websocket write failed", zap.String("session", sub.SessionID()), zap.Error(err))
			return
		}
	}
}

func (h *Handler) readLoop(ctx context.Context, conn *websocket.Conn, sessionID string, replies chan<- ServerMessage, writerDone <-chan struct{}) {
	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug("websocket closed", zap.String("session", sessionID), zap.Error(err))
			}
			return
		}
		var msg ClientMessage
		reply := ServerMessage{Type: TypeError, Reason: "invalid message"}
		if err := json.Unmarshal(data, &msg); err == nil {
			reply = h.dispatch(ctx, sessionID, msg)
		}
		select {
		case replies <- reply:
		case <-writerDone:
			return
		}
	}
}

func (h *Handler) dispatch(ctx context.Context, sessionID string, msg ClientMessage) ServerMessage {
	switch msg.Type {
	case TypeAction:
		res, err := h.gameService.Act(ctx, sessionID, msg.Action, msg.ExpectedVersion, msg.PlayerID)
		if err != nil {
			return h.errorMessage(err)
		}
		return ServerMessage{Type: TypeResult, Version: res.Version, Outcome: &res.Outcome}
	case TypeChat:
		if _, err := h.gameService.Chat(ctx, sessionID, msg.PlayerID, msg.Name, msg.Text); err != nil {
			return h.errorMessage(err)
		}
		return ServerMessage{Type: TypeResult}
	default:
		return ServerMessage{Type: TypeError, Reason: "unknown message type"}
	}
}

func (h *Handler) errorMessage(err error) ServerMessage {
	reason := err.Error()
	if api.StatusFor(err) == http.StatusInternalServerError {
		h.log.Error("websocket request failed", zap.Error(err))
		reason = "internal error"
	}
	return ServerMessage{Type: TypeError, Reason: reason, Retryable: game.IsRetryable(err)}
}
