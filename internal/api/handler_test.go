package api

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"meownopoly/internal/board"
	"meownopoly/internal/broadcast"
	"meownopoly/internal/engine"
	"meownopoly/internal/game"
	"meownopoly/internal/models"
	"meownopoly/internal/rules"
	"meownopoly/internal/store"
)

func newTestServer(t *testing.T) (*httptest.Server, *game.Service) {
	t.Helper()
	var ids atomic.Int64
	svc := game.NewService(board.Classic(), rules.Classic(), store.NewMemory(), broadcast.NewHub(zap.NewNop(), 16), zap.NewNop(),
		game.WithSeedSource(func() int64 { return 1 }),
		game.WithIDs(func() string { return fmt.Sprintf("id-%d", ids.Add(1)) }),
	)
	mux := http.NewServeMux()
	NewHandler(svc, zap.NewNop()).RegisterRoutes(mux)
	srv := httptest.NewServer(LogMiddleware(zap.NewNop(), CORSMiddleware([]string{"http://allowed.test"}, mux)))
	t.Cleanup(srv.Close)
	return srv, svc
}

func doJSON(t *testing.T, method, url string, body any, out any) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode response: %v", err)
		}
	}
	return resp.StatusCode
}

// startGame queues two players over HTTP and returns the session state.
func startGame(t *testing.T, srv *httptest.Server) *models.GameState {
	t.Helper()
	var ticket game.Ticket
	if code := doJSON(t, http.MethodPost, srv.URL+"/api/queue", enqueueRequest{PlayerID: "ada", Name: "Ada"}, &ticket); code != http.StatusOK {
		t.Fatalf("enqueue status = %d", code)
	}
	if code := doJSON(t, http.MethodPost, srv.URL+"/api/queue", enqueueRequest{PlayerID: "bo", Name: "Bo"}, &ticket); code != http.StatusOK {
		t.Fatalf("enqueue status = %d", code)
	}
	if ticket.SessionID == "" {
		t.Fatalf("not matched: %+v", ticket)
	}
	var st models.GameState
	if code := doJSON(t, http.MethodGet, srv.URL+"/api/sessions/"+ticket.SessionID, nil, &st); code != http.StatusOK {
		t.Fatalf("get session status = %d", code)
	}
	return &st
}

func TestQueueEndpoints(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)

	var ticket game.Ticket
	if code := doJSON(t, http.MethodPost, srv.URL+"/api/queue", enqueueRequest{Name: "Solo"}, &ticket); code != http.StatusOK {
		t.Fatalf("enqueue status = %d", code)
	}
	var got game.Ticket
	if code := doJSON(t, http.MethodGet, srv.URL+"/api/queue/"+ticket.PlayerID, nil, &got); code != http.StatusOK || got.Name != "Solo" {
		t.Fatalf("ticket status = %d, %+v", code, got)
	}
	if code := doJSON(t, http.MethodDelete, srv.URL+"/api/queue/"+ticket.PlayerID, nil, nil); code != http.StatusNoContent {
		t.Fatalf("leave status = %d", code)
	}
	var e errorResponse
	if code := doJSON(t, http.MethodGet, srv.URL+"/api/queue/"+ticket.PlayerID, nil, &e); code != http.StatusNotFound {
		t.Fatalf("missing ticket status = %d", code)
	}
	if code := doJSON(t, http.MethodPost, srv.URL+"/api/queue", enqueueRequest{}, &e); code != http.StatusBadRequest {
		t.Fatalf("nameless enqueue status = %d", code)
	}
}

func TestActionEndpoint(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)
	st := startGame(t, srv)
	url := srv.URL + "/api/sessions/" + st.ID + "/action"
	cur := st.CurrentPlayer().ID
	other := "ada"
	if cur == "ada" {
		other = "bo"
	}

	tests := []struct {
		name      string
		req       actionRequest
		status    int
		retryable bool
	}{
		{name: "stale version", req: actionRequest{Action: models.Action{Type: models.ActionEndTurn}, ExpectedVersion: 7, PlayerID: cur}, status: http.StatusConflict, retryable: true},
		{name: "wrong player", req: actionRequest{Action: models.Action{Type: models.ActionEndTurn}, ExpectedVersion: 1, PlayerID: other}, status: http.StatusForbidden, retryable: true},
		{name: "rule rejection", req: actionRequest{Action: models.Action{Type: models.ActionBuy}, ExpectedVersion: 1, PlayerID: cur}, status: http.StatusBadRequest},
	}
	for _, tt := range tests {
		var e errorResponse
		if code := doJSON(t, http.MethodPost, url, tt.req, &e); code != tt.status {
			t.Fatalf("%s: status = %d, want %d", tt.name, code, tt.status)
		}
		if e.OK || e.Retryable != tt.retryable || e.Reason == "" {
			t.Fatalf("%s: body = %+v", tt.name, e)
		}
	}

	var ok struct {
		OK      bool              `json:"ok"`
		Version int64             `json:"version"`
		State   *models.GameState `json:"state"`
	}
	req := actionRequest{Action: models.Action{Type: models.ActionEndTurn}, ExpectedVersion: 1, PlayerID: cur}
	if code := doJSON(t, http.MethodPost, url, req, &ok); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if !ok.OK || ok.Version != 2 || ok.State.CurrentPlayer().ID != other {
		t.Fatalf("body = %+v", ok)
	}

	var e errorResponse
	if code := doJSON(t, http.MethodPost, srv.URL+"/api/sessions/nope/action", req, &e); code != http.StatusNotFound {
		t.Fatalf("unknown session status = %d", code)
	}
}

func TestChatAndListEndpoints(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)
	st := startGame(t, srv)

	var entry models.ChatEntry
	if code := doJSON(t, http.MethodPost, srv.URL+"/api/sessions/"+st.ID+"/chat", chatRequest{PlayerID: "ada", Text: "hi"}, &entry); code != http.StatusOK {
		t.Fatalf("chat status = %d", code)
	}
	if entry.Name != "Ada" || entry.Text != "hi" {
		t.Fatalf("entry = %+v", entry)
	}

	var list []game.Summary
	if code := doJSON(t, http.MethodGet, srv.URL+"/api/sessions", nil, &list); code != http.StatusOK {
		t.Fatalf("list status = %d", code)
	}
	if len(list) != 1 || list[0].ID != st.ID || list[0].Version != 1 {
		t.Fatalf("list = %+v", list)
	}

	var health struct {
		OK       bool           `json:"ok"`
		Sessions int            `json:"sessions"`
		Stored   map[string]int `json:"stored"`
	}
	if code := doJSON(t, http.MethodGet, srv.URL+"/api/health", nil, &health); code != http.StatusOK || !health.OK || health.Sessions != 1 {
		t.Fatalf("health = %d %+v", code, health)
	}
	if health.Stored["active"] != 1 || health.Stored["finished"] != 0 {
		t.Fatalf("stored counts = %v", health.Stored)
	}
	var maps mapsResponse
	if code := doJSON(t, http.MethodGet, srv.URL+"/api/maps", nil, &maps); code != http.StatusOK || maps.Board.ID != "classic" || len(maps.Board.Spaces) != 40 {
		t.Fatalf("maps = %d %+v", code, maps.Board)
	}
}

func TestStreamPushesSnapshots(t *testing.T) {
	t.Parallel()

	srv, svc := newTestServer(t)
	st := startGame(t, srv)

	resp, err := http.Get(srv.URL + "/api/sessions/" + st.ID + "/stream")
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}

	events := make(chan models.GameState, 4)
	go func() {
		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
		for scanner.Scan() {
			line := scanner.Text()
			if data, ok := strings.CutPrefix(line, "data: "); ok {
				var snap models.GameState
				if err := json.Unmarshal([]byte(data), &snap); err == nil {
					events <- snap
				}
			}
		}
	}()

	next := func() models.GameState {
		select {
		case snap := <-events:
			return snap
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for event")
			return models.GameState{}
		}
	}
	if first := next(); first.Version != 1 {
		t.Fatalf("initial version = %d", first.Version)
	}
	if _, err := svc.Act(t.Context(), st.ID, models.Action{Type: models.ActionEndTurn}, 1, st.CurrentPlayer().ID); err != nil {
		t.Fatalf("act: %v", err)
	}
	if second := next(); second.Version != 2 {
		t.Fatalf("pushed version = %d", second.Version)
	}
}

func TestStreamEventIDsNeverRepeat(t *testing.T) {
	t.Parallel()

	srv, svc := newTestServer(t)
	st := startGame(t, srv)

	resp, err := http.Get(srv.URL + "/api/sessions/" + st.ID + "/stream")
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	defer resp.Body.Close()

	ids := make(chan string, 8)
	go func() {
		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
		for scanner.Scan() {
			if id, ok := strings.CutPrefix(scanner.Text(), "id: "); ok {
				ids <- id
			}
		}
	}()
	next := func() string {
		select {
		case id := <-ids:
			return id
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for event id")
			return ""
		}
	}

	if id := next(); id != "1" {
		t.Fatalf("initial id = %q", id)
	}
	for i, want := range []string{"1.1", "1.2"} {
		if _, err := svc.Chat(t.Context(), st.ID, "ada", "", fmt.Sprintf("line %d", i)); err != nil {
			t.Fatalf("chat: %v", err)
		}
		if id := next(); id != want {
			t.Fatalf("chat id = %q, want %q", id, want)
		}
	}
	if _, err := svc.Act(t.Context(), st.ID, models.Action{Type: models.ActionEndTurn}, 1, st.CurrentPlayer().ID); err != nil {
		t.Fatalf("act: %v", err)
	}
	if id := next(); id != "2" {
		t.Fatalf("id after action = %q, want 2", id)
	}
}

func TestCORSMiddleware(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)

	req, _ := http.NewRequest(http.MethodOptions, srv.URL+"/api/sessions", nil)
	req.Header.Set("Origin", "http://allowed.test")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("preflight: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent || resp.Header.Get("Access-Control-Allow-Origin") != "http://allowed.test" {
		t.Fatalf("preflight = %d %q", resp.StatusCode, resp.Header.Get("Access-Control-Allow-Origin"))
	}

	req, _ = http.NewRequest(http.MethodGet, srv.URL+"/api/sessions", nil)
	req.Header.Set("Origin", "http://evil.test")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("foreign origin allowed: %q", got)
	}
}

func TestStatusFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want int
	}{
		{game.ErrSessionNotFound, http.StatusNotFound},
		{fmt.Errorf("%w: at 3", game.ErrVersionConflict), http.StatusConflict},
		{engine.ErrNotYourTurn, http.StatusForbidden},
		{engine.ErrGameOver, http.StatusGone},
		{engine.ErrInsufficientFunds, http.StatusBadRequest},
		{game.ErrEmptyChat, http.StatusBadRequest},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := StatusFor(tt.err); got != tt.want {
			t.Fatalf("StatusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
