package htmx

import (
	"bufio"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"meownopoly/internal/board"
	"meownopoly/internal/broadcast"
	"meownopoly/internal/game"
	"meownopoly/internal/models"
	"meownopoly/internal/rules"
	"meownopoly/internal/store"
)

func newServer(t *testing.T) (*httptest.Server, *game.Service) {
	t.Helper()
	var ids atomic.Int64
	svc := game.NewService(board.Classic(), rules.Classic(), store.NewMemory(), broadcast.NewHub(zap.NewNop(), 16), zap.NewNop(),
		game.WithSeedSource(func() int64 { return 5 }),
		game.WithIDs(func() string { return fmt.Sprintf("id-%d", ids.Add(1)) }),
	)
	mux := http.NewServeMux()
	NewHandler(svc, zap.NewNop()).RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, svc
}

func body(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(data)
}

func matched(t *testing.T, svc *game.Service) *models.GameState {
	t.Helper()
	if _, err := svc.Enqueue(t.Context(), "ada", "Ada"); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	ticket, err := svc.Enqueue(t.Context(), "bo", "Bo <b>")
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	st, err := svc.GetSession(t.Context(), ticket.SessionID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	return st
}

func TestMoney(t *testing.T) {
	t.Parallel()

	tests := map[int]string{0: "$0", 50: "$50", 1500: "$1,500", 1234567: "$1,234,567"}
	for in, want := range tests {
		if got := Money(in); got != want {
			t.Fatalf("Money(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestQueueFlow(t *testing.T) {
	t.Parallel()

	srv, _ := newServer(t)

	resp, err := http.PostForm(srv.URL+"/htmx/queue", url.Values{"name": {"Ada"}, "player": {"ada"}})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if html := body(t, resp); !strings.Contains(html, "Waiting for opponents, Ada") {
		t.Fatalf("waiting html = %s", html)
	}

	resp, err = http.PostForm(srv.URL+"/htmx/queue", url.Values{"name": {"Bo"}, "player": {"bo"}})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if html := body(t, resp); !strings.Contains(html, "Match found") || !strings.Contains(html, "player=bo") {
		t.Fatalf("matched html = %s", html)
	}

	resp, err = http.Get(srv.URL + "/htmx/queue/ada")
	if err != nil {
		t.Fatalf("ticket: %v", err)
	}
	if html := body(t, resp); !strings.Contains(html, "Match found") {
		t.Fatalf("ticket html = %s", html)
	}
}

func TestSessionPageEscapesAndShowsControls(t *testing.T) {
	t.Parallel()

	srv, svc := newServer(t)
	st := matched(t, svc)
	cur := st.CurrentPlayer().ID

	resp, err := http.Get(srv.URL + "/htmx/sessions/" + st.ID + "?player=" + cur)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if resp.Header.Get("Content-Type") != "text/html; charset=utf-8" {
		t.Fatalf("content type = %q", resp.Header.Get("Content-Type"))
	}
	html := body(t, resp)
	for _, want := range []string{"<!doctype html>", `sse-connect="/htmx/sse/` + st.ID, "$2,000", "Bo &lt;b&gt;", `&#34;type&#34;:&#34;ROLL&#34;`} {
		if !strings.Contains(html, want) {
			t.Fatalf("page is missing %q:\n%s", want, html)
		}
	}
	if strings.Contains(html, "Bo <b>") {
		t.Fatalf("player name was not escaped")
	}

	other := "ada"
	if cur == other {
		other = "bo"
	}
	resp, err = http.Get(srv.URL + "/htmx/sessions/" + st.ID + "?player=" + other)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if html := body(t, resp); strings.Contains(html, `class="controls"`) || !strings.Contains(html, `name="text"`) {
		t.Fatalf("waiting player should get chat without controls:\n%s", html)
	}

	resp, err = http.Get(srv.URL + "/htmx/sessions/missing")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("missing session status = %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestActionRendersStateOrError(t *testing.T) {
	t.Parallel()

	srv, svc := newServer(t)
	st := matched(t, svc)
	cur := st.CurrentPlayer().ID
	target := srv.URL + "/htmx/sessions/" + st.ID + "/action"

	resp, err := http.PostForm(target, url.Values{"type": {"END_TURN"}, "version": {"1"}, "player": {cur}})
	if err != nil {
		t.Fatalf("action: %v", err)
	}
	if html := body(t, resp); !strings.Contains(html, `data-version="2"`) || strings.Contains(html, `class="error"`) {
		t.Fatalf("accepted html = %s", html)
	}

	resp, err = http.PostForm(target, url.Values{"type": {"END_TURN"}, "version": {"1"}, "player": {cur}})
	if err != nil {
		t.Fatalf("action: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("rejected status = %d", resp.StatusCode)
	}
	if html := body(t, resp); !strings.Contains(html, `class="error"`) || !strings.Contains(html, `data-version="2"`) {
		t.Fatalf("rejected html = %s", html)
	}

	resp, err = http.PostForm(target, url.Values{"type": {"END_TURN"}, "player": {cur}})
	if err != nil {
		t.Fatalf("action: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing version status = %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestSSEStreamsRenderedState(t *testing.T) {
	t.Parallel()

	srv, svc := newServer(t)
	st := matched(t, svc)

	resp, err := http.Get(srv.URL + "/htmx/sse/" + st.ID)
	if err != nil {
		t.Fatalf("sse: %v", err)
	}
	defer resp.Body.Close()

	lines := make(chan string, 16)
	go func() {
		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	waitFor := func(want string) {
		t.Helper()
		deadline := time.After(2 * time.Second)
		for {
			select {
			case line, ok := <-lines:
				if !ok {
					t.Fatalf("stream closed before %q", want)
				}
				if strings.Contains(line, want) {
					return
				}
			case <-deadline:
				t.Fatalf("timed out waiting for %q", want)
			}
		}
	}

	waitFor("event: state-update")
	if _, err := svc.Chat(t.Context(), st.ID, "ada", "", "hello there"); err != nil {
		t.Fatalf("chat: %v", err)
	}
	waitFor("hello there")
}
