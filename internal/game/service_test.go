package game

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"meownopoly/internal/board"
	"meownopoly/internal/broadcast"
	"meownopoly/internal/engine"
	"meownopoly/internal/models"
	"meownopoly/internal/rules"
	"meownopoly/internal/store"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fixture struct {
	svc   *Service
	clock *fakeClock
	store *store.Memory
	hub   *broadcast.Hub
}

func newFixture(t *testing.T, r rules.Rules, opts ...Option) fixture {
	t.Helper()
	clock := &fakeClock{t: time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)}
	var ids atomic.Int64
	mem := store.NewMemory()
	hub := broadcast.NewHub(zap.NewNop(), 64)
	base := []Option{
		WithClock(clock.Now),
		WithSeedSource(func() int64 { return 42 }),
		WithIDs(func() string { return fmt.Sprintf("id-%d", ids.Add(1)) }),
	}
	svc := NewService(board.Classic(), r, mem, hub, zap.NewNop(), append(base, opts...)...)
	return fixture{svc: svc, clock: clock, store: mem, hub: hub}
}

// match seats two players and returns the new session id.
func (f fixture) match(t *testing.T, a, b string) string {
	t.Helper()
	ctx := context.Background()
	if _, err := f.svc.Enqueue(ctx, a, strings.ToUpper(a)); err != nil {
		t.Fatalf("enqueue %s: %v", a, err)
	}
	ticket, err := f.svc.Enqueue(ctx, b, strings.ToUpper(b))
	if err != nil {
		t.Fatalf("enqueue %s: %v", b, err)
	}
	if ticket.SessionID == "" {
		t.Fatalf("no session after second enqueue")
	}
	return ticket.SessionID
}

func (f fixture) state(t *testing.T, id string) *models.GameState {
	t.Helper()
	st, err := f.svc.GetSession(context.Background(), id)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	return st
}

// players returns the active player and the other seat.
func players(st *models.GameState) (string, string) {
	cur := st.CurrentPlayer().ID
	for _, p := range st.Players {
		if p.ID != cur {
			return cur, p.ID
		}
	}
	return cur, ""
}

var endTurn = models.Action{Type: models.ActionEndTurn}

func TestEnqueueMatchesPlayers(t *testing.T) {
	t.Parallel()

	f := newFixture(t, rules.Classic())
	ctx := context.Background()

	first, err := f.svc.Enqueue(ctx, "ada", "Ada")
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if first.SessionID != "" || f.svc.QueueLength() != 1 {
		t.Fatalf("first ticket = %+v, queue %d", first, f.svc.QueueLength())
	}
	second, err := f.svc.Enqueue(ctx, "bo", "Bo")
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if second.SessionID == "" || f.svc.QueueLength() != 0 {
		t.Fatalf("second ticket = %+v, queue %d", second, f.svc.QueueLength())
	}
	if got, ok := f.svc.Ticket("ada"); !ok || got.SessionID != second.SessionID {
		t.Fatalf("first player ticket = %+v", got)
	}

	st := f.state(t, second.SessionID)
	if len(st.Players) != 2 || st.Version != 1 || st.Players[0].Name != "Ada" {
		t.Fatalf("state = %+v", st)
	}
	if _, err := f.store.LoadSession(ctx, second.SessionID); err != nil {
		t.Fatalf("new session not persisted: %v", err)
	}

	list := f.svc.ListSessions()
	if len(list) != 1 || list[0].ID != second.SessionID || strings.Join(list[0].Players, ",") != "Ada,Bo" {
		t.Fatalf("list = %+v", list)
	}
}

func TestEnqueueIdempotentAndLeave(t *testing.T) {
	t.Parallel()

	f := newFixture(t, rules.Classic())
	ctx := context.Background()

	a, err := f.svc.Enqueue(ctx, "ada", "Ada")
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	again, err := f.svc.Enqueue(ctx, "ada", "Someone Else")
	if err != nil {
		t.Fatalf("enqueue again: %v", err)
	}
	if again != a || f.svc.QueueLength() != 1 {
		t.Fatalf("ticket = %+v, queue %d", again, f.svc.QueueLength())
	}
	if !f.svc.LeaveQueue("ada") || f.svc.LeaveQueue("ada") {
		t.Fatalf("leave queue should succeed exactly once")
	}
	if f.svc.QueueLength() != 0 {
		t.Fatalf("queue = %d, want 0", f.svc.QueueLength())
	}

	if _, err := f.svc.Enqueue(ctx, "", "  "); !errors.Is(err, ErrInvalidName) {
		t.Fatalf("err = %v, want %v", err, ErrInvalidName)
	}
	anon, err := f.svc.Enqueue(ctx, "", "Anon")
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if anon.PlayerID == "" {
		t.Fatalf("no player id assigned")
	}
}

func TestMatchSize(t *testing.T) {
	t.Parallel()

	f := newFixture(t, rules.Classic(), WithMatchSize(3))
	ctx := context.Background()
	var last Ticket
	for _, id := range []string{"a", "b", "c"} {
		var err error
		if last, err = f.svc.Enqueue(ctx, id, id); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}
	if last.SessionID == "" {
		t.Fatalf("no match with three players")
	}
	if n := len(f.state(t, last.SessionID).Players); n != 3 {
		t.Fatalf("players = %d, want 3", n)
	}
}

func TestActChecksVersionAndTurn(t *testing.T) {
	t.Parallel()

	f := newFixture(t, rules.Classic())
	ctx := context.Background()
	id := f.match(t, "a", "b")
	cur, other := players(f.state(t, id))

	_, err := f.svc.Act(ctx, id, endTurn, 0, cur)
	if !errors.Is(err, ErrVersionConflict) || !IsRetryable(err) {
		t.Fatalf("stale version err = %v", err)
	}
	_, err = f.svc.Act(ctx, id, endTurn, 1, other)
	if !errors.Is(err, engine.ErrNotYourTurn) || !IsRetryable(err) {
		t.Fatalf("wrong actor err = %v", err)
	}

	res, err := f.svc.Act(ctx, id, endTurn, 1, cur)
	if err != nil {
		t.Fatalf("end turn: %v", err)
	}
	if res.Version != 2 || res.State.CurrentPlayer().ID != other {
		t.Fatalf("result = v%d current %s", res.Version, res.State.CurrentPlayer().ID)
	}
	stored, err := f.store.LoadSession(ctx, id)
	if err != nil || stored.Version != 2 {
		t.Fatalf("stored = %v, %v", stored, err)
	}

	_, err = f.svc.Act(ctx, id, models.Action{Type: models.ActionBuy}, 2, other)
	if !errors.Is(err, engine.ErrNotPurchasable) || IsRetryable(err) {
		t.Fatalf("buy err = %v", err)
	}
	if v := f.state(t, id).Version; v != 2 {
		t.Fatalf("version = %d after rejection, want 2", v)
	}

	if _, err := f.svc.Act(ctx, "nope", endTurn, 1, cur); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("err = %v, want %v", err, ErrSessionNotFound)
	}
}

func TestTradesSkipVersionCheck(t *testing.T) {
	t.Parallel()

	f := newFixture(t, rules.Classic())
	ctx := context.Background()
	id := f.match(t, "a", "b")
	cur, other := players(f.state(t, id))

	offer := models.Action{Type: models.ActionTradeOffer, To: cur, Offer: models.TradeBundle{Cash: 100}}
	res, err := f.svc.Act(ctx, id, offer, 0, other)
	if err != nil {
		t.Fatalf("offer: %v", err)
	}
	if res.Version != 2 || res.Outcome.TradeID == "" {
		t.Fatalf("result = %+v", res)
	}

	accept := models.Action{Type: models.ActionTradeAccept, TradeID: res.Outcome.TradeID}
	res, err = f.svc.Act(ctx, id, accept, 99, cur)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if res.Version != 3 || res.State.Player(cur).Cash != 2100 {
		t.Fatalf("result = v%d cash %d", res.Version, res.State.Player(cur).Cash)
	}
}

func TestSubscribeSeesOrderedSnapshots(t *testing.T) {
	t.Parallel()

	f := newFixture(t, rules.Classic())
	ctx := context.Background()
	id := f.match(t, "a", "b")
	cur, other := players(f.state(t, id))

	sub, err := f.svc.Subscribe(ctx, id)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Close()

	if _, err := f.svc.Act(ctx, id, endTurn, 1, cur); err != nil {
		t.Fatalf("end turn: %v", err)
	}
	if _, err := f.svc.Chat(ctx, id, cur, "", "gg"); err != nil {
		t.Fatalf("chat: %v", err)
	}
	if _, err := f.svc.Act(ctx, id, endTurn, 2, other); err != nil {
		t.Fatalf("end turn: %v", err)
	}

	want := []struct {
		version int64
		chat    int
	}{{1, 0}, {2, 0}, {2, 1}, {3, 1}}
	for i, w := range want {
		select {
		case snap := <-sub.C():
			if snap.Version != w.version || len(snap.State.Chat) != w.chat {
				t.Fatalf("snapshot %d = v%d chat %d, want v%d chat %d", i, snap.Version, len(snap.State.Chat), w.version, w.chat)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for snapshot %d", i)
		}
	}
}

func TestChat(t *testing.T) {
	t.Parallel()

	r := rules.Classic()
	f := newFixture(t, r)
	ctx := context.Background()
	id := f.match(t, "a", "b")

	entry, err := f.svc.Chat(ctx, id, "a", "ignored", "  hello  ")
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if entry.Name != "A" || entry.Text != "hello" {
		t.Fatalf("entry = %+v", entry)
	}
	entry, err = f.svc.Chat(ctx, id, "", "", strings.Repeat("x", 500))
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if entry.Name != "guest" || len(entry.Text) != r.MaxChatLength {
		t.Fatalf("entry = %s, %d runes", entry.Name, len(entry.Text))
	}
	if _, err := f.svc.Chat(ctx, id, "a", "", " "); !errors.Is(err, ErrEmptyChat) {
		t.Fatalf("err = %v, want %v", err, ErrEmptyChat)
	}
	if _, err := f.svc.Chat(ctx, "nope", "a", "", "hi"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("err = %v, want %v", err, ErrSessionNotFound)
	}

	for i := 0; i < r.MaxChatEntries+10; i++ {
		if _, err := f.svc.Chat(ctx, id, "b", "", fmt.Sprintf("line %d", i)); err != nil {
			t.Fatalf("chat: %v", err)
		}
	}
	st := f.state(t, id)
	if len(st.Chat) != r.MaxChatEntries {
		t.Fatalf("chat entries = %d, want %d", len(st.Chat), r.MaxChatEntries)
	}
	if last := st.Chat[len(st.Chat)-1].Text; last != fmt.Sprintf("line %d", r.MaxChatEntries+9) {
		t.Fatalf("last line = %q", last)
	}
	if st.Version != 1 {
		t.Fatalf("chat moved the version to %d", st.Version)
	}
}

func TestTickTimeouts(t *testing.T) {
	t.Parallel()

	f := newFixture(t, rules.Classic())
	ctx := context.Background()
	id := f.match(t, "a", "b")
	cur, other := players(f.state(t, id))

	if n := f.svc.TickTimeouts(ctx); n != 0 {
		t.Fatalf("applied %d timeouts before the deadline", n)
	}
	f.clock.Advance(41 * time.Second)
	if n := f.svc.TickTimeouts(ctx); n != 1 {
		t.Fatalf("applied %d timeouts, want 1", n)
	}

	st := f.state(t, id)
	p := st.Player(cur)
	if p.TimeoutCount != 1 || p.Cash != 1950 || st.Version != 2 {
		t.Fatalf("player %+v version %d", *p, st.Version)
	}
	if st.CurrentPlayer().ID != other {
		t.Fatalf("turn did not pass")
	}
	if n := f.svc.TickTimeouts(ctx); n != 0 {
		t.Fatalf("applied %d timeouts on a fresh deadline", n)
	}

	// the timed-out player's view is now stale
	if _, err := f.svc.Act(ctx, id, endTurn, 1, cur); !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("err = %v, want %v", err, ErrVersionConflict)
	}
}

func TestFinishedSessionIsTerminalAndEvicted(t *testing.T) {
	t.Parallel()

	r := rules.Classic()
	r.StartingCash = 10
	f := newFixture(t, r, WithRetention(time.Minute))
	ctx := context.Background()
	id := f.match(t, "a", "b")
	_, other := players(f.state(t, id))

	sub, err := f.svc.Subscribe(ctx, id)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	f.clock.Advance(41 * time.Second)
	f.svc.TickTimeouts(ctx)
	st := f.state(t, id)
	if !st.IsOver() || st.Winner != other {
		t.Fatalf("status %s winner %s", st.Status, st.Winner)
	}

	_, err = f.svc.Act(ctx, id, endTurn, st.Version, other)
	if !errors.Is(err, engine.ErrGameOver) || IsRetryable(err) {
		t.Fatalf("err = %v, want terminal %v", err, engine.ErrGameOver)
	}
	if _, err := f.svc.Chat(ctx, id, other, "", "gg"); !errors.Is(err, engine.ErrGameOver) {
		t.Fatalf("chat err = %v", err)
	}

	if n := f.svc.Evict(); n != 0 {
		t.Fatalf("evicted %d before retention", n)
	}
	f.clock.Advance(2 * time.Minute)
	if n := f.svc.Evict(); n != 1 {
		t.Fatalf("evicted %d, want 1", n)
	}
	if len(f.svc.ListSessions()) != 0 {
		t.Fatalf("evicted session still listed")
	}
	if _, ok := f.svc.Ticket("a"); ok {
		t.Fatalf("ticket kept after eviction")
	}

	loaded := f.state(t, id)
	if !loaded.IsOver() || loaded.Winner != other {
		t.Fatalf("store fallback = %s %s", loaded.Status, loaded.Winner)
	}
	if _, err := f.svc.Act(ctx, id, endTurn, loaded.Version, other); !errors.Is(err, engine.ErrGameOver) {
		t.Fatalf("err = %v, want %v", err, engine.ErrGameOver)
	}

	for range sub.C() {
	}
}

func TestRequeueAfterFinishedGameStartsNewMatch(t *testing.T) {
	t.Parallel()

	r := rules.Classic()
	r.StartingCash = 10
	f := newFixture(t, r, WithRetention(time.Hour))
	ctx := context.Background()
	first := f.match(t, "a", "b")

	f.clock.Advance(41 * time.Second)
	f.svc.TickTimeouts(ctx)
	if !f.state(t, first).IsOver() {
		t.Fatalf("first game still running")
	}

	ticket, err := f.svc.Enqueue(ctx, "a", "A")
	if err != nil {
		t.Fatalf("requeue a: %v", err)
	}
	if ticket.SessionID != "" {
		t.Fatalf("requeued ticket points at %q, want waiting", ticket.SessionID)
	}
	second := f.match(t, "a", "b")
	if second == first {
		t.Fatalf("requeue returned finished session %q", first)
	}
	if st := f.state(t, second); st.IsOver() {
		t.Fatalf("new session is already over")
	}

	active, finished, err := f.svc.StoredCounts(ctx)
	if err != nil {
		t.Fatalf("stored counts: %v", err)
	}
	if active != 1 || finished != 1 {
		t.Fatalf("stored counts = %d active, %d finished", active, finished)
	}
}

func TestSameVersionRaceHasOneWinner(t *testing.T) {
	t.Parallel()

	f := newFixture(t, rules.Classic())
	ctx := context.Background()
	id := f.match(t, "a", "b")
	cur, _ := players(f.state(t, id))

	const racers = 8
	var (
		wg        sync.WaitGroup
		start     = make(chan struct{})
		accepted  atomic.Int32
		conflicts atomic.Int32
	)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := f.svc.Act(ctx, id, endTurn, 1, cur)
			switch {
			case err == nil:
				accepted.Add(1)
			case errors.Is(err, ErrVersionConflict):
				conflicts.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()

	if accepted.Load() != 1 || conflicts.Load() != racers-1 {
		t.Fatalf("accepted %d conflicts %d", accepted.Load(), conflicts.Load())
	}
	if v := f.state(t, id).Version; v != 2 {
		t.Fatalf("version = %d, want 2", v)
	}
}

func TestConcurrentSessionsStayIsolated(t *testing.T) {
	t.Parallel()

	f := newFixture(t, rules.Classic())
	ctx := context.Background()
	sessions := map[string][]string{
		f.match(t, "a1", "a2"): {"a1", "a2"},
		f.match(t, "b1", "b2"): {"b1", "b2"},
	}

	const turns = 40
	var wg sync.WaitGroup
	done := make(chan struct{})
	for id := range sessions {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			for i := 0; i < turns; i++ {
				st, err := f.svc.GetSession(ctx, id)
				if err != nil {
					t.Errorf("get %s: %v", id, err)
					return
				}
				if _, err := f.svc.Act(ctx, id, endTurn, st.Version, st.CurrentPlayer().ID); err != nil {
					t.Errorf("act %s: %v", id, err)
					return
				}
			}
		}(id)

		// stale writers never get through
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				if _, err := f.svc.Act(ctx, id, endTurn, 0, "a1"); err == nil {
					t.Errorf("stale action accepted on %s", id)
					return
				}
			}
		}(id)
	}

	var clockWG sync.WaitGroup
	clockWG.Add(1)
	go func() {
		defer clockWG.Done()
		for {
			select {
			case <-done:
				return
			default:
				f.svc.TickTimeouts(ctx)
				f.svc.ListSessions()
			}
		}
	}()

	// wait for the writers, then stop the background load
	writers := make(chan struct{})
	go func() {
		for {
			all := true
			for id := range sessions {
				if st, err := f.svc.GetSession(ctx, id); err != nil || st.Version < turns+1 {
					all = false
				}
			}
			if all {
				close(writers)
				return
			}
			time.Sleep(time.Millisecond)
		}
	}()
	select {
	case <-writers:
	case <-time.After(10 * time.Second):
		t.Fatal("writers did not finish")
	}
	close(done)
	wg.Wait()
	clockWG.Wait()

	for id, seats := range sessions {
		st := f.state(t, id)
		if st.Version != turns+1 {
			t.Fatalf("%s version = %d, want %d", id, st.Version, turns+1)
		}
		for _, ev := range st.Log {
			if ev.Type != models.EventEndTurn || (ev.PlayerID != seats[0] && ev.PlayerID != seats[1]) {
				t.Fatalf("%s has foreign event %+v", id, ev)
			}
		}
		if len(st.Log) != turns {
			t.Fatalf("%s log = %d entries, want %d", id, len(st.Log), turns)
		}
	}
}
