package game

import (
	"context"
	crand "crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"meownopoly/internal/board"
	"meownopoly/internal/broadcast"
	"meownopoly/internal/engine"
	"meownopoly/internal/models"
	"meownopoly/internal/rules"
	"meownopoly/internal/store"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrVersionConflict = errors.New("version conflict")
	ErrEmptyChat       = errors.New("chat message is empty")
	ErrInvalidName     = errors.New("player name is required")
)

// IsRetryable reports whether err is a concurrency rejection that the caller
// can resolve by refetching the session and trying again.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrVersionConflict) || errors.Is(err, engine.ErrNotYourTurn)
}

// session pairs one game state with the lock that serializes its writers.
type session struct {
	mu    sync.Mutex
	state *models.GameState
	rng   *rand.Rand
}

// Result is the response to an accepted action.
type Result struct {
	Outcome engine.Outcome    `json:"outcome"`
	Version int64             `json:"version"`
	State   *models.GameState `json:"state"`
}

// Summary is the listing view of a session.
type Summary struct {
	ID        string        `json:"id"`
	Players   []string      `json:"players"`
	Version   int64         `json:"version"`
	Status    models.Status `json:"status"`
	Winner    string        `json:"winner,omitempty"`
	CreatedAt time.Time     `json:"createdAt"`
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithSeedSource supplies the seeds of per-session random sources.
func WithSeedSource(seed func() int64) Option {
	return func(s *Service) { s.seed = seed }
}

// WithIDs replaces the id generator used for sessions, players and trades.
func WithIDs(newID func() string) Option {
	return func(s *Service) { s.newID = newID }
}

// WithMatchSize sets how many queued players start a game.
func WithMatchSize(n int) Option {
	return func(s *Service) {
		if n >= 2 {
			s.matchSize = n
		}
	}
}

// WithRetention sets how long finished sessions stay in memory.
func WithRetention(d time.Duration) Option {
	return func(s *Service) { s.retention = d }
}

// Service is the session coordinator. It owns the registry of live sessions
// and the matchmaking queue, and is the only writer of game states.
type Service struct {
	board *board.Board
	rules rules.Rules
	store store.Store
	hub   *broadcast.Hub
	log   *zap.Logger

	now       func() time.Time
	seed      func() int64
	newID     func() string
	matchSize int
	retention time.Duration

	mu       sync.RWMutex
	sessions map[string]*session
	queue    []*Ticket
	tickets  map[string]*Ticket
}

// NewService creates a new session coordinator.
func NewService(b *board.Board, r rules.Rules, st store.Store, hub *broadcast.Hub, log *zap.Logger, opts ...Option) *Service {
	s := &Service{
		board:     b,
		rules:     r,
		store:     st,
		hub:       hub,
		log:       log,
		now:       time.Now,
		seed:      cryptoSeed,
		newID:     func() string { return uuid.New().String()[:8] },
		matchSize: 2,
		retention: 30 * time.Minute,
		sessions:  make(map[string]*session),
		tickets:   make(map[string]*Ticket),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func cryptoSeed() int64 {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return time.Now().UnixNano()
	}
	return int64(binary.LittleEndian.Uint64(b[:]))
}

// Board returns the board every session is played on.
func (s *Service) Board() *board.Board {
	return s.board
}

// Rules returns the rule parameters shared by every session.
func (s *Service) Rules() rules.Rules {
	return s.rules
}

func (s *Service) env(sess *session) engine.Env {
	return engine.Env{Rand: sess.rng, Now: s.now(), NewID: s.newID}
}

func (s *Service) lookup(id string) (*session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

// Act applies an action to a session on behalf of actorID. Turn-gated
// actions require expectedVersion to match the session and actorID to hold
// the turn; trade actions skip both checks and are scoped by the engine to
// the trade's parties.
func (s *Service) Act(ctx context.Context, sessionID string, act models.Action, expectedVersion int64, actorID string) (Result, error) {
	sess, ok := s.lookup(sessionID)
	if !ok {
		return Result{}, s.missing(ctx, sessionID)
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	st := sess.state
	if st.IsOver() {
		return Result{}, engine.ErrGameOver
	}
	if !act.Type.IsTrade() {
		if expectedVersion != st.Version {
			return Result{}, fmt.Errorf("%w: session is at version %d", ErrVersionConflict, st.Version)
		}
		if cur := st.CurrentPlayer(); cur == nil || cur.ID != actorID {
			return Result{}, engine.ErrNotYourTurn
		}
	}

	out, err := engine.Apply(st, act, actorID, s.board, s.rules, s.env(sess))
	if err != nil {
		s.log.Debug("action rejected",
			zap.String("session", sessionID),
			zap.String("action", string(act.Type)),
			zap.String("actor", actorID),
			zap.Error(err))
		return Result{}, err
	}

	s.log.Info("action applied",
		zap.String("session", sessionID),
		zap.String("action", string(act.Type)),
		zap.String("actor", actorID),
		zap.Int64("version", st.Version))
	snap := s.commit(ctx, st)
	return Result{Outcome: out, Version: st.Version, State: snap.State}, nil
}

// missing classifies a session that is not live: a finished game that was
// evicted is terminal, anything else is unknown.
func (s *Service) missing(ctx context.Context, sessionID string) error {
	st, err := s.store.LoadSession(ctx, sessionID)
	if err == nil && st.IsOver() {
		return engine.ErrGameOver
	}
	return ErrSessionNotFound
}

// commit persists st and publishes it. It must be called with the session
// lock held so that observers see versions in order.
func (s *Service) commit(ctx context.Context, st *models.GameState) broadcast.Snapshot {
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.store.SaveSession(saveCtx, st); err != nil {
		s.log.Error("persist session",
			zap.String("session", st.ID),
			zap.Int64("version", st.Version),
			zap.Error(err))
	}

	snap, err := broadcast.NewSnapshot(st)
	if err != nil {
		s.log.Error("encode snapshot", zap.String("session", st.ID), zap.Error(err))
		return broadcast.Snapshot{SessionID: st.ID, Version: st.Version, State: st.Clone()}
	}
	s.hub.Publish(snap)
	return snap
}

// Chat appends a line to the session chat. Chat is not an action: it does
// not move the version but is published like one.
func (s *Service) Chat(ctx context.Context, sessionID, playerID, name, text string) (models.ChatEntry, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return models.ChatEntry{}, ErrEmptyChat
	}
	if r := []rune(text); len(r) > s.rules.MaxChatLength {
		text = string(r[:s.rules.MaxChatLength])
	}

	sess, ok := s.lookup(sessionID)
	if !ok {
		return models.ChatEntry{}, s.missing(ctx, sessionID)
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	st := sess.state
	if st.IsOver() {
		return models.ChatEntry{}, engine.ErrGameOver
	}
	if p := st.Player(playerID); p != nil {
		name = p.Name
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = "guest"
	}

	entry := models.ChatEntry{PlayerID: playerID, Name: name, Text: text, At: s.now()}
	st.Chat = append(st.Chat, entry)
	if over := len(st.Chat) - s.rules.MaxChatEntries; over > 0 {
		st.Chat = append([]models.ChatEntry(nil), st.Chat[over:]...)
	}
	s.commit(ctx, st)
	return entry, nil
}

// Subscribe registers an observer of a session. The current snapshot is
// queued first, atomically with registration, so no version is missed or
// delivered twice.
func (s *Service) Subscribe(ctx context.Context, sessionID string) (*broadcast.Subscription, error) {
	sess, ok := s.lookup(sessionID)
	if !ok {
		st, err := s.load(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		snap, err := broadcast.NewSnapshot(st)
		if err != nil {
			return nil, fmt.Errorf("encode snapshot: %w", err)
		}
		return s.hub.Subscribe(sessionID, &snap), nil
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	snap, err := broadcast.NewSnapshot(sess.state)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return s.hub.Subscribe(sessionID, &snap), nil
}

// GetSession returns a copy of the session state, falling back to the store
// for sessions no longer in memory.
func (s *Service) GetSession(ctx context.Context, sessionID string) (*models.GameState, error) {
	if sess, ok := s.lookup(sessionID); ok {
		sess.mu.Lock()
		defer sess.mu.Unlock()
		return sess.state.Clone(), nil
	}
	return s.load(ctx, sessionID)
}

func (s *Service) load(ctx context.Context, sessionID string) (*models.GameState, error) {
	st, err := s.store.LoadSession(ctx, sessionID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", sessionID, err)
	}
	return st, nil
}

// StoredCounts reports how many persisted sessions are active and finished.
func (s *Service) StoredCounts(ctx context.Context) (active, finished int, err error) {
	if active, err = s.store.CountByStatus(ctx, models.StatusActive); err != nil {
		return 0, 0, err
	}
	if finished, err = s.store.CountByStatus(ctx, models.StatusFinished); err != nil {
		return 0, 0, err
	}
	return active, finished, nil
}

// ListSessions summarizes the live sessions, newest first.
func (s *Service) ListSessions() []Summary {
	s.mu.RLock()
	live := make([]*session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		live = append(live, sess)
	}
	s.mu.RUnlock()

	out := make([]Summary, 0, len(live))
	for _, sess := range live {
		sess.mu.Lock()
		st := sess.state
		names := make([]string, len(st.Players))
		for i, p := range st.Players {
			names[i] = p.Name
		}
		out = append(out, Summary{
			ID:        st.ID,
			Players:   names,
			Version:   st.Version,
			Status:    st.Status,
			Winner:    st.Winner,
			CreatedAt: st.CreatedAt,
		})
		sess.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}
