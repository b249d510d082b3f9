package game

import (
	"context"
	"math/rand"
	"strings"
	"time"

	"go.uber.org/zap"

	"meownopoly/internal/engine"
	"meownopoly/internal/models"
)

const maxNameLength = 24

// Ticket tracks a player through matchmaking. SessionID is empty while the
// player is waiting.
type Ticket struct {
	PlayerID  string    `json:"playerId"`
	Name      string    `json:"name"`
	SessionID string    `json:"sessionId,omitempty"`
	QueuedAt  time.Time `json:"queuedAt"`
}

// Enqueue adds a player to the matchmaking queue. An empty playerID is
// assigned a fresh id; enqueueing a known player returns its ticket unless
// that ticket seats them in a finished game, in which case they queue
// again. Once the
// queue holds a full match the players at its front are seated in a new
// session.
func (s *Service) Enqueue(ctx context.Context, playerID, name string) (Ticket, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Ticket{}, ErrInvalidName
	}
	if r := []rune(name); len(r) > maxNameLength {
		name = string(r[:maxNameLength])
	}
	if playerID == "" {
		playerID = s.newID()
	}

	s.mu.Lock()
	if t, ok := s.tickets[playerID]; ok {
		if !s.seatFinished(t) {
			s.mu.Unlock()
			return *t, nil
		}
		delete(s.tickets, playerID)
	}
	t := &Ticket{PlayerID: playerID, Name: name, QueuedAt: s.now()}
	s.tickets[playerID] = t
	s.queue = append(s.queue, t)

	if len(s.queue) < s.matchSize {
		s.mu.Unlock()
		s.log.Info("player queued", zap.String("player", playerID), zap.Int("waiting", len(s.queue)))
		return *t, nil
	}

	matched := s.queue[:s.matchSize]
	s.queue = append([]*Ticket(nil), s.queue[s.matchSize:]...)
	sess, err := s.newSession(matched)
	if err != nil {
		// put the group back at the front of the queue
		s.queue = append(matched, s.queue...)
		s.mu.Unlock()
		return Ticket{}, err
	}
	s.sessions[sess.state.ID] = sess
	for _, m := range matched {
		m.SessionID = sess.state.ID
	}
	ticket := *t
	sess.mu.Lock()
	s.mu.Unlock()
	defer sess.mu.Unlock()

	ids := make([]string, len(matched))
	for i, m := range matched {
		ids[i] = m.PlayerID
	}
	s.log.Info("match created", zap.String("session", sess.state.ID), zap.Strings("players", ids))
	s.commit(ctx, sess.state)
	return ticket, nil
}

// seatFinished reports whether t seats its player in a session that is over
// or no longer in memory. Callers hold s.mu.
func (s *Service) seatFinished(t *Ticket) bool {
	if t.SessionID == "" {
		return false
	}
	sess, ok := s.sessions[t.SessionID]
	if !ok {
		return true
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.state.IsOver()
}

// newSession builds the initial state for a matched group.
func (s *Service) newSession(matched []*Ticket) (*session, error) {
	seats := make([]models.Seat, len(matched))
	for i, m := range matched {
		seats[i] = models.Seat{ID: m.PlayerID, Name: m.Name}
	}
	sess := &session{rng: rand.New(rand.NewSource(s.seed()))}
	st, err := engine.NewGame(s.newID(), seats, s.board, s.rules, s.env(sess))
	if err != nil {
		return nil, err
	}
	sess.state = st
	return sess, nil
}

// Ticket returns the matchmaking ticket of playerID.
func (s *Service) Ticket(playerID string) (Ticket, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tickets[playerID]
	if !ok {
		return Ticket{}, false
	}
	return *t, true
}

// LeaveQueue removes a waiting player. It reports false if the player is
// not waiting.
func (s *Service) LeaveQueue(playerID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tickets[playerID]
	if !ok || t.SessionID != "" {
		return false
	}
	delete(s.tickets, playerID)
	for i, q := range s.queue {
		if q == t {
			s.queue = append(s.queue[:i:i], s.queue[i+1:]...)
			break
		}
	}
	s.log.Info("player left queue", zap.String("player", playerID))
	return true
}

// QueueLength returns the number of waiting players.
func (s *Service) QueueLength() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.queue)
}
