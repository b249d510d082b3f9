package game

import (
	"context"
	"time"

	"go.uber.org/zap"

	"meownopoly/internal/engine"
)

// RunClock ticks every interval until ctx is done, forcing expired turns to
// end and evicting finished sessions.
func (s *Service) RunClock(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.log.Info("timeout clock started", zap.Duration("interval", interval))
	for {
		select {
		case <-ctx.Done():
			s.log.Info("timeout clock stopped")
			return nil
		case <-ticker.C:
			s.TickTimeouts(ctx)
			s.Evict()
		}
	}
}

func (s *Service) live() []*session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess)
	}
	return out
}

// TickTimeouts applies a timeout to every active session whose turn deadline
// has passed and returns how many were applied. Each session is handled
// under its own lock, so a player action racing the clock is ordered either
// before or after the timeout.
func (s *Service) TickTimeouts(ctx context.Context) int {
	applied := 0
	for _, sess := range s.live() {
		if s.timeout(ctx, sess) {
			applied++
		}
	}
	return applied
}

func (s *Service) timeout(ctx context.Context, sess *session) bool {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	st := sess.state
	now := s.now()
	if !engine.Expired(st, now) {
		return false
	}
	player := st.CurrentPlayer().ID
	if err := engine.ApplyTimeout(st, s.board, s.rules, s.env(sess)); err != nil {
		s.log.Warn("timeout rejected", zap.String("session", st.ID), zap.Error(err))
		return false
	}
	s.log.Info("turn timed out",
		zap.String("session", st.ID),
		zap.String("player", player),
		zap.Int64("version", st.Version))
	s.commit(ctx, st)
	return true
}

// Evict drops finished sessions that have been idle longer than the
// retention period. They remain readable through the store.
func (s *Service) Evict() int {
	cutoff := s.now().Add(-s.retention)

	var expired []string
	for _, sess := range s.live() {
		sess.mu.Lock()
		if sess.state.IsOver() && sess.state.UpdatedAt.Before(cutoff) {
			expired = append(expired, sess.state.ID)
		}
		sess.mu.Unlock()
	}
	if len(expired) == 0 {
		return 0
	}

	s.mu.Lock()
	for _, id := range expired {
		delete(s.sessions, id)
	}
	for playerID, t := range s.tickets {
		for _, id := range expired {
			if t.SessionID == id {
				delete(s.tickets, playerID)
			}
		}
	}
	s.mu.Unlock()

	for _, id := range expired {
		s.hub.Drop(id)
		s.log.Info("session evicted", zap.String("session", id))
	}
	return len(expired)
}
