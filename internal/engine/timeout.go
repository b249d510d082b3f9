package engine

import (
	"time"

	"meownopoly/internal/board"
	"meownopoly/internal/models"
	"meownopoly/internal/rules"
)

// Expired reports whether the active turn's deadline has passed at now.
func Expired(st *models.GameState, now time.Time) bool {
	return !st.IsOver() && now.After(st.Turn.DeadlineAt)
}

// ApplyTimeout forces the active player's turn to end. The penalty grows with
// the player's cumulative timeout count. No turn ownership or version check
// applies: the clock is the authority.
func ApplyTimeout(st *models.GameState, b *board.Board, r rules.Rules, env Env) error {
	if st.IsOver() {
		return ErrGameOver
	}
	e := &engine{st: st, b: b, r: r, env: env}
	p := st.CurrentPlayer()
	if p == nil {
		return ErrInvalidCurrentPlayer
	}

	p.TimeoutCount++
	penalty := p.TimeoutCount * r.TimeoutPenaltyStep
	p.Cash -= penalty
	e.log(models.Event{Type: models.EventTimeout, PlayerID: p.ID, Amount: penalty})
	e.settle()
	e.advanceTurn()

	st.Version++
	st.UpdatedAt = env.Now
	return nil
}
