package engine

import (
	"errors"

	"meownopoly/internal/board"
	"meownopoly/internal/models"
	"meownopoly/internal/rules"
)

// ErrNotEnoughPlayers is returned by NewGame for fewer than two seats.
var ErrNotEnoughPlayers = errors.New("at least two players are required")

// NewGame builds the initial state for a matched group: every player on the
// start space with the starting cash, a random starting seat, freshly
// shuffled decks and the first turn deadline.
func NewGame(id string, seats []models.Seat, b *board.Board, r rules.Rules, env Env) (*models.GameState, error) {
	if len(seats) < 2 {
		return nil, ErrNotEnoughPlayers
	}
	st := models.NewGameState(id, seats, r.StartingCash, env.Now)
	st.BoardID = b.ID
	st.RulesID = r.ID
	for _, name := range []string{DeckChance, DeckCommunity} {
		st.CardDecks[name] = shuffle(env.Rand, len(Deck(name)))
	}
	st.Turn = models.Turn{
		Index:      env.Rand.Intn(len(seats)),
		StartedAt:  env.Now,
		DeadlineAt: env.Now.Add(r.TurnDuration),
	}
	return st, nil
}
