package models

import (
	"time"
)

// Status is the lifecycle state of a game
type Status string

const (
	StatusActive   Status = "active"
	StatusFinished Status = "finished"
)

// Player represents a seat in the game
type Player struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Cash         int    `json:"cash"`
	Position     int    `json:"position"`
	InJail       bool   `json:"inJail"`
	JailTurns    int    `json:"jailTurns"`
	PardonCards  int    `json:"pardonCards"`
	TimeoutCount int    `json:"timeoutCount"`
	Bankrupt     bool   `json:"bankrupt"`
}

// Ownership records who holds a board space. Absence from GameState.Ownership
// means the bank owns it.
type Ownership struct {
	OwnerID   string `json:"ownerId"`
	Mortgaged bool   `json:"mortgaged"`
	Houses    int    `json:"houses"`
}

// Turn tracks the active seat and its deadline
type Turn struct {
	Index      int       `json:"index"`
	StartedAt  time.Time `json:"startedAt"`
	DeadlineAt time.Time `json:"deadlineAt"`
}

// Bank holds the vacation pot fed by taxes
type Bank struct {
	VacationPot int `json:"vacationPot"`
}

// ChatEntry is one line of session chat
type ChatEntry struct {
	PlayerID string    `json:"playerId,omitempty"`
	Name     string    `json:"name"`
	Text     string    `json:"text"`
	At       time.Time `json:"at"`
}

// GameState is the full state of one session
type GameState struct {
	ID            string            `json:"id"`
	BoardID       string            `json:"boardId"`
	RulesID       string            `json:"rulesId"`
	CreatedAt     time.Time         `json:"createdAt"`
	UpdatedAt     time.Time         `json:"updatedAt"`
	Status        Status            `json:"status"`
	Winner        string            `json:"winner,omitempty"`
	Version       int64             `json:"version"`
	Turn          Turn              `json:"turn"`
	Players       []Player          `json:"players"`
	Ownership     map[int]Ownership `json:"ownership"`
	Bank          Bank              `json:"bank"`
	CardDecks     map[string][]int  `json:"cardDecks"`
	PendingTrades []Trade           `json:"pendingTrades"`
	Log           []Event           `json:"log"`
	Chat          []ChatEntry       `json:"chat"`
}

// Seat is a matched player about to join a new game
type Seat struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// NewGameState creates a new game state with every player on the start space
func NewGameState(id string, seats []Seat, startingCash int, now time.Time) *GameState {
	players := make([]Player, len(seats))
	for i, s := range seats {
		players[i] = Player{ID: s.ID, Name: s.Name, Cash: startingCash}
	}
	return &GameState{
		ID:        id,
		CreatedAt: now,
		UpdatedAt: now,
		Status:    StatusActive,
		Version:   1,
		Turn:      Turn{StartedAt: now, DeadlineAt: now},
		Players:   players,
		Ownership: make(map[int]Ownership),
		CardDecks: make(map[string][]int),
		Log:       []Event{},
		Chat:      []ChatEntry{},
	}
}

// CurrentPlayer returns the seat whose turn it is
func (g *GameState) CurrentPlayer() *Player {
	if len(g.Players) == 0 {
		return nil
	}
	return &g.Players[g.Turn.Index%len(g.Players)]
}

// Player looks up a player by id
func (g *GameState) Player(id string) *Player {
	for i := range g.Players {
		if g.Players[i].ID == id {
			return &g.Players[i]
		}
	}
	return nil
}

// ActivePlayers returns the players that are not bankrupt
func (g *GameState) ActivePlayers() []*Player {
	var out []*Player
	for i := range g.Players {
		if !g.Players[i].Bankrupt {
			out = append(out, &g.Players[i])
		}
	}
	return out
}

// Trade looks up a pending trade by id
func (g *GameState) Trade(id string) (Trade, int, bool) {
	for i, t := range g.PendingTrades {
		if t.ID == id {
			return t, i, true
		}
	}
	return Trade{}, -1, false
}

// IsOver reports whether the game has finished
func (g *GameState) IsOver() bool {
	return g.Status == StatusFinished
}

// Clone returns a deep copy safe to hand to readers outside the session lock
func (g *GameState) Clone() *GameState {
	c := *g
	c.Players = append([]Player(nil), g.Players...)
	c.Ownership = make(map[int]Ownership, len(g.Ownership))
	for k, v := range g.Ownership {
		c.Ownership[k] = v
	}
	c.CardDecks = make(map[string][]int, len(g.CardDecks))
	for k, v := range g.CardDecks {
		c.CardDecks[k] = append([]int(nil), v...)
	}
	c.PendingTrades = make([]Trade, len(g.PendingTrades))
	for i, t := range g.PendingTrades {
		c.PendingTrades[i] = t.clone()
	}
	c.Log = append([]Event(nil), g.Log...)
	c.Chat = append([]ChatEntry(nil), g.Chat...)
	return &c
}
