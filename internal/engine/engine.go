// Package engine implements the game rules as a state machine. Apply takes a
// mutable GameState and an action and either applies the full effect chain or
// rejects the action without touching the state. The package performs no I/O
// and keeps no process state: randomness, time and id generation arrive
// through Env.
package engine

import (
	"time"

	"meownopoly/internal/board"
	"meownopoly/internal/models"
	"meownopoly/internal/rules"
)

// Rand is the random source used for dice, shuffles and random moves.
// *rand.Rand satisfies it.
type Rand interface {
	Intn(n int) int
}

// Env carries the non-deterministic inputs of a transition.
type Env struct {
	Rand  Rand
	Now   time.Time
	NewID func() string
}

// Outcome is the payload returned for an accepted action.
type Outcome struct {
	Dice         []int        `json:"dice,omitempty"`
	Space        *board.Space `json:"space,omitempty"`
	JailEscape   bool         `json:"jailEscape,omitempty"`
	JailForceOut bool         `json:"jailForceOut,omitempty"`
	StayedInJail bool         `json:"stayedInJail,omitempty"`
	PaidJail     bool         `json:"paidJail,omitempty"`
	UsedPardon   bool         `json:"usedPardon,omitempty"`
	Bought       *int         `json:"bought,omitempty"`
	Houses       *int         `json:"houses,omitempty"`
	TradeID      string       `json:"tradeId,omitempty"`
}

type engine struct {
	st  *models.GameState
	b   *board.Board
	r   rules.Rules
	env Env
}

// Apply validates and applies act on behalf of actorID. For turn-gated
// actions an empty actorID means the current player. On success the state
// version is incremented exactly once.
func Apply(st *models.GameState, act models.Action, actorID string, b *board.Board, r rules.Rules, env Env) (Outcome, error) {
	e := &engine{st: st, b: b, r: r, env: env}
	if st.IsOver() {
		return Outcome{}, ErrGameOver
	}

	var (
		out Outcome
		err error
	)
	if act.Type.IsTrade() {
		out, err = e.applyTrade(act, actorID)
	} else {
		out, err = e.applyTurn(act, actorID)
	}
	if err != nil {
		return Outcome{}, err
	}
	e.st.Version++
	e.st.UpdatedAt = env.Now
	return out, nil
}

func (e *engine) applyTurn(act models.Action, actorID string) (Outcome, error) {
	p := e.st.CurrentPlayer()
	if p == nil || p.Bankrupt {
		return Outcome{}, ErrInvalidCurrentPlayer
	}
	if actorID != "" && actorID != p.ID {
		return Outcome{}, ErrNotYourTurn
	}

	switch act.Type {
	case models.ActionRoll:
		return e.roll(p), nil
	case models.ActionBuy:
		return e.buy(p)
	case models.ActionEndTurn:
		e.log(models.Event{Type: models.EventEndTurn, PlayerID: p.ID})
		e.advanceTurn()
		return Outcome{}, nil
	case models.ActionPayJail:
		return e.payJail(p)
	case models.ActionUsePardon:
		return e.usePardon(p)
	case models.ActionBuildHouse:
		return e.buildHouse(p, act.Space)
	case models.ActionSellHouse:
		return e.sellHouse(p, act.Space)
	case models.ActionMortgage:
		return e.mortgage(p, act.Space)
	case models.ActionUnmortgage:
		return e.unmortgage(p, act.Space)
	default:
		return Outcome{}, ErrUnsupportedAction
	}
}

func (e *engine) log(ev models.Event) {
	ev.At = e.env.Now
	e.st.Log = append(e.st.Log, ev)
}

func (e *engine) rollDice() (int, int) {
	return 1 + e.env.Rand.Intn(6), 1 + e.env.Rand.Intn(6)
}

func (e *engine) paySalary(p *models.Player) {
	p.Cash += e.r.GoSalary
	e.log(models.Event{Type: models.EventGoSalary, PlayerID: p.ID, Amount: e.r.GoSalary})
}

func (e *engine) sendToJail(p *models.Player) {
	p.Position = e.b.JailIndex()
	p.InJail = true
	p.JailTurns = 0
	e.log(models.Event{Type: models.EventGoToJail, PlayerID: p.ID})
}

// settle runs the bankruptcy check for every seat and then the win check.
func (e *engine) settle() {
	for i := range e.st.Players {
		p := &e.st.Players[i]
		if p.Bankrupt || p.Cash >= 0 {
			continue
		}
		p.Bankrupt = true
		p.Cash = 0
		for idx, own := range e.st.Ownership {
			if own.OwnerID == p.ID {
				delete(e.st.Ownership, idx)
			}
		}
		trades := e.st.PendingTrades[:0]
		for _, t := range e.st.PendingTrades {
			if !t.Involves(p.ID) {
				trades = append(trades, t)
			}
		}
		e.st.PendingTrades = trades
		e.log(models.Event{Type: models.EventBankrupt, PlayerID: p.ID})
	}

	active := e.st.ActivePlayers()
	if len(active) == 1 && !e.st.IsOver() {
		e.st.Status = models.StatusFinished
		e.st.Winner = active[0].ID
		e.log(models.Event{Type: models.EventGameOver, PlayerID: active[0].ID})
	}
}

// finish settles and, if the active seat went bankrupt while the game goes
// on, passes the turn so a bankrupt seat never stays active.
func (e *engine) finish() {
	e.settle()
	if !e.st.IsOver() && e.st.CurrentPlayer().Bankrupt {
		e.advanceTurn()
	}
}

// advanceTurn moves to the next non-bankrupt seat and restarts the clock.
func (e *engine) advanceTurn() {
	if e.st.IsOver() {
		return
	}
	n := len(e.st.Players)
	next := (e.st.Turn.Index + 1) % n
	for i := 0; i < n && e.st.Players[next].Bankrupt; i++ {
		next = (next + 1) % n
	}
	e.st.Turn = models.Turn{
		Index:      next,
		StartedAt:  e.env.Now,
		DeadlineAt: e.env.Now.Add(e.r.TurnDuration),
	}
}

func intPtr(i int) *int {
	return &i
}
