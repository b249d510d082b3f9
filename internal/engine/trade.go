package engine

import (
	"strings"

	"meownopoly/internal/models"
)

const maxTradeMessage = 140

// applyTrade handles trade negotiation. These actions are scoped to the
// trade's parties and never touch the turn.
func (e *engine) applyTrade(act models.Action, actorID string) (Outcome, error) {
	switch act.Type {
	case models.ActionTradeOffer:
		return e.offerTrade(act, actorID)
	case models.ActionTradeAccept:
		return e.acceptTrade(act.TradeID, actorID)
	case models.ActionTradeReject:
		return e.closeTrade(act.TradeID, actorID, false)
	case models.ActionTradeCancel:
		return e.closeTrade(act.TradeID, actorID, true)
	default:
		return Outcome{}, ErrUnsupportedAction
	}
}

func (e *engine) offerTrade(act models.Action, actorID string) (Outcome, error) {
	from := e.st.Player(actorID)
	if from == nil || from.Bankrupt {
		return Outcome{}, ErrNotInGame
	}
	to := e.st.Player(act.To)
	if to == nil || to.Bankrupt || to.ID == from.ID {
		return Outcome{}, ErrInvalidTradeTarget
	}
	if act.Offer.IsEmpty() && act.Request.IsEmpty() {
		return Outcome{}, ErrEmptyTrade
	}
	if err := e.checkBundle(from, act.Offer); err != nil {
		return Outcome{}, err
	}
	if err := e.checkBundle(to, act.Request); err != nil {
		return Outcome{}, err
	}

	msg := strings.TrimSpace(act.Message)
	if r := []rune(msg); len(r) > maxTradeMessage {
		msg = string(r[:maxTradeMessage])
	}
	t := models.Trade{
		ID:        e.env.NewID(),
		FromID:    from.ID,
		ToID:      to.ID,
		Offer:     copyBundle(act.Offer),
		Request:   copyBundle(act.Request),
		Message:   msg,
		CreatedAt: e.env.Now,
	}
	e.st.PendingTrades = append(e.st.PendingTrades, t)
	e.log(models.Event{Type: models.EventTradeOffer, PlayerID: from.ID, OtherID: to.ID, Detail: t.ID})
	return Outcome{TradeID: t.ID}, nil
}

func (e *engine) acceptTrade(id, actorID string) (Outcome, error) {
	t, i, ok := e.st.Trade(id)
	if !ok {
		return Outcome{}, ErrTradeNotFound
	}
	if actorID != t.ToID {
		return Outcome{}, ErrNotTradeParty
	}
	from, to := e.st.Player(t.FromID), e.st.Player(t.ToID)
	if from == nil || to == nil || from.Bankrupt || to.Bankrupt {
		return Outcome{}, ErrNotInGame
	}
	// Holdings may have changed since the offer was made.
	if err := e.checkBundle(from, t.Offer); err != nil {
		return Outcome{}, err
	}
	if err := e.checkBundle(to, t.Request); err != nil {
		return Outcome{}, err
	}

	e.transfer(from, to, t.Offer)
	e.transfer(to, from, t.Request)
	e.removeTrade(i)
	e.log(models.Event{Type: models.EventTradeAccepted, PlayerID: to.ID, OtherID: from.ID, Detail: t.ID})
	return Outcome{TradeID: t.ID}, nil
}

// closeTrade removes a trade: the recipient rejects, the proposer cancels.
func (e *engine) closeTrade(id, actorID string, cancel bool) (Outcome, error) {
	t, i, ok := e.st.Trade(id)
	if !ok {
		return Outcome{}, ErrTradeNotFound
	}
	kind := models.EventTradeRejected
	party := t.ToID
	if cancel {
		kind = models.EventTradeCanceled
		party = t.FromID
	}
	if actorID != party {
		return Outcome{}, ErrNotTradeParty
	}
	e.removeTrade(i)
	e.log(models.Event{Type: kind, PlayerID: actorID, Detail: t.ID})
	return Outcome{TradeID: t.ID}, nil
}

// checkBundle verifies that p currently holds everything in b. Improved
// properties cannot change hands.
func (e *engine) checkBundle(p *models.Player, b models.TradeBundle) error {
	if b.Cash < 0 || b.PardonCards < 0 {
		return ErrInvalidTradeBundle
	}
	if b.Cash > p.Cash {
		return ErrInsufficientFunds
	}
	if b.PardonCards > p.PardonCards {
		return ErrNoPardonCard
	}
	seen := make(map[int]bool, len(b.Properties))
	for _, idx := range b.Properties {
		if seen[idx] || !e.b.Contains(idx) {
			return ErrInvalidTradeBundle
		}
		seen[idx] = true
		own, ok := e.st.Ownership[idx]
		if !ok || own.OwnerID != p.ID {
			return ErrNotOwner
		}
		if own.Houses > 0 {
			return ErrHasHouses
		}
	}
	return nil
}

func (e *engine) transfer(from, to *models.Player, b models.TradeBundle) {
	from.Cash -= b.Cash
	to.Cash += b.Cash
	from.PardonCards -= b.PardonCards
	to.PardonCards += b.PardonCards
	for _, idx := range b.Properties {
		own := e.st.Ownership[idx]
		own.OwnerID = to.ID
		e.st.Ownership[idx] = own
	}
}

func (e *engine) removeTrade(i int) {
	e.st.PendingTrades = append(e.st.PendingTrades[:i:i], e.st.PendingTrades[i+1:]...)
}

func copyBundle(b models.TradeBundle) models.TradeBundle {
	b.Properties = append([]int(nil), b.Properties...)
	return b
}
