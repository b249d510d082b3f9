package engine

import (
	"meownopoly/internal/board"
	"meownopoly/internal/models"
)

func (e *engine) buy(p *models.Player) (Outcome, error) {
	space := e.b.Space(p.Position)
	if !space.Type.Ownable() {
		return Outcome{}, ErrNotPurchasable
	}
	if _, owned := e.st.Ownership[space.Index]; owned {
		return Outcome{}, ErrAlreadyOwned
	}
	if p.Cash < space.Price {
		return Outcome{}, ErrInsufficientFunds
	}
	p.Cash -= space.Price
	e.st.Ownership[space.Index] = models.Ownership{OwnerID: p.ID}
	e.log(models.Event{Type: models.EventBuy, PlayerID: p.ID, Space: intPtr(space.Index), Amount: space.Price})
	return Outcome{Bought: intPtr(space.Index)}, nil
}

// owned returns the space at idx and its ownership record, requiring p to be
// the owner.
func (e *engine) owned(p *models.Player, idx int) (board.Space, models.Ownership, error) {
	if !e.b.Contains(idx) {
		return board.Space{}, models.Ownership{}, ErrInvalidSpace
	}
	own, ok := e.st.Ownership[idx]
	if !ok || own.OwnerID != p.ID {
		return board.Space{}, models.Ownership{}, ErrNotOwner
	}
	return e.b.Space(idx), own, nil
}

func (e *engine) buildHouse(p *models.Player, idx int) (Outcome, error) {
	space, own, err := e.owned(p, idx)
	if err != nil {
		return Outcome{}, err
	}
	if space.Type != board.SpaceProperty {
		return Outcome{}, ErrNotBuildable
	}
	if own.Mortgaged {
		return Outcome{}, ErrMortgaged
	}
	if own.Houses >= e.b.MaxHouses(space.Group) {
		return Outcome{}, ErrHouseCap
	}
	if !e.ownsGroup(p.ID, space.Group) {
		return Outcome{}, ErrIncompleteSet
	}
	price := e.b.HousePrice(space.Group)
	if p.Cash < price {
		return Outcome{}, ErrInsufficientFunds
	}

	p.Cash -= price
	own.Houses++
	e.st.Ownership[idx] = own
	e.log(models.Event{Type: models.EventBuildHouse, PlayerID: p.ID, Space: intPtr(idx), Amount: price})
	return Outcome{Houses: intPtr(own.Houses)}, nil
}

func (e *engine) sellHouse(p *models.Player, idx int) (Outcome, error) {
	space, own, err := e.owned(p, idx)
	if err != nil {
		return Outcome{}, err
	}
	if own.Houses < 1 {
		return Outcome{}, ErrNoHouses
	}

	refund := e.b.HousePrice(space.Group) / 2
	p.Cash += refund
	own.Houses--
	e.st.Ownership[idx] = own
	e.log(models.Event{Type: models.EventSellHouse, PlayerID: p.ID, Space: intPtr(idx), Amount: refund})
	return Outcome{Houses: intPtr(own.Houses)}, nil
}

func (e *engine) mortgage(p *models.Player, idx int) (Outcome, error) {
	space, own, err := e.owned(p, idx)
	if err != nil {
		return Outcome{}, err
	}
	if own.Houses > 0 {
		return Outcome{}, ErrHasHouses
	}
	if own.Mortgaged {
		return Outcome{}, ErrMortgaged
	}

	value := e.r.MortgageValue(space.Price)
	p.Cash += value
	own.Mortgaged = true
	e.st.Ownership[idx] = own
	e.log(models.Event{Type: models.EventMortgage, PlayerID: p.ID, Space: intPtr(idx), Amount: value})
	return Outcome{}, nil
}

func (e *engine) unmortgage(p *models.Player, idx int) (Outcome, error) {
	space, own, err := e.owned(p, idx)
	if err != nil {
		return Outcome{}, err
	}
	if !own.Mortgaged {
		return Outcome{}, ErrNotMortgaged
	}
	cost := e.r.UnmortgageCost(space.Price)
	if p.Cash < cost {
		return Outcome{}, ErrInsufficientFunds
	}

	p.Cash -= cost
	own.Mortgaged = false
	e.st.Ownership[idx] = own
	e.log(models.Event{Type: models.EventUnmortgage, PlayerID: p.ID, Space: intPtr(idx), Amount: cost})
	return Outcome{}, nil
}
