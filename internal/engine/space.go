package engine

import (
	"meownopoly/internal/board"
	"meownopoly/internal/models"
)

// resolve applies the effect of the space p stands on. Card effects that
// relocate the player recurse with depth+1; past MaxResolveDepth resolution
// stops and the cut-off is logged.
func (e *engine) resolve(p *models.Player, depth int) {
	if depth > e.r.MaxResolveDepth {
		e.log(models.Event{Type: models.EventResolveLimit, PlayerID: p.ID, Space: intPtr(p.Position)})
		return
	}

	space := e.b.Space(p.Position)
	switch space.Type {
	case board.SpaceTax:
		p.Cash -= space.Amount
		e.st.Bank.VacationPot += space.Amount
		e.log(models.Event{Type: models.EventTax, PlayerID: p.ID, Amount: space.Amount, Space: intPtr(space.Index)})
	case board.SpaceTaxRefund:
		p.Cash += space.Amount
		e.log(models.Event{Type: models.EventTaxRefund, PlayerID: p.ID, Amount: space.Amount})
	case board.SpaceFreeParking:
		pot := e.st.Bank.VacationPot
		p.Cash += pot
		e.st.Bank.VacationPot = 0
		e.log(models.Event{Type: models.EventVacation, PlayerID: p.ID, Amount: pot})
	case board.SpaceGoToJail:
		e.sendToJail(p)
	case board.SpaceChance:
		e.drawCard(p, DeckChance, depth)
	case board.SpaceCommunityChest:
		e.drawCard(p, DeckCommunity, depth)
	case board.SpaceProperty, board.SpaceRailroad, board.SpaceUtility:
		e.chargeRent(p, space)
	}
}

// chargeRent transfers rent from p to the owner of space, if any is due.
func (e *engine) chargeRent(p *models.Player, space board.Space) {
	own, ok := e.st.Ownership[space.Index]
	if !ok || own.OwnerID == p.ID || own.Mortgaged {
		return
	}
	owner := e.st.Player(own.OwnerID)
	if owner == nil || owner.Bankrupt {
		return
	}
	if e.r.JailBlocksRent && owner.InJail {
		return
	}

	var rent int
	switch space.Type {
	case board.SpaceRailroad:
		count := e.countOwned(owner.ID, board.SpaceRailroad)
		step := min(count-1, len(space.Rent)-1)
		rent = space.Rent[max(step, 0)]
	case board.SpaceUtility:
		count := e.countOwned(owner.ID, board.SpaceUtility)
		d1, d2 := e.rollDice()
		rent = (d1 + d2) * e.r.UtilityMultiplier(count)
		e.log(models.Event{Type: models.EventUtilityRoll, PlayerID: p.ID, Dice: []int{d1, d2}})
	default:
		rent = space.BaseRent(own.Houses)
		if own.Houses == 0 && e.r.DoubleRentOnSet && e.ownsGroup(owner.ID, space.Group) {
			rent *= 2
		}
	}

	p.Cash -= rent
	owner.Cash += rent
	e.log(models.Event{Type: models.EventRent, PlayerID: p.ID, OtherID: owner.ID, Space: intPtr(space.Index), Amount: rent})
}

func (e *engine) countOwned(ownerID string, t board.SpaceType) int {
	count := 0
	for idx, own := range e.st.Ownership {
		if own.OwnerID == ownerID && e.b.Contains(idx) && e.b.Space(idx).Type == t {
			count++
		}
	}
	return count
}

// ownsGroup reports whether ownerID holds every property of group.
func (e *engine) ownsGroup(ownerID, group string) bool {
	members := e.b.GroupMembers(group)
	if len(members) == 0 {
		return false
	}
	for _, idx := range members {
		if own, ok := e.st.Ownership[idx]; !ok || own.OwnerID != ownerID {
			return false
		}
	}
	return true
}
