package engine

import (
	"meownopoly/internal/board"
	"meownopoly/internal/models"
)

// Deck names as stored in GameState.CardDecks.
const (
	DeckChance    = "chance"
	DeckCommunity = "community"
)

// CardEffect is the kind of effect a card applies.
type CardEffect string

const (
	EffectCash            CardEffect = "cash"
	EffectMove            CardEffect = "move"
	EffectBack            CardEffect = "back"
	EffectJail            CardEffect = "jail"
	EffectPardon          CardEffect = "pardon"
	EffectEachPlayer      CardEffect = "eachPlayer"
	EffectRenovation      CardEffect = "renovation"
	EffectNearestRailroad CardEffect = "nearestRailroad"
	EffectNearestUtility  CardEffect = "nearestUtility"
	EffectRandomProperty  CardEffect = "randomCity"
)

// Card is one card of a deck.
type Card struct {
	Desc      string
	Effect    CardEffect
	Amount    int
	To        int
	HouseCost int
	HotelCost int
}

var chanceCards = []Card{
	{Desc: "Advance to the next airport", Effect: EffectNearestRailroad},
	{Desc: "Go back 3 steps", Effect: EffectBack, Amount: 3},
	{Desc: "Advance to Start", Effect: EffectMove, To: 0},
	{Desc: "Pay tax of $20", Effect: EffectCash, Amount: -20},
	{Desc: "Advance to the next company", Effect: EffectNearestUtility},
	{Desc: "Stock agency pays you dividend of $60", Effect: EffectCash, Amount: 60},
	{Desc: "Got a Pardon card from the surprises stack", Effect: EffectPardon},
	{Desc: "Go to prison", Effect: EffectJail},
	{Desc: "Advance to a random city", Effect: EffectRandomProperty},
	{Desc: "You have a new investment. Receive $150", Effect: EffectCash, Amount: 150},
	{Desc: "You lost a bet. Pay each player $50", Effect: EffectEachPlayer, Amount: -50},
	{Desc: "Advance to a random city", Effect: EffectRandomProperty},
	{Desc: "Have a redesign for your properties. Pay $25/house $100/hotel", Effect: EffectRenovation, HouseCost: 25, HotelCost: 100},
	{Desc: "From a scholarship you get $100", Effect: EffectCash, Amount: 100},
	{Desc: "Take a trip to the nearest airport", Effect: EffectNearestRailroad},
	{Desc: "Your cousin needs some financial assistance. Pay $50", Effect: EffectCash, Amount: -50},
	{Desc: "Advance to a random city", Effect: EffectRandomProperty},
}

var communityCards = []Card{
	{Desc: "Happy holidays, receive $20", Effect: EffectCash, Amount: 20},
	{Desc: "From trading stocks you earned $50", Effect: EffectCash, Amount: 50},
	{Desc: "You received $100 from your sibling", Effect: EffectCash, Amount: 100},
	{Desc: "Advance to Start", Effect: EffectMove, To: 0},
	{Desc: "Go to prison", Effect: EffectJail},
	{Desc: "From gift cards you get $100", Effect: EffectCash, Amount: 100},
	{Desc: "You found a wallet containing some cash. Collect $200", Effect: EffectCash, Amount: 200},
	{Desc: "You have won third prize in a lottery. Collect $15", Effect: EffectCash, Amount: 15},
	{Desc: "It's time to renovate. Pay $30/house $120/hotel", Effect: EffectRenovation, HouseCost: 30, HotelCost: 120},
	{Desc: "Beneficial business decisions. You made a profit of $25", Effect: EffectCash, Amount: 25},
	{Desc: "Tax refund. Collect $100", Effect: EffectCash, Amount: 100},
	{Desc: "Your phone died. Pay $50 for a repair", Effect: EffectCash, Amount: -50},
	{Desc: "Got a Pardon card from the treasures stack", Effect: EffectPardon},
	{Desc: "You host a party. Collect $50 from every player", Effect: EffectEachPlayer, Amount: 50},
	{Desc: "Your car has run out of gas. Pay $50", Effect: EffectCash, Amount: -50},
	{Desc: "Happy birthday! Collect $10 from every player", Effect: EffectEachPlayer, Amount: 10},
	{Desc: "Car rental insurance. Pay $60", Effect: EffectCash, Amount: -60},
}

// Deck returns the cards of a named deck.
func Deck(name string) []Card {
	switch name {
	case DeckChance:
		return chanceCards
	case DeckCommunity:
		return communityCards
	default:
		return nil
	}
}

// shuffle returns a random permutation of 0..n-1.
func shuffle(rng Rand, n int) []int {
	deck := make([]int, n)
	for i := range deck {
		deck[i] = i
	}
	for i := n - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		deck[i], deck[j] = deck[j], deck[i]
	}
	return deck
}

// drawCard takes the next card from the named deck, reshuffling when the
// queue is exhausted, and applies it to p.
func (e *engine) drawCard(p *models.Player, deck string, depth int) {
	cards := Deck(deck)
	queue := e.st.CardDecks[deck]
	if len(queue) == 0 {
		queue = shuffle(e.env.Rand, len(cards))
	}
	card := cards[queue[0]]
	e.st.CardDecks[deck] = queue[1:]
	e.log(models.Event{Type: models.EventCard, PlayerID: p.ID, Detail: card.Desc})
	e.applyCard(p, card, depth)
}

func (e *engine) applyCard(p *models.Player, card Card, depth int) {
	switch card.Effect {
	case EffectCash:
		p.Cash += card.Amount
		if card.Amount < 0 {
			e.st.Bank.VacationPot -= card.Amount
		}

	case EffectMove:
		old := p.Position
		p.Position = card.To
		if card.To < old {
			e.paySalary(p)
		}
		e.resolve(p, depth+1)

	case EffectBack:
		p.Position = (p.Position - card.Amount + e.b.Len()) % e.b.Len()
		e.resolve(p, depth+1)

	case EffectJail:
		e.sendToJail(p)

	case EffectPardon:
		p.PardonCards++
		e.log(models.Event{Type: models.EventPardon, PlayerID: p.ID})

	case EffectEachPlayer:
		for i := range e.st.Players {
			other := &e.st.Players[i]
			if other.Bankrupt || other.ID == p.ID {
				continue
			}
			p.Cash += card.Amount
			other.Cash -= card.Amount
		}
		e.log(models.Event{Type: models.EventEachPlayer, PlayerID: p.ID, Amount: card.Amount})

	case EffectRenovation:
		total := 0
		for idx, own := range e.st.Ownership {
			if own.OwnerID != p.ID || !e.b.Contains(idx) {
				continue
			}
			if own.Houses >= e.b.MaxHouses(e.b.Space(idx).Group) {
				total += card.HotelCost
			} else {
				total += own.Houses * card.HouseCost
			}
		}
		p.Cash -= total
		e.st.Bank.VacationPot += total
		e.log(models.Event{Type: models.EventRenovation, PlayerID: p.ID, Amount: total})

	case EffectNearestRailroad:
		e.advanceToNearest(p, board.SpaceRailroad, depth)

	case EffectNearestUtility:
		e.advanceToNearest(p, board.SpaceUtility, depth)

	case EffectRandomProperty:
		props := e.b.IndexesOf(board.SpaceProperty)
		if len(props) == 0 {
			return
		}
		target := props[e.env.Rand.Intn(len(props))]
		old := p.Position
		p.Position = target
		if target < old {
			e.paySalary(p)
		}
		e.log(models.Event{Type: models.EventRandomCity, PlayerID: p.ID, Space: intPtr(target), Detail: e.b.Space(target).Name})
		e.resolve(p, depth+1)
	}
}

// advanceToNearest moves p to the next space of type t cyclically ahead of
// its position, paying salary when the search wraps.
func (e *engine) advanceToNearest(p *models.Player, t board.SpaceType, depth int) {
	indexes := e.b.IndexesOf(t)
	if len(indexes) == 0 {
		return
	}
	next := indexes[0]
	for _, idx := range indexes {
		if idx > p.Position {
			next = idx
			break
		}
	}
	if next <= p.Position {
		e.paySalary(p)
	}
	p.Position = next
	e.resolve(p, depth+1)
}
