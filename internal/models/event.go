package models

import "time"

// EventType names a log entry
type EventType string

const (
	EventGoSalary      EventType = "GO_SALARY"
	EventRoll          EventType = "ROLL"
	EventJailRoll      EventType = "JAIL_ROLL"
	EventJailEscape    EventType = "JAIL_ESCAPE"
	EventJailForceOut  EventType = "JAIL_FORCE_OUT"
	EventJailStay      EventType = "JAIL_STAY"
	EventPayJail       EventType = "PAY_JAIL"
	EventUsePardon     EventType = "USE_PARDON"
	EventGoToJail      EventType = "GO_TO_JAIL"
	EventBuy           EventType = "BUY"
	EventBuildHouse    EventType = "BUILD_HOUSE"
	EventSellHouse     EventType = "SELL_HOUSE"
	EventMortgage      EventType = "MORTGAGE"
	EventUnmortgage    EventType = "UNMORTGAGE"
	EventEndTurn       EventType = "END_TURN"
	EventTax           EventType = "TAX"
	EventTaxRefund     EventType = "TAX_REFUND"
	EventVacation      EventType = "VACATION"
	EventCard          EventType = "CARD"
	EventPardon        EventType = "PARDON_RECEIVED"
	EventEachPlayer    EventType = "EACH_PLAYER"
	EventRenovation    EventType = "RENOVATION"
	EventRandomCity    EventType = "RANDOM_CITY"
	EventUtilityRoll   EventType = "UTILITY_ROLL"
	EventRent          EventType = "RENT"
	EventResolveLimit  EventType = "RESOLVE_LIMIT"
	EventBankrupt      EventType = "BANKRUPT"
	EventGameOver      EventType = "GAME_OVER"
	EventTimeout       EventType = "TIMEOUT"
	EventTradeOffer    EventType = "TRADE_OFFER"
	EventTradeAccepted EventType = "TRADE_ACCEPTED"
	EventTradeRejected EventType = "TRADE_REJECTED"
	EventTradeCanceled EventType = "TRADE_CANCELED"
)

// Event is one append-only log record
type Event struct {
	At       time.Time `json:"t"`
	Type     EventType `json:"type"`
	PlayerID string    `json:"playerId,omitempty"`
	OtherID  string    `json:"otherId,omitempty"`
	Space    *int      `json:"space,omitempty"`
	Amount   int       `json:"amount,omitempty"`
	Dice     []int     `json:"dice,omitempty"`
	Detail   string    `json:"detail,omitempty"`
}
