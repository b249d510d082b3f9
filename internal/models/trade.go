package models

import "time"

// TradeBundle is one side of a trade
type TradeBundle struct {
	Cash        int   `json:"cash"`
	Properties  []int `json:"properties"`
	PardonCards int   `json:"pardonCards"`
}

// IsEmpty reports whether the bundle transfers nothing
func (b TradeBundle) IsEmpty() bool {
	return b.Cash == 0 && len(b.Properties) == 0 && b.PardonCards == 0
}

// Trade is a pending proposal between two players. Presence in
// GameState.PendingTrades means it is still open.
type Trade struct {
	ID        string      `json:"id"`
	FromID    string      `json:"fromId"`
	ToID      string      `json:"toId"`
	Offer     TradeBundle `json:"offer"`
	Request   TradeBundle `json:"request"`
	Message   string      `json:"message,omitempty"`
	CreatedAt time.Time   `json:"createdAt"`
}

// Involves reports whether playerID is a party to the trade
func (t Trade) Involves(playerID string) bool {
	return t.FromID == playerID || t.ToID == playerID
}

func (t Trade) clone() Trade {
	t.Offer.Properties = append([]int(nil), t.Offer.Properties...)
	t.Request.Properties = append([]int(nil), t.Request.Properties...)
	return t
}
