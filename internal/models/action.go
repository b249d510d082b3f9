package models

// ActionType names a player action
type ActionType string

const (
	ActionRoll        ActionType = "ROLL"
	ActionBuy         ActionType = "BUY"
	ActionEndTurn     ActionType = "END_TURN"
	ActionPayJail     ActionType = "PAY_JAIL"
	ActionUsePardon   ActionType = "USE_PARDON"
	ActionBuildHouse  ActionType = "BUILD_HOUSE"
	ActionSellHouse   ActionType = "SELL_HOUSE"
	ActionMortgage    ActionType = "MORTGAGE"
	ActionUnmortgage  ActionType = "UNMORTGAGE"
	ActionTradeOffer  ActionType = "TRADE_OFFER"
	ActionTradeAccept ActionType = "TRADE_ACCEPT"
	ActionTradeReject ActionType = "TRADE_REJECT"
	ActionTradeCancel ActionType = "TRADE_CANCEL"
)

// IsTrade reports whether the action belongs to trade negotiation, which is
// scoped to the trade's parties rather than the active seat.
func (t ActionType) IsTrade() bool {
	switch t {
	case ActionTradeOffer, ActionTradeAccept, ActionTradeReject, ActionTradeCancel:
		return true
	default:
		return false
	}
}

// Action is a request to mutate a game. Fields beyond Type are only read by
// the action kinds that need them.
type Action struct {
	Type    ActionType  `json:"type"`
	Space   int         `json:"space,omitempty"`
	TradeID string      `json:"tradeId,omitempty"`
	To      string      `json:"to,omitempty"`
	Offer   TradeBundle `json:"offer,omitempty"`
	Request TradeBundle `json:"request,omitempty"`
	Message string      `json:"message,omitempty"`
}
