package engine

import "errors"

// Rejections. An action rejected with any of these leaves the state untouched.
var (
	ErrGameOver             = errors.New("game is already finished")
	ErrInvalidCurrentPlayer = errors.New("invalid current player")
	ErrNotYourTurn          = errors.New("not your turn")
	ErrUnsupportedAction    = errors.New("unsupported action")
	ErrInvalidSpace         = errors.New("invalid space")
	ErrNotPurchasable       = errors.New("not purchasable")
	ErrAlreadyOwned         = errors.New("already owned")
	ErrInsufficientFunds    = errors.New("insufficient cash")
	ErrNotInJail            = errors.New("not in jail")
	ErrNoPardonCard         = errors.New("no pardon card")
	ErrNotOwner             = errors.New("you do not own this space")
	ErrNotBuildable         = errors.New("houses can only be built on properties")
	ErrIncompleteSet        = errors.New("you must own every property in the group")
	ErrHouseCap             = errors.New("house cap reached")
	ErrNoHouses             = errors.New("no houses to sell")
	ErrHasHouses            = errors.New("property has houses")
	ErrMortgaged            = errors.New("property is mortgaged")
	ErrNotMortgaged         = errors.New("property is not mortgaged")
	ErrNotInGame            = errors.New("player is not in this game")
	ErrInvalidTradeTarget   = errors.New("invalid trade partner")
	ErrEmptyTrade           = errors.New("trade must transfer something")
	ErrInvalidTradeBundle   = errors.New("invalid trade bundle")
	ErrTradeNotFound        = errors.New("trade not found")
	ErrNotTradeParty        = errors.New("not a party to this trade")
)

var rejections = []error{
	ErrGameOver, ErrInvalidCurrentPlayer, ErrNotYourTurn, ErrUnsupportedAction,
	ErrInvalidSpace, ErrNotPurchasable, ErrAlreadyOwned, ErrInsufficientFunds,
	ErrNotInJail, ErrNoPardonCard, ErrNotOwner, ErrNotBuildable, ErrIncompleteSet,
	ErrHouseCap, ErrNoHouses, ErrHasHouses, ErrMortgaged, ErrNotMortgaged,
	ErrNotInGame, ErrInvalidTradeTarget, ErrEmptyTrade, ErrInvalidTradeBundle,
	ErrTradeNotFound, ErrNotTradeParty, ErrNotEnoughPlayers,
}

// IsRejection reports whether err is a rule rejection produced by this
// package, as opposed to an internal failure.
func IsRejection(err error) bool {
	for _, r := range rejections {
		if errors.Is(err, r) {
			return true
		}
	}
	return false
}
