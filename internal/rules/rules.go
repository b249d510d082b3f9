// Package rules holds the numeric rule parameters consumed by the engine.
package rules

import "time"

// Rules is an immutable set of game constants shared by every session.
type Rules struct {
	ID                 string        `json:"id"`
	StartingCash       int           `json:"startingCash"`
	TurnDuration       time.Duration `json:"turnDuration"`
	JailFine           int           `json:"jailFine"`
	MaxJailRolls       int           `json:"maxJailRolls"`
	GoSalary           int           `json:"goSalary"`
	MortgageRatio      float64       `json:"mortgageRatio"`
	UnmortgageInterest float64       `json:"unmortgageInterest"`
	UtilityMultipliers []int         `json:"utilityMultipliers"`
	DoubleRentOnSet    bool          `json:"doubleRentOnSet"`
	JailBlocksRent     bool          `json:"jailBlocksRent"`
	TimeoutPenaltyStep int           `json:"timeoutPenaltyStep"`
	MaxResolveDepth    int           `json:"maxResolveDepth"`
	MaxChatEntries     int           `json:"maxChatEntries"`
	MaxChatLength      int           `json:"maxChatLength"`
}

// Classic returns the default rule preset.
func Classic() Rules {
	return Rules{
		ID:                 "richup-v1",
		StartingCash:       2000,
		TurnDuration:       40 * time.Second,
		JailFine:           50,
		MaxJailRolls:       3,
		GoSalary:           200,
		MortgageRatio:      0.5,
		UnmortgageInterest: 0.1,
		UtilityMultipliers: []int{4, 10, 20},
		DoubleRentOnSet:    true,
		JailBlocksRent:     true,
		TimeoutPenaltyStep: 50,
		MaxResolveDepth:    8,
		MaxChatEntries:     50,
		MaxChatLength:      200,
	}
}

// UtilityMultiplier returns the dice multiplier for an owner holding count utilities.
func (r Rules) UtilityMultiplier(count int) int {
	if count <= 0 || len(r.UtilityMultipliers) == 0 {
		return 0
	}
	if count > len(r.UtilityMultipliers) {
		count = len(r.UtilityMultipliers)
	}
	return r.UtilityMultipliers[count-1]
}

// MortgageValue is the cash credited when mortgaging a space of the given price.
func (r Rules) MortgageValue(price int) int {
	return int(float64(price) * r.MortgageRatio)
}

// UnmortgageCost is the mortgage value plus interest, rounded down.
func (r Rules) UnmortgageCost(price int) int {
	value := r.MortgageValue(price)
	return value + int(float64(value)*r.UnmortgageInterest)
}
