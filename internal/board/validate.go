package board

import (
	"fmt"
	"sort"
	"strings"
)

var requiredSingletons = []SpaceType{SpaceStart, SpaceJail, SpaceGoToJail}

// ValidationError collects every structural problem found in a board.
type ValidationError struct {
	BoardID string
	Issues  []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid board %q: %s", e.BoardID, strings.Join(e.Issues, "; "))
}

// Validate checks the structural rules a board must satisfy before the engine
// may trust it. It returns a *ValidationError listing all issues, or nil.
func Validate(b *Board) error {
	var issues []string
	if b.ID == "" || b.Name == "" || len(b.Spaces) == 0 {
		return &ValidationError{BoardID: b.ID, Issues: []string{"board must include id, name, and spaces"}}
	}

	seen := make(map[int]bool, len(b.Spaces))
	for _, s := range b.Spaces {
		if seen[s.Index] {
			issues = append(issues, fmt.Sprintf("space index %d is duplicated", s.Index))
		}
		seen[s.Index] = true
	}
	for i := range b.Spaces {
		if !seen[i] {
			issues = append(issues, fmt.Sprintf("space index %d is missing", i))
		}
	}

	for _, t := range requiredSingletons {
		count := 0
		for _, s := range b.Spaces {
			if s.Type == t {
				count++
			}
		}
		if count != 1 {
			issues = append(issues, fmt.Sprintf("board must contain exactly one %s space", t))
		}
	}

	groupCounts := map[string]int{}
	for _, s := range b.Spaces {
		switch s.Type {
		case SpaceProperty:
			if s.Group == "" {
				issues = append(issues, fmt.Sprintf("%s missing group", s.Name))
			}
			if s.Price < 50 || s.Price > 500 {
				issues = append(issues, fmt.Sprintf("%s has invalid price %d", s.Name, s.Price))
			}
			if len(s.Rent) == 0 || !strictlyIncreasing(s.Rent) {
				issues = append(issues, fmt.Sprintf("%s rent tiers must strictly increase", s.Name))
			}
			groupCounts[s.Group]++
		case SpaceRailroad:
			if s.Price <= 0 || len(s.Rent) == 0 || !strictlyIncreasing(s.Rent) {
				issues = append(issues, fmt.Sprintf("%s needs a price and increasing rent steps", s.Name))
			}
		case SpaceUtility:
			if s.Price <= 0 {
				issues = append(issues, fmt.Sprintf("%s needs a price", s.Name))
			}
		case SpaceTax, SpaceTaxRefund:
			if s.Amount < 0 {
				issues = append(issues, fmt.Sprintf("%s has a negative amount", s.Name))
			}
		}
	}

	names := make([]string, 0, len(b.Groups))
	for name := range b.Groups {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		g := b.Groups[name]
		if groupCounts[name] != g.Size {
			issues = append(issues, fmt.Sprintf("group %s expected %d properties, got %d", name, g.Size, groupCounts[name]))
		}
		if g.MaxHouses < 1 {
			issues = append(issues, fmt.Sprintf("group %s needs a positive house cap", name))
		}
	}
	for name := range groupCounts {
		if _, ok := b.Groups[name]; !ok && name != "" {
			issues = append(issues, fmt.Sprintf("group %s is not declared", name))
		}
	}
	if len(groupCounts) < 2 {
		issues = append(issues, "balanced property distribution requires at least two groups")
	}

	if len(issues) > 0 {
		return &ValidationError{BoardID: b.ID, Issues: issues}
	}
	return nil
}

func strictlyIncreasing(values []int) bool {
	for i := 1; i < len(values); i++ {
		if values[i] <= values[i-1] {
			return false
		}
	}
	return true
}
