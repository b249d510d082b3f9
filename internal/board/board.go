// Package board describes the immutable playing surface: spaces, color groups
// and rent tables. A Board is validated once when it is loaded and is safe to
// share across sessions afterwards.
package board

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// SpaceType identifies what happens when a player lands on a space.
type SpaceType string

const (
	SpaceStart          SpaceType = "Start"
	SpaceProperty       SpaceType = "Property"
	SpaceRailroad       SpaceType = "Railroad"
	SpaceUtility        SpaceType = "Utility"
	SpaceTax            SpaceType = "Tax"
	SpaceTaxRefund      SpaceType = "TaxRefund"
	SpaceFreeParking    SpaceType = "FreeParking"
	SpaceJail           SpaceType = "Jail"
	SpaceGoToJail       SpaceType = "GoToJail"
	SpaceChance         SpaceType = "Chance"
	SpaceCommunityChest SpaceType = "CommunityChest"
)

// Ownable reports whether spaces of this type can be bought.
func (t SpaceType) Ownable() bool {
	return t == SpaceProperty || t == SpaceRailroad || t == SpaceUtility
}

// Space is one square of the board.
type Space struct {
	Index  int       `json:"index"`
	Type   SpaceType `json:"type"`
	Name   string    `json:"name"`
	Group  string    `json:"group,omitempty"`
	Price  int       `json:"price,omitempty"`
	Rent   []int     `json:"rent,omitempty"`
	Amount int       `json:"amount,omitempty"`
}

// BaseRent returns the property rent for the given house count. Spaces without
// a rent table fall back to a tenth of their price, at least 10.
func (s Space) BaseRent(houses int) int {
	if len(s.Rent) == 0 {
		return max(10, s.Price/10)
	}
	if houses >= len(s.Rent) {
		houses = len(s.Rent) - 1
	}
	if houses < 0 {
		houses = 0
	}
	return s.Rent[houses]
}

// Group is a color set of properties.
type Group struct {
	Color      string `json:"color"`
	Size       int    `json:"size"`
	HousePrice int    `json:"housePrice"`
	MaxHouses  int    `json:"maxHouses"`
}

// Board is a validated board definition.
type Board struct {
	ID     string           `json:"id"`
	Name   string           `json:"name"`
	Spaces []Space          `json:"spaces"`
	Groups map[string]Group `json:"groups"`

	jail int
}

// Parse decodes and validates a board definition.
func Parse(data []byte) (*Board, error) {
	var b Board
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("decode board: %w", err)
	}
	if err := Validate(&b); err != nil {
		return nil, err
	}
	sort.Slice(b.Spaces, func(i, j int) bool { return b.Spaces[i].Index < b.Spaces[j].Index })
	for _, s := range b.Spaces {
		if s.Type == SpaceJail {
			b.jail = s.Index
		}
	}
	return &b, nil
}

// Load reads and validates a board file.
func Load(path string) (*Board, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read board %s: %w", path, err)
	}
	b, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("load board %s: %w", path, err)
	}
	return b, nil
}

// Len is the number of spaces on the board.
func (b *Board) Len() int {
	return len(b.Spaces)
}

// Space returns the space at index i.
func (b *Board) Space(i int) Space {
	return b.Spaces[i]
}

// Contains reports whether i is a valid space index.
func (b *Board) Contains(i int) bool {
	return i >= 0 && i < len(b.Spaces)
}

// JailIndex is the index of the jail space.
func (b *Board) JailIndex() int {
	return b.jail
}

// IndexesOf returns the ascending indexes of every space of type t.
func (b *Board) IndexesOf(t SpaceType) []int {
	var out []int
	for _, s := range b.Spaces {
		if s.Type == t {
			out = append(out, s.Index)
		}
	}
	return out
}

// GroupMembers returns the ascending indexes of the properties in group.
func (b *Board) GroupMembers(group string) []int {
	if group == "" {
		return nil
	}
	var out []int
	for _, s := range b.Spaces {
		if s.Type == SpaceProperty && s.Group == group {
			out = append(out, s.Index)
		}
	}
	return out
}

// MaxHouses is the house cap for a group; reaching it means a hotel.
func (b *Board) MaxHouses(group string) int {
	if g, ok := b.Groups[group]; ok && g.MaxHouses > 0 {
		return g.MaxHouses
	}
	return 4
}

// HousePrice is the per-house build cost for a group.
func (b *Board) HousePrice(group string) int {
	return b.Groups[group].HousePrice
}
