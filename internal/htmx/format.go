package htmx

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"meownopoly/internal/board"
	"meownopoly/internal/game"
	"meownopoly/internal/models"
)

//go:generate go run github.com/a-h/templ/cmd/templ@v0.3.977 generate

const recentEvents = 12

var printer = message.NewPrinter(language.English)

// Money formats an amount of game cash with digit grouping.
func Money(n int) string {
	return printer.Sprintf("$%d", n)
}

func sessionURL(sessionID, playerID string) string {
	u := "/htmx/sessions/" + url.PathEscape(sessionID)
	if playerID != "" {
		u += "?" + url.Values{"player": {playerID}}.Encode()
	}
	return u
}

func streamURL(sessionID, playerID string) string {
	u := "/htmx/sse/" + url.PathEscape(sessionID)
	if playerID != "" {
		u += "?" + url.Values{"player": {playerID}}.Encode()
	}
	return u
}

func sessionStatus(s game.Summary) string {
	if s.Winner != "" {
		return string(s.Status) + " (winner " + s.Winner + ")"
	}
	return string(s.Status)
}

func playerName(st *models.GameState, id string) string {
	if p := st.Player(id); p != nil {
		return p.Name
	}
	return id
}

func spaceName(b *board.Board, i int) string {
	if !b.Contains(i) {
		return ""
	}
	return b.Space(i).Name
}

func playerFlags(p models.Player) string {
	var flags []string
	if p.InJail {
		flags = append(flags, "in jail")
	}
	if p.PardonCards > 0 {
		flags = append(flags, fmt.Sprintf("%d pardon", p.PardonCards))
	}
	if p.Bankrupt {
		flags = append(flags, "bankrupt")
	}
	return strings.Join(flags, ", ")
}

// holdingsOf lists owned spaces in board order.
func holdingsOf(st *models.GameState, b *board.Board) []string {
	var out []string
	for i := range b.Len() {
		o, ok := st.Ownership[i]
		if !ok {
			continue
		}
		line := b.Space(i).Name + ": " + playerName(st, o.OwnerID)
		switch {
		case o.Mortgaged:
			line += " (mortgaged)"
		case o.Houses > 0:
			line += fmt.Sprintf(" (%d houses)", o.Houses)
		}
		out = append(out, line)
	}
	return out
}

// controlsFor returns the actions offered to playerID, or nil when it is not
// their turn.
func controlsFor(st *models.GameState, playerID string) []models.ActionType {
	cur := st.CurrentPlayer()
	if st.IsOver() || cur == nil || playerID == "" || cur.ID != playerID {
		return nil
	}
	actions := []models.ActionType{models.ActionRoll, models.ActionBuy, models.ActionEndTurn}
	if cur.InJail {
		actions = append(actions, models.ActionPayJail)
		if cur.PardonCards > 0 {
			actions = append(actions, models.ActionUsePardon)
		}
	}
	return actions
}

func actionVals(st *models.GameState, playerID string, a models.ActionType) string {
	data, _ := json.Marshal(map[string]string{
		"type":    string(a),
		"version": strconv.FormatInt(st.Version, 10),
		"player":  playerID,
	})
	return string(data)
}

func actionLabel(a models.ActionType) string {
	return strings.ReplaceAll(string(a), "_", " ")
}

func recentLog(st *models.GameState) []models.Event {
	return st.Log[max(0, len(st.Log)-recentEvents):]
}

func describe(e models.Event, st *models.GameState, b *board.Board) string {
	var parts []string
	if e.PlayerID != "" {
		parts = append(parts, playerName(st, e.PlayerID))
	}
	parts = append(parts, strings.ToLower(strings.ReplaceAll(string(e.Type), "_", " ")))
	if e.Space != nil && b.Contains(*e.Space) {
		parts = append(parts, b.Space(*e.Space).Name)
	}
	if e.Amount != 0 {
		parts = append(parts, Money(e.Amount))
	}
	if len(e.Dice) > 0 {
		parts = append(parts, fmt.Sprint(e.Dice))
	}
	if e.Detail != "" {
		parts = append(parts, e.Detail)
	}
	return strings.Join(parts, " ")
}
