// Command boardcheck validates a board definition and prints its spaces.
//
//	boardcheck [path/to/board.json]
//
// Without a path it checks the embedded classic board.
package main

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/pterm/pterm"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"meownopoly/internal/board"
)

var printer = message.NewPrinter(language.English)

func main() {
	b, err := load(os.Args[1:])
	if err != nil {
		var verr *board.ValidationError
		if errors.As(err, &verr) {
			pterm.Error.Printfln("board %q has %d problems", verr.BoardID, len(verr.Issues))
			for _, issue := range verr.Issues {
				pterm.Println("  - " + issue)
			}
		} else {
			pterm.Error.Println(err.Error())
		}
		os.Exit(1)
	}

	if err := pterm.DefaultTable.WithHasHeader().WithData(spaceTable(b)).Render(); err != nil {
		pterm.Error.Println(err.Error())
		os.Exit(1)
	}
	if err := pterm.DefaultTable.WithHasHeader().WithData(groupTable(b)).Render(); err != nil {
		pterm.Error.Println(err.Error())
		os.Exit(1)
	}
	pterm.Success.Printfln("%s (%s): %d spaces, %d groups", b.Name, b.ID, b.Len(), len(b.Groups))
}

func load(args []string) (*board.Board, error) {
	if len(args) == 0 {
		return board.Parse(board.ClassicJSON())
	}
	return board.Load(args[0])
}

func money(n int) string {
	if n == 0 {
		return ""
	}
	return printer.Sprintf("$%d", n)
}

func spaceTable(b *board.Board) pterm.TableData {
	data := pterm.TableData{{"#", "Name", "Type", "Group", "Price", "Rent", "Amount"}}
	for i := range b.Len() {
		s := b.Space(i)
		rent := make([]string, len(s.Rent))
		for j, r := range s.Rent {
			rent[j] = printer.Sprintf("%d", r)
		}
		data = append(data, []string{
			fmt.Sprint(s.Index),
			s.Name,
			string(s.Type),
			s.Group,
			money(s.Price),
			strings.Join(rent, " / "),
			money(s.Amount),
		})
	}
	return data
}

func groupTable(b *board.Board) pterm.TableData {
	names := make([]string, 0, len(b.Groups))
	for name := range b.Groups {
		names = append(names, name)
	}
	sort.Strings(names)

	data := pterm.TableData{{"Group", "Color", "Size", "House price", "Max houses"}}
	for _, name := range names {
		g := b.Groups[name]
		data = append(data, []string{name, g.Color, fmt.Sprint(g.Size), money(g.HousePrice), fmt.Sprint(g.MaxHouses)})
	}
	return data
}
