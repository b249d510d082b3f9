package engine

import (
	"meownopoly/internal/board"
	"meownopoly/internal/models"
)

func (e *engine) roll(p *models.Player) Outcome {
	if p.InJail {
		return e.jailRoll(p)
	}

	d1, d2 := e.rollDice()
	total := d1 + d2
	old := p.Position
	p.Position = (old + total) % e.b.Len()
	if old+total >= e.b.Len() {
		e.paySalary(p)
	}
	space := e.b.Space(p.Position)
	e.log(models.Event{Type: models.EventRoll, PlayerID: p.ID, Dice: []int{d1, d2}, Space: intPtr(space.Index), Detail: space.Name})

	e.resolve(p, 0)
	e.settle()
	e.advanceTurn()
	return Outcome{Dice: []int{d1, d2}, Space: &space}
}

// jailRoll is the roll handling for a jailed player: doubles release, the
// last allowed miss forces release against the fine, other misses forfeit
// the turn.
func (e *engine) jailRoll(p *models.Player) Outcome {
	d1, d2 := e.rollDice()
	e.log(models.Event{Type: models.EventJailRoll, PlayerID: p.ID, Dice: []int{d1, d2}})
	out := Outcome{Dice: []int{d1, d2}}

	if d1 == d2 {
		out.JailEscape = true
		space := e.leaveJail(p, d1+d2, models.EventJailEscape, 0)
		out.Space = &space
		return out
	}

	p.JailTurns++
	if p.JailTurns >= e.r.MaxJailRolls {
		out.JailForceOut = true
		p.Cash -= e.r.JailFine
		space := e.leaveJail(p, d1+d2, models.EventJailForceOut, e.r.JailFine)
		out.Space = &space
		return out
	}

	out.StayedInJail = true
	e.log(models.Event{Type: models.EventJailStay, PlayerID: p.ID, Amount: p.JailTurns})
	e.advanceTurn()
	return out
}

// leaveJail releases p and moves it from the jail space without salary. It
// returns the space landed on.
func (e *engine) leaveJail(p *models.Player, total int, kind models.EventType, fine int) board.Space {
	p.InJail = false
	p.JailTurns = 0
	p.Position = (e.b.JailIndex() + total) % e.b.Len()
	space := e.b.Space(p.Position)
	e.log(models.Event{Type: kind, PlayerID: p.ID, Amount: fine, Space: intPtr(space.Index), Detail: space.Name})
	e.resolve(p, 0)
	e.settle()
	e.advanceTurn()
	return space
}

func (e *engine) payJail(p *models.Player) (Outcome, error) {
	if !p.InJail {
		return Outcome{}, ErrNotInJail
	}
	p.Cash -= e.r.JailFine
	p.InJail = false
	p.JailTurns = 0
	e.log(models.Event{Type: models.EventPayJail, PlayerID: p.ID, Amount: e.r.JailFine})
	e.finish()
	return Outcome{PaidJail: true}, nil
}

func (e *engine) usePardon(p *models.Player) (Outcome, error) {
	if !p.InJail {
		return Outcome{}, ErrNotInJail
	}
	if p.PardonCards < 1 {
		return Outcome{}, ErrNoPardonCard
	}
	p.PardonCards--
	p.InJail = false
	p.JailTurns = 0
	e.log(models.Event{Type: models.EventUsePardon, PlayerID: p.ID})
	return Outcome{UsedPardon: true}, nil
}
