package game

import (
	"github.com/lox/holdemtables/poker"
)

// Seat is a player's place at a table.
type Seat struct {
	PlayerID string
	Name     string
	ConnID   string

	Stack     int
	Wager     int // Chips put in on the current street
	Committed int // Chips put in over the whole hand
	HoleCards []poker.Card

	InHand       bool // Dealt into the current hand
	Folded       bool
	Acted        bool
	AllIn        bool
	Disconnected bool
	Left         bool // Gone, dropped from the seat list once the hand ends
}

// CanAct returns true if the seat still has decisions to make this hand.
func (s *Seat) CanAct() bool {
	return s.InHand && !s.Folded && !s.AllIn
}

// Contesting returns true if the seat is still eligible to win the pot.
func (s *Seat) Contesting() bool {
	return s.InHand && !s.Folded
}

// commit moves up to amount chips from the stack into the current wager and
// returns what was actually paid.
func (s *Seat) commit(amount int) int {
	if amount > s.Stack {
		amount = s.Stack
	}
	if amount < 0 {
		amount = 0
	}
	s.Stack -= amount
	s.Wager += amount
	s.Committed += amount
	if s.Stack == 0 && s.InHand {
		s.AllIn = true
	}
	return amount
}

func (s *Seat) resetForHand() {
	s.Wager = 0
	s.Committed = 0
	s.HoleCards = nil
	s.Folded = false
	s.Acted = false
	s.AllIn = false
	s.InHand = !s.Left && s.Stack > 0
}
