package game

import (
	"fmt"
	"strings"
)

// Action represents a player action
type Action int

const (
	Fold Action = iota
	Check
	Call
	Raise
	AllIn
)

func (a Action) String() string {
	switch a {
	case Fold:
		return "fold"
	case Check:
		return "check"
	case Call:
		return "call"
	case Raise:
		return "raise"
	case AllIn:
		return "allin"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// ParseAction converts a wire action name into an Action. "bet" is accepted
// as an alias for raise.
func ParseAction(s string) (Action, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fold":
		return Fold, nil
	case "check":
		return Check, nil
	case "call":
		return Call, nil
	case "raise", "bet":
		return Raise, nil
	case "allin", "all_in", "all-in":
		return AllIn, nil
	default:
		return 0, illegal(ErrUnknownAction, "%q", s)
	}
}

// BettingRound encapsulates the state for one street
type BettingRound struct {
	HighestWager int
	Acting       int // Seat index, -1 when nobody is to act
}

// NewBettingRound creates a round with nobody to act.
func NewBettingRound() *BettingRound {
	return &BettingRound{Acting: -1}
}

// Reset starts a new street: wagers and acted flags are cleared. Chips
// already wagered stay in Committed and in the table pot.
func (br *BettingRound) Reset(seats []*Seat) {
	br.HighestWager = 0
	br.Acting = -1
	for _, s := range seats {
		s.Wager = 0
		s.Acted = false
	}
}

// Apply validates and applies action for the seat at idx and returns the
// number of chips moved into the pot.
func (br *BettingRound) Apply(seats []*Seat, idx int, action Action, amount int) (int, error) {
	if idx < 0 || idx >= len(seats) {
		return 0, illegal(ErrNotYourTurn, "")
	}
	if idx != br.Acting {
		return 0, illegal(ErrNotYourTurn, "")
	}
	seat := seats[idx]
	if !seat.CanAct() {
		return 0, illegal(ErrSeatInactive, "")
	}

	switch action {
	case Fold:
		seat.Folded = true
		seat.Acted = true
		return 0, nil

	case Check:
		if seat.Wager != br.HighestWager {
			return 0, illegal(ErrCannotCheck, "owe %d", br.HighestWager-seat.Wager)
		}
		seat.Acted = true
		return 0, nil

	case Call:
		paid := seat.commit(br.HighestWager - seat.Wager)
		seat.Acted = true
		return paid, nil

	case Raise:
		if amount <= br.HighestWager {
			return 0, illegal(ErrRaiseTooSmall, "raise to %d, highest wager %d", amount, br.HighestWager)
		}
		delta := amount - seat.Wager
		if delta > seat.Stack {
			return 0, illegal(ErrInsufficientStack, "need %d, have %d", delta, seat.Stack)
		}
		return br.raiseTo(seats, idx, amount), nil

	case AllIn:
		total := seat.Wager + seat.Stack
		if total > br.HighestWager {
			return br.raiseTo(seats, idx, total), nil
		}
		paid := seat.commit(seat.Stack)
		seat.Acted = true
		return paid, nil

	default:
		return 0, illegal(ErrUnknownAction, "%d", int(action))
	}
}

// raiseTo sets the seat's wager to total and reopens action for everyone
// else still able to act.
func (br *BettingRound) raiseTo(seats []*Seat, idx int, total int) int {
	seat := seats[idx]
	paid := seat.commit(total - seat.Wager)
	br.HighestWager = seat.Wager
	for i, s := range seats {
		if i != idx && s.CanAct() {
			s.Acted = false
		}
	}
	seat.Acted = true
	return paid
}

// Complete reports whether the street is over. It is over when every seat
// that can still act has acted and matched the highest wager, or when at
// most one seat can act and it has nothing left to match.
func (br *BettingRound) Complete(seats []*Seat) bool {
	contesting := 0
	var actors []*Seat
	for _, s := range seats {
		if s.Contesting() {
			contesting++
		}
		if s.CanAct() {
			actors = append(actors, s)
		}
	}
	if contesting <= 1 || len(actors) == 0 {
		return true
	}
	if len(actors) == 1 && actors[0].Wager >= br.HighestWager {
		return true
	}
	for _, s := range actors {
		if !s.Acted || s.Wager != br.HighestWager {
			return false
		}
	}
	return true
}

// NextToAct returns the first seat index at or after from (wrapping) that
// can still act, or -1.
func (br *BettingRound) NextToAct(seats []*Seat, from int) int {
	n := len(seats)
	for i := range n {
		idx := ((from+i)%n + n) % n
		if seats[idx].CanAct() {
			return idx
		}
	}
	return -1
}
