package game

import (
	"fmt"
	"slices"
)

// Phase is the hand lifecycle state of a table.
type Phase int

const (
	Waiting Phase = iota
	Preflop
	Flop
	Turn
	River
	Showdown
)

var phaseNames = [...]string{"waiting", "preflop", "flop", "turn", "river", "showdown"}

func (p Phase) String() string {
	if p < Waiting || p > Showdown {
		return fmt.Sprintf("phase(%d)", int(p))
	}
	return phaseNames[p]
}

// MarshalText encodes the phase by name.
func (p Phase) MarshalText() ([]byte, error) {
	if p < Waiting || p > Showdown {
		return nil, fmt.Errorf("unknown phase %d", int(p))
	}
	return []byte(p.String()), nil
}

// UnmarshalText decodes a phase name.
func (p *Phase) UnmarshalText(text []byte) error {
	for i, name := range phaseNames {
		if name == string(text) {
			*p = Phase(i)
			return nil
		}
	}
	return fmt.Errorf("unknown phase %q", text)
}

// Betting reports whether the phase is one of the four streets.
func (p Phase) Betting() bool {
	return p >= Preflop && p <= River
}

// boardSize is the number of community cards visible once p is entered.
func (p Phase) boardSize() int {
	switch p {
	case Flop:
		return 3
	case Turn:
		return 4
	case River, Showdown:
		return 5
	default:
		return 0
	}
}

// Next returns the street that follows p within a hand. Waiting and
// Showdown have no in-hand successor.
func (p Phase) Next() (Phase, error) {
	switch p {
	case Preflop:
		return Flop, nil
	case Flop:
		return Turn, nil
	case Turn:
		return River, nil
	case River:
		return Showdown, nil
	default:
		return p, fmt.Errorf("%w: %s", ErrNoSuccessor, p)
	}
}

// transitions lists every legal phase change. In-hand phases may drop to
// Showdown (won by fold) or Waiting (hand abandoned).
var transitions = map[Phase][]Phase{
	Waiting:  {Preflop},
	Preflop:  {Flop, Showdown, Waiting},
	Flop:     {Turn, Showdown, Waiting},
	Turn:     {River, Showdown, Waiting},
	River:    {Showdown, Waiting},
	Showdown: {Preflop, Waiting},
}

// CanTransition reports whether the table may move from one phase to another.
func CanTransition(from, to Phase) bool {
	return slices.Contains(transitions[from], to)
}
