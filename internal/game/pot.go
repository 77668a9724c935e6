package game

import (
	"slices"
)

// Pot is a main or side pot with the seat indices eligible to win it.
type Pot struct {
	Amount   int
	Eligible []int
}

// BuildPots splits every seat's Committed chips into a main pot and side
// pots. Levels are cut at each distinct commitment of a seat still
// contesting the hand; folded seats contribute dead money to the levels they
// reached but are never eligible. Adjacent pots with the same eligible seats
// are merged, and a pot nobody can win is folded into the pot below it.
func BuildPots(seats []*Seat) []Pot {
	var levels []int
	total := 0
	for _, s := range seats {
		total += s.Committed
		if s.Contesting() && s.Committed > 0 && !slices.Contains(levels, s.Committed) {
			levels = append(levels, s.Committed)
		}
	}
	if total == 0 {
		return nil
	}
	slices.Sort(levels)

	var pots []Pot
	prev := 0
	for _, level := range levels {
		pot := Pot{}
		for i, s := range seats {
			pot.Amount += min(s.Committed, level) - min(s.Committed, prev)
			if s.Contesting() && s.Committed >= level {
				pot.Eligible = append(pot.Eligible, i)
			}
		}
		prev = level

		switch {
		case pot.Amount == 0:
			continue
		case len(pot.Eligible) == 0 && len(pots) > 0:
			pots[len(pots)-1].Amount += pot.Amount
		case len(pots) > 0 && slices.Equal(pots[len(pots)-1].Eligible, pot.Eligible):
			pots[len(pots)-1].Amount += pot.Amount
		default:
			pots = append(pots, pot)
		}
	}

	// Dead money above the highest contesting level goes to the top pot.
	sum := 0
	for _, p := range pots {
		sum += p.Amount
	}
	if rest := total - sum; rest > 0 {
		if len(pots) == 0 {
			pots = append(pots, Pot{})
		}
		pots[len(pots)-1].Amount += rest
	}
	return pots
}

// splitPot divides amount between winners, which must already be ordered
// starting left of the button. Odd chips go one at a time from the front.
func splitPot(amount int, winners []int) map[int]int {
	shares := make(map[int]int, len(winners))
	if len(winners) == 0 {
		return shares
	}
	each := amount / len(winners)
	rest := amount % len(winners)
	for i, w := range winners {
		shares[w] += each
		if i < rest {
			shares[w]++
		}
	}
	return shares
}

// orderFromButton sorts seat indices by distance clockwise from the seat
// after the button.
func orderFromButton(idxs []int, button, n int) []int {
	out := slices.Clone(idxs)
	slices.SortFunc(out, func(a, b int) int {
		da := ((a-button-1)%n + n) % n
		db := ((b-button-1)%n + n) % n
		return da - db
	})
	return out
}
