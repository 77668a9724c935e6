// Package evaluator ranks Texas Hold'em hands.
//
// It adapts github.com/paulhankin/poker to the table engine's card type. A
// HandRank is comparable by Score alone; a higher score is a stronger hand.
package evaluator

import (
	"errors"
	"fmt"

	pk "github.com/paulhankin/poker"

	"github.com/lox/holdemtables/poker"
)

// ErrCardCount is returned when asked to rank fewer than 5 or more than 7 cards.
var ErrCardCount = errors.New("evaluator: need 5 to 7 cards")

// HandRank is the strength of the best five card hand found in a set of cards.
type HandRank struct {
	Score       int16  `json:"score"`
	Description string `json:"description"`
}

// Compare returns 1 if r beats other, -1 if it loses and 0 for a tie.
func (r HandRank) Compare(other HandRank) int {
	switch {
	case r.Score > other.Score:
		return 1
	case r.Score < other.Score:
		return -1
	}
	return 0
}

// Evaluator ranks hands. The zero value is ready to use.
type Evaluator struct{}

// New returns an Evaluator.
func New() *Evaluator {
	return &Evaluator{}
}

// Rank evaluates the best five card hand contained in cards.
func (e *Evaluator) Rank(cards []poker.Card) (HandRank, error) {
	if len(cards) < 5 || len(cards) > 7 {
		return HandRank{}, fmt.Errorf("%w: got %d", ErrCardCount, len(cards))
	}

	converted := make([]pk.Card, len(cards))
	for i, c := range cards {
		pc, err := toLib(c)
		if err != nil {
			return HandRank{}, err
		}
		converted[i] = pc
	}

	var score int16
	switch len(converted) {
	case 5:
		var five [5]pk.Card
		copy(five[:], converted)
		score = pk.Eval5(&five)
	case 6:
		var five [5]pk.Card
		score, five = bestOfSix(converted)
		converted = five[:]
	case 7:
		var seven [7]pk.Card
		copy(seven[:], converted)
		score = pk.Eval7(&seven)
	}

	desc, err := pk.Describe(converted)
	if err != nil {
		return HandRank{}, fmt.Errorf("evaluator: describe %v: %w", cards, err)
	}

	return HandRank{Score: score, Description: desc}, nil
}

// BestOf returns the indices of the strongest ranks. More than one index
// means a tie.
func (e *Evaluator) BestOf(ranks []HandRank) []int {
	if len(ranks) == 0 {
		return nil
	}

	best := []int{0}
	for i := 1; i < len(ranks); i++ {
		switch ranks[i].Compare(ranks[best[0]]) {
		case 1:
			best = []int{i}
		case 0:
			best = append(best, i)
		}
	}
	return best
}

// bestOfSix tries each five card subset of six cards.
func bestOfSix(cards []pk.Card) (int16, [5]pk.Card) {
	var best int16 = -1
	var bestFive [5]pk.Card
	for skip := range cards {
		var five [5]pk.Card
		j := 0
		for i, c := range cards {
			if i == skip {
				continue
			}
			five[j] = c
			j++
		}
		if s := pk.Eval5(&five); s > best {
			best = s
			bestFive = five
		}
	}
	return best, bestFive
}

// toLib converts a card to the library encoding, where ranks run Ace=1
// through King=13.
func toLib(c poker.Card) (pk.Card, error) {
	var zero pk.Card
	if !c.IsValid() {
		return zero, fmt.Errorf("evaluator: %w: %s", poker.ErrInvalidCard, c)
	}
	rank := pk.Rank(c.Rank() + 2)
	if c.Rank() == poker.Ace {
		rank = 1
	}
	card, err := pk.MakeCard(pk.Suit(c.Suit()), rank)
	if err != nil {
		return zero, fmt.Errorf("evaluator: convert %s: %w", c, err)
	}
	return card, nil
}
