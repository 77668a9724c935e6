package poker

import (
	"errors"
	"fmt"
	"math/rand/v2"
)

// DeckSize is the number of cards in a standard deck.
const DeckSize = 52

// ErrDeckExhausted is returned when a deal asks for more cards than remain.
var ErrDeckExhausted = errors.New("deck exhausted")

// Deck represents a standard 52-card deck dealt from the front.
type Deck struct {
	cards [DeckSize]Card // Fixed size array
	next  int
	rng   *rand.Rand // Random source for deterministic shuffling
}

// NewDeck creates a new shuffled deck with explicit RNG
func NewDeck(rng *rand.Rand) *Deck {
	d := &Deck{rng: rng}

	i := 0
	for suit := Clubs; suit <= Spades; suit++ {
		for rank := Two; rank <= Ace; rank++ {
			d.cards[i] = NewCard(rank, suit)
			i++
		}
	}

	d.shuffle()
	return d
}

// NewStackedDeck returns a deck that deals the given cards first, in order,
// followed by the remaining cards of a standard deck. Used to script hands.
func NewStackedDeck(top []Card) (*Deck, error) {
	d := &Deck{}
	seen := make(map[Card]bool, DeckSize)
	i := 0
	for _, c := range top {
		if !c.IsValid() || seen[c] {
			return nil, fmt.Errorf("stacked deck: %w: %s", ErrInvalidCard, c)
		}
		seen[c] = true
		d.cards[i] = c
		i++
	}
	for suit := Clubs; suit <= Spades; suit++ {
		for rank := Two; rank <= Ace; rank++ {
			c := NewCard(rank, suit)
			if seen[c] {
				continue
			}
			d.cards[i] = c
			i++
		}
	}
	return d, nil
}

// shuffle shuffles the deck using Fisher-Yates
func (d *Deck) shuffle() {
	d.next = 0
	for i := len(d.cards) - 1; i > 0; i-- {
		var j int
		if d.rng != nil {
			j = d.rng.IntN(i + 1)
		} else {
			j = rand.IntN(i + 1)
		}
		d.cards[i], d.cards[j] = d.cards[j], d.cards[i]
	}
}

// Deal removes n cards from the front of the deck.
func (d *Deck) Deal(n int) ([]Card, error) {
	if n < 0 || d.next+n > len(d.cards) {
		return nil, fmt.Errorf("%w: want %d, have %d", ErrDeckExhausted, n, d.Remaining())
	}
	cards := make([]Card, n)
	copy(cards, d.cards[d.next:d.next+n])
	d.next += n
	return cards, nil
}

// Remaining returns the number of cards left in the deck
func (d *Deck) Remaining() int {
	return len(d.cards) - d.next
}
