package poker

import (
	"errors"
	"fmt"
	"strings"
)

// Rank is a card rank, Two (0) through Ace (12).
type Rank uint8

// Suit is one of the four card suits.
type Suit uint8

const (
	Two Rank = iota
	Three
	Four
	Five
	Six
	Seven
	Eight
	Nine
	Ten
	Jack
	Queen
	King
	Ace
)

const (
	Clubs Suit = iota
	Diamonds
	Hearts
	Spades
)

const (
	rankChars = "23456789TJQKA"
	suitChars = "cdhs"
)

// ErrInvalidCard is returned when a card string cannot be parsed.
var ErrInvalidCard = errors.New("invalid card")

// Card is an immutable playing card. The zero value is the two of clubs;
// use IsValid to guard against uninitialised cards coming off the wire.
type Card struct {
	rank Rank
	suit Suit
}

// NewCard creates a card from rank and suit.
func NewCard(rank Rank, suit Suit) Card {
	return Card{rank: rank, suit: suit}
}

// Rank returns the card rank.
func (c Card) Rank() Rank { return c.rank }

// Suit returns the card suit.
func (c Card) Suit() Suit { return c.suit }

// IsValid reports whether rank and suit are in range.
func (c Card) IsValid() bool {
	return c.rank <= Ace && c.suit <= Spades
}

// String returns the two character form, e.g. "As" or "Td".
func (c Card) String() string {
	if !c.IsValid() {
		return "??"
	}
	return string([]byte{rankChars[c.rank], suitChars[c.suit]})
}

// MarshalText encodes the card as its two character form.
func (c Card) MarshalText() ([]byte, error) {
	if !c.IsValid() {
		return nil, fmt.Errorf("%w: rank=%d suit=%d", ErrInvalidCard, c.rank, c.suit)
	}
	return []byte(c.String()), nil
}

// UnmarshalText decodes a card from its two character form.
func (c *Card) UnmarshalText(text []byte) error {
	parsed, err := ParseCard(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// ParseCard parses a card such as "As", "td" or "10h".
func ParseCard(s string) (Card, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "10") {
		s = "T" + s[2:]
	}
	if len(s) != 2 {
		return Card{}, fmt.Errorf("%w: %q", ErrInvalidCard, s)
	}

	rank := strings.IndexByte(rankChars, upper(s[0]))
	if rank < 0 {
		return Card{}, fmt.Errorf("%w: bad rank in %q", ErrInvalidCard, s)
	}
	suit := strings.IndexByte(suitChars, lower(s[1]))
	if suit < 0 {
		return Card{}, fmt.Errorf("%w: bad suit in %q", ErrInvalidCard, s)
	}

	return NewCard(Rank(rank), Suit(suit)), nil
}

// ParseCards parses a space separated list of cards.
func ParseCards(s string) ([]Card, error) {
	fields := strings.Fields(s)
	cards := make([]Card, 0, len(fields))
	for _, f := range fields {
		c, err := ParseCard(f)
		if err != nil {
			return nil, err
		}
		cards = append(cards, c)
	}
	return cards, nil
}

// MustParseCards is ParseCards for fixtures; it panics on bad input.
func MustParseCards(s string) []Card {
	cards, err := ParseCards(s)
	if err != nil {
		panic(err)
	}
	return cards
}

func upper(b byte) byte {
	if b >= 'a' && b <= 'z' {
		return b - 'a' + 'A'
	}
	return b
}

func lower(b byte) byte {
	if b >= 'A' && b <= 'Z' {
		return b - 'A' + 'a'
	}
	return b
}
