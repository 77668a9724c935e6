package game

import (
	"fmt"
	"io"
	"math/rand/v2"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"github.com/lox/holdemtables/internal/evaluator"
	"github.com/lox/holdemtables/poker"
)

// Config holds the per-table settings.
type Config struct {
	SmallBlind   int
	BigBlind     int
	MaxSeats     int
	MinBuyIn     int
	MaxBuyIn     int
	TurnTimeout  time.Duration
	TickInterval time.Duration
	RestartDelay time.Duration
}

// DefaultConfig returns a 5/10 table with a 30 second turn clock.
func DefaultConfig() Config {
	return Config{
		SmallBlind:   5,
		BigBlind:     10,
		MaxSeats:     9,
		MinBuyIn:     100,
		MaxBuyIn:     1000,
		TurnTimeout:  30 * time.Second,
		TickInterval: time.Second,
		RestartDelay: 6 * time.Second,
	}
}

// Validate checks the config for consistency
func (c Config) Validate() error {
	if c.SmallBlind <= 0 || c.BigBlind < c.SmallBlind {
		return fmt.Errorf("%w: blinds %d/%d", ErrInvalidConfig, c.SmallBlind, c.BigBlind)
	}
	if c.MaxSeats < 2 || c.MaxSeats > 10 {
		return fmt.Errorf("%w: max seats %d must be between 2 and 10", ErrInvalidConfig, c.MaxSeats)
	}
	if c.MinBuyIn <= 0 || c.MaxBuyIn < c.MinBuyIn {
		return fmt.Errorf("%w: buy-in range %d-%d", ErrInvalidConfig, c.MinBuyIn, c.MaxBuyIn)
	}
	if c.TurnTimeout <= 0 {
		return fmt.Errorf("%w: turn timeout must be positive", ErrInvalidConfig)
	}
	if c.TickInterval <= 0 || c.TickInterval > c.TurnTimeout {
		return fmt.Errorf("%w: tick interval %s", ErrInvalidConfig, c.TickInterval)
	}
	if c.RestartDelay < 0 {
		return fmt.Errorf("%w: restart delay must not be negative", ErrInvalidConfig)
	}
	return nil
}

// HandEvaluator ranks hands at showdown.
type HandEvaluator interface {
	Rank(cards []poker.Card) (evaluator.HandRank, error)
	BestOf(ranks []evaluator.HandRank) []int
}

// DeckSource returns a fresh deck for every hand.
type DeckSource func() *poker.Deck

// Option configures a Table
type Option func(*Table)

// WithClock sets the clock driving the turn timer and restart delay.
func WithClock(clock quartz.Clock) Option {
	return func(t *Table) {
		t.clock = clock
	}
}

// WithLogger sets the table logger.
func WithLogger(logger *log.Logger) Option {
	return func(t *Table) {
		t.logger = logger
	}
}

// WithObserver sets the receiver of snapshots, ticks and hand results.
func WithObserver(obs Observer) Option {
	return func(t *Table) {
		t.observer = obs
	}
}

// WithEvaluator replaces the default hand evaluator.
func WithEvaluator(eval HandEvaluator) Option {
	return func(t *Table) {
		t.eval = eval
	}
}

// WithRNG shuffles every deck from rng.
func WithRNG(rng *rand.Rand) Option {
	return func(t *Table) {
		t.deckSource = func() *poker.Deck { return poker.NewDeck(rng) }
	}
}

// WithDeckSource overrides deck creation entirely. Used to script hands.
func WithDeckSource(src DeckSource) Option {
	return func(t *Table) {
		t.deckSource = src
	}
}

func defaultLogger() *log.Logger {
	return log.New(io.Discard)
}
