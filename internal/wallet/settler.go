package wallet

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
)

// PendingCredit is a credit the settler has not yet landed.
type PendingCredit struct {
	TxID     string
	PlayerID string
	Amount   int
	Attempts int

	timer *quartz.Timer
}

// Settler delivers credits to a Wallet without making the caller wait on
// it. A failed credit is retried with exponential backoff until it lands or
// the settler is closed; credits are never dropped silently.
type Settler struct {
	wallet      Wallet
	clock       quartz.Clock
	logger      *log.Logger
	minBackoff  time.Duration
	maxBackoff  time.Duration
	callTimeout time.Duration

	mu      sync.Mutex
	pending map[string]*PendingCredit
	closed  bool
}

// SettlerOption configures a Settler
type SettlerOption func(*Settler)

// WithSettlerClock sets the clock used for retry backoff.
func WithSettlerClock(clock quartz.Clock) SettlerOption {
	return func(s *Settler) { s.clock = clock }
}

// WithSettlerLogger sets the logger.
func WithSettlerLogger(logger *log.Logger) SettlerOption {
	return func(s *Settler) { s.logger = logger }
}

// WithBackoff sets the first and the largest retry delay.
func WithBackoff(minDelay, maxDelay time.Duration) SettlerOption {
	return func(s *Settler) {
		s.minBackoff = minDelay
		s.maxBackoff = maxDelay
	}
}

// NewSettler creates a settler in front of w.
func NewSettler(w Wallet, opts ...SettlerOption) *Settler {
	s := &Settler{
		wallet:      w,
		clock:       quartz.NewReal(),
		logger:      log.New(io.Discard),
		minBackoff:  500 * time.Millisecond,
		maxBackoff:  30 * time.Second,
		callTimeout: 5 * time.Second,
		pending:     make(map[string]*PendingCredit),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithPrefix("settler")
	return s
}

// Credit pays amount to playerID under txID. The first attempt is made
// before Credit returns; failures are retried in the background. A txID
// that is already pending is ignored.
func (s *Settler) Credit(txID, playerID string, amount int) {
	if amount <= 0 {
		return
	}

	s.mu.Lock()
	if _, ok := s.pending[txID]; ok {
		s.mu.Unlock()
		return
	}
	c := &PendingCredit{TxID: txID, PlayerID: playerID, Amount: amount}
	s.pending[txID] = c
	closed := s.closed
	s.mu.Unlock()

	if closed {
		s.logger.Error("Credit after close", "tx", txID, "player", playerID, "amount", amount)
		return
	}
	s.attempt(c)
}

// Pending returns the number of credits not yet landed.
func (s *Settler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Close stops all retries and returns whatever is still owed so the caller
// can record it.
func (s *Settler) Close() []PendingCredit {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	out := make([]PendingCredit, 0, len(s.pending))
	for _, c := range s.pending {
		if c.timer != nil {
			c.timer.Stop()
			c.timer = nil
		}
		out = append(out, *c)
	}
	for _, c := range out {
		s.logger.Error("Credit not settled", "tx", c.TxID, "player", c.PlayerID, "amount", c.Amount, "attempts", c.Attempts)
	}
	return out
}

func (s *Settler) attempt(c *PendingCredit) {
	ctx, cancel := context.WithTimeout(context.Background(), s.callTimeout)
	err := s.wallet.Credit(ctx, c.TxID, c.PlayerID, c.Amount)
	cancel()

	s.mu.Lock()
	defer s.mu.Unlock()

	c.Attempts++
	if Applied(err) {
		delete(s.pending, c.TxID)
		s.logger.Debug("Credit settled", "tx", c.TxID, "player", c.PlayerID, "amount", c.Amount, "attempts", c.Attempts)
		return
	}
	if s.closed {
		return
	}

	delay := s.backoff(c.Attempts)
	s.logger.Warn("Credit failed, retrying",
		"tx", c.TxID,
		"player", c.PlayerID,
		"amount", c.Amount,
		"attempt", c.Attempts,
		"retry_in", delay,
		"error", err)
	c.timer = s.clock.AfterFunc(delay, func() { s.attempt(c) }, "settler", "retry")
}

func (s *Settler) backoff(attempts int) time.Duration {
	d := s.minBackoff
	for i := 1; i < attempts && d < s.maxBackoff; i++ {
		d *= 2
	}
	return min(d, s.maxBackoff)
}
