package wallet

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errUnavailable = errors.New("wallet unavailable")

// flakyWallet fails the first failures credits, then passes through.
type flakyWallet struct {
	*Memory
	mu       sync.Mutex
	failures int
	calls    int
}

func (f *flakyWallet) Credit(ctx context.Context, txID, playerID string, amount int) error {
	f.mu.Lock()
	f.calls++
	fail := f.calls <= f.failures
	f.mu.Unlock()
	if fail {
		return errUnavailable
	}
	return f.Memory.Credit(ctx, txID, playerID, amount)
}

func TestSettlerCreditsImmediately(t *testing.T) {
	t.Parallel()
	m := NewMemory(0)
	s := NewSettler(m, WithSettlerClock(quartz.NewMock(t)))

	s.Credit("tx-1", "alice", 120)

	assert.Equal(t, 0, s.Pending())
	bal, _ := m.Balance(context.Background(), "alice")
	assert.Equal(t, 120, bal)
}

func TestSettlerRetriesUntilSuccess(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	mClock := quartz.NewMock(t)
	w := &flakyWallet{Memory: NewMemory(0), failures: 3}
	s := NewSettler(w, WithSettlerClock(mClock), WithBackoff(time.Second, 3*time.Second))

	s.Credit("tx-1", "alice", 75)
	require.Equal(t, 1, s.Pending())

	var delays []time.Duration
	for s.Pending() > 0 {
		d, waiter := mClock.AdvanceNext()
		waiter.MustWait(ctx)
		delays = append(delays, d)
	}

	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 3 * time.Second}, delays)
	bal, _ := w.Balance(ctx, "alice")
	assert.Equal(t, 75, bal)
}

func TestSettlerIgnoresDuplicatePending(t *testing.T) {
	t.Parallel()
	w := &flakyWallet{Memory: NewMemory(0), failures: 100}
	s := NewSettler(w, WithSettlerClock(quartz.NewMock(t)))

	s.Credit("tx-1", "alice", 10)
	s.Credit("tx-1", "alice", 10)
	assert.Equal(t, 1, s.Pending())
	assert.Equal(t, 1, w.calls)
}

func TestSettlerTreatsReplayAsSettled(t *testing.T) {
	t.Parallel()
	m := NewMemory(0)
	require.NoError(t, m.Credit(context.Background(), "tx-1", "alice", 10))
	s := NewSettler(m, WithSettlerClock(quartz.NewMock(t)))

	s.Credit("tx-1", "alice", 10)
	assert.Equal(t, 0, s.Pending())
	bal, _ := m.Balance(context.Background(), "alice")
	assert.Equal(t, 10, bal, "not applied twice")
}

func TestSettlerCloseReportsOutstanding(t *testing.T) {
	t.Parallel()
	w := &flakyWallet{Memory: NewMemory(0), failures: 100}
	s := NewSettler(w, WithSettlerClock(quartz.NewMock(t)))

	s.Credit("tx-1", "alice", 10)
	s.Credit("tx-2", "bob", 20)

	left := s.Close()
	assert.Len(t, left, 2)
	total := 0
	for _, c := range left {
		total += c.Amount
		assert.Equal(t, 1, c.Attempts)
	}
	assert.Equal(t, 30, total)
}
