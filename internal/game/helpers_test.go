package game

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/stretchr/testify/require"

	"github.com/lox/holdemtables/internal/randutil"
	"github.com/lox/holdemtables/poker"
)

type tick struct {
	playerID  string
	remaining int
}

// recorder is an Observer that keeps everything it is sent.
type recorder struct {
	mu        sync.Mutex
	snapshots []Snapshot
	ticks     []tick
	results   []HandResult
}

func (r *recorder) TableUpdated(s Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshots = append(r.snapshots, s)
}

func (r *recorder) TimerTick(_, playerID string, remaining int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ticks = append(r.ticks, tick{playerID, remaining})
}

func (r *recorder) HandEnded(res HandResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, res)
}

func (r *recorder) updates() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.snapshots)
}

func (r *recorder) tickList() []tick {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]tick(nil), r.ticks...)
}

func (r *recorder) handResults() []HandResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]HandResult(nil), r.results...)
}

type testTable struct {
	*Table
	clock *quartz.Mock
	obs   *recorder
}

type testOption func(*Config, *[]Option)

func withBlinds(small, big int) testOption {
	return func(c *Config, _ *[]Option) {
		c.SmallBlind = small
		c.BigBlind = big
	}
}

func withTimeout(d time.Duration) testOption {
	return func(c *Config, _ *[]Option) { c.TurnTimeout = d }
}

// withDeck deals top first, in order: hole cards go one at a time starting
// left of the button, then the board.
func withDeck(top string) testOption {
	return func(_ *Config, opts *[]Option) {
		*opts = append(*opts, WithDeckSource(func() *poker.Deck {
			d, err := poker.NewStackedDeck(poker.MustParseCards(top))
			if err != nil {
				panic(err)
			}
			return d
		}))
	}
}

func withDeckSource(src DeckSource) testOption {
	return func(_ *Config, opts *[]Option) {
		*opts = append(*opts, WithDeckSource(src))
	}
}

func newTestTable(t *testing.T, opts ...testOption) *testTable {
	t.Helper()
	cfg := DefaultConfig()
	cfg.MinBuyIn = 1
	mClock := quartz.NewMock(t)
	obs := &recorder{}
	tableOpts := []Option{
		WithClock(mClock),
		WithLogger(log.New(io.Discard)),
		WithObserver(obs),
		WithRNG(randutil.New(42)),
	}
	for _, opt := range opts {
		opt(&cfg, &tableOpts)
	}
	table, err := NewTable("test", cfg, tableOpts...)
	require.NoError(t, err)
	return &testTable{Table: table, clock: mClock, obs: obs}
}

// sit seats players in order with the given stacks, named by their ids.
func (tt *testTable) sit(t *testing.T, stacks map[string]int, order ...string) {
	t.Helper()
	for _, id := range order {
		_, err := tt.Sit(id, id, "conn-"+id, stacks[id])
		require.NoError(t, err)
	}
}

func (tt *testTable) seat(t *testing.T, playerID string) *Seat {
	t.Helper()
	tt.mu.Lock()
	defer tt.mu.Unlock()
	for _, s := range tt.seats {
		if s.PlayerID == playerID {
			return s
		}
	}
	t.Fatalf("no seat for %s", playerID)
	return nil
}

func (tt *testTable) act(t *testing.T, playerID string, action Action, amount int) {
	t.Helper()
	require.NoError(t, tt.RecordAction(playerID, action, amount), "%s %s %d", playerID, action, amount)
}

// advance fires the next clock event and waits for its callbacks.
func (tt *testTable) advance(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, w := tt.clock.AdvanceNext()
	w.MustWait(ctx)
}

// advanceUntil fires clock events until cond holds.
func (tt *testTable) advanceUntil(t *testing.T, cond func() bool) {
	t.Helper()
	for range 100 {
		if cond() {
			return
		}
		tt.advance(t)
	}
	t.Fatal("condition not reached after 100 clock events")
}

func (tt *testTable) requireChipsConserved(t *testing.T) {
	t.Helper()
	tt.mu.Lock()
	defer tt.mu.Unlock()
	require.NoError(t, tt.checkChips())
}
