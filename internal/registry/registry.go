// Package registry owns the running tables and routes player requests to
// them. The registry lock only guards the table map and the reconnect grace
// timers; all game state lives behind each table's own lock, so tables
// progress independently.
package registry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/lox/holdemtables/internal/game"
	"github.com/lox/holdemtables/internal/randutil"
	"github.com/lox/holdemtables/internal/wallet"
)

// DefaultReconnectGrace is how long a disconnected player keeps their seat.
const DefaultReconnectGrace = 60 * time.Second

var (
	ErrTableNotFound = errors.New("table not found")
	ErrTableExists   = errors.New("table already exists")
	ErrClosed        = errors.New("registry closed")
)

// Registry maps table ids to tables.
type Registry struct {
	wallet    wallet.Wallet
	settler   *wallet.Settler
	clock     quartz.Clock
	base      *log.Logger
	logger    *log.Logger
	observer  game.Observer
	grace     time.Duration
	seed      int64
	tableOpts []game.Option

	mu     sync.Mutex
	tables map[string]*game.Table
	timers map[graceKey]*quartz.Timer
	closed bool
}

type graceKey struct {
	tableID  string
	playerID string
}

// Option configures a Registry
type Option func(*Registry)

// WithClock sets the clock for tables and grace timers.
func WithClock(clock quartz.Clock) Option {
	return func(r *Registry) { r.clock = clock }
}

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) Option {
	return func(r *Registry) { r.logger = logger }
}

// WithObserver sets where table events are forwarded.
func WithObserver(obs game.Observer) Option {
	return func(r *Registry) { r.observer = obs }
}

// WithReconnectGrace sets how long a disconnected seat is held.
func WithReconnectGrace(d time.Duration) Option {
	return func(r *Registry) { r.grace = d }
}

// WithSeed shuffles each table from its own stream derived from seed and
// the table id. Zero leaves shuffling unseeded.
func WithSeed(seed int64) Option {
	return func(r *Registry) { r.seed = seed }
}

// WithTableOptions adds options applied to every table created.
func WithTableOptions(opts ...game.Option) Option {
	return func(r *Registry) { r.tableOpts = append(r.tableOpts, opts...) }
}

// New creates an empty registry. Buy-ins are debited from w; cash-outs are
// paid through settler.
func New(w wallet.Wallet, settler *wallet.Settler, opts ...Option) *Registry {
	r := &Registry{
		wallet:   w,
		settler:  settler,
		clock:    quartz.NewReal(),
		logger:   log.New(io.Discard),
		observer: game.NopObserver{},
		grace:    DefaultReconnectGrace,
		tables:   make(map[string]*game.Table),
		timers:   make(map[graceKey]*quartz.Timer),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.base = r.logger
	r.logger = r.logger.WithPrefix("registry")
	return r
}

// CreateTable starts a new empty table. An empty id gets a generated one.
func (r *Registry) CreateTable(id string, cfg game.Config) (*game.Table, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		id = uuid.Must(uuid.NewV7()).String()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrClosed
	}
	if _, ok := r.tables[id]; ok {
		return nil, fmt.Errorf("%w: %s", ErrTableExists, id)
	}

	opts := append([]game.Option{
		game.WithClock(r.clock),
		game.WithLogger(r.base),
		game.WithObserver(&tableObserver{reg: r, next: r.observer}),
	}, r.tableOpts...)
	if r.seed != 0 {
		opts = append(opts, game.WithRNG(randutil.Stream(r.seed, id)))
	}
	t, err := game.NewTable(id, cfg, opts...)
	if err != nil {
		return nil, err
	}
	r.tables[id] = t
	r.logger.Info("Table created", "table", id, "blinds", fmt.Sprintf("%d/%d", cfg.SmallBlind, cfg.BigBlind), "seats", cfg.MaxSeats)
	return t, nil
}

// Table returns the table with the given id.
func (r *Registry) Table(id string) (*game.Table, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tables[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTableNotFound, id)
	}
	return t, nil
}

// List returns a summary of every table ordered by id.
func (r *Registry) List() []game.Summary {
	r.mu.Lock()
	tables := make([]*game.Table, 0, len(r.tables))
	for _, t := range r.tables {
		tables = append(tables, t)
	}
	r.mu.Unlock()

	out := make([]game.Summary, 0, len(tables))
	for _, t := range tables {
		out = append(out, t.Summary())
	}
	slices.SortFunc(out, func(a, b game.Summary) int { return strings.Compare(a.ID, b.ID) })
	return out
}

// Join seats playerID at tableID with buyIn chips taken from their wallet.
// A player who already holds a seat there is reconnected instead: the seat
// is rebound to connID and nothing is debited.
func (r *Registry) Join(ctx context.Context, tableID, playerID, name, connID string, buyIn int) (game.Snapshot, error) {
	t, err := r.Table(tableID)
	if err != nil {
		return game.Snapshot{}, err
	}
	if t.Seated(playerID) {
		r.cancelGrace(tableID, playerID)
		return t.Rebind(playerID, connID)
	}

	cfg := t.Config()
	if buyIn < cfg.MinBuyIn || buyIn > cfg.MaxBuyIn {
		return game.Snapshot{}, fmt.Errorf("%w: %d not in %d-%d", game.ErrInvalidBuyIn, buyIn, cfg.MinBuyIn, cfg.MaxBuyIn)
	}

	txID := wallet.NewTxID()
	if err := r.wallet.Debit(ctx, txID, playerID, buyIn); !wallet.Applied(err) {
		return game.Snapshot{}, fmt.Errorf("buy-in for %s: %w", playerID, err)
	}

	snap, err := t.Sit(playerID, name, connID, buyIn)
	if err != nil {
		r.settler.Credit(txID+":refund", playerID, buyIn)
		if errors.Is(err, game.ErrAlreadySeated) {
			return t.Rebind(playerID, connID)
		}
		return game.Snapshot{}, err
	}

	r.logger.Info("Player joined", "table", tableID, "player", playerID, "buy_in", buyIn, "tx", txID)
	return snap, nil
}

// Act records a player's action at a table.
func (r *Registry) Act(tableID, playerID string, action game.Action, amount int) error {
	t, err := r.Table(tableID)
	if err != nil {
		return err
	}
	return t.RecordAction(playerID, action, amount)
}

// Leave stands playerID up and pays their remaining stack back to the
// wallet. It returns the amount paid.
func (r *Registry) Leave(tableID, playerID string) (int, error) {
	t, err := r.Table(tableID)
	if err != nil {
		return 0, err
	}
	cashout, err := t.Leave(playerID)
	if err != nil {
		return 0, err
	}
	r.cancelGrace(tableID, playerID)

	if cashout > 0 {
		txID := wallet.NewTxID()
		r.settler.Credit(txID, playerID, cashout)
		r.logger.Info("Player cashed out", "table", tableID, "player", playerID, "amount", cashout, "tx", txID)
	}
	return cashout, nil
}

// Disconnect marks playerID's seat as disconnected if it is still bound to
// connID, and removes the seat unless the player rejoins within the grace
// period.
func (r *Registry) Disconnect(tableID, playerID, connID string) {
	t, err := r.Table(tableID)
	if err != nil {
		return
	}
	if !t.Disconnect(playerID, connID) {
		return
	}

	key := graceKey{tableID, playerID}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	if old, ok := r.timers[key]; ok {
		old.Stop()
	}
	r.timers[key] = r.clock.AfterFunc(r.grace, func() {
		r.expireGrace(key)
	}, "grace", tableID, playerID)
	r.logger.Debug("Holding seat", "table", tableID, "player", playerID, "grace", r.grace)
}

func (r *Registry) expireGrace(key graceKey) {
	r.mu.Lock()
	delete(r.timers, key)
	r.mu.Unlock()

	t, err := r.Table(key.tableID)
	if err != nil || !t.Disconnected(key.playerID) {
		return
	}
	r.logger.Info("Reconnect grace expired", "table", key.tableID, "player", key.playerID)
	if _, err := r.Leave(key.tableID, key.playerID); err != nil && !errors.Is(err, game.ErrNotSeated) {
		r.logger.Error("Failed to remove disconnected player", "table", key.tableID, "player", key.playerID, "error", err)
	}
}

func (r *Registry) cancelGrace(tableID, playerID string) {
	key := graceKey{tableID, playerID}
	r.mu.Lock()
	defer r.mu.Unlock()
	if timer, ok := r.timers[key]; ok {
		timer.Stop()
		delete(r.timers, key)
	}
}

// CloseTable stops a table and pays every remaining stack back.
func (r *Registry) CloseTable(id string) error {
	r.mu.Lock()
	t, ok := r.tables[id]
	if ok {
		delete(r.tables, id)
		for key, timer := range r.timers {
			if key.tableID == id {
				timer.Stop()
				delete(r.timers, key)
			}
		}
	}
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrTableNotFound, id)
	}

	r.refund(id, t.Close())
	r.logger.Info("Table closed", "table", id)
	return nil
}

// Close closes every table concurrently. The registry accepts no new
// tables afterwards.
func (r *Registry) Close() error {
	r.mu.Lock()
	r.closed = true
	ids := make([]string, 0, len(r.tables))
	for id := range r.tables {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	var g errgroup.Group
	for _, id := range ids {
		g.Go(func() error {
			if err := r.CloseTable(id); err != nil && !errors.Is(err, ErrTableNotFound) {
				return err
			}
			return nil
		})
	}
	return g.Wait()
}

func (r *Registry) refund(tableID string, amounts map[string]int) {
	for playerID, amount := range amounts {
		if amount <= 0 {
			continue
		}
		txID := wallet.NewTxID()
		r.settler.Credit(txID, playerID, amount)
		r.logger.Info("Refunded stack", "table", tableID, "player", playerID, "amount", amount, "tx", txID)
	}
}

// tableObserver settles wallet side effects of a hand before forwarding
// events to the transport.
type tableObserver struct {
	reg  *Registry
	next game.Observer
}

func (o *tableObserver) TableUpdated(s game.Snapshot) { o.next.TableUpdated(s) }

func (o *tableObserver) TimerTick(tableID, playerID string, remaining int) {
	o.next.TimerTick(tableID, playerID, remaining)
}

// HandEnded runs under the table lock, so wallet work is handed off.
func (o *tableObserver) HandEnded(res game.HandResult) {
	for playerID, amount := range res.Refunds {
		go o.reg.settler.Credit(res.HandID+":refund:"+playerID, playerID, amount)
	}
	if rec, ok := o.reg.wallet.(wallet.PayoutRecorder); ok && len(res.Winners) > 0 {
		payouts := make([]wallet.Payout, 0, len(res.Winners))
		for _, w := range res.Winners {
			payouts = append(payouts, wallet.Payout{
				HandID:   res.HandID,
				TableID:  res.TableID,
				PlayerID: w.PlayerID,
				Amount:   w.Amount,
			})
		}
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := rec.RecordPayouts(ctx, payouts); err != nil {
				o.reg.logger.Error("Failed to record payouts", "hand", res.HandID, "error", err)
			}
		}()
	}
	o.next.HandEnded(res)
}
