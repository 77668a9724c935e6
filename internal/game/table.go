package game

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/google/uuid"

	"github.com/lox/holdemtables/internal/evaluator"
	"github.com/lox/holdemtables/poker"
)

// Table is the state machine for one poker table.
type Table struct {
	mu sync.Mutex

	id         string
	cfg        Config
	clock      quartz.Clock
	logger     *log.Logger
	observer   Observer
	eval       HandEvaluator
	deckSource DeckSource

	seats         []*Seat
	deck          *poker.Deck
	board         []poker.Card
	pot           int
	button        int
	betting       *BettingRound
	phase         Phase
	revealed      bool
	timeRemaining time.Duration
	lastWinners   []Winner

	handID     string
	handNumber int
	handGen    uint64
	chips      int // Chips that should be on the table: stacks plus pot

	timer   *TurnTimer
	restart *quartz.Timer
	closed  bool
}

// Summary is the lobby view of a table.
type Summary struct {
	ID         string `json:"id"`
	Phase      Phase  `json:"phase"`
	Seated     int    `json:"seated"`
	MaxSeats   int    `json:"maxSeats"`
	SmallBlind int    `json:"smallBlind"`
	BigBlind   int    `json:"bigBlind"`
	MinBuyIn   int    `json:"minBuyIn"`
	MaxBuyIn   int    `json:"maxBuyIn"`
	HandNumber int    `json:"handNumber"`
}

// NewTable creates an empty table in the Waiting phase.
func NewTable(id string, cfg Config, opts ...Option) (*Table, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	t := &Table{
		id:       id,
		cfg:      cfg,
		clock:    quartz.NewReal(),
		logger:   defaultLogger(),
		observer: NopObserver{},
		eval:     evaluator.New(),
		betting:  NewBettingRound(),
		phase:    Waiting,
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.deckSource == nil {
		t.deckSource = func() *poker.Deck { return poker.NewDeck(nil) }
	}
	t.logger = t.logger.WithPrefix("table").With("table", id)
	t.timer = NewTurnTimer(t.clock, cfg.TurnTimeout, cfg.TickInterval)

	return t, nil
}

// ID returns the table id.
func (t *Table) ID() string { return t.id }

// Config returns the table settings.
func (t *Table) Config() Config { return t.cfg }

// Phase returns the current hand phase.
func (t *Table) Phase() Phase {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.phase
}

// Summary returns the lobby view of the table.
func (t *Table) Summary() Summary {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Summary{
		ID:         t.id,
		Phase:      t.phase,
		Seated:     t.seatedCount(),
		MaxSeats:   t.cfg.MaxSeats,
		SmallBlind: t.cfg.SmallBlind,
		BigBlind:   t.cfg.BigBlind,
		MinBuyIn:   t.cfg.MinBuyIn,
		MaxBuyIn:   t.cfg.MaxBuyIn,
		HandNumber: t.handNumber,
	}
}

// Snapshot returns the unmasked table state. Call ViewFor on the result
// before handing it to a client.
func (t *Table) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshot()
}

// View returns the table state as playerID may see it.
func (t *Table) View(playerID string) Snapshot {
	return t.Snapshot().ViewFor(playerID)
}

// Seated reports whether playerID holds a seat.
func (t *Table) Seated(playerID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.seatIndex(playerID) >= 0
}

// Disconnected reports whether playerID holds a seat flagged as disconnected.
func (t *Table) Disconnected(playerID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	idx := t.seatIndex(playerID)
	return idx >= 0 && t.seats[idx].Disconnected
}

// Sit adds a new seat with stack chips. The buy-in must already have been
// taken from the player's wallet. Seating the second funded player while the
// table is waiting starts a hand.
func (t *Table) Sit(playerID, name, connID string, stack int) (Snapshot, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return Snapshot{}, ErrTableClosed
	}
	if t.seatIndex(playerID) >= 0 {
		return Snapshot{}, fmt.Errorf("%w: %s", ErrAlreadySeated, playerID)
	}
	if t.seatedCount() >= t.cfg.MaxSeats {
		return Snapshot{}, fmt.Errorf("%w: %d seats", ErrTableFull, t.cfg.MaxSeats)
	}
	if stack <= 0 {
		return Snapshot{}, fmt.Errorf("%w: %d", ErrInvalidBuyIn, stack)
	}

	t.seats = append(t.seats, &Seat{
		PlayerID: playerID,
		Name:     name,
		ConnID:   connID,
		Stack:    stack,
	})
	t.chips += stack
	t.logger.Info("Player seated", "player", playerID, "stack", stack, "seated", t.seatedCount())

	if t.phase == Waiting && t.fundedCount() >= 2 {
		t.startHand()
	} else {
		t.publish()
	}
	return t.snapshot().ViewFor(playerID), nil
}

// Rebind points an existing seat at a new connection and clears its
// disconnected flag. Game state and stack are untouched.
func (t *Table) Rebind(playerID, connID string) (Snapshot, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	idx := t.seatIndex(playerID)
	if idx < 0 {
		return Snapshot{}, fmt.Errorf("%w: %s", ErrNotSeated, playerID)
	}
	seat := t.seats[idx]
	seat.ConnID = connID
	seat.Disconnected = false
	t.logger.Info("Player reconnected", "player", playerID)
	t.publish()
	return t.snapshot().ViewFor(playerID), nil
}

// Disconnect flags playerID's seat as disconnected if it is still bound to
// connID. An empty connID matches any connection. The seat keeps playing;
// the turn timer folds it when it is to act.
func (t *Table) Disconnect(playerID, connID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	idx := t.seatIndex(playerID)
	if idx < 0 {
		return false
	}
	seat := t.seats[idx]
	if connID != "" && seat.ConnID != connID {
		return false
	}
	seat.Disconnected = true
	t.logger.Info("Player disconnected", "player", playerID)
	t.publish()
	return true
}

// RecordAction applies a player's action. Rejected actions leave the table
// untouched and return an error wrapping ErrIllegalAction.
func (t *Table) RecordAction(playerID string, action Action, amount int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.recordAction(playerID, action, amount)
}

// Leave removes playerID from the table and returns the stack to refund.
// A seat leaving mid-hand is folded; chips it already put in stay in the pot.
func (t *Table) Leave(playerID string) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	idx := t.seatIndex(playerID)
	if idx < 0 {
		return 0, fmt.Errorf("%w: %s", ErrNotSeated, playerID)
	}
	seat := t.seats[idx]
	cashout := seat.Stack
	seat.Stack = 0
	seat.Left = true
	t.chips -= cashout
	t.logger.Info("Player left", "player", playerID, "cashout", cashout)

	if !t.phase.Betting() || !seat.InHand {
		if !t.phase.Betting() {
			t.dropLeftSeats()
		}
		t.publish()
		return cashout, nil
	}

	wasActing := idx == t.betting.Acting
	if !seat.Folded {
		seat.Folded = true
		seat.Acted = true
	}
	switch {
	case wasActing:
		t.timer.Cancel()
		t.afterAction(idx)
	case t.contestingCount() <= 1:
		t.resolveByFold()
	case t.betting.Complete(t.seats):
		t.timer.Cancel()
		t.advanceStage()
	default:
		t.publish()
	}
	return cashout, nil
}

// Close stops the table and returns every remaining stack by player id. A
// hand in progress is abandoned and commitments are returned first.
func (t *Table) Close() map[string]int {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true
	t.timer.Cancel()
	t.cancelRestart()
	t.handGen++

	cashouts := make(map[string]int)
	for _, s := range t.seats {
		amount := s.Stack
		if t.phase.Betting() {
			amount += s.Committed
		}
		if amount > 0 {
			cashouts[s.PlayerID] += amount
		}
		s.Stack = 0
		s.Committed = 0
	}
	t.pot = 0
	t.chips = 0
	t.seats = nil
	t.phase = Waiting
	t.betting.Acting = -1
	t.logger.Info("Table closed", "players", len(cashouts))
	t.publish()
	return cashouts
}

func (t *Table) recordAction(playerID string, action Action, amount int) error {
	if t.closed {
		return ErrTableClosed
	}
	if !t.phase.Betting() {
		return illegal(ErrNoHandInProgress, "")
	}
	idx := t.seatIndex(playerID)
	if idx < 0 {
		return illegal(ErrNotSeated, "%s", playerID)
	}

	paid, err := t.betting.Apply(t.seats, idx, action, amount)
	if err != nil {
		return err
	}
	t.pot += paid
	t.timer.Cancel()

	t.logger.Debug("Action",
		"player", playerID,
		"action", action,
		"amount", amount,
		"paid", paid,
		"pot", t.pot,
		"phase", t.phase)

	t.afterAction(idx)
	return nil
}

// afterAction moves play on once the seat at idx has finished acting.
func (t *Table) afterAction(idx int) {
	if t.contestingCount() <= 1 {
		t.resolveByFold()
		return
	}
	if t.betting.Complete(t.seats) {
		t.advanceStage()
		return
	}
	t.betting.Acting = t.betting.NextToAct(t.seats, idx+1)
	if t.betting.Acting < 0 {
		t.advanceStage()
		return
	}
	t.armTimer()
	t.publish()
}

// startHand deals a new hand, or parks the table in Waiting when fewer than
// two seats hold chips.
func (t *Table) startHand() {
	t.cancelRestart()
	t.timer.Cancel()
	if t.closed {
		return
	}

	t.dropLeftSeats()
	for _, s := range t.seats {
		s.resetForHand()
	}
	t.board = nil
	t.pot = 0
	t.revealed = false
	t.timeRemaining = 0
	t.betting.Reset(t.seats)

	if t.fundedCount() < 2 {
		for _, s := range t.seats {
			s.InHand = false
		}
		t.handID = ""
		if t.phase != Waiting {
			if err := t.setPhase(Waiting); err != nil {
				t.logger.Error("Cannot park table", "error", err)
			}
		}
		t.logger.Debug("Waiting for players", "seated", t.seatedCount())
		t.publish()
		return
	}

	if err := t.setPhase(Preflop); err != nil {
		t.logger.Error("Cannot start hand", "error", err)
		return
	}
	t.handGen++
	t.handNumber++
	t.handID = uuid.Must(uuid.NewV7()).String()
	t.lastWinners = nil
	t.deck = t.deckSource()

	n := len(t.seats)
	t.button = t.nextInHand(t.button + 1)
	sb := t.nextInHand(t.button + 1)
	bb := t.nextInHand(sb + 1)

	for range 2 {
		for i := range n {
			s := t.seats[(t.button+1+i)%n]
			if !s.InHand {
				continue
			}
			cards, err := t.deck.Deal(1)
			if err != nil {
				t.abandonHand(err)
				return
			}
			s.HoleCards = append(s.HoleCards, cards...)
		}
	}

	t.pot += t.seats[sb].commit(t.cfg.SmallBlind)
	t.seats[sb].Acted = true
	t.pot += t.seats[bb].commit(t.cfg.BigBlind)
	t.seats[bb].Acted = true
	t.betting.HighestWager = t.cfg.BigBlind

	t.logger.Info("Hand started",
		"hand", t.handNumber,
		"id", t.handID,
		"button", t.seats[t.button].PlayerID,
		"players", t.fundedCount())

	if t.betting.Complete(t.seats) {
		t.advanceStage()
		return
	}
	t.betting.Acting = t.betting.NextToAct(t.seats, bb+1)
	t.armTimer()
	t.publish()
}

// advanceStage closes the current street and deals the next. When nobody
// is left to act it keeps dealing through to the showdown.
func (t *Table) advanceStage() {
	t.timer.Cancel()
	for {
		next, err := t.phase.Next()
		if err != nil {
			t.logger.Error("Cannot advance", "error", err)
			return
		}
		t.betting.Reset(t.seats)

		if next == Showdown {
			t.resolveShowdown()
			return
		}

		cards, err := t.deck.Deal(next.boardSize() - len(t.board))
		if err != nil {
			t.abandonHand(err)
			return
		}
		t.board = append(t.board, cards...)
		if err := t.setPhase(next); err != nil {
			t.logger.Error("Cannot advance", "error", err)
			return
		}
		t.logger.Debug("Street dealt", "phase", next, "board", t.board, "pot", t.pot)

		if t.betting.Complete(t.seats) {
			continue
		}
		t.betting.Acting = t.betting.NextToAct(t.seats, t.button+1)
		if t.betting.Acting < 0 {
			continue
		}
		t.armTimer()
		t.publish()
		return
	}
}

// resolveShowdown ranks every contesting hand and pays each pot to its
// best eligible hands.
func (t *Table) resolveShowdown() {
	ranks := make(map[int]evaluator.HandRank)
	for i, s := range t.seats {
		if !s.Contesting() {
			continue
		}
		cards := append(slices.Clone(s.HoleCards), t.board...)
		rank, err := t.eval.Rank(cards)
		if err != nil {
			t.abandonHand(fmt.Errorf("rank %s: %w", s.PlayerID, err))
			return
		}
		ranks[i] = rank
	}

	winnings := make(map[int]int)
	for _, pot := range BuildPots(t.seats) {
		candidates := orderFromButton(pot.Eligible, t.button, len(t.seats))
		candidateRanks := make([]evaluator.HandRank, len(candidates))
		for i, idx := range candidates {
			candidateRanks[i] = ranks[idx]
		}
		best := t.eval.BestOf(candidateRanks)
		winners := make([]int, len(best))
		for i, b := range best {
			winners[i] = candidates[b]
		}
		for idx, amount := range splitPot(pot.Amount, winners) {
			winnings[idx] += amount
		}
	}

	if err := t.setPhase(Showdown); err != nil {
		t.logger.Error("Cannot enter showdown", "error", err)
	}
	t.revealed = true
	t.payout(winnings, ranks)
}

// resolveByFold awards the whole pot to the last contesting seat.
func (t *Table) resolveByFold() {
	t.timer.Cancel()
	winner := -1
	for i, s := range t.seats {
		if s.Contesting() {
			winner = i
			break
		}
	}
	if winner < 0 {
		t.abandonHand(fmt.Errorf("no contesting seat"))
		return
	}
	if err := t.setPhase(Showdown); err != nil {
		t.logger.Error("Cannot end hand", "error", err)
	}
	t.payout(map[int]int{winner: t.pot}, nil)
}

func (t *Table) payout(winnings map[int]int, ranks map[int]evaluator.HandRank) {
	idxs := make([]int, 0, len(winnings))
	for idx := range winnings {
		idxs = append(idxs, idx)
	}
	idxs = orderFromButton(idxs, t.button, len(t.seats))

	total := t.pot
	t.lastWinners = nil
	for _, idx := range idxs {
		s := t.seats[idx]
		amount := winnings[idx]
		s.Stack += amount
		t.pot -= amount

		w := Winner{PlayerID: s.PlayerID, Name: s.Name, Amount: amount}
		if rank, ok := ranks[idx]; ok {
			w.Hand = rank.Description
			w.Cards = slices.Clone(s.HoleCards)
		}
		t.lastWinners = append(t.lastWinners, w)
		t.logger.Info("Pot awarded", "hand", t.handNumber, "player", s.PlayerID, "amount", amount, "with", w.Hand)
	}

	t.finishHand(HandResult{
		TableID:    t.id,
		HandID:     t.handID,
		HandNumber: t.handNumber,
		Board:      slices.Clone(t.board),
		Pot:        total,
		Winners:    slices.Clone(t.lastWinners),
		Showdown:   ranks != nil,
	})
}

// abandonHand returns every commitment of the current hand to its seat and
// parks the table in Waiting. Seats that already left are refunded through
// the hand result.
func (t *Table) abandonHand(cause error) {
	t.timer.Cancel()
	t.logger.Error("Abandoning hand", "hand", t.handID, "error", cause)

	result := HandResult{
		TableID:    t.id,
		HandID:     t.handID,
		HandNumber: t.handNumber,
		Board:      slices.Clone(t.board),
		Pot:        t.pot,
		Abandoned:  true,
	}
	for _, s := range t.seats {
		s.Stack += s.Committed
		t.pot -= s.Committed
		s.Committed = 0
		s.Wager = 0
		if s.Left && s.Stack > 0 {
			if result.Refunds == nil {
				result.Refunds = make(map[string]int)
			}
			result.Refunds[s.PlayerID] += s.Stack
			t.chips -= s.Stack
			s.Stack = 0
		}
	}
	t.lastWinners = nil
	t.revealed = false
	if err := t.setPhase(Waiting); err != nil {
		t.logger.Error("Cannot abandon hand", "error", err)
		t.phase = Waiting
	}
	t.finishHand(result)
}

func (t *Table) finishHand(result HandResult) {
	t.timer.Cancel()
	t.betting.Acting = -1
	t.timeRemaining = 0

	if err := t.checkChips(); err != nil {
		t.logger.Error("Chip conservation violated", "hand", t.handID, "error", err)
	}

	t.observer.HandEnded(result)
	t.publish()
	t.scheduleRestart()
}

func (t *Table) scheduleRestart() {
	t.cancelRestart()
	gen := t.handGen
	t.restart = t.clock.AfterFunc(t.cfg.RestartDelay, func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		if t.closed || t.handGen != gen {
			return
		}
		t.restart = nil
		t.startHand()
	}, "restart")
}

func (t *Table) cancelRestart() {
	if t.restart != nil {
		t.restart.Stop()
		t.restart = nil
	}
}

func (t *Table) armTimer() {
	t.timeRemaining = t.timer.Timeout()
	t.timer.Arm(t.onTick)
}

func (t *Table) onTick(gen uint64, remaining time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed || !t.timer.Current(gen) || t.betting.Acting < 0 {
		return
	}
	seat := t.seats[t.betting.Acting]
	t.timeRemaining = remaining
	t.observer.TimerTick(t.id, seat.PlayerID, int((remaining+time.Second-1)/time.Second))
	if remaining > 0 {
		return
	}

	t.logger.Info("Turn timed out, folding", "player", seat.PlayerID, "phase", t.phase)
	if err := t.recordAction(seat.PlayerID, Fold, 0); err != nil {
		t.logger.Error("Timeout fold rejected", "player", seat.PlayerID, "error", err)
	}
}

func (t *Table) setPhase(to Phase) error {
	if !CanTransition(t.phase, to) {
		return fmt.Errorf("%w: %s to %s", ErrBadTransition, t.phase, to)
	}
	t.phase = to
	return nil
}

// checkChips verifies that stacks plus pot match the chips brought to the
// table minus the chips taken away.
func (t *Table) checkChips() error {
	sum := t.pot
	for _, s := range t.seats {
		sum += s.Stack
	}
	if sum != t.chips {
		return fmt.Errorf("have %d chips, want %d", sum, t.chips)
	}
	return nil
}

// dropLeftSeats removes departed seats, keeping the button on the seat
// before the next one to receive it.
func (t *Table) dropLeftSeats() {
	kept := make([]*Seat, 0, len(t.seats))
	button := t.button
	for i, s := range t.seats {
		if s.Left {
			if i <= t.button {
				button--
			}
			continue
		}
		kept = append(kept, s)
	}
	if button < 0 {
		button = len(kept) - 1
	}
	if button < 0 || button >= len(kept) {
		button = 0
	}
	t.seats = kept
	t.button = button
}

func (t *Table) publish() {
	t.observer.TableUpdated(t.snapshot())
}

func (t *Table) snapshot() Snapshot {
	snap := Snapshot{
		TableID:       t.id,
		HandID:        t.handID,
		HandNumber:    t.handNumber,
		Phase:         t.phase,
		SmallBlind:    t.cfg.SmallBlind,
		BigBlind:      t.cfg.BigBlind,
		Board:         slices.Clone(t.board),
		Pot:           t.pot,
		HighestWager:  t.betting.HighestWager,
		Button:        -1,
		Acting:        -1,
		TimeRemaining: int((t.timeRemaining + time.Second - 1) / time.Second),
		LastWinners:   slices.Clone(t.lastWinners),
		revealed:      t.revealed,
	}
	for i, s := range t.seats {
		if s.Left {
			continue
		}
		if t.handNumber > 0 && i == t.button {
			snap.Button = len(snap.Seats)
		}
		if i == t.betting.Acting {
			snap.Acting = len(snap.Seats)
			snap.ActingPlayerID = s.PlayerID
		}
		snap.Seats = append(snap.Seats, SeatView{
			PlayerID:     s.PlayerID,
			Name:         s.Name,
			Stack:        s.Stack,
			Wager:        s.Wager,
			InHand:       s.InHand,
			Folded:       s.Folded,
			Acted:        s.Acted,
			AllIn:        s.AllIn,
			Disconnected: s.Disconnected,
			cards:        slices.Clone(s.HoleCards),
		})
	}
	return snap
}

func (t *Table) seatIndex(playerID string) int {
	for i, s := range t.seats {
		if !s.Left && s.PlayerID == playerID {
			return i
		}
	}
	return -1
}

func (t *Table) nextInHand(from int) int {
	n := len(t.seats)
	for i := range n {
		idx := ((from+i)%n + n) % n
		if t.seats[idx].InHand {
			return idx
		}
	}
	return -1
}

func (t *Table) seatedCount() int {
	n := 0
	for _, s := range t.seats {
		if !s.Left {
			n++
		}
	}
	return n
}

func (t *Table) fundedCount() int {
	n := 0
	for _, s := range t.seats {
		if !s.Left && s.Stack > 0 {
			n++
		}
	}
	return n
}

func (t *Table) contestingCount() int {
	n := 0
	for _, s := range t.seats {
		if s.Contesting() {
			n++
		}
	}
	return n
}
