// Package game implements the per-table Texas Hold'em engine.
//
// The main type is Table, a state machine that seats players, deals, posts
// blinds, drives one BettingRound per street, resolves the showdown and
// restarts the next hand after a display delay.
//
// # Basic Usage
//
//	t, err := game.NewTable("main", game.DefaultConfig(),
//	    game.WithLogger(logger),
//	    game.WithObserver(obs),
//	)
//	_ = t.Sit("alice", "Alice", "conn-1", 100)
//	_ = t.Sit("bob", "Bob", "conn-2", 100) // second funded seat starts a hand
//	err = t.RecordAction("bob", game.Call, 0)
//
// # Concurrency
//
// Every exported method takes the table lock. Turn timer ticks and the
// restart after a hand re-enter through the same lock and carry a
// generation token, so a callback scheduled for an earlier turn or hand is
// dropped. Observer methods are invoked with the lock held and must not call
// back into the table.
//
// # Deterministic Testing
//
// Inject a quartz mock clock and a stacked deck:
//
//	mClock := quartz.NewMock(t)
//	deck, _ := poker.NewStackedDeck(poker.MustParseCards("As Ks Qh Qd 2c 7d 9h Js Kd"))
//	table, _ := game.NewTable("t", cfg, game.WithClock(mClock), game.WithDeckSource(func() *poker.Deck { return deck }))
//
// # Architecture
//
// Table delegates to specialized components:
//   - BettingRound: action validation, turn rotation, street completion
//   - BuildPots: main and side pots from per-seat commitments
//   - TurnTimer: quartz backed countdown for the acting seat
//   - HandEvaluator: hand ranking, backed by internal/evaluator
package game
