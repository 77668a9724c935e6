package wallet

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLite is a Wallet persisted in a SQLite database. Each operation runs in
// its own transaction and the transaction id is the primary key of the
// journal, so a replayed call is rejected by the database itself.
type SQLite struct {
	db      *sql.DB
	initial int
}

// OpenSQLite opens or creates the wallet database at path. ":memory:" gives
// a throwaway wallet.
func OpenSQLite(ctx context.Context, path string, initial int) (*SQLite, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("empty sqlite database path")
	}
	if path != ":memory:" {
		if parent := filepath.Dir(path); parent != "" && parent != "." {
			if err := os.MkdirAll(parent, 0o755); err != nil {
				return nil, err
			}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		`PRAGMA busy_timeout = 5000;`,
		`PRAGMA journal_mode = WAL;`,
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	if err := ensureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &SQLite{db: db, initial: initial}, nil
}

// Close closes the database.
func (s *SQLite) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLite) Debit(ctx context.Context, txID, playerID string, amount int) error {
	return s.apply(ctx, txID, playerID, "debit", -amount, amount)
}

func (s *SQLite) Credit(ctx context.Context, txID, playerID string, amount int) error {
	return s.apply(ctx, txID, playerID, "credit", amount, amount)
}

func (s *SQLite) Balance(ctx context.Context, playerID string) (int, error) {
	var balance int
	err := s.db.QueryRowContext(ctx,
		`SELECT balance FROM wallet_accounts WHERE player_id = ?`, playerID).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return s.initial, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read balance for %s: %w", playerID, err)
	}
	return balance, nil
}

// RecordPayouts stores hand results. A payout already recorded for the same
// hand and player is left as it is.
func (s *SQLite) RecordPayouts(ctx context.Context, payouts []Payout) error {
	if len(payouts) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	nowMs := time.Now().UTC().UnixMilli()
	for _, p := range payouts {
		_, err := tx.ExecContext(ctx, `
INSERT INTO hand_payouts (hand_id, table_id, player_id, amount, created_at_ms)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (hand_id, player_id) DO NOTHING
`, p.HandID, p.TableID, p.PlayerID, p.Amount, nowMs)
		if err != nil {
			return fmt.Errorf("record payout %s/%s: %w", p.HandID, p.PlayerID, err)
		}
	}
	return tx.Commit()
}

// Payouts returns the recorded payouts of a hand.
func (s *SQLite) Payouts(ctx context.Context, handID string) ([]Payout, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT hand_id, table_id, player_id, amount FROM hand_payouts
WHERE hand_id = ? ORDER BY player_id
`, handID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Payout
	for rows.Next() {
		var p Payout
		if err := rows.Scan(&p.HandID, &p.TableID, &p.PlayerID, &p.Amount); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SQLite) apply(ctx context.Context, txID, playerID, kind string, delta, amount int) error {
	if amount <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidAmount, amount)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	nowMs := time.Now().UTC().UnixMilli()
	res, err := tx.ExecContext(ctx, `
INSERT INTO wallet_transactions (tx_id, player_id, kind, amount, created_at_ms)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (tx_id) DO NOTHING
`, txID, playerID, kind, amount, nowMs)
	if err != nil {
		return fmt.Errorf("journal %s: %w", txID, err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return fmt.Errorf("%w: %s", ErrDuplicateTx, txID)
	}

	if _, err := tx.ExecContext(ctx, `
INSERT INTO wallet_accounts (player_id, balance, updated_at_ms)
VALUES (?, ?, ?)
ON CONFLICT (player_id) DO NOTHING
`, playerID, s.initial, nowMs); err != nil {
		return fmt.Errorf("open account %s: %w", playerID, err)
	}

	var balance int
	if err := tx.QueryRowContext(ctx,
		`SELECT balance FROM wallet_accounts WHERE player_id = ?`, playerID).Scan(&balance); err != nil {
		return fmt.Errorf("read balance for %s: %w", playerID, err)
	}
	if balance+delta < 0 {
		return fmt.Errorf("%w: %s has %d, needs %d", ErrInsufficientFunds, playerID, balance, amount)
	}

	if _, err := tx.ExecContext(ctx, `
UPDATE wallet_accounts SET balance = ?, updated_at_ms = ? WHERE player_id = ?
`, balance+delta, nowMs, playerID); err != nil {
		return fmt.Errorf("update balance for %s: %w", playerID, err)
	}
	return tx.Commit()
}

func ensureSchema(ctx context.Context, db *sql.DB) error {
	statements := []string{
		`
CREATE TABLE IF NOT EXISTS wallet_accounts (
    player_id TEXT PRIMARY KEY,
    balance INTEGER NOT NULL,
    updated_at_ms INTEGER NOT NULL
)`,
		`
CREATE TABLE IF NOT EXISTS wallet_transactions (
    tx_id TEXT PRIMARY KEY,
    player_id TEXT NOT NULL,
    kind TEXT NOT NULL,
    amount INTEGER NOT NULL,
    created_at_ms INTEGER NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_wallet_transactions_player ON wallet_transactions(player_id, created_at_ms)`,
		`
CREATE TABLE IF NOT EXISTS hand_payouts (
    hand_id TEXT NOT NULL,
    table_id TEXT NOT NULL,
    player_id TEXT NOT NULL,
    amount INTEGER NOT NULL,
    created_at_ms INTEGER NOT NULL,
    PRIMARY KEY (hand_id, player_id)
)`,
	}

	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
