// Package wallet holds player balances outside of any table.
//
// Tables never read a balance. Chips enter a table through a Debit when a
// player sits down and leave it through a Credit when the player stands up
// or the table closes. Every call carries a transaction id; applying the
// same id twice changes nothing and reports ErrDuplicateTx.
package wallet

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// DefaultBalance is the opening balance of a player the wallet has not seen.
const DefaultBalance = 1000

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrDuplicateTx       = errors.New("duplicate transaction")
	ErrInvalidAmount     = errors.New("invalid amount")
)

// Wallet is the balance store used for buy-ins and cash-outs.
type Wallet interface {
	Debit(ctx context.Context, txID, playerID string, amount int) error
	Credit(ctx context.Context, txID, playerID string, amount int) error
	Balance(ctx context.Context, playerID string) (int, error)
}

// Payout is one line of a hand's result.
type Payout struct {
	HandID   string
	TableID  string
	PlayerID string
	Amount   int
}

// PayoutRecorder is implemented by wallets that keep a record of hand
// results. Recording a payout never changes a balance.
type PayoutRecorder interface {
	RecordPayouts(ctx context.Context, payouts []Payout) error
}

// NewTxID returns a fresh transaction id.
func NewTxID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Applied reports whether err means the transaction is on the books, either
// just now or by an earlier call with the same id.
func Applied(err error) bool {
	return err == nil || errors.Is(err, ErrDuplicateTx)
}
