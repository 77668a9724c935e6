package server

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/lox/holdemtables/internal/game"
	"github.com/lox/holdemtables/internal/registry"
	"github.com/lox/holdemtables/internal/wallet"
)

// Message represents the base WebSocket message structure
type Message struct {
	Type      MessageType     `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
	RequestID string          `json:"requestId,omitempty"`
}

// NewMessage creates a new message with the current timestamp
func NewMessage(messageType MessageType, data any) (*Message, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Message{
		Type:      messageType,
		Data:      dataBytes,
		Timestamp: time.Now(),
	}, nil
}

// Client → Server Messages

type JoinTableData struct {
	TableID  string `json:"tableId"`
	PlayerID string `json:"playerId"`
	Name     string `json:"name,omitempty"`
	BuyIn    int    `json:"buyIn"`
}

type ActionData struct {
	TableID string `json:"tableId"`
	Action  string `json:"action"`
	Amount  int    `json:"amount,omitempty"`
}

type LeaveTableData struct {
	TableID string `json:"tableId"`
}

type WatchData struct {
	TableID string `json:"tableId"`
}

// Server → Client Messages

type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type TableListData struct {
	Tables []game.Summary `json:"tables"`
}

type TimerTickData struct {
	TableID          string `json:"tableId"`
	PlayerID         string `json:"playerId"`
	SecondsRemaining int    `json:"secondsRemaining"`
}

type TableLeftData struct {
	TableID string `json:"tableId"`
	Cashout int    `json:"cashout"`
}

// errorCode maps an error to the code sent to clients.
func errorCode(err error) string {
	switch {
	case errors.Is(err, game.ErrIllegalAction):
		return "illegal_action"
	case errors.Is(err, wallet.ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, registry.ErrTableNotFound):
		return "table_not_found"
	case errors.Is(err, game.ErrTableFull):
		return "table_full"
	case errors.Is(err, game.ErrInvalidBuyIn):
		return "invalid_buy_in"
	case errors.Is(err, game.ErrNotSeated):
		return "not_seated"
	case errors.Is(err, game.ErrTableClosed), errors.Is(err, registry.ErrClosed):
		return "table_closed"
	default:
		return "internal_error"
	}
}
