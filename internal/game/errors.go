package game

import (
	"errors"
	"fmt"
)

// ErrIllegalAction is returned for any rejected player action. The concrete
// reason is wrapped alongside it and can be tested with errors.Is.
var ErrIllegalAction = errors.New("illegal action")

// Reasons wrapped by ErrIllegalAction.
var (
	ErrNotYourTurn       = errors.New("not your turn")
	ErrCannotCheck       = errors.New("cannot check while facing a bet")
	ErrRaiseTooSmall     = errors.New("raise must exceed the highest wager")
	ErrInsufficientStack = errors.New("insufficient stack")
	ErrSeatInactive      = errors.New("seat cannot act")
	ErrUnknownAction     = errors.New("unknown action")
	ErrNoHandInProgress  = errors.New("no hand in progress")
)

var (
	ErrNotSeated     = errors.New("player not seated")
	ErrAlreadySeated = errors.New("player already seated")
	ErrTableFull     = errors.New("table full")
	ErrTableClosed   = errors.New("table closed")
	ErrInvalidConfig = errors.New("invalid table config")
	ErrInvalidBuyIn  = errors.New("invalid buy-in")
	ErrNoSuccessor   = errors.New("phase has no successor")
	ErrBadTransition = errors.New("phase transition not allowed")
)

func illegal(reason error, format string, args ...any) error {
	if format == "" {
		return fmt.Errorf("%w: %w", ErrIllegalAction, reason)
	}
	return fmt.Errorf("%w: %w: %s", ErrIllegalAction, reason, fmt.Sprintf(format, args...))
}
