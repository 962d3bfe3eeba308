package ledger

import "errors"

// Ledger failures are sentinel errors so callers can map each one to a
// specific user-facing message. Every failure is raised before any state
// is mutated.
var (
	ErrInvalidQuantity      = errors.New("quantity must be a positive whole number of shares")
	ErrInvalidAmount        = errors.New("amount must be greater than zero")
	ErrInstrumentNotFound   = errors.New("instrument not found")
	ErrAccountNotFound      = errors.New("account not found")
	ErrInsufficientFunds    = errors.New("insufficient balance")
	ErrNoSuchPosition       = errors.New("no holdings in this instrument")
	ErrInsufficientHoldings = errors.New("insufficient holdings")
	ErrInvalidOrderType     = errors.New("order type must be buy or sell")
	ErrOrderNotFound        = errors.New("order not found")
	ErrOrderNotCancellable  = errors.New("cannot cancel a completed order")
	ErrNotOrderOwner        = errors.New("order belongs to another user")
)
