package db

import (
	"errors"
	"time"
)

// ErrBalanceConstraint is returned by ApplyTrade when the guarded balance
// update would take the account below zero.
var ErrBalanceConstraint = errors.New("balance update would go negative")

type Exchange string

const (
	ExchangeNYSE   Exchange = "NYSE"
	ExchangeNASDAQ Exchange = "NASDAQ"
	ExchangeAMEX   Exchange = "AMEX"
)

func ValidExchange(e Exchange) bool {
	switch e {
	case ExchangeNYSE, ExchangeNASDAQ, ExchangeAMEX:
		return true
	}
	return false
}

type Instrument struct {
	ID            int64
	Symbol        string
	Name          string
	Exchange      Exchange
	CurrentPrice  float64
	PreviousClose float64
	ChangePercent float64
	Volume        int64
	MarketCap     float64
	Sector        string
	Description   string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type Account struct {
	UserID  string
	Email   string
	Role    string
	Balance float64
}

// Position is a user's aggregated holding of one instrument. One row per
// (user, instrument), enforced by a unique constraint; deleted when
// quantity reaches zero.
type Position struct {
	UserID           string
	InstrumentID     int64
	Quantity         int64
	AvgPurchasePrice float64
	TotalInvested    float64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type TransactionType string

const (
	TransactionBuy        TransactionType = "buy"
	TransactionSell       TransactionType = "sell"
	TransactionDeposit    TransactionType = "deposit"
	TransactionWithdrawal TransactionType = "withdrawal"
)

type TransactionStatus string

const (
	TransactionCompleted TransactionStatus = "completed"
	TransactionPending   TransactionStatus = "pending"
	TransactionFailed    TransactionStatus = "failed"
)

// Transaction is the append-only audit record of one executed trade or
// balance adjustment. Rows are never updated after insert.
type Transaction struct {
	ID            int64
	Reference     string
	UserID        string
	InstrumentID  *int64
	Type          TransactionType
	Quantity      int64
	PricePerShare *float64
	TotalAmount   float64
	BalanceAfter  float64
	Status        TransactionStatus
	CreatedAt     time.Time
}

type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderCompleted OrderStatus = "completed"
	OrderCancelled OrderStatus = "cancelled"
	OrderFailed    OrderStatus = "failed"
)

// Order records trade intent only. Settlement happens synchronously through
// the ledger; order status is audit data, never authoritative for balance
// or position state.
type Order struct {
	ID            int64
	Reference     string
	UserID        string
	InstrumentID  int64
	Type          TransactionType
	Quantity      int64
	PricePerShare float64
	TotalAmount   float64
	Status        OrderStatus
	ExecutedAt    *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type WatchlistItem struct {
	ID           int64
	UserID       string
	InstrumentID int64
	CreatedAt    time.Time
}

type PriceUpdate struct {
	InstrumentID  int64
	Symbol        string
	CurrentPrice  float64
	PreviousClose float64
	ChangePercent float64
	Volume        int64
	FetchedAt     time.Time
}

// TradeApplication groups the writes of one ledger operation. ApplyTrade
// applies all of them in a single database transaction.
type TradeApplication struct {
	UserID       string
	BalanceDelta float64

	// Position to upsert, or nil when the operation does not touch a
	// position (deposits, withdrawals).
	Position *Position

	// RemovePosition deletes the (user, instrument) position row instead of
	// upserting; set when a sell brings the quantity to exactly zero.
	RemovePosition     bool
	RemoveInstrumentID int64

	Transaction Transaction

	// CompleteOrderID, when set, marks the referenced pending order
	// completed alongside the settled trade.
	CompleteOrderID *int64
}
