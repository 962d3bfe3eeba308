// Package ledger enforces balance, position, and transaction consistency
// for trades. Every operation validates before mutating, reads the
// instrument's stored price at execution time, and applies its writes as
// one atomic unit through the store.
package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"papertrade/internal/db"
)

// Store is the persistence collaborator. ApplyTrade must apply the grouped
// balance, position, and transaction writes atomically and reject a balance
// update that would go negative with db.ErrBalanceConstraint.
type Store interface {
	GetInstrument(ctx context.Context, id int64) (db.Instrument, bool, error)
	GetAccount(ctx context.Context, userID string) (db.Account, bool, error)
	GetPosition(ctx context.Context, userID string, instrumentID int64) (db.Position, bool, error)
	ApplyTrade(ctx context.Context, app db.TradeApplication) (db.Transaction, error)

	InsertOrder(ctx context.Context, ord db.Order) (int64, error)
	GetOrder(ctx context.Context, id int64) (db.Order, bool, error)
	UpdateOrderStatus(ctx context.Context, id int64, status db.OrderStatus) (bool, error)
}

type Service struct {
	store Store
	locks *positionLocks
}

func NewService(store Store) *Service {
	return &Service{store: store, locks: newPositionLocks()}
}

type TradeRequest struct {
	UserID       string
	InstrumentID int64
	Quantity     int64

	// OrderID optionally names a pending order to mark completed alongside
	// the settled trade. Audit only; settlement never depends on it.
	OrderID *int64
}

type TradeResult struct {
	Transaction db.Transaction

	// Position after the trade; nil when a sell closed the position.
	Position *db.Position
}

// Buy executes a purchase at the instrument's currently stored price.
func (s *Service) Buy(ctx context.Context, req TradeRequest) (TradeResult, error) {
	if req.Quantity <= 0 {
		return TradeResult{}, ErrInvalidQuantity
	}

	unlock := s.locks.acquire(req.UserID, req.InstrumentID)
	defer unlock()

	instrument, account, err := s.loadTradeContext(ctx, req)
	if err != nil {
		return TradeResult{}, err
	}

	totalCost := instrument.CurrentPrice * float64(req.Quantity)
	if account.Balance < totalCost {
		return TradeResult{}, ErrInsufficientFunds
	}

	position, exists, err := s.store.GetPosition(ctx, req.UserID, req.InstrumentID)
	if err != nil {
		return TradeResult{}, err
	}

	if exists {
		newQuantity := position.Quantity + req.Quantity
		newInvested := position.TotalInvested + totalCost
		position.Quantity = newQuantity
		position.TotalInvested = newInvested
		// Recomputed from totals each time, never incrementally averaged.
		position.AvgPurchasePrice = newInvested / float64(newQuantity)
	} else {
		position = db.Position{
			UserID:           req.UserID,
			InstrumentID:     req.InstrumentID,
			Quantity:         req.Quantity,
			AvgPurchasePrice: instrument.CurrentPrice,
			TotalInvested:    totalCost,
		}
	}

	price := instrument.CurrentPrice
	txn, err := s.store.ApplyTrade(ctx, db.TradeApplication{
		UserID:       req.UserID,
		BalanceDelta: -totalCost,
		Position:     &position,
		Transaction: db.Transaction{
			Reference:     uuid.NewString(),
			UserID:        req.UserID,
			InstrumentID:  &req.InstrumentID,
			Type:          db.TransactionBuy,
			Quantity:      req.Quantity,
			PricePerShare: &price,
			TotalAmount:   totalCost,
			Status:        db.TransactionCompleted,
		},
		CompleteOrderID: req.OrderID,
	})
	if err != nil {
		if errors.Is(err, db.ErrBalanceConstraint) {
			return TradeResult{}, ErrInsufficientFunds
		}
		return TradeResult{}, fmt.Errorf("apply buy: %w", err)
	}

	return TradeResult{Transaction: txn, Position: &position}, nil
}

// Sell executes a sale at the instrument's currently stored price. The
// invested basis shrinks proportionally, so the average purchase price of
// the remaining shares is unchanged by a sell.
func (s *Service) Sell(ctx context.Context, req TradeRequest) (TradeResult, error) {
	if req.Quantity <= 0 {
		return TradeResult{}, ErrInvalidQuantity
	}

	unlock := s.locks.acquire(req.UserID, req.InstrumentID)
	defer unlock()

	instrument, _, err := s.loadTradeContext(ctx, req)
	if err != nil {
		return TradeResult{}, err
	}

	position, exists, err := s.store.GetPosition(ctx, req.UserID, req.InstrumentID)
	if err != nil {
		return TradeResult{}, err
	}
	if !exists {
		return TradeResult{}, ErrNoSuchPosition
	}
	if position.Quantity < req.Quantity {
		return TradeResult{}, ErrInsufficientHoldings
	}

	totalRevenue := instrument.CurrentPrice * float64(req.Quantity)
	proportionSold := float64(req.Quantity) / float64(position.Quantity)

	newQuantity := position.Quantity - req.Quantity
	newInvested := position.TotalInvested * (1 - proportionSold)

	app := db.TradeApplication{
		UserID:       req.UserID,
		BalanceDelta: totalRevenue,
	}
	var remaining *db.Position
	if newQuantity == 0 {
		app.RemovePosition = true
		app.RemoveInstrumentID = req.InstrumentID
	} else {
		position.Quantity = newQuantity
		position.TotalInvested = newInvested
		position.AvgPurchasePrice = newInvested / float64(newQuantity)
		app.Position = &position
		remaining = &position
	}

	price := instrument.CurrentPrice
	app.Transaction = db.Transaction{
		Reference:     uuid.NewString(),
		UserID:        req.UserID,
		InstrumentID:  &req.InstrumentID,
		Type:          db.TransactionSell,
		Quantity:      req.Quantity,
		PricePerShare: &price,
		TotalAmount:   totalRevenue,
		Status:        db.TransactionCompleted,
	}
	app.CompleteOrderID = req.OrderID

	txn, err := s.store.ApplyTrade(ctx, app)
	if err != nil {
		return TradeResult{}, fmt.Errorf("apply sell: %w", err)
	}

	return TradeResult{Transaction: txn, Position: remaining}, nil
}

// Deposit credits the account balance and appends a deposit transaction.
func (s *Service) Deposit(ctx context.Context, userID string, amount float64) (db.Transaction, error) {
	return s.adjustBalance(ctx, userID, amount, db.TransactionDeposit)
}

// Withdraw debits the account balance and appends a withdrawal transaction.
// A withdrawal exceeding the balance is rejected without mutation.
func (s *Service) Withdraw(ctx context.Context, userID string, amount float64) (db.Transaction, error) {
	return s.adjustBalance(ctx, userID, amount, db.TransactionWithdrawal)
}

func (s *Service) adjustBalance(ctx context.Context, userID string, amount float64, kind db.TransactionType) (db.Transaction, error) {
	if amount <= 0 {
		return db.Transaction{}, ErrInvalidAmount
	}

	account, ok, err := s.store.GetAccount(ctx, userID)
	if err != nil {
		return db.Transaction{}, err
	}
	if !ok {
		return db.Transaction{}, ErrAccountNotFound
	}

	delta := amount
	if kind == db.TransactionWithdrawal {
		if account.Balance < amount {
			return db.Transaction{}, ErrInsufficientFunds
		}
		delta = -amount
	}

	txn, err := s.store.ApplyTrade(ctx, db.TradeApplication{
		UserID:       userID,
		BalanceDelta: delta,
		Transaction: db.Transaction{
			Reference:   uuid.NewString(),
			UserID:      userID,
			Type:        kind,
			TotalAmount: amount,
			Status:      db.TransactionCompleted,
		},
	})
	if err != nil {
		if errors.Is(err, db.ErrBalanceConstraint) {
			return db.Transaction{}, ErrInsufficientFunds
		}
		return db.Transaction{}, fmt.Errorf("apply %s: %w", kind, err)
	}
	return txn, nil
}

func (s *Service) loadTradeContext(ctx context.Context, req TradeRequest) (db.Instrument, db.Account, error) {
	instrument, ok, err := s.store.GetInstrument(ctx, req.InstrumentID)
	if err != nil {
		return db.Instrument{}, db.Account{}, err
	}
	if !ok {
		return db.Instrument{}, db.Account{}, ErrInstrumentNotFound
	}

	account, ok, err := s.store.GetAccount(ctx, req.UserID)
	if err != nil {
		return db.Instrument{}, db.Account{}, err
	}
	if !ok {
		return db.Instrument{}, db.Account{}, ErrAccountNotFound
	}
	return instrument, account, nil
}
