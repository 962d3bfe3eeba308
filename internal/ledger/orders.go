package ledger

import (
	"context"

	"github.com/google/uuid"

	"papertrade/internal/db"
)

// PlaceOrder records trade intent at the current stored price. Orders are
// an audit trail: execution happens synchronously through Buy/Sell, and an
// order's status never drives balance or position state.
func (s *Service) PlaceOrder(ctx context.Context, userID string, instrumentID int64, orderType db.TransactionType, quantity int64) (db.Order, error) {
	if orderType != db.TransactionBuy && orderType != db.TransactionSell {
		return db.Order{}, ErrInvalidOrderType
	}
	if quantity <= 0 {
		return db.Order{}, ErrInvalidQuantity
	}

	instrument, ok, err := s.store.GetInstrument(ctx, instrumentID)
	if err != nil {
		return db.Order{}, err
	}
	if !ok {
		return db.Order{}, ErrInstrumentNotFound
	}

	account, ok, err := s.store.GetAccount(ctx, userID)
	if err != nil {
		return db.Order{}, err
	}
	if !ok {
		return db.Order{}, ErrAccountNotFound
	}

	totalAmount := instrument.CurrentPrice * float64(quantity)
	if orderType == db.TransactionBuy && account.Balance < totalAmount {
		return db.Order{}, ErrInsufficientFunds
	}

	order := db.Order{
		Reference:     uuid.NewString(),
		UserID:        userID,
		InstrumentID:  instrumentID,
		Type:          orderType,
		Quantity:      quantity,
		PricePerShare: instrument.CurrentPrice,
		TotalAmount:   totalAmount,
		Status:        db.OrderPending,
	}
	id, err := s.store.InsertOrder(ctx, order)
	if err != nil {
		return db.Order{}, err
	}
	order.ID = id
	return order, nil
}

// CancelOrder cancels a pending order. Admins may cancel any user's order.
func (s *Service) CancelOrder(ctx context.Context, userID string, isAdmin bool, orderID int64) error {
	order, ok, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrOrderNotFound
	}
	if order.UserID != userID && !isAdmin {
		return ErrNotOrderOwner
	}
	if order.Status == db.OrderCompleted {
		return ErrOrderNotCancellable
	}

	updated, err := s.store.UpdateOrderStatus(ctx, orderID, db.OrderCancelled)
	if err != nil {
		return err
	}
	if !updated && order.Status == db.OrderPending {
		// Lost a race with another transition; report the order as no
		// longer cancellable.
		return ErrOrderNotCancellable
	}
	return nil
}
