package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// ApplyTrade applies one ledger operation as a single database transaction:
// guarded balance update, position upsert or delete, transaction insert,
// and optionally completion of the originating order. Either every write
// commits or none do.
//
// The balance update is relative and guarded (`balance + delta >= 0`) so
// that trades on different instruments, which the ledger does not serialize
// against each other, can never drive the balance negative. A guard miss
// surfaces as ErrBalanceConstraint and rolls back everything.
func (d *DB) ApplyTrade(ctx context.Context, app TradeApplication) (Transaction, error) {
	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return Transaction{}, err
	}
	defer tx.Rollback(ctx)

	var balanceAfter float64
	row := tx.QueryRow(ctx, `
		update public.users
		set balance = balance + $2
		where id = $1 and balance + $2 >= 0
		returning balance
	`, app.UserID, app.BalanceDelta)
	if err := row.Scan(&balanceAfter); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Transaction{}, ErrBalanceConstraint
		}
		return Transaction{}, err
	}

	switch {
	case app.RemovePosition:
		if _, err := tx.Exec(ctx, `
			delete from public.positions
			where user_id = $1 and instrument_id = $2
		`, app.UserID, app.RemoveInstrumentID); err != nil {
			return Transaction{}, err
		}
	case app.Position != nil:
		pos := app.Position
		if _, err := tx.Exec(ctx, `
			insert into public.positions (user_id, instrument_id, quantity, avg_purchase_price, total_invested)
			values ($1, $2, $3, $4, $5)
			on conflict (user_id, instrument_id)
			do update set quantity = excluded.quantity,
				avg_purchase_price = excluded.avg_purchase_price,
				total_invested = excluded.total_invested,
				updated_at = now()
		`, pos.UserID, pos.InstrumentID, pos.Quantity, pos.AvgPurchasePrice, pos.TotalInvested); err != nil {
			return Transaction{}, err
		}
	}

	record := app.Transaction
	record.BalanceAfter = balanceAfter
	insertRow := tx.QueryRow(ctx, `
		insert into public.transactions (reference, user_id, instrument_id, type, quantity, price_per_share, total_amount, balance_after, status)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		returning id, created_at
	`, record.Reference, record.UserID, record.InstrumentID, record.Type, record.Quantity, record.PricePerShare, record.TotalAmount, record.BalanceAfter, record.Status)
	if err := insertRow.Scan(&record.ID, &record.CreatedAt); err != nil {
		return Transaction{}, err
	}

	if app.CompleteOrderID != nil {
		// Best effort: a missing or already-settled order does not fail the
		// trade, since order status is never authoritative for settlement.
		if _, err := tx.Exec(ctx, `
			update public.orders
			set status = 'completed', executed_at = now(), updated_at = now()
			where id = $1 and user_id = $2 and status = 'pending'
		`, *app.CompleteOrderID, app.UserID); err != nil {
			return Transaction{}, fmt.Errorf("complete order %d: %w", *app.CompleteOrderID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return Transaction{}, err
	}
	return record, nil
}
