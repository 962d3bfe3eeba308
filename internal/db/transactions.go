package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
)

const transactionColumns = `id, reference, user_id, instrument_id, type, quantity, price_per_share, total_amount, balance_after, status, created_at`

func scanTransaction(row pgx.Row) (Transaction, error) {
	var txn Transaction
	err := row.Scan(&txn.ID, &txn.Reference, &txn.UserID, &txn.InstrumentID, &txn.Type, &txn.Quantity, &txn.PricePerShare, &txn.TotalAmount, &txn.BalanceAfter, &txn.Status, &txn.CreatedAt)
	return txn, err
}

func (d *DB) GetTransaction(ctx context.Context, id int64) (Transaction, bool, error) {
	row := d.pool.QueryRow(ctx, `
		select `+transactionColumns+`
		from public.transactions
		where id = $1
	`, id)
	txn, err := scanTransaction(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Transaction{}, false, nil
	}
	if err != nil {
		return Transaction{}, false, err
	}
	return txn, true, nil
}

func (d *DB) ListTransactionsByUser(ctx context.Context, userID string) ([]Transaction, error) {
	rows, err := d.pool.Query(ctx, `
		select `+transactionColumns+`
		from public.transactions
		where user_id = $1
		order by created_at desc
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transactions []Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, txn)
	}
	return transactions, rows.Err()
}

func (d *DB) ListAllTransactions(ctx context.Context, limit int) ([]Transaction, error) {
	rows, err := d.pool.Query(ctx, `
		select `+transactionColumns+`
		from public.transactions
		order by created_at desc
		limit $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transactions []Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, txn)
	}
	return transactions, rows.Err()
}
