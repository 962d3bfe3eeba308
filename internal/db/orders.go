package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
)

const orderColumns = `id, reference, user_id, instrument_id, type, quantity, price_per_share, total_amount, status, executed_at, created_at, updated_at`

func scanOrder(row pgx.Row) (Order, error) {
	var ord Order
	err := row.Scan(&ord.ID, &ord.Reference, &ord.UserID, &ord.InstrumentID, &ord.Type, &ord.Quantity, &ord.PricePerShare, &ord.TotalAmount, &ord.Status, &ord.ExecutedAt, &ord.CreatedAt, &ord.UpdatedAt)
	return ord, err
}

func (d *DB) InsertOrder(ctx context.Context, ord Order) (int64, error) {
	row := d.pool.QueryRow(ctx, `
		insert into public.orders (reference, user_id, instrument_id, type, quantity, price_per_share, total_amount, status)
		values ($1, $2, $3, $4, $5, $6, $7, $8)
		returning id
	`, ord.Reference, ord.UserID, ord.InstrumentID, ord.Type, ord.Quantity, ord.PricePerShare, ord.TotalAmount, ord.Status)

	var id int64
	if err := row.Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

func (d *DB) GetOrder(ctx context.Context, id int64) (Order, bool, error) {
	row := d.pool.QueryRow(ctx, `
		select `+orderColumns+`
		from public.orders
		where id = $1
	`, id)
	ord, err := scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, false, nil
	}
	if err != nil {
		return Order{}, false, err
	}
	return ord, true, nil
}

func (d *DB) ListOrdersByUser(ctx context.Context, userID string) ([]Order, error) {
	rows, err := d.pool.Query(ctx, `
		select `+orderColumns+`
		from public.orders
		where user_id = $1
		order by created_at desc
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []Order
	for rows.Next() {
		ord, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, ord)
	}
	return orders, rows.Err()
}

func (d *DB) ListAllOrders(ctx context.Context, limit int) ([]Order, error) {
	rows, err := d.pool.Query(ctx, `
		select `+orderColumns+`
		from public.orders
		order by created_at desc
		limit $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []Order
	for rows.Next() {
		ord, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, ord)
	}
	return orders, rows.Err()
}

// UpdateOrderStatus transitions an order that is still pending. Completed
// orders are immutable through this path.
func (d *DB) UpdateOrderStatus(ctx context.Context, id int64, status OrderStatus) (bool, error) {
	tag, err := d.pool.Exec(ctx, `
		update public.orders
		set status = $2,
			executed_at = case when $2 = 'completed' then now() else executed_at end,
			updated_at = now()
		where id = $1 and status = 'pending'
	`, id, status)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
