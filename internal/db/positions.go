package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
)

const positionColumns = `user_id, instrument_id, quantity, avg_purchase_price, total_invested, created_at, updated_at`

func scanPosition(row pgx.Row) (Position, error) {
	var pos Position
	err := row.Scan(&pos.UserID, &pos.InstrumentID, &pos.Quantity, &pos.AvgPurchasePrice, &pos.TotalInvested, &pos.CreatedAt, &pos.UpdatedAt)
	return pos, err
}

func (d *DB) GetPosition(ctx context.Context, userID string, instrumentID int64) (Position, bool, error) {
	row := d.pool.QueryRow(ctx, `
		select `+positionColumns+`
		from public.positions
		where user_id = $1 and instrument_id = $2
	`, userID, instrumentID)
	pos, err := scanPosition(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Position{}, false, nil
	}
	if err != nil {
		return Position{}, false, err
	}
	return pos, true, nil
}

func (d *DB) ListPositionsByUser(ctx context.Context, userID string) ([]Position, error) {
	rows, err := d.pool.Query(ctx, `
		select `+positionColumns+`
		from public.positions
		where user_id = $1
		order by created_at desc
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var positions []Position
	for rows.Next() {
		pos, err := scanPosition(rows)
		if err != nil {
			return nil, err
		}
		positions = append(positions, pos)
	}
	return positions, rows.Err()
}
