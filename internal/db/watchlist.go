package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
)

func (d *DB) ListWatchlistByUser(ctx context.Context, userID string) ([]WatchlistItem, error) {
	rows, err := d.pool.Query(ctx, `
		select id, user_id, instrument_id, created_at
		from public.watchlist
		where user_id = $1
		order by created_at desc
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []WatchlistItem
	for rows.Next() {
		var item WatchlistItem
		if err := rows.Scan(&item.ID, &item.UserID, &item.InstrumentID, &item.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// AddToWatchlist inserts the (user, instrument) pair; a duplicate add is a
// no-op and reports inserted=false.
func (d *DB) AddToWatchlist(ctx context.Context, userID string, instrumentID int64) (int64, bool, error) {
	row := d.pool.QueryRow(ctx, `
		insert into public.watchlist (user_id, instrument_id)
		values ($1, $2)
		on conflict (user_id, instrument_id) do nothing
		returning id
	`, userID, instrumentID)

	var id int64
	if err := row.Scan(&id); err != nil {
		// No row returned means the pair already existed.
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return id, true, nil
}

func (d *DB) RemoveFromWatchlist(ctx context.Context, userID string, itemID int64) (bool, error) {
	tag, err := d.pool.Exec(ctx, `
		delete from public.watchlist
		where id = $1 and user_id = $2
	`, itemID, userID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
