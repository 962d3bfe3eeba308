package db

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// ApplyPriceUpdates writes a refresh batch. Only instruments present in the
// batch are touched; a partial oracle response leaves every other row
// unchanged.
func (d *DB) ApplyPriceUpdates(ctx context.Context, updates []PriceUpdate) error {
	if len(updates) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, update := range updates {
		batch.Queue(`
			update public.instruments
			set current_price = $2, previous_close = $3, change_percent = $4, volume = $5, updated_at = $6
			where id = $1
		`, update.InstrumentID, update.CurrentPrice, update.PreviousClose, update.ChangePercent, update.Volume, update.FetchedAt)
	}
	br := d.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range updates {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}
