package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
)

const instrumentColumns = `id, symbol, name, exchange, current_price, previous_close, change_percent, volume, market_cap, sector, description, created_at, updated_at`

func scanInstrument(row pgx.Row) (Instrument, error) {
	var ins Instrument
	err := row.Scan(&ins.ID, &ins.Symbol, &ins.Name, &ins.Exchange, &ins.CurrentPrice, &ins.PreviousClose, &ins.ChangePercent, &ins.Volume, &ins.MarketCap, &ins.Sector, &ins.Description, &ins.CreatedAt, &ins.UpdatedAt)
	return ins, err
}

func (d *DB) GetInstrument(ctx context.Context, id int64) (Instrument, bool, error) {
	row := d.pool.QueryRow(ctx, `
		select `+instrumentColumns+`
		from public.instruments
		where id = $1
	`, id)
	ins, err := scanInstrument(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Instrument{}, false, nil
	}
	if err != nil {
		return Instrument{}, false, err
	}
	return ins, true, nil
}

func (d *DB) GetInstrumentBySymbol(ctx context.Context, symbol string) (Instrument, bool, error) {
	row := d.pool.QueryRow(ctx, `
		select `+instrumentColumns+`
		from public.instruments
		where symbol = upper($1)
	`, symbol)
	ins, err := scanInstrument(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Instrument{}, false, nil
	}
	if err != nil {
		return Instrument{}, false, err
	}
	return ins, true, nil
}

func (d *DB) ListInstruments(ctx context.Context) ([]Instrument, error) {
	rows, err := d.pool.Query(ctx, `
		select `+instrumentColumns+`
		from public.instruments
		order by symbol
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var instruments []Instrument
	for rows.Next() {
		ins, err := scanInstrument(rows)
		if err != nil {
			return nil, err
		}
		instruments = append(instruments, ins)
	}
	return instruments, rows.Err()
}

func (d *DB) ListInstrumentsByIDs(ctx context.Context, ids []int64) ([]Instrument, error) {
	if len(ids) == 0 {
		return []Instrument{}, nil
	}

	rows, err := d.pool.Query(ctx, `
		select `+instrumentColumns+`
		from public.instruments
		where id = any($1::bigint[])
		order by symbol
	`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var instruments []Instrument
	for rows.Next() {
		ins, err := scanInstrument(rows)
		if err != nil {
			return nil, err
		}
		instruments = append(instruments, ins)
	}
	return instruments, rows.Err()
}

func (d *DB) SearchInstruments(ctx context.Context, query string, limit int) ([]Instrument, error) {
	rows, err := d.pool.Query(ctx, `
		select `+instrumentColumns+`
		from public.instruments
		where symbol ilike $1 or name ilike $1
		order by symbol
		limit $2
	`, "%"+query+"%", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var instruments []Instrument
	for rows.Next() {
		ins, err := scanInstrument(rows)
		if err != nil {
			return nil, err
		}
		instruments = append(instruments, ins)
	}
	return instruments, rows.Err()
}

func (d *DB) InsertInstrument(ctx context.Context, ins Instrument) (int64, error) {
	row := d.pool.QueryRow(ctx, `
		insert into public.instruments (symbol, name, exchange, current_price, previous_close, change_percent, volume, market_cap, sector, description)
		values (upper($1), $2, $3, $4, $5, $6, $7, $8, $9, $10)
		returning id
	`, ins.Symbol, ins.Name, ins.Exchange, ins.CurrentPrice, ins.PreviousClose, ins.ChangePercent, ins.Volume, ins.MarketCap, ins.Sector, ins.Description)

	var id int64
	if err := row.Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

func (d *DB) UpdateInstrument(ctx context.Context, ins Instrument) (bool, error) {
	tag, err := d.pool.Exec(ctx, `
		update public.instruments
		set symbol = upper($1), name = $2, exchange = $3, current_price = $4, previous_close = $5,
			change_percent = $6, volume = $7, market_cap = $8, sector = $9, description = $10,
			updated_at = now()
		where id = $11
	`, ins.Symbol, ins.Name, ins.Exchange, ins.CurrentPrice, ins.PreviousClose, ins.ChangePercent, ins.Volume, ins.MarketCap, ins.Sector, ins.Description, ins.ID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// DeleteInstrument removes the catalog row only. Positions referencing the
// instrument are left in place; valuation reports them as an integrity
// error rather than silently dropping them.
func (d *DB) DeleteInstrument(ctx context.Context, id int64) (bool, error) {
	tag, err := d.pool.Exec(ctx, `
		delete from public.instruments
		where id = $1
	`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
