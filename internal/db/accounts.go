package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
)

func (d *DB) GetAccount(ctx context.Context, userID string) (Account, bool, error) {
	row := d.pool.QueryRow(ctx, `
		select id, email, role, balance
		from public.users
		where id = $1
	`, userID)

	var account Account
	err := row.Scan(&account.UserID, &account.Email, &account.Role, &account.Balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return Account{}, false, nil
	}
	if err != nil {
		return Account{}, false, err
	}
	return account, true, nil
}
