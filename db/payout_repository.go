package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"ticketchain/entities"

	"github.com/jmoiron/sqlx"
)

type IPayoutRepository interface {
	Balance(ctx context.Context, address string) (entities.Payout, error)
}

// PayoutRepository reads the withdrawable balances. Credits happen only
// through creditPayout inside ledger transactions.
type PayoutRepository struct {
	db *DB
}

func NewPayoutRepository(db *DB) PayoutRepository {
	if db == nil {
		panic("db is nil")
	}
	return PayoutRepository{
		db: db,
	}
}

func (r PayoutRepository) Balance(ctx context.Context, address string) (entities.Payout, error) {
	var payout entities.Payout
	err := r.db.Conn.GetContext(ctx, &payout, `
		SELECT address, balance
		FROM payouts
		WHERE address = $1
	`, address)
	if errors.Is(err, sql.ErrNoRows) {
		// an address with no credits has a zero balance, not a missing one
		return entities.Payout{Address: address, Balance: 0}, nil
	}
	if err != nil {
		return entities.Payout{}, fmt.Errorf("could not get payout balance: %w", err)
	}

	return payout, nil
}

// creditPayout moves funds out of the ledger's custody. It must be the last
// write of its transaction, after all internal state changes, so a failing
// external movement can never leave half-applied ledger state behind.
func creditPayout(ctx context.Context, tx *sqlx.Tx, address string, amount uint64) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO payouts (address, balance)
		VALUES ($1, $2)
		ON CONFLICT (address) DO UPDATE SET balance = payouts.balance + excluded.balance
	`, address, amount)
	if err != nil {
		return fmt.Errorf("could not credit payout to %s: %w", address, err)
	}

	return nil
}
