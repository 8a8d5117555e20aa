package db

import (
	"context"
	"database/sql"
	"fmt"
	"ticketchain/entities"

	"github.com/jmoiron/sqlx"
)

type IRevenueRepository interface {
	Revenue(ctx context.Context, eventID int64) (uint64, error)
	Withdraw(ctx context.Context, eventID int64, caller string) (uint64, error)
}

type RevenueRepository struct {
	db *DB
}

func NewRevenueRepository(db *DB) RevenueRepository {
	if db == nil {
		panic("db is nil")
	}
	return RevenueRepository{
		db: db,
	}
}

func (r RevenueRepository) Revenue(ctx context.Context, eventID int64) (uint64, error) {
	registry := NewEventRegistry(r.db)
	event, err := registry.ByID(ctx, eventID)
	if err != nil {
		return 0, err
	}

	return event.Revenue, nil
}

// Withdraw pays the accumulated revenue out to the organizer. The revenue
// balance is zeroed before the payout credit, so a second withdrawal in the
// same or a later transaction always sees zero and fails with NoRevenue.
func (r RevenueRepository) Withdraw(ctx context.Context, eventID int64, caller string) (uint64, error) {
	var amount uint64

	err := updateInTx(ctx, r.db.Conn, sql.LevelSerializable, func(ctx context.Context, tx *sqlx.Tx) error {
		event, err := eventForUpdate(ctx, tx, eventID)
		if err != nil {
			return err
		}
		if event.Organizer != caller {
			return entities.NewLedgerError(entities.ErrUnauthorized, "only the organizer may withdraw from event %d", eventID)
		}
		if event.Revenue == 0 {
			return entities.NewLedgerError(entities.ErrNoRevenue, "event %d has no revenue to withdraw", eventID)
		}

		amount = event.Revenue

		_, err = tx.ExecContext(ctx, `UPDATE ticket_events SET revenue = 0 WHERE id = $1`, eventID)
		if err != nil {
			return fmt.Errorf("could not zero revenue: %w", err)
		}

		if err := publishInTx(ctx, tx, entities.RevenueWithdrawn_v1{
			Header:    entities.NewEventHeader(),
			EventID:   eventID,
			Organizer: caller,
			Amount:    amount,
		}); err != nil {
			return err
		}

		// external funds movement comes last
		return creditPayout(ctx, tx, caller, amount)
	})
	if err != nil {
		return 0, err
	}

	return amount, nil
}
