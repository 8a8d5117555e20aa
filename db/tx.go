package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"ticketchain/entities"
	"ticketchain/message/event"
	"ticketchain/message/outbox"

	"github.com/jmoiron/sqlx"
)

// updateInTx runs fn inside a transaction. Every mutating ledger operation
// goes through here: the operation either commits all its effects or none.
func updateInTx(
	ctx context.Context,
	db *sqlx.DB,
	isolation sql.IsolationLevel,
	fn func(ctx context.Context, tx *sqlx.Tx) error,
) (err error) {
	tx, err := db.BeginTxx(ctx, &sql.TxOptions{Isolation: isolation})
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil {
				err = errors.Join(err, rollbackErr)
			}
			return
		}

		err = tx.Commit()
	}()

	return fn(ctx, tx)
}

// publishInTx writes events to the transactional outbox, so they become
// visible to consumers only if the surrounding transaction commits.
func publishInTx(ctx context.Context, tx *sqlx.Tx, events ...entities.IEvent) error {
	outboxPublisher, err := outbox.NewPublisherForDb(ctx, tx)
	if err != nil {
		return fmt.Errorf("could not create outbox publisher: %w", err)
	}

	bus := event.NewBus(outboxPublisher)
	for _, e := range events {
		if err := bus.Publish(ctx, e); err != nil {
			return fmt.Errorf("could not publish event: %w", err)
		}
	}

	return nil
}
