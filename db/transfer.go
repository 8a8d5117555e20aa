package db

import (
	"context"
	"fmt"
	"ticketchain/entities"

	"github.com/jmoiron/sqlx"
)

// transferTicket is the transfer policy gate: the only statement in the
// package that writes a ticket's owner. Every issuance and ownership change
// (mint, market purchase, direct transfer) must come through here, so the
// soul-bound rule cannot be bypassed by a new code path.
//
// viaMint marks the initial assignment at issuance, which is permitted even
// for soul-bound events.
func transferTicket(ctx context.Context, tx *sqlx.Tx, event entities.Event, ticketID int64, to string, viaMint bool) error {
	if event.SoulBound && !viaMint {
		return entities.NewLedgerError(entities.ErrTransferNotAllowed,
			"ticket %d belongs to soul-bound event %d and cannot be transferred", ticketID, event.ID)
	}

	_, err := tx.ExecContext(ctx, `UPDATE tickets SET owner = $1 WHERE id = $2`, to, ticketID)
	if err != nil {
		return fmt.Errorf("could not transfer ticket %d: %w", ticketID, err)
	}

	return nil
}
