package db

import (
	"context"
	"database/sql"
	"fmt"
	"ticketchain/entities"
	"ticketchain/pkg/attestation"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/jmoiron/sqlx"
)

type ICheckInVerifier interface {
	CheckIn(ctx context.Context, req entities.CheckInRequest) error
}

// CheckInVerifier consumes signed attestations and marks tickets used,
// exactly once. The organizer is the trusted executor; the signature proves
// the ticket's owner produced the attestation.
//
// MaxAge is an optional freshness window: when non-zero, attestations whose
// timestamp is older are rejected. Zero disables the check.
type CheckInVerifier struct {
	db     *DB
	maxAge time.Duration
	now    func() time.Time
}

func NewCheckInVerifier(db *DB, maxAge time.Duration) CheckInVerifier {
	if db == nil {
		panic("db is nil")
	}
	return CheckInVerifier{
		db:     db,
		maxAge: maxAge,
		now:    time.Now,
	}
}

func (v CheckInVerifier) CheckIn(ctx context.Context, req entities.CheckInRequest) error {
	return updateInTx(ctx, v.db.Conn, sql.LevelSerializable, func(ctx context.Context, tx *sqlx.Tx) error {
		ticket, err := ticketForUpdate(ctx, tx, req.TicketID)
		if err != nil {
			return err
		}
		event, err := eventForUpdate(ctx, tx, req.EventID)
		if err != nil {
			return err
		}

		if ticket.EventID != event.ID {
			return entities.NewLedgerError(entities.ErrEventMismatch,
				"ticket %d belongs to event %d, not %d", ticket.ID, ticket.EventID, event.ID)
		}
		if event.Organizer != req.Caller {
			return entities.NewLedgerError(entities.ErrUnauthorized,
				"only the organizer may check in tickets of event %d", event.ID)
		}
		if ticket.CheckedIn() {
			return entities.NewLedgerError(entities.ErrAlreadyCheckedIn,
				"ticket %d was already checked in at %d", ticket.ID, ticket.CheckedInAt)
		}

		signer, err := attestation.RecoverSigner(req.Message, req.Signature)
		if err != nil {
			return entities.NewLedgerError(entities.ErrInvalidSignature, "could not recover signer: %v", err)
		}
		if signer.Hex() != ticket.Owner {
			return entities.NewLedgerError(entities.ErrInvalidSignature,
				"attestation signed by %s, ticket %d is owned by %s", signer.Hex(), ticket.ID, ticket.Owner)
		}

		msgTicketID, msgTimestamp, err := attestation.ParseMessage(req.Message)
		if err != nil {
			return entities.NewLedgerError(entities.ErrMessageMismatch, "%v", err)
		}
		if msgTicketID != req.TicketID || msgTimestamp != req.Timestamp {
			return entities.NewLedgerError(entities.ErrMessageMismatch,
				"message attests ticket %d at %d, request says ticket %d at %d",
				msgTicketID, msgTimestamp, req.TicketID, req.Timestamp)
		}

		if v.maxAge > 0 {
			age := v.now().Sub(time.Unix(req.Timestamp, 0))
			if age > v.maxAge {
				return entities.NewLedgerError(entities.ErrAttestationExpired,
					"attestation for ticket %d is %s old, limit is %s", ticket.ID, age, v.maxAge)
			}
		}

		_, err = tx.ExecContext(ctx, `UPDATE tickets SET checked_in_at = $1 WHERE id = $2`, req.Timestamp, ticket.ID)
		if err != nil {
			return fmt.Errorf("could not mark ticket checked in: %w", err)
		}

		// the signature doubles as the idempotency key: one attestation,
		// one check-in event
		events := []entities.IEvent{entities.TicketCheckedIn_v1{
			Header:      entities.NewEventHeaderWithIdempotencyKey(hexutil.Encode(req.Signature)),
			TicketID:    ticket.ID,
			EventID:     event.ID,
			CheckedInAt: req.Timestamp,
		}}

		// a checked-in ticket cannot be sold, so an active listing must not
		// survive the check-in
		cancelled, err := deactivateListing(ctx, tx, ticket.ID)
		if err != nil {
			return err
		}
		if cancelled != nil {
			events = append(events, entities.ListingCancelled_v1{
				Header:   entities.NewEventHeader(),
				TicketID: ticket.ID,
				Seller:   cancelled.Seller,
			})
		}

		return publishInTx(ctx, tx, events...)
	})
}
