package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"ticketchain/entities"

	"github.com/jmoiron/sqlx"
)

type ITicketRepository interface {
	Mint(ctx context.Context, mint entities.MintRequest) (int64, error)
	Transfer(ctx context.Context, ticketID int64, caller, to string) error
	ByID(ctx context.Context, ticketID int64) (entities.Ticket, error)
	ByEvent(ctx context.Context, eventID int64) ([]entities.Ticket, error)
	Holders(ctx context.Context, eventID int64) ([]string, error)
}

type TicketRepository struct {
	db *DB
}

func NewTicketRepository(db *DB) TicketRepository {
	if db == nil {
		panic("db is nil")
	}
	return TicketRepository{
		db: db,
	}
}

// Mint issues a ticket against the event's supply. The payment is retained
// in full by the event's revenue balance; overpaying does not produce a
// refund.
func (r TicketRepository) Mint(ctx context.Context, mint entities.MintRequest) (int64, error) {
	var ticketID int64

	err := updateInTx(ctx, r.db.Conn, sql.LevelSerializable, func(ctx context.Context, tx *sqlx.Tx) error {
		event, err := eventForUpdate(ctx, tx, mint.EventID)
		if err != nil {
			return err
		}
		if mint.Payment < event.Price {
			return entities.NewLedgerError(entities.ErrInsufficientPayment,
				"event %d tickets cost %d, got %d", event.ID, event.Price, mint.Payment)
		}
		if event.SoldOut() {
			return entities.NewLedgerError(entities.ErrSoldOut,
				"event %d sold all %d tickets", event.ID, event.TotalTickets)
		}
		if !event.Active {
			return entities.NewLedgerError(entities.ErrEventInactive, "event %d is not active", event.ID)
		}

		err = tx.QueryRowContext(
			ctx,
			`
			INSERT INTO tickets (event_id, owner, metadata_uri)
			VALUES ($1, '', $2)
			RETURNING id`,
			event.ID, mint.MetadataURI,
		).Scan(&ticketID)
		if err != nil {
			return fmt.Errorf("could not save ticket: %w", err)
		}

		// initial assignment goes through the gate like every other
		// ownership change
		if err := transferTicket(ctx, tx, event, ticketID, mint.Owner, true); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE ticket_events
			SET tickets_sold = tickets_sold + 1, revenue = revenue + $1
			WHERE id = $2
		`, mint.Payment, event.ID)
		if err != nil {
			return fmt.Errorf("could not update event supply: %w", err)
		}

		return publishInTx(ctx, tx, entities.TicketMinted_v1{
			Header:      entities.NewEventHeader(),
			TicketID:    ticketID,
			EventID:     event.ID,
			Owner:       mint.Owner,
			MetadataURI: mint.MetadataURI,
			Payment:     mint.Payment,
		})
	})
	if err != nil {
		return 0, err
	}

	return ticketID, nil
}

// Transfer moves a ticket directly between addresses, outside the market.
// An active listing left by the previous owner is cancelled in the same
// transaction: it could never be bought anyway, since its seller no longer
// owns the ticket.
func (r TicketRepository) Transfer(ctx context.Context, ticketID int64, caller, to string) error {
	return updateInTx(ctx, r.db.Conn, sql.LevelSerializable, func(ctx context.Context, tx *sqlx.Tx) error {
		ticket, err := ticketForUpdate(ctx, tx, ticketID)
		if err != nil {
			return err
		}
		if ticket.Owner != caller {
			return entities.NewLedgerError(entities.ErrUnauthorized, "caller does not own ticket %d", ticketID)
		}

		event, err := eventForUpdate(ctx, tx, ticket.EventID)
		if err != nil {
			return err
		}

		if err := transferTicket(ctx, tx, event, ticketID, to, false); err != nil {
			return err
		}

		events := []entities.IEvent{entities.TicketTransferred_v1{
			Header:   entities.NewEventHeader(),
			TicketID: ticketID,
			EventID:  event.ID,
			From:     caller,
			To:       to,
		}}

		cancelled, err := deactivateListing(ctx, tx, ticketID)
		if err != nil {
			return err
		}
		if cancelled != nil {
			events = append(events, entities.ListingCancelled_v1{
				Header:   entities.NewEventHeader(),
				TicketID: ticketID,
				Seller:   cancelled.Seller,
			})
		}

		return publishInTx(ctx, tx, events...)
	})
}

func (r TicketRepository) ByID(ctx context.Context, ticketID int64) (entities.Ticket, error) {
	var ticket entities.Ticket
	err := r.db.Conn.GetContext(ctx, &ticket, `
		SELECT id, event_id, owner, metadata_uri, checked_in_at
		FROM tickets
		WHERE id = $1
	`, ticketID)
	if errors.Is(err, sql.ErrNoRows) {
		return entities.Ticket{}, entities.NewLedgerError(entities.ErrNotFound, "ticket %d does not exist", ticketID)
	}
	if err != nil {
		return entities.Ticket{}, fmt.Errorf("could not get ticket: %w", err)
	}

	return ticket, nil
}

func (r TicketRepository) ByEvent(ctx context.Context, eventID int64) ([]entities.Ticket, error) {
	var tickets []entities.Ticket
	err := r.db.Conn.SelectContext(ctx, &tickets, `
		SELECT id, event_id, owner, metadata_uri, checked_in_at
		FROM tickets
		WHERE event_id = $1
		ORDER BY id
	`, eventID)
	if err != nil {
		return nil, fmt.Errorf("could not get tickets of event %d: %w", eventID, err)
	}

	return tickets, nil
}

func (r TicketRepository) Holders(ctx context.Context, eventID int64) ([]string, error) {
	var holders []string
	err := r.db.Conn.SelectContext(ctx, &holders, `
		SELECT owner
		FROM tickets
		WHERE event_id = $1
		ORDER BY id
	`, eventID)
	if err != nil {
		return nil, fmt.Errorf("could not get holders of event %d: %w", eventID, err)
	}

	return holders, nil
}

// ticketForUpdate locks the ticket row for the rest of the transaction.
func ticketForUpdate(ctx context.Context, tx *sqlx.Tx, ticketID int64) (entities.Ticket, error) {
	var ticket entities.Ticket
	err := tx.GetContext(ctx, &ticket, `
		SELECT id, event_id, owner, metadata_uri, checked_in_at
		FROM tickets
		WHERE id = $1
		FOR UPDATE
	`, ticketID)
	if errors.Is(err, sql.ErrNoRows) {
		return entities.Ticket{}, entities.NewLedgerError(entities.ErrNotFound, "ticket %d does not exist", ticketID)
	}
	if err != nil {
		return entities.Ticket{}, fmt.Errorf("could not get ticket for update: %w", err)
	}

	return ticket, nil
}
