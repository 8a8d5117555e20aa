package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"ticketchain/entities"

	"github.com/jmoiron/sqlx"
)

type IMarketRepository interface {
	List(ctx context.Context, ticketID int64, caller string, price uint64) error
	Cancel(ctx context.Context, ticketID int64, caller string) error
	Buy(ctx context.Context, ticketID int64, buyer string, payment uint64) error
	ListingByTicket(ctx context.Context, ticketID int64) (entities.Listing, error)
}

type MarketRepository struct {
	db *DB
}

func NewMarketRepository(db *DB) MarketRepository {
	if db == nil {
		panic("db is nil")
	}
	return MarketRepository{
		db: db,
	}
}

func (r MarketRepository) List(ctx context.Context, ticketID int64, caller string, price uint64) error {
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
		if event.SoulBound {
			return entities.NewLedgerError(entities.ErrSoulBound,
				"ticket %d belongs to soul-bound event %d", ticketID, event.ID)
		}
		if ticket.CheckedIn() {
			return entities.NewLedgerError(entities.ErrAlreadyCheckedIn,
				"ticket %d was checked in and cannot be listed", ticketID)
		}

		listing, err := listingForUpdate(ctx, tx, ticketID)
		if err != nil {
			return err
		}
		if listing != nil && listing.Active {
			return entities.NewLedgerError(entities.ErrAlreadyListed, "ticket %d is already listed", ticketID)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO listings (ticket_id, seller, price, active)
			VALUES ($1, $2, $3, TRUE)
			ON CONFLICT (ticket_id) DO UPDATE SET seller = excluded.seller, price = excluded.price, active = TRUE
		`, ticketID, caller, price)
		if err != nil {
			return fmt.Errorf("could not save listing: %w", err)
		}

		return publishInTx(ctx, tx, entities.TicketListed_v1{
			Header:   entities.NewEventHeader(),
			TicketID: ticketID,
			EventID:  event.ID,
			Seller:   caller,
			Price:    price,
		})
	})
}

func (r MarketRepository) Cancel(ctx context.Context, ticketID int64, caller string) error {
	return updateInTx(ctx, r.db.Conn, sql.LevelSerializable, func(ctx context.Context, tx *sqlx.Tx) error {
		listing, err := listingForUpdate(ctx, tx, ticketID)
		if err != nil {
			return err
		}
		if listing == nil || !listing.Active {
			return entities.NewLedgerError(entities.ErrNotListed, "ticket %d is not listed", ticketID)
		}
		if listing.Seller != caller {
			return entities.NewLedgerError(entities.ErrUnauthorized,
				"only the seller may cancel the listing of ticket %d", ticketID)
		}

		if _, err := deactivateListing(ctx, tx, ticketID); err != nil {
			return err
		}

		return publishInTx(ctx, tx, entities.ListingCancelled_v1{
			Header:   entities.NewEventHeader(),
			TicketID: ticketID,
			Seller:   caller,
		})
	})
}

// Buy atomically settles a listed ticket: ownership moves through the
// transfer gate, the full asking price is credited to the seller's payout
// balance and any excess payment is refunded to the buyer. The payout
// credits are the last writes of the transaction.
func (r MarketRepository) Buy(ctx context.Context, ticketID int64, buyer string, payment uint64) error {
	return updateInTx(ctx, r.db.Conn, sql.LevelSerializable, func(ctx context.Context, tx *sqlx.Tx) error {
		// locks are taken ticket, event, listing, the same order every
		// market and check-in operation uses
		ticket, err := ticketForUpdate(ctx, tx, ticketID)
		if err != nil {
			return err
		}
		event, err := eventForUpdate(ctx, tx, ticket.EventID)
		if err != nil {
			return err
		}

		listing, err := listingForUpdate(ctx, tx, ticketID)
		if err != nil {
			return err
		}
		if listing == nil || !listing.Active {
			return entities.NewLedgerError(entities.ErrNotListed, "ticket %d is not listed", ticketID)
		}
		if payment < listing.Price {
			return entities.NewLedgerError(entities.ErrInsufficientPayment,
				"ticket %d is listed at %d, got %d", ticketID, listing.Price, payment)
		}
		if listing.Seller == buyer {
			return entities.NewLedgerError(entities.ErrSelfPurchase, "cannot buy own listing of ticket %d", ticketID)
		}

		if err := transferTicket(ctx, tx, event, ticketID, buyer, false); err != nil {
			return err
		}
		if _, err := deactivateListing(ctx, tx, ticketID); err != nil {
			return err
		}

		if err := creditPayout(ctx, tx, listing.Seller, listing.Price); err != nil {
			return err
		}
		if excess := payment - listing.Price; excess > 0 {
			if err := creditPayout(ctx, tx, buyer, excess); err != nil {
				return err
			}
		}

		return publishInTx(ctx, tx, entities.TicketResold_v1{
			Header:   entities.NewEventHeader(),
			TicketID: ticketID,
			EventID:  event.ID,
			Seller:   listing.Seller,
			Buyer:    buyer,
			Price:    listing.Price,
		})
	})
}

func (r MarketRepository) ListingByTicket(ctx context.Context, ticketID int64) (entities.Listing, error) {
	var listing entities.Listing
	err := r.db.Conn.GetContext(ctx, &listing, `
		SELECT ticket_id, seller, price, active
		FROM listings
		WHERE ticket_id = $1 AND active
	`, ticketID)
	if errors.Is(err, sql.ErrNoRows) {
		return entities.Listing{}, entities.NewLedgerError(entities.ErrNotListed, "ticket %d is not listed", ticketID)
	}
	if err != nil {
		return entities.Listing{}, fmt.Errorf("could not get listing: %w", err)
	}

	return listing, nil
}

// listingForUpdate locks the listing row if one exists. A nil listing means
// the ticket was never listed.
func listingForUpdate(ctx context.Context, tx *sqlx.Tx, ticketID int64) (*entities.Listing, error) {
	var listing entities.Listing
	err := tx.GetContext(ctx, &listing, `
		SELECT ticket_id, seller, price, active
		FROM listings
		WHERE ticket_id = $1
		FOR UPDATE
	`, ticketID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("could not get listing for update: %w", err)
	}

	return &listing, nil
}

// deactivateListing clears the active listing of a ticket, if any, and
// returns the listing that was cancelled.
func deactivateListing(ctx context.Context, tx *sqlx.Tx, ticketID int64) (*entities.Listing, error) {
	listing, err := listingForUpdate(ctx, tx, ticketID)
	if err != nil {
		return nil, err
	}
	if listing == nil || !listing.Active {
		return nil, nil
	}

	_, err = tx.ExecContext(ctx, `UPDATE listings SET active = FALSE WHERE ticket_id = $1`, ticketID)
	if err != nil {
		return nil, fmt.Errorf("could not deactivate listing: %w", err)
	}

	return listing, nil
}
