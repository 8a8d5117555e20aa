package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"ticketchain/entities"

	"github.com/jmoiron/sqlx"
)

type IEventRegistry interface {
	Create(ctx context.Context, event entities.Event) (int64, error)
	SetActive(ctx context.Context, eventID int64, caller string, active bool) error
	ByID(ctx context.Context, eventID int64) (entities.Event, error)
	All(ctx context.Context) ([]entities.Event, error)
}

type EventRegistry struct {
	db *DB
}

func NewEventRegistry(db *DB) EventRegistry {
	if db == nil {
		panic("db is nil")
	}
	return EventRegistry{
		db: db,
	}
}

func (r EventRegistry) Create(ctx context.Context, event entities.Event) (int64, error) {
	var eventID int64

	err := updateInTx(ctx, r.db.Conn, sql.LevelSerializable, func(ctx context.Context, tx *sqlx.Tx) error {
		err := tx.QueryRowContext(
			ctx,
			`
			INSERT INTO ticket_events (name, price, total_tickets, organizer, soul_bound)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id`,
			event.Name, event.Price, event.TotalTickets, event.Organizer, event.SoulBound,
		).Scan(&eventID)
		if err != nil {
			return fmt.Errorf("could not save event: %w", err)
		}

		return publishInTx(ctx, tx, entities.EventCreated_v1{
			Header:       entities.NewEventHeader(),
			EventID:      eventID,
			Name:         event.Name,
			Price:        event.Price,
			TotalTickets: event.TotalTickets,
			SoulBound:    event.SoulBound,
			Organizer:    event.Organizer,
		})
	})
	if err != nil {
		return 0, err
	}

	return eventID, nil
}

func (r EventRegistry) SetActive(ctx context.Context, eventID int64, caller string, active bool) error {
	return updateInTx(ctx, r.db.Conn, sql.LevelSerializable, func(ctx context.Context, tx *sqlx.Tx) error {
		event, err := eventForUpdate(ctx, tx, eventID)
		if err != nil {
			return err
		}
		if event.Organizer != caller {
			return entities.NewLedgerError(entities.ErrUnauthorized, "only the organizer may change event %d", eventID)
		}

		_, err = tx.ExecContext(ctx, `UPDATE ticket_events SET active = $1 WHERE id = $2`, active, eventID)
		if err != nil {
			return fmt.Errorf("could not update event status: %w", err)
		}

		return publishInTx(ctx, tx, entities.EventStatusChanged_v1{
			Header:  entities.NewEventHeader(),
			EventID: eventID,
			Active:  active,
		})
	})
}

func (r EventRegistry) ByID(ctx context.Context, eventID int64) (entities.Event, error) {
	var event entities.Event
	err := r.db.Conn.GetContext(ctx, &event, `
		SELECT id, name, price, total_tickets, tickets_sold, active, organizer, soul_bound, revenue, created_at
		FROM ticket_events
		WHERE id = $1
	`, eventID)
	if errors.Is(err, sql.ErrNoRows) {
		return entities.Event{}, entities.NewLedgerError(entities.ErrNotFound, "event %d does not exist", eventID)
	}
	if err != nil {
		return entities.Event{}, fmt.Errorf("could not get event: %w", err)
	}

	return event, nil
}

func (r EventRegistry) All(ctx context.Context) ([]entities.Event, error) {
	var events []entities.Event
	err := r.db.Conn.SelectContext(ctx, &events, `
		SELECT id, name, price, total_tickets, tickets_sold, active, organizer, soul_bound, revenue, created_at
		FROM ticket_events
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("could not get events: %w", err)
	}

	return events, nil
}

// eventForUpdate locks the event row for the rest of the transaction.
func eventForUpdate(ctx context.Context, tx *sqlx.Tx, eventID int64) (entities.Event, error) {
	var event entities.Event
	err := tx.GetContext(ctx, &event, `
		SELECT id, name, price, total_tickets, tickets_sold, active, organizer, soul_bound, revenue, created_at
		FROM ticket_events
		WHERE id = $1
		FOR UPDATE
	`, eventID)
	if errors.Is(err, sql.ErrNoRows) {
		return entities.Event{}, entities.NewLedgerError(entities.ErrNotFound, "event %d does not exist", eventID)
	}
	if err != nil {
		return entities.Event{}, fmt.Errorf("could not get event for update: %w", err)
	}

	return event, nil
}
