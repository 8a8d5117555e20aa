package db

import (
	"context"
	"fmt"
	"ticketchain/entities"
)

type IDataLakeRepository interface {
	Store(ctx context.Context, event entities.DataLakeEvent) error
	GetAll(ctx context.Context) ([]entities.DataLakeEvent, error)
}

// DataLakeRepository archives every published ledger event. The archive is
// append-only and is the source the read models are rebuilt from.
type DataLakeRepository struct {
	db *DB
}

func NewDataLakeRepository(db *DB) DataLakeRepository {
	if db == nil {
		panic("db is nil")
	}
	return DataLakeRepository{
		db: db,
	}
}

func (r DataLakeRepository) Store(ctx context.Context, event entities.DataLakeEvent) error {
	_, err := r.db.Conn.ExecContext(ctx, `
		INSERT INTO events (event_id, published_at, event_name, event_payload)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (event_id) DO NOTHING
	`, event.EventID, event.Header.PublishedAt, event.EventName, []byte(event.EventPayload))
	if err != nil {
		return fmt.Errorf("could not store event in data lake: %w", err)
	}

	return nil
}

func (r DataLakeRepository) GetAll(ctx context.Context) ([]entities.DataLakeEvent, error) {
	rows, err := r.db.Conn.QueryContext(ctx, `
		SELECT event_id, published_at, event_name, event_payload
		FROM events
		ORDER BY published_at
	`)
	if err != nil {
		return nil, fmt.Errorf("could not get events from data lake: %w", err)
	}
	defer rows.Close()

	var events []entities.DataLakeEvent
	for rows.Next() {
		var event entities.DataLakeEvent
		if err := rows.Scan(&event.EventID, &event.Header.PublishedAt, &event.EventName, (*[]byte)(&event.EventPayload)); err != nil {
			return nil, fmt.Errorf("could not scan data lake event: %w", err)
		}
		events = append(events, event)
	}

	return events, rows.Err()
}
