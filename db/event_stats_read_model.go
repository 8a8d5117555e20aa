package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"ticketchain/entities"
	"time"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/ThreeDotsLabs/watermill/components/cqrs"
	"github.com/jmoiron/sqlx"
)

// EventStatsReadModel folds the published ledger events into a per-event
// ops view (holders, check-ins, resales). It is updated asynchronously and
// may briefly lag the ledger.
type EventStatsReadModel struct {
	conn     *DB
	eventBus *cqrs.EventBus
}

func NewEventStatsReadModel(db *DB, eventBus *cqrs.EventBus) EventStatsReadModel {
	if db == nil {
		panic("db is nil")
	}
	return EventStatsReadModel{
		conn:     db,
		eventBus: eventBus,
	}
}

func (r EventStatsReadModel) OnEventCreated(ctx context.Context, event *entities.EventCreated_v1) error {
	// first event of every ticketed event, creates the model
	err := r.createReadModel(ctx, entities.EventStats{
		EventID:    event.EventID,
		Name:       event.Name,
		SoulBound:  event.SoulBound,
		Organizer:  event.Organizer,
		Tickets:    map[string]entities.TicketStats{},
		LastUpdate: time.Now(),
	})
	if err != nil {
		return fmt.Errorf("could not create read model: %w", err)
	}

	return nil
}

func (r EventStatsReadModel) OnTicketMinted(ctx context.Context, event *entities.TicketMinted_v1) error {
	return r.updateReadModel(ctx, event.EventID, func(rm entities.EventStats) (entities.EventStats, error) {
		rm.TicketsSold++
		rm.Tickets[ticketKey(event.TicketID)] = entities.TicketStats{
			Owner:       event.Owner,
			MetadataURI: event.MetadataURI,
		}
		return rm, nil
	})
}

func (r EventStatsReadModel) OnTicketCheckedIn(ctx context.Context, event *entities.TicketCheckedIn_v1) error {
	return r.updateReadModel(ctx, event.EventID, func(rm entities.EventStats) (entities.EventStats, error) {
		ticket, ok := rm.Tickets[ticketKey(event.TicketID)]
		if !ok {
			log.FromContext(ctx).
				WithField("ticket_id", event.TicketID).
				Debug("Check-in for ticket not yet in read model")
		}

		if ticket.CheckedInAt == 0 {
			rm.CheckedIn++
		}
		ticket.CheckedInAt = event.CheckedInAt
		rm.Tickets[ticketKey(event.TicketID)] = ticket

		return rm, nil
	})
}

func (r EventStatsReadModel) OnTicketResold(ctx context.Context, event *entities.TicketResold_v1) error {
	return r.updateReadModel(ctx, event.EventID, func(rm entities.EventStats) (entities.EventStats, error) {
		ticket := rm.Tickets[ticketKey(event.TicketID)]
		ticket.Owner = event.Buyer
		ticket.Resales++
		rm.Tickets[ticketKey(event.TicketID)] = ticket
		rm.Resales++

		return rm, nil
	})
}

func (r EventStatsReadModel) OnTicketTransferred(ctx context.Context, event *entities.TicketTransferred_v1) error {
	return r.updateReadModel(ctx, event.EventID, func(rm entities.EventStats) (entities.EventStats, error) {
		ticket := rm.Tickets[ticketKey(event.TicketID)]
		ticket.Owner = event.To
		rm.Tickets[ticketKey(event.TicketID)] = ticket

		return rm, nil
	})
}

func (r EventStatsReadModel) OnRevenueWithdrawn(ctx context.Context, event *entities.RevenueWithdrawn_v1) error {
	return r.updateReadModel(ctx, event.EventID, func(rm entities.EventStats) (entities.EventStats, error) {
		rm.RevenueWithdrawn += event.Amount
		return rm, nil
	})
}

func (r EventStatsReadModel) GetAll(ctx context.Context) ([]entities.EventStats, error) {
	rows, err := r.conn.Conn.QueryContext(ctx, `
		SELECT payload FROM read_model_event_stats ORDER BY event_id
	`)
	if err != nil {
		return nil, fmt.Errorf("could not get read models: %w", err)
	}
	defer rows.Close()

	var stats []entities.EventStats
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}

		rm, err := r.unmarshalReadModelFromDB(payload)
		if err != nil {
			return nil, err
		}
		stats = append(stats, rm)
	}

	return stats, rows.Err()
}

func (r EventStatsReadModel) GetByID(ctx context.Context, eventID int64) (entities.EventStats, error) {
	var payload []byte
	err := r.conn.Conn.QueryRowContext(
		ctx,
		`SELECT payload FROM read_model_event_stats WHERE event_id = $1`,
		eventID,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return entities.EventStats{}, entities.NewLedgerError(entities.ErrNotFound, "no stats for event %d", eventID)
	}
	if err != nil {
		return entities.EventStats{}, fmt.Errorf("could not get read model: %w", err)
	}

	return r.unmarshalReadModelFromDB(payload)
}

func (r EventStatsReadModel) createReadModel(ctx context.Context, stats entities.EventStats) error {
	payload, err := json.Marshal(stats)
	if err != nil {
		return err
	}

	_, err = r.conn.Conn.ExecContext(ctx, `
		INSERT INTO read_model_event_stats (event_id, payload)
		VALUES ($1, $2)
		ON CONFLICT (event_id) DO NOTHING; -- the model may already exist when events are redelivered
	`, stats.EventID, payload)
	if err != nil {
		return fmt.Errorf("could not create read model: %w", err)
	}

	return nil
}

func (r EventStatsReadModel) updateReadModel(
	ctx context.Context,
	eventID int64,
	updateFunc func(rm entities.EventStats) (entities.EventStats, error),
) error {
	err := updateInTx(ctx,
		r.conn.Conn,
		sql.LevelRepeatableRead,
		func(ctx context.Context, tx *sqlx.Tx) error {
			rm, err := r.findModelByEventID(ctx, tx, eventID)
			if errors.Is(err, sql.ErrNoRows) {
				// events arrived out of order - spin until EventCreated built the model
				return fmt.Errorf("read model for event %d does not exist yet", eventID)
			} else if err != nil {
				return fmt.Errorf("could not find read model: %w", err)
			}

			updatedRm, err := updateFunc(rm)
			if err != nil {
				return err
			}

			return r.updateModel(ctx, tx, updatedRm)
		},
	)
	if err != nil {
		return err
	}

	if r.eventBus != nil {
		err = r.eventBus.Publish(ctx, entities.InternalEventStatsUpdated{
			Header:  entities.NewEventHeader(),
			EventID: eventID,
		})
		if err != nil {
			return fmt.Errorf("could not publish internal event: %w", err)
		}
	}

	return nil
}

func (r EventStatsReadModel) updateModel(ctx context.Context, tx *sqlx.Tx, stats entities.EventStats) error {
	stats.LastUpdate = time.Now()

	payload, err := json.Marshal(stats)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO read_model_event_stats (event_id, payload)
		VALUES ($1, $2)
		ON CONFLICT (event_id) DO UPDATE SET payload = excluded.payload;
	`, stats.EventID, payload)
	if err != nil {
		return fmt.Errorf("could not update read model: %w", err)
	}

	return nil
}

func (r EventStatsReadModel) findModelByEventID(ctx context.Context, tx *sqlx.Tx, eventID int64) (entities.EventStats, error) {
	var payload []byte

	err := tx.QueryRowContext(
		ctx,
		`SELECT payload FROM read_model_event_stats WHERE event_id = $1 FOR UPDATE`,
		eventID,
	).Scan(&payload)
	if err != nil {
		return entities.EventStats{}, err
	}

	return r.unmarshalReadModelFromDB(payload)
}

func (r EventStatsReadModel) unmarshalReadModelFromDB(payload []byte) (entities.EventStats, error) {
	var stats entities.EventStats

	err := json.Unmarshal(payload, &stats)
	if err != nil {
		return entities.EventStats{}, err
	}

	if stats.Tickets == nil {
		stats.Tickets = map[string]entities.TicketStats{}
	}
	return stats, nil
}

func ticketKey(ticketID int64) string {
	return strconv.FormatInt(ticketID, 10)
}
