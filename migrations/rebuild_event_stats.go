package migrations

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ticketchain/db"
	"ticketchain/entities"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/sirupsen/logrus"
)

// RebuildEventStats replays the data lake into the event stats read model.
// It is safe to run against a populated model: creation is idempotent and
// the per-ticket counters are folded in event order.
func RebuildEventStats(ctx context.Context, dl db.IDataLakeRepository, rm db.EventStatsReadModel) error {
	var events []entities.DataLakeEvent

	logger := log.FromContext(ctx)
	logger.Info("Rebuilding event stats read model")

	timeout := time.Now().Add(time.Second * 10)

	// events are not immediately available in the data lake, so we need to wait for them
	for {
		var err error
		events, err = dl.GetAll(ctx)
		if err != nil {
			return fmt.Errorf("could not get events from data lake: %w", err)
		}
		if len(events) > 0 {
			break
		}

		if time.Now().After(timeout) {
			return fmt.Errorf("timeout while waiting for events in data lake")
		}

		time.Sleep(time.Millisecond * 100)
	}

	logger.WithField("events_count", len(events)).Info("Has events to replay")

	for _, event := range events {
		start := time.Now()

		logger := log.FromContext(ctx)
		logger.WithFields(logrus.Fields{
			"event_name": event.EventName,
			"event_id":   event.EventID,
		}).Info("Replaying event")

		err := replayEvent(ctx, event, rm)
		if err != nil {
			return fmt.Errorf("could not replay event %s (%s): %w", event.EventID, event.EventName, err)
		}

		logger.WithField("duration", time.Since(start)).Info("Event replayed")
	}

	return nil
}

func replayEvent(ctx context.Context, event entities.DataLakeEvent, rm db.EventStatsReadModel) error {
	switch event.EventName {
	case "EventCreated_v1":
		created, err := unmarshalDataLakeEvent[entities.EventCreated_v1](event)
		if err != nil {
			return err
		}
		return rm.OnEventCreated(ctx, created)
	case "TicketMinted_v1":
		minted, err := unmarshalDataLakeEvent[entities.TicketMinted_v1](event)
		if err != nil {
			return err
		}
		return rm.OnTicketMinted(ctx, minted)
	case "TicketCheckedIn_v1":
		checkedIn, err := unmarshalDataLakeEvent[entities.TicketCheckedIn_v1](event)
		if err != nil {
			return err
		}
		return rm.OnTicketCheckedIn(ctx, checkedIn)
	case "TicketResold_v1":
		resold, err := unmarshalDataLakeEvent[entities.TicketResold_v1](event)
		if err != nil {
			return err
		}
		return rm.OnTicketResold(ctx, resold)
	case "TicketTransferred_v1":
		transferred, err := unmarshalDataLakeEvent[entities.TicketTransferred_v1](event)
		if err != nil {
			return err
		}
		return rm.OnTicketTransferred(ctx, transferred)
	case "RevenueWithdrawn_v1":
		withdrawn, err := unmarshalDataLakeEvent[entities.RevenueWithdrawn_v1](event)
		if err != nil {
			return err
		}
		return rm.OnRevenueWithdrawn(ctx, withdrawn)
	case "EventStatusChanged_v1", "TicketListed_v1", "ListingCancelled_v1":
		// archived but not part of the stats view
		return nil
	default:
		return fmt.Errorf("unknown event %s", event.EventName)
	}
}

func unmarshalDataLakeEvent[T any](event entities.DataLakeEvent) (*T, error) {
	eventInstance := new(T)

	err := json.Unmarshal(event.EventPayload, &eventInstance)
	if err != nil {
		return nil, fmt.Errorf("could not unmarshal event %s: %w", event.EventName, err)
	}

	return eventInstance, nil
}
