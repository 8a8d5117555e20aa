package message

import (
	"encoding/json"
	"fmt"

	"ticketchain/db"
	"ticketchain/entities"
	"ticketchain/message/event"
	"ticketchain/message/outbox"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/components/cqrs"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/redis/go-redis/v9"
)

// archivedEvents lists every event that gets a copy in the data lake.
var archivedEvents = []entities.IEvent{
	entities.EventCreated_v1{},
	entities.EventStatusChanged_v1{},
	entities.TicketMinted_v1{},
	entities.TicketCheckedIn_v1{},
	entities.TicketListed_v1{},
	entities.ListingCancelled_v1{},
	entities.TicketResold_v1{},
	entities.TicketTransferred_v1{},
	entities.RevenueWithdrawn_v1{},
}

func NewWatermillRouter(
	pgSubscriber message.Subscriber,
	redisClient *redis.Client,
	publisher message.Publisher,
	eventProcessorConfig cqrs.EventProcessorConfig,
	statsReadModel db.EventStatsReadModel,
	dataLakeRepo db.IDataLakeRepository,
	watermillLogger watermill.LoggerAdapter,
) *message.Router {
	router, err := message.NewRouter(message.RouterConfig{}, watermillLogger)
	if err != nil {
		panic(err)
	}

	useMiddlewares(router, watermillLogger)

	_, err = outbox.NewForwarder(pgSubscriber, publisher, watermillLogger, router)
	if err != nil {
		panic(err)
	}

	eventProcessor, err := cqrs.NewEventProcessorWithConfig(router, eventProcessorConfig)
	if err != nil {
		panic(err)
	}

	err = eventProcessor.AddHandlers(
		cqrs.NewEventHandler(
			"StatsOnEventCreated",
			statsReadModel.OnEventCreated,
		),
		cqrs.NewEventHandler(
			"StatsOnTicketMinted",
			statsReadModel.OnTicketMinted,
		),
		cqrs.NewEventHandler(
			"StatsOnTicketCheckedIn",
			statsReadModel.OnTicketCheckedIn,
		),
		cqrs.NewEventHandler(
			"StatsOnTicketResold",
			statsReadModel.OnTicketResold,
		),
		cqrs.NewEventHandler(
			"StatsOnTicketTransferred",
			statsReadModel.OnTicketTransferred,
		),
		cqrs.NewEventHandler(
			"StatsOnRevenueWithdrawn",
			statsReadModel.OnRevenueWithdrawn,
		),
	)
	if err != nil {
		panic(err)
	}

	addDataLakeHandlers(router, redisClient, dataLakeRepo, watermillLogger)

	return router
}

// addDataLakeHandlers subscribes to every published topic with a dedicated
// consumer group and archives the raw payloads.
func addDataLakeHandlers(
	router *message.Router,
	redisClient *redis.Client,
	dataLakeRepo db.IDataLakeRepository,
	watermillLogger watermill.LoggerAdapter,
) {
	sub := NewRedisSubscriber(redisClient, "svc-ticketchain.events.archive", watermillLogger)

	for _, e := range archivedEvents {
		eventName := event.Marshaler.Name(e)

		router.AddNoPublisherHandler(
			"archive."+eventName,
			event.TopicFor(false, eventName),
			sub,
			storeToDataLake(dataLakeRepo, eventName),
		)
	}
}

func storeToDataLake(dataLakeRepo db.IDataLakeRepository, eventName string) message.NoPublishHandlerFunc {
	return func(msg *message.Message) error {
		var envelope struct {
			Header entities.EventHeader `json:"header"`
		}
		if err := json.Unmarshal(msg.Payload, &envelope); err != nil {
			return fmt.Errorf("could not decode %s header: %w", eventName, err)
		}

		return dataLakeRepo.Store(msg.Context(), entities.DataLakeEvent{
			Header:       envelope.Header,
			EventID:      envelope.Header.ID,
			EventName:    eventName,
			EventPayload: json.RawMessage(msg.Payload),
		})
	}
}
