package event

import (
	"fmt"
	"ticketchain/entities"

	"github.com/ThreeDotsLabs/watermill/components/cqrs"
	"github.com/ThreeDotsLabs/watermill/message"
)

func NewBus(pub message.Publisher) *cqrs.EventBus {
	eventBus, err := cqrs.NewEventBusWithConfig(
		pub,
		cqrs.EventBusConfig{
			GeneratePublishTopic: func(params cqrs.GenerateEventPublishTopicParams) (string, error) {
				event, ok := params.Event.(entities.IEvent)
				if !ok {
					return "", fmt.Errorf("invalid event type: %T doesn't implement entities.IEvent", params.Event)
				}

				return TopicFor(event.IsInternal(), params.EventName), nil
			},
			Marshaler: Marshaler,
		},
	)
	if err != nil {
		panic(err)
	}

	return eventBus
}

// TopicFor keeps publish and subscribe topic generation in one place, so
// the bus and the processors can never drift apart.
func TopicFor(internal bool, eventName string) string {
	if internal {
		return "internal-events.svc-ticketchain." + eventName
	}
	return "events." + eventName
}
