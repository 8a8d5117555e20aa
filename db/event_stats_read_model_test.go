package db

import (
	"context"
	"testing"

	"ticketchain/entities"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventStatsReadModel(t *testing.T) {
	db := getDb(t)
	rm := NewEventStatsReadModel(db, nil)
	ctx := context.Background()

	organizer := newAddress(t)
	holder := newAddress(t)
	buyer := newAddress(t)

	// no consumers run in this test, the handlers are invoked directly
	eventID := createTestEvent(t, db, organizer, 0, 100, false)

	err := rm.OnTicketMinted(ctx, &entities.TicketMinted_v1{
		Header: entities.NewEventHeader(), TicketID: 1, EventID: eventID, Owner: holder,
	})
	require.Error(t, err, "updates before EventCreated must be retried")

	err = rm.OnEventCreated(ctx, &entities.EventCreated_v1{
		Header:       entities.NewEventHeader(),
		EventID:      eventID,
		Name:         "stats event",
		TotalTickets: 100,
		Organizer:    organizer,
	})
	require.NoError(t, err)

	// redelivery of the creating event is a no-op
	err = rm.OnEventCreated(ctx, &entities.EventCreated_v1{
		Header:  entities.NewEventHeader(),
		EventID: eventID,
		Name:    "stats event duplicate",
	})
	require.NoError(t, err)

	require.NoError(t, rm.OnTicketMinted(ctx, &entities.TicketMinted_v1{
		Header: entities.NewEventHeader(), TicketID: 1, EventID: eventID, Owner: holder, MetadataURI: "ipfs://1",
	}))
	require.NoError(t, rm.OnTicketMinted(ctx, &entities.TicketMinted_v1{
		Header: entities.NewEventHeader(), TicketID: 2, EventID: eventID, Owner: holder, MetadataURI: "ipfs://2",
	}))
	require.NoError(t, rm.OnTicketResold(ctx, &entities.TicketResold_v1{
		Header: entities.NewEventHeader(), TicketID: 2, EventID: eventID, Seller: holder, Buyer: buyer, Price: 70,
	}))
	require.NoError(t, rm.OnTicketCheckedIn(ctx, &entities.TicketCheckedIn_v1{
		Header: entities.NewEventHeader(), TicketID: 1, EventID: eventID, CheckedInAt: 1700000000,
	}))
	require.NoError(t, rm.OnRevenueWithdrawn(ctx, &entities.RevenueWithdrawn_v1{
		Header: entities.NewEventHeader(), EventID: eventID, Organizer: organizer, Amount: 450,
	}))

	stats, err := rm.GetByID(ctx, eventID)
	require.NoError(t, err)

	assert.Equal(t, "stats event", stats.Name)
	assert.Equal(t, organizer, stats.Organizer)
	assert.Equal(t, 2, stats.TicketsSold)
	assert.Equal(t, 1, stats.CheckedIn)
	assert.Equal(t, 1, stats.Resales)
	assert.Equal(t, uint64(450), stats.RevenueWithdrawn)

	assert.Equal(t, holder, stats.Tickets["1"].Owner)
	assert.Equal(t, int64(1700000000), stats.Tickets["1"].CheckedInAt)
	assert.Equal(t, buyer, stats.Tickets["2"].Owner)
	assert.Equal(t, 1, stats.Tickets["2"].Resales)

	all, err := rm.GetAll(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, all)

	_, err = rm.GetByID(ctx, 999999999)
	assertKind(t, err, entities.ErrNotFound)
}
