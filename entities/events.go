package entities

import (
	"time"

	"github.com/google/uuid"
)

type EventHeader struct {
	ID             string    `json:"id"`
	PublishedAt    time.Time `json:"published_at"`
	IdempotencyKey string    `json:"idempotency_key"`
}

func NewEventHeader() EventHeader {
	return EventHeader{
		ID:             uuid.NewString(),
		PublishedAt:    time.Now().UTC(),
		IdempotencyKey: uuid.NewString(),
	}
}

func NewEventHeaderWithIdempotencyKey(idempotencyKey string) EventHeader {
	return EventHeader{
		ID:             uuid.NewString(),
		PublishedAt:    time.Now().UTC(),
		IdempotencyKey: idempotencyKey,
	}
}

type IEvent interface {
	IsInternal() bool
}

// The _v1 events below are the ledger's public event log, one per committed
// mutation. They are written to the outbox in the same transaction as the
// state change, so consumers never observe an event for a rolled-back write.

type EventCreated_v1 struct {
	Header EventHeader `json:"header"`

	EventID      int64  `json:"event_id"`
	Name         string `json:"name"`
	Price        uint64 `json:"price"`
	TotalTickets int    `json:"total_tickets"`
	SoulBound    bool   `json:"soul_bound"`
	Organizer    string `json:"organizer"`
}

func (e EventCreated_v1) IsInternal() bool { return false }

type EventStatusChanged_v1 struct {
	Header EventHeader `json:"header"`

	EventID int64 `json:"event_id"`
	Active  bool  `json:"active"`
}

func (e EventStatusChanged_v1) IsInternal() bool { return false }

type TicketMinted_v1 struct {
	Header EventHeader `json:"header"`

	TicketID    int64  `json:"ticket_id"`
	EventID     int64  `json:"event_id"`
	Owner       string `json:"owner"`
	MetadataURI string `json:"metadata_uri"`
	Payment     uint64 `json:"payment"`
}

func (e TicketMinted_v1) IsInternal() bool { return false }

type TicketCheckedIn_v1 struct {
	Header EventHeader `json:"header"`

	TicketID    int64 `json:"ticket_id"`
	EventID     int64 `json:"event_id"`
	CheckedInAt int64 `json:"checked_in_at"`
}

func (e TicketCheckedIn_v1) IsInternal() bool { return false }

type TicketListed_v1 struct {
	Header EventHeader `json:"header"`

	TicketID int64  `json:"ticket_id"`
	EventID  int64  `json:"event_id"`
	Seller   string `json:"seller"`
	Price    uint64 `json:"price"`
}

func (e TicketListed_v1) IsInternal() bool { return false }

type ListingCancelled_v1 struct {
	Header EventHeader `json:"header"`

	TicketID int64  `json:"ticket_id"`
	Seller   string `json:"seller"`
}

func (e ListingCancelled_v1) IsInternal() bool { return false }

type TicketResold_v1 struct {
	Header EventHeader `json:"header"`

	TicketID int64  `json:"ticket_id"`
	EventID  int64  `json:"event_id"`
	Seller   string `json:"seller"`
	Buyer    string `json:"buyer"`
	Price    uint64 `json:"price"`
}

func (e TicketResold_v1) IsInternal() bool { return false }

type TicketTransferred_v1 struct {
	Header EventHeader `json:"header"`

	TicketID int64  `json:"ticket_id"`
	EventID  int64  `json:"event_id"`
	From     string `json:"from"`
	To       string `json:"to"`
}

func (e TicketTransferred_v1) IsInternal() bool { return false }

type RevenueWithdrawn_v1 struct {
	Header EventHeader `json:"header"`

	EventID   int64  `json:"event_id"`
	Organizer string `json:"organizer"`
	Amount    uint64 `json:"amount"`
}

func (e RevenueWithdrawn_v1) IsInternal() bool { return false }

type InternalEventStatsUpdated struct {
	Header EventHeader `json:"header"`

	EventID int64 `json:"event_id"`
}

func (i InternalEventStatsUpdated) IsInternal() bool { return true }
