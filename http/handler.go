package http

import (
	"context"

	"ticketchain/entities"
)

type Handler struct {
	eventRegistry   EventRegistry
	ticketRepo      TicketRepository
	marketRepo      MarketRepository
	revenueRepo     RevenueRepository
	payoutRepo      PayoutRepository
	checkInVerifier CheckInVerifier
	eventStatsRepo  EventStatsRepository
}

type EventRegistry interface {
	Create(ctx context.Context, event entities.Event) (int64, error)
	SetActive(ctx context.Context, eventID int64, caller string, active bool) error
	ByID(ctx context.Context, eventID int64) (entities.Event, error)
	All(ctx context.Context) ([]entities.Event, error)
}

type TicketRepository interface {
	Mint(ctx context.Context, mint entities.MintRequest) (int64, error)
	Transfer(ctx context.Context, ticketID int64, caller, to string) error
	ByID(ctx context.Context, ticketID int64) (entities.Ticket, error)
	ByEvent(ctx context.Context, eventID int64) ([]entities.Ticket, error)
	Holders(ctx context.Context, eventID int64) ([]string, error)
}

type MarketRepository interface {
	List(ctx context.Context, ticketID int64, caller string, price uint64) error
	Cancel(ctx context.Context, ticketID int64, caller string) error
	Buy(ctx context.Context, ticketID int64, buyer string, payment uint64) error
	ListingByTicket(ctx context.Context, ticketID int64) (entities.Listing, error)
}

type RevenueRepository interface {
	Revenue(ctx context.Context, eventID int64) (uint64, error)
	Withdraw(ctx context.Context, eventID int64, caller string) (uint64, error)
}

type PayoutRepository interface {
	Balance(ctx context.Context, address string) (entities.Payout, error)
}

type CheckInVerifier interface {
	CheckIn(ctx context.Context, req entities.CheckInRequest) error
}

type EventStatsRepository interface {
	GetAll(ctx context.Context) ([]entities.EventStats, error)
	GetByID(ctx context.Context, eventID int64) (entities.EventStats, error)
}
