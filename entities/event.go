package entities

import "time"

// Event is a ticketed event on the ledger. Prices and revenue are kept in
// the smallest currency unit.
type Event struct {
	ID           int64     `json:"id" db:"id"`
	Name         string    `json:"name" db:"name"`
	Price        uint64    `json:"price" db:"price"`
	TotalTickets int       `json:"total_tickets" db:"total_tickets"`
	TicketsSold  int       `json:"tickets_sold" db:"tickets_sold"`
	Active       bool      `json:"active" db:"active"`
	Organizer    string    `json:"organizer" db:"organizer"`
	SoulBound    bool      `json:"soul_bound" db:"soul_bound"`
	Revenue      uint64    `json:"revenue" db:"revenue"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

func (e Event) SoldOut() bool {
	return e.TicketsSold >= e.TotalTickets
}

type EventCreateResponse struct {
	EventID int64 `json:"event_id"`
}
