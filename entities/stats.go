package entities

import "time"

// EventStats is the ops read model of a single ticketed event, maintained
// asynchronously from the published events. It is eventually consistent
// with the ledger and rebuildable from the data lake.
type EventStats struct {
	EventID   int64  `json:"event_id"`
	Name      string `json:"name"`
	SoulBound bool   `json:"soul_bound"`
	Organizer string `json:"organizer"`

	TicketsSold      int    `json:"tickets_sold"`
	CheckedIn        int    `json:"checked_in"`
	Resales          int    `json:"resales"`
	RevenueWithdrawn uint64 `json:"revenue_withdrawn"`

	Tickets map[string]TicketStats `json:"tickets"`

	LastUpdate time.Time `json:"last_update"`
}

type TicketStats struct {
	Owner       string `json:"owner"`
	MetadataURI string `json:"metadata_uri"`
	CheckedInAt int64  `json:"checked_in_at"`
	Resales     int    `json:"resales"`
}
