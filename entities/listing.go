package entities

// Listing is an offer by the current owner to sell a ticket at a fixed
// price. At most one active listing exists per ticket.
type Listing struct {
	TicketID int64  `json:"ticket_id" db:"ticket_id"`
	Seller   string `json:"seller" db:"seller"`
	Price    uint64 `json:"price" db:"price"`
	Active   bool   `json:"active" db:"active"`
}

// Payout is the withdrawable balance of an address. Funds only leave the
// ledger through payout credits, never as a side effect of another write.
type Payout struct {
	Address string `json:"address" db:"address"`
	Balance uint64 `json:"balance" db:"balance"`
}
