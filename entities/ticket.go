package entities

// Ticket is a single issued ticket. CheckedInAt is the unix timestamp of the
// check-in, 0 while the ticket has not been checked in. Once set it never
// changes.
type Ticket struct {
	ID          int64  `json:"id" db:"id"`
	EventID     int64  `json:"event_id" db:"event_id"`
	Owner       string `json:"owner" db:"owner"`
	MetadataURI string `json:"metadata_uri" db:"metadata_uri"`
	CheckedInAt int64  `json:"checked_in_at" db:"checked_in_at"`
}

func (t Ticket) CheckedIn() bool {
	return t.CheckedInAt != 0
}

// MintRequest carries everything the minting engine needs to issue one
// ticket. Owner is the caller's address; Payment is the value attached to
// the call.
type MintRequest struct {
	EventID     int64
	Owner       string
	MetadataURI string
	Payment     uint64
}

type TicketMintResponse struct {
	TicketID int64 `json:"ticket_id"`
}

// CheckInRequest is a signed attestation presented by the organizer
// (Caller). Message and Signature originate from the ticket holder's
// wallet; the ledger recovers the signer and compares it to the owner.
type CheckInRequest struct {
	EventID   int64
	TicketID  int64
	Caller    string
	Message   string
	Signature []byte
	Timestamp int64
}
