package entities

import "encoding/json"

// DataLakeEvent is the raw form every published event is archived in.
type DataLakeEvent struct {
	Header EventHeader `json:"header" db:"-"`

	EventID      string          `json:"event_id" db:"event_id"`
	EventName    string          `json:"event_name" db:"event_name"`
	EventPayload json.RawMessage `json:"event_payload" db:"event_payload"`
}
