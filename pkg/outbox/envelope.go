package outbox

import (
	"encoding/json"
	"time"
)

// PayloadEnvelope is the wire shape published for every outbox event.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"event_id"`
	OccurredAt time.Time       `json:"occurred_at"`
	Data       json.RawMessage `json:"data"`
}
