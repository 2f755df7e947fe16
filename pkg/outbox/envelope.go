package outbox

import (
	"encoding/json"
	"time"
)

// ActorRef identifies who produced the event (a picker badge, a scan
// station, or a system worker).
type ActorRef struct {
	Actor   string `json:"actor"`
	Station string `json:"station,omitempty"`
}

// PayloadEnvelope is the stable payload structure stored in outbox_events.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}
