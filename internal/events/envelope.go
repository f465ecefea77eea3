package events

import (
	"time"

	"github.com/google/uuid"
)

// Meta describes an outbound event.
type Meta struct {
	ID            string    `json:"id"`
	Type          string    `json:"type"`
	Time          time.Time `json:"time"`
	Producer      string    `json:"producer"`
	CorrelationID *string   `json:"correlation_id,omitempty"`
}

// Envelope wraps every event published to the broker.
type Envelope struct {
	Meta Meta `json:"meta"`
	Data any  `json:"data"`
}

// NewEnvelope stamps data with a fresh id and the current time.
func NewEnvelope(eventType, producer string, data any) Envelope {
	return Envelope{
		Meta: Meta{
			ID:       uuid.NewString(),
			Type:     eventType,
			Time:     time.Now().UTC(),
			Producer: producer,
		},
		Data: data,
	}
}
