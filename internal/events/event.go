package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Type names a property lifecycle event.
type Type string

const (
	PropertyListed   Type = "property.listed"
	PropertyUpdated  Type = "property.updated"
	PropertyDelisted Type = "property.delisted"
)

// PropertyEvent is the payload published after a successful ledger round trip.
type PropertyEvent struct {
	Type            Type      `json:"type"`
	PropertyID      uuid.UUID `json:"propertyId"`
	LedgerID        *int64    `json:"ledgerId,omitempty"`
	OwnerAddress    string    `json:"ownerAddress"`
	RentAmount      int64     `json:"rentAmount"`
	SecurityDeposit int64     `json:"securityDeposit"`
	IsAvailable     bool      `json:"isAvailable"`
	IsActive        bool      `json:"isActive"`
}

// Envelope wraps every published payload.
type Envelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Data       json.RawMessage `json:"data"`
}

const envelopeVersion = 1

func newEnvelope(ev PropertyEvent, now time.Time) (Envelope, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		Version:    envelopeVersion,
		EventID:    uuid.NewString(),
		OccurredAt: now.UTC(),
		Data:       data,
	}, nil
}
