package webhooks

import (
	"encoding/json"
	"time"
)

// EndpointStatus is the lifecycle state of a webhook endpoint.
type EndpointStatus string

const (
	EndpointActive   EndpointStatus = "ACTIVE"
	EndpointDisabled EndpointStatus = "DISABLED"
)

// Endpoint is a subscriber URL registered by an organization. EventTypes
// holds the event names the endpoint receives; "*" subscribes to everything.
type Endpoint struct {
	ID             string
	OrganizationID string
	URL            string
	Secret         string
	EventTypes     []string
	Status         EndpointStatus
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Subscribed reports whether the endpoint wants events of the given type.
func (e Endpoint) Subscribed(eventType string) bool {
	for _, t := range e.EventTypes {
		if t == "*" || t == eventType {
			return true
		}
	}
	return false
}

// Delivery is one pending event for one endpoint. EventID is shared across
// the fan-out of a single publish; the pair (EventID, EndpointID) is unique.
type Delivery struct {
	EventID    string          `json:"eventId"`
	EndpointID string          `json:"endpointId"`
	URL        string          `json:"url"`
	Secret     string          `json:"secret"`
	EventType  string          `json:"eventType"`
	OccurredAt time.Time       `json:"occurredAt"`
	Body       json.RawMessage `json:"body"`
}
