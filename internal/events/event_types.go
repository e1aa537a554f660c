package events

import "time"

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTokenIssued    EventType = "token_issued"
	EventIssuanceFailed EventType = "issuance_failed"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	Subject   string      `json:"subject"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TokenIssuedPayload payload. Carries the token fingerprint, never the
// token itself.
type TokenIssuedPayload struct {
	TokenFingerprint string     `json:"token_fingerprint"`
	IssuedAt         time.Time  `json:"issued_at"`
	ExpiresAt        *time.Time `json:"expires_at,omitempty"`
	AttributeCount   int        `json:"attribute_count"`
}

// IssuanceFailedPayload payload.
type IssuanceFailedPayload struct {
	Code string `json:"code"`
}
