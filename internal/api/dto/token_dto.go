package dto

import (
	"time"

	"github.com/spec-kit/token-service/internal/domain"
)

// IssueTokenRequest payload for token issuance. Identity carries either a
// bare subject or a full authentication-provider descriptor; the remaining
// fields are optional caller context.
type IssueTokenRequest struct {
	Identity           string `json:"identity"`
	UserARN            string `json:"user_arn,omitempty"`
	AuthenticationType string `json:"authentication_type,omitempty"`
}

// IssueTokenResponse standard response for successful issuance.
type IssueTokenResponse struct {
	Token     string     `json:"token"`
	IssuedAt  time.Time  `json:"issued_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// TokenRecordResponse exposes a stored record to validators.
type TokenRecordResponse struct {
	Subject    string              `json:"subject"`
	Attributes domain.AttributeSet `json:"attributes"`
	IssuedAt   time.Time           `json:"issued_at"`
	ExpiresAt  *time.Time          `json:"expires_at,omitempty"`
	Metadata   map[string]string   `json:"metadata,omitempty"`
}

// FromRecord maps a domain record into the response shape.
func FromRecord(record *domain.TokenRecord) TokenRecordResponse {
	return TokenRecordResponse{
		Subject:    record.Subject,
		Attributes: record.Attributes,
		IssuedAt:   record.IssuedAt,
		ExpiresAt:  record.ExpiresAt,
		Metadata:   record.Metadata,
	}
}
