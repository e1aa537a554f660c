package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAttributeSetProject(t *testing.T) {
	attrs := AttributeSet{"email": "a@example.com", "role": "admin", "sub": "user-42"}

	projected := attrs.Project([]string{"email", "role", "missing"})
	assert.Equal(t, AttributeSet{"email": "a@example.com", "role": "admin"}, projected)

	full := attrs.Project(nil)
	assert.Equal(t, attrs, full)

	// projection returns a copy, not a view
	full["email"] = "mutated"
	assert.Equal(t, "a@example.com", attrs["email"])
}

func TestTokenRecordExpired(t *testing.T) {
	now := time.Now()

	record := &TokenRecord{Subject: "user-42", IssuedAt: now}
	assert.False(t, record.Expired(now.Add(100*365*24*time.Hour)), "no expiry means never expired")

	expiresAt := now.Add(time.Hour)
	record.ExpiresAt = &expiresAt
	assert.False(t, record.Expired(now))
	assert.True(t, record.Expired(now.Add(2*time.Hour)))
}

func TestTokenRecordEqual(t *testing.T) {
	now := time.Now().UTC()
	expiresAt := now.Add(time.Hour)

	base := &TokenRecord{
		Subject:    "user-42",
		Attributes: AttributeSet{"email": "a@example.com"},
		IssuedAt:   now,
		ExpiresAt:  &expiresAt,
		Metadata:   map[string]string{"role_name": "admin"},
	}
	same := &TokenRecord{
		Subject:    "user-42",
		Attributes: AttributeSet{"email": "a@example.com"},
		IssuedAt:   now,
		ExpiresAt:  &expiresAt,
		Metadata:   map[string]string{"role_name": "admin"},
	}
	assert.True(t, base.Equal(same))

	otherSubject := *same
	otherSubject.Subject = "user-43"
	assert.False(t, base.Equal(&otherSubject))

	otherAttrs := *same
	otherAttrs.Attributes = AttributeSet{"email": "b@example.com"}
	assert.False(t, base.Equal(&otherAttrs))

	noExpiry := *same
	noExpiry.ExpiresAt = nil
	assert.False(t, base.Equal(&noExpiry))
}
