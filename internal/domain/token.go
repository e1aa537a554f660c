package domain

import "time"

// AttributeSet maps identity-provider attribute names to values.
type AttributeSet map[string]string

// Clone returns an independent copy of the set.
func (a AttributeSet) Clone() AttributeSet {
	if a == nil {
		return nil
	}
	out := make(AttributeSet, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// Project returns a copy containing only the named attributes.
// An empty name list keeps the full set.
func (a AttributeSet) Project(names []string) AttributeSet {
	if len(names) == 0 {
		return a.Clone()
	}
	out := make(AttributeSet, len(names))
	for _, name := range names {
		if v, ok := a[name]; ok {
			out[name] = v
		}
	}
	return out
}

// Equal reports field-for-field equality.
func (a AttributeSet) Equal(other AttributeSet) bool {
	if len(a) != len(other) {
		return false
	}
	for k, v := range a {
		if ov, ok := other[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

// TokenRecord is the durable payload associated with an issued token.
// A nil ExpiresAt means the token never expires. Records are never
// mutated after creation; reissuance supersedes them.
type TokenRecord struct {
	Subject    string            `json:"subject"`
	Attributes AttributeSet      `json:"attributes"`
	IssuedAt   time.Time         `json:"issued_at"`
	ExpiresAt  *time.Time        `json:"expires_at,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// Expired reports whether the record's expiry has passed at the given time.
func (r *TokenRecord) Expired(now time.Time) bool {
	return r.ExpiresAt != nil && now.After(*r.ExpiresAt)
}

// Equal reports whether two records describe the same issuance.
func (r *TokenRecord) Equal(other *TokenRecord) bool {
	if r == nil || other == nil {
		return r == other
	}
	if r.Subject != other.Subject || !r.IssuedAt.Equal(other.IssuedAt) {
		return false
	}
	if (r.ExpiresAt == nil) != (other.ExpiresAt == nil) {
		return false
	}
	if r.ExpiresAt != nil && !r.ExpiresAt.Equal(*other.ExpiresAt) {
		return false
	}
	if !r.Attributes.Equal(other.Attributes) {
		return false
	}
	if len(r.Metadata) != len(other.Metadata) {
		return false
	}
	for k, v := range r.Metadata {
		if ov, ok := other.Metadata[k]; !ok || ov != v {
			return false
		}
	}
	return true
}
