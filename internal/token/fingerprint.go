package token

import (
	"crypto/sha256"
	"encoding/base64"
)

// Fingerprint returns a stable digest of a token, safe to log and to hand
// to audit consumers. Raw token values must never appear in logs.
func Fingerprint(token string) string {
	hash := sha256.Sum256([]byte(token))
	return base64.StdEncoding.EncodeToString(hash[:])
}
