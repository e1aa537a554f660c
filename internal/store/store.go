package store

import (
	"context"

	"github.com/spec-kit/token-service/internal/domain"
	"github.com/spec-kit/token-service/internal/token"
	"github.com/spec-kit/token-service/pkg/util"
)

// TokenStore persists issued token records keyed by the token string.
//
// Put is idempotent: writing the same (token, record) pair twice leaves the
// store unchanged. Writing an existing token with a different record fails
// with a TOKEN_COLLISION error. Get returns NOT_FOUND for unknown tokens.
type TokenStore interface {
	Put(ctx context.Context, token string, record *domain.TokenRecord) error
	Get(ctx context.Context, token string) (*domain.TokenRecord, error)
	Ping(ctx context.Context) error
}

// resolveExisting decides the outcome of a first-writer-wins conflict.
// Every driver reaches this point the same way: the backend refused the
// write because the token key is taken, and the existing row has been read
// back. An identical record means the earlier put already succeeded;
// a divergent record is a collision.
func resolveExisting(tok string, existing, attempted *domain.TokenRecord) error {
	if existing.Equal(attempted) {
		return nil
	}
	return util.NewTokenCollision(token.Fingerprint(tok))
}
