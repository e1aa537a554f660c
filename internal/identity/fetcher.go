package identity

import (
	"context"

	"github.com/spec-kit/token-service/internal/domain"
)

// Fetcher retrieves the authoritative attribute set for a user identity.
// Implementations must not cache: every call re-fetches so attributes are
// fresh at issuance time.
type Fetcher interface {
	Fetch(ctx context.Context, userID string) (domain.AttributeSet, error)
}
