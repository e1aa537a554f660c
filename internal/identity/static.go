package identity

import (
	"context"

	"github.com/spec-kit/token-service/internal/domain"
	"github.com/spec-kit/token-service/pkg/util"
)

// StaticFetcher serves attributes from a fixed in-memory table. Used by the
// memory store driver in local development and by tests.
type StaticFetcher struct {
	users map[string]domain.AttributeSet
}

// NewStaticFetcher builds a fetcher over the given identity table.
func NewStaticFetcher(users map[string]domain.AttributeSet) *StaticFetcher {
	if users == nil {
		users = map[string]domain.AttributeSet{}
	}
	return &StaticFetcher{users: users}
}

// Fetch returns a copy of the configured attributes for the identity.
func (f *StaticFetcher) Fetch(_ context.Context, userID string) (domain.AttributeSet, error) {
	if userID == "" {
		return nil, util.NewInvalidIdentity("")
	}
	attrs, ok := f.users[userID]
	if !ok {
		return nil, util.NewIdentityNotFound(userID)
	}
	return attrs.Clone(), nil
}
