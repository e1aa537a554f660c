package token

import (
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/spec-kit/token-service/internal/config"
	"github.com/spec-kit/token-service/internal/domain"
	"github.com/spec-kit/token-service/pkg/util"
)

// Builder assembles immutable token records and their opaque token strings.
type Builder struct {
	ttl        time.Duration
	format     string
	secret     []byte
	projection []string
}

// NewBuilder builds a Builder from token configuration.
func NewBuilder(cfg config.TokenConfig) *Builder {
	return &Builder{
		ttl:        cfg.TTL(),
		format:     cfg.Format,
		secret:     []byte(cfg.JWTSecret),
		projection: cfg.Projection,
	}
}

// Claims describes the JWT payload for the jwt token format.
type Claims struct {
	Attributes domain.AttributeSet `json:"attributes,omitempty"`
	jwt.RegisteredClaims
}

// Build stamps a record for the subject at the given time and derives the
// token string. A zero ttl leaves the record without expiry. Two builds for
// the same subject always yield distinct tokens: both formats embed a fresh
// random identifier.
func (b *Builder) Build(userID string, attrs domain.AttributeSet, now time.Time, metadata map[string]string) (string, *domain.TokenRecord, error) {
	if userID == "" {
		return "", nil, util.NewInvalidIdentity("")
	}
	if attrs == nil {
		attrs = domain.AttributeSet{}
	}

	record := &domain.TokenRecord{
		Subject:    userID,
		Attributes: attrs.Project(b.projection),
		IssuedAt:   now.UTC(),
		Metadata:   metadata,
	}
	if b.ttl > 0 {
		expiresAt := record.IssuedAt.Add(b.ttl)
		record.ExpiresAt = &expiresAt
	}

	tok, err := b.derive(record)
	if err != nil {
		return "", nil, util.NewInternalError(err)
	}
	return tok, record, nil
}

func (b *Builder) derive(record *domain.TokenRecord) (string, error) {
	if b.format != config.TokenFormatJWT {
		// uuid v4 is backed by crypto/rand.
		return uuid.NewString(), nil
	}

	claims := &Claims{
		Attributes: record.Attributes,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  record.Subject,
			ID:       uuid.NewString(),
			IssuedAt: jwt.NewNumericDate(record.IssuedAt),
		},
	}
	if record.ExpiresAt != nil {
		claims.ExpiresAt = jwt.NewNumericDate(*record.ExpiresAt)
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(b.secret)
}
