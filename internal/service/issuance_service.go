package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/token-service/internal/config"
	"github.com/spec-kit/token-service/internal/domain"
	"github.com/spec-kit/token-service/internal/events"
	"github.com/spec-kit/token-service/internal/identity"
	"github.com/spec-kit/token-service/internal/retry"
	"github.com/spec-kit/token-service/internal/store"
	"github.com/spec-kit/token-service/internal/token"
	"github.com/spec-kit/token-service/pkg/util"
)

// IssueRequest describes one issuance invocation. Identity carries either a
// bare subject or a full Cognito authentication-provider descriptor; the
// remaining fields are optional caller context persisted as record metadata.
type IssueRequest struct {
	Identity           string
	CallerARN          string
	AuthenticationType string
}

// IssueResult is the outcome of a successful issuance.
type IssueResult struct {
	Token  string
	Record *domain.TokenRecord
}

// IssuanceService sequences attribute fetch, token build, and store write.
// Each invocation is stateless; all state lives in local variables.
type IssuanceService struct {
	fetcher           identity.Fetcher
	builder           *token.Builder
	store             store.TokenStore
	dispatcher        events.Dispatcher
	logger            *zap.Logger
	fetchPolicy       retry.Policy
	storePolicy       retry.Policy
	collisionAttempts int
	now               func() time.Time
}

// IssuanceDependencies encapsulates collaborator requirements.
type IssuanceDependencies struct {
	Fetcher    identity.Fetcher
	Builder    *token.Builder
	Store      store.TokenStore
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

// NewIssuanceService builds the service.
func NewIssuanceService(cfg config.IssuanceConfig, deps IssuanceDependencies) *IssuanceService {
	basePolicy := retry.Policy{
		InitialDelay: time.Duration(cfg.BackoffInitialMillis) * time.Millisecond,
		MaxDelay:     time.Duration(cfg.BackoffMaxMillis) * time.Millisecond,
		Multiplier:   2.0,
	}
	fetchPolicy := basePolicy
	fetchPolicy.MaxAttempts = cfg.FetchMaxAttempts
	storePolicy := basePolicy
	storePolicy.MaxAttempts = cfg.StoreMaxAttempts

	collisionAttempts := cfg.CollisionMaxAttempts
	if collisionAttempts < 1 {
		collisionAttempts = 1
	}

	return &IssuanceService{
		fetcher:           deps.Fetcher,
		builder:           deps.Builder,
		store:             deps.Store,
		dispatcher:        deps.Dispatcher,
		logger:            deps.Logger,
		fetchPolicy:       fetchPolicy,
		storePolicy:       storePolicy,
		collisionAttempts: collisionAttempts,
		now:               time.Now,
	}
}

// Issue mints a token for an already-authenticated identity and persists it.
// The token string is returned only after the store write committed.
func (s *IssuanceService) Issue(ctx context.Context, req IssueRequest) (*IssueResult, error) {
	subject, err := s.resolveSubject(req.Identity)
	if err != nil {
		return nil, err
	}

	attrs, err := s.fetchAttributes(ctx, subject)
	if err != nil {
		s.publishFailure(ctx, subject, err)
		return nil, err
	}

	metadata := requestMetadata(req)

	var result *IssueResult
	for attempt := 1; attempt <= s.collisionAttempts; attempt++ {
		tok, record, buildErr := s.builder.Build(subject, attrs, s.now(), metadata)
		if buildErr != nil {
			s.publishFailure(ctx, subject, buildErr)
			return nil, buildErr
		}

		err = s.storePolicy.Do(ctx, func(ctx context.Context) error {
			return s.store.Put(ctx, tok, record)
		}, func(err error) bool {
			return util.IsCode(err, util.CodeStoreUnavailable)
		})
		if err == nil {
			result = &IssueResult{Token: tok, Record: record}
			break
		}
		if !util.IsCode(err, util.CodeTokenCollision) {
			s.publishFailure(ctx, subject, err)
			return nil, err
		}
		s.logger.Warn("token collision, regenerating",
			zap.String("fingerprint", token.Fingerprint(tok)),
			zap.Int("attempt", attempt))
	}
	if result == nil {
		s.publishFailure(ctx, subject, err)
		return nil, err
	}

	s.publishIssued(ctx, result)
	s.logger.Info("token issued",
		zap.String("subject", subject),
		zap.String("fingerprint", token.Fingerprint(result.Token)),
		zap.Int("attribute_count", len(result.Record.Attributes)))
	return result, nil
}

// Lookup returns the record for a token. Expired records are reported as
// not found; expiry is enforced at read time.
func (s *IssuanceService) Lookup(ctx context.Context, tok string) (*domain.TokenRecord, error) {
	if strings.TrimSpace(tok) == "" {
		return nil, util.NewNotFound("token", nil)
	}
	record, err := s.store.Get(ctx, tok)
	if err != nil {
		return nil, err
	}
	if record.Expired(s.now()) {
		return nil, util.NewNotFound("token", map[string]any{"reason": "expired"})
	}
	return record, nil
}

func (s *IssuanceService) resolveSubject(raw string) (string, error) {
	identityStr := strings.TrimSpace(raw)
	if identityStr == "" {
		return "", util.NewInvalidIdentity("")
	}
	if identity.IsAuthenticationProvider(identityStr) {
		pool, err := identity.ParseAuthenticationProvider(identityStr)
		if err != nil {
			return "", err
		}
		return pool.Sub, nil
	}
	return identityStr, nil
}

func (s *IssuanceService) fetchAttributes(ctx context.Context, subject string) (domain.AttributeSet, error) {
	var attrs domain.AttributeSet
	err := s.fetchPolicy.Do(ctx, func(ctx context.Context) error {
		fetched, fetchErr := s.fetcher.Fetch(ctx, subject)
		if fetchErr != nil {
			return fetchErr
		}
		attrs = fetched
		return nil
	}, func(err error) bool {
		return util.IsCode(err, util.CodeProviderUnavailable)
	})
	if err != nil {
		return nil, err
	}
	return attrs, nil
}

func requestMetadata(req IssueRequest) map[string]string {
	metadata := map[string]string{}
	if role := identity.ExtractRoleName(req.CallerARN); role != "" {
		metadata["role_name"] = role
	}
	if req.AuthenticationType != "" {
		metadata["connection_type"] = req.AuthenticationType
	}
	if len(metadata) == 0 {
		return nil
	}
	return metadata
}

func (s *IssuanceService) publishIssued(ctx context.Context, result *IssueResult) {
	if s.dispatcher == nil {
		return
	}
	_ = s.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      events.EventTokenIssued,
		Subject:   result.Record.Subject,
		Timestamp: s.now(),
		Payload: events.TokenIssuedPayload{
			TokenFingerprint: token.Fingerprint(result.Token),
			IssuedAt:         result.Record.IssuedAt,
			ExpiresAt:        result.Record.ExpiresAt,
			AttributeCount:   len(result.Record.Attributes),
		},
	})
}

func (s *IssuanceService) publishFailure(ctx context.Context, subject string, err error) {
	if s.dispatcher == nil {
		return
	}
	_ = s.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      events.EventIssuanceFailed,
		Subject:   subject,
		Timestamp: s.now(),
		Payload:   events.IssuanceFailedPayload{Code: util.ToDomainError(err).Code},
	})
}
