package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/token-service/internal/config"
	"github.com/spec-kit/token-service/internal/domain"
	"github.com/spec-kit/token-service/internal/events"
	"github.com/spec-kit/token-service/internal/identity"
	"github.com/spec-kit/token-service/internal/store"
	"github.com/spec-kit/token-service/internal/token"
	"github.com/spec-kit/token-service/pkg/util"
)

func testIssuanceConfig() config.IssuanceConfig {
	return config.IssuanceConfig{
		FetchMaxAttempts:     3,
		StoreMaxAttempts:     3,
		CollisionMaxAttempts: 3,
		BackoffInitialMillis: 1,
		BackoffMaxMillis:     2,
	}
}

func testUsers() map[string]domain.AttributeSet {
	return map[string]domain.AttributeSet{
		"user-42": {"email": "a@example.com", "role": "admin"},
	}
}

func newTestService(fetcher identity.Fetcher, tokenStore store.TokenStore, tokenCfg config.TokenConfig) *IssuanceService {
	return NewIssuanceService(testIssuanceConfig(), IssuanceDependencies{
		Fetcher:    fetcher,
		Builder:    token.NewBuilder(tokenCfg),
		Store:      tokenStore,
		Dispatcher: events.NewInMemoryDispatcher(zap.NewNop()),
		Logger:     zap.NewNop(),
	})
}

// failingStore fails every Put with the configured error, counting attempts.
type failingStore struct {
	*store.MemoryStore
	mu       sync.Mutex
	putCalls int
	putErr   error
}

func (s *failingStore) Put(ctx context.Context, tok string, record *domain.TokenRecord) error {
	s.mu.Lock()
	s.putCalls++
	s.mu.Unlock()
	if s.putErr != nil {
		return s.putErr
	}
	return s.MemoryStore.Put(ctx, tok, record)
}

// collidingStore reports a collision for the first n Put calls.
type collidingStore struct {
	*store.MemoryStore
	mu         sync.Mutex
	collisions int
	putCalls   int
}

func (s *collidingStore) Put(ctx context.Context, tok string, record *domain.TokenRecord) error {
	s.mu.Lock()
	s.putCalls++
	collide := s.putCalls <= s.collisions
	s.mu.Unlock()
	if collide {
		return util.NewTokenCollision("fp")
	}
	return s.MemoryStore.Put(ctx, tok, record)
}

// flakyFetcher fails with a transient error before succeeding.
type flakyFetcher struct {
	identity.Fetcher
	mu       sync.Mutex
	failures int
	calls    int
}

func (f *flakyFetcher) Fetch(ctx context.Context, userID string) (domain.AttributeSet, error) {
	f.mu.Lock()
	f.calls++
	fail := f.calls <= f.failures
	f.mu.Unlock()
	if fail {
		return nil, util.NewProviderUnavailable(errors.New("timeout"))
	}
	return f.Fetcher.Fetch(ctx, userID)
}

func TestIssueStoresRetrievableRecord(t *testing.T) {
	memory := store.NewMemoryStore()
	svc := newTestService(identity.NewStaticFetcher(testUsers()), memory, config.TokenConfig{})
	issuedAt := time.Date(2023, 8, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return issuedAt }

	result, err := svc.Issue(context.Background(), IssueRequest{Identity: "user-42"})
	require.NoError(t, err)
	assert.NotEmpty(t, result.Token)

	record, err := memory.Get(context.Background(), result.Token)
	require.NoError(t, err)
	assert.Equal(t, "user-42", record.Subject)
	assert.Equal(t, domain.AttributeSet{"email": "a@example.com", "role": "admin"}, record.Attributes)
	assert.Equal(t, issuedAt, record.IssuedAt)
	assert.Nil(t, record.ExpiresAt)
}

func TestIssueTwiceYieldsDistinctTokens(t *testing.T) {
	memory := store.NewMemoryStore()
	svc := newTestService(identity.NewStaticFetcher(testUsers()), memory, config.TokenConfig{})

	first, err := svc.Issue(context.Background(), IssueRequest{Identity: "user-42"})
	require.NoError(t, err)
	second, err := svc.Issue(context.Background(), IssueRequest{Identity: "user-42"})
	require.NoError(t, err)

	assert.NotEqual(t, first.Token, second.Token)
	_, err = memory.Get(context.Background(), first.Token)
	assert.NoError(t, err)
	_, err = memory.Get(context.Background(), second.Token)
	assert.NoError(t, err)
}

func TestIssueUnknownIdentityWritesNothing(t *testing.T) {
	memory := store.NewMemoryStore()
	svc := newTestService(identity.NewStaticFetcher(testUsers()), memory, config.TokenConfig{})

	_, err := svc.Issue(context.Background(), IssueRequest{Identity: "ghost"})
	assert.True(t, util.IsCode(err, util.CodeIdentityNotFound))
	assert.Equal(t, 0, memory.Len())
}

func TestIssueEmptyIdentity(t *testing.T) {
	svc := newTestService(identity.NewStaticFetcher(testUsers()), store.NewMemoryStore(), config.TokenConfig{})

	_, err := svc.Issue(context.Background(), IssueRequest{Identity: "  "})
	assert.True(t, util.IsCode(err, util.CodeInvalidIdentity))
}

func TestIssueRetriesTransientFetch(t *testing.T) {
	fetcher := &flakyFetcher{Fetcher: identity.NewStaticFetcher(testUsers()), failures: 2}
	svc := newTestService(fetcher, store.NewMemoryStore(), config.TokenConfig{})

	_, err := svc.Issue(context.Background(), IssueRequest{Identity: "user-42"})
	assert.NoError(t, err)
	assert.Equal(t, 3, fetcher.calls)
}

func TestIssueStoreUnavailableExhaustsRetries(t *testing.T) {
	failing := &failingStore{
		MemoryStore: store.NewMemoryStore(),
		putErr:      util.NewStoreUnavailable(errors.New("down")),
	}
	svc := newTestService(identity.NewStaticFetcher(testUsers()), failing, config.TokenConfig{})

	_, err := svc.Issue(context.Background(), IssueRequest{Identity: "user-42"})
	assert.True(t, util.IsCode(err, util.CodeStoreUnavailable))
	assert.Equal(t, 3, failing.putCalls)
	assert.Equal(t, 0, failing.MemoryStore.Len())
}

func TestIssueStoreRejectedFailsImmediately(t *testing.T) {
	failing := &failingStore{
		MemoryStore: store.NewMemoryStore(),
		putErr:      util.NewStoreRejected(errors.New("malformed key")),
	}
	svc := newTestService(identity.NewStaticFetcher(testUsers()), failing, config.TokenConfig{})

	_, err := svc.Issue(context.Background(), IssueRequest{Identity: "user-42"})
	assert.True(t, util.IsCode(err, util.CodeStoreRejected))
	assert.Equal(t, 1, failing.putCalls)
}

func TestIssueRegeneratesTokenOnCollision(t *testing.T) {
	colliding := &collidingStore{MemoryStore: store.NewMemoryStore(), collisions: 2}
	svc := newTestService(identity.NewStaticFetcher(testUsers()), colliding, config.TokenConfig{})

	result, err := svc.Issue(context.Background(), IssueRequest{Identity: "user-42"})
	require.NoError(t, err)
	assert.Equal(t, 3, colliding.putCalls)

	_, err = colliding.MemoryStore.Get(context.Background(), result.Token)
	assert.NoError(t, err)
}

func TestIssueCollisionExhaustion(t *testing.T) {
	colliding := &collidingStore{MemoryStore: store.NewMemoryStore(), collisions: 100}
	svc := newTestService(identity.NewStaticFetcher(testUsers()), colliding, config.TokenConfig{})

	_, err := svc.Issue(context.Background(), IssueRequest{Identity: "user-42"})
	assert.True(t, util.IsCode(err, util.CodeTokenCollision))
	assert.Equal(t, 0, colliding.MemoryStore.Len())
}

func TestIssueResolvesAuthenticationProvider(t *testing.T) {
	sub := "12345678-1234-1234-1234-123456789012"
	users := map[string]domain.AttributeSet{sub: {"email": "a@example.com"}}
	memory := store.NewMemoryStore()
	svc := newTestService(identity.NewStaticFetcher(users), memory, config.TokenConfig{})

	provider := "cognito-idp.eu-west-1.amazonaws.com/eu-west-1_Abc123," +
		"cognito-idp.eu-west-1.amazonaws.com/eu-west-1_Abc123:CognitoSignIn:" + sub
	result, err := svc.Issue(context.Background(), IssueRequest{
		Identity:           provider,
		CallerARN:          "arn:aws:sts::123456789012:assumed-role/ApiGatewayAuthRole/session",
		AuthenticationType: "authenticated",
	})
	require.NoError(t, err)
	assert.Equal(t, sub, result.Record.Subject)
	assert.Equal(t, "ApiGatewayAuthRole", result.Record.Metadata["role_name"])
	assert.Equal(t, "authenticated", result.Record.Metadata["connection_type"])
}

func TestLookupEnforcesExpiryAtReadTime(t *testing.T) {
	memory := store.NewMemoryStore()
	svc := newTestService(identity.NewStaticFetcher(testUsers()), memory, config.TokenConfig{TTLSeconds: 60})
	issuedAt := time.Date(2023, 8, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return issuedAt }

	result, err := svc.Issue(context.Background(), IssueRequest{Identity: "user-42"})
	require.NoError(t, err)

	record, err := svc.Lookup(context.Background(), result.Token)
	require.NoError(t, err)
	require.NotNil(t, record.ExpiresAt)
	assert.Equal(t, issuedAt.Add(time.Minute), *record.ExpiresAt)

	svc.now = func() time.Time { return issuedAt.Add(2 * time.Minute) }
	_, err = svc.Lookup(context.Background(), result.Token)
	assert.True(t, util.IsCode(err, util.CodeNotFound))
}

func TestLookupUnknownToken(t *testing.T) {
	svc := newTestService(identity.NewStaticFetcher(testUsers()), store.NewMemoryStore(), config.TokenConfig{})

	_, err := svc.Lookup(context.Background(), "missing")
	assert.True(t, util.IsCode(err, util.CodeNotFound))
}
