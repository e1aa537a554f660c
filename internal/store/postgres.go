package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/token-service/internal/domain"
	"github.com/spec-kit/token-service/pkg/util"
)

// PostgresStore persists token records in the auth_tokens table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wraps an existing pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Put inserts the record; an existing identical row counts as success,
// an existing divergent row is a collision.
func (s *PostgresStore) Put(ctx context.Context, tok string, record *domain.TokenRecord) error {
	const query = `
        INSERT INTO auth_tokens (token, subject, attributes, issued_at, expires_at, metadata)
        VALUES ($1,$2,$3,$4,$5,$6)
        ON CONFLICT (token) DO NOTHING`
	tag, err := s.pool.Exec(ctx, query,
		tok,
		record.Subject,
		record.Attributes,
		record.IssuedAt,
		record.ExpiresAt,
		record.Metadata,
	)
	if err != nil {
		return mapPostgresError(err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	existing, err := s.Get(ctx, tok)
	if err != nil {
		return util.NewStoreUnavailable(err)
	}
	return resolveExisting(tok, existing, record)
}

// Get reads the record row.
func (s *PostgresStore) Get(ctx context.Context, tok string) (*domain.TokenRecord, error) {
	const query = `
        SELECT subject, attributes, issued_at, expires_at, metadata
        FROM auth_tokens WHERE token=$1`
	var record domain.TokenRecord
	err := s.pool.QueryRow(ctx, query, tok).Scan(
		&record.Subject,
		&record.Attributes,
		&record.IssuedAt,
		&record.ExpiresAt,
		&record.Metadata,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, util.NewNotFound("token", nil)
	}
	if err != nil {
		return nil, mapPostgresError(err)
	}
	if record.Attributes == nil {
		record.Attributes = domain.AttributeSet{}
	}
	return &record, nil
}

// Ping verifies connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return util.NewStoreUnavailable(err)
	}
	return nil
}

func mapPostgresError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// The server answered; the statement itself was rejected.
		return util.NewStoreRejected(err)
	}
	return util.NewStoreUnavailable(err)
}
