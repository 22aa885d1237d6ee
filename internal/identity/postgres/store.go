// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Haven Contributors

// Package postgres implements identity.CredentialStore using PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/havenwell/haven/internal/identity"
)

// pool is the subset of pgxpool.Pool the store uses. pgxmock satisfies
// it, keeping repository tests off a live database.
type pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// CredentialStore implements identity.CredentialStore using PostgreSQL.
// The unique index on identities.email is the arbiter for concurrent
// registrations; Insert never checks first.
type CredentialStore struct {
	pool pool
}

// NewCredentialStore creates a new CredentialStore.
func NewCredentialStore(p pool) *CredentialStore {
	return &CredentialStore{pool: p}
}

// FindByEmail retrieves an Identity by normalized email.
func (s *CredentialStore) FindByEmail(ctx context.Context, email string) (*identity.Identity, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, email, secret_hash, created_at
		FROM identities
		WHERE email = $1
	`, email)

	ident, err := scanIdentity(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("IDENTITY_NOT_FOUND").
			With("email", email).
			Wrap(identity.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("IDENTITY_FIND_FAILED").
			With("operation", "find identity by email").
			With("email", email).
			Wrap(err)
	}
	return ident, nil
}

// Insert stores a new Identity. A unique-violation on the email index
// maps to identity.ErrDuplicateIdentity.
func (s *CredentialStore) Insert(ctx context.Context, ident *identity.Identity) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO identities (id, email, secret_hash, created_at)
		VALUES ($1, $2, $3, $4)
	`,
		ident.ID.String(),
		ident.Email,
		ident.SecretHash,
		ident.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return oops.Code("IDENTITY_DUPLICATE").
				With("email", ident.Email).
				Wrap(identity.ErrDuplicateIdentity)
		}
		return oops.Code("IDENTITY_INSERT_FAILED").
			With("operation", "insert identity").
			With("email", ident.Email).
			Wrap(err)
	}
	return nil
}

// scanIdentity scans a single row into an Identity.
// Callers are responsible for handling pgx.ErrNoRows.
func scanIdentity(row pgx.Row) (*identity.Identity, error) {
	var (
		idStr      string
		email      string
		secretHash string
		createdAt  time.Time
	)

	if err := row.Scan(&idStr, &email, &secretHash, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // Callers wrap with context-specific info
		}
		return nil, oops.Code("IDENTITY_SCAN_FAILED").
			With("operation", "scan identity").
			Wrap(err)
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("IDENTITY_INVALID_ID").
			With("operation", "parse identity id").
			With("id", idStr).
			Wrap(err)
	}

	return &identity.Identity{
		ID:         id,
		Email:      email,
		SecretHash: secretHash,
		CreatedAt:  createdAt,
	}, nil
}

// Compile-time interface check.
var _ identity.CredentialStore = (*CredentialStore)(nil)
