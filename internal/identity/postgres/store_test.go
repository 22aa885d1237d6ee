// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Haven Contributors

package postgres_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/havenwell/haven/internal/identity"
	"github.com/havenwell/haven/internal/identity/postgres"
)

const testHash = "$argon2id$v=19$m=65536,t=1,p=4$c2FsdHNhbHRzYWx0c2Fs$aGFzaGhhc2hoYXNoaGFzaGhhc2hoYXNoaGFzaGhhc2g"

func TestCredentialStore_FindByEmail(t *testing.T) {
	ctx := context.Background()

	t.Run("returns stored identity", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		id := ulid.Make()
		createdAt := time.Now().UTC()
		rows := pgxmock.NewRows([]string{"id", "email", "secret_hash", "created_at"}).
			AddRow(id.String(), "user@example.com", testHash, createdAt)
		mock.ExpectQuery(`SELECT id, email, secret_hash, created_at`).
			WithArgs("user@example.com").
			WillReturnRows(rows)

		store := postgres.NewCredentialStore(mock)
		ident, err := store.FindByEmail(ctx, "user@example.com")
		require.NoError(t, err)
		assert.Equal(t, id, ident.ID)
		assert.Equal(t, "user@example.com", ident.Email)
		assert.Equal(t, testHash, ident.SecretHash)
		assert.Equal(t, createdAt, ident.CreatedAt)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no rows maps to ErrNotFound", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery(`SELECT id, email, secret_hash, created_at`).
			WithArgs("ghost@example.com").
			WillReturnError(pgx.ErrNoRows)

		store := postgres.NewCredentialStore(mock)
		ident, err := store.FindByEmail(ctx, "ghost@example.com")
		require.Error(t, err)
		assert.Nil(t, ident)
		assert.ErrorIs(t, err, identity.ErrNotFound)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("query error is wrapped", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery(`SELECT id, email, secret_hash, created_at`).
			WithArgs("user@example.com").
			WillReturnError(errors.New("connection refused"))

		store := postgres.NewCredentialStore(mock)
		ident, err := store.FindByEmail(ctx, "user@example.com")
		require.Error(t, err)
		assert.Nil(t, ident)
		assert.NotErrorIs(t, err, identity.ErrNotFound)
		assert.Contains(t, err.Error(), "connection refused")

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("malformed id in row is rejected", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		rows := pgxmock.NewRows([]string{"id", "email", "secret_hash", "created_at"}).
			AddRow("not-a-ulid", "user@example.com", testHash, time.Now())
		mock.ExpectQuery(`SELECT id, email, secret_hash, created_at`).
			WithArgs("user@example.com").
			WillReturnRows(rows)

		store := postgres.NewCredentialStore(mock)
		ident, err := store.FindByEmail(ctx, "user@example.com")
		require.Error(t, err)
		assert.Nil(t, ident)

		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestCredentialStore_Insert(t *testing.T) {
	ctx := context.Background()

	newIdent := func(t *testing.T) *identity.Identity {
		t.Helper()
		ident, err := identity.NewIdentity("user@example.com", testHash)
		require.NoError(t, err)
		return ident
	}

	t.Run("inserts identity", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		ident := newIdent(t)
		mock.ExpectExec(`INSERT INTO identities`).
			WithArgs(ident.ID.String(), ident.Email, ident.SecretHash, ident.CreatedAt).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		store := postgres.NewCredentialStore(mock)
		require.NoError(t, store.Insert(ctx, ident))

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unique violation maps to ErrDuplicateIdentity", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		ident := newIdent(t)
		mock.ExpectExec(`INSERT INTO identities`).
			WithArgs(ident.ID.String(), ident.Email, ident.SecretHash, ident.CreatedAt).
			WillReturnError(&pgconn.PgError{
				Code:           pgerrcode.UniqueViolation,
				ConstraintName: "identities_email_key",
			})

		store := postgres.NewCredentialStore(mock)
		err = store.Insert(ctx, ident)
		require.Error(t, err)
		assert.ErrorIs(t, err, identity.ErrDuplicateIdentity)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("other database errors are wrapped", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		ident := newIdent(t)
		mock.ExpectExec(`INSERT INTO identities`).
			WithArgs(ident.ID.String(), ident.Email, ident.SecretHash, ident.CreatedAt).
			WillReturnError(errors.New("connection refused"))

		store := postgres.NewCredentialStore(mock)
		err = store.Insert(ctx, ident)
		require.Error(t, err)
		assert.NotErrorIs(t, err, identity.ErrDuplicateIdentity)
		assert.Contains(t, err.Error(), "connection refused")

		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
