//go:build integration

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Haven Contributors

package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/havenwell/haven/internal/store"
)

func TestMigrator_FullCycle(t *testing.T) {
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2)),
	)
	require.NoError(t, err)
	defer pgContainer.Terminate(ctx)

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	migrator, err := store.NewMigrator(connStr)
	require.NoError(t, err)
	defer migrator.Close()

	// Initial version is 0
	version, dirty, err := migrator.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(0), version)
	assert.False(t, dirty)

	// Apply all migrations
	require.NoError(t, migrator.Up())

	version, dirty, err = migrator.Version()
	require.NoError(t, err)
	assert.Greater(t, version, uint(0), "Up() should apply at least one migration")
	assert.False(t, dirty)

	// Up again is a no-op
	require.NoError(t, migrator.Up())

	// Down rolls everything back
	require.NoError(t, migrator.Down())

	version, dirty, err = migrator.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(0), version, "Down() should rollback to version 0")
	assert.False(t, dirty)
}
