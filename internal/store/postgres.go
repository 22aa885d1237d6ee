// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Haven Contributors

// Package store provides database bootstrap and schema management.
package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// Startup connection retry policy. The database is often a beat behind
// the service in container orchestration; a short bounded backoff covers
// that without masking real outages.
const (
	connectRetryBase = 500 * time.Millisecond
	connectRetryMax  = 6
)

// Open connects a pgxpool to the database and verifies the connection
// with a bounded retry. The caller owns Close on the returned pool.
func Open(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, oops.Code("DB_CONFIG_INVALID").
			With("operation", "parse connection string").
			Wrap(err)
	}

	backoff := retry.WithMaxRetries(connectRetryMax, retry.NewExponential(connectRetryBase))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		if pingErr := pool.Ping(ctx); pingErr != nil {
			return retry.RetryableError(pingErr)
		}
		return nil
	})
	if err != nil {
		pool.Close()
		return nil, oops.Code("DB_CONNECT_FAILED").
			With("operation", "ping database").
			Wrap(err)
	}

	return pool, nil
}
