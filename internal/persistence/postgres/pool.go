// Package postgres is the pgx-backed relational store: schema bootstrap,
// the transactional version writer, and the ingestion-run ledger.
package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// OpenPool creates a Postgres connection pool using the library defaults.
func OpenPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	return pgxpool.New(ctx, dsn)
}
