package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// EnsureSchema creates the ordering tables if missing. Called once from
// main before the service starts serving.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS orders (
			id         TEXT PRIMARY KEY,
			buyer_id   BIGINT NOT NULL,
			status     TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		);
		CREATE TABLE IF NOT EXISTS order_lines (
			order_id   TEXT NOT NULL REFERENCES orders(id),
			line_no    INT NOT NULL,
			product_id BIGINT NOT NULL,
			quantity   INT NOT NULL,
			PRIMARY KEY (order_id, line_no)
		);
		CREATE TABLE IF NOT EXISTS pending_orders (
			id              TEXT PRIMARY KEY,
			buyer_email     TEXT NOT NULL,
			lines           JSONB NOT NULL,
			attempts        INT NOT NULL DEFAULT 0,
			last_attempt_at TIMESTAMPTZ,
			created_at      TIMESTAMPTZ NOT NULL
		);
		CREATE TABLE IF NOT EXISTS outbox (
			id             BIGSERIAL PRIMARY KEY,
			aggregate_type TEXT NOT NULL,
			aggregate_id   TEXT NOT NULL,
			type           TEXT NOT NULL,
			payload        BYTEA NOT NULL,
			traceparent    TEXT NOT NULL DEFAULT '',
			status         TEXT NOT NULL DEFAULT 'pending',
			relay_id       TEXT,
			lease_until    TIMESTAMPTZ,
			retry_count    INT NOT NULL DEFAULT 0,
			last_error     TEXT,
			created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
		);
	`)
	return err
}
