package postgres

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/playdata/microshop/internal/ordering/domain"
)

type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

// SaveWithOutbox writes the aggregate, its lines (line_no preserves the
// caller-supplied order) and the outbox row in one transaction, so an
// order is never partially persisted.
func (r *Repository) SaveWithOutbox(ctx context.Context, o domain.Order, eventType string, payload []byte, traceparent string) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	_, err = tx.Exec(ctx, `INSERT INTO orders (id, buyer_id, status, created_at)
		VALUES ($1,$2,$3,$4)`,
		o.ID, o.BuyerID, string(o.Status), o.CreatedAt)
	if err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for i, l := range o.Lines {
		batch.Queue(`INSERT INTO order_lines (order_id, line_no, product_id, quantity)
			VALUES ($1,$2,$3,$4)`,
			o.ID, i, l.ProductID, l.Quantity)
	}
	br := tx.SendBatch(ctx, batch)
	if err := br.Close(); err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `INSERT INTO outbox (aggregate_type, aggregate_id, type, payload, traceparent, status)
		VALUES ($1,$2,$3,$4,$5,'pending')`,
		"order", o.ID, eventType, payload, traceparent)
	if err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (r *Repository) Get(ctx context.Context, id string) (domain.Order, error) {
	var o domain.Order
	var status string
	err := r.pool.QueryRow(ctx, `SELECT id, buyer_id, status, created_at FROM orders WHERE id=$1`, id).
		Scan(&o.ID, &o.BuyerID, &status, &o.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	if err != nil {
		return domain.Order{}, err
	}
	o.Status = domain.OrderStatus(status)

	rows, err := r.pool.Query(ctx, `SELECT product_id, quantity FROM order_lines WHERE order_id=$1 ORDER BY line_no`, id)
	if err != nil {
		return domain.Order{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var l domain.OrderLine
		if err := rows.Scan(&l.ProductID, &l.Quantity); err != nil {
			return domain.Order{}, err
		}
		o.Lines = append(o.Lines, l)
	}
	return o, rows.Err()
}
