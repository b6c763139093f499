package postgres

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/playdata/microshop/internal/ordering/domain"
)

// PendingRepository is the durable holding area for order requests that
// could not complete synchronously. Lines round-trip through jsonb with
// their insertion order intact.
type PendingRepository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewPendingRepository(log *slog.Logger, pool *pgxpool.Pool) *PendingRepository {
	return &PendingRepository{log: log, pool: pool}
}

func (r *PendingRepository) Save(ctx context.Context, p domain.PendingOrder) error {
	lines, err := json.Marshal(p.Lines)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `INSERT INTO pending_orders (id, buyer_email, lines, attempts, created_at)
		VALUES ($1,$2,$3,$4,$5)`,
		p.ID, p.BuyerEmail, lines, p.Attempts, p.CreatedAt)
	return err
}

func (r *PendingRepository) FindAll(ctx context.Context) ([]domain.PendingOrder, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, buyer_email, lines, attempts, last_attempt_at, created_at FROM pending_orders`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.PendingOrder
	for rows.Next() {
		var p domain.PendingOrder
		var lines []byte
		if err := rows.Scan(&p.ID, &p.BuyerEmail, &lines, &p.Attempts, &p.LastAttemptAt, &p.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(lines, &p.Lines); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *PendingRepository) MarkAttempt(ctx context.Context, id string, attempts int, at time.Time) error {
	_, err := r.pool.Exec(ctx, `UPDATE pending_orders SET attempts=$2, last_attempt_at=$3 WHERE id=$1`,
		id, attempts, at)
	return err
}

func (r *PendingRepository) Delete(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM pending_orders WHERE id=$1`, id)
	return err
}
