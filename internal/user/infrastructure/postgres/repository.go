package postgres

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/playdata/microshop/internal/user/domain"
)

type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

// EnsureSchema creates the users table if missing.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS users (
			id            BIGSERIAL PRIMARY KEY,
			email         TEXT NOT NULL UNIQUE,
			name          TEXT NOT NULL,
			password_hash TEXT NOT NULL,
			role          TEXT NOT NULL,
			created_at    TIMESTAMPTZ NOT NULL
		)
	`)
	return err
}

func (r *Repository) Save(ctx context.Context, u domain.User) (domain.User, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO users (email, name, password_hash, role, created_at)
		VALUES ($1,$2,$3,$4,$5) RETURNING id`,
		u.Email, u.Name, u.PasswordHash, string(u.Role), u.CreatedAt).Scan(&u.ID)
	if err != nil {
		// Two registrations can race past the service-level existence
		// check; the unique index on email settles it.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.User{}, domain.ErrEmailTaken
		}
		return domain.User{}, err
	}
	return u, nil
}

func (r *Repository) FindByEmail(ctx context.Context, email string) (domain.User, error) {
	return r.scanOne(r.pool.QueryRow(ctx,
		`SELECT id, email, name, password_hash, role, created_at FROM users WHERE email=$1`, email))
}

func (r *Repository) FindByID(ctx context.Context, id int64) (domain.User, error) {
	return r.scanOne(r.pool.QueryRow(ctx,
		`SELECT id, email, name, password_hash, role, created_at FROM users WHERE id=$1`, id))
}

func (r *Repository) List(ctx context.Context, limit, offset int) ([]domain.User, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, email, name, password_hash, role, created_at FROM users ORDER BY id LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.User
	for rows.Next() {
		var u domain.User
		var role string
		if err := rows.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &role, &u.CreatedAt); err != nil {
			return nil, err
		}
		u.Role = domain.Role(role)
		out = append(out, u)
	}
	return out, rows.Err()
}

func (r *Repository) scanOne(row pgx.Row) (domain.User, error) {
	var u domain.User
	var role string
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &role, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, domain.ErrUserNotFound
	}
	if err != nil {
		return domain.User{}, err
	}
	u.Role = domain.Role(role)
	return u, nil
}
