package application

import (
	"context"
	"time"

	"github.com/playdata/microshop/internal/user/domain"
)

type UserRepository interface {
	Save(ctx context.Context, u domain.User) (domain.User, error)
	FindByEmail(ctx context.Context, email string) (domain.User, error)
	FindByID(ctx context.Context, id int64) (domain.User, error)
	List(ctx context.Context, limit, offset int) ([]domain.User, error)
}

type PasswordHasher interface {
	Hash(plain string) (string, error)
	Compare(hash, plain string) error
}

// CodeMailer delivers verification codes. Delivery transport is outside
// this service's scope; implementations may be as thin as a log line.
type CodeMailer interface {
	SendVerificationCode(ctx context.Context, email, code string) error
}

// VerificationStore is the rate-limited verification state: issued codes,
// attempt counters and abuse blocks, each with its own TTL.
type VerificationStore interface {
	IsBlocked(ctx context.Context, email string) (bool, error)
	Block(ctx context.Context, email string, ttl time.Duration) error
	RecordAttempt(ctx context.Context, email string, ttl time.Duration) (int, error)
	IssueCode(ctx context.Context, email, code string, ttl time.Duration) error
	LookupCode(ctx context.Context, email string) (string, error)
	DeleteCode(ctx context.Context, email string) error
}
