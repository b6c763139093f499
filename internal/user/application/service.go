package application

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/playdata/microshop/internal/user/domain"
)

// Options carries the verification-flow knobs.
type Options struct {
	CodeTTL         time.Duration
	AttemptTTL      time.Duration
	BlockTTL        time.Duration
	MaxCodeAttempts int
}

type Service struct {
	log    *slog.Logger
	repo   UserRepository
	hasher PasswordHasher
	mailer CodeMailer
	verify VerificationStore
	opts   Options
}

func NewService(log *slog.Logger, repo UserRepository, hasher PasswordHasher, mailer CodeMailer, verify VerificationStore, opts Options) *Service {
	return &Service{
		log:    log,
		repo:   repo,
		hasher: hasher,
		mailer: mailer,
		verify: verify,
		opts:   opts,
	}
}

// Register creates an account; duplicate emails are rejected.
func (s *Service) Register(ctx context.Context, email, name, password string) (domain.User, error) {
	if _, err := s.repo.FindByEmail(ctx, email); err == nil {
		return domain.User{}, domain.ErrEmailTaken
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return domain.User{}, err
	}
	saved, err := s.repo.Save(ctx, domain.User{
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		Role:         domain.RoleUser,
		CreatedAt:    time.Now().UTC(),
	})
	if err != nil {
		return domain.User{}, err
	}
	s.log.Info("user registered", "user_id", saved.ID)
	return saved, nil
}

func (s *Service) Login(ctx context.Context, email, password string) (domain.User, error) {
	u, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return domain.User{}, err
	}
	if err := s.hasher.Compare(u.PasswordHash, password); err != nil {
		return domain.User{}, domain.ErrBadCredentials
	}
	return u, nil
}

func (s *Service) FindByEmail(ctx context.Context, email string) (domain.User, error) {
	return s.repo.FindByEmail(ctx, email)
}

func (s *Service) FindByID(ctx context.Context, id int64) (domain.User, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]domain.User, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.List(ctx, limit, offset)
}

// MailCheck starts email verification for a new address: blocked or
// already-registered emails are rejected, otherwise a 6-digit code is
// mailed and stored with a short TTL.
func (s *Service) MailCheck(ctx context.Context, email string) (string, error) {
	blocked, err := s.verify.IsBlocked(ctx, email)
	if err != nil {
		return "", err
	}
	if blocked {
		return "", domain.ErrVerificationBlocked
	}
	if _, err := s.repo.FindByEmail(ctx, email); err == nil {
		return "", domain.ErrEmailTaken
	}

	code, err := generateCode()
	if err != nil {
		return "", err
	}
	if err := s.mailer.SendVerificationCode(ctx, email, code); err != nil {
		return "", fmt.Errorf("sending verification mail: %w", err)
	}
	if err := s.verify.IssueCode(ctx, email, code, s.opts.CodeTTL); err != nil {
		return "", err
	}
	return code, nil
}

// VerifyEmail checks a submitted code. Every wrong code counts as an
// attempt; at the attempt ceiling the email is blocked for BlockTTL.
func (s *Service) VerifyEmail(ctx context.Context, email, code string) error {
	blocked, err := s.verify.IsBlocked(ctx, email)
	if err != nil {
		return err
	}
	if blocked {
		return domain.ErrVerificationBlocked
	}

	stored, err := s.verify.LookupCode(ctx, email)
	if err != nil {
		return err
	}
	if stored == "" {
		return domain.ErrCodeExpired
	}

	attempts, err := s.verify.RecordAttempt(ctx, email, s.opts.AttemptTTL)
	if err != nil {
		return err
	}

	if stored != code {
		if attempts >= s.opts.MaxCodeAttempts {
			if err := s.verify.Block(ctx, email, s.opts.BlockTTL); err != nil {
				return err
			}
			s.log.Warn("email blocked after repeated failures", "email", email)
			return domain.ErrVerificationBlocked
		}
		return fmt.Errorf("%w: %d attempts left", domain.ErrCodeMismatch, s.opts.MaxCodeAttempts-attempts)
	}

	s.log.Info("email verified", "email", email)
	return s.verify.DeleteCode(ctx, email)
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
