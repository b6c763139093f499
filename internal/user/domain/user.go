package domain

import (
	"errors"
	"time"
)

type Role string

const RoleUser Role = "USER"

type User struct {
	ID           int64
	Email        string
	Name         string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
}

var (
	ErrEmailTaken     = errors.New("email already registered")
	ErrUserNotFound   = errors.New("user not found")
	ErrBadCredentials = errors.New("password mismatch")

	// Verification flow failures.
	ErrVerificationBlocked = errors.New("email verification blocked")
	ErrCodeExpired         = errors.New("verification code expired")
	ErrCodeMismatch        = errors.New("verification code wrong")
)
