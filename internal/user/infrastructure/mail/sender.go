// Package mail holds CodeMailer implementations. Real delivery transport
// is owned by an external system; LogSender stands in for it in
// development and tests.
package mail

import (
	"context"
	"log/slog"
)

type LogSender struct {
	log *slog.Logger
}

func NewLogSender(log *slog.Logger) *LogSender {
	return &LogSender{log: log}
}

func (s *LogSender) SendVerificationCode(ctx context.Context, email, code string) error {
	s.log.Info("verification code issued", "email", email, "code", code)
	return nil
}
