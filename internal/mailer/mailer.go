// Package mailer delivers transactional email through a pluggable backend.
package mailer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Message is one outbound email.
type Message struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Text    string `json:"text"`
	HTML    string `json:"html"`
}

// Validate checks the minimum a provider needs.
func (m Message) Validate() error {
	if strings.TrimSpace(m.To) == "" {
		return errors.New("mail recipient required")
	}
	if strings.TrimSpace(m.Subject) == "" {
		return errors.New("mail subject required")
	}
	return nil
}

// Sender delivers a message. Implementations must be safe for concurrent use.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// LogSender only logs messages. It is the default outside production.
type LogSender struct {
	logger *zap.Logger
}

// NewLogSender creates a sender that writes to logger.
func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(_ context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	s.logger.Info("email (log only)",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.String("text", msg.Text),
	)
	return nil
}

// Backend names accepted by New.
const (
	BackendLog      = "log"
	BackendResend   = "resend"
	BackendFunction = "function"
)

// New picks a sender by backend name.
func New(backend, resendKey, from, functionURL string, logger *zap.Logger) (Sender, error) {
	switch backend {
	case "", BackendLog:
		return NewLogSender(logger), nil
	case BackendResend:
		if resendKey == "" {
			return nil, errors.New("RESEND_API_KEY is required for the resend backend")
		}
		return NewResendSender(resendKey, from, logger), nil
	case BackendFunction:
		if functionURL == "" {
			return nil, errors.New("MAIL_FUNCTION_URL is required for the function backend")
		}
		return NewFunctionSender(functionURL), nil
	default:
		return nil, fmt.Errorf("unknown mail backend %q", backend)
	}
}
