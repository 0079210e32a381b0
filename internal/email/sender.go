package email

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/srmops/approval-flow/internal/application/port"
)

// Config holds SMTP settings. An empty Host disables delivery.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Enabled reports whether the sender has a relay to talk to
func (c Config) Enabled() bool {
	return c.Host != ""
}

// Sender delivers notification email over SMTP and implements
// port.EmailSender.
type Sender struct {
	cfg    Config
	logger *zap.Logger
}

// NewSender creates a new email sender
func NewSender(cfg Config, logger *zap.Logger) *Sender {
	return &Sender{
		cfg:    cfg,
		logger: logger,
	}
}

// Send delivers one plain-text message. When the sender is unconfigured the
// message is dropped with a log line rather than an error, so callers need
// no special casing.
func (s *Sender) Send(ctx context.Context, to, subject, body string) error {
	if !s.cfg.Enabled() {
		s.logger.Info("Email delivery disabled, dropping message",
			zap.String("to", to),
			zap.String("subject", subject))
		return nil
	}

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("email send cancelled: %w", err)
	}

	addr := net.JoinHostPort(s.cfg.Host, fmt.Sprintf("%d", s.cfg.Port))

	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}

	msg := s.buildMessage(to, subject, body)
	if err := smtp.SendMail(addr, auth, s.cfg.From, []string{to}, msg); err != nil {
		s.logger.Error("Failed to send email",
			zap.String("to", to),
			zap.String("subject", subject),
			zap.Error(err))
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Info("Email sent",
		zap.String("to", to),
		zap.String("subject", subject))
	return nil
}

// buildMessage assembles RFC 5322 headers plus the plain-text body
func (s *Sender) buildMessage(to, subject, body string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", s.cfg.From)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", sanitizeHeader(subject))
	fmt.Fprintf(&b, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	return []byte(b.String())
}

// sanitizeHeader strips CRLF so untrusted text cannot inject headers
func sanitizeHeader(v string) string {
	v = strings.ReplaceAll(v, "\r", " ")
	return strings.ReplaceAll(v, "\n", " ")
}

// Verify interface compliance
var _ port.EmailSender = (*Sender)(nil)
