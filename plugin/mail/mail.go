// Package mail delivers report and verification emails over SMTP.
package mail

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	gomail "github.com/wneessen/go-mail"
)

// Notifier is the delivery surface the services depend on. Implementations
// must be safe for concurrent use.
type Notifier interface {
	// Send delivers an HTML email with an optional attachment.
	Send(ctx context.Context, msg Email) error
}

// Email is a single outbound message.
type Email struct {
	To             string
	Subject        string
	HTMLBody       string
	TextBody       string
	AttachmentName string
	Attachment     []byte
}

// Config holds SMTP connection settings.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Disabled is a Notifier for instances without an SMTP relay configured.
// Every send fails with a clear error.
type Disabled struct{}

func (Disabled) Send(_ context.Context, msg Email) error {
	return fmt.Errorf("cannot send email to %s: no SMTP relay configured", msg.To)
}

// SMTPNotifier delivers email through an SMTP relay.
type SMTPNotifier struct {
	config Config
}

// NewSMTPNotifier creates a notifier. It fails when the relay host or sender
// address is missing.
func NewSMTPNotifier(cfg Config) (*SMTPNotifier, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("smtp host is required")
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("smtp sender address is required")
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	return &SMTPNotifier{config: cfg}, nil
}

// Send implements Notifier.
func (n *SMTPNotifier) Send(ctx context.Context, msg Email) error {
	m := gomail.NewMsg()
	if err := m.From(n.config.From); err != nil {
		return fmt.Errorf("invalid sender address: %w", err)
	}
	if err := m.To(msg.To); err != nil {
		return fmt.Errorf("invalid recipient address: %w", err)
	}
	m.Subject(msg.Subject)
	if msg.TextBody != "" {
		m.SetBodyString(gomail.TypeTextPlain, msg.TextBody)
		if msg.HTMLBody != "" {
			m.AddAlternativeString(gomail.TypeTextHTML, msg.HTMLBody)
		}
	} else {
		m.SetBodyString(gomail.TypeTextHTML, msg.HTMLBody)
	}
	if len(msg.Attachment) > 0 {
		if err := m.AttachReader(msg.AttachmentName, bytes.NewReader(msg.Attachment)); err != nil {
			return fmt.Errorf("failed to attach %s: %w", msg.AttachmentName, err)
		}
	}

	opts := []gomail.Option{
		gomail.WithPort(n.config.Port),
		gomail.WithTLSPolicy(gomail.TLSOpportunistic),
	}
	if n.config.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(n.config.Username),
			gomail.WithPassword(n.config.Password))
	}

	client, err := gomail.NewClient(n.config.Host, opts...)
	if err != nil {
		return fmt.Errorf("failed to create smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("failed to send email to %s: %w", msg.To, err)
	}

	slog.Info("email sent", "to", msg.To, "subject", msg.Subject)
	return nil
}
