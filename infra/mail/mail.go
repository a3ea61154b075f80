// Package mail sends transactional email over SMTP.
package mail

import (
	"context"
	"fmt"

	gomail "github.com/wneessen/go-mail"

	"github.com/taskmesh/task-delivery-service/config"
)

// Mailer delivers a single message. Text and HTML bodies are both optional;
// when both are present the message is sent as multipart/alternative.
type Mailer interface {
	Send(ctx context.Context, to, subject string, textBody, htmlBody *string) error
}

var _ Mailer = (*SMTPMailer)(nil)

// SMTPMailer speaks SMTP via a pooled go-mail client.
type SMTPMailer struct {
	client *gomail.Client
	from   string
}

// NewSMTPMailer builds the mailer from SMTP configuration. Call
// config.SMTPConfig.Configured before constructing; an unconfigured
// transport is a deployment choice, not an error here.
func NewSMTPMailer(cfg config.SMTPConfig) (*SMTPMailer, error) {
	opts := []gomail.Option{
		gomail.WithPort(cfg.Port),
	}
	if cfg.TLS {
		opts = append(opts, gomail.WithSSL())
	} else {
		opts = append(opts, gomail.WithTLSPolicy(gomail.TLSOpportunistic))
	}
	if cfg.User != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(cfg.User),
			gomail.WithPassword(cfg.Password),
		)
	}

	client, err := gomail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("mail: create client: %w", err)
	}
	return &SMTPMailer{client: client, from: cfg.From}, nil
}

func (m *SMTPMailer) Send(ctx context.Context, to, subject string, textBody, htmlBody *string) error {
	msg := gomail.NewMsg()
	if err := msg.From(m.from); err != nil {
		return fmt.Errorf("mail: from %q: %w", m.from, err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("mail: to %q: %w", to, err)
	}
	msg.Subject(subject)

	switch {
	case textBody != nil && htmlBody != nil:
		msg.SetBodyString(gomail.TypeTextPlain, *textBody)
		msg.AddAlternativeString(gomail.TypeTextHTML, *htmlBody)
	case htmlBody != nil:
		msg.SetBodyString(gomail.TypeTextHTML, *htmlBody)
	case textBody != nil:
		msg.SetBodyString(gomail.TypeTextPlain, *textBody)
	default:
		msg.SetBodyString(gomail.TypeTextPlain, "")
	}

	if err := m.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("mail: send to %q: %w", to, err)
	}
	return nil
}
