// Package mailer sends transactional email over SMTP or to the log.
package mailer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"forum/internal/config"
	"forum/internal/middleware"
	"forum/internal/observability"

	"github.com/wneessen/go-mail"
)

// Message is a multipart email with a plaintext body and an HTML alternative.
type Message struct {
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Text    string   `json:"text"`
	HTML    string   `json:"html"`
}

// Sender delivers a Message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// New returns the sender selected by MAIL_TRANSPORT, instrumented with EmailsSent.
func New(cfg *config.Config) (Sender, error) {
	switch cfg.MailTransport {
	case "smtp":
		s, err := NewSMTPSender(cfg)
		if err != nil {
			return nil, err
		}
		return instrumented{transport: "smtp", next: s}, nil
	case "", "log":
		return instrumented{transport: "log", next: NewLogSender(cfg.MailFrom)}, nil
	default:
		return nil, fmt.Errorf("unsupported mail transport %q", cfg.MailTransport)
	}
}

// SMTPSender delivers mail through an SMTP relay.
type SMTPSender struct {
	client *mail.Client
	from   string
}

func NewSMTPSender(cfg *config.Config) (*SMTPSender, error) {
	opts := []mail.Option{
		mail.WithPort(cfg.SMTPPort),
		mail.WithTimeout(15 * time.Second),
	}
	if cfg.SMTPTLS {
		opts = append(opts, mail.WithTLSPortPolicy(mail.TLSMandatory))
	} else {
		opts = append(opts, mail.WithTLSPortPolicy(mail.NoTLS))
	}
	if cfg.SMTPUsername != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.SMTPUsername),
			mail.WithPassword(cfg.SMTPPassword),
		)
	}
	client, err := mail.NewClient(cfg.SMTPHost, opts...)
	if err != nil {
		return nil, fmt.Errorf("smtp client: %w", err)
	}
	return &SMTPSender{client: client, from: cfg.MailFrom}, nil
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	m, err := buildMsg(s.from, msg)
	if err != nil {
		return err
	}
	if err := s.client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

func buildMsg(from string, msg Message) (*mail.Msg, error) {
	if len(msg.To) == 0 {
		return nil, errors.New("mailer: message has no recipients")
	}
	m := mail.NewMsg()
	if err := m.From(from); err != nil {
		return nil, fmt.Errorf("invalid sender: %w", err)
	}
	if err := m.To(msg.To...); err != nil {
		return nil, fmt.Errorf("invalid recipient: %w", err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextPlain, msg.Text)
	if msg.HTML != "" {
		m.AddAlternativeString(mail.TypeTextHTML, msg.HTML)
	}
	return m, nil
}

// LogSender writes messages to the structured log instead of sending them.
type LogSender struct {
	from string
}

func NewLogSender(from string) *LogSender {
	return &LogSender{from: from}
}

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	if _, err := buildMsg(s.from, msg); err != nil {
		return err
	}
	middleware.Logger.InfoContext(ctx, "email (log transport)",
		slog.String("from", s.from),
		slog.Any("to", msg.To),
		slog.String("subject", msg.Subject),
		slog.String("text", msg.Text),
	)
	return nil
}

type instrumented struct {
	transport string
	next      Sender
}

func (i instrumented) Send(ctx context.Context, msg Message) error {
	err := i.next.Send(ctx, msg)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	observability.EmailsSent.WithLabelValues(i.transport, outcome).Inc()
	return err
}
