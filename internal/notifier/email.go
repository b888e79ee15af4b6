package notifier

import (
	"context"
	"fmt"
	"time"

	"github.com/wneessen/go-mail"
)

const (
	DefaultSMTPHost = "smtp.gmail.com"
	DefaultSMTPPort = 587
)

// SMTPConfig holds everything the EmailNotifier needs to submit mail.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       string
	Timeout  time.Duration
}

// EmailNotifier sends plain-text email through an authenticated SMTP
// submission with mandatory STARTTLS. Each message opens its own session.
type EmailNotifier struct {
	cfg SMTPConfig
}

// NewEmailNotifier creates an EmailNotifier. Credentials and addresses are
// required.
func NewEmailNotifier(cfg SMTPConfig) (*EmailNotifier, error) {
	if cfg.Host == "" {
		cfg.Host = DefaultSMTPHost
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultSMTPPort
	}
	if cfg.Username == "" || cfg.Password == "" || cfg.From == "" || cfg.To == "" {
		return nil, fmt.Errorf("missing required SMTP credentials or addresses")
	}
	return &EmailNotifier{cfg: cfg}, nil
}

// Notify submits msg to the configured recipient
func (n *EmailNotifier) Notify(ctx context.Context, msg Message) error {
	m, err := n.buildMessage(msg)
	if err != nil {
		return err
	}

	opts := []mail.Option{
		mail.WithPort(n.cfg.Port),
		mail.WithTLSPolicy(mail.TLSMandatory),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(n.cfg.Username),
		mail.WithPassword(n.cfg.Password),
	}
	if n.cfg.Timeout > 0 {
		opts = append(opts, mail.WithTimeout(n.cfg.Timeout))
	}

	client, err := mail.NewClient(n.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("creating SMTP client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("sending email via %s:%d: %w", n.cfg.Host, n.cfg.Port, err)
	}
	return nil
}

// buildMessage turns msg into a MIME message
func (n *EmailNotifier) buildMessage(msg Message) (*mail.Msg, error) {
	m := mail.NewMsg()
	if err := m.From(n.cfg.From); err != nil {
		return nil, fmt.Errorf("invalid sender address: %w", err)
	}
	if err := m.To(n.cfg.To); err != nil {
		return nil, fmt.Errorf("invalid recipient address: %w", err)
	}
	m.Subject(msg.Subject)
	m.SetDate()
	m.SetBodyString(mail.TypeTextPlain, msg.Body)
	return m, nil
}
