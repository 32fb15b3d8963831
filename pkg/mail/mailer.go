package mail

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
)

// ErrSMTPDisabled signals that SMTP delivery is disabled via configuration.
var ErrSMTPDisabled = errors.New("smtp: delivery disabled")

const defaultTimeout = 10 * time.Second

// Message is an outbound e-mail. When both Text and HTML are set the message
// is sent as multipart/alternative.
type Message struct {
	From    string
	To      []string
	Subject string
	Text    string
	HTML    string
}

// Mailer delivers messages.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPSettings capture the runtime configuration required by the SMTP mailer.
// Port 465 uses implicit TLS; other ports upgrade with STARTTLS when the server
// offers it, and UseTLS makes that upgrade mandatory.
type SMTPSettings struct {
	Enabled  bool
	Host     string
	Port     int
	Username string
	Password string
	From     string
	UseTLS   bool
	Timeout  time.Duration
}

// sender is the envelope address used when a message leaves From empty.
func (s SMTPSettings) sender() string {
	if from := strings.TrimSpace(s.From); from != "" {
		return from
	}
	return strings.TrimSpace(s.Username)
}

// NewSMTPMailer validates the settings and returns an SMTP backed Mailer. A
// disabled configuration yields a mailer whose Send returns ErrSMTPDisabled.
func NewSMTPMailer(cfg SMTPSettings) (Mailer, error) {
	if cfg.Enabled {
		if strings.TrimSpace(cfg.Host) == "" {
			return nil, errors.New("smtp: host is required when enabled")
		}
		if cfg.Port <= 0 {
			return nil, errors.New("smtp: port is required when enabled")
		}
		if cfg.sender() == "" {
			return nil, errors.New("smtp: from or username is required when enabled")
		}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &smtpMailer{
		cfg:  cfg,
		dial: dialSMTP,
		now:  time.Now,
	}, nil
}

type smtpMailer struct {
	cfg  SMTPSettings
	dial dialFunc
	now  func() time.Time
}

func (m *smtpMailer) Send(ctx context.Context, msg Message) error {
	if !m.cfg.Enabled {
		return ErrSMTPDisabled
	}
	if ctx == nil {
		ctx = context.Background()
	}

	from, recipients, err := m.envelope(msg)
	if err != nil {
		return err
	}
	if strings.TrimSpace(msg.Text) == "" && strings.TrimSpace(msg.HTML) == "" {
		return errors.New("smtp: message body is empty")
	}

	payload, err := composeMessage(from, recipients, msg, m.now())
	if err != nil {
		return err
	}

	client, err := m.dial(ctx, m.cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := authenticate(client, m.cfg); err != nil {
		return err
	}
	if err := client.Mail(from); err != nil {
		return fmt.Errorf("smtp: mail from: %w", err)
	}
	for _, rcpt := range recipients {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("smtp: rcpt to %s: %w", rcpt, err)
		}
	}

	wc, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp: data command: %w", err)
	}
	if _, err := wc.Write(payload); err != nil {
		_ = wc.Close()
		return fmt.Errorf("smtp: write body: %w", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("smtp: close data writer: %w", err)
	}
	return client.Quit()
}

// envelope resolves the sender and the deduplicated, validated recipients.
func (m *smtpMailer) envelope(msg Message) (string, []string, error) {
	from := strings.TrimSpace(msg.From)
	if from == "" {
		from = m.cfg.sender()
	}
	if from == "" {
		return "", nil, errors.New("smtp: sender address is required")
	}
	if _, err := mail.ParseAddress(from); err != nil {
		return "", nil, fmt.Errorf("smtp: invalid from address: %w", err)
	}

	recipients := uniqueAddresses(msg.To)
	if len(recipients) == 0 {
		return "", nil, errors.New("smtp: at least one recipient is required")
	}
	for _, rcpt := range recipients {
		if _, err := mail.ParseAddress(rcpt); err != nil {
			return "", nil, fmt.Errorf("smtp: invalid recipient address %q: %w", rcpt, err)
		}
	}
	return from, recipients, nil
}

func uniqueAddresses(addresses []string) []string {
	seen := make(map[string]struct{}, len(addresses))
	result := make([]string, 0, len(addresses))
	for _, addr := range addresses {
		addr = strings.TrimSpace(addr)
		if addr == "" {
			continue
		}
		key := strings.ToLower(addr)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		result = append(result, addr)
	}
	return result
}
