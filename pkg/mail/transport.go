package mail

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"
)

const implicitTLSPort = 465

// smtpClient is the subset of *smtp.Client used by the mailer.
type smtpClient interface {
	Extension(string) (bool, string)
	Auth(smtp.Auth) error
	Mail(string) error
	Rcpt(string) error
	Data() (io.WriteCloser, error)
	Quit() error
	Close() error
}

type dialFunc func(ctx context.Context, cfg SMTPSettings) (smtpClient, error)

// dialSMTP opens a session ready for AUTH: TLS from the first byte on port
// 465, otherwise plain TCP upgraded with STARTTLS.
func dialSMTP(ctx context.Context, cfg SMTPSettings) (smtpClient, error) {
	address := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	tlsConfig := &tls.Config{ServerName: cfg.Host, MinVersion: tls.VersionTLS12}

	var (
		conn net.Conn
		err  error
	)
	if cfg.Port == implicitTLSPort {
		dialer := &tls.Dialer{NetDialer: &net.Dialer{Timeout: cfg.Timeout}, Config: tlsConfig}
		conn, err = dialer.DialContext(ctx, "tcp", address)
	} else {
		dialer := &net.Dialer{Timeout: cfg.Timeout}
		conn, err = dialer.DialContext(ctx, "tcp", address)
	}
	if err != nil {
		return nil, fmt.Errorf("smtp: dial %s: %w", address, err)
	}
	if deadline, ok := sessionDeadline(ctx, cfg.Timeout); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, cfg.Host)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("smtp: new client: %w", err)
	}

	if cfg.Port != implicitTLSPort {
		if err := upgradeTLS(client, tlsConfig, cfg.UseTLS); err != nil {
			_ = client.Close()
			return nil, err
		}
	}
	return client, nil
}

type startTLSClient interface {
	Extension(string) (bool, string)
	StartTLS(*tls.Config) error
}

func upgradeTLS(client startTLSClient, tlsConfig *tls.Config, required bool) error {
	if ok, _ := client.Extension("STARTTLS"); !ok {
		if required {
			return errors.New("smtp: server does not offer STARTTLS")
		}
		return nil
	}
	if err := client.StartTLS(tlsConfig); err != nil {
		return fmt.Errorf("smtp: start tls: %w", err)
	}
	return nil
}

// sessionDeadline bounds the whole SMTP conversation by the earlier of the
// context deadline and now+timeout.
func sessionDeadline(ctx context.Context, timeout time.Duration) (time.Time, bool) {
	deadline, ok := ctx.Deadline()
	if timeout > 0 {
		limit := time.Now().Add(timeout)
		if !ok || limit.Before(deadline) {
			return limit, true
		}
	}
	return deadline, ok
}

func authenticate(client smtpClient, cfg SMTPSettings) error {
	if strings.TrimSpace(cfg.Username) == "" {
		return nil
	}
	if ok, _ := client.Extension("AUTH"); !ok {
		return errors.New("smtp: server does not support AUTH")
	}
	if err := client.Auth(smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)); err != nil {
		return fmt.Errorf("smtp: auth: %w", err)
	}
	return nil
}
