package mailer

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"strings"
	"time"

	"shirly.shop/app/internal/config"
)

// SMTPMailer speaks plain SMTP, STARTTLS or implicit TLS depending on
// SMTP_TLS_MODE. One connection per message.
type SMTPMailer struct {
	cfg          config.SMTPConfig
	dialTimeout  time.Duration
	writeTimeout time.Duration

	messageIDDomain string
}

func NewSMTPMailer(cfg config.SMTPConfig) *SMTPMailer {
	domain := cfg.From
	if i := strings.LastIndex(domain, "@"); i >= 0 {
		domain = domain[i+1:]
	}
	if domain == "" {
		domain = cfg.Host
	}
	return &SMTPMailer{
		cfg:             cfg,
		dialTimeout:     5 * time.Second,
		writeTimeout:    10 * time.Second,
		messageIDDomain: domain,
	}
}

func (m *SMTPMailer) Send(ctx context.Context, e Email) error {
	raw, err := buildMIMEMessage(e, m.messageIDDomain)
	if err != nil {
		return err
	}

	conn, c, err := m.open(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()
	defer c.Quit()

	if err := m.authenticate(c); err != nil {
		return err
	}
	return m.deliver(conn, c, e, raw)
}

// open dials, applies implicit TLS or STARTTLS, and returns the SMTP client.
func (m *SMTPMailer) open(ctx context.Context) (net.Conn, *smtp.Client, error) {
	addr := net.JoinHostPort(m.cfg.Host, m.cfg.Port)
	conn, err := (&net.Dialer{Timeout: m.dialTimeout}).DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, nil, fmt.Errorf("smtp: dial %s: %w", addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	mode := strings.ToLower(m.cfg.TLSMode)
	if mode == "tls" {
		tc := tls.Client(conn, m.tlsConfig())
		if err := tc.HandshakeContext(ctx); err != nil {
			conn.Close()
			return nil, nil, fmt.Errorf("smtp: tls handshake: %w", err)
		}
		conn = tc
	}

	c, err := smtp.NewClient(conn, m.cfg.Host)
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("smtp: greeting: %w", err)
	}
	if mode == "starttls" {
		if ok, _ := c.Extension("STARTTLS"); !ok {
			conn.Close()
			return nil, nil, fmt.Errorf("smtp: server does not offer STARTTLS")
		}
		if err := c.StartTLS(m.tlsConfig()); err != nil {
			conn.Close()
			return nil, nil, fmt.Errorf("smtp: starttls: %w", err)
		}
	}
	return conn, c, nil
}

// authenticate is skipped for local catchers (Mailpit, MailHog) that take no
// credentials.
func (m *SMTPMailer) authenticate(c *smtp.Client) error {
	if m.cfg.User == "" || m.cfg.Pass == "" {
		return nil
	}
	if ok, _ := c.Extension("AUTH"); !ok {
		return nil
	}
	if err := c.Auth(smtp.PlainAuth("", m.cfg.User, m.cfg.Pass, m.cfg.Host)); err != nil {
		return fmt.Errorf("smtp: auth: %w", err)
	}
	return nil
}

func (m *SMTPMailer) deliver(conn net.Conn, c *smtp.Client, e Email, raw string) error {
	if err := c.Mail(e.From); err != nil {
		return fmt.Errorf("smtp: MAIL FROM: %w", err)
	}
	for _, rcpt := range e.AllRecipients() {
		if err := c.Rcpt(rcpt); err != nil {
			return fmt.Errorf("smtp: RCPT TO %s: %w", rcpt, err)
		}
	}
	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("smtp: DATA: %w", err)
	}
	_ = conn.SetWriteDeadline(time.Now().Add(m.writeTimeout))
	if _, err := w.Write([]byte(raw)); err != nil {
		_ = w.Close()
		return fmt.Errorf("smtp: write body: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp: end DATA: %w", err)
	}
	return nil
}

func (m *SMTPMailer) tlsConfig() *tls.Config {
	return &tls.Config{
		ServerName:         m.cfg.Host,
		InsecureSkipVerify: m.cfg.SkipVerifyTLS, //nolint:gosec // opt-in for dev catchers
		MinVersion:         tls.VersionTLS12,
	}
}

// New picks the SMTP mailer when a host is configured and the log mailer otherwise.
func New(cfg config.SMTPConfig, logger *slog.Logger) Service {
	if cfg.Host == "" {
		return LogMailer{Logger: logger}
	}
	return NewSMTPMailer(cfg)
}
