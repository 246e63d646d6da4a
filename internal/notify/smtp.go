package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"log"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/jonathan/portfolio-api/internal/config"
)

// SendFunc hands a fully formatted message to a mail server.
type SendFunc func(ctx context.Context, addr string, auth smtp.Auth, from string, to []string, msg []byte) error

// SMTPNotifier sends notifications as HTML mail.
type SMTPNotifier struct {
	cfg  config.MailConfig
	send SendFunc
	now  func() time.Time
}

// SMTPOption configures an SMTPNotifier.
type SMTPOption func(*SMTPNotifier)

// WithSendFunc replaces the network transport.
func WithSendFunc(send SendFunc) SMTPOption {
	return func(s *SMTPNotifier) {
		s.send = send
	}
}

// NewSMTPNotifier creates a notifier for cfg. It fails when cfg has no
// password, server or username.
func NewSMTPNotifier(cfg config.MailConfig, opts ...SMTPOption) (*SMTPNotifier, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("mail is not configured")
	}
	if cfg.To == "" {
		cfg.To = cfg.Username
	}
	if cfg.From == "" {
		cfg.From = cfg.Username
	}

	s := &SMTPNotifier{cfg: cfg, send: sendMail, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// New returns an SMTPNotifier when mail is configured and a LogNotifier
// otherwise.
func New(cfg config.MailConfig) Notifier {
	s, err := NewSMTPNotifier(cfg)
	if err != nil {
		log.Printf("[notify] MAIL_PASSWORD not set, email notifications disabled")
		return LogNotifier{}
	}
	return s
}

// Notify implements Notifier.
func (s *SMTPNotifier) Notify(ctx context.Context, n Notification) error {
	addr := net.JoinHostPort(s.cfg.Server, strconv.Itoa(s.cfg.Port))
	auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Server)
	to := strings.Split(s.cfg.To, ",")
	for i := range to {
		to[i] = strings.TrimSpace(to[i])
	}

	if err := s.send(ctx, addr, auth, s.cfg.From, to, s.format(n, to)); err != nil {
		return fmt.Errorf("failed to send %q via %s: %w", n.Subject, addr, err)
	}
	return nil
}

func (s *SMTPNotifier) format(n Notification, to []string) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "From: %s\r\n", s.cfg.From)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", n.Subject))
	fmt.Fprintf(&b, "Date: %s\r\n", s.now().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(n.HTML, "\n", "\r\n"))
	return b.Bytes()
}

// sendMail is smtp.SendMail with the dial and the whole exchange bounded by ctx.
func sendMail(ctx context.Context, addr string, auth smtp.Auth, from string, to []string, msg []byte) error {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return err
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	c, err := smtp.NewClient(conn, host)
	if err != nil {
		conn.Close()
		return err
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: host}); err != nil {
			return err
		}
	}
	if ok, _ := c.Extension("AUTH"); ok && auth != nil {
		if err := c.Auth(auth); err != nil {
			return err
		}
	}
	if err := c.Mail(from); err != nil {
		return err
	}
	for _, rcpt := range to {
		if err := c.Rcpt(rcpt); err != nil {
			return err
		}
	}

	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}
