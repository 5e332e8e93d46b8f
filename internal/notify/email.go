package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/wneessen/go-mail"

	"github.com/himanishpuri/muzak/internal/config"
)

// EmailConfig contains SMTP server settings.
type EmailConfig struct {
	Host       string
	Port       int
	FromName   string
	Username   string
	Password   string
	Recipients []string
}

// EmailConfigFrom converts the config section, splitting the recipient list.
func EmailConfigFrom(c config.EmailConfig) EmailConfig {
	return EmailConfig{
		Host:       c.Host,
		Port:       c.Port,
		FromName:   c.FromName,
		Username:   c.Username,
		Password:   c.Password,
		Recipients: config.SplitList(c.Recipients),
	}
}

// Configured reports whether enough is set to attempt delivery.
func (c EmailConfig) Configured() bool {
	return c.Host != "" && c.Username != "" && len(c.Recipients) > 0
}

var errNotConfigured = errors.New("email not configured")

// EmailSink mails detections and notices.
type EmailSink struct {
	cfg  EmailConfig
	send func(ctx context.Context, m *mail.Msg) error
}

func NewEmailSink(cfg EmailConfig) *EmailSink {
	s := &EmailSink{cfg: cfg}
	s.send = s.dialAndSend
	return s
}

func (s *EmailSink) Name() string { return "email" }

func (s *EmailSink) Detection(ctx context.Context, ev Event) error {
	subject := fmt.Sprintf("[muzak] %s - %s", ev.Artist, ev.Title)
	body := fmt.Sprintf(
		"Now playing:\n\n"+
			"Title:     %s\n"+
			"Artist:    %s\n"+
			"Amplitude: %.4f\n"+
			"Time:      %s",
		ev.Title, ev.Artist, ev.Amplitude, ev.Timestamp.Format("2006-01-02 15:04:05"),
	)
	return s.deliver(ctx, subject, body)
}

func (s *EmailSink) Notice(ctx context.Context, n Notice) error {
	subject := "[muzak] " + n.Message
	body := fmt.Sprintf("%s\n\nTime: %s", n.Message, n.Timestamp.Format("2006-01-02 15:04:05"))
	return s.deliver(ctx, subject, body)
}

func (s *EmailSink) deliver(ctx context.Context, subject, body string) error {
	m, err := s.message(subject, body)
	if err != nil {
		return err
	}
	return s.send(ctx, m)
}

func (s *EmailSink) message(subject, body string) (*mail.Msg, error) {
	if !s.cfg.Configured() {
		return nil, errNotConfigured
	}

	m := mail.NewMsg()
	if s.cfg.FromName != "" {
		if err := m.FromFormat(s.cfg.FromName, s.cfg.Username); err != nil {
			return nil, fmt.Errorf("failed to set from address: %w", err)
		}
	} else if err := m.From(s.cfg.Username); err != nil {
		return nil, fmt.Errorf("failed to set from address: %w", err)
	}
	if err := m.To(s.cfg.Recipients...); err != nil {
		return nil, fmt.Errorf("failed to set recipient address: %w", err)
	}
	m.Subject(subject)
	m.SetBodyString(mail.TypeTextPlain, strings.TrimSpace(body))
	return m, nil
}

// clientOptions picks TLS by port: implicit TLS on 465, mandatory STARTTLS
// on 587, opportunistic otherwise.
func (s *EmailSink) clientOptions() []mail.Option {
	opts := []mail.Option{
		mail.WithPort(s.cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthAutoDiscover),
		mail.WithUsername(s.cfg.Username),
		mail.WithPassword(s.cfg.Password),
	}
	switch s.cfg.Port {
	case 465:
		opts = append(opts, mail.WithSSL())
	case 587:
		opts = append(opts, mail.WithTLSPortPolicy(mail.TLSMandatory))
	default:
		opts = append(opts, mail.WithTLSPortPolicy(mail.TLSOpportunistic))
	}
	return opts
}

func (s *EmailSink) dialAndSend(ctx context.Context, m *mail.Msg) error {
	c, err := mail.NewClient(s.cfg.Host, s.clientOptions()...)
	if err != nil {
		return fmt.Errorf("failed to create SMTP client: %w", err)
	}
	if err := c.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}
