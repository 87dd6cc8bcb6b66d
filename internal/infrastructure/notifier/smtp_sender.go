// Package notifier delivers one-time codes to account emails.
package notifier

import (
	"context"
	"fmt"
	"time"

	"github.com/wneessen/go-mail"
	"go.uber.org/zap"
	"kwala.backend/internal/config"
	domainerrors "kwala.backend/internal/domain/errors"
	"kwala.backend/internal/domain/services"
	"kwala.backend/pkg/logger"
)

type mailTemplate struct {
	subject string
	heading string
	lead    string
}

var templates = map[services.CodeKind]mailTemplate{
	services.CodeKindVerification:  {subject: "Email Verification", heading: "Email Verification", lead: "Your verification code is:"},
	services.CodeKindPasswordReset: {subject: "Reset Password", heading: "Reset Password", lead: "Your password reset code is:"},
}

// SMTPSender sends codes through an SMTP relay.
type SMTPSender struct {
	cfg     config.SMTPConfig
	codeTTL time.Duration
	send    func(ctx context.Context, msg *mail.Msg) error
}

// NewSMTPSender creates a sender for cfg. Codes are described as valid for codeTTL.
func NewSMTPSender(cfg config.SMTPConfig, codeTTL time.Duration) (*SMTPSender, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("SMTP host is required")
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("SMTP from address is required")
	}

	s := &SMTPSender{cfg: cfg, codeTTL: codeTTL}
	s.send = s.dialAndSend
	return s, nil
}

// SendCode emails code to the given address.
func (s *SMTPSender) SendCode(ctx context.Context, kind services.CodeKind, email, code string) error {
	msg, err := s.buildMessage(kind, email, code)
	if err != nil {
		return domainerrors.DeliveryError(err)
	}
	if err := s.send(ctx, msg); err != nil {
		logger.Error(ctx, "Failed to send code email", zap.String("kind", string(kind)), zap.Error(err))
		return domainerrors.DeliveryError(err)
	}
	logger.Info(ctx, "Code email sent", zap.String("kind", string(kind)))
	return nil
}

func (s *SMTPSender) buildMessage(kind services.CodeKind, to, code string) (*mail.Msg, error) {
	tpl, ok := templates[kind]
	if !ok {
		return nil, fmt.Errorf("unknown code kind %q", kind)
	}

	msg := mail.NewMsg()
	if s.cfg.FromName != "" {
		if err := msg.FromFormat(s.cfg.FromName, s.cfg.From); err != nil {
			return nil, fmt.Errorf("setting from address: %w", err)
		}
	} else if err := msg.From(s.cfg.From); err != nil {
		return nil, fmt.Errorf("setting from address: %w", err)
	}
	if err := msg.To(to); err != nil {
		return nil, fmt.Errorf("setting to address: %w", err)
	}

	expiry := expiryText(s.codeTTL)
	msg.Subject(tpl.subject)
	msg.SetBodyString(mail.TypeTextHTML, fmt.Sprintf(
		"<h1>%s</h1>\n<p>%s <strong>%s</strong></p>\n<p>This code will expire in %s.</p>\n",
		tpl.heading, tpl.lead, code, expiry))
	msg.AddAlternativeString(mail.TypeTextPlain, fmt.Sprintf(
		"%s %s\n\nThis code will expire in %s.\n", tpl.lead, code, expiry))
	return msg, nil
}

func (s *SMTPSender) dialAndSend(ctx context.Context, msg *mail.Msg) error {
	opts := []mail.Option{
		mail.WithPort(s.cfg.Port),
	}

	if s.cfg.TLS {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
		// implicit TLS on 465, STARTTLS elsewhere
		if s.cfg.Port == 465 {
			opts = append(opts, mail.WithSSL())
		}
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.NoTLS))
	}

	if s.cfg.Username != "" && s.cfg.Password != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.cfg.Username),
			mail.WithPassword(s.cfg.Password),
		)
	}

	client, err := mail.NewClient(s.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("creating mail client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("sending email: %w", err)
	}
	return nil
}

func expiryText(ttl time.Duration) string {
	if ttl >= time.Minute && ttl%time.Minute == 0 {
		m := int(ttl / time.Minute)
		if m == 1 {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", m)
	}
	return fmt.Sprintf("%d seconds", int(ttl.Seconds()))
}

// LogSender writes codes to the log instead of sending them. Development only.
type LogSender struct{}

func (LogSender) SendCode(ctx context.Context, kind services.CodeKind, email, code string) error {
	logger.Warn(ctx, "SMTP not configured, code logged instead of sent",
		zap.String("kind", string(kind)),
		zap.String("email", email),
		zap.String("code", code),
	)
	return nil
}
