package mailer

import (
	"context"
	"fmt"
	"html"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"

	"github.com/alwalid54321/su-st-sub001/internal/config"
	"github.com/alwalid54321/su-st-sub001/internal/logger"
)

// sender - часть gomail.Dialer, которой пользуется SMTPMailer.
type sender interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPMailer отправляет письма через SMTP.
type SMTPMailer struct {
	dialer  sender
	from    string
	codeTTL time.Duration
}

// NewSMTPMailer создаёт почтовый клиент поверх gomail. codeTTL попадает в текст писем с кодами.
func NewSMTPMailer(cfg config.SMTPConfig, codeTTL time.Duration) *SMTPMailer {
	return &SMTPMailer{
		dialer:  gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password),
		from:    cfg.From,
		codeTTL: codeTTL,
	}
}

func (m *SMTPMailer) SendVerificationEmail(ctx context.Context, email, otp string) error {
	body := fmt.Sprintf(`
		<h2>Verify your SudaStock account</h2>
		<p>Your verification code is:</p>
		<p style="font-size:24px;letter-spacing:4px"><strong>%s</strong></p>
		<p>%sIf you did not create an account, you can ignore this email.</p>
	`, html.EscapeString(otp), expiryNotice(m.codeTTL))
	return m.send(ctx, email, "Verify your email address", body, "verification")
}

func (m *SMTPMailer) SendPasswordResetEmail(ctx context.Context, email, otp string) error {
	body := fmt.Sprintf(`
		<h3>Password reset requested</h3>
		<p>Use the following code to reset your password: <strong>%s</strong></p>
		<p>%sIf you did not request this change, you can ignore this email.</p>
	`, html.EscapeString(otp), expiryNotice(m.codeTTL))
	return m.send(ctx, email, "Password reset request", body, "password reset")
}

func (m *SMTPMailer) SendLoginCodeEmail(ctx context.Context, email, otp string) error {
	body := fmt.Sprintf(`
		<h3>Your sign-in code</h3>
		<p>Enter this code to sign in to SudaStock: <strong>%s</strong></p>
		<p>%sIf you did not try to sign in, change your password.</p>
	`, html.EscapeString(otp), expiryNotice(m.codeTTL))
	return m.send(ctx, email, "Your SudaStock sign-in code", body, "login code")
}

func (m *SMTPMailer) SendEmailNotification(ctx context.Context, email, subject, text string) error {
	body := fmt.Sprintf(`<p>%s</p>`, html.EscapeString(text))
	return m.send(ctx, email, subject, body, "notification")
}

func (m *SMTPMailer) send(ctx context.Context, to, subject, body, kind string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", body)

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("failed to send %s email: %w", kind, err)
	}

	logger.Log.WithFields(logrus.Fields{"to": logger.MaskEmail(to), "kind": kind}).Debug("mailer: email sent")
	return nil
}

// expiryNotice описывает срок жизни кода. Без срока фраза опускается.
func expiryNotice(ttl time.Duration) string {
	switch {
	case ttl <= 0:
		return ""
	case ttl < time.Minute:
		return fmt.Sprintf("The code expires in %d seconds. ", int(ttl/time.Second))
	case ttl < 2*time.Minute:
		return "The code expires in 1 minute. "
	default:
		return fmt.Sprintf("The code expires in %d minutes. ", int(ttl/time.Minute))
	}
}

// LogMailer используется без SMTP: письма не уходят, в лог пишется только получатель и тема.
type LogMailer struct{}

func (LogMailer) SendVerificationEmail(ctx context.Context, email, _ string) error {
	return LogMailer{}.skip(email, "Verify your email address")
}

func (LogMailer) SendPasswordResetEmail(ctx context.Context, email, _ string) error {
	return LogMailer{}.skip(email, "Password reset request")
}

func (LogMailer) SendLoginCodeEmail(ctx context.Context, email, _ string) error {
	return LogMailer{}.skip(email, "Your SudaStock sign-in code")
}

func (LogMailer) SendEmailNotification(ctx context.Context, email, subject, _ string) error {
	return LogMailer{}.skip(email, subject)
}

func (LogMailer) skip(to, subject string) error {
	logger.Log.WithFields(logrus.Fields{"to": logger.MaskEmail(to), "subject": subject}).Warn("mailer: SMTP_HOST not set, skipping email")
	return nil
}
