package email

import (
	"context"
	"crypto/tls"
	"io"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/gomail.v2"

	"hrpayroll/internal/platform/config"
)

// Attachment is a file sent along with a message.
type Attachment struct {
	Name        string
	ContentType string
	Data        []byte
}

type sender interface {
	DialAndSend(m ...*gomail.Message) error
}

type Mailer struct {
	from   string
	sender sender
}

// New returns nil when email delivery is disabled.
func New(cfg config.Config) *Mailer {
	if !cfg.EmailEnabled || cfg.SMTPHost == "" {
		return nil
	}
	dialer := gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword)
	if cfg.SMTPUseTLS {
		dialer.TLSConfig = &tls.Config{ServerName: cfg.SMTPHost, MinVersion: tls.VersionTLS12}
	}
	return &Mailer{from: cfg.EmailFrom, sender: dialer}
}

func (m *Mailer) Send(ctx context.Context, to, subject, body string, attachments ...Attachment) error {
	if strings.TrimSpace(to) == "" {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := buildMessage(m.from, to, subject, body, attachments)
	if err := m.sender.DialAndSend(msg); err != nil {
		return err
	}
	zerolog.Ctx(ctx).Info().Str("to", to).Str("subject", subject).Int("attachments", len(attachments)).Msg("email sent")
	return nil
}

func buildMessage(from, to, subject, body string, attachments []Attachment) *gomail.Message {
	msg := gomail.NewMessage()
	msg.SetHeader("From", from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)
	for _, attachment := range attachments {
		data := attachment.Data
		settings := []gomail.FileSetting{
			gomail.SetCopyFunc(func(w io.Writer) error {
				_, err := w.Write(data)
				return err
			}),
		}
		if attachment.ContentType != "" {
			settings = append(settings, gomail.SetHeader(map[string][]string{"Content-Type": {attachment.ContentType}}))
		}
		msg.Attach(attachment.Name, settings...)
	}
	return msg
}
