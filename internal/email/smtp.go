// Package email sends transactional mail over SMTP.
package email

import (
	"context"
	"fmt"

	"github.com/wneessen/go-mail"

	"conviaq_backend/platform/config"
	"conviaq_backend/platform/logger"
)

// Sender delivers transactional email. When SMTP is not configured Send
// becomes a logged no-op so provisioning never fails on mail.
type Sender struct {
	cfg config.SMTPConfig
	log *logger.Logger
}

func NewSender(cfg config.SMTPConfig, log *logger.Logger) *Sender {
	return &Sender{cfg: cfg, log: log}
}

// Send delivers one HTML email.
func (s *Sender) Send(ctx context.Context, to, subject, htmlBody string) error {
	if !s.cfg.IsEmailEnabled() {
		s.log.Info("email disabled, skipping send", "to", to, "subject", subject)
		return nil
	}

	msg := mail.NewMsg()
	if err := msg.FromFormat(s.cfg.GetEmailFromName(), s.cfg.GetEmailFromAddress()); err != nil {
		return fmt.Errorf("email: from: %w", err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("email: to: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextHTML, htmlBody)

	client, err := mail.NewClient(s.cfg.GetSMTPHost(),
		mail.WithPort(s.cfg.GetSMTPPort()),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(s.cfg.GetSMTPUsername()),
		mail.WithPassword(s.cfg.GetSMTPPassword()),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	)
	if err != nil {
		return fmt.Errorf("email: client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("email: send to %s: %w", to, err)
	}
	return nil
}

// WelcomeBody renders the provisioning welcome email.
func WelcomeBody(businessName, ownerName, loginURL string) (subject, body string) {
	subject = fmt.Sprintf("Bienvenido a CONVIAQ, %s", businessName)
	body = fmt.Sprintf(`<html><body>
<p>Hola %s,</p>
<p>Tu cuenta de <strong>%s</strong> ya está lista. Ingresa aquí:</p>
<p><a href="%s">%s</a></p>
<p>El equipo de CONVIAQ</p>
</body></html>`, ownerName, businessName, loginURL, loginURL)
	return subject, body
}
