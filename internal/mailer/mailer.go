package mailer

import "github.com/peakscape/tours-api/pkg/config"

type Service interface {
	SendWelcomeEmail(toEmail, toName string) error
	SendPasswordResetEmail(toEmail, toName, resetURL string) error
}

// New picks a backend from config: dev logger in dev mode, MailerSend when an
// API key is present, plain SMTP otherwise.
func New(cfg config.EmailConfig) Service {
	if cfg.DevMode {
		return NewDevMailer()
	}
	if cfg.MailerSendKey != "" {
		return NewMailerSend(cfg.MailerSendKey, cfg.FromName, cfg.From)
	}
	return NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.From, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPUseTLS)
}
