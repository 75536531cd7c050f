package mailer

import (
	"fmt"

	"github.com/peakscape/tours-api/pkg/logger"
)

type DevMailer struct{}

func NewDevMailer() *DevMailer {
	return &DevMailer{}
}

func (d *DevMailer) SendWelcomeEmail(toEmail, toName string) error {
	logger.Info("📧 [DEV MAIL] Welcome Email",
		"to", toEmail,
		"name", toName,
	)

	fmt.Printf("\n"+
		"━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n"+
		"📧 WELCOME EMAIL (DEV MODE)\n"+
		"━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n"+
		"To: %s (%s)\n"+
		"Subject: Welcome to the Peakscape family!\n"+
		"━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n",
		toEmail, toName)

	return nil
}

func (d *DevMailer) SendPasswordResetEmail(toEmail, toName, resetURL string) error {
	logger.Info("📧 [DEV MAIL] Password Reset Email",
		"to", toEmail,
		"name", toName,
		"reset_url", resetURL,
	)

	fmt.Printf("\n"+
		"━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n"+
		"📧 PASSWORD RESET EMAIL (DEV MODE)\n"+
		"━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n"+
		"To: %s (%s)\n"+
		"Subject: Your password reset token (valid for 10 minutes)\n"+
		"\n"+
		"Reset URL: %s\n"+
		"━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n",
		toEmail, toName, resetURL)

	return nil
}
