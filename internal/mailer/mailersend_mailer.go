package mailer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mailersend/mailersend-go"
)

type MailerSendClient struct {
	client  *mailersend.Mailersend
	from    mailersend.From
	enabled bool
}

func NewMailerSend(apiKey, fromName, fromEmail string) *MailerSendClient {
	m := &MailerSendClient{
		enabled: apiKey != "" && fromEmail != "",
		from: mailersend.From{
			Name:  fromName,
			Email: fromEmail,
		},
	}

	if m.enabled {
		m.client = mailersend.NewMailersend(apiKey)
	}

	return m
}

func (m *MailerSendClient) SendWelcomeEmail(toEmail, toName string) error {
	if !m.enabled {
		return fmt.Errorf("MailerSend not configured")
	}

	subject := "Welcome to the Peakscape family!"
	html := fmt.Sprintf(`
		<h2>Welcome to Peakscape!</h2>
		<p>Hi %s,</p>
		<p>We're glad to have you 🎉🙏</p>
		<p>You can now browse tours, leave reviews, and book your next adventure.</p>
		<p>If you need any help, just reply to this email. We're always happy to hear from you!</p>
	`, toName)

	text := fmt.Sprintf("Hi %s, welcome to Peakscape! We're glad to have you.", toName)

	return m.sendEmail(toEmail, toName, subject, text, html)
}

func (m *MailerSendClient) SendPasswordResetEmail(toEmail, toName, resetURL string) error {
	if !m.enabled {
		return fmt.Errorf("MailerSend not configured")
	}

	subject := "Your password reset token (valid for 10 minutes)"
	html := fmt.Sprintf(`
		<h2>Forgot your password?</h2>
		<p>Hi %s,</p>
		<p>Submit a PATCH request with your new password and passwordConfirm to:</p>
		<p><a href="%s" style="background-color: #55c57a; color: white; padding: 10px 20px; text-decoration: none; border-radius: 5px;">Reset Password</a></p>
		<p>This link is valid for 10 minutes.</p>
		<p>If you didn't forget your password, please ignore this email.</p>
	`, toName, resetURL)

	text := fmt.Sprintf("Forgot your password? Submit a PATCH request with your new password and passwordConfirm to: %s\n\nIf you didn't forget your password, please ignore this email.", resetURL)

	return m.sendEmail(toEmail, toName, subject, text, html)
}

func (m *MailerSendClient) sendEmail(toEmail, toName, subject, text, html string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	msg := m.client.Email.NewMessage()
	msg.SetFrom(m.from)
	msg.SetRecipients([]mailersend.Recipient{{Name: toName, Email: toEmail}})
	msg.SetSubject(subject)

	if strings.TrimSpace(text) != "" {
		msg.SetText(text)
	}
	if strings.TrimSpace(html) != "" {
		msg.SetHTML(html)
	}

	_, err := m.client.Email.Send(ctx, msg)
	return err
}
