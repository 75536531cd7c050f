package mailer

import (
	"bytes"
	"crypto/tls"
	"fmt"
	"net/smtp"
	"strings"
)

type SMTPMailer struct {
	Host   string
	Port   int
	From   string
	User   string
	Pass   string
	UseTLS bool
}

func NewSMTPMailer(host string, port int, from, user, pass string, useTLS bool) *SMTPMailer {
	return &SMTPMailer{
		Host:   strings.TrimSpace(host),
		Port:   port,
		From:   strings.TrimSpace(from),
		User:   strings.TrimSpace(user),
		Pass:   strings.TrimSpace(pass),
		UseTLS: useTLS,
	}
}

func (s *SMTPMailer) SendWelcomeEmail(toEmail, toName string) error {
	subject := "Welcome to the Peakscape family!"
	text := fmt.Sprintf("Hi %s, welcome to Peakscape! We're glad to have you.", toName)
	html := fmt.Sprintf(`
		<h2>Welcome to Peakscape!</h2>
		<p>Hi %s,</p>
		<p>We're glad to have you 🎉🙏</p>
		<p>You can now browse tours, leave reviews, and book your next adventure.</p>
	`, toName)

	return s.sendEmail(toEmail, subject, text, html)
}

func (s *SMTPMailer) SendPasswordResetEmail(toEmail, toName, resetURL string) error {
	subject := "Your password reset token (valid for 10 minutes)"
	text := fmt.Sprintf("Forgot your password? Submit a PATCH request with your new password and passwordConfirm to: %s\n\nIf you didn't forget your password, please ignore this email.", resetURL)
	html := fmt.Sprintf(`
		<h2>Forgot your password?</h2>
		<p>Hi %s,</p>
		<p>Submit a PATCH request with your new password and passwordConfirm to:</p>
		<p><a href="%s" style="background-color: #55c57a; color: white; padding: 10px 20px; text-decoration: none; border-radius: 5px;">Reset Password</a></p>
		<p>This link is valid for 10 minutes.</p>
	`, toName, resetURL)

	return s.sendEmail(toEmail, subject, text, html)
}

func (s *SMTPMailer) sendEmail(toEmail, subject, text, html string) error {
	toEmail = strings.TrimSpace(toEmail)
	if toEmail == "" {
		return fmt.Errorf("empty recipient email")
	}

	var buf bytes.Buffer
	boundary := "mixed-boundary"

	fmt.Fprintf(&buf, "From: %s\r\n", s.From)
	fmt.Fprintf(&buf, "To: %s\r\n", toEmail)
	fmt.Fprintf(&buf, "Subject: %s\r\n", subject)
	fmt.Fprintf(&buf, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/alternative; boundary=%s\r\n\r\n", boundary)

	fmt.Fprintf(&buf, "--%s\r\n", boundary)
	fmt.Fprintf(&buf, "Content-Type: text/plain; charset=utf-8\r\n\r\n")
	fmt.Fprintf(&buf, "%s\r\n\r\n", text)

	fmt.Fprintf(&buf, "--%s\r\n", boundary)
	fmt.Fprintf(&buf, "Content-Type: text/html; charset=utf-8\r\n\r\n")
	fmt.Fprintf(&buf, "%s\r\n\r\n", html)

	fmt.Fprintf(&buf, "--%s--\r\n", boundary)

	addr := fmt.Sprintf("%s:%d", s.Host, s.Port)

	// Mailpit or development SMTP (no auth, no TLS)
	if !s.UseTLS && s.User == "" {
		return smtp.SendMail(addr, nil, s.From, []string{toEmail}, buf.Bytes())
	}

	var auth smtp.Auth
	if s.User != "" {
		auth = smtp.PlainAuth("", s.User, s.Pass, s.Host)
	}

	// Try plain SMTP first (with STARTTLS if supported)
	if err := smtp.SendMail(addr, auth, s.From, []string{toEmail}, buf.Bytes()); err == nil {
		return nil
	}

	// Fallback to implicit TLS (port 465)
	if s.UseTLS {
		tlsCfg := &tls.Config{ServerName: s.Host, InsecureSkipVerify: false}
		conn, err := tls.Dial("tcp", addr, tlsCfg)
		if err != nil {
			return err
		}
		defer conn.Close()

		c, err := smtp.NewClient(conn, s.Host)
		if err != nil {
			return err
		}
		defer c.Quit()

		if s.User != "" {
			if err := c.Auth(auth); err != nil {
				return err
			}
		}

		if err := c.Mail(s.From); err != nil {
			return err
		}
		if err := c.Rcpt(toEmail); err != nil {
			return err
		}

		w, err := c.Data()
		if err != nil {
			return err
		}

		if _, err := w.Write(buf.Bytes()); err != nil {
			return err
		}

		return w.Close()
	}

	return fmt.Errorf("smtp send failed")
}
